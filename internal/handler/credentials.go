package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/CandyToyBox/AllowanceApp/internal/validate"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxUsernameLen = 50
	minPasswordLen = 6
	// bcrypt ignores input past 72 bytes.
	maxPasswordLen = 72
	maxNameLen     = 100
)

var bcryptCost = bcrypt.DefaultCost

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// checkPassword reports whether password matches hash. Only a mismatch is
// reported as false without error.
func checkPassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("compare password: %w", err)
	}
	return true, nil
}

func accountFields(username, password string, name, wallet *string) []validate.Field {
	return []validate.Field{
		validate.F("username", username, validate.Required, validate.MaxLen(maxUsernameLen)),
		validate.F("password", password, validate.Required, validate.MinLen(minPasswordLen), validate.MaxLen(maxPasswordLen)),
		validate.F("name", name, validate.MaxLen(maxNameLen)),
		validate.F("walletAddress", wallet, validate.WalletAddress),
	}
}

func parseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
