// Package settlement collects spend-permission payments. Only a simulated
// collector exists: nothing is submitted on-chain, but requests are validated
// as a real collector would and a plausible transaction hash is returned.
package settlement

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/CandyToyBox/AllowanceApp/internal/validate"
)

const (
	collectedMessage = "Subscription successfully collected"
	collectedAmount  = "0.001 ETH"
)

var hexDataRegexp = regexp.MustCompile(`^0x([0-9a-fA-F]{2})*$`)

// SpendPermission mirrors the on-chain SpendPermissionManager struct. Large
// integers are accepted as JSON numbers or decimal strings.
type SpendPermission struct {
	Account   string      `json:"account"`
	Spender   string      `json:"spender"`
	Token     string      `json:"token"`
	Allowance json.Number `json:"allowance"`
	Period    int64       `json:"period"`
	Start     int64       `json:"start"`
	End       int64       `json:"end"`
	Salt      json.Number `json:"salt,omitempty"`
	ExtraData string      `json:"extraData,omitempty"`
}

type Result struct {
	TransactionHash string `json:"transactionHash"`
	Message         string `json:"message"`
	Amount          string `json:"amount"`
	// Timestamp is in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

type Collector interface {
	Collect(ctx context.Context, p SpendPermission, signature string) (*Result, error)
}

// Validate checks the permission and signature are well formed.
func Validate(p SpendPermission, signature string) error {
	fields := map[string]string{}
	var ae *apperr.Error
	if err := validate.Check("invalid spend permission",
		validate.F("spendPermission.account", p.Account, validate.Required, validate.WalletAddress),
		validate.F("spendPermission.spender", p.Spender, validate.Required, validate.WalletAddress),
		validate.F("spendPermission.token", p.Token, validate.Required, validate.WalletAddress),
		validate.F("spendPermission.period", p.Period, validate.Required, validate.Positive),
		validate.F("signature", signature, validate.Required),
	); errors.As(err, &ae) {
		fields = ae.Fields
	}

	if msg := nonNegativeInteger(p.Allowance, true); msg != "" {
		fields["spendPermission.allowance"] = msg
	}
	if p.Salt != "" {
		if msg := nonNegativeInteger(p.Salt, false); msg != "" {
			fields["spendPermission.salt"] = msg
		}
	}
	if p.Start < 0 {
		fields["spendPermission.start"] = "must not be negative"
	}
	if p.End <= p.Start {
		fields["spendPermission.end"] = "must be after start"
	}
	if p.ExtraData != "" && !hexDataRegexp.MatchString(p.ExtraData) {
		fields["spendPermission.extraData"] = "must be 0x-prefixed hex"
	}
	if _, ok := fields["signature"]; !ok && (!hexDataRegexp.MatchString(signature) || len(signature) < 4) {
		fields["signature"] = "must be 0x-prefixed hex"
	}

	if len(fields) > 0 {
		return apperr.Validation("invalid spend permission", fields)
	}
	return nil
}

// nonNegativeInteger checks n is a decimal integer of arbitrary size.
func nonNegativeInteger(n json.Number, positive bool) string {
	v, ok := new(big.Int).SetString(string(n), 10)
	if !ok {
		return "must be an integer"
	}
	if positive && v.Sign() <= 0 {
		return "must be greater than 0"
	}
	if v.Sign() < 0 {
		return "must not be negative"
	}
	return ""
}

// Simulated pretends to collect and returns a fabricated transaction hash of
// the form 0x<unix seconds hex><8 random hex digits><24 zeros>.
type Simulated struct {
	now    func() time.Time
	random io.Reader
	logger *slog.Logger
}

func NewSimulated(logger *slog.Logger) *Simulated {
	return &Simulated{now: time.Now, random: rand.Reader, logger: logger}
}

func (s *Simulated) Collect(ctx context.Context, p SpendPermission, signature string) (*Result, error) {
	if err := Validate(p, signature); err != nil {
		return nil, err
	}

	salt := make([]byte, 4)
	if _, err := io.ReadFull(s.random, salt); err != nil {
		return nil, fmt.Errorf("generate hash: %w", err)
	}

	now := s.now()
	hash := fmt.Sprintf("0x%x%s%s", now.Unix(), hex.EncodeToString(salt), strings.Repeat("0", 24))

	s.logger.InfoContext(ctx, "simulated spend permission collection",
		"hash", hash,
		"account", strings.ToLower(p.Account),
		"spender", strings.ToLower(p.Spender),
		"token", strings.ToLower(p.Token),
		"amount", collectedAmount)

	return &Result{
		TransactionHash: hash,
		Message:         collectedMessage,
		Amount:          collectedAmount,
		Timestamp:       now.UnixMilli(),
	}, nil
}
