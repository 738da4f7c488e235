// Package validate checks decoded request values against a set of named
// field constraints and reports every failing field at once.
package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
)

var walletAddressRegexp = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Constraint returns a message describing why v is invalid, or "" if it is fine.
type Constraint func(v any) string

// Field pairs a request field name with its value and constraints.
type Field struct {
	Name        string
	Value       any
	Constraints []Constraint
}

func F(name string, value any, constraints ...Constraint) Field {
	return Field{Name: name, Value: value, Constraints: constraints}
}

// Check runs every field's constraints and returns a ValidationError listing
// the first failure of each invalid field. Absent optional values (nil
// pointers) are only checked by Required.
func Check(message string, fields ...Field) error {
	failures := make(map[string]string)
	for _, f := range fields {
		for _, c := range f.Constraints {
			if msg := c(f.Value); msg != "" {
				failures[f.Name] = msg
				break
			}
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return apperr.Validation(message, failures)
}

// deref unwraps pointer values; ok is false for a nil pointer.
func deref(v any) (any, bool) {
	switch p := v.(type) {
	case *string:
		if p == nil {
			return nil, false
		}
		return *p, true
	case *int64:
		if p == nil {
			return nil, false
		}
		return *p, true
	case *int:
		if p == nil {
			return nil, false
		}
		return *p, true
	case *time.Time:
		if p == nil {
			return nil, false
		}
		return *p, true
	case nil:
		return nil, false
	}
	return v, true
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func Required(v any) string {
	v, ok := deref(v)
	if !ok {
		return "is required"
	}
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return "is required"
		}
	case int64, int:
		if n, _ := asInt64(x); n == 0 {
			return "is required"
		}
	case time.Time:
		if x.IsZero() {
			return "is required"
		}
	}
	return ""
}

func Positive(v any) string {
	v, ok := deref(v)
	if !ok {
		return ""
	}
	n, isInt := asInt64(v)
	if !isInt {
		return "must be a number"
	}
	if n <= 0 {
		return "must be greater than 0"
	}
	return ""
}

func NonNegative(v any) string {
	v, ok := deref(v)
	if !ok {
		return ""
	}
	n, isInt := asInt64(v)
	if !isInt {
		return "must be a number"
	}
	if n < 0 {
		return "must not be negative"
	}
	return ""
}

func NonZero(v any) string {
	v, ok := deref(v)
	if !ok {
		return ""
	}
	if n, _ := asInt64(v); n == 0 {
		return "must not be zero"
	}
	return ""
}

// Max bounds an integer from above.
func Max(max int64) Constraint {
	return func(v any) string {
		v, ok := deref(v)
		if !ok {
			return ""
		}
		n, isInt := asInt64(v)
		if !isInt {
			return "must be a number"
		}
		if n > max {
			return fmt.Sprintf("must be at most %d", max)
		}
		return ""
	}
}

func MaxLen(max int) Constraint {
	return func(v any) string {
		v, ok := deref(v)
		if !ok {
			return ""
		}
		s, _ := v.(string)
		if utf8.RuneCountInString(s) > max {
			return fmt.Sprintf("must be at most %d characters", max)
		}
		return ""
	}
}

func MinLen(min int) Constraint {
	return func(v any) string {
		v, ok := deref(v)
		if !ok {
			return ""
		}
		s, _ := v.(string)
		if utf8.RuneCountInString(s) < min {
			return fmt.Sprintf("must be at least %d characters", min)
		}
		return ""
	}
}

func Email(v any) string {
	v, ok := deref(v)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "must be a valid email address"
	}
	return ""
}

// WalletAddress accepts 0x-prefixed 20-byte hex addresses in any letter case.
func WalletAddress(v any) string {
	v, ok := deref(v)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	if !walletAddressRegexp.MatchString(s) {
		return "must be a 0x-prefixed 40 character hex address"
	}
	return ""
}

func OneOf(allowed ...string) Constraint {
	return func(v any) string {
		v, ok := deref(v)
		if !ok {
			return ""
		}
		s, _ := v.(string)
		for _, a := range allowed {
			if s == a {
				return ""
			}
		}
		return fmt.Sprintf("must be one of %s", strings.Join(allowed, ", "))
	}
}

// IsWalletAddress reports whether s is a well-formed wallet address.
func IsWalletAddress(s string) bool {
	return walletAddressRegexp.MatchString(s)
}
