package database

import (
	"errors"
	"regexp"
	"strings"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteColumnRegexp pulls "column" out of "UNIQUE constraint failed: table.column".
var sqliteColumnRegexp = regexp.MustCompile(`constraint failed: \w+\.(\w+)`)

// Classify converts a driver error into an *apperr.Error. Constraint
// violations become validation errors keyed by the offending field; anything
// else is a storage error.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		column := ""
		if m := sqliteColumnRegexp.FindStringSubmatch(se.Error()); m != nil {
			column = m[1]
		}
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return duplicate(column)
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return missing(column)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return apperr.Validation("referenced record does not exist", nil)
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return apperr.Validation("value violates a data constraint", nil)
		}
		return apperr.Storage(op, err)
	}

	var pe *pq.Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case "23505":
			return duplicate(columnFromConstraint(pe.Table, pe.Constraint))
		case "23502":
			return missing(pe.Column)
		case "23503":
			return apperr.Validation("referenced record does not exist", nil)
		case "23514":
			return apperr.Validation("value violates a data constraint", nil)
		}
		return apperr.Storage(op, err)
	}

	return apperr.Storage(op, err)
}

func duplicate(column string) error {
	if column == "" {
		return apperr.Validation("duplicate value", nil)
	}
	field := fieldName(column)
	return apperr.Validation(field+" is already taken", map[string]string{field: "is already taken"})
}

func missing(column string) error {
	if column == "" {
		return apperr.Validation("missing required value", nil)
	}
	field := fieldName(column)
	return apperr.Validation(field+" is required", map[string]string{field: "is required"})
}

// columnFromConstraint maps "parents_wallet_address_key" to "wallet_address".
func columnFromConstraint(table, constraint string) string {
	c := strings.TrimPrefix(constraint, table+"_")
	return strings.TrimSuffix(c, "_key")
}

// fieldName converts a snake_case column to the camelCase JSON field name.
func fieldName(column string) string {
	parts := strings.Split(column, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
