package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsDuplicateKeyErr reports whether err is a unique-constraint violation.
// With TranslateError enabled gorm normalizes these to ErrDuplicatedKey, but
// the raw-SQL Exec paths surface the driver error directly, so the dialect
// messages are matched as well.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "duplicate key value violates unique constraint"):
		return true // postgres, code 23505
	case strings.Contains(msg, "Error 1062"):
		return true // mysql
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return true // sqlite
	}
	return false
}
