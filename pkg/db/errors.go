package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// UniqueConstraint identifies one unique index the way each driver reports a
// violation of it: postgres by constraint name, sqlite by "table.column".
type UniqueConstraint struct {
	Name    string
	Columns string
}

// IsUniqueViolation reports whether err is any unique constraint violation
// from postgres or sqlite.
func IsUniqueViolation(err error) bool {
	return IsUniqueViolationOn(err, UniqueConstraint{})
}

// IsUniqueViolationOn reports whether err violates the given constraint. A zero
// constraint matches any unique violation.
func IsUniqueViolationOn(err error, c UniqueConstraint) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return c.Name == "" || pgErr.ConstraintName == c.Name
	}

	msg := err.Error()
	if strings.Contains(msg, "duplicate key value") {
		return c.Name == "" || strings.Contains(msg, `"`+c.Name+`"`)
	}
	const sqlitePrefix = "UNIQUE constraint failed: "
	idx := strings.Index(msg, sqlitePrefix)
	if idx < 0 {
		return false
	}
	if c.Columns == "" {
		return c.Name == ""
	}
	return strings.TrimSpace(msg[idx+len(sqlitePrefix):]) == c.Columns
}

// IsNotFound reports whether err is gorm's record-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
