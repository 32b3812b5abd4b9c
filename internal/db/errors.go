package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Storage sentinels. Repositories return them wrapped so callers match with
// errors.Is and never inspect SQLSTATE codes themselves.
var (
	ErrNotFound            = errors.New("record not found")
	ErrDuplicateKey        = errors.New("duplicate key violation")
	ErrForeignKeyViolation = errors.New("foreign key violation")
)

// SQLSTATE classes mapped onto sentinels.
var sqlStateErrors = map[string]error{
	"23505": ErrDuplicateKey,
	"23503": ErrForeignKeyViolation,
}

// WrapError annotates err with op. No-rows becomes ErrNotFound; unique and
// foreign key violations become their sentinel while the *pgconn.PgError
// stays reachable through errors.As.
func WrapError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if sentinel, ok := sqlStateErrors[pgErr.Code]; ok {
		return fmt.Errorf("%s: %w on %s: %w", op, sentinel, pgErr.ConstraintName, err)
	}
	return fmt.Errorf("%s: database error [%s]: %w", op, pgErr.Code, err)
}

// Constraint returns the name of the constraint err violated, or "".
func Constraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsDuplicateKey reports whether err wraps ErrDuplicateKey.
func IsDuplicateKey(err error) bool { return errors.Is(err, ErrDuplicateKey) }

// IsForeignKeyViolation reports whether err wraps ErrForeignKeyViolation.
func IsForeignKeyViolation(err error) bool { return errors.Is(err, ErrForeignKeyViolation) }
