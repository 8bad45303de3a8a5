package crud

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Common CRUD error types
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrConstraint is wrapped by every error that reports data rejected by
	// the store
	ErrConstraint = errors.New("constraint violation")

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = fmt.Errorf("unique %w", ErrConstraint)

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = fmt.Errorf("foreign key %w", ErrConstraint)

	// ErrCheckViolation is returned when a check constraint is violated
	ErrCheckViolation = fmt.Errorf("check %w", ErrConstraint)

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = fmt.Errorf("not null %w", ErrConstraint)

	// ErrInvalidValue is returned when a value cannot be coerced to its field type
	ErrInvalidValue = fmt.Errorf("invalid value %w", ErrConstraint)

	// ErrUnknownField is returned when setting a name that is not a scalar field
	ErrUnknownField = errors.New("unknown field")

	// ErrUnsaved is returned when deleting a record that has no primary key
	ErrUnsaved = errors.New("record has no primary key")
)

// PostgreSQL SQLSTATE codes for integrity constraint violations
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// ConvertDBError converts driver-specific errors (pgx, lib/pq, go-sqlite3)
// to CRUD errors
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if converted := convertSQLState(pgErr.Code, pgErr.Detail, pgErr.ColumnName); converted != nil {
			return converted
		}
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if converted := convertSQLState(string(pqErr.Code), pqErr.Detail, pqErr.Column); converted != nil {
			return converted
		}
		return err
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %s", ErrNotNullViolation, sqliteErr.Error())
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s", ErrUniqueViolation, sqliteErr.Error())
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, sqliteErr.Error())
		case sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%w: %s", ErrCheckViolation, sqliteErr.Error())
		default:
			return fmt.Errorf("%w: %s", ErrConstraint, sqliteErr.Error())
		}
	}

	return err
}

func convertSQLState(code, detail, column string) error {
	switch code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", ErrUniqueViolation, detail)
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrForeignKeyViolation, detail)
	case pgCheckViolation:
		return fmt.Errorf("%w: %s", ErrCheckViolation, detail)
	case pgNotNullViolation:
		return fmt.Errorf("%w: column %s", ErrNotNullViolation, column)
	}
	return nil
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConstraint returns true if the store rejected the data
func IsConstraint(err error) bool {
	return errors.Is(err, ErrConstraint)
}
