package exec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Common execution error types
var (
	// ErrNotFound is returned when a single-row query matches nothing
	ErrNotFound = errors.New("record not found")

	// ErrSchemaMismatch is returned when the database does not have a table
	// or column the resource metadata names
	ErrSchemaMismatch = errors.New("resource metadata does not match the database schema")

	// ErrQueryCanceled is returned when the query was canceled or timed out
	ErrQueryCanceled = errors.New("query canceled")

	// ErrInvalidParameter is returned when the database rejects a bound value
	ErrInvalidParameter = errors.New("invalid query parameter")
)

// ConvertDBError converts driver-specific errors to execution errors
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrQueryCanceled, err)
	}

	// PostgreSQL through pgx
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if converted := convertCode(pgErr.Code, pgErr.Message); converted != nil {
			return converted
		}
	}

	// PostgreSQL through lib/pq
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if converted := convertCode(string(pqErr.Code), pqErr.Message); converted != nil {
			return converted
		}
	}

	return err
}

func convertCode(code, message string) error {
	switch code {
	case "42P01", "42703": // undefined_table, undefined_column
		return fmt.Errorf("%w: %s", ErrSchemaMismatch, message)
	case "57014": // query_canceled
		return fmt.Errorf("%w: %s", ErrQueryCanceled, message)
	case "22P02", "22007", "22008": // invalid_text_representation, invalid_datetime_format, datetime_field_overflow
		return fmt.Errorf("%w: %s", ErrInvalidParameter, message)
	}
	return nil
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsSchemaMismatch returns true if the error is ErrSchemaMismatch
func IsSchemaMismatch(err error) bool {
	return errors.Is(err, ErrSchemaMismatch)
}
