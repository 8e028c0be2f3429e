package filter

import (
	"errors"
	"fmt"

	"github.com/conduit-lang/criteria/internal/orm/criteria"
	"github.com/conduit-lang/criteria/internal/orm/query"
	"github.com/conduit-lang/criteria/internal/orm/schema"
)

var (
	// ErrMalformedValue is returned when a rule recognizes a property but
	// its value has an invalid shape
	ErrMalformedValue = errors.New("malformed criteria value")

	// ErrUnknownProperty is re-exported from schema
	ErrUnknownProperty = schema.ErrUnknownProperty

	// ErrUnknownResource is re-exported from schema
	ErrUnknownResource = schema.ErrUnknownResource

	// ErrAmbiguousProperty is re-exported from schema
	ErrAmbiguousProperty = schema.ErrAmbiguousProperty

	// ErrAmbiguousJoin is re-exported from query
	ErrAmbiguousJoin = query.ErrAmbiguousJoin
)

// MalformedValueError describes a value a rule could not interpret
type MalformedValueError struct {
	Property string
	Value    criteria.Value
	Reason   string
	Err      error
}

// Error implements the error interface
func (e *MalformedValueError) Error() string {
	msg := fmt.Sprintf("malformed value %s for %q: %s", e.Value, e.Property, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap allows errors.Is(err, ErrMalformedValue) and exposes the cause
func (e *MalformedValueError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedValue, e.Err}
	}
	return []error{ErrMalformedValue}
}

func malformed(crit *Criterion, reason string) *MalformedValueError {
	return &MalformedValueError{Property: crit.Property, Value: crit.Value, Reason: reason}
}

// IsMalformedValue returns true if the error is a malformed value error
func IsMalformedValue(err error) bool {
	return errors.Is(err, ErrMalformedValue)
}

// IsUnknownProperty returns true if the error is an unknown property error
func IsUnknownProperty(err error) bool {
	return errors.Is(err, ErrUnknownProperty)
}

// IsClientError reports whether err was caused by the criteria rather than
// by the metadata or a rule bug. Client errors map to 400-class responses.
func IsClientError(err error) bool {
	return IsMalformedValue(err) || IsUnknownProperty(err) || errors.Is(err, criteria.ErrMalformedKey)
}
