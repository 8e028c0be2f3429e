package query

import (
	"errors"
	"fmt"
)

var (
	// ErrAmbiguousJoin is returned when a join-reuse lookup finds more than
	// one candidate. It indicates a bug in a rule, not bad input.
	ErrAmbiguousJoin = errors.New("ambiguous join")

	// ErrUnknownAlias is returned when a join is requested from an alias the context never created
	ErrUnknownAlias = errors.New("unknown alias")
)

// AmbiguousJoinError reports the owner alias and association whose lookup was ambiguous
type AmbiguousJoinError struct {
	OwnerAlias  string
	Association string
	Count       int
}

// Error implements the error interface
func (e *AmbiguousJoinError) Error() string {
	return fmt.Sprintf("ambiguous join: %d joins from %s via %s", e.Count, e.OwnerAlias, e.Association)
}

// Unwrap allows errors.Is(err, ErrAmbiguousJoin)
func (e *AmbiguousJoinError) Unwrap() error {
	return ErrAmbiguousJoin
}

// IsAmbiguousJoin returns true if the error is an ambiguous join error
func IsAmbiguousJoin(err error) bool {
	return errors.Is(err, ErrAmbiguousJoin)
}
