package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownProperty is returned when a property path names neither a field
	// nor an association of the resource it is resolved against
	ErrUnknownProperty = errors.New("unknown property")

	// ErrUnknownResource is returned when a resource is not registered
	ErrUnknownResource = errors.New("unknown resource")

	// ErrAmbiguousProperty is returned when a field is declared by more than
	// one extension of the resource it is resolved against
	ErrAmbiguousProperty = errors.New("ambiguous property")
)

// UnknownPropertyError describes which segment of a property path failed to resolve
type UnknownPropertyError struct {
	Resource string
	Path     string
	Segment  string
}

// Error implements the error interface
func (e *UnknownPropertyError) Error() string {
	if e.Segment == e.Path {
		return fmt.Sprintf("unknown property %q on %s", e.Path, e.Resource)
	}
	return fmt.Sprintf("unknown property %q on %s (in path %q)", e.Segment, e.Resource, e.Path)
}

// Unwrap allows errors.Is(err, ErrUnknownProperty)
func (e *UnknownPropertyError) Unwrap() error {
	return ErrUnknownProperty
}

// IsUnknownProperty returns true if the error is an unknown property error
func IsUnknownProperty(err error) bool {
	return errors.Is(err, ErrUnknownProperty)
}

// AmbiguousPropertyError names the extensions that all declare a field
type AmbiguousPropertyError struct {
	Resource   string
	Path       string
	Segment    string
	Candidates []string
}

// Error implements the error interface
func (e *AmbiguousPropertyError) Error() string {
	qualified := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		qualified[i] = c + "." + e.Segment
	}
	return fmt.Sprintf("property %q on %s is ambiguous, use one of %s",
		e.Segment, e.Resource, strings.Join(qualified, ", "))
}

// Unwrap allows errors.Is with both ErrAmbiguousProperty and ErrUnknownProperty
func (e *AmbiguousPropertyError) Unwrap() []error {
	return []error{ErrAmbiguousProperty, ErrUnknownProperty}
}
