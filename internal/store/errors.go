package store

import (
	"errors"
	"fmt"
)

// Kind names a handler table.
type Kind string

const (
	KindMutation Kind = "mutation"
	KindAction   Kind = "action"
)

// UnknownTypeError is returned by Commit and Dispatch for a type with no
// registered handler. The call is a no-op.
type UnknownTypeError struct {
	Kind Kind
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown %s type: %s", e.Kind, e.Type)
}

// NewUnknownTypeError creates an UnknownTypeError.
func NewUnknownTypeError(kind Kind, typ string) *UnknownTypeError {
	return &UnknownTypeError{Kind: kind, Type: typ}
}

// IsUnknownType returns true if err is an UnknownTypeError.
// Uses errors.As to handle wrapped errors.
func IsUnknownType(err error) bool {
	var ue *UnknownTypeError
	return errors.As(err, &ue)
}

// AssertionError reports misuse of the store API. It is raised with panic,
// never returned.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return "store: " + e.Message
}

// ModuleError reports a bad RegisterModule or UnregisterModule call.
type ModuleError struct {
	Path    []string
	Message string
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %v: %s", e.Path, e.Message)
}
