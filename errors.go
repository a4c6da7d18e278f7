package uia

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNotDispatchable is the error a native pattern instance reports
// when it cannot dispatch a method call, for example because the
// provider never wired up the capability. Native [Instance]
// implementations should return an error that matches it with
// [errors.Is].
var ErrNotDispatchable = errors.New("method not dispatchable")

// TypeError is the error returned when a value or type cannot be
// represented by one of the automation semantic types, or when a
// value does not have the type the schema requires.
type TypeError struct {
	// Type is the name of the type that caused the error.
	Type string
	// Reason is an explanation of what went wrong.
	Reason error
}

func (e TypeError) Error() string {
	return fmt.Sprintf("automation cannot represent %s: %s", e.Type, e.Reason)
}

func (e TypeError) Unwrap() error {
	return e.Reason
}

func typeErr(t reflect.Type, reason string, args ...any) error {
	ts := "<nil>"
	if t != nil {
		ts = t.String()
	}
	return TypeError{ts, fmt.Errorf(reason, args...)}
}

// SchemaError is the error returned when a [Pattern] declaration
// cannot be turned into a [Descriptor]: missing identifiers,
// unsupported types, or provider and consumer interfaces that don't
// agree.
//
// A SchemaError is fatal to the pattern. Describing the same pattern
// again produces the same error.
type SchemaError struct {
	// Pattern is the name of the pattern being described.
	Pattern string
	// Member is the property, method or parameter at fault, if any.
	Member string
	// Reason is an explanation of the schema problem.
	Reason error
}

func (e SchemaError) Error() string {
	if e.Member == "" {
		return fmt.Sprintf("invalid pattern %s: %s", e.Pattern, e.Reason)
	}
	return fmt.Sprintf("invalid pattern %s: %s: %s", e.Pattern, e.Member, e.Reason)
}

func (e SchemaError) Unwrap() error {
	return e.Reason
}

// NotSupportedError is the error returned when a [Client] or
// [Dispatcher] is asked for a member that the pattern does not
// have. It indicates a mismatch between the caller and the pattern's
// interfaces.
type NotSupportedError struct {
	Pattern string
	Member  string
}

func (e NotSupportedError) Error() string {
	return fmt.Sprintf("pattern %s has no member %s", e.Pattern, e.Member)
}

// UnsupportedOperationError is the error returned when the native
// side reports that it cannot dispatch a call.
type UnsupportedOperationError struct {
	Pattern string
	Member  string
	// Err is the error reported by the native layer.
	Err error
}

func (e UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s.%s is not supported by the pattern instance: %v", e.Pattern, e.Member, e.Err)
}

func (e UnsupportedOperationError) Unwrap() error {
	return e.Err
}
