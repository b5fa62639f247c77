// Package apierror defines the error taxonomy shared by the schema-driven
// client core. Input errors are raised before any request leaves the
// process; TransportError and NotFoundError describe failed exchanges.
package apierror

import (
	"errors"
	"fmt"
	"strings"
)

// SchemaError reports a malformed object definition. It is fatal at load time.
type SchemaError struct {
	Object string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Object == "" {
		return fmt.Sprintf("invalid schema: %v", e.Err)
	}
	return fmt.Sprintf("invalid schema %q: %v", e.Object, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// MissingRequiredFieldError is returned when a required field was not supplied.
type MissingRequiredFieldError struct {
	Field string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// UnknownFieldError is returned in strict mode for arguments the schema does not declare.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// DuplicateFieldError is returned when one field is supplied under both its
// logical and its wire name.
type DuplicateFieldError struct {
	Field string
	Alias string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("field %q supplied twice (also as %q)", e.Field, e.Alias)
}

// TypeMismatchError is returned when an argument cannot be bound to its declared type.
type TypeMismatchError struct {
	Field    string
	Expected string
	Value    any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %q: expected %s, got %T", e.Field, e.Expected, e.Value)
}

// MissingIdentifierError is returned when get, update or delete is called without an id.
type MissingIdentifierError struct {
	Object string
	Method string
}

func (e *MissingIdentifierError) Error() string {
	return fmt.Sprintf("%s %s: id is required", e.Object, e.Method)
}

// UnsupportedMethodError is returned when a schema does not support the requested operation.
type UnsupportedMethodError struct {
	Object string
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Object, e.Method)
}

// UnknownResourceError is returned when no schema is registered under a name.
type UnknownResourceError struct {
	Name string
}

func (e *UnknownResourceError) Error() string {
	return fmt.Sprintf("unknown resource %q", e.Name)
}

// UnknownActionError is returned when a schema has no custom action with the given name.
type UnknownActionError struct {
	Object string
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("%s has no action %q", e.Object, e.Action)
}

// TransportError describes a failed exchange: either the request never
// completed (Err is set) or the platform answered with an error status.
type TransportError struct {
	Verb       string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Verb, e.URL, e.Err)
	}
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Verb, e.URL, e.StatusCode, body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NotFoundError is the semantic 404: the addressed resource does not exist.
type NotFoundError struct {
	Verb string
	URL  string
	Body string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: not found", e.Verb, e.URL)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsInputError reports whether err was caused by caller input. Input errors
// are raised before any network call and are never retried.
func IsInputError(err error) bool {
	var (
		missing    *MissingRequiredFieldError
		unknown    *UnknownFieldError
		duplicate  *DuplicateFieldError
		mismatch   *TypeMismatchError
		noID       *MissingIdentifierError
		unsupport  *UnsupportedMethodError
		noResource *UnknownResourceError
		noAction   *UnknownActionError
	)
	return errors.As(err, &missing) ||
		errors.As(err, &unknown) ||
		errors.As(err, &duplicate) ||
		errors.As(err, &mismatch) ||
		errors.As(err, &noID) ||
		errors.As(err, &unsupport) ||
		errors.As(err, &noResource) ||
		errors.As(err, &noAction)
}
