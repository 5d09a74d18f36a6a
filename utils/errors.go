package utils

import (
	"errors"
	"fmt"
)

// Error taxonomy for the call pipeline. Handlers decide per error kind
// whether to propagate, downgrade to a warning, or swallow-and-log.

// ValidationError covers malformed tool arguments and malformed webhook
// or request fields.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError covers missing Calls, companies and bankers.
type NotFoundError struct {
	Resource string
	ID       interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

func NewNotFoundError(resource string, id interface{}) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ExternalApiError covers non-2xx responses from the voice, LLM,
// calendar and lead providers.
type ExternalApiError struct {
	Service string
	Status  int
	Msg     string
}

func (e *ExternalApiError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Msg)
}

// PersistenceError wraps database write failures.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Kind checks used at decision points in handlers.

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsExternalApi(err error) bool {
	var ea *ExternalApiError
	return errors.As(err, &ea)
}
