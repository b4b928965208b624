// Package actions is the error boundary between transports and the domain:
// every operation resolves the caller, authorizes, validates, performs its
// side effects and reports a Result.
package actions

import (
	"encoding/json"
	"errors"
)

// Status is the outcome tag of a Result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ErrorKind classifies failures for transports and callers.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindProvider     ErrorKind = "provider"
	KindPersistence  ErrorKind = "persistence"
	KindInternal     ErrorKind = "internal"
)

// Error is a failed action. Message is safe to show to callers; Cause is only
// ever logged.
type Error struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is an action Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var actionErr *Error
	return errors.As(err, &actionErr) && actionErr.Kind == kind
}

func failure(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// None is the payload of actions that succeed without data.
type None struct{}

// Result is either a success carrying a message and data, or a failure
// carrying an Error. The zero value is not meaningful; use Success or Failure.
type Result[T any] struct {
	message string
	data    T
	err     *Error
}

// Success builds a successful result.
func Success[T any](message string, data T) Result[T] {
	return Result[T]{message: message, data: data}
}

// Failure builds a failed result.
func Failure[T any](err *Error) Result[T] {
	if err == nil {
		err = failure(KindInternal, "unexpected failure", nil)
	}
	return Result[T]{message: err.Message, err: err}
}

// OK reports whether the action succeeded.
func (r Result[T]) OK() bool {
	return r.err == nil
}

// Status returns the envelope status.
func (r Result[T]) Status() Status {
	if r.err != nil {
		return StatusFailed
	}
	return StatusSuccess
}

// Message is the human readable outcome.
func (r Result[T]) Message() string {
	return r.message
}

// Data is the success payload; it is the zero value for failures.
func (r Result[T]) Data() T {
	return r.data
}

// Err is the failure, or nil on success.
func (r Result[T]) Err() *Error {
	return r.err
}

// Match calls exactly one of the handlers.
func (r Result[T]) Match(onSuccess func(message string, data T), onFailure func(err *Error)) {
	if r.err != nil {
		onFailure(r.err)
		return
	}
	onSuccess(r.message, r.data)
}

// Fold maps a result to a single value, requiring both branches to be handled.
func Fold[T, R any](r Result[T], onSuccess func(message string, data T) R, onFailure func(err *Error) R) R {
	if r.err != nil {
		return onFailure(r.err)
	}
	return onSuccess(r.message, r.data)
}

type envelope struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// MarshalJSON renders the {status, message, data} envelope. Causes are never
// serialized.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	env := envelope{Status: r.Status(), Message: r.message}
	if r.err == nil {
		if _, none := any(r.data).(None); !none {
			env.Data = r.data
		}
	}
	return json.Marshal(env)
}
