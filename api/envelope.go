// Package api defines the public result envelope every collaborator-facing
// operation returns, plus the error-code translation from internal error
// types to stable wire codes, grounded on the errors.Is dispatch idiom of
// the teacher's services/lending/server/errors.go.
package api

import (
	"errors"

	liminalerrors "liminal/core/errors"
)

// Code is a stable, public error classification independent of Go's
// internal error types.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"
	CodeInvalidTransition Code = "INVALID_STATE_TRANSITION"
	CodeValidationFailure Code = "VALIDATION_FAILURE"
	CodeCollaboratorFailure Code = "COLLABORATOR_FAILURE"
	CodeUnknown           Code = "UNKNOWN"
)

// Error is the public shape of a failed operation.
type Error struct {
	Code        Code   `json:"code"`
	Message     string `json:"message"`
	InvariantID string `json:"invariantId,omitempty"`
}

// Envelope is the uniform response shape every public operation returns:
// exactly one of Data or Err is set.
type Envelope struct {
	OK   bool   `json:"ok"`
	Data any    `json:"data,omitempty"`
	Err  *Error `json:"error,omitempty"`
}

// Ok wraps a successful result.
func Ok(data any) Envelope {
	return Envelope{OK: true, Data: data}
}

// Fail translates err into a failure envelope using ToError.
func Fail(err error) Envelope {
	return Envelope{OK: false, Err: ToError(err)}
}

// ToError classifies err into its public Code, mirroring the teacher's
// toStatus errors.Is dispatch but targeting a domain enum instead of a
// transport status code.
func ToError(err error) *Error {
	if err == nil {
		return nil
	}

	var invariant *liminalerrors.InvariantViolation
	if errors.As(err, &invariant) {
		return &Error{Code: CodeInvariantViolation, Message: invariant.Message, InvariantID: invariant.InvariantID}
	}

	var transition *liminalerrors.InvalidStateTransition
	if errors.As(err, &transition) {
		return &Error{Code: CodeInvalidTransition, Message: transition.Error()}
	}

	var validation *liminalerrors.ValidationFailure
	if errors.As(err, &validation) {
		return &Error{Code: CodeValidationFailure, Message: validation.Error()}
	}

	var collaborator *liminalerrors.CollaboratorFailure
	if errors.As(err, &collaborator) {
		return &Error{Code: CodeCollaboratorFailure, Message: collaborator.Error()}
	}

	if errors.Is(err, liminalerrors.ErrNotFound) {
		return &Error{Code: CodeNotFound, Message: err.Error()}
	}

	return &Error{Code: CodeUnknown, Message: err.Error()}
}
