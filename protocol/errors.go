package protocol

import (
	"errors"
	"fmt"
)

// Code classifies an Error. Codes travel on the wire as strings.
type Code string

const (
	CodeInit                Code = "init"
	CodeProtocol            Code = "protocol"
	CodeScript              Code = "script"
	CodeAborted             Code = "aborted"
	CodeWrongType           Code = "wrong_type"
	CodeArityOrTypeMismatch Code = "arity_or_type_mismatch"
	CodeNotFound            Code = "not_found"
	CodeInvalidState        Code = "invalid_state"
	CodeUnrepresentable     Code = "unrepresentable"
	CodeDispatch            Code = "dispatch"
)

// Sentinels for errors.Is. They match any *Error with the same Code.
var (
	ErrInit                = &Error{Code: CodeInit}
	ErrProtocol            = &Error{Code: CodeProtocol}
	ErrScript              = &Error{Code: CodeScript}
	ErrAborted             = &Error{Code: CodeAborted}
	ErrWrongType           = &Error{Code: CodeWrongType}
	ErrArityOrTypeMismatch = &Error{Code: CodeArityOrTypeMismatch}
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrInvalidState        = &Error{Code: CodeInvalidState}
	ErrUnrepresentable     = &Error{Code: CodeUnrepresentable}
	ErrDispatch            = &Error{Code: CodeDispatch}
)

// Error is the typed failure that crosses the boundary in responses.
type Error struct {
	Code    Code   `codec:"c" json:"c"`
	Message string `codec:"m,omitempty" json:"m,omitempty"`
	Cause   *Error `codec:"x,omitempty" json:"x,omitempty"`
}

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += " (" + e.Cause.Error() + ")"
	}
	return msg
}

// Unwrap exposes the cause so errors.Is sees both codes of a ScriptError{Aborted}.
func (e *Error) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// Is matches by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithCause returns a copy of e with cause attached.
func (e *Error) WithCause(cause *Error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

// AsError converts any error into an *Error, keeping it when it already is one.
// Unknown errors are classified under fallback.
func AsError(err error, fallback Code) *Error {
	if err == nil {
		return nil
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return &Error{Code: fallback, Message: err.Error()}
}

// Validate checks that a wire error carries a known code.
func (e *Error) Validate() error {
	switch e.Code {
	case CodeInit, CodeProtocol, CodeScript, CodeAborted, CodeWrongType,
		CodeArityOrTypeMismatch, CodeNotFound, CodeInvalidState, CodeUnrepresentable, CodeDispatch:
	default:
		return Errorf(CodeProtocol, "unknown error code %q", e.Code)
	}
	if e.Cause != nil {
		return e.Cause.Validate()
	}
	return nil
}
