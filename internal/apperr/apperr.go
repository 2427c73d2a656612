// Package apperr defines the stable error codes surfaced to players, game servers and logs.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a stable, client-visible error identifier.
type Code string

const (
	NoCredentials       Code = "NO_CREDENTIALS"
	TimestampExpired    Code = "TIMESTAMP_EXPIRED"
	SignatureMismatch   Code = "SIGNATURE_MISMATCH"
	ReplayDetected      Code = "REPLAY_DETECTED"
	SessionNotFound     Code = "SESSION_NOT_FOUND"
	SessionExpired      Code = "SESSION_EXPIRED"
	EmptyToken          Code = "EMPTY_TOKEN"
	ParseFailed         Code = "PARSE_FAILED"
	TokenExpired        Code = "TOKEN_EXPIRED"
	WrongTokenType      Code = "WRONG_TOKEN_TYPE"
	MissingFields       Code = "MISSING_FIELDS"
	TicketLookupTimeout Code = "TICKET_LOOKUP_TIMEOUT"

	// Internal covers failures outside the taxonomy (storage down, misconfiguration).
	Internal Code = "INTERNAL"
)

// Error carries a Code, a human readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so errors.Is(err, apperr.New(apperr.ReplayDetected, "")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New returns an *Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf formats the message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to cause.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

// WithDetails attaches machine-readable details (e.g. the list of missing fields).
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or Internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// MessageOf returns the human readable message of the first *Error in err's chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// DetailsOf returns the details of the first *Error in err's chain.
func DetailsOf(err error) any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// IsAuth reports whether code is an authentication failure.
func IsAuth(code Code) bool {
	switch code {
	case NoCredentials, TimestampExpired, SignatureMismatch, ReplayDetected,
		SessionNotFound, SessionExpired, EmptyToken, ParseFailed, TokenExpired,
		WrongTokenType, MissingFields:
		return true
	}
	return false
}
