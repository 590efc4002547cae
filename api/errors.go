// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for the OpenFlow driver.

package api

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the driver.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeTransportClosed
	ErrCodeFraming
	ErrCodeShortMessage
	ErrCodeMalformedDiscovery
	ErrCodeWriteAbandoned
	ErrCodePoolCorrupted
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeTransportClosed:
		return "transport_closed"
	case ErrCodeFraming:
		return "framing"
	case ErrCodeShortMessage:
		return "short_message"
	case ErrCodeMalformedDiscovery:
		return "malformed_discovery"
	case ErrCodeWriteAbandoned:
		return "write_abandoned"
	case ErrCodePoolCorrupted:
		return "pool_corrupted"
	default:
		return "internal"
	}
}

// Sentinel errors, one per code. Structured errors match them with errors.Is.
var (
	ErrInvalidArgument    = NewError(ErrCodeInvalidArgument, "invalid argument")
	ErrTransportClosed    = NewError(ErrCodeTransportClosed, "transport is closed")
	ErrFraming            = NewError(ErrCodeFraming, "invalid frame length")
	ErrShortMessage       = NewError(ErrCodeShortMessage, "message shorter than its fixed layout")
	ErrMalformedDiscovery = NewError(ErrCodeMalformedDiscovery, "malformed discovery payload")
	ErrWriteAbandoned     = NewError(ErrCodeWriteAbandoned, "write abandoned after retry limit")
	ErrPoolCorrupted      = NewError(ErrCodePoolCorrupted, "scheduling pool index out of range")
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Is reports whether target carries the same code, so that a contextualized
// error still matches its sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithContext returns a copy of the error with an added context entry.
// Sentinels are shared, so they are never mutated in place.
func (e *Error) WithContext(key string, value any) *Error {
	ctx := make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	return &Error{Code: e.Code, Message: e.Message, Context: ctx}
}

// CodeOf extracts the code of a structured error, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
