// Package vserr defines the typed error kinds carried in every broker
// response.
package vserr

import (
	"errors"
	"fmt"
)

// Code identifies the kind of failure a broker operation encountered.
type Code int

const (
	IncorrectValue Code = iota + 1
	Unimplemented
	ResourceBusy
	BadResource
	BadConfiguration
	ResourceUnspecified
	InternalError
	UserError
	BadProtocol
	NotConnected
	ResourceUnavailable
	SocketError
	BadOperation
	AccessDenied
)

var names = map[Code]string{
	IncorrectValue:      "INCORRECT_VALUE",
	Unimplemented:       "UNIMPLEMENTED",
	ResourceBusy:        "RESOURCE_BUSY",
	BadResource:         "BAD_RESOURCE",
	BadConfiguration:    "BAD_CONFIGURATION",
	ResourceUnspecified: "RESOURCE_UNSPECIFIED",
	InternalError:       "INTERNAL_ERROR",
	UserError:           "USER_ERROR",
	BadProtocol:         "BAD_PROTOCOL",
	NotConnected:        "NOT_CONNECTED",
	ResourceUnavailable: "RESOURCE_UNAVAILABLE",
	SocketError:         "SOCKET_ERROR",
	BadOperation:        "BAD_OPERATION",
	AccessDenied:        "ACCESS_DENIED",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "UNKNOWN_ERROR"
}

// Error is a VizStack broker error: a status code plus a human message.
// It is what every failing response's <status>/<message> pair is built from.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// As extracts a *Error from err, if any is present in its chain.
func As(err error) (*Error, bool) {
	var ve *Error
	ok := errors.As(err, &ve)
	return ve, ok
}

// CodeOf returns the Code carried by err, or InternalError if err is not
// a *Error (an unexpected/unclassified failure).
func CodeOf(err error) Code {
	if ve, ok := As(err); ok {
		return ve.Code
	}
	return InternalError
}
