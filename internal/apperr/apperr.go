// Package apperr classifies failures into the kinds callers act on.
package apperr

import (
	"context"
	"errors"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindAuthentication
	KindAuthorization
	KindValidation
	KindNotFound
	KindConflict
	KindRateLimited
	KindTransport
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is a classified local failure. Values are compared by identity, so
// package-level sentinels built with New work with errors.Is.
type Error struct {
	kind    Kind
	code    string
	message string
}

func New(kind Kind, code, message string) *Error {
	return &Error{kind: kind, code: code, message: message}
}

func (e *Error) Error() string { return e.message }

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) ErrorCode() string { return e.code }

type kinded interface {
	Kind() Kind
}

// KindOf walks the error chain and returns the first classification found.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransport
	}
	return KindUnknown
}

// CodeOf returns the machine-readable code of the first coded error in the
// chain, or "".
func CodeOf(err error) string {
	var c interface{ ErrorCode() string }
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return ""
}
