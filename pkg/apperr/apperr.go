// Package apperr defines the error kinds surfaced to tool callers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidAddress      Kind = "invalid_address"
	KindUnsupportedChain    Kind = "unsupported_chain"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindProviderResponse    Kind = "provider_response"
	KindPriceUnavailable    Kind = "price_unavailable"
	KindInternal            Kind = "internal"
)

// Sentinels for errors.Is. Any *Error matches the sentinel of its kind.
var (
	ErrInvalidAddress      = &Error{Kind: KindInvalidAddress}
	ErrUnsupportedChain    = &Error{Kind: KindUnsupportedChain}
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable}
	ErrProviderResponse    = &Error{Kind: KindProviderResponse}
	ErrPriceUnavailable    = &Error{Kind: KindPriceUnavailable}
)

type Error struct {
	Kind    Kind   `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
	Err     error  `json:"-" yaml:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func InvalidAddress(format string, args ...any) *Error {
	return New(KindInvalidAddress, format, args...)
}

func UnsupportedChain(format string, args ...any) *Error {
	return New(KindUnsupportedChain, format, args...)
}

func ProviderUnavailable(err error, format string, args ...any) *Error {
	return Wrap(KindProviderUnavailable, err, format, args...)
}

func ProviderResponse(err error, format string, args ...any) *Error {
	return Wrap(KindProviderResponse, err, format, args...)
}

func PriceUnavailable(err error, format string, args ...any) *Error {
	return Wrap(KindPriceUnavailable, err, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Public converts err into the structured form shown to callers. The wrapped
// cause is dropped; errors outside the taxonomy get a generic message.
func Public(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Message: e.Message}
	}
	return &Error{Kind: KindInternal, Message: "internal error"}
}
