// Package translation defines the translation backend contract and its
// failure taxonomy.
package translation

import (
	"context"
	"errors"

	"github.com/lexiqai/interpreter-gateway/internal/language"
)

// Kind classifies a backend failure.
type Kind string

const (
	// KindUnreachable covers transport errors, timeouts and an open breaker.
	KindUnreachable Kind = "backend_unreachable"
	// KindRejected is a non-2xx response.
	KindRejected Kind = "backend_rejected"
	// KindMalformed is a 2xx response without a usable translation.
	KindMalformed Kind = "malformed_response"
)

// Error is a classified backend failure. Message is safe to show to users.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Unclassified errors count as unreachable.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnreachable
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}

// Request is one immutable translation submission. ID is assigned by the
// coordinator and never sent to the backend.
type Request struct {
	ID        uint64
	Text      string
	Languages language.Pair
}

// Backend translates text. Implementations must honor ctx cancellation.
type Backend interface {
	Translate(ctx context.Context, req Request) (string, error)
}
