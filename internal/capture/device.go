// Package capture turns a push-to-talk gesture and a speech recognizer into
// a start/stop session that produces transcript text.
package capture

import (
	"context"
	"errors"
	"strings"

	"github.com/lexiqai/interpreter-gateway/internal/language"
)

var (
	// ErrUnavailable means the recognizer capability is absent.
	ErrUnavailable = errors.New("speech recognition is not supported")

	// ErrRecognition wraps a mid-session recognizer fault.
	ErrRecognition = errors.New("speech recognition error")
)

// Result is one recognition segment, either final or interim.
type Result struct {
	Transcript string `json:"transcript"`
	Final      bool   `json:"final"`
}

// Update carries the recognizer's full cumulative hypothesis for the session,
// or a terminal error.
type Update struct {
	Results []Result
	Err     error
}

// Text joins every segment in recognition order.
func (u Update) Text() string {
	var b strings.Builder
	for _, r := range u.Results {
		b.WriteString(r.Transcript)
	}
	return b.String()
}

// Device is a speech recognizer.
//
// Start begins listening in locale and returns the update stream. The device
// closes the stream after Stop once pending results have been delivered.
// Start returns an error wrapping ErrUnavailable when the capability is absent.
// Stop must be safe to call at any time, any number of times.
type Device interface {
	Start(ctx context.Context, locale language.Source) (<-chan Update, error)
	Stop() error
}
