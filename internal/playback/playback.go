// Package playback defines the speech playback device contract.
package playback

import (
	"context"
	"errors"

	"github.com/lexiqai/interpreter-gateway/internal/language"
)

// ErrUnsupported means the device cannot synthesize speech.
var ErrUnsupported = errors.New("text-to-speech is not supported")

// Device reads text aloud in lang. It returns an error wrapping
// ErrUnsupported when the capability is absent.
type Device interface {
	Speak(ctx context.Context, text string, lang language.Target) error
}

// DeviceFunc adapts a function to Device.
type DeviceFunc func(ctx context.Context, text string, lang language.Target) error

// Speak implements Device.
func (f DeviceFunc) Speak(ctx context.Context, text string, lang language.Target) error {
	return f(ctx, text, lang)
}

// Unsupported is a Device for clients without speech synthesis.
var Unsupported Device = DeviceFunc(func(context.Context, string, language.Target) error {
	return ErrUnsupported
})
