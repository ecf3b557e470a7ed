package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/lexiqai/interpreter-gateway/internal/language"
)

const remoteBuffer = 32

// Remote is a Device whose recognizer runs on the connected client. The
// interface layer feeds it with the client's recognition results.
type Remote struct {
	mu        sync.Mutex
	supported bool
	locale    language.Source
	updates   chan Update
}

// NewRemote creates a remote recognizer. Until the client reports otherwise
// the capability is assumed present.
func NewRemote() *Remote {
	return &Remote{supported: true}
}

// SetSupported records whether the client has a speech recognizer.
func (r *Remote) SetSupported(supported bool) {
	r.mu.Lock()
	r.supported = supported
	r.mu.Unlock()
}

// Start implements Device.
func (r *Remote) Start(_ context.Context, locale language.Source) (<-chan Update, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.supported {
		return nil, ErrUnavailable
	}
	if r.updates != nil {
		close(r.updates)
	}
	r.locale = locale
	r.updates = make(chan Update, remoteBuffer)
	return r.updates, nil
}

// Locale returns the locale of the current or last session.
func (r *Remote) Locale() language.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locale
}

// Push delivers the client's cumulative results. It reports false when no
// session is listening and the results were dropped.
func (r *Remote) Push(results []Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updates == nil {
		return false
	}
	r.updates <- Update{Results: append([]Result(nil), results...)}
	return true
}

// Fail ends the current session with a recognizer fault reported by the client.
func (r *Remote) Fail(reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updates == nil {
		return false
	}
	r.updates <- Update{Err: fmt.Errorf("client recognizer: %s", reason)}
	close(r.updates)
	r.updates = nil
	return true
}

// Stop implements Device.
func (r *Remote) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updates != nil {
		close(r.updates)
		r.updates = nil
	}
	return nil
}
