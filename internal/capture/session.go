package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interpreter-gateway/internal/language"
	"github.com/lexiqai/interpreter-gateway/internal/observability"
)

// Hooks receive session events. They are called from the session's reader
// goroutine, in recognizer order, without any session lock held.
type Hooks struct {
	// OnText receives the replaced transcript after every update.
	OnText func(text string)
	// OnEnd fires once when the recognizer stream ends. err wraps
	// ErrRecognition when the session ended on a recognizer fault.
	OnEnd func(err error)
}

// Session wraps a Device into a push-to-talk capture session.
type Session struct {
	device  Device
	hooks   Hooks
	logger  zerolog.Logger
	metrics *observability.Metrics

	mu          sync.Mutex
	active      bool
	unavailable error
	text        string
	gen         uint64
	done        chan struct{}
}

// NewSession creates an idle session over device.
func NewSession(device Device, hooks Hooks, logger zerolog.Logger, metrics *observability.Metrics) *Session {
	return &Session{
		device:  device,
		hooks:   hooks,
		logger:  logger.With().Str("component", "capture").Logger(),
		metrics: metrics,
	}
}

// Start clears the transcript and begins listening in locale.
//
// A device that reported ErrUnavailable is not started again; the cached error
// is returned. Starting an active session is a no-op.
func (s *Session) Start(ctx context.Context, locale language.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unavailable != nil {
		return s.unavailable
	}
	if s.active {
		return nil
	}

	s.text = ""
	updates, err := s.device.Start(ctx, locale)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			s.unavailable = err
			s.metrics.RecordCapture("unavailable")
			s.logger.Warn().Err(err).Msg("Speech capture unavailable")
			return err
		}
		s.metrics.RecordCapture("error")
		s.logger.Error().Err(err).Str("locale", string(locale)).Msg("Failed to start speech capture")
		return fmt.Errorf("%w: %v", ErrRecognition, err)
	}

	s.active = true
	s.gen++
	s.done = make(chan struct{})
	s.metrics.RecordCapture("started")
	s.logger.Debug().Str("locale", string(locale)).Msg("Capture started")

	go s.consume(s.gen, updates, s.done)
	return nil
}

func (s *Session) consume(gen uint64, updates <-chan Update, done chan struct{}) {
	defer close(done)

	var endErr error
	for upd := range updates {
		if upd.Err != nil {
			endErr = fmt.Errorf("%w: %v", ErrRecognition, upd.Err)
			s.logger.Warn().Err(upd.Err).Msg("Speech recognition error, ending capture")
			s.metrics.RecordError("recognition", "capture")
			if err := s.device.Stop(); err != nil {
				s.logger.Debug().Err(err).Msg("Recognizer stop after error")
			}
			// Drain so the device can finish closing the stream.
			for range updates {
			}
			break
		}

		text := upd.Text()
		s.mu.Lock()
		current := gen == s.gen
		if current {
			s.text = text
		}
		s.mu.Unlock()

		if current && s.hooks.OnText != nil {
			s.hooks.OnText(text)
		}
	}

	s.mu.Lock()
	current := gen == s.gen
	if current {
		s.active = false
	}
	s.mu.Unlock()

	if current {
		s.logger.Debug().Err(endErr).Msg("Capture ended")
		if s.hooks.OnEnd != nil {
			s.hooks.OnEnd(endErr)
		}
	}
}

// Stop ends listening. Stopping an idle or never-started session is a no-op.
// Results the recognizer flushes after Stop are still applied.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.mu.Unlock()

	if err := s.device.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("Recognizer stop failed")
	}
	s.logger.Debug().Msg("Capture stopped")
}

// Close stops the session and waits for the reader goroutine to exit.
func (s *Session) Close() {
	s.Stop()

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Active reports whether the session is listening.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Text returns the current transcript.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Reset clears the transcript and ignores further updates from the current
// recognizer stream.
func (s *Session) Reset() {
	s.mu.Lock()
	s.text = ""
	s.gen++
	active := s.active
	s.active = false
	s.mu.Unlock()

	if active {
		if err := s.device.Stop(); err != nil {
			s.logger.Warn().Err(err).Msg("Recognizer stop failed")
		}
	}
}
