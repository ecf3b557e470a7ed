// Package pipeline wires push-to-talk capture, debouncing, translation,
// the conversation log and playback around one shared state store.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interpreter-gateway/internal/capture"
	"github.com/lexiqai/interpreter-gateway/internal/conversation"
	"github.com/lexiqai/interpreter-gateway/internal/debounce"
	"github.com/lexiqai/interpreter-gateway/internal/language"
	"github.com/lexiqai/interpreter-gateway/internal/observability"
	"github.com/lexiqai/interpreter-gateway/internal/playback"
	"github.com/lexiqai/interpreter-gateway/internal/translation"
)

const (
	defaultDebounce       = 500 * time.Millisecond
	defaultBackendTimeout = 20 * time.Second
)

// Options tune a pipeline. Zero values take defaults.
type Options struct {
	Languages          language.Pair
	Debounce           time.Duration
	MinTranscriptRunes int
	BackendTimeout     time.Duration
	Now                func() time.Time
	Logger             zerolog.Logger
	Metrics            *observability.Metrics
}

// Pipeline is one speaker's interpreter session.
type Pipeline struct {
	store       *Store
	capture     *capture.Session
	scheduler   *debounce.Scheduler
	coordinator *Coordinator
	trigger     *Trigger
	logger      zerolog.Logger
	metrics     *observability.Metrics

	closeOnce sync.Once
}

// New assembles a pipeline over the three external devices.
func New(recognizer capture.Device, backend translation.Backend, speaker playback.Device, opts Options) (*Pipeline, error) {
	if err := opts.Languages.Validate(); err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.BackendTimeout <= 0 {
		opts.BackendTimeout = defaultBackendTimeout
	}

	store := NewStore(opts.Languages)
	p := &Pipeline{
		store:   store,
		logger:  opts.Logger.With().Str("component", "pipeline").Logger(),
		metrics: opts.Metrics,
	}
	p.coordinator = NewCoordinator(store, backend, opts.BackendTimeout, opts.Now, opts.Logger, opts.Metrics)
	p.trigger = NewTrigger(store, speaker, opts.Logger, opts.Metrics)
	p.scheduler = debounce.NewScheduler(opts.Debounce, opts.MinTranscriptRunes, p.submit)
	p.capture = capture.NewSession(recognizer, capture.Hooks{
		OnText: p.onText,
		OnEnd:  p.onCaptureEnd,
	}, opts.Logger, opts.Metrics)
	return p, nil
}

func (p *Pipeline) onText(text string) {
	p.store.mutate(func(st *State, _ *conversation.Log) {
		st.Input = text
	})
	p.scheduler.Schedule(text)
}

func (p *Pipeline) onCaptureEnd(error) {
	p.store.mutate(func(st *State, _ *conversation.Log) {
		st.Capturing = false
	})
}

// submit runs when the debounce period elapses. Text that is no longer the
// current input (cleared or replaced by a language change) is dropped.
func (p *Pipeline) submit(text string) {
	p.coordinator.SubmitInput(text)
}

// Press starts a capture session in the current source locale.
func (p *Pipeline) Press(ctx context.Context) error {
	st := p.store.State()
	if st.Capturing {
		return nil
	}

	p.store.mutate(func(st *State, _ *conversation.Log) {
		st.Capturing = true
		st.Err = nil
		st.Input = ""
	})

	err := p.capture.Start(ctx, st.Languages.Source)
	if err == nil {
		return nil
	}

	failure := &Failure{Kind: FailureRecognition, Message: "Speech recognition failed to start"}
	if errors.Is(err, capture.ErrUnavailable) {
		failure = &Failure{Kind: FailureCaptureUnavailable, Message: "Speech recognition is not supported in your browser"}
	}
	p.store.mutate(func(st *State, _ *conversation.Log) {
		st.Capturing = false
		st.Err = failure
	})
	return err
}

// Release ends the capture session when the push-to-talk control is let go.
func (p *Pipeline) Release() {
	p.stopCapture("release")
}

// Leave ends the capture session when the pointer leaves the control.
func (p *Pipeline) Leave() {
	p.stopCapture("leave")
}

func (p *Pipeline) stopCapture(reason string) {
	p.capture.Stop()
	p.store.mutate(func(st *State, _ *conversation.Log) {
		if st.Capturing {
			p.logger.Debug().Str("reason", reason).Msg("Push-to-talk ended")
		}
		st.Capturing = false
	})
}

// Speak reads the current translation aloud.
func (p *Pipeline) Speak(ctx context.Context) error {
	return p.trigger.Speak(ctx)
}

// Clear resets the session: empties the log and the input, translation and
// error displays, cancels pending debounce and discards in-flight results.
// Clearing twice leaves the same state as clearing once.
func (p *Pipeline) Clear() {
	p.scheduler.Cancel()
	p.capture.Reset()
	p.store.mutate(func(st *State, log *conversation.Log) {
		log.Clear()
		st.Capturing = false
		st.Translating = false
		st.Err = nil
		st.Input = ""
		st.Translation = ""
		p.store.invalidate()
	})
	p.logger.Info().Msg("Conversation cleared")
}

// SetLanguages switches the language pair. Input and translation are
// cleared and in-flight results discarded; history and the error stay.
// An unsupported code is surfaced as the current error.
func (p *Pipeline) SetLanguages(pair language.Pair) error {
	if err := pair.Validate(); err != nil {
		p.store.mutate(func(st *State, _ *conversation.Log) {
			st.Err = &Failure{Kind: FailureUnsupportedLanguage, Message: err.Error()}
		})
		return err
	}

	p.scheduler.Cancel()
	p.capture.Reset()
	p.store.mutate(func(st *State, _ *conversation.Log) {
		if st.Languages == pair && st.Input == "" && st.Translation == "" && !st.Translating && !st.Capturing {
			return
		}
		st.Languages = pair
		st.Capturing = false
		st.Translating = false
		st.Input = ""
		st.Translation = ""
		p.store.invalidate()
	})
	p.logger.Info().Str("languages", pair.String()).Msg("Language pair changed")
	return nil
}

// DismissError clears the current error.
func (p *Pipeline) DismissError() {
	p.store.mutate(func(st *State, _ *conversation.Log) {
		st.Err = nil
	})
}

// Snapshot returns the current display state and history.
func (p *Pipeline) Snapshot() Snapshot {
	return p.store.Snapshot()
}

// Changes fires after every state change; bursts coalesce.
func (p *Pipeline) Changes() <-chan struct{} {
	return p.store.Changes()
}

// Close stops capture and debounce, cancels backend calls and waits for them.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		p.scheduler.Stop()
		p.capture.Close()
		p.coordinator.Close()
	})
}
