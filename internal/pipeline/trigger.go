package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interpreter-gateway/internal/conversation"
	"github.com/lexiqai/interpreter-gateway/internal/observability"
	"github.com/lexiqai/interpreter-gateway/internal/playback"
)

// ErrPlaybackNotReady is returned when there is no finished translation to speak.
var ErrPlaybackNotReady = errors.New("no translation ready for playback")

// Trigger hands the current translation to a playback device.
type Trigger struct {
	store   *Store
	device  playback.Device
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewTrigger creates a playback trigger over device.
func NewTrigger(store *Store, device playback.Device, logger zerolog.Logger, metrics *observability.Metrics) *Trigger {
	return &Trigger{
		store:   store,
		device:  device,
		logger:  logger.With().Str("component", "playback").Logger(),
		metrics: metrics,
	}
}

// Speak reads the current translation aloud. Without a non-empty translation,
// or while one is in flight, it returns ErrPlaybackNotReady and changes nothing.
// Device failures are surfaced as the current error; the translating flag and
// the conversation log are never touched.
func (t *Trigger) Speak(ctx context.Context) error {
	st := t.store.State()
	if !st.CanSpeak() {
		t.metrics.RecordPlayback("rejected")
		t.logger.Info().Bool("translating", st.Translating).Msg("Playback rejected, no translation ready")
		return ErrPlaybackNotReady
	}

	err := t.device.Speak(ctx, st.Translation, st.Languages.Target)
	if err == nil {
		t.metrics.RecordPlayback("accepted")
		return nil
	}

	failure := &Failure{Kind: FailurePlaybackFailed, Message: "Text-to-speech failed"}
	if errors.Is(err, playback.ErrUnsupported) {
		failure = &Failure{Kind: FailurePlaybackUnsupported, Message: "Text-to-speech is not supported in your browser"}
	}
	t.metrics.RecordPlayback(string(failure.Kind))
	t.metrics.RecordError(string(failure.Kind), "playback")
	t.logger.Warn().Err(err).Msg("Playback failed")

	t.store.mutate(func(st *State, _ *conversation.Log) {
		st.Err = failure
	})
	return fmt.Errorf("speak: %w", err)
}
