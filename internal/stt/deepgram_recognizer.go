package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interpreter-gateway/internal/audio"
	"github.com/lexiqai/interpreter-gateway/internal/capture"
	"github.com/lexiqai/interpreter-gateway/internal/config"
	"github.com/lexiqai/interpreter-gateway/internal/language"
	"github.com/lexiqai/interpreter-gateway/internal/observability"
	"github.com/lexiqai/interpreter-gateway/internal/resilience"
)

// ServiceName labels Deepgram in metrics and readiness.
const ServiceName = "deepgram"

const updateBuffer = 64

// defaultDrainWait bounds how long Stop waits for Deepgram to finalize the
// pending segment.
const defaultDrainWait = 2 * time.Second

// ErrNotListening is returned by SendAudio outside a capture session.
var ErrNotListening = errors.New("deepgram recognizer is not listening")

// messageCallbackHandler implements the LiveMessageCallback interface
// It embeds the default handler and overrides only the methods we need to customize
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler // Embed default handler for methods we don't override
	handler                                func(*msginterfaces.MessageResponse)
	errorHandler                           func(*msginterfaces.ErrorResponse) error
}

// Message overrides the default handler to feed the session transcript
func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.handler(message)
	return nil
}

// Error overrides the default handler to use our custom error handling
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	if m.errorHandler != nil {
		return m.errorHandler(errorResponse)
	}
	return m.DefaultCallbackHandler.Error(errorResponse)
}

// streamConn is the part of the Deepgram websocket client the recognizer uses.
type streamConn interface {
	Write(p []byte) (int, error)
	Finalize() error
	Finish()
}

type dialFunc func(ctx context.Context, locale language.Source, callback *messageCallbackHandler) (streamConn, error)

// DeepgramRecognizer is a capture.Device that streams client microphone
// audio (PCM16LE mono) to Deepgram's live transcription API.
type DeepgramRecognizer struct {
	config  *config.Config
	logger  zerolog.Logger
	metrics *observability.Metrics
	breaker *resilience.CircuitBreaker
	preroll *audio.RingBuffer
	dial    dialFunc

	drainWait time.Duration

	mu           sync.Mutex
	gen          uint64
	conn         streamConn
	updates      chan capture.Update
	text         transcript
	reconnecting bool
	draining     bool
	drainTimer   *time.Timer
	cancel       context.CancelFunc
}

// NewDeepgramRecognizer creates a recognizer for one client connection.
// breaker may be shared between connections.
func NewDeepgramRecognizer(cfg *config.Config, breaker *resilience.CircuitBreaker, logger zerolog.Logger, metrics *observability.Metrics) *DeepgramRecognizer {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(
			ServiceName,
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		)
	}
	d := &DeepgramRecognizer{
		config:  cfg,
		logger:  logger.With().Str("component", "stt").Logger(),
		metrics: metrics,
		breaker: breaker,
		preroll: audio.NewRingBuffer(cfg.AudioBufferSize),

		drainWait: defaultDrainWait,
	}
	d.dial = d.dialDeepgram
	return d
}

// Start implements capture.Device.
func (d *DeepgramRecognizer) Start(ctx context.Context, locale language.Source) (<-chan capture.Update, error) {
	if d.config.DeepgramAPIKey == "" {
		return nil, fmt.Errorf("%w: DEEPGRAM_API_KEY not configured", capture.ErrUnavailable)
	}

	d.mu.Lock()
	old := d.detachLocked()
	d.gen++
	gen := d.gen
	d.mu.Unlock()
	if old != nil {
		old.Finish()
	}

	sessCtx, cancel := context.WithCancel(ctx)
	var conn streamConn
	err := d.breaker.Call(func() error {
		var err error
		conn, err = d.dial(sessCtx, locale, d.callback(gen, sessCtx, locale))
		return err
	})
	observability.UpdateCircuitBreakerState(ServiceName, int(d.breaker.GetState()))
	if err != nil {
		cancel()
		observability.IncrementCircuitBreakerFailures(ServiceName)
		return nil, fmt.Errorf("failed to start Deepgram stream: %w", err)
	}

	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		cancel()
		conn.Finish()
		return nil, errors.New("deepgram stream superseded")
	}
	d.conn = conn
	d.cancel = cancel
	d.updates = make(chan capture.Update, updateBuffer)
	d.text.reset()
	d.preroll.Clear()
	d.reconnecting = false
	updates := d.updates
	d.mu.Unlock()

	d.logger.Info().
		Str("model", d.config.DeepgramModel).
		Str("language", deepgramLanguage(locale)).
		Msg("Deepgram streaming started")
	return updates, nil
}

func (d *DeepgramRecognizer) dialDeepgram(ctx context.Context, locale language.Source, callback *messageCallbackHandler) (streamConn, error) {
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.config.DeepgramModel,
		Language:       deepgramLanguage(locale),
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     d.config.DeepgramSampleRate,
	}

	client, err := listenClient.NewWSUsingCallback(ctx, d.config.DeepgramAPIKey, nil, tOptions, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	if !client.Connect() {
		return nil, errors.New("failed to connect to Deepgram")
	}
	return client, nil
}

// deepgramLanguage maps a recognition locale to a Deepgram language code.
func deepgramLanguage(locale language.Source) string {
	if locale == language.SourceEnglish {
		return string(locale)
	}
	return locale.Base()
}

func (d *DeepgramRecognizer) callback(gen uint64, sessCtx context.Context, locale language.Source) *messageCallbackHandler {
	return &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		handler: func(msg *msginterfaces.MessageResponse) {
			d.handleMessage(gen, msg)
		},
		errorHandler: func(errorResponse *msginterfaces.ErrorResponse) error {
			d.handleStreamError(gen, sessCtx, locale, fmt.Errorf("deepgram: %+v", errorResponse))
			return nil
		},
	}
}

// handleMessage processes messages from Deepgram
func (d *DeepgramRecognizer) handleMessage(gen uint64, msg *msginterfaces.MessageResponse) {
	if msg == nil {
		return
	}

	switch msg.Type {
	case "Results", "Message":
		if len(msg.Channel.Alternatives) == 0 {
			return
		}
		alt := msg.Channel.Alternatives[0]

		d.mu.Lock()
		defer d.mu.Unlock()
		if gen != d.gen || d.updates == nil {
			return
		}
		if !d.text.apply(alt.Transcript, msg.IsFinal) {
			return
		}

		select {
		case d.updates <- capture.Update{Results: d.text.results()}:
			d.logger.Debug().Bool("final", msg.IsFinal).Str("transcript", alt.Transcript).Msg("Deepgram transcription")
		default:
			d.logger.Warn().Msg("Transcript channel full, dropping transcription")
		}
		if d.draining && d.text.interim == "" {
			go d.endDrain(gen)
		}

	case "UtteranceEnd":
		d.mu.Lock()
		draining := gen == d.gen && d.draining
		d.mu.Unlock()
		if draining {
			go d.endDrain(gen)
		}

	default:
		d.logger.Debug().Str("type", msg.Type).Msg("Deepgram event")
	}
}

// handleStreamError reconnects in the background. Audio sent meanwhile is
// kept in the pre-roll buffer and replayed on the new stream.
func (d *DeepgramRecognizer) handleStreamError(gen uint64, sessCtx context.Context, locale language.Source, streamErr error) {
	d.breaker.RecordResult(false)
	observability.UpdateCircuitBreakerState(ServiceName, int(d.breaker.GetState()))
	observability.IncrementCircuitBreakerFailures(ServiceName)
	d.metrics.RecordError("stream", "stt")

	d.mu.Lock()
	if gen != d.gen || d.updates == nil || d.reconnecting {
		d.mu.Unlock()
		return
	}
	if d.draining {
		// Nothing more will arrive for the stopped session.
		conn := d.detachLocked()
		d.mu.Unlock()
		if conn != nil {
			conn.Finish()
		}
		d.logger.Warn().Err(streamErr).Msg("Deepgram stream failed while stopping")
		return
	}
	d.reconnecting = true
	failed := d.conn
	d.conn = nil
	d.text.dropInterim()
	d.mu.Unlock()

	if failed != nil {
		failed.Finish()
	}

	d.logger.Warn().Err(streamErr).Msg("Deepgram stream failed, reconnecting")
	go d.reconnect(gen, sessCtx, locale)
}

func (d *DeepgramRecognizer) reconnect(gen uint64, sessCtx context.Context, locale language.Source) {
	logger := d.logger
	reconnectConfig := &resilience.ReconnectConfig{
		MaxAttempts: d.config.ReconnectMaxAttempts,
		Backoff:     time.Duration(d.config.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
		Logger:      &logger,
	}

	err := resilience.Reconnect(sessCtx, func() error {
		return d.breaker.Call(func() error {
			conn, err := d.dial(sessCtx, locale, d.callback(gen, sessCtx, locale))
			if err != nil {
				return err
			}

			d.mu.Lock()
			if gen != d.gen || d.updates == nil {
				d.mu.Unlock()
				conn.Finish()
				return nil
			}
			defer d.mu.Unlock()
			d.conn = conn
			d.reconnecting = false
			if pending := d.preroll.Drain(); len(pending) > 0 {
				if _, err := conn.Write(pending); err != nil {
					d.logger.Warn().Err(err).Int("bytes", len(pending)).Msg("Failed to replay buffered audio")
				}
			}
			return nil
		})
	}, reconnectConfig)
	observability.UpdateCircuitBreakerState(ServiceName, int(d.breaker.GetState()))

	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen || d.updates == nil {
		return
	}
	d.logger.Error().Err(err).Msg("Deepgram reconnection failed")
	select {
	case d.updates <- capture.Update{Err: err}:
	default:
	}
	d.detachLocked()
}

// SendAudio forwards a PCM16 chunk from the client microphone.
func (d *DeepgramRecognizer) SendAudio(pcm []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.updates == nil || d.draining {
		return ErrNotListening
	}
	d.metrics.RecordAudioBytes("in", int64(len(pcm)))

	if d.reconnecting || d.conn == nil {
		d.preroll.Write(pcm)
		return nil
	}

	if _, err := d.conn.Write(pcm); err != nil {
		d.preroll.Write(pcm)
		return fmt.Errorf("failed to send audio to Deepgram: %w", err)
	}
	return nil
}

// Stop implements capture.Device. With an unfinished segment pending, Stop
// asks Deepgram to finalize it and keeps the stream open until the final
// result or an UtteranceEnd arrives, at most for the drain wait. The update
// channel closes after that. Audio sent after Stop is rejected.
func (d *DeepgramRecognizer) Stop() error {
	d.mu.Lock()
	if d.updates == nil || d.draining {
		d.mu.Unlock()
		return nil
	}

	if d.text.interim == "" || d.conn == nil || d.reconnecting {
		conn := d.detachLocked()
		d.mu.Unlock()
		if conn != nil {
			conn.Finish()
		}
		d.logger.Info().Msg("Deepgram streaming stopped")
		return nil
	}

	d.draining = true
	gen, conn := d.gen, d.conn
	d.drainTimer = time.AfterFunc(d.drainWait, func() { d.endDrain(gen) })
	d.mu.Unlock()

	if err := conn.Finalize(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to finalize Deepgram stream")
		d.endDrain(gen)
		return nil
	}
	d.logger.Info().Msg("Deepgram streaming stopping, awaiting final transcript")
	return nil
}

// endDrain closes a stopped session once its pending segment is settled.
func (d *DeepgramRecognizer) endDrain(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.draining {
		d.mu.Unlock()
		return
	}
	conn := d.detachLocked()
	d.mu.Unlock()

	if conn != nil {
		conn.Finish()
	}
	d.logger.Info().Msg("Deepgram streaming stopped")
}

// detachLocked ends the current session and returns its stream for the
// caller to finish once the lock is released.
func (d *DeepgramRecognizer) detachLocked() streamConn {
	if d.updates == nil {
		return nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.drainTimer != nil {
		d.drainTimer.Stop()
		d.drainTimer = nil
	}
	close(d.updates)
	conn := d.conn
	d.updates = nil
	d.conn = nil
	d.reconnecting = false
	d.draining = false
	d.preroll.Clear()
	return conn
}

// Check reports whether Deepgram can be used.
func (d *DeepgramRecognizer) Check(context.Context) (bool, error) {
	return CheckConfig(d.config, d.breaker)
}

// CheckConfig is the readiness check for Deepgram capture.
func CheckConfig(cfg *config.Config, breaker *resilience.CircuitBreaker) (bool, error) {
	if cfg.DeepgramAPIKey == "" {
		return false, errors.New("DEEPGRAM_API_KEY not configured")
	}
	if breaker != nil {
		if err := breaker.Health(); err != nil {
			return false, err
		}
	}
	return true, nil
}
