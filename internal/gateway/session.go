package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interpreter-gateway/internal/capture"
	"github.com/lexiqai/interpreter-gateway/internal/config"
	"github.com/lexiqai/interpreter-gateway/internal/language"
	"github.com/lexiqai/interpreter-gateway/internal/observability"
	"github.com/lexiqai/interpreter-gateway/internal/pipeline"
	"github.com/lexiqai/interpreter-gateway/internal/playback"
	"github.com/lexiqai/interpreter-gateway/internal/stt"
	"github.com/lexiqai/interpreter-gateway/internal/tts"
)

const writeWait = 10 * time.Second

// errSessionClosed is returned when writing to a connection that has ended.
var errSessionClosed = errors.New("session is not active")

// Session holds the state of a single interpreter connection
type Session struct {
	// Connection
	conn    *websocket.Conn
	writeMu sync.Mutex

	// Session identifiers
	correlationID string
	sessionID     string

	// Speech devices. Exactly one of remote and recognizer is set.
	remote     *capture.Remote
	recognizer *stt.DeepgramRecognizer
	synthesis  atomic.Bool

	pipeline *pipeline.Pipeline

	// Configuration
	config *config.Config

	// Observability
	metrics *observability.Metrics
	logger  zerolog.Logger

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession creates a session for an upgraded connection.
func NewSession(ctx context.Context, conn *websocket.Conn, cfg *config.Config, deps Dependencies) (*Session, error) {
	correlationID := observability.NewCorrelationID()
	sessionID := observability.NewCorrelationID()
	logger := observability.WithSession(correlationID, sessionID)
	metrics := observability.NewSessionMetrics(sessionID)

	pair, err := language.ParsePair(cfg.DefaultSourceLanguage, cfg.DefaultTargetLanguage)
	if err != nil {
		return nil, err
	}

	s := &Session{
		conn:          conn,
		correlationID: correlationID,
		sessionID:     sessionID,
		config:        cfg,
		metrics:       metrics,
		logger:        logger,
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.synthesis.Store(true)

	var recognizer capture.Device
	if cfg.CaptureMode == config.ModeDeepgram {
		s.recognizer = stt.NewDeepgramRecognizer(cfg, deps.STTBreaker, logger, metrics)
		recognizer = s.recognizer
	} else {
		s.remote = capture.NewRemote()
		recognizer = s.remote
	}

	var speaker playback.Device = playback.DeviceFunc(s.speakOnClient)
	if cfg.PlaybackMode == config.ModeCartesia {
		speaker = tts.NewCartesiaSpeaker(cfg, s, deps.TTSBreaker, logger, metrics)
	}

	p, err := pipeline.New(recognizer, deps.Backend, speaker, pipeline.Options{
		Languages:          pair,
		Debounce:           cfg.Debounce(),
		MinTranscriptRunes: cfg.MinTranscriptRunes,
		BackendTimeout:     cfg.BackendTimeout(),
		Logger:             logger,
		Metrics:            metrics,
	})
	if err != nil {
		s.cancel()
		return nil, err
	}
	s.pipeline = p
	return s, nil
}

// Run serves the connection until the client disconnects or ctx ends.
func (s *Session) Run() {
	s.metrics.RecordSessionStart()
	s.logger.Info().
		Str("capture_mode", s.config.CaptureMode).
		Str("playback_mode", s.config.PlaybackMode).
		Msg("Interpreter session started")

	s.wg.Add(2)
	go s.pushState()
	go func() {
		defer s.wg.Done()
		<-s.ctx.Done()
		// Unblocks the read loop
		s.conn.Close()
	}()

	s.processIncomingMessages()

	s.cancel()
	s.pipeline.Close()
	s.wg.Wait()

	s.metrics.RecordSessionEnd()
	s.logger.Info().Msg("Interpreter session ended")
}

// processIncomingMessages handles all incoming WebSocket messages from the client
func (s *Session) processIncomingMessages() {
	for {
		msgType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && s.ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		if msgType == websocket.BinaryMessage {
			s.handleAudio(message)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.logger.Error().Err(err).Msg("Failed to parse client message")
			s.metrics.RecordError("decode", "gateway")
			continue
		}
		s.handleMessage(msg)
	}
}

func (s *Session) handleMessage(msg ClientMessage) {
	switch msg.Type {
	case MessageHello:
		if msg.SpeechRecognition != nil && s.remote != nil {
			s.remote.SetSupported(*msg.SpeechRecognition)
		}
		if msg.SpeechSynthesis != nil {
			s.synthesis.Store(*msg.SpeechSynthesis)
		}
		s.logger.Info().
			Interface("speech_recognition", msg.SpeechRecognition).
			Interface("speech_synthesis", msg.SpeechSynthesis).
			Msg("Client connected")
		if msg.Source != "" || msg.Target != "" {
			s.setLanguages(msg.Source, msg.Target)
		}

	case MessageLanguages:
		s.setLanguages(msg.Source, msg.Target)

	case MessagePress:
		if err := s.pipeline.Press(s.ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Capture failed to start")
		}

	case MessageRelease:
		s.pipeline.Release()

	case MessageLeave:
		s.pipeline.Leave()

	case MessageTranscript:
		if s.remote == nil {
			s.logger.Debug().Msg("Ignoring client transcript, recognition runs server-side")
			return
		}
		if !s.remote.Push(msg.Results) {
			s.logger.Debug().Msg("Dropping transcript outside a capture session")
		}

	case MessageRecognitionError:
		if s.remote != nil {
			s.remote.Fail(msg.Error)
		}

	case MessageSpeak:
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.pipeline.Speak(s.ctx); err != nil {
				s.logger.Debug().Err(err).Msg("Speak request not completed")
			}
		}()

	case MessageClear:
		s.pipeline.Clear()

	case MessageDismissError:
		s.pipeline.DismissError()

	default:
		s.logger.Warn().Str("type", msg.Type).Msg("Unknown client message")
	}
}

// setLanguages applies a language selection. Unknown codes are passed
// through so that the pipeline reports them.
func (s *Session) setLanguages(source, target string) {
	current := s.pipeline.Snapshot().Languages
	if source == "" {
		source = string(current.Source)
	}
	if target == "" {
		target = string(current.Target)
	}

	pair, err := language.ParsePair(source, target)
	if err != nil {
		pair = language.Pair{Source: language.Source(source), Target: language.Target(target)}
	}
	if err := s.pipeline.SetLanguages(pair); err != nil {
		s.logger.Warn().Err(err).Msg("Rejected language selection")
	}
}

func (s *Session) handleAudio(pcm []byte) {
	if s.recognizer == nil {
		s.logger.Debug().Int("bytes", len(pcm)).Msg("Ignoring audio, recognition runs on the client")
		return
	}
	if err := s.recognizer.SendAudio(pcm); err != nil && !errors.Is(err, stt.ErrNotListening) {
		s.logger.Error().Err(err).Msg("Error sending audio to Deepgram")
		s.metrics.RecordError("stt_send_error", "deepgram")
	}
}

// pushState sends the full state once and again after every change.
func (s *Session) pushState() {
	defer s.wg.Done()

	changes := s.pipeline.Changes()
	for {
		if err := s.writeJSON(newStateMessage(s.pipeline.Snapshot())); err != nil {
			s.logger.Debug().Err(err).Msg("Stopping state updates")
			return
		}
		select {
		case <-changes:
		case <-s.ctx.Done():
			return
		}
	}
}

// speakOnClient hands synthesis to the browser.
func (s *Session) speakOnClient(_ context.Context, text string, lang language.Target) error {
	if !s.synthesis.Load() {
		return playback.ErrUnsupported
	}
	err := s.writeJSON(SpeakMessage{
		Type: MessageSpeak,
		Text: text,
		Lang: lang,
		Rate: s.config.SpeechRate,
	})
	if err != nil {
		return fmt.Errorf("failed to send speak request: %w", err)
	}
	return nil
}

// SendAudio writes synthesized audio as a binary frame.
func (s *Session) SendAudio(ctx context.Context, pcm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.metrics.RecordAudioBytes("out", int64(len(pcm)))
	return s.write(websocket.BinaryMessage, pcm)
}

func (s *Session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return s.write(websocket.TextMessage, data)
}

func (s *Session) write(messageType int, data []byte) error {
	if s.ctx.Err() != nil {
		return errSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.sessionID
}

// CorrelationID returns the correlation ID for this session
func (s *Session) CorrelationID() string {
	return s.correlationID
}
