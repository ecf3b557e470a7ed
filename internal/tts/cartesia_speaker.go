package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interpreter-gateway/internal/audio"
	"github.com/lexiqai/interpreter-gateway/internal/config"
	"github.com/lexiqai/interpreter-gateway/internal/language"
	"github.com/lexiqai/interpreter-gateway/internal/observability"
	"github.com/lexiqai/interpreter-gateway/internal/resilience"
)

// ServiceName labels Cartesia in metrics and readiness.
const ServiceName = "cartesia"

const (
	// Cartesia synthesizes PCM at 24kHz
	cartesiaSampleRate = 24000
	// Peak limit applied after resampling
	peakAmplitude = 30000
	// Each binary frame carries 100ms of audio
	framesPerSecond = 10
	maxAudioBytes   = 32 << 20
)

// ErrBusy is returned when a synthesis is already running for the connection.
var ErrBusy = errors.New("cartesia speaker is already synthesizing")

// AudioSink receives synthesized PCM16LE mono frames.
type AudioSink interface {
	SendAudio(ctx context.Context, pcm []byte) error
}

// CartesiaRequest represents the request payload for Cartesia TTS API
type CartesiaRequest struct {
	Text         string  `json:"text"`
	VoiceID      string  `json:"voice_id"`
	ModelID      string  `json:"model_id,omitempty"`
	Language     string  `json:"language,omitempty"`
	OutputFormat string  `json:"output_format,omitempty"`
	SampleRate   int     `json:"sample_rate,omitempty"`
	Speed        float64 `json:"speed,omitempty"`
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("cartesia API returned status %d: %s", e.status, e.body)
}

// CartesiaSpeaker is a playback.Device that synthesizes speech with
// Cartesia and streams the audio to a sink.
type CartesiaSpeaker struct {
	config     *config.Config
	apiURL     string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retry      *resilience.RetryConfig
	sink       AudioSink
	logger     zerolog.Logger
	metrics    *observability.Metrics

	mu       sync.Mutex
	isActive bool
}

// NewCartesiaSpeaker creates a speaker writing to sink. breaker may be
// shared between connections.
func NewCartesiaSpeaker(cfg *config.Config, sink AudioSink, breaker *resilience.CircuitBreaker, logger zerolog.Logger, metrics *observability.Metrics) *CartesiaSpeaker {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(
			ServiceName,
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		)
	}
	return &CartesiaSpeaker{
		config:     cfg,
		apiURL:     cfg.CartesiaURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    breaker,
		retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        2 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		sink:    sink,
		logger:  logger.With().Str("component", "tts").Logger(),
		metrics: metrics,
	}
}

// Speak implements playback.Device. It returns once the audio has been
// handed to the sink.
func (c *CartesiaSpeaker) Speak(ctx context.Context, text string, lang language.Target) error {
	c.mu.Lock()
	if c.isActive {
		c.mu.Unlock()
		return ErrBusy
	}
	c.isActive = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.isActive = false
		c.mu.Unlock()
	}()

	reqBody := CartesiaRequest{
		Text:         text,
		VoiceID:      c.config.CartesiaVoiceID,
		ModelID:      c.config.CartesiaModelID,
		Language:     string(lang),
		OutputFormat: "pcm",
		SampleRate:   cartesiaSampleRate,
		Speed:        c.config.SpeechRate,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var audioData []byte
	err = resilience.RetryContext(ctx, func() error {
		return c.breaker.Call(func() error {
			var err error
			audioData, err = c.synthesize(ctx, jsonData)
			return err
		})
	}, c.retry, isRetryable)
	observability.UpdateCircuitBreakerState(ServiceName, int(c.breaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures(ServiceName)
		c.metrics.RecordError("synthesis", "tts")
		return fmt.Errorf("cartesia synthesis failed: %w", err)
	}

	if len(audioData) == 0 {
		return errors.New("cartesia returned empty audio data")
	}

	pcm, err := audio.ConvertSampleRate(audioData, cartesiaSampleRate, c.config.PlaybackSampleRate, peakAmplitude)
	if err != nil {
		return fmt.Errorf("failed to convert audio format: %w", err)
	}

	frame := c.config.PlaybackSampleRate / framesPerSecond * 2
	for off := 0; off < len(pcm); off += frame {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+frame, len(pcm))
		if err := c.sink.SendAudio(ctx, pcm[off:end]); err != nil {
			return fmt.Errorf("failed to send audio: %w", err)
		}
	}
	c.metrics.RecordAudioBytes("out", int64(len(pcm)))

	c.logger.Debug().
		Int("bytes", len(pcm)).
		Int("source_bytes", len(audioData)).
		Str("lang", string(lang)).
		Msg("Sent TTS audio")
	return nil
}

func (c *CartesiaSpeaker) synthesize(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.CartesiaAPIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := &statusError{status: resp.StatusCode, body: string(bytes.TrimSpace(msg))}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, resilience.NewRetryableError(err)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	return data, nil
}

// isRetryable retries marked HTTP statuses and transient network errors.
// Other API rejections are final.
func isRetryable(err error) bool {
	if resilience.IsRetryable(err) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return false
	}
	return resilience.IsRetryableNetworkError(err)
}

// IsActive returns whether the speaker is currently synthesizing
func (c *CartesiaSpeaker) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isActive
}

// CheckConfig is the readiness check for Cartesia playback.
func CheckConfig(cfg *config.Config, breaker *resilience.CircuitBreaker) (bool, error) {
	if cfg.CartesiaAPIKey == "" {
		return false, errors.New("CARTESIA_API_KEY not configured")
	}
	if breaker != nil {
		if err := breaker.Health(); err != nil {
			return false, err
		}
	}
	return true, nil
}
