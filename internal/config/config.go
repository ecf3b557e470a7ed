package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/lexiqai/interpreter-gateway/internal/language"
)

// Capture and playback modes select where speech is recognized and synthesized.
const (
	ModeClient   = "client"
	ModeDeepgram = "deepgram"
	ModeCartesia = "cartesia"
)

// Translation backend kinds
const (
	BackendHTTP       = "http"
	BackendDictionary = "dictionary"
)

// Config holds all configuration for the interpreter gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Port for the gRPC health service. Empty disables it.
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:""`

	// Translation backend
	TranslationBackend string `envconfig:"TRANSLATION_BACKEND" default:"http"` // http, dictionary
	TranslationURL     string `envconfig:"TRANSLATION_URL" default:"http://localhost:3000/api/translate"`
	TranslationTimeout int    `envconfig:"TRANSLATION_TIMEOUT" default:"20"` // seconds

	// Pipeline tuning
	DebounceMS         int `envconfig:"DEBOUNCE_MS" default:"500"`
	MinTranscriptRunes int `envconfig:"MIN_TRANSCRIPT_RUNES" default:"1"`

	// Default language pair for new connections
	DefaultSourceLanguage string `envconfig:"DEFAULT_SOURCE_LANGUAGE" default:"en-US"`
	DefaultTargetLanguage string `envconfig:"DEFAULT_TARGET_LANGUAGE" default:"id"`

	// Speech capture: "client" relies on the browser recognizer, "deepgram" streams audio to Deepgram
	CaptureMode        string `envconfig:"CAPTURE_MODE" default:"client"`
	DeepgramAPIKey     string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel      string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramSampleRate int    `envconfig:"DEEPGRAM_SAMPLE_RATE" default:"16000"`

	// Speech playback: "client" asks the browser to speak, "cartesia" synthesizes audio server-side
	PlaybackMode       string  `envconfig:"PLAYBACK_MODE" default:"client"`
	CartesiaAPIKey     string  `envconfig:"CARTESIA_API_KEY" default:""`
	CartesiaURL        string  `envconfig:"CARTESIA_URL" default:"https://api.cartesia.ai/v1/tts"`
	CartesiaVoiceID    string  `envconfig:"CARTESIA_VOICE_ID" default:"sonic-multilingual"`
	CartesiaModelID    string  `envconfig:"CARTESIA_MODEL_ID" default:"sonic"`
	PlaybackSampleRate int     `envconfig:"PLAYBACK_SAMPLE_RATE" default:"24000"`
	SpeechRate         float64 `envconfig:"SPEECH_RATE" default:"0.9"`

	// Audio processing configuration
	AudioBufferSize int `envconfig:"AUDIO_BUFFER_SIZE" default:"65536"` // Reconnect pre-roll in bytes

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.TranslationBackend = strings.ToLower(strings.TrimSpace(cfg.TranslationBackend))
	cfg.CaptureMode = strings.ToLower(strings.TrimSpace(cfg.CaptureMode))
	cfg.PlaybackMode = strings.ToLower(strings.TrimSpace(cfg.PlaybackMode))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces mode/key consistency and the supported default languages.
func (c *Config) Validate() error {
	if _, err := language.ParsePair(c.DefaultSourceLanguage, c.DefaultTargetLanguage); err != nil {
		return fmt.Errorf("DEFAULT_SOURCE_LANGUAGE/DEFAULT_TARGET_LANGUAGE: %w", err)
	}

	switch c.TranslationBackend {
	case BackendHTTP:
		if strings.TrimSpace(c.TranslationURL) == "" {
			return fmt.Errorf("TRANSLATION_URL is required when TRANSLATION_BACKEND=http")
		}
	case BackendDictionary:
	default:
		return fmt.Errorf("TRANSLATION_BACKEND must be one of: http, dictionary (got %q)", c.TranslationBackend)
	}

	switch c.CaptureMode {
	case ModeClient:
	case ModeDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when CAPTURE_MODE=deepgram")
		}
		if c.DeepgramSampleRate <= 0 {
			return fmt.Errorf("DEEPGRAM_SAMPLE_RATE must be > 0")
		}
	default:
		return fmt.Errorf("CAPTURE_MODE must be one of: client, deepgram (got %q)", c.CaptureMode)
	}

	switch c.PlaybackMode {
	case ModeClient:
	case ModeCartesia:
		if c.CartesiaAPIKey == "" {
			return fmt.Errorf("CARTESIA_API_KEY is required when PLAYBACK_MODE=cartesia")
		}
		if c.PlaybackSampleRate <= 0 {
			return fmt.Errorf("PLAYBACK_SAMPLE_RATE must be > 0")
		}
	default:
		return fmt.Errorf("PLAYBACK_MODE must be one of: client, cartesia (got %q)", c.PlaybackMode)
	}

	if c.TranslationTimeout <= 0 {
		return fmt.Errorf("TRANSLATION_TIMEOUT must be > 0")
	}
	if c.DebounceMS <= 0 {
		return fmt.Errorf("DEBOUNCE_MS must be > 0")
	}
	if c.MinTranscriptRunes < 1 {
		return fmt.Errorf("MIN_TRANSCRIPT_RUNES must be >= 1")
	}
	if c.SpeechRate <= 0 {
		return fmt.Errorf("SPEECH_RATE must be > 0")
	}
	if c.AudioBufferSize <= 1 {
		return fmt.Errorf("AUDIO_BUFFER_SIZE must be > 1")
	}
	return nil
}

// Debounce returns the quiet period before a transcript is translated.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// BackendTimeout bounds a single translation backend call.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.TranslationTimeout) * time.Second
}
