package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func clearModeEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TRANSLATION_BACKEND", "TRANSLATION_URL", "TRANSLATION_TIMEOUT",
		"CAPTURE_MODE", "PLAYBACK_MODE", "DEEPGRAM_API_KEY", "CARTESIA_API_KEY",
		"DEBOUNCE_MS", "MIN_TRANSCRIPT_RUNES", "LOG_LEVEL",
		"DEFAULT_SOURCE_LANGUAGE", "DEFAULT_TARGET_LANGUAGE",
	} {
		// Register restoration, then unset so envconfig falls back to defaults.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearModeEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}
	if cfg.TranslationBackend != BackendHTTP {
		t.Errorf("Expected default TranslationBackend 'http', got '%s'", cfg.TranslationBackend)
	}
	if cfg.TranslationURL != "http://localhost:3000/api/translate" {
		t.Errorf("Unexpected default TranslationURL '%s'", cfg.TranslationURL)
	}
	if cfg.CaptureMode != ModeClient {
		t.Errorf("Expected default CaptureMode 'client', got '%s'", cfg.CaptureMode)
	}
	if cfg.PlaybackMode != ModeClient {
		t.Errorf("Expected default PlaybackMode 'client', got '%s'", cfg.PlaybackMode)
	}
	if cfg.DefaultSourceLanguage != "en-US" || cfg.DefaultTargetLanguage != "id" {
		t.Errorf("Unexpected default languages %s -> %s", cfg.DefaultSourceLanguage, cfg.DefaultTargetLanguage)
	}
	if cfg.Debounce() != 500*time.Millisecond {
		t.Errorf("Expected default debounce 500ms, got %v", cfg.Debounce())
	}
	if cfg.BackendTimeout() != 20*time.Second {
		t.Errorf("Expected default backend timeout 20s, got %v", cfg.BackendTimeout())
	}
	if cfg.SpeechRate != 0.9 {
		t.Errorf("Expected default SpeechRate 0.9, got %f", cfg.SpeechRate)
	}
	if cfg.GRPCHealthPort != "" {
		t.Errorf("Expected gRPC health disabled by default, got '%s'", cfg.GRPCHealthPort)
	}
}

func TestLoad_DeepgramModeRequiresKey(t *testing.T) {
	clearModeEnv(t)
	t.Setenv("CAPTURE_MODE", "deepgram")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error when DEEPGRAM_API_KEY is missing")
	}
	if !strings.Contains(err.Error(), "DEEPGRAM_API_KEY") {
		t.Errorf("Expected error to mention DEEPGRAM_API_KEY, got %v", err)
	}

	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
}

func TestLoad_CartesiaModeRequiresKey(t *testing.T) {
	clearModeEnv(t)
	t.Setenv("PLAYBACK_MODE", "Cartesia")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("Expected error when CARTESIA_API_KEY is missing")
	}

	t.Setenv("CARTESIA_API_KEY", "test-cartesia-key")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.PlaybackMode != ModeCartesia {
		t.Errorf("Expected normalized PlaybackMode 'cartesia', got '%s'", cfg.PlaybackMode)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			TranslationBackend:    BackendHTTP,
			TranslationURL:        "http://translator",
			DefaultSourceLanguage: "en-US",
			DefaultTargetLanguage: "id",
			TranslationTimeout:    20,
			DebounceMS:            500,
			MinTranscriptRunes:    1,
			CaptureMode:           ModeClient,
			PlaybackMode:          ModeClient,
			SpeechRate:            0.9,
			AudioBufferSize:       1024,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"dictionary backend", func(c *Config) { c.TranslationBackend = BackendDictionary; c.TranslationURL = "" }, ""},
		{"unknown backend", func(c *Config) { c.TranslationBackend = "grpc" }, "TRANSLATION_BACKEND"},
		{"missing url", func(c *Config) { c.TranslationURL = " " }, "TRANSLATION_URL"},
		{"unknown capture", func(c *Config) { c.CaptureMode = "riva" }, "CAPTURE_MODE"},
		{"unknown playback", func(c *Config) { c.PlaybackMode = "espeak" }, "PLAYBACK_MODE"},
		{"zero timeout", func(c *Config) { c.TranslationTimeout = 0 }, "TRANSLATION_TIMEOUT"},
		{"zero debounce", func(c *Config) { c.DebounceMS = 0 }, "DEBOUNCE_MS"},
		{"zero min runes", func(c *Config) { c.MinTranscriptRunes = 0 }, "MIN_TRANSCRIPT_RUNES"},
		{"zero speech rate", func(c *Config) { c.SpeechRate = 0 }, "SPEECH_RATE"},
		{"tiny buffer", func(c *Config) { c.AudioBufferSize = 1 }, "AUDIO_BUFFER_SIZE"},
		{"unknown source language", func(c *Config) { c.DefaultSourceLanguage = "ja-JP" }, "DEFAULT_SOURCE_LANGUAGE"},
		{"unknown target language", func(c *Config) { c.DefaultTargetLanguage = "ja" }, "unsupported"},
		{"case-insensitive language", func(c *Config) { c.DefaultSourceLanguage = "EN-us" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_ResilienceDefaults(t *testing.T) {
	clearModeEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}
	if cfg.CircuitBreakerResetTimeout != 30 {
		t.Errorf("Expected default CircuitBreakerResetTimeout 30, got %d", cfg.CircuitBreakerResetTimeout)
	}
	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("Expected default RetryMaxAttempts 3, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.RetryInitialBackoff != 100 {
		t.Errorf("Expected default RetryInitialBackoff 100, got %d", cfg.RetryInitialBackoff)
	}
	if cfg.ReconnectMaxAttempts != 5 {
		t.Errorf("Expected default ReconnectMaxAttempts 5, got %d", cfg.ReconnectMaxAttempts)
	}
	if cfg.ReconnectBackoff != 1000 {
		t.Errorf("Expected default ReconnectBackoff 1000, got %d", cfg.ReconnectBackoff)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	clearModeEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}
	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}
