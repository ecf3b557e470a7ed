package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/interpreter-gateway/internal/audio"
	"github.com/lexiqai/interpreter-gateway/internal/config"
	"github.com/lexiqai/interpreter-gateway/internal/language"
)

type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *recordingSink) SendAudio(_ context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, append([]byte(nil), pcm...))
	return nil
}

func (s *recordingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.frames {
		n += len(f)
	}
	return n
}

func testConfig(url string) *config.Config {
	return &config.Config{
		CartesiaAPIKey:             "test-key",
		CartesiaURL:                url,
		CartesiaVoiceID:            "voice",
		CartesiaModelID:            "sonic",
		PlaybackSampleRate:         cartesiaSampleRate,
		SpeechRate:                 0.9,
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
		RetryMaxAttempts:           3,
		RetryInitialBackoff:        1,
	}
}

// oneSecond is 24kHz mono PCM16 silence.
func oneSecond() []byte {
	return audio.EncodePCM16(make([]int16, cartesiaSampleRate))
}

func TestCartesiaSpeaker_SendsFramedAudio(t *testing.T) {
	var got CartesiaRequest
	var apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("x-api-key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write(oneSecond())
	}))
	defer server.Close()

	sink := &recordingSink{}
	speaker := NewCartesiaSpeaker(testConfig(server.URL), sink, nil, zerolog.Nop(), nil)

	require.NoError(t, speaker.Speak(context.Background(), "demam dan batuk", language.TargetIndonesian))
	require.Equal(t, "test-key", apiKey)
	require.Equal(t, "demam dan batuk", got.Text)
	require.Equal(t, "id", got.Language)
	require.Equal(t, "pcm", got.OutputFormat)
	require.InDelta(t, 0.9, got.Speed, 1e-9)

	require.Len(t, sink.frames, framesPerSecond)
	require.Equal(t, cartesiaSampleRate*2, sink.total())
	require.False(t, speaker.IsActive())
}

func TestCartesiaSpeaker_Resamples(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(oneSecond())
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.PlaybackSampleRate = 16000
	sink := &recordingSink{}
	speaker := NewCartesiaSpeaker(cfg, sink, nil, zerolog.Nop(), nil)

	require.NoError(t, speaker.Speak(context.Background(), "hello", language.TargetEnglish))
	require.Equal(t, 16000*2, sink.total())
}

func TestCartesiaSpeaker_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(oneSecond())
	}))
	defer server.Close()

	speaker := NewCartesiaSpeaker(testConfig(server.URL), &recordingSink{}, nil, zerolog.Nop(), nil)
	require.NoError(t, speaker.Speak(context.Background(), "hello", language.TargetEnglish))
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCartesiaSpeaker_DoesNotRetryRejections(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer server.Close()

	sink := &recordingSink{}
	speaker := NewCartesiaSpeaker(testConfig(server.URL), sink, nil, zerolog.Nop(), nil)
	err := speaker.Speak(context.Background(), "hello", language.TargetEnglish)
	require.ErrorContains(t, err, "status 400")
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	require.Zero(t, sink.total())
}

func TestCartesiaSpeaker_RetryClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
	}{
		{"rate limited", http.StatusTooManyRequests, "slow down", 3},
		{"bad gateway", http.StatusBadGateway, "", 3},
		{"rejection mentioning unavailable", http.StatusBadRequest, "voice unavailable", 1},
		{"unauthorized", http.StatusUnauthorized, "bad key", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				http.Error(w, tt.body, tt.status)
			}))
			defer server.Close()

			speaker := NewCartesiaSpeaker(testConfig(server.URL), &recordingSink{}, nil, zerolog.Nop(), nil)
			err := speaker.Speak(context.Background(), "hello", language.TargetEnglish)
			require.Error(t, err)
			require.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestCartesiaSpeaker_EmptyAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	speaker := NewCartesiaSpeaker(testConfig(server.URL), &recordingSink{}, nil, zerolog.Nop(), nil)
	require.Error(t, speaker.Speak(context.Background(), "hello", language.TargetEnglish))
}

func TestCartesiaSpeaker_Busy(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		_, _ = w.Write(oneSecond())
	}))
	defer server.Close()

	speaker := NewCartesiaSpeaker(testConfig(server.URL), &recordingSink{}, nil, zerolog.Nop(), nil)
	done := make(chan error, 1)
	go func() {
		done <- speaker.Speak(context.Background(), "first", language.TargetEnglish)
	}()

	<-entered
	require.ErrorIs(t, speaker.Speak(context.Background(), "second", language.TargetEnglish), ErrBusy)
	close(release)
	require.NoError(t, <-done)
}

func TestCheckConfig(t *testing.T) {
	cfg := testConfig("http://unused")
	ok, err := CheckConfig(cfg, nil)
	require.True(t, ok)
	require.NoError(t, err)

	cfg.CartesiaAPIKey = ""
	ok, err = CheckConfig(cfg, nil)
	require.False(t, ok)
	require.Error(t, err)
}
