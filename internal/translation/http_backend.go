package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interpreter-gateway/internal/observability"
	"github.com/lexiqai/interpreter-gateway/internal/resilience"
)

// maxResponseBytes caps how much of a backend response is read.
const maxResponseBytes = 1 << 20

// ServiceName labels the backend in metrics and readiness.
const ServiceName = "translation"

type httpRequest struct {
	Text       string `json:"text"`
	InputLang  string `json:"inputLang"`
	TargetLang string `json:"targetLang"`
}

type httpError struct {
	Error string `json:"error"`
}

type httpTranslation struct {
	Translation *string `json:"translation"`
}

// HTTPBackend posts {text, inputLang, targetLang} to a translate endpoint.
// A 2xx response body is the translated text; a JSON body must carry a
// "translation" field. Failures carry a JSON {"error": message} body.
type HTTPBackend struct {
	url     string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewHTTPBackend creates a backend calling url. timeout bounds each call;
// expiry is reported as KindUnreachable.
func NewHTTPBackend(url string, timeout time.Duration, breaker *resilience.CircuitBreaker, logger zerolog.Logger) *HTTPBackend {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(ServiceName, 5, 30*time.Second)
	}
	b := &HTTPBackend{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger.With().Str("component", "translation").Logger(),
	}
	breaker.OnStateChange(func(name string, from, to resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(to))
		b.logger.Warn().
			Str("service", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")
	})
	return b
}

// Breaker exposes the backend's circuit breaker for readiness checks.
func (b *HTTPBackend) Breaker() *resilience.CircuitBreaker {
	return b.breaker
}

// Translate implements Backend.
func (b *HTTPBackend) Translate(ctx context.Context, req Request) (string, error) {
	var (
		out     string
		callErr error
	)
	err := b.breaker.Call(func() error {
		out, callErr = b.do(ctx, req)
		if countsAgainstBackend(ctx, callErr) {
			observability.IncrementCircuitBreakerFailures(ServiceName)
			return callErr
		}
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", &Error{Kind: KindUnreachable, Message: "Translation service is unavailable", Err: err}
	}
	return out, callErr
}

// countsAgainstBackend reports whether err says something about the
// backend's health. Caller cancellation and client errors do not.
func countsAgainstBackend(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() == context.Canceled {
		return false
	}
	var te *Error
	if errors.As(err, &te) && te.Kind == KindRejected && te.Status < http.StatusInternalServerError {
		return false
	}
	return true
}

func (b *HTTPBackend) do(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(httpRequest{
		Text:       req.Text,
		InputLang:  string(req.Languages.Source),
		TargetLang: string(req.Languages.Target),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode translation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindUnreachable, Message: "Invalid translation service URL", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", unreachable(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", unreachable(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", rejected(resp.StatusCode, payload)
	}
	return parseTranslation(resp.Header.Get("Content-Type"), payload)
}

func unreachable(err error) error {
	msg := "Translation service is unreachable"
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		msg = "Translation request timed out"
	}
	return &Error{Kind: KindUnreachable, Message: msg, Err: err}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func rejected(status int, payload []byte) error {
	var body httpError
	msg := ""
	if json.Unmarshal(payload, &body) == nil {
		msg = strings.TrimSpace(body.Error)
	}
	if msg == "" {
		msg = fmt.Sprintf("Translation failed (status %d)", status)
	}
	return &Error{Kind: KindRejected, Status: status, Message: msg}
}

func parseTranslation(contentType string, payload []byte) (string, error) {
	if !utf8.Valid(payload) {
		return "", &Error{Kind: KindMalformed, Message: "Translation response is not valid text"}
	}

	text := string(payload)
	if mediaType, _, _ := mime.ParseMediaType(contentType); mediaType == "application/json" {
		var body httpTranslation
		if err := json.Unmarshal(payload, &body); err != nil || body.Translation == nil {
			return "", &Error{Kind: KindMalformed, Message: "Translation response is missing the translation", Err: err}
		}
		text = *body.Translation
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &Error{Kind: KindMalformed, Message: "Translation response was empty"}
	}
	return text, nil
}
