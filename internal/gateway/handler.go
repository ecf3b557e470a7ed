// Package gateway serves the interpreter over WebSocket: one pipeline per
// browser connection, driven by JSON text frames and optional PCM audio.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interpreter-gateway/internal/config"
	"github.com/lexiqai/interpreter-gateway/internal/language"
	"github.com/lexiqai/interpreter-gateway/internal/resilience"
	"github.com/lexiqai/interpreter-gateway/internal/translation"
)

// Dependencies are shared by every connection.
type Dependencies struct {
	Backend    translation.Backend
	STTBreaker *resilience.CircuitBreaker
	TTSBreaker *resilience.CircuitBreaker
}

// Handler upgrades requests to interpreter sessions.
type Handler struct {
	config   *config.Config
	deps     Dependencies
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders wg.Add against Close
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewHandler creates the WebSocket endpoint handler.
func NewHandler(cfg *config.Config, deps Dependencies, logger zerolog.Logger) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		config: cfg,
		deps:   deps,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The interpreter UI may be served from another origin
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: logger.With().Str("component", "gateway").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ServeHTTP is the entry point for interpreter WebSocket connections
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.acquire() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.wg.Done()

	// Upgrade writes its own error response
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()

	session, err := NewSession(h.ctx, conn, h.config, h.deps)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create interpreter session")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session setup failed"))
		return
	}

	logger := h.logger.With().
		Str("session_id", session.ID()).
		Str("correlation_id", session.CorrelationID()).
		Str("remote_addr", r.RemoteAddr).
		Logger()
	logger.Info().Msg("Interpreter session accepted")
	session.Run()
	logger.Info().Msg("Interpreter session ended")
}

// acquire registers a connection unless the handler is closed.
func (h *Handler) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.wg.Add(1)
	return true
}

// Close ends every open session and waits for them to finish.
func (h *Handler) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
}

// LanguagesResponse lists the selectable languages.
type LanguagesResponse struct {
	Sources []language.Option `json:"sources"`
	Targets []language.Option `json:"targets"`
}

// LanguagesHandler serves the language selector options
func LanguagesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(LanguagesResponse{
			Sources: language.Sources(),
			Targets: language.Targets(),
		})
	}
}
