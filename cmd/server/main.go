package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interpreter-gateway/internal/config"
	"github.com/lexiqai/interpreter-gateway/internal/gateway"
	"github.com/lexiqai/interpreter-gateway/internal/language"
	"github.com/lexiqai/interpreter-gateway/internal/observability"
	"github.com/lexiqai/interpreter-gateway/internal/resilience"
	"github.com/lexiqai/interpreter-gateway/internal/stt"
	"github.com/lexiqai/interpreter-gateway/internal/translation"
	"github.com/lexiqai/interpreter-gateway/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	// config.Load has validated the default pair
	defaults, _ := language.ParsePair(cfg.DefaultSourceLanguage, cfg.DefaultTargetLanguage)

	logger.Info().
		Str("port", cfg.Port).
		Str("default_languages", defaults.String()).
		Str("translation_backend", cfg.TranslationBackend).
		Str("capture_mode", cfg.CaptureMode).
		Str("playback_mode", cfg.PlaybackMode).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Interpreter Gateway Service starting")

	checker := observability.NewChecker()
	deps := gateway.Dependencies{}

	// Translation backend
	switch cfg.TranslationBackend {
	case config.BackendDictionary:
		deps.Backend = translation.NewDictionary(nil)
		logger.Warn().Msg("Using the offline dictionary translation backend")
	default:
		// The backend reports its own breaker transitions
		breaker := resilience.NewCircuitBreaker(
			translation.ServiceName,
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		)
		backend := translation.NewHTTPBackend(cfg.TranslationURL, cfg.BackendTimeout(), breaker, logger)
		deps.Backend = backend
		checker.Register(translation.ServiceName, func(ctx context.Context) (bool, error) {
			if err := backend.Breaker().Health(); err != nil {
				return false, err
			}
			return true, nil
		})
	}

	// Server-side speech services. Checks validate config and breaker state
	// only, to avoid API costs.
	if cfg.CaptureMode == config.ModeDeepgram {
		deps.STTBreaker = newBreaker(cfg, stt.ServiceName, logger)
		checker.Register(stt.ServiceName, func(ctx context.Context) (bool, error) {
			return stt.CheckConfig(cfg, deps.STTBreaker)
		})
	}
	if cfg.PlaybackMode == config.ModeCartesia {
		deps.TTSBreaker = newBreaker(cfg, tts.ServiceName, logger)
		checker.Register(tts.ServiceName, func(ctx context.Context) (bool, error) {
			return tts.CheckConfig(cfg, deps.TTSBreaker)
		})
	}

	// Create HTTP server
	mux := http.NewServeMux()

	// Register interpreter WebSocket handler
	interpreter := gateway.NewHandler(cfg, deps, logger)
	mux.Handle("/streams/interpreter", interpreter)
	mux.HandleFunc("/api/languages", gateway.LanguagesHandler())

	// Health check endpoints
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(checker))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Read/write timeouts would cut long-lived WebSocket connections
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional gRPC health service mirroring /ready
	if cfg.GRPCHealthPort != "" {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCHealthPort))
		if err != nil {
			logger.Fatal().Err(err).Str("port", cfg.GRPCHealthPort).Msg("Failed to listen for gRPC health")
		}
		grpcServer, healthServer := observability.NewGRPCHealthServer()
		go observability.SyncReadiness(ctx, healthServer, checker, 10*time.Second)
		go func() {
			logger.Info().Str("port", cfg.GRPCHealthPort).Msg("gRPC health server listening")
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error().Err(err).Msg("gRPC health server stopped")
			}
		}()
		defer grpcServer.GracefulStop()
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/streams/interpreter", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Hijacked WebSocket connections are not tracked by Shutdown
	done := make(chan struct{})
	go func() {
		interpreter.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("Timed out waiting for interpreter sessions")
	}

	logger.Info().Msg("Server exited gracefully")
}

// newBreaker creates a circuit breaker that reports its transitions.
func newBreaker(cfg *config.Config, service string, logger zerolog.Logger) *resilience.CircuitBreaker {
	breaker := resilience.NewCircuitBreaker(
		service,
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	breaker.OnStateChange(func(name string, from, to resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(to))
		logger.Warn().
			Str("service", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")
	})
	return breaker
}
