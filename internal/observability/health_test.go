package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if status.Status != "healthy" || status.Service != ServiceName {
		t.Errorf("Unexpected status %+v", status)
	}
}

func TestReadinessHandler_AllHealthy(t *testing.T) {
	checker := NewChecker()
	checker.Register("translation", func(context.Context) (bool, error) { return true, nil })

	rec := httptest.NewRecorder()
	ReadinessHandler(checker)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if status.Status != "ready" {
		t.Errorf("Expected 'ready', got %q", status.Status)
	}
	if status.Dependencies["translation"].Status != "healthy" {
		t.Errorf("Expected translation healthy, got %+v", status.Dependencies["translation"])
	}
}

func TestReadinessHandler_Unhealthy(t *testing.T) {
	checker := NewChecker()
	checker.Register("translation", func(context.Context) (bool, error) { return true, nil })
	checker.Register("deepgram", func(context.Context) (bool, error) {
		return false, errors.New("DEEPGRAM_API_KEY not configured")
	})

	rec := httptest.NewRecorder()
	ReadinessHandler(checker)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if status.Status != "not_ready" {
		t.Errorf("Expected 'not_ready', got %q", status.Status)
	}
	dep := status.Dependencies["deepgram"]
	if dep.Status != "unhealthy" || dep.Message != "DEEPGRAM_API_KEY not configured" {
		t.Errorf("Unexpected deepgram status %+v", dep)
	}
}

func TestChecker_RegisterNilRemoves(t *testing.T) {
	checker := NewChecker()
	checker.Register("cartesia", func(context.Context) (bool, error) { return false, nil })
	checker.Register("cartesia", nil)

	ready, deps := checker.Check(context.Background())
	if !ready || len(deps) != 0 {
		t.Errorf("Expected empty ready checker, got ready=%v deps=%v", ready, deps)
	}
}

func TestSyncReadiness(t *testing.T) {
	_, hs := NewGRPCHealthServer()

	healthy := make(chan bool, 1)
	healthy <- false
	checker := NewChecker()
	checker.Register("translation", func(context.Context) (bool, error) {
		select {
		case v := <-healthy:
			return v, nil
		default:
			return false, nil
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		SyncReadiness(ctx, hs, checker, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if resp.Status == healthpb.HealthCheckResponse_NOT_SERVING {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for NOT_SERVING")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SyncReadiness did not return after cancel")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "debug",
		"WARN":    "warn",
		"warning": "warn",
		"error":   "error",
		"bogus":   "info",
		"":        "info",
	}
	for in, want := range tests {
		if got := ParseLevel(in).String(); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordSessionStart()
	m.RecordCapture("started")
	m.RecordTranslation("success", time.Millisecond)
	m.RecordPlayback("accepted")
	m.RecordError("test", "observability")
	m.RecordAudioBytes("in", 10)
	m.RecordSessionEnd()
}
