package debounce

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	texts []string
	fired chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) action(text string) {
	r.mu.Lock()
	r.texts = append(r.texts, text)
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func TestScheduler_CoalescesBurst(t *testing.T) {
	rec := newRecorder()
	s := NewScheduler(50*time.Millisecond, 1, rec.action)

	for _, text := range []string{"f", "fe", "fever", "fever and", "fever and cough"} {
		if !s.Schedule(text) {
			t.Fatalf("Expected %q to be scheduled", text)
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-rec.fired:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for dispatch")
	}

	// Give any stray timers a chance to fire.
	time.Sleep(100 * time.Millisecond)

	got := rec.got()
	if len(got) != 1 {
		t.Fatalf("Expected exactly 1 dispatch, got %d: %v", len(got), got)
	}
	if got[0] != "fever and cough" {
		t.Errorf("Expected final text, got %q", got[0])
	}
}

func TestScheduler_BlankIsNoop(t *testing.T) {
	rec := newRecorder()
	s := NewScheduler(20*time.Millisecond, 1, rec.action)

	for _, text := range []string{"", "   ", "\n\t"} {
		if s.Schedule(text) {
			t.Errorf("Expected blank %q not to be scheduled", text)
		}
	}
	if s.Pending() {
		t.Error("Expected no pending timer")
	}

	time.Sleep(60 * time.Millisecond)
	if got := rec.got(); len(got) != 0 {
		t.Errorf("Expected no dispatch, got %v", got)
	}
}

func TestScheduler_BlankKeepsArmedTimer(t *testing.T) {
	rec := newRecorder()
	s := NewScheduler(30*time.Millisecond, 1, rec.action)

	s.Schedule("hello")
	s.Schedule("  ")

	select {
	case <-rec.fired:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for dispatch")
	}
	if got := rec.got(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("Expected [hello], got %v", got)
	}
}

func TestScheduler_MinRunes(t *testing.T) {
	rec := newRecorder()
	s := NewScheduler(10*time.Millisecond, 3, rec.action)

	if s.Schedule("ok") {
		t.Error("Expected two-rune text to be rejected with minRunes=3")
	}
	if !s.Schedule("hai") {
		t.Error("Expected three-rune text to be scheduled")
	}
	// Trimmed "né" has two runes.
	if s.Schedule(" né ") {
		t.Error("Expected trimmed two-rune text to be rejected")
	}
	s.Stop()
}

func TestScheduler_Cancel(t *testing.T) {
	rec := newRecorder()
	s := NewScheduler(30*time.Millisecond, 1, rec.action)

	s.Schedule("discard me")
	if !s.Pending() {
		t.Fatal("Expected pending timer")
	}
	s.Cancel()
	if s.Pending() {
		t.Error("Expected no pending timer after Cancel")
	}

	time.Sleep(80 * time.Millisecond)
	if got := rec.got(); len(got) != 0 {
		t.Errorf("Expected no dispatch after Cancel, got %v", got)
	}

	// Scheduler stays usable after Cancel.
	s.Schedule("keep me")
	select {
	case <-rec.fired:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for dispatch")
	}
	if got := rec.got(); len(got) != 1 || got[0] != "keep me" {
		t.Errorf("Expected [keep me], got %v", got)
	}
}

func TestScheduler_Stop(t *testing.T) {
	rec := newRecorder()
	s := NewScheduler(20*time.Millisecond, 1, rec.action)

	s.Schedule("pending")
	s.Stop()
	if s.Schedule("after stop") {
		t.Error("Expected Schedule to be rejected after Stop")
	}

	time.Sleep(60 * time.Millisecond)
	if got := rec.got(); len(got) != 0 {
		t.Errorf("Expected no dispatch after Stop, got %v", got)
	}

	// Stop is idempotent.
	s.Stop()
}
