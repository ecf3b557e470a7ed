// Package debounce coalesces rapid text updates into one downstream action.
package debounce

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Action receives the text that survived the quiet period.
type Action func(text string)

// Scheduler dispatches only the most recent text scheduled within the quiet period.
type Scheduler struct {
	delay    time.Duration
	minRunes int
	action   Action

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewScheduler creates a scheduler. Texts shorter than minRunes (after trimming)
// are never dispatched; minRunes below 1 is treated as 1.
func NewScheduler(delay time.Duration, minRunes int, action Action) *Scheduler {
	if minRunes < 1 {
		minRunes = 1
	}
	return &Scheduler{
		delay:    delay,
		minRunes: minRunes,
		action:   action,
	}
}

// Schedule arms the timer for text, cancelling any armed timer first.
// Blank text is a no-op and leaves an already armed timer untouched.
// It reports whether a timer was armed.
func (s *Scheduler) Schedule(text string) bool {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < s.minRunes {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen, text) })
	return true
}

func (s *Scheduler) fire(gen uint64, text string) {
	s.mu.Lock()
	// A timer that was stopped too late to prevent its callback still sees a newer generation.
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.action(text)
}

// Cancel disarms the pending timer, if any.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// Pending reports whether a timer is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Stop cancels the pending timer and rejects further schedules.
func (s *Scheduler) Stop() {
	s.Cancel()

	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}
