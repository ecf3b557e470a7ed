package pipeline

import (
	"sync"

	"github.com/lexiqai/interpreter-gateway/internal/conversation"
	"github.com/lexiqai/interpreter-gateway/internal/language"
)

// FailureKind classifies a user-visible error.
type FailureKind string

const (
	FailureCaptureUnavailable  FailureKind = "capture_unavailable"
	FailureRecognition         FailureKind = "recognition_error"
	FailureBackendUnreachable  FailureKind = "backend_unreachable"
	FailureBackendRejected     FailureKind = "backend_rejected"
	FailureMalformedResponse   FailureKind = "malformed_response"
	FailurePlaybackUnsupported FailureKind = "playback_unsupported"
	FailurePlaybackFailed      FailureKind = "playback_failed"
	FailureUnsupportedLanguage FailureKind = "unsupported_language"
)

// Failure is the dismissible error shown to the user.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Phase is the single activity derived from the state flags.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseCapturing   Phase = "capturing"
	PhaseTranslating Phase = "translating"
)

// State is the display state shared by every pipeline component.
type State struct {
	Capturing   bool
	Translating bool
	Err         *Failure
	Input       string
	Translation string
	Languages   language.Pair
}

// Phase derives the active phase. Capture wins over translation because a
// new utterance may start while the previous one is still being translated.
func (s State) Phase() Phase {
	switch {
	case s.Capturing:
		return PhaseCapturing
	case s.Translating:
		return PhaseTranslating
	default:
		return PhaseIdle
	}
}

// CanSpeak reports whether a finished translation is available for playback.
func (s State) CanSpeak() bool {
	return s.Translation != "" && !s.Translating
}

// Snapshot is an immutable copy of the state and the conversation history.
type Snapshot struct {
	State
	Phase    Phase
	CanSpeak bool
	History  []conversation.Entry
}

// Store serializes every mutation of the state, the conversation log and the
// latest issued sequence ID behind one mutex.
type Store struct {
	mu      sync.Mutex
	state   State
	log     *conversation.Log
	latest  uint64
	changed chan struct{}
}

// NewStore creates an idle store for pair.
func NewStore(pair language.Pair) *Store {
	return &Store{
		state:   State{Languages: pair},
		log:     conversation.NewLog(),
		changed: make(chan struct{}, 1),
	}
}

// mutate runs fn under the store lock and signals Changes if the state or
// the log length differ afterwards.
func (s *Store) mutate(fn func(st *State, log *conversation.Log)) {
	s.mu.Lock()
	before, beforeLen := s.state, s.log.Len()
	fn(&s.state, s.log)
	changed := s.state != before || s.log.Len() != beforeLen
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// mutateLatest runs fn only if id is still the latest issued sequence ID.
// It reports whether fn ran.
func (s *Store) mutateLatest(id uint64, fn func(st *State, log *conversation.Log)) bool {
	s.mu.Lock()
	if id != s.latest {
		s.mu.Unlock()
		return false
	}
	fn(&s.state, s.log)
	s.mu.Unlock()

	s.notify()
	return true
}

// issue allocates the next sequence ID and applies fn under the same lock.
// If fn declines (it must then leave st untouched) no ID is allocated and
// issue returns 0.
func (s *Store) issue(fn func(st *State) bool) uint64 {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return 0
	}
	s.latest++
	id := s.latest
	s.mu.Unlock()

	s.notify()
	return id
}

// invalidate makes every issued sequence ID stale. Callers hold s.mu.
func (s *Store) invalidate() {
	s.latest++
}

func (s *Store) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the state and the history.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:    s.state,
		Phase:    s.state.Phase(),
		CanSpeak: s.state.CanSpeak(),
		History:  s.log.Entries(),
	}
}

// Changes fires after mutations. Bursts coalesce into one signal.
func (s *Store) Changes() <-chan struct{} {
	return s.changed
}
