package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interpreter-gateway/internal/conversation"
	"github.com/lexiqai/interpreter-gateway/internal/language"
	"github.com/lexiqai/interpreter-gateway/internal/observability"
	"github.com/lexiqai/interpreter-gateway/internal/translation"
)

// Coordinator issues translation requests and applies only the response to
// the latest one. Older responses, successful or not, are discarded.
type Coordinator struct {
	store   *Store
	backend translation.Backend
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders wg.Add against Close
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewCoordinator creates a coordinator. timeout bounds each backend call.
func NewCoordinator(store *Store, backend translation.Backend, timeout time.Duration, now func() time.Time, logger zerolog.Logger, metrics *observability.Metrics) *Coordinator {
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:   store,
		backend: backend,
		timeout: timeout,
		now:     now,
		logger:  logger.With().Str("component", "coordinator").Logger(),
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit issues a request for text and returns its sequence ID. The backend
// is called asynchronously; submissions after Close return 0.
func (c *Coordinator) Submit(text string, pair language.Pair) uint64 {
	return c.submit(text, func(State) (language.Pair, bool) {
		return pair, true
	})
}

// SubmitInput issues a request for text under the current languages, but only
// while text is still the current input. The check and the sequence ID are
// taken under one store lock, so a Clear or language change cannot slip in
// between. It returns 0 when the text is stale.
func (c *Coordinator) SubmitInput(text string) uint64 {
	return c.submit(text, func(st State) (language.Pair, bool) {
		return st.Languages, st.Input == text
	})
}

func (c *Coordinator) submit(text string, accept func(State) (language.Pair, bool)) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}

	var pair language.Pair
	id := c.store.issue(func(st *State) bool {
		p, ok := accept(*st)
		if !ok {
			return false
		}
		pair = p
		st.Translating = true
		st.Err = nil
		return true
	})
	if id == 0 {
		c.logger.Debug().Int("chars", len(text)).Msg("Dropping stale transcript")
		return 0
	}
	req := translation.Request{ID: id, Text: text, Languages: pair}

	c.logger.Debug().
		Uint64("request_id", id).
		Str("source", string(pair.Source)).
		Str("target", string(pair.Target)).
		Int("chars", len(text)).
		Msg("Submitting translation")

	c.wg.Add(1)
	go c.run(req)
	return id
}

func (c *Coordinator) run(req translation.Request) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, err := c.backend.Translate(ctx, req)
	latency := time.Since(start)

	// Shutting down: nobody is watching the state any more.
	if c.ctx.Err() != nil {
		return
	}

	applied := c.store.mutateLatest(req.ID, func(st *State, log *conversation.Log) {
		st.Translating = false
		if err != nil {
			st.Err = &Failure{
				Kind:    FailureKind(translation.KindOf(err)),
				Message: translation.MessageOf(err),
			}
			return
		}
		st.Translation = out
		log.Append(conversation.NewEntry(req.Text, out, req.Languages, c.now()))
	})

	switch {
	case !applied:
		c.metrics.RecordTranslation("superseded", latency)
		c.logger.Debug().Uint64("request_id", req.ID).Err(err).Msg("Discarding superseded translation")
	case err != nil:
		c.metrics.RecordTranslation("error", latency)
		c.metrics.RecordError(string(translation.KindOf(err)), "translation")
		c.logger.Warn().Uint64("request_id", req.ID).Err(err).Dur("latency", latency).Msg("Translation failed")
	default:
		c.metrics.RecordTranslation("success", latency)
		c.logger.Debug().Uint64("request_id", req.ID).Dur("latency", latency).Msg("Translation applied")
	}
}

// Close cancels in-flight backend calls and waits for them to return.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
