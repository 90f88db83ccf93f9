package pipeline

import (
	"log/slog"
	"time"

	"github.com/xhad/paperqa/internal/types"
)

// State is a step of a single query.
type State int

const (
	StateReceived State = iota
	StateEmbeddingQuery
	StateRetrieving
	StateReranking
	StateSynthesizing
	StateAnswered
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "RECEIVED"
	case StateEmbeddingQuery:
		return "EMBEDDING_QUERY"
	case StateRetrieving:
		return "RETRIEVING"
	case StateReranking:
		return "RERANKING"
	case StateSynthesizing:
		return "SYNTHESIZING"
	case StateAnswered:
		return "ANSWERED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateAnswered || s == StateFailed
}

// tracker walks one query through its states and logs each transition.
type tracker struct {
	logger  *slog.Logger
	state   State
	start   time.Time
	observe func(State)
}

func newTracker(logger *slog.Logger, observe func(State)) *tracker {
	t := &tracker{
		logger:  logger,
		state:   StateReceived,
		start:   time.Now(),
		observe: observe,
	}
	if observe != nil {
		observe(StateReceived)
	}
	return t
}

func (t *tracker) to(next State) {
	if t.state.Terminal() {
		return
	}
	t.logger.Debug("query state", "from", t.state.String(), "to", next.String())
	t.state = next
	if t.observe != nil {
		t.observe(next)
	}
}

// fail moves to StateFailed and returns err.
func (t *tracker) fail(err error) error {
	failedIn := t.state
	t.to(StateFailed)
	t.logger.Warn("query failed",
		"state", failedIn.String(),
		"kind", kindName(err),
		"retryable", types.Retryable(err),
		"elapsed", time.Since(t.start),
		"error", err,
	)
	return err
}

func kindName(err error) string {
	if kind := types.KindOf(err); kind != nil {
		return kind.Error()
	}
	return "unknown"
}
