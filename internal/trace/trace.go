// Package trace records the per-question pipeline trace: one ordered,
// append-only event per step. The core only emits events; sinks own
// persistence and are never read back.
package trace

import (
	"context"
	"log/slog"
	"sync"

	"github.com/datadesk/retail-copilot/internal/domain"
)

// Sink receives trace events for one question. Implementations must be
// safe for concurrent use across questions; events for a single question
// arrive in sequence order from a single goroutine.
type Sink interface {
	Append(ctx context.Context, questionID string, ev domain.TraceEvent) error
}

// Recorder accumulates the trace for a single question. It is owned by
// one pipeline run and must not be shared across questions.
type Recorder struct {
	questionID string
	sink       Sink
	logger     *slog.Logger

	seq    int64
	events []domain.TraceEvent
}

// NewRecorder creates a recorder for one question. A nil sink records
// in memory only; a nil logger falls back to slog.Default.
func NewRecorder(questionID string, sink Sink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{questionID: questionID, sink: sink, logger: logger}
}

// Event appends one step event with the next sequence number. Sink
// failures are logged and swallowed: tracing never fails the pipeline.
func (r *Recorder) Event(ctx context.Context, step string, detail map[string]any) {
	r.seq++
	ev := domain.TraceEvent{Seq: r.seq, Step: step, Detail: detail}
	r.events = append(r.events, ev)

	if r.sink == nil {
		return
	}
	if err := r.sink.Append(ctx, r.questionID, ev); err != nil {
		r.logger.Warn("trace sink append failed",
			"question_id", r.questionID,
			"step", step,
			"seq", r.seq,
			"error", err,
		)
	}
}

// Events returns a copy of the recorded events in order.
func (r *Recorder) Events() []domain.TraceEvent {
	out := make([]domain.TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}

// QuestionID returns the question this recorder belongs to.
func (r *Recorder) QuestionID() string {
	return r.questionID
}

// MultiSink fans events out to several sinks. The first error is
// returned after all sinks have been offered the event.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink builds a fan-out sink; nil members are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Append implements Sink.
func (m *MultiSink) Append(ctx context.Context, questionID string, ev domain.TraceEvent) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Append(ctx, questionID, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// MemorySink collects events in memory, keyed by question. Used in
// tests and as a default when no persistence is configured.
type MemorySink struct {
	mu     sync.Mutex
	events map[string][]domain.TraceEvent
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{events: make(map[string][]domain.TraceEvent)}
}

// Append implements Sink.
func (m *MemorySink) Append(_ context.Context, questionID string, ev domain.TraceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[questionID] = append(m.events[questionID], ev)
	return nil
}

// Events returns the recorded events for a question, in append order.
func (m *MemorySink) Events(questionID string) []domain.TraceEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.events[questionID]
	out := make([]domain.TraceEvent, len(evs))
	copy(out, evs)
	return out
}
