package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/datadesk/retail-copilot/internal/domain"
)

// traceSchema defines the trace event table. The (question_id, seq_no)
// uniqueness mirrors the append-only, sequence-numbered trace contract.
const traceSchema = `
CREATE TABLE IF NOT EXISTS trace_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL DEFAULT '',
	question_id TEXT NOT NULL,
	seq_no      INTEGER NOT NULL,
	step        TEXT NOT NULL,
	detail_json TEXT NOT NULL DEFAULT '{}',
	created_at  INTEGER NOT NULL,
	UNIQUE(run_id, question_id, seq_no)
);
CREATE INDEX IF NOT EXISTS idx_trace_question ON trace_events(question_id, seq_no);
`

// StoreSink persists trace events to a SQLite table. Safe for
// concurrent use; SQLite serializes the single writer.
type StoreSink struct {
	db    *sql.DB
	runID string
	mu    sync.Mutex
}

// NewStoreSink prepares the trace table on db and returns a sink
// stamping every event with runID.
func NewStoreSink(db *sql.DB, runID string) (*StoreSink, error) {
	if _, err := db.ExecContext(context.Background(), traceSchema); err != nil {
		return nil, fmt.Errorf("create trace schema: %w", err)
	}
	return &StoreSink{db: db, runID: runID}, nil
}

// Append implements Sink.
func (s *StoreSink) Append(ctx context.Context, questionID string, ev domain.TraceEvent) error {
	detail, err := json.Marshal(ev.Detail)
	if err != nil {
		return fmt.Errorf("marshal trace detail: %w", err)
	}

	const q = `INSERT INTO trace_events (run_id, question_id, seq_no, step, detail_json, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, q, s.runID, questionID, ev.Seq, ev.Step, string(detail), time.Now().Unix()); err != nil {
		return fmt.Errorf("append trace event: %w", err)
	}
	return nil
}

// List returns the persisted events for a question in sequence order.
// Only used by tooling and tests; the pipeline never reads traces back.
func (s *StoreSink) List(ctx context.Context, questionID string) ([]domain.TraceEvent, error) {
	const q = `SELECT seq_no, step, detail_json FROM trace_events
WHERE run_id = ? AND question_id = ?
ORDER BY seq_no ASC`

	rows, err := s.db.QueryContext(ctx, q, s.runID, questionID)
	if err != nil {
		return nil, fmt.Errorf("list trace events: %w", err)
	}
	defer rows.Close()

	var events []domain.TraceEvent
	for rows.Next() {
		var (
			ev     domain.TraceEvent
			detail string
		)
		if err := rows.Scan(&ev.Seq, &ev.Step, &detail); err != nil {
			return nil, fmt.Errorf("scan trace event: %w", err)
		}
		if err := json.Unmarshal([]byte(detail), &ev.Detail); err != nil {
			return nil, fmt.Errorf("decode trace detail: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
