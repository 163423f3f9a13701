package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/datadesk/retail-copilot/internal/domain"
)

// FileSink writes one JSON trace file per question under a directory.
// The file is rewritten on each append so a crash mid-run still leaves
// every completed step on disk.
type FileSink struct {
	dir string

	mu     sync.Mutex
	events map[string][]domain.TraceEvent
}

// NewFileSink creates dir if needed and returns a file sink.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	return &FileSink{dir: dir, events: make(map[string][]domain.TraceEvent)}, nil
}

type fileEvent struct {
	Seq    int64          `json:"seq"`
	Step   string         `json:"step"`
	Detail map[string]any `json:"detail"`
}

// Append implements Sink.
func (f *FileSink) Append(_ context.Context, questionID string, ev domain.TraceEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events[questionID] = append(f.events[questionID], ev)

	out := make([]fileEvent, 0, len(f.events[questionID]))
	for _, e := range f.events[questionID] {
		out = append(out, fileEvent{Seq: e.Seq, Step: e.Step, Detail: e.Detail})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}

	path := filepath.Join(f.dir, fmt.Sprintf("trace_%s.json", sanitize(questionID)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write trace file: %w", err)
	}
	return nil
}

// sanitize keeps question IDs filesystem-safe.
func sanitize(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
