package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/datadesk/retail-copilot/internal/config"
	"github.com/datadesk/retail-copilot/internal/domain"
	"github.com/datadesk/retail-copilot/internal/trace"
	"github.com/datadesk/retail-copilot/internal/vocab"
)

// scriptedStore replays canned responses in order; the last response
// repeats once the script runs out. It records every query it receives.
type scriptedStore struct {
	queries []string
	script  []scriptedReply
}

type scriptedReply struct {
	rs  *domain.ResultSet
	err error
}

func (s *scriptedStore) Query(_ context.Context, query string) (*domain.ResultSet, error) {
	s.queries = append(s.queries, query)
	i := len(s.queries) - 1
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	r := s.script[i]
	return r.rs, r.err
}

func newTestPipeline(store Store) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	return New(store, nil, vocab.Default(), Options{
		RetrievalK: cfg.RetrievalK,
		MaxRepairs: cfg.MaxRepairs,
		TopN:       cfg.TopN,
		CostRatio:  cfg.CostRatio,
		Confidence: cfg.Confidence,
	}, logger)
}

func runQuery(t *testing.T, p *Pipeline, question string, plan domain.Plan, hintStr string) *domain.ExecutionState {
	t.Helper()
	hint, err := domain.ParseFormatHint(hintStr)
	if err != nil && hintStr != "" {
		t.Fatalf("ParseFormatHint(%q): %v", hintStr, err)
	}
	st := &domain.ExecutionState{
		Question: domain.Question{ID: "q1", Text: question},
		Mode:     domain.ModeSQL,
		Plan:     plan,
	}
	rec := trace.NewRecorder("q1", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.runQueryPath(context.Background(), st, hint, rec)
	return st
}

func TestRepairExhaustsAfterCap(t *testing.T) {
	// Two rows against a scalar hint: wrap_scalar fires, the store keeps
	// returning two rows, and the loop must stop after two repairs.
	twoRows := &domain.ResultSet{
		Columns: []string{"product", "revenue"},
		Rows: []domain.Row{
			{"product": "Chai", "revenue": 100.0},
			{"product": "Chang", "revenue": 90.0},
		},
	}
	store := &scriptedStore{script: []scriptedReply{{rs: twoRows}}}
	p := newTestPipeline(store)

	st := runQuery(t, p, "Top 3 products by revenue all time.", domain.Plan{}, "float")

	if !st.Exhausted {
		t.Fatal("state not exhausted")
	}
	if st.RepairCount != 2 {
		t.Fatalf("RepairCount = %d, want 2", st.RepairCount)
	}
	if got := len(store.queries); got != 3 {
		t.Fatalf("execution cycles = %d, want 3 (initial + 2 repairs)", got)
	}
	// The degraded state keeps the last evidence for synthesis.
	if st.Result == nil || len(st.Result.Rows) != 2 {
		t.Fatalf("last result not preserved: %+v", st.Result)
	}
}

func TestRepairWidensOnEmptyResult(t *testing.T) {
	empty := &domain.ResultSet{Columns: []string{"revenue"}}
	oneRow := &domain.ResultSet{
		Columns: []string{"revenue"},
		Rows:    []domain.Row{{"revenue": 1234.5}},
	}
	store := &scriptedStore{script: []scriptedReply{{rs: empty}, {rs: oneRow}}}
	p := newTestPipeline(store)

	plan := domain.Plan{
		Range:      &domain.DateRange{Start: "2013-06-01", End: "2013-06-30"},
		Categories: []string{"Beverages"},
		KPI:        domain.KPIRevenue,
	}
	st := runQuery(t, p, "Total revenue for Beverages during summer 1997?", plan, "float")

	if st.Exhausted {
		t.Fatal("state exhausted, want repaired")
	}
	if st.RepairCount != 1 {
		t.Fatalf("RepairCount = %d, want 1", st.RepairCount)
	}
	if !st.LastValidation.Valid() {
		t.Fatalf("last validation = %+v, want valid", st.LastValidation)
	}
	if len(store.queries) != 2 {
		t.Fatalf("execution cycles = %d, want 2", len(store.queries))
	}
	if !strings.Contains(store.queries[0], "BETWEEN") {
		t.Fatalf("first query missing date filter:\n%s", store.queries[0])
	}
	if strings.Contains(store.queries[1], "BETWEEN") {
		t.Fatalf("widened query still has date filter:\n%s", store.queries[1])
	}
}

func TestRepairFallsBackToAlternateTemplate(t *testing.T) {
	oneRow := &domain.ResultSet{
		Columns: []string{"revenue"},
		Rows:    []domain.Row{{"revenue": 42.0}},
	}
	store := &scriptedStore{script: []scriptedReply{
		{err: errors.New("no such table: products")},
		{rs: oneRow},
	}}
	p := newTestPipeline(store)

	plan := domain.Plan{Categories: []string{"Beverages"}, KPI: domain.KPIRevenue}
	st := runQuery(t, p, "Top 3 products by revenue for Beverages?", plan, "float")

	if st.Intent != IntentCategoryRevenue {
		t.Fatalf("intent after fallback = %q, want %q", st.Intent, IntentCategoryRevenue)
	}
	if st.RepairCount != 1 {
		t.Fatalf("RepairCount = %d, want 1", st.RepairCount)
	}
	if !st.LastValidation.Valid() {
		t.Fatalf("last validation = %+v, want valid", st.LastValidation)
	}
}

func TestRepairStopsWhenNoAlternateExists(t *testing.T) {
	store := &scriptedStore{script: []scriptedReply{
		{err: errors.New("disk I/O error")},
	}}
	p := newTestPipeline(store)

	// Only the AOV template matches; once it is disqualified nothing
	// else can bind and the run must end exhausted without more cycles.
	plan := domain.Plan{Range: &domain.DateRange{Start: "2017-01-01", End: "2017-12-31"}, KPI: domain.KPIAOV}
	st := runQuery(t, p, "What was the AOV during 1997?", plan, "float")

	if !st.Exhausted {
		t.Fatal("state not exhausted")
	}
	if len(store.queries) != 1 {
		t.Fatalf("execution cycles = %d, want 1", len(store.queries))
	}
}

func TestRepairUnsupportedIntentSkipsExecution(t *testing.T) {
	store := &scriptedStore{script: []scriptedReply{{rs: &domain.ResultSet{}}}}
	p := newTestPipeline(store)

	st := runQuery(t, p, "Tell me a story.", domain.Plan{}, "float")

	if st.Intent != IntentUnsupported {
		t.Fatalf("intent = %q, want %q", st.Intent, IntentUnsupported)
	}
	if len(store.queries) != 0 {
		t.Fatalf("store queried %d times for unsupported intent", len(store.queries))
	}
	if st.LastErr == "" {
		t.Fatal("LastErr not set for unsupported intent")
	}
}

func TestWrapScalar(t *testing.T) {
	got := wrapScalar("SELECT revenue FROM t;", domain.FormatHint{Kind: domain.HintFloat})
	want := "SELECT ROUND(AVG(val), 2) AS val FROM (SELECT revenue FROM t) AS sub;"
	if got != want {
		t.Fatalf("wrapScalar = %q, want %q", got, want)
	}

	got = wrapScalar("SELECT n FROM t;", domain.FormatHint{Kind: domain.HintInt})
	if !strings.HasPrefix(got, "SELECT ROUND(AVG(val)) AS val") {
		t.Fatalf("int wrap = %q", got)
	}
}

func TestRequoteIdentifiers(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`SELECT * FROM [Order Details];`, `SELECT * FROM "Order Details";`},
		{`SELECT * FROM Order Details od;`, `SELECT * FROM "Order Details" od;`},
		{`SELECT * FROM "Order Details";`, `SELECT * FROM "Order Details";`},
	}
	for _, tt := range tests {
		if got := requoteIdentifiers(tt.in); got != tt.want {
			t.Errorf("requoteIdentifiers(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
