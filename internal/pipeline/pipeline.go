// Package pipeline implements the question-answering pipeline: routing,
// retrieval, planning, query generation, execution, validation, bounded
// repair, and synthesis. Every run terminates with a typed Answer.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/datadesk/retail-copilot/internal/config"
	"github.com/datadesk/retail-copilot/internal/domain"
	"github.com/datadesk/retail-copilot/internal/trace"
	"github.com/datadesk/retail-copilot/internal/vocab"
)

// Retriever is the document-retrieval collaborator.
type Retriever interface {
	Retrieve(query string, k int) []domain.Evidence
}

// Options carries the tunable constants for a pipeline instance.
type Options struct {
	RetrievalK int
	MaxRepairs int
	TopN       int
	CostRatio  float64
	Confidence config.ConfidenceWeights
}

// Pipeline answers questions. It holds only read-only collaborators and
// is safe to share across concurrent runs; all per-question state lives
// in the ExecutionState constructed by Answer.
type Pipeline struct {
	executor  *Executor
	generator *Generator
	retriever Retriever
	vocab     *vocab.Vocabulary
	opts      Options
	logger    *slog.Logger
}

// New wires a pipeline. A nil logger falls back to slog.Default.
func New(store Store, retriever Retriever, v *vocab.Vocabulary, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		executor:  NewExecutor(store),
		generator: NewGenerator(opts.TopN, opts.CostRatio),
		retriever: retriever,
		vocab:     v,
		opts:      opts,
		logger:    logger,
	}
}

// Answer runs the full pipeline for one question. It never returns an
// error: failures degrade the answer (lower confidence, evidence-based
// value) rather than aborting, and every step lands in the trace.
func (p *Pipeline) Answer(ctx context.Context, q domain.Question, rec *trace.Recorder) domain.Answer {
	if rec == nil {
		rec = trace.NewRecorder(q.ID, nil, p.logger)
	}

	hint, err := domain.ParseFormatHint(q.FormatHint)
	if err != nil {
		// Malformed hints degrade to free-form output.
		p.logger.Warn("unparseable format hint",
			"question_id", q.ID,
			"hint", q.FormatHint,
		)
		hint = domain.FormatHint{Raw: q.FormatHint}
	}

	st := &domain.ExecutionState{Question: q}

	st.Mode = Route(q.Text)
	rec.Event(ctx, domain.StepRoute, map[string]any{"mode": string(st.Mode)})

	if st.Mode != domain.ModeSQL {
		st.Evidence = p.retriever.Retrieve(q.Text, p.opts.RetrievalK)
		ids := make([]string, len(st.Evidence))
		for i, e := range st.Evidence {
			ids[i] = e.ChunkID
		}
		rec.Event(ctx, domain.StepRetrieve, map[string]any{
			"k":      p.opts.RetrievalK,
			"chunks": ids,
		})
	}

	st.Plan = BuildPlan(q.Text, st.Evidence, p.vocab)
	rec.Event(ctx, domain.StepPlan, planDetail(st.Plan))

	if st.Mode != domain.ModeRAG {
		p.runQueryPath(ctx, st, hint, rec)
	}

	ans := p.synthesize(st, hint)
	rec.Event(ctx, domain.StepSynthesize, map[string]any{
		"confidence": ans.Confidence,
		"citations":  len(ans.Citations),
		"exhausted":  st.Exhausted,
	})

	p.logger.Info("question answered",
		"question_id", q.ID,
		"mode", string(st.Mode),
		"repairs", st.RepairCount,
		"confidence", ans.Confidence,
	)
	return ans
}

func planDetail(plan domain.Plan) map[string]any {
	d := map[string]any{
		"categories": plan.Categories,
		"kpi":        plan.KPI,
	}
	if plan.Range != nil {
		d["range"] = plan.Range.Start + ".." + plan.Range.End
	}
	return d
}
