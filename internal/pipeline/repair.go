package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/datadesk/retail-copilot/internal/domain"
	"github.com/datadesk/retail-copilot/internal/trace"
)

// Repair remedies, one per failure kind.
const (
	remedyRequote    = "requote_identifiers"
	remedyAlternate  = "alternate_template"
	remedyWrapScalar = "wrap_scalar"
	remedyWidenRange = "drop_date_filter"
)

// runQueryPath drives the generate -> execute -> validate loop with the
// bounded repair state machine: attempt 0, 1, 2, then Exhausted. The
// total number of execution cycles is at most one initial run plus
// MaxRepairs repairs. Exhaustion is terminal but not fatal: the state
// keeps whatever evidence the last cycle produced and synthesis
// proceeds degraded.
func (p *Pipeline) runQueryPath(ctx context.Context, st *domain.ExecutionState, hint domain.FormatHint, rec *trace.Recorder) {
	plan := st.Plan
	exclude := map[string]bool{}

	intent, query := p.generator.Generate(st.Question.Text, plan)
	st.Intent = intent
	if intent == IntentUnsupported {
		rec.Event(ctx, domain.StepGenerate, map[string]any{"intent": intent, "attempt": 0})
		st.LastErr = domain.ErrUnsupportedIntent.Message
		return
	}
	st.SQL = query

	attempt := 0
	for {
		rec.Event(ctx, domain.StepGenerate, map[string]any{
			"intent":  st.Intent,
			"sql":     st.SQL,
			"attempt": attempt,
		})

		rs, vres := p.executor.Execute(ctx, st.SQL)
		if vres.Status == domain.ValidationExecutionFailed {
			st.Result = nil
			st.LastErr = vres.Cause
			rec.Event(ctx, domain.StepExecute, map[string]any{
				"ok":      false,
				"error":   vres.Cause,
				"attempt": attempt,
			})
		} else {
			st.Result = rs
			st.LastErr = ""
			rec.Event(ctx, domain.StepExecute, map[string]any{
				"ok":      true,
				"rows":    len(rs.Rows),
				"attempt": attempt,
			})
			vres = Validate(rs, hint)
		}

		rec.Event(ctx, domain.StepValidate, map[string]any{
			"status":  string(vres.Status),
			"detail":  validationDetail(vres),
			"attempt": attempt,
		})

		if vres.Valid() {
			st.LastValidation = vres
			return
		}
		st.LastValidation = vres

		if attempt >= p.opts.MaxRepairs {
			st.Exhausted = true
			rec.Event(ctx, domain.StepRepair, map[string]any{
				"remedy":  "exhausted",
				"error":   domain.ErrRepairExhausted.Message,
				"attempt": attempt,
			})
			return
		}

		remedy, ok := p.applyRemedy(st, &plan, exclude, vres, hint, attempt)
		attempt++
		st.RepairCount = attempt
		rec.Event(ctx, domain.StepRepair, map[string]any{
			"remedy":  remedy,
			"attempt": attempt,
		})
		if !ok {
			// No alternate template could be bound; nothing left to try.
			st.Exhausted = true
			return
		}
	}
}

// applyRemedy mutates the query (and possibly the working plan) with
// one deterministic remedy chosen by failure kind. Returns the remedy
// name and whether a runnable query remains.
func (p *Pipeline) applyRemedy(st *domain.ExecutionState, plan *domain.Plan, exclude map[string]bool, vres domain.ValidationResult, hint domain.FormatHint, attempt int) (string, bool) {
	switch {
	case vres.Status == domain.ValidationExecutionFailed:
		// First pass: identifier quoting is the most common store
		// rejection. Second pass: abandon the template entirely.
		if attempt == 0 {
			repaired := requoteIdentifiers(st.SQL)
			if repaired != st.SQL {
				st.SQL = NormalizeSQL(repaired)
				return remedyRequote, true
			}
		}
		return p.alternateTemplate(st, plan, exclude)

	case vres.Empty:
		// Empty result set: widen the query by dropping the date
		// filter, then regenerate.
		plan.Range = nil
		intent, query := p.generator.GenerateExcluding(st.Question.Text, *plan, exclude)
		if intent == IntentUnsupported {
			return remedyWidenRange, false
		}
		st.Intent = intent
		st.SQL = query
		return remedyWidenRange, true

	case hint.Kind == domain.HintInt || hint.Kind == domain.HintFloat:
		// A scalar was expected but rows exist: coerce by wrapping
		// rather than regenerating.
		st.SQL = wrapScalar(st.SQL, hint)
		return remedyWrapScalar, true

	default:
		return p.alternateTemplate(st, plan, exclude)
	}
}

// alternateTemplate disqualifies the current intent and regenerates
// from the rest of the registry.
func (p *Pipeline) alternateTemplate(st *domain.ExecutionState, plan *domain.Plan, exclude map[string]bool) (string, bool) {
	exclude[st.Intent] = true
	intent, query := p.generator.GenerateExcluding(st.Question.Text, *plan, exclude)
	if intent == IntentUnsupported {
		return remedyAlternate, false
	}
	st.Intent = intent
	st.SQL = query
	return remedyAlternate, true
}

// wrapScalar aggregates an arbitrary result down to one numeric cell.
func wrapScalar(query string, hint domain.FormatHint) string {
	inner := strings.TrimSuffix(strings.TrimSpace(query), ";")
	agg := "ROUND(AVG(val), 2)"
	if hint.Kind == domain.HintInt {
		agg = "ROUND(AVG(val))"
	}
	return NormalizeSQL(fmt.Sprintf("SELECT %s AS val FROM (%s) AS sub", agg, inner))
}

var bareOrderDetailsRe = regexp.MustCompile(`(?i)(FROM|JOIN)\s+Order Details`)

// requoteIdentifiers fixes the common identifier-quoting rejections:
// bracket quoting and the unquoted two-word table name.
func requoteIdentifiers(query string) string {
	q := strings.ReplaceAll(query, "[Order Details]", `"Order Details"`)
	return bareOrderDetailsRe.ReplaceAllString(q, `$1 "Order Details"`)
}

func validationDetail(v domain.ValidationResult) string {
	switch v.Status {
	case domain.ValidationValid:
		return "ok"
	case domain.ValidationExecutionFailed:
		return v.Cause
	default:
		return fmt.Sprintf("expected %s, got %s", v.Expected, v.Actual)
	}
}
