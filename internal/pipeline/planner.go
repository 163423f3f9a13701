package pipeline

import (
	"regexp"
	"strings"

	"github.com/datadesk/retail-copilot/internal/domain"
	"github.com/datadesk/retail-copilot/internal/vocab"
)

var (
	dateRe      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	dateRangeRe = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s*(?:to|through|until|-)\s*(\d{4}-\d{2}-\d{2})`)
)

// BuildPlan extracts date ranges, category filters, and a KPI hint from
// the question and retrieved evidence. It runs for every mode and never
// fails; unresolved fields are simply omitted.
//
// Date precedence: named periods in the question (via the alias table)
// win, then explicit ranges in the question, then dates mentioned only
// in the evidence.
func BuildPlan(question string, evidence []domain.Evidence, v *vocab.Vocabulary) domain.Plan {
	lowered := strings.ToLower(question)
	plan := domain.Plan{}

	plan.Range = v.ResolvePeriod(lowered)
	if plan.Range == nil {
		plan.Range = explicitRange(question)
	}
	if plan.Range == nil {
		plan.Range = evidenceRange(evidence)
	}

	combined := question
	for _, e := range evidence {
		combined += " " + e.Text
	}
	plan.Categories = v.MatchCategories(combined)
	plan.KPI = v.MatchKPI(lowered)

	return plan
}

// explicitRange parses a literal "YYYY-MM-DD to YYYY-MM-DD" range from
// the question text.
func explicitRange(question string) *domain.DateRange {
	m := dateRangeRe.FindStringSubmatch(question)
	if m == nil {
		return nil
	}
	return &domain.DateRange{Start: m[1], End: m[2]}
}

// evidenceRange falls back to dates mentioned in retrieved text. Two or
// more dates bound the range; a single date collapses to one day.
func evidenceRange(evidence []domain.Evidence) *domain.DateRange {
	var dates []string
	for _, e := range evidence {
		dates = append(dates, dateRe.FindAllString(e.Text, -1)...)
		if len(dates) >= 2 {
			break
		}
	}
	switch len(dates) {
	case 0:
		return nil
	case 1:
		return &domain.DateRange{Start: dates[0], End: dates[0]}
	default:
		return &domain.DateRange{Start: dates[0], End: dates[1]}
	}
}
