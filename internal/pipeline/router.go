package pipeline

import (
	"regexp"
	"strings"

	"github.com/datadesk/retail-copilot/internal/domain"
)

// routeRule matches when every keyword appears in the lower-cased
// question text. Rules are evaluated top to bottom; first match wins.
type routeRule struct {
	name string
	mode domain.Mode
	all  []string
}

// routeRules is the fixed-priority rule table. RAG-only patterns come
// first because policy questions often also mention quantities; the
// mixed policy+aggregate case is handled before anything else.
var routeRules = []routeRule{
	{name: "policy_return", mode: domain.ModeRAG, all: []string{"policy", "return"}},
	{name: "return_window", mode: domain.ModeRAG, all: []string{"return window"}},
	{name: "return_days", mode: domain.ModeRAG, all: []string{"return days"}},
	{name: "unopened_goods", mode: domain.ModeRAG, all: []string{"unopened"}},
	{name: "top_products", mode: domain.ModeSQL, all: []string{"top 3 products"}},
	{name: "during_summer", mode: domain.ModeHybrid, all: []string{"during", "summer"}},
	{name: "during_winter", mode: domain.ModeHybrid, all: []string{"during", "winter"}},
	{name: "aov_period", mode: domain.ModeHybrid, all: []string{"aov", "during"}},
	{name: "margin_year", mode: domain.ModeHybrid, all: []string{"margin", "customer"}},
}

var (
	aggregateTerms = []string{"top", "revenue", "total", "average", "aov", "margin", "quantity", "sum", "count"}
	policyTerms    = []string{"policy", "definition", "defined", "return window", "according to"}
	periodTerms    = []string{"during", "summer", "winter", "month", "quarter", "year"}

	yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// Route classifies a question into an execution mode. It never fails:
// when no rule matches, the fallback prefers passive retrieval over
// risking a fabricated query.
func Route(question string) domain.Mode {
	q := strings.ToLower(question)

	// A question needing both policy text and a computed figure is
	// hybrid regardless of the single-mode rules below.
	if containsAny(q, policyTerms) && containsAny(q, aggregateTerms) {
		return domain.ModeHybrid
	}

	for _, r := range routeRules {
		if containsAll(q, r.all) {
			return r.mode
		}
	}

	if containsAny(q, aggregateTerms) {
		if containsAny(q, periodTerms) || yearRe.MatchString(q) {
			return domain.ModeHybrid
		}
		return domain.ModeSQL
	}

	return domain.ModeRAG
}

func containsAll(s string, keywords []string) bool {
	for _, k := range keywords {
		if !strings.Contains(s, k) {
			return false
		}
	}
	return true
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
