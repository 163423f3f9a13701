package pipeline

import (
	"strings"

	"github.com/datadesk/retail-copilot/internal/domain"
)

// Generator maps (question, plan) to an executable SQL string via the
// fixed template registry.
type Generator struct {
	topN      int
	costRatio float64
}

// NewGenerator creates a generator with the configured constants.
func NewGenerator(topN int, costRatio float64) *Generator {
	return &Generator{topN: topN, costRatio: costRatio}
}

// Generate selects the first template in priority order whose triggers
// match and whose required parameters can all be bound, then returns
// the normalized query. When no template qualifies it returns
// IntentUnsupported with an empty query rather than a malformed one.
func (g *Generator) Generate(question string, plan domain.Plan) (intent, query string) {
	return g.GenerateExcluding(question, plan, nil)
}

// GenerateExcluding is Generate with a set of intents to skip. The
// repair controller uses it to fall back to an alternate template.
func (g *Generator) GenerateExcluding(question string, plan domain.Plan, exclude map[string]bool) (intent, query string) {
	lowered := strings.ToLower(question)
	in := buildInput{
		Range:     plan.Range,
		TopN:      g.topN,
		CostRatio: g.costRatio,
	}
	if len(plan.Categories) > 0 {
		in.Category = plan.Categories[0]
	}

	for i := range registry {
		t := &registry[i]
		if exclude[t.intent] {
			continue
		}
		if !t.matches(lowered, plan.KPI) {
			continue
		}
		if !t.bindable(in) {
			continue
		}
		return t.intent, NormalizeSQL(t.build(in))
	}
	return IntentUnsupported, ""
}

// NormalizeSQL applies the unconditional syntactic post-conditions:
// trimmed, starts with the retrieval keyword, ends with the statement
// terminator. Applied identically on first generation and on every
// repair regeneration.
func NormalizeSQL(query string) string {
	q := strings.TrimSpace(query)
	if q == "" {
		return q
	}
	if !strings.HasPrefix(strings.ToLower(q), "select") {
		q = "SELECT " + q
	}
	if !strings.HasSuffix(q, ";") {
		q += ";"
	}
	return q
}
