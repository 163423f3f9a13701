package pipeline

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/datadesk/retail-copilot/internal/domain"
)

var (
	genericDaysRe   = regexp.MustCompile(`(?i)(\d{1,3})\s*days`)
	genericNumberRe = regexp.MustCompile(`\d+\.\d+|\d+`)
)

// knownTables are the data-store tables a generated query may cite,
// with lowercase view spellings normalized to the canonical names.
var knownTables = map[string]string{
	"orders":        "Orders",
	"order details": "Order Details",
	"order_items":   "Order Details",
	"products":      "Products",
	"customers":     "Customers",
	"categories":    "Categories",
	"suppliers":     "Suppliers",
}

// synthesize coerces the final evidence into the declared type, computes
// the confidence score, and assembles citations. It always produces an
// Answer, even after exhausted repair, using the best available partial
// evidence and a lower confidence.
func (p *Pipeline) synthesize(st *domain.ExecutionState, hint domain.FormatHint) domain.Answer {
	rowsUsable := st.Mode != domain.ModeRAG && st.Result != nil && st.LastValidation.Valid()

	var (
		value       any
		hasValue    bool
		explanation string
		sql         string
	)

	if rowsUsable {
		value, hasValue = coerceRows(st.Result, hint)
		sql = st.SQL
		explanation = rowsExplanation(value, len(st.Result.Rows))
	} else {
		value, hasValue = p.extractFromEvidence(st.Evidence, hint)
		explanation = evidenceExplanation(st, hasValue)
	}

	execClean := rowsUsable || (st.SQL != "" && st.LastErr == "" && st.Result != nil)
	conf := p.confidence(hasValue, execClean, st.RepairCount)

	return domain.Answer{
		ID:          st.Question.ID,
		Value:       value,
		SQL:         sql,
		Confidence:  conf,
		Explanation: explanation,
		Citations:   p.citations(st, rowsUsable),
	}
}

// confidence implements the documented heuristic. The weights are
// integrator-supplied constants; the score is clamped to [base, max]
// and monotone in each of the three conditions.
func (p *Pipeline) confidence(hasValue, execClean bool, repairs int) float64 {
	w := p.opts.Confidence
	conf := w.Base
	if hasValue {
		conf += w.HasRows
	}
	if execClean {
		conf += w.CleanRun
	}
	if repairs == 0 {
		conf += w.NoRepair
	}
	if conf > w.Max {
		conf = w.Max
	}
	if conf < w.Base {
		conf = w.Base
	}
	return math.Round(conf*100) / 100
}

// citations unions the retrieved chunk identifiers actually used with
// the tables referenced by the final query, sorted for determinism.
func (p *Pipeline) citations(st *domain.ExecutionState, rowsUsable bool) []string {
	set := map[string]bool{}
	for _, e := range st.Evidence {
		set[e.ChunkID] = true
	}
	if rowsUsable {
		for _, t := range tablesReferenced(st.SQL) {
			set[t] = true
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// tablesReferenced scans query text for known table names.
func tablesReferenced(query string) []string {
	if query == "" {
		return nil
	}
	lowered := strings.ToLower(query)
	set := map[string]bool{}
	for needle, canonical := range knownTables {
		if strings.Contains(lowered, needle) {
			set[canonical] = true
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// coerceRows maps validated rows into the exact declared type.
func coerceRows(rs *domain.ResultSet, hint domain.FormatHint) (any, bool) {
	switch hint.Kind {
	case domain.HintInt:
		f, ok := firstNumericCell(rs)
		if !ok {
			return int64(0), false
		}
		return int64(math.Round(f)), true
	case domain.HintFloat:
		f, ok := firstNumericCell(rs)
		if !ok {
			return 0.0, false
		}
		return round2(f), true
	case domain.HintObject:
		if len(rs.Rows) == 0 {
			return map[string]any{}, false
		}
		return mapRow(rs.Rows[0], rs.Columns, hint.Fields), true
	case domain.HintList:
		out := make([]any, 0, len(rs.Rows))
		for _, row := range rs.Rows {
			out = append(out, mapRow(row, rs.Columns, hint.Fields))
		}
		return out, len(out) > 0
	default:
		// Free-form: hand back the raw rows.
		return rs.Rows, len(rs.Rows) > 0
	}
}

// mapRow maps one row's columns onto the declared fields by name first,
// then position, casting each value to the declared primitive type.
func mapRow(row domain.Row, columns []string, fields []domain.Field) map[string]any {
	obj := make(map[string]any, len(fields))
	for i, f := range fields {
		col, ok := findColumn(columns, f.Name, i)
		var v any
		if ok {
			v = row[col]
		}
		obj[f.Name] = castField(v, f.Type)
	}
	return obj
}

func castField(v any, t domain.FieldType) any {
	switch t {
	case domain.FieldInt:
		if f, ok := toFloat(v); ok {
			return int64(math.Round(f))
		}
		return int64(0)
	case domain.FieldFloat:
		if f, ok := toFloat(v); ok {
			return round2(f)
		}
		return 0.0
	default:
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	}
}

// firstNumericCell walks rows in order, columns in declaration order,
// and returns the first numeric-coercible cell.
func firstNumericCell(rs *domain.ResultSet) (float64, bool) {
	for _, row := range rs.Rows {
		for _, col := range rs.Columns {
			if f, ok := toFloat(row[col]); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// extractFromEvidence pulls a typed value out of retrieved text. A
// domain-specific rule (category return-window phrasing) is preferred
// over the generic first-number rule when a known category appears in
// the evidence.
func (p *Pipeline) extractFromEvidence(evidence []domain.Evidence, hint domain.FormatHint) (any, bool) {
	var b strings.Builder
	for _, e := range evidence {
		b.WriteString(e.Text)
		b.WriteString(" ")
	}
	combined := b.String()

	switch hint.Kind {
	case domain.HintInt:
		if m, ok := p.categoryDaysMatch(combined); ok {
			return m, true
		}
		if m := genericDaysRe.FindStringSubmatch(combined); m != nil {
			n, _ := strconv.ParseInt(m[1], 10, 64)
			return n, true
		}
		if m := genericNumberRe.FindString(combined); m != "" {
			f, _ := strconv.ParseFloat(m, 64)
			return int64(math.Round(f)), true
		}
		return int64(0), false
	case domain.HintFloat:
		if m := genericNumberRe.FindString(combined); m != "" {
			f, _ := strconv.ParseFloat(m, 64)
			return round2(f), true
		}
		return 0.0, false
	case domain.HintObject:
		return map[string]any{}, false
	case domain.HintList:
		return []any{}, false
	default:
		text := strings.TrimSpace(combined)
		if len(text) > 500 {
			text = text[:500]
		}
		return text, text != ""
	}
}

// categoryDaysMatch applies the domain extraction rule: a known
// category followed by an "unopened ... N days" return-window phrase.
func (p *Pipeline) categoryDaysMatch(text string) (int64, bool) {
	for _, cat := range p.vocab.Categories {
		re, err := regexp.Compile(`(?is)` + regexp.QuoteMeta(cat) + `.*?unopened.*?(\d{1,3})\s*days`)
		if err != nil {
			continue
		}
		if m := re.FindStringSubmatch(text); m != nil {
			n, _ := strconv.ParseInt(m[1], 10, 64)
			return n, true
		}
	}
	return 0, false
}

func rowsExplanation(value any, rowCount int) string {
	switch v := value.(type) {
	case []any:
		return fmt.Sprintf("Extracted %d results from the sales database.", len(v))
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("Retrieved one record with fields %s.", strings.Join(keys, ", "))
	default:
		return fmt.Sprintf("Computed scalar value from %d database rows.", rowCount)
	}
}

func evidenceExplanation(st *domain.ExecutionState, hasValue bool) string {
	switch {
	case st.Mode == domain.ModeRAG && hasValue:
		return "Answer extracted from the policy documents."
	case st.Exhausted:
		return "Query repair attempts were exhausted; answered from retrieved documents instead."
	case st.Intent == IntentUnsupported:
		return "No query template matched; answered from retrieved documents."
	case hasValue:
		return "Answer extracted from retrieved documents."
	default:
		return "No supporting evidence found; returning a default value."
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
