// Package vocab holds the read-only domain vocabulary: known product
// categories, KPI trigger phrases, and the legacy-period alias table.
//
// The vocabulary is loaded once at process start and never mutated, so a
// single instance is safe to share across concurrent pipeline runs.
package vocab

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/datadesk/retail-copilot/internal/domain"
)

//go:embed vocab.yaml
var defaultVocabYAML []byte

// KPIRule maps a KPI name to the phrases that trigger it. Phrases are
// matched case-insensitively, first rule wins.
type KPIRule struct {
	Name    string   `yaml:"name"`
	Phrases []string `yaml:"phrases"`
}

// PeriodAlias maps a named calendar period from the question vocabulary
// to a concrete date range known to contain data.
type PeriodAlias struct {
	Match string `yaml:"match"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Vocabulary is the full domain vocabulary. Immutable after load.
type Vocabulary struct {
	Categories    []string      `yaml:"categories"`
	KPIs          []KPIRule     `yaml:"kpis"`
	PeriodAliases []PeriodAlias `yaml:"period_aliases"`
}

// Default returns the embedded default vocabulary.
func Default() *Vocabulary {
	v, err := parse(defaultVocabYAML)
	if err != nil {
		// The embedded file is validated by tests; a parse failure here
		// is a build defect, not a runtime condition.
		panic(fmt.Sprintf("embedded vocabulary invalid: %v", err))
	}
	return v
}

// Load reads a vocabulary YAML file. An empty path returns the embedded
// default.
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, domain.WrapCopilotError(domain.ErrVocabInvalid.Code, "parse vocabulary YAML", err)
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

func (v *Vocabulary) validate() error {
	var problems []string

	if len(v.Categories) == 0 {
		problems = append(problems, "at least one category is required")
	}
	for i, k := range v.KPIs {
		if k.Name == "" {
			problems = append(problems, fmt.Sprintf("kpis[%d].name is empty", i))
		}
		if len(k.Phrases) == 0 {
			problems = append(problems, fmt.Sprintf("kpis[%d] has no phrases", i))
		}
	}
	for i, a := range v.PeriodAliases {
		if strings.TrimSpace(a.Match) == "" {
			problems = append(problems, fmt.Sprintf("period_aliases[%d].match is empty", i))
			continue
		}
		start, err := time.Parse("2006-01-02", a.Start)
		if err != nil {
			problems = append(problems, fmt.Sprintf("period_aliases[%d].start %q is not YYYY-MM-DD", i, a.Start))
			continue
		}
		end, err := time.Parse("2006-01-02", a.End)
		if err != nil {
			problems = append(problems, fmt.Sprintf("period_aliases[%d].end %q is not YYYY-MM-DD", i, a.End))
			continue
		}
		if end.Before(start) {
			problems = append(problems, fmt.Sprintf("period_aliases[%d] ends before it starts", i))
		}
	}

	if len(problems) > 0 {
		return &domain.CopilotError{
			Code:    domain.ErrVocabInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrVocabInvalid.Message, problems),
		}
	}
	return nil
}

// ResolvePeriod resolves a named period mentioned in lower-cased question
// text via the alias table. Aliases are checked in declaration order, so
// more specific phrases must precede their prefixes. Returns nil when no
// alias matches; callers treat that as an absent filter, not an error.
func (v *Vocabulary) ResolvePeriod(lowered string) *domain.DateRange {
	for _, a := range v.PeriodAliases {
		if strings.Contains(lowered, strings.ToLower(a.Match)) {
			return &domain.DateRange{Start: a.Start, End: a.End}
		}
	}
	return nil
}

// MatchCategories returns the known categories mentioned in the text,
// case-insensitively, sorted by declaration order.
func (v *Vocabulary) MatchCategories(text string) []string {
	lowered := strings.ToLower(text)
	var found []string
	for _, c := range v.Categories {
		if strings.Contains(lowered, strings.ToLower(c)) {
			found = append(found, c)
		}
	}
	return found
}

// MatchKPI returns the first KPI whose phrase appears in the lower-cased
// text, or "" when none match.
func (v *Vocabulary) MatchKPI(lowered string) string {
	for _, k := range v.KPIs {
		for _, p := range k.Phrases {
			if strings.Contains(lowered, strings.ToLower(p)) {
				return k.Name
			}
		}
	}
	return ""
}
