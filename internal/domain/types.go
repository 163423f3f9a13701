// Package domain defines the core types for the retail analytics copilot.
package domain

// Mode is the execution mode chosen by the router for a question.
type Mode string

const (
	ModeRAG    Mode = "rag"
	ModeSQL    Mode = "sql"
	ModeHybrid Mode = "hybrid"
)

// Question is the immutable input to a pipeline run.
type Question struct {
	ID         string
	Text       string
	FormatHint string
}

// Evidence is one retrieved document chunk with its relevance score.
type Evidence struct {
	ChunkID string
	Source  string
	Text    string
	Score   float64
}

// DateRange is an inclusive calendar range in YYYY-MM-DD form.
type DateRange struct {
	Start string
	End   string
}

// Plan holds the constraints the planner extracted from a question and
// its retrieved evidence. Unresolved fields stay zero, never errors.
type Plan struct {
	Range      *DateRange
	Categories []string
	KPI        string
}

// KPI hint values produced by the planner.
const (
	KPIAOV      = "AOV"
	KPIMargin   = "MARGIN"
	KPIRevenue  = "REVENUE"
	KPIQuantity = "QUANTITY"
)

// Row is one result row keyed by column name.
type Row map[string]any

// ResultSet is an ordered table of rows with named columns.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// ExecutionState is the mutable per-question record threaded through the
// pipeline. Each run owns a freshly constructed state; it is never shared
// across questions. Mode is set once by the router and not changed after.
type ExecutionState struct {
	Question Question
	Mode     Mode
	Evidence []Evidence
	Plan     Plan

	Intent  string
	SQL     string
	Result  *ResultSet
	LastErr string

	LastValidation ValidationResult
	RepairCount    int
	Exhausted      bool
}

// ValidationStatus tags the outcome of a validation pass.
type ValidationStatus string

const (
	ValidationValid           ValidationStatus = "valid"
	ValidationShapeMismatch   ValidationStatus = "shape_mismatch"
	ValidationExecutionFailed ValidationStatus = "execution_failed"
)

// ValidationResult is the tagged outcome of validating a result set
// against a format hint. Produced fresh each pass, never mutated.
type ValidationResult struct {
	Status   ValidationStatus
	Expected string
	Actual   string
	// Empty marks a shape mismatch caused by an empty row set, so the
	// repair controller can widen filters instead of regenerating.
	Empty bool
	Cause string
}

// Valid reports whether the result passed validation.
func (v ValidationResult) Valid() bool {
	return v.Status == ValidationValid
}

// Answer is the final, immutable output of a pipeline run.
type Answer struct {
	ID          string
	Value       any
	SQL         string
	Confidence  float64
	Explanation string
	Citations   []string
}

// TraceEvent is one append-only record in a question's trace. Seq is a
// timestamp-equivalent sequence number unique within the question.
type TraceEvent struct {
	Seq    int64
	Step   string
	Detail map[string]any
}

// Trace step names, in pipeline order.
const (
	StepRoute      = "route"
	StepRetrieve   = "retrieve"
	StepPlan       = "plan"
	StepGenerate   = "generate"
	StepExecute    = "execute"
	StepValidate   = "validate"
	StepRepair     = "repair"
	StepSynthesize = "synthesize"
)
