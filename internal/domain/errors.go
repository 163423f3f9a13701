package domain

import "fmt"

// CopilotError is the unified error type for the engine.
// Each error has a numeric code and human-readable message.
type CopilotError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *CopilotError) Error() string {
	return fmt.Sprintf("copilot error %d: %s", e.Code, e.Message)
}

// NewCopilotError creates a new CopilotError.
func NewCopilotError(code int, msg string) *CopilotError {
	return &CopilotError{Code: code, Message: msg}
}

// WrapCopilotError creates a CopilotError that includes a cause.
func WrapCopilotError(code int, msg string, cause error) *CopilotError {
	return &CopilotError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Pipeline errors (1000-1099) ----
//
// Every one of these is an expected, handled branch: each is caught at
// the layer that produces it and converted to a tagged result. None
// propagate past the repair controller.

var (
	ErrUnsupportedIntent = &CopilotError{Code: 1000, Message: "no query template matched the question"}
	ErrExecutionFailed   = &CopilotError{Code: 1001, Message: "data store rejected the query"}
	ErrShapeMismatch     = &CopilotError{Code: 1002, Message: "result shape does not match format hint"}
	ErrRepairExhausted   = &CopilotError{Code: 1003, Message: "repair attempts exhausted"}
	ErrBadFormatHint     = &CopilotError{Code: 1004, Message: "unrecognized format hint"}
)

// ---- Store errors (1100-1199) ----

var (
	ErrStoreInit  = &CopilotError{Code: 1100, Message: "failed to initialize store"}
	ErrStoreQuery = &CopilotError{Code: 1101, Message: "store query failed"}
)

// ---- Retrieval errors (1200-1299) ----

var (
	ErrCorpusEmpty   = &CopilotError{Code: 1200, Message: "document corpus is empty"}
	ErrCorpusMissing = &CopilotError{Code: 1201, Message: "document corpus directory not found"}
)

// ---- Config / vocabulary errors (1300-1399) ----

var (
	ErrConfigInvalid = &CopilotError{Code: 1300, Message: "invalid configuration"}
	ErrVocabInvalid  = &CopilotError{Code: 1301, Message: "invalid domain vocabulary"}
)

// ---- Batch errors (1400-1499) ----

var (
	ErrBatchLine = &CopilotError{Code: 1400, Message: "malformed batch input line"}
)
