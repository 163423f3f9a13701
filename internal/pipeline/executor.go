package pipeline

import (
	"context"

	"github.com/datadesk/retail-copilot/internal/domain"
)

// Store is the data-store collaborator: it accepts generated query text
// and returns an ordered table of rows with named columns, or a typed
// error. Implementations must be safe for the batch runner's
// concurrency mode, or wired per worker.
type Store interface {
	Query(ctx context.Context, query string) (*domain.ResultSet, error)
}

// Executor runs generated queries against the store. It is a pure
// pass-through: store-level failures are converted to a tagged
// execution result, never propagated, and it applies no retry policy —
// that lives entirely in the repair controller.
type Executor struct {
	store Store
}

// NewExecutor wraps a store.
func NewExecutor(store Store) *Executor {
	return &Executor{store: store}
}

// Execute runs one query. On failure the returned ValidationResult is
// tagged ExecutionFailed with the store's cause.
func (e *Executor) Execute(ctx context.Context, query string) (*domain.ResultSet, domain.ValidationResult) {
	rs, err := e.store.Query(ctx, query)
	if err != nil {
		return nil, domain.ValidationResult{
			Status: domain.ValidationExecutionFailed,
			Cause:  err.Error(),
		}
	}
	return rs, domain.ValidationResult{Status: domain.ValidationValid}
}
