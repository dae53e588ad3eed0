// Package tracking reports background task progress to interested sinks.
package tracking

import (
	"context"

	"github.com/archielabs/archie/domain/task"
)

// Reporter receives task status changes.
type Reporter interface {
	OnChange(ctx context.Context, status task.Status) error
}

// StatusReporter persists status changes through the task status store,
// which is what the REST status endpoint reads.
type StatusReporter struct {
	store task.StatusStore
}

// NewStatusReporter creates a store-backed reporter.
func NewStatusReporter(store task.StatusStore) *StatusReporter {
	return &StatusReporter{store: store}
}

// OnChange saves the status.
func (r *StatusReporter) OnChange(ctx context.Context, status task.Status) error {
	_, err := r.store.Save(ctx, status)
	return err
}
