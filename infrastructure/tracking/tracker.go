package tracking

import (
	"context"
	"log/slog"
	"sync"

	"github.com/archielabs/archie/domain/task"
)

// Tracker wraps a task.Status and pushes every change to its reporters.
// Pipeline steps hold a Tracker instead of talking to the status store
// directly, so throttling and persistence stay out of handler code.
type Tracker struct {
	status    task.Status
	reporters []Reporter
	logger    *slog.Logger
	mu        sync.RWMutex
}

// NewTracker creates a Tracker around an existing status.
func NewTracker(status task.Status, logger *slog.Logger) *Tracker {
	return &Tracker{
		status:    status,
		reporters: make([]Reporter, 0),
		logger:    logger,
	}
}

// TrackerForOperation creates a Tracker with a fresh pending status.
func TrackerForOperation(
	operation task.Operation,
	logger *slog.Logger,
	trackableType task.TrackableType,
	trackableID string,
) *Tracker {
	return NewTracker(task.NewStatus(operation, nil, trackableType, trackableID), logger)
}

// Status returns a copy of the current status.
func (t *Tracker) Status() task.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Subscribe adds a reporter for subsequent changes.
func (t *Tracker) Subscribe(reporter Reporter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reporters = append(t.reporters, reporter)
}

// SetTotal records the total unit count.
func (t *Tracker) SetTotal(ctx context.Context, total int) {
	t.apply(ctx, func(s task.Status) task.Status { return s.SetTotal(total) })
}

// SetCurrent records progress and an optional message.
func (t *Tracker) SetCurrent(ctx context.Context, current int, message string) {
	t.apply(ctx, func(s task.Status) task.Status { return s.SetCurrent(current, message) })
}

// Skip marks the step skipped.
func (t *Tracker) Skip(ctx context.Context, reason string) {
	t.apply(ctx, func(s task.Status) task.Status { return s.Skip(reason) })
}

// Fail marks the step failed.
func (t *Tracker) Fail(ctx context.Context, errMsg string) {
	t.apply(ctx, func(s task.Status) task.Status { return s.Fail(errMsg) })
}

// Complete marks the step completed.
func (t *Tracker) Complete(ctx context.Context) {
	t.apply(ctx, func(s task.Status) task.Status { return s.Complete() })
}

// Notify re-announces the current status, used right after setup.
func (t *Tracker) Notify(ctx context.Context) {
	t.mu.RLock()
	status := t.status
	t.mu.RUnlock()
	t.report(ctx, status)
}

// Child creates a tracker for a sub-operation sharing this tracker's
// reporters and trackable.
func (t *Tracker) Child(operation task.Operation) *Tracker {
	t.mu.RLock()
	parent := t.status
	reporters := make([]Reporter, len(t.reporters))
	copy(reporters, t.reporters)
	t.mu.RUnlock()

	return &Tracker{
		status:    task.NewStatus(operation, &parent, parent.TrackableType(), parent.TrackableID()),
		reporters: reporters,
		logger:    t.logger,
	}
}

func (t *Tracker) apply(ctx context.Context, change func(task.Status) task.Status) {
	t.mu.Lock()
	t.status = change(t.status)
	status := t.status
	t.mu.Unlock()

	t.report(ctx, status)
}

func (t *Tracker) report(ctx context.Context, status task.Status) {
	t.mu.RLock()
	reporters := make([]Reporter, len(t.reporters))
	copy(reporters, t.reporters)
	t.mu.RUnlock()

	for _, reporter := range reporters {
		if err := reporter.OnChange(ctx, status); err != nil {
			t.logger.Error("progress reporter failed",
				slog.String("error", err.Error()),
				slog.String("operation", status.Operation().String()),
			)
		}
	}
}
