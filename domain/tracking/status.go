// Package tracking aggregates background task statuses into
// repository-level progress summaries.
package tracking

import (
	"time"

	"github.com/archielabs/archie/domain/document"
	"github.com/archielabs/archie/domain/task"
)

// Summary is the repository-level view of indexing progress, derived
// from the per-step task statuses plus the count of still-queued tasks.
type Summary struct {
	state     document.IndexState
	message   string
	updatedAt time.Time
}

// NewSummary creates a Summary.
func NewSummary(state document.IndexState, message string, updatedAt time.Time) Summary {
	return Summary{state: state, message: message, updatedAt: updatedAt}
}

// State returns the aggregated index state.
func (s Summary) State() document.IndexState { return s.state }

// Message returns the most recent failure message, if any.
func (s Summary) Message() string { return s.message }

// UpdatedAt returns the timestamp of the most recent activity.
func (s Summary) UpdatedAt() time.Time { return s.updatedAt }

// SummaryFromStatuses derives a Summary from step statuses. Running
// steps win over queued work, which wins over terminal outcomes. When
// every step is terminal, a failure among them surfaces as Error unless
// successes outnumber failures, in which case the run counts as
// Completed and the summary carries the last failure message.
func SummaryFromStatuses(statuses []task.Status, pendingTaskCount int) Summary {
	now := time.Now().UTC()

	if len(statuses) == 0 {
		if pendingTaskCount > 0 {
			return NewSummary(document.IndexStateInProgress, "", now)
		}
		return NewSummary(document.IndexStateNotStarted, "", now)
	}

	var running *task.Status
	for i := range statuses {
		s := &statuses[i]
		if s.State() != task.ReportingStateInProgress {
			continue
		}
		if running == nil || s.UpdatedAt().After(running.UpdatedAt()) {
			running = s
		}
	}
	if running != nil {
		return NewSummary(document.IndexStateInProgress, running.Message(), running.UpdatedAt())
	}
	if pendingTaskCount > 0 {
		return NewSummary(document.IndexStateInProgress, "", now)
	}

	var (
		succeeded  int
		failed     int
		lastFailed *task.Status
		lastDone   *task.Status
	)
	for i := range statuses {
		s := &statuses[i]
		switch s.State() {
		case task.ReportingStateCompleted, task.ReportingStateSkipped:
			succeeded++
			if lastDone == nil || s.UpdatedAt().After(lastDone.UpdatedAt()) {
				lastDone = s
			}
		case task.ReportingStateFailed:
			failed++
			if lastFailed == nil || s.UpdatedAt().After(lastFailed.UpdatedAt()) {
				lastFailed = s
			}
		}
	}

	switch {
	case lastFailed != nil && succeeded > failed:
		return NewSummary(document.IndexStateCompleted, lastFailed.Error(), lastFailed.UpdatedAt())
	case lastFailed != nil:
		return NewSummary(document.IndexStateError, lastFailed.Error(), lastFailed.UpdatedAt())
	case lastDone != nil:
		return NewSummary(document.IndexStateCompleted, "", lastDone.UpdatedAt())
	default:
		return NewSummary(document.IndexStateNotStarted, "", now)
	}
}
