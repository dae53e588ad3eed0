package tracking

import (
	"time"

	"github.com/archielabs/archie/domain/document"
	"github.com/archielabs/archie/domain/task"
)

// StatusSummary condenses the task statuses of one trackable entity
// into a single indexing state for status endpoints.
type StatusSummary struct {
	state     document.IndexState
	message   string
	updatedAt time.Time
}

// NewStatusSummary creates a StatusSummary.
func NewStatusSummary(state document.IndexState, message string, updatedAt time.Time) StatusSummary {
	return StatusSummary{state: state, message: message, updatedAt: updatedAt}
}

// State returns the aggregated indexing state.
func (s StatusSummary) State() document.IndexState { return s.state }

// Message returns the most recent failure message, empty otherwise.
func (s StatusSummary) Message() string { return s.message }

// UpdatedAt returns the timestamp of the most recent activity.
func (s StatusSummary) UpdatedAt() time.Time { return s.updatedAt }

// SummaryFromStatuses derives a StatusSummary from per-step statuses.
// Priority: failed > in progress > queued work > completed > not
// started. Queued tasks count as in progress even when every recorded
// step is already terminal, since more work is on the way.
func SummaryFromStatuses(statuses []task.Status, pendingTasks int) StatusSummary {
	now := time.Now().UTC()

	if len(statuses) == 0 {
		if pendingTasks > 0 {
			return NewStatusSummary(document.IndexStateInProgress, "", now)
		}
		return NewStatusSummary(document.IndexStateNotStarted, "", now)
	}

	if failed, ok := latestInState(statuses, task.ReportingStateFailed); ok {
		return NewStatusSummary(document.IndexStateError, failed.Error(), failed.UpdatedAt())
	}

	if inProgress, ok := latestInState(statuses, task.ReportingStateInProgress); ok {
		return NewStatusSummary(document.IndexStateInProgress, "", inProgress.UpdatedAt())
	}

	if pendingTasks > 0 {
		return NewStatusSummary(document.IndexStateInProgress, "", now)
	}

	if completed, ok := latestInState(statuses, task.ReportingStateCompleted); ok {
		return NewStatusSummary(document.IndexStateCompleted, "", completed.UpdatedAt())
	}

	return NewStatusSummary(document.IndexStateNotStarted, "", now)
}

// latestInState returns the most recently updated status in the given
// state.
func latestInState(statuses []task.Status, state task.ReportingState) (task.Status, bool) {
	var latest task.Status
	found := false
	for _, s := range statuses {
		if s.State() != state {
			continue
		}
		if !found || s.UpdatedAt().After(latest.UpdatedAt()) {
			latest = s
			found = true
		}
	}
	return latest, found
}
