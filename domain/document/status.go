package document

import (
	"time"

	"github.com/google/uuid"
)

// IndexState represents the state of a repository's index.
type IndexState string

// IndexState values.
const (
	IndexStateNotStarted IndexState = "not_started"
	IndexStateInProgress IndexState = "in_progress"
	IndexStateCompleted  IndexState = "completed"
	IndexStateError      IndexState = "error"
)

// IsTerminal returns true if the state represents a finished run.
func (s IndexState) IsTerminal() bool {
	return s == IndexStateCompleted || s == IndexStateError
}

// IndexStatus tracks indexing progress for one repository.
// documentsIndexed never decreases within a run and never exceeds
// totalDocuments once the total is known.
type IndexStatus struct {
	repositoryID     uuid.UUID
	state            IndexState
	documentsIndexed int
	totalDocuments   int
	errorMessage     string
	startedAt        time.Time
	completedAt      time.Time
	updatedAt        time.Time
}

// NewIndexStatus creates an IndexStatus in the NotStarted state.
func NewIndexStatus(repositoryID uuid.UUID) IndexStatus {
	return IndexStatus{
		repositoryID: repositoryID,
		state:        IndexStateNotStarted,
		updatedAt:    time.Now().UTC(),
	}
}

// ReconstructIndexStatus reconstructs an IndexStatus from persistence.
func ReconstructIndexStatus(
	repositoryID uuid.UUID,
	state IndexState,
	documentsIndexed, totalDocuments int,
	errorMessage string,
	startedAt, completedAt, updatedAt time.Time,
) IndexStatus {
	return IndexStatus{
		repositoryID:     repositoryID,
		state:            state,
		documentsIndexed: documentsIndexed,
		totalDocuments:   totalDocuments,
		errorMessage:     errorMessage,
		startedAt:        startedAt,
		completedAt:      completedAt,
		updatedAt:        updatedAt,
	}
}

// RepositoryID returns the repository this status tracks.
func (s IndexStatus) RepositoryID() uuid.UUID { return s.repositoryID }

// State returns the index state.
func (s IndexStatus) State() IndexState { return s.state }

// DocumentsIndexed returns the number of documents upserted so far.
func (s IndexStatus) DocumentsIndexed() int { return s.documentsIndexed }

// TotalDocuments returns the expected document count for the run.
func (s IndexStatus) TotalDocuments() int { return s.totalDocuments }

// ErrorMessage returns the failure message for an Error state.
func (s IndexStatus) ErrorMessage() string { return s.errorMessage }

// StartedAt returns when the current run started.
func (s IndexStatus) StartedAt() time.Time { return s.startedAt }

// CompletedAt returns when the run finished.
func (s IndexStatus) CompletedAt() time.Time { return s.completedAt }

// UpdatedAt returns the last update timestamp.
func (s IndexStatus) UpdatedAt() time.Time { return s.updatedAt }

// Start returns a copy reset for a fresh run in the InProgress state.
func (s IndexStatus) Start() IndexStatus {
	now := time.Now().UTC()
	s.state = IndexStateInProgress
	s.documentsIndexed = 0
	s.totalDocuments = 0
	s.errorMessage = ""
	s.startedAt = now
	s.completedAt = time.Time{}
	s.updatedAt = now
	return s
}

// WithTotal returns a copy with the expected document count set.
func (s IndexStatus) WithTotal(total int) IndexStatus {
	if total < 0 {
		total = 0
	}
	s.totalDocuments = total
	s.updatedAt = time.Now().UTC()
	return s
}

// WithProgress returns a copy with documentsIndexed advanced to indexed.
// Progress is monotonic: a lower value is ignored, and the count is
// capped at totalDocuments once a total is known.
func (s IndexStatus) WithProgress(indexed int) IndexStatus {
	if indexed < s.documentsIndexed {
		return s
	}
	if s.totalDocuments > 0 && indexed > s.totalDocuments {
		indexed = s.totalDocuments
	}
	s.documentsIndexed = indexed
	s.updatedAt = time.Now().UTC()
	return s
}

// Complete returns a copy in the Completed state.
func (s IndexStatus) Complete() IndexStatus {
	now := time.Now().UTC()
	s.state = IndexStateCompleted
	s.completedAt = now
	s.updatedAt = now
	return s
}

// Fail returns a copy in the Error state carrying the message.
func (s IndexStatus) Fail(message string) IndexStatus {
	now := time.Now().UTC()
	s.state = IndexStateError
	s.errorMessage = message
	s.completedAt = now
	s.updatedAt = now
	return s
}

// EstimatedCompletion projects when the run will finish from the rate so
// far. Zero time when the run is not in progress or has no measurable rate.
func (s IndexStatus) EstimatedCompletion() time.Time {
	if s.state != IndexStateInProgress || s.documentsIndexed == 0 || s.totalDocuments == 0 {
		return time.Time{}
	}
	elapsed := time.Since(s.startedAt)
	if elapsed <= 0 {
		return time.Time{}
	}
	remaining := s.totalDocuments - s.documentsIndexed
	perDoc := elapsed / time.Duration(s.documentsIndexed)
	return time.Now().UTC().Add(perDoc * time.Duration(remaining))
}

// CompletionPercent calculates the completion percentage.
func (s IndexStatus) CompletionPercent() float64 {
	if s.totalDocuments == 0 {
		return 0.0
	}
	percent := float64(s.documentsIndexed) / float64(s.totalDocuments) * 100.0
	if percent > 100 {
		return 100.0
	}
	return percent
}
