// Package repository provides hosted repository domain types.
package repository

import (
	"time"

	"github.com/google/uuid"
)

// Repository represents a connected hosted repository (aggregate root).
type Repository struct {
	id                uuid.UUID
	remote            Remote
	description       string
	language          string
	defaultBranch     string
	branches          []Branch
	status            Status
	lastError         string
	stats             Statistics
	lastIndexedCommit string
	indexedAt         time.Time
	createdAt         time.Time
	updatedAt         time.Time
}

// NewRepository creates a new Repository in the Disconnected state.
func NewRepository(remote Remote) Repository {
	now := time.Now().UTC()
	return Repository{
		id:        uuid.New(),
		remote:    remote,
		status:    StatusDisconnected,
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstructRepository reconstructs a Repository from persistence.
func ReconstructRepository(
	id uuid.UUID,
	remote Remote,
	description, language, defaultBranch string,
	branches []Branch,
	status Status,
	lastError string,
	stats Statistics,
	lastIndexedCommit string,
	indexedAt time.Time,
	createdAt, updatedAt time.Time,
) Repository {
	return Repository{
		id:                id,
		remote:            remote,
		description:       description,
		language:          language,
		defaultBranch:     defaultBranch,
		branches:          copyBranches(branches),
		status:            status,
		lastError:         lastError,
		stats:             stats,
		lastIndexedCommit: lastIndexedCommit,
		indexedAt:         indexedAt,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// ID returns the repository ID.
func (r Repository) ID() uuid.UUID { return r.id }

// Remote returns the hosted remote identity.
func (r Repository) Remote() Remote { return r.remote }

// URL returns the canonical repository URL.
func (r Repository) URL() string { return r.remote.URL() }

// Owner returns the repository owner.
func (r Repository) Owner() string { return r.remote.Owner() }

// Name returns the repository name.
func (r Repository) Name() string { return r.remote.Name() }

// FullName returns "owner/name".
func (r Repository) FullName() string { return r.remote.FullName() }

// Description returns the repository description.
func (r Repository) Description() string { return r.description }

// Language returns the primary language reported by the provider.
func (r Repository) Language() string { return r.language }

// DefaultBranch returns the default branch name.
func (r Repository) DefaultBranch() string { return r.defaultBranch }

// Branches returns a copy of the known branches.
func (r Repository) Branches() []Branch { return copyBranches(r.branches) }

// Status returns the lifecycle status.
func (r Repository) Status() Status { return r.status }

// LastError returns the message recorded with the last Error transition.
func (r Repository) LastError() string { return r.lastError }

// Statistics returns the indexed-content statistics.
func (r Repository) Statistics() Statistics { return r.stats }

// LastIndexedCommit returns the commit SHA of the last successful index run.
func (r Repository) LastIndexedCommit() string { return r.lastIndexedCommit }

// IndexedAt returns when the last successful index run finished.
// The zero time means the repository has never been indexed.
func (r Repository) IndexedAt() time.Time { return r.indexedAt }

// CreatedAt returns the creation timestamp.
func (r Repository) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last update timestamp.
func (r Repository) UpdatedAt() time.Time { return r.updatedAt }

// HasBeenIndexed returns true if at least one index run has completed.
func (r Repository) HasBeenIndexed() bool { return r.lastIndexedCommit != "" }

// TransitionTo returns a copy in the given status if the transition is
// allowed. The second return value is false for an invalid transition.
func (r Repository) TransitionTo(next Status) (Repository, bool) {
	if !r.status.CanTransitionTo(next) {
		return r, false
	}
	r.status = next
	if next != StatusError {
		r.lastError = ""
	}
	r.updatedAt = time.Now().UTC()
	return r, true
}

// WithError returns a copy in the Error status carrying the given message.
// Error entry is allowed from any state so that failures are never lost.
func (r Repository) WithError(message string) Repository {
	r.status = StatusError
	r.lastError = message
	r.updatedAt = time.Now().UTC()
	return r
}

// WithProviderMetadata returns a copy with the metadata reported by the
// git provider on connect or refresh.
func (r Repository) WithProviderMetadata(description, language, defaultBranch string, branches []Branch) Repository {
	r.description = description
	r.language = language
	r.defaultBranch = defaultBranch
	r.branches = copyBranches(branches)
	r.updatedAt = time.Now().UTC()
	return r
}

// WithStatistics returns a copy with updated statistics.
func (r Repository) WithStatistics(stats Statistics) Repository {
	r.stats = stats
	r.updatedAt = time.Now().UTC()
	return r
}

// WithIndexedCommit returns a copy recording a completed index run.
func (r Repository) WithIndexedCommit(sha string, at time.Time) Repository {
	r.lastIndexedCommit = sha
	r.indexedAt = at
	r.updatedAt = time.Now().UTC()
	return r
}

func copyBranches(branches []Branch) []Branch {
	if branches == nil {
		return nil
	}
	result := make([]Branch, len(branches))
	copy(result, branches)
	return result
}
