package conversation

import (
	"github.com/archielabs/archie/domain/repository"
	"github.com/google/uuid"
)

// Query parameter keys consumed by store implementations.
const (
	paramSearchTerm   = "conversation_search_term"
	paramRepositoryID = "conversation_repository_id"
)

// WithUser filters conversations by the "user_id" column.
func WithUser(userID string) repository.Option {
	return repository.WithCondition("user_id", userID)
}

// WithStatus filters conversations by the "status" column.
func WithStatus(status Status) repository.Option {
	return repository.WithCondition("status", string(status))
}

// WithSearchTerm filters conversations whose title or message content
// matches the term.
func WithSearchTerm(term string) repository.Option {
	return repository.WithParam(paramSearchTerm, term)
}

// SearchTermFrom extracts the search term from a built query.
func SearchTermFrom(q repository.Query) (string, bool) {
	v, ok := q.Param(paramSearchTerm)
	if !ok {
		return "", false
	}
	term, ok := v.(string)
	return term, ok
}

// WithContextRepository filters conversations whose context includes
// the repository.
func WithContextRepository(repositoryID uuid.UUID) repository.Option {
	return repository.WithParam(paramRepositoryID, repositoryID)
}

// ContextRepositoryFrom extracts the repository filter from a built query.
func ContextRepositoryFrom(q repository.Query) (uuid.UUID, bool) {
	v, ok := q.Param(paramRepositoryID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
