package conversation

import (
	"slices"

	"github.com/google/uuid"
)

// Context scopes a conversation to a set of repositories. Repository ids
// are carried by value, so deleting a repository leaves past
// conversations readable.
type Context struct {
	repositoryIDs   []uuid.UUID
	repositoryNames []string
	domain          string
	technicalTags   []string
	preferences     map[string]string
}

// NewContext creates a Context over the given repositories, dropping
// duplicate ids while preserving order.
func NewContext(repositoryIDs []uuid.UUID) Context {
	seen := make(map[uuid.UUID]struct{}, len(repositoryIDs))
	unique := make([]uuid.UUID, 0, len(repositoryIDs))
	for _, id := range repositoryIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return Context{repositoryIDs: unique}
}

// ReconstructContext reconstructs a Context from persistence.
func ReconstructContext(
	repositoryIDs []uuid.UUID,
	repositoryNames []string,
	domain string,
	technicalTags []string,
	preferences map[string]string,
) Context {
	return Context{
		repositoryIDs:   slices.Clone(repositoryIDs),
		repositoryNames: slices.Clone(repositoryNames),
		domain:          domain,
		technicalTags:   slices.Clone(technicalTags),
		preferences:     copyMetadata(preferences),
	}
}

// RepositoryIDs returns a copy of the repository ids.
func (c Context) RepositoryIDs() []uuid.UUID { return slices.Clone(c.repositoryIDs) }

// RepositoryNames returns a copy of the resolved repository names.
func (c Context) RepositoryNames() []string { return slices.Clone(c.repositoryNames) }

// Domain returns the optional business domain hint.
func (c Context) Domain() string { return c.domain }

// TechnicalTags returns a copy of the technical tags.
func (c Context) TechnicalTags() []string { return slices.Clone(c.technicalTags) }

// Preferences returns a copy of the answer preferences.
func (c Context) Preferences() map[string]string { return copyMetadata(c.preferences) }

// HasRepositories reports whether the context names at least one repository.
func (c Context) HasRepositories() bool { return len(c.repositoryIDs) > 0 }

// Includes reports whether the context covers the given repository.
func (c Context) Includes(repositoryID uuid.UUID) bool {
	return slices.Contains(c.repositoryIDs, repositoryID)
}

// WithRepositoryNames returns a copy with resolved names set.
func (c Context) WithRepositoryNames(names []string) Context {
	c.repositoryNames = slices.Clone(names)
	return c
}

// WithDomain returns a copy with the domain hint set.
func (c Context) WithDomain(domain string) Context {
	c.domain = domain
	return c
}

// WithTechnicalTags returns a copy with the technical tags set.
func (c Context) WithTechnicalTags(tags []string) Context {
	c.technicalTags = slices.Clone(tags)
	return c
}

// WithPreference returns a copy with an answer preference set.
func (c Context) WithPreference(key, value string) Context {
	preferences := copyMetadata(c.preferences)
	if preferences == nil {
		preferences = make(map[string]string)
	}
	preferences[key] = value
	c.preferences = preferences
	return c
}
