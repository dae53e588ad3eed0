package search

import "github.com/google/uuid"

// Filters represents filters for document search.
type Filters struct {
	repositoryIDs []uuid.UUID
	languages     []string
	pathPrefix    string
	branch        string
}

// FiltersOption is a functional option for Filters.
type FiltersOption func(*Filters)

// WithRepositories restricts results to the given repositories.
func WithRepositories(ids []uuid.UUID) FiltersOption {
	return func(f *Filters) {
		if ids != nil {
			f.repositoryIDs = make([]uuid.UUID, len(ids))
			copy(f.repositoryIDs, ids)
		}
	}
}

// WithLanguages restricts results to the given languages.
func WithLanguages(languages []string) FiltersOption {
	return func(f *Filters) {
		if languages != nil {
			f.languages = make([]string, len(languages))
			copy(f.languages, languages)
		}
	}
}

// WithPathPrefix restricts results to paths under the prefix.
func WithPathPrefix(prefix string) FiltersOption {
	return func(f *Filters) {
		f.pathPrefix = prefix
	}
}

// WithBranch restricts results to one branch.
func WithBranch(branch string) FiltersOption {
	return func(f *Filters) {
		f.branch = branch
	}
}

// NewFilters creates a new Filters with options.
func NewFilters(opts ...FiltersOption) Filters {
	f := Filters{}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// RepositoryIDs returns the repository filter.
func (f Filters) RepositoryIDs() []uuid.UUID {
	if f.repositoryIDs == nil {
		return nil
	}
	result := make([]uuid.UUID, len(f.repositoryIDs))
	copy(result, f.repositoryIDs)
	return result
}

// Languages returns the language filter.
func (f Filters) Languages() []string {
	if f.languages == nil {
		return nil
	}
	result := make([]string, len(f.languages))
	copy(result, f.languages)
	return result
}

// PathPrefix returns the path prefix filter.
func (f Filters) PathPrefix() string { return f.pathPrefix }

// Branch returns the branch filter.
func (f Filters) Branch() string { return f.branch }

// IsEmpty returns true if no filters are set.
func (f Filters) IsEmpty() bool {
	return len(f.repositoryIDs) == 0 &&
		len(f.languages) == 0 &&
		f.pathPrefix == "" &&
		f.branch == ""
}
