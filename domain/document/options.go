package document

import "github.com/archielabs/archie/domain/repository"

// WithBranch filters documents by branch.
func WithBranch(branch string) repository.Option {
	return repository.WithCondition("branch", branch)
}

// WithPath filters documents by exact file path.
func WithPath(path string) repository.Option {
	return repository.WithCondition("path", path)
}

// WithPathPrefix filters documents whose path starts with the prefix.
func WithPathPrefix(prefix string) repository.Option {
	return repository.WithWhere("path LIKE ?", prefix+"%")
}

// WithLanguage filters documents by language.
func WithLanguage(language string) repository.Option {
	return repository.WithCondition("language", language)
}

// WithLanguages filters documents by multiple languages.
func WithLanguages(languages []string) repository.Option {
	return repository.WithConditionIn("language", languages)
}

// WithVectorState filters documents by embedding presence.
func WithVectorState(hasVector bool) repository.Option {
	return repository.WithCondition("has_vector", hasVector)
}
