package repository

import "maps"

// Branch represents a branch on the hosted repository.
type Branch struct {
	name       string
	isDefault  bool
	lastCommit Commit
}

// NewBranch creates a new Branch.
func NewBranch(name string, isDefault bool, lastCommit Commit) Branch {
	return Branch{
		name:       name,
		isDefault:  isDefault,
		lastCommit: lastCommit,
	}
}

// Name returns the branch name.
func (b Branch) Name() string { return b.name }

// IsDefault returns true if this is the default branch.
func (b Branch) IsDefault() bool { return b.isDefault }

// LastCommit returns the branch head commit.
func (b Branch) LastCommit() Commit { return b.lastCommit }

// Equal returns true if two Branch values are equal.
func (b Branch) Equal(other Branch) bool {
	return b.name == other.name &&
		b.isDefault == other.isDefault &&
		b.lastCommit.Equal(other.lastCommit)
}

// Statistics summarizes the indexed content of a repository.
type Statistics struct {
	fileCount     int
	documentCount int
	totalBytes    int64
	languages     map[string]int64
}

// NewStatistics creates repository statistics.
// languages maps a language name to the byte count attributed to it.
func NewStatistics(fileCount, documentCount int, totalBytes int64, languages map[string]int64) Statistics {
	return Statistics{
		fileCount:     fileCount,
		documentCount: documentCount,
		totalBytes:    totalBytes,
		languages:     copyLanguages(languages),
	}
}

// FileCount returns the number of indexed files.
func (s Statistics) FileCount() int { return s.fileCount }

// DocumentCount returns the number of index documents.
func (s Statistics) DocumentCount() int { return s.documentCount }

// TotalBytes returns the total indexed content size.
func (s Statistics) TotalBytes() int64 { return s.totalBytes }

// Languages returns a copy of the per-language byte counts.
func (s Statistics) Languages() map[string]int64 {
	return copyLanguages(s.languages)
}

// PrimaryLanguage returns the language with the highest byte count.
func (s Statistics) PrimaryLanguage() string {
	var best string
	var bestBytes int64
	for lang, bytes := range s.languages {
		if bytes > bestBytes || (bytes == bestBytes && lang < best) {
			best = lang
			bestBytes = bytes
		}
	}
	return best
}

// IsEmpty returns true if no statistics have been recorded.
func (s Statistics) IsEmpty() bool {
	return s.fileCount == 0 && s.documentCount == 0 && s.totalBytes == 0
}

func copyLanguages(languages map[string]int64) map[string]int64 {
	if languages == nil {
		return map[string]int64{}
	}
	result := make(map[string]int64, len(languages))
	maps.Copy(result, languages)
	return result
}
