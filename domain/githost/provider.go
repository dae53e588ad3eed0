// Package githost defines the port to a hosted git provider API.
// Archie never clones repositories; trees, blobs and metadata are
// fetched over the provider's HTTP API.
package githost

import (
	"context"

	"github.com/archielabs/archie/domain/repository"
)

// Provider is a hosted git API client.
//
// Implementations translate provider errors into errs kinds: missing
// resources map to NotFound, credential problems to UpstreamAuth,
// throttling to UpstreamRateLimited with a retry-after hint, and
// outages to UpstreamUnavailable.
type Provider interface {
	// ValidateAccess verifies the configured credentials can read the
	// repository.
	ValidateAccess(ctx context.Context, owner, name string) error

	// GetRepository fetches repository metadata.
	GetRepository(ctx context.Context, owner, name string) (RepositoryInfo, error)

	// GetBranches lists branches with their head commit SHAs.
	GetBranches(ctx context.Context, owner, name string) ([]BranchInfo, error)

	// GetTree fetches the tree at ref. With recursive set the provider
	// returns the full file listing; very large repositories may come
	// back truncated.
	GetTree(ctx context.Context, owner, name, ref string, recursive bool) (Tree, error)

	// GetFileContent fetches a blob's decoded content at ref. A path
	// that does not exist yields an empty string and no error, so
	// callers probing optional files need no error branching.
	GetFileContent(ctx context.Context, owner, name, path, ref string) (string, error)

	// GetCommitHistory lists the most recent commits on a branch,
	// newest first.
	GetCommitHistory(ctx context.Context, owner, name, branch string, limit int) ([]repository.Commit, error)
}

// RepositoryInfo is provider metadata about a repository.
type RepositoryInfo struct {
	description   string
	language      string
	defaultBranch string
	private       bool
	sizeKB        int64
}

// NewRepositoryInfo creates provider repository metadata.
func NewRepositoryInfo(description, language, defaultBranch string, private bool, sizeKB int64) RepositoryInfo {
	return RepositoryInfo{
		description:   description,
		language:      language,
		defaultBranch: defaultBranch,
		private:       private,
		sizeKB:        sizeKB,
	}
}

// Description returns the repository description.
func (r RepositoryInfo) Description() string { return r.description }

// Language returns the provider-detected primary language.
func (r RepositoryInfo) Language() string { return r.language }

// DefaultBranch returns the default branch name.
func (r RepositoryInfo) DefaultBranch() string { return r.defaultBranch }

// Private reports whether the repository is private.
func (r RepositoryInfo) Private() bool { return r.private }

// SizeKB returns the provider-reported size in kilobytes.
func (r RepositoryInfo) SizeKB() int64 { return r.sizeKB }

// BranchInfo is a branch name with its head commit SHA.
type BranchInfo struct {
	name      string
	commitSHA string
	protected bool
}

// NewBranchInfo creates branch metadata.
func NewBranchInfo(name, commitSHA string, protected bool) BranchInfo {
	return BranchInfo{name: name, commitSHA: commitSHA, protected: protected}
}

// Name returns the branch name.
func (b BranchInfo) Name() string { return b.name }

// CommitSHA returns the head commit SHA.
func (b BranchInfo) CommitSHA() string { return b.commitSHA }

// Protected reports whether the branch is protected.
func (b BranchInfo) Protected() bool { return b.protected }
