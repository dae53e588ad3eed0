// Package githost implements the hosted git provider port on the GitHub
// REST API. Repositories are never cloned; trees, blobs and metadata are
// fetched over HTTP with an oauth2 token transport.
package githost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/archielabs/archie/domain/githost"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/internal/config"
	"github.com/archielabs/archie/internal/errs"
)

const (
	defaultRetries = 3
	defaultBackoff = time.Second
	maxBackoff     = 30 * time.Second

	// resetSlack pads waits derived from rate window reset times so the
	// window has actually rolled over when the retry fires.
	resetSlack = time.Second

	pageSize           = 100
	defaultCommitLimit = 20
)

// GitHub is a githost.Provider backed by the GitHub REST API.
type GitHub struct {
	client       *github.Client
	rateBuffer   int
	abuseBackoff time.Duration
	retries      int
	backoffBase  time.Duration
	logger       *slog.Logger
}

// NewGitHub creates a GitHub provider. An empty token yields an
// unauthenticated client limited to public repositories; a base URL
// switches the client to a GitHub Enterprise instance.
func NewGitHub(cfg config.GitHostConfig, logger *slog.Logger) (*GitHub, error) {
	httpClient := http.DefaultClient
	if cfg.Token() != "" {
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token()})
		httpClient = oauth2.NewClient(context.Background(), source)
	}

	client := github.NewClient(httpClient)
	if cfg.BaseURL() != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL(), cfg.BaseURL())
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidInput, "git host base URL", err)
		}
	}

	return &GitHub{
		client:       client,
		rateBuffer:   cfg.RateLimitBuffer(),
		abuseBackoff: cfg.AbuseBackoff(),
		retries:      defaultRetries,
		backoffBase:  defaultBackoff,
		logger:       logger,
	}, nil
}

// ValidateAccess verifies the configured credentials can read the repository.
func (g *GitHub) ValidateAccess(ctx context.Context, owner, name string) error {
	return g.call(ctx, "validate access", func() (*github.Response, error) {
		_, resp, err := g.client.Repositories.Get(ctx, owner, name)
		return resp, err
	})
}

// GetRepository fetches repository metadata.
func (g *GitHub) GetRepository(ctx context.Context, owner, name string) (githost.RepositoryInfo, error) {
	var repo *github.Repository
	err := g.call(ctx, "get repository", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		repo, resp, err = g.client.Repositories.Get(ctx, owner, name)
		return resp, err
	})
	if err != nil {
		return githost.RepositoryInfo{}, err
	}

	return githost.NewRepositoryInfo(
		repo.GetDescription(),
		repo.GetLanguage(),
		repo.GetDefaultBranch(),
		repo.GetPrivate(),
		int64(repo.GetSize()),
	), nil
}

// GetBranches lists all branches with their head commit SHAs.
func (g *GitHub) GetBranches(ctx context.Context, owner, name string) ([]githost.BranchInfo, error) {
	opts := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: pageSize}}
	var branches []githost.BranchInfo

	for {
		var page []*github.Branch
		var nextPage int
		err := g.call(ctx, "list branches", func() (*github.Response, error) {
			var resp *github.Response
			var err error
			page, resp, err = g.client.Repositories.ListBranches(ctx, owner, name, opts)
			if resp != nil {
				nextPage = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, branch := range page {
			branches = append(branches, githost.NewBranchInfo(
				branch.GetName(),
				branch.GetCommit().GetSHA(),
				branch.GetProtected(),
			))
		}

		if nextPage == 0 {
			return branches, nil
		}
		opts.Page = nextPage
	}
}

// GetTree fetches the tree at ref. Submodule pointers are dropped since
// their content lives in another repository.
func (g *GitHub) GetTree(ctx context.Context, owner, name, ref string, recursive bool) (githost.Tree, error) {
	var tree *github.Tree
	err := g.call(ctx, "get tree", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		tree, resp, err = g.client.Git.GetTree(ctx, owner, name, ref, recursive)
		return resp, err
	})
	if err != nil {
		return githost.Tree{}, err
	}

	entries := make([]githost.TreeEntry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		var entryType githost.TreeEntryType
		switch entry.GetType() {
		case "blob":
			entryType = githost.TreeEntryBlob
		case "tree":
			entryType = githost.TreeEntryTree
		default:
			continue
		}
		entries = append(entries, githost.NewTreeEntry(
			entry.GetPath(),
			entry.GetMode(),
			entryType,
			entry.GetSHA(),
			int64(entry.GetSize()),
		))
	}

	return githost.NewTree(tree.GetSHA(), entries, tree.GetTruncated()), nil
}

// GetFileContent fetches a blob's decoded content at ref. Missing paths
// and directories yield an empty string and no error.
func (g *GitHub) GetFileContent(ctx context.Context, owner, name, path, ref string) (string, error) {
	var file *github.RepositoryContent
	err := g.call(ctx, "get file content", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		file, _, resp, err = g.client.Repositories.GetContents(ctx, owner, name, path,
			&github.RepositoryContentGetOptions{Ref: ref})
		return resp, err
	})
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return "", nil
		}
		return "", err
	}
	if file == nil {
		return "", nil
	}

	content, err := file.GetContent()
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, "decode file content", err)
	}
	return content, nil
}

// GetCommitHistory lists the most recent commits on a branch, newest first.
func (g *GitHub) GetCommitHistory(ctx context.Context, owner, name, branch string, limit int) ([]repository.Commit, error) {
	if limit <= 0 {
		limit = defaultCommitLimit
	}
	perPage := limit
	if perPage > pageSize {
		perPage = pageSize
	}

	opts := &github.CommitsListOptions{
		SHA:         branch,
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	var commits []repository.Commit

	for {
		var page []*github.RepositoryCommit
		var nextPage int
		err := g.call(ctx, "list commits", func() (*github.Response, error) {
			var resp *github.Response
			var err error
			page, resp, err = g.client.Repositories.ListCommits(ctx, owner, name, opts)
			if resp != nil {
				nextPage = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, rc := range page {
			if len(commits) == limit {
				return commits, nil
			}
			commit := rc.GetCommit()
			author := repository.NewAuthor(commit.GetAuthor().GetName(), commit.GetAuthor().GetEmail())
			commits = append(commits, repository.NewCommit(
				rc.GetSHA(),
				commit.GetMessage(),
				author,
				commit.GetAuthor().GetDate().Time,
			))
		}

		if nextPage == 0 || len(commits) == limit {
			return commits, nil
		}
		opts.Page = nextPage
	}
}

// call runs one API operation with bounded retries. Rate limit errors
// wait for the upstream reset hint, abuse signals wait the fixed abuse
// backoff, and other transient failures back off exponentially.
func (g *GitHub) call(ctx context.Context, name string, op func() (*github.Response, error)) error {
	backoff := g.backoffBase
	var lastErr error

	for attempt := 0; attempt <= g.retries; attempt++ {
		resp, err := op()
		if err == nil {
			g.throttle(ctx, resp)
			return nil
		}

		lastErr = g.classify(name, resp, err)
		if !errs.Retryable(lastErr) || attempt == g.retries {
			return lastErr
		}

		wait := backoff
		if hint, ok := errs.RetryAfter(lastErr); ok && hint > 0 {
			wait = hint
		}
		g.logger.Debug("git host retry",
			slog.String("operation", name),
			slog.Int("attempt", attempt+1),
			slog.Duration("wait", wait),
			slog.String("error", lastErr.Error()),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-time.After(wait):
		}

		backoff = min(backoff*2, maxBackoff)
	}

	return lastErr
}

// throttle blocks until the rate window resets when the remaining call
// budget drops below the configured buffer. Keeping a cushion of unused
// permits leaves room for interactive requests while bulk ingestion runs.
func (g *GitHub) throttle(ctx context.Context, resp *github.Response) {
	if resp == nil || g.rateBuffer <= 0 || resp.Rate.Limit == 0 {
		return
	}
	if resp.Rate.Remaining >= g.rateBuffer {
		return
	}

	wait := time.Until(resp.Rate.Reset.Time) + resetSlack
	if wait <= 0 {
		return
	}

	g.logger.Warn("git host rate budget low, pausing",
		slog.Int("remaining", resp.Rate.Remaining),
		slog.Int("buffer", g.rateBuffer),
		slog.Duration("wait", wait),
	)
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

// classify maps a GitHub API failure onto an errs kind. Rate limit
// classifications carry a retry-after hint derived from the response.
func (g *GitHub) classify(name string, resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		wait := time.Until(rateErr.Rate.Reset.Time) + resetSlack
		if wait < resetSlack {
			wait = resetSlack
		}
		return errs.Wrap(errs.KindUpstreamRateLimited, name, err).WithRetryAfter(wait)
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		wait := g.abuseBackoff
		if abuseErr.RetryAfter != nil && *abuseErr.RetryAfter > 0 {
			wait = *abuseErr.RetryAfter
		}
		return errs.Wrap(errs.KindUpstreamRateLimited, name, err).WithRetryAfter(wait)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", name, err)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return errs.Wrap(errs.KindNotFound, name, err)
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return errs.Wrap(errs.KindUpstreamAuth, name, err)
		case resp.StatusCode == http.StatusTooManyRequests:
			return errs.Wrap(errs.KindUpstreamRateLimited, name, err).WithRetryAfter(resetSlack)
		case resp.StatusCode >= 500:
			return errs.Wrap(errs.KindUpstreamUnavailable, name, err)
		case resp.StatusCode >= 400:
			return errs.Wrap(errs.KindInvalidInput, name, err)
		}
	}

	// No HTTP response at all means the request never completed.
	return errs.Wrap(errs.KindUpstreamUnavailable, name, err)
}
