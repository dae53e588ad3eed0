// Package ingest provides the task handlers that turn repository trees
// into indexed, searchable documents.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/archielabs/archie/application/handler"
	"github.com/archielabs/archie/application/service"
	"github.com/archielabs/archie/domain/document"
	"github.com/archielabs/archie/domain/event"
	"github.com/archielabs/archie/domain/githost"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/infrastructure/chunking"
	"github.com/archielabs/archie/internal/config"
	"github.com/archielabs/archie/internal/errs"
	"github.com/google/uuid"
)

// Ingest handles the document.ingest task operation: it lists the
// repository tree, fetches changed file contents, chunks them, and
// upserts the resulting documents into the document and keyword stores.
//
// The run is incremental by default. Blob SHAs recorded on indexed
// documents are diffed against the provider tree, so unchanged files
// are skipped and deleted files are removed from the index. A forced
// run re-fetches everything; deterministic document ids make the
// re-upsert idempotent.
type Ingest struct {
	repositories   repository.Store
	provider       githost.Provider
	documents      document.Store
	statuses       document.StatusStore
	keyword        search.KeywordStore
	vector         search.VectorStore
	cfg            config.IngestConfig
	filter         config.IngestFilter
	completesRun   bool
	bus            event.Bus
	trackerFactory handler.TrackerFactory
	logger         *slog.Logger

	locks repositoryLocks
}

// NewIngest creates a new Ingest handler. completesRun marks this as the
// final step of the indexing workflow; when an embed step follows, the
// repository stays in analyzing until that step finishes.
func NewIngest(
	repositories repository.Store,
	provider githost.Provider,
	documents document.Store,
	statuses document.StatusStore,
	keyword search.KeywordStore,
	vector search.VectorStore,
	cfg config.IngestConfig,
	filter config.IngestFilter,
	completesRun bool,
	bus event.Bus,
	trackerFactory handler.TrackerFactory,
	logger *slog.Logger,
) *Ingest {
	return &Ingest{
		repositories:   repositories,
		provider:       provider,
		documents:      documents,
		statuses:       statuses,
		keyword:        keyword,
		vector:         vector,
		cfg:            cfg,
		filter:         filter,
		completesRun:   completesRun,
		bus:            bus,
		trackerFactory: trackerFactory,
		logger:         logger,
	}
}

// fetchedFile is one file's content with its tree metadata.
type fetchedFile struct {
	path    string
	sha     string
	size    int64
	content string
}

// Execute processes the document.ingest task under the pipeline's own
// time budget. The worker context is already detached from the caller
// that queued the run.
func (h *Ingest) Execute(ctx context.Context, payload map[string]any) error {
	repoID, err := handler.ExtractRepositoryID(payload)
	if err != nil {
		return err
	}
	force := handler.ExtractBool(payload, service.PayloadForce)

	// The persisted index status guards across processes; this lock
	// serializes concurrent runs for the same repository in-process.
	unlock := h.locks.lock(repoID)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, h.cfg.TimeBudget())
	defer cancel()

	tracker := h.trackerFactory.ForOperation(
		task.OperationIngestDocuments,
		task.TrackableTypeRepository,
		repoID.String(),
	)

	repo, err := h.repositories.Get(ctx, repoID)
	if err != nil {
		tracker.Fail(ctx, err.Error())
		return fmt.Errorf("get repository: %w", err)
	}
	if repo.Status() != repository.StatusAnalyzing {
		analyzing, ok := repo.TransitionTo(repository.StatusAnalyzing)
		if !ok {
			err := errs.Newf(errs.KindInvalidState,
				"repository %s is %s and cannot be indexed", repoID, repo.Status())
			tracker.Fail(ctx, err.Error())
			return err
		}
		if err := h.repositories.Save(ctx, analyzing); err != nil {
			tracker.Fail(ctx, err.Error())
			return fmt.Errorf("save repository: %w", err)
		}
		repo = analyzing
	}

	status, err := h.statuses.Get(ctx, repoID)
	if err != nil {
		tracker.Fail(ctx, err.Error())
		return fmt.Errorf("get index status: %w", err)
	}
	if status.State() != document.IndexStateInProgress {
		status, err = h.statuses.Save(ctx, status.Start())
		if err != nil {
			tracker.Fail(ctx, err.Error())
			return fmt.Errorf("save index status: %w", err)
		}
	}

	if err := h.run(ctx, repo, status, force, tracker); err != nil {
		h.failRun(ctx, repo, err)
		tracker.Fail(ctx, err.Error())
		return err
	}
	return nil
}

func (h *Ingest) run(ctx context.Context, repo repository.Repository, status document.IndexStatus, force bool, tracker handler.Tracker) error {
	branch := repo.DefaultBranch()
	if branch == "" {
		return errs.Newf(errs.KindInvalidState,
			"repository %s has no default branch; metadata refresh must run first", repo.ID())
	}

	tree, err := h.provider.GetTree(ctx, repo.Owner(), repo.Name(), branch, true)
	if err != nil {
		return fmt.Errorf("get tree: %w", err)
	}

	included := h.includedBlobs(tree)
	previous, err := h.documents.PathSHAs(ctx, repo.ID(), branch)
	if err != nil {
		return fmt.Errorf("load indexed paths: %w", err)
	}

	if err := h.removeDeletedPaths(ctx, repo.ID(), branch, included, previous); err != nil {
		return err
	}

	var work []githost.TreeEntry
	for _, entry := range included {
		if !force && previous[entry.Path()] == entry.SHA() {
			continue
		}
		work = append(work, entry)
	}

	tracker.SetTotal(ctx, len(work))

	files, err := h.fetchContents(ctx, repo, branch, work, tracker)
	if err != nil {
		return err
	}

	docs := h.chunkFiles(repo.ID(), branch, files)

	status = status.WithTotal(len(docs))
	if status, err = h.statuses.Save(ctx, status); err != nil {
		return fmt.Errorf("save index status: %w", err)
	}

	if status, err = h.upsertBatches(ctx, status, docs); err != nil {
		return err
	}

	if err := h.trimShrunkFiles(ctx, repo.ID(), branch, files); err != nil {
		return err
	}

	return h.finish(ctx, repo, status, branch, tree, included, len(docs))
}

// includedBlobs filters the tree down to text files within the size cap.
func (h *Ingest) includedBlobs(tree githost.Tree) []githost.TreeEntry {
	var included []githost.TreeEntry
	for _, entry := range tree.Blobs() {
		if h.filter.SkipPath(entry.Path()) || h.filter.SkipSize(entry.Size()) {
			continue
		}
		included = append(included, entry)
	}
	return included
}

// removeDeletedPaths drops index state for files no longer in the tree.
func (h *Ingest) removeDeletedPaths(ctx context.Context, repoID uuid.UUID, branch string, included []githost.TreeEntry, previous map[string]string) error {
	current := make(map[string]struct{}, len(included))
	for _, entry := range included {
		current[entry.Path()] = struct{}{}
	}

	for path := range previous {
		if _, ok := current[path]; ok {
			continue
		}
		if err := h.deleteFile(ctx, repoID, branch, path); err != nil {
			return err
		}
		h.logger.Debug("removed deleted path from index",
			slog.String("repo_id", repoID.String()),
			slog.String("path", path),
		)
	}
	return nil
}

// deleteFile removes every chunk of one file from all three indexes.
func (h *Ingest) deleteFile(ctx context.Context, repoID uuid.UUID, branch, path string) error {
	docs, err := h.documents.Find(ctx,
		repository.WithRepositoryID(repoID),
		document.WithBranch(branch),
		document.WithPath(path),
	)
	if err != nil {
		return fmt.Errorf("find chunks of %s: %w", path, err)
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID().String()
	}
	if err := h.keyword.DeleteBy(ctx, search.WithDocumentIDs(ids)); err != nil {
		return fmt.Errorf("delete keyword entries of %s: %w", path, err)
	}
	if err := h.vector.DeleteBy(ctx, search.WithDocumentIDs(ids)); err != nil {
		return fmt.Errorf("delete embeddings of %s: %w", path, err)
	}
	if err := h.documents.DeleteByPath(ctx, repoID, branch, path); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", path, err)
	}
	return nil
}

// fetchContents downloads blob contents with bounded concurrency,
// preserving tree order. Entries whose content decodes to effectively
// empty text come back with an empty content and are skipped later.
func (h *Ingest) fetchContents(ctx context.Context, repo repository.Repository, branch string, work []githost.TreeEntry, tracker handler.Tracker) ([]fetchedFile, error) {
	files := make([]fetchedFile, len(work))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.FetchConcurrency())

	for i, entry := range work {
		g.Go(func() error {
			content, err := h.provider.GetFileContent(ctx, repo.Owner(), repo.Name(), entry.Path(), branch)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", entry.Path(), err)
			}
			files[i] = fetchedFile{
				path:    entry.Path(),
				sha:     entry.SHA(),
				size:    entry.Size(),
				content: sanitizeText(content),
			}
			tracker.SetCurrent(ctx, i+1, fmt.Sprintf("Fetched %s", entry.Path()))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// chunkFiles splits fetched contents into documents. Chunking is pure:
// the same content always yields the same chunk sequence, and document
// ids derive from (repository, branch, path, index), so re-runs land on
// the same rows.
func (h *Ingest) chunkFiles(repoID uuid.UUID, branch string, files []fetchedFile) []document.Document {
	params := h.chunkParams()

	var docs []document.Document
	for _, file := range files {
		if strings.TrimSpace(file.content) == "" {
			continue
		}

		chunks, err := chunking.Split(file.content, params)
		if err != nil {
			h.logger.Warn("chunking failed, skipping file",
				slog.String("path", file.path),
				slog.String("error", err.Error()),
			)
			continue
		}

		language := document.LanguageForPath(file.path)
		for _, chunk := range chunks {
			docs = append(docs, document.NewDocument(repoID, branch, file.path, chunk.Index(), chunk.Content()).
				WithLanguage(language).
				WithLines(chunk.StartLine(), chunk.EndLine()).
				WithTokenCount(chunk.TokenCount()).
				WithBlobSHA(file.sha))
		}
	}
	return docs
}

// upsertBatches writes documents to the document and keyword stores in
// fixed-size batches, advancing the index status after each one so
// observers see monotonic progress.
func (h *Ingest) upsertBatches(ctx context.Context, status document.IndexStatus, docs []document.Document) (document.IndexStatus, error) {
	batchSize := h.cfg.UpsertBatchSize()

	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		batch := docs[start:end]

		if err := h.documents.Upsert(ctx, batch); err != nil {
			return status, fmt.Errorf("upsert documents: %w", err)
		}

		keywordDocs := make([]search.Document, len(batch))
		for i, d := range batch {
			keywordDocs[i] = search.NewDocument(d.ID().String(), d.Content())
		}
		if err := h.keyword.Index(ctx, search.NewIndexRequest(keywordDocs)); err != nil {
			return status, fmt.Errorf("index keywords: %w", err)
		}

		var err error
		status, err = h.statuses.Save(ctx, status.WithProgress(end))
		if err != nil {
			return status, fmt.Errorf("save index status: %w", err)
		}
	}
	return status, nil
}

// trimShrunkFiles removes stale trailing chunks of files that re-chunked
// into fewer pieces than their previous indexing produced.
func (h *Ingest) trimShrunkFiles(ctx context.Context, repoID uuid.UUID, branch string, files []fetchedFile) error {
	params := h.chunkParams()

	for _, file := range files {
		if strings.TrimSpace(file.content) == "" {
			if err := h.deleteFile(ctx, repoID, branch, file.path); err != nil {
				return err
			}
			continue
		}
		chunks, err := chunking.Split(file.content, params)
		if err != nil {
			continue
		}
		if err := h.documents.DeleteChunksFrom(ctx, repoID, branch, file.path, len(chunks)); err != nil {
			return fmt.Errorf("trim chunks of %s: %w", file.path, err)
		}
	}
	return nil
}

// finish records statistics and, when this is the workflow's final step,
// completes the run.
func (h *Ingest) finish(ctx context.Context, repo repository.Repository, status document.IndexStatus, branch string, tree githost.Tree, included []githost.TreeEntry, ingested int) error {
	total, err := h.documents.Count(ctx, repository.WithRepositoryID(repo.ID()))
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}

	repo = repo.WithStatistics(h.statistics(included, int(total)))
	repo = repo.WithIndexedCommit(h.headCommit(repo, branch, tree), status.UpdatedAt())

	if h.completesRun {
		if _, err := h.statuses.Save(ctx, status.Complete()); err != nil {
			return fmt.Errorf("save index status: %w", err)
		}
		ready, ok := repo.TransitionTo(repository.StatusReady)
		if !ok {
			return errs.Newf(errs.KindInvalidState,
				"repository %s cannot transition from %s to ready", repo.ID(), repo.Status())
		}
		repo = ready
	}

	if err := h.repositories.Save(ctx, repo); err != nil {
		return fmt.Errorf("save repository: %w", err)
	}

	if h.completesRun {
		if err := h.bus.Publish(ctx, event.NewRepositoryAnalysisCompleted(repo.ID(), int(total))); err != nil {
			h.logger.Warn("failed to publish analysis completed",
				slog.String("repo_id", repo.ID().String()),
				slog.String("error", err.Error()),
			)
		}
	}

	h.logger.Info("ingestion finished",
		slog.String("repo_id", repo.ID().String()),
		slog.String("branch", branch),
		slog.Int("files", len(included)),
		slog.Int("documents_ingested", ingested),
		slog.Int64("documents_total", total),
	)
	return nil
}

// statistics folds the included tree entries into repository statistics.
func (h *Ingest) statistics(included []githost.TreeEntry, documentCount int) repository.Statistics {
	var totalBytes int64
	languages := make(map[string]int64)
	for _, entry := range included {
		totalBytes += entry.Size()
		if lang := document.LanguageForPath(entry.Path()); lang != "" {
			languages[lang] += entry.Size()
		}
	}
	return repository.NewStatistics(len(included), documentCount, totalBytes, languages)
}

// headCommit resolves the commit SHA the run indexed: the default
// branch's recorded head, falling back to the tree SHA for providers
// that do not hydrate branch heads.
func (h *Ingest) headCommit(repo repository.Repository, branch string, tree githost.Tree) string {
	for _, b := range repo.Branches() {
		if b.Name() == branch && !b.LastCommit().IsEmpty() {
			return b.LastCommit().SHA()
		}
	}
	return tree.SHA()
}

// failRun records a failed run on the repository and its index status
// and publishes the failure event. Recording runs detached from ctx so
// an expired time budget cannot suppress it.
func (h *Ingest) failRun(ctx context.Context, repo repository.Repository, cause error) {
	ctx = context.WithoutCancel(ctx)

	if status, err := h.statuses.Get(ctx, repo.ID()); err == nil {
		if _, err := h.statuses.Save(ctx, status.Fail(cause.Error())); err != nil {
			h.logger.Error("failed to record index failure", slog.String("error", err.Error()))
		}
	}

	if err := h.repositories.Save(ctx, repo.WithError(cause.Error())); err != nil {
		h.logger.Error("failed to record repository failure", slog.String("error", err.Error()))
	}

	if err := h.bus.Publish(ctx, event.NewRepositoryAnalysisFailed(repo.ID(), cause.Error())); err != nil {
		h.logger.Warn("failed to publish analysis failed", slog.String("error", err.Error()))
	}
}

// chunkParams derives the splitter configuration from the ingest config.
func (h *Ingest) chunkParams() chunking.Params {
	params := chunking.DefaultParams()
	params.MaxTokens = h.cfg.ChunkTokens()
	params.OverlapTokens = h.cfg.ChunkOverlap()
	return params
}

// sanitizeText forces content to valid UTF-8, replacing undecodable
// bytes rather than dropping the file.
func sanitizeText(content string) string {
	if utf8.ValidString(content) {
		return content
	}
	return strings.ToValidUTF8(content, string(utf8.RuneError))
}

// repositoryLocks serializes ingest runs per repository. Entries are
// kept for the process lifetime; the set of active repositories is
// small and bounded by usage.
type repositoryLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// lock acquires the repository's mutex and returns its unlock func.
func (r *repositoryLocks) lock(id uuid.UUID) func() {
	r.mu.Lock()
	if r.locks == nil {
		r.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}
