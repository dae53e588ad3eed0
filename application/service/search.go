// Package service provides application layer services that orchestrate domain operations.
package service

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/archielabs/archie/domain/document"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/internal/config"
	"github.com/archielabs/archie/internal/errs"
	"github.com/google/uuid"
)

// SearchOption configures a search request.
type SearchOption func(*searchConfig)

// searchConfig holds search parameters.
type searchConfig struct {
	mode         search.Mode
	limit        int
	languages    []string
	repositories []uuid.UUID
	pathPrefix   string
	branch       string
}

// newSearchConfig creates a searchConfig with defaults.
func newSearchConfig() *searchConfig {
	return &searchConfig{
		mode:  search.ModeHybrid,
		limit: config.DefaultSearchLimit,
	}
}

// WithMode selects keyword, vector, or hybrid search.
func WithMode(mode search.Mode) SearchOption {
	return func(c *searchConfig) {
		if mode.IsValid() {
			c.mode = mode
		}
	}
}

// WithLimit sets the maximum number of results.
func WithLimit(n int) SearchOption {
	return func(c *searchConfig) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithLanguages filters results by programming languages.
func WithLanguages(langs ...string) SearchOption {
	return func(c *searchConfig) {
		c.languages = langs
	}
}

// WithRepositories filters results by repository IDs.
func WithRepositories(ids ...uuid.UUID) SearchOption {
	return func(c *searchConfig) {
		c.repositories = ids
	}
}

// WithPathPrefix filters results to paths under the prefix.
func WithPathPrefix(prefix string) SearchOption {
	return func(c *searchConfig) {
		c.pathPrefix = prefix
	}
}

// WithBranch filters results to one branch.
func WithBranch(branch string) SearchOption {
	return func(c *searchConfig) {
		c.branch = branch
	}
}

// SearchItem pairs a matched document with its fused score.
type SearchItem struct {
	document document.Document
	score    float64
}

// NewSearchItem creates a SearchItem from a document and score.
func NewSearchItem(doc document.Document, score float64) SearchItem {
	return SearchItem{document: doc, score: score}
}

// Document returns the matched document.
func (i SearchItem) Document() document.Document { return i.document }

// Score returns the fused search score.
func (i SearchItem) Score() float64 { return i.score }

// SearchResult represents the result of a search.
type SearchResult struct {
	items []SearchItem
	mode  search.Mode
}

// NewSearchResult creates a SearchResult from pre-scored items.
func NewSearchResult(items []SearchItem, mode search.Mode) SearchResult {
	return SearchResult{items: items, mode: mode}
}

// Items returns the matched documents ordered by score, best first.
func (r SearchResult) Items() []SearchItem {
	result := make([]SearchItem, len(r.items))
	copy(result, r.items)
	return result
}

// Mode returns the mode the search actually ran in. A hybrid request
// degrades to keyword when no embedder is configured.
func (r SearchResult) Mode() search.Mode { return r.mode }

// Count returns the number of matched documents.
func (r SearchResult) Count() int {
	return len(r.items)
}

// Search orchestrates hybrid code search across the keyword and vector indexes.
type Search struct {
	keyword   search.KeywordStore
	vector    search.VectorStore
	embedder  search.Embedder
	documents document.Store
	fusion    search.Fusion
	closed    *atomic.Bool
	logger    *slog.Logger
}

// NewSearch creates a new Search service. embedder may be nil, in which
// case vector search is unavailable and hybrid runs keyword-only.
func NewSearch(
	keyword search.KeywordStore,
	vector search.VectorStore,
	embedder search.Embedder,
	documents document.Store,
	closed *atomic.Bool,
	logger *slog.Logger,
) *Search {
	if logger == nil {
		logger = slog.Default()
	}
	return &Search{
		keyword:   keyword,
		vector:    vector,
		embedder:  embedder,
		documents: documents,
		fusion:    search.NewFusion(),
		closed:    closed,
		logger:    logger,
	}
}

// VectorAvailable reports whether vector search is configured.
func (s *Search) VectorAvailable() bool {
	return s.embedder != nil && s.vector != nil
}

// Query performs a search with options. The default is hybrid: keyword
// and vector results fused with reciprocal rank fusion.
func (s *Search) Query(ctx context.Context, query string, opts ...SearchOption) (SearchResult, error) {
	if s.closed != nil && s.closed.Load() {
		return SearchResult{}, ErrClientClosed
	}
	if query == "" {
		return SearchResult{}, errs.New(errs.KindInvalidInput, "search query cannot be empty")
	}

	searchCfg := newSearchConfig()
	for _, opt := range opts {
		opt(searchCfg)
	}

	mode := searchCfg.mode
	if mode != search.ModeKeyword && !s.VectorAvailable() {
		if mode == search.ModeVector {
			return SearchResult{}, errs.New(errs.KindInvalidState,
				"vector search unavailable: no embedding endpoint configured")
		}
		mode = search.ModeKeyword
	}

	filters := buildFilters(searchCfg)
	topK := searchCfg.limit

	var fusionLists [][]search.FusionRequest

	if mode == search.ModeKeyword || mode == search.ModeHybrid {
		results, err := s.keyword.Find(ctx,
			search.WithQuery(query),
			search.WithFilters(filters),
			repository.WithLimit(topK*2),
		)
		if err != nil {
			if mode == search.ModeKeyword {
				return SearchResult{}, err
			}
			s.logger.Warn("keyword search failed", "error", err)
		} else if len(results) > 0 {
			fusionLists = append(fusionLists, toFusionRequests(results))
		}
	}

	if mode == search.ModeVector || mode == search.ModeHybrid {
		results, err := s.vectorSearch(ctx, query, filters, topK*2)
		if err != nil {
			if mode == search.ModeVector {
				return SearchResult{}, err
			}
			s.logger.Warn("vector search failed", "error", err)
		} else if len(results) > 0 {
			fusionLists = append(fusionLists, toFusionRequests(results))
		}
	}

	if len(fusionLists) == 0 {
		return SearchResult{mode: mode}, nil
	}

	fusedResults := s.fusion.FuseTopK(topK, fusionLists...)

	documentIDs := make([]uuid.UUID, 0, len(fusedResults))
	fusedScores := make(map[string]float64, len(fusedResults))
	for _, result := range fusedResults {
		id, err := uuid.Parse(result.ID())
		if err != nil {
			continue
		}
		documentIDs = append(documentIDs, id)
		fusedScores[result.ID()] = result.Score()
	}

	if len(documentIDs) == 0 {
		return SearchResult{mode: mode}, nil
	}

	docs, err := s.documents.Find(ctx, repository.WithIDIn(documentIDs))
	if err != nil {
		return SearchResult{}, err
	}

	return SearchResult{items: orderByScore(docs, fusedScores), mode: mode}, nil
}

// vectorSearch embeds the query and runs similarity search.
func (s *Search) vectorSearch(ctx context.Context, query string, filters search.Filters, topK int) ([]search.Result, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errs.New(errs.KindInternal, "embedder returned no vector for query")
	}

	return s.vector.Search(ctx,
		search.WithEmbedding(vectors[0]),
		search.WithFilters(filters),
		repository.WithLimit(topK),
	)
}

func buildFilters(cfg *searchConfig) search.Filters {
	var filterOpts []search.FiltersOption
	if len(cfg.repositories) > 0 {
		filterOpts = append(filterOpts, search.WithRepositories(cfg.repositories))
	}
	if len(cfg.languages) > 0 {
		filterOpts = append(filterOpts, search.WithLanguages(cfg.languages))
	}
	if cfg.pathPrefix != "" {
		filterOpts = append(filterOpts, search.WithPathPrefix(cfg.pathPrefix))
	}
	if cfg.branch != "" {
		filterOpts = append(filterOpts, search.WithBranch(cfg.branch))
	}
	return search.NewFilters(filterOpts...)
}

// toFusionRequests converts search results to fusion requests.
func toFusionRequests(results []search.Result) []search.FusionRequest {
	requests := make([]search.FusionRequest, len(results))
	for i, r := range results {
		requests[i] = search.NewFusionRequest(r.DocumentID(), r.Score())
	}
	return requests
}

// orderByScore orders documents by their fused scores, best first.
func orderByScore(docs []document.Document, scores map[string]float64) []SearchItem {
	items := make([]SearchItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, SearchItem{document: d, score: scores[d.ID().String()]})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].document.ID().String() < items[j].document.ID().String()
	})

	return items
}
