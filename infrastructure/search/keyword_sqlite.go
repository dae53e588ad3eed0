package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/search"
	"gorm.io/gorm"
)

// SQL statements for SQLite FTS5 keyword operations.
const (
	sqliteCreateFTS5Table = `
CREATE VIRTUAL TABLE IF NOT EXISTS archie_document_fts USING fts5(
    document_id UNINDEXED,
    content,
    tokenize='porter ascii'
)`

	sqliteInsertQuery = `
INSERT INTO archie_document_fts (rowid, document_id, content)
VALUES (?, ?, ?)`

	sqliteDeleteQuery = `DELETE FROM archie_document_fts WHERE document_id IN ?`

	sqliteExistingIDsQuery = `SELECT document_id FROM archie_document_fts WHERE document_id IN ?`

	sqliteMaxRowIDQuery = `SELECT COALESCE(MAX(rowid), 0) FROM archie_document_fts`
)

// SQL statements for the plain-table fallback used when the sqlite
// driver was built without FTS5 support.
const (
	sqliteCreateFallbackTable = `
CREATE TABLE IF NOT EXISTS archie_document_keywords (
    document_id TEXT PRIMARY KEY,
    content TEXT NOT NULL
)`

	sqliteFallbackUpsertQuery = `
INSERT INTO archie_document_keywords (document_id, content)
VALUES (?, ?)
ON CONFLICT (document_id) DO UPDATE SET content = excluded.content`

	sqliteFallbackDeleteQuery = `DELETE FROM archie_document_keywords WHERE document_id IN ?`
)

// ErrSQLiteKeywordInitializationFailed indicates SQLite FTS5 initialization failed.
var ErrSQLiteKeywordInitializationFailed = errors.New("failed to initialize SQLite FTS5 keyword store")

// SQLiteKeywordStore implements search.KeywordStore using SQLite FTS5.
// Scores come from the built-in bm25() ranking function. FTS5 requires
// building with -tags sqlite_fts5; without it the store degrades to a
// plain table with LIKE matching scored by query-term overlap, so
// indexing and keyword search keep working on a default build.
type SQLiteKeywordStore struct {
	db          *gorm.DB
	logger      *slog.Logger
	initialized bool
	fallback    bool
	nextRowID   int64
	mu          sync.Mutex
}

// NewSQLiteKeywordStore creates a new SQLiteKeywordStore.
func NewSQLiteKeywordStore(db *gorm.DB, logger *slog.Logger) *SQLiteKeywordStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteKeywordStore{
		db:     db,
		logger: logger,
	}
}

func (s *SQLiteKeywordStore) initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	if err := s.createTable(ctx); err != nil {
		if !isMissingFTS5(err) {
			return errors.Join(ErrSQLiteKeywordInitializationFailed, err)
		}
		if err := s.initializeFallback(ctx); err != nil {
			return errors.Join(ErrSQLiteKeywordInitializationFailed, err)
		}
		return nil
	}

	// Get the max rowid to continue from
	var maxRowID int64
	if err := s.db.WithContext(ctx).Raw(sqliteMaxRowIDQuery).Scan(&maxRowID).Error; err != nil {
		return errors.Join(ErrSQLiteKeywordInitializationFailed, err)
	}
	s.nextRowID = maxRowID + 1

	s.initialized = true
	return nil
}

func (s *SQLiteKeywordStore) createTable(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec(sqliteCreateFTS5Table).Error
}

// initializeFallback prepares the plain-table store. Called with s.mu held.
func (s *SQLiteKeywordStore) initializeFallback(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec(sqliteCreateFallbackTable).Error; err != nil {
		return err
	}

	s.logger.Warn("sqlite fts5 unavailable, keyword search degrades to substring matching; build with -tags sqlite_fts5 for bm25 ranking")
	s.fallback = true
	s.initialized = true
	return nil
}

// isMissingFTS5 reports whether the error is sqlite's "no such module:
// fts5", raised when the driver was compiled without the extension.
func isMissingFTS5(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "fts5")
}

func (s *SQLiteKeywordStore) existingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var existingIDs []string
	err := s.db.WithContext(ctx).Raw(sqliteExistingIDsQuery, ids).Scan(&existingIDs).Error
	if err != nil {
		return nil, err
	}
	return existingIDs, nil
}

// Index adds documents to the keyword index. Document ids are stable across
// content changes, so rows that already exist are removed and re-inserted
// rather than skipped; a refreshed file never leaves stale text behind.
func (s *SQLiteKeywordStore) Index(ctx context.Context, request search.IndexRequest) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}

	documents := request.Documents()

	var valid []search.Document
	for _, doc := range documents {
		if doc.DocumentID() != "" && doc.Text() != "" {
			valid = append(valid, doc)
		}
	}

	if len(valid) == 0 {
		s.logger.Warn("corpus is empty, skipping keyword index")
		return nil
	}

	if s.fallback {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, doc := range valid {
				if err := tx.Exec(sqliteFallbackUpsertQuery, doc.DocumentID(), doc.Text()).Error; err != nil {
					return err
				}
			}
			return nil
		})
	}

	ids := make([]string, len(valid))
	for i, doc := range valid {
		ids[i] = doc.DocumentID()
	}

	stale, err := s.existingIDs(ctx, ids)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(stale) > 0 {
			if err := tx.Exec(sqliteDeleteQuery, stale).Error; err != nil {
				return err
			}
		}
		for _, doc := range valid {
			rowID := s.nextRowID
			s.nextRowID++
			if err := tx.Exec(sqliteInsertQuery, rowID, doc.DocumentID(), doc.Text()).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Find performs keyword search using options. Query text is read from
// WithQuery; document id conditions and search filters narrow the match set.
func (s *SQLiteKeywordStore) Find(ctx context.Context, options ...repository.Option) ([]search.Result, error) {
	if err := s.initialize(ctx); err != nil {
		return nil, err
	}

	q := repository.Build(options...)
	query, ok := search.QueryFrom(q)
	if !ok || query == "" {
		return []search.Result{}, nil
	}

	limit := q.LimitValue()
	if limit <= 0 {
		limit = 10
	}

	if s.fallback {
		return s.findFallback(ctx, q, query, limit)
	}

	ftsQuery := escapeFTS5Query(query)

	tx := s.db.WithContext(ctx).
		Table("archie_document_fts").
		Select("document_id, bm25(archie_document_fts) as score").
		Where("archie_document_fts MATCH ?", ftsQuery)

	if documentIDs := search.DocumentIDsFrom(q); len(documentIDs) > 0 {
		tx = tx.Where("document_id IN ?", documentIDs)
	}
	if filters, ok := search.FiltersFrom(q); ok {
		tx = applySearchFilters(tx, filters)
	}

	tx = tx.Order("score").Limit(limit)

	// Use manual row scanning to ensure FTS5 UNINDEXED columns are read correctly
	sqlRows, err := tx.Rows()
	if err != nil {
		return nil, err
	}
	defer func() { _ = sqlRows.Close() }()

	var results []search.Result
	for sqlRows.Next() {
		var documentID string
		var score float64
		if err := sqlRows.Scan(&documentID, &score); err != nil {
			return nil, err
		}
		// SQLite bm25() returns negative scores (lower/more negative is better)
		// Convert to positive scores for consistency (negate)
		results = append(results, search.NewResult(documentID, -score))
	}

	if err := sqlRows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// findFallback ranks rows by query-term overlap: the score is the
// fraction of query tokens whose text appears in the document. LIKE is
// case-insensitive for ASCII, matching FTS5's default tokenizer closely
// enough for degraded operation.
func (s *SQLiteKeywordStore) findFallback(ctx context.Context, q repository.Query, query string, limit int) ([]search.Result, error) {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return []search.Result{}, nil
	}

	conditions := make([]string, len(tokens))
	args := make([]any, len(tokens))
	for i, token := range tokens {
		conditions[i] = "content LIKE ?"
		args[i] = "%" + token + "%"
	}

	tx := s.db.WithContext(ctx).
		Table("archie_document_keywords").
		Select("document_id, content").
		Where(strings.Join(conditions, " OR "), args...)

	if documentIDs := search.DocumentIDsFrom(q); len(documentIDs) > 0 {
		tx = tx.Where("document_id IN ?", documentIDs)
	}
	if filters, ok := search.FiltersFrom(q); ok {
		tx = applySearchFilters(tx, filters)
	}

	sqlRows, err := tx.Rows()
	if err != nil {
		return nil, err
	}
	defer func() { _ = sqlRows.Close() }()

	var results []search.Result
	for sqlRows.Next() {
		var documentID, content string
		if err := sqlRows.Scan(&documentID, &content); err != nil {
			return nil, err
		}

		lowered := strings.ToLower(content)
		matched := 0
		for _, token := range tokens {
			if strings.Contains(lowered, token) {
				matched++
			}
		}
		results = append(results, search.NewResult(documentID, float64(matched)/float64(len(tokens))))
	}
	if err := sqlRows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score() > results[j].Score()
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteBy removes documents matching the given options.
func (s *SQLiteKeywordStore) DeleteBy(ctx context.Context, options ...repository.Option) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}

	q := repository.Build(options...)
	ids := search.DocumentIDsFrom(q)
	if len(ids) == 0 {
		return nil
	}

	if s.fallback {
		return s.db.WithContext(ctx).Exec(sqliteFallbackDeleteQuery, ids).Error
	}
	return s.db.WithContext(ctx).Exec(sqliteDeleteQuery, ids).Error
}

// escapeFTS5Query turns free text into an FTS5 query. Each whitespace token
// becomes a quoted term (embedded quotes doubled per FTS5 string syntax) and
// terms are OR-ed so bm25 ranks documents by term overlap instead of
// requiring every word to match.
func escapeFTS5Query(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return `""`
	}
	terms := make([]string, len(fields))
	for i, f := range fields {
		terms[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(terms, " OR ")
}
