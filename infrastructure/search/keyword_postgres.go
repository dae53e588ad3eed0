package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/search"
	"gorm.io/gorm"
)

// SQL statements for PostgreSQL native full-text search operations.
const (
	pgCreateKeywordTable = `
CREATE TABLE IF NOT EXISTS archie_document_fts (
    id SERIAL PRIMARY KEY,
    document_id VARCHAR(36) NOT NULL UNIQUE,
    content TEXT NOT NULL,
    tsv TSVECTOR
)`

	pgCreateTSVIndex = `
CREATE INDEX IF NOT EXISTS archie_document_fts_tsv_idx
ON archie_document_fts
USING GIN(tsv)`

	pgCreateTriggerFunction = `
CREATE OR REPLACE FUNCTION archie_document_fts_update_tsv()
RETURNS trigger AS $$
BEGIN
    NEW.tsv := to_tsvector('english', NEW.content);
    RETURN NEW;
END;
$$ LANGUAGE plpgsql`

	pgCreateTrigger = `
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_trigger WHERE tgname = 'archie_document_fts_tsv_trigger'
    ) THEN
        CREATE TRIGGER archie_document_fts_tsv_trigger
        BEFORE INSERT OR UPDATE ON archie_document_fts
        FOR EACH ROW EXECUTE FUNCTION archie_document_fts_update_tsv();
    END IF;
END;
$$`

	pgInsertQuery = `
INSERT INTO archie_document_fts (document_id, content)
VALUES (?, ?)
ON CONFLICT (document_id) DO UPDATE
SET content = EXCLUDED.content`

	pgDeleteQuery = `DELETE FROM archie_document_fts WHERE document_id IN ?`
)

// ErrPostgresKeywordInitializationFailed indicates PostgreSQL FTS initialization failed.
var ErrPostgresKeywordInitializationFailed = errors.New("failed to initialize PostgreSQL keyword store")

// PostgresKeywordStore implements search.KeywordStore using PostgreSQL
// native full-text search. A trigger keeps the tsvector column current, so
// the upsert in Index is enough to refresh changed documents.
type PostgresKeywordStore struct {
	db          *gorm.DB
	logger      *slog.Logger
	initialized bool
	mu          sync.Mutex
}

// NewPostgresKeywordStore creates a new PostgresKeywordStore.
func NewPostgresKeywordStore(db *gorm.DB, logger *slog.Logger) *PostgresKeywordStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresKeywordStore{
		db:     db,
		logger: logger,
	}
}

func (s *PostgresKeywordStore) initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	if err := s.createTable(ctx); err != nil {
		return errors.Join(ErrPostgresKeywordInitializationFailed, err)
	}

	if err := s.createTrigger(ctx); err != nil {
		return errors.Join(ErrPostgresKeywordInitializationFailed, err)
	}

	s.initialized = true
	return nil
}

func (s *PostgresKeywordStore) createTable(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	if err := db.Exec(pgCreateKeywordTable).Error; err != nil {
		return err
	}
	if err := db.Exec(pgCreateTSVIndex).Error; err != nil {
		return err
	}
	return nil
}

func (s *PostgresKeywordStore) createTrigger(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	if err := db.Exec(pgCreateTriggerFunction).Error; err != nil {
		return err
	}
	if err := db.Exec(pgCreateTrigger).Error; err != nil {
		return err
	}
	return nil
}

// Index adds documents to the keyword index. Existing document ids are
// updated in place via the upsert.
func (s *PostgresKeywordStore) Index(ctx context.Context, request search.IndexRequest) error {
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

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, doc := range valid {
			if err := tx.Exec(pgInsertQuery, doc.DocumentID(), doc.Text()).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Find performs keyword search ranked with ts_rank_cd.
func (s *PostgresKeywordStore) Find(ctx context.Context, options ...repository.Option) ([]search.Result, error) {
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

	tsQuery := buildTSQuery(query)
	if tsQuery == "" {
		return []search.Result{}, nil
	}

	tx := s.db.WithContext(ctx).
		Table("archie_document_fts").
		Select("document_id, ts_rank_cd(tsv, to_tsquery('english', ?)) as score", tsQuery).
		Where("tsv @@ to_tsquery('english', ?)", tsQuery)

	if documentIDs := search.DocumentIDsFrom(q); len(documentIDs) > 0 {
		tx = tx.Where("document_id IN ?", documentIDs)
	}
	if filters, ok := search.FiltersFrom(q); ok {
		tx = applySearchFilters(tx, filters)
	}

	tx = tx.Order("score DESC").Limit(limit)

	var rows []struct {
		DocumentID string  `gorm:"column:document_id"`
		Score      float64 `gorm:"column:score"`
	}
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, err
	}

	results := make([]search.Result, len(rows))
	for i, row := range rows {
		results[i] = search.NewResult(row.DocumentID, row.Score)
	}

	return results, nil
}

// DeleteBy removes documents matching the given options.
func (s *PostgresKeywordStore) DeleteBy(ctx context.Context, options ...repository.Option) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}

	q := repository.Build(options...)
	ids := search.DocumentIDsFrom(q)
	if len(ids) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Exec(pgDeleteQuery, ids).Error
}

// buildTSQuery turns free text into an OR-ed tsquery so ts_rank_cd ranks by
// term overlap instead of requiring every word to match. Characters with
// tsquery meaning are stripped before the terms are joined.
func buildTSQuery(query string) string {
	replacer := strings.NewReplacer(
		"'", " ",
		"\"", " ",
		"(", " ",
		")", " ",
		":", " ",
		"!", " ",
		"&", " ",
		"|", " ",
		"<", " ",
		">", " ",
		"*", " ",
	)
	fields := strings.Fields(replacer.Replace(query))
	return strings.Join(fields, " | ")
}
