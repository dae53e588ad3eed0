package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/internal/database"
	"gorm.io/gorm"
)

// SQL queries specific to pgvector (extension, index, catalog).
const (
	pgvCreateExtension = `CREATE EXTENSION IF NOT EXISTS vector`

	pgvCreateIndex = `
CREATE INDEX IF NOT EXISTS archie_document_embeddings_idx
ON archie_document_embeddings
USING ivfflat (embedding vector_cosine_ops)
WITH (lists = 100)`

	pgvCheckDimension = `
SELECT a.atttypmod as dimension
FROM pg_attribute a
JOIN pg_class c ON a.attrelid = c.oid
WHERE c.relname = 'archie_document_embeddings'
AND a.attname = 'embedding'`

	pgvTableExists = `SELECT to_regclass('archie_document_embeddings') IS NOT NULL`
)

// ErrPgvectorInitializationFailed indicates pgvector initialization failed.
var ErrPgvectorInitializationFailed = errors.New("failed to initialize pgvector store")

// ErrDimensionMismatch indicates embedding dimension doesn't match database.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// PgEmbeddingEntity represents a document embedding row in PostgreSQL.
// The table is bound via .Table(name) at the call site because GORM caches
// schemas by type and this struct has no static table name.
type PgEmbeddingEntity struct {
	ID         int64             `gorm:"column:id;primaryKey;autoIncrement"`
	DocumentID string            `gorm:"column:document_id;uniqueIndex"`
	Embedding  database.PgVector `gorm:"column:embedding;type:vector"`
}

// newPgEmbeddingEntity creates a PgEmbeddingEntity ready for insertion.
func newPgEmbeddingEntity(documentID string, embedding database.PgVector) PgEmbeddingEntity {
	return PgEmbeddingEntity{
		DocumentID: documentID,
		Embedding:  embedding,
	}
}

// pgEntityFactory creates a PgEmbeddingEntity from a domain embedding.
// Returns a pointer because GORM's Create requires a pointer to the entity.
func pgEntityFactory(emb search.Embedding) any {
	e := newPgEmbeddingEntity(emb.DocumentID(), database.NewPgVector(emb.Vector()))
	return &e
}

// PgvectorStore implements search.VectorStore using the PostgreSQL pgvector
// extension. The table is created on the first SaveAll because the column
// dimension comes from the stored vectors themselves; reads before that
// simply see an empty index.
type PgvectorStore struct {
	repo        database.Repository[PgEmbeddingEntity, PgEmbeddingEntity]
	logger      *slog.Logger
	initialized bool
	tableReady  bool
	mu          sync.Mutex
}

// NewPgvectorStore creates a new PgvectorStore.
func NewPgvectorStore(db database.Database, logger *slog.Logger) *PgvectorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PgvectorStore{
		repo:   newPgEmbeddingRepository(db),
		logger: logger,
	}
}

func (s *PgvectorStore) initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	if err := s.repo.DB(ctx).Exec(pgvCreateExtension).Error; err != nil {
		return errors.Join(ErrPgvectorInitializationFailed, err)
	}

	var exists bool
	if err := s.repo.DB(ctx).Raw(pgvTableExists).Scan(&exists).Error; err != nil {
		return errors.Join(ErrPgvectorInitializationFailed, err)
	}
	s.tableReady = exists

	s.initialized = true
	return nil
}

func (s *PgvectorStore) ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tableReady
}

// ensureTable creates the embedding table and index for the given dimension,
// or verifies an existing table's dimension matches.
func (s *PgvectorStore) ensureTable(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.repo.DB(ctx)

	if !s.tableReady {
		createTableSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id SERIAL PRIMARY KEY,
    document_id VARCHAR(36) NOT NULL UNIQUE,
    embedding VECTOR(%d) NOT NULL
)`, s.repo.Table(), dimension)
		if err := db.Exec(createTableSQL).Error; err != nil {
			return errors.Join(ErrPgvectorInitializationFailed, err)
		}

		if err := db.Exec(pgvCreateIndex).Error; err != nil {
			s.logger.Warn("failed to create index (may already exist)", "error", err)
		}

		s.tableReady = true
	}

	var dbDimension int
	result := db.Raw(pgvCheckDimension).Scan(&dbDimension)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	if result.RowsAffected > 0 && dbDimension != dimension {
		return fmt.Errorf("%w: database has %d, incoming vectors have %d", ErrDimensionMismatch, dbDimension, dimension)
	}

	return nil
}

// SaveAll persists pre-computed embeddings, replacing any stored vector for
// the same document id.
func (s *PgvectorStore) SaveAll(ctx context.Context, embeddings []search.Embedding) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}

	dimension := 0
	for _, emb := range embeddings {
		if !emb.IsEmpty() {
			dimension = emb.Dimension()
			break
		}
	}
	if dimension == 0 {
		return nil
	}

	if err := s.ensureTable(ctx, dimension); err != nil {
		return err
	}

	return saveEmbeddings(s.repo.DB(ctx), s.repo.Table(), embeddings, pgEntityFactory)
}

// Search performs cosine-distance similarity search using the pre-computed
// query embedding from options.
func (s *PgvectorStore) Search(ctx context.Context, options ...repository.Option) ([]search.Result, error) {
	if err := s.initialize(ctx); err != nil {
		return nil, err
	}
	if !s.ready() {
		return []search.Result{}, nil
	}

	q := repository.Build(options...)
	queryEmbedding, ok := search.EmbeddingFrom(q)
	if !ok || len(queryEmbedding) == 0 {
		return []search.Result{}, nil
	}

	limit := q.LimitValue()
	if limit <= 0 {
		limit = 10
	}

	vector := database.NewPgVector(queryEmbedding).String()

	tx := s.repo.DB(ctx).Select("document_id, embedding <=> ? as score", vector)
	tx = database.ApplyConditions(tx, options...)
	if filters, ok := search.FiltersFrom(q); ok && !filters.IsEmpty() {
		tx = applySearchFilters(tx, filters)
	}
	tx = tx.Order("score ASC").Limit(limit)

	var rows []struct {
		DocumentID string  `gorm:"column:document_id"`
		Score      float64 `gorm:"column:score"`
	}
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, err
	}

	results := make([]search.Result, len(rows))
	for i, row := range rows {
		// Cosine distance: 0 = identical, 2 = opposite.
		// Convert to similarity: 1 - distance/2 for 0-1 range.
		similarity := 1.0 - row.Score/2.0
		results[i] = search.NewResult(row.DocumentID, similarity)
	}

	return results, nil
}

// HasEmbeddings reports which of the given document IDs already have a
// stored embedding.
func (s *PgvectorStore) HasEmbeddings(ctx context.Context, documentIDs []string) (map[string]bool, error) {
	if err := s.initialize(ctx); err != nil {
		return nil, err
	}
	if !s.ready() {
		return presenceMap(documentIDs, nil), nil
	}

	found, err := storedDocumentIDs(s.repo.DB(ctx), documentIDs)
	if err != nil {
		return nil, err
	}
	return presenceMap(documentIDs, found), nil
}

// DeleteBy removes embeddings matching the given options.
func (s *PgvectorStore) DeleteBy(ctx context.Context, options ...repository.Option) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}
	if !s.ready() {
		return nil
	}
	return s.repo.DeleteBy(ctx, options...)
}
