package search

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/internal/database"
)

// Float64Slice is a custom type for JSON serialization of []float64 in SQLite.
type Float64Slice []float64

// Scan implements sql.Scanner for reading JSON from SQLite.
func (f *Float64Slice) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Float64Slice", value)
	}

	return json.Unmarshal(data, f)
}

// Value implements driver.Valuer for writing JSON to SQLite.
func (f Float64Slice) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// SQLiteEmbeddingEntity represents a document embedding row in SQLite.
// The table is bound via .Table(name) at the call site because GORM caches
// schemas by type and this struct has no static table name.
type SQLiteEmbeddingEntity struct {
	ID         int64        `gorm:"column:id;primaryKey;autoIncrement"`
	DocumentID string       `gorm:"column:document_id;uniqueIndex"`
	Embedding  Float64Slice `gorm:"column:embedding;type:json"`
}

// newSQLiteEmbeddingEntity creates a SQLiteEmbeddingEntity ready for insertion.
func newSQLiteEmbeddingEntity(documentID string, embedding []float64) SQLiteEmbeddingEntity {
	cp := make(Float64Slice, len(embedding))
	copy(cp, embedding)
	return SQLiteEmbeddingEntity{
		DocumentID: documentID,
		Embedding:  cp,
	}
}

// sqliteEntityFactory creates a SQLiteEmbeddingEntity from a domain embedding.
// Returns a pointer because GORM's Create requires a pointer to the entity.
func sqliteEntityFactory(emb search.Embedding) any {
	e := newSQLiteEmbeddingEntity(emb.DocumentID(), emb.Vector())
	return &e
}

// ErrSQLiteVectorInitializationFailed indicates SQLite vector initialization failed.
var ErrSQLiteVectorInitializationFailed = errors.New("failed to initialize SQLite vector store")

// SQLiteVectorStore implements search.VectorStore for SQLite.
// Stores embeddings as JSON and performs cosine similarity search in-memory.
type SQLiteVectorStore struct {
	repo        database.Repository[SQLiteEmbeddingEntity, SQLiteEmbeddingEntity]
	logger      *slog.Logger
	initialized bool
	mu          sync.Mutex
}

// NewSQLiteVectorStore creates a new SQLiteVectorStore.
func NewSQLiteVectorStore(db database.Database, logger *slog.Logger) *SQLiteVectorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteVectorStore{
		repo:   newSQLiteEmbeddingRepository(db),
		logger: logger,
	}
}

func (s *SQLiteVectorStore) initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	if err := s.createTable(ctx); err != nil {
		return errors.Join(ErrSQLiteVectorInitializationFailed, err)
	}

	s.initialized = true
	return nil
}

func (s *SQLiteVectorStore) createTable(ctx context.Context) error {
	// Raw SQL because GORM's AutoMigrate caches schemas by type, which
	// conflicts with the call-site table binding.
	createTableSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id VARCHAR(36) NOT NULL UNIQUE,
    embedding JSON NOT NULL
)`, s.repo.Table())

	return s.repo.DB(ctx).Exec(createTableSQL).Error
}

// SaveAll persists pre-computed embeddings, replacing any stored vector for
// the same document id.
func (s *SQLiteVectorStore) SaveAll(ctx context.Context, embeddings []search.Embedding) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}
	return saveEmbeddings(s.repo.DB(ctx), s.repo.Table(), embeddings, sqliteEntityFactory)
}

// Search performs vector similarity search using the pre-computed query
// embedding from options.
func (s *SQLiteVectorStore) Search(ctx context.Context, options ...repository.Option) ([]search.Result, error) {
	if err := s.initialize(ctx); err != nil {
		return nil, err
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

	vectors, err := s.loadVectors(ctx, options...)
	if err != nil {
		return nil, err
	}

	if len(vectors) == 0 {
		return []search.Result{}, nil
	}

	matches := TopKSimilar(queryEmbedding, vectors, limit)

	results := make([]search.Result, len(matches))
	for i, m := range matches {
		results[i] = search.NewResult(m.DocumentID(), m.Similarity())
	}

	return results, nil
}

// loadVectors loads embedding vectors from the database. Condition options
// (e.g. document_id IN) are applied as WHERE filters; search filters add the
// documents join.
func (s *SQLiteVectorStore) loadVectors(ctx context.Context, options ...repository.Option) ([]StoredVector, error) {
	var entities []SQLiteEmbeddingEntity

	q := repository.Build(options...)
	db := database.ApplyConditions(s.repo.DB(ctx), options...)

	if filters, ok := search.FiltersFrom(q); ok && !filters.IsEmpty() {
		// Qualify the select so the joined documents table cannot shadow
		// this table's id column during the scan.
		db = applySearchFilters(db.Select(s.repo.Table()+".*"), filters)
	}

	if err := db.Find(&entities).Error; err != nil {
		return nil, err
	}

	vectors := make([]StoredVector, 0, len(entities))
	for _, e := range entities {
		if len(e.Embedding) == 0 {
			s.logger.Warn("skipping empty embedding", "document_id", e.DocumentID)
			continue
		}
		vectors = append(vectors, NewStoredVector(e.DocumentID, e.Embedding))
	}

	return vectors, nil
}

// HasEmbeddings reports which of the given document IDs already have a
// stored embedding.
func (s *SQLiteVectorStore) HasEmbeddings(ctx context.Context, documentIDs []string) (map[string]bool, error) {
	if err := s.initialize(ctx); err != nil {
		return nil, err
	}

	found, err := storedDocumentIDs(s.repo.DB(ctx), documentIDs)
	if err != nil {
		return nil, err
	}
	return presenceMap(documentIDs, found), nil
}

// DeleteBy removes embeddings matching the given options.
func (s *SQLiteVectorStore) DeleteBy(ctx context.Context, options ...repository.Option) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}
	return s.repo.DeleteBy(ctx, options...)
}
