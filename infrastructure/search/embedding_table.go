package search

import (
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// vectorTable is the table holding document embeddings. Both backends use
// the same logical name because exactly one of them is active per deployment.
const vectorTable = "archie_document_embeddings"

// identityMapper is an EntityMapper where D = E (entity IS the domain type).
// Embedding entities are purely infrastructure — no separate domain aggregate
// exists for them, so mapping is a no-op.
type identityMapper[E any] struct{}

func (identityMapper[E]) ToDomain(entity E) E { return entity }
func (identityMapper[E]) ToModel(domain E) E  { return domain }

// entityFactory creates a GORM-insertable entity from a domain embedding.
// Each store provides its own factory because the PG store uses PgVector
// while the SQLite store uses Float64Slice.
type entityFactory func(embedding search.Embedding) any

// saveEmbeddings handles the SaveAll flow shared by both vector stores:
// drop invalid embeddings, then upsert each row in a transaction keyed on
// document_id so re-indexing a refreshed document replaces its vector.
func saveEmbeddings(db *gorm.DB, tableName string, embeddings []search.Embedding, factory entityFactory) error {
	var valid []search.Embedding
	for _, emb := range embeddings {
		if emb.DocumentID() != "" && !emb.IsEmpty() {
			valid = append(valid, emb)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	// Transactions do not inherit .Table() so the table name must be
	// re-applied inside the callback.
	return db.Transaction(func(tx *gorm.DB) error {
		for _, emb := range valid {
			entity := factory(emb)
			err := tx.Table(tableName).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "document_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"embedding"}),
			}).Create(entity).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// storedDocumentIDs returns the subset of ids that already have rows in the
// table. The db parameter should already be table-scoped.
func storedDocumentIDs(db *gorm.DB, ids []string) (map[string]struct{}, error) {
	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}

	var found []string
	err := db.Where("document_id IN ?", ids).Pluck("document_id", &found).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]struct{}, len(found))
	for _, id := range found {
		result[id] = struct{}{}
	}
	return result, nil
}

// presenceMap expands a found-set into the map shape HasEmbeddings returns:
// every requested id is present, true when a stored embedding exists.
func presenceMap(ids []string, found map[string]struct{}) map[string]bool {
	result := make(map[string]bool, len(ids))
	for _, id := range ids {
		_, ok := found[id]
		result[id] = ok
	}
	return result
}

// newSQLiteEmbeddingRepository creates a Repository for SQLiteEmbeddingEntity
// bound to the embedding table.
func newSQLiteEmbeddingRepository(db database.Database) database.Repository[SQLiteEmbeddingEntity, SQLiteEmbeddingEntity] {
	return database.NewRepositoryForTable[SQLiteEmbeddingEntity, SQLiteEmbeddingEntity](
		db,
		identityMapper[SQLiteEmbeddingEntity]{},
		"embedding",
		vectorTable,
	)
}

// newPgEmbeddingRepository creates a Repository for PgEmbeddingEntity bound
// to the embedding table.
func newPgEmbeddingRepository(db database.Database) database.Repository[PgEmbeddingEntity, PgEmbeddingEntity] {
	return database.NewRepositoryForTable[PgEmbeddingEntity, PgEmbeddingEntity](
		db,
		identityMapper[PgEmbeddingEntity]{},
		"embedding",
		vectorTable,
	)
}
