package search

import (
	"github.com/archielabs/archie/domain/search"
	"gorm.io/gorm"
)

// applySearchFilters adds a JOIN against the documents table plus WHERE
// clauses for any set filters. The calling table must have a document_id
// column holding document ids as strings; documents.id uses the same
// representation so no casting is needed.
func applySearchFilters(db *gorm.DB, filters search.Filters) *gorm.DB {
	if filters.IsEmpty() {
		return db
	}

	db = db.Joins("JOIN documents ON documents.id = document_id")

	if ids := filters.RepositoryIDs(); len(ids) > 0 {
		raw := make([]string, len(ids))
		for i, id := range ids {
			raw[i] = id.String()
		}
		db = db.Where("documents.repository_id IN ?", raw)
	}
	if languages := filters.Languages(); len(languages) > 0 {
		db = db.Where("documents.language IN ?", languages)
	}
	if branch := filters.Branch(); branch != "" {
		db = db.Where("documents.branch = ?", branch)
	}
	if prefix := filters.PathPrefix(); prefix != "" {
		db = db.Where("documents.path LIKE ?", prefix+"%")
	}

	return db
}
