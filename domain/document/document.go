// Package document provides the search index document domain types.
package document

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// documentNamespace is the UUIDv5 namespace for document ids.
var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("github.com/archielabs/archie/document"))

// NewDocumentID derives the deterministic id for a document from its
// logical coordinates. The same (repository, branch, path, chunkIndex)
// always yields the same id, which is what makes upserts idempotent.
func NewDocumentID(repositoryID uuid.UUID, branch, path string, chunkIndex int) uuid.UUID {
	name := fmt.Sprintf("%s/%s/%s#%d", repositoryID, branch, path, chunkIndex)
	return uuid.NewSHA1(documentNamespace, []byte(name))
}

// Document represents one indexed chunk of a repository file.
type Document struct {
	id           uuid.UUID
	repositoryID uuid.UUID
	branch       string
	path         string
	chunkIndex   int
	language     string
	content      string
	tokenCount   int
	startLine    int
	endLine      int
	blobSHA      string
	hasVector    bool
	updatedAt    time.Time
}

// NewDocument creates a Document with a deterministic id.
func NewDocument(repositoryID uuid.UUID, branch, path string, chunkIndex int, content string) Document {
	return Document{
		id:           NewDocumentID(repositoryID, branch, path, chunkIndex),
		repositoryID: repositoryID,
		branch:       branch,
		path:         path,
		chunkIndex:   chunkIndex,
		content:      content,
		updatedAt:    time.Now().UTC(),
	}
}

// ReconstructDocument reconstructs a Document from persistence.
func ReconstructDocument(
	id, repositoryID uuid.UUID,
	branch, path string,
	chunkIndex int,
	language, content string,
	tokenCount, startLine, endLine int,
	blobSHA string,
	hasVector bool,
	updatedAt time.Time,
) Document {
	return Document{
		id:           id,
		repositoryID: repositoryID,
		branch:       branch,
		path:         path,
		chunkIndex:   chunkIndex,
		language:     language,
		content:      content,
		tokenCount:   tokenCount,
		startLine:    startLine,
		endLine:      endLine,
		blobSHA:      blobSHA,
		hasVector:    hasVector,
		updatedAt:    updatedAt,
	}
}

// ID returns the document id.
func (d Document) ID() uuid.UUID { return d.id }

// RepositoryID returns the owning repository id.
func (d Document) RepositoryID() uuid.UUID { return d.repositoryID }

// Branch returns the branch this document was indexed from.
func (d Document) Branch() string { return d.branch }

// Path returns the file path within the repository.
func (d Document) Path() string { return d.path }

// ChunkIndex returns the zero-based chunk position within the file.
func (d Document) ChunkIndex() int { return d.chunkIndex }

// Language returns the detected language.
func (d Document) Language() string { return d.language }

// Content returns the chunk text.
func (d Document) Content() string { return d.content }

// TokenCount returns the estimated token count of the content.
func (d Document) TokenCount() int { return d.tokenCount }

// StartLine returns the first line of the chunk in the source file (1-based).
func (d Document) StartLine() int { return d.startLine }

// EndLine returns the last line of the chunk in the source file (1-based).
func (d Document) EndLine() int { return d.endLine }

// BlobSHA returns the git blob sha of the source file at index time.
func (d Document) BlobSHA() string { return d.blobSHA }

// HasVector returns true if an embedding is stored for this document.
func (d Document) HasVector() bool { return d.hasVector }

// UpdatedAt returns the last update timestamp.
func (d Document) UpdatedAt() time.Time { return d.updatedAt }

// Key returns the logical uniqueness key of the document.
func (d Document) Key() string {
	return fmt.Sprintf("%s/%s/%s#%d", d.repositoryID, d.branch, d.path, d.chunkIndex)
}

// WithLanguage returns a copy with the language set.
func (d Document) WithLanguage(language string) Document {
	d.language = language
	d.updatedAt = time.Now().UTC()
	return d
}

// WithLines returns a copy with the source line range set.
func (d Document) WithLines(start, end int) Document {
	d.startLine = start
	d.endLine = end
	d.updatedAt = time.Now().UTC()
	return d
}

// WithTokenCount returns a copy with the token count set.
func (d Document) WithTokenCount(count int) Document {
	d.tokenCount = count
	d.updatedAt = time.Now().UTC()
	return d
}

// WithBlobSHA returns a copy with the source blob sha set.
func (d Document) WithBlobSHA(sha string) Document {
	d.blobSHA = sha
	d.updatedAt = time.Now().UTC()
	return d
}

// WithVector returns a copy with the embedding flag set.
func (d Document) WithVector(hasVector bool) Document {
	d.hasVector = hasVector
	d.updatedAt = time.Now().UTC()
	return d
}

// IsEmpty returns true if the document has no id.
func (d Document) IsEmpty() bool {
	return d.id == uuid.Nil
}

// Equal returns true if two documents have the same id.
func (d Document) Equal(other Document) bool {
	return d.id == other.id
}
