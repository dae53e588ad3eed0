package mcp

import (
	"fmt"

	"github.com/google/uuid"
)

// FileURI builds file resource URIs for MCP tool results.
// Immutable value object — methods return copies.
type FileURI struct {
	repositoryID uuid.UUID
	branch       string
	path         string
	startLine    int
	endLine      int
}

// NewFileURI creates a FileURI with the required fields.
func NewFileURI(repositoryID uuid.UUID, branch, path string) FileURI {
	return FileURI{
		repositoryID: repositoryID,
		branch:       branch,
		path:         path,
	}
}

// WithLineRange returns a copy with line range set.
func (u FileURI) WithLineRange(start, end int) FileURI {
	u.startLine = start
	u.endLine = end
	return u
}

// String builds the file:// URI string.
func (u FileURI) String() string {
	base := fmt.Sprintf("file://%s/%s/%s", u.repositoryID, u.branch, u.path)
	if u.startLine > 0 {
		return fmt.Sprintf("%s?lines=L%d-L%d&line_numbers=true", base, u.startLine, u.endLine)
	}
	return base
}
