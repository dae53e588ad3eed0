package dto

// RepositoryAddRequest is the body for POST /repositories.
type RepositoryAddRequest struct {
	URL string `json:"url"`
}

// RepositoryIndexRequest is the body for POST /repositories/{id}/index.
type RepositoryIndexRequest struct {
	Force bool `json:"force"`
}

// IndexStatusResponse reports the state of an indexing run.
type IndexStatusResponse struct {
	RepositoryID      string  `json:"repository_id"`
	State             string  `json:"state"`
	DocumentsIndexed  int     `json:"documents_indexed"`
	TotalDocuments    int     `json:"total_documents"`
	CompletionPercent float64 `json:"completion_percent"`
	Error             string  `json:"error,omitempty"`
}
