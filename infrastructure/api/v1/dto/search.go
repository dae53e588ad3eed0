// Package dto defines request and response bodies for the v1 HTTP API.
package dto

import (
	"time"

	"github.com/archielabs/archie/infrastructure/api/jsonapi"
)

// SearchFilters narrows a search to a subset of the index.
type SearchFilters struct {
	Repositories []string `json:"repositories,omitempty"`
	Languages    []string `json:"languages,omitempty"`
	PathPrefix   string   `json:"path_prefix,omitempty"`
	Branch       string   `json:"branch,omitempty"`
}

// SearchAttributes represents search request attributes in JSON:API format.
type SearchAttributes struct {
	Query   string         `json:"query"`
	Mode    string         `json:"mode,omitempty"`
	Limit   *int           `json:"limit,omitempty"`
	Filters *SearchFilters `json:"filters,omitempty"`
}

// SearchData represents search request data in JSON:API format.
type SearchData struct {
	Type       string           `json:"type"`
	Attributes SearchAttributes `json:"attributes"`
}

// SearchRequest represents a JSON:API search request.
type SearchRequest struct {
	Data SearchData `json:"data"`
}

// DocumentAttributes represents an indexed document chunk in search results.
type DocumentAttributes struct {
	RepositoryID string     `json:"repository_id"`
	Branch       string     `json:"branch"`
	Path         string     `json:"path"`
	ChunkIndex   int        `json:"chunk_index"`
	Language     string     `json:"language,omitempty"`
	Content      string     `json:"content"`
	StartLine    int        `json:"start_line,omitempty"`
	EndLine      int        `json:"end_line,omitempty"`
	Score        float64    `json:"score"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// DocumentData represents a search result in JSON:API format.
type DocumentData struct {
	Type       string             `json:"type"`
	ID         string             `json:"id"`
	Attributes DocumentAttributes `json:"attributes"`
}

// SearchResponse represents a search API response in JSON:API format.
type SearchResponse struct {
	Data []DocumentData `json:"data"`
	Meta *jsonapi.Meta  `json:"meta,omitempty"`
}
