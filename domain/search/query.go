// Package search provides search domain types for hybrid code retrieval.
package search

// Mode represents the type of search to perform.
type Mode string

// Mode values.
const (
	ModeKeyword Mode = "keyword"
	ModeVector  Mode = "vector"
	ModeHybrid  Mode = "hybrid"
)

// IsValid returns true for a known search mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeKeyword, ModeVector, ModeHybrid:
		return true
	}
	return false
}

// Query represents a document search query.
type Query struct {
	text    string
	mode    Mode
	filters Filters
	topK    int
}

// NewQuery creates a new Query.
func NewQuery(text string, mode Mode, filters Filters, topK int) Query {
	return Query{
		text:    text,
		mode:    mode,
		filters: filters,
		topK:    topK,
	}
}

// Text returns the query text.
func (q Query) Text() string { return q.text }

// Mode returns the search mode.
func (q Query) Mode() Mode { return q.mode }

// Filters returns the search filters.
func (q Query) Filters() Filters { return q.filters }

// TopK returns the number of results.
func (q Query) TopK() int { return q.topK }
