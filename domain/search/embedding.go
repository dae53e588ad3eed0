package search

// Embedding pairs a document id with its vector.
type Embedding struct {
	documentID string
	vector     []float64
}

// NewEmbedding creates a new Embedding.
func NewEmbedding(documentID string, vector []float64) Embedding {
	v := make([]float64, len(vector))
	copy(v, vector)
	return Embedding{
		documentID: documentID,
		vector:     v,
	}
}

// DocumentID returns the document ID.
func (e Embedding) DocumentID() string { return e.documentID }

// Vector returns a copy of the embedding vector.
func (e Embedding) Vector() []float64 {
	v := make([]float64, len(e.vector))
	copy(v, e.vector)
	return v
}

// Dimension returns the vector dimension.
func (e Embedding) Dimension() int { return len(e.vector) }

// IsEmpty returns true if the embedding has no vector.
func (e Embedding) IsEmpty() bool { return len(e.vector) == 0 }
