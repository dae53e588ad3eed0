package llm

import "slices"

// ContextDocument is a retrieved document passed to the model as
// grounding context.
type ContextDocument struct {
	id      string
	path    string
	content string
	score   float64
}

// NewContextDocument creates a grounding document.
func NewContextDocument(id, path, content string, score float64) ContextDocument {
	return ContextDocument{id: id, path: path, content: content, score: score}
}

// ID returns the document id.
func (d ContextDocument) ID() string { return d.id }

// Path returns the source file path.
func (d ContextDocument) Path() string { return d.path }

// Content returns the document text.
func (d ContextDocument) Content() string { return d.content }

// Score returns the retrieval score.
func (d ContextDocument) Score() float64 { return d.score }

// Turn is one prior message passed as conversation history.
type Turn struct {
	role    string
	content string
}

// History roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// NewTurn creates a history turn.
func NewTurn(role, content string) Turn {
	return Turn{role: role, content: content}
}

// Role returns who authored the turn.
func (t Turn) Role() string { return t.role }

// Content returns the turn text.
func (t Turn) Content() string { return t.content }

// Reference is a structured citation returned alongside an answer.
type Reference struct {
	title     string
	reference string
	snippet   string
}

// NewReference creates a citation.
func NewReference(title, reference, snippet string) Reference {
	return Reference{title: title, reference: reference, snippet: snippet}
}

// Title returns the display title.
func (r Reference) Title() string { return r.title }

// Reference returns the cited identifier, path or URL.
func (r Reference) Reference() string { return r.reference }

// Snippet returns an optional excerpt.
func (r Reference) Snippet() string { return r.snippet }

// Completion is the model's answer to a query.
type Completion struct {
	answer         string
	confidence     float64
	references     []Reference
	relatedQueries []string
}

// NewCompletion creates a Completion. Confidence is clamped to [0, 1].
func NewCompletion(answer string, confidence float64, references []Reference, relatedQueries []string) Completion {
	return Completion{
		answer:         answer,
		confidence:     clampUnit(confidence),
		references:     slices.Clone(references),
		relatedQueries: slices.Clone(relatedQueries),
	}
}

// Answer returns the answer text.
func (c Completion) Answer() string { return c.answer }

// Confidence returns the answer confidence in [0, 1].
func (c Completion) Confidence() float64 { return c.confidence }

// References returns a copy of the citations.
func (c Completion) References() []Reference { return slices.Clone(c.references) }

// RelatedQueries returns a copy of the related query suggestions.
func (c Completion) RelatedQueries() []string { return slices.Clone(c.relatedQueries) }

// IsEmpty returns true if there is no answer text.
func (c Completion) IsEmpty() bool { return c.answer == "" }
