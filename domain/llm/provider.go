package llm

import "context"

// Provider is a language model client.
//
// Implementations classify errors into errs kinds (UpstreamUnavailable,
// UpstreamRateLimited, UpstreamAuth, Timeout) and retry transient
// failures within their own budget before surfacing them.
type Provider interface {
	// ClassifyIntent classifies a user query. The context string
	// describes the conversation's repositories and domain.
	ClassifyIntent(ctx context.Context, query, context string) (Intent, error)

	// Complete answers a query grounded on retrieved documents and
	// recent history. Preferences tune tone and verbosity.
	Complete(ctx context.Context, query string, documents []ContextDocument, history []Turn, preferences map[string]string) (Completion, error)

	// SuggestFollowUps proposes up to n follow-up questions for an
	// answered query.
	SuggestFollowUps(ctx context.Context, query, answer, context string, n int) ([]string, error)
}
