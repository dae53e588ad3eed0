// Package event defines domain events and the bus they are published on.
package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names a domain event.
type Kind string

// Kind values.
const (
	KindRepositoryAdded             Kind = "repository.added"
	KindRepositoryAnalysisStarted   Kind = "repository.analysis.started"
	KindRepositoryAnalysisCompleted Kind = "repository.analysis.completed"
	KindRepositoryAnalysisFailed    Kind = "repository.analysis.failed"
	KindGraphBuildCompleted         Kind = "graph.build.completed"
	KindGraphBuildFailed            Kind = "graph.build.failed"
	KindConversationStarted         Kind = "conversation.started"
	KindQueryProcessed              Kind = "query.processed"
	KindQueryProcessingFailed       Kind = "query.processing.failed"
)

// IsFailure reports whether the kind signals a failed operation.
func (k Kind) IsFailure() bool {
	switch k {
	case KindRepositoryAnalysisFailed, KindGraphBuildFailed, KindQueryProcessingFailed:
		return true
	default:
		return false
	}
}

// AllKinds lists every defined event kind.
func AllKinds() []Kind {
	return []Kind{
		KindRepositoryAdded,
		KindRepositoryAnalysisStarted,
		KindRepositoryAnalysisCompleted,
		KindRepositoryAnalysisFailed,
		KindGraphBuildCompleted,
		KindGraphBuildFailed,
		KindConversationStarted,
		KindQueryProcessed,
		KindQueryProcessingFailed,
	}
}

// Payload keys shared by event constructors.
const (
	PayloadURL               = "url"
	PayloadReason            = "reason"
	PayloadUserID            = "user_id"
	PayloadBuildID           = "build_id"
	PayloadMessageID         = "message_id"
	PayloadDocumentCount     = "document_count"
	PayloadEntityCount       = "entity_count"
	PayloadRelationshipCount = "relationship_count"
	PayloadResponseTime      = "response_time"
)

// Event is an immutable record of something that happened. AggregateID
// identifies the repository or conversation the event belongs to, which
// the bus uses to keep per-aggregate ordering.
type Event struct {
	id          uuid.UUID
	kind        Kind
	aggregateID string
	occurredAt  time.Time
	payload     map[string]string
}

func newEvent(kind Kind, aggregateID string, payload map[string]string) Event {
	return Event{
		id:          uuid.New(),
		kind:        kind,
		aggregateID: aggregateID,
		occurredAt:  time.Now().UTC(),
		payload:     payload,
	}
}

// NewRepositoryAdded records that a repository was connected.
func NewRepositoryAdded(repositoryID uuid.UUID, url string) Event {
	return newEvent(KindRepositoryAdded, repositoryID.String(), map[string]string{
		PayloadURL: url,
	})
}

// NewRepositoryAnalysisStarted records the start of an indexing run.
func NewRepositoryAnalysisStarted(repositoryID uuid.UUID) Event {
	return newEvent(KindRepositoryAnalysisStarted, repositoryID.String(), nil)
}

// NewRepositoryAnalysisCompleted records a finished indexing run.
func NewRepositoryAnalysisCompleted(repositoryID uuid.UUID, documentCount int) Event {
	return newEvent(KindRepositoryAnalysisCompleted, repositoryID.String(), map[string]string{
		PayloadDocumentCount: fmt.Sprintf("%d", documentCount),
	})
}

// NewRepositoryAnalysisFailed records a failed indexing run.
func NewRepositoryAnalysisFailed(repositoryID uuid.UUID, reason string) Event {
	return newEvent(KindRepositoryAnalysisFailed, repositoryID.String(), map[string]string{
		PayloadReason: reason,
	})
}

// NewGraphBuildCompleted records a finished graph construction run.
func NewGraphBuildCompleted(repositoryID, buildID uuid.UUID, entityCount, relationshipCount int) Event {
	return newEvent(KindGraphBuildCompleted, repositoryID.String(), map[string]string{
		PayloadBuildID:           buildID.String(),
		PayloadEntityCount:       fmt.Sprintf("%d", entityCount),
		PayloadRelationshipCount: fmt.Sprintf("%d", relationshipCount),
	})
}

// NewGraphBuildFailed records a failed graph construction run.
func NewGraphBuildFailed(repositoryID uuid.UUID, reason string) Event {
	return newEvent(KindGraphBuildFailed, repositoryID.String(), map[string]string{
		PayloadReason: reason,
	})
}

// NewConversationStarted records a new conversation.
func NewConversationStarted(conversationID uuid.UUID, userID string) Event {
	return newEvent(KindConversationStarted, conversationID.String(), map[string]string{
		PayloadUserID: userID,
	})
}

// NewQueryProcessed records a successfully answered query.
func NewQueryProcessed(conversationID, messageID uuid.UUID, responseTime time.Duration) Event {
	return newEvent(KindQueryProcessed, conversationID.String(), map[string]string{
		PayloadMessageID:    messageID.String(),
		PayloadResponseTime: responseTime.String(),
	})
}

// NewQueryProcessingFailed records a query that failed before persistence.
func NewQueryProcessingFailed(conversationID uuid.UUID, reason string) Event {
	return newEvent(KindQueryProcessingFailed, conversationID.String(), map[string]string{
		PayloadReason: reason,
	})
}

// ReconstructEvent rebuilds an Event, used by tests and replay tooling.
func ReconstructEvent(id uuid.UUID, kind Kind, aggregateID string, occurredAt time.Time, payload map[string]string) Event {
	return Event{
		id:          id,
		kind:        kind,
		aggregateID: aggregateID,
		occurredAt:  occurredAt,
		payload:     copyPayload(payload),
	}
}

// ID returns the event id.
func (e Event) ID() uuid.UUID { return e.id }

// Kind returns the event kind.
func (e Event) Kind() Kind { return e.kind }

// AggregateID returns the owning aggregate's id.
func (e Event) AggregateID() string { return e.aggregateID }

// OccurredAt returns when the event happened.
func (e Event) OccurredAt() time.Time { return e.occurredAt }

// Payload returns a copy of the payload.
func (e Event) Payload() map[string]string { return copyPayload(e.payload) }

// PayloadValue returns a payload entry, or "".
func (e Event) PayloadValue(key string) string { return e.payload[key] }

// IsEmpty returns true if the event has no id.
func (e Event) IsEmpty() bool { return e.id == uuid.Nil }

func copyPayload(payload map[string]string) map[string]string {
	if payload == nil {
		return nil
	}
	result := make(map[string]string, len(payload))
	for k, v := range payload {
		result[k] = v
	}
	return result
}
