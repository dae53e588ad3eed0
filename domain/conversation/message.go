package conversation

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageType distinguishes who authored a message.
type MessageType string

// MessageType values.
const (
	MessageTypeUser   MessageType = "user"
	MessageTypeAI     MessageType = "ai"
	MessageTypeSystem MessageType = "system"
)

// IsValid returns true for a known message type.
func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeUser, MessageTypeAI, MessageTypeSystem:
		return true
	default:
		return false
	}
}

// Attachment is a structured reference carried by an AI message, usually
// pointing at a retrieved document or graph entity.
type Attachment struct {
	kind      string
	title     string
	reference string
	snippet   string
}

// NewAttachment creates an Attachment. Kind names what the reference
// points at, e.g. "document" or "entity".
func NewAttachment(kind, title, reference, snippet string) Attachment {
	return Attachment{kind: kind, title: title, reference: reference, snippet: snippet}
}

// Kind returns what the attachment references.
func (a Attachment) Kind() string { return a.kind }

// Title returns the display title.
func (a Attachment) Title() string { return a.title }

// Reference returns the referenced identifier, path or URL.
func (a Attachment) Reference() string { return a.reference }

// Snippet returns an optional excerpt.
func (a Attachment) Snippet() string { return a.snippet }

// MessageMetadata carries measured properties of a message.
type MessageMetadata struct {
	wordCount            int
	responseTime         time.Duration
	confidence           float64
	intent               string
	retrievedDocumentIDs []uuid.UUID
}

// NewMessageMetadata creates metadata for a message.
func NewMessageMetadata(wordCount int, responseTime time.Duration, confidence float64, intent string, retrievedDocumentIDs []uuid.UUID) MessageMetadata {
	return MessageMetadata{
		wordCount:            wordCount,
		responseTime:         responseTime,
		confidence:           confidence,
		intent:               intent,
		retrievedDocumentIDs: slices.Clone(retrievedDocumentIDs),
	}
}

// WordCount returns the message word count.
func (m MessageMetadata) WordCount() int { return m.wordCount }

// ResponseTime returns how long the answer took to produce.
func (m MessageMetadata) ResponseTime() time.Duration { return m.responseTime }

// Confidence returns the answer confidence in [0, 1].
func (m MessageMetadata) Confidence() float64 { return m.confidence }

// Intent returns the classified query intent.
func (m MessageMetadata) Intent() string { return m.intent }

// RetrievedDocumentIDs returns a copy of the document ids used as context.
func (m MessageMetadata) RetrievedDocumentIDs() []uuid.UUID {
	return slices.Clone(m.retrievedDocumentIDs)
}

// Message is a single turn in a conversation. Position is the dense
// zero-based persisted order, assigned by the store on append.
type Message struct {
	id              uuid.UUID
	conversationID  uuid.UUID
	position        int
	messageType     MessageType
	content         string
	attachments     []Attachment
	parentMessageID uuid.UUID
	timestamp       time.Time
	metadata        MessageMetadata
}

// NewUserMessage creates a user turn. parentMessageID may be uuid.Nil.
func NewUserMessage(conversationID uuid.UUID, content string, parentMessageID uuid.UUID) Message {
	return Message{
		id:              uuid.New(),
		conversationID:  conversationID,
		position:        -1,
		messageType:     MessageTypeUser,
		content:         content,
		parentMessageID: parentMessageID,
		timestamp:       time.Now().UTC(),
		metadata:        MessageMetadata{wordCount: countWords(content)},
	}
}

// NewAIMessage creates an assistant turn replying to the given parent.
func NewAIMessage(conversationID uuid.UUID, content string, attachments []Attachment, parentMessageID uuid.UUID, metadata MessageMetadata) Message {
	if metadata.wordCount == 0 {
		metadata.wordCount = countWords(content)
	}
	return Message{
		id:              uuid.New(),
		conversationID:  conversationID,
		position:        -1,
		messageType:     MessageTypeAI,
		content:         content,
		attachments:     slices.Clone(attachments),
		parentMessageID: parentMessageID,
		timestamp:       time.Now().UTC(),
		metadata:        metadata,
	}
}

// NewSystemMessage creates a system turn.
func NewSystemMessage(conversationID uuid.UUID, content string) Message {
	return Message{
		id:             uuid.New(),
		conversationID: conversationID,
		position:       -1,
		messageType:    MessageTypeSystem,
		content:        content,
		timestamp:      time.Now().UTC(),
		metadata:       MessageMetadata{wordCount: countWords(content)},
	}
}

// ReconstructMessage reconstructs a Message from persistence.
func ReconstructMessage(
	id, conversationID uuid.UUID,
	position int,
	messageType MessageType,
	content string,
	attachments []Attachment,
	parentMessageID uuid.UUID,
	timestamp time.Time,
	metadata MessageMetadata,
) Message {
	return Message{
		id:              id,
		conversationID:  conversationID,
		position:        position,
		messageType:     messageType,
		content:         content,
		attachments:     slices.Clone(attachments),
		parentMessageID: parentMessageID,
		timestamp:       timestamp,
		metadata:        metadata,
	}
}

// ID returns the message id.
func (m Message) ID() uuid.UUID { return m.id }

// ConversationID returns the owning conversation id.
func (m Message) ConversationID() uuid.UUID { return m.conversationID }

// Position returns the persisted order, or -1 before the store assigns it.
func (m Message) Position() int { return m.position }

// Type returns who authored the message.
func (m Message) Type() MessageType { return m.messageType }

// Content returns the message text.
func (m Message) Content() string { return m.content }

// Attachments returns a copy of the structured attachments.
func (m Message) Attachments() []Attachment { return slices.Clone(m.attachments) }

// ParentMessageID returns the replied-to message id, or uuid.Nil.
func (m Message) ParentMessageID() uuid.UUID { return m.parentMessageID }

// HasParent reports whether the message replies to an earlier one.
func (m Message) HasParent() bool { return m.parentMessageID != uuid.Nil }

// Timestamp returns when the message was created.
func (m Message) Timestamp() time.Time { return m.timestamp }

// Metadata returns the measured message properties.
func (m Message) Metadata() MessageMetadata { return m.metadata }

// WithPosition returns a copy with the persisted position assigned.
func (m Message) WithPosition(position int) Message {
	m.position = position
	return m
}

// IsEmpty returns true if the message has no id.
func (m Message) IsEmpty() bool { return m.id == uuid.Nil }

func countWords(content string) int {
	return len(strings.Fields(content))
}
