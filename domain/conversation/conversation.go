// Package conversation provides the conversational query domain types.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a conversation.
type Status string

// Status values.
const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusArchived Status = "archived"
)

// IsValid returns true for a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusArchived:
		return true
	default:
		return false
	}
}

// Conversation is an ordered exchange of messages between a user and the
// assistant, scoped to a set of repositories. The user id never changes
// after creation, and only an active conversation accepts new messages.
type Conversation struct {
	id             uuid.UUID
	userID         string
	title          string
	status         Status
	context        Context
	messageCount   int
	lastActivityAt time.Time
	createdAt      time.Time
	metadata       map[string]string
}

// NewConversation creates an active Conversation for a user.
func NewConversation(userID, title string, context Context) Conversation {
	now := time.Now().UTC()
	return Conversation{
		id:             uuid.New(),
		userID:         userID,
		title:          title,
		status:         StatusActive,
		context:        context,
		lastActivityAt: now,
		createdAt:      now,
	}
}

// ReconstructConversation reconstructs a Conversation from persistence.
func ReconstructConversation(
	id uuid.UUID,
	userID, title string,
	status Status,
	context Context,
	messageCount int,
	lastActivityAt, createdAt time.Time,
	metadata map[string]string,
) Conversation {
	return Conversation{
		id:             id,
		userID:         userID,
		title:          title,
		status:         status,
		context:        context,
		messageCount:   messageCount,
		lastActivityAt: lastActivityAt,
		createdAt:      createdAt,
		metadata:       copyMetadata(metadata),
	}
}

// ID returns the conversation id.
func (c Conversation) ID() uuid.UUID { return c.id }

// UserID returns the owning user id.
func (c Conversation) UserID() string { return c.userID }

// Title returns the conversation title.
func (c Conversation) Title() string { return c.title }

// Status returns the lifecycle status.
func (c Conversation) Status() Status { return c.status }

// Context returns the repository context.
func (c Conversation) Context() Context { return c.context }

// MessageCount returns the number of persisted messages.
func (c Conversation) MessageCount() int { return c.messageCount }

// LastActivityAt returns the timestamp of the most recent append.
func (c Conversation) LastActivityAt() time.Time { return c.lastActivityAt }

// CreatedAt returns the creation timestamp.
func (c Conversation) CreatedAt() time.Time { return c.createdAt }

// Metadata returns a copy of the free-form metadata.
func (c Conversation) Metadata() map[string]string { return copyMetadata(c.metadata) }

// CanAcceptMessages reports whether new messages may be appended.
func (c Conversation) CanAcceptMessages() bool { return c.status == StatusActive }

// IsOwnedBy reports whether the given user owns the conversation.
func (c Conversation) IsOwnedBy(userID string) bool {
	return userID != "" && c.userID == userID
}

// WithTitle returns a copy with the title replaced.
func (c Conversation) WithTitle(title string) Conversation {
	c.title = title
	return c
}

// WithStatus returns a copy with the status replaced. Unknown values
// are ignored.
func (c Conversation) WithStatus(status Status) Conversation {
	if status.IsValid() {
		c.status = status
	}
	return c
}

// WithContext returns a copy with the context replaced.
func (c Conversation) WithContext(context Context) Conversation {
	c.context = context
	return c
}

// WithAppended returns a copy recording that count messages were
// appended, bumping messageCount and lastActivityAt.
func (c Conversation) WithAppended(count int) Conversation {
	if count <= 0 {
		return c
	}
	c.messageCount += count
	c.lastActivityAt = time.Now().UTC()
	return c
}

// WithMetadata returns a copy with a metadata entry set.
func (c Conversation) WithMetadata(key, value string) Conversation {
	metadata := copyMetadata(c.metadata)
	if metadata == nil {
		metadata = make(map[string]string)
	}
	metadata[key] = value
	c.metadata = metadata
	return c
}

// IsEmpty returns true if the conversation has no id.
func (c Conversation) IsEmpty() bool { return c.id == uuid.Nil }

func copyMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		result[k] = v
	}
	return result
}
