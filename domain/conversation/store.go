package conversation

import (
	"context"

	"github.com/archielabs/archie/domain/repository"
	"github.com/google/uuid"
)

// Store persists conversations and their message logs.
//
// The store enforces message ordering: positions are dense, zero based
// and append-only. It does not enforce ownership; services filter by
// user id before returning anything to a caller.
type Store interface {
	// Save creates or updates a conversation row. Messages are not
	// written here, only through AppendMessages.
	Save(ctx context.Context, conversation Conversation) error

	// Get returns a conversation by id, or a not-found error.
	Get(ctx context.Context, id uuid.UUID) (Conversation, error)

	// Find returns conversations matching the options, newest activity first.
	Find(ctx context.Context, options ...repository.Option) ([]Conversation, error)

	// Count counts conversations matching the options.
	Count(ctx context.Context, options ...repository.Option) (int, error)

	// AppendMessages atomically appends messages in the given order,
	// assigning the next dense positions, and bumps the conversation's
	// messageCount and lastActivityAt. Returns the messages with
	// positions assigned.
	AppendMessages(ctx context.Context, conversationID uuid.UUID, messages []Message) ([]Message, error)

	// Messages returns a conversation's messages in position order.
	Messages(ctx context.Context, conversationID uuid.UUID, options ...repository.Option) ([]Message, error)

	// LastMessages returns up to limit trailing messages in position order.
	LastMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error)

	// Delete removes a conversation and its messages.
	Delete(ctx context.Context, id uuid.UUID) error
}
