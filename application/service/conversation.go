package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/archielabs/archie/domain/conversation"
	"github.com/archielabs/archie/domain/event"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/internal/errs"
	"github.com/google/uuid"
)

// ConversationListParams configures conversation listing.
type ConversationListParams struct {
	Status *conversation.Status
	Limit  int
	Offset int
}

// Conversation provides conversation lifecycle operations. Every read
// and write checks ownership: a conversation is only ever visible to
// the user that started it.
type Conversation struct {
	store        conversation.Store
	repositories repository.Store
	bus          event.Bus
	logger       *slog.Logger
}

// NewConversation creates a new Conversation service.
func NewConversation(
	store conversation.Store,
	repositories repository.Store,
	bus event.Bus,
	logger *slog.Logger,
) *Conversation {
	return &Conversation{
		store:        store,
		repositories: repositories,
		bus:          bus,
		logger:       logger,
	}
}

// Start creates an active conversation for a user over a set of
// repositories. Every repository must exist and have completed at least
// one indexing run; names are resolved into the conversation context so
// they survive repository deletion.
func (s *Conversation) Start(ctx context.Context, userID string, repositoryIDs []uuid.UUID, title string) (conversation.Conversation, error) {
	if userID == "" {
		return conversation.Conversation{}, errs.New(errs.KindUnauthorized, "a user id is required")
	}
	if len(repositoryIDs) == 0 {
		return conversation.Conversation{}, errs.New(errs.KindInvalidInput, "at least one repository id is required")
	}

	names := make([]string, 0, len(repositoryIDs))
	for _, id := range repositoryIDs {
		repo, err := s.repositories.Get(ctx, id)
		if err != nil {
			return conversation.Conversation{}, fmt.Errorf("get repository: %w", err)
		}
		if !repo.HasBeenIndexed() {
			return conversation.Conversation{}, errs.Newf(errs.KindInvalidState,
				"repository %s has not been indexed yet", id)
		}
		names = append(names, repo.FullName())
	}

	if title == "" {
		title = defaultTitle(names)
	}

	convContext := conversation.NewContext(repositoryIDs).WithRepositoryNames(names)
	conv := conversation.NewConversation(userID, title, convContext)

	if err := s.store.Save(ctx, conv); err != nil {
		return conversation.Conversation{}, fmt.Errorf("save conversation: %w", err)
	}

	if err := s.bus.Publish(ctx, event.NewConversationStarted(conv.ID(), userID)); err != nil {
		s.logger.Warn("failed to publish conversation started",
			slog.String("conversation_id", conv.ID().String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("conversation started",
		slog.String("conversation_id", conv.ID().String()),
		slog.Int("repositories", len(repositoryIDs)),
	)

	return conv, nil
}

// Get returns a conversation owned by the user.
func (s *Conversation) Get(ctx context.Context, id uuid.UUID, userID string) (conversation.Conversation, error) {
	conv, err := s.store.Get(ctx, id)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !conv.IsOwnedBy(userID) {
		return conversation.Conversation{}, errs.Newf(errs.KindUnauthorized,
			"conversation %s is not accessible", id)
	}
	return conv, nil
}

// List returns the user's conversations, most recent activity first.
func (s *Conversation) List(ctx context.Context, userID string, params *ConversationListParams) ([]conversation.Conversation, error) {
	if userID == "" {
		return nil, errs.New(errs.KindUnauthorized, "a user id is required")
	}

	options := []repository.Option{
		conversation.WithUser(userID),
		repository.WithOrderDesc("last_activity_at"),
	}
	if params != nil {
		if params.Status != nil {
			options = append(options, conversation.WithStatus(*params.Status))
		}
		if params.Limit > 0 {
			options = append(options, repository.WithPagination(params.Limit, params.Offset)...)
		}
	}

	return s.store.Find(ctx, options...)
}

// ListByRepository returns the user's conversations whose context
// includes the repository.
func (s *Conversation) ListByRepository(ctx context.Context, userID string, repositoryID uuid.UUID, params *ConversationListParams) ([]conversation.Conversation, error) {
	if userID == "" {
		return nil, errs.New(errs.KindUnauthorized, "a user id is required")
	}

	options := []repository.Option{
		conversation.WithUser(userID),
		conversation.WithContextRepository(repositoryID),
		repository.WithOrderDesc("last_activity_at"),
	}
	if params != nil && params.Limit > 0 {
		options = append(options, repository.WithPagination(params.Limit, params.Offset)...)
	}

	return s.store.Find(ctx, options...)
}

// Search returns the user's conversations whose title or messages match
// the term.
func (s *Conversation) Search(ctx context.Context, userID, term string, params *ConversationListParams) ([]conversation.Conversation, error) {
	if userID == "" {
		return nil, errs.New(errs.KindUnauthorized, "a user id is required")
	}
	if strings.TrimSpace(term) == "" {
		return nil, errs.New(errs.KindInvalidInput, "search term cannot be empty")
	}

	options := []repository.Option{
		conversation.WithUser(userID),
		conversation.WithSearchTerm(term),
		repository.WithOrderDesc("last_activity_at"),
	}
	if params != nil {
		if params.Status != nil {
			options = append(options, conversation.WithStatus(*params.Status))
		}
		if params.Limit > 0 {
			options = append(options, repository.WithPagination(params.Limit, params.Offset)...)
		}
	}

	return s.store.Find(ctx, options...)
}

// Messages returns a conversation's messages in order, after an
// ownership check.
func (s *Conversation) Messages(ctx context.Context, id uuid.UUID, userID string) ([]conversation.Message, error) {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.store.Messages(ctx, id)
}

// Archive moves a conversation to the archived state. Archived
// conversations stay readable but accept no further messages.
func (s *Conversation) Archive(ctx context.Context, id uuid.UUID, userID string) (conversation.Conversation, error) {
	conv, err := s.Get(ctx, id, userID)
	if err != nil {
		return conversation.Conversation{}, err
	}

	archived := conv.WithStatus(conversation.StatusArchived)
	if err := s.store.Save(ctx, archived); err != nil {
		return conversation.Conversation{}, fmt.Errorf("save conversation: %w", err)
	}

	s.logger.Info("conversation archived",
		slog.String("conversation_id", id.String()),
	)
	return archived, nil
}

// Delete removes a conversation and its messages.
func (s *Conversation) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	s.logger.Info("conversation deleted",
		slog.String("conversation_id", id.String()),
	)
	return nil
}

// defaultTitle derives a title from the repository names in context.
func defaultTitle(names []string) string {
	switch len(names) {
	case 0:
		return "New conversation"
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return fmt.Sprintf("%s and %d more", names[0], len(names)-1)
	}
}
