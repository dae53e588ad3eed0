package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/archielabs/archie/domain/conversation"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/internal/database"
	"github.com/archielabs/archie/internal/errs"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationStore implements conversation.Store using GORM.
//
// Message positions are assigned inside AppendMessages under a transaction,
// and the unique index on (conversation_id, position) rejects the loser of
// a concurrent append rather than letting positions diverge.
type ConversationStore struct {
	db            database.Database
	conversations ConversationMapper
	messages      MessageMapper
}

// NewConversationStore creates a new ConversationStore.
func NewConversationStore(db database.Database) ConversationStore {
	return ConversationStore{db: db}
}

// Save creates or updates a conversation row.
func (s ConversationStore) Save(ctx context.Context, conv conversation.Conversation) error {
	model := s.conversations.ToModel(conv)
	if result := s.db.Session(ctx).Save(&model); result.Error != nil {
		return fmt.Errorf("save conversation: %w", result.Error)
	}
	return nil
}

// Get returns a conversation by id.
func (s ConversationStore) Get(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var model ConversationModel
	result := s.db.Session(ctx).Where("id = ?", id.String()).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, errs.Newf(errs.KindNotFound, "conversation %s not found", id)
		}
		return conversation.Conversation{}, fmt.Errorf("get conversation: %w", result.Error)
	}
	return s.conversations.ToDomain(model), nil
}

// Find returns conversations matching the options, newest activity first
// unless the options order explicitly.
func (s ConversationStore) Find(ctx context.Context, options ...repository.Option) ([]conversation.Conversation, error) {
	q := repository.Build(options...)

	db := database.ApplyConditions(s.db.Session(ctx).Model(&ConversationModel{}), options...)
	db = applyConversationParams(db, q)

	orders := q.Orders()
	if len(orders) == 0 {
		db = db.Order("last_activity_at DESC")
	}
	for _, ord := range orders {
		dir := "ASC"
		if !ord.Ascending() {
			dir = "DESC"
		}
		db = db.Order(fmt.Sprintf("%s %s", ord.Field(), dir))
	}
	if q.LimitValue() > 0 {
		db = db.Limit(q.LimitValue())
	}
	if q.OffsetValue() > 0 {
		db = db.Offset(q.OffsetValue())
	}

	var models []ConversationModel
	if result := db.Find(&models); result.Error != nil {
		return nil, fmt.Errorf("find conversations: %w", result.Error)
	}

	conversations := make([]conversation.Conversation, len(models))
	for i, m := range models {
		conversations[i] = s.conversations.ToDomain(m)
	}
	return conversations, nil
}

// Count counts conversations matching the options.
func (s ConversationStore) Count(ctx context.Context, options ...repository.Option) (int, error) {
	q := repository.Build(options...)

	db := database.ApplyConditions(s.db.Session(ctx).Model(&ConversationModel{}), options...)
	db = applyConversationParams(db, q)

	var count int64
	if result := db.Count(&count); result.Error != nil {
		return 0, fmt.Errorf("count conversations: %w", result.Error)
	}
	return int(count), nil
}

// applyConversationParams translates the query params the conversation
// options carry into WHERE clauses. The search term matches either the
// title or any message body; the repository filter matches against the
// JSON-encoded repository id list.
func applyConversationParams(db *gorm.DB, q repository.Query) *gorm.DB {
	if term, ok := conversation.SearchTermFrom(q); ok && term != "" {
		pattern := "%" + term + "%"
		db = db.Where(
			"title LIKE ? OR id IN (SELECT conversation_id FROM messages WHERE content LIKE ?)",
			pattern, pattern,
		)
	}
	if repoID, ok := conversation.ContextRepositoryFrom(q); ok && repoID != uuid.Nil {
		db = db.Where("repository_ids LIKE ?", "%"+repoID.String()+"%")
	}
	return db
}

// AppendMessages atomically appends messages with the next dense positions
// and bumps the conversation's message count and activity time.
func (s ConversationStore) AppendMessages(ctx context.Context, conversationID uuid.UUID, messages []conversation.Message) ([]conversation.Message, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	appended := make([]conversation.Message, len(messages))
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var maxPosition sql.NullInt64
		row := tx.Model(&MessageModel{}).
			Where("conversation_id = ?", conversationID.String()).
			Select("MAX(position)").
			Row()
		if err := row.Scan(&maxPosition); err != nil {
			return fmt.Errorf("read last position: %w", err)
		}

		next := 0
		if maxPosition.Valid {
			next = int(maxPosition.Int64) + 1
		}

		var lastActivity time.Time
		models := make([]MessageModel, len(messages))
		for i, msg := range messages {
			positioned := msg.WithPosition(next + i)
			appended[i] = positioned

			model := s.messages.ToModel(positioned)
			model.ConversationID = conversationID.String()
			models[i] = model

			if positioned.Timestamp().After(lastActivity) {
				lastActivity = positioned.Timestamp()
			}
		}
		if lastActivity.IsZero() {
			lastActivity = time.Now().UTC()
		}

		if result := tx.Create(&models); result.Error != nil {
			return fmt.Errorf("insert messages: %w", result.Error)
		}

		update := tx.Model(&ConversationModel{}).
			Where("id = ?", conversationID.String()).
			Updates(map[string]any{
				"message_count":    gorm.Expr("message_count + ?", len(messages)),
				"last_activity_at": lastActivity,
			})
		if update.Error != nil {
			return fmt.Errorf("update conversation activity: %w", update.Error)
		}
		if update.RowsAffected == 0 {
			return errs.Newf(errs.KindNotFound, "conversation %s not found", conversationID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appended, nil
}

// Messages returns a conversation's messages in position order.
func (s ConversationStore) Messages(ctx context.Context, conversationID uuid.UUID, options ...repository.Option) ([]conversation.Message, error) {
	q := repository.Build(options...)

	db := database.ApplyConditions(
		s.db.Session(ctx).Model(&MessageModel{}).Where("conversation_id = ?", conversationID.String()),
		options...,
	)
	db = db.Order("position ASC")
	if q.LimitValue() > 0 {
		db = db.Limit(q.LimitValue())
	}
	if q.OffsetValue() > 0 {
		db = db.Offset(q.OffsetValue())
	}

	var models []MessageModel
	if result := db.Find(&models); result.Error != nil {
		return nil, fmt.Errorf("find messages: %w", result.Error)
	}

	messages := make([]conversation.Message, len(models))
	for i, m := range models {
		messages[i] = s.messages.ToDomain(m)
	}
	return messages, nil
}

// LastMessages returns up to limit trailing messages in position order.
func (s ConversationStore) LastMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]conversation.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	var models []MessageModel
	result := s.db.Session(ctx).
		Where("conversation_id = ?", conversationID.String()).
		Order("position DESC").
		Limit(limit).
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("find last messages: %w", result.Error)
	}

	messages := make([]conversation.Message, len(models))
	for i, m := range models {
		messages[len(models)-1-i] = s.messages.ToDomain(m)
	}
	return messages, nil
}

// Delete removes a conversation and its messages.
func (s ConversationStore) Delete(ctx context.Context, id uuid.UUID) error {
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if result := tx.Where("conversation_id = ?", id.String()).Delete(&MessageModel{}); result.Error != nil {
			return fmt.Errorf("delete messages: %w", result.Error)
		}
		if result := tx.Where("id = ?", id.String()).Delete(&ConversationModel{}); result.Error != nil {
			return fmt.Errorf("delete conversation: %w", result.Error)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}
