package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/archielabs/archie/domain/conversation"
	"github.com/archielabs/archie/domain/event"
	"github.com/archielabs/archie/domain/llm"
	"github.com/archielabs/archie/internal/config"
	"github.com/archielabs/archie/internal/errs"
	"github.com/google/uuid"
)

// historyLimit bounds how many trailing messages are passed to the model
// as recency context.
const historyLimit = 10

// maxFollowUps bounds the follow-up suggestions attached to an answer.
const maxFollowUps = 3

// ProcessQueryParams carries one conversational query.
type ProcessQueryParams struct {
	ConversationID  uuid.UUID
	UserID          string
	Query           string
	IncludeContext  bool
	MaxContextItems int
	ParentMessageID uuid.UUID
}

// QueryResponse is the answer to a processed query. MessageID is the id
// of the persisted AI message.
type QueryResponse struct {
	messageID    uuid.UUID
	answer       string
	confidence   float64
	intent       llm.Intent
	attachments  []conversation.Attachment
	followUps    []string
	responseTime time.Duration
}

// NewQueryResponse creates a QueryResponse from its parts.
func NewQueryResponse(messageID uuid.UUID, answer string, confidence float64, intent llm.Intent, attachments []conversation.Attachment, followUps []string, responseTime time.Duration) QueryResponse {
	return QueryResponse{
		messageID:    messageID,
		answer:       answer,
		confidence:   confidence,
		intent:       intent,
		attachments:  attachments,
		followUps:    followUps,
		responseTime: responseTime,
	}
}

// MessageID returns the persisted AI message id.
func (r QueryResponse) MessageID() uuid.UUID { return r.messageID }

// Answer returns the answer text.
func (r QueryResponse) Answer() string { return r.answer }

// Confidence returns the answer confidence in [0, 1].
func (r QueryResponse) Confidence() float64 { return r.confidence }

// Intent returns the classified query intent.
func (r QueryResponse) Intent() llm.Intent { return r.intent }

// Attachments returns the citations carried by the AI message.
func (r QueryResponse) Attachments() []conversation.Attachment {
	return append([]conversation.Attachment(nil), r.attachments...)
}

// FollowUps returns suggested follow-up questions.
func (r QueryResponse) FollowUps() []string {
	return append([]string(nil), r.followUps...)
}

// ResponseTime returns how long the answer took to produce.
func (r QueryResponse) ResponseTime() time.Duration { return r.responseTime }

// Query answers conversational questions about indexed repositories.
//
// A query runs as a sequential pipeline: classify intent, retrieve
// grounding documents, collect recency context, complete, then append
// the user and AI messages in one atomic write. Queries against the
// same conversation are serialized so message order stays linear.
type Query struct {
	conversations conversation.Store
	search        *Search
	provider      llm.Provider
	bus           event.Bus
	logger        *slog.Logger

	locks conversationLocks
}

// NewQuery creates a Query engine. provider may be nil when no
// completion endpoint is configured; queries then fail with an invalid
// state error.
func NewQuery(
	conversations conversation.Store,
	search *Search,
	provider llm.Provider,
	bus event.Bus,
	logger *slog.Logger,
) *Query {
	return &Query{
		conversations: conversations,
		search:        search,
		provider:      provider,
		bus:           bus,
		logger:        logger,
	}
}

// ProcessQuery answers a user query within a conversation.
//
// On success both the user message and the AI answer are persisted and
// the response carries the AI message id. Any failure before
// persistence leaves the conversation untouched. Caller cancellation
// stops retrieval and model calls, but once both messages are fully
// constructed the append runs under a non-cancellable scope so a
// partial exchange is never written.
func (q *Query) ProcessQuery(ctx context.Context, params ProcessQueryParams) (QueryResponse, error) {
	if params.UserID == "" {
		return QueryResponse{}, errs.New(errs.KindUnauthorized, "a user id is required")
	}
	if strings.TrimSpace(params.Query) == "" {
		return QueryResponse{}, errs.New(errs.KindInvalidInput, "query cannot be empty")
	}
	if q.provider == nil {
		return QueryResponse{}, errs.New(errs.KindInvalidState,
			"conversational answers unavailable: no completion endpoint configured")
	}

	unlock := q.locks.lock(params.ConversationID)
	defer unlock()

	start := time.Now()

	conv, err := q.conversations.Get(ctx, params.ConversationID)
	if err != nil {
		return QueryResponse{}, err
	}
	if !conv.IsOwnedBy(params.UserID) {
		return QueryResponse{}, errs.Newf(errs.KindUnauthorized,
			"conversation %s is not accessible", params.ConversationID)
	}
	if !conv.CanAcceptMessages() {
		return QueryResponse{}, errs.Newf(errs.KindInvalidState,
			"conversation %s is %s and does not accept messages", conv.ID(), conv.Status())
	}

	response, err := q.answer(ctx, conv, params, start)
	if err != nil {
		q.publishFailure(ctx, conv.ID(), err)
		return QueryResponse{}, err
	}
	return response, nil
}

// answer runs pipeline steps 2 through 8 for an authorized query.
func (q *Query) answer(ctx context.Context, conv conversation.Conversation, params ProcessQueryParams, start time.Time) (QueryResponse, error) {
	contextText := describeContext(conv.Context())

	intent := q.classify(ctx, params.Query, contextText)

	documents, documentIDs, err := q.retrieve(ctx, conv, params)
	if err != nil {
		return QueryResponse{}, fmt.Errorf("retrieve context: %w", err)
	}

	history, err := q.history(ctx, conv.ID())
	if err != nil {
		return QueryResponse{}, fmt.Errorf("load history: %w", err)
	}

	completion, err := q.provider.Complete(ctx, params.Query, documents, history, conv.Context().Preferences())
	if err != nil {
		return QueryResponse{}, fmt.Errorf("complete: %w", err)
	}
	if completion.IsEmpty() {
		return QueryResponse{}, errs.New(errs.KindInternal, "model returned an empty answer")
	}

	followUps := q.followUps(ctx, params.Query, completion, intent, contextText)

	userMsg := conversation.NewUserMessage(conv.ID(), params.Query, params.ParentMessageID)

	responseTime := time.Since(start)
	metadata := conversation.NewMessageMetadata(
		0, // word count derived from content
		responseTime,
		completion.Confidence(),
		string(intent.Type()),
		documentIDs,
	)
	attachments := toAttachments(completion.References())
	aiMsg := conversation.NewAIMessage(conv.ID(), completion.Answer(), attachments, userMsg.ID(), metadata)

	// Both messages are fully constructed. The append must not be torn
	// by caller cancellation, so it runs detached from ctx.
	persistCtx := context.WithoutCancel(ctx)
	if err := q.append(persistCtx, conv.ID(), []conversation.Message{userMsg, aiMsg}); err != nil {
		return QueryResponse{}, fmt.Errorf("persist messages: %w", err)
	}

	if err := q.bus.Publish(persistCtx, event.NewQueryProcessed(conv.ID(), aiMsg.ID(), responseTime)); err != nil {
		q.logger.Warn("failed to publish query processed",
			slog.String("conversation_id", conv.ID().String()),
			slog.String("error", err.Error()),
		)
	}

	q.logger.Info("query processed",
		slog.String("conversation_id", conv.ID().String()),
		slog.String("intent", string(intent.Type())),
		slog.Int("context_documents", len(documents)),
		slog.Duration("response_time", responseTime),
	)

	return QueryResponse{
		messageID:    aiMsg.ID(),
		answer:       completion.Answer(),
		confidence:   completion.Confidence(),
		intent:       intent,
		attachments:  attachments,
		followUps:    followUps,
		responseTime: responseTime,
	}, nil
}

// classify determines the query intent, falling back to the rule-based
// classifier when the model call fails.
func (q *Query) classify(ctx context.Context, query, contextText string) llm.Intent {
	intent, err := q.provider.ClassifyIntent(ctx, query, contextText)
	if err != nil || intent.IsEmpty() {
		if err != nil {
			q.logger.Warn("intent classification failed, using rule-based classifier",
				slog.String("error", err.Error()),
			)
		}
		return classifyByRules(query)
	}
	return intent
}

// retrieve fetches grounding documents scoped to the conversation's
// repositories. Returns nil context when retrieval is disabled or the
// conversation has no repository context.
func (q *Query) retrieve(ctx context.Context, conv conversation.Conversation, params ProcessQueryParams) ([]llm.ContextDocument, []uuid.UUID, error) {
	if !params.IncludeContext || !conv.Context().HasRepositories() {
		return nil, nil, nil
	}

	limit := params.MaxContextItems
	if limit <= 0 {
		limit = config.DefaultSearchLimit
	}

	result, err := q.search.Query(ctx, params.Query,
		WithRepositories(conv.Context().RepositoryIDs()...),
		WithLimit(limit),
	)
	if err != nil {
		return nil, nil, err
	}

	items := result.Items()
	documents := make([]llm.ContextDocument, 0, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		doc := item.Document()
		documents = append(documents, llm.NewContextDocument(
			doc.ID().String(),
			doc.Path(),
			doc.Content(),
			item.Score(),
		))
		ids = append(ids, doc.ID())
	}
	return documents, ids, nil
}

// history loads the trailing messages as model turns, oldest first.
func (q *Query) history(ctx context.Context, conversationID uuid.UUID) ([]llm.Turn, error) {
	messages, err := q.conversations.LastMessages(ctx, conversationID, historyLimit)
	if err != nil {
		return nil, err
	}

	turns := make([]llm.Turn, 0, len(messages))
	for _, msg := range messages {
		switch msg.Type() {
		case conversation.MessageTypeUser:
			turns = append(turns, llm.NewTurn(llm.RoleUser, msg.Content()))
		case conversation.MessageTypeAI:
			turns = append(turns, llm.NewTurn(llm.RoleAssistant, msg.Content()))
		}
	}
	return turns, nil
}

// followUps suggests next questions, preferring model output and falling
// back to intent-based suggestions. Never fails the query.
func (q *Query) followUps(ctx context.Context, query string, completion llm.Completion, intent llm.Intent, contextText string) []string {
	suggestions, err := q.provider.SuggestFollowUps(ctx, query, completion.Answer(), contextText, maxFollowUps)
	if err != nil {
		q.logger.Warn("follow-up suggestion failed, using fallback",
			slog.String("error", err.Error()),
		)
	}
	if len(suggestions) == 0 {
		suggestions = completion.RelatedQueries()
	}
	if len(suggestions) == 0 {
		suggestions = fallbackFollowUps(intent)
	}
	if len(suggestions) > maxFollowUps {
		suggestions = suggestions[:maxFollowUps]
	}
	return suggestions
}

// append writes both messages atomically, retrying once. The store
// bumps messageCount and lastActivityAt in the same write.
func (q *Query) append(ctx context.Context, conversationID uuid.UUID, messages []conversation.Message) error {
	_, err := q.conversations.AppendMessages(ctx, conversationID, messages)
	if err == nil {
		return nil
	}

	q.logger.Warn("message append failed, retrying",
		slog.String("conversation_id", conversationID.String()),
		slog.String("error", err.Error()),
	)
	_, err = q.conversations.AppendMessages(ctx, conversationID, messages)
	return err
}

func (q *Query) publishFailure(ctx context.Context, conversationID uuid.UUID, cause error) {
	failure := event.NewQueryProcessingFailed(conversationID, cause.Error())
	if err := q.bus.Publish(context.WithoutCancel(ctx), failure); err != nil {
		q.logger.Warn("failed to publish query processing failure",
			slog.String("conversation_id", conversationID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// toAttachments converts model citations into message attachments.
func toAttachments(references []llm.Reference) []conversation.Attachment {
	if len(references) == 0 {
		return nil
	}
	attachments := make([]conversation.Attachment, 0, len(references))
	for _, ref := range references {
		attachments = append(attachments, conversation.NewAttachment(
			"document", ref.Title(), ref.Reference(), ref.Snippet(),
		))
	}
	return attachments
}

// describeContext renders the conversation context for classification
// and follow-up prompts.
func describeContext(c conversation.Context) string {
	var sb strings.Builder
	for _, name := range c.RepositoryNames() {
		sb.WriteString(name)
		sb.WriteByte('\n')
	}
	if c.Domain() != "" {
		sb.WriteString("Domain: ")
		sb.WriteString(c.Domain())
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String())
}

// conversationLocks serializes query processing per conversation.
// Entries are kept for the process lifetime; the set of active
// conversations is small and bounded by usage.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// lock acquires the conversation's mutex and returns its unlock func.
func (c *conversationLocks) lock(id uuid.UUID) func() {
	c.mu.Lock()
	if c.locks == nil {
		c.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}
