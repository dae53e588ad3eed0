package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/archielabs/archie"
	"github.com/archielabs/archie/application/service"
	"github.com/archielabs/archie/domain/conversation"
	"github.com/archielabs/archie/infrastructure/api/jsonapi"
	"github.com/archielabs/archie/infrastructure/api/middleware"
	"github.com/archielabs/archie/infrastructure/api/v1/dto"
)

// UserIDHeader identifies the calling user. Ownership checks in the
// conversation service are keyed on this value.
const UserIDHeader = "X-User-ID"

// ConversationsRouter handles conversation API endpoints.
type ConversationsRouter struct {
	client     *archie.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewConversationsRouter creates a new ConversationsRouter.
func NewConversationsRouter(client *archie.Client) *ConversationsRouter {
	return &ConversationsRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for conversation endpoints.
func (r *ConversationsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/", r.Start)
	router.Get("/{id}", r.Get)
	router.Delete("/{id}", r.Delete)
	router.Post("/{id}/archive", r.Archive)
	router.Get("/{id}/messages", r.Messages)
	router.Post("/{id}/messages", r.Ask)

	return router
}

// List handles GET /api/v1/conversations. Supports status filtering and
// free-text search over titles via the q parameter.
func (r *ConversationsRouter) List(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	userID := req.Header.Get(UserIDHeader)
	pagination := ParsePagination(req)

	params := &service.ConversationListParams{
		Limit:  pagination.Limit(),
		Offset: pagination.Offset(),
	}
	if statusStr := req.URL.Query().Get("status"); statusStr != "" {
		status := conversation.Status(statusStr)
		params.Status = &status
	}

	var (
		convs []conversation.Conversation
		err   error
	)
	if term := req.URL.Query().Get("q"); term != "" {
		convs, err = r.client.Conversations.Search(ctx, userID, term, params)
	} else {
		convs, err = r.client.Conversations.List(ctx, userID, params)
	}
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	response := jsonapi.NewListResponse(r.serializer.ConversationResources(convs))
	response.Meta = PaginationMeta(pagination, int64(len(convs)))
	middleware.WriteJSON(w, http.StatusOK, response)
}

// Start handles POST /api/v1/conversations.
func (r *ConversationsRouter) Start(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	userID := req.Header.Get(UserIDHeader)

	var body dto.ConversationStartRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	repositoryIDs := make([]uuid.UUID, 0, len(body.RepositoryIDs))
	for _, raw := range body.RepositoryIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid repository id: "+raw, err), r.logger)
			return
		}
		repositoryIDs = append(repositoryIDs, id)
	}

	conv, err := r.client.Conversations.Start(ctx, userID, repositoryIDs, body.Title)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, jsonapi.NewSingleResponse(r.serializer.ConversationResource(conv)))
}

// Get handles GET /api/v1/conversations/{id}.
func (r *ConversationsRouter) Get(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	userID := req.Header.Get(UserIDHeader)

	id, ok := r.parseID(w, req)
	if !ok {
		return
	}

	conv, err := r.client.Conversations.Get(ctx, id, userID)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.ConversationResource(conv)))
}

// Delete handles DELETE /api/v1/conversations/{id}.
func (r *ConversationsRouter) Delete(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	userID := req.Header.Get(UserIDHeader)

	id, ok := r.parseID(w, req)
	if !ok {
		return
	}

	if err := r.client.Conversations.Delete(ctx, id, userID); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Archive handles POST /api/v1/conversations/{id}/archive. Archived
// conversations stay readable but reject new messages.
func (r *ConversationsRouter) Archive(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	userID := req.Header.Get(UserIDHeader)

	id, ok := r.parseID(w, req)
	if !ok {
		return
	}

	conv, err := r.client.Conversations.Archive(ctx, id, userID)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.ConversationResource(conv)))
}

// Messages handles GET /api/v1/conversations/{id}/messages.
func (r *ConversationsRouter) Messages(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	userID := req.Header.Get(UserIDHeader)

	id, ok := r.parseID(w, req)
	if !ok {
		return
	}

	messages, err := r.client.Conversations.Messages(ctx, id, userID)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewListResponse(r.serializer.MessageResources(messages)))
}

// Ask handles POST /api/v1/conversations/{id}/messages. Processes the
// query end to end and returns the answer with its attachments.
func (r *ConversationsRouter) Ask(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	userID := req.Header.Get(UserIDHeader)

	id, ok := r.parseID(w, req)
	if !ok {
		return
	}

	var body dto.AskRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}
	if body.Query == "" {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "query is required", nil), r.logger)
		return
	}

	params := service.ProcessQueryParams{
		ConversationID:  id,
		UserID:          userID,
		Query:           body.Query,
		IncludeContext:  true,
		MaxContextItems: body.MaxContextItems,
	}
	if body.IncludeContext != nil {
		params.IncludeContext = *body.IncludeContext
	}
	if body.ParentMessageID != "" {
		parentID, err := uuid.Parse(body.ParentMessageID)
		if err != nil {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid parent message id", err), r.logger)
			return
		}
		params.ParentMessageID = parentID
	}

	response, err := r.client.Query.ProcessQuery(ctx, params)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, askResponse(response))
}

func askResponse(response service.QueryResponse) dto.AskResponse {
	attachments := response.Attachments()
	attachmentDTOs := make([]dto.AttachmentResponse, len(attachments))
	for i, a := range attachments {
		attachmentDTOs[i] = dto.AttachmentResponse{
			Kind:      a.Kind(),
			Title:     a.Title(),
			Reference: a.Reference(),
			Snippet:   a.Snippet(),
		}
	}

	return dto.AskResponse{
		MessageID:      response.MessageID().String(),
		Answer:         response.Answer(),
		Confidence:     response.Confidence(),
		Intent:         string(response.Intent().Type()),
		Attachments:    attachmentDTOs,
		FollowUps:      response.FollowUps(),
		ResponseTimeMs: response.ResponseTime().Milliseconds(),
	}
}

func (r *ConversationsRouter) parseID(w http.ResponseWriter, req *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid conversation id", err), r.logger)
		return uuid.Nil, false
	}
	return id, true
}
