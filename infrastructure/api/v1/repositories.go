// Package v1 provides the version 1 REST API routers.
package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/archielabs/archie"
	"github.com/archielabs/archie/application/service"
	"github.com/archielabs/archie/domain/document"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/infrastructure/api/jsonapi"
	"github.com/archielabs/archie/infrastructure/api/middleware"
	"github.com/archielabs/archie/infrastructure/api/v1/dto"
)

// RepositoriesRouter handles repository API endpoints.
type RepositoriesRouter struct {
	client     *archie.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewRepositoriesRouter creates a new RepositoriesRouter.
func NewRepositoriesRouter(client *archie.Client) *RepositoriesRouter {
	return &RepositoriesRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for repository endpoints.
func (r *RepositoriesRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/", r.Add)
	router.Get("/{id}", r.Get)
	router.Delete("/{id}", r.Delete)
	router.Post("/{id}/refresh", r.Refresh)
	router.Post("/{id}/index", r.Index)
	router.Get("/{id}/index", r.IndexStatus)
	router.Get("/{id}/status", r.Status)
	router.Get("/{id}/status/summary", r.StatusSummary)

	return router
}

// List handles GET /api/v1/repositories.
func (r *RepositoriesRouter) List(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	pagination := ParsePagination(req)

	params := &service.RepositoryListParams{
		Limit:  pagination.Limit(),
		Offset: pagination.Offset(),
	}
	if statusStr := req.URL.Query().Get("status"); statusStr != "" {
		status := repository.Status(statusStr)
		params.Status = &status
	}

	repos, err := r.client.Repositories.List(ctx, params)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	response := jsonapi.NewListResponse(r.serializer.RepositoryResources(repos))
	response.Meta = PaginationMeta(pagination, int64(len(repos)))
	middleware.WriteJSON(w, http.StatusOK, response)
}

// Add handles POST /api/v1/repositories. Re-adding a known URL fails
// with 409.
func (r *RepositoriesRouter) Add(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var body dto.RepositoryAddRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}
	if body.URL == "" {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "url is required", nil), r.logger)
		return
	}

	repo, err := r.client.Repositories.Add(ctx, body.URL)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, jsonapi.NewSingleResponse(r.serializer.RepositoryResource(repo)))
}

// Get handles GET /api/v1/repositories/{id}.
func (r *RepositoriesRouter) Get(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	id, ok := r.parseID(w, req)
	if !ok {
		return
	}

	repo, err := r.client.Repositories.Get(ctx, id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.RepositoryResource(repo)))
}

// Delete handles DELETE /api/v1/repositories/{id}. The record is removed
// immediately; index and graph cleanup runs as a background task.
func (r *RepositoriesRouter) Delete(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	id, ok := r.parseID(w, req)
	if !ok {
		return
	}

	if err := r.client.Repositories.Delete(ctx, id); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /api/v1/repositories/{id}/refresh. Provider
// metadata is re-fetched synchronously.
func (r *RepositoriesRouter) Refresh(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	id, ok := r.parseID(w, req)
	if !ok {
		return
	}

	repo, err := r.client.Repositories.Refresh(ctx, id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.RepositoryResource(repo)))
}

// Index handles POST /api/v1/repositories/{id}/index. Queues a full
// indexing run; force re-indexes unchanged documents.
func (r *RepositoriesRouter) Index(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	id, ok := r.parseID(w, req)
	if !ok {
		return
	}

	var body dto.RepositoryIndexRequest
	if req.Body != nil && req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
			return
		}
	}

	status, err := r.client.Ingestion.IndexRepository(ctx, id, body.Force)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, indexStatusResponse(status))
}

// IndexStatus handles GET /api/v1/repositories/{id}/index.
func (r *RepositoriesRouter) IndexStatus(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	id, ok := r.parseID(w, req)
	if !ok {
		return
	}

	status, err := r.client.Ingestion.IndexingStatus(ctx, id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, indexStatusResponse(status))
}

// Status handles GET /api/v1/repositories/{id}/status. Returns the
// per-step task statuses of the latest indexing run.
func (r *RepositoriesRouter) Status(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	id, ok := r.parseID(w, req)
	if !ok {
		return
	}

	statuses, err := r.client.Tracking.RepositoryStatuses(ctx, id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewListResponse(r.serializer.TaskStatusResources(statuses)))
}

// StatusSummary handles GET /api/v1/repositories/{id}/status/summary.
func (r *RepositoriesRouter) StatusSummary(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	id, ok := r.parseID(w, req)
	if !ok {
		return
	}

	summary, err := r.client.Tracking.StatusSummary(ctx, id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.StatusSummaryResource(id, summary)))
}

func indexStatusResponse(status document.IndexStatus) dto.IndexStatusResponse {
	return dto.IndexStatusResponse{
		RepositoryID:      status.RepositoryID().String(),
		State:             string(status.State()),
		DocumentsIndexed:  status.DocumentsIndexed(),
		TotalDocuments:    status.TotalDocuments(),
		CompletionPercent: status.CompletionPercent(),
		Error:             status.ErrorMessage(),
	}
}

func (r *RepositoriesRouter) parseID(w http.ResponseWriter, req *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid repository id", err), r.logger)
		return uuid.Nil, false
	}
	return id, true
}
