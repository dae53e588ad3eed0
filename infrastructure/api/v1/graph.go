package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/archielabs/archie"
	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/infrastructure/api/jsonapi"
	"github.com/archielabs/archie/infrastructure/api/middleware"
	"github.com/archielabs/archie/infrastructure/api/v1/dto"
)

// GraphRouter handles knowledge graph API endpoints.
type GraphRouter struct {
	client     *archie.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewGraphRouter creates a new GraphRouter.
func NewGraphRouter(client *archie.Client) *GraphRouter {
	return &GraphRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for graph endpoints.
func (r *GraphRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/build", r.Build)
	router.Get("/{repositoryID}", r.CurrentBuild)
	router.Delete("/{repositoryID}", r.Delete)
	router.Get("/{repositoryID}/entities", r.Entities)
	router.Get("/{repositoryID}/relationships", r.Relationships)
	router.Get("/{repositoryID}/patterns", r.Patterns)
	router.Post("/{repositoryID}/patterns/detect", r.DetectPatterns)
	router.Get("/{repositoryID}/path", r.FindPath)

	return router
}

// Build handles POST /api/v1/graph/build. Queues graph construction for
// the given repositories; already-covered builds are skipped.
func (r *GraphRouter) Build(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var body dto.GraphBuildRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	depth := graph.DefaultAnalysisDepth
	if body.Depth != "" {
		depth = graph.AnalysisDepth(body.Depth)
		if !depth.IsValid() {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid analysis depth: "+body.Depth, nil), r.logger)
			return
		}
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

	queued, err := r.client.Graph.Build(ctx, repositoryIDs, depth)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	queuedIDs := make([]string, len(queued))
	for i, id := range queued {
		queuedIDs[i] = id.String()
	}
	middleware.WriteJSON(w, http.StatusAccepted, dto.GraphBuildResponse{Queued: queuedIDs})
}

// CurrentBuild handles GET /api/v1/graph/{repositoryID}.
func (r *GraphRouter) CurrentBuild(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	repositoryID, ok := r.parseRepositoryID(w, req)
	if !ok {
		return
	}

	build, err := r.client.Graph.CurrentBuild(ctx, repositoryID)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.BuildResource(build)))
}

// Delete handles DELETE /api/v1/graph/{repositoryID}. Removes the
// repository's graph without touching its search index.
func (r *GraphRouter) Delete(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	repositoryID, ok := r.parseRepositoryID(w, req)
	if !ok {
		return
	}

	deleted, err := r.client.Graph.Delete(ctx, repositoryID)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if !deleted {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusNotFound, "no graph for repository", nil), r.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Entities handles GET /api/v1/graph/{repositoryID}/entities.
func (r *GraphRouter) Entities(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	repositoryID, ok := r.parseRepositoryID(w, req)
	if !ok {
		return
	}
	pagination := ParsePagination(req)

	options := pagination.Options()
	if kind := req.URL.Query().Get("kind"); kind != "" {
		options = append(options, repository.WithCondition("kind", kind))
	}

	entities, err := r.client.Graph.Entities(ctx, repositoryID, options...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	response := jsonapi.NewListResponse(r.serializer.EntityResources(entities))
	response.Meta = PaginationMeta(pagination, int64(len(entities)))
	middleware.WriteJSON(w, http.StatusOK, response)
}

// Relationships handles GET /api/v1/graph/{repositoryID}/relationships.
func (r *GraphRouter) Relationships(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	repositoryID, ok := r.parseRepositoryID(w, req)
	if !ok {
		return
	}
	pagination := ParsePagination(req)

	relationships, err := r.client.Graph.Relationships(ctx, repositoryID, pagination.Options()...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	response := jsonapi.NewListResponse(r.serializer.RelationshipResources(relationships))
	response.Meta = PaginationMeta(pagination, int64(len(relationships)))
	middleware.WriteJSON(w, http.StatusOK, response)
}

// Patterns handles GET /api/v1/graph/{repositoryID}/patterns.
func (r *GraphRouter) Patterns(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	repositoryID, ok := r.parseRepositoryID(w, req)
	if !ok {
		return
	}
	pagination := ParsePagination(req)

	patterns, err := r.client.Graph.Patterns(ctx, repositoryID, pagination.Options()...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	response := jsonapi.NewListResponse(r.serializer.PatternResources(patterns))
	response.Meta = PaginationMeta(pagination, int64(len(patterns)))
	middleware.WriteJSON(w, http.StatusOK, response)
}

// DetectPatterns handles POST /api/v1/graph/{repositoryID}/patterns/detect.
// Runs detection synchronously against the stored graph.
func (r *GraphRouter) DetectPatterns(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	repositoryID, ok := r.parseRepositoryID(w, req)
	if !ok {
		return
	}

	var body dto.PatternDetectRequest
	if req.Body != nil && req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
			return
		}
	}

	patterns, err := r.client.Graph.DetectPatterns(ctx, repositoryID, body.Names...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewListResponse(r.serializer.PatternResources(patterns)))
}

// FindPath handles GET /api/v1/graph/{repositoryID}/path.
// Query parameters: source, target (entity ids), max_depth.
func (r *GraphRouter) FindPath(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	repositoryID, ok := r.parseRepositoryID(w, req)
	if !ok {
		return
	}

	sourceID := req.URL.Query().Get("source")
	targetID := req.URL.Query().Get("target")
	if sourceID == "" || targetID == "" {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "source and target are required", nil), r.logger)
		return
	}

	maxDepth := 0
	if raw := req.URL.Query().Get("max_depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid max_depth", err), r.logger)
			return
		}
		maxDepth = parsed
	}

	path, err := r.client.Graph.FindPath(ctx, repositoryID, sourceID, targetID, maxDepth)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, jsonapi.NewListResponse(r.serializer.EntityResources(path)))
}

func (r *GraphRouter) parseRepositoryID(w http.ResponseWriter, req *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(req, "repositoryID"))
	if err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid repository id", err), r.logger)
		return uuid.Nil, false
	}
	return id, true
}
