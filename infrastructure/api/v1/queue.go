package v1

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/archielabs/archie"
	"github.com/archielabs/archie/application/service"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/infrastructure/api/jsonapi"
	"github.com/archielabs/archie/infrastructure/api/middleware"
)

// QueueRouter handles task queue API endpoints.
type QueueRouter struct {
	client     *archie.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewQueueRouter creates a new QueueRouter.
func NewQueueRouter(client *archie.Client) *QueueRouter {
	return &QueueRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for queue endpoints.
func (r *QueueRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)

	return router
}

// List handles GET /api/v1/queue. Returns pending tasks ordered by
// priority; tasks disappear once dequeued.
func (r *QueueRouter) List(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	pagination := ParsePagination(req)

	params := &service.TaskListParams{
		Limit:  pagination.Limit(),
		Offset: pagination.Offset(),
	}
	if opStr := req.URL.Query().Get("operation"); opStr != "" {
		op := task.Operation(opStr)
		params.Operation = &op
	}

	tasks, err := r.client.Tasks.List(ctx, params)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	count, err := r.client.Tasks.Count(ctx)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	response := jsonapi.NewListResponse(r.serializer.TaskResources(tasks))
	response.Meta = PaginationMeta(pagination, count)
	middleware.WriteJSON(w, http.StatusOK, response)
}
