package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/archielabs/archie"
	"github.com/archielabs/archie/application/service"
	"github.com/archielabs/archie/domain/search"
	"github.com/archielabs/archie/infrastructure/api/jsonapi"
	"github.com/archielabs/archie/infrastructure/api/middleware"
	"github.com/archielabs/archie/infrastructure/api/v1/dto"
)

// SearchRouter handles search API endpoints.
type SearchRouter struct {
	client *archie.Client
	logger *slog.Logger
}

// NewSearchRouter creates a new SearchRouter.
func NewSearchRouter(client *archie.Client) *SearchRouter {
	return &SearchRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for search endpoints.
func (r *SearchRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Search)

	return router
}

// Search handles POST /api/v1/search. Hybrid search over indexed
// documents; without an embedding provider the mode degrades to keyword.
func (r *SearchRouter) Search(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var body dto.SearchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	attrs := body.Data.Attributes
	if attrs.Query == "" {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "query is required", nil), r.logger)
		return
	}

	opts, err := buildSearchOptions(attrs)
	if err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, err.Error(), err), r.logger)
		return
	}

	result, err := r.client.Search.Query(ctx, attrs.Query, opts...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, buildSearchResponse(result))
}

func buildSearchOptions(attrs dto.SearchAttributes) ([]service.SearchOption, error) {
	var opts []service.SearchOption

	if attrs.Mode != "" {
		opts = append(opts, service.WithMode(search.Mode(attrs.Mode)))
	}
	if attrs.Limit != nil && *attrs.Limit > 0 {
		opts = append(opts, service.WithLimit(*attrs.Limit))
	}

	if f := attrs.Filters; f != nil {
		if len(f.Repositories) > 0 {
			ids := make([]uuid.UUID, 0, len(f.Repositories))
			for _, raw := range f.Repositories {
				id, err := uuid.Parse(raw)
				if err != nil {
					return nil, err
				}
				ids = append(ids, id)
			}
			opts = append(opts, service.WithRepositories(ids...))
		}
		if len(f.Languages) > 0 {
			opts = append(opts, service.WithLanguages(f.Languages...))
		}
		if f.PathPrefix != "" {
			opts = append(opts, service.WithPathPrefix(f.PathPrefix))
		}
		if f.Branch != "" {
			opts = append(opts, service.WithBranch(f.Branch))
		}
	}

	return opts, nil
}

func buildSearchResponse(result service.SearchResult) dto.SearchResponse {
	items := result.Items()
	data := make([]dto.DocumentData, len(items))
	for i, item := range items {
		doc := item.Document()
		updatedAt := doc.UpdatedAt()
		data[i] = dto.DocumentData{
			Type: "document",
			ID:   doc.ID().String(),
			Attributes: dto.DocumentAttributes{
				RepositoryID: doc.RepositoryID().String(),
				Branch:       doc.Branch(),
				Path:         doc.Path(),
				ChunkIndex:   doc.ChunkIndex(),
				Language:     doc.Language(),
				Content:      doc.Content(),
				StartLine:    doc.StartLine(),
				EndLine:      doc.EndLine(),
				Score:        item.Score(),
				UpdatedAt:    &updatedAt,
			},
		}
	}

	return dto.SearchResponse{
		Data: data,
		Meta: &jsonapi.Meta{
			"count": result.Count(),
			"mode":  string(result.Mode()),
		},
	}
}
