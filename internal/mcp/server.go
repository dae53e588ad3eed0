// Package mcp provides Model Context Protocol server functionality.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/archielabs/archie/application/service"
	"github.com/archielabs/archie/domain/conversation"
	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/domain/repository"
)

// mcpUserID owns conversations started through the ask tool when the
// caller does not identify itself.
const mcpUserID = "mcp"

// Searcher provides code search for the search_code tool.
type Searcher interface {
	Query(ctx context.Context, query string, opts ...service.SearchOption) (service.SearchResult, error)
}

// ConversationStarter opens conversations for the ask tool.
type ConversationStarter interface {
	Start(ctx context.Context, userID string, repositoryIDs []uuid.UUID, title string) (conversation.Conversation, error)
}

// QueryProcessor answers questions for the ask tool.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, params service.ProcessQueryParams) (service.QueryResponse, error)
}

// GraphQuerier provides graph traversal for the find_path tool.
type GraphQuerier interface {
	FindPath(ctx context.Context, repositoryID uuid.UUID, sourceID, targetID string, maxDepth int) ([]graph.Entity, error)
	Entities(ctx context.Context, repositoryID uuid.UUID, options ...repository.Option) ([]graph.Entity, error)
}

// Server wraps the MCP server with code search, question answering, and
// graph traversal tools.
type Server struct {
	mcpServer     *server.MCPServer
	search        Searcher
	conversations ConversationStarter
	query         QueryProcessor
	graph         GraphQuerier
	logger        *slog.Logger
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(search Searcher, conversations ConversationStarter, query QueryProcessor, graphQuerier GraphQuerier, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		search:        search,
		conversations: conversations,
		query:         query,
		graph:         graphQuerier,
		logger:        logger,
	}

	mcpServer := server.NewMCPServer(
		"archie",
		version,
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

// registerTools registers all archie tools with the MCP server.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	searchTool := mcp.NewTool("search_code",
		mcp.WithDescription("Search indexed repositories using hybrid keyword and semantic search"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of results to return (default: 10)"),
		),
		mcp.WithString("language",
			mcp.Description("Filter by programming language"),
		),
		mcp.WithString("repository_id",
			mcp.Description("Limit to a single repository (UUID)"),
		),
	)
	mcpServer.AddTool(searchTool, s.handleSearchCode)

	askTool := mcp.NewTool("ask",
		mcp.WithDescription("Ask a question about an indexed repository; answers cite the code they are grounded on"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question to answer"),
		),
		mcp.WithString("conversation_id",
			mcp.Description("Continue an existing conversation (UUID)"),
		),
		mcp.WithString("repository_id",
			mcp.Description("Repository to converse about (UUID); required when no conversation_id is given"),
		),
	)
	mcpServer.AddTool(askTool, s.handleAsk)

	pathTool := mcp.NewTool("find_path",
		mcp.WithDescription("Find the shortest dependency path between two entities in a repository's knowledge graph"),
		mcp.WithString("repository_id",
			mcp.Required(),
			mcp.Description("The repository (UUID)"),
		),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Source entity: id, name, or qualified name"),
		),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Target entity: id, name, or qualified name"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum path length (default: 10)"),
		),
	)
	mcpServer.AddTool(pathTool, s.handleFindPath)
}

// handleSearchCode handles the search_code tool invocation.
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}

	opts := []service.SearchOption{
		service.WithLimit(request.GetInt("limit", 10)),
	}
	if lang := request.GetString("language", ""); lang != "" {
		opts = append(opts, service.WithLanguages(lang))
	}
	if raw := request.GetString("repository_id", ""); raw != "" {
		repositoryID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid repository_id: %s", raw)), nil
		}
		opts = append(opts, service.WithRepositories(repositoryID))
	}

	result, err := s.search.Query(ctx, query, opts...)
	if err != nil {
		s.logger.Error("search failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	type searchResult struct {
		ID           string  `json:"id"`
		RepositoryID string  `json:"repository_id"`
		URI          string  `json:"uri"`
		Path         string  `json:"path"`
		Language     string  `json:"language,omitempty"`
		Content      string  `json:"content"`
		Score        float64 `json:"score"`
	}

	items := result.Items()
	results := make([]searchResult, len(items))
	for i, item := range items {
		doc := item.Document()
		uri := NewFileURI(doc.RepositoryID(), doc.Branch(), doc.Path())
		if doc.StartLine() > 0 {
			uri = uri.WithLineRange(doc.StartLine(), doc.EndLine())
		}
		results[i] = searchResult{
			ID:           doc.ID().String(),
			RepositoryID: doc.RepositoryID().String(),
			URI:          uri.String(),
			Path:         doc.Path(),
			Language:     doc.Language(),
			Content:      doc.Content(),
			Score:        item.Score(),
		}
	}

	jsonBytes, err := json.Marshal(results)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleAsk handles the ask tool invocation. Without a conversation_id a
// new conversation is started over the given repository.
func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}

	var conversationID uuid.UUID
	if raw := request.GetString("conversation_id", ""); raw != "" {
		conversationID, err = uuid.Parse(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid conversation_id: %s", raw)), nil
		}
	} else {
		raw := request.GetString("repository_id", "")
		if raw == "" {
			return mcp.NewToolResultError("repository_id is required when no conversation_id is given"), nil
		}
		repositoryID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid repository_id: %s", raw)), nil
		}

		conv, startErr := s.conversations.Start(ctx, mcpUserID, []uuid.UUID{repositoryID}, "")
		if startErr != nil {
			s.logger.Error("failed to start conversation", slog.Any("error", startErr))
			return mcp.NewToolResultError(fmt.Sprintf("failed to start conversation: %v", startErr)), nil
		}
		conversationID = conv.ID()
	}

	response, err := s.query.ProcessQuery(ctx, service.ProcessQueryParams{
		ConversationID: conversationID,
		UserID:         mcpUserID,
		Query:          query,
		IncludeContext: true,
	})
	if err != nil {
		s.logger.Error("query failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	type attachment struct {
		Kind      string `json:"kind"`
		Title     string `json:"title"`
		Reference string `json:"reference"`
	}
	type askResult struct {
		ConversationID string       `json:"conversation_id"`
		Answer         string       `json:"answer"`
		Confidence     float64      `json:"confidence"`
		Attachments    []attachment `json:"attachments,omitempty"`
		FollowUps      []string     `json:"follow_ups,omitempty"`
	}

	attachments := response.Attachments()
	result := askResult{
		ConversationID: conversationID.String(),
		Answer:         response.Answer(),
		Confidence:     response.Confidence(),
		FollowUps:      response.FollowUps(),
	}
	for _, a := range attachments {
		result.Attachments = append(result.Attachments, attachment{
			Kind:      a.Kind(),
			Title:     a.Title(),
			Reference: a.Reference(),
		})
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleFindPath handles the find_path tool invocation. Source and
// target accept entity ids, names, or qualified names.
func (s *Server) handleFindPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("repository_id")
	if err != nil {
		return mcp.NewToolResultError("repository_id is required"), nil
	}
	repositoryID, err := uuid.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid repository_id: %s", raw)), nil
	}

	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source is required"), nil
	}
	target, err := request.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError("target is required"), nil
	}
	maxDepth := request.GetInt("max_depth", 10)

	sourceID, err := s.resolveEntityID(ctx, repositoryID, source)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	targetID, err := s.resolveEntityID(ctx, repositoryID, target)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	path, err := s.graph.FindPath(ctx, repositoryID, sourceID, targetID, maxDepth)
	if err != nil {
		s.logger.Error("find path failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("find path failed: %v", err)), nil
	}

	type pathEntity struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		QualifiedName string `json:"qualified_name"`
		Kind          string `json:"kind"`
		Path          string `json:"path,omitempty"`
	}

	entities := make([]pathEntity, len(path))
	for i, e := range path {
		entities[i] = pathEntity{
			ID:            e.EntityID(),
			Name:          e.Name(),
			QualifiedName: e.QualifiedName(),
			Kind:          string(e.Kind()),
			Path:          e.Path(),
		}
	}

	jsonBytes, err := json.Marshal(entities)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal path: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// resolveEntityID maps a name or qualified name onto an entity id.
// Values that already are entity ids pass through unchanged.
func (s *Server) resolveEntityID(ctx context.Context, repositoryID uuid.UUID, ref string) (string, error) {
	entities, err := s.graph.Entities(ctx, repositoryID)
	if err != nil {
		return "", fmt.Errorf("list entities: %w", err)
	}

	for _, e := range entities {
		if e.EntityID() == ref {
			return ref, nil
		}
	}
	for _, e := range entities {
		if e.QualifiedName() == ref || e.Name() == ref {
			return e.EntityID(), nil
		}
	}
	return "", fmt.Errorf("entity %q not found in repository %s", ref, repositoryID)
}

// MCPServer returns the underlying MCP server for HTTP mounting.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
