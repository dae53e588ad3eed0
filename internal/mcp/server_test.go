package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/archielabs/archie/application/service"
	"github.com/archielabs/archie/domain/conversation"
	"github.com/archielabs/archie/domain/document"
	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/domain/llm"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/search"
)

var serverRepositoryID = uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")

// fakeSearch implements Searcher with a canned result.
type fakeSearch struct {
	result service.SearchResult
}

func (f *fakeSearch) Query(_ context.Context, _ string, _ ...service.SearchOption) (service.SearchResult, error) {
	return f.result, nil
}

// fakeConversations implements ConversationStarter and records the caller.
type fakeConversations struct {
	startedUserID string
	startedRepos  []uuid.UUID
}

func (f *fakeConversations) Start(_ context.Context, userID string, repositoryIDs []uuid.UUID, title string) (conversation.Conversation, error) {
	f.startedUserID = userID
	f.startedRepos = repositoryIDs
	return conversation.NewConversation(userID, title, conversation.NewContext(repositoryIDs)), nil
}

// fakeQuery implements QueryProcessor and records the last params.
type fakeQuery struct {
	lastParams service.ProcessQueryParams
	response   service.QueryResponse
}

func (f *fakeQuery) ProcessQuery(_ context.Context, params service.ProcessQueryParams) (service.QueryResponse, error) {
	f.lastParams = params
	return f.response, nil
}

// fakeGraph implements GraphQuerier with canned entities and path.
type fakeGraph struct {
	entities []graph.Entity
	path     []graph.Entity
}

func (f *fakeGraph) FindPath(_ context.Context, _ uuid.UUID, _, _ string, _ int) ([]graph.Entity, error) {
	return f.path, nil
}

func (f *fakeGraph) Entities(_ context.Context, _ uuid.UUID, _ ...repository.Option) ([]graph.Entity, error) {
	return f.entities, nil
}

// sendMessage marshals a JSON-RPC request, sends it through HandleMessage,
// and returns the JSONRPCResponse. It fatals on marshal failure or unexpected
// response type.
func sendMessage(t *testing.T, srv *Server, method string, id int, params map[string]any) mcp.JSONRPCResponse {
	t.Helper()

	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	result := srv.MCPServer().HandleMessage(context.Background(), raw)

	resp, ok := result.(mcp.JSONRPCResponse)
	if !ok {
		t.Fatalf("expected JSONRPCResponse, got %T: %+v", result, result)
	}
	return resp
}

// resultJSON re-marshals the Result field through JSON into dst.
func resultJSON(t *testing.T, resp mcp.JSONRPCResponse, dst any) {
	t.Helper()
	b, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		t.Fatalf("unmarshal result into %T: %v", dst, err)
	}
}

func testDocument() document.Document {
	return document.NewDocument(serverRepositoryID, "main", "internal/auth/token.go", 0,
		"func ValidateToken(raw string) error { return nil }").
		WithLanguage("go").
		WithLines(10, 25)
}

func testEntities() []graph.Entity {
	return []graph.Entity{
		graph.NewEntity(serverRepositoryID, graph.EntityKindFunction, "ValidateToken", "auth.ValidateToken"),
		graph.NewEntity(serverRepositoryID, graph.EntityKindStruct, "TokenStore", "auth.TokenStore"),
	}
}

func testQueryResponse() service.QueryResponse {
	intent := llm.NewIntent(llm.IntentExplanation, "auth", []string{"ValidateToken"}, 0.9, nil)
	attachments := []conversation.Attachment{
		conversation.NewAttachment("code", "token.go", "file://x/main/internal/auth/token.go", "func ValidateToken"),
	}
	return service.NewQueryResponse(
		uuid.New(),
		"Tokens are validated in ValidateToken.",
		0.9,
		intent,
		attachments,
		[]string{"Where is the token issued?"},
		150*time.Millisecond,
	)
}

func testServer() (*Server, *fakeConversations, *fakeQuery) {
	conversations := &fakeConversations{}
	query := &fakeQuery{response: testQueryResponse()}
	entities := testEntities()

	srv := NewServer(
		&fakeSearch{
			result: service.NewSearchResult(
				[]service.SearchItem{service.NewSearchItem(testDocument(), 0.95)},
				search.ModeHybrid,
			),
		},
		conversations,
		query,
		&fakeGraph{entities: entities, path: entities},
		"0.1.0-test",
		nil,
	)
	return srv, conversations, query
}

func initializeParams() map[string]any {
	return map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "test-client",
			"version": "0.0.1",
		},
	}
}

func TestServer_Initialize(t *testing.T) {
	srv, _, _ := testServer()
	resp := sendMessage(t, srv, "initialize", 1, initializeParams())

	var result mcp.InitializeResult
	resultJSON(t, resp, &result)

	if result.ServerInfo.Name != "archie" {
		t.Errorf("expected server name archie, got %s", result.ServerInfo.Name)
	}
	if result.ServerInfo.Version != "0.1.0-test" {
		t.Errorf("expected version 0.1.0-test, got %s", result.ServerInfo.Version)
	}
	if result.Capabilities.Tools == nil {
		t.Error("expected tools capability to be present")
	}
}

func TestServer_ListTools(t *testing.T) {
	srv, _, _ := testServer()

	sendMessage(t, srv, "initialize", 1, initializeParams())

	resp := sendMessage(t, srv, "tools/list", 2, nil)

	var result mcp.ListToolsResult
	resultJSON(t, resp, &result)

	if len(result.Tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(result.Tools))
	}

	tools := map[string]mcp.Tool{}
	for _, tool := range result.Tools {
		tools[tool.Name] = tool
	}

	for _, name := range []string{"search_code", "ask", "find_path"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing tool: %s", name)
		}
	}

	searchTool := tools["search_code"]
	props := searchTool.InputSchema.Properties
	if props == nil {
		t.Fatal("search_code tool has no properties")
	}
	for _, param := range []string{"query", "limit", "language", "repository_id"} {
		if _, ok := props[param]; !ok {
			t.Errorf("search_code tool missing %s parameter", param)
		}
	}
	if !contains(searchTool.InputSchema.Required, "query") {
		t.Error("query should be required")
	}

	pathTool := tools["find_path"]
	for _, param := range []string{"repository_id", "source", "target"} {
		if !contains(pathTool.InputSchema.Required, param) {
			t.Errorf("find_path should require %s", param)
		}
	}
}

func TestServer_SearchCode(t *testing.T) {
	srv, _, _ := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	resp := sendMessage(t, srv, "tools/call", 2, map[string]any{
		"name": "search_code",
		"arguments": map[string]any{
			"query": "validate token",
		},
	})

	var result mcp.CallToolResult
	resultJSON(t, resp, &result)

	if result.IsError {
		t.Fatalf("expected success, got error: %s", textFromContent(t, result))
	}

	text := textFromContent(t, result)

	var items []struct {
		ID           string  `json:"id"`
		RepositoryID string  `json:"repository_id"`
		URI          string  `json:"uri"`
		Path         string  `json:"path"`
		Language     string  `json:"language"`
		Content      string  `json:"content"`
		Score        float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		t.Fatalf("unmarshal search results: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 result, got %d", len(items))
	}
	if items[0].RepositoryID != serverRepositoryID.String() {
		t.Errorf("expected repository id %s, got %s", serverRepositoryID, items[0].RepositoryID)
	}
	if items[0].Path != "internal/auth/token.go" {
		t.Errorf("expected path internal/auth/token.go, got %s", items[0].Path)
	}
	if items[0].Language != "go" {
		t.Errorf("expected language go, got %s", items[0].Language)
	}
	if items[0].Score != 0.95 {
		t.Errorf("expected score 0.95, got %f", items[0].Score)
	}
	if !containsStr(items[0].URI, "?lines=L10-L25") {
		t.Errorf("expected line range in uri, got %s", items[0].URI)
	}
}

func TestServer_SearchCodeMissingQuery(t *testing.T) {
	srv, _, _ := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	resp := sendMessage(t, srv, "tools/call", 2, map[string]any{
		"name":      "search_code",
		"arguments": map[string]any{},
	})

	var result mcp.CallToolResult
	resultJSON(t, resp, &result)

	if !result.IsError {
		t.Fatal("expected error response")
	}

	text := textFromContent(t, result)
	if !containsStr(text, "query is required") {
		t.Errorf("expected error text containing 'query is required', got: %s", text)
	}
}

func TestServer_AskStartsConversation(t *testing.T) {
	srv, conversations, query := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	resp := sendMessage(t, srv, "tools/call", 2, map[string]any{
		"name": "ask",
		"arguments": map[string]any{
			"query":         "how are tokens validated?",
			"repository_id": serverRepositoryID.String(),
		},
	})

	var result mcp.CallToolResult
	resultJSON(t, resp, &result)

	if result.IsError {
		t.Fatalf("expected success, got error: %s", textFromContent(t, result))
	}

	if conversations.startedUserID != "mcp" {
		t.Errorf("expected conversation owned by mcp, got %q", conversations.startedUserID)
	}
	if len(conversations.startedRepos) != 1 || conversations.startedRepos[0] != serverRepositoryID {
		t.Errorf("expected conversation scoped to %s, got %v", serverRepositoryID, conversations.startedRepos)
	}
	if query.lastParams.Query != "how are tokens validated?" {
		t.Errorf("unexpected query forwarded: %q", query.lastParams.Query)
	}
	if query.lastParams.UserID != "mcp" {
		t.Errorf("expected query user mcp, got %q", query.lastParams.UserID)
	}

	text := textFromContent(t, result)

	var answer struct {
		ConversationID string  `json:"conversation_id"`
		Answer         string  `json:"answer"`
		Confidence     float64 `json:"confidence"`
		Attachments    []struct {
			Kind      string `json:"kind"`
			Title     string `json:"title"`
			Reference string `json:"reference"`
		} `json:"attachments"`
		FollowUps []string `json:"follow_ups"`
	}
	if err := json.Unmarshal([]byte(text), &answer); err != nil {
		t.Fatalf("unmarshal ask result: %v", err)
	}
	if answer.Answer != "Tokens are validated in ValidateToken." {
		t.Errorf("unexpected answer: %q", answer.Answer)
	}
	if answer.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %f", answer.Confidence)
	}
	if len(answer.Attachments) != 1 || answer.Attachments[0].Kind != "code" {
		t.Errorf("expected one code attachment, got %v", answer.Attachments)
	}
	if len(answer.FollowUps) != 1 {
		t.Errorf("expected one follow-up, got %v", answer.FollowUps)
	}
}

func TestServer_AskContinuesConversation(t *testing.T) {
	srv, conversations, query := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	conversationID := uuid.New()
	resp := sendMessage(t, srv, "tools/call", 2, map[string]any{
		"name": "ask",
		"arguments": map[string]any{
			"query":           "and where are they issued?",
			"conversation_id": conversationID.String(),
		},
	})

	var result mcp.CallToolResult
	resultJSON(t, resp, &result)

	if result.IsError {
		t.Fatalf("expected success, got error: %s", textFromContent(t, result))
	}
	if conversations.startedUserID != "" {
		t.Error("expected no new conversation to be started")
	}
	if query.lastParams.ConversationID != conversationID {
		t.Errorf("expected conversation %s, got %s", conversationID, query.lastParams.ConversationID)
	}
}

func TestServer_AskWithoutTarget(t *testing.T) {
	srv, _, _ := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	resp := sendMessage(t, srv, "tools/call", 2, map[string]any{
		"name": "ask",
		"arguments": map[string]any{
			"query": "what does this do?",
		},
	})

	var result mcp.CallToolResult
	resultJSON(t, resp, &result)

	if !result.IsError {
		t.Fatal("expected error response")
	}

	text := textFromContent(t, result)
	if !containsStr(text, "repository_id is required") {
		t.Errorf("expected error about missing repository_id, got: %s", text)
	}
}

func TestServer_FindPathResolvesNames(t *testing.T) {
	srv, _, _ := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	resp := sendMessage(t, srv, "tools/call", 2, map[string]any{
		"name": "find_path",
		"arguments": map[string]any{
			"repository_id": serverRepositoryID.String(),
			"source":        "ValidateToken",
			"target":        "auth.TokenStore",
		},
	})

	var result mcp.CallToolResult
	resultJSON(t, resp, &result)

	if result.IsError {
		t.Fatalf("expected success, got error: %s", textFromContent(t, result))
	}

	text := textFromContent(t, result)

	var path []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		QualifiedName string `json:"qualified_name"`
		Kind          string `json:"kind"`
	}
	if err := json.Unmarshal([]byte(text), &path); err != nil {
		t.Fatalf("unmarshal path: %v", err)
	}
	if len(path) != 2 {
		t.Fatalf("expected path of 2 entities, got %d", len(path))
	}
	if path[0].Name != "ValidateToken" || path[0].Kind != "function" {
		t.Errorf("unexpected first entity: %+v", path[0])
	}
	if path[1].QualifiedName != "auth.TokenStore" {
		t.Errorf("unexpected second entity: %+v", path[1])
	}
}

func TestServer_FindPathUnknownEntity(t *testing.T) {
	srv, _, _ := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	resp := sendMessage(t, srv, "tools/call", 2, map[string]any{
		"name": "find_path",
		"arguments": map[string]any{
			"repository_id": serverRepositoryID.String(),
			"source":        "NoSuchEntity",
			"target":        "auth.TokenStore",
		},
	})

	var result mcp.CallToolResult
	resultJSON(t, resp, &result)

	if !result.IsError {
		t.Fatal("expected error for unknown entity")
	}

	text := textFromContent(t, result)
	if !containsStr(text, "not found") {
		t.Errorf("expected 'not found' error, got: %s", text)
	}
}

// textFromContent extracts the text string from the first content item
// of a CallToolResult. It round-trips through JSON because in-process
// responses may hold the content as a map rather than a typed struct.
func textFromContent(t *testing.T, result mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	b, err := json.Marshal(result.Content[0])
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	var tc struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b, &tc); err != nil {
		t.Fatalf("unmarshal text content: %v", err)
	}
	return tc.Text
}

func contains(items []string, target string) bool {
	for _, s := range items {
		if s == target {
			return true
		}
	}
	return false
}

func containsStr(haystack, needle string) bool {
	return len(haystack) >= len(needle) && searchStr(haystack, needle)
}

func searchStr(s, sub string) bool {
	for i := 0; i <= len(s)-len(sub); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// Ensure fakes satisfy interfaces at compile time.
var (
	_ Searcher            = (*fakeSearch)(nil)
	_ ConversationStarter = (*fakeConversations)(nil)
	_ QueryProcessor      = (*fakeQuery)(nil)
	_ GraphQuerier        = (*fakeGraph)(nil)
)
