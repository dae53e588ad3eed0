package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/archielabs/archie"
	"github.com/archielabs/archie/domain/githost"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/infrastructure/api"
)

const workerPollPeriod = 20 * time.Millisecond

const clientSource = `package fetch

import (
	"context"
	"net/http"
)

// Client wraps an http.Client with retry support.
type Client struct {
	inner   *http.Client
	retries int
}

// NewClient creates a Client with the given retry budget.
func NewClient(retries int) *Client {
	return &Client{inner: http.DefaultClient, retries: retries}
}

// Get fetches the URL, retrying transient failures.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	var resp *http.Response
	for attempt := 0; attempt <= c.retries; attempt++ {
		resp, err = c.inner.Do(req)
		if err == nil {
			return resp, nil
		}
	}
	return nil, err
}
`

const backoffSource = `package fetch

import "time"

// retryDelay returns the exponential backoff delay for an attempt.
func retryDelay(attempt int) time.Duration {
	delay := 100 * time.Millisecond
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	if delay > 5*time.Second {
		return 5 * time.Second
	}
	return delay
}
`

// stubGitHost serves a fixed two-file repository over the githost
// provider port so API tests run without network access.
type stubGitHost struct {
	mu    sync.Mutex
	tree  githost.Tree
	files map[string]string
}

func newStubGitHost() *stubGitHost {
	return &stubGitHost{
		tree: githost.NewTree("tree-head", []githost.TreeEntry{
			githost.NewTreeEntry("client.go", "100644", githost.TreeEntryBlob, "sha-client", int64(len(clientSource))),
			githost.NewTreeEntry("backoff.go", "100644", githost.TreeEntryBlob, "sha-backoff", int64(len(backoffSource))),
		}, false),
		files: map[string]string{
			"client.go":  clientSource,
			"backoff.go": backoffSource,
		},
	}
}

func (s *stubGitHost) ValidateAccess(_ context.Context, _, _ string) error { return nil }

func (s *stubGitHost) GetRepository(_ context.Context, _, _ string) (githost.RepositoryInfo, error) {
	return githost.NewRepositoryInfo("retrying http client", "Go", "main", false, 4096), nil
}

func (s *stubGitHost) GetBranches(_ context.Context, _, _ string) ([]githost.BranchInfo, error) {
	return []githost.BranchInfo{githost.NewBranchInfo("main", "feedc0de5678", true)}, nil
}

func (s *stubGitHost) GetTree(_ context.Context, _, _, _ string, _ bool) (githost.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree, nil
}

func (s *stubGitHost) GetFileContent(_ context.Context, _, _, path, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[path], nil
}

func (s *stubGitHost) GetCommitHistory(_ context.Context, _, _, _ string, _ int) ([]repository.Commit, error) {
	return nil, nil
}

// TestServer runs the full API over httptest with a stubbed git host.
type TestServer struct {
	t          *testing.T
	client     *archie.Client
	httpServer *httptest.Server
}

// NewTestServer creates a test server backed by SQLite in a temp dir.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	tmpDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := archie.New(
		archie.WithSQLite(filepath.Join(tmpDir, "test.db")),
		archie.WithDataDir(filepath.Join(tmpDir, "data")),
		archie.WithGitHostProvider(newStubGitHost()),
		archie.WithWorkerPollPeriod(workerPollPeriod),
		archie.WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("create archie client: %v", err)
	}

	apiServer := api.NewAPIServer(client, nil)
	httpServer := httptest.NewServer(apiServer.Handler())

	ts := &TestServer{
		t:          t,
		client:     client,
		httpServer: httpServer,
	}

	t.Cleanup(func() {
		httpServer.Close()
		_ = client.Close()
	})

	return ts
}

// URL returns the base URL of the test server.
func (ts *TestServer) URL() string {
	return ts.httpServer.URL
}

// GET performs a GET request and returns the response.
func (ts *TestServer) GET(path string) *http.Response {
	ts.t.Helper()
	resp, err := http.Get(ts.URL() + path)
	if err != nil {
		ts.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// POST performs a POST request with a JSON body.
func (ts *TestServer) POST(path string, body any) *http.Response {
	ts.t.Helper()
	return ts.Do(http.MethodPost, path, nil, body)
}

// DELETE performs a DELETE request.
func (ts *TestServer) DELETE(path string) *http.Response {
	ts.t.Helper()
	return ts.Do(http.MethodDelete, path, nil, nil)
}

// Do performs a request with optional headers and JSON body.
func (ts *TestServer) Do(method, path string, headers map[string]string, body any) *http.Response {
	ts.t.Helper()

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, ts.URL()+path, reader)
	if err != nil {
		ts.t.Fatalf("create %s request: %v", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// DecodeJSON decodes the response body as JSON into v and closes the body.
func (ts *TestServer) DecodeJSON(resp *http.Response, v any) {
	ts.t.Helper()
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		ts.t.Fatalf("decode response: %v", err)
	}
}

// ReadBody reads and returns the response body as a string.
func (ts *TestServer) ReadBody(resp *http.Response) string {
	ts.t.Helper()
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ts.t.Fatalf("read body: %v", err)
	}
	return string(body)
}

// repositoryAttributes mirrors the repository resource attributes.
type repositoryAttributes struct {
	URL               string `json:"url"`
	Owner             string `json:"owner"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	Language          string `json:"language"`
	DefaultBranch     string `json:"default_branch"`
	Status            string `json:"status"`
	LastError         string `json:"last_error"`
	FileCount         int    `json:"file_count"`
	DocumentCount     int    `json:"document_count"`
	LastIndexedCommit string `json:"last_indexed_commit"`
}

type repositoryResource struct {
	Type       string               `json:"type"`
	ID         string               `json:"id"`
	Attributes repositoryAttributes `json:"attributes"`
}

type repositoryResponse struct {
	Data repositoryResource `json:"data"`
}

type repositoryListResponse struct {
	Data []repositoryResource `json:"data"`
}

// AddRepository adds a repository through the API and returns its resource.
func (ts *TestServer) AddRepository(url string) repositoryResource {
	ts.t.Helper()

	resp := ts.POST("/api/v1/repositories", map[string]string{"url": url})
	if resp.StatusCode != http.StatusCreated {
		ts.t.Fatalf("add repository: status = %d, body = %s", resp.StatusCode, ts.ReadBody(resp))
	}

	var result repositoryResponse
	ts.DecodeJSON(resp, &result)
	return result.Data
}

// WaitForReady polls the repository until indexing finishes or the
// timeout is reached.
func (ts *TestServer) WaitForReady(repositoryID string, timeout time.Duration) repositoryResource {
	ts.t.Helper()

	deadline := time.Now().Add(timeout)
	var last repositoryResource

	for time.Now().Before(deadline) {
		resp := ts.GET("/api/v1/repositories/" + repositoryID)
		if resp.StatusCode != http.StatusOK {
			ts.t.Fatalf("get repository: status = %d", resp.StatusCode)
		}

		var result repositoryResponse
		ts.DecodeJSON(resp, &result)
		last = result.Data

		if last.Attributes.Status == "ready" {
			return last
		}
		if last.Attributes.Status == "error" {
			ts.t.Fatalf("repository entered error state: %s", last.Attributes.LastError)
		}

		time.Sleep(50 * time.Millisecond)
	}

	ts.t.Fatalf("timeout waiting for repository %s, last status %q", repositoryID, last.Attributes.Status)
	return last
}
