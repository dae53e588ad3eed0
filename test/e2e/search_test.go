package e2e_test

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

type searchRequestBody struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			Query   string         `json:"query"`
			Mode    string         `json:"mode,omitempty"`
			Limit   *int           `json:"limit,omitempty"`
			Filters map[string]any `json:"filters,omitempty"`
		} `json:"attributes"`
	} `json:"data"`
}

func newSearchRequest(query, mode string) searchRequestBody {
	var body searchRequestBody
	body.Data.Type = "search"
	body.Data.Attributes.Query = query
	body.Data.Attributes.Mode = mode
	return body
}

type searchResponseBody struct {
	Data []struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		Attributes struct {
			RepositoryID string  `json:"repository_id"`
			Branch       string  `json:"branch"`
			Path         string  `json:"path"`
			Language     string  `json:"language"`
			Content      string  `json:"content"`
			Score        float64 `json:"score"`
		} `json:"attributes"`
	} `json:"data"`
	Meta map[string]any `json:"meta"`
}

func TestSearch_FindsIndexedContent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	ts := NewTestServer(t)

	repo := ts.AddRepository("https://github.com/acme/fetch")
	ts.WaitForReady(repo.ID, 30*time.Second)

	resp := ts.POST("/api/v1/search", newSearchRequest("exponential backoff delay", "keyword"))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result searchResponseBody
	ts.DecodeJSON(resp, &result)

	if len(result.Data) == 0 {
		t.Fatal("expected search results")
	}

	found := false
	for _, item := range result.Data {
		if strings.Contains(item.Attributes.Content, "retryDelay") {
			found = true
			if item.Attributes.Path != "backoff.go" {
				t.Errorf("path = %q, want %q", item.Attributes.Path, "backoff.go")
			}
			if item.Attributes.RepositoryID != repo.ID {
				t.Errorf("repository_id = %s, want %s", item.Attributes.RepositoryID, repo.ID)
			}
			if item.Attributes.Score <= 0 {
				t.Errorf("score = %f, want > 0", item.Attributes.Score)
			}
		}
	}
	if !found {
		t.Error("expected a result containing the backoff helper")
	}
}

func TestSearch_RepositoryFilter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	ts := NewTestServer(t)

	repo := ts.AddRepository("https://github.com/acme/fetch")
	ts.WaitForReady(repo.ID, 30*time.Second)

	// Filtering on an unrelated repository id returns nothing.
	body := newSearchRequest("retry", "keyword")
	body.Data.Attributes.Filters = map[string]any{
		"repositories": []string{"00000000-0000-0000-0000-000000000001"},
	}

	resp := ts.POST("/api/v1/search", body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result searchResponseBody
	ts.DecodeJSON(resp, &result)

	if len(result.Data) != 0 {
		t.Errorf("len(data) = %d, want 0", len(result.Data))
	}
}

func TestSearch_ReportsMode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	ts := NewTestServer(t)

	repo := ts.AddRepository("https://github.com/acme/fetch")
	ts.WaitForReady(repo.ID, 30*time.Second)

	resp := ts.POST("/api/v1/search", newSearchRequest("http client retry", "keyword"))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result searchResponseBody
	ts.DecodeJSON(resp, &result)

	if result.Meta["mode"] != "keyword" {
		t.Errorf("meta.mode = %v, want %q", result.Meta["mode"], "keyword")
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	ts := NewTestServer(t)

	resp := ts.POST("/api/v1/search", newSearchRequest("", ""))
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestSearch_InvalidRepositoryFilter(t *testing.T) {
	ts := NewTestServer(t)

	body := newSearchRequest("retry", "keyword")
	body.Data.Attributes.Filters = map[string]any{
		"repositories": []string{"not-a-uuid"},
	}

	resp := ts.POST("/api/v1/search", body)
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
