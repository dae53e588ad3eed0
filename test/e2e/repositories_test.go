package e2e_test

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestRepositories_List_Empty(t *testing.T) {
	ts := NewTestServer(t)

	resp := ts.GET("/api/v1/repositories")

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result repositoryListResponse
	ts.DecodeJSON(resp, &result)

	if len(result.Data) != 0 {
		t.Errorf("len(data) = %d, want 0", len(result.Data))
	}
}

func TestRepositories_Add(t *testing.T) {
	ts := NewTestServer(t)

	resp := ts.POST("/api/v1/repositories", map[string]string{
		"url": "https://github.com/acme/fetch",
	})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var result repositoryResponse
	ts.DecodeJSON(resp, &result)

	if result.Data.ID == "" {
		t.Error("ID should not be empty")
	}
	if result.Data.Type != "repository" {
		t.Errorf("type = %q, want %q", result.Data.Type, "repository")
	}
	if !strings.Contains(result.Data.Attributes.URL, "acme/fetch") {
		t.Errorf("url = %q, want it to contain %q", result.Data.Attributes.URL, "acme/fetch")
	}
	if result.Data.Attributes.Owner != "acme" {
		t.Errorf("owner = %q, want %q", result.Data.Attributes.Owner, "acme")
	}
	if result.Data.Attributes.Name != "fetch" {
		t.Errorf("name = %q, want %q", result.Data.Attributes.Name, "fetch")
	}
	if result.Data.Attributes.DefaultBranch != "main" {
		t.Errorf("default_branch = %q, want %q", result.Data.Attributes.DefaultBranch, "main")
	}
}

func TestRepositories_Add_Duplicate(t *testing.T) {
	ts := NewTestServer(t)

	ts.AddRepository("https://github.com/acme/fetch")

	// Re-adding the same remote under another URL form is a conflict.
	resp := ts.POST("/api/v1/repositories", map[string]string{
		"url": "https://github.com/acme/fetch.git",
	})
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestRepositories_Add_MissingURL(t *testing.T) {
	ts := NewTestServer(t)

	resp := ts.POST("/api/v1/repositories", map[string]string{"url": ""})
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestRepositories_List_WithData(t *testing.T) {
	ts := NewTestServer(t)

	ts.AddRepository("https://github.com/acme/fetch")

	resp := ts.GET("/api/v1/repositories")

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result repositoryListResponse
	ts.DecodeJSON(resp, &result)

	if len(result.Data) != 1 {
		t.Fatalf("len(data) = %d, want 1", len(result.Data))
	}
	if !strings.Contains(result.Data[0].Attributes.URL, "acme/fetch") {
		t.Errorf("url = %q, want it to contain %q", result.Data[0].Attributes.URL, "acme/fetch")
	}
}

func TestRepositories_Get(t *testing.T) {
	ts := NewTestServer(t)

	repo := ts.AddRepository("https://github.com/acme/fetch")

	resp := ts.GET("/api/v1/repositories/" + repo.ID)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result repositoryResponse
	ts.DecodeJSON(resp, &result)

	if result.Data.ID != repo.ID {
		t.Errorf("ID = %s, want %s", result.Data.ID, repo.ID)
	}
}

func TestRepositories_Get_InvalidID(t *testing.T) {
	ts := NewTestServer(t)

	resp := ts.GET("/api/v1/repositories/not-a-uuid")
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestRepositories_Get_NotFound(t *testing.T) {
	ts := NewTestServer(t)

	resp := ts.GET("/api/v1/repositories/00000000-0000-0000-0000-000000000001")
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestRepositories_IndexingCompletes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	ts := NewTestServer(t)

	repo := ts.AddRepository("https://github.com/acme/fetch")
	indexed := ts.WaitForReady(repo.ID, 30*time.Second)

	if indexed.Attributes.FileCount != 2 {
		t.Errorf("file_count = %d, want 2", indexed.Attributes.FileCount)
	}
	if indexed.Attributes.DocumentCount == 0 {
		t.Error("document_count should not be zero after indexing")
	}
	if indexed.Attributes.LastIndexedCommit != "feedc0de5678" {
		t.Errorf("last_indexed_commit = %q, want %q", indexed.Attributes.LastIndexedCommit, "feedc0de5678")
	}
}

func TestRepositories_IndexStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	ts := NewTestServer(t)

	repo := ts.AddRepository("https://github.com/acme/fetch")
	ts.WaitForReady(repo.ID, 30*time.Second)

	resp := ts.GET("/api/v1/repositories/" + repo.ID + "/index")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result struct {
		RepositoryID     string `json:"repository_id"`
		State            string `json:"state"`
		DocumentsIndexed int    `json:"documents_indexed"`
	}
	ts.DecodeJSON(resp, &result)

	if result.RepositoryID != repo.ID {
		t.Errorf("repository_id = %s, want %s", result.RepositoryID, repo.ID)
	}
	if result.State != "completed" {
		t.Errorf("state = %q, want %q", result.State, "completed")
	}
	if result.DocumentsIndexed == 0 {
		t.Error("documents_indexed should not be zero")
	}
}

func TestRepositories_Delete(t *testing.T) {
	ts := NewTestServer(t)

	repo := ts.AddRepository("https://github.com/acme/fetch")

	resp := ts.DELETE("/api/v1/repositories/" + repo.ID)
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	// The record is gone immediately; cleanup runs in the background.
	getResp := ts.GET("/api/v1/repositories/" + repo.ID)
	defer func() {
		_ = getResp.Body.Close()
	}()

	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want %d", getResp.StatusCode, http.StatusNotFound)
	}
}

func TestRepositories_Delete_NotFound(t *testing.T) {
	ts := NewTestServer(t)

	resp := ts.DELETE("/api/v1/repositories/00000000-0000-0000-0000-000000000001")
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestQueue_List(t *testing.T) {
	ts := NewTestServer(t)

	resp := ts.GET("/api/v1/queue")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result struct {
		Data []struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		} `json:"data"`
	}
	ts.DecodeJSON(resp, &result)

	if result.Data == nil {
		t.Error("data should not be nil")
	}
}
