package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustRemote(t *testing.T, raw string) Remote {
	t.Helper()
	r, err := ParseRemote(raw)
	if err != nil {
		t.Fatalf("ParseRemote(%q): %v", raw, err)
	}
	return r
}

func TestNewRepository(t *testing.T) {
	r := NewRepository(mustRemote(t, "https://github.com/acme/widgets"))

	if r.ID() == uuid.Nil {
		t.Error("ID() should be assigned on creation")
	}
	if r.Status() != StatusDisconnected {
		t.Errorf("Status() = %v, want Disconnected", r.Status())
	}
	if r.URL() != "https://github.com/acme/widgets" {
		t.Errorf("URL() = %q", r.URL())
	}
	if r.FullName() != "acme/widgets" {
		t.Errorf("FullName() = %q", r.FullName())
	}
	if r.HasBeenIndexed() {
		t.Error("HasBeenIndexed() should be false for a new repository")
	}
	if r.CreatedAt().IsZero() || r.UpdatedAt().IsZero() {
		t.Error("timestamps should be set on creation")
	}
}

func TestRepository_TransitionTo(t *testing.T) {
	r := NewRepository(mustRemote(t, "acme/widgets"))

	r2, ok := r.TransitionTo(StatusConnected)
	if !ok {
		t.Fatal("Disconnected -> Connected should be allowed")
	}
	if r2.Status() != StatusConnected {
		t.Errorf("Status() = %v, want Connected", r2.Status())
	}
	// Original value unchanged
	if r.Status() != StatusDisconnected {
		t.Errorf("original Status() = %v, want Disconnected", r.Status())
	}

	if _, ok := r.TransitionTo(StatusReady); ok {
		t.Error("Disconnected -> Ready should be rejected")
	}
}

func TestRepository_TransitionClearsError(t *testing.T) {
	r := NewRepository(mustRemote(t, "acme/widgets"))
	r, _ = r.TransitionTo(StatusConnected)
	r = r.WithError("provider unreachable")

	if r.Status() != StatusError {
		t.Fatalf("Status() = %v, want Error", r.Status())
	}
	if r.LastError() != "provider unreachable" {
		t.Errorf("LastError() = %q", r.LastError())
	}

	r2, ok := r.TransitionTo(StatusAnalyzing)
	if !ok {
		t.Fatal("Error -> Analyzing should be allowed")
	}
	if r2.LastError() != "" {
		t.Errorf("LastError() should be cleared on leaving Error, got %q", r2.LastError())
	}
}

func TestRepository_WithErrorFromAnyState(t *testing.T) {
	r := NewRepository(mustRemote(t, "acme/widgets"))

	r2 := r.WithError("boom")
	if r2.Status() != StatusError {
		t.Errorf("Status() = %v, want Error", r2.Status())
	}
	if r2.LastError() != "boom" {
		t.Errorf("LastError() = %q, want %q", r2.LastError(), "boom")
	}
}

func TestRepository_WithProviderMetadata(t *testing.T) {
	r := NewRepository(mustRemote(t, "acme/widgets"))

	head := NewCommit("abc1234567", "initial", NewAuthor("Alice", "a@example.com"), time.Now())
	branches := []Branch{
		NewBranch("main", true, head),
		NewBranch("develop", false, Commit{}),
	}
	r = r.WithProviderMetadata("widget factory", "Go", "main", branches)

	if r.Description() != "widget factory" {
		t.Errorf("Description() = %q", r.Description())
	}
	if r.Language() != "Go" {
		t.Errorf("Language() = %q", r.Language())
	}
	if r.DefaultBranch() != "main" {
		t.Errorf("DefaultBranch() = %q", r.DefaultBranch())
	}
	if len(r.Branches()) != 2 {
		t.Fatalf("Branches() length = %d, want 2", len(r.Branches()))
	}
	if !r.Branches()[0].IsDefault() {
		t.Error("first branch should be default")
	}

	// Returned slice is a copy
	got := r.Branches()
	got[0] = NewBranch("mutated", false, Commit{})
	if r.Branches()[0].Name() != "main" {
		t.Error("Branches() should return a copy")
	}
}

func TestRepository_WithIndexedCommit(t *testing.T) {
	r := NewRepository(mustRemote(t, "acme/widgets"))
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	r = r.WithIndexedCommit("deadbeef", at)

	if r.LastIndexedCommit() != "deadbeef" {
		t.Errorf("LastIndexedCommit() = %q", r.LastIndexedCommit())
	}
	if !r.IndexedAt().Equal(at) {
		t.Errorf("IndexedAt() = %v, want %v", r.IndexedAt(), at)
	}
	if !r.HasBeenIndexed() {
		t.Error("HasBeenIndexed() should be true after an index run")
	}
}

func TestReconstructRepository(t *testing.T) {
	id := uuid.New()
	remote := mustRemote(t, "https://github.com/acme/widgets")
	now := time.Now().UTC()
	stats := NewStatistics(10, 42, 2048, map[string]int64{"Go": 2048})

	r := ReconstructRepository(
		id, remote,
		"desc", "Go", "main",
		[]Branch{NewBranch("main", true, Commit{})},
		StatusReady,
		"",
		stats,
		"deadbeef",
		now, now, now,
	)

	if r.ID() != id {
		t.Errorf("ID() = %v, want %v", r.ID(), id)
	}
	if r.Status() != StatusReady {
		t.Errorf("Status() = %v, want Ready", r.Status())
	}
	if r.Statistics().DocumentCount() != 42 {
		t.Errorf("DocumentCount() = %d, want 42", r.Statistics().DocumentCount())
	}
	if r.LastIndexedCommit() != "deadbeef" {
		t.Errorf("LastIndexedCommit() = %q", r.LastIndexedCommit())
	}
}

func TestStatistics_PrimaryLanguage(t *testing.T) {
	s := NewStatistics(3, 9, 300, map[string]int64{"Go": 200, "Python": 50, "Shell": 50})
	if s.PrimaryLanguage() != "Go" {
		t.Errorf("PrimaryLanguage() = %q, want Go", s.PrimaryLanguage())
	}

	empty := NewStatistics(0, 0, 0, nil)
	if empty.PrimaryLanguage() != "" {
		t.Errorf("PrimaryLanguage() = %q, want empty", empty.PrimaryLanguage())
	}
	if !empty.IsEmpty() {
		t.Error("IsEmpty() should be true for zero statistics")
	}
}

func TestStatistics_LanguagesCopy(t *testing.T) {
	s := NewStatistics(1, 1, 10, map[string]int64{"Go": 10})
	langs := s.Languages()
	langs["Go"] = 999

	if s.Languages()["Go"] != 10 {
		t.Error("Languages() should return a copy")
	}
}

func TestCommit_ShortSHA(t *testing.T) {
	tests := []struct {
		name string
		sha  string
		want string
	}{
		{"normal SHA", "abc1234567890", "abc1234"},
		{"exactly 7 chars", "abc1234", "abc1234"},
		{"shorter than 7", "abc", "abc"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCommit(tt.sha, "msg", NewAuthor("n", "e"), time.Now())
			if got := c.ShortSHA(); got != tt.want {
				t.Errorf("ShortSHA() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommit_Subject(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"single line", "fix bug", "fix bug"},
		{"multi-line", "fix bug\n\nDetailed description", "fix bug"},
		{"empty", "", ""},
		{"only newline", "\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCommit("abc1234", tt.message, NewAuthor("n", "e"), time.Now())
			if got := c.Subject(); got != tt.want {
				t.Errorf("Subject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthor_String(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"Alice", "alice@example.com", "Alice <alice@example.com>"},
		{"Bob", "", "Bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAuthor(tt.name, tt.email)
			if got := a.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthor_Equal(t *testing.T) {
	a1 := NewAuthor("Alice", "alice@example.com")
	a2 := NewAuthor("Alice", "alice@example.com")
	a3 := NewAuthor("Bob", "alice@example.com")

	if !a1.Equal(a2) {
		t.Error("identical authors should be equal")
	}
	if a1.Equal(a3) {
		t.Error("different names should not be equal")
	}
}
