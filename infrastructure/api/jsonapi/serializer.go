package jsonapi

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/archielabs/archie/domain/conversation"
	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/task"
	"github.com/archielabs/archie/infrastructure/tracking"
)

// RepositoryAttributes represents repository attributes in JSON:API format.
type RepositoryAttributes struct {
	URL               string     `json:"url"`
	Owner             string     `json:"owner"`
	Name              string     `json:"name"`
	Description       string     `json:"description,omitempty"`
	Language          string     `json:"language,omitempty"`
	DefaultBranch     string     `json:"default_branch,omitempty"`
	Status            string     `json:"status"`
	LastError         string     `json:"last_error,omitempty"`
	FileCount         int        `json:"file_count"`
	DocumentCount     int        `json:"document_count"`
	TotalBytes        int64      `json:"total_bytes"`
	LastIndexedCommit string     `json:"last_indexed_commit,omitempty"`
	IndexedAt         *time.Time `json:"indexed_at,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// ConversationAttributes represents conversation attributes in JSON:API format.
type ConversationAttributes struct {
	UserID          string     `json:"user_id"`
	Title           string     `json:"title"`
	Status          string     `json:"status"`
	RepositoryIDs   []string   `json:"repository_ids"`
	RepositoryNames []string   `json:"repository_names,omitempty"`
	MessageCount    int        `json:"message_count"`
	LastActivityAt  *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}

// AttachmentSchema represents a message attachment.
type AttachmentSchema struct {
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Reference string `json:"reference"`
	Snippet   string `json:"snippet,omitempty"`
}

// MessageAttributes represents message attributes in JSON:API format.
type MessageAttributes struct {
	ConversationID  string             `json:"conversation_id"`
	Position        int                `json:"position"`
	Type            string             `json:"type"`
	Content         string             `json:"content"`
	Attachments     []AttachmentSchema `json:"attachments,omitempty"`
	ParentMessageID string             `json:"parent_message_id,omitempty"`
	Timestamp       *time.Time         `json:"timestamp,omitempty"`
}

// EntityAttributes represents graph entity attributes in JSON:API format.
type EntityAttributes struct {
	RepositoryID  string  `json:"repository_id"`
	Name          string  `json:"name"`
	QualifiedName string  `json:"qualified_name"`
	Kind          string  `json:"kind"`
	Language      string  `json:"language,omitempty"`
	Path          string  `json:"path,omitempty"`
	StartLine     int     `json:"start_line,omitempty"`
	EndLine       int     `json:"end_line,omitempty"`
	Complexity    float64 `json:"complexity,omitempty"`
}

// RelationshipAttributes represents graph relationship attributes.
type RelationshipAttributes struct {
	SourceID   string  `json:"source_id"`
	TargetID   string  `json:"target_id"`
	Kind       string  `json:"kind"`
	Weight     float64 `json:"weight"`
	Confidence float64 `json:"confidence"`
}

// PatternAttributes represents detected pattern attributes.
type PatternAttributes struct {
	RepositoryID  string   `json:"repository_id"`
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	Participants  []string `json:"participants,omitempty"`
	Confidence    float64  `json:"confidence"`
	Severity      string   `json:"severity,omitempty"`
	Description   string   `json:"description,omitempty"`
	Remediation   string   `json:"remediation,omitempty"`
	HasViolations bool     `json:"has_violations"`
}

// BuildAttributes represents graph build attributes.
type BuildAttributes struct {
	RepositoryID      string     `json:"repository_id"`
	Depth             string     `json:"depth"`
	EntityCount       int        `json:"entity_count"`
	RelationshipCount int        `json:"relationship_count"`
	PatternCount      int        `json:"pattern_count"`
	BuiltAt           *time.Time `json:"built_at,omitempty"`
}

// TaskAttributes represents queued task attributes in JSON:API format.
type TaskAttributes struct {
	Operation string     `json:"operation"`
	Priority  int        `json:"priority"`
	Payload   any        `json:"payload"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TaskStatusAttributes represents task status attributes in JSON:API format.
type TaskStatusAttributes struct {
	Operation string     `json:"operation"`
	State     string     `json:"state"`
	Progress  float64    `json:"progress"`
	Total     int        `json:"total"`
	Current   int        `json:"current"`
	Message   string     `json:"message"`
	Error     string     `json:"error,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// StatusSummaryAttributes represents a repository status summary.
type StatusSummaryAttributes struct {
	State     string    `json:"state"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Serializer converts domain objects to JSON:API resources.
type Serializer struct{}

// NewSerializer creates a new Serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// RepositoryResource converts a repository to a JSON:API resource.
func (s *Serializer) RepositoryResource(repo repository.Repository) *Resource {
	createdAt := repo.CreatedAt()
	updatedAt := repo.UpdatedAt()
	stats := repo.Statistics()

	attrs := &RepositoryAttributes{
		URL:               repo.URL(),
		Owner:             repo.Owner(),
		Name:              repo.Name(),
		Description:       repo.Description(),
		Language:          repo.Language(),
		DefaultBranch:     repo.DefaultBranch(),
		Status:            string(repo.Status()),
		LastError:         repo.LastError(),
		FileCount:         stats.FileCount(),
		DocumentCount:     stats.DocumentCount(),
		TotalBytes:        stats.TotalBytes(),
		LastIndexedCommit: repo.LastIndexedCommit(),
		CreatedAt:         &createdAt,
		UpdatedAt:         &updatedAt,
	}
	if indexedAt := repo.IndexedAt(); !indexedAt.IsZero() {
		attrs.IndexedAt = &indexedAt
	}

	return NewResource("repository", repo.ID().String(), attrs)
}

// RepositoryResources converts multiple repositories to JSON:API resources.
func (s *Serializer) RepositoryResources(repos []repository.Repository) []*Resource {
	resources := make([]*Resource, len(repos))
	for i, repo := range repos {
		resources[i] = s.RepositoryResource(repo)
	}
	return resources
}

// ConversationResource converts a conversation to a JSON:API resource.
func (s *Serializer) ConversationResource(conv conversation.Conversation) *Resource {
	createdAt := conv.CreatedAt()
	lastActivity := conv.LastActivityAt()
	convContext := conv.Context()

	ids := convContext.RepositoryIDs()
	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	attrs := &ConversationAttributes{
		UserID:          conv.UserID(),
		Title:           conv.Title(),
		Status:          string(conv.Status()),
		RepositoryIDs:   idStrings,
		RepositoryNames: convContext.RepositoryNames(),
		MessageCount:    conv.MessageCount(),
		LastActivityAt:  &lastActivity,
		CreatedAt:       &createdAt,
	}
	return NewResource("conversation", conv.ID().String(), attrs)
}

// ConversationResources converts multiple conversations to JSON:API resources.
func (s *Serializer) ConversationResources(convs []conversation.Conversation) []*Resource {
	resources := make([]*Resource, len(convs))
	for i, conv := range convs {
		resources[i] = s.ConversationResource(conv)
	}
	return resources
}

// MessageResource converts a message to a JSON:API resource.
func (s *Serializer) MessageResource(m conversation.Message) *Resource {
	timestamp := m.Timestamp()

	attachments := m.Attachments()
	schemas := make([]AttachmentSchema, len(attachments))
	for i, a := range attachments {
		schemas[i] = AttachmentSchema{
			Kind:      a.Kind(),
			Title:     a.Title(),
			Reference: a.Reference(),
			Snippet:   a.Snippet(),
		}
	}

	attrs := &MessageAttributes{
		ConversationID: m.ConversationID().String(),
		Position:       m.Position(),
		Type:           string(m.Type()),
		Content:        m.Content(),
		Attachments:    schemas,
		Timestamp:      &timestamp,
	}
	if m.HasParent() {
		attrs.ParentMessageID = m.ParentMessageID().String()
	}
	return NewResource("message", m.ID().String(), attrs)
}

// MessageResources converts multiple messages to JSON:API resources.
func (s *Serializer) MessageResources(messages []conversation.Message) []*Resource {
	resources := make([]*Resource, len(messages))
	for i, m := range messages {
		resources[i] = s.MessageResource(m)
	}
	return resources
}

// EntityResource converts a graph entity to a JSON:API resource.
func (s *Serializer) EntityResource(e graph.Entity) *Resource {
	attrs := &EntityAttributes{
		RepositoryID:  e.RepositoryID().String(),
		Name:          e.Name(),
		QualifiedName: e.QualifiedName(),
		Kind:          string(e.Kind()),
		Language:      e.Language(),
		Path:          e.Path(),
		StartLine:     e.StartLine(),
		EndLine:       e.EndLine(),
		Complexity:    e.Complexity(),
	}
	return NewResource("entity", e.EntityID(), attrs)
}

// EntityResources converts multiple entities to JSON:API resources.
func (s *Serializer) EntityResources(entities []graph.Entity) []*Resource {
	resources := make([]*Resource, len(entities))
	for i, e := range entities {
		resources[i] = s.EntityResource(e)
	}
	return resources
}

// RelationshipResource converts a graph relationship to a JSON:API resource.
func (s *Serializer) RelationshipResource(r graph.Relationship) *Resource {
	attrs := &RelationshipAttributes{
		SourceID:   r.SourceID(),
		TargetID:   r.TargetID(),
		Kind:       string(r.Kind()),
		Weight:     r.Weight(),
		Confidence: r.Confidence(),
	}
	return NewResource("relationship", r.ID(), attrs)
}

// RelationshipResources converts multiple relationships to JSON:API resources.
func (s *Serializer) RelationshipResources(rels []graph.Relationship) []*Resource {
	resources := make([]*Resource, len(rels))
	for i, r := range rels {
		resources[i] = s.RelationshipResource(r)
	}
	return resources
}

// PatternResource converts a detected pattern to a JSON:API resource.
func (s *Serializer) PatternResource(p graph.Pattern) *Resource {
	attrs := &PatternAttributes{
		RepositoryID:  p.RepositoryID().String(),
		Name:          p.Name(),
		Category:      string(p.Category()),
		Participants:  p.Participants(),
		Confidence:    p.Confidence(),
		Severity:      string(p.Severity()),
		Description:   p.Description(),
		Remediation:   p.Remediation(),
		HasViolations: p.HasViolations(),
	}
	return NewResource("pattern", p.ID().String(), attrs)
}

// PatternResources converts multiple patterns to JSON:API resources.
func (s *Serializer) PatternResources(patterns []graph.Pattern) []*Resource {
	resources := make([]*Resource, len(patterns))
	for i, p := range patterns {
		resources[i] = s.PatternResource(p)
	}
	return resources
}

// BuildResource converts a graph build to a JSON:API resource.
func (s *Serializer) BuildResource(b graph.Build) *Resource {
	builtAt := b.BuiltAt()
	attrs := &BuildAttributes{
		RepositoryID:      b.RepositoryID().String(),
		Depth:             string(b.Depth()),
		EntityCount:       b.EntityCount(),
		RelationshipCount: b.RelationshipCount(),
		PatternCount:      b.PatternCount(),
		BuiltAt:           &builtAt,
	}
	return NewResource("graph_build", b.BuildID().String(), attrs)
}

// TaskResource converts a queued task to a JSON:API resource.
func (s *Serializer) TaskResource(t task.Task) *Resource {
	createdAt := t.CreatedAt()
	updatedAt := t.UpdatedAt()

	attrs := &TaskAttributes{
		Operation: t.Operation().String(),
		Priority:  t.Priority(),
		Payload:   t.Payload(),
		CreatedAt: &createdAt,
		UpdatedAt: &updatedAt,
	}
	return NewResource("task", strconv.FormatInt(t.ID(), 10), attrs)
}

// TaskResources converts multiple tasks to JSON:API resources.
func (s *Serializer) TaskResources(tasks []task.Task) []*Resource {
	resources := make([]*Resource, len(tasks))
	for i, t := range tasks {
		resources[i] = s.TaskResource(t)
	}
	return resources
}

// TaskStatusResource converts a task status to a JSON:API resource.
func (s *Serializer) TaskStatusResource(status task.Status) *Resource {
	createdAt := status.CreatedAt()
	updatedAt := status.UpdatedAt()

	attrs := &TaskStatusAttributes{
		Operation: status.Operation().String(),
		State:     string(status.State()),
		Progress:  status.CompletionPercent(),
		Total:     status.Total(),
		Current:   status.Current(),
		Message:   status.Message(),
		Error:     status.Error(),
		CreatedAt: &createdAt,
		UpdatedAt: &updatedAt,
	}
	return NewResource("task_status", status.ID(), attrs)
}

// TaskStatusResources converts multiple statuses to JSON:API resources.
func (s *Serializer) TaskStatusResources(statuses []task.Status) []*Resource {
	resources := make([]*Resource, len(statuses))
	for i, status := range statuses {
		resources[i] = s.TaskStatusResource(status)
	}
	return resources
}

// StatusSummaryResource converts a status summary to a JSON:API resource.
func (s *Serializer) StatusSummaryResource(repositoryID uuid.UUID, summary tracking.StatusSummary) *Resource {
	attrs := &StatusSummaryAttributes{
		State:     string(summary.State()),
		Message:   summary.Message(),
		UpdatedAt: summary.UpdatedAt(),
	}
	return NewResource("repository_status_summary", repositoryID.String(), attrs)
}
