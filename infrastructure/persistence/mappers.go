package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/archielabs/archie/domain/conversation"
	"github.com/archielabs/archie/domain/document"
	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/domain/repository"
	"github.com/archielabs/archie/domain/task"
	"github.com/google/uuid"
)

// parseUUID parses a stored id, returning uuid.Nil for anything malformed.
// Ids are written by the mappers themselves, so a parse failure means the
// row was tampered with rather than a condition worth propagating.
func parseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func uuidsToStrings(ids []uuid.UUID) StringSlice {
	if len(ids) == 0 {
		return nil
	}
	out := make(StringSlice, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func uuidsFromStrings(values StringSlice) []uuid.UUID {
	if len(values) == 0 {
		return nil
	}
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		if id := parseUUID(v); id != uuid.Nil {
			out = append(out, id)
		}
	}
	return out
}

// branchDoc is the JSON shape of one branch inside repositories.branches.
type branchDoc struct {
	Name          string    `json:"name"`
	IsDefault     bool      `json:"is_default"`
	CommitSHA     string    `json:"commit_sha"`
	CommitMessage string    `json:"commit_message"`
	AuthorName    string    `json:"author_name"`
	AuthorEmail   string    `json:"author_email"`
	CommittedAt   time.Time `json:"committed_at"`
}

func branchesToJSON(branches []repository.Branch) json.RawMessage {
	if len(branches) == 0 {
		return nil
	}
	docs := make([]branchDoc, len(branches))
	for i, b := range branches {
		c := b.LastCommit()
		docs[i] = branchDoc{
			Name:          b.Name(),
			IsDefault:     b.IsDefault(),
			CommitSHA:     c.SHA(),
			CommitMessage: c.Message(),
			AuthorName:    c.Author().Name(),
			AuthorEmail:   c.Author().Email(),
			CommittedAt:   c.Timestamp(),
		}
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return nil
	}
	return data
}

func branchesFromJSON(data json.RawMessage) []repository.Branch {
	if len(data) == 0 {
		return nil
	}
	var docs []branchDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil
	}
	branches := make([]repository.Branch, len(docs))
	for i, d := range docs {
		commit := repository.NewCommit(d.CommitSHA, d.CommitMessage, repository.NewAuthor(d.AuthorName, d.AuthorEmail), d.CommittedAt)
		branches[i] = repository.NewBranch(d.Name, d.IsDefault, commit)
	}
	return branches
}

func languagesToJSON(languages map[string]int64) json.RawMessage {
	if len(languages) == 0 {
		return nil
	}
	data, err := json.Marshal(languages)
	if err != nil {
		return nil
	}
	return data
}

func languagesFromJSON(data json.RawMessage) map[string]int64 {
	if len(data) == 0 {
		return nil
	}
	var languages map[string]int64
	if err := json.Unmarshal(data, &languages); err != nil {
		return nil
	}
	return languages
}

// RepositoryMapper maps between domain Repository and persistence RepositoryModel.
type RepositoryMapper struct{}

// ToDomain converts a RepositoryModel to a domain Repository.
func (m RepositoryMapper) ToDomain(e RepositoryModel) repository.Repository {
	stats := repository.NewStatistics(e.FileCount, e.DocumentCount, e.TotalBytes, languagesFromJSON(e.Languages))

	var indexedAt time.Time
	if e.IndexedAt != nil {
		indexedAt = *e.IndexedAt
	}

	return repository.ReconstructRepository(
		parseUUID(e.ID),
		repository.ReconstructRemote(e.Host, e.Owner, e.Name),
		e.Description,
		e.Language,
		e.DefaultBranch,
		branchesFromJSON(e.Branches),
		repository.Status(e.Status),
		e.LastError,
		stats,
		e.LastIndexedCommit,
		indexedAt,
		e.CreatedAt,
		e.UpdatedAt,
	)
}

// ToModel converts a domain Repository to a RepositoryModel.
func (m RepositoryMapper) ToModel(r repository.Repository) RepositoryModel {
	var indexedAt *time.Time
	if !r.IndexedAt().IsZero() {
		t := r.IndexedAt()
		indexedAt = &t
	}

	stats := r.Statistics()
	return RepositoryModel{
		ID:                r.ID().String(),
		URL:               r.Remote().URL(),
		Host:              r.Remote().Host(),
		Owner:             r.Remote().Owner(),
		Name:              r.Remote().Name(),
		Description:       r.Description(),
		Language:          r.Language(),
		DefaultBranch:     r.DefaultBranch(),
		Branches:          branchesToJSON(r.Branches()),
		Status:            string(r.Status()),
		LastError:         r.LastError(),
		FileCount:         stats.FileCount(),
		DocumentCount:     stats.DocumentCount(),
		TotalBytes:        stats.TotalBytes(),
		Languages:         languagesToJSON(stats.Languages()),
		LastIndexedCommit: r.LastIndexedCommit(),
		IndexedAt:         indexedAt,
		CreatedAt:         r.CreatedAt(),
		UpdatedAt:         r.UpdatedAt(),
	}
}

// DocumentMapper maps between domain Document and persistence DocumentModel.
type DocumentMapper struct{}

// ToDomain converts a DocumentModel to a domain Document.
func (m DocumentMapper) ToDomain(e DocumentModel) document.Document {
	return document.ReconstructDocument(
		parseUUID(e.ID),
		parseUUID(e.RepositoryID),
		e.Branch,
		e.Path,
		e.ChunkIndex,
		e.Language,
		e.Content,
		e.TokenCount,
		e.StartLine,
		e.EndLine,
		e.BlobSHA,
		e.HasVector,
		e.UpdatedAt,
	)
}

// ToModel converts a domain Document to a DocumentModel.
func (m DocumentMapper) ToModel(d document.Document) DocumentModel {
	return DocumentModel{
		ID:           d.ID().String(),
		RepositoryID: d.RepositoryID().String(),
		Branch:       d.Branch(),
		Path:         d.Path(),
		ChunkIndex:   d.ChunkIndex(),
		Language:     d.Language(),
		Content:      d.Content(),
		TokenCount:   d.TokenCount(),
		StartLine:    d.StartLine(),
		EndLine:      d.EndLine(),
		BlobSHA:      d.BlobSHA(),
		HasVector:    d.HasVector(),
		UpdatedAt:    d.UpdatedAt(),
	}
}

// IndexStatusMapper maps between domain IndexStatus and persistence IndexStatusModel.
type IndexStatusMapper struct{}

// ToDomain converts an IndexStatusModel to a domain IndexStatus.
func (m IndexStatusMapper) ToDomain(e IndexStatusModel) document.IndexStatus {
	var startedAt, completedAt time.Time
	if e.StartedAt != nil {
		startedAt = *e.StartedAt
	}
	if e.CompletedAt != nil {
		completedAt = *e.CompletedAt
	}

	return document.ReconstructIndexStatus(
		parseUUID(e.RepositoryID),
		document.IndexState(e.State),
		e.DocumentsIndexed,
		e.TotalDocuments,
		e.ErrorMessage,
		startedAt,
		completedAt,
		e.UpdatedAt,
	)
}

// ToModel converts a domain IndexStatus to an IndexStatusModel.
func (m IndexStatusMapper) ToModel(s document.IndexStatus) IndexStatusModel {
	var startedAt, completedAt *time.Time
	if !s.StartedAt().IsZero() {
		t := s.StartedAt()
		startedAt = &t
	}
	if !s.CompletedAt().IsZero() {
		t := s.CompletedAt()
		completedAt = &t
	}

	return IndexStatusModel{
		RepositoryID:     s.RepositoryID().String(),
		State:            string(s.State()),
		DocumentsIndexed: s.DocumentsIndexed(),
		TotalDocuments:   s.TotalDocuments(),
		ErrorMessage:     s.ErrorMessage(),
		StartedAt:        startedAt,
		CompletedAt:      completedAt,
		UpdatedAt:        s.UpdatedAt(),
	}
}

// BuildMapper maps between domain Build and persistence BuildModel.
type BuildMapper struct{}

// ToDomain converts a BuildModel to a domain Build.
func (m BuildMapper) ToDomain(e BuildModel) graph.Build {
	return graph.ReconstructBuild(
		parseUUID(e.BuildID),
		parseUUID(e.RepositoryID),
		graph.AnalysisDepth(e.Depth),
		e.EntityCount,
		e.RelationshipCount,
		e.PatternCount,
		e.BuiltAt,
	)
}

// ToModel converts a domain Build to a BuildModel.
func (m BuildMapper) ToModel(b graph.Build) BuildModel {
	return BuildModel{
		BuildID:           b.BuildID().String(),
		RepositoryID:      b.RepositoryID().String(),
		Depth:             string(b.Depth()),
		EntityCount:       b.EntityCount(),
		RelationshipCount: b.RelationshipCount(),
		PatternCount:      b.PatternCount(),
		BuiltAt:           b.BuiltAt(),
	}
}

// EntityMapper maps between domain Entity and persistence EntityModel.
type EntityMapper struct{}

// ToDomain converts an EntityModel to a domain Entity.
func (m EntityMapper) ToDomain(e EntityModel) graph.Entity {
	return graph.ReconstructEntity(
		e.EntityID,
		parseUUID(e.RepositoryID),
		e.Name,
		e.QualifiedName,
		graph.EntityKind(e.Kind),
		e.Complexity,
		e.Language,
		e.Path,
		e.StartLine,
		e.EndLine,
		parseUUID(e.BuildID),
		e.CreatedAt,
	)
}

// ToModel converts a domain Entity to an EntityModel.
func (m EntityMapper) ToModel(e graph.Entity) EntityModel {
	return EntityModel{
		EntityID:      e.EntityID(),
		RepositoryID:  e.RepositoryID().String(),
		Name:          e.Name(),
		QualifiedName: e.QualifiedName(),
		Kind:          string(e.Kind()),
		Complexity:    e.Complexity(),
		Language:      e.Language(),
		Path:          e.Path(),
		StartLine:     e.StartLine(),
		EndLine:       e.EndLine(),
		BuildID:       e.BuildID().String(),
		CreatedAt:     e.CreatedAt(),
	}
}

// RelationshipMapper maps between domain Relationship and persistence RelationshipModel.
// RepositoryID is not part of the domain type; ReplaceBuild stamps it from
// the build before writing.
type RelationshipMapper struct{}

// ToDomain converts a RelationshipModel to a domain Relationship.
func (m RelationshipMapper) ToDomain(e RelationshipModel) graph.Relationship {
	return graph.ReconstructRelationship(
		e.ID,
		e.SourceID,
		e.TargetID,
		graph.RelationshipKind(e.Kind),
		e.Weight,
		e.Confidence,
		parseUUID(e.BuildID),
		e.CreatedAt,
	)
}

// ToModel converts a domain Relationship to a RelationshipModel.
func (m RelationshipMapper) ToModel(r graph.Relationship) RelationshipModel {
	return RelationshipModel{
		ID:         r.ID(),
		SourceID:   r.SourceID(),
		TargetID:   r.TargetID(),
		Kind:       string(r.Kind()),
		Weight:     r.Weight(),
		Confidence: r.Confidence(),
		BuildID:    r.BuildID().String(),
		CreatedAt:  r.CreatedAt(),
	}
}

// PatternMapper maps between domain Pattern and persistence PatternModel.
type PatternMapper struct{}

// ToDomain converts a PatternModel to a domain Pattern.
func (m PatternMapper) ToDomain(e PatternModel) graph.Pattern {
	return graph.ReconstructPattern(
		parseUUID(e.ID),
		parseUUID(e.RepositoryID),
		e.Name,
		graph.PatternCategory(e.Category),
		e.Participants,
		e.Confidence,
		graph.Severity(e.Severity),
		e.Description,
		e.Remediation,
		e.HasViolations,
		parseUUID(e.BuildID),
		e.DetectedAt,
	)
}

// ToModel converts a domain Pattern to a PatternModel.
func (m PatternMapper) ToModel(p graph.Pattern) PatternModel {
	return PatternModel{
		ID:            p.ID().String(),
		RepositoryID:  p.RepositoryID().String(),
		Name:          p.Name(),
		Category:      string(p.Category()),
		Participants:  p.Participants(),
		Confidence:    p.Confidence(),
		Severity:      string(p.Severity()),
		Description:   p.Description(),
		Remediation:   p.Remediation(),
		HasViolations: p.HasViolations(),
		BuildID:       p.BuildID().String(),
		DetectedAt:    p.DetectedAt(),
	}
}

// ConversationMapper maps between domain Conversation and persistence ConversationModel.
type ConversationMapper struct{}

// ToDomain converts a ConversationModel to a domain Conversation.
func (m ConversationMapper) ToDomain(e ConversationModel) conversation.Conversation {
	cctx := conversation.ReconstructContext(
		uuidsFromStrings(e.RepositoryIDs),
		e.RepositoryNames,
		e.Domain,
		e.TechnicalTags,
		e.Preferences,
	)

	return conversation.ReconstructConversation(
		parseUUID(e.ID),
		e.UserID,
		e.Title,
		conversation.Status(e.Status),
		cctx,
		e.MessageCount,
		e.LastActivityAt,
		e.CreatedAt,
		e.Metadata,
	)
}

// ToModel converts a domain Conversation to a ConversationModel.
func (m ConversationMapper) ToModel(c conversation.Conversation) ConversationModel {
	cctx := c.Context()
	return ConversationModel{
		ID:              c.ID().String(),
		UserID:          c.UserID(),
		Title:           c.Title(),
		Status:          string(c.Status()),
		RepositoryIDs:   uuidsToStrings(cctx.RepositoryIDs()),
		RepositoryNames: cctx.RepositoryNames(),
		Domain:          cctx.Domain(),
		TechnicalTags:   cctx.TechnicalTags(),
		Preferences:     cctx.Preferences(),
		MessageCount:    c.MessageCount(),
		LastActivityAt:  c.LastActivityAt(),
		CreatedAt:       c.CreatedAt(),
		Metadata:        c.Metadata(),
	}
}

// attachmentDoc is the JSON shape of one attachment inside messages.attachments.
type attachmentDoc struct {
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Reference string `json:"reference"`
	Snippet   string `json:"snippet,omitempty"`
}

func attachmentsToJSON(attachments []conversation.Attachment) json.RawMessage {
	if len(attachments) == 0 {
		return nil
	}
	docs := make([]attachmentDoc, len(attachments))
	for i, a := range attachments {
		docs[i] = attachmentDoc{
			Kind:      a.Kind(),
			Title:     a.Title(),
			Reference: a.Reference(),
			Snippet:   a.Snippet(),
		}
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return nil
	}
	return data
}

func attachmentsFromJSON(data json.RawMessage) []conversation.Attachment {
	if len(data) == 0 {
		return nil
	}
	var docs []attachmentDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil
	}
	attachments := make([]conversation.Attachment, len(docs))
	for i, d := range docs {
		attachments[i] = conversation.NewAttachment(d.Kind, d.Title, d.Reference, d.Snippet)
	}
	return attachments
}

// MessageMapper maps between domain Message and persistence MessageModel.
type MessageMapper struct{}

// ToDomain converts a MessageModel to a domain Message.
func (m MessageMapper) ToDomain(e MessageModel) conversation.Message {
	metadata := conversation.NewMessageMetadata(
		e.WordCount,
		time.Duration(e.ResponseTimeMS)*time.Millisecond,
		e.Confidence,
		e.Intent,
		uuidsFromStrings(e.RetrievedDocumentIDs),
	)

	return conversation.ReconstructMessage(
		parseUUID(e.ID),
		parseUUID(e.ConversationID),
		e.Position,
		conversation.MessageType(e.Type),
		e.Content,
		attachmentsFromJSON(e.Attachments),
		parseUUID(e.ParentMessageID),
		e.Timestamp,
		metadata,
	)
}

// ToModel converts a domain Message to a MessageModel.
func (m MessageMapper) ToModel(msg conversation.Message) MessageModel {
	var parentID string
	if msg.ParentMessageID() != uuid.Nil {
		parentID = msg.ParentMessageID().String()
	}

	meta := msg.Metadata()
	return MessageModel{
		ID:                   msg.ID().String(),
		ConversationID:       msg.ConversationID().String(),
		Position:             msg.Position(),
		Type:                 string(msg.Type()),
		Content:              msg.Content(),
		Attachments:          attachmentsToJSON(msg.Attachments()),
		ParentMessageID:      parentID,
		Timestamp:            msg.Timestamp(),
		WordCount:            meta.WordCount(),
		ResponseTimeMS:       meta.ResponseTime().Milliseconds(),
		Confidence:           meta.Confidence(),
		Intent:               meta.Intent(),
		RetrievedDocumentIDs: uuidsToStrings(meta.RetrievedDocumentIDs()),
	}
}

// TaskMapper maps between domain Task and persistence TaskModel.
type TaskMapper struct{}

// ToDomain converts a TaskModel to a domain Task.
func (m TaskMapper) ToDomain(e TaskModel) (task.Task, error) {
	var payload map[string]any
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return task.Task{}, fmt.Errorf("unmarshal task payload: %w", err)
		}
	}
	if payload == nil {
		payload = make(map[string]any)
	}

	return task.NewTaskWithID(
		e.ID,
		e.DedupKey,
		task.Operation(e.Operation),
		e.Priority,
		payload,
		e.CreatedAt,
		e.UpdatedAt,
	), nil
}

// ToModel converts a domain Task to a TaskModel.
func (m TaskMapper) ToModel(t task.Task) (TaskModel, error) {
	payloadJSON, err := t.PayloadJSON()
	if err != nil {
		return TaskModel{}, fmt.Errorf("marshal task payload: %w", err)
	}

	return TaskModel{
		ID:        t.ID(),
		DedupKey:  t.DedupKey(),
		Operation: string(t.Operation()),
		Payload:   payloadJSON,
		Priority:  t.Priority(),
		CreatedAt: t.CreatedAt(),
		UpdatedAt: t.UpdatedAt(),
	}, nil
}

// TaskStatusMapper maps between domain Status and persistence TaskStatusModel.
type TaskStatusMapper struct{}

// ToDomain converts a TaskStatusModel to a domain Status.
// Parent links are reconstructed separately by LoadWithHierarchy.
func (m TaskStatusMapper) ToDomain(e TaskStatusModel) task.Status {
	var trackableID string
	var trackableType task.TrackableType

	if e.TrackableID != nil {
		trackableID = *e.TrackableID
	}
	if e.TrackableType != nil {
		trackableType = task.TrackableType(*e.TrackableType)
	}

	return task.NewStatusFull(
		e.ID,
		task.ReportingState(e.State),
		task.Operation(e.Operation),
		e.Message,
		e.CreatedAt,
		e.UpdatedAt,
		e.Total,
		e.Current,
		e.Error,
		nil,
		trackableID,
		trackableType,
	)
}

// ToModel converts a domain Status to a TaskStatusModel.
func (m TaskStatusMapper) ToModel(s task.Status) TaskStatusModel {
	model := TaskStatusModel{
		ID:        s.ID(),
		CreatedAt: s.CreatedAt(),
		UpdatedAt: s.UpdatedAt(),
		Operation: string(s.Operation()),
		Message:   s.Message(),
		State:     string(s.State()),
		Error:     s.Error(),
		Total:     s.Total(),
		Current:   s.Current(),
	}

	if s.TrackableID() != "" {
		id := s.TrackableID()
		model.TrackableID = &id
	}

	if s.TrackableType() != "" {
		t := string(s.TrackableType())
		model.TrackableType = &t
	}

	if s.Parent() != nil {
		parentID := s.Parent().ID()
		model.ParentID = &parentID
	}

	return model
}
