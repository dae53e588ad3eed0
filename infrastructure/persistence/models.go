package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringSlice is a custom type for JSON serialization of []string columns.
type StringSlice []string

// Scan implements sql.Scanner for reading JSON.
func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}

	return json.Unmarshal(data, s)
}

// Value implements driver.Valuer for writing JSON.
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// StringMap is a custom type for JSON serialization of map[string]string columns.
type StringMap map[string]string

// Scan implements sql.Scanner for reading JSON.
func (m *StringMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringMap", value)
	}

	return json.Unmarshal(data, m)
}

// Value implements driver.Valuer for writing JSON.
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// RepositoryModel represents a connected repository in the database.
type RepositoryModel struct {
	ID                string          `gorm:"column:id;primaryKey;size:36"`
	URL               string          `gorm:"column:url;uniqueIndex;size:1024"`
	Host              string          `gorm:"column:host;size:255"`
	Owner             string          `gorm:"column:owner;index;size:255"`
	Name              string          `gorm:"column:name;index;size:255"`
	Description       string          `gorm:"column:description;type:text"`
	Language          string          `gorm:"column:language;index;size:64"`
	DefaultBranch     string          `gorm:"column:default_branch;size:255"`
	Branches          json.RawMessage `gorm:"column:branches;type:json"`
	Status            string          `gorm:"column:status;index;size:32"`
	LastError         string          `gorm:"column:last_error;type:text"`
	FileCount         int             `gorm:"column:file_count;default:0"`
	DocumentCount     int             `gorm:"column:document_count;default:0"`
	TotalBytes        int64           `gorm:"column:total_bytes;default:0"`
	Languages         json.RawMessage `gorm:"column:languages;type:json"`
	LastIndexedCommit string          `gorm:"column:last_indexed_commit;size:64"`
	IndexedAt         *time.Time      `gorm:"column:indexed_at"`
	CreatedAt         time.Time       `gorm:"column:created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (RepositoryModel) TableName() string {
	return "repositories"
}

// DocumentModel represents one indexed chunk of a repository file.
type DocumentModel struct {
	ID           string    `gorm:"column:id;primaryKey;size:36"`
	RepositoryID string    `gorm:"column:repository_id;size:36;index;index:idx_documents_file,priority:1"`
	Branch       string    `gorm:"column:branch;size:255;index:idx_documents_file,priority:2"`
	Path         string    `gorm:"column:path;size:1024;index:idx_documents_file,priority:3"`
	ChunkIndex   int       `gorm:"column:chunk_index"`
	Language     string    `gorm:"column:language;index;size:64"`
	Content      string    `gorm:"column:content;type:text"`
	TokenCount   int       `gorm:"column:token_count;default:0"`
	StartLine    int       `gorm:"column:start_line;default:0"`
	EndLine      int       `gorm:"column:end_line;default:0"`
	BlobSHA      string    `gorm:"column:blob_sha;index;size:64"`
	HasVector    bool      `gorm:"column:has_vector;default:false"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (DocumentModel) TableName() string {
	return "documents"
}

// IndexStatusModel tracks indexing progress for one repository.
type IndexStatusModel struct {
	RepositoryID     string     `gorm:"column:repository_id;primaryKey;size:36"`
	State            string     `gorm:"column:state;index;size:32"`
	DocumentsIndexed int        `gorm:"column:documents_indexed;default:0"`
	TotalDocuments   int        `gorm:"column:total_documents;default:0"`
	ErrorMessage     string     `gorm:"column:error_message;type:text"`
	StartedAt        *time.Time `gorm:"column:started_at"`
	CompletedAt      *time.Time `gorm:"column:completed_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (IndexStatusModel) TableName() string {
	return "index_status"
}

// BuildModel represents a knowledge graph build. ReplaceBuild removes the
// prior build of a repository in the same transaction, so the table holds
// exactly one row per repository.
type BuildModel struct {
	BuildID           string    `gorm:"column:build_id;primaryKey;size:36"`
	RepositoryID      string    `gorm:"column:repository_id;uniqueIndex;size:36"`
	Depth             string    `gorm:"column:depth;size:16"`
	EntityCount       int       `gorm:"column:entity_count;default:0"`
	RelationshipCount int       `gorm:"column:relationship_count;default:0"`
	PatternCount      int       `gorm:"column:pattern_count;default:0"`
	BuiltAt           time.Time `gorm:"column:built_at"`
}

// TableName returns the table name.
func (BuildModel) TableName() string {
	return "graph_builds"
}

// EntityModel represents a code entity in the knowledge graph.
type EntityModel struct {
	EntityID      string    `gorm:"column:entity_id;primaryKey;size:36"`
	RepositoryID  string    `gorm:"column:repository_id;index;size:36"`
	Name          string    `gorm:"column:name;index;size:255"`
	QualifiedName string    `gorm:"column:qualified_name;index;size:1024"`
	Kind          string    `gorm:"column:kind;index;size:32"`
	Complexity    float64   `gorm:"column:complexity;default:0"`
	Language      string    `gorm:"column:language;size:64"`
	Path          string    `gorm:"column:path;size:1024"`
	StartLine     int       `gorm:"column:start_line;default:0"`
	EndLine       int       `gorm:"column:end_line;default:0"`
	BuildID       string    `gorm:"column:build_id;index;size:36"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

// TableName returns the table name.
func (EntityModel) TableName() string {
	return "graph_entities"
}

// RelationshipModel represents a typed edge between two graph entities.
// RepositoryID is denormalized from the build so repository-scoped queries
// and deletes work without joining through graph_builds.
type RelationshipModel struct {
	ID           string    `gorm:"column:id;primaryKey;size:36"`
	RepositoryID string    `gorm:"column:repository_id;index;size:36"`
	SourceID     string    `gorm:"column:source_id;index;size:36"`
	TargetID     string    `gorm:"column:target_id;index;size:36"`
	Kind         string    `gorm:"column:kind;index;size:32"`
	Weight       float64   `gorm:"column:weight;default:0"`
	Confidence   float64   `gorm:"column:confidence;default:0"`
	BuildID      string    `gorm:"column:build_id;index;size:36"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// TableName returns the table name.
func (RelationshipModel) TableName() string {
	return "graph_relationships"
}

// PatternModel represents a detected architectural pattern or anti-pattern.
type PatternModel struct {
	ID            string      `gorm:"column:id;primaryKey;size:36"`
	RepositoryID  string      `gorm:"column:repository_id;index;size:36"`
	Name          string      `gorm:"column:name;index;size:128"`
	Category      string      `gorm:"column:category;index;size:32"`
	Participants  StringSlice `gorm:"column:participants;type:json"`
	Confidence    float64     `gorm:"column:confidence;default:0"`
	Severity      string      `gorm:"column:severity;size:16"`
	Description   string      `gorm:"column:description;type:text"`
	Remediation   string      `gorm:"column:remediation;type:text"`
	HasViolations bool        `gorm:"column:has_violations;default:false"`
	BuildID       string      `gorm:"column:build_id;index;size:36"`
	DetectedAt    time.Time   `gorm:"column:detected_at"`
}

// TableName returns the table name.
func (PatternModel) TableName() string {
	return "graph_patterns"
}

// ConversationModel represents a conversation in the database.
type ConversationModel struct {
	ID              string      `gorm:"column:id;primaryKey;size:36"`
	UserID          string      `gorm:"column:user_id;index;size:255"`
	Title           string      `gorm:"column:title;size:512"`
	Status          string      `gorm:"column:status;index;size:32"`
	RepositoryIDs   StringSlice `gorm:"column:repository_ids;type:json"`
	RepositoryNames StringSlice `gorm:"column:repository_names;type:json"`
	Domain          string      `gorm:"column:domain;size:255"`
	TechnicalTags   StringSlice `gorm:"column:technical_tags;type:json"`
	Preferences     StringMap   `gorm:"column:preferences;type:json"`
	MessageCount    int         `gorm:"column:message_count;default:0"`
	LastActivityAt  time.Time   `gorm:"column:last_activity_at;index"`
	CreatedAt       time.Time   `gorm:"column:created_at"`
	Metadata        StringMap   `gorm:"column:metadata;type:json"`
}

// TableName returns the table name.
func (ConversationModel) TableName() string {
	return "conversations"
}

// MessageModel represents one turn of a conversation. The unique index on
// (conversation_id, position) enforces the dense append-only ordering.
type MessageModel struct {
	ID                   string          `gorm:"column:id;primaryKey;size:36"`
	ConversationID       string          `gorm:"column:conversation_id;size:36;index;uniqueIndex:idx_messages_position,priority:1"`
	Position             int             `gorm:"column:position;uniqueIndex:idx_messages_position,priority:2"`
	Type                 string          `gorm:"column:type;size:16"`
	Content              string          `gorm:"column:content;type:text"`
	Attachments          json.RawMessage `gorm:"column:attachments;type:json"`
	ParentMessageID      string          `gorm:"column:parent_message_id;size:36"`
	Timestamp            time.Time       `gorm:"column:timestamp"`
	WordCount            int             `gorm:"column:word_count;default:0"`
	ResponseTimeMS       int64           `gorm:"column:response_time_ms;default:0"`
	Confidence           float64         `gorm:"column:confidence;default:0"`
	Intent               string          `gorm:"column:intent;size:64"`
	RetrievedDocumentIDs StringSlice     `gorm:"column:retrieved_document_ids;type:json"`
}

// TableName returns the table name.
func (MessageModel) TableName() string {
	return "messages"
}

// TaskModel represents a task in the database.
type TaskModel struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	DedupKey  string          `gorm:"column:dedup_key;type:varchar(255);uniqueIndex;not null"`
	Operation string          `gorm:"column:operation;type:varchar(255);index;not null"`
	Payload   json.RawMessage `gorm:"column:payload;type:json"`
	Priority  int             `gorm:"column:priority;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name.
func (TaskModel) TableName() string {
	return "tasks"
}

// TaskStatusModel represents task status in the database.
type TaskStatusModel struct {
	ID            string    `gorm:"column:id;type:varchar(255);primaryKey;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
	Operation     string    `gorm:"column:operation;type:varchar(255);index;not null"`
	TrackableID   *string   `gorm:"column:trackable_id;type:varchar(255);index"`
	TrackableType *string   `gorm:"column:trackable_type;type:varchar(255);index"`
	ParentID      *string   `gorm:"column:parent;type:varchar(255);index"`
	Message       string    `gorm:"column:message;type:text"`
	State         string    `gorm:"column:state;type:varchar(255)"`
	Error         string    `gorm:"column:error;type:text"`
	Total         int       `gorm:"column:total;default:0"`
	Current       int       `gorm:"column:current;default:0"`
}

// TableName returns the table name.
func (TaskStatusModel) TableName() string {
	return "task_status"
}
