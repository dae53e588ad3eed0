package dto

// ConversationStartRequest is the body for POST /conversations.
type ConversationStartRequest struct {
	RepositoryIDs []string `json:"repository_ids"`
	Title         string   `json:"title,omitempty"`
}

// AskRequest is the body for POST /conversations/{id}/messages.
type AskRequest struct {
	Query           string `json:"query"`
	IncludeContext  *bool  `json:"include_context,omitempty"`
	MaxContextItems int    `json:"max_context_items,omitempty"`
	ParentMessageID string `json:"parent_message_id,omitempty"`
}

// AttachmentResponse is a context attachment on an answer.
type AttachmentResponse struct {
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Reference string `json:"reference"`
	Snippet   string `json:"snippet,omitempty"`
}

// AskResponse is the answer to a processed query.
type AskResponse struct {
	MessageID      string               `json:"message_id"`
	Answer         string               `json:"answer"`
	Confidence     float64              `json:"confidence"`
	Intent         string               `json:"intent"`
	Attachments    []AttachmentResponse `json:"attachments,omitempty"`
	FollowUps      []string             `json:"follow_ups,omitempty"`
	ResponseTimeMs int64                `json:"response_time_ms"`
}
