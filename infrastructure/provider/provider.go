// Package provider implements AI service clients for text generation and
// embedding. Concrete providers (OpenAI-compatible APIs, Anthropic, local
// ONNX models) share the request/response types defined here; higher layers
// depend on the TextGenerator and Embedder interfaces only.
package provider

import (
	"context"
	"errors"
	"slices"
)

// ErrUnsupportedOperation indicates the provider does not support the
// requested capability.
var ErrUnsupportedOperation = errors.New("operation not supported by this provider")

// Message is a chat message.
type Message struct {
	role    string
	content string
}

// NewMessage creates a Message.
func NewMessage(role, content string) Message {
	return Message{role: role, content: content}
}

// SystemMessage creates a message with the system role.
func SystemMessage(content string) Message {
	return NewMessage("system", content)
}

// UserMessage creates a message with the user role.
func UserMessage(content string) Message {
	return NewMessage("user", content)
}

// AssistantMessage creates a message with the assistant role.
func AssistantMessage(content string) Message {
	return NewMessage("assistant", content)
}

// Role returns the message role.
func (m Message) Role() string { return m.role }

// Content returns the message text.
func (m Message) Content() string { return m.content }

// ChatCompletionRequest is a text generation request.
type ChatCompletionRequest struct {
	messages    []Message
	maxTokens   int
	temperature float64
}

// NewChatCompletionRequest creates a request. Zero maxTokens and
// temperature leave the provider defaults in place.
func NewChatCompletionRequest(messages []Message) ChatCompletionRequest {
	return ChatCompletionRequest{messages: slices.Clone(messages)}
}

// WithMaxTokens returns a copy of the request with a token limit.
func (r ChatCompletionRequest) WithMaxTokens(n int) ChatCompletionRequest {
	r.maxTokens = n
	return r
}

// WithTemperature returns a copy of the request with a sampling temperature.
func (r ChatCompletionRequest) WithTemperature(t float64) ChatCompletionRequest {
	r.temperature = t
	return r
}

// Messages returns a copy of the messages.
func (r ChatCompletionRequest) Messages() []Message { return slices.Clone(r.messages) }

// MaxTokens returns the token limit, zero when unset.
func (r ChatCompletionRequest) MaxTokens() int { return r.maxTokens }

// Temperature returns the sampling temperature, zero when unset.
func (r ChatCompletionRequest) Temperature() float64 { return r.temperature }

// ChatCompletionResponse is a text generation result.
type ChatCompletionResponse struct {
	content      string
	finishReason string
	usage        Usage
}

// NewChatCompletionResponse creates a response.
func NewChatCompletionResponse(content, finishReason string, usage Usage) ChatCompletionResponse {
	return ChatCompletionResponse{content: content, finishReason: finishReason, usage: usage}
}

// Content returns the generated text.
func (r ChatCompletionResponse) Content() string { return r.content }

// FinishReason returns why generation stopped.
func (r ChatCompletionResponse) FinishReason() string { return r.finishReason }

// Usage returns token accounting for the call.
func (r ChatCompletionResponse) Usage() Usage { return r.usage }

// Usage is token accounting reported by a provider.
type Usage struct {
	promptTokens     int
	completionTokens int
	totalTokens      int
}

// NewUsage creates a Usage.
func NewUsage(prompt, completion, total int) Usage {
	return Usage{promptTokens: prompt, completionTokens: completion, totalTokens: total}
}

// PromptTokens returns tokens consumed by the prompt.
func (u Usage) PromptTokens() int { return u.promptTokens }

// CompletionTokens returns tokens produced by the model.
func (u Usage) CompletionTokens() int { return u.completionTokens }

// TotalTokens returns the total token count.
func (u Usage) TotalTokens() int { return u.totalTokens }

// EmbeddingRequest is a batch embedding request.
type EmbeddingRequest struct {
	texts []string
}

// NewEmbeddingRequest creates a request for the given texts.
func NewEmbeddingRequest(texts []string) EmbeddingRequest {
	return EmbeddingRequest{texts: slices.Clone(texts)}
}

// Texts returns a copy of the texts to embed.
func (r EmbeddingRequest) Texts() []string { return slices.Clone(r.texts) }

// EmbeddingResponse is a batch embedding result. Vectors are positionally
// aligned with the request texts.
type EmbeddingResponse struct {
	embeddings [][]float64
	usage      Usage
}

// NewEmbeddingResponse creates a response.
func NewEmbeddingResponse(embeddings [][]float64, usage Usage) EmbeddingResponse {
	return EmbeddingResponse{embeddings: cloneVectors(embeddings), usage: usage}
}

// Embeddings returns a copy of the vectors.
func (r EmbeddingResponse) Embeddings() [][]float64 { return cloneVectors(r.embeddings) }

// Usage returns token accounting for the call.
func (r EmbeddingResponse) Usage() Usage { return r.usage }

func cloneVectors(vectors [][]float64) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		out[i] = slices.Clone(v)
	}
	return out
}

// TextGenerator produces chat completions.
type TextGenerator interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error)
}

// Embedder produces embedding vectors for batches of text.
type Embedder interface {
	Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error)
}

// Provider reports capabilities and owns resource cleanup. A provider
// implements one or both of TextGenerator and Embedder.
type Provider interface {
	SupportsTextGeneration() bool
	SupportsEmbedding() bool
	Close() error
}

// FullProvider supports both text generation and embedding.
type FullProvider interface {
	Provider
	TextGenerator
	Embedder
}

// TextOnlyProvider supports text generation only.
type TextOnlyProvider interface {
	Provider
	TextGenerator
}

// EmbeddingOnlyProvider supports embedding only.
type EmbeddingOnlyProvider interface {
	Provider
	Embedder
}

// ProviderError carries the operation and HTTP status of a failed call.
type ProviderError struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewProviderError creates a ProviderError. statusCode is zero when the
// failure happened before an HTTP response.
func NewProviderError(operation string, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		cause:      cause,
	}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.cause }

// Operation returns the failed operation name.
func (e *ProviderError) Operation() string { return e.operation }

// StatusCode returns the HTTP status code, zero when unknown.
func (e *ProviderError) StatusCode() int { return e.statusCode }

// Message returns the provider's error message.
func (e *ProviderError) Message() string { return e.message }

// IsRateLimited reports whether the provider rejected the call with 429.
func (e *ProviderError) IsRateLimited() bool { return e.statusCode == 429 }
