package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/archielabs/archie/domain/llm"
	"github.com/archielabs/archie/internal/errs"
)

// Generation limits per operation. Classification and follow-up calls are
// short structured outputs; completions carry full answers.
const (
	classifyMaxTokens   = 512
	followUpMaxTokens   = 256
	completionMaxTokens = 2048

	classifyTemperature   = 0.1
	completionTemperature = 0.7
)

const classifyIntentPrompt = `You classify questions about source code repositories.

Given a question and a description of the repositories it concerns, respond
with a single JSON object and nothing else:

{"intent_type": "<one of: code_search, explanation, architecture, debugging, general>",
 "domain": "<business or technical domain the question touches, or empty>",
 "entities": ["<named code entities mentioned in the question>"],
 "confidence": <number between 0 and 1>,
 "parameters": {"<optional string key>": "<string value>"}}

Pick code_search when the user wants to locate code, explanation when they
want code explained, architecture for structure and design questions,
debugging for error and failure questions, and general otherwise.`

const completePrompt = `You are a code assistant answering questions about specific source
repositories. Ground every statement in the numbered context documents
provided with the question; if the context does not contain the answer, say
so rather than guessing.

Respond with a single JSON object and nothing else:

{"answer": "<the answer, markdown allowed>",
 "confidence": <number between 0 and 1>,
 "references": [{"title": "<short label>", "reference": "<file path from the context>", "snippet": "<optional short excerpt>"}],
 "related_queries": ["<optional follow-on question>"]}

Cite only documents that actually support the answer.`

const followUpPrompt = `You suggest short follow-up questions a developer might ask next about a
codebase, given their question and the answer they received.

Respond with a JSON array of at most %d strings and nothing else. Each
question must be answerable from the same repositories and must not repeat
the original question.`

// LLM implements the language model port on top of any TextGenerator.
// Provider failures are classified into errs kinds so callers can
// distinguish rate limits, auth errors and outages.
type LLM struct {
	generator TextGenerator
	log       *slog.Logger
}

// NewLLM creates an LLM backed by the given generator.
func NewLLM(generator TextGenerator, log *slog.Logger) *LLM {
	if log == nil {
		log = slog.Default()
	}
	return &LLM{generator: generator, log: log}
}

// intentPayload mirrors the JSON shape requested by classifyIntentPrompt.
type intentPayload struct {
	IntentType string            `json:"intent_type"`
	Domain     string            `json:"domain"`
	Entities   []string          `json:"entities"`
	Confidence float64           `json:"confidence"`
	Parameters map[string]string `json:"parameters"`
}

// ClassifyIntent classifies a user query.
func (l *LLM) ClassifyIntent(ctx context.Context, query, contextText string) (llm.Intent, error) {
	user := query
	if contextText != "" {
		user = "Repositories:\n" + contextText + "\n\nQuestion: " + query
	}

	req := NewChatCompletionRequest([]Message{
		SystemMessage(classifyIntentPrompt),
		UserMessage(user),
	}).WithMaxTokens(classifyMaxTokens).WithTemperature(classifyTemperature)

	resp, err := l.generator.ChatCompletion(ctx, req)
	if err != nil {
		return llm.Intent{}, classifyGeneratorError("classify intent", err)
	}

	content := sanitizeModelOutput(resp.Content())

	var payload intentPayload
	if err := json.Unmarshal([]byte(sliceJSON(content, '{', '}')), &payload); err != nil {
		return llm.Intent{}, errs.Wrap(errs.KindInternal, "parse intent response", err)
	}

	return llm.NewIntent(
		llm.IntentType(payload.IntentType),
		payload.Domain,
		payload.Entities,
		payload.Confidence,
		payload.Parameters,
	), nil
}

// completionPayload mirrors the JSON shape requested by completePrompt.
type completionPayload struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	References []struct {
		Title     string `json:"title"`
		Reference string `json:"reference"`
		Snippet   string `json:"snippet"`
	} `json:"references"`
	RelatedQueries []string `json:"related_queries"`
}

// Complete answers a query grounded on retrieved documents and history.
func (l *LLM) Complete(ctx context.Context, query string, documents []llm.ContextDocument, history []llm.Turn, preferences map[string]string) (llm.Completion, error) {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, SystemMessage(completePrompt+renderPreferences(preferences)))

	for _, turn := range history {
		switch turn.Role() {
		case llm.RoleAssistant:
			messages = append(messages, AssistantMessage(turn.Content()))
		default:
			messages = append(messages, UserMessage(turn.Content()))
		}
	}

	messages = append(messages, UserMessage(renderDocuments(documents)+"Question: "+query))

	req := NewChatCompletionRequest(messages).
		WithMaxTokens(completionMaxTokens).
		WithTemperature(completionTemperature)

	resp, err := l.generator.ChatCompletion(ctx, req)
	if err != nil {
		return llm.Completion{}, classifyGeneratorError("complete", err)
	}

	content := sanitizeModelOutput(resp.Content())
	if content == "" {
		return llm.Completion{}, errs.New(errs.KindInternal, "model returned empty completion")
	}

	var payload completionPayload
	if err := json.Unmarshal([]byte(sliceJSON(content, '{', '}')), &payload); err != nil || payload.Answer == "" {
		// Models occasionally answer in prose despite the JSON instruction.
		// The text is still a usable answer, just without citations.
		l.log.Warn("completion response was not valid JSON, using raw text",
			slog.Int("length", len(content)),
		)
		return llm.NewCompletion(content, 0.5, nil, nil), nil
	}

	references := make([]llm.Reference, 0, len(payload.References))
	for _, r := range payload.References {
		if r.Reference == "" && r.Title == "" {
			continue
		}
		references = append(references, llm.NewReference(r.Title, r.Reference, r.Snippet))
	}

	return llm.NewCompletion(payload.Answer, payload.Confidence, references, payload.RelatedQueries), nil
}

// SuggestFollowUps proposes up to n follow-up questions.
func (l *LLM) SuggestFollowUps(ctx context.Context, query, answer, contextText string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	var sb strings.Builder
	if contextText != "" {
		sb.WriteString("Repositories:\n")
		sb.WriteString(contextText)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\nAnswer: ")
	sb.WriteString(answer)

	req := NewChatCompletionRequest([]Message{
		SystemMessage(fmt.Sprintf(followUpPrompt, n)),
		UserMessage(sb.String()),
	}).WithMaxTokens(followUpMaxTokens).WithTemperature(completionTemperature)

	resp, err := l.generator.ChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyGeneratorError("suggest follow-ups", err)
	}

	questions := parseStringList(sanitizeModelOutput(resp.Content()))
	if len(questions) > n {
		questions = questions[:n]
	}
	return questions, nil
}

// renderDocuments formats context documents as numbered sections.
func renderDocuments(documents []llm.ContextDocument) string {
	if len(documents) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Context documents:\n\n")
	for i, doc := range documents {
		fmt.Fprintf(&sb, "[%d] %s\n%s\n\n", i+1, doc.Path(), doc.Content())
	}
	return sb.String()
}

// renderPreferences appends user preferences to the system prompt in a
// stable order.
func renderPreferences(preferences map[string]string) string {
	if len(preferences) == 0 {
		return ""
	}

	keys := make([]string, 0, len(preferences))
	for k := range preferences {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("\n\nUser preferences:\n")
	for _, k := range keys {
		fmt.Fprintf(&sb, "- %s: %s\n", k, preferences[k])
	}
	return sb.String()
}

// parseStringList reads a JSON array of strings, falling back to one
// question per line for models that ignore the format instruction.
func parseStringList(content string) []string {
	var questions []string
	if err := json.Unmarshal([]byte(sliceJSON(content, '[', ']')), &questions); err == nil {
		return compactStrings(questions)
	}

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func compactStrings(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// sanitizeModelOutput strips reasoning tags and markdown code fences so the
// remainder can be parsed as JSON or used as plain text.
func sanitizeModelOutput(text string) string {
	return strings.TrimSpace(stripCodeFences(cleanThinkingTags(text)))
}

// cleanThinkingTags removes <think>...</think> blocks that some models
// emit for chain-of-thought output.
func cleanThinkingTags(text string) string {
	for {
		start := strings.Index(text, "<think>")
		if start == -1 {
			return text
		}
		end := strings.Index(text, "</think>")
		if end == -1 {
			return text[:start] + text[start+len("<think>"):]
		}
		text = text[:start] + text[end+len("</think>"):]
	}
}

// stripCodeFences unwraps a response wrapped in a markdown code fence.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx != -1 {
		// Drop the language tag on the opening fence.
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// sliceJSON cuts the substring between the first open and last close
// delimiter, tolerating prose around a JSON payload.
func sliceJSON(text string, opening, closing byte) string {
	start := strings.IndexByte(text, opening)
	end := strings.LastIndexByte(text, closing)
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

// classifyGeneratorError maps a provider failure onto an errs kind.
func classifyGeneratorError(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.KindTimeout, op, err)
	case errors.Is(err, context.Canceled):
		return errs.Wrap(errs.KindCancelled, op, err)
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch {
		case provErr.IsRateLimited():
			return errs.Wrap(errs.KindUpstreamRateLimited, op, err)
		case provErr.StatusCode() == http.StatusUnauthorized,
			provErr.StatusCode() == http.StatusForbidden:
			return errs.Wrap(errs.KindUpstreamAuth, op, err)
		}
	}

	return errs.Wrap(errs.KindUpstreamUnavailable, op, err)
}

var _ llm.Provider = (*LLM)(nil)
