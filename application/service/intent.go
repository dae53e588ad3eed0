package service

import (
	"regexp"
	"strings"

	"github.com/archielabs/archie/domain/llm"
)

// Keyword tables for the rule-based intent classifier. Matching is
// case-insensitive on whole words or phrases.
var intentKeywords = map[llm.IntentType][]string{
	llm.IntentDebugging: {
		"error", "bug", "fail", "fails", "failing", "crash", "panic",
		"broken", "exception", "not working", "why does", "stack trace",
		"fix",
	},
	llm.IntentCodeSearch: {
		"where", "find", "locate", "which file", "show me", "defined",
		"declared", "implemented", "lives", "search",
	},
	llm.IntentArchitecture: {
		"architecture", "structure", "design", "depend", "depends",
		"dependency", "dependencies", "layer", "component", "module",
		"organized", "organised", "pattern", "relationship", "coupled",
		"coupling",
	},
	llm.IntentExplanation: {
		"explain", "how does", "what does", "what is", "understand",
		"mean", "means", "purpose", "why is", "walk me through",
	},
}

// classificationOrder breaks score ties deterministically; more specific
// intents win over broader ones.
var classificationOrder = []llm.IntentType{
	llm.IntentDebugging,
	llm.IntentArchitecture,
	llm.IntentCodeSearch,
	llm.IntentExplanation,
}

const maxNamedEntities = 8

// entityPattern matches identifier-shaped tokens: dotted paths,
// camelCase and snake_case names.
var entityPattern = regexp.MustCompile(
	`[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)+` +
		`|\b[a-z]+[A-Z][A-Za-z0-9]*\b` +
		`|\b[A-Za-z][A-Za-z0-9]*_[A-Za-z0-9_]+\b`,
)

// backtickPattern matches inline code spans, the strongest entity signal.
var backtickPattern = regexp.MustCompile("`([^`]+)`")

// classifyByRules classifies a query without a model. It scores keyword
// hits per intent type and reports a confidence that grows with the hit
// count, staying below what a model-backed classification would claim.
func classifyByRules(query string) llm.Intent {
	lowered := strings.ToLower(query)

	scores := make(map[llm.IntentType]int, len(intentKeywords))
	for intentType, keywords := range intentKeywords {
		for _, keyword := range keywords {
			if containsToken(lowered, keyword) {
				scores[intentType]++
			}
		}
	}

	best := llm.IntentGeneral
	bestScore := 0
	for _, intentType := range classificationOrder {
		if scores[intentType] > bestScore {
			best = intentType
			bestScore = scores[intentType]
		}
	}

	confidence := 0.3
	if bestScore > 0 {
		confidence = 0.5 + 0.1*float64(min(bestScore, 3))
	}

	return llm.NewIntent(best, "", extractEntities(query), confidence, nil)
}

// containsToken reports whether text contains the keyword on word
// boundaries. Multi-word keywords match as substrings.
func containsToken(text, keyword string) bool {
	if strings.ContainsRune(keyword, ' ') {
		return strings.Contains(text, keyword)
	}
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if field == keyword {
			return true
		}
	}
	return false
}

// extractEntities pulls identifier-shaped names from a query. Code spans
// in backticks come first, then bare identifiers, deduplicated in order.
func extractEntities(query string) []string {
	var entities []string
	seen := make(map[string]struct{})

	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || len(entities) >= maxNamedEntities {
			return
		}
		if _, ok := seen[candidate]; ok {
			return
		}
		seen[candidate] = struct{}{}
		entities = append(entities, candidate)
	}

	for _, span := range backtickPattern.FindAllStringSubmatch(query, -1) {
		add(span[1])
	}
	stripped := backtickPattern.ReplaceAllString(query, " ")
	for _, ident := range entityPattern.FindAllString(stripped, -1) {
		add(ident)
	}
	return entities
}

// fallbackFollowUps returns canned follow-up questions keyed on intent,
// used when the model suggests nothing.
func fallbackFollowUps(intent llm.Intent) []string {
	entities := intent.Entities()

	switch intent.Type() {
	case llm.IntentCodeSearch:
		if len(entities) > 0 {
			return []string{
				"What does " + entities[0] + " do?",
				"Which components depend on " + entities[0] + "?",
			}
		}
		return []string{"How is this code used across the codebase?"}
	case llm.IntentExplanation:
		return []string{
			"Where is this defined?",
			"Are there tests covering this behavior?",
		}
	case llm.IntentArchitecture:
		return []string{
			"Which components depend on this?",
			"Are there anti-patterns in this area?",
		}
	case llm.IntentDebugging:
		return []string{
			"Where is this error handled?",
			"Which code paths lead to this failure?",
		}
	default:
		return []string{"Which files are most relevant to this topic?"}
	}
}
