package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/archielabs/archie/domain/llm"
)

func TestClassifyByRules(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantType llm.IntentType
	}{
		{
			name:     "debugging by error vocabulary",
			query:    "Why does the worker panic when the queue is empty?",
			wantType: llm.IntentDebugging,
		},
		{
			name:     "code search by location vocabulary",
			query:    "Where is the retry policy defined?",
			wantType: llm.IntentCodeSearch,
		},
		{
			name:     "architecture by structure vocabulary",
			query:    "Which components depend on the storage layer?",
			wantType: llm.IntentArchitecture,
		},
		{
			name:     "explanation by how-does vocabulary",
			query:    "Explain how does the cache eviction work",
			wantType: llm.IntentExplanation,
		},
		{
			name:     "general when nothing matches",
			query:    "Summarize recent activity",
			wantType: llm.IntentGeneral,
		},
		{
			name:     "debugging outranks explanation on ties",
			query:    "Why does this fail and what does it mean?",
			wantType: llm.IntentDebugging,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := classifyByRules(tt.query)
			assert.Equal(t, tt.wantType, intent.Type())
		})
	}
}

func TestClassifyByRulesConfidence(t *testing.T) {
	matched := classifyByRules("Why does the scheduler crash with a stack trace?")
	assert.GreaterOrEqual(t, matched.Confidence(), 0.5)
	assert.LessOrEqual(t, matched.Confidence(), 0.8)

	unmatched := classifyByRules("Tell me about the weather")
	assert.InDelta(t, 0.3, unmatched.Confidence(), 0.001)
}

func TestExtractEntities(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "backtick spans first",
			query: "What does `Queue.Enqueue` call inside processTask?",
			want:  []string{"Queue.Enqueue", "processTask"},
		},
		{
			name:  "dotted and snake case identifiers",
			query: "Compare repository.Store with fake_store",
			want:  []string{"repository.Store", "fake_store"},
		},
		{
			name:  "plain prose yields nothing",
			query: "what is the overall design here",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractEntities(tt.query))
		})
	}
}

func TestFallbackFollowUps(t *testing.T) {
	searchIntent := llm.NewIntent(llm.IntentCodeSearch, "", []string{"Scheduler"}, 0.6, nil)
	followUps := fallbackFollowUps(searchIntent)
	assert.Equal(t, []string{
		"What does Scheduler do?",
		"Which components depend on Scheduler?",
	}, followUps)

	general := fallbackFollowUps(llm.NewIntent(llm.IntentGeneral, "", nil, 0.3, nil))
	assert.Len(t, general, 1)

	for _, intentType := range []llm.IntentType{
		llm.IntentExplanation, llm.IntentArchitecture, llm.IntentDebugging,
	} {
		followUps := fallbackFollowUps(llm.NewIntent(intentType, "", nil, 0.6, nil))
		assert.NotEmpty(t, followUps)
	}
}
