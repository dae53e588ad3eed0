// Package llm defines the port to a language model provider.
package llm

import "slices"

// IntentType classifies what a query is asking for.
type IntentType string

// IntentType values produced by classifiers. Providers may return other
// values; consumers treat unknown types as IntentGeneral.
const (
	IntentCodeSearch   IntentType = "code_search"
	IntentExplanation  IntentType = "explanation"
	IntentArchitecture IntentType = "architecture"
	IntentDebugging    IntentType = "debugging"
	IntentGeneral      IntentType = "general"
)

// Intent is the classification of a user query.
type Intent struct {
	intentType IntentType
	domain     string
	entities   []string
	confidence float64
	parameters map[string]string
}

// NewIntent creates an Intent. Confidence is clamped to [0, 1].
func NewIntent(intentType IntentType, domain string, entities []string, confidence float64, parameters map[string]string) Intent {
	return Intent{
		intentType: intentType,
		domain:     domain,
		entities:   slices.Clone(entities),
		confidence: clampUnit(confidence),
		parameters: copyParameters(parameters),
	}
}

// Type returns the classified intent type.
func (i Intent) Type() IntentType { return i.intentType }

// Domain returns the business domain the query touches, if detected.
func (i Intent) Domain() string { return i.domain }

// Entities returns a copy of the named entities found in the query.
func (i Intent) Entities() []string { return slices.Clone(i.entities) }

// Confidence returns the classification confidence in [0, 1].
func (i Intent) Confidence() float64 { return i.confidence }

// Parameters returns a copy of classifier-specific parameters.
func (i Intent) Parameters() map[string]string { return copyParameters(i.parameters) }

// IsEmpty returns true if no type was classified.
func (i Intent) IsEmpty() bool { return i.intentType == "" }

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func copyParameters(parameters map[string]string) map[string]string {
	if parameters == nil {
		return nil
	}
	result := make(map[string]string, len(parameters))
	for k, v := range parameters {
		result[k] = v
	}
	return result
}
