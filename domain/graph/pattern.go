package graph

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// PatternCategory distinguishes desirable architecture patterns from anti-patterns.
type PatternCategory string

// PatternCategory values.
const (
	PatternCategoryArchitectural PatternCategory = "architectural"
	PatternCategoryAntiPattern   PatternCategory = "anti_pattern"
)

// Severity grades how serious a detected anti-pattern is.
type Severity string

// Severity values.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Pattern represents a detected architectural pattern or anti-pattern.
type Pattern struct {
	id            uuid.UUID
	repositoryID  uuid.UUID
	name          string
	category      PatternCategory
	participants  []string
	confidence    float64
	severity      Severity
	description   string
	remediation   string
	hasViolations bool
	buildID       uuid.UUID
	detectedAt    time.Time
}

// NewArchitecturalPattern creates a detected architectural pattern.
// Confidence is clamped to [0, 1].
func NewArchitecturalPattern(repositoryID uuid.UUID, name string, participants []string, confidence float64, description string) Pattern {
	return Pattern{
		id:           uuid.New(),
		repositoryID: repositoryID,
		name:         name,
		category:     PatternCategoryArchitectural,
		participants: slices.Clone(participants),
		confidence:   clampUnit(confidence),
		severity:     SeverityInfo,
		description:  description,
		detectedAt:   time.Now().UTC(),
	}
}

// NewAntiPattern creates a detected anti-pattern with a severity grade
// and remediation advice. Confidence is clamped to [0, 1].
func NewAntiPattern(repositoryID uuid.UUID, name string, participants []string, confidence float64, severity Severity, description, remediation string) Pattern {
	return Pattern{
		id:           uuid.New(),
		repositoryID: repositoryID,
		name:         name,
		category:     PatternCategoryAntiPattern,
		participants: slices.Clone(participants),
		confidence:   clampUnit(confidence),
		severity:     severity,
		description:  description,
		remediation:  remediation,
		detectedAt:   time.Now().UTC(),
	}
}

// ReconstructPattern reconstructs a Pattern from persistence.
func ReconstructPattern(
	id, repositoryID uuid.UUID,
	name string,
	category PatternCategory,
	participants []string,
	confidence float64,
	severity Severity,
	description, remediation string,
	hasViolations bool,
	buildID uuid.UUID,
	detectedAt time.Time,
) Pattern {
	return Pattern{
		id:            id,
		repositoryID:  repositoryID,
		name:          name,
		category:      category,
		participants:  slices.Clone(participants),
		confidence:    confidence,
		severity:      severity,
		description:   description,
		remediation:   remediation,
		hasViolations: hasViolations,
		buildID:       buildID,
		detectedAt:    detectedAt,
	}
}

// ID returns the pattern id.
func (p Pattern) ID() uuid.UUID { return p.id }

// RepositoryID returns the owning repository id.
func (p Pattern) RepositoryID() uuid.UUID { return p.repositoryID }

// Name returns the pattern name, e.g. "layered-architecture".
func (p Pattern) Name() string { return p.name }

// Category returns the pattern category.
func (p Pattern) Category() PatternCategory { return p.category }

// Participants returns a copy of the participating entity ids.
func (p Pattern) Participants() []string { return slices.Clone(p.participants) }

// Confidence returns the detection confidence in [0, 1].
func (p Pattern) Confidence() float64 { return p.confidence }

// Severity returns the severity grade.
func (p Pattern) Severity() Severity { return p.severity }

// Description returns the human readable description.
func (p Pattern) Description() string { return p.description }

// Remediation returns remediation advice for anti-patterns.
func (p Pattern) Remediation() string { return p.remediation }

// HasViolations reports whether violations of the pattern were found.
func (p Pattern) HasViolations() bool { return p.hasViolations }

// BuildID returns the graph build this pattern belongs to.
func (p Pattern) BuildID() uuid.UUID { return p.buildID }

// DetectedAt returns the detection timestamp.
func (p Pattern) DetectedAt() time.Time { return p.detectedAt }

// WithViolations returns a copy with the violation flag set.
func (p Pattern) WithViolations(hasViolations bool) Pattern {
	p.hasViolations = hasViolations
	return p
}

// WithBuild returns a copy assigned to the given build.
func (p Pattern) WithBuild(buildID uuid.UUID) Pattern {
	p.buildID = buildID
	return p
}

// IsAntiPattern reports whether the pattern is an anti-pattern.
func (p Pattern) IsAntiPattern() bool { return p.category == PatternCategoryAntiPattern }

// IsEmpty returns true if the pattern has no id.
func (p Pattern) IsEmpty() bool { return p.id == uuid.Nil }
