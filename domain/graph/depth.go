package graph

// AnalysisDepth controls how much of a repository the graph builder inspects.
type AnalysisDepth string

// AnalysisDepth values, ordered from cheapest to most thorough.
const (
	// AnalysisDepthSurface extracts files, packages and top-level declarations.
	AnalysisDepthSurface AnalysisDepth = "surface"
	// AnalysisDepthStandard adds members, call edges and pattern detection.
	AnalysisDepthStandard AnalysisDepth = "standard"
	// AnalysisDepthDeep adds cross-file reference resolution and complexity scoring.
	AnalysisDepthDeep AnalysisDepth = "deep"
)

// DefaultAnalysisDepth is used when no depth is requested.
const DefaultAnalysisDepth = AnalysisDepthStandard

// IsValid returns true for a known depth value.
func (d AnalysisDepth) IsValid() bool {
	switch d {
	case AnalysisDepthSurface, AnalysisDepthStandard, AnalysisDepthDeep:
		return true
	default:
		return false
	}
}

// Rank returns the ordering of the depth. Deeper analysis has a higher rank.
func (d AnalysisDepth) Rank() int {
	switch d {
	case AnalysisDepthSurface:
		return 1
	case AnalysisDepthStandard:
		return 2
	case AnalysisDepthDeep:
		return 3
	default:
		return 0
	}
}

// Covers reports whether this depth includes everything the other depth produces.
func (d AnalysisDepth) Covers(other AnalysisDepth) bool {
	return d.Rank() >= other.Rank()
}
