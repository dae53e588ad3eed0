package patterns

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/archielabs/archie/domain/graph"
)

// GodEntity flags type-shaped entities whose relationship degree dwarfs
// the rest of the graph.
type GodEntity struct{}

// Name returns the anti-pattern name.
func (GodEntity) Name() string { return "god-entity" }

// Match implements Matcher.
func (m GodEntity) Match(_ context.Context, snap Snapshot) ([]graph.Pattern, error) {
	var patterns []graph.Pattern
	for _, entity := range snap.sortedEntities() {
		if !typeLike(entity.Kind()) {
			continue
		}
		degree := snap.degree(entity.EntityID())
		if degree < godEntityDegree {
			continue
		}

		severity := graph.SeverityWarning
		if degree >= godEntitySevereDegree {
			severity = graph.SeverityError
		}
		confidence := math.Min(1, float64(degree)/float64(godEntitySevereDegree))
		patterns = append(patterns, graph.NewAntiPattern(
			snap.repositoryID,
			m.Name(),
			[]string{entity.EntityID()},
			confidence,
			severity,
			fmt.Sprintf("%s participates in %d relationships", entity.Name(), degree),
			fmt.Sprintf("Split %s into smaller collaborators, each owning a single responsibility", entity.Name()),
		))
	}
	return patterns, nil
}

// HighCoupling flags entities depending on an excessive number of
// distinct collaborators.
type HighCoupling struct{}

// Name returns the anti-pattern name.
func (HighCoupling) Name() string { return "high-coupling" }

// Match implements Matcher.
func (m HighCoupling) Match(_ context.Context, snap Snapshot) ([]graph.Pattern, error) {
	var patterns []graph.Pattern
	for _, entity := range snap.sortedEntities() {
		targets := make(map[string]struct{})
		for _, rel := range snap.outgoing[entity.EntityID()] {
			if rel.TargetID() != entity.EntityID() {
				targets[rel.TargetID()] = struct{}{}
			}
		}
		fanOut := len(targets)
		if fanOut < highCouplingFanOut {
			continue
		}

		confidence := math.Min(1, float64(fanOut)/float64(highCouplingSteepFanOut))
		patterns = append(patterns, graph.NewAntiPattern(
			snap.repositoryID,
			m.Name(),
			[]string{entity.EntityID()},
			confidence,
			graph.SeverityWarning,
			fmt.Sprintf("%s depends on %d distinct entities", entity.Name(), fanOut),
			fmt.Sprintf("Introduce a facade or split %s so each piece needs fewer collaborators", entity.Name()),
		))
	}
	return patterns, nil
}

// CircularDependency finds cycles over depends-on and import edges.
// Call cycles are ignored since recursion is not a structural defect.
type CircularDependency struct{}

// Name returns the anti-pattern name.
func (CircularDependency) Name() string { return "circular-dependency" }

// Match implements Matcher.
func (m CircularDependency) Match(_ context.Context, snap Snapshot) ([]graph.Pattern, error) {
	adjacency := make(map[string][]string)
	var nodes []string
	seen := make(map[string]bool)
	for _, rel := range snap.relationships {
		switch rel.Kind() {
		case graph.RelationshipKindDependsOn, graph.RelationshipKindImports:
		default:
			continue
		}
		adjacency[rel.SourceID()] = append(adjacency[rel.SourceID()], rel.TargetID())
		for _, id := range []string{rel.SourceID(), rel.TargetID()} {
			if !seen[id] {
				seen[id] = true
				nodes = append(nodes, id)
			}
		}
	}
	sort.Strings(nodes)
	for id := range adjacency {
		sort.Strings(adjacency[id])
	}

	cycles := findCycles(nodes, adjacency)

	unique := make(map[string]bool)
	var patterns []graph.Pattern
	for _, cycle := range cycles {
		key := strings.Join(cycle, "|")
		if unique[key] {
			continue
		}
		unique[key] = true
		if len(patterns) == maxReportedCycles {
			break
		}

		names := make([]string, len(cycle))
		for i, id := range cycle {
			names[i] = snap.entityName(id)
		}
		patterns = append(patterns, graph.NewAntiPattern(
			snap.repositoryID,
			m.Name(),
			cycle,
			1.0,
			graph.SeverityError,
			fmt.Sprintf("dependency cycle through %s", strings.Join(names, " -> ")),
			"Break the cycle by moving the shared piece into its own package or inverting one edge behind an interface",
		))
	}
	return patterns, nil
}

const (
	colorWhite = iota
	colorGray
	colorBlack
)

// findCycles runs a colored depth-first search and reports every cycle
// closed by a back edge, normalized to start at the smallest entity id.
func findCycles(nodes []string, adjacency map[string][]string) [][]string {
	color := make(map[string]int)
	var stack []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		color[id] = colorGray
		stack = append(stack, id)
		for _, next := range adjacency[id] {
			switch color[next] {
			case colorWhite:
				visit(next)
			case colorGray:
				for i, onStack := range stack {
					if onStack == next {
						cycles = append(cycles, normalizeCycle(stack[i:]))
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = colorBlack
	}

	for _, id := range nodes {
		if color[id] == colorWhite {
			visit(id)
		}
	}
	return cycles
}

// normalizeCycle rotates a cycle so it starts at its smallest id, making
// the same cycle found from different entry points compare equal.
func normalizeCycle(cycle []string) []string {
	smallest := 0
	for i, id := range cycle {
		if id < cycle[smallest] {
			smallest = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[smallest:]...)
	out = append(out, cycle[:smallest]...)
	return out
}
