package graph

import (
	"reflect"
	"testing"
)

func chainAdjacency(ids ...string) Adjacency {
	adjacency := make(Adjacency)
	for i := 0; i < len(ids)-1; i++ {
		adjacency[ids[i]] = append(adjacency[ids[i]], ids[i+1])
	}
	return adjacency
}

func TestShortestPath_DirectEdge(t *testing.T) {
	adjacency := Adjacency{"a": {"b"}}

	got := ShortestPath(adjacency, "a", "b", 5)

	if want := []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestShortestPath_TwoHops(t *testing.T) {
	got := ShortestPath(chainAdjacency("a", "b", "c"), "a", "c", 5)

	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestShortestPath_PrefersFewestHops(t *testing.T) {
	adjacency := Adjacency{
		"a": {"b", "d"},
		"b": {"c"},
		"c": {"d"},
	}

	got := ShortestPath(adjacency, "a", "d", 5)

	if want := []string{"a", "d"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected the direct path %v, got %v", want, got)
	}
}

func TestShortestPath_DepthCap(t *testing.T) {
	// Six hops exceeds the cap, five hops is exactly at it.
	long := chainAdjacency("a", "b", "c", "d", "e", "f", "g")
	exact := chainAdjacency("a", "b", "c", "d", "e", "f")

	if got := ShortestPath(long, "a", "g", 5); got != nil {
		t.Errorf("expected no path within 5 hops, got %v", got)
	}
	if got := ShortestPath(exact, "a", "f", 5); len(got) != 6 {
		t.Errorf("expected a 5 hop path, got %v", got)
	}
}

func TestShortestPath_CapClampedToMaximum(t *testing.T) {
	long := chainAdjacency("a", "b", "c", "d", "e", "f", "g")

	if got := ShortestPath(long, "a", "g", 100); got != nil {
		t.Errorf("expected oversized caps to clamp to %d hops, got %v", DefaultMaxPathDepth, got)
	}
}

func TestShortestPath_ZeroCapUsesDefault(t *testing.T) {
	exact := chainAdjacency("a", "b", "c", "d", "e", "f")

	if got := ShortestPath(exact, "a", "f", 0); len(got) != 6 {
		t.Errorf("expected the default cap of %d hops to apply, got %v", DefaultMaxPathDepth, got)
	}
}

func TestShortestPath_NoPath(t *testing.T) {
	adjacency := Adjacency{"a": {"b"}, "c": {"d"}}

	if got := ShortestPath(adjacency, "a", "d", 5); got != nil {
		t.Errorf("expected no path, got %v", got)
	}
}

func TestShortestPath_SameSourceAndTarget(t *testing.T) {
	adjacency := Adjacency{"a": {"a"}}

	if got := ShortestPath(adjacency, "a", "a", 5); got != nil {
		t.Errorf("expected empty path for identical endpoints, got %v", got)
	}
}

func TestShortestPath_CycleTerminates(t *testing.T) {
	adjacency := Adjacency{"a": {"b"}, "b": {"a"}}

	if got := ShortestPath(adjacency, "a", "c", 5); got != nil {
		t.Errorf("expected no path out of the cycle, got %v", got)
	}
}

func TestShortestPath_FollowsEdgeDirection(t *testing.T) {
	adjacency := Adjacency{"a": {"b"}}

	if got := ShortestPath(adjacency, "b", "a", 5); got != nil {
		t.Errorf("expected no reverse path, got %v", got)
	}
}

func TestNewAdjacency(t *testing.T) {
	relationships := []Relationship{
		NewRelationship("a", "b", RelationshipKindCalls, 1, 1),
		NewRelationship("a", "c", RelationshipKindUses, 1, 1),
		NewRelationship("b", "c", RelationshipKindCalls, 1, 1),
	}

	adjacency := NewAdjacency(relationships)

	if want := []string{"b", "c"}; !reflect.DeepEqual(adjacency["a"], want) {
		t.Errorf("expected a -> %v, got %v", want, adjacency["a"])
	}
	if want := []string{"c"}; !reflect.DeepEqual(adjacency["b"], want) {
		t.Errorf("expected b -> %v, got %v", want, adjacency["b"])
	}
}
