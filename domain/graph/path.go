package graph

// DefaultMaxPathDepth bounds path searches. It is both the default and
// the upper limit for caller supplied depth caps.
const DefaultMaxPathDepth = 5

// Adjacency maps an entity id to the ids reachable over one relationship.
type Adjacency map[string][]string

// NewAdjacency builds a directed adjacency map from relationships.
func NewAdjacency(relationships []Relationship) Adjacency {
	adjacency := make(Adjacency, len(relationships))
	for _, rel := range relationships {
		adjacency[rel.SourceID()] = append(adjacency[rel.SourceID()], rel.TargetID())
	}
	return adjacency
}

// ShortestPath finds the shortest hop path from source to target using
// breadth-first search. maxDepth caps the number of hops; values outside
// (0, DefaultMaxPathDepth] fall back to DefaultMaxPathDepth. It returns
// the entity ids along the path including both endpoints, or nil when no
// path exists within the cap. Identical source and target yields nil.
func ShortestPath(adjacency Adjacency, source, target string, maxDepth int) []string {
	if maxDepth <= 0 || maxDepth > DefaultMaxPathDepth {
		maxDepth = DefaultMaxPathDepth
	}
	if source == target {
		return nil
	}

	type visit struct {
		id    string
		depth int
	}
	parents := map[string]string{source: ""}
	queue := []visit{{id: source, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= maxDepth {
			continue
		}
		for _, next := range adjacency[current.id] {
			if _, seen := parents[next]; seen {
				continue
			}
			parents[next] = current.id
			if next == target {
				return assemblePath(parents, source, target)
			}
			queue = append(queue, visit{id: next, depth: current.depth + 1})
		}
	}
	return nil
}

func assemblePath(parents map[string]string, source, target string) []string {
	var reversed []string
	for id := target; id != ""; id = parents[id] {
		reversed = append(reversed, id)
		if id == source {
			break
		}
	}
	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path
}
