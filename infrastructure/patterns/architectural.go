package patterns

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/archielabs/archie/domain/graph"
)

type layer string

const (
	layerAPI     layer = "api"
	layerService layer = "service"
	layerData    layer = "data"
	layerDomain  layer = "domain"
)

var layerOrder = []layer{layerAPI, layerService, layerData, layerDomain}

// layerOf assigns an entity to an architectural layer, first by kind,
// then by name suffix, then by path segment.
func layerOf(e graph.Entity) (layer, bool) {
	switch e.Kind() {
	case graph.EntityKindController:
		return layerAPI, true
	case graph.EntityKindService:
		return layerService, true
	case graph.EntityKindRepository:
		return layerData, true
	case graph.EntityKindAggregate, graph.EntityKindValueObject:
		return layerDomain, true
	}

	name := e.Name()
	switch {
	case strings.HasSuffix(name, "Controller"), strings.HasSuffix(name, "Handler"):
		return layerAPI, true
	case strings.HasSuffix(name, "Service"), strings.HasSuffix(name, "UseCase"):
		return layerService, true
	case strings.HasSuffix(name, "Repository"), strings.HasSuffix(name, "Store"):
		return layerData, true
	}

	for _, segment := range strings.Split(e.Path(), "/") {
		switch segment {
		case "api", "handlers", "controllers", "transport", "rest":
			return layerAPI, true
		case "service", "services", "application", "usecase", "usecases":
			return layerService, true
		case "repository", "repositories", "store", "stores", "persistence", "storage", "dao":
			return layerData, true
		case "domain", "model", "models", "entity", "entities":
			return layerDomain, true
		}
	}
	return "", false
}

// typeLike reports whether the kind names a type-shaped entity, the
// granularity structural heuristics reason about.
func typeLike(kind graph.EntityKind) bool {
	switch kind {
	case graph.EntityKindClass, graph.EntityKindStruct, graph.EntityKindInterface,
		graph.EntityKindService, graph.EntityKindRepository, graph.EntityKindController,
		graph.EntityKindAggregate:
		return true
	default:
		return false
	}
}

// LayeredArchitecture reports a layered architecture when entities fall
// into at least two of the api, service, data and domain layers. An api
// entity reaching straight into the data layer marks the pattern as
// violated.
type LayeredArchitecture struct{}

// Name returns the pattern name.
func (LayeredArchitecture) Name() string { return "layered-architecture" }

// Match implements Matcher.
func (m LayeredArchitecture) Match(_ context.Context, snap Snapshot) ([]graph.Pattern, error) {
	members := make(map[layer][]string)
	layerByEntity := make(map[string]layer)
	for _, entity := range snap.entities {
		if l, ok := layerOf(entity); ok {
			members[l] = append(members[l], entity.EntityID())
			layerByEntity[entity.EntityID()] = l
		}
	}
	if len(members) < 2 {
		return nil, nil
	}

	var participants []string
	var present []string
	for _, l := range layerOrder {
		ids := members[l]
		if len(ids) == 0 {
			continue
		}
		present = append(present, string(l))
		sort.Strings(ids)
		if len(ids) > layerRepresentatives {
			ids = ids[:layerRepresentatives]
		}
		participants = append(participants, ids...)
	}

	description := fmt.Sprintf("%d of 4 architectural layers are populated (%s)",
		len(members), strings.Join(present, ", "))
	pattern := graph.NewArchitecturalPattern(
		snap.repositoryID, m.Name(), participants, layeredConfidence(len(members)), description)

	if hasSkipLayerEdge(snap, layerByEntity) {
		pattern = pattern.WithViolations(true)
	}
	return []graph.Pattern{pattern}, nil
}

func layeredConfidence(layerCount int) float64 {
	switch {
	case layerCount >= 4:
		return 0.9
	case layerCount == 3:
		return 0.75
	default:
		return 0.6
	}
}

func hasSkipLayerEdge(snap Snapshot, layerByEntity map[string]layer) bool {
	for _, rel := range snap.relationships {
		if layerByEntity[rel.SourceID()] == layerAPI && layerByEntity[rel.TargetID()] == layerData {
			return true
		}
	}
	return false
}

// RepositoryPattern reports data access mediated by repository or store
// entities.
type RepositoryPattern struct{}

// Name returns the pattern name.
func (RepositoryPattern) Name() string { return "repository-pattern" }

// Match implements Matcher.
func (m RepositoryPattern) Match(_ context.Context, snap Snapshot) ([]graph.Pattern, error) {
	var ids []string
	var confidence float64
	for _, entity := range snap.entities {
		switch {
		case entity.Kind() == graph.EntityKindRepository:
			ids = append(ids, entity.EntityID())
			confidence = math.Max(confidence, 0.9)
		case typeLike(entity.Kind()) && hasAnySuffix(entity.Name(), "Repository", "Store"):
			ids = append(ids, entity.EntityID())
			confidence = math.Max(confidence, 0.7)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	description := fmt.Sprintf("%d repository entities mediate data access", len(ids))
	sort.Strings(ids)
	if len(ids) > maxParticipants {
		ids = ids[:maxParticipants]
	}
	return []graph.Pattern{graph.NewArchitecturalPattern(
		snap.repositoryID, m.Name(), ids, confidence, description)}, nil
}

// ServiceLayer reports business logic concentrated in service entities.
type ServiceLayer struct{}

// Name returns the pattern name.
func (ServiceLayer) Name() string { return "service-layer" }

// Match implements Matcher.
func (m ServiceLayer) Match(_ context.Context, snap Snapshot) ([]graph.Pattern, error) {
	var ids []string
	var confidence float64
	for _, entity := range snap.entities {
		switch {
		case entity.Kind() == graph.EntityKindService:
			ids = append(ids, entity.EntityID())
			confidence = math.Max(confidence, 0.9)
		case typeLike(entity.Kind()) && hasAnySuffix(entity.Name(), "Service", "UseCase"):
			ids = append(ids, entity.EntityID())
			confidence = math.Max(confidence, 0.7)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	description := fmt.Sprintf("%d service entities carry the business logic", len(ids))
	sort.Strings(ids)
	if len(ids) > maxParticipants {
		ids = ids[:maxParticipants]
	}
	return []graph.Pattern{graph.NewArchitecturalPattern(
		snap.repositoryID, m.Name(), ids, confidence, description)}, nil
}

func hasAnySuffix(name string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
