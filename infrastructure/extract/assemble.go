package extract

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/archielabs/archie/domain/graph"
)

// Assemble turns per-file facts into entities and relationships at the
// requested depth. Surface keeps top-level declarations, containment, and
// imports. Standard adds members, inheritance, type usage, and resolved
// calls. Deep adds name-match references and namespace dependencies.
//
// Every relationship references entities present in the result, and the
// output is deterministic for identical input.
func Assemble(repositoryID uuid.UUID, facts []FileFacts, depth graph.AnalysisDepth) Result {
	if !depth.IsValid() {
		depth = graph.DefaultAnalysisDepth
	}

	a := &assembly{
		repositoryID:  repositoryID,
		depth:         depth,
		entityIndex:   make(map[string]int),
		rels:          make(map[string]graph.Relationship),
		byName:        make(map[string][]string),
		byQualified:   make(map[string]string),
		namespaces:    make(map[string]string),
		namespaceOf:   make(map[string]string),
		containsCount: make(map[string]int),
		fanOut:        make(map[string]int),
	}

	for _, f := range facts {
		a.addFile(f)
	}

	if depth.Covers(graph.AnalysisDepthStandard) {
		for _, f := range facts {
			a.addHeritage(f)
		}
		for _, f := range facts {
			a.tallyCalls(f)
		}
		a.emitCalls()
	}

	for _, f := range facts {
		a.addImports(f)
	}

	if depth.Covers(graph.AnalysisDepthDeep) {
		a.addReferences()
		a.addDependencies()
	}

	a.scoreComplexity()

	return Result{entities: a.entities, relationships: a.ordered()}
}

type callEdge struct {
	count int
}

type unresolvedCall struct {
	callerID string
	name     string
}

type assembly struct {
	repositoryID uuid.UUID
	depth        graph.AnalysisDepth

	entities    []graph.Entity
	entityIndex map[string]int

	relIDs []string
	rels   map[string]graph.Relationship

	// byName maps simple names to entity ids; byQualified maps full
	// qualified names. Both cover declarations only, not files.
	byName      map[string][]string
	byQualified map[string]string

	// namespaces maps namespace qualified names to entity ids.
	namespaces map[string]string

	// namespaceOf maps every entity id to its namespace entity id.
	namespaceOf   map[string]string
	containsCount map[string]int

	calls      map[string]map[string]callEdge
	unresolved []unresolvedCall
	fanOut     map[string]int
}

func (a *assembly) addFile(f FileFacts) {
	nsID := a.addNamespace(f)

	fileEntity := graph.NewEntity(a.repositoryID, graph.EntityKindFile, pathBase(f.Path()), f.Path()).
		WithLocation(f.Language(), f.Path(), 1, f.LineCount())
	fileID := a.addEntity(fileEntity)

	if nsID != "" {
		a.namespaceOf[fileID] = nsID
		a.contain(nsID, fileID)
	}

	for _, decl := range f.Declarations() {
		if decl.IsMember() && !a.depth.Covers(graph.AnalysisDepthStandard) {
			continue
		}
		a.addDeclaration(f, fileID, nsID, decl)
	}
}

func (a *assembly) addNamespace(f FileFacts) string {
	if f.Namespace() == "" {
		return ""
	}

	ns := graph.NewEntity(a.repositoryID, graph.EntityKindPackage, lastSegment(f.Namespace()), f.Namespace()).
		WithLocation(f.Language(), "", 0, 0)

	id := a.addEntity(ns)
	a.namespaces[f.Namespace()] = id
	// A namespace belongs to itself so namespace-targeted edges count as
	// cross-namespace dependencies.
	a.namespaceOf[id] = id
	return id
}

func (a *assembly) addDeclaration(f FileFacts, fileID, nsID string, decl Declaration) {
	kind := refineKind(decl.Name(), decl.Kind())
	qualified := qualify(f.Namespace(), decl.Parent(), decl.Name())

	entity := graph.NewEntity(a.repositoryID, kind, decl.Name(), qualified).
		WithLocation(f.Language(), f.Path(), decl.StartLine(), decl.EndLine())

	id := a.addEntity(entity)
	a.namespaceOf[id] = nsID

	if _, seen := a.byQualified[qualified]; !seen {
		a.byQualified[qualified] = id
		a.byName[decl.Name()] = append(a.byName[decl.Name()], id)
	}

	parentID := fileID
	if decl.IsMember() {
		if enclosing, ok := a.byQualified[qualify(f.Namespace(), "", decl.Parent())]; ok {
			parentID = enclosing
		}
	}
	a.contain(parentID, id)
}

// addHeritage emits inherits, implements, and uses edges for one file.
func (a *assembly) addHeritage(f FileFacts) {
	for _, decl := range f.Declarations() {
		sourceID, ok := a.byQualified[qualify(f.Namespace(), decl.Parent(), decl.Name())]
		if !ok {
			continue
		}

		for _, name := range decl.Extends() {
			a.relateByName(sourceID, name, f.Namespace(), graph.RelationshipKindInherits)
		}
		for _, name := range decl.Implements() {
			a.relateByName(sourceID, name, f.Namespace(), graph.RelationshipKindImplements)
		}
		for _, name := range decl.TypeRefs() {
			a.relateByName(sourceID, name, f.Namespace(), graph.RelationshipKindUses)
		}
	}
}

func (a *assembly) relateByName(sourceID, name, namespace string, kind graph.RelationshipKind) {
	targetID, exact, ok := a.resolveName(name, namespace)
	if !ok || targetID == sourceID {
		return
	}

	confidence := 1.0
	if !exact {
		confidence = 0.6
	}
	a.addRelationship(graph.NewRelationship(sourceID, targetID, kind, 1.0, confidence))
}

func (a *assembly) tallyCalls(f FileFacts) {
	if a.calls == nil {
		a.calls = make(map[string]map[string]callEdge)
	}

	for _, call := range f.Calls() {
		callerID, ok := a.byQualified[qualify(f.Namespace(), "", call.Caller())]
		if !ok {
			continue
		}

		targetID, resolved := a.resolveExact(call.Callee(), f.Namespace())
		if !resolved {
			a.unresolved = append(a.unresolved, unresolvedCall{callerID: callerID, name: lastSegment(call.Callee())})
			continue
		}
		if targetID == callerID {
			continue
		}

		edges := a.calls[callerID]
		if edges == nil {
			edges = make(map[string]callEdge)
			a.calls[callerID] = edges
		}

		edge := edges[targetID]
		edge.count++
		edges[targetID] = edge

		a.fanOut[callerID]++
	}
}

// emitCalls converts the call tally into edges with frequency-normalized
// weights: the most-called target of each caller gets weight 1.0. Calls
// carry full confidence because they required symbol resolution.
func (a *assembly) emitCalls() {
	for _, callerID := range sortedKeys(a.calls) {
		edges := a.calls[callerID]

		maxCount := 0
		for _, edge := range edges {
			if edge.count > maxCount {
				maxCount = edge.count
			}
		}
		if maxCount == 0 {
			continue
		}

		for _, targetID := range sortedKeys(edges) {
			weight := float64(edges[targetID].count) / float64(maxCount)
			a.addRelationship(graph.NewRelationship(callerID, targetID, graph.RelationshipKindCalls, weight, 1.0))
		}
	}
}

// addImports links files to the namespaces their import paths resolve to.
// Imports of anything outside the repository have no target entity and are
// dropped.
func (a *assembly) addImports(f FileFacts) {
	fileID := graph.NewEntityID(a.repositoryID, graph.EntityKindFile, f.Path())

	for _, imp := range f.Imports() {
		targetID, ok := a.resolveImport(imp)
		if !ok || targetID == a.namespaceOf[fileID] {
			continue
		}
		a.addRelationship(graph.NewRelationship(fileID, targetID, graph.RelationshipKindImports, 1.0, 1.0))
	}
}

// resolveImport matches an import path against known namespaces by dotted
// suffix, longest namespace winning.
func (a *assembly) resolveImport(imp string) (string, bool) {
	normalized := strings.ReplaceAll(strings.Trim(imp, "./"), "/", ".")
	if normalized == "" {
		return "", false
	}

	var best string
	for _, qualified := range sortedKeys(a.namespaces) {
		if normalized != qualified && !strings.HasSuffix(normalized, "."+qualified) {
			continue
		}
		if len(qualified) > len(best) {
			best = qualified
		}
	}
	if best == "" {
		return "", false
	}
	return a.namespaces[best], true
}

// addReferences turns unresolved call targets that coincide with declared
// entity names into low-confidence references edges.
func (a *assembly) addReferences() {
	for _, call := range a.unresolved {
		candidates := a.byName[call.name]
		if len(candidates) == 0 {
			continue
		}

		targetID := candidates[0]
		if targetID == call.callerID {
			continue
		}
		a.addRelationship(graph.NewRelationship(call.callerID, targetID, graph.RelationshipKindReferences, 0.3, 0.4))
	}
}

// addDependencies aggregates cross-namespace edges into namespace-level
// depends_on edges, then derives one round of transitive dependencies.
func (a *assembly) addDependencies() {
	counts := make(map[string]map[string]int)

	for _, id := range a.relIDs {
		rel := a.rels[id]
		sourceNS := a.namespaceOf[rel.SourceID()]
		targetNS := a.namespaceOf[rel.TargetID()]
		if sourceNS == "" || targetNS == "" || sourceNS == targetNS {
			continue
		}

		if counts[sourceNS] == nil {
			counts[sourceNS] = make(map[string]int)
		}
		counts[sourceNS][targetNS]++
	}

	weights := make(map[string]map[string]float64)
	for _, sourceNS := range sortedKeys(counts) {
		targets := counts[sourceNS]

		maxCount := 0
		for _, n := range targets {
			if n > maxCount {
				maxCount = n
			}
		}

		for _, targetNS := range sortedKeys(targets) {
			weight := float64(targets[targetNS]) / float64(maxCount)
			a.addRelationship(graph.NewRelationship(sourceNS, targetNS, graph.RelationshipKindDependsOn, weight, 0.9))

			if weights[sourceNS] == nil {
				weights[sourceNS] = make(map[string]float64)
			}
			weights[sourceNS][targetNS] = weight
		}
	}

	// One derivation round: A -> B -> C implies A -> C.
	for _, first := range sortedKeys(weights) {
		for _, second := range sortedKeys(weights[first]) {
			for _, third := range sortedKeys(weights[second]) {
				if third == first {
					continue
				}
				if _, direct := weights[first][third]; direct {
					continue
				}
				derived := minFloat(weights[first][second], weights[second][third]) / 2
				a.addRelationship(graph.NewRelationship(first, third, graph.RelationshipKindDependsOn, derived, 0.7))
			}
		}
	}
}

// scoreComplexity assigns heuristic complexity: callables score on span and
// fan-out, types on member count and span, containers on child count.
func (a *assembly) scoreComplexity() {
	for i, e := range a.entities {
		span := float64(e.EndLine() - e.StartLine() + 1)

		var score float64
		switch e.Kind() {
		case graph.EntityKindFunction, graph.EntityKindMethod:
			score = span/10 + float64(a.fanOut[e.EntityID()])
		case graph.EntityKindFile, graph.EntityKindPackage:
			score = float64(a.containsCount[e.EntityID()])
		case graph.EntityKindField, graph.EntityKindConstant, graph.EntityKindVariable:
			score = 0
		default:
			score = float64(a.containsCount[e.EntityID()]) + span/20
		}

		a.entities[i] = e.WithComplexity(score)
	}
}

func (a *assembly) addEntity(e graph.Entity) string {
	if i, ok := a.entityIndex[e.EntityID()]; ok {
		return a.entities[i].EntityID()
	}
	a.entityIndex[e.EntityID()] = len(a.entities)
	a.entities = append(a.entities, e)
	return e.EntityID()
}

// addRelationship keeps the higher-confidence edge when the same pair and
// kind is seen twice.
func (a *assembly) addRelationship(rel graph.Relationship) {
	if _, ok := a.entityIndex[rel.SourceID()]; !ok {
		return
	}
	if _, ok := a.entityIndex[rel.TargetID()]; !ok {
		return
	}

	existing, ok := a.rels[rel.ID()]
	if ok {
		if rel.Confidence() > existing.Confidence() {
			a.rels[rel.ID()] = rel
		}
		return
	}

	a.rels[rel.ID()] = rel
	a.relIDs = append(a.relIDs, rel.ID())
}

func (a *assembly) contain(parentID, childID string) {
	a.addRelationship(graph.NewRelationship(parentID, childID, graph.RelationshipKindContains, 1.0, 1.0))
	a.containsCount[parentID]++
}

func (a *assembly) ordered() []graph.Relationship {
	out := make([]graph.Relationship, 0, len(a.relIDs))
	for _, id := range a.relIDs {
		out = append(out, a.rels[id])
	}
	return out
}

// resolveExact resolves a possibly dotted name through qualified lookups
// only.
func (a *assembly) resolveExact(name, namespace string) (string, bool) {
	if name == "" {
		return "", false
	}

	if id, ok := a.byQualified[qualify(namespace, "", name)]; ok {
		return id, true
	}
	if strings.Contains(name, ".") {
		if id, ok := a.byQualified[name]; ok {
			return id, true
		}
	}
	return "", false
}

// resolveName resolves a possibly dotted name to a declared entity. Exact
// matches are qualified lookups; a simple-name match is accepted as a
// heuristic with candidates in the same namespace preferred.
func (a *assembly) resolveName(name, namespace string) (string, bool, bool) {
	if id, ok := a.resolveExact(name, namespace); ok {
		return id, true, true
	}

	candidates := a.byName[lastSegment(name)]
	switch len(candidates) {
	case 0:
		return "", false, false
	case 1:
		return candidates[0], false, true
	}

	if namespace != "" {
		nsID := a.namespaces[namespace]
		for _, id := range candidates {
			if a.namespaceOf[id] == nsID {
				return id, false, true
			}
		}
	}
	return candidates[0], false, true
}

// refineKind maps naming conventions onto architectural entity kinds.
func refineKind(name string, kind graph.EntityKind) graph.EntityKind {
	if kind != graph.EntityKindClass && kind != graph.EntityKindStruct {
		return kind
	}

	switch {
	case strings.HasSuffix(name, "Service"):
		return graph.EntityKindService
	case strings.HasSuffix(name, "Repository"):
		return graph.EntityKindRepository
	case strings.HasSuffix(name, "Controller"), strings.HasSuffix(name, "Handler"):
		return graph.EntityKindController
	}
	return kind
}

func qualify(namespace, parent, name string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{namespace, parent, name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func pathBase(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
