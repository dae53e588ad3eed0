package task

import "strings"

// Operation represents the type of task operation.
type Operation string

// Operation values for the task queue system.
const (
	OperationRoot              Operation = "archie.root"
	OperationRepository        Operation = "archie.repository"
	OperationRefreshRepository Operation = "archie.repository.refresh"
	OperationDeleteRepository  Operation = "archie.repository.delete"
	OperationIngestDocuments   Operation = "archie.document.ingest"
	OperationEmbedDocuments    Operation = "archie.document.embed"
	OperationBuildGraph        Operation = "archie.graph.build"
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	return string(o)
}

// IsRepositoryOperation returns true if this is a repository-level operation.
func (o Operation) IsRepositoryOperation() bool {
	return strings.HasPrefix(string(o), "archie.repository.")
}

// IsDocumentOperation returns true if this is a document-level operation.
func (o Operation) IsDocumentOperation() bool {
	return strings.HasPrefix(string(o), "archie.document.")
}

// IsGraphOperation returns true if this is a graph-level operation.
func (o Operation) IsGraphOperation() bool {
	return strings.HasPrefix(string(o), "archie.graph.")
}

// PrescribedOperations provides predefined operation sequences for common workflows.
type PrescribedOperations struct {
	embeddings bool
}

// NewPrescribedOperations creates a PrescribedOperations with the given settings.
// When embeddings is false (no embedding endpoint configured), the embed step
// is excluded and repositories index keyword-only.
func NewPrescribedOperations(embeddings bool) PrescribedOperations {
	return PrescribedOperations{embeddings: embeddings}
}

// All returns every operation that appears in any prescribed workflow.
// Used at startup to validate that all required handlers are registered.
func (p PrescribedOperations) All() []Operation {
	seen := make(map[Operation]struct{})
	var all []Operation

	for _, ops := range [][]Operation{
		p.IndexRepository(),
		p.BuildGraph(),
		p.DeleteRepository(),
	} {
		for _, op := range ops {
			if _, ok := seen[op]; !ok {
				seen[op] = struct{}{}
				all = append(all, op)
			}
		}
	}
	return all
}

// IndexRepository returns the operation sequence for indexing a repository:
// refresh provider metadata, ingest and chunk the tree, embed chunks, then
// build the knowledge graph from the indexed tree.
func (p PrescribedOperations) IndexRepository() []Operation {
	ops := []Operation{
		OperationRefreshRepository,
		OperationIngestDocuments,
	}
	if p.embeddings {
		ops = append(ops, OperationEmbedDocuments)
	}
	return append(ops, OperationBuildGraph)
}

// BuildGraph returns the operations needed to build a knowledge graph.
func (p PrescribedOperations) BuildGraph() []Operation {
	return []Operation{
		OperationBuildGraph,
	}
}

// DeleteRepository returns the operations needed to delete a repository
// and its derived data.
func (p PrescribedOperations) DeleteRepository() []Operation {
	return []Operation{
		OperationDeleteRepository,
	}
}
