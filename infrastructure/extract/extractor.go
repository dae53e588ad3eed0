package extract

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/google/uuid"

	"github.com/archielabs/archie/domain/graph"
)

// SourceFile is one repository file presented to the extractor. Content is
// held in memory; nothing is ever read from disk.
type SourceFile struct {
	path    string
	content string
}

// NewSourceFile creates a SourceFile.
func NewSourceFile(path, content string) SourceFile {
	return SourceFile{path: path, content: content}
}

// Path returns the repository-relative file path.
func (f SourceFile) Path() string { return f.path }

// Content returns the file content.
func (f SourceFile) Content() string { return f.content }

// Result holds the entities and candidate relationships recovered from a
// set of files. Relationships reference entity ids present in the result.
type Result struct {
	entities      []graph.Entity
	relationships []graph.Relationship
}

// Entities returns the extracted entities.
func (r Result) Entities() []graph.Entity { return r.entities }

// Relationships returns the extracted relationships.
func (r Result) Relationships() []graph.Relationship { return r.relationships }

// Extractor turns repository files into knowledge graph entities and
// relationships using AST parsing for supported languages and a line
// scanner for the rest.
type Extractor struct {
	factory AnalyzerFactory
}

// NewExtractor creates an Extractor.
func NewExtractor(factory AnalyzerFactory) *Extractor {
	return &Extractor{factory: factory}
}

// Extract analyzes the given files at the requested depth.
func (e *Extractor) Extract(ctx context.Context, repositoryID uuid.UUID, files []SourceFile, depth graph.AnalysisDepth) (Result, error) {
	facts := make([]FileFacts, 0, len(files))

	for _, file := range files {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		ext := filepath.Ext(file.Path())

		analyzer, ok := e.factory.ByExtension(ext)
		if !ok {
			scanned, recognized := scanGeneric(file.Path(), file.Content())
			if recognized {
				facts = append(facts, scanned)
			}
			continue
		}

		parsed, err := e.parse(ctx, analyzer, file)
		if err != nil {
			// A file the grammar cannot parse is skipped, not fatal.
			continue
		}

		facts = append(facts, e.analyze(analyzer, parsed))
	}

	return Assemble(repositoryID, facts, depth), nil
}

func (e *Extractor) parse(ctx context.Context, analyzer Analyzer, file SourceFile) (ParsedFile, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(analyzer.Language().Sitter())

	source := []byte(file.Content())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return ParsedFile{}, err
	}

	return NewParsedFile(file.Path(), tree, source), nil
}

func (e *Extractor) analyze(analyzer Analyzer, parsed ParsedFile) FileFacts {
	tree := parsed.Tree()
	source := parsed.SourceCode()

	return NewFileFacts(
		parsed.Path(),
		analyzer.Language().Name(),
		analyzer.Namespace(parsed),
		analyzer.Declarations(tree, source),
		analyzer.Calls(tree, source),
		analyzer.Imports(tree, source),
		countLines(string(source)),
	)
}

func countLines(content string) int {
	if content == "" {
		return 0
	}

	lines := strings.Count(content, "\n") + 1
	if strings.HasSuffix(content, "\n") {
		lines--
	}
	return lines
}
