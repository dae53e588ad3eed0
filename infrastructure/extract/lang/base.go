// Package lang provides per-language analyzers for the extractor.
package lang

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/archielabs/archie/infrastructure/extract"
)

// Base carries the pieces shared by all language analyzers.
type Base struct {
	language extract.Language
	walker   extract.Walker
}

// NewBase creates a Base for the given language.
func NewBase(language extract.Language) Base {
	return Base{
		language: language,
		walker:   extract.NewWalker(),
	}
}

// Language returns the analyzer's language.
func (b Base) Language() extract.Language { return b.language }

// Walker returns the shared AST walker.
func (b Base) Walker() extract.Walker { return b.walker }

// NodeText extracts the text content of a node.
func (b Base) NodeText(node *sitter.Node, source []byte) string {
	return b.walker.NodeText(node, source)
}

// Lines returns the 1-based start and end lines of a node.
func (b Base) Lines(node *sitter.Node) (int, int) {
	return b.walker.Lines(node)
}

// NamespaceFromPath converts a file's directory into a dotted namespace.
func (b Base) NamespaceFromPath(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "/" {
		return ""
	}
	return strings.ReplaceAll(strings.Trim(dir, "/"), "/", ".")
}

// StripQuotes removes surrounding string delimiters from an import path.
func (b Base) StripQuotes(s string) string {
	return strings.Trim(s, `"'`+"`")
}
