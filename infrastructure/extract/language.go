package extract

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/archielabs/archie/domain/graph"
)

// Language describes one grammar the extractor can parse.
type Language struct {
	name       string
	extensions []string
	sitterLang *sitter.Language
}

// NewLanguage creates a Language.
func NewLanguage(name string, extensions []string, sitterLang *sitter.Language) Language {
	return Language{
		name:       name,
		extensions: extensions,
		sitterLang: sitterLang,
	}
}

// Name returns the language name in lowercase ("go", "python").
func (l Language) Name() string { return l.name }

// Extensions returns the file extensions handled by this language.
func (l Language) Extensions() []string { return l.extensions }

// Sitter returns the tree-sitter grammar.
func (l Language) Sitter() *sitter.Language { return l.sitterLang }

// Analyzer recovers declarations, call sites, and imports from one parsed file.
type Analyzer interface {
	Language() Language

	// Namespace returns the logical namespace of the file: the declared
	// namespace where the language has one, otherwise the dotted directory
	// path. Empty for files at the repository root.
	Namespace(file ParsedFile) string

	Declarations(tree *sitter.Tree, source []byte) []Declaration
	Calls(tree *sitter.Tree, source []byte) []CallSite
	Imports(tree *sitter.Tree, source []byte) []string
}

// AnalyzerFactory creates analyzers for different languages.
type AnalyzerFactory interface {
	ByExtension(ext string) (Analyzer, bool)
}

// ParsedFile pairs a source file with its syntax tree.
type ParsedFile struct {
	path   string
	tree   *sitter.Tree
	source []byte
}

// NewParsedFile creates a ParsedFile.
func NewParsedFile(path string, tree *sitter.Tree, source []byte) ParsedFile {
	return ParsedFile{path: path, tree: tree, source: source}
}

// Path returns the repository-relative file path.
func (f ParsedFile) Path() string { return f.path }

// Tree returns the parsed syntax tree.
func (f ParsedFile) Tree() *sitter.Tree { return f.tree }

// SourceCode returns the raw file content.
func (f ParsedFile) SourceCode() []byte { return f.source }

// Declaration is one named construct found in a source file. Members carry
// the simple name of their enclosing declaration in parent.
type Declaration struct {
	name       string
	kind       graph.EntityKind
	parent     string
	startLine  int
	endLine    int
	extends    []string
	implements []string
	typeRefs   []string
}

// NewDeclaration creates a top-level or member declaration.
func NewDeclaration(name string, kind graph.EntityKind, parent string, startLine, endLine int) Declaration {
	return Declaration{
		name:      name,
		kind:      kind,
		parent:    parent,
		startLine: startLine,
		endLine:   endLine,
	}
}

// Name returns the simple name.
func (d Declaration) Name() string { return d.name }

// Kind returns the entity kind.
func (d Declaration) Kind() graph.EntityKind { return d.kind }

// Parent returns the simple name of the enclosing declaration, or "".
func (d Declaration) Parent() string { return d.parent }

// StartLine returns the 1-based first line.
func (d Declaration) StartLine() int { return d.startLine }

// EndLine returns the 1-based last line.
func (d Declaration) EndLine() int { return d.endLine }

// Extends returns the names of supertypes this declaration inherits from.
func (d Declaration) Extends() []string { return d.extends }

// Implements returns the names of interfaces this declaration implements.
func (d Declaration) Implements() []string { return d.implements }

// TypeRefs returns the names of types referenced by fields and signatures.
func (d Declaration) TypeRefs() []string { return d.typeRefs }

// WithSupertypes returns a copy carrying inheritance information.
func (d Declaration) WithSupertypes(extends, implements []string) Declaration {
	d.extends = extends
	d.implements = implements
	return d
}

// WithTypeRefs returns a copy carrying referenced type names.
func (d Declaration) WithTypeRefs(refs []string) Declaration {
	d.typeRefs = refs
	return d
}

// IsMember reports whether the declaration is nested inside another.
func (d Declaration) IsMember() bool { return d.parent != "" }

// CallSite records one call from a named function or method. Caller is the
// local name ("Type.method" or "funcName"); callee is the raw call target
// text, possibly dotted.
type CallSite struct {
	caller string
	callee string
}

// NewCallSite creates a CallSite.
func NewCallSite(caller, callee string) CallSite {
	return CallSite{caller: caller, callee: callee}
}

// Caller returns the local name of the calling declaration.
func (c CallSite) Caller() string { return c.caller }

// Callee returns the raw call target text.
func (c CallSite) Callee() string { return c.callee }

// FileFacts captures everything the analyzer recovered from one file.
type FileFacts struct {
	path         string
	language     string
	namespace    string
	declarations []Declaration
	calls        []CallSite
	imports      []string
	lineCount    int
}

// NewFileFacts creates a FileFacts.
func NewFileFacts(path, language, namespace string, declarations []Declaration, calls []CallSite, imports []string, lineCount int) FileFacts {
	return FileFacts{
		path:         path,
		language:     language,
		namespace:    namespace,
		declarations: declarations,
		calls:        calls,
		imports:      imports,
		lineCount:    lineCount,
	}
}

// Path returns the repository-relative file path.
func (f FileFacts) Path() string { return f.path }

// Language returns the language name.
func (f FileFacts) Language() string { return f.language }

// Namespace returns the file's logical namespace, or "".
func (f FileFacts) Namespace() string { return f.namespace }

// Declarations returns the declarations found in the file.
func (f FileFacts) Declarations() []Declaration { return f.declarations }

// Calls returns the call sites found in the file.
func (f FileFacts) Calls() []CallSite { return f.calls }

// Imports returns the raw import paths found in the file.
func (f FileFacts) Imports() []string { return f.imports }

// LineCount returns the number of lines in the file.
func (f FileFacts) LineCount() int { return f.lineCount }
