package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/infrastructure/extract"
)

// Python implements Analyzer for Python code.
type Python struct {
	Base
}

// NewPython creates a new Python analyzer.
func NewPython() *Python {
	return &Python{
		Base: NewBase(extract.NewLanguage("python", []string{".py"}, python.GetLanguage())),
	}
}

// Namespace returns the dotted directory path.
func (p *Python) Namespace(file extract.ParsedFile) string {
	return p.NamespaceFromPath(file.Path())
}

// Declarations extracts classes, their methods, and module-level functions.
func (p *Python) Declarations(tree *sitter.Tree, source []byte) []extract.Declaration {
	if tree == nil {
		return nil
	}
	root := tree.RootNode()

	var decls []extract.Declaration

	for _, node := range p.Walker().CollectDescendants(root, "class_definition") {
		name := p.NodeText(node.ChildByFieldName("name"), source)
		if name == "" {
			continue
		}

		start, end := p.Lines(node)
		decl := extract.NewDeclaration(name, graph.EntityKindClass, "", start, end).
			WithSupertypes(p.superclasses(node, source), nil)
		decls = append(decls, decl)
	}

	for _, node := range p.Walker().CollectDescendants(root, "function_definition") {
		name := p.NodeText(node.ChildByFieldName("name"), source)
		if name == "" {
			continue
		}

		start, end := p.Lines(node)

		if class := p.Walker().EnclosingOfType(node, "class_definition"); class != nil {
			className := p.NodeText(class.ChildByFieldName("name"), source)
			decls = append(decls, extract.NewDeclaration(name, graph.EntityKindMethod, className, start, end))
			continue
		}

		decls = append(decls, extract.NewDeclaration(name, graph.EntityKindFunction, "", start, end))
	}

	return decls
}

func (p *Python) superclasses(node *sitter.Node, source []byte) []string {
	supers := node.ChildByFieldName("superclasses")
	if supers == nil {
		return nil
	}

	var names []string
	for i := uint32(0); i < supers.ChildCount(); i++ {
		child := supers.Child(int(i))
		if child == nil {
			continue
		}
		if child.Type() == "identifier" || child.Type() == "attribute" {
			names = append(names, p.NodeText(child, source))
		}
	}
	return names
}

// Calls extracts call sites attributed to their enclosing function.
func (p *Python) Calls(tree *sitter.Tree, source []byte) []extract.CallSite {
	if tree == nil {
		return nil
	}

	var sites []extract.CallSite

	for _, funcNode := range p.Walker().CollectDescendants(tree.RootNode(), "function_definition") {
		caller := p.NodeText(funcNode.ChildByFieldName("name"), source)
		if caller == "" {
			continue
		}
		if class := p.Walker().EnclosingOfType(funcNode, "class_definition"); class != nil {
			if className := p.NodeText(class.ChildByFieldName("name"), source); className != "" {
				caller = className + "." + caller
			}
		}

		for _, call := range p.Walker().CollectDescendants(funcNode, "call") {
			callee := p.NodeText(call.ChildByFieldName("function"), source)
			if callee == "" {
				continue
			}
			sites = append(sites, extract.NewCallSite(caller, callee))
		}
	}

	return sites
}

// Imports extracts imported module paths.
func (p *Python) Imports(tree *sitter.Tree, source []byte) []string {
	if tree == nil {
		return nil
	}
	root := tree.RootNode()

	var imports []string

	for _, node := range p.Walker().CollectDescendants(root, "import_statement") {
		for _, name := range p.Walker().CollectDescendants(node, "dotted_name") {
			imports = append(imports, p.NodeText(name, source))
		}
	}

	for _, node := range p.Walker().CollectDescendants(root, "import_from_statement") {
		if module := node.ChildByFieldName("module_name"); module != nil {
			imports = append(imports, p.NodeText(module, source))
		}
	}

	return imports
}
