package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/infrastructure/extract"
)

// TypeScript implements Analyzer for TypeScript code.
type TypeScript struct {
	Base
}

// NewTypeScript creates an analyzer for .ts files.
func NewTypeScript() *TypeScript {
	return &TypeScript{
		Base: NewBase(extract.NewLanguage("typescript", []string{".ts"}, typescript.GetLanguage())),
	}
}

// NewTSX creates an analyzer for .tsx files.
func NewTSX() *TypeScript {
	return &TypeScript{
		Base: NewBase(extract.NewLanguage("typescript", []string{".tsx"}, tsx.GetLanguage())),
	}
}

// Namespace returns the dotted directory path.
func (t *TypeScript) Namespace(file extract.ParsedFile) string {
	return t.NamespaceFromPath(file.Path())
}

var tsClassNodes = []string{"class_declaration", "abstract_class_declaration"}

// Declarations extracts classes, interfaces, enums, functions, and class
// members.
func (t *TypeScript) Declarations(tree *sitter.Tree, source []byte) []extract.Declaration {
	if tree == nil {
		return nil
	}
	root := tree.RootNode()

	var decls []extract.Declaration

	for _, node := range t.Walker().CollectNodes(root, tsClassNodes) {
		decls = append(decls, t.extractClass(node, source)...)
	}

	for _, node := range t.Walker().CollectDescendants(root, "interface_declaration") {
		name := t.NodeText(node.ChildByFieldName("name"), source)
		if name == "" {
			continue
		}
		start, end := t.Lines(node)
		decl := extract.NewDeclaration(name, graph.EntityKindInterface, "", start, end).
			WithSupertypes(t.heritageNames(node, source, "extends_type_clause"), nil)
		decls = append(decls, decl)
	}

	for _, node := range t.Walker().CollectDescendants(root, "enum_declaration") {
		name := t.NodeText(node.ChildByFieldName("name"), source)
		if name == "" {
			continue
		}
		start, end := t.Lines(node)
		decls = append(decls, extract.NewDeclaration(name, graph.EntityKindEnum, "", start, end))
	}

	for _, node := range t.Walker().CollectDescendants(root, "type_alias_declaration") {
		name := t.NodeText(node.ChildByFieldName("name"), source)
		if name == "" {
			continue
		}
		start, end := t.Lines(node)
		decls = append(decls, extract.NewDeclaration(name, graph.EntityKindValueObject, "", start, end))
	}

	for _, node := range t.Walker().CollectDescendants(root, "function_declaration") {
		name := t.NodeText(node.ChildByFieldName("name"), source)
		if name == "" {
			continue
		}
		start, end := t.Lines(node)
		decls = append(decls, extract.NewDeclaration(name, graph.EntityKindFunction, "", start, end))
	}

	decls = append(decls, t.arrowFunctions(root, source)...)

	return decls
}

func (t *TypeScript) extractClass(node *sitter.Node, source []byte) []extract.Declaration {
	name := t.NodeText(node.ChildByFieldName("name"), source)
	if name == "" {
		return nil
	}

	start, end := t.Lines(node)
	decl := extract.NewDeclaration(name, graph.EntityKindClass, "", start, end).
		WithSupertypes(
			t.heritageNames(node, source, "extends_clause"),
			t.heritageNames(node, source, "implements_clause"),
		)

	decls := []extract.Declaration{decl}

	body := node.ChildByFieldName("body")
	if body == nil {
		return decls
	}

	for _, method := range t.Walker().CollectDescendants(body, "method_definition") {
		methodName := t.NodeText(method.ChildByFieldName("name"), source)
		if methodName == "" {
			continue
		}
		mStart, mEnd := t.Lines(method)
		decls = append(decls, extract.NewDeclaration(methodName, graph.EntityKindMethod, name, mStart, mEnd))
	}

	for _, field := range t.Walker().CollectDescendants(body, "public_field_definition") {
		fieldName := t.NodeText(field.ChildByFieldName("name"), source)
		if fieldName == "" {
			continue
		}
		fStart, fEnd := t.Lines(field)
		fieldDecl := extract.NewDeclaration(fieldName, graph.EntityKindField, name, fStart, fEnd)
		decls = append(decls, fieldDecl)
	}

	return decls
}

// heritageNames collects type names from an extends or implements clause.
func (t *TypeScript) heritageNames(node *sitter.Node, source []byte, clauseType string) []string {
	var names []string

	for _, clause := range t.Walker().CollectDescendants(node, clauseType) {
		for i := uint32(0); i < clause.ChildCount(); i++ {
			child := clause.Child(int(i))
			if child == nil {
				continue
			}
			switch child.Type() {
			case "identifier", "type_identifier", "member_expression", "nested_type_identifier", "generic_type":
				names = append(names, t.typeHead(child, source))
			}
		}
	}

	return names
}

// typeHead returns the base identifier of a possibly generic type node.
func (t *TypeScript) typeHead(node *sitter.Node, source []byte) string {
	if node.Type() == "generic_type" {
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			return t.NodeText(nameNode, source)
		}
	}
	return t.NodeText(node, source)
}

// arrowFunctions extracts module-level const arrow functions.
func (t *TypeScript) arrowFunctions(root *sitter.Node, source []byte) []extract.Declaration {
	var decls []extract.Declaration

	for _, declNode := range t.Walker().CollectDescendants(root, "lexical_declaration") {
		parent := declNode.Parent()
		if parent == nil {
			continue
		}
		if parent.Type() != "program" && parent.Type() != "export_statement" {
			continue
		}

		for _, declarator := range t.Walker().CollectDescendants(declNode, "variable_declarator") {
			value := declarator.ChildByFieldName("value")
			if value == nil || value.Type() != "arrow_function" {
				continue
			}
			name := t.NodeText(declarator.ChildByFieldName("name"), source)
			if name == "" {
				continue
			}
			start, end := t.Lines(declNode)
			decls = append(decls, extract.NewDeclaration(name, graph.EntityKindFunction, "", start, end))
		}
	}

	return decls
}

// Calls extracts call sites attributed to their enclosing function or
// method.
func (t *TypeScript) Calls(tree *sitter.Tree, source []byte) []extract.CallSite {
	if tree == nil {
		return nil
	}

	var sites []extract.CallSite

	callables := t.Walker().CollectNodes(tree.RootNode(), []string{"function_declaration", "method_definition"})
	for _, funcNode := range callables {
		caller := t.NodeText(funcNode.ChildByFieldName("name"), source)
		if caller == "" {
			continue
		}
		if funcNode.Type() == "method_definition" {
			for _, classType := range tsClassNodes {
				if class := t.Walker().EnclosingOfType(funcNode, classType); class != nil {
					if className := t.NodeText(class.ChildByFieldName("name"), source); className != "" {
						caller = className + "." + caller
					}
					break
				}
			}
		}

		for _, call := range t.Walker().CollectDescendants(funcNode, "call_expression") {
			callee := t.NodeText(call.ChildByFieldName("function"), source)
			if callee == "" {
				continue
			}
			sites = append(sites, extract.NewCallSite(caller, callee))
		}
	}

	return sites
}

// Imports extracts import sources.
func (t *TypeScript) Imports(tree *sitter.Tree, source []byte) []string {
	if tree == nil {
		return nil
	}

	var imports []string
	for _, node := range t.Walker().CollectDescendants(tree.RootNode(), "import_statement") {
		path := t.StripQuotes(t.NodeText(node.ChildByFieldName("source"), source))
		if path != "" {
			imports = append(imports, path)
		}
	}
	return imports
}
