package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/infrastructure/extract"
)

// Go implements Analyzer for Go code.
type Go struct {
	Base
}

// NewGo creates a new Go analyzer.
func NewGo() *Go {
	return &Go{
		Base: NewBase(extract.NewLanguage("go", []string{".go"}, golang.GetLanguage())),
	}
}

// Namespace returns the dotted directory path; Go package identity follows
// the directory.
func (g *Go) Namespace(file extract.ParsedFile) string {
	return g.NamespaceFromPath(file.Path())
}

// Declarations extracts types, functions, methods, and package-level
// constants and variables.
func (g *Go) Declarations(tree *sitter.Tree, source []byte) []extract.Declaration {
	if tree == nil {
		return nil
	}
	root := tree.RootNode()

	var decls []extract.Declaration

	for _, spec := range g.Walker().CollectDescendants(root, "type_spec") {
		decls = append(decls, g.extractType(spec, source)...)
	}

	for _, node := range g.Walker().CollectDescendants(root, "function_declaration") {
		name := g.functionName(node, source)
		if name == "" {
			continue
		}
		start, end := g.Lines(node)
		decls = append(decls, extract.NewDeclaration(name, graph.EntityKindFunction, "", start, end))
	}

	for _, node := range g.Walker().CollectDescendants(root, "method_declaration") {
		name := g.functionName(node, source)
		if name == "" {
			continue
		}
		start, end := g.Lines(node)
		decls = append(decls, extract.NewDeclaration(name, graph.EntityKindMethod, g.receiverType(node, source), start, end))
	}

	decls = append(decls, g.packageValues(root, source, "const_declaration", "const_spec", graph.EntityKindConstant)...)
	decls = append(decls, g.packageValues(root, source, "var_declaration", "var_spec", graph.EntityKindVariable)...)

	return decls
}

func (g *Go) extractType(spec *sitter.Node, source []byte) []extract.Declaration {
	nameNode := spec.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := g.NodeText(nameNode, source)
	start, end := g.Lines(spec)

	var decls []extract.Declaration

	if structType := g.Walker().FindChildByType(spec, "struct_type"); structType != nil {
		decl := extract.NewDeclaration(name, graph.EntityKindStruct, "", start, end)

		embedded, refs, fields := g.structFields(structType, source, name)
		decl = decl.WithSupertypes(embedded, nil).WithTypeRefs(refs)

		decls = append(decls, decl)
		decls = append(decls, fields...)
		return decls
	}

	if ifaceType := g.Walker().FindChildByType(spec, "interface_type"); ifaceType != nil {
		decl := extract.NewDeclaration(name, graph.EntityKindInterface, "", start, end)
		decls = append(decls, decl)

		for _, method := range g.Walker().CollectNodes(ifaceType, []string{"method_spec", "method_elem"}) {
			methodName := g.NodeText(method.ChildByFieldName("name"), source)
			if methodName == "" {
				continue
			}
			mStart, mEnd := g.Lines(method)
			decls = append(decls, extract.NewDeclaration(methodName, graph.EntityKindMethod, name, mStart, mEnd))
		}
		return decls
	}

	// Named types over non-composite underlying types are domain primitives.
	return append(decls, extract.NewDeclaration(name, graph.EntityKindValueObject, "", start, end))
}

// structFields returns embedded type names, referenced type names, and
// field declarations for a struct type node.
func (g *Go) structFields(structType *sitter.Node, source []byte, structName string) ([]string, []string, []extract.Declaration) {
	var (
		embedded []string
		refs     []string
		fields   []extract.Declaration
	)

	for _, field := range g.Walker().CollectDescendants(structType, "field_declaration") {
		names := g.Walker().CollectDescendants(field, "field_identifier")
		typeNode := field.ChildByFieldName("type")

		for _, ref := range g.Walker().CollectDescendants(typeNode, "type_identifier") {
			refs = append(refs, g.NodeText(ref, source))
		}

		if len(names) == 0 {
			// A field with no name embeds its type.
			if typeNode != nil {
				if id := g.Walker().CollectDescendants(typeNode, "type_identifier"); len(id) > 0 {
					embedded = append(embedded, g.NodeText(id[len(id)-1], source))
				}
			}
			continue
		}

		start, end := g.Lines(field)
		for _, nameNode := range names {
			fields = append(fields, extract.NewDeclaration(g.NodeText(nameNode, source), graph.EntityKindField, structName, start, end))
		}
	}

	return embedded, refs, fields
}

func (g *Go) packageValues(root *sitter.Node, source []byte, declType, specType string, kind graph.EntityKind) []extract.Declaration {
	var decls []extract.Declaration

	for _, decl := range g.Walker().CollectDescendants(root, declType) {
		if decl.Parent() == nil || decl.Parent().Type() != "source_file" {
			continue
		}

		for _, spec := range g.Walker().CollectDescendants(decl, specType) {
			nameNode := spec.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			start, end := g.Lines(spec)
			decls = append(decls, extract.NewDeclaration(g.NodeText(nameNode, source), kind, "", start, end))
		}
	}

	return decls
}

// Calls extracts call sites attributed to their enclosing function or
// method.
func (g *Go) Calls(tree *sitter.Tree, source []byte) []extract.CallSite {
	if tree == nil {
		return nil
	}

	var sites []extract.CallSite

	funcNodes := g.Walker().CollectNodes(tree.RootNode(), []string{"function_declaration", "method_declaration"})
	for _, funcNode := range funcNodes {
		caller := g.functionName(funcNode, source)
		if caller == "" {
			continue
		}
		if funcNode.Type() == "method_declaration" {
			if receiver := g.receiverType(funcNode, source); receiver != "" {
				caller = receiver + "." + caller
			}
		}

		for _, call := range g.Walker().CollectDescendants(funcNode, "call_expression") {
			callee := g.NodeText(call.ChildByFieldName("function"), source)
			if callee == "" {
				continue
			}
			sites = append(sites, extract.NewCallSite(caller, callee))
		}
	}

	return sites
}

// Imports extracts import paths.
func (g *Go) Imports(tree *sitter.Tree, source []byte) []string {
	if tree == nil {
		return nil
	}

	var imports []string
	for _, spec := range g.Walker().CollectDescendants(tree.RootNode(), "import_spec") {
		path := g.StripQuotes(g.NodeText(spec.ChildByFieldName("path"), source))
		if path != "" {
			imports = append(imports, path)
		}
	}
	return imports
}

func (g *Go) functionName(node *sitter.Node, source []byte) string {
	return g.NodeText(node.ChildByFieldName("name"), source)
}

func (g *Go) receiverType(node *sitter.Node, source []byte) string {
	receiver := node.ChildByFieldName("receiver")
	if receiver == nil {
		return ""
	}

	var typeName string
	g.Walker().Walk(receiver, func(n *sitter.Node) bool {
		if n.Type() == "type_identifier" {
			typeName = g.NodeText(n, source)
			return false
		}
		return true
	})

	return typeName
}
