package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/infrastructure/extract"
)

// CSharp implements Analyzer for C# code.
type CSharp struct {
	Base
}

// NewCSharp creates a new C# analyzer.
func NewCSharp() *CSharp {
	return &CSharp{
		Base: NewBase(extract.NewLanguage("csharp", []string{".cs"}, csharp.GetLanguage())),
	}
}

var csNamespaceNodes = []string{"namespace_declaration", "file_scoped_namespace_declaration"}

// Namespace returns the declared namespace, falling back to the dotted
// directory path.
func (cs *CSharp) Namespace(file extract.ParsedFile) string {
	tree := file.Tree()
	if tree == nil {
		return cs.NamespaceFromPath(file.Path())
	}

	namespaceNodes := cs.Walker().CollectNodes(tree.RootNode(), csNamespaceNodes)
	if len(namespaceNodes) == 0 {
		return cs.NamespaceFromPath(file.Path())
	}

	if nameNode := namespaceNodes[0].ChildByFieldName("name"); nameNode != nil {
		return cs.NodeText(nameNode, file.SourceCode())
	}

	return cs.NamespaceFromPath(file.Path())
}

var csTypeNodes = []string{"class_declaration", "struct_declaration", "interface_declaration", "enum_declaration"}

// Declarations extracts classes, structs, interfaces, enums, and their
// members.
func (cs *CSharp) Declarations(tree *sitter.Tree, source []byte) []extract.Declaration {
	if tree == nil {
		return nil
	}

	var decls []extract.Declaration

	for _, node := range cs.Walker().CollectNodes(tree.RootNode(), csTypeNodes) {
		name := cs.NodeText(node.ChildByFieldName("name"), source)
		if name == "" {
			continue
		}

		var kind graph.EntityKind
		switch node.Type() {
		case "struct_declaration":
			kind = graph.EntityKindStruct
		case "interface_declaration":
			kind = graph.EntityKindInterface
		case "enum_declaration":
			kind = graph.EntityKindEnum
		default:
			kind = graph.EntityKindClass
		}

		start, end := cs.Lines(node)
		extends, implements := cs.splitBases(node, source)
		decl := extract.NewDeclaration(name, kind, "", start, end).
			WithSupertypes(extends, implements)

		decls = append(decls, decl)
		decls = append(decls, cs.members(node, source, name)...)
	}

	return decls
}

// splitBases divides the base list into a superclass and interfaces. The
// grammar does not distinguish them, so names with an interface prefix
// ("IDisposable") are treated as interfaces.
func (cs *CSharp) splitBases(node *sitter.Node, source []byte) ([]string, []string) {
	baseList := node.ChildByFieldName("bases")
	if baseList == nil {
		return nil, nil
	}

	var extends, implements []string
	for i := uint32(0); i < baseList.ChildCount(); i++ {
		child := baseList.Child(int(i))
		if child == nil {
			continue
		}

		var name string
		switch child.Type() {
		case "identifier", "qualified_name":
			name = cs.NodeText(child, source)
		case "generic_name":
			if head := cs.Walker().FindChildByType(child, "identifier"); head != nil {
				name = cs.NodeText(head, source)
			}
		default:
			continue
		}
		if name == "" {
			continue
		}

		if looksLikeInterface(lastDotted(name)) {
			implements = append(implements, name)
		} else {
			extends = append(extends, name)
		}
	}

	return extends, implements
}

func lastDotted(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}

func looksLikeInterface(name string) bool {
	return len(name) >= 2 && name[0] == 'I' && name[1] >= 'A' && name[1] <= 'Z'
}

func (cs *CSharp) members(typeNode *sitter.Node, source []byte, typeName string) []extract.Declaration {
	body := typeNode.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	var decls []extract.Declaration

	for _, node := range cs.Walker().CollectNodes(body, []string{"method_declaration", "constructor_declaration"}) {
		name := cs.NodeText(node.ChildByFieldName("name"), source)
		if name == "" {
			if node.Type() != "constructor_declaration" {
				continue
			}
			name = typeName
		}

		start, end := cs.Lines(node)
		decls = append(decls, extract.NewDeclaration(name, graph.EntityKindMethod, typeName, start, end))
	}

	for _, node := range cs.Walker().CollectDescendants(body, "property_declaration") {
		name := cs.NodeText(node.ChildByFieldName("name"), source)
		if name == "" {
			continue
		}
		start, end := cs.Lines(node)
		decls = append(decls, extract.NewDeclaration(name, graph.EntityKindField, typeName, start, end))
	}

	return decls
}

// Calls extracts call sites attributed to their enclosing method.
func (cs *CSharp) Calls(tree *sitter.Tree, source []byte) []extract.CallSite {
	if tree == nil {
		return nil
	}

	var sites []extract.CallSite

	for _, methodNode := range cs.Walker().CollectDescendants(tree.RootNode(), "method_declaration") {
		caller := cs.NodeText(methodNode.ChildByFieldName("name"), source)
		if caller == "" {
			continue
		}
		for _, classType := range csTypeNodes {
			if class := cs.Walker().EnclosingOfType(methodNode, classType); class != nil {
				if className := cs.NodeText(class.ChildByFieldName("name"), source); className != "" {
					caller = className + "." + caller
				}
				break
			}
		}

		for _, call := range cs.Walker().CollectDescendants(methodNode, "invocation_expression") {
			callee := cs.NodeText(call.ChildByFieldName("function"), source)
			if callee == "" {
				continue
			}
			sites = append(sites, extract.NewCallSite(caller, callee))
		}
	}

	return sites
}

// Imports extracts using directives.
func (cs *CSharp) Imports(tree *sitter.Tree, source []byte) []string {
	if tree == nil {
		return nil
	}

	var imports []string
	for _, node := range cs.Walker().CollectDescendants(tree.RootNode(), "using_directive") {
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			imports = append(imports, cs.NodeText(nameNode, source))
			continue
		}
		for _, id := range cs.Walker().CollectNodes(node, []string{"qualified_name", "identifier"}) {
			imports = append(imports, cs.NodeText(id, source))
			break
		}
	}
	return imports
}
