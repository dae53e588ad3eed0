package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/archielabs/archie/domain/graph"
	"github.com/archielabs/archie/infrastructure/extract"
)

// Rust implements Analyzer for Rust code.
type Rust struct {
	Base
}

// NewRust creates a new Rust analyzer.
func NewRust() *Rust {
	return &Rust{
		Base: NewBase(extract.NewLanguage("rust", []string{".rs"}, rust.GetLanguage())),
	}
}

// Namespace returns the dotted directory path.
func (r *Rust) Namespace(file extract.ParsedFile) string {
	return r.NamespaceFromPath(file.Path())
}

// Declarations extracts structs, enums, traits, functions, and impl-block
// methods. Trait impls are attached to their types as implements edges.
func (r *Rust) Declarations(tree *sitter.Tree, source []byte) []extract.Declaration {
	if tree == nil {
		return nil
	}
	root := tree.RootNode()

	traitsByType := r.traitImpls(root, source)

	var decls []extract.Declaration

	for _, node := range r.Walker().CollectNodes(root, []string{"struct_item", "enum_item"}) {
		name := r.NodeText(node.ChildByFieldName("name"), source)
		if name == "" {
			continue
		}

		kind := graph.EntityKindStruct
		if node.Type() == "enum_item" {
			kind = graph.EntityKindEnum
		}

		start, end := r.Lines(node)
		decl := extract.NewDeclaration(name, kind, "", start, end).
			WithSupertypes(nil, traitsByType[name])

		refs, fields := r.structFields(node, source, name)
		decl = decl.WithTypeRefs(refs)

		decls = append(decls, decl)
		decls = append(decls, fields...)
	}

	for _, node := range r.Walker().CollectDescendants(root, "trait_item") {
		name := r.NodeText(node.ChildByFieldName("name"), source)
		if name == "" {
			continue
		}
		start, end := r.Lines(node)
		decls = append(decls, extract.NewDeclaration(name, graph.EntityKindInterface, "", start, end))
	}

	for _, node := range r.Walker().CollectDescendants(root, "type_item") {
		name := r.NodeText(node.ChildByFieldName("name"), source)
		if name == "" {
			continue
		}
		start, end := r.Lines(node)
		decls = append(decls, extract.NewDeclaration(name, graph.EntityKindValueObject, "", start, end))
	}

	for _, node := range r.Walker().CollectDescendants(root, "function_item") {
		name := r.NodeText(node.ChildByFieldName("name"), source)
		if name == "" {
			continue
		}

		start, end := r.Lines(node)

		if implType := r.enclosingImplType(node, source); implType != "" {
			decls = append(decls, extract.NewDeclaration(name, graph.EntityKindMethod, implType, start, end))
			continue
		}

		decls = append(decls, extract.NewDeclaration(name, graph.EntityKindFunction, "", start, end))
	}

	return decls
}

// traitImpls maps type names to the traits their impl blocks implement.
func (r *Rust) traitImpls(root *sitter.Node, source []byte) map[string][]string {
	traits := make(map[string][]string)

	for _, implNode := range r.Walker().CollectDescendants(root, "impl_item") {
		traitNode := implNode.ChildByFieldName("trait")
		if traitNode == nil {
			continue
		}

		typeName := r.implTypeName(implNode, source)
		traitName := r.NodeText(traitNode, source)
		if typeName == "" || traitName == "" {
			continue
		}

		traits[typeName] = append(traits[typeName], traitName)
	}

	return traits
}

func (r *Rust) implTypeName(implNode *sitter.Node, source []byte) string {
	typeNode := implNode.ChildByFieldName("type")
	if typeNode == nil {
		return ""
	}

	var typeName string
	r.Walker().Walk(typeNode, func(n *sitter.Node) bool {
		if n.Type() == "type_identifier" {
			typeName = r.NodeText(n, source)
			return false
		}
		return true
	})
	return typeName
}

func (r *Rust) enclosingImplType(node *sitter.Node, source []byte) string {
	implNode := r.Walker().EnclosingOfType(node, "impl_item")
	if implNode == nil {
		return ""
	}
	return r.implTypeName(implNode, source)
}

func (r *Rust) structFields(node *sitter.Node, source []byte, structName string) ([]string, []extract.Declaration) {
	body := node.ChildByFieldName("body")
	if body == nil {
		return nil, nil
	}

	var (
		refs   []string
		fields []extract.Declaration
	)

	for _, fieldNode := range r.Walker().CollectDescendants(body, "field_declaration") {
		nameNode := fieldNode.ChildByFieldName("name")
		typeNode := fieldNode.ChildByFieldName("type")

		for _, ref := range r.Walker().CollectDescendants(typeNode, "type_identifier") {
			refs = append(refs, r.NodeText(ref, source))
		}

		if nameNode != nil {
			start, end := r.Lines(fieldNode)
			fields = append(fields, extract.NewDeclaration(r.NodeText(nameNode, source), graph.EntityKindField, structName, start, end))
		}
	}

	return refs, fields
}

// Calls extracts call sites attributed to their enclosing function.
func (r *Rust) Calls(tree *sitter.Tree, source []byte) []extract.CallSite {
	if tree == nil {
		return nil
	}

	var sites []extract.CallSite

	for _, funcNode := range r.Walker().CollectDescendants(tree.RootNode(), "function_item") {
		caller := r.NodeText(funcNode.ChildByFieldName("name"), source)
		if caller == "" {
			continue
		}
		if implType := r.enclosingImplType(funcNode, source); implType != "" {
			caller = implType + "." + caller
		}

		for _, call := range r.Walker().CollectDescendants(funcNode, "call_expression") {
			callee := r.NodeText(call.ChildByFieldName("function"), source)
			if callee == "" {
				continue
			}
			sites = append(sites, extract.NewCallSite(caller, strings.ReplaceAll(callee, "::", ".")))
		}
	}

	return sites
}

// Imports extracts use declarations with path separators normalized.
func (r *Rust) Imports(tree *sitter.Tree, source []byte) []string {
	if tree == nil {
		return nil
	}

	var imports []string
	for _, node := range r.Walker().CollectDescendants(tree.RootNode(), "use_declaration") {
		arg := node.ChildByFieldName("argument")
		if arg == nil {
			continue
		}
		path := strings.ReplaceAll(r.NodeText(arg, source), "::", ".")
		imports = append(imports, path)
	}
	return imports
}
