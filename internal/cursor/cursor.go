// Package cursor implements the Cursor Locator: given a position, find the
// minimal-span identifier node that covers it (ties broken by deepest
// node), and classify the structural context the node sits in.
package cursor

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/goanalyzer/internal/model"
)

var identifierKinds = map[string]bool{
	"identifier":       true,
	"field_identifier": true,
	"type_identifier":  true,
	"package_identifier": true,
}

// Context classifies the structural position of a located identifier, used
// by the Scope & Declaration Resolver to pick a resolution rule.
type Context string

const (
	ContextExpression   Context = "expression"
	ContextSelectorField Context = "selector_field"
	ContextDeclLHS      Context = "decl_lhs"
	ContextTypeSwitchGuard Context = "type_switch_guard"
	ContextOther        Context = "other"
)

// Located is the result of a successful cursor lookup.
type Located struct {
	Node    *tree_sitter.Node
	Range   model.Range
	Name    string
	Context Context
}

// toPoint converts a model.Position to a tree-sitter Point. The analyzer
// treats Character as a byte column: Go source in the corpus this targets
// is ASCII-dominant, so UTF-16 and byte offsets coincide outside string
// literals containing multi-byte runes.
func toPoint(p model.Position) tree_sitter.Point {
	return tree_sitter.Point{Row: uint(p.Line), Column: uint(p.Character)}
}

func toPosition(p tree_sitter.Point) model.Position {
	return model.Position{Line: int(p.Row), Character: int(p.Column)}
}

func nodeRange(n *tree_sitter.Node) model.Range {
	return model.Range{Start: toPosition(n.StartPosition()), End: toPosition(n.EndPosition())}
}

// Locate finds the smallest identifier-kind node whose range contains pos.
func Locate(root *tree_sitter.Node, source []byte, pos model.Position) (*Located, bool) {
	target := toPoint(pos)
	leaf := deepestAt(root, target)
	if leaf == nil {
		return nil, false
	}

	node := leaf
	for node != nil && !identifierKinds[node.Kind()] {
		node = node.Parent()
	}
	if node == nil {
		return nil, false
	}

	return &Located{
		Node:    node,
		Range:   nodeRange(node),
		Name:    string(source[node.StartByte():node.EndByte()]),
		Context: classify(node),
	}, true
}

// deepestAt descends through children whose range contains target,
// returning the deepest such node (ties broken by depth, matching
// spec.md §4.3).
func deepestAt(n *tree_sitter.Node, target tree_sitter.Point) *tree_sitter.Node {
	if !withinRange(n, target) {
		return nil
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		c := n.Child(uint(i))
		if c == nil {
			continue
		}
		if deeper := deepestAt(c, target); deeper != nil {
			return deeper
		}
	}
	return n
}

func withinRange(n *tree_sitter.Node, p tree_sitter.Point) bool {
	start, end := n.StartPosition(), n.EndPosition()
	if p.Row < start.Row || (p.Row == start.Row && p.Column < start.Column) {
		return false
	}
	if p.Row > end.Row || (p.Row == end.Row && p.Column > end.Column) {
		return false
	}
	return true
}

// classify determines the structural context an identifier sits in, used
// to pick a resolution rule in the Scope & Declaration Resolver.
func classify(node *tree_sitter.Node) Context {
	parent := node.Parent()
	if parent == nil {
		return ContextOther
	}
	switch parent.Kind() {
	case "selector_expression":
		if field := parent.ChildByFieldName("field"); field != nil && field.StartByte() == node.StartByte() {
			return ContextSelectorField
		}
		return ContextExpression
	case "short_var_declaration", "var_spec":
		return ContextDeclLHS
	case "type_switch_guard":
		return ContextTypeSwitchGuard
	default:
		return ContextExpression
	}
}
