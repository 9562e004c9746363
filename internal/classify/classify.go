// Package classify implements the Use Classifier: given a resolved Symbol,
// walk the CST once and emit a UseSite for every occurrence, in the
// priority order Declaration > Reassignment > Pointer > Captured > Use,
// grounded on the classification predicates in
// original_source/src/analysis.rs (is_variable_reassignment,
// is_variable_captured) and mirrored in
// original_source/tools/goanalyzer-semantic/main.go's isReassign/isCaptured.
package classify

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/goanalyzer/internal/model"
)

func toPosition(p tree_sitter.Point) model.Position {
	return model.Position{Line: int(p.Row), Character: int(p.Column)}
}

func nodeRange(n *tree_sitter.Node) model.Range {
	return model.Range{Start: toPosition(n.StartPosition()), End: toPosition(n.EndPosition())}
}

func sameSpan(a, b model.Range) bool {
	return a.Start == b.Start && a.End == b.End
}

// Classify walks root looking for every identifier occurrence that the
// scope tree resolves to sym, and returns one or more UseSites per
// occurrence (more than one when Reassignment and Captured both apply,
// per spec.md §4.5's rule 4 — the Decoration Composer picks the winner).
func Classify(root *tree_sitter.Node, source []byte, scopeRoot *model.Scope, sym *model.Symbol) []model.UseSite {
	var sites []model.UseSite
	walkIdentifiers(root, func(n *tree_sitter.Node) {
		if string(source[n.StartByte():n.EndByte()]) != sym.Name {
			return
		}
		pos := toPosition(n.StartPosition())
		resolved := scopeRoot.Innermost(pos).Lookup(sym.Name)
		if resolved != sym {
			return
		}
		sites = append(sites, classifyOccurrence(n, source, sym)...)
	})
	return sites
}

func walkIdentifiers(n *tree_sitter.Node, visit func(*tree_sitter.Node)) {
	if n.Kind() == "identifier" {
		visit(n)
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		if c := n.Child(uint(i)); c != nil {
			walkIdentifiers(c, visit)
		}
	}
}

func classifyOccurrence(n *tree_sitter.Node, source []byte, sym *model.Symbol) []model.UseSite {
	r := nodeRange(n)

	if sameSpan(r, sym.DeclRange) {
		return []model.UseSite{{Symbol: sym, Range: r, Classification: model.ClassDeclaration}}
	}

	// A redeclaration binding site (a name repeated on a short-decl LHS
	// that keeps the original Symbol) is Reassignment at the same
	// position, per spec.md §4.4's "Use followed by Reassignment" rule.
	for i, bs := range sym.BindingSites {
		if i == 0 {
			continue
		}
		if sameSpan(r, bs) {
			return []model.UseSite{{Symbol: sym, Range: r, Classification: model.ClassReassignment}}
		}
	}

	reassign := isReassignment(n)
	pointer := isPointerSite(n)
	captured := isCaptured(n, source, sym)

	switch {
	case reassign && captured:
		return []model.UseSite{
			{Symbol: sym, Range: r, Classification: model.ClassReassignment},
			{Symbol: sym, Range: r, Classification: model.ClassCaptured},
		}
	case reassign:
		return []model.UseSite{{Symbol: sym, Range: r, Classification: model.ClassReassignment}}
	case pointer:
		return []model.UseSite{{Symbol: sym, Range: r, Classification: model.ClassPointer}}
	case captured:
		return []model.UseSite{{Symbol: sym, Range: r, Classification: model.ClassCaptured}}
	default:
		return []model.UseSite{{Symbol: sym, Range: r, Classification: model.ClassUse}}
	}
}

// isReassignment reports whether n is the direct LHS target of an
// assignment form, the operand of ++/--, or the LHS of a `=`-form range
// clause. Being nested under an index, non-trivial selector chain,
// parentheses, or arithmetic does not count (spec.md §4.5 rule 2).
func isReassignment(n *tree_sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return false
	}
	// Assignment and range LHS targets sit inside an expression_list.
	if parent.Kind() == "expression_list" {
		if parent = parent.Parent(); parent == nil {
			return false
		}
	}
	switch parent.Kind() {
	case "inc_dec_statement":
		return true
	case "assignment_statement":
		return directlyIn(parent.ChildByFieldName("left"), n)
	case "range_clause":
		count := int(parent.ChildCount())
		for i := 0; i < count; i++ {
			if c := parent.Child(uint(i)); c != nil && c.Kind() == "=" {
				return directlyIn(parent.ChildByFieldName("left"), n)
			}
		}
	}
	return false
}

// directlyIn reports whether target is n itself or a direct element of an
// expression_list n (not nested inside an index/selector/paren/binary
// expression within that list).
func directlyIn(list *tree_sitter.Node, target *tree_sitter.Node) bool {
	if list == nil {
		return false
	}
	if list.StartByte() == target.StartByte() && list.EndByte() == target.EndByte() {
		return true
	}
	if list.Kind() != "expression_list" {
		return false
	}
	count := int(list.ChildCount())
	for i := 0; i < count; i++ {
		c := list.Child(uint(i))
		if c != nil && c.StartByte() == target.StartByte() && c.EndByte() == target.EndByte() {
			return true
		}
	}
	return false
}

// isPointerSite reports whether n sits directly under an address-of or
// dereference operator at this occurrence (spec.md §4.5 rule 3 — Pointer
// applies per-site, not per-Symbol, for non-declaration-typed cases).
func isPointerSite(n *tree_sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return false
	}
	if parent.Kind() != "unary_expression" {
		return false
	}
	op := parent.ChildByFieldName("operator")
	if op == nil {
		return false
	}
	switch op.Kind() {
	case "&", "*":
		return true
	}
	return false
}

// isCaptured reports whether n's enclosing function differs from the
// Symbol's declaring function, the Symbol is not package-level, and n
// sits inside a func_literal descending from the declaration's scope
// (spec.md §4.5 rule 4).
func isCaptured(n *tree_sitter.Node, source []byte, sym *model.Symbol) bool {
	if sym.DeclaredInScope != nil && sym.DeclaredInScope.Kind == model.ScopePackage {
		return false
	}
	lit := innermostFuncLiteral(n)
	if lit == nil {
		return false
	}
	// The use is in a different function than the declaration exactly when
	// the innermost literal around the use does not contain the declaration.
	return !nodeRange(lit).ContainsRange(sym.DeclRange)
}

func innermostFuncLiteral(n *tree_sitter.Node) *tree_sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == "func_literal" {
			return p
		}
		if p.Kind() == "function_declaration" || p.Kind() == "method_declaration" {
			return nil
		}
	}
	return nil
}
