// Package scope implements the Scope & Declaration Resolver: it builds the
// lazy scope tree and identifier-to-Symbol map for a parsed file, in one
// recursive walk grounded on the ScopeManager idiom from the teacher's
// internal/symbollinker/extractor.go (PushScope/PopScope/CurrentScope),
// adapted from a multi-language visitor into a Go-only declaration walk.
package scope

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/goanalyzer/internal/model"
)

// Manager owns the scope stack during a single resolve pass, mirroring the
// teacher's ScopeManager push/pop discipline.
type Manager struct {
	source []byte
	root   *model.Scope
	stack  []*model.Scope

	// funcStack names the enclosing function/method/literal at each
	// nesting depth, innermost last.
	funcStack []string
}

func toPosition(p tree_sitter.Point) model.Position {
	return model.Position{Line: int(p.Row), Character: int(p.Column)}
}

func nodeRange(n *tree_sitter.Node) model.Range {
	return model.Range{Start: toPosition(n.StartPosition()), End: toPosition(n.EndPosition())}
}

func text(source []byte, n *tree_sitter.Node) string {
	return string(source[n.StartByte():n.EndByte()])
}

// Build walks the CST once, producing the root (package) scope with the
// full nested scope tree and declaration map populated.
func Build(root *tree_sitter.Node, source []byte) *model.Scope {
	m := &Manager{source: source}
	m.root = &model.Scope{Kind: model.ScopePackage, Range: nodeRange(root)}
	m.stack = []*model.Scope{m.root}
	m.walk(root)
	return m.root
}

func (m *Manager) current() *model.Scope { return m.stack[len(m.stack)-1] }

func (m *Manager) push(kind model.ScopeKind, n *tree_sitter.Node) *model.Scope {
	parent := m.current()
	enclosing := parent.EnclosingFunc
	if len(m.funcStack) > 0 {
		enclosing = m.funcStack[len(m.funcStack)-1]
	}
	s := &model.Scope{Kind: kind, Range: nodeRange(n), Parent: parent, EnclosingFunc: enclosing}
	parent.Children = append(parent.Children, s)
	m.stack = append(m.stack, s)
	return s
}

func (m *Manager) pop() {
	m.stack = m.stack[:len(m.stack)-1]
}

// walk recurses over the CST, pushing/popping scopes for the shapes
// spec.md §3 lists (function body, block, for-init, for-range, if-init,
// switch-init, type-switch-guard, function literal) and recording
// declarations as it encounters them.
func (m *Manager) walk(n *tree_sitter.Node) {
	switch n.Kind() {
	case "function_declaration", "method_declaration":
		name := ""
		if id := n.ChildByFieldName("name"); id != nil {
			name = text(m.source, id)
		}
		m.funcStack = append(m.funcStack, name)
		params := m.paramNodes(n)
		if body := n.ChildByFieldName("body"); body != nil {
			m.push(model.ScopeFunctionBody, body)
			for _, p := range params {
				m.declareOne(p)
			}
			m.walkChildren(body)
			m.pop()
		}
		m.funcStack = m.funcStack[:len(m.funcStack)-1]
		return

	case "func_literal":
		m.funcStack = append(m.funcStack, "<anonymous>")
		params := m.paramNodes(n)
		if body := n.ChildByFieldName("body"); body != nil {
			m.push(model.ScopeFuncLiteral, body)
			for _, p := range params {
				m.declareOne(p)
			}
			m.walkChildren(body)
			m.pop()
		}
		m.funcStack = m.funcStack[:len(m.funcStack)-1]
		return

	case "block":
		// function/literal bodies are handled above via ChildByFieldName;
		// only push a fresh block scope for nested blocks (if/for/switch
		// bodies reached through generic recursion).
		m.push(model.ScopeBlock, n)
		m.walkChildren(n)
		m.pop()
		return

	case "for_statement":
		m.handleFor(n)
		return

	case "if_statement":
		m.handleIf(n)
		return

	case "expression_switch_statement", "type_switch_statement":
		m.handleSwitch(n)
		return

	case "short_var_declaration":
		m.declareShortVar(n)

	case "var_declaration", "const_declaration":
		m.declareVarSpecs(n)

	case "type_switch_guard":
		m.declareTypeSwitchGuard(n)
	}

	m.walkChildren(n)
}

func (m *Manager) walkChildren(n *tree_sitter.Node) {
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		if c := n.Child(uint(i)); c != nil {
			m.walk(c)
		}
	}
}

func (m *Manager) handleFor(n *tree_sitter.Node) {
	body := n.ChildByFieldName("body")
	kind := model.ScopeForInit

	// range clause: `for k, v := range expr { ... }`
	if rangeNode := firstChildOfKind(n, "range_clause"); rangeNode != nil {
		kind = model.ScopeForRange
	}

	// the scope spans the whole for statement so init/range vars are
	// visible in the body.
	m.push(kind, n)

	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		c := n.Child(uint(i))
		if c == nil || (body != nil && c.StartByte() == body.StartByte()) {
			continue
		}
		m.declareForClauseVars(c)
		m.walk(c)
	}
	if body != nil {
		m.walkChildren(body)
	}
	m.pop()
}

func (m *Manager) declareForClauseVars(n *tree_sitter.Node) {
	switch n.Kind() {
	case "range_clause":
		left := n.ChildByFieldName("left")
		if left != nil {
			m.declareNamesIn(left, model.ClassDeclaration)
		}
	}
}

func (m *Manager) handleIf(n *tree_sitter.Node) {
	m.push(model.ScopeIfInit, n)
	if init := n.ChildByFieldName("initializer"); init != nil {
		m.walk(init)
	}
	if cond := n.ChildByFieldName("condition"); cond != nil {
		m.walk(cond)
	}
	if cons := n.ChildByFieldName("consequence"); cons != nil {
		m.walk(cons)
	}
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		m.walk(alt)
	}
	m.pop()
}

func (m *Manager) handleSwitch(n *tree_sitter.Node) {
	m.push(model.ScopeSwitchInit, n)
	if init := n.ChildByFieldName("initializer"); init != nil {
		m.walk(init)
	}
	if n.Kind() == "type_switch_statement" {
		if guard := firstChildOfKind(n, "type_switch_guard"); guard != nil {
			m.declareTypeSwitchGuard(guard)
		}
	} else if val := n.ChildByFieldName("value"); val != nil {
		m.walk(val)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		m.walkChildren(body)
	}
	m.pop()
}

// declareTypeSwitchGuard declares a single logical Symbol for the guard
// name (spec.md §4.4): `switch v := x.(type) { case T: ... }` binds one
// Symbol whose binding sites include the guard and every case clause.
func (m *Manager) declareTypeSwitchGuard(n *tree_sitter.Node) {
	// `identifier := expression` inside the guard node.
	var name string
	var declRange model.Range
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		c := n.Child(uint(i))
		if c != nil && c.Kind() == "identifier" {
			name = text(m.source, c)
			declRange = nodeRange(c)
			break
		}
	}
	if name == "" {
		return
	}
	sym := &model.Symbol{
		Name:          name,
		DeclRange:     declRange,
		EnclosingFunc: currentFunc(m),
		BindingSites:  []model.Range{declRange},
	}
	sym.DeclaredInScope = m.current()
	m.current().Declare(name, sym)
}

func currentFunc(m *Manager) string {
	if len(m.funcStack) == 0 {
		return ""
	}
	return m.funcStack[len(m.funcStack)-1]
}

func firstChildOfKind(n *tree_sitter.Node, kind string) *tree_sitter.Node {
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		if c := n.Child(uint(i)); c != nil && c.Kind() == kind {
			return c
		}
	}
	return nil
}

// declareShortVar handles `a, b := f()`: each new name on the left becomes
// a Declaration; a name that already exists in the current scope (Go's
// partial-redeclaration rule) keeps its original Symbol and gains a binding
// site, which the classifier reports as a Reassignment, per spec.md §4.4.
func (m *Manager) declareShortVar(n *tree_sitter.Node) {
	left := n.ChildByFieldName("left")
	if left == nil {
		return
	}
	m.declareNamesIn(left, model.ClassDeclaration)
}

func (m *Manager) declareVarSpecs(n *tree_sitter.Node) {
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		spec := n.Child(uint(i))
		if spec == nil || (spec.Kind() != "var_spec" && spec.Kind() != "const_spec") {
			continue
		}
		if nameList := spec.ChildByFieldName("name"); nameList != nil {
			m.declareNamesIn(nameList, model.ClassDeclaration)
		}
	}
}

// declareNamesIn declares every identifier directly under n (handles both
// a single identifier field and an expression_list of them).
func (m *Manager) declareNamesIn(n *tree_sitter.Node, _ model.UseClassification) {
	if n.Kind() == "identifier" {
		m.declareOne(n)
		return
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		c := n.Child(uint(i))
		if c != nil && c.Kind() == "identifier" {
			m.declareOne(c)
		}
	}
}

func (m *Manager) declareOne(id *tree_sitter.Node) {
	name := text(m.source, id)
	if name == "_" {
		return
	}
	scope := m.current()
	if existing, ok := scope.Symbols[name]; ok {
		// partial redeclaration: keep the original Symbol, just add a
		// binding site; the classifier treats this occurrence as a
		// Reassignment.
		existing.BindingSites = append(existing.BindingSites, nodeRange(id))
		return
	}
	sym := &model.Symbol{
		Name:            name,
		DeclRange:       nodeRange(id),
		EnclosingFunc:   currentFunc(m),
		BindingSites:    []model.Range{nodeRange(id)},
		DeclaredInScope: scope,
	}
	scope.Declare(name, sym)
}

// paramNodes collects the identifier nodes for a function/method/literal's
// receiver, parameters and named results. These sit outside the body node
// syntactically but are visible throughout it, so the caller declares them
// into the body scope right after pushing it.
func (m *Manager) paramNodes(n *tree_sitter.Node) []*tree_sitter.Node {
	var out []*tree_sitter.Node
	collect := func(field string) {
		if fn := n.ChildByFieldName(field); fn != nil {
			out = append(out, collectParamNames(fn)...)
		}
	}
	collect("receiver")
	collect("parameters")
	collect("result")
	return out
}

func collectParamNames(n *tree_sitter.Node) []*tree_sitter.Node {
	if n.Kind() == "parameter_declaration" {
		// `a, b int` carries one identifier child per name; the type is
		// never an identifier node.
		var names []*tree_sitter.Node
		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			if c := n.Child(uint(i)); c != nil && c.Kind() == "identifier" {
				names = append(names, c)
			}
		}
		return names
	}
	if n.Kind() == "identifier" {
		return []*tree_sitter.Node{n}
	}
	var out []*tree_sitter.Node
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		if c := n.Child(uint(i)); c != nil {
			out = append(out, collectParamNames(c)...)
		}
	}
	return out
}

// Resolve looks up name starting at the innermost scope containing pos.
func Resolve(root *model.Scope, pos model.Position, name string) *model.Symbol {
	return root.Innermost(pos).Lookup(name)
}
