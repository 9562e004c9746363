// Command goanalyzer-semantic is the optional Semantic Helper Bridge
// process: it reads one JSON request from stdin, resolves the identifier
// at the given position using go/types, and writes one JSON response to
// stdout. Adapted from original_source/tools/goanalyzer-semantic/main.go,
// which already targets exactly this protocol; go/types is the standard
// library's own type checker, so no third-party dependency applies here.
package main

import (
	"encoding/json"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strconv"
)

type input struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Content string `json:"content"`
}

type pos struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

type rng struct {
	Start pos `json:"start"`
	End   pos `json:"end"`
}

type useEntry struct {
	Range    rng  `json:"range"`
	Reassign bool `json:"reassign"`
	Captured bool `json:"captured"`
}

type output struct {
	Name      string     `json:"name"`
	Decl      rng        `json:"decl"`
	Uses      []useEntry `json:"uses"`
	IsPointer bool       `json:"is_pointer"`
}

type typeSwitchTarget struct {
	declIdent *ast.Ident
	objects   []types.Object
}

func main() {
	var in input
	enc := json.NewEncoder(os.Stdout)
	if err := json.NewDecoder(os.Stdin).Decode(&in); err != nil {
		_ = enc.Encode((*output)(nil))
		return
	}
	_ = enc.Encode(resolve(in))
}

func resolve(in input) *output {
	if in.File == "" {
		return nil
	}

	filePath := in.File
	if abs, err := filepath.Abs(filePath); err == nil {
		filePath = abs
	}

	fset := token.NewFileSet()
	file, files := parsePackageFiles(fset, filePath, in.Content)
	if file == nil || len(files) == 0 {
		return nil
	}

	info := &types.Info{
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Implicits:  make(map[ast.Node]types.Object),
	}
	config := &types.Config{Importer: importer.Default(), Error: func(error) {}}
	_, _ = config.Check(file.Name.Name, fset, files, info)

	parents := buildParentMap(file)
	ident, selMap := findIdentAtPosition(fset, file, in.Line, in.Col)
	if ident == nil {
		return nil
	}

	obj := info.Defs[ident]
	if obj == nil {
		obj = info.Uses[ident]
	}
	if obj == nil {
		if sel := selMap[ident]; sel != nil {
			if selInfo := info.Selections[sel]; selInfo != nil {
				obj = selInfo.Obj()
			}
		}
	}

	var ts *typeSwitchTarget
	if obj == nil {
		ts = resolveTypeSwitchFromIdent(ident, info, parents)
		if ts == nil {
			return nil
		}
	} else {
		switch obj.(type) {
		case *types.Func, *types.TypeName, *types.PkgName, *types.Builtin, *types.Label:
			return nil
		}
	}

	if ts != nil {
		return outputForTypeSwitch(ts, info, fset, parents)
	}

	declIdent := findDeclIdent(info, obj)
	if declIdent == nil {
		ts = resolveTypeSwitchFromObj(obj, info, parents)
		if ts == nil || ts.declIdent == nil {
			return nil
		}
		return outputForTypeSwitch(ts, info, fset, parents)
	}

	decl := rangeForIdent(fset, declIdent)
	declFunc := enclosingFunc(declIdent, parents)
	uses := collectUses(info, fset, map[types.Object]bool{obj: true}, decl, declFunc, parents)

	return &output{Name: obj.Name(), Decl: decl, Uses: uses, IsPointer: isPointerType(obj.Type())}
}

func outputForTypeSwitch(ts *typeSwitchTarget, info *types.Info, fset *token.FileSet, parents map[ast.Node]ast.Node) *output {
	if ts.declIdent == nil {
		return nil
	}
	decl := rangeForIdent(fset, ts.declIdent)
	declFunc := enclosingFunc(ts.declIdent, parents)
	objSet := make(map[types.Object]bool, len(ts.objects))
	for _, o := range ts.objects {
		if o != nil {
			objSet[o] = true
		}
	}
	uses := collectUses(info, fset, objSet, decl, declFunc, parents)
	isPointer := false
	for _, o := range ts.objects {
		if isPointerType(o.Type()) {
			isPointer = true
			break
		}
	}
	return &output{Name: ts.declIdent.Name, Decl: decl, Uses: uses, IsPointer: isPointer}
}

func parsePackageFiles(fset *token.FileSet, targetFile, content string) (*ast.File, []*ast.File) {
	dir := filepath.Dir(targetFile)
	pkgs, err := parser.ParseDir(fset, dir, nil, parser.ParseComments)
	if err != nil {
		return parseSingleFile(fset, targetFile, content)
	}

	targetFile = filepath.Clean(targetFile)
	var targetPkg *ast.Package
	var targetAst *ast.File
	for _, pkg := range pkgs {
		for filename, f := range pkg.Files {
			if filepath.Clean(filename) == targetFile {
				targetPkg, targetAst = pkg, f
			}
		}
	}
	if targetPkg == nil {
		return parseSingleFile(fset, targetFile, content)
	}
	if content != "" {
		if parsed, err := parser.ParseFile(fset, targetFile, content, parser.ParseComments); err == nil {
			targetPkg.Files[targetFile] = parsed
			targetAst = parsed
		}
	}
	files := make([]*ast.File, 0, len(targetPkg.Files))
	for _, f := range targetPkg.Files {
		files = append(files, f)
	}
	return targetAst, files
}

func parseSingleFile(fset *token.FileSet, targetFile, content string) (*ast.File, []*ast.File) {
	var file *ast.File
	var err error
	if content != "" {
		file, err = parser.ParseFile(fset, targetFile, content, parser.ParseComments)
	} else {
		file, err = parser.ParseFile(fset, targetFile, nil, parser.ParseComments)
	}
	if err != nil || file == nil {
		return nil, nil
	}
	return file, []*ast.File{file}
}

func findIdentAtPosition(fset *token.FileSet, file *ast.File, line, col int) (*ast.Ident, map[*ast.Ident]*ast.SelectorExpr) {
	line++
	col++
	var best *ast.Ident
	bestSpan := 1 << 30
	selMap := make(map[*ast.Ident]*ast.SelectorExpr)

	ast.Inspect(file, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.SelectorExpr:
			if node.Sel != nil {
				selMap[node.Sel] = node
			}
		case *ast.Ident:
			p, e := fset.Position(node.Pos()), fset.Position(node.End())
			if p.Line != line || col < p.Column || col > e.Column {
				return true
			}
			if span := e.Column - p.Column; span < bestSpan {
				bestSpan, best = span, node
			}
		}
		return true
	})
	return best, selMap
}

func findDeclIdent(info *types.Info, obj types.Object) *ast.Ident {
	for ident, o := range info.Defs {
		if o == obj {
			return ident
		}
	}
	return nil
}

func collectUses(info *types.Info, fset *token.FileSet, objSet map[types.Object]bool, decl rng, declFunc ast.Node, parents map[ast.Node]ast.Node) []useEntry {
	uses := make([]useEntry, 0)
	seen := make(map[string]bool)

	add := func(r rng, reassign, captured bool) {
		key := keyForRange(r)
		if seen[key] || sameRange(r, decl) {
			return
		}
		seen[key] = true
		uses = append(uses, useEntry{Range: r, Reassign: reassign, Captured: captured})
	}

	for ident, o := range info.Uses {
		if objSet[o] {
			r := rangeForIdent(fset, ident)
			add(r, isReassign(ident, info, parents), isCaptured(ident, o, declFunc, parents))
		}
	}
	for sel, selInfo := range info.Selections {
		if selInfo != nil && objSet[selInfo.Obj()] {
			r := rangeForIdent(fset, sel.Sel)
			add(r, isReassign(sel.Sel, info, parents), isCaptured(sel.Sel, selInfo.Obj(), declFunc, parents))
		}
	}
	return uses
}

func resolveTypeSwitchFromIdent(ident *ast.Ident, info *types.Info, parents map[ast.Node]ast.Node) *typeSwitchTarget {
	ts := enclosingTypeSwitch(ident, parents)
	if ts == nil {
		return nil
	}
	guard := typeSwitchGuardIdent(ts)
	if guard == nil || guard != ident {
		return nil
	}
	return typeSwitchTargetFromStmt(ts, guard, info)
}

func resolveTypeSwitchFromObj(obj types.Object, info *types.Info, parents map[ast.Node]ast.Node) *typeSwitchTarget {
	if obj == nil {
		return nil
	}
	var ts *ast.TypeSwitchStmt
	for node, imp := range info.Implicits {
		if imp != obj {
			continue
		}
		if cc, ok := node.(*ast.CaseClause); ok {
			ts = enclosingTypeSwitch(cc, parents)
			break
		}
	}
	if ts == nil {
		return nil
	}
	guard := typeSwitchGuardIdent(ts)
	if guard == nil {
		return nil
	}
	return typeSwitchTargetFromStmt(ts, guard, info)
}

func typeSwitchTargetFromStmt(ts *ast.TypeSwitchStmt, guard *ast.Ident, info *types.Info) *typeSwitchTarget {
	var objs []types.Object
	if ts.Body != nil {
		for _, stmt := range ts.Body.List {
			if cc, ok := stmt.(*ast.CaseClause); ok {
				if obj := info.Implicits[cc]; obj != nil {
					objs = append(objs, obj)
				}
			}
		}
	}
	if len(objs) == 0 {
		return nil
	}
	return &typeSwitchTarget{declIdent: guard, objects: objs}
}

func enclosingTypeSwitch(node ast.Node, parents map[ast.Node]ast.Node) *ast.TypeSwitchStmt {
	for cur := node; cur != nil; cur = parents[cur] {
		if ts, ok := cur.(*ast.TypeSwitchStmt); ok {
			return ts
		}
	}
	return nil
}

func typeSwitchGuardIdent(ts *ast.TypeSwitchStmt) *ast.Ident {
	if ts == nil || ts.Assign == nil {
		return nil
	}
	if as, ok := ts.Assign.(*ast.AssignStmt); ok && len(as.Lhs) == 1 {
		if id, ok := as.Lhs[0].(*ast.Ident); ok {
			return id
		}
	}
	return nil
}

func rangeForIdent(fset *token.FileSet, ident *ast.Ident) rng {
	start, end := fset.Position(ident.Pos()), fset.Position(ident.End())
	return rng{
		Start: pos{Line: start.Line - 1, Col: start.Column - 1},
		End:   pos{Line: end.Line - 1, Col: end.Column - 1},
	}
}

func isPointerType(t types.Type) bool {
	if t == nil {
		return false
	}
	switch t.Underlying().(type) {
	case *types.Pointer, *types.Slice, *types.Map, *types.Chan, *types.Signature, *types.Interface:
		return true
	default:
		return false
	}
}

func sameRange(a, b rng) bool {
	return a.Start.Line == b.Start.Line && a.Start.Col == b.Start.Col &&
		a.End.Line == b.End.Line && a.End.Col == b.End.Col
}

func keyForRange(r rng) string {
	return strconv.Itoa(r.Start.Line) + ":" + strconv.Itoa(r.Start.Col) + ":" +
		strconv.Itoa(r.End.Line) + ":" + strconv.Itoa(r.End.Col)
}

func buildParentMap(root ast.Node) map[ast.Node]ast.Node {
	parents := make(map[ast.Node]ast.Node)
	var stack []ast.Node
	ast.Inspect(root, func(n ast.Node) bool {
		if n == nil {
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			return false
		}
		if len(stack) > 0 {
			parents[n] = stack[len(stack)-1]
		}
		stack = append(stack, n)
		return true
	})
	return parents
}

func enclosingFunc(node ast.Node, parents map[ast.Node]ast.Node) ast.Node {
	for cur := node; cur != nil; cur = parents[cur] {
		switch cur.(type) {
		case *ast.FuncLit, *ast.FuncDecl:
			return cur
		}
	}
	return nil
}

func isCaptured(ident *ast.Ident, obj types.Object, declFunc ast.Node, parents map[ast.Node]ast.Node) bool {
	useFunc := enclosingFunc(ident, parents)
	if useFunc == nil {
		return false
	}
	if _, ok := useFunc.(*ast.FuncLit); !ok {
		return false
	}
	if obj == nil || obj.Parent() == nil || obj.Pkg() == nil || obj.Parent() == obj.Pkg().Scope() {
		return false
	}
	return declFunc != nil && useFunc != declFunc
}

func isReassign(ident *ast.Ident, info *types.Info, parents map[ast.Node]ast.Node) bool {
	for n := ast.Node(ident); n != nil; n = parents[n] {
		switch stmt := parents[n].(type) {
		case *ast.AssignStmt:
			if !identIsAssignTargetInList(ident, stmt.Lhs) {
				return false
			}
			if stmt.Tok == token.DEFINE {
				return info.Defs[ident] == nil
			}
			return true
		case *ast.IncDecStmt:
			return identIsDirectTarget(ident, stmt.X)
		case *ast.RangeStmt:
			if !identIsDirectTarget(ident, stmt.Key) && !identIsDirectTarget(ident, stmt.Value) {
				return false
			}
			if stmt.Tok == token.DEFINE {
				return info.Defs[ident] == nil
			}
			return stmt.Tok == token.ASSIGN
		}
	}
	return false
}

func identIsAssignTargetInList(ident *ast.Ident, list []ast.Expr) bool {
	for _, expr := range list {
		if identIsDirectTarget(ident, expr) {
			return true
		}
	}
	return false
}

func identIsDirectTarget(ident *ast.Ident, expr ast.Expr) bool {
	switch e := expr.(type) {
	case *ast.Ident:
		return e == ident
	case *ast.SelectorExpr:
		return e.Sel == ident
	default:
		return false
	}
}
