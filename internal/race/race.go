// Package race implements the Concurrency Analyzer: finds every
// ConcurrentLaunch (`go` statement), computes its free-variable set, and
// classifies accesses to a queried Symbol as RaceHigh, RaceLow or no race.
//
// The lock-depth witness algorithm is ported from
// original_source/src/analysis.rs's has_active_lock_for_target: lock/unlock
// calls on a receiver are sorted by byte offset, and a running depth is
// incremented on Lock/RLock and decremented on Unlock/RUnlock, except a
// deferred unlock (detected by an ancestor defer_statement) never
// decrements, so it covers the remainder of the enclosing function body.
package race

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/goanalyzer/internal/model"
)

// lockEventKind is one syntactic synchronization operation recognized on a
// receiver expression.
type lockEventKind string

const (
	eventLock     lockEventKind = "lock"
	eventUnlock   lockEventKind = "unlock"
	eventRLock    lockEventKind = "rlock"
	eventRUnlock  lockEventKind = "runlock"
	eventAtomic   lockEventKind = "atomic"
	eventChanOp   lockEventKind = "chanop"
	eventWGWait   lockEventKind = "wgwait"
)

type lockEvent struct {
	receiver string
	kind     lockEventKind
	offset   uint
	deferred bool
}

var mutexMethods = map[string]lockEventKind{
	"Lock":     eventLock,
	"Unlock":   eventUnlock,
	"RLock":    eventRLock,
	"RUnlock":  eventRUnlock,
}

// Launch is a `go` statement with the identifiers it reads from the
// enclosing scope (its free-variable set).
type Launch struct {
	Node      *tree_sitter.Node
	Range     model.Range
	FreeNames map[string]bool
}

// FindLaunches returns every go_statement under root.
func FindLaunches(root *tree_sitter.Node, source []byte) []Launch {
	var launches []Launch
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n.Kind() == "go_statement" {
			launches = append(launches, Launch{
				Node:      n,
				Range:     nodeRange(n),
				FreeNames: freeNames(n, source),
			})
		}
		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			if c := n.Child(uint(i)); c != nil {
				walk(c)
			}
		}
	}
	walk(root)
	return launches
}

// freeNames collects every identifier referenced under a go_statement's
// callee, excluding the callee's own declared parameter names (a coarse
// but sound-enough approximation of the free-variable set: anything not
// bound as a parameter of the launched closure/function is treated as
// captured from the enclosing scope).
func freeNames(goStmt *tree_sitter.Node, source []byte) map[string]bool {
	bound := map[string]bool{}
	free := map[string]bool{}

	var collectBound func(n *tree_sitter.Node)
	collectBound = func(n *tree_sitter.Node) {
		if n.Kind() == "parameter_declaration" {
			names := int(n.ChildCount())
			for i := 0; i < names; i++ {
				if c := n.Child(uint(i)); c != nil && c.Kind() == "identifier" {
					bound[text(source, c)] = true
				}
			}
		}
		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			if c := n.Child(uint(i)); c != nil {
				collectBound(c)
			}
		}
	}

	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n.Kind() == "func_literal" {
			if params := n.ChildByFieldName("parameters"); params != nil {
				collectBound(params)
			}
		}
		if n.Kind() == "identifier" {
			name := text(source, n)
			if !bound[name] {
				free[name] = true
			}
		}
		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			if c := n.Child(uint(i)); c != nil {
				walk(c)
			}
		}
	}
	walk(goStmt)
	return free
}

// AccessKind distinguishes a write-like access (Reassignment/Pointer) from
// a read-like one, driving the RaceHigh write-or-address-taking condition.
type AccessKind int

const (
	AccessRead AccessKind = iota
	AccessWrite
)

// Access is one occurrence of the queried Symbol relevant to race
// classification.
type Access struct {
	Node         *tree_sitter.Node
	Range        model.Range
	Offset       uint
	Kind         AccessKind
	InsideLaunch bool
	InLoop       bool
	FuncRoot     *tree_sitter.Node // enclosing function/method/literal node
}

// AccessSeverity is the race outcome for one specific access site, keyed by
// its span so the caller can stamp only that UseSite rather than every
// UseSite of the Symbol (spec.md §8 Testable Property #1: Declaration and
// plain Use sites must never be repainted as a race just because some other
// occurrence of the same Symbol races).
type AccessSeverity struct {
	Range    model.Range
	Severity model.RaceSeverity
	Note     string
}

// Classify computes per-access race severities for sym's write/address-
// taking access sites (derived from the Use Classifier's output) given the
// set of launches that reference it. Read and Declaration sites never
// appear in the result: spec.md §4.6 defines RaceHigh/RaceLow only for a
// write or address-taking access, never for the occurrence that merely
// reads or declares the Symbol.
func Classify(source []byte, sym *model.Symbol, accesses []Access, launches []Launch) []AccessSeverity {
	var outsideWrite, outsideAny bool
	var launchWrite bool
	for _, a := range accesses {
		if a.InsideLaunch {
			if a.Kind == AccessWrite {
				launchWrite = true
			}
			continue
		}
		outsideAny = true
		if a.Kind == AccessWrite {
			outsideWrite = true
		}
	}

	referencedByLaunch := false
	for _, l := range launches {
		if l.FreeNames[sym.Name] {
			referencedByLaunch = true
			break
		}
	}
	if !referencedByLaunch {
		return nil
	}

	concurrentReachable := len(launches) > 1 || outsideAny
	if !launchWrite && !outsideWrite {
		return nil
	}
	if !concurrentReachable {
		return nil
	}

	return accessSeverities(source, accesses)
}

// accessSeverities classifies each write access independently: it is
// RaceLow if an atomic wrapper or a matching synchronization witness covers
// that specific occurrence, RaceLow with a "mixed atomic" note if some
// other write to the same Symbol uses atomic and this one is unguarded, and
// RaceHigh otherwise.
const mixedAtomicNote = "mixed atomic: unguarded plain access alongside an atomic operation on the same symbol"

func accessSeverities(source []byte, accesses []Access) []AccessSeverity {
	var writes []Access
	for _, a := range accesses {
		if a.Kind == AccessWrite {
			writes = append(writes, a)
		}
	}

	anyAtomic := false
	for _, a := range writes {
		if a.FuncRoot != nil && isAtomicWrapped(a, a.FuncRoot, source) {
			anyAtomic = true
			break
		}
	}

	eventsByFunc := map[uintptr][]lockEvent{}
	for _, a := range writes {
		if a.FuncRoot == nil {
			continue
		}
		key := uintptr(a.FuncRoot.StartByte())
		if _, ok := eventsByFunc[key]; !ok {
			eventsByFunc[key] = collectLockEvents(a.FuncRoot, source)
		}
	}

	var out []AccessSeverity
	for _, a := range writes {
		// A write with no known enclosing function has no lock scope to
		// check against, so it can't be verified as covered.
		if a.FuncRoot == nil {
			if anyAtomic {
				out = append(out, AccessSeverity{a.Range, model.RaceLow, mixedAtomicNote})
			} else {
				out = append(out, AccessSeverity{a.Range, model.RaceHigh, ""})
			}
			continue
		}
		if isAtomicWrapped(a, a.FuncRoot, source) {
			out = append(out, AccessSeverity{a.Range, model.RaceLow, "atomic operation"})
			continue
		}
		receiver := accessReceiver(source, a.Node)
		events := eventsByFunc[uintptr(a.FuncRoot.StartByte())]
		if anyActiveLock(events, a.Offset, receiver) {
			out = append(out, AccessSeverity{a.Range, model.RaceLow, "mutex-guarded"})
			continue
		}
		if anyAtomic {
			out = append(out, AccessSeverity{a.Range, model.RaceLow, mixedAtomicNote})
			continue
		}
		out = append(out, AccessSeverity{a.Range, model.RaceHigh, ""})
	}
	return out
}

// accessReceiver returns the selector operand text when n is the field
// child of a selector_expression (e.g. "x" in "x.counter"), identifying
// which aggregate instance a field access belongs to so the colocated-
// mutex lookup in anyActiveLock can scope to it. Returns "" for a bare
// identifier access, which has no aggregate to scope to.
func accessReceiver(source []byte, n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	parent := n.Parent()
	if parent == nil || parent.Kind() != "selector_expression" {
		return ""
	}
	field := parent.ChildByFieldName("field")
	if field == nil || field.StartByte() != n.StartByte() {
		return ""
	}
	operand := parent.ChildByFieldName("operand")
	if operand == nil {
		return ""
	}
	return text(source, operand)
}

// collectLockEvents gathers Lock/Unlock/RLock/RUnlock calls within fn,
// sorted by byte offset, tagging deferred unlocks so they never close the
// covering window.
func collectLockEvents(fn *tree_sitter.Node, source []byte) []lockEvent {
	var events []lockEvent
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n.Kind() == "call_expression" {
			if ev, ok := mutexEvent(n, source); ok {
				ev.deferred = hasDeferAncestor(n, fn)
				events = append(events, ev)
			}
		}
		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			if c := n.Child(uint(i)); c != nil {
				walk(c)
			}
		}
	}
	walk(fn)
	// insertion order from a single depth-first walk is already
	// byte-offset ascending for a well-formed tree.
	return events
}

func mutexEvent(call *tree_sitter.Node, source []byte) (lockEvent, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "selector_expression" {
		return lockEvent{}, false
	}
	field := fn.ChildByFieldName("field")
	operand := fn.ChildByFieldName("operand")
	if field == nil || operand == nil {
		return lockEvent{}, false
	}
	kind, ok := mutexMethods[text(source, field)]
	if !ok {
		return lockEvent{}, false
	}
	return lockEvent{receiver: text(source, operand), kind: kind, offset: call.StartByte()}, true
}

func hasDeferAncestor(n, limit *tree_sitter.Node) bool {
	for p := n.Parent(); p != nil && p.StartByte() != limit.StartByte(); p = p.Parent() {
		if p.Kind() == "defer_statement" {
			return true
		}
	}
	return false
}

// anyActiveLock reports whether, scanning lock events up to offset in byte
// order, the lock guarding target has a positive depth at that point. When
// target is a field access's receiver (e.g. "x" for "x.counter"), only
// events on "x" itself or on another field of the same instance (receiver
// text "x.<something>", the syntactic colocated-mutex pattern "x.mu.Lock()")
// count — a lock on an unrelated receiver never covers the access. When
// target is "" (a bare identifier with no aggregate to scope to), any
// receiver's lock counts, since there's no colocated mutex to look up; this
// is the accepted simplification documented in DESIGN.md.
func anyActiveLock(events []lockEvent, offset uint, target string) bool {
	depth := 0
	for _, e := range events {
		if e.offset > offset {
			break
		}
		if !receiverMatches(e.receiver, target) {
			continue
		}
		switch e.kind {
		case eventLock, eventRLock:
			depth++
		case eventUnlock, eventRUnlock:
			if !e.deferred {
				depth--
			}
		}
	}
	return depth > 0
}

func receiverMatches(eventReceiver, target string) bool {
	if target == "" {
		return true
	}
	return eventReceiver == target || strings.HasPrefix(eventReceiver, target+".")
}

// isAtomicWrapped reports whether a's node sits inside a call whose callee
// is a selector on the literal package identifier "atomic" (sync/atomic's
// AddInt32/StoreInt64/CompareAndSwap* family). Method calls on atomic-typed
// values such as atomic.Int32 are not recognized.
func isAtomicWrapped(a Access, fn *tree_sitter.Node, source []byte) bool {
	if a.Node == nil {
		return false
	}
	for p := a.Node.Parent(); p != nil && p.StartByte() >= fn.StartByte(); p = p.Parent() {
		if p.Kind() != "call_expression" {
			continue
		}
		callee := p.ChildByFieldName("function")
		if callee == nil || callee.Kind() != "selector_expression" {
			continue
		}
		operand := callee.ChildByFieldName("operand")
		if operand != nil && text(source, operand) == "atomic" {
			return true
		}
	}
	return false
}

// EnclosingFuncAt descends to the deepest node covering pos and walks up
// to the nearest function_declaration/method_declaration/func_literal
// ancestor, returning nil if pos sits at package scope.
func EnclosingFuncAt(root *tree_sitter.Node, pos model.Position) *tree_sitter.Node {
	target := tree_sitter.Point{Row: uint(pos.Line), Column: uint(pos.Character)}
	leaf := deepestAt(root, target)
	if leaf == nil {
		return nil
	}
	for p := leaf; p != nil; p = p.Parent() {
		switch p.Kind() {
		case "function_declaration", "method_declaration", "func_literal":
			return p
		}
	}
	return nil
}

func deepestAt(n *tree_sitter.Node, target tree_sitter.Point) *tree_sitter.Node {
	start, end := n.StartPosition(), n.EndPosition()
	if target.Row < start.Row || (target.Row == start.Row && target.Column < start.Column) {
		return nil
	}
	if target.Row > end.Row || (target.Row == end.Row && target.Column > end.Column) {
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

// IsInsideLaunch reports whether n descends from a go_statement.
func IsInsideLaunch(n *tree_sitter.Node) bool {
	for p := n; p != nil; p = p.Parent() {
		if p.Kind() == "go_statement" {
			return true
		}
	}
	return false
}

// NodeAt returns the deepest identifier node starting at pos, used to
// recover the CST node for an Access built from a Use Classifier Range.
func NodeAt(root *tree_sitter.Node, pos model.Position) *tree_sitter.Node {
	target := tree_sitter.Point{Row: uint(pos.Line), Column: uint(pos.Character)}
	leaf := deepestAt(root, target)
	for n := leaf; n != nil; n = n.Parent() {
		if n.Kind() == "identifier" {
			return n
		}
	}
	return nil
}

func nodeRange(n *tree_sitter.Node) model.Range {
	sp, ep := n.StartPosition(), n.EndPosition()
	return model.Range{
		Start: model.Position{Line: int(sp.Row), Character: int(sp.Column)},
		End:   model.Position{Line: int(ep.Row), Character: int(ep.Column)},
	}
}

func text(source []byte, n *tree_sitter.Node) string {
	return string(source[n.StartByte():n.EndByte()])
}
