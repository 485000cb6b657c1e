// Package evaluator implements SPEC_FULL.md §4.J: the tree-walking
// interpreter that evaluates internal/jsast trees against the DOM arena,
// dispatches events, schedules timers and microtasks, and carries the
// built-in value surface. The package plays the role cryguy-worker
// delegates to an embedded engine: its globals-wired-at-bootstrap shape
// (webapi.SetupGlobals over a JSRuntime) is kept, but the engine behind
// the globals is this package itself.
package evaluator

import (
	"fmt"

	"github.com/cryguy/domharness/internal/dispatch"
	"github.com/cryguy/domharness/internal/dom"
	"github.com/cryguy/domharness/internal/jsast"
	"github.com/cryguy/domharness/internal/jsparser"
	"github.com/cryguy/domharness/internal/jsvalue"
	"github.com/cryguy/domharness/internal/listener"
	"github.com/cryguy/domharness/internal/platform"
	"github.com/cryguy/domharness/internal/scheduler"
	"github.com/cryguy/domharness/internal/urlparts"
)

// RuntimeError is the ScriptRuntime error kind at the evaluator boundary:
// type/shape errors, unknown variables, bad arity, scheduler overflow.
type RuntimeError struct{ Msg string }

func (e *RuntimeError) Error() string { return e.Msg }

func rtErrf(format string, args ...any) error {
	return &RuntimeError{Msg: fmt.Sprintf(format, args...)}
}

// ThrownError carries a user `throw` value up the normal return path
// (spec.md §4.J "Throw/try").
type ThrownError struct{ Value jsvalue.Value }

func (e *ThrownError) Error() string {
	return "uncaught script exception: " + exceptionMessage(e.Value)
}

func exceptionMessage(v jsvalue.Value) string {
	if v.Kind() == jsvalue.KindObject {
		if msg, ok := v.Object().Get("message"); ok {
			name := "Error"
			if n, ok := v.Object().Get("name"); ok {
				name = jsvalue.AsString(n)
			}
			return name + ": " + jsvalue.AsString(msg)
		}
	}
	return jsvalue.AsString(v)
}

// LogEntry is one captured console.* line, following the teacher's
// request-scoped []LogEntry capture (cryguy-worker console.go) instead of
// an external logging dependency.
type LogEntry struct {
	Level   string
	Message string
}

// Env is one script environment: a flat name→Value map. Nested block
// scopes are modeled by saving/restoring shadowed names around the block
// (spec.md §3 "Environment").
type Env struct {
	vars map[string]jsvalue.Value
}

func NewEnv() *Env { return &Env{vars: make(map[string]jsvalue.Value)} }

func (e *Env) Get(name string) (jsvalue.Value, bool) {
	v, ok := e.vars[name]
	return v, ok
}

func (e *Env) Set(name string, v jsvalue.Value) { e.vars[name] = v }

func (e *Env) Has(name string) bool {
	_, ok := e.vars[name]
	return ok
}

func (e *Env) Delete(name string) { delete(e.vars, name) }

// Snapshot copies the current bindings; function values capture these at
// creation time.
func (e *Env) Snapshot() map[string]jsvalue.Value {
	out := make(map[string]jsvalue.Value, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}

// envFromSnapshot builds a fresh env layered over a captured snapshot.
func envFromSnapshot(snap map[string]jsvalue.Value) *Env {
	env := NewEnv()
	for k, v := range snap {
		env.vars[k] = v
	}
	return env
}

var (
	thisKey    = jsvalue.HiddenKey("this")
	returnSlot = jsvalue.HiddenKey("return")
)

// flowKind is the ExecFlow result of statement execution.
type flowKind uint8

const (
	flowNormal flowKind = iota
	flowBreak
	flowContinue
	flowReturn
)

type flow struct {
	kind  flowKind
	label string
}

var flowNone = flow{kind: flowNormal}

// Runtime owns all mutable state for one document: the DOM, listener
// store, scheduler, platform mocks, global environment, and the
// function-declaration hoisting stack.
type Runtime struct {
	Arena      *dom.Arena
	Listeners  *listener.Store
	Sched      *scheduler.Scheduler
	Dispatcher *dispatch.Dispatcher
	Tracer     *dispatch.Tracer

	TraceEvents bool
	TraceTimers bool

	Global *Env

	// pendingFuncs is the per-scope FunctionDecl hoisting stack of
	// spec.md §4.J: innermost scope last.
	pendingFuncs []map[string]*jsast.FunctionLit

	Local   *platform.Storage
	Session *platform.Storage
	Fetch   *platform.FetchMocks
	Media   *platform.MatchMediaMocks
	Clip    *platform.Clipboard
	Confirm *platform.BoolResponseQueue
	Prompt  *platform.StringResponseQueue
	Alerts  *platform.AlertLog
	Loc     *platform.LocationMocks

	Location urlparts.Parts
	Console  []LogEntry

	ActiveElement dom.NodeID
	dialogReturn  map[dom.NodeID]string
	cookie        string
	activeGen     *genState
	deferredErr   error

	// UnhandledRejections records promise rejections nobody handled by the
	// end of a flush, mirroring the teacher's unhandled-rejection capture.
	UnhandledRejections []jsvalue.Value

	// NavigateHook is called after a location navigation is recorded, so
	// the embedding MockWindow can swap pages; nil is fine.
	NavigateHook func(url string)

	// MaxMapEntries bounds Map/Set growth; 0 means unlimited.
	MaxMapEntries int
}

// New constructs a Runtime over an already-parsed arena.
func New(arena *dom.Arena, seed uint64) *Runtime {
	rt := &Runtime{
		Arena:        arena,
		Listeners:    listener.NewStore(),
		Sched:        scheduler.New(seed),
		Global:       NewEnv(),
		Local:        platform.NewStorage(nil),
		Session:      platform.NewStorage(nil),
		Fetch:        platform.NewFetchMocks(),
		Media:        platform.NewMatchMediaMocks(),
		Clip:         &platform.Clipboard{},
		Confirm:      &platform.BoolResponseQueue{},
		Prompt:       &platform.StringResponseQueue{},
		Alerts:       &platform.AlertLog{},
		Loc:          platform.NewLocationMocks(),
		dialogReturn: make(map[dom.NodeID]string),
	}
	rt.Location = urlparts.Parse("http://localhost/")
	rt.Dispatcher = dispatch.New(arena, rt.Listeners, &invoker{rt: rt}, nil)
	rt.Bootstrap()
	return rt
}

// SetTracer wires the trace ring into both the runtime and the dispatcher.
func (rt *Runtime) SetTracer(t *dispatch.Tracer) {
	rt.Tracer = t
	if rt.TraceEvents {
		rt.Dispatcher.Tracer = t
	}
}

// SetTraceEvents toggles event tracing on the dispatcher.
func (rt *Runtime) SetTraceEvents(on bool) {
	rt.TraceEvents = on
	if on {
		rt.Dispatcher.Tracer = rt.Tracer
	} else {
		rt.Dispatcher.Tracer = nil
	}
}

func (rt *Runtime) tracef(format string, args ...any) {
	if rt.Tracer != nil {
		rt.Tracer.Logf(format, args...)
	}
}

// CompileAndRegisterScript parses one <script> body and executes it against
// the global environment, draining microtasks afterwards (spec.md §5:
// microtasks drain before control returns to the harness façade).
func (rt *Runtime) CompileAndRegisterScript(src string) error {
	stmts, err := jsparser.Parse(src)
	if err != nil {
		return err
	}
	if _, err := rt.ExecuteStmts(stmts, rt.Global); err != nil {
		return err
	}
	rt.Sched.DrainMicrotasks()
	return nil
}

// ExecuteStmts executes a statement list against env, hoisting the list's
// FunctionDecls into a fresh pending-function-declaration scope first.
func (rt *Runtime) ExecuteStmts(stmts []jsast.Stmt, env *Env) (flow, error) {
	rt.pushFuncScope(stmts)
	defer rt.popFuncScope()
	return rt.execStmtsNoScope(stmts, env)
}

func (rt *Runtime) pushFuncScope(stmts []jsast.Stmt) {
	scope := make(map[string]*jsast.FunctionLit)
	for _, s := range stmts {
		if fd, ok := s.(*jsast.FunctionDecl); ok && fd.Fn.Name != "" {
			scope[fd.Fn.Name] = fd.Fn
		}
	}
	rt.pendingFuncs = append(rt.pendingFuncs, scope)
}

func (rt *Runtime) popFuncScope() {
	rt.pendingFuncs = rt.pendingFuncs[:len(rt.pendingFuncs)-1]
}

// lookupPendingFunc consults the hoisting stack innermost-first and
// materializes the declaration as a function value capturing env at the
// point of materialization (call-before-define hoisting, spec.md §4.J).
func (rt *Runtime) lookupPendingFunc(name string, env *Env) (jsvalue.Value, bool) {
	for i := len(rt.pendingFuncs) - 1; i >= 0; i-- {
		if fn, ok := rt.pendingFuncs[i][name]; ok {
			return rt.makeFunction(fn, env), true
		}
	}
	return jsvalue.Undefined(), false
}

// snapshotFuncScopes copies the current hoisting stack, used by listener
// registration (spec.md §3 ListenerEntry).
func (rt *Runtime) snapshotFuncScopes() []map[string]*jsast.FunctionLit {
	out := make([]map[string]*jsast.FunctionLit, len(rt.pendingFuncs))
	copy(out, rt.pendingFuncs)
	return out
}

func (rt *Runtime) execStmtsNoScope(stmts []jsast.Stmt, env *Env) (flow, error) {
	for _, s := range stmts {
		fl, err := rt.execStmt(s, env)
		if err != nil {
			return flowNone, err
		}
		if fl.kind != flowNormal {
			return fl, nil
		}
	}
	return flowNone, nil
}

// declaredNames collects the binding names a statement list introduces,
// used to save/restore shadowed names around nested blocks.
func declaredNames(stmts []jsast.Stmt) []string {
	var out []string
	for _, s := range stmts {
		switch d := s.(type) {
		case *jsast.VarDecl:
			for _, decl := range d.Decls {
				out = append(out, patternNames(decl.Target)...)
			}
		case *jsast.FunctionDecl:
			if d.Fn.Name != "" {
				out = append(out, d.Fn.Name)
			}
		}
	}
	return out
}

func patternNames(p jsast.Pattern) []string {
	switch pt := p.(type) {
	case jsast.IdentPattern:
		if pt.Name == "" {
			return nil
		}
		return []string{pt.Name}
	case jsast.ArrayPattern:
		var out []string
		for _, el := range pt.Elements {
			if el.Pattern != nil {
				out = append(out, patternNames(el.Pattern)...)
			}
		}
		return out
	case jsast.ObjectPattern:
		var out []string
		for _, pr := range pt.Props {
			out = append(out, patternNames(pr.Value)...)
		}
		if pt.Rest != "" {
			out = append(out, pt.Rest)
		}
		return out
	}
	return nil
}

// shadowSaver remembers the pre-block state of a set of names so the block
// can restore them on exit.
type shadowSaver struct {
	saved   map[string]jsvalue.Value
	existed map[string]bool
}

func saveShadowed(env *Env, names []string) *shadowSaver {
	s := &shadowSaver{saved: make(map[string]jsvalue.Value), existed: make(map[string]bool)}
	for _, n := range names {
		if v, ok := env.Get(n); ok {
			s.saved[n] = v
			s.existed[n] = true
		} else {
			s.existed[n] = false
		}
	}
	return s
}

func (s *shadowSaver) restore(env *Env) {
	for n, existed := range s.existed {
		if existed {
			env.Set(n, s.saved[n])
		} else {
			env.Delete(n)
		}
	}
}

func (rt *Runtime) execBlock(stmts []jsast.Stmt, env *Env) (flow, error) {
	shadow := saveShadowed(env, declaredNames(stmts))
	fl, err := rt.ExecuteStmts(stmts, env)
	shadow.restore(env)
	return fl, err
}

func (rt *Runtime) execStmt(s jsast.Stmt, env *Env) (flow, error) {
	switch st := s.(type) {
	case *jsast.EmptyStmt:
		return flowNone, nil
	case *jsast.ExprStmt:
		_, err := rt.evalExpr(st.X, env)
		return flowNone, err
	case *jsast.BlockStmt:
		return rt.execBlock(st.Body, env)
	case *jsast.VarDecl:
		return flowNone, rt.execVarDecl(st, env)
	case *jsast.FunctionDecl:
		// Materialize eagerly too: assignment makes later re-binding by
		// user code behave normally; hoisting handles the before-define case.
		if st.Fn.Name != "" {
			env.Set(st.Fn.Name, rt.makeFunction(st.Fn, env))
		}
		return flowNone, nil
	case *jsast.IfStmt:
		return rt.execIf(st, env)
	case *jsast.WhileStmt:
		return rt.execWhile(st, env, "")
	case *jsast.DoWhileStmt:
		return rt.execDoWhile(st, env, "")
	case *jsast.ForStmt:
		return rt.execFor(st, env, "")
	case *jsast.ForInStmt:
		return rt.execForIn(st, env, "")
	case *jsast.ForOfStmt:
		return rt.execForOf(st, env, "")
	case *jsast.TryStmt:
		return rt.execTry(st, env)
	case *jsast.SwitchStmt:
		return rt.execSwitch(st, env)
	case *jsast.ThrowStmt:
		v, err := rt.evalExpr(st.Arg, env)
		if err != nil {
			return flowNone, err
		}
		return flowNone, &ThrownError{Value: v}
	case *jsast.ReturnStmt:
		v := jsvalue.Undefined()
		if st.Arg != nil {
			var err error
			v, err = rt.evalExpr(st.Arg, env)
			if err != nil {
				return flowNone, err
			}
		}
		env.Set(returnSlot, v)
		return flow{kind: flowReturn}, nil
	case *jsast.BreakStmt:
		return flow{kind: flowBreak, label: st.Label}, nil
	case *jsast.ContinueStmt:
		return flow{kind: flowContinue, label: st.Label}, nil
	case *jsast.LabeledStmt:
		return rt.execLabeled(st, env)
	}
	return flowNone, rtErrf("unsupported statement %T", s)
}

func (rt *Runtime) execVarDecl(d *jsast.VarDecl, env *Env) error {
	for _, decl := range d.Decls {
		v := jsvalue.Undefined()
		if decl.Init != nil {
			var err error
			v, err = rt.evalExpr(decl.Init, env)
			if err != nil {
				return err
			}
			if fn, ok := decl.Init.(*jsast.FunctionLit); ok && fn.Name == "" {
				if ip, ok := decl.Target.(jsast.IdentPattern); ok && v.Kind() == jsvalue.KindFunction {
					v.Func().Name = ip.Name
				}
			}
		}
		if err := rt.bindPattern(decl.Target, v, env, true); err != nil {
			return err
		}
	}
	return nil
}

func (rt *Runtime) execIf(st *jsast.IfStmt, env *Env) (flow, error) {
	test, err := rt.evalExpr(st.Test, env)
	if err != nil {
		return flowNone, err
	}
	if jsvalue.ToBool(test) {
		return rt.execStmtScoped(st.Cons, env)
	}
	if st.Alt != nil {
		return rt.execStmtScoped(st.Alt, env)
	}
	return flowNone, nil
}

// execStmtScoped runs a loop/if body statement, which may be a block or a
// single statement.
func (rt *Runtime) execStmtScoped(s jsast.Stmt, env *Env) (flow, error) {
	return rt.execStmt(s, env)
}

// loopFlow maps a body's flow into the enclosing loop's flow: an unlabeled
// (or matching-label) break terminates the loop, a continue moves to the
// next iteration, anything else propagates.
func loopFlow(fl flow, label string) (stop bool, propagate *flow) {
	switch fl.kind {
	case flowBreak:
		if fl.label == "" || fl.label == label {
			return true, nil
		}
		return true, &fl
	case flowContinue:
		if fl.label == "" || fl.label == label {
			return false, nil
		}
		return true, &fl
	case flowReturn:
		return true, &fl
	}
	return false, nil
}

func (rt *Runtime) execWhile(st *jsast.WhileStmt, env *Env, label string) (flow, error) {
	for {
		test, err := rt.evalExpr(st.Test, env)
		if err != nil {
			return flowNone, err
		}
		if !jsvalue.ToBool(test) {
			return flowNone, nil
		}
		fl, err := rt.execStmtScoped(st.Body, env)
		if err != nil {
			return flowNone, err
		}
		stop, prop := loopFlow(fl, label)
		if prop != nil {
			return *prop, nil
		}
		if stop {
			return flowNone, nil
		}
	}
}

func (rt *Runtime) execDoWhile(st *jsast.DoWhileStmt, env *Env, label string) (flow, error) {
	for {
		fl, err := rt.execStmtScoped(st.Body, env)
		if err != nil {
			return flowNone, err
		}
		stop, prop := loopFlow(fl, label)
		if prop != nil {
			return *prop, nil
		}
		if stop {
			return flowNone, nil
		}
		test, err := rt.evalExpr(st.Test, env)
		if err != nil {
			return flowNone, err
		}
		if !jsvalue.ToBool(test) {
			return flowNone, nil
		}
	}
}

func (rt *Runtime) execFor(st *jsast.ForStmt, env *Env, label string) (flow, error) {
	var shadow *shadowSaver
	if init, ok := st.Init.(*jsast.VarDecl); ok {
		shadow = saveShadowed(env, declaredNames([]jsast.Stmt{init}))
	}
	if st.Init != nil {
		if _, err := rt.execStmt(st.Init, env); err != nil {
			return flowNone, err
		}
	}
	defer func() {
		if shadow != nil {
			shadow.restore(env)
		}
	}()
	for {
		if st.Test != nil {
			test, err := rt.evalExpr(st.Test, env)
			if err != nil {
				return flowNone, err
			}
			if !jsvalue.ToBool(test) {
				return flowNone, nil
			}
		}
		fl, err := rt.execStmtScoped(st.Body, env)
		if err != nil {
			return flowNone, err
		}
		stop, prop := loopFlow(fl, label)
		if prop != nil {
			return *prop, nil
		}
		if stop {
			return flowNone, nil
		}
		if st.Update != nil {
			if _, err := rt.evalExpr(st.Update, env); err != nil {
				return flowNone, err
			}
		}
	}
}

func (rt *Runtime) execForIn(st *jsast.ForInStmt, env *Env, label string) (flow, error) {
	obj, err := rt.evalExpr(st.Object, env)
	if err != nil {
		return flowNone, err
	}
	var keys []string
	switch obj.Kind() {
	case jsvalue.KindObject:
		keys = obj.Object().Keys()
	case jsvalue.KindArray:
		for i := range obj.Array().Items {
			keys = append(keys, fmt.Sprintf("%d", i))
		}
	case jsvalue.KindUndefined, jsvalue.KindNull:
		return flowNone, nil
	default:
		return flowNone, nil
	}
	shadow := saveShadowed(env, patternNames(st.Target))
	defer shadow.restore(env)
	for _, k := range keys {
		if err := rt.bindPattern(st.Target, jsvalue.String(k), env, st.DeclKind != ""); err != nil {
			return flowNone, err
		}
		fl, err := rt.execStmtScoped(st.Body, env)
		if err != nil {
			return flowNone, err
		}
		stop, prop := loopFlow(fl, label)
		if prop != nil {
			return *prop, nil
		}
		if stop {
			return flowNone, nil
		}
	}
	return flowNone, nil
}

func (rt *Runtime) execForOf(st *jsast.ForOfStmt, env *Env, label string) (flow, error) {
	obj, err := rt.evalExpr(st.Object, env)
	if err != nil {
		return flowNone, err
	}
	items, err := rt.iterateValue(obj)
	if err != nil {
		return flowNone, err
	}
	shadow := saveShadowed(env, patternNames(st.Target))
	defer shadow.restore(env)
	for _, item := range items {
		if st.IsAwait {
			var err error
			item, err = rt.awaitValue(item)
			if err != nil {
				return flowNone, err
			}
		}
		if err := rt.bindPattern(st.Target, item, env, st.DeclKind != ""); err != nil {
			return flowNone, err
		}
		fl, err := rt.execStmtScoped(st.Body, env)
		if err != nil {
			return flowNone, err
		}
		stop, prop := loopFlow(fl, label)
		if prop != nil {
			return *prop, nil
		}
		if stop {
			return flowNone, nil
		}
	}
	return flowNone, nil
}

func (rt *Runtime) execTry(st *jsast.TryStmt, env *Env) (flow, error) {
	fl, err := rt.execBlock(st.Block, env)

	if err != nil && st.HasCatch {
		caught := errorToValue(err)
		if caught != nil {
			var shadow *shadowSaver
			if st.CatchParam != nil {
				shadow = saveShadowed(env, patternNames(st.CatchParam))
				if bindErr := rt.bindPattern(st.CatchParam, *caught, env, true); bindErr != nil {
					return flowNone, bindErr
				}
			}
			fl, err = rt.execBlock(st.CatchBlock, env)
			if shadow != nil {
				shadow.restore(env)
			}
		}
	}

	if st.HasFinally {
		finFl, finErr := rt.execBlock(st.FinallyBlock, env)
		if finErr != nil {
			return flowNone, finErr
		}
		// finally may override the exit flow (spec.md §4.J).
		if finFl.kind != flowNormal {
			return finFl, nil
		}
	}
	return fl, err
}

// errorToValue converts a catchable error into the user-visible catch
// binding: ScriptThrown carries the thrown value directly; ScriptRuntime
// surfaces as an Error-shaped object (spec.md §7). Non-script errors (and
// nothing else) return nil and keep propagating.
func errorToValue(err error) *jsvalue.Value {
	switch e := err.(type) {
	case *ThrownError:
		return &e.Value
	case *RuntimeError:
		obj := jsvalue.NewObject()
		obj.Set("name", jsvalue.String("TypeError"))
		obj.Set("message", jsvalue.String(e.Msg))
		v := jsvalue.ObjectValue(obj)
		return &v
	}
	return nil
}

func (rt *Runtime) execSwitch(st *jsast.SwitchStmt, env *Env) (flow, error) {
	disc, err := rt.evalExpr(st.Disc, env)
	if err != nil {
		return flowNone, err
	}
	matched := -1
	for i, c := range st.Cases {
		if c.Test == nil {
			continue
		}
		tv, err := rt.evalExpr(c.Test, env)
		if err != nil {
			return flowNone, err
		}
		if jsvalue.StrictEquals(disc, tv) {
			matched = i
			break
		}
	}
	if matched < 0 {
		for i, c := range st.Cases {
			if c.Test == nil {
				matched = i
				break
			}
		}
	}
	if matched < 0 {
		return flowNone, nil
	}
	for i := matched; i < len(st.Cases); i++ {
		fl, err := rt.execStmtsNoScope(st.Cases[i].Body, env)
		if err != nil {
			return flowNone, err
		}
		switch fl.kind {
		case flowBreak:
			if fl.label == "" {
				return flowNone, nil
			}
			return fl, nil
		case flowContinue, flowReturn:
			return fl, nil
		}
	}
	return flowNone, nil
}

func (rt *Runtime) execLabeled(st *jsast.LabeledStmt, env *Env) (flow, error) {
	switch body := st.Body.(type) {
	case *jsast.WhileStmt:
		return rt.execWhile(body, env, st.Label)
	case *jsast.DoWhileStmt:
		return rt.execDoWhile(body, env, st.Label)
	case *jsast.ForStmt:
		return rt.execFor(body, env, st.Label)
	case *jsast.ForInStmt:
		return rt.execForIn(body, env, st.Label)
	case *jsast.ForOfStmt:
		return rt.execForOf(body, env, st.Label)
	}
	fl, err := rt.execStmt(st.Body, env)
	if err != nil {
		return flowNone, err
	}
	if fl.kind == flowBreak && fl.label == st.Label {
		return flowNone, nil
	}
	return fl, nil
}
