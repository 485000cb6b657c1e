package evaluator

import (
	"github.com/cryguy/domharness/internal/dispatch"
	"github.com/cryguy/domharness/internal/dom"
	"github.com/cryguy/domharness/internal/jsast"
	"github.com/cryguy/domharness/internal/jsvalue"
	"github.com/cryguy/domharness/internal/listener"
)

// EnvCell is the shared, mutable environment cell a listener captures at
// attach time (spec.md §3 ListenerEntry). It aliases the attaching env's
// live map so later outer-scope writes remain visible.
type EnvCell struct {
	Vars map[string]jsvalue.Value
}

// addListener registers a handler; capture/once map to the addEventListener
// options object.
func (rt *Runtime) addListener(id dom.NodeID, typ string, handler jsvalue.Value, capture, once bool, env *Env) {
	cell := &EnvCell{Vars: rt.Global.vars}
	if env != nil {
		cell.Vars = env.vars
	}
	rt.Listeners.Add(id, typ, &listener.Entry{
		Handler:             handler,
		Capture:             capture,
		Once:                once,
		EnvCell:             cell,
		PendingFuncDeclsTop: rt.snapshotFuncScopes(),
	})
}

// eventTargetMember serves addEventListener/removeEventListener/
// dispatchEvent for any node (document and window route to the root).
func (rt *Runtime) eventTargetMember(id dom.NodeID, name string, env *Env) (jsvalue.Value, error) {
	switch name {
	case "addEventListener":
		return nativeFn("addEventListener", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			typ := argStr(args, 0)
			handler := arg(args, 1)
			if !jsvalue.IsCallable(handler) {
				return jsvalue.Undefined(), nil
			}
			capture, once := false, false
			if opts := arg(args, 2); opts.Kind() == jsvalue.KindObject {
				if c, ok := opts.Object().Get("capture"); ok {
					capture = jsvalue.ToBool(c)
				}
				if o, ok := opts.Object().Get("once"); ok {
					once = jsvalue.ToBool(o)
				}
			} else if opts.Kind() == jsvalue.KindBool {
				capture = opts.Bool()
			}
			rt.addListener(id, typ, handler, capture, once, env)
			return jsvalue.Undefined(), nil
		}), nil
	case "removeEventListener":
		return nativeFn("removeEventListener", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			capture := false
			if opts := arg(args, 2); opts.Kind() == jsvalue.KindBool {
				capture = opts.Bool()
			} else if opts.Kind() == jsvalue.KindObject {
				if c, ok := opts.Object().Get("capture"); ok {
					capture = jsvalue.ToBool(c)
				}
			}
			rt.Listeners.Remove(id, argStr(args, 0), arg(args, 1), capture)
			return jsvalue.Undefined(), nil
		}), nil
	case "dispatchEvent":
		return nativeFn("dispatchEvent", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			init := arg(args, 0)
			if init.Kind() != jsvalue.KindObject {
				return jsvalue.Undefined(), rtErrf("dispatchEvent argument is not an event")
			}
			ev := rt.eventFromInit(id, init.Object())
			if err := rt.DispatchEvent(ev); err != nil {
				return jsvalue.Undefined(), err
			}
			return jsvalue.Bool(!ev.DefaultPrevented), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) eventFromInit(target dom.NodeID, init *jsvalue.Object) *dispatch.Event {
	get := func(k string) jsvalue.Value {
		v, _ := init.Get(k)
		return v
	}
	ev := rt.NewEvent(jsvalue.AsString(get("type")), target, jsvalue.ToBool(get("bubbles")), jsvalue.ToBool(get("cancelable")))
	ev.IsTrusted = false
	if d, ok := init.Get("detail"); ok {
		ev.State = d
	}
	return ev
}

// NewEvent prepares a dispatchable event stamped with the scheduler clock.
func (rt *Runtime) NewEvent(typ string, target dom.NodeID, bubbles, cancelable bool) *dispatch.Event {
	return &dispatch.Event{
		Type:       typ,
		Target:     target,
		Bubbles:    bubbles,
		Cancelable: cancelable,
		IsTrusted:  true,
		Timestamp:  rt.Sched.NowMS,
	}
}

// DispatchEvent walks the phases and drains microtasks afterwards
// (spec.md §5: microtasks drain before control returns to the façade).
func (rt *Runtime) DispatchEvent(ev *dispatch.Event) error {
	err := rt.Dispatcher.Dispatch(ev)
	rt.Sched.DrainMicrotasks()
	return err
}

// invoker implements dispatch.Invoker with the captured-env overlay
// semantics of spec.md §4.I: bindings present in the captured cell and
// missing from the current env are seeded; after the listener returns,
// changed names that existed in the cell are written back, and names also
// present in the process-wide env propagate there too.
type invoker struct {
	rt *Runtime
}

func (iv *invoker) Invoke(entry *listener.Entry, ev *dispatch.Event) error {
	rt := iv.rt
	handler := entry.Handler
	if !jsvalue.IsCallable(handler) {
		return nil
	}
	fn := handler.Func()

	var cell *EnvCell
	if c, ok := entry.EnvCell.(*EnvCell); ok {
		cell = c
	}

	// restore the attach-time hoisting stack for the duration of the call
	var savedScopes []map[string]*jsast.FunctionLit
	if snap, ok := entry.PendingFuncDeclsTop.([]map[string]*jsast.FunctionLit); ok {
		savedScopes = rt.pendingFuncs
		rt.pendingFuncs = snap
	}
	defer func() {
		if savedScopes != nil {
			rt.pendingFuncs = savedScopes
		}
	}()

	eventObj := rt.eventObject(ev)

	if fn.IsNative() {
		_, err := fn.Native(jsvalue.NodeValue(jsvalue.NodeRef(ev.CurrentTarget)), []jsvalue.Value{eventObj})
		return err
	}

	lit, ok := fn.Body.(*jsast.FunctionLit)
	if !ok {
		return nil
	}
	env := rt.funcEnv(fn, lit, jsvalue.NodeValue(jsvalue.NodeRef(ev.CurrentTarget)), []jsvalue.Value{eventObj})

	seeded := map[string]bool{}
	if cell != nil {
		for k, v := range cell.Vars {
			if !env.Has(k) {
				env.Set(k, v)
				seeded[k] = true
			}
		}
	}

	if err := rt.bindParams(lit.Params, []jsvalue.Value{eventObj}, env); err != nil {
		return err
	}
	var err error
	if lit.ExprBody != nil {
		_, err = rt.evalExpr(lit.ExprBody, env)
	} else {
		var fl flow
		fl, err = rt.ExecuteStmts(lit.Body, env)
		if err == nil && (fl.kind == flowBreak || fl.kind == flowContinue) {
			err = rtErrf("illegal %s outside loop in event listener", map[flowKind]string{flowBreak: "break", flowContinue: "continue"}[fl.kind])
		}
	}

	// write-back: changed names that exist in the cell go to the cell, and
	// names the process-wide env also holds propagate there.
	if cell != nil {
		for k := range cell.Vars {
			if nv, ok := env.Get(k); ok {
				if !jsvalue.StrictEquals(cell.Vars[k], nv) {
					cell.Vars[k] = nv
				}
				if rt.Global.Has(k) {
					rt.Global.Set(k, nv)
				}
			}
		}
	}
	return err
}

// eventObject materializes the script-visible event value for one listener
// invocation; control methods close over the live dispatch.Event.
func (rt *Runtime) eventObject(ev *dispatch.Event) jsvalue.Value {
	obj := jsvalue.NewObject()
	obj.Set(callableKindKey, jsvalue.String("Event"))
	obj.Set("type", jsvalue.String(ev.Type))
	if ev.Target != 0 {
		obj.Set("target", jsvalue.NodeValue(jsvalue.NodeRef(ev.Target)))
	} else {
		obj.Set("target", jsvalue.Null())
	}
	if ev.CurrentTarget != 0 {
		obj.Set("currentTarget", jsvalue.NodeValue(jsvalue.NodeRef(ev.CurrentTarget)))
	} else {
		obj.Set("currentTarget", jsvalue.Null())
	}
	obj.Set("eventPhase", jsvalue.Number(int64(ev.Phase)))
	obj.Set("bubbles", jsvalue.Bool(ev.Bubbles))
	obj.Set("cancelable", jsvalue.Bool(ev.Cancelable))
	obj.Set("defaultPrevented", jsvalue.Bool(ev.DefaultPrevented))
	obj.Set("isTrusted", jsvalue.Bool(ev.IsTrusted))
	obj.Set("timeStamp", jsvalue.Number(ev.Timestamp))
	if ev.State != nil {
		if v, ok := ev.State.(jsvalue.Value); ok {
			obj.Set("detail", v)
		}
	}
	if old, ok := ev.OldState.(string); ok {
		obj.Set("oldState", jsvalue.String(old))
	}
	if ns, ok := ev.NewState.(string); ok {
		obj.Set("newState", jsvalue.String(ns))
	}
	if key, ok := ev.State.(string); ok && (ev.Type == "keydown" || ev.Type == "keyup" || ev.Type == "keypress") {
		obj.Set("key", jsvalue.String(key))
	}
	obj.Set("preventDefault", nativeFn("preventDefault", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		ev.PreventDefault()
		obj.Set("defaultPrevented", jsvalue.Bool(ev.DefaultPrevented))
		return jsvalue.Undefined(), nil
	}))
	obj.Set("stopPropagation", nativeFn("stopPropagation", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		ev.StopPropagation()
		return jsvalue.Undefined(), nil
	}))
	obj.Set("stopImmediatePropagation", nativeFn("stopImmediatePropagation", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		ev.StopImmediatePropagation()
		return jsvalue.Undefined(), nil
	}))
	return jsvalue.ObjectValue(obj)
}
