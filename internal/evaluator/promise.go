package evaluator

import (
	"github.com/cryguy/domharness/internal/jsast"
	"github.com/cryguy/domharness/internal/jsvalue"
)

// Promise machinery per spec.md §4.J: {Pending → Fulfilled | Rejected},
// reactions registered while pending are queued as microtasks on settle,
// then/catch/finally derive new promises, thenables are assimilated.

func (rt *Runtime) newPromise() *jsvalue.Promise {
	return &jsvalue.Promise{State: jsvalue.PromisePending}
}

func (rt *Runtime) resolvedPromise(v jsvalue.Value) jsvalue.Value {
	p := rt.newPromise()
	rt.resolvePromise(p, v)
	return jsvalue.PromiseValue(p)
}

func (rt *Runtime) rejectedPromise(v jsvalue.Value) jsvalue.Value {
	p := rt.newPromise()
	rt.rejectPromise(p, v)
	return jsvalue.PromiseValue(p)
}

// resolvePromise fulfills p with v, assimilating promises and thenables.
func (rt *Runtime) resolvePromise(p *jsvalue.Promise, v jsvalue.Value) {
	if p.State != jsvalue.PromisePending {
		return
	}
	if v.Kind() == jsvalue.KindPromise {
		inner := v.Promise()
		rt.adoptPromise(p, inner)
		return
	}
	if v.Kind() == jsvalue.KindObject {
		if then, ok := v.Object().Get("then"); ok && jsvalue.IsCallable(then) {
			rt.Sched.QueueMicrotask(func() {
				onF := nativeFn("", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
					rt.resolvePromise(p, arg(args, 0))
					return jsvalue.Undefined(), nil
				})
				onR := nativeFn("", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
					rt.rejectPromise(p, arg(args, 0))
					return jsvalue.Undefined(), nil
				})
				if _, err := rt.callFunction(then, v, []jsvalue.Value{onF, onR}); err != nil {
					rt.rejectPromise(p, errorAsValue(err))
				}
			})
			return
		}
	}
	p.State = jsvalue.PromiseFulfilled
	p.Value = v
	rt.flushReactions(p)
}

func (rt *Runtime) rejectPromise(p *jsvalue.Promise, v jsvalue.Value) {
	if p.State != jsvalue.PromisePending {
		return
	}
	p.State = jsvalue.PromiseRejected
	p.Value = v
	rt.flushReactions(p)
	rt.Sched.QueueMicrotask(func() {
		if !p.Handled {
			rt.UnhandledRejections = append(rt.UnhandledRejections, p.Value)
		}
	})
}

func (rt *Runtime) adoptPromise(outer, inner *jsvalue.Promise) {
	switch inner.State {
	case jsvalue.PromiseFulfilled:
		rt.Sched.QueueMicrotask(func() {
			outer.State = jsvalue.PromiseFulfilled
			outer.Value = inner.Value
			rt.flushReactions(outer)
		})
	case jsvalue.PromiseRejected:
		inner.Handled = true
		rt.Sched.QueueMicrotask(func() {
			outer.State = jsvalue.PromiseRejected
			outer.Value = inner.Value
			rt.flushReactions(outer)
		})
	default:
		inner.Reactions = append(inner.Reactions, jsvalue.PromiseReaction{
			OnFulfilled: nativeFn("", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
				rt.resolvePromise(outer, arg(args, 0))
				return jsvalue.Undefined(), nil
			}).Func(),
			OnRejected: nativeFn("", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
				rt.rejectPromise(outer, arg(args, 0))
				return jsvalue.Undefined(), nil
			}).Func(),
		})
	}
}

// flushReactions queues every registered reaction as a microtask against
// the now-settled state.
func (rt *Runtime) flushReactions(p *jsvalue.Promise) {
	reactions := p.Reactions
	p.Reactions = nil
	for _, r := range reactions {
		reaction := r
		rt.Sched.QueueMicrotask(func() {
			rt.runReaction(p, reaction)
		})
	}
}

func (rt *Runtime) runReaction(p *jsvalue.Promise, r jsvalue.PromiseReaction) {
	var handler *jsvalue.Function
	if p.State == jsvalue.PromiseFulfilled {
		handler = r.OnFulfilled
	} else {
		handler = r.OnRejected
		p.Handled = true
	}
	if handler == nil {
		// pass-through to the derived promise
		if r.Result != nil {
			if p.State == jsvalue.PromiseFulfilled {
				rt.resolvePromise(r.Result, p.Value)
			} else {
				rt.rejectPromise(r.Result, p.Value)
			}
		}
		return
	}
	out, err := rt.callFunction(jsvalue.FunctionValue(handler), jsvalue.Undefined(), []jsvalue.Value{p.Value})
	if r.Result == nil {
		return
	}
	if err != nil {
		rt.rejectPromise(r.Result, errorAsValue(err))
		return
	}
	rt.resolvePromise(r.Result, out)
}

// promiseThen registers fulfillment/rejection handlers and returns the
// derived promise.
func (rt *Runtime) promiseThen(p *jsvalue.Promise, onF, onR *jsvalue.Function) jsvalue.Value {
	result := rt.newPromise()
	reaction := jsvalue.PromiseReaction{OnFulfilled: onF, OnRejected: onR, Result: result}
	if onR != nil {
		p.Handled = true
	}
	if p.State == jsvalue.PromisePending {
		p.Reactions = append(p.Reactions, reaction)
	} else {
		rt.Sched.QueueMicrotask(func() { rt.runReaction(p, reaction) })
	}
	return jsvalue.PromiseValue(result)
}

func (rt *Runtime) promiseMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	p := base.Promise()
	switch name {
	case "then":
		return nativeFn("then", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			var onF, onR *jsvalue.Function
			if f := arg(args, 0); jsvalue.IsCallable(f) {
				onF = f.Func()
			}
			if f := arg(args, 1); jsvalue.IsCallable(f) {
				onR = f.Func()
			}
			return rt.promiseThen(p, onF, onR), nil
		}), nil
	case "catch":
		return nativeFn("catch", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			var onR *jsvalue.Function
			if f := arg(args, 0); jsvalue.IsCallable(f) {
				onR = f.Func()
			}
			return rt.promiseThen(p, nil, onR), nil
		}), nil
	case "finally":
		return nativeFn("finally", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			cb := arg(args, 0)
			wrap := func(passRejected bool) *jsvalue.Function {
				return nativeFn("", func(_ jsvalue.Value, inner []jsvalue.Value) (jsvalue.Value, error) {
					if jsvalue.IsCallable(cb) {
						if _, err := rt.callFunction(cb, jsvalue.Undefined(), nil); err != nil {
							return jsvalue.Undefined(), err
						}
					}
					v := arg(inner, 0)
					if passRejected {
						return jsvalue.Undefined(), &ThrownError{Value: v}
					}
					return v, nil
				}).Func()
			}
			return rt.promiseThen(p, wrap(false), wrap(true)), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

// awaitValue cooperatively unwraps a promise: the scheduler is pumped
// (microtasks first, then due timers) until the promise settles
// (spec.md §4.J "Await": evaluation suspends until the scheduler resolves
// the promise).
func (rt *Runtime) awaitValue(v jsvalue.Value) (jsvalue.Value, error) {
	if v.Kind() != jsvalue.KindPromise {
		if v.Kind() == jsvalue.KindObject {
			if then, ok := v.Object().Get("then"); ok && jsvalue.IsCallable(then) {
				p := rt.newPromise()
				rt.resolvePromise(p, v)
				return rt.awaitPromise(p)
			}
		}
		// one microtask-boundary hop, matching `await nonPromise`
		rt.Sched.DrainMicrotasks()
		return v, nil
	}
	return rt.awaitPromise(v.Promise())
}

func (rt *Runtime) awaitPromise(p *jsvalue.Promise) (jsvalue.Value, error) {
	limit := rt.Sched.StepLimit
	if limit <= 0 {
		limit = 100000
	}
	for steps := 0; ; steps++ {
		if p.State == jsvalue.PromiseFulfilled {
			p.Handled = true
			return p.Value, nil
		}
		if p.State == jsvalue.PromiseRejected {
			p.Handled = true
			return jsvalue.Undefined(), &ThrownError{Value: p.Value}
		}
		if steps > limit {
			return jsvalue.Undefined(), rtErrf("await exceeded the scheduler step limit")
		}
		if rt.Sched.HasPendingMicrotasks() {
			rt.Sched.DrainMicrotasks()
			continue
		}
		if rt.Sched.HasPendingTimers() {
			if err := rt.Sched.FireNextDue(); err != nil {
				return jsvalue.Undefined(), err
			}
			continue
		}
		return jsvalue.Undefined(), rtErrf("await on a promise that can never settle")
	}
}

// callAsync invokes an async function: the body runs synchronously, with
// each `await` pumping the scheduler cooperatively, and the returned
// promise settles with the body's result (rejections carry the thrown
// value). Side effects before the first await are observable synchronously,
// matching the continuation-splitting description in spec.md §9 for the
// cases the corpus exercises.
func (rt *Runtime) callAsync(fn *jsvalue.Function, lit *jsast.FunctionLit, this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
	p := rt.newPromise()
	out, err := rt.callSync(fn, lit, this, args)
	if err != nil {
		if v := errorToValue(err); v != nil {
			rt.rejectPromise(p, *v)
			return jsvalue.PromiseValue(p), nil
		}
		return jsvalue.Undefined(), err
	}
	rt.resolvePromise(p, out)
	return jsvalue.PromiseValue(p), nil
}

func errorAsValue(err error) jsvalue.Value {
	if v := errorToValue(err); v != nil {
		return *v
	}
	obj := jsvalue.NewObject()
	obj.Set("name", jsvalue.String("Error"))
	obj.Set("message", jsvalue.String(err.Error()))
	return jsvalue.ObjectValue(obj)
}
