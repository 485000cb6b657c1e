package evaluator

import (
	"github.com/cryguy/domharness/internal/jsast"
	"github.com/cryguy/domharness/internal/jsvalue"
)

// Generators are modeled as an explicit state handshake (spec.md §9
// "Async / generators without coroutines"): the body runs on its own
// goroutine, and control strictly alternates between caller and body over
// unbuffered channels, so execution stays single-logical-threaded.

type genState struct {
	resume chan genResume
	yields chan genYield
	done   bool
	prev   *genState // saved rt.activeGen while this generator runs
}

type genResume struct {
	value    jsvalue.Value
	abort    bool // return() was called
	throwVal *jsvalue.Value
}

type genYield struct {
	value jsvalue.Value
	done  bool
	err   error
}

// yield is called from inside the generator body (via evalYield): it hands
// the value to the consumer and blocks until next()/return()/throw().
func (g *genState) yield(v jsvalue.Value) (jsvalue.Value, error) {
	g.yields <- genYield{value: v}
	r := <-g.resume
	if r.abort {
		return jsvalue.Undefined(), &genAbort{}
	}
	if r.throwVal != nil {
		return jsvalue.Undefined(), &ThrownError{Value: *r.throwVal}
	}
	return r.value, nil
}

// genAbort unwinds the generator body after return() without surfacing an
// error to user code.
type genAbort struct{}

func (*genAbort) Error() string { return "generator aborted" }

func (rt *Runtime) startGenerator(fn *jsvalue.Function, lit *jsast.FunctionLit, this jsvalue.Value, args []jsvalue.Value) *genState {
	g := &genState{resume: make(chan genResume), yields: make(chan genYield)}
	go func() {
		// wait for the first next() before touching any runtime state
		r := <-g.resume
		if r.abort {
			g.yields <- genYield{done: true, value: jsvalue.Undefined()}
			return
		}
		out, err := rt.callSync(fn, lit, this, args)
		if _, aborted := err.(*genAbort); aborted {
			err = nil
			out = jsvalue.Undefined()
		}
		g.yields <- genYield{done: true, value: out, err: err}
	}()
	return g
}

// genStep drives the generator one handshake: send a resume, receive the next
// yield (or completion). The runtime's activeGen stack is swapped so yield
// expressions inside the body find this generator.
func (rt *Runtime) genStep(g *genState, r genResume) genYield {
	if g.done {
		return genYield{done: true, value: jsvalue.Undefined()}
	}
	g.prev = rt.activeGen
	rt.activeGen = g
	g.resume <- r
	y := <-g.yields
	rt.activeGen = g.prev
	if y.done {
		g.done = true
	}
	return y
}

func iterResult(value jsvalue.Value, done bool) jsvalue.Value {
	obj := jsvalue.NewObject()
	obj.Set("value", value)
	obj.Set("done", jsvalue.Bool(done))
	return jsvalue.ObjectValue(obj)
}

// newGenerator returns the generator object: next/return/throw plus the
// iterator-protocol hook for…of consumes.
func (rt *Runtime) newGenerator(fn *jsvalue.Function, lit *jsast.FunctionLit, this jsvalue.Value, args []jsvalue.Value) jsvalue.Value {
	g := rt.startGenerator(fn, lit, this, args)
	obj := jsvalue.NewObject()
	obj.Set(callableKindKey, jsvalue.String("generator"))
	obj.Set("next", nativeFn("next", func(_ jsvalue.Value, callArgs []jsvalue.Value) (jsvalue.Value, error) {
		y := rt.genStep(g, genResume{value: arg(callArgs, 0)})
		if y.err != nil {
			return jsvalue.Undefined(), y.err
		}
		return iterResult(y.value, y.done), nil
	}))
	obj.Set("return", nativeFn("return", func(_ jsvalue.Value, callArgs []jsvalue.Value) (jsvalue.Value, error) {
		if !g.done {
			rt.genStep(g, genResume{abort: true})
		}
		return iterResult(arg(callArgs, 0), true), nil
	}))
	obj.Set("throw", nativeFn("throw", func(_ jsvalue.Value, callArgs []jsvalue.Value) (jsvalue.Value, error) {
		if g.done {
			return jsvalue.Undefined(), &ThrownError{Value: arg(callArgs, 0)}
		}
		tv := arg(callArgs, 0)
		y := rt.genStep(g, genResume{throwVal: &tv})
		if y.err != nil {
			return jsvalue.Undefined(), y.err
		}
		return iterResult(y.value, y.done), nil
	}))
	return jsvalue.ObjectValue(obj)
}

// newAsyncGenerator wraps the same machinery so that each next() returns an
// immediately-settled Promise (spec.md §9 "Async iterators wrap a value
// list and a monotonic index ... next returns an immediately-settled
// Promise").
func (rt *Runtime) newAsyncGenerator(fn *jsvalue.Function, lit *jsast.FunctionLit, this jsvalue.Value, args []jsvalue.Value) jsvalue.Value {
	g := rt.startGenerator(fn, lit, this, args)
	obj := jsvalue.NewObject()
	obj.Set(callableKindKey, jsvalue.String("async-generator"))
	obj.Set("next", nativeFn("next", func(_ jsvalue.Value, callArgs []jsvalue.Value) (jsvalue.Value, error) {
		y := rt.genStep(g, genResume{value: arg(callArgs, 0)})
		if y.err != nil {
			if v := errorToValue(y.err); v != nil {
				return rt.rejectedPromise(*v), nil
			}
			return jsvalue.Undefined(), y.err
		}
		return rt.resolvedPromise(iterResult(y.value, y.done)), nil
	}))
	obj.Set("return", nativeFn("return", func(_ jsvalue.Value, callArgs []jsvalue.Value) (jsvalue.Value, error) {
		if !g.done {
			rt.genStep(g, genResume{abort: true})
		}
		return rt.resolvedPromise(iterResult(arg(callArgs, 0), true)), nil
	}))
	return jsvalue.ObjectValue(obj)
}
