package evaluator

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/cryguy/domharness/internal/dom"
	"github.com/cryguy/domharness/internal/jsast"
	"github.com/cryguy/domharness/internal/jsvalue"
)

// Bootstrap wires the globals into the script environment the way the
// teacher wires webapi.SetupGlobals into its engine: every platform object
// is a tagged value dispatched against this runtime, never process-global
// state (spec.md §9 "Global mutable state").
func (rt *Runtime) Bootstrap() {
	g := rt.Global
	for _, tag := range []string{
		"Math", "JSON", "Object", "Array", "String", "Number", "Boolean",
		"Symbol", "BigInt", "Promise", "Date", "RegExp", "Map", "Set",
		"WeakMap", "WeakSet", "FormData", "URL", "URLSearchParams",
		"ArrayBuffer", "Int8Array", "Uint8Array", "Uint8ClampedArray",
		"Int16Array", "Uint16Array", "Int32Array", "Uint32Array",
		"Float32Array", "Float64Array", "BigInt64Array", "BigUint64Array",
		"Blob", "File", "AbortController", "Event", "CustomEvent",
		"Error", "TypeError", "RangeError", "SyntaxError",
		"document", "window", "globalThis", "location", "history",
		"navigator", "console", "localStorage", "sessionStorage",
	} {
		g.Set(tag, jsvalue.ConstructorTag(tag))
	}
	g.Set("NaN", jsvalue.Float(math.NaN()))
	g.Set("Infinity", jsvalue.Float(math.Inf(1)))
	g.Set("undefined", jsvalue.Undefined())

	g.Set("isNaN", nativeFn("isNaN", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return jsvalue.Bool(math.IsNaN(jsvalue.ToNumberFloat(arg(args, 0)))), nil
	}))
	g.Set("isFinite", nativeFn("isFinite", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		f := jsvalue.ToNumberFloat(arg(args, 0))
		return jsvalue.Bool(!math.IsNaN(f) && !math.IsInf(f, 0)), nil
	}))
	g.Set("parseInt", nativeFn("parseInt", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return parseIntGlobal(argStr(args, 0), argInt(args, 1)), nil
	}))
	g.Set("parseFloat", nativeFn("parseFloat", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return parseFloatGlobal(argStr(args, 0)), nil
	}))
	g.Set("structuredClone", nativeFn("structuredClone", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return deepClone(arg(args, 0)), nil
	}))

	rt.bootstrapTimers(g)
	rt.bootstrapDialogFns(g)

	g.Set("fetch", nativeFn("fetch", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return rt.doFetch(args)
	}))
	g.Set("matchMedia", nativeFn("matchMedia", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return rt.doMatchMedia(argStr(args, 0)), nil
	}))
	g.Set("getComputedStyle", nativeFn("getComputedStyle", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		target := arg(args, 0)
		if target.Kind() != jsvalue.KindNode {
			return jsvalue.Undefined(), rtErrf("getComputedStyle target is not an element")
		}
		obj := jsvalue.NewObject()
		obj.Set(callableKindKey, jsvalue.String("ComputedStyle"))
		obj.Set(jsvalue.HiddenKey("node"), target)
		return jsvalue.ObjectValue(obj), nil
	}))
	g.Set("scrollTo", nativeFn("scrollTo", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return jsvalue.Undefined(), nil
	}))
}

func (rt *Runtime) bootstrapTimers(g *Env) {
	schedule := func(name string, interval bool) jsvalue.Value {
		return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			cb := arg(args, 0)
			delay := int64(0)
			if len(args) > 1 {
				delay = jsvalue.ValueToI64(arg(args, 1))
			}
			var extra []jsvalue.Value
			if len(args) > 2 {
				extra = append(extra, args[2:]...)
			}
			id := rt.Sched.SetTimer(delay, interval, func(_ []any) {
				if rt.TraceTimers {
					rt.tracef("timer-fire name=%s now=%d", name, rt.Sched.NowMS)
				}
				if _, err := rt.callFunction(cb, jsvalue.Undefined(), extra); err != nil {
					rt.recordDeferredErr(err)
				}
			}, nil)
			if rt.TraceTimers {
				rt.tracef("timer-set name=%s id=%d delay=%d", name, id, delay)
			}
			return jsvalue.Number(id), nil
		})
	}
	clear := func(name string) jsvalue.Value {
		return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			rt.Sched.ClearTimer(jsvalue.ValueToI64(arg(args, 0)))
			return jsvalue.Undefined(), nil
		})
	}
	g.Set("setTimeout", schedule("setTimeout", false))
	g.Set("setInterval", schedule("setInterval", true))
	g.Set("requestAnimationFrame", schedule("requestAnimationFrame", false))
	g.Set("clearTimeout", clear("clearTimeout"))
	g.Set("clearInterval", clear("clearInterval"))
	g.Set("cancelAnimationFrame", clear("cancelAnimationFrame"))
	g.Set("queueMicrotask", nativeFn("queueMicrotask", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		cb := arg(args, 0)
		rt.Sched.QueueMicrotask(func() {
			if _, err := rt.callFunction(cb, jsvalue.Undefined(), nil); err != nil {
				rt.recordDeferredErr(err)
			}
		})
		return jsvalue.Undefined(), nil
	}))
}

func (rt *Runtime) bootstrapDialogFns(g *Env) {
	g.Set("alert", nativeFn("alert", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		rt.Alerts.Push(argStr(args, 0))
		return jsvalue.Undefined(), nil
	}))
	g.Set("confirm", nativeFn("confirm", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return jsvalue.Bool(rt.Confirm.Next()), nil
	}))
	g.Set("prompt", nativeFn("prompt", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		v, ok := rt.Prompt.Next()
		if !ok {
			return jsvalue.Null(), nil
		}
		return jsvalue.String(v), nil
	}))
}

// recordDeferredErr keeps the first script error raised inside a timer or
// microtask so the harness can surface it after the flush completes.
func (rt *Runtime) recordDeferredErr(err error) {
	if rt.deferredErr == nil {
		rt.deferredErr = err
	}
}

// TakeDeferredErr returns and clears the pending timer/microtask error.
func (rt *Runtime) TakeDeferredErr() error {
	err := rt.deferredErr
	rt.deferredErr = nil
	return err
}

func parseIntGlobal(s string, radix int) jsvalue.Value {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else {
		s = strings.TrimPrefix(s, "+")
	}
	if radix == 0 {
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			radix = 16
			s = s[2:]
		} else {
			radix = 10
		}
	} else if radix == 16 {
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			s = s[2:]
		}
	}
	end := 0
	for end < len(s) {
		if _, err := strconv.ParseInt(s[:end+1], radix, 64); err != nil {
			break
		}
		end++
	}
	if end == 0 {
		return jsvalue.Float(math.NaN())
	}
	n, _ := strconv.ParseInt(s[:end], radix, 64)
	if neg {
		n = -n
	}
	return jsvalue.Number(n)
}

func parseFloatGlobal(s string) jsvalue.Value {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		if _, err := strconv.ParseFloat(s[:end+1], 64); err != nil {
			break
		}
		end++
	}
	if end == 0 {
		return jsvalue.Float(math.NaN())
	}
	f, _ := strconv.ParseFloat(s[:end], 64)
	return numberFromFloat(f)
}

func deepClone(v jsvalue.Value) jsvalue.Value {
	switch v.Kind() {
	case jsvalue.KindArray:
		out := jsvalue.NewArray()
		for _, it := range v.Array().Items {
			out.Items = append(out.Items, deepClone(it))
		}
		return jsvalue.ArrayValue(out)
	case jsvalue.KindObject:
		out := jsvalue.NewObject()
		for _, k := range v.Object().Keys() {
			pv, _ := v.Object().Get(k)
			out.Set(k, deepClone(pv))
		}
		return jsvalue.ObjectValue(out)
	case jsvalue.KindMap:
		out := jsvalue.NewMap()
		v.Map().Each(func(k, val jsvalue.Value) { out.Set(deepClone(k), deepClone(val)) })
		return jsvalue.MapVal(out)
	case jsvalue.KindSet:
		out := jsvalue.NewSet()
		v.Set().Each(func(val jsvalue.Value) { out.Add(deepClone(val)) })
		return jsvalue.SetVal(out)
	case jsvalue.KindDate:
		return jsvalue.DateValue(&jsvalue.Date{EpochMS: v.Date().EpochMS})
	}
	return v
}

// ---- new-expression & constructor calls ----

func (rt *Runtime) evalNew(x *jsast.NewExpr, env *Env) (jsvalue.Value, error) {
	callee, err := rt.evalExpr(x.Callee, env)
	if err != nil {
		return jsvalue.Undefined(), err
	}
	args, err := rt.evalArgs(x.Args, env)
	if err != nil {
		return jsvalue.Undefined(), err
	}
	switch callee.Kind() {
	case jsvalue.KindConstructor:
		return rt.callConstructorTag(callee.ConstructorTag(), args, true)
	case jsvalue.KindFunction:
		obj := jsvalue.NewObject()
		obj.Set(jsvalue.HiddenKey("constructor"), callee)
		self := jsvalue.ObjectValue(obj)
		out, err := rt.callFunction(callee, self, args)
		if err != nil {
			return jsvalue.Undefined(), err
		}
		if out.Kind() == jsvalue.KindObject || out.Kind() == jsvalue.KindArray {
			return out, nil
		}
		return self, nil
	}
	return jsvalue.Undefined(), rtErrf("%s is not a constructor", callee.Kind())
}

// callConstructorTag handles both `new Tag(...)` and plain `Tag(...)`
// invocations of builtin constructor singletons.
func (rt *Runtime) callConstructorTag(tag string, args []jsvalue.Value, isNew bool) (jsvalue.Value, error) {
	switch tag {
	case "String":
		return jsvalue.String(argStr(args, 0)), nil
	case "Number":
		if len(args) == 0 {
			return jsvalue.Number(0), nil
		}
		return numberFromFloat(jsvalue.ToNumberFloat(arg(args, 0))), nil
	case "Boolean":
		return jsvalue.Bool(jsvalue.ToBool(arg(args, 0))), nil
	case "BigInt":
		v := arg(args, 0)
		switch v.Kind() {
		case jsvalue.KindBigInt:
			return v, nil
		case jsvalue.KindString:
			b := new(big.Int)
			if _, ok := b.SetString(strings.TrimSpace(v.Str()), 0); !ok {
				return jsvalue.Undefined(), rtErrf("cannot convert %q to a BigInt", v.Str())
			}
			return jsvalue.BigIntValue(b), nil
		default:
			f := jsvalue.ToNumberFloat(v)
			if f != math.Trunc(f) || math.IsNaN(f) || math.IsInf(f, 0) {
				return jsvalue.Undefined(), rtErrf("cannot convert %v to a BigInt", f)
			}
			return jsvalue.BigIntValue(big.NewInt(int64(f))), nil
		}
	case "Symbol":
		return jsvalue.SymbolValue(&jsvalue.Symbol{Description: argStr(args, 0)}), nil
	case "Array":
		if len(args) == 1 && (arg(args, 0).Kind() == jsvalue.KindNumber || arg(args, 0).Kind() == jsvalue.KindFloat) {
			n := int(jsvalue.ValueToI64(arg(args, 0)))
			items := make([]jsvalue.Value, n)
			for i := range items {
				items[i] = jsvalue.Undefined()
			}
			return jsvalue.ArrayValue(jsvalue.NewArray(items...)), nil
		}
		return jsvalue.ArrayValue(jsvalue.NewArray(args...)), nil
	case "Object":
		if v := arg(args, 0); v.Kind() == jsvalue.KindObject {
			return v, nil
		}
		return jsvalue.ObjectValue(jsvalue.NewObject()), nil
	case "Map", "WeakMap":
		m := jsvalue.NewMap()
		if src := arg(args, 0); !src.IsNullish() {
			items, err := rt.iterateValue(src)
			if err != nil {
				return jsvalue.Undefined(), err
			}
			for _, it := range items {
				if it.Kind() == jsvalue.KindArray && len(it.Array().Items) >= 2 {
					m.Set(it.Array().Items[0], it.Array().Items[1])
				}
			}
		}
		return jsvalue.MapVal(m), nil
	case "Set", "WeakSet":
		s := jsvalue.NewSet()
		if src := arg(args, 0); !src.IsNullish() {
			items, err := rt.iterateValue(src)
			if err != nil {
				return jsvalue.Undefined(), err
			}
			for _, it := range items {
				s.Add(it)
			}
		}
		return jsvalue.SetVal(s), nil
	case "Date":
		switch {
		case len(args) == 0:
			return jsvalue.DateValue(&jsvalue.Date{EpochMS: float64(rt.Sched.NowMS)}), nil
		case len(args) == 1 && arg(args, 0).Kind() == jsvalue.KindString:
			return jsvalue.DateValue(&jsvalue.Date{EpochMS: parseDateString(arg(args, 0).Str())}), nil
		case len(args) == 1:
			return jsvalue.DateValue(&jsvalue.Date{EpochMS: jsvalue.ToNumberFloat(arg(args, 0))}), nil
		default:
			f := dateFields{
				year:  argInt(args, 0),
				month: argInt(args, 1) + 1,
				day:   1, hour: 0, min: 0, sec: 0, ms: 0,
			}
			if len(args) > 2 {
				f.day = argInt(args, 2)
			}
			if len(args) > 3 {
				f.hour = argInt(args, 3)
			}
			if len(args) > 4 {
				f.min = argInt(args, 4)
			}
			if len(args) > 5 {
				f.sec = argInt(args, 5)
			}
			if len(args) > 6 {
				f.ms = argInt(args, 6)
			}
			return jsvalue.DateValue(&jsvalue.Date{EpochMS: epochFromFields(f)}), nil
		}
	case "RegExp":
		pattern := ""
		flags := ""
		if p := arg(args, 0); p.Kind() == jsvalue.KindRegExp {
			pattern = p.Regexp().Source
			flags = p.Regexp().Flags
		} else {
			pattern = argStr(args, 0)
		}
		if len(args) > 1 {
			flags = argStr(args, 1)
		}
		return rt.makeRegex(pattern, flags)
	case "Promise":
		return rt.newPromiseFromExecutor(arg(args, 0))
	case "FormData":
		fd := &jsvalue.FormData{}
		if form := arg(args, 0); form.Kind() == jsvalue.KindNode {
			rt.collectFormData(dom.NodeID(form.Node()), fd)
		}
		return jsvalue.FormDataValue(fd), nil
	case "ArrayBuffer":
		return jsvalue.ArrayBufferValue(&jsvalue.ArrayBuffer{Data: make([]byte, argInt(args, 0))}), nil
	case "Blob", "File":
		b := &jsvalue.Blob{}
		if parts := arg(args, 0); parts.Kind() == jsvalue.KindArray {
			for _, p := range parts.Array().Items {
				switch p.Kind() {
				case jsvalue.KindBlob:
					b.Data = append(b.Data, p.Blob().Data...)
				case jsvalue.KindArrayBuffer:
					b.Data = append(b.Data, p.Buffer().Data...)
				default:
					b.Data = append(b.Data, jsvalue.AsString(p)...)
				}
			}
		}
		optIdx := 1
		if tag == "File" {
			optIdx = 2
		}
		if opts := arg(args, optIdx); opts.Kind() == jsvalue.KindObject {
			if t, ok := opts.Object().Get("type"); ok {
				b.Type = jsvalue.AsString(t)
			}
		}
		return jsvalue.BlobValue(b), nil
	case "URL":
		return rt.newURLObject(argStr(args, 0), argStr(args, 1))
	case "URLSearchParams":
		return rt.newSearchParams(arg(args, 0)), nil
	case "AbortController":
		return rt.newAbortController(), nil
	case "Event", "CustomEvent":
		obj := jsvalue.NewObject()
		obj.Set(callableKindKey, jsvalue.String("EventInit"))
		obj.Set("type", jsvalue.String(argStr(args, 0)))
		obj.Set("bubbles", jsvalue.Bool(false))
		obj.Set("cancelable", jsvalue.Bool(false))
		if init := arg(args, 1); init.Kind() == jsvalue.KindObject {
			for _, k := range init.Object().Keys() {
				v, _ := init.Object().Get(k)
				obj.Set(k, v)
			}
		}
		return jsvalue.ObjectValue(obj), nil
	case "Error", "TypeError", "RangeError", "SyntaxError":
		obj := jsvalue.NewObject()
		obj.Set("name", jsvalue.String(tag))
		obj.Set("message", jsvalue.String(argStr(args, 0)))
		obj.Set("stack", jsvalue.String(tag+": "+argStr(args, 0)))
		if opts := arg(args, 1); opts.Kind() == jsvalue.KindObject {
			if cause, ok := opts.Object().Get("cause"); ok {
				obj.Set("cause", cause)
			}
		}
		return jsvalue.ObjectValue(obj), nil
	}
	if kind, ok := strings.CutSuffix(tag, "Array"); ok && kind != "" {
		return rt.newTypedFromArgs(kind, args)
	}
	return jsvalue.Undefined(), rtErrf("%s is not a constructor", tag)
}

func (rt *Runtime) newTypedFromArgs(kind string, args []jsvalue.Value) (jsvalue.Value, error) {
	src := arg(args, 0)
	switch src.Kind() {
	case jsvalue.KindNumber, jsvalue.KindFloat:
		return jsvalue.TypedArrayValue(newTypedArray(kind, int(jsvalue.ValueToI64(src)))), nil
	case jsvalue.KindArrayBuffer:
		buf := src.Buffer()
		offset := argInt(args, 1)
		size := typedElemSize(kind)
		length := (len(buf.Data) - offset) / size
		if len(args) > 2 {
			length = argInt(args, 2)
		}
		return jsvalue.TypedArrayValue(&jsvalue.TypedArray{Buffer: buf, ByteOffset: offset, Length: length, ElemKind: kind}), nil
	case jsvalue.KindUndefined:
		return jsvalue.TypedArrayValue(newTypedArray(kind, 0)), nil
	default:
		items, err := rt.iterateValue(src)
		if err != nil {
			return jsvalue.Undefined(), err
		}
		t := newTypedArray(kind, len(items))
		for i, it := range items {
			if err := typedSetIndex(t, i, it); err != nil {
				return jsvalue.Undefined(), err
			}
		}
		return jsvalue.TypedArrayValue(t), nil
	}
}

func (rt *Runtime) newPromiseFromExecutor(executor jsvalue.Value) (jsvalue.Value, error) {
	p := rt.newPromise()
	if !jsvalue.IsCallable(executor) {
		return jsvalue.Undefined(), rtErrf("Promise resolver is not a function")
	}
	resolve := nativeFn("resolve", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		rt.resolvePromise(p, arg(args, 0))
		return jsvalue.Undefined(), nil
	})
	reject := nativeFn("reject", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		rt.rejectPromise(p, arg(args, 0))
		return jsvalue.Undefined(), nil
	})
	if _, err := rt.callFunction(executor, jsvalue.Undefined(), []jsvalue.Value{resolve, reject}); err != nil {
		if v := errorToValue(err); v != nil {
			rt.rejectPromise(p, *v)
		} else {
			return jsvalue.Undefined(), err
		}
	}
	return jsvalue.PromiseValue(p), nil
}
