package evaluator

import (
	"math"
	"strings"

	"github.com/cryguy/domharness/internal/jsvalue"
)

// constructorMember dispatches property reads on constructor-singleton tags
// (Math.*, JSON.*, Object statics, the document/window/location platform
// objects, …).
func (rt *Runtime) constructorMember(tag, name string, env *Env) (jsvalue.Value, error) {
	switch tag {
	case "Math":
		return rt.mathMember(name)
	case "JSON":
		return rt.jsonMember(name)
	case "Object":
		return rt.objectStatics(name)
	case "Array":
		return rt.arrayStatics(name)
	case "String":
		return rt.stringStatics(name)
	case "Number":
		return rt.numberStatics(name)
	case "Promise":
		return rt.promiseStatics(name)
	case "Symbol":
		return rt.symbolStatics(name)
	case "Date":
		return rt.dateStatics(name)
	case "document":
		return rt.documentMember(name, env)
	case "window", "globalThis":
		return rt.windowMember(name, env)
	case "location":
		return rt.locationMember(name)
	case "history":
		return rt.historyMember(name)
	case "navigator":
		return rt.navigatorMember(name)
	case "console":
		return rt.consoleMember(name)
	case "localStorage":
		return rt.storageMember(rt.Local, name)
	case "sessionStorage":
		return rt.storageMember(rt.Session, name)
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) constructorSetMember(tag, name string, v jsvalue.Value, env *Env) error {
	switch tag {
	case "window", "globalThis":
		rt.Global.Set(name, v)
		return nil
	case "document":
		switch name {
		case "title":
			if title := rt.findOrCreateTitle(); title != 0 {
				return rt.Arena.SetTextContent(title, jsvalue.AsString(v))
			}
			return nil
		case "cookie":
			rt.cookie = jsvalue.AsString(v)
			return nil
		}
		return nil
	case "location":
		return rt.locationSetMember(name, v)
	}
	return nil
}

func (rt *Runtime) mathMember(name string) (jsvalue.Value, error) {
	unary := func(f func(float64) float64) jsvalue.Value {
		return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return numberFromFloat(f(jsvalue.ToNumberFloat(arg(args, 0)))), nil
		})
	}
	switch name {
	case "PI":
		return jsvalue.Float(math.Pi), nil
	case "E":
		return jsvalue.Float(math.E), nil
	case "LN2":
		return jsvalue.Float(math.Ln2), nil
	case "LN10":
		return jsvalue.Float(math.Log(10)), nil
	case "SQRT2":
		return jsvalue.Float(math.Sqrt2), nil
	case "abs":
		return unary(math.Abs), nil
	case "floor":
		return unary(math.Floor), nil
	case "ceil":
		return unary(math.Ceil), nil
	case "round":
		return unary(func(f float64) float64 { return math.Floor(f + 0.5) }), nil
	case "trunc":
		return unary(math.Trunc), nil
	case "sqrt":
		return unary(math.Sqrt), nil
	case "cbrt":
		return unary(math.Cbrt), nil
	case "sign":
		return unary(func(f float64) float64 {
			switch {
			case f > 0:
				return 1
			case f < 0:
				return -1
			}
			return f
		}), nil
	case "log":
		return unary(math.Log), nil
	case "log2":
		return unary(math.Log2), nil
	case "log10":
		return unary(math.Log10), nil
	case "exp":
		return unary(math.Exp), nil
	case "sin":
		return unary(math.Sin), nil
	case "cos":
		return unary(math.Cos), nil
	case "tan":
		return unary(math.Tan), nil
	case "asin":
		return unary(math.Asin), nil
	case "acos":
		return unary(math.Acos), nil
	case "atan":
		return unary(math.Atan), nil
	case "atan2":
		return nativeFn("atan2", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return numberFromFloat(math.Atan2(jsvalue.ToNumberFloat(arg(args, 0)), jsvalue.ToNumberFloat(arg(args, 1)))), nil
		}), nil
	case "pow":
		return nativeFn("pow", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return numberFromFloat(math.Pow(jsvalue.ToNumberFloat(arg(args, 0)), jsvalue.ToNumberFloat(arg(args, 1)))), nil
		}), nil
	case "hypot":
		return nativeFn("hypot", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			sum := 0.0
			for _, a := range args {
				f := jsvalue.ToNumberFloat(a)
				sum += f * f
			}
			return numberFromFloat(math.Sqrt(sum)), nil
		}), nil
	case "min", "max":
		return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			if len(args) == 0 {
				if name == "min" {
					return jsvalue.Float(math.Inf(1)), nil
				}
				return jsvalue.Float(math.Inf(-1)), nil
			}
			out := jsvalue.ToNumberFloat(args[0])
			for _, a := range args[1:] {
				f := jsvalue.ToNumberFloat(a)
				if math.IsNaN(f) {
					return jsvalue.Float(math.NaN()), nil
				}
				if (name == "min" && f < out) || (name == "max" && f > out) {
					out = f
				}
			}
			return numberFromFloat(out), nil
		}), nil
	case "random":
		return nativeFn("random", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Float(rt.Sched.Random()), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) jsonMember(name string) (jsvalue.Value, error) {
	switch name {
	case "stringify":
		return nativeFn("stringify", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.jsonStringify(arg(args, 0), arg(args, 2))
		}), nil
	case "parse":
		return nativeFn("parse", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			v, err := rt.jsonParse(argStr(args, 0))
			if err != nil {
				// JSON.parse failures are catchable SyntaxErrors
				if re, ok := err.(*RuntimeError); ok {
					obj := jsvalue.NewObject()
					obj.Set("name", jsvalue.String("SyntaxError"))
					obj.Set("message", jsvalue.String(re.Msg))
					return jsvalue.Undefined(), &ThrownError{Value: jsvalue.ObjectValue(obj)}
				}
				return jsvalue.Undefined(), err
			}
			return v, nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) objectStatics(name string) (jsvalue.Value, error) {
	switch name {
	case "keys":
		return nativeFn("keys", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			out := jsvalue.NewArray()
			for _, k := range ownKeys(arg(args, 0)) {
				out.Items = append(out.Items, jsvalue.String(k))
			}
			return jsvalue.ArrayValue(out), nil
		}), nil
	case "values":
		return nativeFn("values", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			v := arg(args, 0)
			out := jsvalue.NewArray()
			for _, k := range ownKeys(v) {
				pv, _ := rt.getMember(v, k, nil)
				out.Items = append(out.Items, pv)
			}
			return jsvalue.ArrayValue(out), nil
		}), nil
	case "entries":
		return nativeFn("entries", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			v := arg(args, 0)
			out := jsvalue.NewArray()
			for _, k := range ownKeys(v) {
				pv, _ := rt.getMember(v, k, nil)
				out.Items = append(out.Items, jsvalue.ArrayValue(jsvalue.NewArray(jsvalue.String(k), pv)))
			}
			return jsvalue.ArrayValue(out), nil
		}), nil
	case "assign":
		return nativeFn("assign", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			target := arg(args, 0)
			if target.Kind() != jsvalue.KindObject {
				return jsvalue.Undefined(), rtErrf("Object.assign target must be an object")
			}
			for _, src := range args[1:] {
				if src.Kind() != jsvalue.KindObject {
					continue
				}
				for _, k := range src.Object().Keys() {
					v, _ := src.Object().Get(k)
					target.Object().Set(k, v)
				}
			}
			return target, nil
		}), nil
	case "fromEntries":
		return nativeFn("fromEntries", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			items, err := rt.iterateValue(arg(args, 0))
			if err != nil {
				return jsvalue.Undefined(), err
			}
			obj := jsvalue.NewObject()
			for _, it := range items {
				if it.Kind() == jsvalue.KindArray && len(it.Array().Items) >= 2 {
					obj.Set(jsvalue.AsString(it.Array().Items[0]), it.Array().Items[1])
				}
			}
			return jsvalue.ObjectValue(obj), nil
		}), nil
	case "freeze", "seal", "preventExtensions":
		return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return arg(args, 0), nil
		}), nil
	case "create":
		return nativeFn("create", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			obj := jsvalue.NewObject()
			if proto := arg(args, 0); proto.Kind() == jsvalue.KindObject {
				for _, k := range proto.Object().Keys() {
					v, _ := proto.Object().Get(k)
					obj.Set(k, v)
				}
			}
			return jsvalue.ObjectValue(obj), nil
		}), nil
	case "getOwnPropertyNames":
		return rt.objectStatics("keys")
	case "hasOwn":
		return nativeFn("hasOwn", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			v := arg(args, 0)
			if v.Kind() != jsvalue.KindObject {
				return jsvalue.Bool(false), nil
			}
			_, ok := v.Object().Get(argStr(args, 1))
			return jsvalue.Bool(ok), nil
		}), nil
	case "defineProperty":
		return nativeFn("defineProperty", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			target := arg(args, 0)
			if target.Kind() != jsvalue.KindObject {
				return jsvalue.Undefined(), rtErrf("Object.defineProperty target must be an object")
			}
			key := argStr(args, 1)
			desc := arg(args, 2)
			if desc.Kind() != jsvalue.KindObject {
				return target, nil
			}
			if v, ok := desc.Object().Get("value"); ok {
				target.Object().Set(key, v)
			}
			if g, ok := desc.Object().Get("get"); ok {
				target.Object().Set(jsvalue.HiddenKey("get:"+key), g)
			}
			if s, ok := desc.Object().Get("set"); ok {
				target.Object().Set(jsvalue.HiddenKey("set:"+key), s)
			}
			return target, nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func ownKeys(v jsvalue.Value) []string {
	switch v.Kind() {
	case jsvalue.KindObject:
		return v.Object().Keys()
	case jsvalue.KindArray:
		out := make([]string, len(v.Array().Items))
		for i := range v.Array().Items {
			out[i] = jsvalue.AsString(jsvalue.Number(int64(i)))
		}
		return out
	}
	return nil
}

func (rt *Runtime) arrayStatics(name string) (jsvalue.Value, error) {
	switch name {
	case "isArray":
		return nativeFn("isArray", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Bool(arg(args, 0).Kind() == jsvalue.KindArray), nil
		}), nil
	case "from":
		return nativeFn("from", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			src := arg(args, 0)
			var items []jsvalue.Value
			if src.Kind() == jsvalue.KindObject {
				// array-like: {length, 0: .., 1: ..}
				if lv, ok := src.Object().Get("length"); ok {
					n := int(jsvalue.ValueToI64(lv))
					for i := 0; i < n; i++ {
						v, _ := src.Object().Get(jsvalue.AsString(jsvalue.Number(int64(i))))
						items = append(items, v)
					}
				} else {
					var err error
					items, err = rt.iterateValue(src)
					if err != nil {
						return jsvalue.Undefined(), err
					}
				}
			} else {
				var err error
				items, err = rt.iterateValue(src)
				if err != nil {
					return jsvalue.Undefined(), err
				}
			}
			if mapFn := arg(args, 1); jsvalue.IsCallable(mapFn) {
				for i, it := range items {
					v, err := rt.callFunction(mapFn, jsvalue.Undefined(), []jsvalue.Value{it, jsvalue.Number(int64(i))})
					if err != nil {
						return jsvalue.Undefined(), err
					}
					items[i] = v
				}
			}
			return jsvalue.ArrayValue(jsvalue.NewArray(items...)), nil
		}), nil
	case "of":
		return nativeFn("of", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.ArrayValue(jsvalue.NewArray(args...)), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) stringStatics(name string) (jsvalue.Value, error) {
	switch name {
	case "fromCharCode", "fromCodePoint":
		return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			var sb strings.Builder
			for _, a := range args {
				sb.WriteRune(rune(jsvalue.ValueToI64(a)))
			}
			return jsvalue.String(sb.String()), nil
		}), nil
	case "raw":
		return nativeFn("raw", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			tpl := arg(args, 0)
			var sb strings.Builder
			if tpl.Kind() == jsvalue.KindArray {
				for i, q := range tpl.Array().Items {
					sb.WriteString(jsvalue.AsString(q))
					if i+1 < len(args) {
						sb.WriteString(argStr(args, i+1))
					}
				}
			}
			return jsvalue.String(sb.String()), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) numberStatics(name string) (jsvalue.Value, error) {
	switch name {
	case "MAX_SAFE_INTEGER":
		return jsvalue.Number(9007199254740991), nil
	case "MIN_SAFE_INTEGER":
		return jsvalue.Number(-9007199254740991), nil
	case "EPSILON":
		return jsvalue.Float(math.Nextafter(1, 2) - 1), nil
	case "POSITIVE_INFINITY":
		return jsvalue.Float(math.Inf(1)), nil
	case "NEGATIVE_INFINITY":
		return jsvalue.Float(math.Inf(-1)), nil
	case "NaN":
		return jsvalue.Float(math.NaN()), nil
	case "isInteger", "isSafeInteger":
		return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			v := arg(args, 0)
			if v.Kind() != jsvalue.KindNumber && v.Kind() != jsvalue.KindFloat {
				return jsvalue.Bool(false), nil
			}
			f := jsvalue.ToNumberFloat(v)
			return jsvalue.Bool(f == math.Trunc(f) && !math.IsInf(f, 0)), nil
		}), nil
	case "isFinite":
		return nativeFn("isFinite", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			v := arg(args, 0)
			if v.Kind() != jsvalue.KindNumber && v.Kind() != jsvalue.KindFloat {
				return jsvalue.Bool(false), nil
			}
			f := jsvalue.ToNumberFloat(v)
			return jsvalue.Bool(!math.IsNaN(f) && !math.IsInf(f, 0)), nil
		}), nil
	case "isNaN":
		return nativeFn("isNaN", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			v := arg(args, 0)
			return jsvalue.Bool(v.Kind() == jsvalue.KindFloat && math.IsNaN(v.Float())), nil
		}), nil
	case "parseInt":
		return nativeFn("parseInt", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return parseIntGlobal(argStr(args, 0), argInt(args, 1)), nil
		}), nil
	case "parseFloat":
		return nativeFn("parseFloat", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return parseFloatGlobal(argStr(args, 0)), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) promiseStatics(name string) (jsvalue.Value, error) {
	switch name {
	case "resolve":
		return nativeFn("resolve", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			v := arg(args, 0)
			if v.Kind() == jsvalue.KindPromise {
				return v, nil
			}
			return rt.resolvedPromise(v), nil
		}), nil
	case "reject":
		return nativeFn("reject", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.rejectedPromise(arg(args, 0)), nil
		}), nil
	case "all", "allSettled", "race", "any":
		return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			items, err := rt.iterateValue(arg(args, 0))
			if err != nil {
				return jsvalue.Undefined(), err
			}
			return rt.promiseCombinator(name, items), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) promiseCombinator(kind string, items []jsvalue.Value) jsvalue.Value {
	result := rt.newPromise()
	n := len(items)
	if n == 0 {
		switch kind {
		case "all", "allSettled":
			rt.resolvePromise(result, jsvalue.ArrayValue(jsvalue.NewArray()))
		case "any":
			rt.rejectPromise(result, jsvalue.String("AggregateError: All promises were rejected"))
		}
		return jsvalue.PromiseValue(result)
	}
	outcome := make([]jsvalue.Value, n)
	remaining := n
	for i, it := range items {
		i := i
		p := rt.newPromise()
		rt.resolvePromise(p, it)
		onF := nativeFn("", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			v := arg(args, 0)
			switch kind {
			case "race", "any":
				rt.resolvePromise(result, v)
			case "allSettled":
				entry := jsvalue.NewObject()
				entry.Set("status", jsvalue.String("fulfilled"))
				entry.Set("value", v)
				outcome[i] = jsvalue.ObjectValue(entry)
				remaining--
				if remaining == 0 {
					rt.resolvePromise(result, jsvalue.ArrayValue(jsvalue.NewArray(outcome...)))
				}
			default: // all
				outcome[i] = v
				remaining--
				if remaining == 0 {
					rt.resolvePromise(result, jsvalue.ArrayValue(jsvalue.NewArray(outcome...)))
				}
			}
			return jsvalue.Undefined(), nil
		}).Func()
		onR := nativeFn("", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			v := arg(args, 0)
			switch kind {
			case "all", "race":
				rt.rejectPromise(result, v)
			case "allSettled":
				entry := jsvalue.NewObject()
				entry.Set("status", jsvalue.String("rejected"))
				entry.Set("reason", v)
				outcome[i] = jsvalue.ObjectValue(entry)
				remaining--
				if remaining == 0 {
					rt.resolvePromise(result, jsvalue.ArrayValue(jsvalue.NewArray(outcome...)))
				}
			case "any":
				remaining--
				if remaining == 0 {
					rt.rejectPromise(result, jsvalue.String("AggregateError: All promises were rejected"))
				}
			}
			return jsvalue.Undefined(), nil
		}).Func()
		rt.promiseThen(p, onF, onR)
	}
	return jsvalue.PromiseValue(result)
}

func (rt *Runtime) symbolStatics(name string) (jsvalue.Value, error) {
	switch name {
	case "iterator", "asyncIterator", "toStringTag", "hasInstance":
		return jsvalue.SymbolValue(&jsvalue.Symbol{Description: "Symbol." + name}), nil
	case "for":
		return nativeFn("for", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.SymbolValue(&jsvalue.Symbol{Description: argStr(args, 0)}), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) dateStatics(name string) (jsvalue.Value, error) {
	switch name {
	case "now":
		return nativeFn("now", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Number(rt.Sched.NowMS), nil
		}), nil
	case "parse":
		return nativeFn("parse", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Float(parseDateString(argStr(args, 0))), nil
		}), nil
	case "UTC":
		return nativeFn("UTC", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			f := dateFields{year: argInt(args, 0), month: 1, day: 1}
			if len(args) > 1 {
				f.month = argInt(args, 1) + 1
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
			return jsvalue.Float(epochFromFields(f)), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) consoleMember(name string) (jsvalue.Value, error) {
	switch name {
	case "log", "info", "warn", "error", "debug", "trace":
		level := name
		return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = jsvalue.AsString(a)
			}
			rt.Console = append(rt.Console, LogEntry{Level: level, Message: strings.Join(parts, " ")})
			return jsvalue.Undefined(), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) storageMember(store storageLike, name string) (jsvalue.Value, error) {
	switch name {
	case "length":
		return jsvalue.Number(int64(store.Length())), nil
	case "getItem":
		return nativeFn("getItem", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			v, ok := store.GetItem(argStr(args, 0))
			if !ok {
				return jsvalue.Null(), nil
			}
			return jsvalue.String(v), nil
		}), nil
	case "setItem":
		return nativeFn("setItem", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			store.SetItem(argStr(args, 0), argStr(args, 1))
			return jsvalue.Undefined(), nil
		}), nil
	case "removeItem":
		return nativeFn("removeItem", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			store.RemoveItem(argStr(args, 0))
			return jsvalue.Undefined(), nil
		}), nil
	case "clear":
		return nativeFn("clear", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			store.Clear()
			return jsvalue.Undefined(), nil
		}), nil
	case "key":
		return nativeFn("key", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			k, ok := store.Key(argInt(args, 0))
			if !ok {
				return jsvalue.Null(), nil
			}
			return jsvalue.String(k), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

// storageLike abstracts platform.Storage for testability of the member
// dispatch.
type storageLike interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string)
	RemoveItem(key string)
	Clear()
	Key(index int) (string, bool)
	Length() int
}
