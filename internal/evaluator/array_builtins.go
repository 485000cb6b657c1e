package evaluator

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cryguy/domharness/internal/jsvalue"
)

// arrayMember dispatches Array.prototype-equivalent methods. Callback-taking
// methods snapshot the backing slice first, per the reentrancy rule of
// spec.md §5 ("every iterator must snapshot its source before iterating").
func (rt *Runtime) arrayMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	arr := base.Array()
	if idx, err := strconv.Atoi(name); err == nil {
		if idx >= 0 && idx < len(arr.Items) {
			return arr.Items[idx], nil
		}
		return jsvalue.Undefined(), nil
	}
	switch name {
	case "length":
		return jsvalue.Number(int64(len(arr.Items))), nil
	case "push":
		return nativeFn("push", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			arr.Items = append(arr.Items, args...)
			return jsvalue.Number(int64(len(arr.Items))), nil
		}), nil
	case "pop":
		return nativeFn("pop", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			if len(arr.Items) == 0 {
				return jsvalue.Undefined(), nil
			}
			v := arr.Items[len(arr.Items)-1]
			arr.Items = arr.Items[:len(arr.Items)-1]
			return v, nil
		}), nil
	case "shift":
		return nativeFn("shift", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			if len(arr.Items) == 0 {
				return jsvalue.Undefined(), nil
			}
			v := arr.Items[0]
			arr.Items = append(arr.Items[:0], arr.Items[1:]...)
			return v, nil
		}), nil
	case "unshift":
		return nativeFn("unshift", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			arr.Items = append(append([]jsvalue.Value(nil), args...), arr.Items...)
			return jsvalue.Number(int64(len(arr.Items))), nil
		}), nil
	case "slice":
		return nativeFn("slice", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			start, end := sliceBounds(len(arr.Items), args)
			return jsvalue.ArrayValue(jsvalue.NewArray(append([]jsvalue.Value(nil), arr.Items[start:end]...)...)), nil
		}), nil
	case "splice":
		return nativeFn("splice", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			n := len(arr.Items)
			start := normalizeIndex(argInt(args, 0), n)
			del := n - start
			if len(args) > 1 {
				del = argInt(args, 1)
			}
			if del < 0 {
				del = 0
			}
			if start+del > n {
				del = n - start
			}
			removed := append([]jsvalue.Value(nil), arr.Items[start:start+del]...)
			var insert []jsvalue.Value
			if len(args) > 2 {
				insert = args[2:]
			}
			tail := append([]jsvalue.Value(nil), arr.Items[start+del:]...)
			arr.Items = append(append(arr.Items[:start], insert...), tail...)
			return jsvalue.ArrayValue(jsvalue.NewArray(removed...)), nil
		}), nil
	case "concat":
		return nativeFn("concat", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			out := append([]jsvalue.Value(nil), arr.Items...)
			for _, a := range args {
				if a.Kind() == jsvalue.KindArray {
					out = append(out, a.Array().Items...)
				} else {
					out = append(out, a)
				}
			}
			return jsvalue.ArrayValue(jsvalue.NewArray(out...)), nil
		}), nil
	case "join":
		return nativeFn("join", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			sep := ","
			if len(args) > 0 && !arg(args, 0).IsUndefined() {
				sep = argStr(args, 0)
			}
			parts := make([]string, len(arr.Items))
			for i, it := range arr.Items {
				if it.IsNullish() {
					parts[i] = ""
				} else {
					parts[i] = jsvalue.AsString(it)
				}
			}
			return jsvalue.String(strings.Join(parts, sep)), nil
		}), nil
	case "indexOf":
		return nativeFn("indexOf", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			for i, it := range arr.Items {
				if jsvalue.StrictEquals(it, arg(args, 0)) {
					return jsvalue.Number(int64(i)), nil
				}
			}
			return jsvalue.Number(-1), nil
		}), nil
	case "lastIndexOf":
		return nativeFn("lastIndexOf", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			for i := len(arr.Items) - 1; i >= 0; i-- {
				if jsvalue.StrictEquals(arr.Items[i], arg(args, 0)) {
					return jsvalue.Number(int64(i)), nil
				}
			}
			return jsvalue.Number(-1), nil
		}), nil
	case "includes":
		return nativeFn("includes", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			for _, it := range arr.Items {
				if jsvalue.SameValueZero(it, arg(args, 0)) {
					return jsvalue.Bool(true), nil
				}
			}
			return jsvalue.Bool(false), nil
		}), nil
	case "find", "findIndex", "findLast", "findLastIndex":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			snap := append([]jsvalue.Value(nil), arr.Items...)
			idxs := make([]int, len(snap))
			for i := range snap {
				idxs[i] = i
			}
			if strings.Contains(name, "Last") {
				for i, j := 0, len(idxs)-1; i < j; i, j = i+1, j-1 {
					idxs[i], idxs[j] = idxs[j], idxs[i]
				}
			}
			for _, i := range idxs {
				ok, err := rt.callbackBool(arg(args, 0), arg(args, 1), snap[i], i, base)
				if err != nil {
					return jsvalue.Undefined(), err
				}
				if ok {
					if strings.Contains(name, "Index") {
						return jsvalue.Number(int64(i)), nil
					}
					return snap[i], nil
				}
			}
			if strings.Contains(name, "Index") {
				return jsvalue.Number(-1), nil
			}
			return jsvalue.Undefined(), nil
		}), nil
	case "filter":
		return nativeFn("filter", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			snap := append([]jsvalue.Value(nil), arr.Items...)
			out := jsvalue.NewArray()
			for i, it := range snap {
				ok, err := rt.callbackBool(arg(args, 0), arg(args, 1), it, i, base)
				if err != nil {
					return jsvalue.Undefined(), err
				}
				if ok {
					out.Items = append(out.Items, it)
				}
			}
			return jsvalue.ArrayValue(out), nil
		}), nil
	case "map":
		return nativeFn("map", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			snap := append([]jsvalue.Value(nil), arr.Items...)
			out := jsvalue.NewArray()
			for i, it := range snap {
				v, err := rt.callFunction(arg(args, 0), arg(args, 1), []jsvalue.Value{it, jsvalue.Number(int64(i)), base})
				if err != nil {
					return jsvalue.Undefined(), err
				}
				out.Items = append(out.Items, v)
			}
			return jsvalue.ArrayValue(out), nil
		}), nil
	case "forEach":
		return nativeFn("forEach", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			snap := append([]jsvalue.Value(nil), arr.Items...)
			for i, it := range snap {
				if _, err := rt.callFunction(arg(args, 0), arg(args, 1), []jsvalue.Value{it, jsvalue.Number(int64(i)), base}); err != nil {
					return jsvalue.Undefined(), err
				}
			}
			return jsvalue.Undefined(), nil
		}), nil
	case "reduce", "reduceRight":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			snap := append([]jsvalue.Value(nil), arr.Items...)
			if name == "reduceRight" {
				for i, j := 0, len(snap)-1; i < j; i, j = i+1, j-1 {
					snap[i], snap[j] = snap[j], snap[i]
				}
			}
			acc := arg(args, 1)
			start := 0
			if len(args) < 2 {
				if len(snap) == 0 {
					return jsvalue.Undefined(), rtErrf("reduce of empty array with no initial value")
				}
				acc = snap[0]
				start = 1
			}
			for i := start; i < len(snap); i++ {
				idx := i
				if name == "reduceRight" {
					idx = len(snap) - 1 - i
				}
				v, err := rt.callFunction(arg(args, 0), jsvalue.Undefined(), []jsvalue.Value{acc, snap[i], jsvalue.Number(int64(idx)), base})
				if err != nil {
					return jsvalue.Undefined(), err
				}
				acc = v
			}
			return acc, nil
		}), nil
	case "some", "every":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			snap := append([]jsvalue.Value(nil), arr.Items...)
			for i, it := range snap {
				ok, err := rt.callbackBool(arg(args, 0), arg(args, 1), it, i, base)
				if err != nil {
					return jsvalue.Undefined(), err
				}
				if name == "some" && ok {
					return jsvalue.Bool(true), nil
				}
				if name == "every" && !ok {
					return jsvalue.Bool(false), nil
				}
			}
			return jsvalue.Bool(name == "every"), nil
		}), nil
	case "sort":
		return nativeFn("sort", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			cmp := arg(args, 0)
			var cbErr error
			sort.SliceStable(arr.Items, func(i, j int) bool {
				if cbErr != nil {
					return false
				}
				a, b := arr.Items[i], arr.Items[j]
				if jsvalue.IsCallable(cmp) {
					r, err := rt.callFunction(cmp, jsvalue.Undefined(), []jsvalue.Value{a, b})
					if err != nil {
						cbErr = err
						return false
					}
					return jsvalue.ToNumberFloat(r) < 0
				}
				return jsvalue.AsString(a) < jsvalue.AsString(b)
			})
			if cbErr != nil {
				return jsvalue.Undefined(), cbErr
			}
			return base, nil
		}), nil
	case "reverse":
		return nativeFn("reverse", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			for i, j := 0, len(arr.Items)-1; i < j; i, j = i+1, j-1 {
				arr.Items[i], arr.Items[j] = arr.Items[j], arr.Items[i]
			}
			return base, nil
		}), nil
	case "flat":
		return nativeFn("flat", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			depth := 1
			if len(args) > 0 {
				depth = argInt(args, 0)
			}
			return jsvalue.ArrayValue(jsvalue.NewArray(flatten(arr.Items, depth)...)), nil
		}), nil
	case "flatMap":
		return nativeFn("flatMap", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			snap := append([]jsvalue.Value(nil), arr.Items...)
			var out []jsvalue.Value
			for i, it := range snap {
				v, err := rt.callFunction(arg(args, 0), arg(args, 1), []jsvalue.Value{it, jsvalue.Number(int64(i)), base})
				if err != nil {
					return jsvalue.Undefined(), err
				}
				if v.Kind() == jsvalue.KindArray {
					out = append(out, v.Array().Items...)
				} else {
					out = append(out, v)
				}
			}
			return jsvalue.ArrayValue(jsvalue.NewArray(out...)), nil
		}), nil
	case "fill":
		return nativeFn("fill", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			var bounds []jsvalue.Value
			if len(args) > 1 {
				bounds = args[1:]
			}
			start, end := sliceBounds(len(arr.Items), bounds)
			for i := start; i < end; i++ {
				arr.Items[i] = arg(args, 0)
			}
			return base, nil
		}), nil
	case "at":
		return nativeFn("at", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			i := argInt(args, 0)
			if i < 0 {
				i += len(arr.Items)
			}
			if i < 0 || i >= len(arr.Items) {
				return jsvalue.Undefined(), nil
			}
			return arr.Items[i], nil
		}), nil
	case "keys", "values", "entries":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			snap := append([]jsvalue.Value(nil), arr.Items...)
			var items []jsvalue.Value
			for i, it := range snap {
				switch name {
				case "keys":
					items = append(items, jsvalue.Number(int64(i)))
				case "values":
					items = append(items, it)
				default:
					items = append(items, jsvalue.ArrayValue(jsvalue.NewArray(jsvalue.Number(int64(i)), it)))
				}
			}
			return rt.makeArrayIterator(items), nil
		}), nil
	case "toString":
		return nativeFn("toString", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.String(jsvalue.AsString(base)), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func flatten(items []jsvalue.Value, depth int) []jsvalue.Value {
	var out []jsvalue.Value
	for _, it := range items {
		if it.Kind() == jsvalue.KindArray && depth > 0 {
			out = append(out, flatten(it.Array().Items, depth-1)...)
		} else {
			out = append(out, it)
		}
	}
	return out
}

// callbackBool runs an array predicate callback and coerces the result.
// Break/continue escaping a callback body surface as ScriptRuntime via
// callFunction's flow translation (spec.md §4.J "Callback invocation
// utilities").
func (rt *Runtime) callbackBool(cb, thisArg, item jsvalue.Value, i int, src jsvalue.Value) (bool, error) {
	v, err := rt.callFunction(cb, thisArg, []jsvalue.Value{item, jsvalue.Number(int64(i)), src})
	if err != nil {
		return false, err
	}
	return jsvalue.ToBool(v), nil
}
