package evaluator

import (
	"strconv"

	"github.com/cryguy/domharness/internal/jsvalue"
)

// callableKindKey is the hidden "callable_kind" discriminator spec.md §4.J
// describes for builtin closures carried on plain Objects (storage methods,
// iterator-next, constructor stubs, …).
var callableKindKey = jsvalue.HiddenKey("callable_kind")

func nativeFn(name string, f func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error)) jsvalue.Value {
	return jsvalue.FunctionValue(&jsvalue.Function{Name: name, Native: f})
}

func arg(args []jsvalue.Value, i int) jsvalue.Value {
	if i < len(args) {
		return args[i]
	}
	return jsvalue.Undefined()
}

func argStr(args []jsvalue.Value, i int) string { return jsvalue.AsString(arg(args, i)) }

func argInt(args []jsvalue.Value, i int) int { return int(jsvalue.ValueToI64(arg(args, i))) }

// getMember is the central property-read dispatch over the tagged value
// model (spec.md §4.J "Built-ins are implemented as tagged callables").
func (rt *Runtime) getMember(base jsvalue.Value, name string, env *Env) (jsvalue.Value, error) {
	switch base.Kind() {
	case jsvalue.KindUndefined, jsvalue.KindNull:
		return jsvalue.Undefined(), rtErrf("cannot read properties of %s (reading %q)", base.Kind(), name)
	case jsvalue.KindString:
		return rt.stringMember(base.Str(), name)
	case jsvalue.KindNumber, jsvalue.KindFloat:
		return rt.numberMember(base, name)
	case jsvalue.KindBigInt:
		return rt.bigintMember(base, name)
	case jsvalue.KindBool:
		if name == "toString" {
			return nativeFn("toString", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
				return jsvalue.String(jsvalue.AsString(base)), nil
			}), nil
		}
		return jsvalue.Undefined(), nil
	case jsvalue.KindArray:
		return rt.arrayMember(base, name)
	case jsvalue.KindObject:
		return rt.objectMember(base, name)
	case jsvalue.KindMap:
		return rt.mapMember(base, name)
	case jsvalue.KindSet:
		return rt.setMemberOps(base, name)
	case jsvalue.KindDate:
		return rt.dateMember(base, name)
	case jsvalue.KindRegExp:
		return rt.regexMember(base, name)
	case jsvalue.KindPromise:
		return rt.promiseMember(base, name)
	case jsvalue.KindFunction:
		return rt.functionMember(base, name)
	case jsvalue.KindNode:
		return rt.nodeGetMember(base, name, env)
	case jsvalue.KindNodeList:
		return rt.nodeListMember(base, name)
	case jsvalue.KindFormData:
		return rt.formDataMember(base, name)
	case jsvalue.KindBlob:
		return rt.blobMember(base, name)
	case jsvalue.KindArrayBuffer:
		return rt.bufferMember(base, name)
	case jsvalue.KindTypedArray:
		return rt.typedMember(base, name)
	case jsvalue.KindSymbol:
		return rt.symbolMember(base, name)
	case jsvalue.KindConstructor:
		return rt.constructorMember(base.ConstructorTag(), name, env)
	}
	return jsvalue.Undefined(), nil
}

// setMember is the central property-write dispatch.
func (rt *Runtime) setMember(base jsvalue.Value, name string, v jsvalue.Value, env *Env) error {
	switch base.Kind() {
	case jsvalue.KindUndefined, jsvalue.KindNull:
		return rtErrf("cannot set properties of %s (setting %q)", base.Kind(), name)
	case jsvalue.KindObject:
		return rt.objectSetMember(base, name, v)
	case jsvalue.KindArray:
		return rt.arraySetMember(base, name, v)
	case jsvalue.KindNode:
		return rt.nodeSetMember(base, name, v, env)
	case jsvalue.KindTypedArray:
		if idx, err := strconv.Atoi(name); err == nil {
			return typedSetIndex(base.Typed(), idx, v)
		}
		return nil
	case jsvalue.KindRegExp:
		if name == "lastIndex" {
			base.Regexp().LastIndex = int(jsvalue.ValueToI64(v))
			return nil
		}
		return nil
	case jsvalue.KindDate:
		return nil
	case jsvalue.KindFunction:
		return nil
	case jsvalue.KindConstructor:
		return rt.constructorSetMember(base.ConstructorTag(), name, v, env)
	}
	return rtErrf("cannot set property %q on a %s", name, base.Kind())
}

// ---- object ----

func (rt *Runtime) objectMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	obj := base.Object()
	if getter, ok := obj.Get(jsvalue.HiddenKey("get:" + name)); ok {
		return rt.callFunction(getter, base, nil)
	}
	if v, ok := obj.Get(name); ok {
		return v, nil
	}
	if kindV, ok := obj.Get(callableKindKey); ok {
		if v, handled, err := rt.platformObjectMember(base, kindV.Str(), name); handled {
			return v, err
		}
	}
	switch name {
	case "hasOwnProperty":
		return nativeFn("hasOwnProperty", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			_, ok := obj.Get(argStr(args, 0))
			return jsvalue.Bool(ok), nil
		}), nil
	case "toString":
		return nativeFn("toString", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.String(jsvalue.AsString(base)), nil
		}), nil
	case "constructor":
		if ctor, ok := obj.Get(jsvalue.HiddenKey("constructor")); ok {
			return ctor, nil
		}
		return jsvalue.ConstructorTag("Object"), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) objectSetMember(base jsvalue.Value, name string, v jsvalue.Value) error {
	obj := base.Object()
	if setter, ok := obj.Get(jsvalue.HiddenKey("set:" + name)); ok {
		_, err := rt.callFunction(setter, base, []jsvalue.Value{v})
		return err
	}
	if kindV, ok := obj.Get(callableKindKey); ok {
		if handled, err := rt.platformObjectSetMember(base, kindV.Str(), name, v); handled {
			return err
		}
	}
	obj.Set(name, v)
	return nil
}

// ---- array property write ----

func (rt *Runtime) arraySetMember(base jsvalue.Value, name string, v jsvalue.Value) error {
	arr := base.Array()
	if name == "length" {
		n := int(jsvalue.ValueToI64(v))
		if n < 0 {
			return rtErrf("invalid array length")
		}
		for len(arr.Items) < n {
			arr.Items = append(arr.Items, jsvalue.Undefined())
		}
		arr.Items = arr.Items[:n]
		return nil
	}
	idx, err := strconv.Atoi(name)
	if err != nil || idx < 0 {
		return nil
	}
	for len(arr.Items) <= idx {
		arr.Items = append(arr.Items, jsvalue.Undefined())
	}
	arr.Items[idx] = v
	return nil
}

// ---- map / set ----

func (rt *Runtime) mapMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	m := base.Map()
	switch name {
	case "size":
		return jsvalue.Number(int64(m.Size())), nil
	case "get":
		return nativeFn("get", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			v, _ := m.Get(arg(args, 0))
			return v, nil
		}), nil
	case "set":
		return nativeFn("set", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			if rt.MaxMapEntries > 0 && m.Size() >= rt.MaxMapEntries && !m.Has(arg(args, 0)) {
				return jsvalue.Undefined(), rtErrf("map entry limit (%d) exceeded", rt.MaxMapEntries)
			}
			m.Set(arg(args, 0), arg(args, 1))
			return base, nil
		}), nil
	case "has":
		return nativeFn("has", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Bool(m.Has(arg(args, 0))), nil
		}), nil
	case "delete":
		return nativeFn("delete", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Bool(m.Delete(arg(args, 0))), nil
		}), nil
	case "clear":
		return nativeFn("clear", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			m.Clear()
			return jsvalue.Undefined(), nil
		}), nil
	case "forEach":
		return nativeFn("forEach", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			cb := arg(args, 0)
			var cbErr error
			m.Each(func(k, v jsvalue.Value) {
				if cbErr != nil {
					return
				}
				_, cbErr = rt.callFunction(cb, arg(args, 1), []jsvalue.Value{v, k, base})
			})
			return jsvalue.Undefined(), cbErr
		}), nil
	case "keys", "values", "entries":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			var items []jsvalue.Value
			m.Each(func(k, v jsvalue.Value) {
				switch name {
				case "keys":
					items = append(items, k)
				case "values":
					items = append(items, v)
				default:
					items = append(items, jsvalue.ArrayValue(jsvalue.NewArray(k, v)))
				}
			})
			return rt.makeArrayIterator(items), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) setMemberOps(base jsvalue.Value, name string) (jsvalue.Value, error) {
	s := base.Set()
	switch name {
	case "size":
		return jsvalue.Number(int64(s.Size())), nil
	case "add":
		return nativeFn("add", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			if rt.MaxMapEntries > 0 && s.Size() >= rt.MaxMapEntries && !s.Has(arg(args, 0)) {
				return jsvalue.Undefined(), rtErrf("set entry limit (%d) exceeded", rt.MaxMapEntries)
			}
			s.Add(arg(args, 0))
			return base, nil
		}), nil
	case "has":
		return nativeFn("has", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Bool(s.Has(arg(args, 0))), nil
		}), nil
	case "delete":
		return nativeFn("delete", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Bool(s.Delete(arg(args, 0))), nil
		}), nil
	case "clear":
		return nativeFn("clear", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			s.Clear()
			return jsvalue.Undefined(), nil
		}), nil
	case "forEach":
		return nativeFn("forEach", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			cb := arg(args, 0)
			var cbErr error
			s.Each(func(v jsvalue.Value) {
				if cbErr != nil {
					return
				}
				_, cbErr = rt.callFunction(cb, arg(args, 1), []jsvalue.Value{v, v, base})
			})
			return jsvalue.Undefined(), cbErr
		}), nil
	case "values", "keys", "entries":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			var items []jsvalue.Value
			s.Each(func(v jsvalue.Value) {
				if name == "entries" {
					items = append(items, jsvalue.ArrayValue(jsvalue.NewArray(v, v)))
				} else {
					items = append(items, v)
				}
			})
			return rt.makeArrayIterator(items), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

// ---- function ----

func (rt *Runtime) functionMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	fn := base.Func()
	switch name {
	case "name":
		return jsvalue.String(fn.Name), nil
	case "call":
		return nativeFn("call", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			var rest []jsvalue.Value
			if len(args) > 1 {
				rest = args[1:]
			}
			return rt.callFunction(base, arg(args, 0), rest)
		}), nil
	case "apply":
		return nativeFn("apply", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			var rest []jsvalue.Value
			if a := arg(args, 1); a.Kind() == jsvalue.KindArray {
				rest = append(rest, a.Array().Items...)
			}
			return rt.callFunction(base, arg(args, 0), rest)
		}), nil
	case "bind":
		return nativeFn("bind", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			boundThis := arg(args, 0)
			var boundArgs []jsvalue.Value
			if len(args) > 1 {
				boundArgs = append(boundArgs, args[1:]...)
			}
			return nativeFn("bound "+fn.Name, func(_ jsvalue.Value, callArgs []jsvalue.Value) (jsvalue.Value, error) {
				all := append(append([]jsvalue.Value(nil), boundArgs...), callArgs...)
				return rt.callFunction(base, boundThis, all)
			}), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

// ---- number / bigint / symbol ----

func (rt *Runtime) numberMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	f := jsvalue.ToNumberFloat(base)
	switch name {
	case "toFixed":
		return nativeFn("toFixed", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			digits := argInt(args, 0)
			return jsvalue.String(strconv.FormatFloat(f, 'f', digits, 64)), nil
		}), nil
	case "toString":
		return nativeFn("toString", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			if len(args) > 0 {
				radix := argInt(args, 0)
				if radix < 2 || radix > 36 {
					return jsvalue.Undefined(), rtErrf("toString() radix must be between 2 and 36")
				}
				return jsvalue.String(strconv.FormatInt(int64(f), radix)), nil
			}
			return jsvalue.String(jsvalue.AsString(base)), nil
		}), nil
	case "toPrecision":
		return nativeFn("toPrecision", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			if len(args) == 0 {
				return jsvalue.String(jsvalue.AsString(base)), nil
			}
			return jsvalue.String(strconv.FormatFloat(f, 'g', argInt(args, 0), 64)), nil
		}), nil
	case "toLocaleString":
		return nativeFn("toLocaleString", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.String(jsvalue.AsString(base)), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) bigintMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	switch name {
	case "toString":
		return nativeFn("toString", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			if len(args) > 0 {
				return jsvalue.String(base.BigInt().Text(argInt(args, 0))), nil
			}
			return jsvalue.String(base.BigInt().String()), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) symbolMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	switch name {
	case "description":
		return jsvalue.String(base.Symbol().Description), nil
	case "toString":
		return nativeFn("toString", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.String(jsvalue.AsString(base)), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

// ---- blob / arraybuffer / typed array ----

func (rt *Runtime) blobMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	b := base.Blob()
	switch name {
	case "size":
		return jsvalue.Number(int64(len(b.Data))), nil
	case "type":
		return jsvalue.String(b.Type), nil
	case "name":
		return jsvalue.Undefined(), nil
	case "text":
		return nativeFn("text", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.resolvedPromise(jsvalue.String(string(b.Data))), nil
		}), nil
	case "arrayBuffer":
		return nativeFn("arrayBuffer", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			buf := &jsvalue.ArrayBuffer{Data: append([]byte(nil), b.Data...)}
			return rt.resolvedPromise(jsvalue.ArrayBufferValue(buf)), nil
		}), nil
	case "slice":
		return nativeFn("slice", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			start, end := sliceBounds(len(b.Data), args)
			return jsvalue.BlobValue(&jsvalue.Blob{Data: append([]byte(nil), b.Data[start:end]...), Type: b.Type}), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) bufferMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	buf := base.Buffer()
	switch name {
	case "byteLength":
		return jsvalue.Number(int64(len(buf.Data))), nil
	case "slice":
		return nativeFn("slice", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			start, end := sliceBounds(len(buf.Data), args)
			return jsvalue.ArrayBufferValue(&jsvalue.ArrayBuffer{Data: append([]byte(nil), buf.Data[start:end]...)}), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func sliceBounds(n int, args []jsvalue.Value) (int, int) {
	start, end := 0, n
	if len(args) > 0 && !arg(args, 0).IsUndefined() {
		start = normalizeIndex(argInt(args, 0), n)
	}
	if len(args) > 1 && !arg(args, 1).IsUndefined() {
		end = normalizeIndex(argInt(args, 1), n)
	}
	if end < start {
		end = start
	}
	return start, end
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// ---- nodelist ----

func (rt *Runtime) nodeListMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	list := base.NodeList()
	if idx, err := strconv.Atoi(name); err == nil {
		if idx >= 0 && idx < len(list) {
			return jsvalue.NodeValue(list[idx]), nil
		}
		return jsvalue.Undefined(), nil
	}
	switch name {
	case "length":
		return jsvalue.Number(int64(len(list))), nil
	case "item":
		return nativeFn("item", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			i := argInt(args, 0)
			if i >= 0 && i < len(list) {
				return jsvalue.NodeValue(list[i]), nil
			}
			return jsvalue.Null(), nil
		}), nil
	case "forEach":
		return nativeFn("forEach", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			cb := arg(args, 0)
			for i, id := range list {
				if _, err := rt.callFunction(cb, arg(args, 1), []jsvalue.Value{jsvalue.NodeValue(id), jsvalue.Number(int64(i)), base}); err != nil {
					return jsvalue.Undefined(), err
				}
			}
			return jsvalue.Undefined(), nil
		}), nil
	case "entries", "keys", "values":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			var items []jsvalue.Value
			for i, id := range list {
				switch name {
				case "keys":
					items = append(items, jsvalue.Number(int64(i)))
				case "values":
					items = append(items, jsvalue.NodeValue(id))
				default:
					items = append(items, jsvalue.ArrayValue(jsvalue.NewArray(jsvalue.Number(int64(i)), jsvalue.NodeValue(id))))
				}
			}
			return rt.makeArrayIterator(items), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

// ---- formdata ----

func (rt *Runtime) formDataMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	fd := base.FormData()
	switch name {
	case "append":
		return nativeFn("append", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			fd.Append(argStr(args, 0), arg(args, 1))
			return jsvalue.Undefined(), nil
		}), nil
	case "get":
		return nativeFn("get", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			v, ok := fd.Get(argStr(args, 0))
			if !ok {
				return jsvalue.Null(), nil
			}
			return v, nil
		}), nil
	case "getAll":
		return nativeFn("getAll", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.ArrayValue(jsvalue.NewArray(fd.GetAll(argStr(args, 0))...)), nil
		}), nil
	case "has":
		return nativeFn("has", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Bool(fd.Has(argStr(args, 0))), nil
		}), nil
	case "set":
		return nativeFn("set", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			fd.Set(argStr(args, 0), arg(args, 1))
			return jsvalue.Undefined(), nil
		}), nil
	case "delete":
		return nativeFn("delete", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			fd.Delete(argStr(args, 0))
			return jsvalue.Undefined(), nil
		}), nil
	case "forEach":
		return nativeFn("forEach", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			cb := arg(args, 0)
			entries := append([]jsvalue.FormDataEntry(nil), fd.Entries...)
			for _, e := range entries {
				if _, err := rt.callFunction(cb, arg(args, 1), []jsvalue.Value{e.Value, jsvalue.String(e.Name), base}); err != nil {
					return jsvalue.Undefined(), err
				}
			}
			return jsvalue.Undefined(), nil
		}), nil
	case "entries", "keys", "values":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			var items []jsvalue.Value
			for _, e := range fd.Entries {
				switch name {
				case "keys":
					items = append(items, jsvalue.String(e.Name))
				case "values":
					items = append(items, e.Value)
				default:
					items = append(items, jsvalue.ArrayValue(jsvalue.NewArray(jsvalue.String(e.Name), e.Value)))
				}
			}
			return rt.makeArrayIterator(items), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

// ---- iteration ----

// iterateValue snapshots a value into its iteration items (spec.md §4.J
// "Iteration protocols"; snapshot-before-iterate per §5 reentrancy rule).
func (rt *Runtime) iterateValue(v jsvalue.Value) ([]jsvalue.Value, error) {
	switch v.Kind() {
	case jsvalue.KindArray:
		return append([]jsvalue.Value(nil), v.Array().Items...), nil
	case jsvalue.KindString:
		var out []jsvalue.Value
		for _, r := range v.Str() {
			out = append(out, jsvalue.String(string(r)))
		}
		return out, nil
	case jsvalue.KindSet:
		return v.Set().Items(), nil
	case jsvalue.KindMap:
		var out []jsvalue.Value
		v.Map().Each(func(k, val jsvalue.Value) {
			out = append(out, jsvalue.ArrayValue(jsvalue.NewArray(k, val)))
		})
		return out, nil
	case jsvalue.KindNodeList:
		var out []jsvalue.Value
		for _, id := range v.NodeList() {
			out = append(out, jsvalue.NodeValue(id))
		}
		return out, nil
	case jsvalue.KindTypedArray:
		t := v.Typed()
		var out []jsvalue.Value
		for i := 0; i < t.Length; i++ {
			out = append(out, typedGetIndex(t, i))
		}
		return out, nil
	case jsvalue.KindFormData:
		var out []jsvalue.Value
		for _, e := range v.FormData().Entries {
			out = append(out, jsvalue.ArrayValue(jsvalue.NewArray(jsvalue.String(e.Name), e.Value)))
		}
		return out, nil
	case jsvalue.KindObject:
		return rt.driveIterator(v)
	}
	return nil, rtErrf("value of type %s is not iterable", v.Kind())
}

// driveIterator runs the object iteration protocol: the object itself may
// be an iterator (callable `next`), or it may carry a hidden `iterator`
// callable producing one (spec.md §4.J "over a user object it requires an
// iterator-shaped callable (hidden key lookup)").
func (rt *Runtime) driveIterator(v jsvalue.Value) ([]jsvalue.Value, error) {
	obj := v.Object()
	iter := v
	if nx, ok := obj.Get("next"); !ok || !jsvalue.IsCallable(nx) {
		itf, ok := obj.Get(jsvalue.HiddenKey("iterator"))
		if !ok {
			// `obj[Symbol.iterator]` keys under the symbol's string form
			if itf2, ok2 := obj.Get("Symbol(Symbol.iterator)"); ok2 {
				itf = itf2
				ok = true
			} else if itf3, ok3 := obj.Get("iterator"); ok3 {
				itf = itf3
				ok = true
			}
		}
		if !ok || !jsvalue.IsCallable(itf) {
			return nil, rtErrf("object is not iterable")
		}
		made, err := rt.callFunction(itf, v, nil)
		if err != nil {
			return nil, err
		}
		iter = made
	}
	var out []jsvalue.Value
	const iterationCap = 1 << 20
	for i := 0; i < iterationCap; i++ {
		nx, err := rt.getMember(iter, "next", nil)
		if err != nil {
			return nil, err
		}
		res, err := rt.callFunction(nx, iter, nil)
		if err != nil {
			return nil, err
		}
		if res.Kind() == jsvalue.KindPromise {
			res, err = rt.awaitValue(res)
			if err != nil {
				return nil, err
			}
		}
		if res.Kind() != jsvalue.KindObject {
			return nil, rtErrf("iterator result is not an object")
		}
		done, _ := res.Object().Get("done")
		if jsvalue.ToBool(done) {
			return out, nil
		}
		val, _ := res.Object().Get("value")
		out = append(out, val)
	}
	return nil, rtErrf("iterator exceeded iteration cap")
}

// makeArrayIterator wraps items in an iterator-protocol object whose `next`
// is a tagged callable, so for…of and spread both accept it.
func (rt *Runtime) makeArrayIterator(items []jsvalue.Value) jsvalue.Value {
	obj := jsvalue.NewObject()
	obj.Set(callableKindKey, jsvalue.String("array-iterator"))
	idx := 0
	obj.Set("next", nativeFn("next", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		res := jsvalue.NewObject()
		if idx >= len(items) {
			res.Set("done", jsvalue.Bool(true))
			res.Set("value", jsvalue.Undefined())
		} else {
			res.Set("done", jsvalue.Bool(false))
			res.Set("value", items[idx])
			idx++
		}
		return jsvalue.ObjectValue(res), nil
	}))
	return jsvalue.ObjectValue(obj)
}

// stringIndex handles computed numeric access that getMember receives as
// a stringified key for strings (charAt semantics).
func stringIndex(s, key string) (jsvalue.Value, bool) {
	idx, err := strconv.Atoi(key)
	if err != nil {
		return jsvalue.Undefined(), false
	}
	runes := []rune(s)
	if idx < 0 || idx >= len(runes) {
		return jsvalue.Undefined(), true
	}
	return jsvalue.String(string(runes[idx])), true
}
