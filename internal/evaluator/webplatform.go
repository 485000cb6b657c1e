package evaluator

import (
	"strings"

	"github.com/cryguy/domharness/internal/dom"
	"github.com/cryguy/domharness/internal/jsvalue"
	"github.com/cryguy/domharness/internal/urlparts"
)

// The platform objects below are adapted from the teacher's webapi mock
// tables (fetch.go, storage.go, abort.go, urlpattern.go) into tagged
// callables dispatched per-runtime.

// ---- document ----

func (rt *Runtime) documentMember(name string, env *Env) (jsvalue.Value, error) {
	switch name {
	case "body":
		if id := rt.findTag("body"); id != 0 {
			return jsvalue.NodeValue(jsvalue.NodeRef(id)), nil
		}
		return jsvalue.NodeValue(jsvalue.NodeRef(rt.Arena.Root)), nil
	case "head":
		if id := rt.findTag("head"); id != 0 {
			return jsvalue.NodeValue(jsvalue.NodeRef(id)), nil
		}
		return jsvalue.Null(), nil
	case "documentElement":
		if id := rt.findTag("html"); id != 0 {
			return jsvalue.NodeValue(jsvalue.NodeRef(id)), nil
		}
		return jsvalue.NodeValue(jsvalue.NodeRef(rt.Arena.Root)), nil
	case "title":
		if id := rt.findTag("title"); id != 0 {
			return jsvalue.String(rt.Arena.TextContent(id)), nil
		}
		return jsvalue.String(""), nil
	case "cookie":
		return jsvalue.String(rt.cookie), nil
	case "activeElement":
		if rt.ActiveElement != 0 {
			return jsvalue.NodeValue(jsvalue.NodeRef(rt.ActiveElement)), nil
		}
		if id := rt.findTag("body"); id != 0 {
			return jsvalue.NodeValue(jsvalue.NodeRef(id)), nil
		}
		return jsvalue.Null(), nil
	case "location":
		return jsvalue.ConstructorTag("location"), nil
	case "defaultView":
		return jsvalue.ConstructorTag("window"), nil
	case "visibilityState":
		return jsvalue.String("visible"), nil
	case "hidden":
		return jsvalue.Bool(false), nil
	case "getElementById":
		return nativeFn("getElementById", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			id := rt.Arena.ByID(argStr(args, 0))
			if id == 0 {
				return jsvalue.Null(), nil
			}
			return jsvalue.NodeValue(jsvalue.NodeRef(id)), nil
		}), nil
	case "querySelector":
		return nativeFn("querySelector", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.querySelectorOn(rt.Arena.Root, argStr(args, 0), false)
		}), nil
	case "querySelectorAll":
		return nativeFn("querySelectorAll", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.querySelectorOn(rt.Arena.Root, argStr(args, 0), true)
		}), nil
	case "getElementsByTagName":
		return nativeFn("getElementsByTagName", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.collectByPredicate(rt.Arena.Root, func(n *dom.Node) bool {
				return strings.EqualFold(n.TagName, argStr(args, 0)) || argStr(args, 0) == "*"
			}), nil
		}), nil
	case "getElementsByClassName":
		return nativeFn("getElementsByClassName", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			want := argStr(args, 0)
			return rt.collectByPredicate(rt.Arena.Root, func(n *dom.Node) bool {
				for _, c := range strings.Fields(attrOr(n, "class", "")) {
					if c == want {
						return true
					}
				}
				return false
			}), nil
		}), nil
	case "getElementsByName":
		return nativeFn("getElementsByName", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			want := argStr(args, 0)
			return rt.collectByPredicate(rt.Arena.Root, func(n *dom.Node) bool {
				return attrOr(n, "name", "") == want
			}), nil
		}), nil
	case "createElement":
		return nativeFn("createElement", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			id := rt.Arena.CreateElement(argStr(args, 0))
			return jsvalue.NodeValue(jsvalue.NodeRef(id)), nil
		}), nil
	case "createTextNode":
		return nativeFn("createTextNode", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			id := rt.Arena.CreateText(argStr(args, 0))
			return jsvalue.NodeValue(jsvalue.NodeRef(id)), nil
		}), nil
	case "createDocumentFragment":
		return nativeFn("createDocumentFragment", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			id := rt.Arena.CreateElement("#fragment")
			return jsvalue.NodeValue(jsvalue.NodeRef(id)), nil
		}), nil
	case "addEventListener", "removeEventListener", "dispatchEvent":
		return rt.eventTargetMember(rt.Arena.Root, name, env)
	case "forms":
		return nativeFnValue(rt.collectByPredicate(rt.Arena.Root, func(n *dom.Node) bool {
			return n.TagLower() == "form"
		})), nil
	}
	return jsvalue.Undefined(), nil
}

// nativeFnValue lets a data value pass through where a member getter is
// expected.
func nativeFnValue(v jsvalue.Value) jsvalue.Value { return v }

func attrOr(n *dom.Node, name, def string) string {
	if v, ok := n.GetAttr(name); ok {
		return v
	}
	return def
}

func (rt *Runtime) findTag(tag string) dom.NodeID {
	for _, id := range rt.Arena.PreOrder(rt.Arena.Root) {
		n := rt.Arena.Get(id)
		if n != nil && n.Kind == dom.KindElement && n.TagLower() == tag {
			return id
		}
	}
	return 0
}

func (rt *Runtime) findOrCreateTitle() dom.NodeID {
	if id := rt.findTag("title"); id != 0 {
		return id
	}
	head := rt.findTag("head")
	if head == 0 {
		return 0
	}
	id := rt.Arena.CreateElement("title")
	_ = rt.Arena.AppendChild(head, id)
	return id
}

func (rt *Runtime) collectByPredicate(root dom.NodeID, pred func(*dom.Node) bool) jsvalue.Value {
	var out []jsvalue.NodeRef
	for _, id := range rt.Arena.PreOrder(root) {
		n := rt.Arena.Get(id)
		if n != nil && n.Kind == dom.KindElement && pred(n) {
			out = append(out, jsvalue.NodeRef(id))
		}
	}
	return jsvalue.NodeListValue(out)
}

// ---- window ----

func (rt *Runtime) windowMember(name string, env *Env) (jsvalue.Value, error) {
	// window.foo resolves user globals first, then the bootstrapped names.
	if v, ok := rt.Global.Get(name); ok {
		return v, nil
	}
	switch name {
	case "innerWidth", "innerHeight", "scrollX", "scrollY", "pageXOffset", "pageYOffset":
		return jsvalue.Number(0), nil
	case "addEventListener", "removeEventListener", "dispatchEvent":
		return rt.eventTargetMember(rt.Arena.Root, name, env)
	}
	return jsvalue.Undefined(), nil
}

// ---- location ----

func (rt *Runtime) locationMember(name string) (jsvalue.Value, error) {
	p := rt.Location
	switch name {
	case "href":
		return jsvalue.String(p.Href()), nil
	case "protocol":
		if p.Scheme == "" {
			return jsvalue.String(""), nil
		}
		return jsvalue.String(p.Scheme + ":"), nil
	case "hostname":
		return jsvalue.String(p.Hostname), nil
	case "host":
		return jsvalue.String(p.Host()), nil
	case "port":
		return jsvalue.String(p.Port), nil
	case "pathname":
		return jsvalue.String(p.Pathname), nil
	case "search":
		return jsvalue.String(p.Search), nil
	case "hash":
		return jsvalue.String(p.Hash), nil
	case "origin":
		return jsvalue.String(p.Origin()), nil
	case "reload":
		return nativeFn("reload", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			rt.Loc.RecordReload()
			return jsvalue.Undefined(), nil
		}), nil
	case "assign":
		return nativeFn("assign", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			rt.navigateTo(argStr(args, 0))
			return jsvalue.Undefined(), nil
		}), nil
	case "replace":
		return nativeFn("replace", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			rt.navigateTo(argStr(args, 0))
			return jsvalue.Undefined(), nil
		}), nil
	case "toString":
		return nativeFn("toString", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.String(rt.Location.Href()), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func (rt *Runtime) locationSetMember(name string, v jsvalue.Value) error {
	s := jsvalue.AsString(v)
	switch name {
	case "href":
		rt.navigateTo(s)
		return nil
	case "hash":
		if s != "" && !strings.HasPrefix(s, "#") {
			s = "#" + s
		}
		rt.Location.Hash = s
		return nil
	case "search":
		if s != "" && !strings.HasPrefix(s, "?") {
			s = "?" + s
		}
		rt.Location.Search = s
		return nil
	case "pathname":
		rt.Location.Pathname = s
		return nil
	case "hostname":
		rt.Location.Hostname = s
		return nil
	case "port":
		rt.Location.Port = s
		return nil
	case "protocol":
		rt.Location.Scheme = strings.TrimSuffix(s, ":")
		return nil
	}
	return nil
}

// navigateTo records the navigation and lets the embedding window swap
// pages when a mock page is registered.
func (rt *Runtime) navigateTo(target string) {
	resolved := urlparts.Resolve(rt.Location, target)
	url := resolved.Href()
	rt.Loc.RecordNavigation(url)
	if strings.HasPrefix(target, "#") {
		rt.Location = resolved
		return
	}
	if rt.NavigateHook != nil {
		rt.NavigateHook(url)
	}
}

// ---- history ----

func (rt *Runtime) historyMember(name string) (jsvalue.Value, error) {
	switch name {
	case "length":
		return jsvalue.Number(1), nil
	case "state":
		return jsvalue.Null(), nil
	case "pushState", "replaceState":
		return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			if url := arg(args, 2); !url.IsNullish() {
				rt.Location = urlparts.Resolve(rt.Location, jsvalue.AsString(url))
			}
			return jsvalue.Undefined(), nil
		}), nil
	case "back", "forward", "go":
		return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Undefined(), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

// ---- navigator ----

func (rt *Runtime) navigatorMember(name string) (jsvalue.Value, error) {
	switch name {
	case "userAgent":
		return jsvalue.String("domharness"), nil
	case "language":
		return jsvalue.String("en-US"), nil
	case "clipboard":
		obj := jsvalue.NewObject()
		obj.Set(callableKindKey, jsvalue.String("Clipboard"))
		obj.Set("writeText", nativeFn("writeText", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			rt.Clip.SetText(argStr(args, 0))
			return rt.resolvedPromise(jsvalue.Undefined()), nil
		}))
		obj.Set("readText", nativeFn("readText", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.resolvedPromise(jsvalue.String(rt.Clip.Text())), nil
		}))
		return jsvalue.ObjectValue(obj), nil
	}
	return jsvalue.Undefined(), nil
}

// ---- fetch ----

func (rt *Runtime) doFetch(args []jsvalue.Value) (jsvalue.Value, error) {
	url := urlparts.Resolve(rt.Location, argStr(args, 0)).Href()
	method := "GET"
	headers := map[string]string{}
	body := ""
	if opts := arg(args, 1); opts.Kind() == jsvalue.KindObject {
		if m, ok := opts.Object().Get("method"); ok {
			method = strings.ToUpper(jsvalue.AsString(m))
		}
		if h, ok := opts.Object().Get("headers"); ok && h.Kind() == jsvalue.KindObject {
			for _, k := range h.Object().Keys() {
				hv, _ := h.Object().Get(k)
				headers[k] = jsvalue.AsString(hv)
			}
		}
		if b, ok := opts.Object().Get("body"); ok {
			body = jsvalue.AsString(b)
		}
	}
	resp := rt.Fetch.Fetch(url, method, headers, body)
	return rt.resolvedPromise(rt.responseObject(url, resp.Status, resp.Body)), nil
}

func (rt *Runtime) responseObject(url string, status int, body string) jsvalue.Value {
	obj := jsvalue.NewObject()
	obj.Set(callableKindKey, jsvalue.String("Response"))
	obj.Set("ok", jsvalue.Bool(status >= 200 && status < 300))
	obj.Set("status", jsvalue.Number(int64(status)))
	obj.Set("url", jsvalue.String(url))
	obj.Set("text", nativeFn("text", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return rt.resolvedPromise(jsvalue.String(body)), nil
	}))
	obj.Set("json", nativeFn("json", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		v, err := rt.jsonParse(body)
		if err != nil {
			return rt.rejectedPromise(errorAsValue(err)), nil
		}
		return rt.resolvedPromise(v), nil
	}))
	return jsvalue.ObjectValue(obj)
}

// ---- matchMedia ----

func (rt *Runtime) doMatchMedia(query string) jsvalue.Value {
	matches := rt.Media.Matches(query)
	obj := jsvalue.NewObject()
	obj.Set(callableKindKey, jsvalue.String("MediaQueryList"))
	obj.Set("matches", jsvalue.Bool(matches))
	obj.Set("media", jsvalue.String(query))
	noop := nativeFn("", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return jsvalue.Undefined(), nil
	})
	obj.Set("addEventListener", noop)
	obj.Set("removeEventListener", noop)
	obj.Set("addListener", noop)
	obj.Set("removeListener", noop)
	return jsvalue.ObjectValue(obj)
}

// ---- URL / URLSearchParams ----

func (rt *Runtime) newURLObject(href, base string) (jsvalue.Value, error) {
	var p urlparts.Parts
	if base != "" {
		p = urlparts.Resolve(urlparts.Parse(base), href)
	} else {
		p = urlparts.Parse(href)
		if p.Scheme == "" {
			return jsvalue.Undefined(), rtErrf("invalid URL %q", href)
		}
	}
	obj := jsvalue.NewObject()
	obj.Set(callableKindKey, jsvalue.String("URL"))
	syncURLObject(obj, p)
	obj.Set("searchParams", rt.newSearchParams(jsvalue.String(p.Search)))
	obj.Set("toString", nativeFn("toString", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		href, _ := obj.Get("href")
		return href, nil
	}))
	return jsvalue.ObjectValue(obj), nil
}

func syncURLObject(obj *jsvalue.Object, p urlparts.Parts) {
	obj.Set("href", jsvalue.String(p.Href()))
	obj.Set("protocol", jsvalue.String(p.Scheme+":"))
	obj.Set("hostname", jsvalue.String(p.Hostname))
	obj.Set("host", jsvalue.String(p.Host()))
	obj.Set("port", jsvalue.String(p.Port))
	obj.Set("pathname", jsvalue.String(p.Pathname))
	obj.Set("search", jsvalue.String(p.Search))
	obj.Set("hash", jsvalue.String(p.Hash))
	obj.Set("origin", jsvalue.String(p.Origin()))
}

func urlPartsFromObject(obj *jsvalue.Object) urlparts.Parts {
	get := func(k string) string {
		v, _ := obj.Get(k)
		return jsvalue.AsString(v)
	}
	p := urlparts.Parse(get("href"))
	p.Scheme = strings.TrimSuffix(get("protocol"), ":")
	p.Hostname = get("hostname")
	p.Port = get("port")
	p.Pathname = get("pathname")
	p.Search = get("search")
	p.Hash = get("hash")
	return p
}

func (rt *Runtime) newSearchParams(init jsvalue.Value) jsvalue.Value {
	obj := jsvalue.NewObject()
	obj.Set(callableKindKey, jsvalue.String("URLSearchParams"))
	entries := jsvalue.NewArray()
	switch init.Kind() {
	case jsvalue.KindString:
		q := strings.TrimPrefix(init.Str(), "?")
		if q != "" {
			for _, pair := range strings.Split(q, "&") {
				k, v, _ := strings.Cut(pair, "=")
				entries.Items = append(entries.Items, jsvalue.ArrayValue(jsvalue.NewArray(
					jsvalue.String(queryUnescape(k)), jsvalue.String(queryUnescape(v)))))
			}
		}
	case jsvalue.KindObject:
		for _, k := range init.Object().Keys() {
			v, _ := init.Object().Get(k)
			entries.Items = append(entries.Items, jsvalue.ArrayValue(jsvalue.NewArray(
				jsvalue.String(k), jsvalue.String(jsvalue.AsString(v)))))
		}
	}
	obj.Set(jsvalue.HiddenKey("entries"), jsvalue.ArrayValue(entries))
	return jsvalue.ObjectValue(obj)
}

func queryUnescape(s string) string {
	s = strings.ReplaceAll(s, "+", " ")
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi := hexVal(s[i+1])
			lo := hexVal(s[i+2])
			if hi >= 0 && lo >= 0 {
				sb.WriteByte(byte(hi*16 + lo))
				i += 2
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func hexVal(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	}
	return -1
}

func queryEscape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9',
			b == '-', b == '_', b == '.', b == '~', b == '*':
			sb.WriteByte(b)
		case b == ' ':
			sb.WriteByte('+')
		default:
			const hex = "0123456789ABCDEF"
			sb.WriteByte('%')
			sb.WriteByte(hex[b>>4])
			sb.WriteByte(hex[b&0xF])
		}
	}
	return sb.String()
}

// searchParamsEntries returns the live backing array of [name, value] pairs.
func searchParamsEntries(obj *jsvalue.Object) *jsvalue.Array {
	v, _ := obj.Get(jsvalue.HiddenKey("entries"))
	if v.Kind() != jsvalue.KindArray {
		arr := jsvalue.NewArray()
		obj.Set(jsvalue.HiddenKey("entries"), jsvalue.ArrayValue(arr))
		return arr
	}
	return v.Array()
}

// ---- AbortController ----

func (rt *Runtime) newAbortController() jsvalue.Value {
	signal := jsvalue.NewObject()
	signal.Set(callableKindKey, jsvalue.String("AbortSignal"))
	signal.Set("aborted", jsvalue.Bool(false))
	signal.Set("reason", jsvalue.Undefined())
	signal.Set(jsvalue.HiddenKey("abort_listeners"), jsvalue.ArrayValue(jsvalue.NewArray()))
	signalV := jsvalue.ObjectValue(signal)

	ctl := jsvalue.NewObject()
	ctl.Set(callableKindKey, jsvalue.String("AbortController"))
	ctl.Set("signal", signalV)
	ctl.Set("abort", nativeFn("abort", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		aborted, _ := signal.Get("aborted")
		if jsvalue.ToBool(aborted) {
			return jsvalue.Undefined(), nil
		}
		signal.Set("aborted", jsvalue.Bool(true))
		signal.Set("reason", arg(args, 0))
		lv, _ := signal.Get(jsvalue.HiddenKey("abort_listeners"))
		if lv.Kind() == jsvalue.KindArray {
			for _, l := range append([]jsvalue.Value(nil), lv.Array().Items...) {
				if _, err := rt.callFunction(l, signalV, nil); err != nil {
					return jsvalue.Undefined(), err
				}
			}
		}
		if on, ok := signal.Get("onabort"); ok && jsvalue.IsCallable(on) {
			if _, err := rt.callFunction(on, signalV, nil); err != nil {
				return jsvalue.Undefined(), err
			}
		}
		return jsvalue.Undefined(), nil
	}))
	return jsvalue.ObjectValue(ctl)
}

// ---- tagged-object member dispatch ----

// platformObjectMember resolves methods/properties on hidden-kind tagged
// objects that need live behavior beyond their stored props.
func (rt *Runtime) platformObjectMember(base jsvalue.Value, kind, name string) (jsvalue.Value, bool, error) {
	obj := base.Object()
	switch kind {
	case "URLSearchParams":
		return rt.searchParamsMember(base, name)
	case "AbortSignal":
		switch name {
		case "addEventListener":
			return nativeFn("addEventListener", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
				if argStr(args, 0) != "abort" {
					return jsvalue.Undefined(), nil
				}
				lv, _ := obj.Get(jsvalue.HiddenKey("abort_listeners"))
				if lv.Kind() == jsvalue.KindArray {
					lv.Array().Items = append(lv.Array().Items, arg(args, 1))
				}
				return jsvalue.Undefined(), nil
			}), true, nil
		case "removeEventListener":
			return nativeFn("removeEventListener", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
				lv, _ := obj.Get(jsvalue.HiddenKey("abort_listeners"))
				if lv.Kind() == jsvalue.KindArray {
					items := lv.Array().Items
					for i, l := range items {
						if jsvalue.StrictEquals(l, arg(args, 1)) {
							lv.Array().Items = append(items[:i], items[i+1:]...)
							break
						}
					}
				}
				return jsvalue.Undefined(), nil
			}), true, nil
		}
	case "ComputedStyle", "Style":
		nodeV, _ := obj.Get(jsvalue.HiddenKey("node"))
		id := dom.NodeID(nodeV.Node())
		if name == "getPropertyValue" {
			return nativeFn("getPropertyValue", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
				return jsvalue.String(rt.Arena.StyleGet(id, argStr(args, 0))), nil
			}), true, nil
		}
		if name == "cssText" {
			v, _ := rt.Arena.GetAttrOn(id, "style")
			return jsvalue.String(v), true, nil
		}
		return jsvalue.String(rt.Arena.StyleGet(id, dom.CamelToKebabCSS(name))), true, nil
	}
	return jsvalue.Undefined(), false, nil
}

func (rt *Runtime) platformObjectSetMember(base jsvalue.Value, kind, name string, v jsvalue.Value) (bool, error) {
	obj := base.Object()
	switch kind {
	case "URL":
		switch name {
		case "href":
			syncURLObject(obj, urlparts.Parse(jsvalue.AsString(v)))
			return true, nil
		case "protocol", "hostname", "host", "port", "pathname", "search", "hash":
			obj.Set(name, jsvalue.String(jsvalue.AsString(v)))
			p := urlPartsFromObject(obj)
			syncURLObject(obj, p)
			return true, nil
		}
	case "Dataset":
		nodeV, _ := obj.Get(jsvalue.HiddenKey("node"))
		id := dom.NodeID(nodeV.Node())
		if err := rt.Arena.DatasetSet(id, name, jsvalue.AsString(v)); err != nil {
			return true, &RuntimeError{Msg: err.Error()}
		}
		obj.Set(name, jsvalue.String(jsvalue.AsString(v)))
		return true, nil
	case "Style":
		nodeV, _ := obj.Get(jsvalue.HiddenKey("node"))
		id := dom.NodeID(nodeV.Node())
		if name == "cssText" {
			if err := rt.Arena.SetAttr(id, "style", jsvalue.AsString(v)); err != nil {
				return true, &RuntimeError{Msg: err.Error()}
			}
			return true, nil
		}
		if err := rt.Arena.StyleSet(id, dom.CamelToKebabCSS(name), jsvalue.AsString(v)); err != nil {
			return true, &RuntimeError{Msg: err.Error()}
		}
		return true, nil
	}
	return false, nil
}

func (rt *Runtime) searchParamsMember(base jsvalue.Value, name string) (jsvalue.Value, bool, error) {
	obj := base.Object()
	entries := func() *jsvalue.Array { return searchParamsEntries(obj) }
	pairAt := func(i int) (string, string) {
		e := entries().Items[i]
		k, _ := rt.getMember(e, "0", nil)
		v, _ := rt.getMember(e, "1", nil)
		return jsvalue.AsString(k), jsvalue.AsString(v)
	}
	switch name {
	case "get":
		return nativeFn("get", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			for i := range entries().Items {
				if k, v := pairAt(i); k == argStr(args, 0) {
					return jsvalue.String(v), nil
				}
			}
			return jsvalue.Null(), nil
		}), true, nil
	case "getAll":
		return nativeFn("getAll", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			out := jsvalue.NewArray()
			for i := range entries().Items {
				if k, v := pairAt(i); k == argStr(args, 0) {
					out.Items = append(out.Items, jsvalue.String(v))
				}
			}
			return jsvalue.ArrayValue(out), nil
		}), true, nil
	case "has":
		return nativeFn("has", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			for i := range entries().Items {
				if k, _ := pairAt(i); k == argStr(args, 0) {
					return jsvalue.Bool(true), nil
				}
			}
			return jsvalue.Bool(false), nil
		}), true, nil
	case "append":
		return nativeFn("append", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			entries().Items = append(entries().Items, jsvalue.ArrayValue(jsvalue.NewArray(
				jsvalue.String(argStr(args, 0)), jsvalue.String(argStr(args, 1)))))
			return jsvalue.Undefined(), nil
		}), true, nil
	case "set":
		return nativeFn("set", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			key := argStr(args, 0)
			arr := entries()
			kept := arr.Items[:0]
			replaced := false
			for i := range arr.Items {
				k, _ := pairAt(i)
				if k == key {
					if !replaced {
						kept = append(kept, jsvalue.ArrayValue(jsvalue.NewArray(
							jsvalue.String(key), jsvalue.String(argStr(args, 1)))))
						replaced = true
					}
					continue
				}
				kept = append(kept, arr.Items[i])
			}
			arr.Items = kept
			if !replaced {
				arr.Items = append(arr.Items, jsvalue.ArrayValue(jsvalue.NewArray(
					jsvalue.String(key), jsvalue.String(argStr(args, 1)))))
			}
			return jsvalue.Undefined(), nil
		}), true, nil
	case "delete":
		return nativeFn("delete", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			key := argStr(args, 0)
			arr := entries()
			kept := arr.Items[:0]
			for i := range arr.Items {
				if k, _ := pairAt(i); k != key {
					kept = append(kept, arr.Items[i])
				}
			}
			arr.Items = kept
			return jsvalue.Undefined(), nil
		}), true, nil
	case "toString":
		return nativeFn("toString", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			var parts []string
			for i := range entries().Items {
				k, v := pairAt(i)
				parts = append(parts, queryEscape(k)+"="+queryEscape(v))
			}
			return jsvalue.String(strings.Join(parts, "&")), nil
		}), true, nil
	case "forEach":
		return nativeFn("forEach", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			cb := arg(args, 0)
			snap := append([]jsvalue.Value(nil), entries().Items...)
			for _, e := range snap {
				k, _ := rt.getMember(e, "0", nil)
				v, _ := rt.getMember(e, "1", nil)
				if _, err := rt.callFunction(cb, arg(args, 1), []jsvalue.Value{v, k, base}); err != nil {
					return jsvalue.Undefined(), err
				}
			}
			return jsvalue.Undefined(), nil
		}), true, nil
	case "entries", "keys", "values":
		return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			var items []jsvalue.Value
			for i := range entries().Items {
				k, v := pairAt(i)
				switch name {
				case "keys":
					items = append(items, jsvalue.String(k))
				case "values":
					items = append(items, jsvalue.String(v))
				default:
					items = append(items, jsvalue.ArrayValue(jsvalue.NewArray(jsvalue.String(k), jsvalue.String(v))))
				}
			}
			return rt.makeArrayIterator(items), nil
		}), true, nil
	case "size":
		return jsvalue.Number(int64(len(entries().Items))), true, nil
	}
	return jsvalue.Undefined(), false, nil
}
