package evaluator

import (
	"strings"

	"github.com/cryguy/domharness/internal/dom"
	"github.com/cryguy/domharness/internal/domselect"
	"github.com/cryguy/domharness/internal/htmlio"
	"github.com/cryguy/domharness/internal/jsvalue"
	"github.com/cryguy/domharness/internal/urlparts"
)

func nodeID(v jsvalue.Value) dom.NodeID { return dom.NodeID(v.Node()) }

func formControlTags() map[string]bool {
	return map[string]bool{
		"input": true, "select": true, "textarea": true,
		"button": true, "output": true, "fieldset": true,
	}
}

// nodeGetMember dispatches every element/text-node property and method the
// script surface exposes.
func (rt *Runtime) nodeGetMember(base jsvalue.Value, name string, env *Env) (jsvalue.Value, error) {
	id := nodeID(base)
	n := rt.Arena.Get(id)
	if n == nil {
		return jsvalue.Undefined(), rtErrf("stale node reference %d", id)
	}

	switch name {
	// ---- identity / attributes ----
	case "tagName", "nodeName":
		if n.Kind == dom.KindElement {
			return jsvalue.String(strings.ToUpper(n.TagName)), nil
		}
		if n.Kind == dom.KindText {
			return jsvalue.String("#text"), nil
		}
		return jsvalue.String("#document"), nil
	case "nodeType":
		switch n.Kind {
		case dom.KindElement:
			return jsvalue.Number(1), nil
		case dom.KindText:
			return jsvalue.Number(3), nil
		default:
			return jsvalue.Number(9), nil
		}
	case "id":
		return jsvalue.String(attrOr(n, "id", "")), nil
	case "className":
		return jsvalue.String(attrOr(n, "class", "")), nil
	case "name":
		return jsvalue.String(attrOr(n, "name", "")), nil
	case "type":
		if n.TagLower() == "input" {
			t := attrOr(n, "type", "text")
			return jsvalue.String(strings.ToLower(t)), nil
		}
		return jsvalue.String(attrOr(n, "type", "")), nil
	case "title":
		return jsvalue.String(attrOr(n, "title", "")), nil
	case "placeholder":
		return jsvalue.String(attrOr(n, "placeholder", "")), nil
	case "hidden":
		return jsvalue.Bool(n.HasAttr("hidden")), nil
	case "htmlFor":
		return jsvalue.String(attrOr(n, "for", "")), nil
	case "classList":
		return rt.classListObject(id), nil
	case "dataset":
		return rt.datasetObject(id), nil
	case "style":
		return rt.styleObject(id), nil
	case "attributes":
		out := jsvalue.NewArray()
		for _, k := range n.AttrNames() {
			v, _ := n.GetAttr(k)
			entry := jsvalue.NewObject()
			entry.Set("name", jsvalue.String(k))
			entry.Set("value", jsvalue.String(v))
			out.Items = append(out.Items, jsvalue.ObjectValue(entry))
		}
		return jsvalue.ArrayValue(out), nil

	// ---- text / html ----
	case "textContent", "innerText":
		return jsvalue.String(rt.Arena.TextContent(id)), nil
	case "nodeValue", "data":
		if n.Kind == dom.KindText {
			return jsvalue.String(n.Data), nil
		}
		return jsvalue.Null(), nil
	case "innerHTML":
		var sb strings.Builder
		for _, c := range rt.Arena.Children(id) {
			sb.WriteString(htmlio.DumpNode(rt.Arena, c))
		}
		return jsvalue.String(sb.String()), nil
	case "outerHTML":
		return jsvalue.String(htmlio.DumpNode(rt.Arena, id)), nil

	// ---- tree ----
	case "parentNode", "parentElement":
		p := rt.Arena.Parent(id)
		if p == 0 || (name == "parentElement" && rt.Arena.Get(p).Kind != dom.KindElement) {
			return jsvalue.Null(), nil
		}
		return jsvalue.NodeValue(jsvalue.NodeRef(p)), nil
	case "children":
		var out []jsvalue.NodeRef
		for _, c := range rt.Arena.Children(id) {
			if cn := rt.Arena.Get(c); cn != nil && cn.Kind == dom.KindElement {
				out = append(out, jsvalue.NodeRef(c))
			}
		}
		return jsvalue.NodeListValue(out), nil
	case "childNodes":
		var out []jsvalue.NodeRef
		for _, c := range rt.Arena.Children(id) {
			out = append(out, jsvalue.NodeRef(c))
		}
		return jsvalue.NodeListValue(out), nil
	case "childElementCount":
		count := 0
		for _, c := range rt.Arena.Children(id) {
			if cn := rt.Arena.Get(c); cn != nil && cn.Kind == dom.KindElement {
				count++
			}
		}
		return jsvalue.Number(int64(count)), nil
	case "firstChild", "lastChild":
		kids := rt.Arena.Children(id)
		if len(kids) == 0 {
			return jsvalue.Null(), nil
		}
		if name == "firstChild" {
			return jsvalue.NodeValue(jsvalue.NodeRef(kids[0])), nil
		}
		return jsvalue.NodeValue(jsvalue.NodeRef(kids[len(kids)-1])), nil
	case "firstElementChild", "lastElementChild":
		var elems []dom.NodeID
		for _, c := range rt.Arena.Children(id) {
			if cn := rt.Arena.Get(c); cn != nil && cn.Kind == dom.KindElement {
				elems = append(elems, c)
			}
		}
		if len(elems) == 0 {
			return jsvalue.Null(), nil
		}
		if name == "firstElementChild" {
			return jsvalue.NodeValue(jsvalue.NodeRef(elems[0])), nil
		}
		return jsvalue.NodeValue(jsvalue.NodeRef(elems[len(elems)-1])), nil
	case "nextSibling", "previousSibling", "nextElementSibling", "previousElementSibling":
		return rt.siblingOf(id, name), nil
	case "ownerDocument":
		return jsvalue.ConstructorTag("document"), nil

	// ---- form-control state ----
	case "value":
		return rt.controlValue(id, n), nil
	case "defaultValue":
		return jsvalue.String(attrOr(n, "value", "")), nil
	case "checked":
		return jsvalue.Bool(n.Form.Checked), nil
	case "defaultChecked":
		return jsvalue.Bool(n.HasAttr("checked")), nil
	case "indeterminate":
		return jsvalue.Bool(n.Form.Indeterminate), nil
	case "disabled":
		return jsvalue.Bool(n.Form.Disabled || n.HasAttr("disabled")), nil
	case "readOnly":
		return jsvalue.Bool(n.Form.ReadOnly || n.HasAttr("readonly")), nil
	case "required":
		return jsvalue.Bool(n.Form.Required || n.HasAttr("required")), nil
	case "selected":
		return jsvalue.Bool(n.Form.Checked), nil
	case "selectionStart":
		return jsvalue.Number(int64(n.Form.SelectionStart)), nil
	case "selectionEnd":
		return jsvalue.Number(int64(n.Form.SelectionEnd)), nil
	case "selectionDirection":
		dir := n.Form.SelectionDirection
		if dir == "" {
			dir = dom.SelectionNone
		}
		return jsvalue.String(string(dir)), nil
	case "files":
		out := jsvalue.NewArray()
		for _, f := range n.Form.Files {
			fo := jsvalue.BlobValue(&jsvalue.Blob{Data: f.Data, Type: f.Type})
			out.Items = append(out.Items, fo)
		}
		return jsvalue.ArrayValue(out), nil
	case "validationMessage":
		return jsvalue.String(n.Form.CustomValidityMessage), nil
	case "willValidate":
		return jsvalue.Bool(formControlTags()[n.TagLower()] && !n.Form.Disabled), nil
	case "form":
		if f := rt.Arena.FindAncestorByTag(id, "form"); f != 0 {
			return jsvalue.NodeValue(jsvalue.NodeRef(f)), nil
		}
		return jsvalue.Null(), nil
	case "options":
		var out []jsvalue.NodeRef
		for _, o := range rt.Arena.SelectOptions(id) {
			out = append(out, jsvalue.NodeRef(o))
		}
		return jsvalue.NodeListValue(out), nil
	case "selectedIndex":
		opts := rt.Arena.SelectOptions(id)
		for i, o := range opts {
			if rt.Arena.Get(o).Form.Checked {
				return jsvalue.Number(int64(i)), nil
			}
		}
		if len(opts) > 0 {
			return jsvalue.Number(0), nil
		}
		return jsvalue.Number(-1), nil
	case "selectedOptions":
		var out []jsvalue.NodeRef
		for _, o := range rt.Arena.SelectOptions(id) {
			if rt.Arena.Get(o).Form.Checked {
				out = append(out, jsvalue.NodeRef(o))
			}
		}
		return jsvalue.NodeListValue(out), nil
	case "elements":
		controls := formControlTags()
		return rt.collectByPredicate(id, func(cn *dom.Node) bool {
			return controls[cn.TagLower()]
		}), nil
	case "open":
		return jsvalue.Bool(n.HasAttr("open")), nil
	case "returnValue":
		return jsvalue.String(rt.dialogReturn[id]), nil
	case "method":
		return jsvalue.String(strings.ToLower(attrOr(n, "method", "get"))), nil
	case "action":
		return jsvalue.String(attrOr(n, "action", "")), nil

	// ---- anchor URL properties ----
	case "href":
		if tag := n.TagLower(); tag == "a" || tag == "area" {
			return jsvalue.String(rt.anchorParts(n).Href()), nil
		}
		return jsvalue.String(attrOr(n, "href", "")), nil
	case "protocol", "hostname", "host", "port", "pathname", "search", "hash", "origin":
		if tag := n.TagLower(); tag == "a" || tag == "area" {
			return anchorURLProp(rt.anchorParts(n), name), nil
		}

	// ---- layout (always zero) ----
	case "offsetLeft", "offsetTop", "offsetWidth", "offsetHeight",
		"clientLeft", "clientTop", "clientWidth", "clientHeight",
		"scrollTop", "scrollLeft", "scrollWidth", "scrollHeight":
		v, err := rt.Arena.LayoutMetric(id)
		if err != nil {
			return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
		}
		return jsvalue.Number(int64(v)), nil
	case "getBoundingClientRect":
		return nativeFn("getBoundingClientRect", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			rect := jsvalue.NewObject()
			for _, k := range []string{"x", "y", "top", "left", "right", "bottom", "width", "height"} {
				rect.Set(k, jsvalue.Number(0))
			}
			return jsvalue.ObjectValue(rect), nil
		}), nil

	// ---- attribute methods ----
	case "getAttribute":
		return nativeFn("getAttribute", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			v, ok := n.GetAttr(argStr(args, 0))
			if !ok {
				return jsvalue.Null(), nil
			}
			return jsvalue.String(v), nil
		}), nil
	case "setAttribute":
		return nativeFn("setAttribute", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			if err := rt.Arena.SetAttr(id, argStr(args, 0), argStr(args, 1)); err != nil {
				return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
			}
			rt.reflectAttrToState(id, strings.ToLower(argStr(args, 0)))
			return jsvalue.Undefined(), nil
		}), nil
	case "removeAttribute":
		return nativeFn("removeAttribute", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			if err := rt.Arena.RemoveAttr(id, argStr(args, 0)); err != nil {
				return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
			}
			rt.reflectAttrToState(id, strings.ToLower(argStr(args, 0)))
			return jsvalue.Undefined(), nil
		}), nil
	case "hasAttribute":
		return nativeFn("hasAttribute", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Bool(n.HasAttr(argStr(args, 0))), nil
		}), nil
	case "toggleAttribute":
		return nativeFn("toggleAttribute", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			attr := argStr(args, 0)
			want := !n.HasAttr(attr)
			if len(args) > 1 {
				want = jsvalue.ToBool(arg(args, 1))
			}
			var err error
			if want {
				err = rt.Arena.SetAttr(id, attr, "")
			} else {
				err = rt.Arena.RemoveAttr(id, attr)
			}
			if err != nil {
				return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
			}
			return jsvalue.Bool(want), nil
		}), nil

	// ---- selection / tree mutation ----
	case "querySelector":
		return nativeFn("querySelector", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.querySelectorOn(id, argStr(args, 0), false)
		}), nil
	case "querySelectorAll":
		return nativeFn("querySelectorAll", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.querySelectorOn(id, argStr(args, 0), true)
		}), nil
	case "getElementsByTagName":
		return nativeFn("getElementsByTagName", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			want := argStr(args, 0)
			return rt.collectByPredicate(id, func(cn *dom.Node) bool {
				return want == "*" || strings.EqualFold(cn.TagName, want)
			}), nil
		}), nil
	case "matches":
		return nativeFn("matches", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			g, err := domselect.Parse(argStr(args, 0))
			if err != nil {
				return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
			}
			m := &domselect.Matcher{Arena: rt.Arena, Scope: id}
			return jsvalue.Bool(m.Matches(g, id)), nil
		}), nil
	case "closest":
		return nativeFn("closest", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			g, err := domselect.Parse(argStr(args, 0))
			if err != nil {
				return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
			}
			m := &domselect.Matcher{Arena: rt.Arena, Scope: id}
			cur := id
			for cur != 0 {
				if cn := rt.Arena.Get(cur); cn != nil && cn.Kind == dom.KindElement && m.Matches(g, cur) {
					return jsvalue.NodeValue(jsvalue.NodeRef(cur)), nil
				}
				cur = rt.Arena.Parent(cur)
			}
			return jsvalue.Null(), nil
		}), nil
	case "contains":
		return nativeFn("contains", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			other := arg(args, 0)
			if other.Kind() != jsvalue.KindNode {
				return jsvalue.Bool(false), nil
			}
			oid := nodeID(other)
			return jsvalue.Bool(oid == id || rt.Arena.IsDescendantOf(oid, id)), nil
		}), nil
	case "appendChild", "append", "prepend", "before", "after", "replaceWith",
		"insertBefore", "removeChild", "replaceChild", "remove":
		return rt.treeMutationMember(base, id, name), nil
	case "cloneNode":
		return nativeFn("cloneNode", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			deep := jsvalue.ToBool(arg(args, 0))
			clone := rt.cloneNode(id, deep)
			return jsvalue.NodeValue(jsvalue.NodeRef(clone)), nil
		}), nil
	case "insertAdjacentHTML", "insertAdjacentElement", "insertAdjacentText":
		return rt.insertAdjacentMember(id, name), nil

	// ---- events ----
	case "addEventListener", "removeEventListener", "dispatchEvent":
		return rt.eventTargetMember(id, name, env)

	// ---- user-action methods ----
	case "click":
		return nativeFn("click", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Undefined(), rt.ClickNode(id, false)
		}), nil
	case "focus":
		return nativeFn("focus", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Undefined(), rt.FocusNode(id)
		}), nil
	case "blur":
		return nativeFn("blur", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Undefined(), rt.BlurNode(id)
		}), nil
	case "scrollIntoView":
		return nativeFn("scrollIntoView", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Undefined(), nil
		}), nil
	case "select":
		return nativeFn("select", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Undefined(), rt.Arena.SetSelectionRange(id, 0, len([]rune(n.Form.Value)), dom.SelectionNone)
		}), nil
	case "setSelectionRange":
		return nativeFn("setSelectionRange", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			dir := dom.SelectionDirection(argStr(args, 2))
			if len(args) < 3 {
				dir = dom.SelectionNone
			}
			if err := rt.Arena.SetSelectionRange(id, argInt(args, 0), argInt(args, 1), dir); err != nil {
				return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
			}
			return jsvalue.Undefined(), nil
		}), nil

	// ---- forms / dialog ----
	case "submit":
		return nativeFn("submit", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Undefined(), rt.submitFormDirect(id)
		}), nil
	case "requestSubmit":
		return nativeFn("requestSubmit", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			var submitter dom.NodeID
			if s := arg(args, 0); s.Kind() == jsvalue.KindNode {
				submitter = nodeID(s)
			}
			return jsvalue.Undefined(), rt.RequestSubmit(id, submitter)
		}), nil
	case "reset":
		return nativeFn("reset", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Undefined(), rt.ResetForm(id)
		}), nil
	case "checkValidity", "reportValidity":
		return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			invalid, err := rt.validateControls(id, name == "reportValidity")
			if err != nil {
				return jsvalue.Undefined(), err
			}
			return jsvalue.Bool(len(invalid) == 0), nil
		}), nil
	case "setCustomValidity":
		return nativeFn("setCustomValidity", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			n.Form.CustomValidityMessage = argStr(args, 0)
			return jsvalue.Undefined(), nil
		}), nil
	case "show", "showModal":
		return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Undefined(), rt.DialogShow(id)
		}), nil
	case "close":
		return nativeFn("close", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			ret := ""
			hasRet := len(args) > 0
			if hasRet {
				ret = argStr(args, 0)
			}
			return jsvalue.Undefined(), rt.DialogClose(id, ret, hasRet)
		}), nil
	case "requestClose":
		return nativeFn("requestClose", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			ret := ""
			hasRet := len(args) > 0
			if hasRet {
				ret = argStr(args, 0)
			}
			return jsvalue.Undefined(), rt.DialogRequestClose(id, ret, hasRet)
		}), nil
	case "labels":
		var out []jsvalue.NodeRef
		wantID := attrOr(n, "id", "")
		if wantID != "" {
			for _, lid := range rt.Arena.PreOrder(rt.Arena.Root) {
				ln := rt.Arena.Get(lid)
				if ln != nil && ln.Kind == dom.KindElement && ln.TagLower() == "label" && attrOr(ln, "for", "") == wantID {
					out = append(out, jsvalue.NodeRef(lid))
				}
			}
		}
		return jsvalue.NodeListValue(out), nil
	}
	return jsvalue.Undefined(), nil
}

// controlValue implements the `.value` getter, including the select/option
// synchronization of spec.md §4.C.
func (rt *Runtime) controlValue(id dom.NodeID, n *dom.Node) jsvalue.Value {
	switch n.TagLower() {
	case "select":
		rt.Arena.SyncSelectFromOptions(id)
		return jsvalue.String(rt.Arena.Get(id).Form.Value)
	case "option":
		return jsvalue.String(rt.Arena.OptionValue(id))
	case "input", "textarea", "output", "button":
		if n.Form.Value == "" && n.TagLower() != "textarea" {
			if v, ok := n.GetAttr("value"); ok && !n.HasAttr("data-value-dirty") {
				return jsvalue.String(v)
			}
		}
		return jsvalue.String(n.Form.Value)
	}
	return jsvalue.String(n.Form.Value)
}

func (rt *Runtime) siblingOf(id dom.NodeID, which string) jsvalue.Value {
	p := rt.Arena.Parent(id)
	if p == 0 {
		return jsvalue.Null()
	}
	kids := rt.Arena.Children(p)
	idx := -1
	for i, k := range kids {
		if k == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return jsvalue.Null()
	}
	elemOnly := strings.Contains(which, "Element")
	forward := strings.HasPrefix(which, "next")
	step := 1
	if !forward {
		step = -1
	}
	for i := idx + step; i >= 0 && i < len(kids); i += step {
		cn := rt.Arena.Get(kids[i])
		if cn == nil {
			continue
		}
		if elemOnly && cn.Kind != dom.KindElement {
			continue
		}
		return jsvalue.NodeValue(jsvalue.NodeRef(kids[i]))
	}
	return jsvalue.Null()
}

func (rt *Runtime) querySelectorOn(root dom.NodeID, selector string, all bool) (jsvalue.Value, error) {
	g, err := domselect.Parse(selector)
	if err != nil {
		return jsvalue.Undefined(), &RuntimeError{Msg: "invalid selector " + selector + ": " + err.Error()}
	}
	m := &domselect.Matcher{Arena: rt.Arena, Scope: root}
	if all {
		ids := m.QueryAll(g, root)
		out := make([]jsvalue.NodeRef, len(ids))
		for i, id := range ids {
			out[i] = jsvalue.NodeRef(id)
		}
		return jsvalue.NodeListValue(out), nil
	}
	id := m.QueryOne(g, root)
	if id == 0 {
		return jsvalue.Null(), nil
	}
	return jsvalue.NodeValue(jsvalue.NodeRef(id)), nil
}

// ---- tree mutation ----

func (rt *Runtime) treeMutationMember(base jsvalue.Value, id dom.NodeID, name string) jsvalue.Value {
	return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		toNode := func(v jsvalue.Value) dom.NodeID {
			if v.Kind() == jsvalue.KindNode {
				return nodeID(v)
			}
			return rt.Arena.CreateText(jsvalue.AsString(v))
		}
		switch name {
		case "appendChild":
			child := toNode(arg(args, 0))
			if err := rt.Arena.AppendChild(id, child); err != nil {
				return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
			}
			return jsvalue.NodeValue(jsvalue.NodeRef(child)), nil
		case "append":
			for _, a := range args {
				if err := rt.Arena.AppendChild(id, toNode(a)); err != nil {
					return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
				}
			}
			return jsvalue.Undefined(), nil
		case "prepend":
			kids := rt.Arena.Children(id)
			var ref dom.NodeID
			if len(kids) > 0 {
				ref = kids[0]
			}
			for _, a := range args {
				if err := rt.Arena.InsertBefore(id, toNode(a), ref); err != nil {
					return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
				}
			}
			return jsvalue.Undefined(), nil
		case "before", "after":
			parent := rt.Arena.Parent(id)
			if parent == 0 {
				return jsvalue.Undefined(), rtErrf("%s on a detached node", name)
			}
			ref := id
			if name == "after" {
				kids := rt.Arena.Children(parent)
				ref = 0
				for i, k := range kids {
					if k == id && i+1 < len(kids) {
						ref = kids[i+1]
						break
					}
				}
			}
			for _, a := range args {
				if err := rt.Arena.InsertBefore(parent, toNode(a), ref); err != nil {
					return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
				}
			}
			return jsvalue.Undefined(), nil
		case "replaceWith":
			parent := rt.Arena.Parent(id)
			if parent == 0 {
				return jsvalue.Undefined(), rtErrf("replaceWith on a detached node")
			}
			for _, a := range args {
				if err := rt.Arena.InsertBefore(parent, toNode(a), id); err != nil {
					return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
				}
			}
			rt.Arena.Remove(id)
			return jsvalue.Undefined(), nil
		case "insertBefore":
			child := toNode(arg(args, 0))
			var ref dom.NodeID
			if r := arg(args, 1); r.Kind() == jsvalue.KindNode {
				ref = nodeID(r)
			}
			if err := rt.Arena.InsertBefore(id, child, ref); err != nil {
				return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
			}
			return jsvalue.NodeValue(jsvalue.NodeRef(child)), nil
		case "removeChild":
			child := arg(args, 0)
			if child.Kind() != jsvalue.KindNode {
				return jsvalue.Undefined(), rtErrf("removeChild argument is not a node")
			}
			cid := nodeID(child)
			if rt.Arena.Parent(cid) != id {
				return jsvalue.Undefined(), rtErrf("removeChild: node is not a child of this element")
			}
			rt.Arena.Remove(cid)
			return child, nil
		case "replaceChild":
			newChild := toNode(arg(args, 0))
			old := arg(args, 1)
			if old.Kind() != jsvalue.KindNode {
				return jsvalue.Undefined(), rtErrf("replaceChild argument is not a node")
			}
			oid := nodeID(old)
			if err := rt.Arena.InsertBefore(id, newChild, oid); err != nil {
				return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
			}
			rt.Arena.Remove(oid)
			return old, nil
		case "remove":
			rt.Arena.Remove(id)
			return jsvalue.Undefined(), nil
		}
		return jsvalue.Undefined(), nil
	})
}

func (rt *Runtime) cloneNode(id dom.NodeID, deep bool) dom.NodeID {
	n := rt.Arena.Get(id)
	if n == nil {
		return 0
	}
	if n.Kind == dom.KindText {
		return rt.Arena.CreateText(n.Data)
	}
	clone := rt.Arena.CreateElement(n.TagName)
	for _, k := range n.AttrNames() {
		v, _ := n.GetAttr(k)
		_ = rt.Arena.SetAttr(clone, k, v)
	}
	rt.Arena.Get(clone).Form = n.Form
	if deep {
		for _, c := range rt.Arena.Children(id) {
			childClone := rt.cloneNode(c, true)
			if childClone != 0 {
				_ = rt.Arena.AppendChild(clone, childClone)
			}
		}
	}
	return clone
}

func (rt *Runtime) insertAdjacentMember(id dom.NodeID, name string) jsvalue.Value {
	return nativeFn(name, func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		position := strings.ToLower(argStr(args, 0))
		var nodes []dom.NodeID
		switch name {
		case "insertAdjacentHTML":
			frag, _, err := htmlio.ParseFragment(argStr(args, 1))
			if err != nil {
				return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
			}
			for _, c := range frag.Children(frag.Root) {
				if cloned := rt.Arena.CloneInto(frag, c); cloned != 0 {
					nodes = append(nodes, cloned)
				}
			}
		case "insertAdjacentElement":
			el := arg(args, 1)
			if el.Kind() != jsvalue.KindNode {
				return jsvalue.Undefined(), rtErrf("insertAdjacentElement argument is not an element")
			}
			nodes = []dom.NodeID{nodeID(el)}
		default: // insertAdjacentText
			nodes = []dom.NodeID{rt.Arena.CreateText(argStr(args, 1))}
		}
		if err := rt.insertAdjacent(id, position, nodes); err != nil {
			return jsvalue.Undefined(), err
		}
		rt.Arena.RebuildIDIndex()
		return jsvalue.Undefined(), nil
	})
}

func (rt *Runtime) insertAdjacent(id dom.NodeID, position string, nodes []dom.NodeID) error {
	parent := rt.Arena.Parent(id)
	switch position {
	case "beforebegin", "afterend":
		if parent == 0 {
			return rtErrf("insertAdjacent %q on a detached node", position)
		}
	}
	for _, nid := range nodes {
		var err error
		switch position {
		case "beforebegin":
			err = rt.Arena.InsertBefore(parent, nid, id)
		case "afterbegin":
			kids := rt.Arena.Children(id)
			var ref dom.NodeID
			if len(kids) > 0 {
				ref = kids[0]
			}
			err = rt.Arena.InsertBefore(id, nid, ref)
		case "beforeend":
			err = rt.Arena.AppendChild(id, nid)
		case "afterend":
			kids := rt.Arena.Children(parent)
			var ref dom.NodeID
			for i, k := range kids {
				if k == id && i+1 < len(kids) {
					ref = kids[i+1]
					break
				}
			}
			err = rt.Arena.InsertBefore(parent, nid, ref)
		default:
			return rtErrf("invalid insertAdjacent position %q", position)
		}
		if err != nil {
			return &RuntimeError{Msg: err.Error()}
		}
	}
	return nil
}

// ---- classList / dataset / style proxy objects ----

func (rt *Runtime) classListObject(id dom.NodeID) jsvalue.Value {
	obj := jsvalue.NewObject()
	obj.Set(callableKindKey, jsvalue.String("DOMTokenList"))
	obj.Set("add", nativeFn("add", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		names := make([]string, len(args))
		for i, a := range args {
			names[i] = jsvalue.AsString(a)
		}
		if err := rt.Arena.ClassAdd(id, names...); err != nil {
			return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
		}
		return jsvalue.Undefined(), nil
	}))
	obj.Set("remove", nativeFn("remove", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		names := make([]string, len(args))
		for i, a := range args {
			names[i] = jsvalue.AsString(a)
		}
		if err := rt.Arena.ClassRemove(id, names...); err != nil {
			return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
		}
		return jsvalue.Undefined(), nil
	}))
	obj.Set("toggle", nativeFn("toggle", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		var force *bool
		if len(args) > 1 {
			b := jsvalue.ToBool(arg(args, 1))
			force = &b
		}
		has, err := rt.Arena.ClassToggle(id, argStr(args, 0), force)
		if err != nil {
			return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
		}
		return jsvalue.Bool(has), nil
	}))
	obj.Set("contains", nativeFn("contains", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		for _, c := range rt.Arena.ClassList(id) {
			if c == argStr(args, 0) {
				return jsvalue.Bool(true), nil
			}
		}
		return jsvalue.Bool(false), nil
	}))
	obj.Set("forEach", nativeFn("forEach", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		cb := arg(args, 0)
		for i, c := range rt.Arena.ClassList(id) {
			if _, err := rt.callFunction(cb, arg(args, 1), []jsvalue.Value{jsvalue.String(c), jsvalue.Number(int64(i))}); err != nil {
				return jsvalue.Undefined(), err
			}
		}
		return jsvalue.Undefined(), nil
	}))
	obj.Set("length", jsvalue.Number(int64(len(rt.Arena.ClassList(id)))))
	return jsvalue.ObjectValue(obj)
}

// datasetObject proxies `data-*` attributes through a Dataset-tagged
// object; reads and writes route through the arena live.
func (rt *Runtime) datasetObject(id dom.NodeID) jsvalue.Value {
	obj := jsvalue.NewObject()
	obj.Set(callableKindKey, jsvalue.String("Dataset"))
	obj.Set(jsvalue.HiddenKey("node"), jsvalue.NodeValue(jsvalue.NodeRef(id)))
	n := rt.Arena.Get(id)
	if n != nil {
		for _, k := range n.AttrNames() {
			if camel, ok := strings.CutPrefix(k, "data-"); ok {
				v, _ := n.GetAttr(k)
				obj.Set(dom.KebabToCamelCSS(camel), jsvalue.String(v))
			}
		}
	}
	return jsvalue.ObjectValue(obj)
}

func (rt *Runtime) styleObject(id dom.NodeID) jsvalue.Value {
	obj := jsvalue.NewObject()
	obj.Set(callableKindKey, jsvalue.String("Style"))
	obj.Set(jsvalue.HiddenKey("node"), jsvalue.NodeValue(jsvalue.NodeRef(id)))
	obj.Set("setProperty", nativeFn("setProperty", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		if err := rt.Arena.StyleSet(id, argStr(args, 0), argStr(args, 1)); err != nil {
			return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
		}
		return jsvalue.Undefined(), nil
	}))
	obj.Set("getPropertyValue", nativeFn("getPropertyValue", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		return jsvalue.String(rt.Arena.StyleGet(id, argStr(args, 0))), nil
	}))
	obj.Set("removeProperty", nativeFn("removeProperty", func(_ jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
		old := rt.Arena.StyleGet(id, argStr(args, 0))
		if err := rt.Arena.StyleSet(id, argStr(args, 0), ""); err != nil {
			return jsvalue.Undefined(), &RuntimeError{Msg: err.Error()}
		}
		return jsvalue.String(old), nil
	}))
	return jsvalue.ObjectValue(obj)
}

// ---- anchor URL helpers ----

func (rt *Runtime) anchorParts(n *dom.Node) urlparts.Parts {
	return urlparts.Resolve(rt.Location, attrOr(n, "href", ""))
}

func anchorURLProp(p urlparts.Parts, name string) jsvalue.Value {
	switch name {
	case "protocol":
		return jsvalue.String(p.Scheme + ":")
	case "hostname":
		return jsvalue.String(p.Hostname)
	case "host":
		return jsvalue.String(p.Host())
	case "port":
		return jsvalue.String(p.Port)
	case "pathname":
		return jsvalue.String(p.Pathname)
	case "search":
		return jsvalue.String(p.Search)
	case "hash":
		return jsvalue.String(p.Hash)
	case "origin":
		return jsvalue.String(p.Origin())
	}
	return jsvalue.Undefined()
}

// reflectAttrToState keeps form-control state in sync after attribute
// mutation (id-index consistency is the arena's job; value/checked/etc are
// the runtime's).
func (rt *Runtime) reflectAttrToState(id dom.NodeID, attr string) {
	n := rt.Arena.Get(id)
	if n == nil {
		return
	}
	switch attr {
	case "value":
		if v, ok := n.GetAttr("value"); ok && n.Form.Value == "" {
			_ = rt.Arena.SetValue(id, v)
		}
	case "checked":
		n.Form.Checked = n.HasAttr("checked")
		if n.TagLower() == "option" {
			_ = rt.Arena.SetOptionSelected(id, n.Form.Checked)
		}
	case "selected":
		if n.TagLower() == "option" {
			_ = rt.Arena.SetOptionSelected(id, n.HasAttr("selected"))
		}
	case "disabled":
		n.Form.Disabled = n.HasAttr("disabled")
	case "readonly":
		n.Form.ReadOnly = n.HasAttr("readonly")
	case "required":
		n.Form.Required = n.HasAttr("required")
	}
}

// nodeSetMember handles DOM property assignment (spec.md §4.B "DOM property
// assignment" statement shape, evaluated post-hoc here).
func (rt *Runtime) nodeSetMember(base jsvalue.Value, name string, v jsvalue.Value, env *Env) error {
	id := nodeID(base)
	n := rt.Arena.Get(id)
	if n == nil {
		return rtErrf("stale node reference %d", id)
	}
	switch name {
	case "textContent", "innerText":
		if err := rt.Arena.SetTextContent(id, jsvalue.AsString(v)); err != nil {
			return &RuntimeError{Msg: err.Error()}
		}
		return nil
	case "nodeValue", "data":
		if n.Kind == dom.KindText {
			n.Data = jsvalue.AsString(v)
		}
		return nil
	case "innerHTML":
		return rt.setInnerHTML(id, jsvalue.AsString(v))
	case "outerHTML":
		return rt.setOuterHTML(id, jsvalue.AsString(v))
	case "id":
		if err := rt.Arena.SetAttr(id, "id", jsvalue.AsString(v)); err != nil {
			return &RuntimeError{Msg: err.Error()}
		}
		return nil
	case "className":
		if err := rt.Arena.SetAttr(id, "class", jsvalue.AsString(v)); err != nil {
			return &RuntimeError{Msg: err.Error()}
		}
		return nil
	case "value":
		if n.TagLower() == "select" {
			rt.selectSetValue(id, jsvalue.AsString(v))
			return nil
		}
		if err := rt.Arena.SetValue(id, jsvalue.AsString(v)); err != nil {
			return &RuntimeError{Msg: err.Error()}
		}
		return nil
	case "checked":
		n.Form.Checked = jsvalue.ToBool(v)
		n.Form.Indeterminate = false
		if n.TagLower() == "input" && strings.EqualFold(attrOr(n, "type", ""), "radio") && n.Form.Checked {
			rt.clearRadioGroup(id, n)
		}
		return nil
	case "selected":
		if n.TagLower() == "option" {
			return rt.Arena.SetOptionSelected(id, jsvalue.ToBool(v))
		}
		n.Form.Checked = jsvalue.ToBool(v)
		return nil
	case "selectedIndex":
		opts := rt.Arena.SelectOptions(id)
		want := int(jsvalue.ValueToI64(v))
		for i, o := range opts {
			rt.Arena.Get(o).Form.Checked = i == want
		}
		rt.Arena.SyncSelectFromOptions(id)
		return nil
	case "indeterminate":
		n.Form.Indeterminate = jsvalue.ToBool(v)
		return nil
	case "disabled":
		n.Form.Disabled = jsvalue.ToBool(v)
		return rt.reflectBoolAttr(id, "disabled", n.Form.Disabled)
	case "readOnly":
		n.Form.ReadOnly = jsvalue.ToBool(v)
		return rt.reflectBoolAttr(id, "readonly", n.Form.ReadOnly)
	case "required":
		n.Form.Required = jsvalue.ToBool(v)
		return rt.reflectBoolAttr(id, "required", n.Form.Required)
	case "hidden":
		return rt.reflectBoolAttr(id, "hidden", jsvalue.ToBool(v))
	case "open":
		return rt.reflectBoolAttr(id, "open", jsvalue.ToBool(v))
	case "returnValue":
		rt.dialogReturn[id] = jsvalue.AsString(v)
		return nil
	case "selectionStart":
		return rt.Arena.SetSelectionRange(id, int(jsvalue.ValueToI64(v)), n.Form.SelectionEnd, n.Form.SelectionDirection)
	case "selectionEnd":
		return rt.Arena.SetSelectionRange(id, n.Form.SelectionStart, int(jsvalue.ValueToI64(v)), n.Form.SelectionDirection)
	case "title", "placeholder", "name", "type", "htmlFor", "action", "method":
		attr := strings.ToLower(name)
		if name == "htmlFor" {
			attr = "for"
		}
		if err := rt.Arena.SetAttr(id, attr, jsvalue.AsString(v)); err != nil {
			return &RuntimeError{Msg: err.Error()}
		}
		return nil
	case "href", "src":
		if err := rt.Arena.SetAttr(id, name, jsvalue.AsString(v)); err != nil {
			return &RuntimeError{Msg: err.Error()}
		}
		return nil
	case "protocol", "hostname", "host", "port", "pathname", "search", "hash":
		// anchor URL property writes route through parts and serialize back
		// to the href attribute (spec.md §4.J "URL and storage").
		if tag := n.TagLower(); tag == "a" || tag == "area" {
			p := rt.anchorParts(n)
			s := jsvalue.AsString(v)
			switch name {
			case "protocol":
				p.Scheme = strings.TrimSuffix(s, ":")
			case "hostname":
				p.Hostname = s
			case "host":
				h, port, found := strings.Cut(s, ":")
				p.Hostname = h
				if found {
					p.Port = port
				}
			case "port":
				p.Port = s
			case "pathname":
				p.Pathname = s
			case "search":
				if s != "" && !strings.HasPrefix(s, "?") {
					s = "?" + s
				}
				p.Search = s
			case "hash":
				if s != "" && !strings.HasPrefix(s, "#") {
					s = "#" + s
				}
				p.Hash = s
			}
			if err := rt.Arena.SetAttr(id, "href", p.Href()); err != nil {
				return &RuntimeError{Msg: err.Error()}
			}
			return nil
		}
		return nil
	case "scrollTop", "scrollLeft":
		_, err := rt.Arena.LayoutMetric(id)
		if err != nil {
			return &RuntimeError{Msg: err.Error()}
		}
		return nil
	}
	if strings.HasPrefix(name, "on") {
		// onX handler property: registered as a bubble listener
		if jsvalue.IsCallable(v) {
			rt.addListener(id, strings.TrimPrefix(name, "on"), v, false, false, env)
		}
		return nil
	}
	// assignments to any other property are ignored: nothing is stored on
	// the node and no attribute is set
	return nil
}

func (rt *Runtime) reflectBoolAttr(id dom.NodeID, attr string, on bool) error {
	var err error
	if on {
		err = rt.Arena.SetAttr(id, attr, "")
	} else {
		err = rt.Arena.RemoveAttr(id, attr)
	}
	if err != nil {
		return &RuntimeError{Msg: err.Error()}
	}
	return nil
}

func (rt *Runtime) selectSetValue(id dom.NodeID, want string) {
	opts := rt.Arena.SelectOptions(id)
	for _, o := range opts {
		rt.Arena.Get(o).Form.Checked = rt.Arena.OptionValue(o) == want
	}
	rt.Arena.SyncSelectFromOptions(id)
}

func (rt *Runtime) clearRadioGroup(id dom.NodeID, n *dom.Node) {
	groupName := attrOr(n, "name", "")
	if groupName == "" {
		return
	}
	scope := rt.Arena.FindAncestorByTag(id, "form")
	if scope == 0 {
		scope = rt.Arena.Root
	}
	for _, other := range rt.Arena.PreOrder(scope) {
		if other == id {
			continue
		}
		on := rt.Arena.Get(other)
		if on != nil && on.Kind == dom.KindElement && on.TagLower() == "input" &&
			strings.EqualFold(attrOr(on, "type", ""), "radio") && attrOr(on, "name", "") == groupName {
			on.Form.Checked = false
		}
	}
}

// setInnerHTML clears children, parses the fragment sanitized, clones it
// in, and rebuilds the id index (spec.md §4.C).
func (rt *Runtime) setInnerHTML(id dom.NodeID, html string) error {
	n := rt.Arena.Get(id)
	if n == nil || n.Kind == dom.KindText {
		return rtErrf("cannot set innerHTML on a non-container node")
	}
	frag, _, err := htmlio.ParseFragment(html)
	if err != nil {
		return &RuntimeError{Msg: "innerHTML parse: " + err.Error()}
	}
	rt.Arena.ClearChildren(id)
	for _, c := range frag.Children(frag.Root) {
		if cloned := rt.Arena.CloneInto(frag, c); cloned != 0 {
			_ = rt.Arena.AppendChild(id, cloned)
		}
	}
	rt.Arena.RebuildIDIndex()
	return nil
}

func (rt *Runtime) setOuterHTML(id dom.NodeID, html string) error {
	parent := rt.Arena.Parent(id)
	if parent == 0 {
		return rtErrf("cannot set outerHTML on a detached node")
	}
	frag, _, err := htmlio.ParseFragment(html)
	if err != nil {
		return &RuntimeError{Msg: "outerHTML parse: " + err.Error()}
	}
	for _, c := range frag.Children(frag.Root) {
		if cloned := rt.Arena.CloneInto(frag, c); cloned != 0 {
			if err := rt.Arena.InsertBefore(parent, cloned, id); err != nil {
				return &RuntimeError{Msg: err.Error()}
			}
		}
	}
	rt.Arena.Remove(id)
	rt.Arena.RebuildIDIndex()
	return nil
}

// collectFormData walks a form's controls into a FormData value, in
// document order, skipping disabled and unnamed controls.
func (rt *Runtime) collectFormData(formID dom.NodeID, fd *jsvalue.FormData) {
	for _, id := range rt.Arena.PreOrder(formID) {
		n := rt.Arena.Get(id)
		if n == nil || n.Kind != dom.KindElement {
			continue
		}
		name := attrOr(n, "name", "")
		if name == "" || n.Form.Disabled || n.HasAttr("disabled") {
			continue
		}
		switch n.TagLower() {
		case "input":
			typ := strings.ToLower(attrOr(n, "type", "text"))
			switch typ {
			case "checkbox", "radio":
				if n.Form.Checked {
					v := n.Form.Value
					if v == "" {
						v = attrOr(n, "value", "on")
					}
					fd.Append(name, jsvalue.String(v))
				}
			case "file":
				for _, f := range n.Form.Files {
					fd.Append(name, jsvalue.BlobValue(&jsvalue.Blob{Data: f.Data, Type: f.Type}))
				}
			case "submit", "button", "reset", "image":
				// submitter values are appended by the caller
			default:
				v := n.Form.Value
				if v == "" {
					v = attrOr(n, "value", "")
				}
				fd.Append(name, jsvalue.String(v))
			}
		case "textarea":
			fd.Append(name, jsvalue.String(n.Form.Value))
		case "select":
			rt.Arena.SyncSelectFromOptions(id)
			for _, o := range rt.Arena.SelectOptions(id) {
				if rt.Arena.Get(o).Form.Checked {
					fd.Append(name, jsvalue.String(rt.Arena.OptionValue(o)))
				}
			}
		}
	}
}
