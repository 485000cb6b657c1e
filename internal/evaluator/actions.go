package evaluator

import (
	"strings"

	"github.com/cryguy/domharness/internal/dom"
	"github.com/cryguy/domharness/internal/jsvalue"
	"github.com/cryguy/domharness/internal/platform"
	"github.com/cryguy/domharness/internal/urlparts"
)

func downloadRecord(url, filename string) platform.Download {
	return platform.Download{URL: url, Filename: filename}
}

// This file holds the default-action layer of spec.md §4.I: the caller that
// synthesizes a click performs checkbox toggles, radio selection, label
// forwarding, details/summary toggling, form submission, anchor navigation
// and dialog transitions after dispatch, only when default_prevented is
// false. Behavior follows the original's dom_actions modules (see
// DESIGN.md).

func (rt *Runtime) fire(target dom.NodeID, typ string, bubbles, cancelable bool) (bool, error) {
	ev := rt.NewEvent(typ, target, bubbles, cancelable)
	if err := rt.DispatchEvent(ev); err != nil {
		return false, err
	}
	return !ev.DefaultPrevented, nil
}

// ClickNode dispatches a click at id and applies default actions. forwarded
// marks a label-forwarded synthetic click (prevents infinite forwarding).
func (rt *Runtime) ClickNode(id dom.NodeID, forwarded bool) error {
	n := rt.Arena.Get(id)
	if n == nil || n.Kind != dom.KindElement {
		return rtErrf("click target %d is not an element", id)
	}
	if n.Form.Disabled || n.HasAttr("disabled") {
		return nil
	}

	proceed, err := rt.fire(id, "click", true, true)
	if err != nil {
		return err
	}
	if !proceed {
		return nil
	}
	return rt.clickDefaultAction(id, forwarded)
}

func (rt *Runtime) clickDefaultAction(id dom.NodeID, forwarded bool) error {
	n := rt.Arena.Get(id)
	tag := n.TagLower()
	switch tag {
	case "input":
		typ := strings.ToLower(attrOr(n, "type", "text"))
		switch typ {
		case "checkbox":
			n.Form.Checked = !n.Form.Checked
			n.Form.Indeterminate = false
			if _, err := rt.fire(id, "input", true, false); err != nil {
				return err
			}
			_, err := rt.fire(id, "change", true, false)
			return err
		case "radio":
			if !n.Form.Checked {
				n.Form.Checked = true
				rt.clearRadioGroup(id, n)
				if _, err := rt.fire(id, "input", true, false); err != nil {
					return err
				}
				_, err := rt.fire(id, "change", true, false)
				return err
			}
			return nil
		case "submit":
			if form := rt.Arena.FindAncestorByTag(id, "form"); form != 0 {
				return rt.RequestSubmit(form, id)
			}
			return nil
		case "reset":
			if form := rt.Arena.FindAncestorByTag(id, "form"); form != 0 {
				return rt.ResetForm(form)
			}
			return nil
		}
		return nil
	case "button":
		btnType := strings.ToLower(attrOr(n, "type", "submit"))
		form := rt.Arena.FindAncestorByTag(id, "form")
		switch btnType {
		case "submit":
			if form != 0 {
				return rt.RequestSubmit(form, id)
			}
		case "reset":
			if form != 0 {
				return rt.ResetForm(form)
			}
		}
		return nil
	case "label":
		if forwarded {
			return nil
		}
		target := rt.labeledControl(id)
		if target != 0 {
			return rt.ClickNode(target, true)
		}
		return nil
	case "summary":
		details := rt.Arena.FindAncestorByTag(id, "details")
		if details != 0 {
			return rt.toggleDetails(details)
		}
		return nil
	case "a", "area":
		href, ok := n.GetAttr("href")
		if !ok {
			return nil
		}
		if dl, hasDL := n.GetAttr("download"); hasDL {
			rt.recordDownload(href, dl)
			return nil
		}
		if strings.HasPrefix(href, "#") {
			rt.Location.Hash = href
			return nil
		}
		rt.navigateTo(href)
		return nil
	case "option":
		return rt.Arena.SetOptionSelected(id, true)
	}
	return nil
}

func (rt *Runtime) recordDownload(href, filename string) {
	resolved := urlparts.Resolve(rt.Location, href).Href()
	if filename == "" {
		if i := strings.LastIndexByte(resolved, '/'); i >= 0 {
			filename = resolved[i+1:]
		}
	}
	rt.Loc.RecordDownload(downloadRecord(resolved, filename))
}

// labeledControl resolves a label's control: its for= target, else the
// first descendant form control.
func (rt *Runtime) labeledControl(labelID dom.NodeID) dom.NodeID {
	n := rt.Arena.Get(labelID)
	if forID, ok := n.GetAttr("for"); ok && forID != "" {
		return rt.Arena.ByID(forID)
	}
	controls := formControlTags()
	for _, id := range rt.Arena.PreOrder(labelID) {
		if id == labelID {
			continue
		}
		cn := rt.Arena.Get(id)
		if cn != nil && cn.Kind == dom.KindElement && controls[cn.TagLower()] {
			return id
		}
	}
	return 0
}

// ---- details/summary ----

func (rt *Runtime) toggleDetails(id dom.NodeID) error {
	n := rt.Arena.Get(id)
	opening := !n.HasAttr("open")
	if err := rt.flipToggleState(id, opening); err != nil {
		return err
	}
	if !opening {
		return nil
	}
	// opening one <details> in a name group closes any open sibling
	group := attrOr(n, "name", "")
	if group == "" {
		return nil
	}
	parent := rt.Arena.Parent(id)
	if parent == 0 {
		return nil
	}
	for _, sib := range rt.Arena.Children(parent) {
		if sib == id {
			continue
		}
		sn := rt.Arena.Get(sib)
		if sn != nil && sn.Kind == dom.KindElement && sn.TagLower() == "details" &&
			attrOr(sn, "name", "") == group && sn.HasAttr("open") {
			if err := rt.flipToggleState(sib, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// flipToggleState runs the beforetoggle → attribute flip → toggle sequence
// shared by details and dialog (spec.md §4.J state machines).
func (rt *Runtime) flipToggleState(id dom.NodeID, opening bool) error {
	oldState, newState := "open", "closed"
	if opening {
		oldState, newState = "closed", "open"
	}
	before := rt.NewEvent("beforetoggle", id, false, true)
	before.OldState, before.NewState = oldState, newState
	if err := rt.DispatchEvent(before); err != nil {
		return err
	}
	if before.DefaultPrevented {
		return nil
	}
	var err error
	if opening {
		err = rt.Arena.SetAttr(id, "open", "")
	} else {
		err = rt.Arena.RemoveAttr(id, "open")
	}
	if err != nil {
		return &RuntimeError{Msg: err.Error()}
	}
	toggle := rt.NewEvent("toggle", id, false, false)
	toggle.OldState, toggle.NewState = oldState, newState
	return rt.DispatchEvent(toggle)
}

// ---- dialog ----

func (rt *Runtime) DialogShow(id dom.NodeID) error {
	n := rt.Arena.Get(id)
	if n == nil || n.TagLower() != "dialog" {
		return rtErrf("show() target is not a <dialog>")
	}
	if n.HasAttr("open") {
		return nil
	}
	return rt.flipToggleState(id, true)
}

func (rt *Runtime) DialogClose(id dom.NodeID, returnValue string, hasReturn bool) error {
	n := rt.Arena.Get(id)
	if n == nil || n.TagLower() != "dialog" {
		return rtErrf("close() target is not a <dialog>")
	}
	if !n.HasAttr("open") {
		return nil
	}
	if hasReturn {
		rt.dialogReturn[id] = returnValue
	}
	if err := rt.flipToggleState(id, false); err != nil {
		return err
	}
	if rt.Arena.Get(id).HasAttr("open") {
		return nil // beforetoggle was prevented
	}
	closeEv := rt.NewEvent("close", id, false, false)
	return rt.DispatchEvent(closeEv)
}

// DialogRequestClose fires a cancelable `cancel` first; the return value is
// recorded before cancel runs, so a prevented close still observes it.
func (rt *Runtime) DialogRequestClose(id dom.NodeID, returnValue string, hasReturn bool) error {
	n := rt.Arena.Get(id)
	if n == nil || n.TagLower() != "dialog" {
		return rtErrf("requestClose() target is not a <dialog>")
	}
	if !n.HasAttr("open") {
		return nil
	}
	if hasReturn {
		rt.dialogReturn[id] = returnValue
	}
	proceed, err := rt.fire(id, "cancel", false, true)
	if err != nil {
		return err
	}
	if !proceed {
		return nil
	}
	return rt.DialogClose(id, returnValue, hasReturn)
}

// ---- focus / blur ----

func (rt *Runtime) FocusNode(id dom.NodeID) error {
	n := rt.Arena.Get(id)
	if n == nil || n.Kind != dom.KindElement {
		return rtErrf("focus target %d is not an element", id)
	}
	if rt.ActiveElement == id {
		return nil
	}
	if rt.ActiveElement != 0 {
		if err := rt.BlurNode(rt.ActiveElement); err != nil {
			return err
		}
	}
	rt.ActiveElement = id
	if _, err := rt.fire(id, "focus", false, false); err != nil {
		return err
	}
	_, err := rt.fire(id, "focusin", true, false)
	return err
}

func (rt *Runtime) BlurNode(id dom.NodeID) error {
	if rt.ActiveElement != id {
		return nil
	}
	rt.ActiveElement = 0
	if _, err := rt.fire(id, "blur", false, false); err != nil {
		return err
	}
	if _, err := rt.fire(id, "focusout", true, false); err != nil {
		return err
	}
	// committing focus away from a dirty text control fires change
	n := rt.Arena.Get(id)
	if n != nil && (n.TagLower() == "input" || n.TagLower() == "textarea") && n.HasAttr("data-value-dirty") {
		_ = rt.Arena.RemoveAttr(id, "data-value-dirty")
		_, err := rt.fire(id, "change", true, false)
		return err
	}
	return nil
}

// ---- typing ----

// TypeText focuses the control, replaces its value, and fires input; the
// matching change event fires when focus leaves (BlurNode).
func (rt *Runtime) TypeText(id dom.NodeID, text string) error {
	n := rt.Arena.Get(id)
	if n == nil || n.Kind != dom.KindElement {
		return rtErrf("type target %d is not an element", id)
	}
	tag := n.TagLower()
	if tag != "input" && tag != "textarea" {
		return rtErrf("cannot type into a <%s>", n.TagName)
	}
	if n.Form.Disabled || n.HasAttr("disabled") || n.Form.ReadOnly || n.HasAttr("readonly") {
		return nil
	}
	if err := rt.FocusNode(id); err != nil {
		return err
	}
	if err := rt.Arena.SetValue(id, text); err != nil {
		return &RuntimeError{Msg: err.Error()}
	}
	end := len([]rune(text))
	if err := rt.Arena.SetSelectionRange(id, end, end, dom.SelectionNone); err != nil {
		return &RuntimeError{Msg: err.Error()}
	}
	_ = rt.Arena.SetAttr(id, "data-value-dirty", "")
	_, err := rt.fire(id, "input", true, false)
	return err
}

// SetChecked sets a checkbox/radio state directly, firing input+change only
// on an actual transition.
func (rt *Runtime) SetChecked(id dom.NodeID, checked bool) error {
	n := rt.Arena.Get(id)
	if n == nil || n.Kind != dom.KindElement {
		return rtErrf("set_checked target %d is not an element", id)
	}
	if n.TagLower() != "input" {
		return rtErrf("set_checked target is a <%s>, not an <input>", n.TagName)
	}
	typ := strings.ToLower(attrOr(n, "type", "text"))
	if typ != "checkbox" && typ != "radio" {
		return rtErrf("set_checked target input has type %q", typ)
	}
	if n.Form.Checked == checked {
		return nil
	}
	n.Form.Checked = checked
	n.Form.Indeterminate = false
	if typ == "radio" && checked {
		rt.clearRadioGroup(id, n)
	}
	if _, err := rt.fire(id, "input", true, false); err != nil {
		return err
	}
	_, err := rt.fire(id, "change", true, false)
	return err
}

// PressEnter models the Enter keystroke: keydown (cancelable), implicit
// form submission when not prevented, then keyup.
func (rt *Runtime) PressEnter(id dom.NodeID) error {
	down := rt.NewEvent("keydown", id, true, true)
	down.State = "Enter"
	if err := rt.DispatchEvent(down); err != nil {
		return err
	}
	if !down.DefaultPrevented {
		if form := rt.Arena.FindAncestorByTag(id, "form"); form != 0 {
			if err := rt.RequestSubmit(form, 0); err != nil {
				return err
			}
		}
	}
	up := rt.NewEvent("keyup", id, true, false)
	up.State = "Enter"
	return rt.DispatchEvent(up)
}

// ---- forms ----

// submitFormDirect models HTMLFormElement.submit(): no validation, no
// submit event, straight to the submission side effect.
func (rt *Runtime) submitFormDirect(id dom.NodeID) error {
	n := rt.Arena.Get(id)
	if n == nil || n.TagLower() != "form" {
		return rtErrf("submit() target is not a <form>")
	}
	return rt.performSubmission(id, 0)
}

// RequestSubmit runs constraint validation, fires the cancelable submit
// event, then performs the submission (spec.md §4.J "Form submission").
func (rt *Runtime) RequestSubmit(formID dom.NodeID, submitter dom.NodeID) error {
	n := rt.Arena.Get(formID)
	if n == nil || n.TagLower() != "form" {
		return rtErrf("requestSubmit() target is not a <form>")
	}
	if !n.HasAttr("novalidate") {
		invalid, err := rt.validateControls(formID, true)
		if err != nil {
			return err
		}
		if len(invalid) > 0 {
			return nil
		}
	}
	proceed, err := rt.fire(formID, "submit", true, true)
	if err != nil {
		return err
	}
	if !proceed {
		return nil
	}
	return rt.performSubmission(formID, submitter)
}

func (rt *Runtime) performSubmission(formID, submitter dom.NodeID) error {
	form := rt.Arena.Get(formID)
	method := strings.ToLower(attrOr(form, "method", "get"))
	if method == "dialog" {
		dialog := rt.Arena.FindAncestorByTag(formID, "dialog")
		if dialog == 0 {
			return nil
		}
		ret := ""
		if submitter != 0 {
			ret = rt.Arena.Get(submitter).Form.Value
			if ret == "" {
				ret = attrOr(rt.Arena.Get(submitter), "value", "")
			}
		}
		return rt.DialogClose(dialog, ret, true)
	}

	action := attrOr(form, "action", "")
	target := urlparts.Resolve(rt.Location, action)
	if method == "get" {
		fd := &jsvalue.FormData{}
		rt.collectFormData(formID, fd)
		if submitter != 0 {
			sn := rt.Arena.Get(submitter)
			if name := attrOr(sn, "name", ""); name != "" {
				fd.Append(name, jsvalue.String(attrOr(sn, "value", "")))
			}
		}
		var parts []string
		for _, e := range fd.Entries {
			parts = append(parts, queryEscape(e.Name)+"="+queryEscape(jsvalue.AsString(e.Value)))
		}
		if len(parts) > 0 {
			target.Search = "?" + strings.Join(parts, "&")
		}
	}
	rt.Loc.RecordNavigation(target.Href())
	if rt.NavigateHook != nil {
		rt.NavigateHook(target.Href())
	}
	return nil
}

// validateControls checks required/minlength/maxlength/type-specific rules
// and custom validity; report=true fires cancelable `invalid` events.
func (rt *Runtime) validateControls(scope dom.NodeID, report bool) ([]dom.NodeID, error) {
	var invalid []dom.NodeID
	controls := formControlTags()
	var ids []dom.NodeID
	if n := rt.Arena.Get(scope); n != nil && controls[n.TagLower()] {
		ids = []dom.NodeID{scope}
	} else {
		for _, id := range rt.Arena.PreOrder(scope) {
			cn := rt.Arena.Get(id)
			if cn != nil && cn.Kind == dom.KindElement && controls[cn.TagLower()] {
				ids = append(ids, id)
			}
		}
	}
	for _, id := range ids {
		if !rt.controlIsValid(id) {
			invalid = append(invalid, id)
			if report {
				if _, err := rt.fire(id, "invalid", false, true); err != nil {
					return nil, err
				}
			}
		}
	}
	return invalid, nil
}

func (rt *Runtime) controlIsValid(id dom.NodeID) bool {
	n := rt.Arena.Get(id)
	if n == nil || n.Form.Disabled || n.HasAttr("disabled") {
		return true
	}
	if n.Form.CustomValidityMessage != "" {
		return false
	}
	value := n.Form.Value
	if value == "" {
		if v, ok := n.GetAttr("value"); ok && !n.HasAttr("data-value-dirty") {
			value = v
		}
	}
	required := n.Form.Required || n.HasAttr("required")
	typ := strings.ToLower(attrOr(n, "type", "text"))
	if required {
		switch typ {
		case "checkbox", "radio":
			if !n.Form.Checked {
				return false
			}
		default:
			if n.TagLower() == "select" {
				rt.Arena.SyncSelectFromOptions(id)
				if rt.Arena.Get(id).Form.Value == "" {
					return false
				}
			} else if value == "" {
				return false
			}
		}
	}
	if value != "" {
		runes := len([]rune(value))
		if ml, ok := n.GetAttr("minlength"); ok {
			if min := atoiOr(ml, 0); runes < min {
				return false
			}
		}
		if ml, ok := n.GetAttr("maxlength"); ok {
			if max := atoiOr(ml, 1<<30); runes > max {
				return false
			}
		}
		if typ == "email" && (!strings.Contains(value, "@") || strings.HasPrefix(value, "@") || strings.HasSuffix(value, "@")) {
			return false
		}
		if typ == "url" {
			p := urlparts.Parse(value)
			if p.Scheme == "" {
				return false
			}
		}
	}
	return true
}

func atoiOr(s string, def int) int {
	n := 0
	if s == "" {
		return def
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// ResetForm fires the cancelable reset event, then restores every control
// to its markup defaults.
func (rt *Runtime) ResetForm(formID dom.NodeID) error {
	n := rt.Arena.Get(formID)
	if n == nil || n.TagLower() != "form" {
		return rtErrf("reset() target is not a <form>")
	}
	proceed, err := rt.fire(formID, "reset", true, true)
	if err != nil {
		return err
	}
	if !proceed {
		return nil
	}
	for _, id := range rt.Arena.PreOrder(formID) {
		cn := rt.Arena.Get(id)
		if cn == nil || cn.Kind != dom.KindElement {
			continue
		}
		switch cn.TagLower() {
		case "input":
			cn.Form.Value = attrOr(cn, "value", "")
			cn.Form.Checked = cn.HasAttr("checked")
			cn.Form.Indeterminate = false
			_ = rt.Arena.RemoveAttr(id, "data-value-dirty")
		case "textarea":
			cn.Form.Value = rt.Arena.TextContent(id)
			_ = rt.Arena.RemoveAttr(id, "data-value-dirty")
		case "option":
			cn.Form.Checked = cn.HasAttr("selected")
		}
	}
	for _, id := range rt.Arena.PreOrder(formID) {
		cn := rt.Arena.Get(id)
		if cn != nil && cn.Kind == dom.KindElement && cn.TagLower() == "select" {
			rt.Arena.SyncSelectFromOptions(id)
		}
	}
	return nil
}

// Flush drains the scheduler and surfaces deferred timer/microtask errors.
func (rt *Runtime) Flush() error {
	if err := rt.Sched.Flush(); err != nil {
		return &RuntimeError{Msg: err.Error()}
	}
	return rt.TakeDeferredErr()
}
