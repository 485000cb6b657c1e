package dispatch

import (
	"testing"

	"github.com/cryguy/domharness/internal/dom"
	"github.com/cryguy/domharness/internal/jsvalue"
	"github.com/cryguy/domharness/internal/listener"
)

// recordingInvoker appends a label per invocation and optionally runs a
// hook (used to exercise stopPropagation/stopImmediatePropagation).
type recordingInvoker struct {
	order []string
	hooks map[*listener.Entry]func(*Event)
}

func (r *recordingInvoker) Invoke(e *listener.Entry, ev *Event) error {
	r.order = append(r.order, labelFor(e))
	if h, ok := r.hooks[e]; ok {
		h(ev)
	}
	return nil
}

// label is stashed in PendingFuncDeclsTop purely for test identification;
// production listeners never rely on that field's value.
func labelFor(e *listener.Entry) string {
	s, _ := e.PendingFuncDeclsTop.(string)
	return s
}

func newEntry(label string, capture, once bool) *listener.Entry {
	return &listener.Entry{
		Handler:             jsvalue.FunctionValue(&jsvalue.Function{}),
		Capture:             capture,
		Once:                once,
		PendingFuncDeclsTop: label,
	}
}

func buildTree(t *testing.T) (*dom.Arena, dom.NodeID, dom.NodeID, dom.NodeID) {
	t.Helper()
	a := dom.NewArena()
	grandparent := a.CreateElement("div")
	parent := a.CreateElement("div")
	target := a.CreateElement("span")
	if err := a.AppendChild(a.Root, grandparent); err != nil {
		t.Fatal(err)
	}
	if err := a.AppendChild(grandparent, parent); err != nil {
		t.Fatal(err)
	}
	if err := a.AppendChild(parent, target); err != nil {
		t.Fatal(err)
	}
	return a, grandparent, parent, target
}

func TestDispatchOrderCaptureTargetBubble(t *testing.T) {
	a, grandparent, parent, target := buildTree(t)
	store := listener.NewStore()

	store.Add(grandparent, "click", newEntry("gp-capture", true, false))
	store.Add(parent, "click", newEntry("p-capture", true, false))
	store.Add(target, "click", newEntry("t-capture", true, false))
	store.Add(target, "click", newEntry("t-bubble", false, false))
	store.Add(parent, "click", newEntry("p-bubble", false, false))
	store.Add(grandparent, "click", newEntry("gp-bubble", false, false))

	inv := &recordingInvoker{}
	d := New(a, store, inv, nil)
	ev := &Event{Type: "click", Target: target, Bubbles: true, Cancelable: true}
	if err := d.Dispatch(ev); err != nil {
		t.Fatal(err)
	}

	want := []string{"gp-capture", "p-capture", "t-capture", "t-bubble", "p-bubble", "gp-bubble"}
	if !equalSlices(inv.order, want) {
		t.Fatalf("got %v, want %v", inv.order, want)
	}
}

func TestNonBubblingStopsAtTarget(t *testing.T) {
	a, grandparent, parent, target := buildTree(t)
	store := listener.NewStore()
	store.Add(parent, "focus", newEntry("p-bubble", false, false))
	store.Add(target, "focus", newEntry("t-bubble", false, false))
	_ = grandparent

	inv := &recordingInvoker{}
	d := New(a, store, inv, nil)
	ev := &Event{Type: "focus", Target: target, Bubbles: false}
	if err := d.Dispatch(ev); err != nil {
		t.Fatal(err)
	}
	want := []string{"t-bubble"}
	if !equalSlices(inv.order, want) {
		t.Fatalf("got %v, want %v (bubbles=false must not visit ancestors)", inv.order, want)
	}
}

func TestStopPropagationHaltsEntireWalk(t *testing.T) {
	a, grandparent, parent, target := buildTree(t)
	store := listener.NewStore()
	tEntry := newEntry("t-bubble", false, false)
	pEntry := newEntry("p-bubble", false, false)
	store.Add(target, "click", tEntry)
	store.Add(parent, "click", pEntry)
	_ = grandparent

	inv := &recordingInvoker{hooks: map[*listener.Entry]func(*Event){
		tEntry: func(ev *Event) { ev.StopPropagation() },
	}}
	d := New(a, store, inv, nil)
	ev := &Event{Type: "click", Target: target, Bubbles: true}
	if err := d.Dispatch(ev); err != nil {
		t.Fatal(err)
	}
	want := []string{"t-bubble"}
	if !equalSlices(inv.order, want) {
		t.Fatalf("got %v, want %v (stopPropagation must suppress ancestor bubble)", inv.order, want)
	}
}

func TestStopImmediatePropagationHaltsSameNodeOnly(t *testing.T) {
	a, _, _, target := buildTree(t)
	store := listener.NewStore()
	first := newEntry("first", false, false)
	second := newEntry("second", false, false)
	store.Add(target, "click", first)
	store.Add(target, "click", second)

	inv := &recordingInvoker{hooks: map[*listener.Entry]func(*Event){
		first: func(ev *Event) { ev.StopImmediatePropagation() },
	}}
	d := New(a, store, inv, nil)
	ev := &Event{Type: "click", Target: target, Bubbles: true}
	if err := d.Dispatch(ev); err != nil {
		t.Fatal(err)
	}
	want := []string{"first"}
	if !equalSlices(inv.order, want) {
		t.Fatalf("got %v, want %v (stopImmediatePropagation must skip 'second' at same node)", inv.order, want)
	}
}

func TestOnceListenerRemovedAfterInvocation(t *testing.T) {
	a, _, _, target := buildTree(t)
	store := listener.NewStore()
	store.Add(target, "click", newEntry("once", false, true))

	inv := &recordingInvoker{}
	d := New(a, store, inv, nil)
	ev1 := &Event{Type: "click", Target: target}
	if err := d.Dispatch(ev1); err != nil {
		t.Fatal(err)
	}
	ev2 := &Event{Type: "click", Target: target}
	if err := d.Dispatch(ev2); err != nil {
		t.Fatal(err)
	}
	if len(inv.order) != 1 {
		t.Fatalf("expected once listener to fire exactly once, fired %d times", len(inv.order))
	}
}

func TestDetachedTargetSkipsAncestorPath(t *testing.T) {
	a := dom.NewArena()
	detachedParent := a.CreateElement("div")
	target := a.CreateElement("span")
	if err := a.AppendChild(detachedParent, target); err != nil {
		t.Fatal(err)
	}
	store := listener.NewStore()
	store.Add(detachedParent, "click", newEntry("parent", true, false))
	store.Add(target, "click", newEntry("target", false, false))

	inv := &recordingInvoker{}
	d := New(a, store, inv, nil)
	ev := &Event{Type: "click", Target: target, Bubbles: true}
	if err := d.Dispatch(ev); err != nil {
		t.Fatal(err)
	}
	want := []string{"target"}
	if !equalSlices(inv.order, want) {
		t.Fatalf("got %v, want %v (detached target must skip the unreachable ancestor)", inv.order, want)
	}
}

func TestTracerRingBufferDropsOldest(t *testing.T) {
	tr := NewTracer(2)
	tr.Logf("a")
	tr.Logf("b")
	tr.Logf("c")
	got := tr.Take()
	want := []string{"b", "c"}
	if !equalSlices(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if len(tr.Take()) != 0 {
		t.Errorf("expected Take to clear the buffer")
	}
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
