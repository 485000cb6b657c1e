// Package dispatch implements spec.md §4.I: the capture/target/bubble event
// walk over internal/listener's per-node listener lists. It knows nothing
// about *how* a listener runs a script function — internal/evaluator
// supplies an Invoker that does the actual call (including the captured-env
// overlay semantics spec.md §4.I describes) — this package only owns
// ordering, propagation control, and tracing.
package dispatch

import (
	"github.com/cryguy/domharness/internal/dom"
	"github.com/cryguy/domharness/internal/listener"
)

// Phase mirrors Event.event_phase in spec.md §3.
type Phase int

const (
	PhaseNone    Phase = 0
	PhaseCapture Phase = 1
	PhaseTarget  Phase = 2
	PhaseBubble  Phase = 3
)

// Event is the mutable dispatch-time record described in spec.md §3.
type Event struct {
	Type             string
	Target           dom.NodeID
	CurrentTarget    dom.NodeID
	Phase            Phase
	Bubbles          bool
	Cancelable       bool
	DefaultPrevented bool
	IsTrusted        bool
	Timestamp        int64

	propagationStopped          bool
	immediatePropagationStopped bool

	// State/OldState/NewState back the `toggle` event's payload (dialog,
	// details/summary); nil when not applicable.
	State    any
	OldState any
	NewState any
}

// PreventDefault marks the event as having its default action suppressed.
// A no-op when Cancelable is false, per the DOM spec this harness mirrors.
func (e *Event) PreventDefault() {
	if e.Cancelable {
		e.DefaultPrevented = true
	}
}

// StopPropagation halts the walk after the current node finishes, per
// spec.md §4.I step 5.
func (e *Event) StopPropagation() { e.propagationStopped = true }

// StopImmediatePropagation halts remaining listeners at the current node
// and also halts the walk after it, per spec.md §4.I step 5.
func (e *Event) StopImmediatePropagation() {
	e.immediatePropagationStopped = true
	e.propagationStopped = true
}

// Invoker runs one listener's handler against ev and reports a script-level
// failure (ScriptThrown/ScriptRuntime, wrapped) rather than panicking;
// internal/evaluator supplies the concrete implementation.
type Invoker interface {
	Invoke(entry *listener.Entry, ev *Event) error
}

// Dispatcher walks the capture/target/bubble phases over a DOM arena and a
// listener store, per spec.md §4.I.
type Dispatcher struct {
	Arena   *dom.Arena
	Store   *listener.Store
	Invoker Invoker
	Tracer  *Tracer // nil disables tracing
}

// New constructs a Dispatcher. tracer may be nil.
func New(arena *dom.Arena, store *listener.Store, invoker Invoker, tracer *Tracer) *Dispatcher {
	return &Dispatcher{Arena: arena, Store: store, Invoker: invoker, Tracer: tracer}
}

// capturePath returns the ancestor chain from the document root to target,
// root first, target excluded. A detached target (one whose ancestor walk
// never reaches the arena's Root) yields an empty path, per spec.md §4.I
// step 1 ("If T is detached, treat empty path as done").
func (d *Dispatcher) capturePath(target dom.NodeID) []dom.NodeID {
	var chain []dom.NodeID
	cur := d.Arena.Parent(target)
	reachedRoot := false
	for cur != 0 {
		chain = append(chain, cur)
		if cur == d.Arena.Root {
			reachedRoot = true
			break
		}
		cur = d.Arena.Parent(cur)
	}
	if !reachedRoot {
		return nil
	}
	// chain is target-to-root order; reverse to root-to-target.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Dispatch runs the full capture/target/bubble walk for ev, whose Target
// must already be set. Returns the first script-level error raised by a
// listener, if any (the walk stops there, matching "propagates to the
// nearest event dispatcher" in spec.md §6).
func (d *Dispatcher) Dispatch(ev *Event) error {
	path := d.capturePath(ev.Target)
	d.trace("dispatch-start", ev, 0)

	// 1. capture phase over ancestors (root -> target, exclusive of target).
	ev.Phase = PhaseCapture
	for _, node := range path {
		if ev.propagationStopped {
			break
		}
		if err := d.runPhaseAt(node, ev, true); err != nil {
			d.trace("dispatch-end", ev, 0)
			return err
		}
	}

	// 2. target phase: capture-flagged listeners at T, then bubble-flagged.
	if !ev.propagationStopped {
		ev.Phase = PhaseTarget
		if err := d.runPhaseAt(ev.Target, ev, true); err != nil {
			d.trace("dispatch-end", ev, 0)
			return err
		}
		if !ev.propagationStopped {
			if err := d.runPhaseAt(ev.Target, ev, false); err != nil {
				d.trace("dispatch-end", ev, 0)
				return err
			}
		}
	}

	// 3. bubble phase over ancestors, target -> root, only if ev.Bubbles.
	if ev.Bubbles && !ev.propagationStopped {
		ev.Phase = PhaseBubble
		for i := len(path) - 1; i >= 0; i-- {
			if ev.propagationStopped {
				break
			}
			if err := d.runPhaseAt(path[i], ev, false); err != nil {
				d.trace("dispatch-end", ev, 0)
				return err
			}
		}
	}

	d.trace("dispatch-end", ev, 0)
	return nil
}

// runPhaseAt invokes every listener of the requested capture-ness at node,
// in attach order, honoring stopImmediatePropagation within the node and
// `once` removal after each invocation.
func (d *Dispatcher) runPhaseAt(node dom.NodeID, ev *Event, capture bool) error {
	var entries []*listener.Entry
	if capture {
		entries = d.Store.Capture(node, ev.Type)
	} else {
		entries = d.Store.Bubble(node, ev.Type)
	}
	ev.CurrentTarget = node
	for _, e := range entries {
		if ev.immediatePropagationStopped {
			break
		}
		d.trace("listener-invoke", ev, node)
		err := d.Invoker.Invoke(e, ev)
		if e.Once {
			d.Store.RemoveOnce(node, ev.Type, e)
		}
		if err != nil {
			return err
		}
	}
	// immediatePropagationStopped only suppresses the rest of *this* node's
	// list; stopPropagation (set alongside it, or alone) is what the caller
	// checks to stop the whole walk.
	ev.immediatePropagationStopped = false
	return nil
}

func (d *Dispatcher) trace(kind string, ev *Event, node dom.NodeID) {
	if d.Tracer == nil {
		return
	}
	d.Tracer.Logf("%s type=%s target=%d node=%d phase=%d ts=%d", kind, ev.Type, ev.Target, node, ev.Phase, ev.Timestamp)
}
