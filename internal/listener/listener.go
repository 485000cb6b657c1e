// Package listener implements the per-node, per-type, capture/bubble
// ordered listener lists of spec.md §4.G, keyed by (NodeID, event type).
package listener

import (
	"github.com/cryguy/domharness/internal/dom"
	"github.com/cryguy/domharness/internal/jsvalue"
)

// EnvCell is a shared, mutable overlay environment captured at attach
// time; internal/evaluator defines the concrete map type and passes it in
// as an opaque pointer here to avoid an import cycle (evaluator imports
// listener to dispatch through it).
type EnvCell = any

// Entry is one addEventListener registration.
type Entry struct {
	Handler             jsvalue.Value // a Function value
	Capture             bool
	Once                bool
	EnvCell             EnvCell
	PendingFuncDeclsTop any   // snapshot of the pending-function-decl scope stack at attach time
	id                  int64 // attach sequence number set by Add; Remove matches by handler function identity, not by id
}

type key struct {
	node dom.NodeID
	typ  string
}

// Store holds capture and bubble listener lists for every (node, type).
type Store struct {
	capture map[key][]*Entry
	bubble  map[key][]*Entry
	nextID  int64
}

func NewStore() *Store {
	return &Store{capture: make(map[key][]*Entry), bubble: make(map[key][]*Entry)}
}

// Add appends a new listener, preserving attach order within the
// (node, type, phase) triple.
func (s *Store) Add(node dom.NodeID, typ string, e *Entry) {
	s.nextID++
	e.id = s.nextID
	k := key{node, typ}
	if e.Capture {
		s.capture[k] = append(s.capture[k], e)
	} else {
		s.bubble[k] = append(s.bubble[k], e)
	}
}

// Remove deletes the first entry matching handler identity + capture flag,
// per spec.md §4.G.
func (s *Store) Remove(node dom.NodeID, typ string, handler jsvalue.Value, capture bool) {
	k := key{node, typ}
	m := s.bubble
	if capture {
		m = s.capture
	}
	list := m[k]
	for i, e := range list {
		if sameHandler(e.Handler, handler) && e.Capture == capture {
			m[k] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func sameHandler(a, b jsvalue.Value) bool {
	return jsvalue.IsCallable(a) && jsvalue.IsCallable(b) && a.Func() == b.Func()
}

// RemoveOnce removes a specific entry after a `once` listener fires.
func (s *Store) RemoveOnce(node dom.NodeID, typ string, e *Entry) {
	k := key{node, typ}
	m := s.bubble
	if e.Capture {
		m = s.capture
	}
	list := m[k]
	for i, x := range list {
		if x == e {
			m[k] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Capture returns the capture-phase listeners for (node, type), in attach order.
func (s *Store) Capture(node dom.NodeID, typ string) []*Entry {
	return append([]*Entry(nil), s.capture[key{node, typ}]...)
}

// Bubble returns the bubble-phase listeners for (node, type), in attach order.
func (s *Store) Bubble(node dom.NodeID, typ string) []*Entry {
	return append([]*Entry(nil), s.bubble[key{node, typ}]...)
}

// HasAny reports whether node has any listener of typ in either phase.
func (s *Store) HasAny(node dom.NodeID, typ string) bool {
	k := key{node, typ}
	return len(s.capture[k]) > 0 || len(s.bubble[k]) > 0
}
