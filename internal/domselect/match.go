package domselect

import (
	"strconv"
	"strings"

	"github.com/cryguy/domharness/internal/dom"
)

// Matcher binds a Group to a live arena + scope root (for `:scope`).
type Matcher struct {
	Arena *dom.Arena
	Scope dom.NodeID
}

// Matches reports whether id matches any selector in the group.
func (m *Matcher) Matches(g *Group, id dom.NodeID) bool {
	for _, sel := range g.Selectors {
		if m.matchesSelector(&sel, id) {
			return true
		}
	}
	return false
}

// QueryAll implements querySelectorAll: pre-order DFS from root, each
// element matches at most once across groups, duplicates removed while
// preserving document order (spec.md §4.D).
func (m *Matcher) QueryAll(g *Group, root dom.NodeID) []dom.NodeID {
	if id, ok := g.IsSingleID(); ok {
		// Fast path: id index returns candidates in registration order,
		// but callers expect document order for a root-scoped query; since
		// ids are (by convention) unique, registration order is fine here.
		return filterUnderRoot(m.Arena, m.Arena.ByIDAll(id), root)
	}
	var out []dom.NodeID
	seen := make(map[dom.NodeID]bool)
	for _, id := range m.Arena.PreOrder(root) {
		n := m.Arena.Get(id)
		if n == nil || n.Kind != dom.KindElement || id == root {
			continue
		}
		if seen[id] {
			continue
		}
		if m.Matches(g, id) {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// QueryOne returns the first matching element in document order, or 0.
func (m *Matcher) QueryOne(g *Group, root dom.NodeID) dom.NodeID {
	if id, ok := g.IsSingleID(); ok {
		return m.Arena.ByID(id)
	}
	for _, id := range m.Arena.PreOrder(root) {
		n := m.Arena.Get(id)
		if n == nil || n.Kind != dom.KindElement || id == root {
			continue
		}
		if m.Matches(g, id) {
			return id
		}
	}
	return 0
}

func filterUnderRoot(a *dom.Arena, ids []dom.NodeID, root dom.NodeID) []dom.NodeID {
	var out []dom.NodeID
	for _, id := range ids {
		if id == root || a.IsDescendantOf(id, root) {
			out = append(out, id)
		}
	}
	return out
}

// matchesSelector matches the step chain right-to-left from candidate el
// upward, per spec.md §4.D "evaluated right-to-left from the candidate
// element upward".
func (m *Matcher) matchesSelector(sel *Selector, el dom.NodeID) bool {
	if len(sel.Steps) == 0 {
		return false
	}
	last := len(sel.Steps) - 1
	if !m.matchesStep(&sel.Steps[last], el) {
		return false
	}
	return m.matchesAncestorChain(sel.Steps, last, el)
}

// matchesAncestorChain verifies steps[0..idx-1] against ancestors/siblings
// of el (which already matched steps[idx]).
func (m *Matcher) matchesAncestorChain(steps []Step, idx int, el dom.NodeID) bool {
	if idx == 0 {
		return true
	}
	comb := steps[idx-1].Combinator
	switch comb {
	case CombinatorChild:
		p := m.Arena.Parent(el)
		if p == 0 || !m.matchesStep(&steps[idx-1], p) {
			return false
		}
		return m.matchesAncestorChain(steps, idx-1, p)
	case CombinatorDescendant, CombinatorNone:
		p := m.Arena.Parent(el)
		for p != 0 {
			if m.matchesStep(&steps[idx-1], p) && m.matchesAncestorChain(steps, idx-1, p) {
				return true
			}
			p = m.Arena.Parent(p)
		}
		return false
	case CombinatorAdjacent:
		sib := m.prevElementSibling(el)
		if sib == 0 || !m.matchesStep(&steps[idx-1], sib) {
			return false
		}
		return m.matchesAncestorChain(steps, idx-1, sib)
	case CombinatorSibling:
		for _, sib := range m.precedingElementSiblings(el) {
			if m.matchesStep(&steps[idx-1], sib) && m.matchesAncestorChain(steps, idx-1, sib) {
				return true
			}
		}
		return false
	}
	return false
}

func containsClass(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func (m *Matcher) prevElementSibling(id dom.NodeID) dom.NodeID {
	p := m.Arena.Parent(id)
	if p == 0 {
		return 0
	}
	kids := m.Arena.Children(p)
	var prev dom.NodeID
	for _, k := range kids {
		if k == id {
			return prev
		}
		if n := m.Arena.Get(k); n != nil && n.Kind == dom.KindElement {
			prev = k
		}
	}
	return 0
}

func (m *Matcher) precedingElementSiblings(id dom.NodeID) []dom.NodeID {
	p := m.Arena.Parent(id)
	if p == 0 {
		return nil
	}
	var out []dom.NodeID
	for _, k := range m.Arena.Children(p) {
		if k == id {
			break
		}
		if n := m.Arena.Get(k); n != nil && n.Kind == dom.KindElement {
			out = append(out, k)
		}
	}
	return out
}

func (m *Matcher) matchesStep(st *Step, el dom.NodeID) bool {
	n := m.Arena.Get(el)
	if n == nil || n.Kind != dom.KindElement {
		return false
	}
	if st.Tag != "" && st.Tag != "*" && !strings.EqualFold(st.Tag, n.TagName) {
		return false
	}
	if st.ID != "" {
		if v, ok := n.GetAttr("id"); !ok || v != st.ID {
			return false
		}
	}
	classes := m.Arena.ClassList(el)
	for _, c := range st.Classes {
		if !containsClass(classes, c) {
			return false
		}
	}
	for _, am := range st.Attrs {
		if !m.matchAttr(el, am) {
			return false
		}
	}
	for _, ps := range st.Pseudos {
		if !m.matchPseudo(el, ps) {
			return false
		}
	}
	return true
}

func (m *Matcher) matchAttr(el dom.NodeID, am AttrMatcher) bool {
	n := m.Arena.Get(el)
	v, ok := n.GetAttr(am.Name)
	if am.Op == "" {
		return ok
	}
	if !ok {
		return false
	}
	switch am.Op {
	case "=":
		return v == am.Value
	case "~=":
		for _, word := range strings.Fields(v) {
			if word == am.Value {
				return true
			}
		}
		return false
	case "|=":
		return v == am.Value || strings.HasPrefix(v, am.Value+"-")
	case "^=":
		return strings.HasPrefix(v, am.Value)
	case "$=":
		return strings.HasSuffix(v, am.Value)
	case "*=":
		return strings.Contains(v, am.Value)
	}
	return false
}

func (m *Matcher) matchPseudo(el dom.NodeID, ps PseudoClass) bool {
	switch ps.Name {
	case "first-child":
		return m.childIndex(el) == 0
	case "last-child":
		sibs := m.elementSiblings(el)
		return len(sibs) > 0 && sibs[len(sibs)-1] == el
	case "nth-child":
		return m.matchNthChild(el, ps.Arg)
	case "not":
		inner, err := Parse(ps.Arg)
		if err != nil {
			return false
		}
		return !m.Matches(inner, el)
	case "has":
		inner, err := Parse(ps.Arg)
		if err != nil {
			return false
		}
		for _, id := range m.Arena.PreOrder(el) {
			if id == el {
				continue
			}
			if n := m.Arena.Get(id); n != nil && n.Kind == dom.KindElement && m.Matches(inner, id) {
				return true
			}
		}
		return false
	case "is", "where":
		inner, err := Parse(ps.Arg)
		if err != nil {
			return false
		}
		return m.Matches(inner, el)
	case "scope":
		return el == m.Scope
	}
	return true // unknown pseudo: fail open rather than reject the whole selector
}

func (m *Matcher) elementSiblings(el dom.NodeID) []dom.NodeID {
	p := m.Arena.Parent(el)
	if p == 0 {
		return nil
	}
	var out []dom.NodeID
	for _, k := range m.Arena.Children(p) {
		if n := m.Arena.Get(k); n != nil && n.Kind == dom.KindElement {
			out = append(out, k)
		}
	}
	return out
}

func (m *Matcher) childIndex(el dom.NodeID) int {
	for i, s := range m.elementSiblings(el) {
		if s == el {
			return i
		}
	}
	return -1
}

// matchNthChild supports "odd", "even", a bare integer, and "An+B" forms.
func (m *Matcher) matchNthChild(el dom.NodeID, arg string) bool {
	arg = strings.TrimSpace(strings.ToLower(arg))
	pos := m.childIndex(el) + 1 // 1-based
	if pos <= 0 {
		return false
	}
	switch arg {
	case "odd":
		return pos%2 == 1
	case "even":
		return pos%2 == 0
	}
	a, b, ok := parseAnPlusB(arg)
	if !ok {
		return false
	}
	if a == 0 {
		return pos == b
	}
	diff := pos - b
	if diff%a != 0 {
		return false
	}
	return diff/a >= 0
}

// parseAnPlusB parses "An+B", "An-B", "n", "-n+B", or a bare integer.
func parseAnPlusB(s string) (a, b int, ok bool) {
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return 0, n, true
	}
	idx := strings.Index(s, "n")
	if idx < 0 {
		return 0, 0, false
	}
	aPart := s[:idx]
	switch aPart {
	case "", "+":
		a = 1
	case "-":
		a = -1
	default:
		v, err := strconv.Atoi(aPart)
		if err != nil {
			return 0, 0, false
		}
		a = v
	}
	bPart := s[idx+1:]
	if bPart == "" {
		b = 0
	} else {
		v, err := strconv.Atoi(bPart)
		if err != nil {
			return 0, 0, false
		}
		b = v
	}
	return a, b, true
}
