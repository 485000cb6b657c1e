package domselect

import (
	"testing"

	"github.com/cryguy/domharness/internal/dom"
)

func build(t *testing.T) (*dom.Arena, map[string]dom.NodeID) {
	t.Helper()
	a := dom.NewArena()
	ids := map[string]dom.NodeID{}
	div1 := a.CreateElement("div")
	span1 := a.CreateElement("span")
	span2 := a.CreateElement("span")
	div2 := a.CreateElement("div")
	span3 := a.CreateElement("span")
	a.AppendChild(a.Root, div1)
	a.AppendChild(div1, span1)
	a.AppendChild(div1, span2)
	a.AppendChild(a.Root, div2)
	a.AppendChild(div2, span3)
	a.SetAttr(span1, "class", "x")
	a.SetAttr(span2, "class", "x")
	a.SetAttr(span3, "class", "x")
	ids["div1"], ids["span1"], ids["span2"], ids["div2"], ids["span3"] = div1, span1, span2, div2, span3
	return a, ids
}

func TestQuerySelectorAllDocumentOrder(t *testing.T) {
	a, ids := build(t)
	g, err := Parse(".x")
	if err != nil {
		t.Fatal(err)
	}
	m := &Matcher{Arena: a}
	got := m.QueryAll(g, a.Root)
	want := []dom.NodeID{ids["span1"], ids["span2"], ids["span3"]}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestIDFastPath(t *testing.T) {
	a := dom.NewArena()
	e := a.CreateElement("div")
	a.AppendChild(a.Root, e)
	a.SetAttr(e, "id", "foo")
	g, _ := Parse("#foo")
	if _, ok := g.IsSingleID(); !ok {
		t.Fatalf("expected single-id fast path recognized")
	}
	m := &Matcher{Arena: a}
	if m.QueryOne(g, a.Root) != e {
		t.Errorf("expected id fast path to find element")
	}
}

func TestChildCombinator(t *testing.T) {
	a, ids := build(t)
	g, _ := Parse("div > span")
	m := &Matcher{Arena: a}
	got := m.QueryAll(g, a.Root)
	if len(got) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(got))
	}
	_ = ids
}

func TestNotPseudo(t *testing.T) {
	a, ids := build(t)
	a.SetAttr(ids["span1"], "data-skip", "1")
	g, _ := Parse(".x:not([data-skip])")
	m := &Matcher{Arena: a}
	got := m.QueryAll(g, a.Root)
	for _, id := range got {
		if id == ids["span1"] {
			t.Errorf(":not should have excluded span1")
		}
	}
	if len(got) != 2 {
		t.Errorf("expected 2 matches, got %d", len(got))
	}
}

func TestNthChildOddEven(t *testing.T) {
	a := dom.NewArena()
	var kids []dom.NodeID
	for i := 0; i < 4; i++ {
		li := a.CreateElement("li")
		a.AppendChild(a.Root, li)
		kids = append(kids, li)
	}
	g, _ := Parse("li:nth-child(odd)")
	m := &Matcher{Arena: a}
	got := m.QueryAll(g, a.Root)
	if len(got) != 2 || got[0] != kids[0] || got[1] != kids[2] {
		t.Fatalf("got %v", got)
	}
}

func TestAttributeOperators(t *testing.T) {
	a := dom.NewArena()
	e := a.CreateElement("a")
	a.AppendChild(a.Root, e)
	a.SetAttr(e, "href", "https://example.com/path")
	cases := []struct {
		sel  string
		want bool
	}{
		{`a[href^="https://"]`, true},
		{`a[href$="/path"]`, true},
		{`a[href*="example"]`, true},
		{`a[href=https://example.com/path]`, true},
		{`a[href$=".zip"]`, false},
	}
	m := &Matcher{Arena: a}
	for _, c := range cases {
		g, err := Parse(c.sel)
		if err != nil {
			t.Fatalf("parse %q: %v", c.sel, err)
		}
		if got := m.Matches(g, e); got != c.want {
			t.Errorf("%q: got %v want %v", c.sel, got, c.want)
		}
	}
}

func TestDeterminismAcrossRuns(t *testing.T) {
	a, _ := build(t)
	g, _ := Parse(".x")
	m := &Matcher{Arena: a}
	first := m.QueryAll(g, a.Root)
	second := m.QueryAll(g, a.Root)
	if len(first) != len(second) {
		t.Fatalf("non-deterministic result lengths")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("non-deterministic order at %d", i)
		}
	}
}
