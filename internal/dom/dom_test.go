package dom

import "testing"

func TestAppendChildAndParentEdge(t *testing.T) {
	a := NewArena()
	div := a.CreateElement("div")
	a.AppendChild(a.Root, div)
	if a.Parent(div) != a.Root {
		t.Fatalf("parent edge not set")
	}
	kids := a.Children(a.Root)
	if len(kids) != 1 || kids[0] != div {
		t.Fatalf("children list wrong: %v", kids)
	}
}

func TestDetachClearsParentAndChildList(t *testing.T) {
	a := NewArena()
	div := a.CreateElement("div")
	a.AppendChild(a.Root, div)
	a.Detach(div)
	if a.Parent(div) != 0 {
		t.Errorf("expected detached parent 0, got %d", a.Parent(div))
	}
	if len(a.Children(a.Root)) != 0 {
		t.Errorf("expected empty children after detach")
	}
}

func TestIDIndexRegistrationOrderAndDuplicates(t *testing.T) {
	a := NewArena()
	e1 := a.CreateElement("div")
	e2 := a.CreateElement("div")
	a.AppendChild(a.Root, e1)
	a.AppendChild(a.Root, e2)
	a.SetAttr(e1, "id", "x")
	a.SetAttr(e2, "id", "x")
	all := a.ByIDAll("x")
	if len(all) != 2 || all[0] != e1 || all[1] != e2 {
		t.Fatalf("expected [e1,e2] in registration order, got %v", all)
	}
	if a.ByID("x") != e1 {
		t.Errorf("ByID should return first registered")
	}
}

func TestRemoveAttrUnindexesID(t *testing.T) {
	a := NewArena()
	e1 := a.CreateElement("div")
	a.AppendChild(a.Root, e1)
	a.SetAttr(e1, "id", "x")
	a.RemoveAttr(e1, "id")
	if a.ByID("x") != 0 {
		t.Errorf("expected id unindexed after removeAttribute")
	}
}

func TestIsDescendantOfTransitive(t *testing.T) {
	a := NewArena()
	mid := a.CreateElement("div")
	leaf := a.CreateElement("span")
	a.AppendChild(a.Root, mid)
	a.AppendChild(mid, leaf)
	if !a.IsDescendantOf(leaf, a.Root) {
		t.Errorf("expected transitive descendant true")
	}
}

func TestSelectionClamping(t *testing.T) {
	a := NewArena()
	inp := a.CreateElement("input")
	a.AppendChild(a.Root, inp)
	a.SetValue(inp, "hello")
	a.SetSelectionRange(inp, -5, 100, SelectionForward)
	n := a.Get(inp)
	if n.Form.SelectionStart != 0 || n.Form.SelectionEnd != 5 {
		t.Errorf("expected clamped [0,5], got [%d,%d]", n.Form.SelectionStart, n.Form.SelectionEnd)
	}
}

func TestSelectionUsesRuneCount(t *testing.T) {
	a := NewArena()
	inp := a.CreateElement("input")
	a.AppendChild(a.Root, inp)
	a.SetValue(inp, "héllo") // 5 runes, 6 bytes
	a.SetSelectionRange(inp, 0, 10, SelectionNone)
	n := a.Get(inp)
	if n.Form.SelectionEnd != 5 {
		t.Errorf("expected selection end clamped to rune count 5, got %d", n.Form.SelectionEnd)
	}
}

func TestClassListAddRemoveToggle(t *testing.T) {
	a := NewArena()
	div := a.CreateElement("div")
	a.AppendChild(a.Root, div)
	a.ClassAdd(div, "a", "b")
	if got := a.ClassList(div); len(got) != 2 {
		t.Fatalf("expected 2 classes, got %v", got)
	}
	a.ClassRemove(div, "a")
	if got := a.ClassList(div); len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected [b], got %v", got)
	}
	has, _ := a.ClassToggle(div, "b", nil)
	if has {
		t.Errorf("expected toggle to remove b")
	}
	has, _ = a.ClassToggle(div, "c", nil)
	if !has {
		t.Errorf("expected toggle to add c")
	}
}

func TestStyleGetSetEmptyDeletes(t *testing.T) {
	a := NewArena()
	div := a.CreateElement("div")
	a.AppendChild(a.Root, div)
	a.StyleSet(div, "color", "red")
	if got := a.StyleGet(div, "color"); got != "red" {
		t.Fatalf("expected red, got %q", got)
	}
	a.StyleSet(div, "color", "")
	if got := a.StyleGet(div, "color"); got != "" {
		t.Fatalf("expected deleted, got %q", got)
	}
	// an empty declaration list still serializes as a present style attr
	if _, ok := a.GetAttrOn(div, "style"); !ok {
		t.Errorf("expected style attribute to remain present though empty")
	}
}

func TestCamelKebabCSSVendorPrefix(t *testing.T) {
	if got := CamelToKebabCSS("WebkitTransform"); got != "-webkit-transform" {
		t.Errorf("got %q", got)
	}
	if got := CamelToKebabCSS("backgroundColor"); got != "background-color" {
		t.Errorf("got %q", got)
	}
}

func TestSelectOptionSync(t *testing.T) {
	a := NewArena()
	sel := a.CreateElement("select")
	o1 := a.CreateElement("option")
	o2 := a.CreateElement("option")
	a.AppendChild(a.Root, sel)
	a.AppendChild(sel, o1)
	a.AppendChild(sel, o2)
	a.SetAttr(o1, "value", "one")
	a.SetAttr(o2, "value", "two")
	a.SetOptionSelected(o2, true)
	if a.Get(sel).Form.Value != "two" {
		t.Errorf("expected select value synced to 'two', got %q", a.Get(sel).Form.Value)
	}
}

func TestRebuildIDIndexAfterBulkMutation(t *testing.T) {
	a := NewArena()
	e1 := a.CreateElement("div")
	a.AppendChild(a.Root, e1)
	a.SetAttr(e1, "id", "p")
	a.ClearChildren(a.Root)
	if a.ByID("p") != 0 {
		t.Fatalf("expected id unindexed after ClearChildren unindex walk")
	}
	e2 := a.CreateElement("div")
	a.AppendChild(a.Root, e2)
	a.SetAttr(e2, "id", "q")
	a.RebuildIDIndex()
	if a.ByID("q") != e2 {
		t.Errorf("expected rebuild to find q")
	}
}
