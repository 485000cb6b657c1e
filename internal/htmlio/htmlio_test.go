package htmlio

import (
	"strings"
	"testing"

	"github.com/cryguy/domharness/internal/dom"
)

func TestParseDocumentExtractsScripts(t *testing.T) {
	arena, scripts, err := ParseDocument(`<div id="d">hi</div><script>var x = 1;</script>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 1 {
		t.Fatalf("expected 1 script, got %d", len(scripts))
	}
	if strings.TrimSpace(scripts[0].Body) != "var x = 1;" {
		t.Errorf("unexpected script body %q", scripts[0].Body)
	}
	if arena.ByID("d") == 0 {
		t.Errorf("expected #d indexed")
	}
}

func TestScriptEndSkipsRegexQuote(t *testing.T) {
	// a regex body containing a quote must not confuse naive "</script>"
	// style scanning (spec.md §4.E); our scanner-aware search must find
	// the real closing tag, not an earlier byte sequence.
	src := "<script>var re = /a\"b/; var y = 2;</script><p>after</p>"
	_, scripts, err := ParseDocument(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 1 {
		t.Fatalf("expected 1 script, got %d: %#v", len(scripts), scripts)
	}
	if !strings.Contains(scripts[0].Body, "var y = 2;") {
		t.Errorf("script body truncated: %q", scripts[0].Body)
	}
}

func TestNonExecutableScriptTypeNotExecuted(t *testing.T) {
	_, scripts, err := ParseDocument(`<script type="application/ld+json">{"a":1}</script>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 0 {
		t.Fatalf("expected ld+json script to be inert, got %d executable scripts", len(scripts))
	}
}

func TestModuleScriptExecutesLikeClassic(t *testing.T) {
	_, scripts, err := ParseDocument(`<script type="module">var z = 1;</script>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 1 || !scripts[0].Module {
		t.Fatalf("expected 1 module script, got %#v", scripts)
	}
}

func TestVoidElementSerialization(t *testing.T) {
	arena, _, err := ParseDocument(`<br><input id="i" value="x">`)
	if err != nil {
		t.Fatal(err)
	}
	out := DumpNode(arena, arena.Root)
	if !strings.Contains(out, "<br>") {
		t.Errorf("expected void <br> without closing tag, got %q", out)
	}
}

func TestAttributeEscaping(t *testing.T) {
	arena := dom.NewArena()
	e := arena.CreateElement("div")
	arena.AppendChild(arena.Root, e)
	arena.SetAttr(e, "title", `a "quote" & <tag>`)
	out := DumpNode(arena, e)
	if !strings.Contains(out, `&quot;quote&quot;`) || !strings.Contains(out, "&amp;") || !strings.Contains(out, "&lt;tag&gt;") {
		t.Errorf("attribute not escaped correctly: %q", out)
	}
}

func TestOptionalEndTagLiAutoCloses(t *testing.T) {
	arena, _, err := ParseDocument(`<ul><li>one<li>two</ul>`)
	if err != nil {
		t.Fatal(err)
	}
	ul := findFirst(arena, arena.Root, "ul")
	if ul == 0 {
		t.Fatal("no ul found")
	}
	kids := arena.Children(ul)
	if len(kids) != 2 {
		t.Fatalf("expected 2 li children (implicit close), got %d", len(kids))
	}
}

func TestFragmentSanitizationStripsScript(t *testing.T) {
	arena, scripts, err := ParseFragment(`<p id="p">hi</p><script>x=1</script>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 0 {
		t.Errorf("expected sanitized fragment to drop scripts entirely")
	}
	if arena.ByID("p") == 0 {
		t.Errorf("expected #p to survive sanitization")
	}
	out := DumpNode(arena, arena.Root)
	if strings.Contains(out, "<script") {
		t.Errorf("expected no script tag in sanitized output, got %q", out)
	}
}

func TestIdempotentRoundTrip(t *testing.T) {
	src := `<div id="d" class="a b"><span>hi</span></div>`
	arena, _, err := ParseDocument(src)
	if err != nil {
		t.Fatal(err)
	}
	dumped := DumpNode(arena, arena.Root)
	arena2, _, err := ParseDocument(dumped)
	if err != nil {
		t.Fatal(err)
	}
	if DumpNode(arena2, arena2.Root) != dumped {
		t.Errorf("round-trip not idempotent: %q vs %q", dumped, DumpNode(arena2, arena2.Root))
	}
}

func findFirst(a *dom.Arena, root dom.NodeID, tag string) dom.NodeID {
	for _, id := range a.PreOrder(root) {
		n := a.Get(id)
		if n != nil && n.Kind == dom.KindElement && n.TagLower() == tag {
			return id
		}
	}
	return 0
}
