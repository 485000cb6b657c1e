package jsparser

import (
	"testing"

	"github.com/cryguy/domharness/internal/jsast"
)

func mustParse(t *testing.T, src string) []jsast.Stmt {
	t.Helper()
	stmts, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}
	return stmts
}

func TestParseStatementForms(t *testing.T) {
	sources := []string{
		"let x = 1;",
		"const [a, b = 2, ...rest] = arr;",
		"const {x, y: z = 3, ...others} = obj;",
		"var i; for (i = 0; i < 10; i++) { total += i; }",
		"for (const k in obj) { keys.push(k); }",
		"for (const v of list) { out.push(v); }",
		"while (n > 0) { n--; }",
		"do { n++; } while (n < 3);",
		"if (a) { b(); } else if (c) { d(); } else { e(); }",
		"try { risky(); } catch (e) { log(e); } finally { done(); }",
		"try { risky(); } catch ({message}) { log(message); }",
		"switch (x) { case 1: one(); break; default: other(); }",
		"throw new Error('boom');",
		"function add(a, b = 1, ...rest) { return a + b; }",
		"async function load() { const r = await fetch('/x'); }",
		"function* gen() { yield 1; yield* more(); }",
		"outer: for (;;) { break outer; }",
		"label: while (x) { continue label; }",
		";",
	}
	for _, src := range sources {
		mustParse(t, src)
	}
}

func TestParseExpressionForms(t *testing.T) {
	sources := []string{
		"a ?? b ?? c",
		"a?.b?.[c]?.()",
		"x ** y ** z",
		"a === b ? c : d ? e : f",
		"-x + +y - ~z",
		"typeof x === 'undefined'",
		"obj.method(...args, last)",
		"[1, 2, ...rest]",
		"({a, b: 2, [key]: 3, method() { return 1; }, get x() { return 2; }})",
		"`hi ${name} and ${1 + 2}`",
		"tag`x ${y} z`",
		"/a+b/gi.test(s)",
		"x => x + 1",
		"(a, b) => { return a * b; }",
		"async () => await p",
		"new Map([[1, 'a']])",
		"a &&= b",
		"a ||= b",
		"a ??= b",
		"x <<= 2",
		"delete obj.prop",
		"void 0",
		"1_000_000 + 0xff + 0b101 + 0o17",
		"10n + 20n",
		"i++ + ++j",
	}
	for _, src := range sources {
		if _, err := ParseExpression(src); err != nil {
			t.Errorf("ParseExpression(%q) failed: %v", src, err)
		}
	}
}

func TestAssignmentRightAssociative(t *testing.T) {
	e, err := ParseExpression("a = b = 1")
	if err != nil {
		t.Fatal(err)
	}
	outer, ok := e.(*jsast.AssignExpr)
	if !ok {
		t.Fatalf("expected AssignExpr, got %T", e)
	}
	if _, ok := outer.Value.(*jsast.AssignExpr); !ok {
		t.Fatalf("expected nested AssignExpr on the right, got %T", outer.Value)
	}
}

func TestShiftNotMistakenForComparison(t *testing.T) {
	e, err := ParseExpression("a << 2 > b")
	if err != nil {
		t.Fatal(err)
	}
	cmp, ok := e.(*jsast.BinaryExpr)
	if !ok || cmp.Op != ">" {
		t.Fatalf("expected top-level >, got %#v", e)
	}
	shift, ok := cmp.Left.(*jsast.BinaryExpr)
	if !ok || shift.Op != "<<" {
		t.Fatalf("expected << on the left, got %#v", cmp.Left)
	}
}

func TestRegexVersusDivision(t *testing.T) {
	// after an identifier, / is division; after return, / starts a regex
	if _, err := ParseExpression("a / b / c"); err != nil {
		t.Fatalf("division parse failed: %v", err)
	}
	stmts := mustParse(t, "function f() { return /ab\"c/.test(x); }")
	if len(stmts) != 1 {
		t.Fatalf("expected one statement, got %d", len(stmts))
	}
}

func TestTemplateNesting(t *testing.T) {
	e, err := ParseExpression("`a ${`b ${c}`} d`")
	if err != nil {
		t.Fatal(err)
	}
	tpl, ok := e.(*jsast.TemplateLit)
	if !ok {
		t.Fatalf("expected TemplateLit, got %T", e)
	}
	if len(tpl.Exprs) != 1 {
		t.Fatalf("expected one substitution, got %d", len(tpl.Exprs))
	}
	if _, ok := tpl.Exprs[0].(*jsast.TemplateLit); !ok {
		t.Fatalf("expected nested template, got %T", tpl.Exprs[0])
	}
}

func TestMalformedInputYieldsError(t *testing.T) {
	sources := []string{
		"let = 5;",
		"if (x { y(); }",
		"function f( { }",
		"switch (x) { banana }",
		"do { x(); }",
	}
	for _, src := range sources {
		if _, err := Parse(src); err == nil {
			t.Errorf("Parse(%q) unexpectedly succeeded", src)
		}
	}
}

// Parser totality: arbitrary garbage must produce an error or a tree,
// never a panic (spec's parser fuzz property).
func TestParserNeverPanics(t *testing.T) {
	inputs := []string{
		"", "}{", "((((", "`unterminated", "'open", "/unclosed",
		"let 🦀 = 1;", "\x00\x01\x02", "a.b.c(", "case:", "else {}",
		"0x", "1..2", "...", "?.?.", "for(;;",
	}
	for _, src := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Parse(%q) panicked: %v", src, r)
				}
			}()
			_, _ = Parse(src)
		}()
	}
}

func TestASIAndNewlines(t *testing.T) {
	stmts := mustParse(t, "let a = 1\nlet b = 2\na = a + b")
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements via ASI, got %d", len(stmts))
	}
	// return followed by a newline returns undefined
	stmts = mustParse(t, "function f() { return\n1 }")
	fd := stmts[0].(*jsast.FunctionDecl)
	ret := fd.Fn.Body[0].(*jsast.ReturnStmt)
	if ret.Arg != nil {
		t.Fatalf("expected bare return before newline, got arg %#v", ret.Arg)
	}
}
