package evaluator

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cryguy/domharness/internal/dom"
	"github.com/cryguy/domharness/internal/htmlio"
	"github.com/cryguy/domharness/internal/jsvalue"
)

func runScript(t *testing.T, src string) *Runtime {
	t.Helper()
	rt := New(dom.NewArena(), 1)
	if err := rt.CompileAndRegisterScript(src); err != nil {
		t.Fatalf("script failed: %v\n%s", err, src)
	}
	return rt
}

func globalString(t *testing.T, rt *Runtime, name string) string {
	t.Helper()
	v, ok := rt.Global.Get(name)
	if !ok {
		t.Fatalf("global %q not set", name)
	}
	return jsvalue.AsString(v)
}

func TestArithmeticAndCoercion(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"r = 1 + 2 * 3", "7"},
		{"r = 'a' + 1", "a1"},
		{"r = '5' - 2", "3"},
		{"r = 2 ** 10", "1024"},
		{"r = 7 % 3", "1"},
		{"r = 5 / 2", "2.5"},
		{"r = (1.5 | 0)", "1"},
		{"r = -7 >>> 0", "4294967289"},
		{"r = 'abc' < 'abd'", "true"},
		{"r = NaN === NaN", "false"},
		{"r = 10n + 20n", "30"},
		{"r = typeof 10n", "bigint"},
		{"r = 1 == '1'", "true"},
		{"r = null == undefined", "true"},
		{"r = null === undefined", "false"},
	}
	for _, c := range cases {
		rt := runScript(t, c.src)
		if got := globalString(t, rt, "r"); got != c.want {
			t.Errorf("%q: got %q, want %q", c.src, got, c.want)
		}
	}
}

func TestClosuresAndHoisting(t *testing.T) {
	rt := runScript(t, `
		r = before();
		function before() { return 'hoisted'; }
		function counter() {
			let n = 0;
			return () => { n++; return n; };
		}
		const c = counter();
		c(); c();
		r2 = c();
	`)
	if got := globalString(t, rt, "r"); got != "hoisted" {
		t.Errorf("call-before-define: got %q", got)
	}
	if got := globalString(t, rt, "r2"); got != "3" {
		t.Errorf("closure counter: got %q, want 3", got)
	}
}

func TestDestructuringDefaults(t *testing.T) {
	rt := runScript(t, `
		const [a, b = 10, ...rest] = [1, undefined, 3, 4];
		const {x, y: z = 'zz', ...others} = {x: 'xx', w: 1, v: 2};
		r = a + ',' + b + ',' + rest.join('|') + ',' + x + ',' + z + ',' + Object.keys(others).join('|');
	`)
	want := "1,10,3|4,xx,zz,w|v"
	if got := globalString(t, rt, "r"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTryCatchFinallyFlow(t *testing.T) {
	rt := runScript(t, `
		order = [];
		function f() {
			try {
				order.push('try');
				throw new Error('boom');
			} catch (e) {
				order.push('catch:' + e.message);
				return 'from-catch';
			} finally {
				order.push('finally');
			}
		}
		r = f();
		r2 = order.join(',');
	`)
	if got := globalString(t, rt, "r"); got != "from-catch" {
		t.Errorf("return value: got %q", got)
	}
	if got := globalString(t, rt, "r2"); got != "try,catch:boom,finally" {
		t.Errorf("order: got %q", got)
	}
}

func TestGeneratorProtocol(t *testing.T) {
	rt := runScript(t, `
		function* seq() { yield 1; yield 2; return 99; }
		const g = seq();
		const a = g.next();
		const b = g.next();
		const c = g.next();
		const d = g.next();
		r = [a.value, a.done, b.value, b.done, c.value, c.done, d.done].join(',');
		r2 = [...seq()].join('|');
	`)
	if got := globalString(t, rt, "r"); got != "1,false,2,false,99,true,true" {
		t.Errorf("generator next sequence: got %q", got)
	}
	if got := globalString(t, rt, "r2"); got != "1|2" {
		t.Errorf("generator spread: got %q", got)
	}
}

func TestMapSetSameValueZero(t *testing.T) {
	rt := runScript(t, `
		const m = new Map();
		m.set(NaN, 'nan'); m.set(0, 'zero'); m.set(-0, 'minus');
		const s = new Set([1, 1, NaN, NaN, 'x']);
		r = m.get(NaN) + ',' + m.get(0) + ',' + m.size + ',' + s.size;
	`)
	if got := globalString(t, rt, "r"); got != "nan,minus,2,3" {
		t.Errorf("SameValueZero semantics: got %q", got)
	}
}

func TestPromiseMicrotaskOrdering(t *testing.T) {
	rt := runScript(t, `
		order = [];
		Promise.resolve('a').then(v => order.push('then:' + v));
		order.push('sync');
	`)
	// CompileAndRegisterScript drains microtasks before returning
	v, _ := rt.Global.Get("order")
	var got []string
	for _, it := range v.Array().Items {
		got = append(got, jsvalue.AsString(it))
	}
	want := []string{"sync", "then:a"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("microtask ordering mismatch (-want +got):\n%s", diff)
	}
}

func TestPromiseChainingAndCatch(t *testing.T) {
	rt := runScript(t, `
		Promise.reject('bad').catch(e => 'caught:' + e).then(v => { r = v; });
	`)
	if got := globalString(t, rt, "r"); got != "caught:bad" {
		t.Errorf("catch chain: got %q", got)
	}
}

func TestAwaitUnwrapsTimersCooperatively(t *testing.T) {
	rt := runScript(t, `
		async function f() {
			const v = await new Promise(res => setTimeout(() => res('late'), 5));
			r = 'got:' + v;
		}
		f();
	`)
	if got := globalString(t, rt, "r"); got != "got:late" {
		t.Errorf("await over timer: got %q", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	rt := runScript(t, `
		const obj = {b: 2, a: [1, 'x', null, true], n: {deep: 'v'}};
		const s = JSON.stringify(obj);
		const back = JSON.parse(s);
		r = s;
		r2 = back.a[1] + ':' + back.n.deep;
	`)
	if got := globalString(t, rt, "r"); got != `{"b":2,"a":[1,"x",null,true],"n":{"deep":"v"}}` {
		t.Errorf("stringify: got %q", got)
	}
	if got := globalString(t, rt, "r2"); got != "x:v" {
		t.Errorf("parse: got %q", got)
	}
}

func TestRegexMethods(t *testing.T) {
	rt := runScript(t, `
		r = /(\d+)-(\d+)/.exec('ab 12-34')[2];
		r2 = 'a1b2c3'.replace(/\d/g, '#');
		r3 = 'x,y;z'.split(/[,;]/).join('|');
		r4 = /ab/i.test('AB');
	`)
	if got := globalString(t, rt, "r"); got != "34" {
		t.Errorf("exec groups: got %q", got)
	}
	if got := globalString(t, rt, "r2"); got != "a#b#c#" {
		t.Errorf("replace: got %q", got)
	}
	if got := globalString(t, rt, "r3"); got != "x|y|z" {
		t.Errorf("regex split: got %q", got)
	}
	if got := globalString(t, rt, "r4"); got != "true" {
		t.Errorf("case-insensitive test: got %q", got)
	}
}

func TestRegexFlagVRejected(t *testing.T) {
	rt := New(dom.NewArena(), 1)
	err := rt.CompileAndRegisterScript(`const re = new RegExp('a', 'v');`)
	if err == nil {
		t.Fatalf("expected flag 'v' to be rejected")
	}
}

func TestUnknownVariableIsRuntimeError(t *testing.T) {
	rt := New(dom.NewArena(), 1)
	err := rt.CompileAndRegisterScript(`x = definitelyNotDefined + 1;`)
	if _, ok := err.(*RuntimeError); !ok {
		t.Fatalf("expected RuntimeError, got %T: %v", err, err)
	}
}

func TestThrownValuePropagates(t *testing.T) {
	rt := New(dom.NewArena(), 1)
	err := rt.CompileAndRegisterScript(`throw {code: 42};`)
	te, ok := err.(*ThrownError)
	if !ok {
		t.Fatalf("expected ThrownError, got %T: %v", err, err)
	}
	code, _ := te.Value.Object().Get("code")
	if jsvalue.AsString(code) != "42" {
		t.Fatalf("thrown value lost: %v", te.Value)
	}
}

func TestArrayCallbackSnapshotsSource(t *testing.T) {
	rt := runScript(t, `
		const a = [1, 2, 3];
		const seen = [];
		a.forEach(v => { seen.push(v); a.push(v * 10); });
		r = seen.join(',') + '|' + a.length;
	`)
	if got := globalString(t, rt, "r"); got != "1,2,3|6" {
		t.Errorf("reentrant forEach: got %q", got)
	}
}

func TestDomScriptIntegration(t *testing.T) {
	arena, scripts, err := htmlio.ParseDocument(
		`<div id="root"><p class="a">one</p><p class="a">two</p></div>` +
			`<script>document.getElementById('root').setAttribute('data-n', document.querySelectorAll('.a').length);</script>`)
	if err != nil {
		t.Fatal(err)
	}
	rt := New(arena, 1)
	for _, s := range scripts {
		if err := rt.CompileAndRegisterScript(s.Body); err != nil {
			t.Fatal(err)
		}
	}
	root := arena.ByID("root")
	if v, _ := arena.Get(root).GetAttr("data-n"); v != "2" {
		t.Errorf("querySelectorAll length = %q, want 2", v)
	}
}

func TestLabeledBreakFromNestedLoop(t *testing.T) {
	rt := runScript(t, `
		out = [];
		outer: for (let i = 0; i < 3; i++) {
			for (let j = 0; j < 3; j++) {
				if (i === 1 && j === 1) break outer;
				out.push(i + ':' + j);
			}
		}
		r = out.join(',');
	`)
	if got := globalString(t, rt, "r"); got != "0:0,0:1,0:2,1:0" {
		t.Errorf("labeled break: got %q", got)
	}
}

func TestSwitchFallthroughAndDefault(t *testing.T) {
	rt := runScript(t, `
		function classify(x) {
			switch (x) {
			case 1:
			case 2:
				return 'small';
			case 3:
				return 'three';
			default:
				return 'big';
			}
		}
		r = [classify(1), classify(2), classify(3), classify(9)].join(',');
	`)
	if got := globalString(t, rt, "r"); got != "small,small,three,big" {
		t.Errorf("switch: got %q", got)
	}
}

func TestOptionalChainingShortCircuit(t *testing.T) {
	rt := runScript(t, `
		const obj = {a: {b: 'deep'}};
		r = obj?.a?.b;
		r2 = obj?.missing?.anything;
		r3 = obj.missing?.call();
	`)
	if got := globalString(t, rt, "r"); got != "deep" {
		t.Errorf("chain hit: got %q", got)
	}
	if v, _ := rt.Global.Get("r2"); !v.IsUndefined() {
		t.Errorf("chain miss should be undefined, got %v", v)
	}
	if v, _ := rt.Global.Get("r3"); !v.IsUndefined() {
		t.Errorf("optional call on nullish should be undefined, got %v", v)
	}
}

func TestStructuredCloneIsDeep(t *testing.T) {
	rt := runScript(t, `
		const src = {list: [1, 2], nested: {k: 'v'}};
		const copy = structuredClone(src);
		copy.list.push(3);
		copy.nested.k = 'changed';
		r = src.list.length + ',' + src.nested.k;
	`)
	if got := globalString(t, rt, "r"); got != "2,v" {
		t.Errorf("structuredClone aliasing: got %q", got)
	}
}
