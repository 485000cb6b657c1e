package domharness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckboxClickTogglesAndFiresInputChange(t *testing.T) {
	h, err := FromHTML(`<input id="c" type="checkbox"><p id="out"></p>` +
		`<script>document.getElementById('c').addEventListener('change',()=>{` +
		`document.getElementById('out').textContent=document.getElementById('c').checked?'Y':'N';});</script>`)
	require.NoError(t, err)
	require.NoError(t, h.Click("#c"))
	require.NoError(t, h.AssertChecked("#c", true))
	require.NoError(t, h.AssertText("#out", "Y"))

	require.NoError(t, h.Click("#c"))
	require.NoError(t, h.AssertChecked("#c", false))
	require.NoError(t, h.AssertText("#out", "N"))
}

func TestLabelForwardsClickToControl(t *testing.T) {
	h, err := FromHTML(`<input id="c" type="checkbox"><label id="L" for="c">x</label>`)
	require.NoError(t, err)
	require.NoError(t, h.Click("#L"))
	require.NoError(t, h.AssertChecked("#c", true))
}

func TestTimerAndMicrotaskOrdering(t *testing.T) {
	h, err := FromHTML(`<p id="o"></p><script>` +
		`setTimeout(()=>{document.getElementById('o').textContent+='T';},0);` +
		`Promise.resolve().then(()=>{document.getElementById('o').textContent+='M';});` +
		`document.getElementById('o').textContent='S';</script>`)
	require.NoError(t, err)
	require.NoError(t, h.AssertText("#o", "SM"))
	require.NoError(t, h.Flush())
	require.NoError(t, h.AssertText("#o", "SMT"))
}

func TestInnerHTMLSanitizationAndIDReindex(t *testing.T) {
	h, err := FromHTML(`<div id="d"></div><script>` +
		`document.getElementById('d').innerHTML='<p id="p">hi</p><script>x=1<\/script>';</script>`)
	require.NoError(t, err)
	require.NoError(t, h.AssertExists("#p"))
	require.NoError(t, h.AssertText("#p", "hi"))
	_, xDefined := h.Runtime().Global.Get("x")
	require.False(t, xDefined, "nested script must be stripped, not executed")
}

func TestDialogRequestCloseWithPreventDefault(t *testing.T) {
	h, err := FromHTML(`<dialog id="d"></dialog><p id="out"></p><script>` +
		`const d=document.getElementById('d');d.show();` +
		`d.addEventListener('cancel',e=>e.preventDefault());` +
		`d.requestClose('x');` +
		`document.getElementById('out').textContent=(d.open?'open':'closed')+':'+d.returnValue;</script>`)
	require.NoError(t, err)
	require.NoError(t, h.AssertExists("dialog[open]"))
	require.NoError(t, h.AssertText("#out", "open:x"))
}

func TestQuerySelectorAllDocumentOrder(t *testing.T) {
	h, err := FromHTML(`<div><span class="x"></span><span class="x"></span></div>` +
		`<div><span class="x"></span></div><p id="n"></p>` +
		`<script>document.getElementById('n').textContent=document.querySelectorAll('.x').length;</script>`)
	require.NoError(t, err)
	require.NoError(t, h.AssertText("#n", "3"))
}

func TestTypeTextFiresInputAndChangeOnBlur(t *testing.T) {
	h, err := FromHTML(`<input id="i"><p id="log"></p><script>` +
		`const i=document.getElementById('i'),log=document.getElementById('log');` +
		`i.addEventListener('input',()=>{log.textContent+='i';});` +
		`i.addEventListener('change',()=>{log.textContent+='c';});</script>`)
	require.NoError(t, err)
	require.NoError(t, h.TypeText("#i", "hello"))
	require.NoError(t, h.AssertValue("#i", "hello"))
	require.NoError(t, h.AssertText("#log", "i"))
	require.NoError(t, h.Blur("#i"))
	require.NoError(t, h.AssertText("#log", "ic"))
}

func TestRadioGroupSelection(t *testing.T) {
	h, err := FromHTML(`<form><input id="a" type="radio" name="g">` +
		`<input id="b" type="radio" name="g" checked></form>`)
	require.NoError(t, err)
	require.NoError(t, h.Click("#a"))
	require.NoError(t, h.AssertChecked("#a", true))
	require.NoError(t, h.AssertChecked("#b", false))
}

func TestSubmitPreventDefaultKeepsNavigationEmpty(t *testing.T) {
	h, err := FromHTML(`<form id="f" action="/go"><input name="q" value="1">` +
		`<button id="s" type="submit">go</button></form><script>` +
		`document.getElementById('f').addEventListener('submit',e=>e.preventDefault());</script>`)
	require.NoError(t, err)
	require.NoError(t, h.Click("#s"))
	require.Empty(t, h.TakeLocationNavigations())
}

func TestSubmitRecordsNavigationWithQuery(t *testing.T) {
	h, err := FromHTMLWithURL("http://test.local/page", `<form id="f" action="/go">`+
		`<input name="q" value="hi there"></form>`)
	require.NoError(t, err)
	require.NoError(t, h.Submit("#f"))
	navs := h.TakeLocationNavigations()
	require.Equal(t, []string{"http://test.local/go?q=hi+there"}, navs)
}

func TestDialogFormMethodDialogClosesWithSubmitterValue(t *testing.T) {
	h, err := FromHTML(`<dialog id="d" open><form method="dialog">` +
		`<button id="ok" value="confirmed">OK</button></form></dialog>` +
		`<p id="out"></p><script>` +
		`document.getElementById('d').addEventListener('close',()=>{` +
		`document.getElementById('out').textContent=document.getElementById('d').returnValue;});</script>`)
	require.NoError(t, err)
	require.NoError(t, h.Click("#ok"))
	require.Error(t, h.AssertExists("dialog[open]"))
	require.NoError(t, h.AssertText("#out", "confirmed"))
}

func TestDetailsNameGroupClosesSiblings(t *testing.T) {
	h, err := FromHTML(`<div>` +
		`<details id="d1" name="grp" open><summary id="s1">one</summary></details>` +
		`<details id="d2" name="grp"><summary id="s2">two</summary></details></div>`)
	require.NoError(t, err)
	require.NoError(t, h.Click("#s2"))
	require.NoError(t, h.AssertExists("#d2[open]"))
	require.Error(t, h.AssertExists("#d1[open]"))
}

func TestRequiredFieldBlocksSubmit(t *testing.T) {
	h, err := FromHTML(`<form id="f" action="/go"><input id="i" name="q" required></form>`)
	require.NoError(t, err)
	require.NoError(t, h.Submit("#f"))
	require.Empty(t, h.TakeLocationNavigations())

	require.NoError(t, h.TypeText("#i", "filled"))
	require.NoError(t, h.Submit("#f"))
	require.Len(t, h.TakeLocationNavigations(), 1)
}

func TestPressEnterSubmitsImplicitly(t *testing.T) {
	h, err := FromHTML(`<form id="f" action="/find"><input id="q" name="q"></form>`)
	require.NoError(t, err)
	require.NoError(t, h.TypeText("#q", "term"))
	require.NoError(t, h.PressEnter("#q"))
	navs := h.TakeLocationNavigations()
	require.Len(t, navs, 1)
	require.Contains(t, navs[0], "q=term")
}

func TestLocalStorageSeeding(t *testing.T) {
	h, err := FromHTMLWithLocalStorage(`<p id="o"></p><script>`+
		`document.getElementById('o').textContent=localStorage.getItem('user')+':'+localStorage.length;`+
		`localStorage.setItem('added','yes');</script>`,
		[]StoragePair{{Name: "user", Value: "alice"}})
	require.NoError(t, err)
	require.NoError(t, h.AssertText("#o", "alice:1"))
	pairs := h.LocalStoragePairs()
	require.Len(t, pairs, 2)
	require.Equal(t, "added", pairs[1].Name)
}

func TestFetchMockAndCallLog(t *testing.T) {
	h, err := FromHTML(`<p id="o"></p><button id="b"></button><script>` +
		`document.getElementById('b').addEventListener('click',async()=>{` +
		`const r=await fetch('/api');const j=await r.json();` +
		`document.getElementById('o').textContent=j.msg;});</script>`)
	require.NoError(t, err)
	h.SetFetchMock("http://localhost/api", `{"msg":"hi"}`)
	require.NoError(t, h.Click("#b"))
	require.NoError(t, h.Flush())
	require.NoError(t, h.AssertText("#o", "hi"))
	calls := h.TakeFetchCalls()
	require.Len(t, calls, 1)
	require.Equal(t, "http://localhost/api", calls[0].URL)
	require.Equal(t, "GET", calls[0].Method)
}

func TestConfirmPromptAlertQueues(t *testing.T) {
	h, err := FromHTML(`<button id="b"></button><p id="o"></p><script>` +
		`document.getElementById('b').addEventListener('click',()=>{` +
		`if(confirm('sure?')){const name=prompt('name?');alert('hi '+name);` +
		`document.getElementById('o').textContent=name;}});</script>`)
	require.NoError(t, err)
	h.EnqueueConfirmResponse(true)
	h.EnqueuePromptResponse("bob")
	require.NoError(t, h.Click("#b"))
	require.NoError(t, h.AssertText("#o", "bob"))
	require.Equal(t, []string{"hi bob"}, h.TakeAlertMessages())
}

func TestEventCaptureTargetBubbleOrder(t *testing.T) {
	h, err := FromHTML(`<div id="outer"><div id="inner"><button id="btn"></button></div></div>` +
		`<p id="log"></p><script>` +
		`const log=document.getElementById('log');` +
		`document.getElementById('outer').addEventListener('click',()=>{log.textContent+='oc';},true);` +
		`document.getElementById('outer').addEventListener('click',()=>{log.textContent+='ob';});` +
		`document.getElementById('inner').addEventListener('click',()=>{log.textContent+='ic';},true);` +
		`document.getElementById('inner').addEventListener('click',()=>{log.textContent+='ib';});` +
		`document.getElementById('btn').addEventListener('click',()=>{log.textContent+='t';});</script>`)
	require.NoError(t, err)
	require.NoError(t, h.Click("#btn"))
	require.NoError(t, h.AssertText("#log", "ocictibob"))
}

func TestStopPropagationHaltsWalk(t *testing.T) {
	h, err := FromHTML(`<div id="outer"><button id="btn"></button></div><p id="log"></p><script>` +
		`const log=document.getElementById('log');` +
		`document.getElementById('btn').addEventListener('click',e=>{log.textContent+='t';e.stopPropagation();});` +
		`document.getElementById('outer').addEventListener('click',()=>{log.textContent+='o';});</script>`)
	require.NoError(t, err)
	require.NoError(t, h.Click("#btn"))
	require.NoError(t, h.AssertText("#log", "t"))
}

func TestIntervalFiresUntilCleared(t *testing.T) {
	h, err := FromHTML(`<p id="o">0</p><script>` +
		`let n=0;const id=setInterval(()=>{n++;` +
		`document.getElementById('o').textContent=n;` +
		`if(n>=3)clearInterval(id);},10);</script>`)
	require.NoError(t, err)
	require.NoError(t, h.Flush())
	require.NoError(t, h.AssertText("#o", "3"))
}

func TestSelectorNotFoundAndTypeMismatchErrors(t *testing.T) {
	h, err := FromHTML(`<p id="p">x</p>`)
	require.NoError(t, err)

	err = h.Click("#missing")
	var nf *SelectorNotFoundError
	require.True(t, errors.As(err, &nf))
	require.Equal(t, "#missing", nf.Selector)

	err = h.TypeText("#p", "x")
	var tm *TypeMismatchError
	require.True(t, errors.As(err, &tm))
}

func TestAssertionFailureCarriesSnippet(t *testing.T) {
	h, err := FromHTML(`<p id="p">actual text</p>`)
	require.NoError(t, err)
	err = h.AssertText("#p", "other")
	var af *AssertionFailedError
	require.True(t, errors.As(err, &af))
	require.Equal(t, "actual text", af.Actual)
	require.NotEmpty(t, af.DOMSnippet)
	require.LessOrEqual(t, len(af.DOMSnippet), 200)
}

func TestScriptParseErrorAbortsConstruction(t *testing.T) {
	_, err := FromHTML(`<script>let = broken;</script>`)
	var pe *ScriptParseError
	require.True(t, errors.As(err, &pe))
}

func TestUncaughtThrowSurfacesAsScriptThrown(t *testing.T) {
	_, err := FromHTML(`<script>throw new Error('boom');</script>`)
	var te *ScriptThrownError
	require.True(t, errors.As(err, &te))
}

func TestTraceRingCapturesDispatch(t *testing.T) {
	h, err := FromHTML(`<button id="b"></button><script>` +
		`document.getElementById('b').addEventListener('click',()=>{});</script>`)
	require.NoError(t, err)
	h.EnableTrace()
	require.NoError(t, h.Click("#b"))
	logs := h.TakeTraceLogs()
	require.NotEmpty(t, logs)
	require.Empty(t, h.TakeTraceLogs(), "take must clear the ring")
}

func TestDeterministicRandomSeed(t *testing.T) {
	page := `<p id="o"></p><script>document.getElementById('o').textContent=` +
		`[Math.random(),Math.random()].join(',');</script>`
	h1, err := FromHTML(page)
	require.NoError(t, err)
	h2, err := FromHTML(page)
	require.NoError(t, err)
	require.Equal(t, h1.rt.Arena.TextContent(h1.rt.Arena.ByID("o")),
		h2.rt.Arena.TextContent(h2.rt.Arena.ByID("o")))
}

func TestLocationNavigationSwapsMockPage(t *testing.T) {
	w, err := OpenWindow("http://test.local/a", `<button id="go"></button><script>`+
		`document.getElementById('go').addEventListener('click',()=>{location.href='/b';});</script>`)
	require.NoError(t, err)
	w.Current().SetLocationMockPage("http://test.local/b", `<p id="here">page b</p>`)
	require.NoError(t, w.Current().Click("#go"))
	require.Equal(t, "http://test.local/b", w.CurrentURL())
	require.NoError(t, w.Current().AssertText("#here", "page b"))
	require.Equal(t, 2, w.PageCount())
}

func TestDumpDOMRoundTripStructure(t *testing.T) {
	h, err := FromHTML(`<div id="a" class="k"><p>text &amp; more</p><br></div>`)
	require.NoError(t, err)
	dump := h.DumpDOM()
	h2, err := FromHTML(dump)
	require.NoError(t, err)
	require.Equal(t, dump, h2.DumpDOM())
}
