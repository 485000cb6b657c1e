package domharness

import (
	"strings"

	"github.com/cryguy/domharness/internal/dispatch"
	"github.com/cryguy/domharness/internal/dom"
	"github.com/cryguy/domharness/internal/domselect"
	"github.com/cryguy/domharness/internal/evaluator"
	"github.com/cryguy/domharness/internal/htmlio"
	"github.com/cryguy/domharness/internal/jsvalue"
	"github.com/cryguy/domharness/internal/platform"
	"github.com/cryguy/domharness/internal/stackrun"
	"github.com/cryguy/domharness/internal/urlparts"
)

// StoragePair seeds localStorage before the document's scripts run.
type StoragePair struct {
	Name  string
	Value string
}

// HarnessConfig carries the embedder tunables, the analogue of the
// teacher's EngineConfig.
type HarnessConfig struct {
	URL           string
	LocalStorage  []StoragePair
	RandomSeed    uint64
	TimerStep     int // 0 = scheduler default
	TraceLogLimit int
}

// Harness owns one loaded document: the DOM arena, listener store,
// scheduler, evaluator runtime, and the platform mocks.
type Harness struct {
	rt     *evaluator.Runtime
	tracer *dispatch.Tracer
	url    string
}

// FromHTML loads html at the default synthetic URL and runs its scripts.
func FromHTML(html string) (*Harness, error) {
	return New(html, HarnessConfig{})
}

// FromHTMLWithURL loads html as if served from url.
func FromHTMLWithURL(url, html string) (*Harness, error) {
	return New(html, HarnessConfig{URL: url})
}

// FromHTMLWithLocalStorage loads html with pre-seeded localStorage pairs.
func FromHTMLWithLocalStorage(html string, pairs []StoragePair) (*Harness, error) {
	return New(html, HarnessConfig{LocalStorage: pairs})
}

// FromHTMLWithURLAndLocalStorage combines the URL and storage seeds.
func FromHTMLWithURLAndLocalStorage(url, html string, pairs []StoragePair) (*Harness, error) {
	return New(html, HarnessConfig{URL: url, LocalStorage: pairs})
}

// New parses the document, boots a runtime, and executes each extracted
// script in document order. Parse errors abort construction (spec §7).
func New(html string, cfg HarnessConfig) (*Harness, error) {
	arena, scripts, err := htmlio.ParseDocument(html)
	if err != nil {
		return nil, wrapScriptErr(err)
	}
	rt := evaluator.New(arena, cfg.RandomSeed)
	if cfg.URL != "" {
		rt.Location = urlparts.Parse(cfg.URL)
	}
	if cfg.TimerStep > 0 {
		rt.Sched.StepLimit = cfg.TimerStep
	}
	var seed []platform.Pair
	for _, p := range cfg.LocalStorage {
		seed = append(seed, platform.Pair{Name: p.Name, Value: p.Value})
	}
	rt.Local = platform.NewStorage(seed)

	h := &Harness{rt: rt, url: cfg.URL, tracer: dispatch.NewTracer(cfg.TraceLogLimit)}
	rt.SetTracer(h.tracer)

	for _, s := range scripts {
		body := s.Body
		err := stackrun.DoVoid(func() error {
			return rt.CompileAndRegisterScript(body)
		})
		if err != nil {
			return nil, wrapScriptErr(err)
		}
	}
	if err := rt.TakeDeferredErr(); err != nil {
		return nil, wrapScriptErr(err)
	}
	return h, nil
}

// Runtime exposes the underlying evaluator runtime to the embedding
// MockWindow; test code should drive the action/assertion surface instead.
func (h *Harness) Runtime() *evaluator.Runtime { return h.rt }

// ---- selection ----

func (h *Harness) selectOne(selector string) (dom.NodeID, error) {
	g, err := domselect.Parse(selector)
	if err != nil {
		return 0, &ScriptRuntimeError{Message: "invalid selector " + selector + ": " + err.Error()}
	}
	m := &domselect.Matcher{Arena: h.rt.Arena, Scope: h.rt.Arena.Root}
	id := m.QueryOne(g, h.rt.Arena.Root)
	if id == 0 {
		return 0, &SelectorNotFoundError{Selector: selector}
	}
	return id, nil
}

func (h *Harness) selectControl(selector string, tags ...string) (dom.NodeID, error) {
	id, err := h.selectOne(selector)
	if err != nil {
		return 0, err
	}
	n := h.rt.Arena.Get(id)
	for _, t := range tags {
		if n.TagLower() == t {
			return id, nil
		}
	}
	return 0, &TypeMismatchError{
		Selector: selector,
		Expected: strings.Join(tags, " or "),
		Actual:   "<" + n.TagName + ">",
	}
}

// ---- actions ----

func (h *Harness) action(fn func() error) error {
	err := stackrun.DoVoid(fn)
	if err != nil {
		return wrapScriptErr(err)
	}
	if derr := h.rt.TakeDeferredErr(); derr != nil {
		return wrapScriptErr(derr)
	}
	return nil
}

// TypeText replaces an input/textarea's value and fires input.
func (h *Harness) TypeText(selector, text string) error {
	id, err := h.selectControl(selector, "input", "textarea")
	if err != nil {
		return err
	}
	return h.action(func() error { return h.rt.TypeText(id, text) })
}

// SetChecked sets a checkbox/radio state, firing input+change on change.
func (h *Harness) SetChecked(selector string, checked bool) error {
	id, err := h.selectControl(selector, "input")
	if err != nil {
		return err
	}
	return h.action(func() error { return h.rt.SetChecked(id, checked) })
}

// Click synthesizes a trusted click with default actions.
func (h *Harness) Click(selector string) error {
	id, err := h.selectOne(selector)
	if err != nil {
		return err
	}
	return h.action(func() error { return h.rt.ClickNode(id, false) })
}

// Focus moves focus to the element, firing blur/focus pairs.
func (h *Harness) Focus(selector string) error {
	id, err := h.selectOne(selector)
	if err != nil {
		return err
	}
	return h.action(func() error { return h.rt.FocusNode(id) })
}

// Blur removes focus from the element if it is active.
func (h *Harness) Blur(selector string) error {
	id, err := h.selectOne(selector)
	if err != nil {
		return err
	}
	return h.action(func() error { return h.rt.BlurNode(id) })
}

// Submit runs requestSubmit against the selected form (or the form owning
// the selected control).
func (h *Harness) Submit(selector string) error {
	id, err := h.selectOne(selector)
	if err != nil {
		return err
	}
	form := id
	if h.rt.Arena.Get(id).TagLower() != "form" {
		form = h.rt.Arena.FindAncestorByTag(id, "form")
		if form == 0 {
			return &TypeMismatchError{Selector: selector, Expected: "a <form> or form control", Actual: "<" + h.rt.Arena.Get(id).TagName + ">"}
		}
	}
	return h.action(func() error { return h.rt.RequestSubmit(form, 0) })
}

// Dispatch fires a bubbling, cancelable untrusted event of the given
// type at the selected element, with no default action.
func (h *Harness) Dispatch(selector, eventType string) error {
	id, err := h.selectOne(selector)
	if err != nil {
		return err
	}
	return h.action(func() error {
		ev := h.rt.NewEvent(eventType, id, true, true)
		ev.IsTrusted = false
		return h.rt.DispatchEvent(ev)
	})
}

// PressEnter models the Enter keystroke, including implicit form submit.
func (h *Harness) PressEnter(selector string) error {
	id, err := h.selectOne(selector)
	if err != nil {
		return err
	}
	return h.action(func() error { return h.rt.PressEnter(id) })
}

// Flush drains the virtual scheduler: all microtasks and every due timer.
func (h *Harness) Flush() error {
	return h.action(func() error { return h.rt.Flush() })
}

// ---- assertions ----

func (h *Harness) snippetFor(id dom.NodeID) string {
	return truncateSnippet(htmlio.DumpNode(h.rt.Arena, id))
}

// AssertText checks an element's text content exactly.
func (h *Harness) AssertText(selector, expected string) error {
	id, err := h.selectOne(selector)
	if err != nil {
		return err
	}
	actual := h.rt.Arena.TextContent(id)
	if actual != expected {
		return &AssertionFailedError{Selector: selector, Expected: expected, Actual: actual, DOMSnippet: h.snippetFor(id)}
	}
	return nil
}

// AssertValue checks a form control's current value.
func (h *Harness) AssertValue(selector, expected string) error {
	id, err := h.selectControl(selector, "input", "textarea", "select", "output", "button", "option")
	if err != nil {
		return err
	}
	n := h.rt.Arena.Get(id)
	actual := n.Form.Value
	switch n.TagLower() {
	case "select":
		h.rt.Arena.SyncSelectFromOptions(id)
		actual = h.rt.Arena.Get(id).Form.Value
	case "option":
		actual = h.rt.Arena.OptionValue(id)
	default:
		if actual == "" && !n.HasAttr("data-value-dirty") {
			if v, ok := n.GetAttr("value"); ok {
				actual = v
			}
		}
	}
	if actual != expected {
		return &AssertionFailedError{Selector: selector, Expected: expected, Actual: actual, DOMSnippet: h.snippetFor(id)}
	}
	return nil
}

// AssertChecked checks a checkbox/radio state.
func (h *Harness) AssertChecked(selector string, expected bool) error {
	id, err := h.selectControl(selector, "input", "option")
	if err != nil {
		return err
	}
	actual := h.rt.Arena.Get(id).Form.Checked
	if actual != expected {
		return &AssertionFailedError{
			Selector: selector,
			Expected: boolWord(expected), Actual: boolWord(actual),
			DOMSnippet: h.snippetFor(id),
		}
	}
	return nil
}

func boolWord(b bool) string {
	if b {
		return "checked"
	}
	return "unchecked"
}

// AssertExists fails with SelectorNotFound if nothing matches.
func (h *Harness) AssertExists(selector string) error {
	_, err := h.selectOne(selector)
	return err
}

// DumpDOM serializes the whole document.
func (h *Harness) DumpDOM() string {
	return htmlio.DumpNode(h.rt.Arena, h.rt.Arena.Root)
}

// ---- tracing & mocks passthrough ----

func (h *Harness) EnableTrace() {
	h.rt.SetTraceEvents(true)
	h.rt.TraceTimers = true
}

func (h *Harness) SetTraceStderr(on bool)  { h.tracer.SetStderrMirror(on) }
func (h *Harness) SetTraceEvents(on bool)  { h.rt.SetTraceEvents(on) }
func (h *Harness) SetTraceTimers(on bool)  { h.rt.TraceTimers = on }
func (h *Harness) SetTraceLogLimit(n int)  { h.tracer.SetLimit(n) }
func (h *Harness) TakeTraceLogs() []string { return h.tracer.Take() }

func (h *Harness) SetRandomSeed(seed uint64) { h.rt.Sched.SetRandomSeed(seed) }
func (h *Harness) SetTimerStepLimit(n int)   { h.rt.Sched.StepLimit = n }

func (h *Harness) SetFetchMock(url, body string) {
	h.rt.Fetch.SetMock(url, platform.FetchMockResponse{Status: 200, Body: body})
}
func (h *Harness) ClearFetchMocks()                     { h.rt.Fetch.ClearMocks() }
func (h *Harness) TakeFetchCalls() []platform.FetchCall { return h.rt.Fetch.TakeCalls() }

func (h *Harness) SetMatchMediaMock(query string, matches bool) { h.rt.Media.SetMock(query, matches) }
func (h *Harness) ClearMatchMediaMocks()                        { h.rt.Media.ClearMocks() }
func (h *Harness) SetDefaultMatchMediaMatches(v bool)           { h.rt.Media.SetDefaultMatches(v) }
func (h *Harness) TakeMatchMediaCalls() []string                { return h.rt.Media.TakeCalls() }

func (h *Harness) EnqueueConfirmResponse(v bool)    { h.rt.Confirm.Enqueue(v) }
func (h *Harness) SetDefaultConfirmResponse(v bool) { h.rt.Confirm.SetDefault(v) }
func (h *Harness) EnqueuePromptResponse(v string)   { h.rt.Prompt.Enqueue(v) }
func (h *Harness) SetDefaultPromptResponse(v string) {
	h.rt.Prompt.SetDefault(v)
}
func (h *Harness) TakeAlertMessages() []string { return h.rt.Alerts.Take() }

func (h *Harness) SetClipboardText(v string) { h.rt.Clip.SetText(v) }
func (h *Harness) ClipboardText() string     { return h.rt.Clip.Text() }

func (h *Harness) SetLocationMockPage(url, html string) { h.rt.Loc.SetPage(url, html) }
func (h *Harness) ClearLocationMockPages()              { h.rt.Loc.ClearPages() }
func (h *Harness) TakeLocationNavigations() []string    { return h.rt.Loc.TakeNavigations() }
func (h *Harness) LocationReloadCount() int             { return h.rt.Loc.ReloadCount() }
func (h *Harness) TakeDownloads() []platform.Download   { return h.rt.Loc.TakeDownloads() }
func (h *Harness) ConsoleLogs() []evaluator.LogEntry    { return h.rt.Console }
func (h *Harness) UnhandledRejections() []jsvalue.Value { return h.rt.UnhandledRejections }
func (h *Harness) LocalStoragePairs() []platform.Pair   { return h.rt.Local.All() }
