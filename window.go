package domharness

import (
	"github.com/cryguy/domharness/internal/platform"
)

// MockWindow models multi-page navigation: a vector of pages keyed by URL
// and a current index, each page an independent Harness. `location.href`
// writes that hit a registered mock page swap the active page, carrying
// the prior page's localStorage forward.
type MockWindow struct {
	pages   []*Harness
	urls    []string
	current int
}

// OpenWindow constructs a MockWindow whose first page is html at url.
func OpenWindow(url, html string) (*MockWindow, error) {
	h, err := FromHTMLWithURL(url, html)
	if err != nil {
		return nil, err
	}
	w := &MockWindow{pages: []*Harness{h}, urls: []string{url}}
	w.wireNavigation(h)
	return w, nil
}

// Current returns the active page's harness.
func (w *MockWindow) Current() *Harness { return w.pages[w.current] }

// CurrentURL returns the active page's URL.
func (w *MockWindow) CurrentURL() string { return w.urls[w.current] }

// PageCount reports how many pages the window has accumulated.
func (w *MockWindow) PageCount() int { return len(w.pages) }

// Back re-activates the previous page, if any.
func (w *MockWindow) Back() {
	if w.current > 0 {
		w.current--
	}
}

// Forward re-activates the next page, if any.
func (w *MockWindow) Forward() {
	if w.current+1 < len(w.pages) {
		w.current++
	}
}

// wireNavigation installs the page-swap hook: a navigation whose URL has a
// registered mock page loads that page as a new Harness sharing the mock
// tables test code already configured.
func (w *MockWindow) wireNavigation(h *Harness) {
	h.rt.NavigateHook = func(url string) {
		html, ok := h.rt.Loc.Page(url)
		if !ok {
			return
		}
		var seed []StoragePair
		for _, p := range h.rt.Local.All() {
			seed = append(seed, StoragePair{Name: p.Name, Value: p.Value})
		}
		next, err := FromHTMLWithURLAndLocalStorage(url, html, seed)
		if err != nil {
			return
		}
		// carry the navigation/mocks state forward so takeNavigations and
		// friends observe the whole session
		carryMocks(h, next)
		w.pages = append(w.pages[:w.current+1], next)
		w.urls = append(w.urls[:w.current+1], url)
		w.current = len(w.pages) - 1
		w.wireNavigation(next)
	}
}

func carryMocks(from, to *Harness) {
	to.rt.Loc = from.rt.Loc
	to.rt.Fetch = from.rt.Fetch
	to.rt.Media = from.rt.Media
	to.rt.Clip = from.rt.Clip
	to.rt.Confirm = from.rt.Confirm
	to.rt.Prompt = from.rt.Prompt
	to.rt.Alerts = from.rt.Alerts
}

// SeededPairs converts platform pairs into the public StoragePair form.
func SeededPairs(pairs []platform.Pair) []StoragePair {
	out := make([]StoragePair, len(pairs))
	for i, p := range pairs {
		out[i] = StoragePair{Name: p.Name, Value: p.Value}
	}
	return out
}
