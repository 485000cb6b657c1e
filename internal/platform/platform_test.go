package platform

import "testing"

func TestStorageSetGetRemoveClear(t *testing.T) {
	s := NewStorage(nil)
	s.SetItem("a", "1")
	s.SetItem("b", "2")
	if v, ok := s.GetItem("a"); !ok || v != "1" {
		t.Fatalf("expected a=1, got %q ok=%v", v, ok)
	}
	s.SetItem("a", "updated")
	if v, _ := s.GetItem("a"); v != "updated" {
		t.Fatalf("expected update in place, got %q", v)
	}
	if k, ok := s.Key(0); !ok || k != "a" {
		t.Fatalf("expected key(0)=a (insertion order preserved), got %q", k)
	}
	if s.Length() != 2 {
		t.Fatalf("expected length 2, got %d", s.Length())
	}
	s.RemoveItem("a")
	if _, ok := s.GetItem("a"); ok {
		t.Fatalf("expected a removed")
	}
	if s.Length() != 1 {
		t.Fatalf("expected length 1 after remove, got %d", s.Length())
	}
	s.Clear()
	if s.Length() != 0 {
		t.Fatalf("expected empty after clear, got %d", s.Length())
	}
}

func TestStorageSeeded(t *testing.T) {
	s := NewStorage([]Pair{{Name: "x", Value: "1"}, {Name: "y", Value: "2"}})
	if v, _ := s.GetItem("y"); v != "2" {
		t.Fatalf("expected seeded y=2, got %q", v)
	}
}

func TestFetchMocksRecordsCallsAndDefaultsTo200(t *testing.T) {
	f := NewFetchMocks()
	resp := f.Fetch("https://example.test/a", "GET", nil, "")
	if resp.Status != 200 {
		t.Fatalf("expected default status 200, got %d", resp.Status)
	}
	f.SetMock("https://example.test/b", FetchMockResponse{Status: 404, Body: "nope"})
	resp2 := f.Fetch("https://example.test/b", "GET", nil, "")
	if resp2.Status != 404 || resp2.Body != "nope" {
		t.Fatalf("expected mocked 404, got %+v", resp2)
	}
	calls := f.TakeCalls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", len(calls))
	}
	if len(f.TakeCalls()) != 0 {
		t.Errorf("expected TakeCalls to drain the log")
	}
}

func TestMatchMediaDefaultAndOverride(t *testing.T) {
	m := NewMatchMediaMocks()
	m.SetDefaultMatches(true)
	if !m.Matches("(min-width: 400px)") {
		t.Fatalf("expected default match true")
	}
	m.SetMock("(min-width: 400px)", false)
	if m.Matches("(min-width: 400px)") {
		t.Fatalf("expected explicit mock to override default")
	}
	if len(m.TakeCalls()) != 2 {
		t.Fatalf("expected 2 recorded queries")
	}
}

func TestConfirmQueueFallsBackToDefault(t *testing.T) {
	q := &BoolResponseQueue{}
	q.SetDefault(true)
	if !q.Next() {
		t.Fatalf("expected default true with empty queue")
	}
	q.Enqueue(false)
	q.Enqueue(true)
	if q.Next() != false {
		t.Fatalf("expected queued false first")
	}
	if q.Next() != true {
		t.Fatalf("expected queued true second")
	}
	if !q.Next() {
		t.Fatalf("expected default again once queue drains")
	}
}

func TestPromptQueueNullWithoutDefault(t *testing.T) {
	q := &StringResponseQueue{}
	if _, ok := q.Next(); ok {
		t.Fatalf("expected null/cancel with no default and empty queue")
	}
	q.SetDefault("fallback")
	if v, ok := q.Next(); !ok || v != "fallback" {
		t.Fatalf("expected fallback default, got %q ok=%v", v, ok)
	}
	q.Enqueue("queued")
	if v, ok := q.Next(); !ok || v != "queued" {
		t.Fatalf("expected queued value to take priority, got %q ok=%v", v, ok)
	}
}

func TestAlertLogAccumulatesAndDrains(t *testing.T) {
	a := &AlertLog{}
	a.Push("one")
	a.Push("two")
	got := a.Take()
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("unexpected alert log %v", got)
	}
	if len(a.Take()) != 0 {
		t.Errorf("expected Take to drain the log")
	}
}

func TestLocationMocksPagesNavigationsReloadsDownloads(t *testing.T) {
	l := NewLocationMocks()
	l.SetPage("https://example.test/x", "<p>x</p>")
	if html, ok := l.Page("https://example.test/x"); !ok || html != "<p>x</p>" {
		t.Fatalf("expected mocked page, got %q ok=%v", html, ok)
	}
	l.RecordNavigation("https://example.test/x")
	l.RecordNavigation("https://example.test/y")
	navs := l.TakeNavigations()
	if len(navs) != 2 {
		t.Fatalf("expected 2 navigations, got %d", len(navs))
	}
	l.RecordReload()
	l.RecordReload()
	if l.ReloadCount() != 2 {
		t.Fatalf("expected reload count 2, got %d", l.ReloadCount())
	}
	l.RecordDownload(Download{URL: "https://example.test/f.csv", Filename: "f.csv"})
	downloads := l.TakeDownloads()
	if len(downloads) != 1 || downloads[0].Filename != "f.csv" {
		t.Fatalf("unexpected downloads %+v", downloads)
	}
}

func TestClipboardRoundTrip(t *testing.T) {
	c := &Clipboard{}
	c.SetText("hello")
	if c.Text() != "hello" {
		t.Fatalf("expected clipboard round trip, got %q", c.Text())
	}
}
