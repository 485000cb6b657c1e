package urlparts

import "testing"

func TestParseHrefRoundTrip(t *testing.T) {
	cases := []string{
		"http://example.com/",
		"http://example.com/a/b?x=1#frag",
		"https://user:pw@example.com:8080/path",
		"mailto:someone@example.com",
		"/relative/path?q=2",
	}
	for _, href := range cases {
		p := Parse(href)
		if got := p.Href(); got != href {
			t.Errorf("Parse(%q).Href() = %q", href, got)
		}
	}
}

func TestParseComponents(t *testing.T) {
	p := Parse("https://user:pw@example.com:8080/path/x?a=1#top")
	if p.Scheme != "https" || p.Username != "user" || p.Password != "pw" {
		t.Errorf("scheme/userinfo wrong: %+v", p)
	}
	if p.Hostname != "example.com" || p.Port != "8080" {
		t.Errorf("host wrong: %+v", p)
	}
	if p.Pathname != "/path/x" || p.Search != "?a=1" || p.Hash != "#top" {
		t.Errorf("path/search/hash wrong: %+v", p)
	}
	if p.Origin() != "https://example.com:8080" {
		t.Errorf("origin = %q", p.Origin())
	}
}

func TestParseAuthorityDefaultsPath(t *testing.T) {
	p := Parse("http://example.com")
	if p.Pathname != "/" {
		t.Errorf("expected pathname /, got %q", p.Pathname)
	}
}

func TestResolve(t *testing.T) {
	base := Parse("http://example.com/dir/page?q=1#h")
	cases := []struct {
		target string
		want   string
	}{
		{"other.html", "http://example.com/dir/other.html"},
		{"/rooted", "http://example.com/rooted"},
		{"#frag", "http://example.com/dir/page?q=1#frag"},
		{"?x=2", "http://example.com/dir/page?x=2"},
		{"https://elsewhere.org/a", "https://elsewhere.org/a"},
		{"//cdn.example.com/lib.js", "http://cdn.example.com/lib.js"},
		{"../up", "http://example.com/up"},
	}
	for _, c := range cases {
		if got := Resolve(base, c.target).Href(); got != c.want {
			t.Errorf("Resolve(%q) = %q, want %q", c.target, got, c.want)
		}
	}
}

func TestOpaquePath(t *testing.T) {
	p := Parse("data:text/plain,hello")
	if p.HasAuthority {
		t.Errorf("data URL should not have an authority")
	}
	if p.OpaquePath != "text/plain,hello" {
		t.Errorf("opaque path = %q", p.OpaquePath)
	}
	if p.Origin() != "null" {
		t.Errorf("opaque origin = %q", p.Origin())
	}
}
