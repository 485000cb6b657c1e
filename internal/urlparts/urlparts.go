// Package urlparts implements the small URL structure behind location,
// history, and anchor href handling (SPEC_FULL.md §4.J):
// a parse/href round-trip over the component fields scripts can read and
// assign individually.
package urlparts

import "strings"

// Parts is the decomposed form of an href.
type Parts struct {
	Scheme       string
	HasAuthority bool
	Username     string
	Password     string
	Hostname     string
	Port         string
	Pathname     string
	OpaquePath   string // non-authority schemes (mailto:, data:) keep their body here
	Search       string // includes leading "?" when non-empty
	Hash         string // includes leading "#" when non-empty
}

// Parse decomposes href. It is tolerant: anything it cannot place lands in
// OpaquePath or Pathname so Href() still round-trips.
func Parse(href string) Parts {
	var p Parts
	rest := href

	if i := strings.IndexByte(rest, '#'); i >= 0 {
		p.Hash = rest[i:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		p.Search = rest[i:]
		rest = rest[:i]
	}

	if i := schemeEnd(rest); i > 0 {
		p.Scheme = strings.ToLower(rest[:i])
		rest = rest[i+1:]
	}

	if strings.HasPrefix(rest, "//") {
		p.HasAuthority = true
		rest = rest[2:]
		authority := rest
		p.Pathname = ""
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			authority = rest[:i]
			p.Pathname = rest[i:]
		}
		if i := strings.LastIndexByte(authority, '@'); i >= 0 {
			userinfo := authority[:i]
			authority = authority[i+1:]
			if j := strings.IndexByte(userinfo, ':'); j >= 0 {
				p.Username = userinfo[:j]
				p.Password = userinfo[j+1:]
			} else {
				p.Username = userinfo
			}
		}
		if i := strings.LastIndexByte(authority, ':'); i >= 0 && !strings.Contains(authority[i:], "]") {
			p.Hostname = authority[:i]
			p.Port = authority[i+1:]
		} else {
			p.Hostname = authority
		}
		if p.Pathname == "" {
			p.Pathname = "/"
		}
		return p
	}

	if p.Scheme != "" {
		p.OpaquePath = rest
		return p
	}
	p.Pathname = rest
	return p
}

func schemeEnd(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ':' {
			return i
		}
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.') {
			return -1
		}
	}
	return -1
}

// Href reserializes the parts; Parse(p.Href()) is stable for any Parts
// produced by Parse.
func (p Parts) Href() string {
	var sb strings.Builder
	if p.Scheme != "" {
		sb.WriteString(p.Scheme)
		sb.WriteByte(':')
	}
	if p.HasAuthority {
		sb.WriteString("//")
		if p.Username != "" || p.Password != "" {
			sb.WriteString(p.Username)
			if p.Password != "" {
				sb.WriteByte(':')
				sb.WriteString(p.Password)
			}
			sb.WriteByte('@')
		}
		sb.WriteString(p.Hostname)
		if p.Port != "" {
			sb.WriteByte(':')
			sb.WriteString(p.Port)
		}
		sb.WriteString(p.Pathname)
	} else if p.OpaquePath != "" {
		sb.WriteString(p.OpaquePath)
	} else {
		sb.WriteString(p.Pathname)
	}
	sb.WriteString(p.Search)
	sb.WriteString(p.Hash)
	return sb.String()
}

// Host returns hostname:port, or just hostname when the port is empty.
func (p Parts) Host() string {
	if p.Port == "" {
		return p.Hostname
	}
	return p.Hostname + ":" + p.Port
}

// Origin returns scheme://host for authority URLs, "null" otherwise,
// mirroring Location.origin.
func (p Parts) Origin() string {
	if !p.HasAuthority {
		return "null"
	}
	return p.Scheme + "://" + p.Host()
}

// Resolve interprets target relative to base: absolute URLs pass through,
// "//host/..." adopts base's scheme, "/path" keeps the authority, "#frag"
// replaces only the fragment, "?query" replaces the query and drops the
// fragment, and anything else is resolved against base's directory.
func Resolve(base Parts, target string) Parts {
	if target == "" {
		return base
	}
	if strings.HasPrefix(target, "#") {
		out := base
		out.Hash = target
		return out
	}
	if strings.HasPrefix(target, "?") {
		out := base
		out.Search = target
		out.Hash = ""
		return out
	}
	if i := schemeEnd(target); i > 0 {
		return Parse(target)
	}
	if strings.HasPrefix(target, "//") {
		out := Parse(base.Scheme + ":" + target)
		return out
	}
	out := base
	out.Hash = ""
	out.Search = ""
	rest := target
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		out.Hash = rest[i:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		out.Search = rest[i:]
		rest = rest[:i]
	}
	if strings.HasPrefix(rest, "/") {
		out.Pathname = rest
		return out
	}
	dir := base.Pathname
	if i := strings.LastIndexByte(dir, '/'); i >= 0 {
		dir = dir[:i+1]
	} else {
		dir = "/"
	}
	out.Pathname = normalizeDots(dir + rest)
	return out
}

func normalizeDots(path string) string {
	segs := strings.Split(path, "/")
	var out []string
	for _, s := range segs {
		switch s {
		case ".":
		case "..":
			if len(out) > 1 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, s)
		}
	}
	joined := strings.Join(out, "/")
	if joined == "" {
		return "/"
	}
	return joined
}
