// Package htmlio implements spec.md §4.E: parse_html (source → DOM +
// extracted scripts) and node serialization. Tag/attribute tokenization is
// delegated to golang.org/x/net/html (grounded on
// cryguy-worker/internal/webapi/htmlrewriter.go's `gohtml.NewTokenizer`
// usage); we do not reuse x/net/html's own tree, since spec.md requires
// our own arena, optional-end-tag handling, and scanner-aware script
// extraction — tree construction and script-body extraction are ours.
package htmlio

import (
	"strings"

	gohtml "golang.org/x/net/html"

	"github.com/cryguy/domharness/internal/dom"
	"github.com/cryguy/domharness/internal/lexer"
)

// ScriptSource is one extracted <script> body, in document order.
type ScriptSource struct {
	Body   string
	NodeID dom.NodeID // the placeholder <script> element left in-tree
	Module bool
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

func isVoid(tag string) bool { return voidElements[tag] }

// executableScriptType reports whether a <script type="..."> attribute
// names a classic or module script that should be parsed/executed, per
// spec.md §4.E ("application/ld+json", "application/json", "importmap",
// "speculationrules", and unrecognized types are inert).
func executableScriptType(typ string) bool {
	typ = strings.ToLower(strings.TrimSpace(typ))
	switch typ {
	case "", "text/javascript", "application/javascript", "module":
		return true
	default:
		return false
	}
}

// blockLevelAutoClose lists tags whose opening implicitly closes an open
// <p> ancestor (the "p and similar" rule of spec.md §4.E), approximating
// the HTML5 "has a p element in button scope" construction rule.
var blockLevelAutoClose = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"details": true, "div": true, "dl": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "main": true, "nav": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "ul": true,
}

// builder constructs a dom.Arena from a token stream, applying the
// optional-end-tag rules of spec.md §4.E for li/dt/dd/rt/rp/option/
// optgroup/p.
type builder struct {
	arena    *dom.Arena
	stack    []dom.NodeID // open element stack, stack[0] == arena.Root
	sanitize bool
	scripts  []ScriptSource

	// suppressDepth counts nested same-tag suppressed elements (e.g. an
	// <iframe> whose descendants are being stripped while sanitizing);
	// while > 0, text/start/end tokens are consumed without mutating the
	// tree except to track nesting of suppressTag.
	suppressDepth int
	suppressTag   string
}

func newBuilder(sanitize bool) *builder {
	a := dom.NewArena()
	return &builder{arena: a, stack: []dom.NodeID{a.Root}, sanitize: sanitize}
}

func (b *builder) top() dom.NodeID { return b.stack[len(b.stack)-1] }

func (b *builder) topTag() string {
	n := b.arena.Get(b.top())
	if n == nil || n.Kind != dom.KindElement {
		return ""
	}
	return n.TagLower()
}

func (b *builder) push(id dom.NodeID) { b.stack = append(b.stack, id) }

func (b *builder) pop() {
	if len(b.stack) > 1 {
		b.stack = b.stack[:len(b.stack)-1]
	}
}

// closeImplied pops elements off the stack to satisfy the optional
// end-tag rules before opening newTag.
func (b *builder) closeImplied(newTag string) {
	switch newTag {
	case "li":
		b.closeNearest(map[string]bool{"li": true}, map[string]bool{"ul": true, "ol": true, "menu": true})
	case "dt", "dd":
		b.closeNearest(map[string]bool{"dt": true, "dd": true}, map[string]bool{"dl": true})
	case "rt", "rp":
		b.closeNearest(map[string]bool{"rt": true, "rp": true}, map[string]bool{"ruby": true})
	case "option":
		b.closeNearest(map[string]bool{"option": true}, map[string]bool{"select": true, "optgroup": true, "datalist": true})
	case "optgroup":
		b.closeNearest(map[string]bool{"option": true, "optgroup": true}, map[string]bool{"select": true})
	}
	if blockLevelAutoClose[newTag] {
		b.closeNearest(map[string]bool{"p": true}, map[string]bool{
			"div": true, "section": true, "article": true, "table": true, "form": true,
		})
	}
}

// closeNearest pops the stack up to and including the nearest open
// element whose tag is in closeSet, stopping (without popping) if a
// boundary tag is hit first.
func (b *builder) closeNearest(closeSet, boundary map[string]bool) {
	for i := len(b.stack) - 1; i > 0; i-- {
		n := b.arena.Get(b.stack[i])
		if n == nil || n.Kind != dom.KindElement {
			continue
		}
		tag := n.TagLower()
		if closeSet[tag] {
			b.stack = b.stack[:i]
			return
		}
		if boundary[tag] {
			return
		}
	}
}

func (b *builder) appendChild(id dom.NodeID) {
	_ = b.arena.AppendChild(b.top(), id)
}

// closeToMatchingTag pops the stack until it finds an open element with
// the given tag, popping that one too; if none is open, the stray end tag
// is ignored (parser never panics / never fails on malformed input).
func (b *builder) closeToMatchingTag(tag string) {
	for i := len(b.stack) - 1; i > 0; i-- {
		n := b.arena.Get(b.stack[i])
		if n != nil && n.Kind == dom.KindElement && n.TagLower() == tag {
			b.stack = b.stack[:i]
			return
		}
	}
}

func setAttrsFromTokens(a *dom.Arena, id dom.NodeID, attrs []gohtml.Attribute) {
	for _, at := range attrs {
		_ = a.SetAttr(id, at.Key, at.Val)
	}
}

// ParseDocument parses a full HTML document into a fresh arena plus the
// ordered list of executable <script> bodies extracted from it
// (spec.md §4.E).
func ParseDocument(src string) (*dom.Arena, []ScriptSource, error) {
	return parse(src, false)
}

// ParseFragment parses an HTML fragment (used by innerHTML/outerHTML/
// insertAdjacentHTML) with the "sanitized subtree" rules applied: <script>
// elements are dropped entirely and <iframe> descendants are stripped
// (spec.md §4.C, §8 "Idempotence").
func ParseFragment(src string) (*dom.Arena, []ScriptSource, error) {
	return parse(src, true)
}

func parse(src string, sanitize bool) (*dom.Arena, []ScriptSource, error) {
	rawScripts := extractRawScriptBodies(src)
	sanitizedSrc := blankScriptBodies(src, rawScripts)

	b := newBuilder(sanitize)
	tok := gohtml.NewTokenizer(strings.NewReader(sanitizedSrc))
	scriptOrdinal := 0

	for {
		tt := tok.Next()
		if tt == gohtml.ErrorToken {
			if err := tok.Err(); err != nil && err.Error() != "EOF" {
				return b.arena, b.scripts, nil // tolerant: never fail parse_html itself
			}
			break
		}
		switch tt {
		case gohtml.DoctypeToken, gohtml.CommentToken:
			// not modeled.
		case gohtml.TextToken:
			if b.suppressDepth > 0 {
				continue
			}
			text := string(tok.Text())
			if text == "" {
				continue
			}
			b.appendChild(b.arena.CreateText(text))
		case gohtml.StartTagToken, gohtml.SelfClosingTagToken:
			t := tok.Token()
			tag := strings.ToLower(t.Data)

			if b.suppressDepth > 0 {
				if tag == b.suppressTag && tt == gohtml.StartTagToken {
					b.suppressDepth++
				}
				continue
			}

			if tag == "script" {
				typ := attrVal(t.Attr, "type")
				body := ""
				if scriptOrdinal < len(rawScripts) {
					body = rawScripts[scriptOrdinal]
					scriptOrdinal++
				}
				if b.sanitize {
					// Sanitized subtree: scripts are stripped entirely.
					continue
				}
				id := b.arena.CreateElement(t.Data)
				setAttrsFromTokens(b.arena, id, t.Attr)
				b.appendChild(id)
				if tt == gohtml.StartTagToken {
					b.push(id)
				}
				if executableScriptType(typ) {
					b.scripts = append(b.scripts, ScriptSource{
						Body:   body,
						NodeID: id,
						Module: strings.EqualFold(strings.TrimSpace(typ), "module"),
					})
				}
				continue
			}

			b.closeImplied(tag)
			id := b.arena.CreateElement(t.Data)
			setAttrsFromTokens(b.arena, id, t.Attr)
			b.appendChild(id)
			if b.sanitize && tag == "iframe" && tt == gohtml.StartTagToken {
				// Strip iframe descendants: keep the element itself but
				// suppress everything until its matching end tag.
				b.suppressDepth = 1
				b.suppressTag = "iframe"
				continue
			}
			if tt == gohtml.StartTagToken && !isVoid(tag) {
				b.push(id)
			}
		case gohtml.EndTagToken:
			t := tok.Token()
			tag := strings.ToLower(t.Data)
			if b.suppressDepth > 0 {
				if tag == b.suppressTag {
					b.suppressDepth--
				}
				continue
			}
			if tag == "script" {
				b.closeToMatchingTag("script")
				continue
			}
			if isVoid(tag) {
				continue
			}
			b.closeToMatchingTag(tag)
		}
	}
	b.arena.RebuildIDIndex()
	return b.arena, b.scripts, nil
}

func attrVal(attrs []gohtml.Attribute, key string) string {
	for _, a := range attrs {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// extractRawScriptBodies performs the scanner-aware extraction of
// spec.md §4.E: the end of a <script> body is located via
// internal/lexer.FindScriptEnd (which skips string/regex/template/comment
// context) rather than a naive "</script>" byte search, so a regex
// literal containing characters that look like a closing tag cannot
// prematurely terminate the script.
func extractRawScriptBodies(src string) []string {
	var bodies []string
	lower := strings.ToLower(src)
	i := 0
	for {
		idx := strings.Index(lower[i:], "<script")
		if idx < 0 {
			break
		}
		tagStart := i + idx
		// must be a real tag boundary: next byte is whitespace, '>', or '/'
		after := tagStart + len("<script")
		if after < len(src) {
			c := src[after]
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' && c != '>' && c != '/' {
				i = tagStart + 1
				continue
			}
		}
		gt := strings.IndexByte(src[tagStart:], '>')
		if gt < 0 {
			break
		}
		bodyStart := tagStart + gt + 1
		if gt > 0 && src[tagStart+gt-1] == '/' {
			// self-closing <script/>: no body.
			bodies = append(bodies, "")
			i = bodyStart
			continue
		}
		bodyEnd := lexer.FindScriptEnd(src, bodyStart)
		bodies = append(bodies, src[bodyStart:bodyEnd])
		i = bodyEnd
	}
	return bodies
}

// blankScriptBodies replaces each <script>...</script> body's text with an
// empty string so the x/net/html tokenizer (which performs its own,
// JS-naive raw-text search) can still walk tag structure without
// re-deciding where each script ends; the real bodies come from
// extractRawScriptBodies instead (see ScriptSource.Body).
func blankScriptBodies(src string, bodies []string) string {
	if len(bodies) == 0 {
		return src
	}
	var sb strings.Builder
	lower := strings.ToLower(src)
	i := 0
	for {
		idx := strings.Index(lower[i:], "<script")
		if idx < 0 {
			sb.WriteString(src[i:])
			break
		}
		tagStart := i + idx
		after := tagStart + len("<script")
		if after < len(src) {
			c := src[after]
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' && c != '>' && c != '/' {
				sb.WriteString(src[i : tagStart+1])
				i = tagStart + 1
				continue
			}
		}
		gt := strings.IndexByte(src[tagStart:], '>')
		if gt < 0 {
			sb.WriteString(src[i:])
			break
		}
		bodyStart := tagStart + gt + 1
		sb.WriteString(src[i:bodyStart])
		// find real end using the same scanner-aware pass so we skip the
		// right number of bytes, but emit nothing in place of the body.
		bodyEnd := lexer.FindScriptEnd(src, bodyStart)
		i = bodyEnd
	}
	return sb.String()
}

// DumpNode serializes a node and its subtree following spec.md §4.E:
// double-quoted attribute values, `<`/`>`/`&`/`"` escaped in text and
// attribute values, void elements as `<tag …>`, and verbatim children for
// <style>/<script>.
func DumpNode(a *dom.Arena, id dom.NodeID) string {
	var sb strings.Builder
	dump(a, id, &sb)
	return sb.String()
}

func dump(a *dom.Arena, id dom.NodeID, sb *strings.Builder) {
	n := a.Get(id)
	if n == nil {
		return
	}
	switch n.Kind {
	case dom.KindText:
		sb.WriteString(escapeText(n.Data))
		return
	case dom.KindDocument:
		for _, c := range n.Children {
			dump(a, c, sb)
		}
		return
	}
	tag := n.TagName
	lower := n.TagLower()
	sb.WriteByte('<')
	sb.WriteString(tag)
	for _, k := range n.AttrNames() {
		v, _ := n.GetAttr(k)
		sb.WriteByte(' ')
		sb.WriteString(k)
		sb.WriteString(`="`)
		sb.WriteString(escapeAttr(v))
		sb.WriteByte('"')
	}
	sb.WriteByte('>')
	if isVoid(lower) {
		return
	}
	verbatim := lower == "style" || lower == "script"
	for _, c := range n.Children {
		if verbatim {
			cn := a.Get(c)
			if cn != nil && cn.Kind == dom.KindText {
				sb.WriteString(cn.Data)
				continue
			}
		}
		dump(a, c, sb)
	}
	sb.WriteString("</")
	sb.WriteString(tag)
	sb.WriteByte('>')
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func escapeAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
