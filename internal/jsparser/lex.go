package jsparser

import (
	"strconv"
	"strings"

	"github.com/cryguy/domharness/internal/lexer"
)

// lexer/tokenizer: walks src producing tokens. It leans on
// internal/lexer.ScanNormalRanges to find string/template/regex/comment
// spans (the scanner's one job per SPEC_FULL.md §4.A) instead of
// reimplementing escape-sequence and nesting rules itself; inside a normal
// range it tokenizes punctuators/identifiers/numbers directly, since that
// is the parser's job, not the scanner's.
type tokenizer struct {
	src    string
	ranges [][2]int
	pos    int
}

func newTokenizer(src string) *tokenizer {
	return &tokenizer{src: src, ranges: lexer.ScanNormalRanges(src)}
}

// punctuators, longest-match first.
var punctuators = []string{
	">>>=", "&&=", "||=", "??=", "...", "===", "!==", "**=", "<<=", ">>=", ">>>",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<", ">>", "**",
	"?.",
	"{", "}", "(", ")", "[", "]", ".", ";", ",", "<", ">", "+", "-",
	"*", "%", "&", "|", "^", "!", "~", "?", ":", "=", "/",
}

func (t *tokenizer) inNormal(i int) bool { return lexer.InRanges(t.ranges, i) }

// nextNormalRangeEnd returns the end of the current non-normal span
// starting at t.pos (i.e. the start of the next normal range, or EOF).
func (t *tokenizer) nextNormalRangeEnd() int {
	for _, r := range t.ranges {
		if r[0] >= t.pos {
			return r[0]
		}
	}
	return len(t.src)
}

func (t *tokenizer) next() token {
	nl := false
	for t.pos < len(t.src) {
		if t.inNormal(t.pos) {
			b := t.src[t.pos]
			if b == ' ' || b == '\t' || b == '\r' {
				t.pos++
				continue
			}
			if b == '\n' {
				nl = true
				t.pos++
				continue
			}
			break
		}
		// A non-normal span starting here: string/template/regex/comment.
		end := t.nextNormalRangeEnd()
		if t.src[t.pos] == '`' {
			// a template runs across its ${…} substitutions (normal code)
			// up to the matching closing backtick
			for i := t.pos + 1; i < len(t.src); i++ {
				switch {
				case t.src[i] == '\\':
					i++
				case t.src[i] == '`':
					end, i = i+1, len(t.src)
				case strings.HasPrefix(t.src[i:], "${") && templateExprEnd(t.src, i+2) >= 0:
					i = templateExprEnd(t.src, i+2)
				}
			}
		}
		text := t.src[t.pos:end]
		startPos := t.pos
		t.pos = end
		if strings.HasPrefix(text, "//") || strings.HasPrefix(text, "/*") {
			if strings.Contains(text, "\n") {
				nl = true
			}
			continue
		}
		if strings.HasPrefix(text, "'") || strings.HasPrefix(text, "\"") {
			return token{kind: tString, text: text, value: unescapeString(text[1 : len(text)-1]), pos: startPos, nlBefore: nl}
		}
		if strings.HasPrefix(text, "`") {
			return token{kind: tTemplate, text: text, pos: startPos, nlBefore: nl}
		}
		if strings.HasPrefix(text, "/") {
			return t.readRegexFromSpan(text, startPos, nl)
		}
		// Shouldn't happen, but never hang.
		continue
	}
	if t.pos >= len(t.src) {
		return token{kind: tEOF, pos: t.pos, nlBefore: nl}
	}

	start := t.pos
	b := t.src[t.pos]

	if isDigit(b) || (b == '.' && start+1 < len(t.src) && isDigit(t.src[start+1])) {
		return t.readNumber(nl)
	}
	if isIdentStart(b) {
		for t.pos < len(t.src) && isIdentPart(t.src[t.pos]) {
			t.pos++
		}
		word := t.src[start:t.pos]
		kind := tIdent
		if keywords[word] {
			kind = tKeyword
		}
		return token{kind: kind, text: word, pos: start, nlBefore: nl}
	}
	for _, p := range punctuators {
		if strings.HasPrefix(t.src[t.pos:], p) {
			t.pos += len(p)
			return token{kind: tPunct, text: p, pos: start, nlBefore: nl}
		}
	}
	// Unknown byte: skip it rather than looping forever; the parser will
	// surface a ScriptParse error from the unexpected-token path.
	t.pos++
	return token{kind: tPunct, text: string(b), pos: start, nlBefore: nl}
}

func (t *tokenizer) readRegexFromSpan(text string, startPos int, nl bool) token {
	// text is `/pattern/flags` as produced by the scanner's regex context.
	// An unterminated literal (no closing slash) keeps everything as the
	// pattern; the parser's consumer surfaces the eventual failure.
	lastSlash := strings.LastIndexByte(text, '/')
	if lastSlash <= 0 {
		return token{kind: tRegex, text: text, value: strings.TrimPrefix(text, "/"), pos: startPos, nlBefore: nl}
	}
	pattern := text[1:lastSlash]
	flags := text[lastSlash+1:]
	return token{kind: tRegex, text: text, value: pattern, flags: flags, pos: startPos, nlBefore: nl}
}

func (t *tokenizer) readNumber(nl bool) token {
	start := t.pos
	if t.src[t.pos] == '0' && t.pos+1 < len(t.src) && (t.src[t.pos+1] == 'x' || t.src[t.pos+1] == 'X') {
		t.pos += 2
		for t.pos < len(t.src) && isHexDigit(t.src[t.pos]) {
			t.pos++
		}
	} else if t.src[t.pos] == '0' && t.pos+1 < len(t.src) && (t.src[t.pos+1] == 'b' || t.src[t.pos+1] == 'B') {
		t.pos += 2
		for t.pos < len(t.src) && (t.src[t.pos] == '0' || t.src[t.pos] == '1') {
			t.pos++
		}
	} else if t.src[t.pos] == '0' && t.pos+1 < len(t.src) && (t.src[t.pos+1] == 'o' || t.src[t.pos+1] == 'O') {
		t.pos += 2
		for t.pos < len(t.src) && t.src[t.pos] >= '0' && t.src[t.pos] <= '7' {
			t.pos++
		}
	} else {
		for t.pos < len(t.src) && (isDigit(t.src[t.pos]) || t.src[t.pos] == '_') {
			t.pos++
		}
		if t.pos < len(t.src) && t.src[t.pos] == '.' {
			t.pos++
			for t.pos < len(t.src) && (isDigit(t.src[t.pos]) || t.src[t.pos] == '_') {
				t.pos++
			}
		}
		if t.pos < len(t.src) && (t.src[t.pos] == 'e' || t.src[t.pos] == 'E') {
			t.pos++
			if t.pos < len(t.src) && (t.src[t.pos] == '+' || t.src[t.pos] == '-') {
				t.pos++
			}
			for t.pos < len(t.src) && isDigit(t.src[t.pos]) {
				t.pos++
			}
		}
	}
	if t.pos < len(t.src) && t.src[t.pos] == 'n' {
		text := t.src[start:t.pos]
		t.pos++
		return token{kind: tBigInt, text: text, value: text, pos: start, nlBefore: nl}
	}
	text := strings.ReplaceAll(t.src[start:t.pos], "_", "")
	n := parseNumericLiteral(text)
	return token{kind: tNumber, text: text, num: n, pos: start, nlBefore: nl}
}

func isDigit(b byte) bool    { return b >= '0' && b <= '9' }
func isHexDigit(b byte) bool { return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F') }
func isIdentStart(b byte) bool {
	return b == '_' || b == '$' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
func isIdentPart(b byte) bool { return isIdentStart(b) || isDigit(b) }

// unescapeString turns source escapes (\n, \t, \uXXXX, \xXX, \\, \', \") into
// their runtime characters. Unknown escapes pass the following byte through
// literally, matching common JS engine leniency.
func unescapeString(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '0':
			sb.WriteByte(0)
		case '\n':
			// line continuation: produces nothing.
		case 'u':
			if i+1 < len(s) && s[i+1] == '{' {
				end := strings.IndexByte(s[i:], '}')
				if end > 0 {
					r := hexToRune(s[i+2 : i+end])
					sb.WriteRune(r)
					i += end
					continue
				}
			}
			if i+4 < len(s) {
				r := hexToRune(s[i+1 : i+5])
				sb.WriteRune(r)
				i += 4
				continue
			}
		case 'x':
			if i+2 < len(s) {
				r := hexToRune(s[i+1 : i+3])
				sb.WriteRune(r)
				i += 2
				continue
			}
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

func hexToRune(hex string) rune {
	var v rune
	for _, c := range hex {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			v |= rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v |= rune(c-'A') + 10
		}
	}
	return v
}

func parseNumericLiteral(text string) float64 {
	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, "0x"):
		n, _ := strconv.ParseInt(text[2:], 16, 64)
		return float64(n)
	case strings.HasPrefix(lower, "0b"):
		n, _ := strconv.ParseInt(text[2:], 2, 64)
		return float64(n)
	case strings.HasPrefix(lower, "0o"):
		n, _ := strconv.ParseInt(text[2:], 8, 64)
		return float64(n)
	}
	f, _ := strconv.ParseFloat(text, 64)
	return f
}
