// Package lexer implements the stateful byte scanner of SPEC_FULL.md §4.A:
// a single-pass cursor that classifies every position as code, string,
// template, or regex context, used by internal/jsparser to split source
// slices without a separate tokenization pass.
package lexer

// ctx is the scanner's classification of the byte at the cursor.
type ctx uint8

const (
	ctxNormal ctx = iota
	ctxLineComment
	ctxBlockComment
	ctxSingleString
	ctxDoubleString
	ctxTemplate
	ctxRegexBody
	ctxRegexClass
)

// templateFrame tracks one level of `${ … }` nesting inside a template
// literal: the brace depth reached while scanning the embedded expression.
type templateFrame struct {
	braceDepth int
}

// regexAllowingKeywords is the lookback table from spec.md §4.A that lets
// the scanner disambiguate `/` as division vs. the start of a regex
// literal: a `/` is a regex start only if the last significant token was
// one of these keywords, an operator, or nothing at all (start of file /
// after `(`, `,`, `=`, etc. — tracked via lastWasValue).
var regexAllowingKeywords = map[string]bool{
	"return": true, "typeof": true, "in": true, "instanceof": true,
	"new": true, "delete": true, "void": true, "throw": true,
	"case": true, "await": true, "yield": true,
}

// Scanner is a single-pass byte cursor over JS-subset source.
type Scanner struct {
	src []byte
	pos int

	cur           ctx
	templateStack []templateFrame // nesting of ${…} regions inside templates
	parenDepth    int
	bracketDepth  int
	braceDepth    int

	lastSignificant byte
	lastIdent       string
	lastWasValue    bool // true if the last significant token could end an expression (regex disallowed after it)
}

// NewScanner constructs a scanner positioned at the start of src.
func NewScanner(src string) *Scanner {
	return &Scanner{src: []byte(src)}
}

// Len returns the source length in bytes.
func (s *Scanner) Len() int { return len(s.src) }

// Source exposes the raw bytes (read-only use by parser splitters).
func (s *Scanner) Source() []byte { return s.src }

// IsNormalAt reports whether byte index i is plain top-level code,
// i.e. not inside a string/template/regex/comment. It runs a scan from
// the beginning (or resumes from a cached scan) — this is the operational
// form of the "is this comma/operator/brace top-level code?" primitive
// spec.md §4.A calls the single point of truth.
func IsNormalAt(src string, i int) bool {
	sc := NewScanner(src)
	normal := false
	for sc.pos <= i && sc.pos < len(sc.src) {
		startNormal := sc.cur == ctxNormal
		if sc.pos == i {
			normal = startNormal
			break
		}
		sc.step()
	}
	if sc.pos == i && i >= len(sc.src) {
		normal = sc.cur == ctxNormal
	}
	return normal
}

// ScanNormalRanges returns the list of [start,end) byte ranges that are in
// plain code context (not inside a string, template, regex, or comment).
// Higher-level splitters (internal/jsparser) intersect operator searches
// against these ranges instead of re-deriving scanner state per byte.
func ScanNormalRanges(src string) [][2]int {
	sc := NewScanner(src)
	var ranges [][2]int
	rangeStart := -1
	for sc.pos < len(sc.src) {
		start := sc.pos
		wasNormal := sc.cur == ctxNormal
		sc.step()
		// a step that opens or closes a literal or comment belongs to it
		isNormal := wasNormal && sc.cur == ctxNormal
		if isNormal && rangeStart < 0 {
			rangeStart = start
		}
		if !isNormal && rangeStart >= 0 {
			ranges = append(ranges, [2]int{rangeStart, start})
			rangeStart = -1
		}
	}
	if rangeStart >= 0 {
		ranges = append(ranges, [2]int{rangeStart, len(sc.src)})
	}
	return ranges
}

// InRanges reports whether byte index i falls in one of the ranges
// returned by ScanNormalRanges.
func InRanges(ranges [][2]int, i int) bool {
	for _, r := range ranges {
		if i >= r[0] && i < r[1] {
			return true
		}
		if i < r[0] {
			return false
		}
	}
	return false
}

// step advances the scanner by one byte (or one multi-byte token, for
// things like `//`, `/*`, escape sequences), updating context. It is the
// engine behind IsNormalAt/ScanNormalRanges and is never exported directly:
// callers only see the derived ranges, consistent with "the scanner
// exposes a single primitive" — step is that primitive's implementation.
func (s *Scanner) step() {
	if s.pos >= len(s.src) {
		return
	}
	b := s.src[s.pos]

	switch s.cur {
	case ctxLineComment:
		if b == '\n' {
			s.cur = ctxNormal
		}
		s.pos++
		return
	case ctxBlockComment:
		if b == '*' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/' {
			s.pos += 2
			s.cur = ctxNormal
			return
		}
		s.pos++
		return
	case ctxSingleString:
		s.stepString('\'')
		return
	case ctxDoubleString:
		s.stepString('"')
		return
	case ctxTemplate:
		s.stepTemplate()
		return
	case ctxRegexBody:
		s.stepRegex()
		return
	case ctxRegexClass:
		s.stepRegexClass()
		return
	}

	// ctxNormal
	switch {
	case b == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/':
		s.cur = ctxLineComment
		s.pos += 2
	case b == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '*':
		s.cur = ctxBlockComment
		s.pos += 2
	case b == '\'':
		s.cur = ctxSingleString
		s.markValue(b)
		s.pos++
	case b == '"':
		s.cur = ctxDoubleString
		s.markValue(b)
		s.pos++
	case b == '`':
		s.cur = ctxTemplate
		s.markValue(b)
		s.pos++
	case b == '/' && s.regexAllowedHere():
		s.cur = ctxRegexBody
		s.markValue(b)
		s.pos++
	case b == '(':
		s.parenDepth++
		s.markOperator(b)
		s.pos++
	case b == ')':
		s.parenDepth--
		s.markValue(b)
		s.pos++
	case b == '[':
		s.bracketDepth++
		s.markOperator(b)
		s.pos++
	case b == ']':
		s.bracketDepth--
		s.markValue(b)
		s.pos++
	case b == '{':
		s.braceDepth++
		if len(s.templateStack) > 0 {
			s.templateStack[len(s.templateStack)-1].braceDepth++
		}
		s.markOperator(b)
		s.pos++
	case b == '}':
		if len(s.templateStack) > 0 {
			top := &s.templateStack[len(s.templateStack)-1]
			if top.braceDepth == 0 {
				// closes the `${ … }` substitution, resume template scanning.
				s.templateStack = s.templateStack[:len(s.templateStack)-1]
				s.cur = ctxTemplate
				s.pos++
				return
			}
			top.braceDepth--
		}
		s.braceDepth--
		s.markValue(b)
		s.pos++
	case isIdentByte(b):
		s.scanIdentifier()
	default:
		if isOperatorByte(b) {
			s.markOperator(b)
		}
		s.pos++
	}
}

func (s *Scanner) stepString(quote byte) {
	b := s.src[s.pos]
	if b == '\\' && s.pos+1 < len(s.src) {
		s.pos += 2
		return
	}
	if b == quote {
		s.cur = ctxNormal
		s.markValue(b)
		s.pos++
		return
	}
	s.pos++
}

func (s *Scanner) stepTemplate() {
	b := s.src[s.pos]
	if b == '\\' && s.pos+1 < len(s.src) {
		s.pos += 2
		return
	}
	if b == '`' {
		s.cur = ctxNormal
		s.markValue(b)
		s.pos++
		return
	}
	if b == '$' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '{' {
		s.templateStack = append(s.templateStack, templateFrame{})
		s.cur = ctxNormal
		s.pos += 2
		return
	}
	s.pos++
}

func (s *Scanner) stepRegex() {
	b := s.src[s.pos]
	if b == '\\' && s.pos+1 < len(s.src) {
		s.pos += 2
		return
	}
	if b == '[' {
		s.cur = ctxRegexClass
		s.pos++
		return
	}
	if b == '/' {
		s.pos++
		// consume trailing flag letters
		for s.pos < len(s.src) && isIdentByte(s.src[s.pos]) {
			s.pos++
		}
		s.cur = ctxNormal
		s.markValue('/')
		return
	}
	s.pos++
}

func (s *Scanner) stepRegexClass() {
	b := s.src[s.pos]
	if b == '\\' && s.pos+1 < len(s.src) {
		s.pos += 2
		return
	}
	if b == ']' {
		s.cur = ctxRegexBody
		s.pos++
		return
	}
	s.pos++
}

func (s *Scanner) scanIdentifier() {
	start := s.pos
	for s.pos < len(s.src) && isIdentByte(s.src[s.pos]) {
		s.pos++
	}
	word := string(s.src[start:s.pos])
	s.lastIdent = word
	// Keywords that can precede a regex literal do not themselves count
	// as "a value just ended", so `return /x/` still allows regex start.
	s.lastWasValue = !regexAllowingKeywords[word] && !isNonValueKeyword(word)
	if len(word) > 0 {
		s.lastSignificant = word[len(word)-1]
	}
}

func isNonValueKeyword(w string) bool {
	switch w {
	case "if", "else", "for", "while", "do", "switch", "case", "default",
		"function", "var", "let", "const", "try", "catch", "finally",
		"return", "break", "continue", "class", "extends", "export", "import":
		return true
	}
	return false
}

func (s *Scanner) markValue(b byte) {
	s.lastSignificant = b
	s.lastWasValue = true
}

func (s *Scanner) markOperator(b byte) {
	s.lastSignificant = b
	s.lastWasValue = false
}

// regexAllowedHere implements the `/` disambiguation lookback: a slash
// starts a regex literal unless the previous significant token was a value
// that a division could follow (an identifier, number, `)`, `]`, or a
// closing string/template/regex).
func (s *Scanner) regexAllowedHere() bool {
	if s.lastSignificant == 0 {
		return true
	}
	return !s.lastWasValue
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isOperatorByte(b byte) bool {
	switch b {
	case '+', '-', '*', '%', '=', '<', '>', '!', '&', '|', '^', '~', '?', ':', ',', ';', '.':
		return true
	}
	return false
}
