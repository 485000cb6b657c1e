package lexer

import "strings"

// TopLevelIndexAny returns the byte index of the rightmost occurrence of
// any of ops that starts in code (normal) context, and the op matched
// there (the last one in ops when several match at that index). Matches
// inside longer operators are not excluded: `<` also matches within `<<`.
// Returns -1 if none found.
func TopLevelIndexAny(src string, ranges [][2]int, ops []string) (idx int, matched string) {
	idx = -1
	for i := 0; i < len(src); i++ {
		if !InRanges(ranges, i) {
			continue
		}
		for _, op := range ops {
			if i+len(op) <= len(src) && src[i:i+len(op)] == op {
				idx = i
				matched = op
			}
		}
	}
	return idx, matched
}

// TopLevelIndexFirst returns the leftmost top-level occurrence of op.
func TopLevelIndexFirst(src string, ranges [][2]int, op string) int {
	for i := 0; i+len(op) <= len(src); i++ {
		if InRanges(ranges, i) && src[i:i+len(op)] == op {
			return i
		}
	}
	return -1
}

// MatchingClose finds the index of the close byte matching the open byte
// at openIdx (which must already be the open byte), honoring string/
// template/regex/comment context so that e.g. an unmatched `)` inside a
// string literal is not mistaken for the real close.
func MatchingClose(src string, openIdx int, open, close byte) int {
	ranges := ScanNormalRanges(src)
	depth := 0
	for i := openIdx; i < len(src); i++ {
		if !InRanges(ranges, i) {
			continue
		}
		switch src[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// SplitTopLevelComma splits src on commas that are at top-level code
// context and not nested inside (), [], {}, or a string/template/regex.
func SplitTopLevelComma(src string) []string {
	ranges := ScanNormalRanges(src)
	var parts []string
	depthP, depthB, depthC := 0, 0, 0
	last := 0
	for i := 0; i < len(src); i++ {
		if !InRanges(ranges, i) {
			continue
		}
		switch src[i] {
		case '(':
			depthP++
		case ')':
			depthP--
		case '[':
			depthB++
		case ']':
			depthB--
		case '{':
			depthC++
		case '}':
			depthC--
		case ',':
			if depthP == 0 && depthB == 0 && depthC == 0 {
				parts = append(parts, src[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, src[last:])
	return parts
}

// FindScriptEnd locates the end of a `<script>` element body starting at
// bodyStart, honoring string/regex/comment/template context so that e.g.
// a regex literal containing the substring `</script>` does not
// prematurely terminate extraction (spec.md §4.E).
func FindScriptEnd(html string, bodyStart int) int {
	sc := NewScanner(html[bodyStart:])
	lowerTail := strings.ToLower(html[bodyStart:])
	for sc.pos < len(sc.src) {
		if sc.cur == ctxNormal && strings.HasPrefix(lowerTail[sc.pos:], "</script") {
			return bodyStart + sc.pos
		}
		sc.step()
	}
	return len(html)
}
