package lexer

import "testing"

func TestIsNormalAt_Basic(t *testing.T) {
	src := `a + "b,c" + d`
	// index of the comma inside the string literal
	commaIdx := 6
	if src[commaIdx] != ',' {
		t.Fatalf("test fixture index wrong, got %q", src[commaIdx])
	}
	if IsNormalAt(src, commaIdx) {
		t.Errorf("comma inside string literal should not be normal context")
	}
	plusIdx := 2
	if !IsNormalAt(src, plusIdx) {
		t.Errorf("top-level + should be normal context")
	}
}

func TestScanNormalRanges_SkipsLineComment(t *testing.T) {
	src := "a // b, c\nd"
	ranges := ScanNormalRanges(src)
	if InRanges(ranges, 5) { // inside "// b, c"
		t.Errorf("byte inside line comment should not be in normal ranges")
	}
	if !InRanges(ranges, len(src)-1) { // 'd' after the comment
		t.Errorf("byte after line comment should be normal")
	}
}

func TestScanNormalRanges_TemplateWithNestedExpr(t *testing.T) {
	src := "`a${ {x:1} }b`"
	ranges := ScanNormalRanges(src)
	// the `{` that opens the object literal inside ${...} is normal code,
	// while the backtick-quoted text around it is not.
	braceIdx := 5
	if src[braceIdx] != '{' {
		t.Fatalf("fixture drift: got %q", src[braceIdx])
	}
	if !InRanges(ranges, braceIdx) {
		t.Errorf("object-literal brace inside ${...} should be normal code")
	}
	if InRanges(ranges, 1) { // 'a' inside the template text
		t.Errorf("template text should not be normal code")
	}
}

func TestRegexVsDivision(t *testing.T) {
	// after an identifier, `/` is division
	src1 := "a / b"
	ranges1 := ScanNormalRanges(src1)
	if !InRanges(ranges1, 3) { // the 'b' after division
		t.Errorf("division should leave following tokens in normal context")
	}

	// after `return`, `/` starts a regex literal, so the comma inside it
	// must not be visible as a top-level split point.
	src2 := "return /a,b/.test(x)"
	idx := SplitTopLevelComma(src2)
	if len(idx) != 1 {
		t.Errorf("regex literal after `return` should not be split on its internal comma, got %v", idx)
	}
}

func TestMatchingClose_Paren(t *testing.T) {
	src := "f(a, (b), \")\")"
	open := 1
	close := MatchingClose(src, open, '(', ')')
	if close != len(src)-1 {
		t.Errorf("MatchingClose = %d, want %d", close, len(src)-1)
	}
}

func TestFindScriptEnd_SkipsStringContainingTag(t *testing.T) {
	html := `var x = "</script>"; real();</script>`
	end := FindScriptEnd(html, 0)
	want := strIndex(html, "</script>", 1)
	if end != want {
		t.Errorf("FindScriptEnd = %d, want %d (the real closing tag)", end, want)
	}
}

func strIndex(s, sub string, occurrence int) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
			if count == occurrence {
				return i
			}
		}
	}
	return -1
}
