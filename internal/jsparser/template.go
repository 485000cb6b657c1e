package jsparser

import (
	"fmt"
	"strings"

	"github.com/cryguy/domharness/internal/jsast"
	"github.com/cryguy/domharness/internal/lexer"
)

// splitTemplate turns a raw backtick-delimited template span (as produced
// by the scanner's template context) into its quasi strings and the parsed
// `${…}` substitution expressions. len(Quasis) is always len(Exprs)+1.
func splitTemplate(raw string, startPos int) (*jsast.TemplateLit, error) {
	if len(raw) < 2 || raw[0] != '`' {
		return nil, fmt.Errorf("malformed template literal")
	}
	if raw[len(raw)-1] != '`' {
		return nil, fmt.Errorf("unterminated template literal")
	}
	body := raw[1 : len(raw)-1]

	tpl := &jsast.TemplateLit{}
	var quasi strings.Builder
	i := 0
	for i < len(body) {
		b := body[i]
		if b == '\\' && i+1 < len(body) {
			quasi.WriteString(body[i : i+2])
			i += 2
			continue
		}
		if b == '$' && i+1 < len(body) && body[i+1] == '{' {
			end := templateExprEnd(body, i+2)
			if end < 0 {
				return nil, fmt.Errorf("unterminated ${ in template literal")
			}
			exprSrc := body[i+2 : end]
			sub := newParser(exprSrc)
			e := sub.parseExpr()
			if sub.err != nil {
				if pe, ok := sub.err.(*ParseError); ok {
					return nil, fmt.Errorf("in template substitution at byte %d: %s", startPos+i+2+pe.Pos, pe.Message)
				}
				return nil, sub.err
			}
			tpl.Quasis = append(tpl.Quasis, unescapeString(quasi.String()))
			quasi.Reset()
			tpl.Exprs = append(tpl.Exprs, e)
			i = end + 1
			continue
		}
		quasi.WriteByte(b)
		i++
	}
	tpl.Quasis = append(tpl.Quasis, unescapeString(quasi.String()))
	return tpl, nil
}

// templateExprEnd finds the `}` closing a `${` whose expression begins at
// exprStart, counting only braces in code context so object literals and
// nested templates inside the substitution do not confuse the match.
func templateExprEnd(body string, exprStart int) int {
	tail := body[exprStart:]
	ranges := lexer.ScanNormalRanges(tail)
	depth := 0
	for i := 0; i < len(tail); i++ {
		if !lexer.InRanges(ranges, i) {
			continue
		}
		switch tail[i] {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return exprStart + i
			}
			depth--
		}
	}
	return -1
}
