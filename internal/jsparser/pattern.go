package jsparser

import "github.com/cryguy/domharness/internal/jsast"

// parseBindingPattern parses a destructuring target: an identifier, an
// array pattern `[a, , ...rest]`, or an object pattern `{a, b: c = 1, ...r}`.
func (p *Parser) parseBindingPattern() jsast.Pattern {
	switch {
	case p.cur.kind == tIdent || (p.cur.kind == tKeyword && isContextualIdent(p.cur.text)):
		name := p.cur.text
		p.advance()
		return jsast.IdentPattern{Name: name}
	case p.atPunct("["):
		return p.parseArrayPattern()
	case p.atPunct("{"):
		return p.parseObjectPattern()
	}
	p.fail(p.pos(), "expected binding target, got %q", p.cur.text)
	return jsast.IdentPattern{}
}

func isContextualIdent(word string) bool {
	switch word {
	case "async", "await", "yield", "get", "set", "static", "of":
		return true
	}
	return false
}

func (p *Parser) parseArrayPattern() jsast.Pattern {
	p.advance() // '['
	var elems []jsast.ArrayPatternElem
	for p.ok() && !p.atPunct("]") {
		if p.atPunct(",") {
			elems = append(elems, jsast.ArrayPatternElem{})
			p.advance()
			continue
		}
		rest := false
		if p.atPunct("...") {
			rest = true
			p.advance()
		}
		pat := p.parseBindingPattern()
		var def jsast.Expr
		if p.atPunct("=") {
			p.advance()
			def = p.parseAssign()
		}
		elems = append(elems, jsast.ArrayPatternElem{Pattern: pat, Default: def, Rest: rest})
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectPunct("]")
	return jsast.ArrayPattern{Elements: elems}
}

func (p *Parser) parseObjectPattern() jsast.Pattern {
	p.advance() // '{'
	var props []jsast.ObjectPatternProp
	rest := ""
	for p.ok() && !p.atPunct("}") {
		if p.atPunct("...") {
			p.advance()
			if p.cur.kind == tIdent {
				rest = p.cur.text
				p.advance()
			}
			break
		}
		var key string
		var computed jsast.Expr
		if p.atPunct("[") {
			p.advance()
			computed = p.parseAssign()
			p.expectPunct("]")
		} else {
			key = p.cur.text
			p.advance()
		}
		var val jsast.Pattern
		if p.atPunct(":") {
			p.advance()
			val = p.parseBindingPattern()
		} else {
			val = jsast.IdentPattern{Name: key}
		}
		var def jsast.Expr
		if p.atPunct("=") {
			p.advance()
			def = p.parseAssign()
		}
		props = append(props, jsast.ObjectPatternProp{Key: key, Computed: computed, Value: val, Default: def})
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectPunct("}")
	return jsast.ObjectPattern{Props: props, Rest: rest}
}

// exprToPattern re-interprets an already-parsed expression as an assignment
// target, used for `for (x in obj)`/`for (x of obj)` and bare `[a,b] = f()`
// assignments where the left side was parsed generically as an expression.
func exprToPattern(e jsast.Expr) jsast.Pattern {
	switch v := e.(type) {
	case *jsast.Identifier:
		return jsast.IdentPattern{Name: v.Name}
	case *jsast.MemberExpr:
		return jsast.MemberPattern{Target: v}
	case *jsast.ArrayLit:
		var elems []jsast.ArrayPatternElem
		for _, el := range v.Elements {
			if el == nil {
				elems = append(elems, jsast.ArrayPatternElem{})
				continue
			}
			if sp, ok := el.(*jsast.SpreadElement); ok {
				elems = append(elems, jsast.ArrayPatternElem{Pattern: exprToPattern(sp.Arg), Rest: true})
				continue
			}
			if ae, ok := el.(*jsast.AssignExpr); ok && ae.Op == "=" {
				elems = append(elems, jsast.ArrayPatternElem{Pattern: exprToPattern(ae.Target), Default: ae.Value})
				continue
			}
			elems = append(elems, jsast.ArrayPatternElem{Pattern: exprToPattern(el)})
		}
		return jsast.ArrayPattern{Elements: elems}
	case *jsast.ObjectLit:
		var props []jsast.ObjectPatternProp
		for _, pr := range v.Props {
			val := pr.Value
			var def jsast.Expr
			if ae, ok := val.(*jsast.AssignExpr); ok && ae.Op == "=" {
				val = ae.Value
				def = ae.Value
				_ = def
				props = append(props, jsast.ObjectPatternProp{Key: keyName(pr.Key), Computed: computedKey(pr), Value: exprToPattern(ae.Target), Default: ae.Value})
				continue
			}
			props = append(props, jsast.ObjectPatternProp{Key: keyName(pr.Key), Computed: computedKey(pr), Value: exprToPattern(val)})
		}
		return jsast.ObjectPattern{Props: props}
	case *jsast.PatternExpr:
		return v.Pattern
	}
	return jsast.IdentPattern{}
}

func keyName(key jsast.Expr) string {
	switch k := key.(type) {
	case *jsast.Identifier:
		return k.Name
	case *jsast.StringLit:
		return k.Value
	}
	return ""
}

func computedKey(pr jsast.ObjectProp) jsast.Expr {
	if pr.Computed {
		return pr.Key
	}
	return nil
}
