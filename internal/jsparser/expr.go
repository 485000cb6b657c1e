package jsparser

import (
	"github.com/cryguy/domharness/internal/jsast"
)

// binaryPrec is the precedence-climbing table for the non-assignment,
// non-conditional binary/logical operators (the bulk of the 15-level
// ladder; assignment, conditional, and unary/postfix/call/member layers are
// handled by their own dedicated functions below, same as most hand-written
// precedence-climbing parsers structure it).
var binaryPrec = map[string]int{
	"??": 1,
	"||": 2, "&&": 3,
	"|": 4, "^": 5, "&": 6,
	"==": 7, "!=": 7, "===": 7, "!==": 7,
	"<": 8, ">": 8, "<=": 8, ">=": 8, "instanceof": 8, "in": 8,
	"<<": 9, ">>": 9, ">>>": 9,
	"+": 10, "-": 10,
	"*": 11, "/": 11, "%": 11,
	"**": 12,
}

func (p *Parser) curOpText() (string, bool) {
	if p.cur.kind == tPunct {
		if _, ok := binaryPrec[p.cur.text]; ok {
			return p.cur.text, true
		}
		return "", false
	}
	if p.cur.kind == tKeyword && (p.cur.text == "instanceof" || p.cur.text == "in") {
		return p.cur.text, true
	}
	return "", false
}

// parseExpr parses a full comma-sequence expression.
func (p *Parser) parseExpr() jsast.Expr {
	first := p.parseAssign()
	if !p.atPunct(",") {
		return first
	}
	exprs := []jsast.Expr{first}
	for p.ok() && p.atPunct(",") {
		p.advance()
		exprs = append(exprs, p.parseAssign())
	}
	return &jsast.SequenceExpr{Exprs: exprs}
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"**=": true, "<<=": true, ">>=": true, ">>>=": true,
	"&=": true, "|=": true, "^=": true,
	"&&=": true, "||=": true, "??=": true,
}

func (p *Parser) parseAssign() jsast.Expr {
	if arrow, ok := p.tryParseArrow(); ok {
		return arrow
	}
	left := p.parseConditional()
	if p.cur.kind == tPunct && assignOps[p.cur.text] {
		op := p.cur.text
		p.advance()
		right := p.parseAssign()
		target := left
		if op == "=" {
			if _, isIdent := left.(*jsast.Identifier); !isIdent {
				if _, isMember := left.(*jsast.MemberExpr); !isMember {
					target = &jsast.PatternExpr{Pattern: exprToPattern(left)}
				}
			}
		}
		return &jsast.AssignExpr{Op: op, Target: target, Value: right}
	}
	return left
}

func (p *Parser) parseConditional() jsast.Expr {
	test := p.parseBinary(1)
	if p.atPunct("?") {
		p.advance()
		cons := p.parseAssign()
		p.expectPunct(":")
		alt := p.parseAssign()
		return &jsast.ConditionalExpr{Test: test, Cons: cons, Alt: alt}
	}
	return test
}

func (p *Parser) parseBinary(minPrec int) jsast.Expr {
	left := p.parseExponent()
	for p.ok() {
		op, isOp := p.curOpText()
		if !isOp {
			break
		}
		prec := binaryPrec[op]
		if prec < minPrec {
			break
		}
		p.advance()
		right := p.parseBinary(prec + 1)
		if op == "&&" || op == "||" || op == "??" {
			left = &jsast.LogicalExpr{Op: op, Left: left, Right: right}
		} else {
			left = &jsast.BinaryExpr{Op: op, Left: left, Right: right}
		}
	}
	return left
}

// parseExponent handles `**`, which is right-associative and binds tighter
// than unary on its left operand (approximated here by delegating the left
// side straight to unary).
func (p *Parser) parseExponent() jsast.Expr {
	left := p.parseUnary()
	if p.atPunct("**") {
		p.advance()
		right := p.parseExponent()
		return &jsast.BinaryExpr{Op: "**", Left: left, Right: right}
	}
	return left
}

var unaryOps = map[string]bool{
	"!": true, "~": true, "+": true, "-": true,
}

func (p *Parser) parseUnary() jsast.Expr {
	if p.cur.kind == tPunct && unaryOps[p.cur.text] {
		op := p.cur.text
		p.advance()
		return &jsast.UnaryExpr{Op: op, Arg: p.parseUnary(), Prefix: true}
	}
	if p.cur.kind == tKeyword {
		switch p.cur.text {
		case "typeof", "void", "delete", "await":
			op := p.cur.text
			p.advance()
			return &jsast.UnaryExpr{Op: op, Arg: p.parseUnary(), Prefix: true}
		case "yield":
			p.advance()
			star := false
			if p.atPunct("*") {
				star = true
				p.advance()
			}
			var arg jsast.Expr
			if !p.atPunct(")") && !p.atPunct(";") && !p.atPunct("}") && !p.atPunct(",") && !p.atEOF() && !p.cur.nlBefore {
				arg = p.parseAssign()
			}
			op := "yield"
			if star {
				op = "yield*"
			}
			return &jsast.UnaryExpr{Op: op, Arg: arg, Prefix: true}
		}
	}
	if p.atPunct("++") || p.atPunct("--") {
		op := p.cur.text
		p.advance()
		return &jsast.UpdateExpr{Op: op, Arg: p.parseUnary(), Prefix: true}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() jsast.Expr {
	e := p.parseCallOrMember(p.parsePrimary())
	if (p.atPunct("++") || p.atPunct("--")) && !p.cur.nlBefore {
		op := p.cur.text
		p.advance()
		return &jsast.UpdateExpr{Op: op, Arg: e, Prefix: false}
	}
	return e
}

func (p *Parser) parseCallOrMember(base jsast.Expr) jsast.Expr {
	for p.ok() {
		switch {
		case p.atPunct("."):
			p.advance()
			name := p.cur.text
			p.advance()
			base = &jsast.MemberExpr{Object: base, Property: &jsast.Identifier{Name: name}, Computed: false}
		case p.atPunct("?."):
			p.advance()
			if p.atPunct("(") {
				args := p.parseArgs()
				base = &jsast.CallExpr{Callee: base, Args: args, Optional: true}
				continue
			}
			if p.atPunct("[") {
				p.advance()
				prop := p.parseExpr()
				p.expectPunct("]")
				base = &jsast.MemberExpr{Object: base, Property: prop, Computed: true, Optional: true}
				continue
			}
			name := p.cur.text
			p.advance()
			base = &jsast.MemberExpr{Object: base, Property: &jsast.Identifier{Name: name}, Computed: false, Optional: true}
		case p.atPunct("["):
			p.advance()
			prop := p.parseExpr()
			p.expectPunct("]")
			base = &jsast.MemberExpr{Object: base, Property: prop, Computed: true}
		case p.atPunct("("):
			args := p.parseArgs()
			base = &jsast.CallExpr{Callee: base, Args: args}
		case p.cur.kind == tTemplate:
			tpl := p.parseTemplateLit()
			tpl.Tag = base
			base = tpl
		default:
			return base
		}
	}
	return base
}

func (p *Parser) parseArgs() []jsast.Expr {
	p.expectPunct("(")
	var args []jsast.Expr
	for p.ok() && !p.atPunct(")") {
		if p.atPunct("...") {
			p.advance()
			args = append(args, &jsast.SpreadElement{Arg: p.parseAssign()})
		} else {
			args = append(args, p.parseAssign())
		}
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectPunct(")")
	return args
}

func (p *Parser) parsePrimary() jsast.Expr {
	pos := p.pos()
	switch {
	case p.cur.kind == tNumber:
		v := p.cur.num
		p.advance()
		return &jsast.NumberLit{Value: v}
	case p.cur.kind == tBigInt:
		v := p.cur.value
		p.advance()
		return &jsast.BigIntLit{Text: v}
	case p.cur.kind == tString:
		v := p.cur.value
		p.advance()
		return &jsast.StringLit{Value: v}
	case p.cur.kind == tTemplate:
		return p.parseTemplateLit()
	case p.cur.kind == tRegex:
		pat, flags := p.cur.value, p.cur.flags
		p.advance()
		return &jsast.RegexLit{Pattern: pat, Flags: flags}
	case p.atKeyword("true"):
		p.advance()
		return &jsast.BoolLit{Value: true}
	case p.atKeyword("false"):
		p.advance()
		return &jsast.BoolLit{Value: false}
	case p.atKeyword("null"):
		p.advance()
		return &jsast.NullLit{}
	case p.atKeyword("undefined"):
		p.advance()
		return &jsast.UndefinedLit{}
	case p.atKeyword("this"):
		p.advance()
		return &jsast.ThisExpr{}
	case p.atKeyword("function"):
		return p.parseFunction(false)
	case p.atIdentOrKeyword("async") && p.peek.kind == tKeyword && p.peek.text == "function":
		p.advance()
		return p.parseFunctionAsync()
	case p.atKeyword("new"):
		p.advance()
		callee := p.parseCallOrMemberNoCall(p.parsePrimary())
		var args []jsast.Expr
		if p.atPunct("(") {
			args = p.parseArgs()
		}
		return p.parseCallOrMember(&jsast.NewExpr{Callee: callee, Args: args})
	case p.atPunct("("):
		p.advance()
		e := p.parseExpr()
		p.expectPunct(")")
		return e
	case p.atPunct("["):
		return p.parseArrayLit()
	case p.atPunct("{"):
		return p.parseObjectLit()
	case p.cur.kind == tIdent || (p.cur.kind == tKeyword && isContextualIdent(p.cur.text)):
		name := p.cur.text
		p.advance()
		return &jsast.Identifier{Name: name}
	}
	p.fail(pos, "unexpected token %q", p.cur.text)
	return &jsast.UndefinedLit{}
}

// parseCallOrMemberNoCall parses member access (`.`/`[]`) without consuming
// a trailing `(...)`, used for `new X.Y(...)` where the call belongs to the
// outer `new`, not the innermost member access.
func (p *Parser) parseCallOrMemberNoCall(base jsast.Expr) jsast.Expr {
	for p.ok() {
		switch {
		case p.atPunct("."):
			p.advance()
			name := p.cur.text
			p.advance()
			base = &jsast.MemberExpr{Object: base, Property: &jsast.Identifier{Name: name}}
		case p.atPunct("["):
			p.advance()
			prop := p.parseExpr()
			p.expectPunct("]")
			base = &jsast.MemberExpr{Object: base, Property: prop, Computed: true}
		default:
			return base
		}
	}
	return base
}

func (p *Parser) parseArrayLit() jsast.Expr {
	p.advance() // '['
	var elems []jsast.Expr
	for p.ok() && !p.atPunct("]") {
		if p.atPunct(",") {
			elems = append(elems, nil)
			p.advance()
			continue
		}
		if p.atPunct("...") {
			p.advance()
			elems = append(elems, &jsast.SpreadElement{Arg: p.parseAssign()})
		} else {
			elems = append(elems, p.parseAssign())
		}
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectPunct("]")
	return &jsast.ArrayLit{Elements: elems}
}

func (p *Parser) parseObjectLit() jsast.Expr {
	p.advance() // '{'
	var props []jsast.ObjectProp
	for p.ok() && !p.atPunct("}") {
		if p.atPunct("...") {
			p.advance()
			props = append(props, jsast.ObjectProp{IsSpread: true, Value: p.parseAssign(), Kind: "spread"})
			if p.atPunct(",") {
				p.advance()
			}
			continue
		}
		accessor := ""
		if (p.atIdentOrKeyword("get") || p.atIdentOrKeyword("set")) && !(p.peek.kind == tPunct && (p.peek.text == ":" || p.peek.text == "," || p.peek.text == "(" || p.peek.text == "}")) {
			accessor = p.cur.text
			p.advance()
		}
		var key jsast.Expr
		computed := false
		if p.atPunct("[") {
			p.advance()
			key = p.parseAssign()
			p.expectPunct("]")
			computed = true
		} else if p.cur.kind == tString {
			key = &jsast.StringLit{Value: p.cur.value}
			p.advance()
		} else if p.cur.kind == tNumber {
			key = &jsast.NumberLit{Value: p.cur.num}
			p.advance()
		} else {
			key = &jsast.Identifier{Name: p.cur.text}
			p.advance()
		}
		switch {
		case accessor != "":
			params := p.parseParamList()
			body := p.parseBlock()
			fn := &jsast.FunctionLit{Params: params, Body: body}
			props = append(props, jsast.ObjectProp{Key: key, Computed: computed, Value: fn, Kind: accessor})
		case p.atPunct("("):
			params := p.parseParamList()
			body := p.parseBlock()
			fn := &jsast.FunctionLit{Params: params, Body: body}
			props = append(props, jsast.ObjectProp{Key: key, Computed: computed, Value: fn, Kind: "method"})
		case p.atPunct(":"):
			p.advance()
			val := p.parseAssign()
			props = append(props, jsast.ObjectProp{Key: key, Computed: computed, Value: val, Kind: "init"})
		default:
			name := ""
			if id, ok := key.(*jsast.Identifier); ok {
				name = id.Name
			}
			val := jsast.Expr(&jsast.Identifier{Name: name})
			if p.atPunct("=") {
				p.advance()
				def := p.parseAssign()
				val = &jsast.AssignExpr{Op: "=", Target: &jsast.Identifier{Name: name}, Value: def}
			}
			props = append(props, jsast.ObjectProp{Key: key, Value: val, Shorthand: true, Kind: "init"})
		}
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectPunct("}")
	return &jsast.ObjectLit{Props: props}
}

func (p *Parser) parseTemplateLit() *jsast.TemplateLit {
	raw := p.cur.text
	startPos := p.cur.pos
	p.advance()
	tpl, err := splitTemplate(raw, startPos)
	if err != nil {
		p.fail(startPos, "%s", err.Error())
		return &jsast.TemplateLit{}
	}
	return tpl
}

// tryParseArrow attempts to parse an arrow function starting at the current
// position (either a bare identifier or a parenthesized parameter list
// followed by `=>`). On failure it restores the tokenizer/parser state so
// the caller can fall back to ordinary conditional-expression parsing.
func (p *Parser) tryParseArrow() (jsast.Expr, bool) {
	isAsync := false
	snapshot := p.snapshot()

	if p.atIdentOrKeyword("async") && !p.peek.nlBefore && (p.peek.kind == tIdent || (p.peek.kind == tPunct && p.peek.text == "(")) {
		isAsync = true
		p.advance()
	}

	if p.cur.kind == tIdent && p.peek.kind == tPunct && p.peek.text == "=>" {
		name := p.cur.text
		p.advance()
		p.advance() // '=>'
		fn := p.finishArrowBody([]jsast.Param{{Pattern: jsast.IdentPattern{Name: name}}}, isAsync)
		return fn, true
	}

	if p.atPunct("(") {
		params, ok := p.tryParseParamListForArrow()
		if ok && p.atPunct("=>") {
			p.advance()
			fn := p.finishArrowBody(params, isAsync)
			return fn, true
		}
	}

	p.restore(snapshot)
	return nil, false
}

type parserSnapshot struct {
	tzPos int
	cur   token
	peek  token
	err   error
}

func (p *Parser) snapshot() parserSnapshot {
	return parserSnapshot{tzPos: p.tz.pos, cur: p.cur, peek: p.peek, err: p.err}
}

func (p *Parser) restore(s parserSnapshot) {
	p.tz.pos = s.tzPos
	p.cur = s.cur
	p.peek = s.peek
	p.err = s.err
}

// tryParseParamListForArrow parses a `(...)` group as if it were an arrow
// parameter list. It never sets a hard parser error on failure — ambiguous
// constructs (a parenthesized expression that isn't a valid param list) are
// reported to the caller via ok=false so it can roll back to expression
// parsing instead.
func (p *Parser) tryParseParamListForArrow() (_ []jsast.Param, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	params := p.parseParamList()
	if p.err != nil {
		return nil, false
	}
	return params, true
}

func (p *Parser) finishArrowBody(params []jsast.Param, isAsync bool) jsast.Expr {
	fn := &jsast.FunctionLit{Params: params, IsArrow: true, IsAsync: isAsync}
	if p.atPunct("{") {
		fn.Body = p.parseBlock()
	} else {
		fn.ExprBody = p.parseAssign()
	}
	return fn
}
