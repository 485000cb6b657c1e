// Package jsparser implements spec.md §4.B: a hand-written recursive-
// descent parser turning scanner-delimited source into internal/jsast
// trees. Every entry point returns an error instead of panicking (the
// "never panics" property spec.md §7 requires for the scanner+parser
// pair); a syntax problem surfaces as a ScriptParse-flavored *ParseError*
// that the root package wraps into the harness's ScriptParse error kind.
package jsparser

import (
	"fmt"

	"github.com/cryguy/domharness/internal/jsast"
)

// ParseError reports a syntax problem at a byte offset into the source.
type ParseError struct {
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("script parse error at byte %d: %s", e.Pos, e.Message)
}

// Parser turns a token stream into jsast statements/expressions.
type Parser struct {
	tz   *tokenizer
	cur  token
	peek token
	err  error
}

// Parse parses a full program (a `<script>` body) into a statement list.
// It never panics: a malformed program yields (nil, *ParseError).
func Parse(src string) (stmts []jsast.Stmt, err error) {
	p := newParser(src)
	return p.parseProgram()
}

// ParseExpression parses a single standalone expression (used by evaluator
// helpers and tests that need just an Expr tree).
func ParseExpression(src string) (jsast.Expr, error) {
	p := newParser(src)
	e := p.parseExpr()
	if p.err != nil {
		return nil, p.err
	}
	return e, nil
}

func newParser(src string) *Parser {
	p := &Parser{tz: newTokenizer(src)}
	p.cur = p.tz.next()
	p.peek = p.tz.next()
	return p
}

func (p *Parser) fail(pos int, format string, args ...any) {
	if p.err == nil {
		p.err = &ParseError{Pos: pos, Message: fmt.Sprintf(format, args...)}
	}
}

func (p *Parser) ok() bool { return p.err == nil }

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.tz.next()
}

func (p *Parser) atEOF() bool { return p.cur.kind == tEOF }

func (p *Parser) atPunct(s string) bool { return p.cur.kind == tPunct && p.cur.text == s }
func (p *Parser) atKeyword(s string) bool {
	return p.cur.kind == tKeyword && p.cur.text == s
}
func (p *Parser) atIdentOrKeyword(s string) bool {
	return (p.cur.kind == tIdent || p.cur.kind == tKeyword) && p.cur.text == s
}

func (p *Parser) expectPunct(s string) {
	if !p.ok() {
		return
	}
	if !p.atPunct(s) {
		p.fail(p.cur.pos, "expected %q, got %q", s, p.cur.text)
		return
	}
	p.advance()
}

// consumeSemi implements ASI: an explicit `;`, or a statement boundary
// where the next token starts on a new line / is `}` / is EOF.
func (p *Parser) consumeSemi() {
	if !p.ok() {
		return
	}
	if p.atPunct(";") {
		p.advance()
		return
	}
	if p.atPunct("}") || p.atEOF() || p.cur.nlBefore {
		return
	}
	p.fail(p.cur.pos, "expected ';' or newline, got %q", p.cur.text)
}

func (p *Parser) pos() int { return p.cur.pos }

// ---------------- Program / statements ----------------

func (p *Parser) parseProgram() ([]jsast.Stmt, error) {
	var out []jsast.Stmt
	for p.ok() && !p.atEOF() {
		s := p.parseStmt()
		if !p.ok() {
			break
		}
		out = append(out, s)
	}
	if p.err != nil {
		return nil, p.err
	}
	return out, nil
}

func (p *Parser) parseBlock() []jsast.Stmt {
	p.expectPunct("{")
	var out []jsast.Stmt
	for p.ok() && !p.atPunct("}") && !p.atEOF() {
		out = append(out, p.parseStmt())
	}
	p.expectPunct("}")
	return out
}

func (p *Parser) parseStmt() jsast.Stmt {
	pos := p.pos()
	switch {
	case p.atPunct("{"):
		return &jsast.BlockStmt{Body: p.parseBlock()}
	case p.atPunct(";"):
		p.advance()
		return &jsast.EmptyStmt{}
	case p.atKeyword("var"), p.atKeyword("let"), p.atKeyword("const"):
		d := p.parseVarDecl()
		p.consumeSemi()
		return d
	case p.atKeyword("function"):
		return &jsast.FunctionDecl{Fn: p.parseFunction(false)}
	case p.atIdentOrKeyword("async") && p.peek.kind == tKeyword && p.peek.text == "function":
		p.advance()
		return &jsast.FunctionDecl{Fn: p.parseFunctionAsync()}
	case p.atKeyword("if"):
		return p.parseIf()
	case p.atKeyword("for"):
		return p.parseFor()
	case p.atKeyword("while"):
		return p.parseWhile()
	case p.atKeyword("do"):
		return p.parseDoWhile()
	case p.atKeyword("try"):
		return p.parseTry()
	case p.atKeyword("switch"):
		return p.parseSwitch()
	case p.atKeyword("throw"):
		p.advance()
		arg := p.parseExpr()
		p.consumeSemi()
		return &jsast.ThrowStmt{Arg: arg}
	case p.atKeyword("return"):
		p.advance()
		var arg jsast.Expr
		if !p.atPunct(";") && !p.atPunct("}") && !p.atEOF() && !p.cur.nlBefore {
			arg = p.parseExpr()
		}
		p.consumeSemi()
		return &jsast.ReturnStmt{Arg: arg}
	case p.atKeyword("break"):
		p.advance()
		label := ""
		if p.cur.kind == tIdent && !p.cur.nlBefore {
			label = p.cur.text
			p.advance()
		}
		p.consumeSemi()
		return &jsast.BreakStmt{Label: label}
	case p.atKeyword("continue"):
		p.advance()
		label := ""
		if p.cur.kind == tIdent && !p.cur.nlBefore {
			label = p.cur.text
			p.advance()
		}
		p.consumeSemi()
		return &jsast.ContinueStmt{Label: label}
	}
	// Labeled statement: `ident:` at statement position.
	if p.cur.kind == tIdent && p.peek.kind == tPunct && p.peek.text == ":" {
		label := p.cur.text
		p.advance()
		p.advance()
		return &jsast.LabeledStmt{Label: label, Body: p.parseStmt()}
	}
	expr := p.parseExpr()
	p.consumeSemi()
	_ = pos
	return &jsast.ExprStmt{X: expr}
}

func (p *Parser) parseVarDecl() *jsast.VarDecl {
	kind := p.cur.text
	p.advance()
	var decls []jsast.VarDeclarator
	for {
		target := p.parseBindingPattern()
		var init jsast.Expr
		if p.atPunct("=") {
			p.advance()
			init = p.parseAssign()
		}
		decls = append(decls, jsast.VarDeclarator{Target: target, Init: init})
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return &jsast.VarDecl{Kind: kind, Decls: decls}
}

func (p *Parser) parseIf() jsast.Stmt {
	p.advance()
	p.expectPunct("(")
	test := p.parseExpr()
	p.expectPunct(")")
	cons := p.parseStmt()
	var alt jsast.Stmt
	if p.atKeyword("else") {
		p.advance()
		alt = p.parseStmt()
	}
	return &jsast.IfStmt{Test: test, Cons: cons, Alt: alt}
}

func (p *Parser) parseWhile() jsast.Stmt {
	p.advance()
	p.expectPunct("(")
	test := p.parseExpr()
	p.expectPunct(")")
	return &jsast.WhileStmt{Test: test, Body: p.parseStmt()}
}

func (p *Parser) parseDoWhile() jsast.Stmt {
	p.advance()
	body := p.parseStmt()
	if !p.ok() {
		return &jsast.DoWhileStmt{}
	}
	if !p.atKeyword("while") {
		p.fail(p.pos(), "expected 'while' after do-block")
		return &jsast.DoWhileStmt{}
	}
	p.advance()
	p.expectPunct("(")
	test := p.parseExpr()
	p.expectPunct(")")
	p.consumeSemi()
	return &jsast.DoWhileStmt{Body: body, Test: test}
}

func (p *Parser) parseFor() jsast.Stmt {
	p.advance()
	p.expectPunct("(")

	declKind := ""
	if p.atKeyword("var") || p.atKeyword("let") || p.atKeyword("const") {
		declKind = p.cur.text
	}

	// for (;;), for (init; test; update), for (x in obj), for (x of obj).
	if p.atPunct(";") {
		p.advance()
		return p.finishClassicFor(nil)
	}

	if declKind != "" {
		p.advance()
		target := p.parseBindingPattern()
		if p.atKeyword("in") || p.atKeyword("of") {
			isOf := p.cur.text == "of"
			p.advance()
			obj := p.parseAssign()
			p.expectPunct(")")
			body := p.parseStmt()
			if isOf {
				return &jsast.ForOfStmt{DeclKind: declKind, Target: target, Object: obj, Body: body}
			}
			return &jsast.ForInStmt{DeclKind: declKind, Target: target, Object: obj, Body: body}
		}
		var init jsast.Expr
		if p.atPunct("=") {
			p.advance()
			init = p.parseAssign()
		}
		decls := []jsast.VarDeclarator{{Target: target, Init: init}}
		for p.atPunct(",") {
			p.advance()
			t2 := p.parseBindingPattern()
			var i2 jsast.Expr
			if p.atPunct("=") {
				p.advance()
				i2 = p.parseAssign()
			}
			decls = append(decls, jsast.VarDeclarator{Target: t2, Init: i2})
		}
		initStmt := &jsast.VarDecl{Kind: declKind, Decls: decls}
		p.expectPunct(";")
		return p.finishClassicFor(initStmt)
	}

	// Non-declaration init: could be `for (x in obj)`/`for (x of obj)` or a
	// plain expression-statement init.
	startExpr := p.parseExpr()
	if p.atKeyword("in") || p.atKeyword("of") {
		isOf := p.cur.text == "of"
		p.advance()
		obj := p.parseAssign()
		p.expectPunct(")")
		body := p.parseStmt()
		target := exprToPattern(startExpr)
		if isOf {
			return &jsast.ForOfStmt{Target: target, Object: obj, Body: body}
		}
		return &jsast.ForInStmt{Target: target, Object: obj, Body: body}
	}
	initStmt := &jsast.ExprStmt{X: startExpr}
	p.expectPunct(";")
	return p.finishClassicFor(initStmt)
}

func (p *Parser) finishClassicFor(init jsast.Stmt) jsast.Stmt {
	var test jsast.Expr
	if !p.atPunct(";") {
		test = p.parseExpr()
	}
	p.expectPunct(";")
	var update jsast.Expr
	if !p.atPunct(")") {
		update = p.parseExpr()
	}
	p.expectPunct(")")
	body := p.parseStmt()
	return &jsast.ForStmt{Init: init, Test: test, Update: update, Body: body}
}

func (p *Parser) parseTry() jsast.Stmt {
	p.advance()
	block := p.parseBlock()
	st := &jsast.TryStmt{Block: block}
	if p.atKeyword("catch") {
		p.advance()
		st.HasCatch = true
		if p.atPunct("(") {
			p.advance()
			st.CatchParam = p.parseBindingPattern()
			p.expectPunct(")")
		}
		st.CatchBlock = p.parseBlock()
	}
	if p.atKeyword("finally") {
		p.advance()
		st.HasFinally = true
		st.FinallyBlock = p.parseBlock()
	}
	return st
}

func (p *Parser) parseSwitch() jsast.Stmt {
	p.advance()
	p.expectPunct("(")
	disc := p.parseExpr()
	p.expectPunct(")")
	p.expectPunct("{")
	var cases []jsast.SwitchCase
	for p.ok() && !p.atPunct("}") && !p.atEOF() {
		var test jsast.Expr
		if p.atKeyword("case") {
			p.advance()
			test = p.parseExpr()
		} else if p.atKeyword("default") {
			p.advance()
		} else {
			p.fail(p.pos(), "expected 'case' or 'default' in switch")
			break
		}
		p.expectPunct(":")
		var body []jsast.Stmt
		for p.ok() && !p.atKeyword("case") && !p.atKeyword("default") && !p.atPunct("}") && !p.atEOF() {
			body = append(body, p.parseStmt())
		}
		cases = append(cases, jsast.SwitchCase{Test: test, Body: body})
	}
	p.expectPunct("}")
	return &jsast.SwitchStmt{Disc: disc, Cases: cases}
}

// ---------------- Functions ----------------

func (p *Parser) parseFunction(isArrow bool) *jsast.FunctionLit {
	p.advance() // 'function'
	isGen := false
	if p.atPunct("*") {
		isGen = true
		p.advance()
	}
	name := ""
	if p.cur.kind == tIdent {
		name = p.cur.text
		p.advance()
	}
	params := p.parseParamList()
	body := p.parseBlock()
	return &jsast.FunctionLit{Name: name, Params: params, Body: body, IsGen: isGen}
}

func (p *Parser) parseFunctionAsync() *jsast.FunctionLit {
	fn := p.parseFunction(false)
	fn.IsAsync = true
	return fn
}

func (p *Parser) parseParamList() []jsast.Param {
	p.expectPunct("(")
	var params []jsast.Param
	for p.ok() && !p.atPunct(")") {
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
		params = append(params, jsast.Param{Pattern: pat, Default: def, Rest: rest})
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectPunct(")")
	return params
}
