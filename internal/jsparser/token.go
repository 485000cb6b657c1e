package jsparser

// tokenKind classifies one lexical token.
type tokenKind uint8

const (
	tEOF tokenKind = iota
	tIdent
	tKeyword
	tNumber
	tBigInt
	tString
	tTemplate // raw text including backticks; split lazily by the parser
	tRegex
	tPunct
)

// token is one lexical unit plus enough position info for ASI and error
// messages.
type token struct {
	kind     tokenKind
	text     string // raw source slice (quotes/backticks/slashes included for literals)
	value    string // unescaped value for tString; pattern for tRegex (flags in `flags`)
	flags    string // regex flags
	num      float64
	pos      int
	nlBefore bool // a line terminator appeared before this token (ASI)
}

var keywords = map[string]bool{
	"var": true, "let": true, "const": true, "function": true, "return": true,
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"break": true, "continue": true, "true": true, "false": true, "null": true,
	"undefined": true, "new": true, "delete": true, "typeof": true, "void": true,
	"instanceof": true, "in": true, "of": true, "this": true, "throw": true,
	"try": true, "catch": true, "finally": true, "switch": true, "case": true,
	"default": true, "class": true, "extends": true, "super": true,
	"yield": true, "async": true, "await": true, "static": true, "get": true,
	"set": true, "export": true, "import": true,
}
