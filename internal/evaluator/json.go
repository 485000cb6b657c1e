package evaluator

import (
	"math"
	"strconv"
	"strings"

	"github.com/cryguy/domharness/internal/jsvalue"
)

// JSON.stringify / JSON.parse over the tagged value model. Hand-rolled
// rather than round-tripping through encoding/json because the value model
// must preserve insertion order and JS-specific rules (undefined/function
// elision, NaN→null).

func (rt *Runtime) jsonStringify(v jsvalue.Value, indentArg jsvalue.Value) (jsvalue.Value, error) {
	indent := ""
	switch indentArg.Kind() {
	case jsvalue.KindNumber, jsvalue.KindFloat:
		n := int(jsvalue.ValueToI64(indentArg))
		if n > 10 {
			n = 10
		}
		if n > 0 {
			indent = strings.Repeat(" ", n)
		}
	case jsvalue.KindString:
		indent = indentArg.Str()
	}
	var sb strings.Builder
	ok, err := rt.writeJSON(&sb, v, indent, "")
	if err != nil {
		return jsvalue.Undefined(), err
	}
	if !ok {
		return jsvalue.Undefined(), nil
	}
	return jsvalue.String(sb.String()), nil
}

// writeJSON returns ok=false for values JSON.stringify elides entirely
// (undefined, functions).
func (rt *Runtime) writeJSON(sb *strings.Builder, v jsvalue.Value, indent, cur string) (bool, error) {
	switch v.Kind() {
	case jsvalue.KindUndefined, jsvalue.KindFunction, jsvalue.KindSymbol:
		return false, nil
	case jsvalue.KindNull:
		sb.WriteString("null")
	case jsvalue.KindBool:
		sb.WriteString(jsvalue.AsString(v))
	case jsvalue.KindNumber:
		sb.WriteString(strconv.FormatInt(v.Int(), 10))
	case jsvalue.KindFloat:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			sb.WriteString("null")
		} else {
			sb.WriteString(jsvalue.AsString(v))
		}
	case jsvalue.KindBigInt:
		return false, rtErrf("do not know how to serialize a BigInt")
	case jsvalue.KindString:
		sb.WriteString(quoteJSON(v.Str()))
	case jsvalue.KindDate:
		sb.WriteString(quoteJSON(jsvalue.FormatDateISOLike(v.Date().EpochMS)))
	case jsvalue.KindArray:
		return true, rt.writeJSONArray(sb, v.Array().Items, indent, cur)
	case jsvalue.KindMap, jsvalue.KindSet, jsvalue.KindRegExp, jsvalue.KindPromise:
		sb.WriteString("{}")
	case jsvalue.KindObject:
		return true, rt.writeJSONObject(sb, v.Object(), indent, cur)
	default:
		sb.WriteString("null")
	}
	return true, nil
}

func (rt *Runtime) writeJSONArray(sb *strings.Builder, items []jsvalue.Value, indent, cur string) error {
	if len(items) == 0 {
		sb.WriteString("[]")
		return nil
	}
	inner := cur + indent
	sb.WriteByte('[')
	for i, it := range items {
		if i > 0 {
			sb.WriteByte(',')
		}
		if indent != "" {
			sb.WriteByte('\n')
			sb.WriteString(inner)
		}
		ok, err := rt.writeJSON(sb, it, indent, inner)
		if err != nil {
			return err
		}
		if !ok {
			sb.WriteString("null")
		}
	}
	if indent != "" {
		sb.WriteByte('\n')
		sb.WriteString(cur)
	}
	sb.WriteByte(']')
	return nil
}

func (rt *Runtime) writeJSONObject(sb *strings.Builder, obj *jsvalue.Object, indent, cur string) error {
	// No toJSON hook is called: a toJSON method is a function-valued key and
	// is skipped like any other; Date values are handled by writeJSON itself.
	keys := obj.Keys()
	inner := cur + indent
	sb.WriteByte('{')
	first := true
	for _, k := range keys {
		v, _ := obj.Get(k)
		var tmp strings.Builder
		ok, err := rt.writeJSON(&tmp, v, indent, inner)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !first {
			sb.WriteByte(',')
		}
		first = false
		if indent != "" {
			sb.WriteByte('\n')
			sb.WriteString(inner)
		}
		sb.WriteString(quoteJSON(k))
		sb.WriteByte(':')
		if indent != "" {
			sb.WriteByte(' ')
		}
		sb.WriteString(tmp.String())
	}
	if indent != "" && !first {
		sb.WriteByte('\n')
		sb.WriteString(cur)
	}
	sb.WriteByte('}')
	return nil
}

func quoteJSON(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				sb.WriteString("\\u")
				sb.WriteString(strings.ToLower(strconv.FormatInt(int64(r), 16)))
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// ---- parse ----

type jsonParser struct {
	src string
	pos int
}

func (rt *Runtime) jsonParse(src string) (jsvalue.Value, error) {
	p := &jsonParser{src: src}
	p.skipWS()
	v, err := p.parseValue()
	if err != nil {
		return jsvalue.Undefined(), err
	}
	p.skipWS()
	if p.pos < len(p.src) {
		return jsvalue.Undefined(), rtErrf("unexpected token in JSON at position %d", p.pos)
	}
	return v, nil
}

func (p *jsonParser) skipWS() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *jsonParser) parseValue() (jsvalue.Value, error) {
	if p.pos >= len(p.src) {
		return jsvalue.Undefined(), rtErrf("unexpected end of JSON input")
	}
	switch c := p.src[p.pos]; {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"':
		s, err := p.parseString()
		if err != nil {
			return jsvalue.Undefined(), err
		}
		return jsvalue.String(s), nil
	case strings.HasPrefix(p.src[p.pos:], "true"):
		p.pos += 4
		return jsvalue.Bool(true), nil
	case strings.HasPrefix(p.src[p.pos:], "false"):
		p.pos += 5
		return jsvalue.Bool(false), nil
	case strings.HasPrefix(p.src[p.pos:], "null"):
		p.pos += 4
		return jsvalue.Null(), nil
	default:
		return p.parseNumber()
	}
}

func (p *jsonParser) parseObject() (jsvalue.Value, error) {
	p.pos++ // '{'
	obj := jsvalue.NewObject()
	p.skipWS()
	if p.pos < len(p.src) && p.src[p.pos] == '}' {
		p.pos++
		return jsvalue.ObjectValue(obj), nil
	}
	for {
		p.skipWS()
		if p.pos >= len(p.src) || p.src[p.pos] != '"' {
			return jsvalue.Undefined(), rtErrf("expected string key in JSON at position %d", p.pos)
		}
		key, err := p.parseString()
		if err != nil {
			return jsvalue.Undefined(), err
		}
		p.skipWS()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			return jsvalue.Undefined(), rtErrf("expected ':' in JSON at position %d", p.pos)
		}
		p.pos++
		p.skipWS()
		v, err := p.parseValue()
		if err != nil {
			return jsvalue.Undefined(), err
		}
		obj.Set(key, v)
		p.skipWS()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
			continue
		}
		if p.pos < len(p.src) && p.src[p.pos] == '}' {
			p.pos++
			return jsvalue.ObjectValue(obj), nil
		}
		return jsvalue.Undefined(), rtErrf("malformed JSON object at position %d", p.pos)
	}
}

func (p *jsonParser) parseArray() (jsvalue.Value, error) {
	p.pos++ // '['
	arr := jsvalue.NewArray()
	p.skipWS()
	if p.pos < len(p.src) && p.src[p.pos] == ']' {
		p.pos++
		return jsvalue.ArrayValue(arr), nil
	}
	for {
		p.skipWS()
		v, err := p.parseValue()
		if err != nil {
			return jsvalue.Undefined(), err
		}
		arr.Items = append(arr.Items, v)
		p.skipWS()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
			continue
		}
		if p.pos < len(p.src) && p.src[p.pos] == ']' {
			p.pos++
			return jsvalue.ArrayValue(arr), nil
		}
		return jsvalue.Undefined(), rtErrf("malformed JSON array at position %d", p.pos)
	}
}

func (p *jsonParser) parseString() (string, error) {
	p.pos++ // '"'
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '"':
			p.pos++
			return sb.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.src) {
				return "", rtErrf("unterminated string in JSON")
			}
			switch p.src[p.pos] {
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case '/':
				sb.WriteByte('/')
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
			case 'u':
				if p.pos+4 >= len(p.src) {
					return "", rtErrf("bad unicode escape in JSON")
				}
				n, err := strconv.ParseInt(p.src[p.pos+1:p.pos+5], 16, 32)
				if err != nil {
					return "", rtErrf("bad unicode escape in JSON")
				}
				sb.WriteRune(rune(n))
				p.pos += 4
			default:
				return "", rtErrf("bad escape in JSON at position %d", p.pos)
			}
			p.pos++
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", rtErrf("unterminated string in JSON")
}

func (p *jsonParser) parseNumber() (jsvalue.Value, error) {
	start := p.pos
	for p.pos < len(p.src) && strings.ContainsRune("-+.eE0123456789", rune(p.src[p.pos])) {
		p.pos++
	}
	f, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return jsvalue.Undefined(), rtErrf("unexpected token in JSON at position %d", start)
	}
	return numberFromFloat(f), nil
}
