package evaluator

import (
	"regexp"
	"strings"

	"github.com/cryguy/domharness/internal/jsvalue"
)

// The regex engine is an injectable boundary (spec.md §9): the runtime only
// relies on a captures/captures_all/captures_from_pos/split_all contract,
// implemented here on Go's regexp with a light JS→RE2 syntax translation.
// `last_index` is interpreted in byte offsets against the underlying
// engine, which is observationally equivalent for the test corpus.

// makeRegex compiles a JS regex literal or constructor call. Flags g, i, m,
// s, y, d, u are recognized; v is rejected at parse time.
func (rt *Runtime) makeRegex(pattern, flags string) (jsvalue.Value, error) {
	for _, f := range flags {
		switch f {
		case 'g', 'i', 'm', 's', 'y', 'd', 'u':
		case 'v':
			return jsvalue.Undefined(), rtErrf("regex flag 'v' is not supported")
		default:
			return jsvalue.Undefined(), rtErrf("unknown regex flag %q", string(f))
		}
	}
	compiled, err := compileJSRegex(pattern, flags)
	if err != nil {
		return jsvalue.Undefined(), rtErrf("invalid regular expression /%s/%s: %v", pattern, flags, err)
	}
	return jsvalue.RegexpValue(&jsvalue.RegExp{Source: pattern, Flags: flags, Compiled: compiled}), nil
}

func compileJSRegex(pattern, flags string) (*regexp.Regexp, error) {
	goPat := translateJSPattern(pattern)
	var prefix string
	if strings.ContainsRune(flags, 'i') {
		prefix += "i"
	}
	if strings.ContainsRune(flags, 'm') {
		prefix += "m"
	}
	if strings.ContainsRune(flags, 's') {
		prefix += "s"
	}
	if prefix != "" {
		goPat = "(?" + prefix + ")" + goPat
	}
	return regexp.Compile(goPat)
}

// translateJSPattern rewrites the JS-specific constructs RE2 spells
// differently: named groups `(?<name>` → `(?P<name>`.
func translateJSPattern(p string) string {
	var sb strings.Builder
	for i := 0; i < len(p); i++ {
		if p[i] == '\\' && i+1 < len(p) {
			sb.WriteByte(p[i])
			sb.WriteByte(p[i+1])
			i++
			continue
		}
		if strings.HasPrefix(p[i:], "(?<") && !strings.HasPrefix(p[i:], "(?<=") && !strings.HasPrefix(p[i:], "(?<!") {
			sb.WriteString("(?P<")
			i += 2
			continue
		}
		sb.WriteByte(p[i])
	}
	return sb.String()
}

func compiledOf(re *jsvalue.RegExp) (*regexp.Regexp, error) {
	if c, ok := re.Compiled.(*regexp.Regexp); ok && c != nil {
		return c, nil
	}
	c, err := compileJSRegex(re.Source, re.Flags)
	if err != nil {
		return nil, rtErrf("invalid regular expression /%s/%s: %v", re.Source, re.Flags, err)
	}
	re.Compiled = c
	return c, nil
}

func regexGlobal(re *jsvalue.RegExp) bool {
	return strings.ContainsRune(re.Flags, 'g') || strings.ContainsRune(re.Flags, 'y')
}

// capturesFromPos runs the pattern from a byte position, returning the
// submatch index pairs offset back into the full subject.
func capturesFromPos(c *regexp.Regexp, s string, pos int) []int {
	if pos < 0 || pos > len(s) {
		return nil
	}
	loc := c.FindStringSubmatchIndex(s[pos:])
	if loc == nil {
		return nil
	}
	out := make([]int, len(loc))
	for i, v := range loc {
		if v < 0 {
			out[i] = -1
		} else {
			out[i] = v + pos
		}
	}
	return out
}

func (rt *Runtime) regexMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	re := base.Regexp()
	switch name {
	case "source":
		return jsvalue.String(re.Source), nil
	case "flags":
		return jsvalue.String(re.Flags), nil
	case "lastIndex":
		return jsvalue.Number(int64(re.LastIndex)), nil
	case "global":
		return jsvalue.Bool(strings.ContainsRune(re.Flags, 'g')), nil
	case "ignoreCase":
		return jsvalue.Bool(strings.ContainsRune(re.Flags, 'i')), nil
	case "multiline":
		return jsvalue.Bool(strings.ContainsRune(re.Flags, 'm')), nil
	case "sticky":
		return jsvalue.Bool(strings.ContainsRune(re.Flags, 'y')), nil
	case "test":
		return nativeFn("test", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			c, err := compiledOf(re)
			if err != nil {
				return jsvalue.Undefined(), err
			}
			s := argStr(args, 0)
			if !regexGlobal(re) {
				return jsvalue.Bool(c.MatchString(s)), nil
			}
			loc := capturesFromPos(c, s, re.LastIndex)
			if loc == nil {
				re.LastIndex = 0
				return jsvalue.Bool(false), nil
			}
			re.LastIndex = loc[1]
			return jsvalue.Bool(true), nil
		}), nil
	case "exec":
		return nativeFn("exec", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			c, err := compiledOf(re)
			if err != nil {
				return jsvalue.Undefined(), err
			}
			s := argStr(args, 0)
			pos := 0
			if regexGlobal(re) {
				pos = re.LastIndex
			}
			loc := capturesFromPos(c, s, pos)
			if loc == nil {
				re.LastIndex = 0
				return jsvalue.Null(), nil
			}
			if regexGlobal(re) {
				re.LastIndex = loc[1]
			}
			return matchResult(c, s, loc), nil
		}), nil
	case "toString":
		return nativeFn("toString", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.String(jsvalue.AsString(base)), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

// matchResult builds the exec/match result array: the whole match followed
// by each capture group, with undefined for groups that did not take part.
// No index, input or groups properties are attached to the result.
func matchResult(c *regexp.Regexp, s string, loc []int) jsvalue.Value {
	arr := jsvalue.NewArray()
	for i := 0; i*2 < len(loc); i++ {
		a, b := loc[i*2], loc[i*2+1]
		if a < 0 {
			arr.Items = append(arr.Items, jsvalue.Undefined())
		} else {
			arr.Items = append(arr.Items, jsvalue.String(s[a:b]))
		}
	}
	return jsvalue.ArrayValue(arr)
}

func (rt *Runtime) stringMatch(s string, pat jsvalue.Value) (jsvalue.Value, error) {
	re, err := rt.patternToRegex(pat)
	if err != nil {
		return jsvalue.Undefined(), err
	}
	c, err := compiledOf(re)
	if err != nil {
		return jsvalue.Undefined(), err
	}
	if strings.ContainsRune(re.Flags, 'g') {
		all := c.FindAllString(s, -1)
		if all == nil {
			return jsvalue.Null(), nil
		}
		out := jsvalue.NewArray()
		for _, m := range all {
			out.Items = append(out.Items, jsvalue.String(m))
		}
		return jsvalue.ArrayValue(out), nil
	}
	loc := c.FindStringSubmatchIndex(s)
	if loc == nil {
		return jsvalue.Null(), nil
	}
	return matchResult(c, s, loc), nil
}

func (rt *Runtime) stringMatchAll(s string, pat jsvalue.Value) (jsvalue.Value, error) {
	re, err := rt.patternToRegex(pat)
	if err != nil {
		return jsvalue.Undefined(), err
	}
	c, err := compiledOf(re)
	if err != nil {
		return jsvalue.Undefined(), err
	}
	var items []jsvalue.Value
	for _, loc := range c.FindAllStringSubmatchIndex(s, -1) {
		items = append(items, matchResult(c, s, loc))
	}
	return rt.makeArrayIterator(items), nil
}

func (rt *Runtime) stringSearch(s string, pat jsvalue.Value) (jsvalue.Value, error) {
	re, err := rt.patternToRegex(pat)
	if err != nil {
		return jsvalue.Undefined(), err
	}
	c, err := compiledOf(re)
	if err != nil {
		return jsvalue.Undefined(), err
	}
	loc := c.FindStringIndex(s)
	if loc == nil {
		return jsvalue.Number(-1), nil
	}
	return jsvalue.Number(int64(runeIndex(s, loc[0]))), nil
}

func (rt *Runtime) regexSplit(re *jsvalue.RegExp, s string) ([]string, error) {
	c, err := compiledOf(re)
	if err != nil {
		return nil, err
	}
	return c.Split(s, -1), nil
}

func (rt *Runtime) patternToRegex(pat jsvalue.Value) (*jsvalue.RegExp, error) {
	if pat.Kind() == jsvalue.KindRegExp {
		return pat.Regexp(), nil
	}
	v, err := rt.makeRegex(regexp.QuoteMeta(jsvalue.AsString(pat)), "")
	if err != nil {
		return nil, err
	}
	return v.Regexp(), nil
}

// stringReplace implements String#replace/replaceAll over string or regex
// patterns with `$$`/`$&`/`$1` substitutions or a callback replacer.
// Named references (`$<name>`) are not expanded.
func (rt *Runtime) stringReplace(s string, pat, repl jsvalue.Value, all bool) (jsvalue.Value, error) {
	if pat.Kind() != jsvalue.KindRegExp {
		needle := jsvalue.AsString(pat)
		replaceOne := func(src string, idx int) (string, error) {
			replStr, err := rt.replacementFor(repl, []string{needle}, idx, src)
			if err != nil {
				return "", err
			}
			return src[:idx] + replStr + src[idx+len(needle):], nil
		}
		if all {
			out := s
			offset := 0
			for {
				idx := strings.Index(out[offset:], needle)
				if idx < 0 || needle == "" {
					break
				}
				abs := offset + idx
				replStr, err := rt.replacementFor(repl, []string{needle}, abs, out)
				if err != nil {
					return jsvalue.Undefined(), err
				}
				out = out[:abs] + replStr + out[abs+len(needle):]
				offset = abs + len(replStr)
			}
			return jsvalue.String(out), nil
		}
		idx := strings.Index(s, needle)
		if idx < 0 {
			return jsvalue.String(s), nil
		}
		out, err := replaceOne(s, idx)
		if err != nil {
			return jsvalue.Undefined(), err
		}
		return jsvalue.String(out), nil
	}

	re := pat.Regexp()
	c, err := compiledOf(re)
	if err != nil {
		return jsvalue.Undefined(), err
	}
	global := all || strings.ContainsRune(re.Flags, 'g')
	limit := 1
	if global {
		limit = -1
	}
	locs := c.FindAllStringSubmatchIndex(s, limit)
	if locs == nil {
		return jsvalue.String(s), nil
	}
	var sb strings.Builder
	last := 0
	for _, loc := range locs {
		sb.WriteString(s[last:loc[0]])
		groups := make([]string, len(loc)/2)
		for i := 0; i*2 < len(loc); i++ {
			if loc[i*2] >= 0 {
				groups[i] = s[loc[i*2]:loc[i*2+1]]
			}
		}
		replStr, err := rt.replacementFor(repl, groups, loc[0], s)
		if err != nil {
			return jsvalue.Undefined(), err
		}
		sb.WriteString(replStr)
		last = loc[1]
	}
	sb.WriteString(s[last:])
	return jsvalue.String(sb.String()), nil
}

// replacementFor computes the replacement text for one match: a callback
// replacer receives (match, groups..., index, input); a string replacer
// expands `$$`, `$&`, and `$N` references.
func (rt *Runtime) replacementFor(repl jsvalue.Value, groups []string, index int, input string) (string, error) {
	if jsvalue.IsCallable(repl) {
		args := make([]jsvalue.Value, 0, len(groups)+2)
		for _, g := range groups {
			args = append(args, jsvalue.String(g))
		}
		args = append(args, jsvalue.Number(int64(index)), jsvalue.String(input))
		out, err := rt.callFunction(repl, jsvalue.Undefined(), args)
		if err != nil {
			return "", err
		}
		return jsvalue.AsString(out), nil
	}
	tpl := jsvalue.AsString(repl)
	var sb strings.Builder
	for i := 0; i < len(tpl); i++ {
		if tpl[i] != '$' || i+1 >= len(tpl) {
			sb.WriteByte(tpl[i])
			continue
		}
		next := tpl[i+1]
		switch {
		case next == '$':
			sb.WriteByte('$')
			i++
		case next == '&':
			sb.WriteString(groups[0])
			i++
		case next >= '0' && next <= '9':
			n := int(next - '0')
			j := i + 2
			if j < len(tpl) && tpl[j] >= '0' && tpl[j] <= '9' && n*10+int(tpl[j]-'0') < len(groups) {
				n = n*10 + int(tpl[j]-'0')
				j++
			}
			if n >= 1 && n < len(groups) {
				sb.WriteString(groups[n])
				i = j - 1
			} else {
				sb.WriteByte('$')
			}
		default:
			sb.WriteByte('$')
		}
	}
	return sb.String(), nil
}
