package evaluator

import (
	"math"
	"strings"

	"github.com/cryguy/domharness/internal/jsvalue"
)

// stringMember dispatches String.prototype-equivalent methods. Indices are
// measured in Unicode scalar values, matching the selection-bound rule of
// spec.md §3.
func (rt *Runtime) stringMember(s, name string) (jsvalue.Value, error) {
	if v, ok := stringIndex(s, name); ok {
		return v, nil
	}
	runes := []rune(s)
	switch name {
	case "length":
		return jsvalue.Number(int64(len(runes))), nil
	case "charAt":
		return nativeFn("charAt", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			i := argInt(args, 0)
			if i < 0 || i >= len(runes) {
				return jsvalue.String(""), nil
			}
			return jsvalue.String(string(runes[i])), nil
		}), nil
	case "charCodeAt":
		return nativeFn("charCodeAt", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			i := argInt(args, 0)
			units := utf16Units(s)
			if i < 0 || i >= len(units) {
				return jsvalue.Float(math.NaN()), nil
			}
			return jsvalue.Number(int64(units[i])), nil
		}), nil
	case "codePointAt":
		return nativeFn("codePointAt", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			i := argInt(args, 0)
			if i < 0 || i >= len(runes) {
				return jsvalue.Undefined(), nil
			}
			return jsvalue.Number(int64(runes[i])), nil
		}), nil
	case "at":
		return nativeFn("at", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			i := argInt(args, 0)
			if i < 0 {
				i += len(runes)
			}
			if i < 0 || i >= len(runes) {
				return jsvalue.Undefined(), nil
			}
			return jsvalue.String(string(runes[i])), nil
		}), nil
	case "indexOf":
		return nativeFn("indexOf", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Number(int64(runeIndex(s, strings.Index(s, argStr(args, 0))))), nil
		}), nil
	case "lastIndexOf":
		return nativeFn("lastIndexOf", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Number(int64(runeIndex(s, strings.LastIndex(s, argStr(args, 0))))), nil
		}), nil
	case "includes":
		return nativeFn("includes", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Bool(strings.Contains(s, argStr(args, 0))), nil
		}), nil
	case "startsWith":
		return nativeFn("startsWith", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Bool(strings.HasPrefix(s, argStr(args, 0))), nil
		}), nil
	case "endsWith":
		return nativeFn("endsWith", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Bool(strings.HasSuffix(s, argStr(args, 0))), nil
		}), nil
	case "slice":
		return nativeFn("slice", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			start, end := sliceBounds(len(runes), args)
			return jsvalue.String(string(runes[start:end])), nil
		}), nil
	case "substring":
		return nativeFn("substring", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			start := clampIndex(argInt(args, 0), len(runes))
			end := len(runes)
			if len(args) > 1 && !arg(args, 1).IsUndefined() {
				end = clampIndex(argInt(args, 1), len(runes))
			}
			if start > end {
				start, end = end, start
			}
			return jsvalue.String(string(runes[start:end])), nil
		}), nil
	case "substr":
		return nativeFn("substr", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			start := normalizeIndex(argInt(args, 0), len(runes))
			length := len(runes) - start
			if len(args) > 1 {
				length = argInt(args, 1)
			}
			if length < 0 {
				length = 0
			}
			end := start + length
			if end > len(runes) {
				end = len(runes)
			}
			return jsvalue.String(string(runes[start:end])), nil
		}), nil
	case "toUpperCase", "toLocaleUpperCase":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.String(strings.ToUpper(s)), nil
		}), nil
	case "toLowerCase", "toLocaleLowerCase":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.String(strings.ToLower(s)), nil
		}), nil
	case "trim":
		return nativeFn("trim", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.String(strings.TrimSpace(s)), nil
		}), nil
	case "trimStart":
		return nativeFn("trimStart", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.String(strings.TrimLeft(s, " \t\n\r\f\v")), nil
		}), nil
	case "trimEnd":
		return nativeFn("trimEnd", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.String(strings.TrimRight(s, " \t\n\r\f\v")), nil
		}), nil
	case "padStart", "padEnd":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			target := argInt(args, 0)
			pad := " "
			if len(args) > 1 {
				pad = argStr(args, 1)
			}
			if pad == "" || len(runes) >= target {
				return jsvalue.String(s), nil
			}
			need := target - len(runes)
			var fill []rune
			padRunes := []rune(pad)
			for len(fill) < need {
				fill = append(fill, padRunes...)
			}
			fill = fill[:need]
			if name == "padStart" {
				return jsvalue.String(string(fill) + s), nil
			}
			return jsvalue.String(s + string(fill)), nil
		}), nil
	case "repeat":
		return nativeFn("repeat", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			n := argInt(args, 0)
			if n < 0 {
				return jsvalue.Undefined(), rtErrf("repeat count must be non-negative")
			}
			return jsvalue.String(strings.Repeat(s, n)), nil
		}), nil
	case "concat":
		return nativeFn("concat", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			out := s
			for _, a := range args {
				out += jsvalue.AsString(a)
			}
			return jsvalue.String(out), nil
		}), nil
	case "split":
		return nativeFn("split", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.stringSplit(s, args)
		}), nil
	case "replace":
		return nativeFn("replace", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.stringReplace(s, arg(args, 0), arg(args, 1), false)
		}), nil
	case "replaceAll":
		return nativeFn("replaceAll", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.stringReplace(s, arg(args, 0), arg(args, 1), true)
		}), nil
	case "match":
		return nativeFn("match", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.stringMatch(s, arg(args, 0))
		}), nil
	case "matchAll":
		return nativeFn("matchAll", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.stringMatchAll(s, arg(args, 0))
		}), nil
	case "search":
		return nativeFn("search", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return rt.stringSearch(s, arg(args, 0))
		}), nil
	case "normalize":
		return nativeFn("normalize", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.String(s), nil
		}), nil
	case "localeCompare":
		return nativeFn("localeCompare", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			other := argStr(args, 0)
			switch {
			case s < other:
				return jsvalue.Number(-1), nil
			case s > other:
				return jsvalue.Number(1), nil
			}
			return jsvalue.Number(0), nil
		}), nil
	case "toString", "valueOf":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.String(s), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// runeIndex converts a byte index returned by the strings package into the
// rune index user scripts observe; -1 passes through.
func runeIndex(s string, byteIdx int) int {
	if byteIdx < 0 {
		return -1
	}
	return len([]rune(s[:byteIdx]))
}

func utf16Units(s string) []uint16 {
	var out []uint16
	for _, r := range s {
		if r <= 0xFFFF {
			out = append(out, uint16(r))
			continue
		}
		r -= 0x10000
		out = append(out, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return out
}

func (rt *Runtime) stringSplit(s string, args []jsvalue.Value) (jsvalue.Value, error) {
	sep := arg(args, 0)
	limit := -1
	if len(args) > 1 && !arg(args, 1).IsUndefined() {
		limit = argInt(args, 1)
	}
	var parts []string
	switch {
	case sep.IsUndefined():
		parts = []string{s}
	case sep.Kind() == jsvalue.KindRegExp:
		var err error
		parts, err = rt.regexSplit(sep.Regexp(), s)
		if err != nil {
			return jsvalue.Undefined(), err
		}
	default:
		sepStr := jsvalue.AsString(sep)
		if sepStr == "" {
			for _, r := range s {
				parts = append(parts, string(r))
			}
		} else {
			parts = strings.Split(s, sepStr)
		}
	}
	if limit >= 0 && len(parts) > limit {
		parts = parts[:limit]
	}
	out := jsvalue.NewArray()
	for _, p := range parts {
		out.Items = append(out.Items, jsvalue.String(p))
	}
	return jsvalue.ArrayValue(out), nil
}
