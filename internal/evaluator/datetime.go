package evaluator

import (
	"fmt"
	"math"

	"github.com/cryguy/domharness/internal/jsvalue"
)

// Date is a shared mutable epoch-ms cell (spec.md §3). All components are
// UTC: the harness has no notion of a local timezone, so the local-time
// getters return the UTC values — deterministic across hosts.

type dateFields struct {
	year, month, day, hour, min, sec, ms int
	weekday                              int
}

func fieldsOf(epochMS float64) dateFields {
	sec := int64(math.Floor(epochMS / 1000))
	ms := int(int64(epochMS) - sec*1000)
	if ms < 0 {
		ms += 1000
	}
	days := sec / 86400
	rem := sec % 86400
	if rem < 0 {
		rem += 86400
		days--
	}
	y, mo, d := civilFromDays(days)
	weekday := int((days + 4) % 7) // 1970-01-01 was a Thursday
	if weekday < 0 {
		weekday += 7
	}
	return dateFields{
		year: y, month: mo, day: d,
		hour: int(rem / 3600), min: int(rem % 3600 / 60), sec: int(rem % 60), ms: ms,
		weekday: weekday,
	}
}

func civilFromDays(z int64) (int, int, int) {
	z += 719468
	era := z
	if z < 0 {
		era -= 146096
	}
	era /= 146097
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d := doy - (153*mp+2)/5 + 1
	m := mp + 3
	if mp >= 10 {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}
	return int(y), int(m), int(d)
}

func daysFromCivil(y, m, d int) int64 {
	yy := int64(y)
	if m <= 2 {
		yy--
	}
	era := yy
	if yy < 0 {
		era -= 399
	}
	era /= 400
	yoe := yy - era*400
	var mp int64
	if m > 2 {
		mp = int64(m) - 3
	} else {
		mp = int64(m) + 9
	}
	doy := (153*mp+2)/5 + int64(d) - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

func epochFromFields(f dateFields) float64 {
	days := daysFromCivil(f.year, f.month, f.day)
	return float64(days*86400000 + int64(f.hour)*3600000 + int64(f.min)*60000 + int64(f.sec)*1000 + int64(f.ms))
}

func (rt *Runtime) dateMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	d := base.Date()
	get := func(f func(dateFields) int) jsvalue.Value {
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			if math.IsNaN(d.EpochMS) {
				return jsvalue.Float(math.NaN()), nil
			}
			return jsvalue.Number(int64(f(fieldsOf(d.EpochMS)))), nil
		})
	}
	set := func(apply func(*dateFields, []jsvalue.Value)) jsvalue.Value {
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			f := fieldsOf(d.EpochMS)
			apply(&f, args)
			d.EpochMS = epochFromFields(f)
			return jsvalue.Float(d.EpochMS), nil
		})
	}
	switch name {
	case "getTime", "valueOf":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Float(d.EpochMS), nil
		}), nil
	case "getFullYear", "getUTCFullYear":
		return get(func(f dateFields) int { return f.year }), nil
	case "getMonth", "getUTCMonth":
		return get(func(f dateFields) int { return f.month - 1 }), nil
	case "getDate", "getUTCDate":
		return get(func(f dateFields) int { return f.day }), nil
	case "getDay", "getUTCDay":
		return get(func(f dateFields) int { return f.weekday }), nil
	case "getHours", "getUTCHours":
		return get(func(f dateFields) int { return f.hour }), nil
	case "getMinutes", "getUTCMinutes":
		return get(func(f dateFields) int { return f.min }), nil
	case "getSeconds", "getUTCSeconds":
		return get(func(f dateFields) int { return f.sec }), nil
	case "getMilliseconds", "getUTCMilliseconds":
		return get(func(f dateFields) int { return f.ms }), nil
	case "getTimezoneOffset":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.Number(0), nil
		}), nil
	case "setFullYear":
		return set(func(f *dateFields, args []jsvalue.Value) {
			f.year = argInt(args, 0)
			if len(args) > 1 {
				f.month = argInt(args, 1) + 1
			}
			if len(args) > 2 {
				f.day = argInt(args, 2)
			}
		}), nil
	case "setMonth":
		return set(func(f *dateFields, args []jsvalue.Value) { f.month = argInt(args, 0) + 1 }), nil
	case "setDate":
		return set(func(f *dateFields, args []jsvalue.Value) { f.day = argInt(args, 0) }), nil
	case "setHours":
		return set(func(f *dateFields, args []jsvalue.Value) { f.hour = argInt(args, 0) }), nil
	case "setMinutes":
		return set(func(f *dateFields, args []jsvalue.Value) { f.min = argInt(args, 0) }), nil
	case "setSeconds":
		return set(func(f *dateFields, args []jsvalue.Value) { f.sec = argInt(args, 0) }), nil
	case "setMilliseconds":
		return set(func(f *dateFields, args []jsvalue.Value) { f.ms = argInt(args, 0) }), nil
	case "setTime":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			d.EpochMS = jsvalue.ToNumberFloat(arg(args, 0))
			return jsvalue.Float(d.EpochMS), nil
		}), nil
	case "toISOString":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			if math.IsNaN(d.EpochMS) {
				return jsvalue.Undefined(), rtErrf("invalid time value")
			}
			return jsvalue.String(jsvalue.FormatDateISOLike(d.EpochMS)), nil
		}), nil
	case "toJSON":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			if math.IsNaN(d.EpochMS) {
				return jsvalue.Null(), nil
			}
			return jsvalue.String(jsvalue.FormatDateISOLike(d.EpochMS)), nil
		}), nil
	case "toString", "toUTCString", "toLocaleString":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			return jsvalue.String(jsvalue.AsString(base)), nil
		}), nil
	case "toLocaleDateString":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			f := fieldsOf(d.EpochMS)
			return jsvalue.String(fmt.Sprintf("%d/%d/%d", f.month, f.day, f.year)), nil
		}), nil
	case "toLocaleTimeString":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			f := fieldsOf(d.EpochMS)
			return jsvalue.String(fmt.Sprintf("%02d:%02d:%02d", f.hour, f.min, f.sec)), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}

// parseDateString accepts the ISO-8601 subset the corpus uses plus bare
// dates; anything unrecognized yields NaN.
func parseDateString(s string) float64 {
	var y, mo, dd, h, mi, sec, ms int
	mo, dd = 1, 1
	if n, _ := fmt.Sscanf(s, "%d-%d-%dT%d:%d:%d.%dZ", &y, &mo, &dd, &h, &mi, &sec, &ms); n >= 6 {
		return epochFromFields(dateFields{year: y, month: mo, day: dd, hour: h, min: mi, sec: sec, ms: ms})
	}
	if n, _ := fmt.Sscanf(s, "%d-%d-%dT%d:%d:%d", &y, &mo, &dd, &h, &mi, &sec); n >= 5 {
		return epochFromFields(dateFields{year: y, month: mo, day: dd, hour: h, min: mi, sec: sec})
	}
	if n, _ := fmt.Sscanf(s, "%d-%d-%d", &y, &mo, &dd); n == 3 {
		return epochFromFields(dateFields{year: y, month: mo, day: dd})
	}
	if n, _ := fmt.Sscanf(s, "%d/%d/%d", &mo, &dd, &y); n == 3 {
		return epochFromFields(dateFields{year: y, month: mo, day: dd})
	}
	return math.NaN()
}
