package evaluator

import (
	"encoding/binary"
	"math"
	"math/big"
	"strconv"

	"github.com/cryguy/domharness/internal/jsvalue"
)

// TypedArray views are byte-backed against their ArrayBuffer, little-endian
// like every platform the harness models.

func typedElemSize(kind string) int {
	switch kind {
	case "Int8", "Uint8", "Uint8Clamped":
		return 1
	case "Int16", "Uint16":
		return 2
	case "Int32", "Uint32", "Float32":
		return 4
	default: // Float64, BigInt64, BigUint64
		return 8
	}
}

func newTypedArray(kind string, length int) *jsvalue.TypedArray {
	size := typedElemSize(kind)
	return &jsvalue.TypedArray{
		Buffer:   &jsvalue.ArrayBuffer{Data: make([]byte, length*size)},
		Length:   length,
		ElemKind: kind,
	}
}

func typedGetIndex(t *jsvalue.TypedArray, i int) jsvalue.Value {
	if i < 0 || i >= t.Length {
		return jsvalue.Undefined()
	}
	size := typedElemSize(t.ElemKind)
	off := t.ByteOffset + i*size
	data := t.Buffer.Data
	if off+size > len(data) {
		return jsvalue.Undefined()
	}
	switch t.ElemKind {
	case "Int8":
		return jsvalue.Number(int64(int8(data[off])))
	case "Uint8", "Uint8Clamped":
		return jsvalue.Number(int64(data[off]))
	case "Int16":
		return jsvalue.Number(int64(int16(binary.LittleEndian.Uint16(data[off:]))))
	case "Uint16":
		return jsvalue.Number(int64(binary.LittleEndian.Uint16(data[off:])))
	case "Int32":
		return jsvalue.Number(int64(int32(binary.LittleEndian.Uint32(data[off:]))))
	case "Uint32":
		return jsvalue.Number(int64(binary.LittleEndian.Uint32(data[off:])))
	case "Float32":
		return jsvalue.Float(float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))))
	case "Float64":
		return jsvalue.Float(math.Float64frombits(binary.LittleEndian.Uint64(data[off:])))
	case "BigInt64":
		return jsvalue.BigIntValue(big.NewInt(int64(binary.LittleEndian.Uint64(data[off:]))))
	case "BigUint64":
		return jsvalue.BigIntValue(new(big.Int).SetUint64(binary.LittleEndian.Uint64(data[off:])))
	}
	return jsvalue.Undefined()
}

func typedSetIndex(t *jsvalue.TypedArray, i int, v jsvalue.Value) error {
	if i < 0 || i >= t.Length {
		return nil
	}
	size := typedElemSize(t.ElemKind)
	off := t.ByteOffset + i*size
	data := t.Buffer.Data
	if off+size > len(data) {
		return nil
	}
	switch t.ElemKind {
	case "BigInt64", "BigUint64":
		if v.Kind() != jsvalue.KindBigInt {
			return rtErrf("cannot convert %s to a BigInt", v.Kind())
		}
		binary.LittleEndian.PutUint64(data[off:], uint64(v.BigInt().Int64()))
		return nil
	}
	f := jsvalue.ToNumberFloat(v)
	switch t.ElemKind {
	case "Int8", "Uint8":
		data[off] = byte(int64(clampFinite(f)))
	case "Uint8Clamped":
		c := clampFinite(f)
		if c < 0 {
			c = 0
		}
		if c > 255 {
			c = 255
		}
		data[off] = byte(math.Round(c))
	case "Int16", "Uint16":
		binary.LittleEndian.PutUint16(data[off:], uint16(int64(clampFinite(f))))
	case "Int32", "Uint32":
		binary.LittleEndian.PutUint32(data[off:], uint32(int64(clampFinite(f))))
	case "Float32":
		binary.LittleEndian.PutUint32(data[off:], math.Float32bits(float32(f)))
	case "Float64":
		binary.LittleEndian.PutUint64(data[off:], math.Float64bits(f))
	}
	return nil
}

func clampFinite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Trunc(f)
}

func (rt *Runtime) typedMember(base jsvalue.Value, name string) (jsvalue.Value, error) {
	t := base.Typed()
	if idx, err := strconv.Atoi(name); err == nil {
		return typedGetIndex(t, idx), nil
	}
	switch name {
	case "length":
		return jsvalue.Number(int64(t.Length)), nil
	case "byteLength":
		return jsvalue.Number(int64(t.Length * typedElemSize(t.ElemKind))), nil
	case "byteOffset":
		return jsvalue.Number(int64(t.ByteOffset)), nil
	case "buffer":
		return jsvalue.ArrayBufferValue(t.Buffer), nil
	case "set":
		return nativeFn("set", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			src := arg(args, 0)
			offset := 0
			if len(args) > 1 {
				offset = argInt(args, 1)
			}
			items, err := rt.iterateValue(src)
			if err != nil {
				return jsvalue.Undefined(), err
			}
			for i, it := range items {
				if err := typedSetIndex(t, offset+i, it); err != nil {
					return jsvalue.Undefined(), err
				}
			}
			return jsvalue.Undefined(), nil
		}), nil
	case "subarray", "slice":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			start, end := sliceBounds(t.Length, args)
			size := typedElemSize(t.ElemKind)
			if name == "subarray" {
				return jsvalue.TypedArrayValue(&jsvalue.TypedArray{
					Buffer: t.Buffer, ByteOffset: t.ByteOffset + start*size,
					Length: end - start, ElemKind: t.ElemKind,
				}), nil
			}
			out := newTypedArray(t.ElemKind, end-start)
			copy(out.Buffer.Data, t.Buffer.Data[t.ByteOffset+start*size:t.ByteOffset+end*size])
			return jsvalue.TypedArrayValue(out), nil
		}), nil
	case "fill":
		return nativeFn("fill", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			var bounds []jsvalue.Value
			if len(args) > 1 {
				bounds = args[1:]
			}
			start, end := sliceBounds(t.Length, bounds)
			for i := start; i < end; i++ {
				if err := typedSetIndex(t, i, arg(args, 0)); err != nil {
					return jsvalue.Undefined(), err
				}
			}
			return base, nil
		}), nil
	case "indexOf", "includes":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			for i := 0; i < t.Length; i++ {
				if jsvalue.SameValueZero(typedGetIndex(t, i), arg(args, 0)) {
					if name == "includes" {
						return jsvalue.Bool(true), nil
					}
					return jsvalue.Number(int64(i)), nil
				}
			}
			if name == "includes" {
				return jsvalue.Bool(false), nil
			}
			return jsvalue.Number(-1), nil
		}), nil
	case "join":
		return nativeFn("join", func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			sep := ","
			if len(args) > 0 {
				sep = argStr(args, 0)
			}
			out := ""
			for i := 0; i < t.Length; i++ {
				if i > 0 {
					out += sep
				}
				out += jsvalue.AsString(typedGetIndex(t, i))
			}
			return jsvalue.String(out), nil
		}), nil
	case "map", "filter", "forEach":
		return nativeFn(name, func(this jsvalue.Value, args []jsvalue.Value) (jsvalue.Value, error) {
			cb := arg(args, 0)
			var kept []jsvalue.Value
			for i := 0; i < t.Length; i++ {
				it := typedGetIndex(t, i)
				v, err := rt.callFunction(cb, arg(args, 1), []jsvalue.Value{it, jsvalue.Number(int64(i)), base})
				if err != nil {
					return jsvalue.Undefined(), err
				}
				switch name {
				case "map":
					kept = append(kept, v)
				case "filter":
					if jsvalue.ToBool(v) {
						kept = append(kept, it)
					}
				}
			}
			if name == "forEach" {
				return jsvalue.Undefined(), nil
			}
			out := newTypedArray(t.ElemKind, len(kept))
			for i, it := range kept {
				if err := typedSetIndex(out, i, it); err != nil {
					return jsvalue.Undefined(), err
				}
			}
			return jsvalue.TypedArrayValue(out), nil
		}), nil
	}
	return jsvalue.Undefined(), nil
}
