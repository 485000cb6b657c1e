package jsvalue

import (
	"math"
	"testing"
)

func TestSameValueZero_NaNAndZero(t *testing.T) {
	nan := Float(math.NaN())
	if !SameValueZero(nan, nan) {
		t.Errorf("NaN should SameValueZero itself")
	}
	posZero := Float(0)
	negZero := Float(math.Copysign(0, -1))
	if !SameValueZero(posZero, negZero) {
		t.Errorf("+0 should SameValueZero -0")
	}
}

func TestStrictEquals_NaNNotEqual(t *testing.T) {
	nan := Float(math.NaN())
	if StrictEquals(nan, nan) {
		t.Errorf("NaN should not === itself")
	}
}

func TestStrictEquals_DifferentKinds(t *testing.T) {
	if StrictEquals(String("1"), Number(1)) {
		t.Errorf("string and number should never be ===")
	}
	if !StrictEquals(Number(1), Float(1)) {
		t.Errorf("Number(1) and Float(1) should be === (both numeric)")
	}
}

func TestStrictEquals_SharedContainers(t *testing.T) {
	arr := NewArray(Number(1))
	a := ArrayValue(arr)
	b := ArrayValue(arr)
	c := ArrayValue(NewArray(Number(1)))
	if !StrictEquals(a, b) {
		t.Errorf("same array pointer should be ===")
	}
	if StrictEquals(a, c) {
		t.Errorf("different array pointers should not be ===, even with equal contents")
	}
}

func TestAsString_Array(t *testing.T) {
	arr := NewArray(Number(1), Undefined(), String("x"))
	got := AsString(ArrayValue(arr))
	want := "1,,x"
	if got != want {
		t.Errorf("AsString(array) = %q, want %q", got, want)
	}
}

func TestAsString_Object(t *testing.T) {
	if AsString(ObjectValue(NewObject())) != "[object Object]" {
		t.Errorf("AsString(object) mismatch")
	}
}

func TestToInt32ForBitwise_Wraps(t *testing.T) {
	got := ToInt32ForBitwise(Float(4294967296 + 5))
	if got != 5 {
		t.Errorf("ToInt32ForBitwise = %d, want 5", got)
	}
	got = ToInt32ForBitwise(Float(3000000000))
	var u32 uint32 = 3000000000
	if got != int32(u32) {
		t.Errorf("ToInt32ForBitwise(3e9) = %d", got)
	}
}

func TestObject_InsertionOrder(t *testing.T) {
	o := NewObject()
	o.Set("b", Number(1))
	o.Set("a", Number(2))
	o.Set("b", Number(3))
	keys := o.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Errorf("Keys() = %v, want [b a] (re-set must not move key)", keys)
	}
}

func TestObject_HiddenKeysExcluded(t *testing.T) {
	o := NewObject()
	o.Set("visible", Number(1))
	o.Set(HiddenKey("callable_kind"), String("storage-method"))
	keys := o.Keys()
	if len(keys) != 1 || keys[0] != "visible" {
		t.Errorf("Keys() should exclude hidden keys, got %v", keys)
	}
}

func TestMapValue_SameValueZeroKeys(t *testing.T) {
	m := NewMap()
	m.Set(Float(math.NaN()), String("a"))
	if !m.Has(Float(math.NaN())) {
		t.Errorf("map should treat NaN keys as identical")
	}
	m.Set(Float(0), String("b"))
	if v, ok := m.Get(Float(math.Copysign(0, -1))); !ok || v.Str() != "b" {
		t.Errorf("map should treat +0/-0 keys as identical")
	}
}

func TestFormData_AppendGetAll(t *testing.T) {
	fd := &FormData{}
	fd.Append("a", String("1"))
	fd.Append("a", String("2"))
	all := fd.GetAll("a")
	if len(all) != 2 {
		t.Fatalf("GetAll returned %d entries, want 2", len(all))
	}
}

func TestFormatDateISOLike(t *testing.T) {
	got := FormatDateISOLike(0)
	want := "1970-01-01T00:00:00.000Z"
	if got != want {
		t.Errorf("FormatDateISOLike(0) = %q, want %q", got, want)
	}
}
