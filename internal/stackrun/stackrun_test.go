package stackrun

import (
	"errors"
	"testing"
)

func TestDoReturnsValue(t *testing.T) {
	v, err := Do(func() (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Fatalf("got %d, %v", v, err)
	}
}

func TestDoPropagatesError(t *testing.T) {
	sentinel := errors.New("boom")
	_, err := Do(func() (int, error) { return 0, sentinel })
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}

func TestDoRecoversPanic(t *testing.T) {
	_, err := Do(func() (int, error) { panic("nope") })
	if err == nil {
		t.Fatalf("expected panic to be converted into an error")
	}
}

func TestDoVoid(t *testing.T) {
	ran := false
	err := DoVoid(func() error { ran = true; return nil })
	if err != nil || !ran {
		t.Fatalf("expected DoVoid to run fn, ran=%v err=%v", ran, err)
	}
}

func TestDeepRecursionDoesNotOverflowCallingGoroutine(t *testing.T) {
	var depth func(n int) int
	depth = func(n int) int {
		if n == 0 {
			return 0
		}
		return 1 + depth(n-1)
	}
	v, err := Do(func() (int, error) { return depth(200000), nil })
	if err != nil || v != 200000 {
		t.Fatalf("got %d, %v", v, err)
	}
}
