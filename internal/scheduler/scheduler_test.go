package scheduler

import "testing"

func TestMicrotasksDrainBeforeTimers(t *testing.T) {
	s := New(1)
	var order []string
	s.SetTimer(0, false, func([]any) { order = append(order, "timer") }, nil)
	s.QueueMicrotask(func() { order = append(order, "micro") })
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "micro" || order[1] != "timer" {
		t.Fatalf("expected [micro timer], got %v", order)
	}
}

func TestEqualDueAtFIFOOrder(t *testing.T) {
	s := New(1)
	var order []int
	s.SetTimer(5, false, func([]any) { order = append(order, 1) }, nil)
	s.SetTimer(5, false, func([]any) { order = append(order, 2) }, nil)
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected FIFO [1 2], got %v", order)
	}
}

func TestDueAtOrdering(t *testing.T) {
	s := New(1)
	var order []int
	s.SetTimer(20, false, func([]any) { order = append(order, 20) }, nil)
	s.SetTimer(5, false, func([]any) { order = append(order, 5) }, nil)
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if order[0] != 5 || order[1] != 20 {
		t.Fatalf("expected [5 20], got %v", order)
	}
}

func TestIntervalReschedulesFromDueAtNotNow(t *testing.T) {
	s := New(1)
	count := 0
	var id int64
	id = s.SetTimer(10, true, func([]any) {
		count++
		if count >= 3 {
			s.ClearTimer(id)
		}
	}, nil)
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("expected 3 firings, got %d", count)
	}
	if s.NowMS != 30 {
		t.Fatalf("expected now_ms=30 (10+10+10), got %d", s.NowMS)
	}
}

func TestClearTimeoutDuringOwnCallbackPreventsReschedule(t *testing.T) {
	s := New(1)
	count := 0
	var id int64
	id = s.SetTimer(5, true, func([]any) {
		count++
		s.ClearTimer(id)
	}, nil)
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected interval canceled after first run, got %d firings", count)
	}
}

func TestNegativeDelayTreatedAsZero(t *testing.T) {
	s := New(1)
	fired := false
	s.SetTimer(-100, false, func([]any) { fired = true }, nil)
	s.Flush()
	if !fired {
		t.Errorf("expected negative delay timer to fire immediately")
	}
}

func TestStepLimitOverflowIsFatal(t *testing.T) {
	s := New(1)
	s.StepLimit = 3
	var id int64
	id = s.SetTimer(1, true, func([]any) {}, nil)
	_ = id
	err := s.Flush()
	if err == nil {
		t.Fatalf("expected step-limit overflow error")
	}
}

func TestRandomSeedZeroRemapped(t *testing.T) {
	s := New(0)
	v := s.Random()
	if v < 0 || v >= 1 {
		t.Errorf("expected random in [0,1), got %v", v)
	}
}

func TestDeterministicAcrossInstances(t *testing.T) {
	s1 := New(42)
	s2 := New(42)
	for i := 0; i < 5; i++ {
		if s1.Random() != s2.Random() {
			t.Fatalf("expected deterministic RNG sequence for same seed")
		}
	}
}
