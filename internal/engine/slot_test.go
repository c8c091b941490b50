package engine

import "testing"

func TestNpw2(t *testing.T) {
	cases := []struct {
		cap  uint32
		want uint8
	}{
		{1, 0}, {2, 1}, {3, 2}, {4, 2}, {5, 3}, {64, 6}, {65, 7},
	}
	for _, c := range cases {
		if got := npw2(c.cap); got != c.want {
			t.Errorf("npw2(%d) = %d, want %d", c.cap, got, c.want)
		}
	}
}

func TestSlotArenaAllocExhaustion(t *testing.T) {
	a := newSlotArena(2)
	i1 := a.alloc()
	i2 := a.alloc()
	if i1 == noRef || i2 == noRef || i1 == i2 {
		t.Fatalf("expected two distinct slots, got %d, %d", i1, i2)
	}
	if a.alloc() != noRef {
		t.Fatal("expected noRef once arena is exhausted")
	}
	a.release(i1)
	if a.alloc() == noRef {
		t.Fatal("expected a freed slot to be reusable")
	}
}

// TestIDReuseCounter: a public id computed before release must not
// resolve to the slot after it has been reused.
func TestIDReuseCounter(t *testing.T) {
	a := newSlotArena(4)
	idx := a.alloc()
	staleID := a.publicID(idx)

	a.release(idx)
	idx2 := a.alloc()
	if idx2 != idx {
		t.Fatalf("expected the most recently freed slot (%d) to be reused, got %d", idx, idx2)
	}

	if _, ok := a.lookup(staleID); ok {
		t.Fatal("stale id resolved after slot reuse")
	}

	freshID := a.publicID(idx2)
	if gotIdx, ok := a.lookup(freshID); !ok || gotIdx != idx2 {
		t.Fatalf("lookup(freshID) = (%d, %v), want (%d, true)", gotIdx, ok, idx2)
	}
}

func TestIDReuseWrapsPastZero(t *testing.T) {
	a := newSlotArena(1)
	idx := a.alloc()
	a.release(idx)
	for i := 0; i < 256; i++ {
		idx = a.alloc()
		if a.slots[idx].id == 0 {
			t.Fatal("reuse counter must never rest at 0 (reserved for unused)")
		}
		a.release(idx)
	}
}

func TestLookupRejectsOutOfRange(t *testing.T) {
	a := newSlotArena(3) // 2 index bits, so index 3 is out of range
	if _, ok := a.lookup(^uint32(0)); ok {
		t.Fatal("lookup accepted an out-of-range id")
	}
}
