package engine

import (
	"math/rand"
	"testing"
)

func TestPayloadArenaBumpThenReuse(t *testing.T) {
	buf := make([]byte, 256)
	a := newPayloadArena(buf)

	off1, size1, reused1, ok := a.alloc(16)
	if !ok || reused1 {
		t.Fatalf("first alloc: ok=%v reused=%v, want ok=true reused=false", ok, reused1)
	}
	if size1 < 16 {
		t.Fatalf("allocSize %d smaller than requested 16", size1)
	}

	a.dealloc(off1, size1)

	off2, size2, reused2, ok := a.alloc(16)
	if !ok || !reused2 {
		t.Fatalf("second alloc: ok=%v reused=%v, want ok=true reused=true", ok, reused2)
	}
	if off2 != off1 || size2 != size1 {
		t.Fatalf("expected the freed block to be reused exactly, got off=%d size=%d want off=%d size=%d", off2, size2, off1, size1)
	}
}

func TestPayloadArenaExhaustion(t *testing.T) {
	a := newPayloadArena(make([]byte, 32))
	if _, _, _, ok := a.alloc(64); ok {
		t.Fatal("expected alloc larger than the arena to fail")
	}
}

// TestFragmentationStability: alternating alloc/dealloc across a
// handful of distinct sizes many times from a fixed-size buffer never
// fails and never leaks capacity.
func TestFragmentationStability(t *testing.T) {
	const bufSize = 64 * 1024
	sizes := []uint32{16, 32, 64}
	a := newPayloadArena(make([]byte, bufSize))

	rng := rand.New(rand.NewSource(1))
	live := map[uint32]uint32{} // offset -> size

	for i := 0; i < 10_000; i++ {
		size := sizes[rng.Intn(len(sizes))]
		off, allocSize, _, ok := a.alloc(size)
		if !ok {
			t.Fatalf("iteration %d: alloc(%d) failed in a %d-byte arena", i, size, bufSize)
		}
		live[off] = allocSize

		// Immediately free a random live allocation to keep churn
		// representative of real alloc/dealloc interleaving.
		for freeOff, freeSize := range live {
			a.dealloc(freeOff, freeSize)
			delete(live, freeOff)
			break
		}
	}
}
