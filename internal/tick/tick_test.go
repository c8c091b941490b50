package tick

import (
	"math"
	"testing"
	"time"
)

func TestDiff(t *testing.T) {
	cases := []struct {
		name string
		a, b uint32
		want int32
	}{
		{"equal", 100, 100, 0},
		{"forward", 150, 100, 50},
		{"backward", 100, 150, -50},
		{"wrap forward", 10, math.MaxUint32 - 5, 16},
		{"wrap backward", math.MaxUint32 - 5, 10, -16},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Diff(c.a, c.b); got != c.want {
				t.Fatalf("Diff(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(100, 150); got != 0 {
		t.Fatalf("Clamp(past deadline) = %d, want 0", got)
	}
	if got := Clamp(150, 100); got != 50 {
		t.Fatalf("Clamp(future deadline) = %d, want 50", got)
	}
	if got := Clamp(10, math.MaxUint32-5); got != 16 {
		t.Fatalf("Clamp across wrap = %d, want 16", got)
	}
}

func TestRealTickerMonotonic(t *testing.T) {
	rt := &RealTicker{}
	first := rt.Tick()
	time.Sleep(5 * time.Millisecond)
	second := rt.Tick()
	if Diff(second, first) < 0 {
		t.Fatalf("RealTicker went backwards: %d -> %d", first, second)
	}
}
