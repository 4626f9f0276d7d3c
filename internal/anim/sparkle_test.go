package anim

import (
	"testing"

	"github.com/coreman2200/branchlight/internal/layout"
	"github.com/coreman2200/branchlight/internal/params"
	"github.com/coreman2200/branchlight/internal/schema"
)

func TestSparkleStaysWithinBounds(t *testing.T) {
	in := NewInstance()
	ps := params.Defaults()
	ps.Speed = 1
	ps.MinSparkles = 4
	ps.MaxSparkles = 8

	const fps = 60
	out := frame()
	var sum, frames int
	for f := 0; f < 120*fps; f++ {
		ts := float64(f) / fps
		in.Evaluate(schema.AnimSparkle, ts, layout.MaxLEDs, ps, out)
		for i, v := range out {
			if v < 0 || v > 1 {
				t.Fatalf("frame %d led %d out of range: %v", f, i, v)
			}
		}
		active := in.Sparkle().Active()
		if active > ps.MaxSparkles {
			t.Fatalf("frame %d: %d active > max %d", f, active, ps.MaxSparkles)
		}
		if ts >= 10 {
			sum += active
			frames++
		}
	}
	mean := float64(sum) / float64(frames)
	if mean < float64(ps.MinSparkles-1) {
		t.Fatalf("mean active %.2f below min %d", mean, ps.MinSparkles)
	}
}

func TestSparkleDefaultsWhenUnset(t *testing.T) {
	s := NewSparkle()
	out := frame()
	for f := 0; f < 600; f++ {
		s.Render(out, float64(f)/30, 1, true, 0, 0)
		if s.Active() > sparkleDefaultMax {
			t.Fatalf("frame %d: %d active", f, s.Active())
		}
	}
}

func TestSparkleInstancesAreIndependent(t *testing.T) {
	a, b := NewInstance(), NewInstance()
	ps := params.Defaults()
	ps.Speed = 1
	outA, outB := frame(), frame()
	for f := 0; f < 200; f++ {
		a.Evaluate(schema.AnimSparkle, float64(f)/50, layout.MaxLEDs, ps, outA)
	}
	// b has not been stepped, its first frame is the seeded state
	b.Evaluate(schema.AnimSparkle, 0, layout.MaxLEDs, ps, outB)
	c := NewInstance()
	outC := frame()
	c.Evaluate(schema.AnimSparkle, 0, layout.MaxLEDs, ps, outC)
	for i := range outB {
		if outB[i] != outC[i] {
			t.Fatalf("fresh instances diverged at %d: %v vs %v", i, outB[i], outC[i])
		}
	}
}

func TestSparkleClearsBeyondCount(t *testing.T) {
	s := NewSparkle()
	out := frame()
	s.Render(out, 0, 1, false, 0, 0)
	small := make([]float64, 5)
	s.Render(small, 0.1, 1, false, 0, 0)
	for i := 5; i < layout.MaxLEDs; i++ {
		if s.sparks[i].active {
			t.Fatalf("spark %d still active", i)
		}
	}
}

func TestSparkleTimeReset(t *testing.T) {
	s := NewSparkle()
	out := frame()
	s.Render(out, 100, 1, false, 0, 0)
	before := append([]float64(nil), out...)
	// a backwards step is treated as zero elapsed time
	s.Render(out, 50, 1, false, 0, 0)
	for i := range out {
		if out[i] > before[i]+1e-9 && before[i] != 0 {
			t.Fatalf("led %d brightened on zero dt: %v -> %v", i, before[i], out[i])
		}
	}
}

func TestSparkleSeedsConfiguredMinimum(t *testing.T) {
	s := NewSparkle()
	s.seedSparks(3)
	if n := s.Active(); n < 1 || n > 3 {
		t.Fatalf("seeded %d sparks, want 1..3", n)
	}
	s.Reset()
	s.seedSparks(sparkleDefaultMin)
	if n := s.Active(); n < 1 || n > sparkleDefaultMin {
		t.Fatalf("seeded %d sparks, want 1..%d", n, sparkleDefaultMin)
	}
}
