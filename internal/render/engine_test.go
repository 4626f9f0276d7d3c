package render

import (
	"math"
	"testing"

	"github.com/coreman2200/branchlight/internal/layout"
)

func constant(v float64) Source {
	return SourceFunc(func(_ float64, out []float64) {
		for i := range out {
			out[i] = v
		}
	})
}

// fakeDriver captures the last frame written.
type fakeDriver struct {
	last []float64
}

func (d *fakeDriver) Write(buf []float64) error {
	d.last = append(d.last[:0], buf...)
	return nil
}

func TestMixAlpha(t *testing.T) {
	a := []float64{1, 0, 0.5}
	b := []float64{0, 1, 0.5}
	dst := make([]float64, 3)
	Mix(dst, a, b, 0.25)
	want := []float64{0.75, 0.25, 0.5}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-12 {
			t.Fatalf("dst[%d]=%v want %v", i, dst[i], want[i])
		}
	}
}

func TestEngineRenderOnceAndCrossfade(t *testing.T) {
	drv := &fakeDriver{}
	e, err := NewEngine(layout.Default(), drv, constant(1), nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	e.SetPost(PostPipeline{})

	if err := e.RenderOnce(-1); err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(drv.last) != layout.MaxLEDs || drv.last[0] != 1 {
		t.Fatalf("expected full frame, got %v", drv.last)
	}

	e.ArmNext(constant(0))
	e.SetCrossfade(0.5)
	if err := e.RenderOnce(0); err != nil {
		t.Fatalf("render 2: %v", err)
	}
	if math.Abs(drv.last[3]-0.5) > 1e-9 {
		t.Fatalf("expected half during fade, got %v", drv.last[3])
	}

	e.SetCrossfade(1.0)
	if err := e.RenderOnce(0); err != nil {
		t.Fatalf("render 3: %v", err)
	}
	if drv.last[3] != 0 {
		t.Fatalf("expected next promoted, got %v", drv.last[3])
	}
	if _, id := e.Frame(); id != 3 {
		t.Fatalf("frame id %d", id)
	}
}

func TestEngineBrightnessAndGamma(t *testing.T) {
	drv := &fakeDriver{}
	e, _ := NewEngine(layout.Default(), drv, constant(1), nil)
	e.SetBrightness(0.5)
	e.SetParam(ParamGamma, 2)
	if err := e.RenderOnce(0); err != nil {
		t.Fatal(err)
	}
	if math.Abs(drv.last[0]-0.25) > 1e-12 {
		t.Fatalf("expected 0.5^2, got %v", drv.last[0])
	}
	e.SetBrightness(7)
	if e.Brightness() != 1 {
		t.Fatalf("brightness not clamped: %v", e.Brightness())
	}
}

func TestEngineWritesWiringOrder(t *testing.T) {
	l := layout.Default()
	l.Wiring.FlipOddBranches = true
	drv := &fakeDriver{}
	src := SourceFunc(func(_ float64, out []float64) {
		clear(out)
		out[l.Index(1, 0)] = 1
	})
	e, _ := NewEngine(l, drv, src, nil)
	e.SetPost(PostPipeline{})
	if err := e.RenderOnce(0); err != nil {
		t.Fatal(err)
	}
	if drv.last[l.Index(1, layout.LedsPerBranch-1)] != 1 {
		t.Fatalf("expected remapped frame, got %v", drv.last)
	}
	frame, _ := e.Frame()
	if frame[l.Index(1, 0)] != 1 {
		t.Fatalf("Frame should stay in logical order")
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("b", constant(0))
	reg.Register("a", constant(1))
	reg.Register("nil", nil)
	if got := reg.List(); len(got) != 2 || got[0] != "a" {
		t.Fatalf("list=%v", got)
	}
	e, _ := NewEngine(layout.Default(), nil, nil, nil)
	if err := e.SetNamed("missing", reg); err == nil {
		t.Fatal("expected error")
	}
	if err := e.SetNamed("a", reg); err != nil {
		t.Fatal(err)
	}
}
