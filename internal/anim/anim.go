// Package anim evaluates the LED animations. Every evaluator writes one
// brightness in [0,1] per LED; Instance dispatches by animation index and
// applies the global output window.
package anim

import (
	"sort"

	"github.com/coreman2200/branchlight/internal/layout"
	"github.com/coreman2200/branchlight/internal/params"
	"github.com/coreman2200/branchlight/internal/schema"
)

// Animation renders one pattern into dst.
type Animation interface {
	Index() uint8
	Name() string
	Render(dst []float64, t float64, ps *params.Set)
}

type Registry struct{ m map[uint8]Animation }

func NewRegistry() *Registry { return &Registry{m: map[uint8]Animation{}} }

func (r *Registry) Register(a Animation) {
	if a == nil {
		return
	}
	r.m[a.Index()] = a
}

func (r *Registry) Get(index uint8) (Animation, bool) { a, ok := r.m[index]; return a, ok }

// List returns the registered indices in ascending order.
func (r *Registry) List() []uint8 {
	out := make([]uint8, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type named uint8

func (n named) Index() uint8 { return uint8(n) }

func (n named) Name() string {
	if a, ok := schema.FindAnim(uint8(n)); ok {
		return a.Name
	}
	return "unknown"
}

type staticAnim struct{ named }

func (staticAnim) Render(dst []float64, _ float64, ps *params.Set) { Static(dst, ps.Level) }

type waveAnim struct{ named }

func (waveAnim) Render(dst []float64, t float64, ps *params.Set) {
	Wave(dst, t, ps.Speed*ps.GlobalSpeed, ps.Phase, ps.Branch, ps.Invert)
}

type pulseAnim struct{ named }

func (pulseAnim) Render(dst []float64, t float64, ps *params.Set) {
	Pulse(dst, t, ps.Speed*ps.GlobalSpeed, ps.Phase, ps.Branch)
}

type chaseAnim struct{ named }

func (chaseAnim) Render(dst []float64, t float64, ps *params.Set) {
	Chase(dst, t, ps.Speed*ps.GlobalSpeed, ps.Width, ps.Branch)
}

type singleAnim struct{ named }

func (singleAnim) Render(dst []float64, _ float64, ps *params.Set) { Single(dst, ps.SingleIndex) }

type sparkleAnim struct {
	named
	sim *Sparkle
}

func (s sparkleAnim) Render(dst []float64, t float64, ps *params.Set) {
	s.sim.Render(dst, t, ps.Speed*ps.GlobalSpeed, ps.RandomMode, ps.MinSparkles, ps.MaxSparkles)
}

type ridgeAnim struct{ named }

func (ridgeAnim) Render(dst []float64, t float64, ps *params.Set) {
	RidgeField{
		Speed:       ps.Speed,
		GlobalSpeed: ps.GlobalSpeed,
		Width:       ps.Width,
		Delta:       ps.Delta,
		BranchMode:  ps.Branch,
		CalMin:      ps.CalMin,
		CalMax:      ps.CalMax,
	}.Render(dst, t)
}

// Instance is one animated output with its own simulation state. A leader and
// a follower running in the same process each need their own Instance. Not
// safe for concurrent use.
type Instance struct {
	reg     *Registry
	sparkle *Sparkle
}

func NewInstance() *Instance {
	sp := NewSparkle()
	reg := NewRegistry()
	reg.Register(staticAnim{named(schema.AnimStatic)})
	reg.Register(waveAnim{named(schema.AnimWave)})
	reg.Register(pulseAnim{named(schema.AnimPulse)})
	reg.Register(chaseAnim{named(schema.AnimChase)})
	reg.Register(singleAnim{named(schema.AnimSingle)})
	reg.Register(sparkleAnim{named(schema.AnimSparkle), sp})
	reg.Register(ridgeAnim{named(schema.AnimPerlin)})
	return &Instance{reg: reg, sparkle: sp}
}

func (in *Instance) Registry() *Registry { return in.reg }

// Sparkle exposes the particle state, mainly for diagnostics.
func (in *Instance) Sparkle() *Sparkle { return in.sparkle }

// Evaluate writes n values into out for the given animation and time in
// seconds. n is capped to layout.MaxLEDs and len(out). Unknown indices clear
// the frame.
func (in *Instance) Evaluate(index uint8, t float64, n int, ps *params.Set, out []float64) {
	if n > layout.MaxLEDs {
		n = layout.MaxLEDs
	}
	if n > len(out) {
		n = len(out)
	}
	if n <= 0 {
		return
	}
	dst := out[:n]
	if a, ok := in.reg.Get(index); ok {
		a.Render(dst, t, ps)
	} else {
		clear(dst)
	}
	Rescale(dst, ps.GlobalMin, ps.GlobalMax)
}

// Rescale maps [0,1] onto [lo,hi] and clamps. hi <= lo collapses the output to lo.
func Rescale(dst []float64, lo, hi float64) {
	scale := 0.0
	if hi > lo {
		scale = hi - lo
	}
	for i, v := range dst {
		dst[i] = clamp01(lo + v*scale)
	}
}
