// Package render turns animation sources into LED frames: crossfade, post
// processing, wiring order, then the driver.
package render

import (
	"errors"
	"sync"
	"time"

	"github.com/coreman2200/branchlight/internal/layout"
)

// Engine renders frames from an active Source, optionally crossfading into a
// next Source, applies post-processing, then writes to the driver.
type Engine struct {
	mu sync.Mutex

	Layout layout.Layout
	Drv    Driver
	U      *Uniforms

	active Source
	next   Source

	bufA []float64
	bufB []float64
	out  []float64
	wire []float64

	alpha  float64
	fading bool

	frameID uint64
	t0      time.Time
	post    PostPipeline

	// Last holds the durations of the most recent frame in ms.
	Last struct {
		RenderMS float64
		PostMS   float64
		TotalMS  float64
	}
}

// PostPipeline groups post stages; all are optional.
type PostPipeline struct {
	Tone    func([]float64, *Uniforms)
	Limiter func([]float64, *Uniforms)
}

// NewEngine allocates buffers for l.Count() LEDs.
func NewEngine(l layout.Layout, drv Driver, src Source, u *Uniforms) (*Engine, error) {
	n := l.Count()
	if n <= 0 {
		return nil, errors.New("invalid layout")
	}
	if u == nil {
		u = &Uniforms{Brightness: 1, TimeScale: 1, Params: map[string]float64{}}
	}
	if u.Params == nil {
		u.Params = map[string]float64{}
	}
	return &Engine{
		Layout: l,
		Drv:    drv,
		U:      u,
		active: src,
		bufA:   make([]float64, n),
		bufB:   make([]float64, n),
		out:    make([]float64, n),
		wire:   make([]float64, n),
		post:   PostPipeline{Tone: GammaBrightness, Limiter: DefaultLimiter},
		t0:     time.Now(),
	}, nil
}

// Now returns seconds since engine start, scaled by TimeScale.
func (e *Engine) Now() float64 {
	scale := 1.0
	if e.U.TimeScale != 0 {
		scale = e.U.TimeScale
	}
	return time.Since(e.t0).Seconds() * scale
}

// RenderOnce renders a single frame at time t (seconds); t < 0 uses Now.
func (e *Engine) RenderOnce(t float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t < 0 {
		t = e.Now()
	}
	start := time.Now()

	if e.active != nil {
		e.active.Render(t, e.bufA)
	} else {
		clear(e.bufA)
	}
	if e.fading && e.next != nil {
		e.next.Render(t, e.bufB)
		Mix(e.out, e.bufA, e.bufB, e.alpha)
	} else {
		copy(e.out, e.bufA)
	}
	e.Last.RenderMS = ms(time.Since(start))

	postStart := time.Now()
	if e.post.Tone != nil {
		e.post.Tone(e.out, e.U)
	}
	if e.post.Limiter != nil {
		e.post.Limiter(e.out, e.U)
	}
	e.Last.PostMS = ms(time.Since(postStart))

	e.frameID++
	e.Layout.Remap(e.wire, e.out)
	var err error
	if e.Drv != nil {
		err = e.Drv.Write(e.wire)
	}
	e.Last.TotalMS = ms(time.Since(start))
	return err
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

// Frame returns a copy of the last post-processed frame in logical order
// and its sequence number.
func (e *Engine) Frame() ([]float64, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]float64(nil), e.out...), e.frameID
}

func (e *Engine) SetPost(p PostPipeline) {
	e.mu.Lock()
	e.post = p
	e.mu.Unlock()
}

// SetSource makes src active immediately and cancels any fade.
func (e *Engine) SetSource(src Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = src
	e.fading = false
	e.alpha = 0
}

// SetNamed activates a registered source.
func (e *Engine) SetNamed(name string, reg *Registry) error {
	if reg == nil {
		return errors.New("registry is nil")
	}
	src, ok := reg.Get(name)
	if !ok {
		return errors.New("source not found: " + name)
	}
	e.SetSource(src)
	return nil
}

// ArmNext prepares src for a crossfade.
func (e *Engine) ArmNext(src Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next = src
	e.fading = true
}

// SetCrossfade sets mix alpha 0..1. Reaching 1 promotes next to active.
func (e *Engine) SetCrossfade(alpha float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case alpha <= 0:
		e.alpha = 0
		e.fading = false
	case alpha >= 1:
		e.alpha = 1
		e.fading = false
		if e.next != nil {
			e.active = e.next
		}
		e.next = nil
	default:
		e.alpha = alpha
		e.fading = true
	}
}

// SetParam updates a post parameter.
func (e *Engine) SetParam(name string, v float64) {
	e.mu.Lock()
	e.U.Params[name] = v
	e.mu.Unlock()
}

// SetBrightness sets the output brightness, clamped to [0,1].
func (e *Engine) SetBrightness(v float64) {
	e.mu.Lock()
	e.U.Brightness = clamp01(v)
	e.mu.Unlock()
}

func (e *Engine) Brightness() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.U.Brightness
}
