package anim

import (
	"math"

	"github.com/coreman2200/branchlight/internal/layout"
)

const (
	sparkleDefaultMin = 8
	sparkleDefaultMax = 12

	retargetInterval = 2.0
	spawnSmoothing   = 0.8
	baseRise         = 2.5
	baseDecay        = 1.3
	minRate          = 0.4
	maxRate          = 8.0
	spawnRateMin     = 6.0
	spawnRateMax     = 18.0
	tempoMin         = 0.015
	tempoMax         = 0.070
	fadeOut          = 0.02
	maxDt            = 0.25
	maxSpawnAttempts = 20
	seed             = 0x12345678
)

type sparkPhase uint8

const (
	growing sparkPhase = iota
	fading
)

type spark struct {
	brightness float64
	phase      sparkPhase
	rise       float64
	decay      float64
	active     bool
}

// Sparkle is a particle simulation. Each animated output owns its own Sparkle;
// it is not safe for concurrent use.
type Sparkle struct {
	sparks      [layout.MaxLEDs]spark
	rng         uint32
	initialized bool
	lastT       float64
	lastRetgt   float64
	spawnRate   float64
	spawnTarget float64
}

func NewSparkle() *Sparkle {
	s := &Sparkle{}
	s.Reset()
	return s
}

// Reset drops every particle and restarts the random sequence.
func (s *Sparkle) Reset() {
	*s = Sparkle{rng: seed, spawnRate: 10, spawnTarget: 10}
}

// Active reports how many particles are lit.
func (s *Sparkle) Active() int {
	c := 0
	for i := range s.sparks {
		if s.sparks[i].active {
			c++
		}
	}
	return c
}

func (s *Sparkle) frand() float64 {
	s.rng = 1664525*s.rng + 1013904223
	return float64(s.rng&0xFFFFFF) / 16777216
}

func (s *Sparkle) variance() float64 { return 0.6 + s.frand()*0.8 }

// Render advances the simulation to time t and writes len(dst) brightness values.
// minCount and maxCount of 0 select the built-in defaults.
func (s *Sparkle) Render(dst []float64, t, speed float64, randomMode bool, minCount, maxCount int) {
	n := len(dst)
	if n > layout.MaxLEDs {
		n = layout.MaxLEDs
	}
	curMin, curMax := sparkleDefaultMin, sparkleDefaultMax
	if minCount > 0 {
		curMin = minCount
	}
	if maxCount > 0 {
		curMax = maxCount
	}

	if !s.initialized {
		s.seedSparks(curMin)
		s.initialized = true
		s.lastT = t
		s.lastRetgt = t
	}

	dt := t - s.lastT
	if dt < 0 {
		dt = 0
	} else if dt > maxDt {
		dt = maxDt
	}
	s.lastT = t

	speedScale := speed
	if speedScale <= 0 {
		speedScale = 1e-6
	} else if speedScale > 10 {
		speedScale = 10
	}

	if t-s.lastRetgt >= retargetInterval {
		r := s.frand()
		tempo := tempoMin + r*r*(tempoMax-tempoMin)
		norm := (tempoMax - tempo) / (tempoMax - tempoMin)
		s.spawnTarget = spawnRateMin + norm*(spawnRateMax-spawnRateMin)
		s.lastRetgt = t
	}
	blend := 1 - math.Exp(-spawnSmoothing*dt*5)
	s.spawnRate += (s.spawnTarget - s.spawnRate) * blend

	active := 0
	for i := 0; i < n; i++ {
		sp := &s.sparks[i]
		if !sp.active {
			continue
		}
		active++
		jitter := 0.9 + s.frand()*0.2
		if sp.phase == growing {
			rate := clampRate(sp.rise * speedScale * jitter)
			sp.brightness += rate * dt
			if sp.brightness >= 1 {
				sp.brightness = 1
				sp.phase = fading
			}
			continue
		}
		rate := clampRate(sp.decay * speedScale * jitter)
		sp.brightness *= math.Exp(-rate * dt)
		if sp.brightness < fadeOut {
			sp.active = false
			active--
		}
	}

	target := curMin
	if curMax > curMin {
		target = curMin + int(s.frand()*float64(curMax-curMin+1))
		if target > curMax {
			target = curMax
		}
	}
	if target > n {
		target = n
	}

	perSec := s.spawnRate * speedScale
	if perSec < 0.1 {
		perSec = 0.1
	}
	spawnProb := 1 - math.Exp(-perSec*dt)

	for guard := 0; active < target && guard < maxSpawnAttempts; guard++ {
		if s.frand() > spawnProb {
			break
		}
		idx := int(s.frand() * float64(n))
		if idx >= n || s.sparks[idx].active {
			continue
		}
		rise, decay := baseRise, baseDecay
		if randomMode {
			rise *= s.variance()
			decay *= s.variance()
		}
		s.sparks[idx] = spark{
			active:     true,
			phase:      growing,
			rise:       rise,
			decay:      decay,
			brightness: 0.05 + s.frand()*0.2,
		}
		active++
	}

	for i := 0; i < n; i++ {
		v := 0.0
		if s.sparks[i].active {
			v = clamp01(s.sparks[i].brightness)
		}
		dst[i] = v
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	for i := n; i < layout.MaxLEDs; i++ {
		s.sparks[i] = spark{}
	}
}

func (s *Sparkle) seedSparks(count int) {
	for i := range s.sparks {
		s.sparks[i] = spark{rise: baseRise, decay: baseDecay}
	}
	for k := 0; k < count; k++ {
		idx := int(s.frand() * layout.MaxLEDs)
		sp := &s.sparks[idx]
		sp.active = true
		sp.phase = growing
		if s.frand() >= 0.5 {
			sp.phase = fading
		}
		sp.brightness = s.frand()
		sp.rise = baseRise * s.variance()
		sp.decay = baseDecay * s.variance()
	}
}

func clampRate(r float64) float64 {
	if r < minRate {
		return minRate
	}
	if r > maxRate {
		return maxRate
	}
	return r
}
