package anim

import (
	"math"

	"github.com/coreman2200/branchlight/internal/layout"
)

const twoPi = 2 * math.Pi

// Static sets every LED to level.
func Static(dst []float64, level float64) {
	level = clamp01(level)
	for i := range dst {
		dst[i] = level
	}
}

// Wave writes a sinusoid travelling along each branch, or along the whole
// strip when branchMode is off.
func Wave(dst []float64, t, speed, phase float64, branchMode, invert bool) {
	n := len(dst)
	if branchMode {
		for b := 0; b < layout.Branches; b++ {
			bp := phase + float64(b)*math.Pi/4
			for i := 0; i < layout.LedsPerBranch; i++ {
				idx := b*layout.LedsPerBranch + i
				if idx >= n {
					break
				}
				ii := i
				if invert {
					ii = layout.LedsPerBranch - 1 - i
				}
				angle := float64(ii)/layout.LedsPerBranch*twoPi + t*speed + bp
				dst[idx] = 0.5 + 0.5*math.Sin(angle)
			}
		}
		return
	}
	for i := 0; i < n; i++ {
		ii := i
		if invert {
			ii = n - 1 - i
		}
		angle := float64(ii)/float64(n)*twoPi + t*speed + phase
		dst[i] = 0.5 + 0.5*math.Sin(angle)
	}
}

// Pulse breathes every LED of a branch (or the whole strip) together.
func Pulse(dst []float64, t, speed, phase float64, branchMode bool) {
	n := len(dst)
	if branchMode {
		for b := 0; b < layout.Branches; b++ {
			v := 0.5 + 0.5*math.Sin(t*speed+phase+float64(b)*math.Pi/2)
			for i := 0; i < layout.LedsPerBranch; i++ {
				idx := b*layout.LedsPerBranch + i
				if idx >= n {
					break
				}
				dst[idx] = v
			}
		}
		return
	}
	v := 0.5 + 0.5*math.Sin(t*speed+phase)
	for i := range dst {
		dst[i] = v
	}
}

// Chase lights a window of width LEDs that wraps around each branch, or the
// whole strip.
func Chase(dst []float64, t, speed float64, width int, branchMode bool) {
	clear(dst)
	n := len(dst)
	if n == 0 {
		return
	}
	if width <= 0 {
		width = 1
	}
	if branchMode {
		for b := 0; b < layout.Branches; b++ {
			pos := wrapPos(t*speed+float64(b)*layout.LedsPerBranch/2, layout.LedsPerBranch)
			for w := 0; w < width; w++ {
				idx := b*layout.LedsPerBranch + (pos+w)%layout.LedsPerBranch
				if idx < n {
					dst[idx] = 1
				}
			}
		}
		return
	}
	pos := wrapPos(t*speed, n)
	for w := 0; w < width; w++ {
		dst[(pos+w)%n] = 1
	}
}

// Single lights only dst[index].
func Single(dst []float64, index int) {
	clear(dst)
	if index >= 0 && index < len(dst) {
		dst[index] = 1
	}
}

func wrapPos(x float64, n int) int {
	p := int(math.Mod(x, float64(n)))
	if p < 0 {
		p += n
	}
	return p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
