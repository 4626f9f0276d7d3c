package anim

import (
	"math"

	"github.com/coreman2200/branchlight/internal/layout"
)

const (
	ridgeOctaves    = 1
	ridgeLacunarity = 1.3
	ridgeGain       = 0.75
	ridgeFreq       = 3.0
	contrastFloor   = 0.1
)

func latticeHash(x, y, z uint32) uint32 {
	h := x*374761393 + y*668265263 + z*362437
	h = (h ^ (h >> 13)) * 1274126177
	return h ^ (h >> 16)
}

func lattice(x, y, z int) float64 {
	return float64(latticeHash(uint32(int32(x)), uint32(int32(y)), uint32(int32(z)))&0xFFFFFF) / 16777216
}

func fade(t float64) float64 { return t * t * (3 - 2*t) }

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// ValueNoise is smooth 3D lattice noise in [0,1).
func ValueNoise(x, y, z float64) float64 {
	fx, fy, fz := math.Floor(x), math.Floor(y), math.Floor(z)
	X, Y, Z := int(fx), int(fy), int(fz)
	u, v, w := fade(x-fx), fade(y-fy), fade(z-fz)

	x00 := lerp(lattice(X, Y, Z), lattice(X+1, Y, Z), u)
	x10 := lerp(lattice(X, Y+1, Z), lattice(X+1, Y+1, Z), u)
	x01 := lerp(lattice(X, Y, Z+1), lattice(X+1, Y, Z+1), u)
	x11 := lerp(lattice(X, Y+1, Z+1), lattice(X+1, Y+1, Z+1), u)
	return lerp(lerp(x00, x10, v), lerp(x01, x11, v), w)
}

// Ridge folds value noise around offset and squares it, summing octaves.
func Ridge(x, y, z float64, octaves int, lacunarity, gain, offset float64) float64 {
	sum, f, amp := 0.0, 1.0, 0.5
	for i := 0; i < octaves; i++ {
		v := ValueNoise(x*f, y*f, z*f)*2 - 1
		v = offset - math.Abs(v)
		sum += v * v * amp
		f *= lacunarity
		amp *= gain
	}
	return sum
}

// RidgeField samples ridge noise per LED. delta spaces the LEDs in noise
// space, width sets the ridge offset and calMin/calMax window the result.
type RidgeField struct {
	Speed       float64
	GlobalSpeed float64
	Width       int
	Delta       float64
	BranchMode  bool
	CalMin      float64
	CalMax      float64
}

func (f RidgeField) Render(dst []float64, t float64) {
	offset := 1.5 / 3 * float64(f.Width)
	ts := t * f.Speed * 0.02 * f.GlobalSpeed
	ampSum := 0.5 * (1 - math.Pow(ridgeGain, ridgeOctaves)) / (1 - ridgeGain)
	invMax := 1.0
	if m := offset * offset * ampSum; m > 1e-6 {
		invMax = 1 / m
	}

	sample := func(x, y float64) float64 {
		p := Ridge(x*ridgeFreq+0.5, y*ridgeFreq+0.5, ts*ridgeFreq, ridgeOctaves, ridgeLacunarity, ridgeGain, offset)
		p *= invMax
		p *= p
		v := 0.0
		switch {
		case p <= contrastFloor:
		case p >= 1:
			v = 1
		default:
			v = (p - contrastFloor) / (1 - contrastFloor)
		}
		return f.calibrate(v * v)
	}

	n := len(dst)
	if !f.BranchMode {
		for i := 0; i < n; i++ {
			dst[i] = sample(float64(i)*f.Delta, 0)
		}
		return
	}
	for b := 0; b < layout.Branches; b++ {
		for i := 0; i < layout.LedsPerBranch; i++ {
			idx := b*layout.LedsPerBranch + i
			if idx >= n {
				continue
			}
			d := f.Delta*float64(i) + f.Delta*0.5
			var x, y float64
			switch b {
			case 0:
				x = d
			case 1:
				x = -d
			case 2:
				y = d
			case 3:
				y = -d
			}
			dst[idx] = sample(x, y)
		}
	}
}

func (f RidgeField) calibrate(v float64) float64 {
	if f.CalMax <= f.CalMin {
		return v
	}
	switch {
	case v <= f.CalMin:
		return 0
	case v >= f.CalMax:
		return 1
	default:
		return (v - f.CalMin) / (f.CalMax - f.CalMin)
	}
}
