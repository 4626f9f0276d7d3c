// Package params holds the live parameter values an animation instance reads
// every frame.
package params

import (
	"math"

	"github.com/coreman2200/branchlight/internal/dynconfig"
	"github.com/coreman2200/branchlight/internal/schema"
)

// Set holds one value per registered parameter. The zero value is not useful;
// use Defaults.
type Set struct {
	Speed       float64
	Phase       float64
	Width       int
	Branch      bool
	Invert      bool
	Level       float64
	SingleIndex int
	RandomMode  bool
	MinSparkles int
	MaxSparkles int
	CalMin      float64
	CalMax      float64
	Delta       float64

	GlobalSpeed float64
	GlobalMin   float64
	GlobalMax   float64
}

type field struct {
	get func(s *Set) float64
	set func(s *Set, v float64)
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func toInt(v float64) int { return int(math.Round(v)) }

var fields = map[uint8]field{
	schema.PIDSpeed: {
		get: func(s *Set) float64 { return s.Speed },
		set: func(s *Set, v float64) { s.Speed = v },
	},
	schema.PIDPhase: {
		get: func(s *Set) float64 { return s.Phase },
		set: func(s *Set, v float64) { s.Phase = v },
	},
	schema.PIDWidth: {
		get: func(s *Set) float64 { return float64(s.Width) },
		set: func(s *Set, v float64) { s.Width = toInt(v) },
	},
	schema.PIDBranch: {
		get: func(s *Set) float64 { return b2f(s.Branch) },
		set: func(s *Set, v float64) { s.Branch = v != 0 },
	},
	schema.PIDInvert: {
		get: func(s *Set) float64 { return b2f(s.Invert) },
		set: func(s *Set, v float64) { s.Invert = v != 0 },
	},
	schema.PIDLevel: {
		get: func(s *Set) float64 { return s.Level },
		set: func(s *Set, v float64) { s.Level = v },
	},
	schema.PIDSingleIndex: {
		get: func(s *Set) float64 { return float64(s.SingleIndex) },
		set: func(s *Set, v float64) { s.SingleIndex = toInt(v) },
	},
	schema.PIDRandomMode: {
		get: func(s *Set) float64 { return b2f(s.RandomMode) },
		set: func(s *Set, v float64) { s.RandomMode = v != 0 },
	},
	schema.PIDSparkleMin: {
		get: func(s *Set) float64 { return float64(s.MinSparkles) },
		set: func(s *Set, v float64) { s.MinSparkles = toInt(v) },
	},
	schema.PIDSparkleMax: {
		get: func(s *Set) float64 { return float64(s.MaxSparkles) },
		set: func(s *Set, v float64) { s.MaxSparkles = toInt(v) },
	},
	schema.PIDCalMin: {
		get: func(s *Set) float64 { return s.CalMin },
		set: func(s *Set, v float64) { s.CalMin = v },
	},
	schema.PIDCalMax: {
		get: func(s *Set) float64 { return s.CalMax },
		set: func(s *Set, v float64) { s.CalMax = v },
	},
	schema.PIDDelta: {
		get: func(s *Set) float64 { return s.Delta },
		set: func(s *Set, v float64) { s.Delta = v },
	},
	schema.PIDGlobalSpeed: {
		get: func(s *Set) float64 { return s.GlobalSpeed },
		set: func(s *Set, v float64) { s.GlobalSpeed = v },
	},
	schema.PIDGlobalMin: {
		get: func(s *Set) float64 { return s.GlobalMin },
		set: func(s *Set, v float64) { s.GlobalMin = v },
	},
	schema.PIDGlobalMax: {
		get: func(s *Set) float64 { return s.GlobalMax },
		set: func(s *Set, v float64) { s.GlobalMax = v },
	},
}

// Defaults returns a Set with every parameter at its registry default.
func Defaults() *Set {
	s := &Set{}
	for _, pd := range schema.Params() {
		s.Set(pd.ID, pd.Default)
	}
	return s
}

// Set stores v (clamped to the parameter's range) and reports whether id is known.
func (s *Set) Set(id uint8, v float64) bool {
	f, ok := fields[id]
	if !ok {
		return false
	}
	pd, ok := schema.FindParam(id)
	if !ok {
		return false
	}
	if pd.Kind != schema.Bool {
		if v < pd.Min {
			v = pd.Min
		} else if v > pd.Max {
			v = pd.Max
		}
	}
	f.set(s, v)
	return true
}

// Get returns the value for id, 0 if unknown. Booleans read as 0 or 1.
func (s *Set) Get(id uint8) float64 {
	f, ok := fields[id]
	if !ok {
		return 0
	}
	return f.get(s)
}

// Apply sets every pair and returns how many ids were recognized.
func (s *Set) Apply(values []dynconfig.ParamValue) int {
	n := 0
	for _, pv := range values {
		if s.Set(pv.ID, pv.Value) {
			n++
		}
	}
	return n
}

// Values returns the current values for ids, in order.
func (s *Set) Values(ids []uint8) []dynconfig.ParamValue {
	out := make([]dynconfig.ParamValue, 0, len(ids))
	for _, id := range ids {
		if _, ok := fields[id]; ok {
			out = append(out, dynconfig.ParamValue{ID: id, Value: s.Get(id)})
		}
	}
	return out
}

// Globals returns the global parameters as pairs.
func (s *Set) Globals() []dynconfig.ParamValue { return s.Values(schema.Globals()) }

// ByName returns all values keyed by parameter name.
func (s *Set) ByName() map[string]float64 {
	out := make(map[string]float64, len(fields))
	for _, pd := range schema.Params() {
		out[pd.Name] = s.Get(pd.ID)
	}
	return out
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	c := *s
	return &c
}
