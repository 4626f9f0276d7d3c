// Package schema holds the static parameter and animation tables shared by the
// packet codec, the parameter set and the control panel export.
package schema

import "strings"

// Kind is the value domain of a parameter.
type Kind uint8

const (
	Bool  Kind = 0
	Range Kind = 1
	Int   Kind = 2
	Enum  Kind = 3
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Range:
		return "range"
	case Int:
		return "int"
	case Enum:
		return "enum"
	default:
		return "unknown"
	}
}

// Parameter ids. Ids are part of the wire format; never renumber.
const (
	PIDSpeed       uint8 = 1
	PIDPhase       uint8 = 2
	PIDWidth       uint8 = 3
	PIDBranch      uint8 = 4
	PIDInvert      uint8 = 5
	PIDLevel       uint8 = 6
	PIDSingleIndex uint8 = 7
	PIDRandomMode  uint8 = 8
	PIDGlobalSpeed uint8 = 20
	PIDGlobalMin   uint8 = 21
	PIDGlobalMax   uint8 = 22
	PIDCalMin      uint8 = 23
	PIDCalMax      uint8 = 24
	PIDDelta       uint8 = 25
	PIDSparkleMin  uint8 = 26
	PIDSparkleMax  uint8 = 27
)

// Animation indices.
const (
	AnimStatic  uint8 = 0
	AnimWave    uint8 = 1
	AnimPulse   uint8 = 2
	AnimChase   uint8 = 3
	AnimSingle  uint8 = 4
	AnimSparkle uint8 = 5
	AnimPerlin  uint8 = 6
)

// ParamDef describes one tunable value and how it is quantized on the wire.
type ParamDef struct {
	ID      uint8
	Kind    Kind
	Name    string
	Min     float64
	Max     float64
	Default float64
	Bits    uint8
	// Global parameters apply regardless of the active animation.
	Global bool
}

// AnimDef names an animation and the parameters it consumes, in display order.
type AnimDef struct {
	Index    uint8
	Name     string
	ParamIDs []uint8
}

var params = [...]ParamDef{
	{ID: PIDSpeed, Kind: Range, Name: "speed", Min: 0, Max: 12, Default: 3, Bits: 12},
	{ID: PIDPhase, Kind: Range, Name: "phase", Min: -6.283, Max: 6.283, Default: 0, Bits: 12},
	{ID: PIDWidth, Kind: Int, Name: "width", Min: 1, Max: 8, Default: 3, Bits: 4},
	{ID: PIDBranch, Kind: Bool, Name: "branch", Min: 0, Max: 1, Default: 0, Bits: 1},
	{ID: PIDInvert, Kind: Bool, Name: "invert", Min: 0, Max: 1, Default: 0, Bits: 1},
	{ID: PIDLevel, Kind: Range, Name: "level", Min: 0, Max: 1, Default: 0.5, Bits: 8},
	{ID: PIDSingleIndex, Kind: Int, Name: "singleIndex", Min: 0, Max: 63, Default: 0, Bits: 6},
	{ID: PIDRandomMode, Kind: Bool, Name: "random", Min: 0, Max: 1, Default: 0, Bits: 1},
	{ID: PIDGlobalSpeed, Kind: Range, Name: "globalSpeed", Min: 0, Max: 4, Default: 1, Bits: 10, Global: true},
	{ID: PIDGlobalMin, Kind: Range, Name: "globalMin", Min: 0, Max: 1, Default: 0, Bits: 8, Global: true},
	{ID: PIDGlobalMax, Kind: Range, Name: "globalMax", Min: 0, Max: 1, Default: 1, Bits: 8, Global: true},
	{ID: PIDCalMin, Kind: Range, Name: "calMin", Min: 0, Max: 1, Default: 0, Bits: 8},
	{ID: PIDCalMax, Kind: Range, Name: "calMax", Min: 0, Max: 1, Default: 1, Bits: 8},
	{ID: PIDDelta, Kind: Range, Name: "delta", Min: 0, Max: 0.5, Default: 0.05, Bits: 10},
	{ID: PIDSparkleMin, Kind: Int, Name: "sparkleMin", Min: 0, Max: 28, Default: 0, Bits: 5},
	{ID: PIDSparkleMax, Kind: Int, Name: "sparkleMax", Min: 0, Max: 28, Default: 0, Bits: 5},
}

var anims = [...]AnimDef{
	{Index: AnimStatic, Name: "Static", ParamIDs: []uint8{PIDLevel}},
	{Index: AnimWave, Name: "Wave", ParamIDs: []uint8{PIDSpeed, PIDPhase, PIDBranch, PIDInvert}},
	{Index: AnimPulse, Name: "Pulse", ParamIDs: []uint8{PIDSpeed, PIDPhase, PIDBranch}},
	{Index: AnimChase, Name: "Chase", ParamIDs: []uint8{PIDSpeed, PIDWidth, PIDBranch}},
	{Index: AnimSingle, Name: "Single", ParamIDs: []uint8{PIDSingleIndex}},
	{Index: AnimSparkle, Name: "Sparkle", ParamIDs: []uint8{PIDSpeed, PIDRandomMode, PIDSparkleMin, PIDSparkleMax}},
	{Index: AnimPerlin, Name: "Perlin", ParamIDs: []uint8{PIDSpeed, PIDWidth, PIDBranch, PIDDelta, PIDCalMin, PIDCalMax}},
}

// FindParam returns the definition for id.
func FindParam(id uint8) (ParamDef, bool) {
	for _, p := range params {
		if p.ID == id {
			return p, true
		}
	}
	return ParamDef{}, false
}

// FindParamByName looks a parameter up by its short token.
func FindParamByName(name string) (ParamDef, bool) {
	for _, p := range params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamDef{}, false
}

// FindAnim returns the animation with the given index.
func FindAnim(index uint8) (AnimDef, bool) {
	for _, a := range anims {
		if a.Index == index {
			return cloneAnim(a), true
		}
	}
	return AnimDef{}, false
}

// FindAnimByName matches an animation name case-insensitively.
func FindAnimByName(name string) (AnimDef, bool) {
	for _, a := range anims {
		if strings.EqualFold(a.Name, name) {
			return cloneAnim(a), true
		}
	}
	return AnimDef{}, false
}

// Params returns a copy of the parameter table in declaration order.
func Params() []ParamDef {
	out := make([]ParamDef, len(params))
	copy(out, params[:])
	return out
}

// Anims returns a copy of the animation table.
func Anims() []AnimDef {
	out := make([]AnimDef, 0, len(anims))
	for _, a := range anims {
		out = append(out, cloneAnim(a))
	}
	return out
}

// Globals returns the ids of all global parameters.
func Globals() []uint8 {
	var ids []uint8
	for _, p := range params {
		if p.Global {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func cloneAnim(a AnimDef) AnimDef {
	ids := make([]uint8, len(a.ParamIDs))
	copy(ids, a.ParamIDs)
	a.ParamIDs = ids
	return a
}
