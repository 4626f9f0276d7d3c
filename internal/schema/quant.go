package schema

import "math"

// ValueBytes is the number of bytes a quantized value of pd occupies on the wire.
func ValueBytes(pd ParamDef) int {
	if pd.Kind == Bool {
		return 1
	}
	switch {
	case pd.Bits <= 8:
		return 1
	case pd.Bits <= 16:
		return 2
	case pd.Bits <= 24:
		return 3
	default:
		return 4
	}
}

// MaxQuantum is the largest quantum representable in pd.Bits bits.
func MaxQuantum(pd ParamDef) uint32 {
	if pd.Bits >= 31 {
		return 0xFFFFFFFF
	}
	return uint32(1)<<pd.Bits - 1
}

// Quantize maps v onto [0, MaxQuantum] after clamping it into [Min, Max].
// Ties round away from zero.
func Quantize(v float64, pd ParamDef) uint32 {
	if pd.Kind == Bool {
		if v != 0 {
			return 1
		}
		return 0
	}
	maxq := MaxQuantum(pd)
	if maxq == 0 || pd.Max <= pd.Min {
		return 0
	}
	if v < pd.Min {
		v = pd.Min
	} else if v > pd.Max {
		v = pd.Max
	}
	q := math.Round((v - pd.Min) * float64(maxq) / (pd.Max - pd.Min))
	if q >= float64(maxq) {
		return maxq
	}
	if q <= 0 {
		return 0
	}
	return uint32(q)
}

// Dequantize is the inverse of Quantize, exact up to one quantization step.
func Dequantize(q uint32, pd ParamDef) float64 {
	if pd.Kind == Bool {
		if q&1 != 0 {
			return 1
		}
		return 0
	}
	maxq := MaxQuantum(pd)
	if maxq == 0 {
		return pd.Min
	}
	return pd.Min + float64(q)*(pd.Max-pd.Min)/float64(maxq)
}

// Step is the value distance between two adjacent quanta.
func Step(pd ParamDef) float64 {
	if pd.Kind == Bool {
		return 1
	}
	maxq := MaxQuantum(pd)
	if maxq == 0 {
		return pd.Max - pd.Min
	}
	return (pd.Max - pd.Min) / float64(maxq)
}
