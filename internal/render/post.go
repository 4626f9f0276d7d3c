package render

import "math"

// Post parameter names read from Uniforms.Params.
const (
	ParamGamma  = "OutputGamma"
	ParamLEDmA  = "LED_mA"
	ParamBudget = "Budget_mA"
	ParamKnee   = "LimiterKnee"
)

// GammaBrightness scales by u.Brightness then applies the output gamma
// (default 1, linear). The result is clamped to [0,1].
func GammaBrightness(buf []float64, u *Uniforms) {
	bright := 1.0
	gamma := 1.0
	if u != nil {
		bright = u.Brightness
		if g, ok := u.Params[ParamGamma]; ok && g > 0 {
			gamma = g
		}
	}
	for i, v := range buf {
		v = clamp01(v * bright)
		if gamma != 1 && v > 0 {
			v = math.Pow(v, gamma)
		}
		buf[i] = v
	}
}

// DefaultLimiter keeps the estimated supply current under Budget_mA.
//
// Parameters (read from uniforms.Params):
//   - "LED_mA" (current of one LED at full duty, default 20)
//   - "Budget_mA" (global budget; if 0 or missing the limiter is a no-op)
//   - "LimiterKnee" (fraction of budget where soft limiting begins; default 0.9)
func DefaultLimiter(buf []float64, u *Uniforms) {
	if u == nil || u.Params == nil {
		return
	}
	ledmA := 20.0
	budget := 0.0
	knee := 0.9
	if v, ok := u.Params[ParamLEDmA]; ok && v > 0 {
		ledmA = v
	}
	if v, ok := u.Params[ParamBudget]; ok && v > 0 {
		budget = v
	}
	if v, ok := u.Params[ParamKnee]; ok && v > 0 && v < 1 {
		knee = v
	}
	if budget <= 0 {
		return
	}
	total := EstimateCurrent(buf, ledmA)
	if total <= 0 {
		return
	}
	kneeMA := knee * budget
	if total <= kneeMA {
		return
	}
	// above the knee, compress exponentially towards the budget
	span := budget - kneeMA
	limited := kneeMA + span*(1-math.Exp(-(total-kneeMA)/span))
	applyGlobalScale(buf, limited/total)
}

// EstimateCurrent returns the supply current in mA for a frame.
func EstimateCurrent(buf []float64, ledmA float64) float64 {
	total := 0.0
	for _, v := range buf {
		total += v * ledmA
	}
	return total
}

func applyGlobalScale(buf []float64, s float64) {
	if s >= 1 {
		return
	}
	for i := range buf {
		buf[i] *= s
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
