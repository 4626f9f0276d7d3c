package sequence

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// 6x^5 - 15x^4 + 10x^3
func smootherstep(x float64) float64 {
	return x * x * x * (x*(x*6-15) + 10)
}

func easeApply(kind string, x float64) float64 {
	switch kind {
	case "smooth":
		return x * x * (3 - 2*x)
	case "cubic":
		return smootherstep(x)
	default:
		return x
	}
}

// Const is an envelope holding v.
func Const(v float64) Envelope { return Envelope{Keys: []Keyframe{{V: v}}} }

// Eval returns the value at t. No keys gives 0, one key gives its value.
func (e Envelope) Eval(t float64) float64 {
	n := len(e.Keys)
	if n == 0 {
		return 0
	}
	if n == 1 || t <= e.Keys[0].T {
		return e.Keys[0].V
	}
	if t >= e.Keys[n-1].T {
		return e.Keys[n-1].V
	}
	for i := 0; i < n-1; i++ {
		a, b := e.Keys[i], e.Keys[i+1]
		if t < a.T || t > b.T {
			continue
		}
		den := b.T - a.T
		if den <= 0 {
			return b.V
		}
		u := easeApply(a.Ease, clamp01((t-a.T)/den))
		return a.V + (b.V-a.V)*u
	}
	return e.Keys[n-1].V
}

func (e Envelope) BoolEval(t float64) bool { return e.Eval(t) >= 0.5 }

func (e *Envelope) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := n.Decode(&v); err != nil {
			var b bool
			if berr := n.Decode(&b); berr != nil {
				return fmt.Errorf("line %d: envelope must be a number, bool or keyframe list", n.Line)
			}
			if b {
				v = 1
			}
		}
		*e = Const(v)
	case yaml.SequenceNode:
		var keys []Keyframe
		if err := n.Decode(&keys); err != nil {
			return err
		}
		sort.SliceStable(keys, func(i, j int) bool { return keys[i].T < keys[j].T })
		e.Keys = keys
	default:
		return fmt.Errorf("line %d: envelope must be a number, bool or keyframe list", n.Line)
	}
	return nil
}

func (e Envelope) MarshalYAML() (any, error) {
	if len(e.Keys) == 1 && e.Keys[0].T == 0 && e.Keys[0].Ease == "" {
		return e.Keys[0].V, nil
	}
	return e.Keys, nil
}
