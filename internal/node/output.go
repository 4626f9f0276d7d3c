package node

import (
	"sync"

	"github.com/coreman2200/branchlight/internal/anim"
	"github.com/coreman2200/branchlight/internal/dynconfig"
	"github.com/coreman2200/branchlight/internal/params"
	"github.com/coreman2200/branchlight/internal/schema"
)

// Output is the animation state of one node: the active animation, its
// parameter values and the private evaluator instance.
type Output struct {
	mu     sync.Mutex
	anim   uint8
	params *params.Set
	inst   *anim.Instance
}

func NewOutput() *Output {
	return &Output{params: params.Defaults(), inst: anim.NewInstance()}
}

// Apply installs a decoded packet. Unknown animation indices are kept; they
// render dark.
func (o *Output) Apply(p dynconfig.Packet) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.anim = p.Anim
	o.params.Apply(p.Params)
	o.params.Apply(p.Globals)
}

// SetAnim switches the animation without touching parameters.
func (o *Output) SetAnim(index uint8) {
	o.mu.Lock()
	o.anim = index
	o.mu.Unlock()
}

func (o *Output) Anim() uint8 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.anim
}

// SetParam sets one value by id.
func (o *Output) SetParam(id uint8, v float64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.params.Set(id, v)
}

// Params returns a copy of the current values.
func (o *Output) Params() *params.Set {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.params.Clone()
}

// Packet describes the full current state as a configuration packet for role.
func (o *Output) Packet(role dynconfig.Role) dynconfig.Packet {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := dynconfig.Packet{Role: role, Anim: o.anim, Globals: o.params.Globals()}
	if a, ok := schema.FindAnim(o.anim); ok {
		p.Params = o.params.Values(a.ParamIDs)
	}
	return p
}

// Render evaluates the active animation at t seconds into out.
func (o *Output) Render(t float64, out []float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inst.Evaluate(o.anim, t, len(out), o.params, out)
}

// Reset switches to index and restores every non-global parameter to its
// default. Globals carry over.
func (o *Output) Reset(index uint8) {
	o.mu.Lock()
	defer o.mu.Unlock()
	globals := o.params.Globals()
	o.params = params.Defaults()
	o.params.Apply(globals)
	o.anim = index
}

// SetParamByName sets one value by its registry name.
func (o *Output) SetParamByName(name string, v float64) bool {
	pd, ok := schema.FindParamByName(name)
	if !ok {
		return false
	}
	return o.SetParam(pd.ID, v)
}
