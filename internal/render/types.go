package render

import "sort"

// Source fills a frame of brightness values at time t (seconds).
type Source interface {
	Render(t float64, out []float64)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(t float64, out []float64)

func (f SourceFunc) Render(t float64, out []float64) { f(t, out) }

// Driver abstracts the LED transport.
type Driver interface {
	Write(frame []float64) error
}

// Uniforms are the post-processing controls.
type Uniforms struct {
	Brightness float64
	TimeScale  float64
	Params     map[string]float64
}

type Registry struct{ m map[string]Source }

func NewRegistry() *Registry { return &Registry{m: map[string]Source{}} }

func (r *Registry) Register(name string, s Source) {
	if s == nil {
		return
	}
	r.m[name] = s
}

func (r *Registry) Get(name string) (Source, bool) { s, ok := r.m[name]; return s, ok }

func (r *Registry) List() []string {
	out := make([]string, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
