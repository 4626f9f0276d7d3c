// Package tests produces installation test patterns frame by frame.
package tests

import (
	"fmt"

	"github.com/coreman2200/branchlight/internal/layout"
)

type Kind string

const (
	None        Kind = ""
	IndexSweep  Kind = "index_sweep"
	BranchSweep Kind = "branch_sweep"
	AllOn       Kind = "all_on"
)

// Kinds lists the runnable patterns.
func Kinds() []Kind { return []Kind{IndexSweep, BranchSweep, AllOn} }

// ParseKind validates a pattern name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown test pattern %q", s)
}

// Plan selects a pattern. Hold repeats each step for that many frames.
type Plan struct {
	Kind  Kind
	Hold  int
	Level float64
}

type Runner struct {
	plan  Plan
	step  int
	frame int
}

func NewRunner(plan Plan) *Runner {
	if plan.Hold < 1 {
		plan.Hold = 1
	}
	if plan.Level <= 0 || plan.Level > 1 {
		plan.Level = 1
	}
	return &Runner{plan: plan}
}

func (r *Runner) Kind() Kind { return r.plan.Kind }

// Steps is the number of distinct frames the pattern produces on l.
func (r *Runner) Steps(l layout.Layout) int {
	switch r.plan.Kind {
	case IndexSweep:
		return l.Count()
	case BranchSweep:
		return l.Branches
	case AllOn:
		return 1
	default:
		return 0
	}
}

// Step fills out with the current frame and reports false once the pattern is
// complete, leaving out dark.
func (r *Runner) Step(l layout.Layout, out []float64) bool {
	clear(out)
	if r.step >= r.Steps(l) {
		return false
	}
	v := r.plan.Level
	switch r.plan.Kind {
	case IndexSweep:
		if r.step < len(out) {
			out[r.step] = v
		}
	case BranchSweep:
		for i := 0; i < l.PerBranch; i++ {
			if idx := l.Index(r.step, i); idx < len(out) {
				out[idx] = v
			}
		}
	case AllOn:
		for i := 0; i < l.Count() && i < len(out); i++ {
			out[i] = v
		}
	}
	r.frame++
	if r.frame >= r.plan.Hold {
		r.frame = 0
		r.step++
	}
	return true
}

// Progress returns completed and total steps.
func (r *Runner) Progress(l layout.Layout) (int, int) { return r.step, r.Steps(l) }
