// Package layout describes how the LEDs are arranged along the branches and
// maps logical positions to wiring order.
package layout

const (
	// Branches is the number of radial branches.
	Branches = 4
	// LedsPerBranch is the number of LEDs on each branch.
	LedsPerBranch = 7
	// MaxLEDs is the largest frame any evaluator writes.
	MaxLEDs = Branches * LedsPerBranch
)

// Wiring describes how the physical strip snakes through the branches.
type Wiring struct {
	// FlipOddBranches is set when every second branch is wired tip to root.
	FlipOddBranches bool
}

type Layout struct {
	Branches  int
	PerBranch int
	Wiring    Wiring
}

// Default is the standard 4x7 arrangement wired root to tip on every branch.
func Default() Layout {
	return Layout{Branches: Branches, PerBranch: LedsPerBranch}
}

// Index maps branch b, position i (0 at the root) to the logical LED index.
func (l Layout) Index(b, i int) int {
	return b*l.PerBranch + i
}

// Coord is the inverse of Index.
func (l Layout) Coord(idx int) (b, i int) {
	if l.PerBranch <= 0 {
		return 0, idx
	}
	return idx / l.PerBranch, idx % l.PerBranch
}

// Physical maps a logical index to its position on the wire.
func (l Layout) Physical(idx int) int {
	b, i := l.Coord(idx)
	if l.Wiring.FlipOddBranches && b%2 == 1 {
		i = l.PerBranch - 1 - i
	}
	return l.Index(b, i)
}

func (l Layout) Count() int {
	return l.Branches * l.PerBranch
}

// Remap copies a logical frame into wiring order. dst must be at least as long
// as src; indices past Count are copied unchanged.
func (l Layout) Remap(dst, src []float64) {
	n := l.Count()
	for idx, v := range src {
		if idx >= n {
			dst[idx] = v
			continue
		}
		dst[l.Physical(idx)] = v
	}
}

// ForCount arranges n LEDs as full branches of LedsPerBranch when n divides
// evenly, otherwise as a single strip. n is capped to MaxLEDs.
func ForCount(n int, w Wiring) Layout {
	if n > MaxLEDs {
		n = MaxLEDs
	}
	if n <= 0 {
		return Layout{Wiring: w}
	}
	if n%LedsPerBranch == 0 {
		return Layout{Branches: n / LedsPerBranch, PerBranch: LedsPerBranch, Wiring: w}
	}
	return Layout{Branches: 1, PerBranch: n, Wiring: w}
}
