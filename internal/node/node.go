package node

import "context"

// Node is either role as seen by the render loop.
type Node interface {
	Run(ctx context.Context) error
	Output() *Output
	Clock() *Clock
	Brightness() float64
}

var (
	_ Node = (*Leader)(nil)
	_ Node = (*Follower)(nil)
)
