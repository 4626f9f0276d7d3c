package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreman2200/branchlight/internal/diagnostics"
	"github.com/coreman2200/branchlight/internal/dynconfig"
	"github.com/coreman2200/branchlight/internal/node"
	"github.com/coreman2200/branchlight/internal/schema"
	"github.com/coreman2200/branchlight/internal/tests"
)

// OutputState is one role's animation and parameters.
type OutputState struct {
	Anim     uint8              `json:"animIndex"`
	AnimName string             `json:"animName"`
	Params   map[string]float64 `json:"params"`
}

type ShowState struct {
	State     string  `json:"state"`
	Clip      string  `json:"clip,omitempty"`
	PositionS float64 `json:"positionS"`
}

// State is a point-in-time view for the control panel.
type State struct {
	Role       string       `json:"role"`
	Local      OutputState  `json:"local"`
	Remote     *OutputState `json:"remote,omitempty"`
	Brightness float64      `json:"brightness"`
	FrameID    uint64       `json:"frameId"`
	ClockMS    uint32       `json:"clockMs"`
	Peers      int          `json:"peers"`
	LastAck    *uint32      `json:"lastAck,omitempty"`
	Show       *ShowState   `json:"show,omitempty"`
	Test       string       `json:"test,omitempty"`
}

func outputState(o *node.Output) OutputState {
	st := OutputState{Anim: o.Anim(), Params: o.Params().ByName()}
	if a, ok := schema.FindAnim(st.Anim); ok {
		st.AnimName = a.Name
	}
	return st
}

func (c *Core) State() State {
	_, frame := c.Eng.Frame()
	st := State{
		Role:       c.Cfg.Role,
		Local:      outputState(c.Node.Output()),
		Brightness: c.Eng.Brightness(),
		FrameID:    frame,
		ClockMS:    c.Node.Clock().Millis(),
	}
	if c.Hub != nil {
		st.Peers = c.Hub.Peers()
	}
	if c.Leader != nil {
		r := outputState(c.Leader.Remote)
		st.Remote = &r
		if f, ok := c.Leader.LastAck(); ok {
			st.LastAck = &f
		}
	}
	c.seqMu.Lock()
	if len(c.Seq.Program().Clips) > 0 {
		pos, _ := c.Seq.Position()
		st.Show = &ShowState{State: string(c.Seq.State), PositionS: pos}
	}
	c.seqMu.Unlock()
	if st.Show != nil {
		c.mu.Lock()
		st.Show.Clip = c.clip
		c.mu.Unlock()
	}
	c.mu.Lock()
	if c.test != nil {
		st.Test = string(c.test.Kind())
	}
	c.mu.Unlock()
	return st
}

// Configure sends a configuration packet through the leader.
func (c *Core) Configure(ctx context.Context, p dynconfig.Packet) (dynconfig.Packet, error) {
	if c.Leader == nil {
		return dynconfig.Packet{}, ErrNotLeader
	}
	applied, err := c.Leader.Configure(ctx, p.Role, p.Anim, p.Params, p.Globals)
	if err != nil {
		return applied, err
	}
	c.Diag.Push(diagnostics.Diagnostic{
		Severity: diagnostics.Info, Code: diagnostics.CodeConfigApplied,
		Summary:  "configuration sent to " + p.Role.String(),
		Evidence: map[string]any{"anim": p.Anim, "params": len(applied.Params), "globals": len(applied.Globals)},
	})
	return applied, nil
}

// SetBrightness sets output brightness. A leader forwards it to the follower.
func (c *Core) SetBrightness(ctx context.Context, v float64) error {
	if c.Leader != nil {
		return c.Leader.SetBrightness(ctx, v)
	}
	c.Eng.SetBrightness(v)
	return nil
}

// SendSync forces a SYNC to the follower.
func (c *Core) SendSync(ctx context.Context) error {
	if c.Leader == nil {
		return ErrNotLeader
	}
	return c.Leader.SendSync(ctx)
}

// RunTest overrides the output with a test pattern until it completes. hold
// is frames per step; 0 picks a quarter second.
func (c *Core) RunTest(name string, hold int) error {
	kind, err := tests.ParseKind(name)
	if err != nil {
		c.Diag.Push(diagnostics.Diagnostic{
			Severity: diagnostics.Warn, Code: diagnostics.CodeTestUnknown, Summary: "Unknown test name",
			Evidence: map[string]any{"name": name},
		})
		return err
	}
	if hold <= 0 {
		hold = max(1, c.Cfg.FPS/4)
	}
	c.mu.Lock()
	c.test = tests.NewRunner(tests.Plan{Kind: kind, Hold: hold})
	c.testDone = false
	c.mu.Unlock()
	if err := c.Eng.SetNamed(srcTest, c.Reg); err != nil {
		return err
	}
	c.Diag.Push(diagnostics.Diagnostic{Severity: diagnostics.Info, Code: diagnostics.CodeTestRunning, Summary: "Running test", Detail: name})
	return nil
}

func (c *Core) renderTest(_ float64, out []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.test == nil {
		clear(out)
		return
	}
	if !c.test.Step(c.Layout, out) {
		c.test = nil
		c.testDone = true
	}
}

var ErrNoShow = errors.New("no show loaded")

// ShowControl applies "start", "pause", "resume" or "stop" to the show.
func (c *Core) ShowControl(cmd string) error {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	if len(c.Seq.Program().Clips) == 0 {
		return ErrNoShow
	}
	switch cmd {
	case "start":
		c.Seq.Start()
	case "pause":
		c.Seq.Pause()
	case "resume":
		c.Seq.Resume()
	case "stop":
		c.Seq.Stop()
	default:
		return fmt.Errorf("unknown show command %q", cmd)
	}
	return nil
}

// SeekShow jumps the show to t seconds.
func (c *Core) SeekShow(t float64) error {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	if len(c.Seq.Program().Clips) == 0 {
		return ErrNoShow
	}
	c.Seq.Seek(t)
	return nil
}
