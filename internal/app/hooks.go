package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/branchlight/internal/dynconfig"
	"github.com/coreman2200/branchlight/internal/node"
	"github.com/coreman2200/branchlight/internal/schema"
	"github.com/coreman2200/branchlight/internal/sequence"
)

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// loadClip resets o to the clip's animation with its envelopes at t=0.
func loadClip(o *node.Output, clip sequence.Clip) {
	a, ok := schema.FindAnimByName(clip.Animation)
	if !ok {
		return
	}
	o.Reset(a.Index)
	for name, env := range clip.Params {
		o.SetParamByName(name, env.Eval(0))
	}
	for name, env := range clip.Bools {
		o.SetParamByName(name, b2f(env.BoolEval(0)))
	}
}

func (c *Core) testing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.test != nil
}

func (c *Core) hooks() sequence.Hooks {
	return sequence.Hooks{
		SetClip: c.enterClip,
		ArmNext: func(clip sequence.Clip) {
			loadClip(c.next, clip)
			if !c.testing() {
				src, _ := c.Reg.Get(srcNext)
				c.Eng.ArmNext(src)
			}
		},
		SetCrossfade: func(a float64) {
			if !c.testing() {
				c.Eng.SetCrossfade(a)
			}
		},
		SetParam: func(name string, v float64) {
			c.Node.Output().SetParamByName(name, v)
		},
		SetBool: func(name string, b bool) {
			c.Node.Output().SetParamByName(name, b2f(b))
		},
	}
}

func (c *Core) enterClip(clip sequence.Clip) {
	loadClip(c.Node.Output(), clip)
	c.mu.Lock()
	c.clip = clip.Name
	testing := c.test != nil
	c.mu.Unlock()
	if !testing {
		_ = c.Eng.SetNamed(srcLive, c.Reg)
	}
	log.Info().Str("clip", clip.Name).Str("animation", clip.Animation).Float64("duration_s", clip.DurationS).Msg("clip")

	if c.Leader == nil || clip.Follower == "" {
		return
	}
	a, ok := schema.FindAnimByName(clip.Follower)
	if !ok {
		return
	}
	c.queueFollowerAnim(followerAnim{clip: clip.Name, anim: a.Index})
}

type followerAnim struct {
	clip string
	anim uint8
}

// queueFollowerAnim sends the follower's animation off the frame loop. Only
// the latest pending clip is sent.
func (c *Core) queueFollowerAnim(fa followerAnim) {
	c.fwdMu.Lock()
	c.fwdPending = &fa
	busy := c.fwdBusy
	c.fwdBusy = true
	c.fwdMu.Unlock()
	if !busy {
		go c.flushFollowerAnims()
	}
}

func (c *Core) flushFollowerAnims() {
	for {
		c.fwdMu.Lock()
		fa := c.fwdPending
		c.fwdPending = nil
		if fa == nil {
			c.fwdBusy = false
			c.fwdMu.Unlock()
			return
		}
		c.fwdMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		if _, err := c.Leader.Configure(ctx, dynconfig.Follower, fa.anim, nil, nil); err != nil {
			log.Warn().Err(err).Str("clip", fa.clip).Msg("follower animation")
		}
		cancel()
	}
}
