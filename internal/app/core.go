// Package app wires configuration, drivers, the render engine, the node
// protocol and the show player into a running installation.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/branchlight/internal/config"
	"github.com/coreman2200/branchlight/internal/diagnostics"
	"github.com/coreman2200/branchlight/internal/layout"
	"github.com/coreman2200/branchlight/internal/led"
	"github.com/coreman2200/branchlight/internal/link"
	"github.com/coreman2200/branchlight/internal/node"
	"github.com/coreman2200/branchlight/internal/render"
	"github.com/coreman2200/branchlight/internal/sequence"
	"github.com/coreman2200/branchlight/internal/tests"
)

// Registered engine sources.
const (
	srcLive = "live"
	srcNext = "next"
	srcTest = "test"
)

var ErrNotLeader = errors.New("only the leader can do that")

// Options replace parts of what InitCore would otherwise build from config.
type Options struct {
	Link   link.Link
	Driver led.Driver
	Clock  *node.Clock
	Show   *sequence.Program
}

type Core struct {
	Cfg    *config.Config
	Layout layout.Layout
	Eng    *render.Engine
	Reg    *render.Registry
	Seq    *sequence.Player
	Diag   *diagnostics.Ring
	Drv    led.Driver

	Node     node.Node
	Leader   *node.Leader
	Follower *node.Follower
	// Hub is set on a leader that serves its own /link endpoint.
	Hub  *link.Hub
	link link.Link

	// next holds the clip being crossfaded in.
	next *node.Output

	// seqMu serializes the show player between the frame loop and controls.
	seqMu sync.Mutex

	mu        sync.Mutex
	test      *tests.Runner
	testDone  bool
	writeErr  bool
	staleSent bool
	clip      string

	// follower animation changes waiting for the sender goroutine
	fwdMu      sync.Mutex
	fwdPending *followerAnim
	fwdBusy    bool
}

func applyPostDefaults(eng *render.Engine, cfg *config.Config) {
	for k, v := range map[string]float64{
		render.ParamGamma:  cfg.Gamma,
		render.ParamLEDmA:  cfg.Power.LEDmA,
		render.ParamBudget: cfg.Power.BudgetmA,
		render.ParamKnee:   cfg.Power.Knee,
	} {
		if v > 0 {
			eng.SetParam(k, v)
		}
	}
}

// InitCore builds a Core. Nothing is sent or rendered until Start or Run.
func InitCore(ctx context.Context, cfg *config.Config, opt Options) (*Core, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	l := layout.ForCount(cfg.LEDCount, layout.Wiring{FlipOddBranches: cfg.Wiring.FlipOddBranches})
	c := &Core{
		Cfg:    cfg,
		Layout: l,
		Reg:    render.NewRegistry(),
		Diag:   diagnostics.NewRing(64),
		next:   node.NewOutput(),
	}

	lk := opt.Link
	if lk == nil {
		if cfg.Role == "follower" {
			conn, err := link.Dial(ctx, cfg.LeaderURL)
			if err != nil {
				return nil, err
			}
			lk = conn
		} else {
			c.Hub = link.NewHub()
			lk = c.Hub
		}
	}
	c.link = lk

	if cfg.Role == "follower" {
		f := node.NewFollower(lk, opt.Clock)
		f.Diag = c.Diag.Push
		c.Follower, c.Node = f, f
	} else {
		ld := node.NewLeader(lk, opt.Clock)
		ld.Diag = c.Diag.Push
		if cfg.SyncIntervalMS > 0 {
			ld.SyncInterval = time.Duration(cfg.SyncIntervalMS) * time.Millisecond
		}
		c.Leader, c.Node = ld, ld
	}

	drv := opt.Driver
	if drv == nil {
		d, err := OpenDriver(cfg, l.Count())
		if err != nil {
			lk.Close()
			return nil, err
		}
		drv = d
	}
	c.Drv = drv

	c.Reg.Register(srcLive, render.SourceFunc(c.Node.Output().Render))
	c.Reg.Register(srcNext, render.SourceFunc(c.next.Render))
	c.Reg.Register(srcTest, render.SourceFunc(c.renderTest))
	live, _ := c.Reg.Get(srcLive)
	eng, err := render.NewEngine(l, drv, live, &render.Uniforms{Brightness: cfg.Brightness, TimeScale: 1})
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Eng = eng
	applyPostDefaults(eng, cfg)
	if c.Leader != nil {
		c.Leader.OnBrightness = eng.SetBrightness
	} else {
		c.Follower.OnBrightness = eng.SetBrightness
	}

	c.Seq = sequence.NewPlayer(c.hooks())
	prog := opt.Show
	if prog == nil && cfg.Show != "" {
		p, err := sequence.LoadFile(cfg.Show)
		if err != nil {
			c.Close()
			return nil, err
		}
		prog = &p
	}
	if prog != nil {
		if c.Leader == nil {
			log.Warn().Str("show", cfg.Show).Msg("show ignored: followers take their animation from the leader")
		} else if err := c.Seq.Load(*prog); err != nil {
			c.Close()
			return nil, err
		}
	}

	log.Info().Str("role", cfg.Role).Str("driver", cfg.Driver).Int("leds", l.Count()).
		Int("branches", l.Branches).Int("fps", cfg.FPS).Msg("core ready")
	return c, nil
}

// Start publishes the configured brightness and starts a loaded show.
func (c *Core) Start(ctx context.Context) {
	if c.Leader != nil {
		if err := c.Leader.SetBrightness(ctx, c.Cfg.Brightness); err != nil {
			log.Debug().Err(err).Msg("initial brightness")
		}
	}
	c.seqMu.Lock()
	if len(c.Seq.Program().Clips) > 0 {
		c.Seq.Start()
	}
	c.seqMu.Unlock()
}

// Run drives the link and renders at the configured frame rate until ctx ends.
func (c *Core) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.Start(ctx)

	errc := make(chan error, 1)
	go func() { errc <- c.Node.Run(ctx) }()

	fps := c.Cfg.FPS
	if fps <= 0 {
		fps = 60
	}
	tick := time.NewTicker(time.Second / time.Duration(fps))
	defer tick.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			errc = nil
			if err != nil {
				return fmt.Errorf("link: %w", err)
			}
			log.Warn().Msg("link closed; holding last configuration")
		case now := <-tick.C:
			_ = c.Step(now.Sub(last).Seconds())
			last = now
		}
	}
}

// Step advances the show by dt seconds and renders one frame at the node
// clock's time.
func (c *Core) Step(dt float64) error {
	c.seqMu.Lock()
	c.Seq.Tick(dt)
	c.seqMu.Unlock()
	err := c.Eng.RenderOnce(c.Node.Clock().Seconds())

	c.mu.Lock()
	done := c.testDone
	c.testDone = false
	c.mu.Unlock()
	if done {
		_ = c.Eng.SetNamed(srcLive, c.Reg)
		c.Diag.Push(diagnostics.Diagnostic{Severity: diagnostics.Info, Code: diagnostics.CodeTestDone, Summary: "Test complete"})
	}
	c.checkWrite(err)
	c.checkSync()
	return err
}

func (c *Core) checkWrite(err error) {
	c.mu.Lock()
	was := c.writeErr
	c.writeErr = err != nil
	c.mu.Unlock()
	switch {
	case err != nil && !was:
		log.Error().Err(err).Msg("led write")
		c.Diag.Push(diagnostics.Diagnostic{
			Severity: diagnostics.Err, Code: diagnostics.CodeDriverWrite,
			Summary: "LED driver rejected a frame", Detail: err.Error(),
			LikelyCauses:   []string{"bus disconnected", "led_count does not match the wiring"},
			SuggestedFixes: []string{"check the SPI/I2C cabling", "run the index_sweep test"},
		})
	case err == nil && was:
		log.Info().Msg("led write recovered")
	}
}

func (c *Core) checkSync() {
	if c.Follower == nil {
		return
	}
	last, ok := c.Follower.Synced()
	if !ok {
		return
	}
	interval := time.Duration(c.Cfg.SyncIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = node.DefaultSyncInterval
	}
	age := time.Since(last)
	stale := age > 3*interval

	c.mu.Lock()
	report := stale && !c.staleSent
	c.staleSent = stale
	c.mu.Unlock()
	if report {
		c.Diag.Push(diagnostics.Diagnostic{
			Severity: diagnostics.Warn, Code: diagnostics.CodeSyncLost,
			Summary:  "no SYNC from the leader",
			Evidence: map[string]any{"age_ms": age.Milliseconds()},
		})
	}
}

// Close releases the link and the driver.
func (c *Core) Close() error {
	var errs []error
	if c.link != nil {
		errs = append(errs, c.link.Close())
	}
	if c.Drv != nil {
		errs = append(errs, c.Drv.Close())
	}
	return errors.Join(errs...)
}
