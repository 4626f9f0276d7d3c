package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/coreman2200/branchlight/internal/app"
	"github.com/coreman2200/branchlight/internal/config"
	"github.com/coreman2200/branchlight/internal/led"
	"github.com/coreman2200/branchlight/internal/link"
	"github.com/coreman2200/branchlight/internal/sequence"
	"github.com/coreman2200/branchlight/internal/ws"
)

// demoShow cycles every animation, with the follower running a companion.
const demoShow = `
version: show.v1
loop: true
clips:
  - name: breathe
    animation: Pulse
    follower: Pulse
    duration_s: 6
    xfade_s: 1.5
    params:
      speed: [{t: 0, v: 1}, {t: 6, v: 4, ease: smooth}]
    bools:
      branch: true
  - name: ripple
    animation: Wave
    follower: Wave
    duration_s: 8
    xfade_s: 2
    params:
      speed: 3
    bools:
      branch: true
      invert: [{t: 0, v: 0}, {t: 4, v: 1}]
  - name: orbit
    animation: Chase
    follower: Chase
    duration_s: 6
    xfade_s: 1
    params:
      speed: 4
      width: 2
    bools:
      branch: true
  - name: glitter
    animation: Sparkle
    follower: Sparkle
    duration_s: 10
    xfade_s: 2
    params:
      speed: 2
      sparkleMin: 4
      sparkleMax: 10
  - name: veins
    animation: Perlin
    follower: Perlin
    duration_s: 10
    xfade_s: 2
    params:
      speed: 6
      delta: 0.12
      calMax: 0.8
    bools:
      branch: true
`

func newSimulateCmd() *cobra.Command {
	var (
		duration time.Duration
		show     string
		addr     string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a leader and a follower in one process over an in-memory link",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var prog sequence.Program
			if show != "" {
				prog, err = sequence.LoadFile(show)
			} else {
				prog, err = sequence.Parse([]byte(demoShow))
			}
			if err != nil {
				return err
			}
			return simulate(cfg, prog, duration, addr)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 30*time.Second, "how long to run; 0 runs until interrupted")
	cmd.Flags().StringVar(&show, "show", "", "show file (defaults to a built-in demo)")
	cmd.Flags().StringVar(&addr, "addr", "", "serve the leader's control surface on this address")
	return cmd
}

func simulate(base *config.Config, prog sequence.Program, duration time.Duration, addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	la, fa := link.Pipe(64)
	lcfg, fcfg := *base, *base
	lcfg.Role, lcfg.Driver, lcfg.Show = "leader", "sim", ""
	fcfg.Role, fcfg.Driver, fcfg.Show = "follower", "sim", ""
	fcfg.LeaderURL = "pipe://leader"

	lsim, fsim := led.NewSim(lcfg.LEDCount), led.NewSim(fcfg.LEDCount)
	lsim.LogEvery = uint64(max(1, lcfg.FPS) * 5)

	leader, err := app.InitCore(ctx, &lcfg, app.Options{Link: la, Driver: lsim, Show: &prog})
	if err != nil {
		return err
	}
	defer leader.Close()
	follower, err := app.InitCore(ctx, &fcfg, app.Options{Link: fa, Driver: fsim})
	if err != nil {
		return err
	}
	defer follower.Close()

	if addr != "" {
		state := ws.NewState(leader)
		defer state.Close()
		srv := &http.Server{Addr: addr, Handler: state.Routes(), ReadTimeout: 5 * time.Second}
		go state.Broadcast(ctx, time.Second/30)
		go func() {
			log.Info().Str("addr", addr).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server")
			}
		}()
		defer srv.Close()
	}

	errc := make(chan error, 2)
	go func() { errc <- leader.Run(ctx) }()
	go func() { errc <- follower.Run(ctx) }()

	report := time.NewTicker(time.Second)
	defer report.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("simulation finished")
			return nil
		case err := <-errc:
			if err != nil {
				return err
			}
		case <-report.C:
			ls, fs := leader.State(), follower.State()
			lf, _ := lsim.Last()
			ff, _ := fsim.Last()
			ev := log.Info().
				Str("leader", ls.Local.AnimName).Str("leader_leds", bar(lf)).
				Str("follower", fs.Local.AnimName).Str("follower_leds", bar(ff))
			if ls.Show != nil {
				ev = ev.Str("clip", ls.Show.Clip).Str("t", fmt.Sprintf("%.1fs", ls.Show.PositionS))
			}
			ev.Msg("sim")
		}
	}
}

// bar renders a frame as one glyph per LED.
func bar(frame []float64) string {
	const ramp = " .:-=+*#%@"
	out := make([]byte, len(frame))
	for i, v := range frame {
		j := int(v * float64(len(ramp)-1))
		j = min(max(j, 0), len(ramp)-1)
		out[i] = ramp[j]
	}
	return string(out)
}
