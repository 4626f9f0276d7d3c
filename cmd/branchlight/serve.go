package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/coreman2200/branchlight/internal/app"
	"github.com/coreman2200/branchlight/internal/config"
	"github.com/coreman2200/branchlight/internal/ws"
)

type serveFlags struct {
	addr       string
	role       string
	leader     string
	driver     string
	show       string
	fps        int
	brightness float64
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a node with its HTTP control surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&f.role, "role", "", "leader | follower")
	cmd.Flags().StringVar(&f.leader, "leader", "", "leader /link URL (follower only)")
	cmd.Flags().StringVar(&f.driver, "driver", "", "sim | nrz | pca9685")
	cmd.Flags().StringVar(&f.show, "show", "", "show file to play (leader only)")
	cmd.Flags().IntVar(&f.fps, "fps", 0, "target frames per second")
	cmd.Flags().Float64Var(&f.brightness, "brightness", 0, "output brightness 0..1")
	return cmd
}

// apply overrides cfg with the flags the user actually set.
func (f serveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("addr") {
		cfg.Addr = f.addr
	}
	if set("role") {
		cfg.Role = f.role
	}
	if set("leader") {
		cfg.LeaderURL = f.leader
	}
	if set("driver") {
		cfg.Driver = f.driver
	}
	if set("show") {
		cfg.Show = f.show
	}
	if set("fps") {
		cfg.FPS = f.fps
	}
	if set("brightness") {
		cfg.Brightness = f.brightness
	}
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.InitCore(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer core.Close()

	state := ws.NewState(core)
	state.ConfigPath = configPath
	defer state.Close()

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      state.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 2)
	go func() { errc <- core.Run(ctx) }()
	go state.Broadcast(ctx, time.Second/30)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("role", cfg.Role).Str("driver", cfg.Driver).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err = <-errc:
		if err != nil {
			log.Error().Err(err).Msg("stopped")
		}
	}
	stop()

	shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdown)
	return err
}
