package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/normanking/buddy/internal/bus"
	"github.com/normanking/buddy/internal/metrics"
	"github.com/normanking/buddy/internal/scheduler"
	"github.com/normanking/buddy/internal/server"
)

const closeTimeout = 10 * time.Second

// ═══════════════════════════════════════════════════════════════════════════════
// SERVE COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, alert stream and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			a, cleanup, err := initializeApp()
			if err != nil {
				return err
			}
			defer cleanup()

			metrics.Attach(a.bus)
			feed := bus.NewFeed(a.bus, bus.DefaultFeedConfig())
			defer feed.Stop()

			sched, err := scheduler.New(a.companion, cfg.Server.EscalationSchedule)
			if err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			srv := server.New(a.companion, server.Config{
				Addr:    cfg.Server.Addr,
				Version: version,
				Feed:    feed,
				Store:   a.store,
			})

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			fmt.Println(okStyle.Render("Buddy listening on http://" + cfg.Server.Addr))

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case sig := <-sigCh:
				log.Info().Str("signal", sig.String()).Msg("shutting down")
			}

			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
