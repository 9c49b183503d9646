package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwise1/hazard_map/config"
	deps "github.com/bwise1/hazard_map/internal/debs"
	api "github.com/bwise1/hazard_map/internal/http/rest"
	"github.com/bwise1/hazard_map/internal/logger"
	"github.com/bwise1/hazard_map/internal/metrics"
	"github.com/spf13/cobra"
)

const (
	allowConnectionsAfterShutdown = 1 * time.Second
	shutdownPeriod                = 30 * time.Second
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hazardmap",
		Short:        "Community hazard reports on a map",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())
	return root
}

func setup() (*config.Config, *logger.Logger) {
	cfg := config.New()
	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))
	slog.SetDefault(log.Logger)
	return cfg, log
}

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and websocket hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := setup()
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := deps.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer d.Close()

			if migrate {
				if err := d.DB.Migrate(ctx); err != nil {
					return err
				}
			}

			a := &api.API{
				Config:  cfg,
				Deps:    d,
				DB:      d.Pool(),
				Logger:  log,
				Metrics: metrics.New(),
			}

			a.NewServer()
			go d.WebSocket.Run()

			serveErr := make(chan error, 1)
			go func() {
				serveErr <- a.Serve()
			}()

			select {
			case err := <-serveErr:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("shutdown requested", "grace", allowConnectionsAfterShutdown)
			time.Sleep(allowConnectionsAfterShutdown)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
			defer cancel()
			if err := a.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutting down server: %w", err)
			}
			log.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	run := func(fn func(ctx context.Context, d *deps.Dependencies) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, log := setup()
			d, err := deps.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer d.Close()
			return fn(cmd.Context(), d)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: run(func(ctx context.Context, d *deps.Dependencies) error {
				return d.DB.Migrate(ctx)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the applied state of every migration",
			RunE: run(func(ctx context.Context, d *deps.Dependencies) error {
				return d.DB.MigrationStatus(ctx)
			}),
		},
	)
	return cmd
}
