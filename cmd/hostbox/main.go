package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hostbox/hostbox/internal/app"
	"github.com/hostbox/hostbox/internal/config"
	"github.com/hostbox/hostbox/internal/version"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:    "hostbox",
		Usage:   "Host and GPU telemetry exporter with fleet dashboard relay",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to configuration file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: serve,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	debug := cmd.Bool("debug")

	// Configure logging level
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting hostbox", "version", version.String(), "config", configPath)

	// Load configuration; a missing file means the defaults.
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("no config file, using defaults", "path", configPath)
			cfg = config.Default()
		} else {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	// Initialize application
	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	// Setup graceful shutdown
	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Hold the session scopes for the process lifetime; backends tear
	// down when these references are released at shutdown.
	application.Open()
	defer application.Close()

	if application.Sim != nil {
		application.Sim.Start()
		defer application.Sim.Stop()
	}

	// Start servers
	var wg sync.WaitGroup
	errChan := make(chan error, 3)

	wg.Go(func() {
		if err := application.TextServer.Start(shutdownCtx); err != nil {
			errChan <- fmt.Errorf("exposition server: %w", err)
		}
	})

	if application.OTELExporter != nil {
		wg.Go(func() {
			if err := application.OTELExporter.Start(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("otel exporter: %w", err)
			}
		})
	}

	if application.RelayServer != nil {
		wg.Go(func() {
			application.Relay.Run(shutdownCtx)
		})
		wg.Go(func() {
			if err := application.RelayServer.Start(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("relay server: %w", err)
			}
		})
	}

	// Wait for shutdown or error
	select {
	case err := <-errChan:
		slog.Error("server error", "error", err)
		stop() // Cancel context to trigger shutdown
	case <-shutdownCtx.Done():
		// Graceful shutdown triggered
	}

	wg.Wait()

	slog.Info("shutdown complete")
	return nil
}
