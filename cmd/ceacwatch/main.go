// Package main runs the visa status check service: a browser-driving checker
// behind an HTTP API, with session expiry handled in the background.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ceacwatch/ceacwatch/pkg/ceac"
	"github.com/ceacwatch/ceacwatch/pkg/checker"
	"github.com/ceacwatch/ceacwatch/pkg/config"
	"github.com/ceacwatch/ceacwatch/pkg/logging"
	"github.com/ceacwatch/ceacwatch/pkg/server"
	"github.com/ceacwatch/ceacwatch/pkg/solver"
)

const version = "0.1.0"

const shutdownTimeout = 15 * time.Second

type cliFlags struct {
	configFile  string
	addr        string
	headless    bool
	headlessSet bool
	showVersion bool
}

func main() {
	flags := parseFlags()
	if flags.showVersion {
		fmt.Printf("ceacwatch v%s\n", version)
		return
	}

	if err := run(flags); err != nil {
		fmt.Fprintf(os.Stderr, "ceacwatch: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() *cliFlags {
	flags := &cliFlags{}
	flag.StringVar(&flags.configFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&flags.addr, "addr", "", "HTTP listen address (overrides config)")
	flag.BoolVar(&flags.headless, "headless", true, "Run browsers without a visible window (overrides config)")
	flag.BoolVar(&flags.showVersion, "version", false, "Show version and exit")
	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			flags.headlessSet = true
		}
	})
	return flags
}

func run(flags *cliFlags) error {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return err
	}
	if flags.addr != "" {
		cfg.Listen = flags.addr
	}
	if flags.headlessSet {
		cfg.Headless = flags.headless
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	driver := ceac.NewDriver(ceac.Options{
		Headless:          cfg.Headless,
		FormURL:           cfg.FormURL,
		NavigationTimeout: cfg.NavigationTimeout.Std(),
	})
	if err := driver.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := driver.Shutdown(); err != nil {
			logger.Warn("driver shutdown failed", zap.Error(err))
		}
	}()

	registry := checker.NewRegistry()
	registry.SetTTL(cfg.SessionTTL.Std())
	registry.SetMaxSessions(cfg.MaxSessions)

	orchestrator := checker.NewOrchestrator(registry, driver, buildSolver(cfg, logger), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reaper := checker.NewReaper(registry, cfg.SweepInterval.Std(), logger)
	go reaper.Run(ctx)

	srv := server.New(cfg.Listen, orchestrator, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}

	for _, session := range registry.Drain() {
		if err := session.Release(); err != nil {
			logger.Warn("failed to release session on shutdown",
				zap.String("session_id", session.ID),
				zap.Error(err))
		}
	}
	return nil
}

func buildSolver(cfg config.Config, logger *zap.Logger) checker.Solver {
	if cfg.Solver.Mode != config.SolverVision {
		return solver.Manual{}
	}

	logger.Info("automatic solving enabled",
		zap.String("model", cfg.Solver.Model))
	return solver.NewVision(cfg.Solver.APIKey(), cfg.Solver.BaseURL,
		solver.WithModel(cfg.Solver.Model))
}
