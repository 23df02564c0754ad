package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rendis/crisisdrill/internal/conditions"
	"github.com/rendis/crisisdrill/internal/logging"
	"github.com/rendis/crisisdrill/internal/scheduler"
	"github.com/rendis/crisisdrill/internal/store"
	"github.com/rendis/crisisdrill/internal/validation"
	"github.com/rendis/crisisdrill/pkg/mcp"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	dbPath := fs.String("db-path", "", "database path (default: ~/.crisisdrill/crisisdrill.db)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	strategy := fs.String("scoring", "", "default scoring strategy: session or preview")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir := crisisdrillDir()
	cfg, err := loadConfig(dir, nil)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *strategy != "" {
		cfg.ScoringStrategy = *strategy
		if err := cfg.validate(); err != nil {
			return err
		}
	}
	ttl, err := cfg.ttl()
	if err != nil {
		return err
	}

	// stdout carries the MCP stream; logs go to stderr.
	logger := logging.NewLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn := storeDSN(cfg.DBPath)
	if local, ok := strings.CutPrefix(dsn, "file:"); ok {
		if err := os.MkdirAll(filepath.Dir(local), 0o700); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	st, err := store.NewLibSQLStore(dsn)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	evaluator, err := conditions.NewEvaluator()
	if err != nil {
		return fmt.Errorf("init condition evaluator: %w", err)
	}
	validator, err := validation.NewGraphValidator(evaluator)
	if err != nil {
		return fmt.Errorf("init scenario validator: %w", err)
	}

	locks := mcp.NewSessionLocks()
	srv := mcp.NewDrillServer(mcp.DrillServerDeps{
		Store:           st,
		Validator:       validator,
		Evaluator:       evaluator,
		Events:          store.NewEventLog(st),
		Locks:           locks,
		ScoringStrategy: cfg.ScoringStrategy,
		DiagramBinDir:   binDir(dir),
		Logger:          logger,
	})

	reaper, err := scheduler.NewReaper(st, srv.FSM(), cfg.ReaperSchedule, ttl,
		scheduler.WithLocker(locks), scheduler.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("init reaper: %w", err)
	}
	if err := reaper.Start(ctx); err != nil {
		return err
	}
	defer reaper.Stop()

	logger.Info("crisisdrill serving on stdio",
		slog.String("version", version),
		slog.String("db_path", cfg.DBPath),
		slog.String("scoring", cfg.ScoringStrategy),
		slog.Duration("session_ttl", ttl))

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// storeDSN turns a plain database path into a libsql file URI. Remote and
// file URIs pass through.
func storeDSN(path string) string {
	for _, prefix := range []string{"file:", "libsql://", "http://", "https://"} {
		if strings.HasPrefix(path, prefix) {
			return path
		}
	}
	return "file:" + path
}
