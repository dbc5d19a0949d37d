// Command scribed runs the background processing daemon: it owns the
// job queue, the worker pool, and the stage pipeline.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"scribe/internal/config"
	"scribe/internal/daemon"
	"scribe/internal/deps"
	"scribe/internal/logging"
	"scribe/internal/pipeline"
	"scribe/internal/queue"
	"scribe/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewForDataDir(cfg.Paths.DataDir, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	reportDependencies(cfg, logger)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}

	env := pipeline.NewEnv(cfg, store, logger)
	manager := workflow.NewManager(cfg, store, env, logger)

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = store.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("scribed shutting down")
}

func reportDependencies(cfg *config.Config, logger *slog.Logger) {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	for _, status := range statuses {
		if status.Available {
			continue
		}
		logger.Warn("external dependency unavailable",
			logging.String("dependency", status.Name),
			logging.String("detail", status.Detail),
		)
	}
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		logger.Error("required dependencies missing",
			logging.String("missing", strings.Join(missing, ", ")),
		)
	}
}
