// Package main runs one domain health pass and prints the summary as JSON.
// It is meant for cron or a scheduler that cannot call POST /internal/jobs/domain-health.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/offerdesk/tracker/internal/cache"
	"github.com/offerdesk/tracker/internal/config"
	"github.com/offerdesk/tracker/internal/edge"
	"github.com/offerdesk/tracker/internal/metrics"
	"github.com/offerdesk/tracker/internal/notify"
	"github.com/offerdesk/tracker/internal/repository"
	"github.com/offerdesk/tracker/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	repo, err := repository.New(ctx, cfg.DatabaseURL, cfg.DatabasePool())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cfg.RedisPool())
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer cacheClient.Close()

	notifier := notify.New(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret, logger)
	edgeClient := edge.NewClient(edge.Config{
		BaseURL: cfg.EdgeAPIURL,
		Token:   cfg.EdgeAPIToken,
		Timeout: cfg.EdgeRequestTimeout,
	}, logger)
	monitor := service.NewDomainHealthMonitor(repo, edgeClient, notifier, cacheClient,
		cfg.DomainHealthMinScore, cfg.DomainHealthWorkers, logger, metrics.NewNoop())

	summary, checkErr := monitor.CheckAll(ctx)

	// Deactivation notices are fire-and-forget; give them a chance to leave.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := notifier.Shutdown(flushCtx); err != nil {
		logger.Warn("notifier did not drain", "error", err)
	}

	if checkErr != nil {
		logger.Error("domain health check failed", "error", checkErr)
		os.Exit(1)
	}

	if err := json.NewEncoder(os.Stdout).Encode(summary); err != nil {
		logger.Error("failed to write summary", "error", err)
		os.Exit(1)
	}
}
