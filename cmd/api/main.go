// Package main is the entrypoint for the tracking API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/offerdesk/tracker/internal/analytics"
	"github.com/offerdesk/tracker/internal/auth"
	"github.com/offerdesk/tracker/internal/cache"
	"github.com/offerdesk/tracker/internal/config"
	"github.com/offerdesk/tracker/internal/edge"
	"github.com/offerdesk/tracker/internal/handler"
	"github.com/offerdesk/tracker/internal/metrics"
	"github.com/offerdesk/tracker/internal/middleware"
	"github.com/offerdesk/tracker/internal/notify"
	"github.com/offerdesk/tracker/internal/repository"
	"github.com/offerdesk/tracker/internal/server"
	"github.com/offerdesk/tracker/internal/service"
	"github.com/offerdesk/tracker/internal/tracing"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	shutdownTracing, err := tracing.Init(tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.TracingEndpoint,
		ServiceName: tracing.ServiceName,
		Version:     handler.Version,
		Environment: cfg.AppEnv,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, cfg.DatabasePool())
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cfg.RedisPool())
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	metricsRecorder := metrics.NewInMemory()

	// Click sink: direct Postgres insert, or the Redis stream drained by a worker.
	var clickStore service.ClickStore
	var worker *analytics.Worker
	switch cfg.ClickSink {
	case config.ClickSinkStream:
		clickStore = analytics.NewPublisher(cacheClient.Client(), logger, metricsRecorder)
		worker = analytics.NewWorker(
			cacheClient.Client(),
			repository.NewClickRepository(repo),
			analytics.WorkerConfig{Consumer: analytics.ConsumerName(cfg.AnalyticsConsumer)},
			logger,
			metricsRecorder,
		)
	default:
		clickStore = repository.NewClickRepository(repo)
	}

	resolver := service.NewResolver(repo, cacheClient, logger, metricsRecorder)
	profiles := service.NewProfileLookup(repo, cacheClient, logger)
	clickRecorder := service.NewClickRecorder(clickStore, cfg.TrackCollectIP, logger, metricsRecorder)
	coordinator := service.NewCoordinator(resolver, profiles, clickRecorder, service.CoordinatorConfig{
		FallbackURL:   cfg.TrackFallbackURL,
		RecordMode:    cfg.TrackRecordMode,
		RecordTimeout: cfg.TrackRecordTimeout,
		RecordWait:    cfg.TrackRecordWait,
		MaxDelay:      cfg.TrackMaxDelay,
	}, logger, metricsRecorder)
	linkGenerator := service.NewLinkGenerator(resolver, profiles, repo, cacheClient, repo, cfg.BaseURL, logger, metricsRecorder)

	notifier := notify.New(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret, logger)
	edgeClient := edge.NewClient(edge.Config{
		BaseURL: cfg.EdgeAPIURL,
		Token:   cfg.EdgeAPIToken,
		Timeout: cfg.EdgeRequestTimeout,
	}, logger)
	monitor := service.NewDomainHealthMonitor(repo, edgeClient, notifier, cacheClient,
		cfg.DomainHealthMinScore, cfg.DomainHealthWorkers, logger, metricsRecorder)

	router := handler.NewRouter(handler.RouterConfig{
		Logger: logger,
		Base:   handler.New(),
		Health: handler.NewHealthHandler(logger,
			handler.Dependency{Name: "postgres", Checker: repo},
			handler.Dependency{Name: "redis", Checker: cacheClient},
		),
		Metrics:        handler.NewMetricsHandler(metricsRecorder),
		Track:          handler.NewTrackHandler(coordinator, logger),
		Clicks:         handler.NewClickHandler(coordinator, logger),
		AffiliateLinks: handler.NewAffiliateLinkHandler(linkGenerator, logger),
		Jobs:           handler.NewJobsHandler(monitor, logger),
		AdminVerifier:  auth.NewVerifier(cfg.AdminTokenHash),
		RateLimit: middleware.RateLimitConfig{
			Logger:  logger,
			Limiter: cacheClient,
			Enabled: cfg.RateLimitTrackEnabled,
			RPS:     cfg.RateLimitTrackRPS,
			Burst:   cfg.RateLimitTrackBurst,
		},
		CORSOrigins:   cfg.GetCORSAllowedOrigins(),
		IsDevelopment: cfg.IsDevelopment(),
		LogClientIP:   cfg.TrackCollectIP,
		MaxBodySize:   cfg.MaxRequestBodySize,
		TracerName:    tracing.ServiceName,
	})

	srv := server.New(
		router,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Hooks run LIFO: click writes drain first, the tracer flushes last.
	srv.OnShutdown("tracer", server.ShutdownFunc(shutdownTracing))
	if worker != nil {
		srv.Go("click-worker", worker.Run)
		srv.OnShutdown("click-worker", worker.Shutdown)
	}
	srv.OnShutdown("notifier", notifier.Shutdown)
	srv.OnShutdown("coordinator", coordinator.Shutdown)

	if !cfg.IsDevelopment() && cfg.AdminTokenHash == "" {
		logger.Warn("ADMIN_TOKEN_HASH not set; admin and job endpoints are disabled")
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"record_mode", cfg.TrackRecordMode,
		"click_sink", cfg.ClickSink,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
