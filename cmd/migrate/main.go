// Package main applies or reverts the database schema migrations.
//
// Usage:
//
//	DATABASE_URL=postgres://... go run ./cmd/migrate [-down N]
package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	_ "github.com/lib/pq"

	"github.com/offerdesk/tracker/internal/migrate"
	"github.com/offerdesk/tracker/migrations"
)

type migrateConfig struct {
	DatabaseURL string        `env:"DATABASE_URL,required"`
	Timeout     time.Duration `env:"MIGRATE_TIMEOUT" envDefault:"2m"`
}

func main() {
	down := flag.Int("down", 0, "Revert the N most recent migrations instead of applying pending ones")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	var cfg migrateConfig
	if err := env.Parse(&cfg); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	all, err := migrate.Load(migrations.FS)
	if err != nil {
		logger.Error("failed to load migrations", "error", err)
		os.Exit(1)
	}

	m := migrate.New(db, all, logger)

	if *down > 0 {
		n, err := m.Down(ctx, *down)
		if err != nil {
			logger.Error("revert failed", "reverted", n, "error", err)
			os.Exit(1)
		}
		logger.Info("migrations reverted", "count", n)
		return
	}

	n, err := m.Up(ctx)
	if err != nil {
		logger.Error("migration failed", "applied", n, "error", err)
		os.Exit(1)
	}
	logger.Info("migrations applied", "count", n)
}
