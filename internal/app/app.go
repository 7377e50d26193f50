// Package app assembles the in-process backend shared by the API server and
// the CLI's --local mode: the SQL session store and the completion provider.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"wellness-chat/internal/config"
	"wellness-chat/internal/core"
	"wellness-chat/internal/db"
	"wellness-chat/internal/llm"
	"wellness-chat/internal/transport"
)

// Backend bundles the opened database and the adapters built on it.
type Backend struct {
	DB     *sql.DB
	Repo   *db.Repository
	Direct *transport.Direct
}

// Open connects to the configured database, applies the schema and builds
// the completion client.  The caller must Close the Backend.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Backend, error) {
	conn, dialect, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	repo := db.NewRepository(conn, dialect)
	if cfg.Database.NotifyChannel != "" {
		repo.Notifier = db.NewNotifier(conn, cfg.Database.NotifyChannel, log)
	}

	cc := cfg.Completion
	client, err := llm.New(ctx, cc.Provider, cc.APIKey, cc.BaseURL, cc.Model, cc.Temperature)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("app: completion client: %w", err)
	}

	log.Info("backend ready",
		zap.String("driver", cfg.Database.Driver),
		zap.String("provider", cc.Provider))
	return &Backend{
		DB:     conn,
		Repo:   repo,
		Direct: transport.NewDirect(repo, client, core.SystemPrompt),
	}, nil
}

// StartSweeper schedules the idle-session purge described by the database
// config.  A sweep_schedule of "off" disables it.
func (b *Backend) StartSweeper(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.Database.SweepSchedule == config.SweepOff {
		log.Info("idle session sweep disabled")
		return nil
	}
	s := &db.Sweeper{Repo: b.Repo, Retention: cfg.Database.Retention, Log: log}
	return s.Start(ctx, cfg.Database.SweepSchedule)
}

// Close releases the database connection.
func (b *Backend) Close() error {
	return b.DB.Close()
}
