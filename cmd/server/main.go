// Command server serves the chat session store and completion API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wellness-chat/internal/app"
	"wellness-chat/internal/config"
	httpserver "wellness-chat/internal/http"
	"wellness-chat/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve the wellness chat session store and completion API",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("CHAT_CONFIG"), "path to config.yaml")
	return cmd
}

func run(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open backend", zap.Error(err))
		return err
	}
	defer backend.Close()

	if err := backend.StartSweeper(ctx, cfg, log); err != nil {
		return fmt.Errorf("sweeper: %w", err)
	}

	srv := httpserver.NewServer(backend.Direct, log)
	return srv.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
}
