package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/ephemeral-chat/internal/app"
	"github.com/vovakirdan/ephemeral-chat/internal/config"
	"github.com/vovakirdan/ephemeral-chat/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		dbPath     string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "ephemeral-chat-server",
		Short:         "Realtime backend for the ephemeral chat room",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			bootLogger := log.New("info", os.Stderr)
			cfg, path, err := config.Load(bootLogger, configPath)
			if err != nil {
				return err
			}

			cfg.UpdateFrom(config.Config{
				Log:    config.LogConfig{Level: logLevel},
				Server: config.ServerConfig{Addr: addr, DatabasePath: dbPath},
			})

			logger := log.New(cfg.Log.Level, os.Stdout)
			logger.Info().Str("config", path).Msg("configuration loaded")
			if cfg.Server.JWTSecret == config.Default().Server.JWTSecret {
				logger.Warn().Msg("using the default jwt secret; set EPHEMERAL_SERVER_JWT_SECRET")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg.Server, logger)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			logger.Info().Str("addr", cfg.Server.Addr).Msg("starting ephemeral chat server")
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	return cmd
}
