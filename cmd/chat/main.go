package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/ephemeral-chat/internal/config"
	"github.com/vovakirdan/ephemeral-chat/internal/log"
	"github.com/vovakirdan/ephemeral-chat/internal/realtime/remote"
	"github.com/vovakirdan/ephemeral-chat/internal/room"
	"github.com/vovakirdan/ephemeral-chat/internal/session"
	"github.com/vovakirdan/ephemeral-chat/internal/ui"
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
		backendURL string
		roomName   string
		logLevel   string
		logFile    string
	)

	cmd := &cobra.Command{
		Use:           "ephemeral-chat",
		Short:         "Terminal client for the ephemeral chat room",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			bootLogger := log.New("warn", os.Stderr)
			cfg, _, err := config.Load(bootLogger, configPath)
			if err != nil {
				return err
			}

			cfg.UpdateFrom(config.Config{
				Log:    config.LogConfig{Level: logLevel, File: logFile},
				Client: config.ClientConfig{BackendURL: backendURL, Room: roomName},
			})

			// The terminal belongs to the UI.
			if dir := filepath.Dir(cfg.Log.File); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create log dir: %w", err)
				}
			}
			out, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer out.Close()
			logger := log.New(cfg.Log.Level, out)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			backend, err := remote.New(remote.Options{
				BaseURL:     cfg.Client.BackendURL,
				SessionPath: cfg.Client.SessionPath,
				JoinTimeout: cfg.Client.JoinTimeout,
			}, logger)
			if err != nil {
				return err
			}
			defer backend.Close()
			backend.RemoteAuth().StartAutoRefresh(ctx)

			store := session.NewStore(backend.Auth(), logger)
			defer store.Close()

			ctrl := room.New(backend, room.Options{Room: cfg.Client.Room}, logger)
			defer ctrl.Close()

			store.Start(ctx)
			logger.Info().Str("backend", cfg.Client.BackendURL).Str("room", cfg.Client.Room).Msg("starting chat client")

			return ui.Run(ctx, ui.Deps{
				Auth:    backend.Auth(),
				Session: store,
				Room:    ctrl,
				Logger:  logger,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&backendURL, "backend-url", "", "chat server base URL")
	cmd.Flags().StringVar(&roomName, "room", "", "room to join")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "file the client logs to")

	return cmd
}
