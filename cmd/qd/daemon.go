package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/quarium/quarium/internal/badge"
	"github.com/quarium/quarium/internal/daemon"
	"github.com/quarium/quarium/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scheduled refresh daemon",
	Long: `Run the refresh daemon until interrupted.

The daemon:
  1. Refreshes every query once at startup
  2. Fires a refresh cycle on the configured interval (default 5m)
  3. Drops ticks while a previous cycle is still in flight
  4. Serves the attention badge over WebSocket for the extension chrome

A tick with no complete credential stored is a no-op; log in first with
'qd login'.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatal("%v", err)
		}

		logger := log.New(os.Stderr, "[daemon] ", log.LstdFlags)
		if cfg.LogFile != "" {
			logger = log.New(&lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			}, "[daemon] ", log.LstdFlags)
		}

		sessions, err := openSession(cfg)
		if err != nil {
			fatal("%v", err)
		}
		defer sessions.Close()

		badgeServer := badge.NewServer(&badge.Config{Port: cfg.BadgePort, Logger: logger})
		if err := badgeServer.Start(); err != nil {
			fatal("failed to start badge server: %v", err)
		}
		defer badgeServer.Stop()

		d, err := daemon.New(sessions, newEngine(cfg), badgeServer, &daemon.Config{
			RefreshInterval: cfg.RefreshInterval,
			ConfigPath:      configPath,
			Logger:          logger,
		})
		if err != nil {
			fatal("%v", err)
		}

		fmt.Printf("%s Daemon running (interval %v, badge %s)\n",
			ui.RenderAccent("●"), cfg.RefreshInterval, badgeServer.GetAddr())

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := d.Start(ctx); err != nil {
			fatal("%v", err)
		}
	},
}
