package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarium/quarium/internal/config"
	"github.com/quarium/quarium/internal/engine"
	"github.com/quarium/quarium/internal/gist"
	"github.com/quarium/quarium/internal/schema"
	"github.com/quarium/quarium/internal/search"
	"github.com/quarium/quarium/internal/session"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "qd",
	Short: "Synchronized issue/PR query dashboard",
	Long: `qd keeps named queries against your issue/PR tracker in sync.

Query definitions and their cached results live in a single private
gist. The daemon re-executes every query on a fixed schedule, writes
the document back when results changed, and publishes an attention
badge over WebSocket for the extension chrome.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statusCmd)
}

// loadConfig resolves the effective configuration.
func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// openSession opens the durable session store.
func openSession(cfg config.Config) (*session.Store, error) {
	s, err := session.Open(cfg.SessionPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return s, nil
}

// newEngine wires the document store and search client into an engine.
func newEngine(cfg config.Config) engine.Engine {
	store := gist.New(cfg.APIBase, nil)
	fetcher := search.New(cfg.SearchBase, nil)
	return engine.New(store, fetcher, nil)
}

// mustLogin loads config, opens the session store, and requires a
// complete stored credential. The caller owns closing the store.
func mustLogin() (config.Config, *session.Store, schema.Credential) {
	cfg, err := loadConfig()
	if err != nil {
		fatal("%v", err)
	}
	sessions, err := openSession(cfg)
	if err != nil {
		fatal("%v", err)
	}
	cred, err := sessions.Credential()
	if err != nil {
		sessions.Close()
		fatal("%v", err)
	}
	if !cred.Complete() {
		sessions.Close()
		fatal("not logged in; run 'qd login' first")
	}
	return cfg, sessions, cred
}

// loadDocument fetches the current remote query document.
func loadDocument(cfg config.Config, cred schema.Credential) (schema.QueryMap, error) {
	return gist.New(cfg.APIBase, nil).Load(context.Background(), cred)
}

// fatal prints an error and exits.
func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
