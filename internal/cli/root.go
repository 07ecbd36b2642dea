// Package cli wires the cobra command tree over a session. The access
// token saved by `zenote login` is reused on every invocation so each
// command runs inside the same user's session.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/anbuneel/zenote-sub002/internal/config"
	"github.com/anbuneel/zenote-sub002/internal/logging"
	"github.com/anbuneel/zenote-sub002/internal/session"
)

var (
	cfg     *config.Config
	logger  logging.Logger
	manager *session.Manager
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "zenote",
	Short: "Offline-first synced notes",
	Long: `zenote keeps your notes in a local database that works fully
offline and syncs with the shared store whenever the network allows.

Log in once with an access token; every command after that runs against
your local copy and queues changes for sync.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		cfg = config.LoadConfig()

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr,
			&slog.HandlerOptions{Level: level})))

		manager = session.NewManager(cfg, logger)

		if cmd.Name() == "login" {
			return nil
		}
		return restoreSession(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if manager != nil && manager.Current() != nil && cmd.Name() != "logout" {
			_ = manager.Close()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

func tokenPath() string {
	return filepath.Join(cfg.DatabaseDir, "session.token")
}

func restoreSession(cmd *cobra.Command) error {
	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return fmt.Errorf("not logged in; run `zenote login` first")
	}
	_, err = manager.Login(cmd.Context(), string(data))
	return err
}

func current() *session.Session {
	return manager.Current()
}
