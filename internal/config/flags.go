package config

import (
	"flag"
	"os"
	"time"

	"github.com/anbuneel/zenote-sub002/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   database directory
//	-r string   remote PostgreSQL DSN
//	-i int      sync interval in seconds
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, so cobra's own parsing is left undisturbed.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-r", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabaseDir, "d", cfg.DatabaseDir, "database directory")
	fs.StringVar(&cfg.RemoteDSN, "r", cfg.RemoteDSN, "remote PostgreSQL DSN")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
