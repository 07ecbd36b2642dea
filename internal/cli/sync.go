package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/anbuneel/zenote-sub002/internal/engine"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := current().Engine.Sync(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("pulled %d, pushed %d, conflicts %d, failed %d (%s)\n",
			res.Pulled, res.Pushed, res.Conflicts, res.Failed, res.Duration.Round(time.Millisecond))
		for _, e := range res.Errors {
			fmt.Printf("  warn: %v\n", e)
		}
		return nil
	},
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List notes waiting for conflict resolution",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list := current().Engine.Conflicts()
		if len(list) == 0 {
			fmt.Println("no conflicts")
			return nil
		}
		for _, c := range list {
			fmt.Printf("%s\n  local:  %s\n  remote: %s\n", c.ID, c.Local.Title, c.Remote.Title)
		}
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <note-id> <local|remote|both>",
	Short: "Resolve a conflict",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		choice := engine.Choice(args[1])
		switch choice {
		case engine.KeepLocal, engine.KeepRemote, engine.KeepBoth:
		default:
			return errors.New("choice must be one of: local, remote, both")
		}
		return current().Engine.Resolve(cmd.Context(), args[0], choice)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(resolveCmd)
}
