package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <access-token>",
	Short: "Start a session with an access token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := args[0]
		s, err := manager.Login(cmd.Context(), token)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.DatabaseDir, 0o700); err != nil {
			return err
		}
		if err := os.WriteFile(tokenPath(), []byte(token), 0o600); err != nil {
			return err
		}

		fmt.Printf("logged in as %s\n", s.UserID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and remove local data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := manager.Logout(); err != nil {
			return err
		}
		if err := os.Remove(tokenPath()); err != nil && !os.IsNotExist(err) {
			return err
		}
		fmt.Println("logged out")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
