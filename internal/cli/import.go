package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anbuneel/zenote-sub002/internal/services"
)

var importCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Bulk-create notes from a JSON array",
	Long: `Import reads a JSON array of notes and creates them locally in
chunks; every imported note is queued for sync individually.

Expected format:

  [{"title": "first", "content": "aGVsbG8=", "pinned": false}, ...]

Content is base64 (standard JSON []byte encoding).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var records []services.ImportRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("failed to parse import file: %w", err)
		}

		created, err := current().Notes.Import(cmd.Context(), records, func(done, total int) {
			fmt.Printf("\rimported %d/%d", done, total)
		})
		if len(created) > 0 {
			fmt.Println()
		}
		if err != nil {
			return err
		}
		fmt.Printf("%d notes imported\n", len(created))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
