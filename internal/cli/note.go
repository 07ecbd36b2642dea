package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anbuneel/zenote-sub002/internal/models"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Work with notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <title> [content]",
	Short: "Create a note",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var content []byte
		if len(args) == 2 {
			content = []byte(args[1])
		}
		n, err := current().Notes.Create(cmd.Context(), args[0], content)
		if err != nil {
			return err
		}
		fmt.Println(n.ID)
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, pinned first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := current().Notes.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, n := range all {
			printNoteLine(n)
		}
		return nil
	},
}

var noteTrashCmd = &cobra.Command{
	Use:   "trash",
	Short: "List soft-deleted notes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := current().Notes.ListDeleted(cmd.Context())
		if err != nil {
			return err
		}
		for _, n := range all {
			printNoteLine(n)
		}
		return nil
	},
}

var noteShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		n, err := current().Notes.Get(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\n%s\n", n.Title, string(n.Content))

		tags, err := current().Notes.ListTags(ctx, n.ID)
		if err != nil {
			return err
		}
		if len(tags) > 0 {
			names := make([]string, len(tags))
			for i, t := range tags {
				names[i] = t.Name
			}
			fmt.Printf("tags: %s\n", strings.Join(names, ", "))
		}
		return nil
	},
}

var noteEditCmd = &cobra.Command{
	Use:   "edit <id> <title> [content]",
	Short: "Replace a note's title and content",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var content []byte
		if len(args) == 3 {
			content = []byte(args[2])
		}
		_, err := current().Notes.Update(cmd.Context(), args[0], args[1], content)
		return err
	},
}

var noteRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Move a note to the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if purge {
			return current().Notes.Delete(cmd.Context(), args[0])
		}
		_, err := current().Notes.SoftDelete(cmd.Context(), args[0])
		return err
	},
}

var purge bool

var noteRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore a note from the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := current().Notes.Restore(cmd.Context(), args[0])
		return err
	},
}

var notePinCmd = &cobra.Command{
	Use:   "pin <id>",
	Short: "Toggle a note's pin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := current().Notes.TogglePin(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if n.Pinned {
			fmt.Println("pinned")
		} else {
			fmt.Println("unpinned")
		}
		return nil
	},
}

var noteTagCmd = &cobra.Command{
	Use:   "tag <note-id> <tag-id>",
	Short: "Attach a tag to a note",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current().Notes.AddTag(cmd.Context(), args[0], args[1])
	},
}

var noteUntagCmd = &cobra.Command{
	Use:   "untag <note-id> <tag-id>",
	Short: "Detach a tag from a note",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current().Notes.RemoveTag(cmd.Context(), args[0], args[1])
	},
}

func printNoteLine(n *models.Note) {
	marker := " "
	switch {
	case n.SyncStatus == models.StatusConflict:
		marker = "!"
	case n.SyncStatus == models.StatusPending:
		marker = "*"
	}
	pin := " "
	if n.Pinned {
		pin = "^"
	}
	fmt.Printf("%s%s %s  %s\n", pin, marker, n.ID, n.Title)
}

func init() {
	noteRmCmd.Flags().BoolVar(&purge, "purge", false, "delete permanently instead of trashing")

	noteCmd.AddCommand(noteAddCmd, noteListCmd, noteTrashCmd, noteShowCmd,
		noteEditCmd, noteRmCmd, noteRestoreCmd, notePinCmd, noteTagCmd, noteUntagCmd)
	rootCmd.AddCommand(noteCmd)
}
