package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anbuneel/zenote-sub002/internal/models"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Work with tags",
}

var tagColor string

var tagAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := current().Tags.Create(cmd.Context(), args[0], models.TagColor(tagColor))
		if err != nil {
			return err
		}
		fmt.Println(t.ID)
		return nil
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := current().Tags.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, t := range all {
			fmt.Printf("%s  %-20s %s\n", t.ID, t.Name, t.Color)
		}
		return nil
	},
}

var tagRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a tag (and optionally recolor with --color)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		t, err := current().Tags.Get(ctx, args[0])
		if err != nil {
			return err
		}
		color := t.Color
		if cmd.Flags().Changed("color") {
			color = models.TagColor(tagColor)
		}
		_, err = current().Tags.Update(ctx, args[0], args[1], color)
		return err
	},
}

var tagRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a tag everywhere",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return current().Tags.Delete(cmd.Context(), args[0])
	},
}

func init() {
	tagAddCmd.Flags().StringVar(&tagColor, "color", "", "tag color (slate, red, orange, amber, green, teal, blue, violet, pink)")
	tagRenameCmd.Flags().StringVar(&tagColor, "color", "", "new tag color")

	tagCmd.AddCommand(tagAddCmd, tagListCmd, tagRenameCmd, tagRmCmd)
	rootCmd.AddCommand(tagCmd)
}
