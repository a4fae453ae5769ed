package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mdkanban/mdkanban/internal/card"
	"github.com/mdkanban/mdkanban/internal/ui"
)

var addCmd = &cobra.Command{
	Use:     "add <title...>",
	GroupID: "cards",
	Short:   "Create a card",
	Long: `Create a card file in a column (the first column by default).

Examples:
  mdk add Write release notes
  mdk add "Fix login" -c in-progress -t bug -a sam --due "next friday"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		column, _ := cmd.Flags().GetString("column")
		content, _ := cmd.Flags().GetString("content")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		assignee, _ := cmd.Flags().GetString("assignee")
		due, _ := cmd.Flags().GetString("due")

		var meta *card.Metadata
		if len(tags) > 0 || assignee != "" || due != "" {
			meta = &card.Metadata{Tags: tags}
			if assignee != "" {
				meta.Assignee = &assignee
			}
			if due != "" {
				t, err := parseDue(due, time.Now())
				if err != nil {
					return err
				}
				meta.DueDate = &t
			}
		}

		b, err := openBoard(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		if column == "" {
			column = b.store.Columns()[0]
		}

		c, err := b.store.AddCard(cmd.Context(), strings.Join(args, " "), column, content, meta)
		if err != nil {
			return err
		}

		fmt.Printf("%s Created card %s in %s\n", ui.RenderPass("✓"), ui.RenderAccent(c.ID), c.Column)
		return nil
	},
}

func init() {
	addCmd.Flags().StringP("column", "c", "", "Column to create the card in")
	addCmd.Flags().StringP("content", "m", "", "Markdown body")
	addCmd.Flags().StringSliceP("tag", "t", nil, "Tags (repeatable or comma separated)")
	addCmd.Flags().StringP("assignee", "a", "", "Assignee")
	addCmd.Flags().String("due", "", `Due date: 2024-03-15, RFC 3339, or "next friday"`)
	rootCmd.AddCommand(addCmd)
}
