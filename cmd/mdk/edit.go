package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mdkanban/mdkanban/internal/card"
	"github.com/mdkanban/mdkanban/internal/ui"
)

var editCmd = &cobra.Command{
	Use:     "edit <id>",
	GroupID: "cards",
	Short:   "Change a card's title, body or metadata",
	Long: `Change fields of a card. Only the flags you pass are changed.

The id may be abbreviated to any unique prefix.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()

		var patch card.Patch
		if flags.Changed("title") {
			v, _ := flags.GetString("title")
			patch.Title = &v
		}
		if flags.Changed("content") {
			v, _ := flags.GetString("content")
			patch.Content = &v
		}
		if flags.Changed("tag") {
			v, _ := flags.GetStringSlice("tag")
			patch.Tags = append([]string{}, v...)
		}
		if flags.Changed("assignee") {
			v, _ := flags.GetString("assignee")
			patch.Assignee = &v
		}
		if flags.Changed("due") {
			v, _ := flags.GetString("due")
			t, err := parseDue(v, time.Now())
			if err != nil {
				return err
			}
			patch.DueDate = &t
		}
		patch.ClearDueDate, _ = flags.GetBool("clear-due")

		if patch.IsEmpty() {
			return fmt.Errorf("nothing to change, pass at least one field flag")
		}

		b, err := openBoard(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		c, err := findCard(b.store, args[0])
		if err != nil {
			return err
		}
		updated, err := b.store.UpdateCard(cmd.Context(), c.ID, patch)
		if err != nil {
			return err
		}

		fmt.Printf("%s Updated card %s\n", ui.RenderPass("✓"), ui.RenderAccent(updated.ID))
		return nil
	},
}

func init() {
	editCmd.Flags().String("title", "", "New title")
	editCmd.Flags().StringP("content", "m", "", "New Markdown body")
	editCmd.Flags().StringSliceP("tag", "t", nil, "Replace tags (empty to clear)")
	editCmd.Flags().StringP("assignee", "a", "", "Assignee (empty to clear)")
	editCmd.Flags().String("due", "", "Due date")
	editCmd.Flags().Bool("clear-due", false, "Remove the due date")
	editCmd.MarkFlagsMutuallyExclusive("due", "clear-due")
	rootCmd.AddCommand(editCmd)
}
