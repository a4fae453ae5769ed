package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/mdkanban/mdkanban/internal/ui"
)

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	GroupID: "cards",
	Short:   "Delete a card and its file",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		b, err := openBoard(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		c, err := findCard(b.store, args[0])
		if err != nil {
			return err
		}

		if !yes {
			if !isTerminal() {
				return fmt.Errorf("refusing to delete %s without --yes", c.ID)
			}
			confirmed := false
			if err := huh.NewConfirm().
				Title(fmt.Sprintf("Delete %q?", c.Title)).
				Description(c.FilePath).
				Affirmative("Delete").
				Negative("Cancel").
				Value(&confirmed).
				Run(); err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Cancelled")
				return nil
			}
		}

		if err := b.store.DeleteCard(cmd.Context(), c.ID); err != nil {
			return err
		}
		fmt.Printf("%s Deleted card %s\n", ui.RenderPass("✓"), ui.RenderAccent(c.ID))
		return nil
	},
}

func init() {
	rmCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(rmCmd)
}
