package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdkanban/mdkanban/internal/ui"
)

var mvCmd = &cobra.Command{
	Use:     "mv <id> <column>",
	GroupID: "cards",
	Short:   "Move a card to another column",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBoard(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		c, err := findCard(b.store, args[0])
		if err != nil {
			return err
		}
		from := c.Column

		moved, err := b.store.MoveCard(cmd.Context(), c.ID, args[1])
		if err != nil {
			return err
		}
		if moved.Column == from {
			fmt.Printf("Card %s is already in %s\n", ui.RenderAccent(c.ID), from)
			return nil
		}

		fmt.Printf("%s Moved %s: %s → %s\n", ui.RenderPass("✓"), ui.RenderAccent(c.ID), from, moved.Column)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mvCmd)
}
