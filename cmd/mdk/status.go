package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdkanban/mdkanban/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "board",
	Short:   "Show the current board and card counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBoard(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		snap := b.store.State()

		fmt.Printf("\n%s Board Status\n\n", ui.RenderAccent("mdk"))
		if b.session.Root != "" {
			fmt.Printf("Root:    %s\n", b.session.Root)
		}
		fmt.Printf("Backend: %s\n", b.session.Backend)
		fmt.Printf("Mount:   %s\n", b.session.Mount)
		fmt.Printf("State:   %s\n", snap.Status())
		if snap.Error != "" {
			fmt.Printf("Error:   %s\n", ui.RenderFail(snap.Error))
		}
		fmt.Println()

		total := 0
		for _, col := range b.store.Stats() {
			fmt.Printf("  %-14s %d\n", col.ID, col.Cards)
			total += col.Cards
		}
		fmt.Printf("  %-14s %d\n\n", "total", total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
