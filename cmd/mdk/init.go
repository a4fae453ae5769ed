package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mdkanban/mdkanban/internal/fsadapter"
	"github.com/mdkanban/mdkanban/internal/session"
	"github.com/mdkanban/mdkanban/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	GroupID: "board",
	Short:   "Create a board and select it",
	Long: `Create the column directories of a new board and make it the current board.

The directory defaults to ./kanban-data. Existing columns and cards are left
untouched, so init is safe to run on a board that already exists.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := session.ExpectedRootName
		if len(args) == 1 {
			dir = args[0]
		}

		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		local, err := fsadapter.NewLocal(dir, cfg.Mount)
		if err != nil {
			return err
		}
		if err := session.InitBoard(cmd.Context(), local, cfg.Mount, cfg.Columns); err != nil {
			return err
		}

		state, err := openState()
		if err != nil {
			return err
		}
		defer state.Close()

		abs, err := session.Select(cmd.Context(), state, dir, cfg.Columns)
		if err != nil {
			return err
		}

		fmt.Printf("%s Initialized board at %s\n", ui.RenderPass("✓"), abs)
		for _, col := range cfg.Columns {
			fmt.Printf("   %s/\n", col)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
