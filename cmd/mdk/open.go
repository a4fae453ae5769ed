package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mdkanban/mdkanban/internal/session"
	"github.com/mdkanban/mdkanban/internal/ui"
)

var openCmd = &cobra.Command{
	Use:     "open [dir]",
	GroupID: "board",
	Short:   "Select the board to work on",
	Long: `Select an existing board directory. The choice is remembered across runs.

The directory must be readable and writable and contain the first column's
subdirectory. Without an argument, pick from recently used boards.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := openState()
		if err != nil {
			return err
		}
		defer state.Close()

		dir := ""
		if len(args) == 1 {
			dir = args[0]
		} else {
			recent, err := state.RecentRoots(cmd.Context(), 10)
			if err != nil {
				return err
			}
			if len(recent) == 0 {
				return fmt.Errorf("no recent boards, pass a directory")
			}
			if !isTerminal() {
				fmt.Println("Recent boards:")
				for _, r := range recent {
					fmt.Printf("  %s\n", r)
				}
				return nil
			}
			if err := huh.NewSelect[string]().
				Title("Open board").
				Options(huh.NewOptions(recent...)...).
				Value(&dir).
				Run(); err != nil {
				return err
			}
		}

		abs, err := session.Select(cmd.Context(), state, dir, cfg.Columns)
		if err != nil {
			var missing *session.MissingColumnError
			if errors.As(err, &missing) {
				fmt.Fprintf(os.Stderr, "%s run 'mdk init %s' to create the columns\n", ui.RenderWarn("Hint:"), dir)
			}
			return err
		}

		fmt.Printf("%s Opened board %s\n", ui.RenderPass("✓"), abs)
		return nil
	},
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func init() {
	rootCmd.AddCommand(openCmd)
}
