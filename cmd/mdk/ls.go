package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mdkanban/mdkanban/internal/card"
	"github.com/mdkanban/mdkanban/internal/store"
	"github.com/mdkanban/mdkanban/internal/ui"
)

var lsCmd = &cobra.Command{
	Use:     "ls [column]",
	GroupID: "cards",
	Short:   "Show the board",
	Long: `Show the board, or one column of it.

Cards can be narrowed the same way the dashboard's search box does:

  mdk ls --search login           # title or body contains "login"
  mdk ls --tag bug --tag ui       # tagged bug or ui
  mdk ls done --assignee alice`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		search, _ := cmd.Flags().GetString("search")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		assignee, _ := cmd.Flags().GetString("assignee")

		b, err := openBoard(cmd.Context())
		if err != nil {
			return err
		}
		defer b.Close()

		board := b.store.Board().Filter(store.Filter{Search: search, Tags: tags, Assignee: assignee})
		if len(args) == 1 {
			col, ok := board.Column(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", store.ErrUnknownColumn, args[0])
			}
			board = store.Board{Columns: []store.Column{col}}
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(board)
		}

		fmt.Println(ui.RenderColumns(columnBlocks(board), columnWidth(len(board.Columns))))
		return nil
	},
}

func columnBlocks(board store.Board) []ui.Column {
	cols := make([]ui.Column, len(board.Columns))
	for i, col := range board.Columns {
		lines := make([]string, 0, len(col.Cards))
		for _, c := range col.Cards {
			lines = append(lines, cardLine(c))
		}
		title := col.Title
		if title == "" {
			title = col.ID
		}
		cols[i] = ui.Column{Title: fmt.Sprintf("%s (%d)", title, len(col.Cards)), Lines: lines}
	}
	return cols
}

func cardLine(c card.Card) string {
	line := c.Title
	var details []string
	if len(c.Metadata.Tags) > 0 {
		details = append(details, "#"+strings.Join(c.Metadata.Tags, " #"))
	}
	if c.Metadata.Assignee != nil {
		details = append(details, "@"+*c.Metadata.Assignee)
	}
	if c.Metadata.DueDate != nil {
		details = append(details, "due "+c.Metadata.DueDate.Format("2006-01-02"))
	}
	if len(details) > 0 {
		line += "\n  " + ui.RenderMuted(strings.Join(details, " "))
	}
	return line + "\n  " + ui.RenderMuted(c.ID)
}

// columnWidth spreads the terminal width over n columns.
func columnWidth(n int) int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || n == 0 {
		return 0
	}
	w := width/n - 2
	if w < 16 {
		return 0
	}
	return w
}

func init() {
	lsCmd.Flags().Bool("json", false, "Output the board as JSON")
	lsCmd.Flags().String("search", "", "Only cards whose title or body contains this text")
	lsCmd.Flags().StringSlice("tag", nil, "Only cards with any of these tags (repeatable)")
	lsCmd.Flags().String("assignee", "", "Only cards assigned to this person")
	rootCmd.AddCommand(lsCmd)
}
