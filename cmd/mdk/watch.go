package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mdkanban/mdkanban/internal/store"
	"github.com/mdkanban/mdkanban/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "board",
	Short:   "Follow changes to the board",
	Long: `Watch every column directory and print the per-column card counts when
they change, whether through mdk or an external editor.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		b, err := openBoard(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		updates, unsubscribe := b.store.Subscribe()
		defer unsubscribe()

		stop, err := b.store.WatchColumns(ctx)
		if err != nil {
			return err
		}
		defer stop()

		fmt.Println("Watching for changes, press Ctrl+C to stop...")
		last := ""
		for {
			select {
			case <-ctx.Done():
				return nil
			case snap := <-updates:
				line := summary(snap)
				if line == last {
					continue
				}
				last = line
				fmt.Printf("%s %s\n", ui.RenderMuted(time.Now().Format("15:04:05")), line)
			}
		}
	},
}

func summary(snap store.Snapshot) string {
	parts := make([]string, len(snap.Board.Columns))
	for i, col := range snap.Board.Columns {
		parts[i] = fmt.Sprintf("%s=%d", col.ID, len(col.Cards))
	}
	line := strings.Join(parts, " ")
	if snap.Error != "" {
		line += " " + ui.RenderFail(snap.Error)
	}
	return line
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
