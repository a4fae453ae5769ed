package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mdkanban/mdkanban/internal/config"
	"github.com/mdkanban/mdkanban/internal/logging"
	"github.com/mdkanban/mdkanban/internal/ui"
)

var (
	// cfg is the effective configuration, loaded before every command.
	cfg *config.Config

	// logOut is where component loggers write.
	logOut *logging.Output

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mdk",
	Short: "Kanban boards stored as Markdown files",
	Long: `mdk manages a Kanban board whose cards are Markdown files.

Each column is a directory under the board root and each card is one
{id}.md file with YAML frontmatter. Edit cards with mdk, with the
dashboard, or with any editor; watchers pick up external changes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(config.DefaultSources(cmd.Flags()))
		if err != nil {
			return err
		}
		cfg = loaded

		switch {
		case cfg.Log.File != "":
			logOut = logging.Open(cfg.Log)
		case verbose:
			logOut = logging.Open(logging.Config{})
		default:
			logOut = logging.Discard()
		}

		ui.Init(os.Stdout)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logOut != nil {
			_ = logOut.Close()
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "board", Title: "Board Commands:"},
		&cobra.Group{ID: "cards", Title: "Card Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.String("root", "", "Board root directory (default: last opened board)")
	flags.StringSlice("columns", nil, "Column directories in display order")
	flags.String("backend", "", "File system backend (local, memory)")
	flags.String("mount", "", "Logical path prefix for card files")
	flags.Duration("debounce", 0, "Quiet period before reloading a changed column")
	flags.Bool("strict-parse", false, "Reject cards with malformed frontmatter fields")
	flags.String("state-db", "", "Session database path")
	flags.String("log-file", "", "Write logs to this file (rotated)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("Error:"), err)
		os.Exit(1)
	}
}
