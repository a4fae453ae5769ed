package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mdkanban/mdkanban/internal/dashboard"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "advanced",
	Short:   "Serve the board API and live WebSocket updates",
	Long: `Start the dashboard server for UI clients.

The server watches every column directory, so edits made in other editors
show up in connected clients after a short debounce.

Endpoints:
  GET    /api/board              board with rendered card bodies
  POST   /api/cards              create a card
  GET    /api/cards/{id}         one card
  PATCH  /api/cards/{id}         change fields
  POST   /api/cards/{id}/move    move to {"column": ...}
  DELETE /api/cards/{id}         delete
  POST   /api/reload             re-read every column
  GET    /ws                     board broadcasts
  GET    /health`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		b, err := openBoard(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		stopWatching, err := b.store.WatchColumns(ctx)
		if err != nil {
			return err
		}
		defer stopWatching()

		server, err := dashboard.NewServer(b.store, &dashboard.Config{
			Addr:   cfg.Listen,
			Logger: logOut.Logger("dashboard"),
		})
		if err != nil {
			return err
		}
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}

		fmt.Printf("Dashboard server started on http://%s\n", server.GetAddr())
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", server.GetAddr())
		fmt.Println("\nPress Ctrl+C to stop...")

		<-ctx.Done()

		fmt.Println("\nShutting down dashboard server...")
		if err := server.Stop(); err != nil {
			return err
		}
		fmt.Println("Dashboard server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "Address to listen on (default localhost:8080)")
	rootCmd.AddCommand(serveCmd)
}
