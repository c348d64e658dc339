package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dayline/internal/config"
	"github.com/mschirtzinger/dayline/internal/hub"
	"github.com/mschirtzinger/dayline/internal/logging"
	"github.com/mschirtzinger/dayline/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "sync",
	Short:   "Share the store with other devices over WebSocket",
	Long: `Start a hub that exposes the configured store over WebSocket so several
devices can edit the same documents and see each other's saves live.

Every connected client receives a snapshot of its user's document on connect
and after every save, including its own.

Example usage:
  dayline serve                  # sqlite store, port from config (8080)
  dayline serve --port 9000
  dayline -b file serve          # serve a directory of JSON documents

Clients connect with:
  dayline -b hub --hub-url http://host:8080 today`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store.Backend == config.BackendHub {
			return fmt.Errorf("serve needs a local backend (memory, sqlite or file)")
		}
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = cfg.Hub.Port
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		b, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		server, err := hub.NewServer(hub.Config{
			Port:   port,
			Store:  b,
			Logger: logging.Component("hub"),
		})
		if err != nil {
			return err
		}
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start hub: %w", err)
		}

		fmt.Printf("%s Hub serving %s\n", ui.RenderAccent("🔄"), b.desc)
		fmt.Printf("   WebSocket endpoint: ws://localhost:%d/ws?user=<id>\n", port)
		fmt.Printf("   Health check: http://localhost:%d/health\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		<-ctx.Done()

		fmt.Println("\nShutting down hub...")
		if err := server.Stop(); err != nil {
			return fmt.Errorf("failed to stop hub: %w", err)
		}
		fmt.Printf("%s Hub stopped\n", ui.RenderPass("✓"))
		return nil
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (default from config)")
	rootCmd.AddCommand(serveCmd)
}
