package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dayline/internal/config"
	"github.com/mschirtzinger/dayline/internal/logging"
	"github.com/mschirtzinger/dayline/internal/remote"
	"github.com/mschirtzinger/dayline/internal/ui"
)

var copyCmd = &cobra.Command{
	Use:     "copy",
	GroupID: "sync",
	Short:   "Copy a user's document and records to another store",
	Long: `Copy the user's document (migrated to the current shape) and all completion
records from the configured store to another one. Records that fail to copy
are logged and skipped.

Example usage:
  dayline -b file copy --to sqlite
  dayline copy --to hub --to-url http://server:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		toBackend, _ := cmd.Flags().GetString("to")
		toPath, _ := cmd.Flags().GetString("to-path")
		toURL, _ := cmd.Flags().GetString("to-url")

		dst := *cfg
		dst.Store = config.StoreConfig{Backend: toBackend, Path: toPath, URL: toURL}
		if dst.Store.URL == "" {
			dst.Store.URL = cfg.Store.URL
		}
		if err := dst.Validate(); err != nil {
			return fmt.Errorf("invalid destination: %w", err)
		}
		if dst.Store.Backend == cfg.Store.Backend && dst.StorePath() == cfg.StorePath() && dst.Store.URL == cfg.Store.URL {
			return fmt.Errorf("source and destination are the same store")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		src, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer src.Close()
		to, err := openBackend(ctx, &dst)
		if err != nil {
			return err
		}
		defer to.Close()

		fmt.Printf("%s Copying %s from %s to %s...\n", ui.RenderAccent("🔄"), cfg.User, src.desc, to.desc)
		start := time.Now()

		stats, err := remote.Copy(ctx, src, to, cfg.User, logging.Component("copy"))
		if err != nil {
			return err
		}

		fmt.Printf("%s Copy complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		if !stats.Document {
			fmt.Printf("   Document: none stored\n")
		}
		fmt.Printf("   Records: %d\n", stats.Records)
		if stats.RecordsFailed > 0 {
			fmt.Printf("   %s %d records failed (see log)\n", ui.RenderWarn("⚠"), stats.RecordsFailed)
		}
		return nil
	},
}

func init() {
	copyCmd.Flags().String("to", config.BackendSQLite, "destination backend: memory, sqlite, file or hub")
	copyCmd.Flags().String("to-path", "", "destination sqlite file or document directory")
	copyCmd.Flags().String("to-url", "", "destination hub address")
	rootCmd.AddCommand(copyCmd)
}
