package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dayline/internal/config"
	"github.com/mschirtzinger/dayline/internal/migrate"
	"github.com/mschirtzinger/dayline/internal/prefs"
	"github.com/mschirtzinger/dayline/internal/remote"
	"github.com/mschirtzinger/dayline/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show store location and document status",
	Long: `Display the configured store and the state of the user's document.

Shows:
  - Config file, backend and store location
  - Stored document shape and field counts
  - Number of completion records
  - The preferred view of this device`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\n%s dayline status\n\n", ui.RenderAccent("📊"))

		configFile := v.ConfigFileUsed()
		if configFile == "" {
			configFile = ui.RenderMuted("(none)")
		}
		ui.KeyValue(out,
			"Config", configFile,
			"User", cfg.User,
			"State dir", cfg.StateDir,
			"View", string(prefs.NewStore(cfg.StateDir).View()),
		)

		b, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		location := b.desc
		if cfg.Store.Backend == config.BackendSQLite {
			if info, err := os.Stat(cfg.StorePath()); err == nil {
				location = fmt.Sprintf("%s (%s, modified %s)", location, ui.FormatSize(info.Size()), info.ModTime().Format("2006-01-02 15:04:05"))
			}
		}
		ui.KeyValue(out, "Store", location)

		raw, err := remote.Fetch(ctx, b, cfg.User)
		if err != nil {
			return err
		}
		if raw == nil {
			ui.KeyValue(out, "Document", ui.RenderWarn("none yet")+" (seeded on first sign-in)")
		} else {
			res := migrate.Normalize(raw)
			shape := res.Version.String()
			if res.Changed != 0 {
				shape += ui.RenderWarn(" (needs migrate: " + res.Changed.String() + ")")
			}
			ui.KeyValue(out,
				"Document", shape,
				"Tasks", fmt.Sprint(len(raw.Get("tasks").Array())),
				"Groups", fmt.Sprint(len(raw.Get("groups").Array())),
				"Milestones", fmt.Sprint(len(raw.Get("milestones").Array())),
			)
		}

		n, err := b.CountRecords(ctx, cfg.User)
		if err != nil {
			return fmt.Errorf("failed to count records: %w", err)
		}
		ui.KeyValue(out, "Records", fmt.Sprint(n))
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
