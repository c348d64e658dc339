package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dayline/internal/migrate"
	"github.com/mschirtzinger/dayline/internal/remote"
	"github.com/mschirtzinger/dayline/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "data",
	Short:   "Bring the stored document up to the current shape",
	Long: `Normalize the user's stored document and write back only the fields that
changed: legacy due dates become start/end dates, missing default tasks and
groups are added, and broken schedule templates are replaced by defaults.

The sync engine does the same on sign-in; this command lets you inspect and
apply it without opening a session. Fields unknown to this version are kept.

Example usage:
  dayline migrate --dry-run      # show what would change
  dayline migrate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		b, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		raw, err := remote.Fetch(ctx, b, cfg.User)
		if err != nil {
			return err
		}
		if raw == nil {
			fmt.Printf("%s No document stored for %s; it will be seeded on first sign-in\n", ui.RenderWarn("⚠"), cfg.User)
			return nil
		}

		res := migrate.Normalize(raw)
		fmt.Printf("%s Stored document for %s is %s\n", ui.RenderAccent("📋"), cfg.User, res.Version)
		if res.Changed == 0 {
			fmt.Printf("%s Already current, nothing to do\n", ui.RenderPass("✓"))
			return nil
		}
		for _, step := range res.Steps {
			fmt.Printf("   - %s\n", step)
		}

		if dryRun {
			fmt.Printf("\n%s Dry run: would write %s\n", ui.RenderWarn("⚠"), res.Changed)
			return nil
		}
		if err := b.Save(ctx, cfg.User, res.Doc.Only(res.Changed)); err != nil {
			return fmt.Errorf("failed to write migrated fields: %w", err)
		}
		fmt.Printf("\n%s Wrote %s\n", ui.RenderPass("✓"), res.Changed)
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("dry-run", false, "show the changes without writing them")
	rootCmd.AddCommand(migrateCmd)
}
