package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dayline/internal/migrate"
	"github.com/mschirtzinger/dayline/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export <file>",
	GroupID: "data",
	Short:   "Write the user's document to a backup file",
	Long: `Export tasks, groups, milestones and schedule templates to a JSON backup.

The document is loaded through the sync engine, so a brand-new user exports
the defaults and a legacy document is exported in the current shape.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetBool("keep-previous")

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		s, err := openSession(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		doc := s.Snapshot()
		previous, err := migrate.WriteBackupFile(args[0], migrate.ExportBackup(doc, time.Now()), migrate.WriteOptions{KeepPrevious: keep})
		if err != nil {
			return err
		}

		fmt.Printf("%s Exported %s to %s\n", ui.RenderPass("✓"), cfg.User, args[0])
		ui.KeyValue(cmd.OutOrStdout(),
			"Tasks", fmt.Sprint(len(doc.Tasks)),
			"Groups", fmt.Sprint(len(doc.Groups)),
			"Milestones", fmt.Sprint(len(doc.Milestones)),
		)
		if previous != "" {
			fmt.Printf("   Previous file kept at %s\n", previous)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().Bool("keep-previous", true, "copy an existing file to <file>.backup.<timestamp> first")
	rootCmd.AddCommand(exportCmd)
}
