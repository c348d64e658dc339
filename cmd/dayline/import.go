package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mschirtzinger/dayline/internal/migrate"
	"github.com/mschirtzinger/dayline/internal/schema"
	"github.com/mschirtzinger/dayline/internal/ui"
)

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "data",
	Short:   "Replace document fields from a backup file",
	Long: `Import a backup written by 'dayline export' (or an older export).

Only the fields present in the file are replaced; the others are left as they
are. Tasks from old exports are migrated to the current shape. When run in a
terminal the import asks for confirmation unless --yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		b, err := migrate.ReadBackupFile(args[0])
		if err != nil {
			return err
		}
		fields := backupFields(b)
		if len(fields) == 0 {
			fmt.Printf("%s %s carries no document fields, nothing to import\n", ui.RenderWarn("⚠"), args[0])
			return nil
		}

		if !yes && term.IsTerminal(int(os.Stdin.Fd())) {
			confirmed := false
			err := huh.NewConfirm().
				Title(fmt.Sprintf("Replace %s for %s?", strings.Join(fields, ", "), cfg.User)).
				Description(fmt.Sprintf("Backup exported %s", b.ExportedAt.Local().Format("2006-01-02 15:04"))).
				Affirmative("Import").
				Negative("Cancel").
				Value(&confirmed).
				Run()
			if err != nil {
				return fmt.Errorf("failed to confirm import: %w", err)
			}
			if !confirmed {
				fmt.Println("Import cancelled")
				return nil
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		s, err := openSession(ctx, cfg)
		if err != nil {
			return err
		}
		replaced, err := s.ImportBackup(b)
		if err != nil {
			_ = s.Close()
			return err
		}
		if err := s.Close(); err != nil {
			return fmt.Errorf("failed to save imported document: %w", err)
		}

		fmt.Printf("%s Imported %s into %s\n", ui.RenderPass("✓"), replaced, cfg.User)
		return nil
	},
}

// backupFields names the document fields a backup carries.
func backupFields(b *migrate.Backup) []string {
	var out []string
	if b.Tasks != nil {
		out = append(out, schema.FieldTasks.String())
	}
	if b.Groups != nil {
		out = append(out, schema.FieldGroups.String())
	}
	if b.Milestones != nil {
		out = append(out, schema.FieldMilestones.String())
	}
	if b.ScheduleTemplates != nil {
		out = append(out, schema.FieldScheduleTemplates.String())
	}
	return out
}

func init() {
	importCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(importCmd)
}
