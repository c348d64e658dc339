package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dayline/internal/schema"
	"github.com/mschirtzinger/dayline/internal/ui"
)

var recordsCmd = &cobra.Command{
	Use:     "records [date]",
	GroupID: "data",
	Short:   "List completion records",
	Long: `List the completed and skipped tasks recorded for a day or a range.

Dates accept YYYY-MM-DD or natural language.

Example usage:
  dayline records                       # today
  dayline records yesterday
  dayline records --from "last monday" --to today
  dayline records --count`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fromText, _ := cmd.Flags().GetString("from")
		toText, _ := cmd.Flags().GetString("to")
		countOnly, _ := cmd.Flags().GetBool("count")

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		b, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		if countOnly {
			n, err := b.CountRecords(ctx, cfg.User)
			if err != nil {
				return fmt.Errorf("failed to count records: %w", err)
			}
			fmt.Printf("%d records for %s\n", n, cfg.User)
			return nil
		}

		now := time.Now()
		if len(args) == 1 {
			if fromText != "" || toText != "" {
				return fmt.Errorf("give either a date or --from/--to, not both")
			}
			fromText, toText = args[0], args[0]
		}
		from, err := parseDay(fromText, now)
		if err != nil {
			return err
		}
		to := from
		if toText != "" {
			if to, err = parseDay(toText, now); err != nil {
				return err
			}
		}
		if to < from {
			from, to = to, from
		}

		recs, err := b.RecordsInRange(ctx, cfg.User, from, to)
		if err != nil {
			return fmt.Errorf("failed to load records: %w", err)
		}

		span := from
		if to != from {
			span = from + " .. " + to
		}
		if len(recs) == 0 {
			fmt.Printf("No records for %s\n", span)
			return nil
		}

		rows := [][]string{{"DATE", "STATUS", "TASK", "CATEGORY", "WINDOW"}}
		for _, r := range recs {
			window := ""
			if r.ActualStartTime != "" {
				window = r.ActualStartTime + "-" + r.ActualEndTime
			}
			status := ui.RenderPass(string(r.Status))
			if r.Status != schema.RecordCompleted {
				status = ui.RenderMuted(string(r.Status))
			}
			rows = append(rows, []string{r.Date, status, r.Title, r.Category, window})
		}
		fmt.Printf("%s Records for %s\n\n", ui.RenderAccent("📅"), span)
		fmt.Print(ui.Table(rows))
		return nil
	},
}

func init() {
	recordsCmd.Flags().String("from", "", "first day of the range")
	recordsCmd.Flags().String("to", "", "last day of the range")
	recordsCmd.Flags().Bool("count", false, "only print the number of records")
	rootCmd.AddCommand(recordsCmd)
}
