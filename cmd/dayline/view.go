package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dayline/internal/prefs"
	"github.com/mschirtzinger/dayline/internal/ui"
)

var viewCmd = &cobra.Command{
	Use:   "view [name]",
	Short: "Show or set the preferred navigation view",
	Long: `Show or set the view this device opens with. The preference is local to
the device and is not synced.

Views: dashboard, planner, tasks, analytics, settings`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := prefs.NewStore(cfg.StateDir)

		if len(args) == 0 {
			p, err := store.Load()
			if err != nil {
				fmt.Printf("%s %v (using %s)\n", ui.RenderWarn("⚠"), err, p.View)
			}
			for _, v := range prefs.Views {
				marker := "  "
				name := ui.RenderMuted(string(v))
				if v == p.View {
					marker = ui.RenderAccent("▸ ")
					name = string(v)
				}
				fmt.Printf("%s%s\n", marker, name)
			}
			return nil
		}

		v, err := prefs.ParseView(args[0])
		if err != nil {
			return err
		}
		if err := store.SetView(v); err != nil {
			return err
		}
		fmt.Printf("%s View set to %s\n", ui.RenderPass("✓"), v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
