// Command dayline keeps a personal schedule document in sync across devices
// and maintains its stored shape.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/dayline/internal/config"
	"github.com/mschirtzinger/dayline/internal/logging"
	"github.com/mschirtzinger/dayline/internal/ui"
)

var (
	cfgFile   string
	v         = config.NewViper()
	cfg       *config.Config
	logCloser = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "dayline",
	Short: "Plan your day and keep it in sync",
	Long: `dayline keeps one schedule document per user (tasks, groups, milestones
and weekly schedule templates) in a store and syncs edits with auto-save.

Stores:
  memory   in-process, for trying things out
  sqlite   a local database file (default)
  file     one JSON file per user, watched for external edits
  hub      a remote 'dayline serve' instance over WebSocket`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		logger, closer, err := logging.New(logging.Options{
			Level:   cfg.Log.Level,
			File:    cfg.Log.File,
			Console: cfg.Log.Console,
		})
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		logging.Install(logger)
		logCloser = closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logCloser()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "plan", Title: "Planning:"},
		&cobra.Group{ID: "data", Title: "Data:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./dayline.yaml, then <state-dir>/dayline.yaml)")
	pf.StringP("user", "u", "", "user id")
	pf.String("state-dir", "", "directory for the database, documents and preferences")
	pf.StringP("backend", "b", "", "store backend: memory, sqlite, file or hub")
	pf.String("store", "", "sqlite file or document directory")
	pf.String("hub-url", "", "hub address for the hub backend")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	pf.String("log-file", "", "write JSON logs to this file")

	bindings := map[string]string{
		"user":          "user",
		"state_dir":     "state-dir",
		"store.backend": "backend",
		"store.path":    "store",
		"store.url":     "hub-url",
		"log.level":     "log-level",
		"log.file":      "log-file",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("Error:"), err)
		os.Exit(1)
	}
}
