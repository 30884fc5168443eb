package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sdwkit/sdw/internal/config"
	"github.com/sdwkit/sdw/internal/engine"
	"github.com/sdwkit/sdw/internal/storage"
)

var (
	flagConfig string
	flagDBPath string
	flagActor  string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sdw",
	Short: "Specification-driven workflow engine",
	Long: `sdw tracks features through a fixed sequence of phases, from constitution
through specification, planning, task breakdown, consistency analysis, and
implementation. Every phase produces a versioned artifact that must be
approved before the feature advances.

Typical flow:
  sdw init
  sdw feature new user-auth
  sdw artifact draft user-auth spec -f spec.md
  sdw artifact approve user-auth spec
  sdw advance user-auth clarify
  ...
  sdw analyze user-auth
  sdw advance user-auth implement`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagDBPath != "" {
			cfg.DBPath = flagDBPath
		}
		if flagActor != "" {
			cfg.Actor = flagActor
		}
		return nil
	},
}

func main() {
	registerFeatureAliases()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default .sdw/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Database file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagActor, "actor", "", "Identity recorded on events and approvals")
}

// openEngine opens the store and builds the engine, exiting on failure.
// Callers must Close the returned store.
func openEngine() (*engine.Engine, storage.Storage) {
	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: cfg.DBPath})
	if err != nil {
		fatal(err)
	}
	eng, err := engine.New(&engine.Config{
		Store:              store,
		LockDir:            cfg.LockDir,
		LockStaleAfter:     cfg.LockStaleAfter(),
		AnalyzeParallelism: cfg.AnalyzeParallelism,
	})
	if err != nil {
		_ = store.Close()
		fatal(err)
	}
	return eng, store
}

// fatal prints a structured error with its remediation hint and exits.
func fatal(err error) {
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
	if hint := hintOf(err); hint != "" {
		fmt.Fprintf(os.Stderr, "  %s\n", gray(hint))
	}
	os.Exit(1)
}
