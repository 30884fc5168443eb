package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sdwkit/sdw/internal/config"
	"github.com/sdwkit/sdw/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a workflow database in the current directory",
	Long: `Initialize a new workflow by creating a .sdw/ directory with a config
file and SQLite database.

This creates:
  - .sdw/config.yaml
  - .sdw/sdw.db (SQLite database)
  - .sdw/locks/ (per-feature lock files)
  - .sdw/workspace/ (artifact exports, populated by 'sdw sync')

Example:
  cd ~/myproject
  sdw init`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path := flagConfig
		if path == "" {
			path = config.DefaultPath
		}
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(os.Stderr, "Error: %s already exists\n", path)
			os.Exit(1)
		}

		if err := cfg.Write(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		// Opening the store creates the schema and seeds the reserved
		// constitution feature.
		store, err := storage.NewStorage(context.Background(), &storage.Config{Path: cfg.DBPath})
		if err != nil {
			fatal(err)
		}
		_ = store.Close()

		if err := os.MkdirAll(cfg.LockDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized workflow\n\n", green("✓"))
		fmt.Printf("  Config:   %s\n", cyan(path))
		fmt.Printf("  Database: %s\n", cyan(cfg.DBPath))
		fmt.Println()
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray("sdw artifact draft constitution constitution -f constitution.md"))
		fmt.Printf("  %s\n", gray("sdw feature new <id>"))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
