package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sdwkit/sdw/internal/workspace"
)

var syncCmd = &cobra.Command{
	Use:   "sync [feature]",
	Short: "Export artifacts to the workspace directory",
	Long: `Mirror the latest revision of every artifact onto disk, one directory
per feature, with a YAML sidecar recording revision, approval, and open
questions. The database remains the source of truth; the export is
regenerated wholesale each run.

Examples:
  sdw sync               # export everything
  sdw sync user-auth     # export one feature`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, store := openEngine()
		defer store.Close()

		exporter := workspace.NewExporter(store, cfg.WorkspaceRoot)

		ctx := context.Background()
		var written int
		var err error
		if len(args) == 1 {
			written, err = exporter.ExportFeature(ctx, args[0])
		} else {
			written, err = exporter.ExportAll(ctx)
		}
		if err != nil {
			fatal(err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Exported %d artifacts to %s\n", green("✓"), written, cfg.WorkspaceRoot)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
