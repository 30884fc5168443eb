package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sdwkit/sdw/internal/types"
)

var (
	analyzeAll    bool
	analyzeDryRun bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [feature]",
	Short: "Run consistency checks against approved artifacts",
	Long: `Run the consistency checks for a feature: requirement coverage, task
coverage, dependency validity, plan alignment, and open questions. All
checks run even when earlier ones fail.

The report is persisted and an analysis artifact revision is drafted from
it; approve that artifact to pass the analyze phase. A report is pinned to
the tasks revision it was computed against and goes stale when tasks are
re-approved.

Exit status is 2 when the overall result is fail.

Examples:
  sdw analyze user-auth
  sdw analyze user-auth --dry-run
  sdw analyze --all`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, store := openEngine()
		defer store.Close()

		ctx := context.Background()

		if analyzeAll {
			if len(args) > 0 {
				fmt.Fprintf(os.Stderr, "Error: --all takes no feature argument\n")
				os.Exit(1)
			}
			reports, err := eng.AnalyzeAll(ctx, cfg.Actor)
			if err != nil {
				fatal(err)
			}
			if len(reports) == 0 {
				fmt.Println("No features with approved spec and tasks to analyze.")
				return
			}

			ids := make([]string, 0, len(reports))
			for id := range reports {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			failed := false
			for _, id := range ids {
				printReport(reports[id])
				if reports[id].OverallStatus == types.CheckFail {
					failed = true
				}
			}
			if failed {
				os.Exit(2)
			}
			return
		}

		if len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Error: feature argument required (or --all)\n")
			os.Exit(1)
		}

		report, err := eng.Analyze(ctx, args[0], !analyzeDryRun, cfg.Actor)
		if err != nil {
			fatal(err)
		}

		printReport(report)
		if report.OverallStatus == types.CheckFail {
			os.Exit(2)
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeAll, "all", false, "Analyze every active feature")
	analyzeCmd.Flags().BoolVar(&analyzeDryRun, "dry-run", false, "Compute the report without persisting it")
}
