package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sdwkit/sdw/internal/types"
)

var statusEvents int

var statusCmd = &cobra.Command{
	Use:   "status <feature>",
	Short: "Show a feature's phase, artifacts, and latest analysis",
	Long: `Show where a feature stands: current phase, each artifact's latest
revision and approval state, open question counts, and the latest analysis
report with its staleness.

Examples:
  sdw status user-auth
  sdw status user-auth --events 10`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, store := openEngine()
		defer store.Close()

		ctx := context.Background()
		status, err := eng.Status(ctx, args[0])
		if err != nil {
			fatal(err)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		fmt.Printf("\nFeature %s: %s\n\n", status.Feature.ID, phaseLabel(status.Feature.CurrentPhase))

		if len(status.Artifacts) == 0 {
			fmt.Println("  No artifacts yet.")
		}
		for _, a := range status.Artifacts {
			line := fmt.Sprintf("  %-15s %s", a.Kind, approvalLabel(a.Approved, a.Revision))
			if a.OpenQuestions > 0 {
				line += " " + yellow(fmt.Sprintf("%d open questions", a.OpenQuestions))
			}
			fmt.Println(line)
		}

		if status.LatestReport != nil {
			stale := ""
			if status.ReportStale {
				stale = " " + yellow("(stale)")
			}
			fmt.Printf("\n  Analysis: %s against tasks r%d%s\n",
				statusLabel(status.LatestReport.OverallStatus),
				status.LatestReport.TasksRevision, stale)
		} else if status.Feature.CurrentPhase == types.PhaseAnalyze {
			fmt.Printf("\n  Analysis: %s\n", gray("not yet run"))
		}
		fmt.Println()

		if statusEvents > 0 {
			events, err := eng.Events(ctx, args[0], statusEvents)
			if err != nil {
				fatal(err)
			}
			fmt.Printf("Recent events:\n")
			// Stored newest first; print oldest first so the log reads
			// top to bottom.
			for i := len(events) - 1; i >= 0; i-- {
				e := events[i]
				detail := ""
				switch {
				case e.OldValue != nil && e.NewValue != nil:
					detail = fmt.Sprintf("%s -> %s", *e.OldValue, *e.NewValue)
				case e.NewValue != nil:
					detail = *e.NewValue
				}
				fmt.Printf("  %s %-18s %-10s %s\n",
					gray(e.CreatedAt.Local().Format("2006-01-02 15:04")),
					e.EventType, e.Actor, detail)
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntVar(&statusEvents, "events", 0, "Also show the N most recent events")
}
