package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sdwkit/sdw/internal/types"
)

var advanceCmd = &cobra.Command{
	Use:   "advance <feature> <phase>",
	Short: "Advance a feature to its next phase",
	Long: `Advance a feature to the named phase after validating preconditions:
the target must be the immediate successor, the current phase's artifact
must be approved, no open questions may remain in the spec or
clarifications, and entering implement requires a current, non-failing
analysis report.

Re-running advance with the phase the feature is already in succeeds
without changing anything.

Phases: specify, clarify, plan, tasks, analyze, implement, done

Examples:
  sdw advance user-auth clarify
  sdw advance user-auth implement`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		target := types.Phase(args[1])

		eng, store := openEngine()
		defer store.Close()

		feature, err := eng.Advance(context.Background(), args[0], target, cfg.Actor)
		if err != nil {
			fatal(err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Feature %s is now in phase %s\n", green("✓"), feature.ID, phaseLabel(feature.CurrentPhase))
	},
}

func init() {
	rootCmd.AddCommand(advanceCmd)
}
