package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"

	"github.com/sdwkit/sdw/internal/types"
)

// hintOf extracts the remediation hint from a structured engine error.
func hintOf(err error) string {
	var ee *types.EngineError
	if errors.As(err, &ee) {
		return ee.Hint
	}
	return ""
}

// phaseLabel renders a phase with its conventional color.
func phaseLabel(p types.Phase) string {
	switch p {
	case types.PhaseDone:
		return color.New(color.FgGreen).Sprint(p)
	case types.PhaseAbandoned:
		return color.New(color.FgHiBlack).Sprint(p)
	case types.PhaseImplement:
		return color.New(color.FgCyan).Sprint(p)
	default:
		return color.New(color.FgYellow).Sprint(p)
	}
}

// statusLabel renders a check status with its conventional color.
func statusLabel(s types.CheckStatus) string {
	switch s {
	case types.CheckPass:
		return color.New(color.FgGreen).Sprint(s)
	case types.CheckWarn:
		return color.New(color.FgYellow).Sprint(s)
	case types.CheckFail:
		return color.New(color.FgRed).Sprint(s)
	default:
		return string(s)
	}
}

// approvalLabel renders an artifact's approval state.
func approvalLabel(approved bool, revision int) string {
	if approved {
		return color.New(color.FgGreen).Sprintf("approved r%d", revision)
	}
	return color.New(color.FgYellow).Sprintf("draft r%d", revision)
}

// printReport writes a human-readable analysis report to stdout.
func printReport(report *types.AnalysisReport) {
	fmt.Printf("\nAnalysis of %s (tasks r%d): %s\n\n",
		report.FeatureID, report.TasksRevision, statusLabel(report.OverallStatus))

	for _, check := range report.Checks {
		fmt.Printf("  %-22s %s\n", check.Name, statusLabel(check.Status))
		for _, finding := range check.Findings {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("    - %s", finding.Message)
			if finding.Subject != "" {
				fmt.Printf(" %s", gray(fmt.Sprintf("(%s)", finding.Subject)))
			}
			fmt.Println()
		}
	}
	fmt.Println()
}
