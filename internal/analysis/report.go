package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/sdwkit/sdw/internal/storage"
	"github.com/sdwkit/sdw/internal/types"
)

// Generator persists analysis results: the structured report row (pinned to
// the Tasks revision it was computed against) plus a rendered analysis
// artifact revision for human review. A later Tasks revision stales the
// report via revision mismatch; re-running analysis replaces it wholesale.
type Generator struct {
	store storage.Storage
}

// NewGenerator creates a report generator over a storage backend.
func NewGenerator(store storage.Storage) *Generator {
	return &Generator{store: store}
}

// Persist stores the report and writes the rendered analysis artifact.
// The artifact revision is created unapproved: approving it is the
// operator's acknowledgement of the analysis, the same gate every other
// artifact passes through.
func (g *Generator) Persist(ctx context.Context, report *types.AnalysisReport, actor string) error {
	if err := g.store.SaveReport(ctx, report, actor); err != nil {
		return err
	}
	_, err := g.store.CreateRevision(ctx, report.FeatureID, types.KindAnalysis, Render(report), actor)
	return err
}

// Render produces the deterministic markdown body of an analysis report.
func Render(report *types.AnalysisReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Analysis Report: %s\n\n", report.FeatureID)
	fmt.Fprintf(&b, "Overall: %s (computed against tasks r%d)\n\n", report.OverallStatus, report.TasksRevision)

	for _, check := range report.Checks {
		fmt.Fprintf(&b, "## %s: %s\n\n", check.Name, check.Status)
		if len(check.Findings) == 0 {
			b.WriteString("No findings.\n\n")
			continue
		}
		for _, f := range check.Findings {
			if f.Kind != "" {
				fmt.Fprintf(&b, "- [%s] %s: %s\n", f.Severity, f.Kind, f.Message)
			} else {
				fmt.Fprintf(&b, "- [%s] %s\n", f.Severity, f.Message)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}
