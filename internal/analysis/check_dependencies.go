package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/sdwkit/sdw/internal/types"
)

// DependencyCheck validates the task dependency graph: all declared
// dependencies resolve to real tasks and the edge set forms a DAG. On a
// healthy graph it also cross-checks declared [P] markers against the
// computed waves.
type DependencyCheck struct{}

// Name returns the check identifier.
func (c *DependencyCheck) Name() string { return "dependency_integrity" }

// Priority returns 30.
func (c *DependencyCheck) Priority() int { return 30 }

// Check reports unresolved dependency targets, cycles, and contradicted
// parallel markers.
func (c *DependencyCheck) Check(ctx context.Context, input *Input) types.CheckResult {
	var findings []types.Finding
	g := input.Graph

	for _, edge := range g.Unresolved {
		findings = append(findings, types.Finding{
			Kind:     types.ErrDanglingReference,
			Severity: types.CheckFail,
			Message:  fmt.Sprintf("task %s depends on task %s, which does not exist", edge.To, edge.From),
			Subject:  edge.To,
		})
	}

	if cycle := g.FindCycle(); len(cycle) > 0 {
		findings = append(findings, types.Finding{
			Kind:     types.ErrCircularDependency,
			Severity: types.CheckFail,
			Message:  fmt.Sprintf("circular dependency: %s", strings.Join(cycle, " -> ")),
			Subject:  strings.Join(cycle, ","),
		})
		// No wave analysis on a cyclic graph.
		return failIfFindings(c.Name(), findings)
	}

	// A task marked [P] that transitively depends on another task in its
	// own declared-parallel set contradicts the marker. The waves are the
	// ground truth; the marker is advisory input from the author.
	for _, task := range input.Index.Tasks {
		if !task.ParallelEligible {
			continue
		}
		for _, other := range input.Index.Tasks {
			if !other.ParallelEligible || other.ID <= task.ID {
				continue
			}
			if !g.ParallelEligible(task.ID, other.ID) {
				findings = append(findings, types.Finding{
					Severity: types.CheckWarn,
					Message: fmt.Sprintf("tasks %s and %s are both marked [P] but one depends on the other",
						task.ID, other.ID),
					Subject: task.ID,
				})
			}
		}
	}

	return failIfFindings(c.Name(), findings)
}
