package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/sdwkit/sdw/internal/types"
)

// IdentifierCheck fails on duplicate requirement or task identifiers.
// Everything downstream keys on these ids, so a duplicate makes the
// traceability matrix ambiguous.
type IdentifierCheck struct{}

// Name returns the check identifier.
func (c *IdentifierCheck) Name() string { return "identifier_integrity" }

// Priority returns 5 (runs first: later checks assume unique ids).
func (c *IdentifierCheck) Priority() int { return 5 }

// Check reports duplicate FR-#/NFR-# and task ids.
func (c *IdentifierCheck) Check(ctx context.Context, input *Input) types.CheckResult {
	var findings []types.Finding

	for _, id := range input.Index.DuplicateRequirementIDs() {
		findings = append(findings, types.Finding{
			Kind:     types.ErrDuplicateID,
			Severity: types.CheckFail,
			Message:  fmt.Sprintf("requirement %s is declared more than once in the spec", id),
			Subject:  id,
		})
	}
	for _, id := range input.Index.DuplicateTaskIDs() {
		findings = append(findings, types.Finding{
			Kind:     types.ErrDuplicateID,
			Severity: types.CheckFail,
			Message:  fmt.Sprintf("task %s is declared more than once in the tasks artifact", id),
			Subject:  id,
		})
	}

	return failIfFindings(c.Name(), findings)
}

// RequirementCoverageCheck verifies every requirement in the approved spec
// is referenced by at least one task. A requirement nothing implements is a
// coverage gap.
type RequirementCoverageCheck struct{}

// Name returns the check identifier.
func (c *RequirementCoverageCheck) Name() string { return "requirement_coverage" }

// Priority returns 10.
func (c *RequirementCoverageCheck) Priority() int { return 10 }

// Check walks the traceability matrix and fails on every uncovered
// requirement.
func (c *RequirementCoverageCheck) Check(ctx context.Context, input *Input) types.CheckResult {
	var findings []types.Finding

	for _, entry := range input.Index.Trace {
		if len(entry.TaskIDs) == 0 {
			findings = append(findings, types.Finding{
				Kind:     types.ErrCoverageGap,
				Severity: types.CheckFail,
				Message:  fmt.Sprintf("requirement %s has no implementing task", entry.RequirementID),
				Subject:  entry.RequirementID,
			})
		}
	}

	return failIfFindings(c.Name(), findings)
}

// TaskCoverageCheck verifies every task references at least one requirement
// that exists in the approved spec. A task with no requirement reference is
// untraceable work; a reference to a nonexistent requirement is dangling.
type TaskCoverageCheck struct{}

// Name returns the check identifier.
func (c *TaskCoverageCheck) Name() string { return "task_coverage" }

// Priority returns 20.
func (c *TaskCoverageCheck) Priority() int { return 20 }

// Check reports tasks with no requirement references and references that
// resolve to nothing.
func (c *TaskCoverageCheck) Check(ctx context.Context, input *Input) types.CheckResult {
	var findings []types.Finding
	known := input.Index.RequirementIDs()

	for _, task := range input.Index.Tasks {
		if len(task.RequirementRefs) == 0 {
			findings = append(findings, types.Finding{
				Kind:     types.ErrCoverageGap,
				Severity: types.CheckFail,
				Message:  fmt.Sprintf("task %s references no requirement", task.ID),
				Subject:  task.ID,
			})
			continue
		}

		var dangling []string
		for _, ref := range task.RequirementRefs {
			if !known[ref] {
				dangling = append(dangling, ref)
			}
		}
		if len(dangling) > 0 {
			findings = append(findings, types.Finding{
				Kind:     types.ErrDanglingReference,
				Severity: types.CheckFail,
				Message: fmt.Sprintf("task %s references requirements absent from the approved spec: %s",
					task.ID, strings.Join(dangling, ", ")),
				Subject: task.ID,
			})
		}
	}

	return failIfFindings(c.Name(), findings)
}
