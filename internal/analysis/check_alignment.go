package analysis

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sdwkit/sdw/internal/types"
)

// headingPattern matches markdown section headings in plan and constitution
// bodies.
var headingPattern = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*$`)

// sectionHeadings returns the normalized heading texts of a body, in order,
// skipping headings too short to be meaningful containment probes.
func sectionHeadings(body string) []string {
	var headings []string
	for _, line := range strings.Split(body, "\n") {
		m := headingPattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		h := strings.ToLower(strings.TrimSpace(m[1]))
		if len(h) < 4 {
			continue
		}
		headings = append(headings, h)
	}
	return headings
}

// PlanAlignmentCheck verifies every named section of the approved plan is
// referenced by at least one task's title or body. This is a textual
// containment check, not NLP: an unreferenced plan section is planned work
// no task picks up, reported as warn rather than fail because section
// naming is looser than requirement ids.
type PlanAlignmentCheck struct{}

// Name returns the check identifier.
func (c *PlanAlignmentCheck) Name() string { return "plan_task_alignment" }

// Priority returns 40.
func (c *PlanAlignmentCheck) Priority() int { return 40 }

// Check warns for each plan section no task mentions.
func (c *PlanAlignmentCheck) Check(ctx context.Context, input *Input) types.CheckResult {
	if input.Plan == nil {
		return types.CheckResult{Name: c.Name(), Status: types.CheckPass}
	}

	var taskText strings.Builder
	for _, task := range input.Index.Tasks {
		taskText.WriteString(strings.ToLower(task.Title))
		taskText.WriteString("\n")
		taskText.WriteString(strings.ToLower(task.Body))
		taskText.WriteString("\n")
	}
	corpus := taskText.String()

	var findings []types.Finding
	for _, heading := range sectionHeadings(input.Plan.Body) {
		if !strings.Contains(corpus, heading) {
			findings = append(findings, types.Finding{
				Severity: types.CheckWarn,
				Message:  fmt.Sprintf("plan section %q is not referenced by any task", heading),
				Subject:  heading,
			})
		}
	}

	return failIfFindings(c.Name(), findings)
}

// ConstitutionCheck is the optional project-scope check: when a constitution
// artifact exists, each of its principle headings should be acknowledged
// somewhere in the plan or tasks text. The constitution governs style and
// process rather than feature scope, so findings are warns, never fails.
type ConstitutionCheck struct{}

// Name returns the check identifier.
func (c *ConstitutionCheck) Name() string { return "constitution_alignment" }

// Priority returns 60.
func (c *ConstitutionCheck) Priority() int { return 60 }

// Check warns for each constitution heading neither the plan nor any task
// mentions. Passes trivially when no constitution exists.
func (c *ConstitutionCheck) Check(ctx context.Context, input *Input) types.CheckResult {
	if input.Constitution == nil {
		return types.CheckResult{Name: c.Name(), Status: types.CheckPass}
	}

	var corpus strings.Builder
	if input.Plan != nil {
		corpus.WriteString(strings.ToLower(input.Plan.Body))
		corpus.WriteString("\n")
	}
	for _, task := range input.Index.Tasks {
		corpus.WriteString(strings.ToLower(task.Title))
		corpus.WriteString("\n")
		corpus.WriteString(strings.ToLower(task.Body))
		corpus.WriteString("\n")
	}
	text := corpus.String()

	var findings []types.Finding
	for _, heading := range sectionHeadings(input.Constitution.Body) {
		if !strings.Contains(text, heading) {
			findings = append(findings, types.Finding{
				Severity: types.CheckWarn,
				Message:  fmt.Sprintf("constitution principle %q is not acknowledged in the plan or tasks", heading),
				Subject:  heading,
			})
		}
	}

	return failIfFindings(c.Name(), findings)
}
