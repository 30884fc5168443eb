package analysis

import (
	"context"
	"fmt"

	"github.com/sdwkit/sdw/internal/types"
)

// OpenQuestionCheck fails when the approved spec or clarifications still
// carry unresolved clarification markers. Unresolved ambiguity upstream
// makes every downstream artifact suspect.
type OpenQuestionCheck struct{}

// Name returns the check identifier.
func (c *OpenQuestionCheck) Name() string { return "open_questions" }

// Priority returns 50.
func (c *OpenQuestionCheck) Priority() int { return 50 }

// Check reports each unresolved question in the spec and clarifications.
func (c *OpenQuestionCheck) Check(ctx context.Context, input *Input) types.CheckResult {
	var findings []types.Finding

	report := func(artifact *types.Artifact) {
		if artifact == nil {
			return
		}
		for _, q := range artifact.OpenQuestions {
			findings = append(findings, types.Finding{
				Kind:     types.ErrOpenQuestionsRemain,
				Severity: types.CheckFail,
				Message:  fmt.Sprintf("%s has an unresolved question: %s", artifact.Kind, q),
				Subject:  string(artifact.Kind),
			})
		}
	}

	report(input.Spec)
	report(input.Clarifications)

	return failIfFindings(c.Name(), findings)
}
