package analysis

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdwkit/sdw/internal/storage/sqlite"
	"github.com/sdwkit/sdw/internal/types"
)

func testStore(t *testing.T) *sqlite.SQLiteStorage {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// seedFeature creates a feature with an approved spec and tasks artifact.
func seedFeature(t *testing.T, store *sqlite.SQLiteStorage, id, spec, tasks string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.CreateFeature(ctx, &types.Feature{ID: id}, "tester"))

	_, err := store.CreateRevision(ctx, id, types.KindSpec, spec, "tester")
	require.NoError(t, err)
	_, err = store.Approve(ctx, id, types.KindSpec, 0, "tester")
	require.NoError(t, err)

	_, err = store.CreateRevision(ctx, id, types.KindTasks, tasks, "tester")
	require.NoError(t, err)
	_, err = store.Approve(ctx, id, types.KindTasks, 0, "tester")
	require.NoError(t, err)
}

func checkByName(t *testing.T, report *types.AnalysisReport, name string) types.CheckResult {
	t.Helper()
	for _, c := range report.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s missing from report", name)
	return types.CheckResult{}
}

func TestAnalyzeCleanFeature(t *testing.T) {
	store := testStore(t)
	seedFeature(t, store, "user-auth",
		"FR-1: Users can register\nFR-2: Users can reset passwords\n",
		"## Task 1: Registration endpoint\nImplements FR-1.\n\n## Task 2: Reset flow\nImplements FR-2.\nDepends on: 1\n")

	report, err := NewAnalyzer(store).Run(context.Background(), "user-auth")
	require.NoError(t, err)

	assert.Equal(t, types.CheckPass, report.OverallStatus)
	assert.Equal(t, 1, report.TasksRevision)
	assert.Len(t, report.Checks, 7, "every registered check reports a result")
	for _, c := range report.Checks {
		assert.Equal(t, types.CheckPass, c.Status, "check %s", c.Name)
	}
}

func TestAnalyzeCoverageGap(t *testing.T) {
	store := testStore(t)
	// FR-2 has no implementing task.
	seedFeature(t, store, "user-auth",
		"FR-1: Users can register\nFR-2: Users can reset passwords\n",
		"## Task 1: Registration endpoint\nImplements FR-1.\n")

	report, err := NewAnalyzer(store).Run(context.Background(), "user-auth")
	require.NoError(t, err)

	assert.Equal(t, types.CheckFail, report.OverallStatus)

	coverage := checkByName(t, report, "requirement_coverage")
	assert.Equal(t, types.CheckFail, coverage.Status)
	require.Len(t, coverage.Findings, 1)
	assert.Equal(t, types.ErrCoverageGap, coverage.Findings[0].Kind)
	assert.Equal(t, "FR-2", coverage.Findings[0].Subject)

	// Later checks still ran.
	deps := checkByName(t, report, "dependency_integrity")
	assert.Equal(t, types.CheckPass, deps.Status)
}

func TestAnalyzeDanglingRequirementReference(t *testing.T) {
	store := testStore(t)
	seedFeature(t, store, "user-auth",
		"FR-1: Users can register\n",
		"## Task 1: Registration\nImplements FR-1 and FR-7.\n")

	report, err := NewAnalyzer(store).Run(context.Background(), "user-auth")
	require.NoError(t, err)

	taskCov := checkByName(t, report, "task_coverage")
	assert.Equal(t, types.CheckFail, taskCov.Status)
	require.Len(t, taskCov.Findings, 1)
	assert.Equal(t, types.ErrDanglingReference, taskCov.Findings[0].Kind)
	assert.Contains(t, taskCov.Findings[0].Message, "FR-7")
}

func TestAnalyzeTaskWithoutRequirement(t *testing.T) {
	store := testStore(t)
	seedFeature(t, store, "user-auth",
		"FR-1: Users can register\n",
		"## Task 1: Registration\nImplements FR-1.\n\n## Task 2: Mystery work\nNo requirement here.\n")

	report, err := NewAnalyzer(store).Run(context.Background(), "user-auth")
	require.NoError(t, err)

	taskCov := checkByName(t, report, "task_coverage")
	assert.Equal(t, types.CheckFail, taskCov.Status)
	require.Len(t, taskCov.Findings, 1)
	assert.Equal(t, types.ErrCoverageGap, taskCov.Findings[0].Kind)
	assert.Equal(t, "2", taskCov.Findings[0].Subject)
}

func TestAnalyzeCircularDependency(t *testing.T) {
	store := testStore(t)
	seedFeature(t, store, "user-auth",
		"FR-1: a\nFR-2: b\n",
		"## Task 3: One half\nImplements FR-1.\nDepends on: 5\n\n## Task 5: Other half\nImplements FR-2.\nDepends on: 3\n")

	report, err := NewAnalyzer(store).Run(context.Background(), "user-auth")
	require.NoError(t, err)

	deps := checkByName(t, report, "dependency_integrity")
	assert.Equal(t, types.CheckFail, deps.Status)
	require.NotEmpty(t, deps.Findings)
	assert.Equal(t, types.ErrCircularDependency, deps.Findings[0].Kind)
	assert.Contains(t, deps.Findings[0].Message, "3")
	assert.Contains(t, deps.Findings[0].Message, "5")
}

func TestAnalyzeUnresolvedDependency(t *testing.T) {
	store := testStore(t)
	seedFeature(t, store, "user-auth",
		"FR-1: a\n",
		"## Task 1: Work\nImplements FR-1.\nDepends on: 9\n")

	report, err := NewAnalyzer(store).Run(context.Background(), "user-auth")
	require.NoError(t, err)

	deps := checkByName(t, report, "dependency_integrity")
	assert.Equal(t, types.CheckFail, deps.Status)
	require.NotEmpty(t, deps.Findings)
	assert.Equal(t, types.ErrDanglingReference, deps.Findings[0].Kind)
}

func TestAnalyzeOpenQuestionsInSpec(t *testing.T) {
	store := testStore(t)
	seedFeature(t, store, "user-auth",
		"FR-1: Login [NEEDS CLARIFICATION: which SSO providers?]\n",
		"## Task 1: Login\nImplements FR-1.\n")

	report, err := NewAnalyzer(store).Run(context.Background(), "user-auth")
	require.NoError(t, err)

	questions := checkByName(t, report, "open_questions")
	assert.Equal(t, types.CheckFail, questions.Status)
	require.Len(t, questions.Findings, 1)
	assert.Equal(t, types.ErrOpenQuestionsRemain, questions.Findings[0].Kind)
}

func TestAnalyzePlanAlignmentWarns(t *testing.T) {
	store := testStore(t)
	seedFeature(t, store, "user-auth",
		"FR-1: Users can register\n",
		"## Task 1: Registration endpoint\nImplements FR-1.\n")

	ctx := context.Background()
	_, err := store.CreateRevision(ctx, "user-auth", types.KindPlan,
		"## Registration endpoint\nDetails.\n\n## Billing integration\nNothing in tasks mentions this.\n", "tester")
	require.NoError(t, err)
	_, err = store.Approve(ctx, "user-auth", types.KindPlan, 0, "tester")
	require.NoError(t, err)

	report, err := NewAnalyzer(store).Run(ctx, "user-auth")
	require.NoError(t, err)

	alignment := checkByName(t, report, "plan_task_alignment")
	assert.Equal(t, types.CheckWarn, alignment.Status)
	require.Len(t, alignment.Findings, 1)
	assert.Contains(t, alignment.Findings[0].Message, "Billing integration")

	// Warnings do not fail the overall run.
	assert.Equal(t, types.CheckWarn, report.OverallStatus)
}

func TestAnalyzeDuplicateIdentifiers(t *testing.T) {
	store := testStore(t)
	seedFeature(t, store, "user-auth",
		"FR-1: first\nFR-1: again\n",
		"## Task 1: Work\nImplements FR-1.\n")

	report, err := NewAnalyzer(store).Run(context.Background(), "user-auth")
	require.NoError(t, err)

	ids := checkByName(t, report, "identifier_integrity")
	assert.Equal(t, types.CheckFail, ids.Status)
	require.Len(t, ids.Findings, 1)
	assert.Equal(t, types.ErrDuplicateID, ids.Findings[0].Kind)
	assert.Equal(t, "FR-1", ids.Findings[0].Subject)
}

func TestAnalyzeRequiresApprovedArtifacts(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateFeature(ctx, &types.Feature{ID: "user-auth"}, "tester"))

	_, err := NewAnalyzer(store).Run(ctx, "user-auth")
	assert.True(t, types.IsKind(err, types.ErrArtifactNotFound))
}

func TestGeneratorPersist(t *testing.T) {
	store := testStore(t)
	seedFeature(t, store, "user-auth",
		"FR-1: Users can register\n",
		"## Task 1: Registration\nImplements FR-1.\n")

	ctx := context.Background()
	report, err := NewAnalyzer(store).Run(ctx, "user-auth")
	require.NoError(t, err)

	require.NoError(t, NewGenerator(store).Persist(ctx, report, "tester"))

	saved, err := store.GetLatestReport(ctx, "user-auth")
	require.NoError(t, err)
	assert.Equal(t, report.OverallStatus, saved.OverallStatus)

	// The rendered report is drafted as an analysis artifact, unapproved.
	artifact, err := store.GetLatest(ctx, "user-auth", types.KindAnalysis)
	require.NoError(t, err)
	assert.False(t, artifact.Approved)
	assert.Contains(t, artifact.Body, "Analysis Report: user-auth")
	assert.Contains(t, artifact.Body, "requirement_coverage")
}
