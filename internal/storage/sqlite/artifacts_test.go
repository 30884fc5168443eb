package sqlite

import (
	"context"
	"testing"

	"github.com/sdwkit/sdw/internal/types"
)

func TestCreateRevisionIncrements(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	createFeature(t, store, "user-auth")

	r1, err := store.CreateRevision(ctx, "user-auth", types.KindSpec, "FR-1: first draft", "tester")
	if err != nil {
		t.Fatalf("CreateRevision failed: %v", err)
	}
	if r1.Revision != 1 {
		t.Errorf("first revision = %d, want 1", r1.Revision)
	}
	if r1.Approved {
		t.Error("new revision must start unapproved")
	}
	if r1.ContentHash == "" {
		t.Error("content hash not set")
	}

	r2, err := store.CreateRevision(ctx, "user-auth", types.KindSpec, "FR-1: second draft", "tester")
	if err != nil {
		t.Fatalf("CreateRevision failed: %v", err)
	}
	if r2.Revision != 2 {
		t.Errorf("second revision = %d, want 2", r2.Revision)
	}
	if r2.ContentHash == r1.ContentHash {
		t.Error("different bodies must hash differently")
	}
}

func TestCreateRevisionExtractsOpenQuestions(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	createFeature(t, store, "user-auth")

	body := "FR-1: login [NEEDS CLARIFICATION: which SSO providers?]"
	artifact, err := store.CreateRevision(ctx, "user-auth", types.KindSpec, body, "tester")
	if err != nil {
		t.Fatalf("CreateRevision failed: %v", err)
	}
	if len(artifact.OpenQuestions) != 1 || artifact.OpenQuestions[0] != "which SSO providers?" {
		t.Errorf("OpenQuestions = %v", artifact.OpenQuestions)
	}

	// And they round-trip through the store.
	got, err := store.GetLatest(ctx, "user-auth", types.KindSpec)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if len(got.OpenQuestions) != 1 || got.OpenQuestions[0] != "which SSO providers?" {
		t.Errorf("round-tripped OpenQuestions = %v", got.OpenQuestions)
	}
}

func TestCreateRevisionUnknownFeature(t *testing.T) {
	store := testStore(t)
	_, err := store.CreateRevision(context.Background(), "no-such", types.KindSpec, "body", "tester")
	if !types.IsKind(err, types.ErrFeatureNotFound) {
		t.Errorf("expected FeatureNotFound, got %v", err)
	}
}

func TestApproveLatest(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	createFeature(t, store, "user-auth")

	if _, err := store.CreateRevision(ctx, "user-auth", types.KindSpec, "FR-1: x", "tester"); err != nil {
		t.Fatalf("CreateRevision failed: %v", err)
	}

	// Revision 0 approves whatever is latest.
	approved, err := store.Approve(ctx, "user-auth", types.KindSpec, 0, "alice")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if !approved.Approved || approved.Revision != 1 {
		t.Errorf("approved = %+v", approved)
	}
	if approved.ApprovedBy != "alice" {
		t.Errorf("ApprovedBy = %q", approved.ApprovedBy)
	}
	if approved.ApprovedAt == nil {
		t.Error("ApprovedAt not set")
	}
}

func TestApproveIdempotent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	createFeature(t, store, "user-auth")

	if _, err := store.CreateRevision(ctx, "user-auth", types.KindSpec, "FR-1: x", "tester"); err != nil {
		t.Fatalf("CreateRevision failed: %v", err)
	}
	first, err := store.Approve(ctx, "user-auth", types.KindSpec, 1, "alice")
	if err != nil {
		t.Fatalf("first Approve failed: %v", err)
	}
	second, err := store.Approve(ctx, "user-auth", types.KindSpec, 1, "bob")
	if err != nil {
		t.Fatalf("repeated Approve failed: %v", err)
	}
	// The original approval timestamp survives.
	if !second.ApprovedAt.Equal(*first.ApprovedAt) {
		t.Errorf("ApprovedAt changed on re-approve: %v vs %v", second.ApprovedAt, first.ApprovedAt)
	}
}

func TestApproveStaleRevision(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	createFeature(t, store, "user-auth")

	for _, body := range []string{"FR-1: v1", "FR-1: v2"} {
		if _, err := store.CreateRevision(ctx, "user-auth", types.KindSpec, body, "tester"); err != nil {
			t.Fatalf("CreateRevision failed: %v", err)
		}
	}

	_, err := store.Approve(ctx, "user-auth", types.KindSpec, 1, "alice")
	if !types.IsKind(err, types.ErrStaleRevision) {
		t.Errorf("expected StaleRevision approving r1 behind r2, got %v", err)
	}
}

func TestApproveMissingArtifact(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	createFeature(t, store, "user-auth")

	_, err := store.Approve(ctx, "user-auth", types.KindSpec, 0, "alice")
	if !types.IsKind(err, types.ErrArtifactNotFound) {
		t.Errorf("expected ArtifactNotFound, got %v", err)
	}

	// A revision beyond the latest does not exist either.
	if _, err := store.CreateRevision(ctx, "user-auth", types.KindSpec, "FR-1: x", "tester"); err != nil {
		t.Fatalf("CreateRevision failed: %v", err)
	}
	_, err = store.Approve(ctx, "user-auth", types.KindSpec, 5, "alice")
	if !types.IsKind(err, types.ErrArtifactNotFound) {
		t.Errorf("expected ArtifactNotFound for future revision, got %v", err)
	}
}

func TestGetApprovedSkipsDrafts(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	createFeature(t, store, "user-auth")

	if _, err := store.CreateRevision(ctx, "user-auth", types.KindSpec, "FR-1: v1", "tester"); err != nil {
		t.Fatalf("CreateRevision failed: %v", err)
	}
	if _, err := store.Approve(ctx, "user-auth", types.KindSpec, 1, "alice"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	// A newer draft exists but is not approved.
	if _, err := store.CreateRevision(ctx, "user-auth", types.KindSpec, "FR-1: v2", "tester"); err != nil {
		t.Fatalf("CreateRevision failed: %v", err)
	}

	latest, err := store.GetLatest(ctx, "user-auth", types.KindSpec)
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.Revision != 2 || latest.Approved {
		t.Errorf("GetLatest = %+v", latest)
	}

	approved, err := store.GetApproved(ctx, "user-auth", types.KindSpec)
	if err != nil {
		t.Fatalf("GetApproved failed: %v", err)
	}
	if approved.Revision != 1 || !approved.Approved {
		t.Errorf("GetApproved = %+v", approved)
	}
}

func TestGetApprovedNone(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	createFeature(t, store, "user-auth")

	_, err := store.GetApproved(ctx, "user-auth", types.KindTasks)
	if !types.IsKind(err, types.ErrArtifactNotFound) {
		t.Errorf("expected ArtifactNotFound, got %v", err)
	}
}

func TestConstitutionOnReservedFeature(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	// The reserved feature is seeded at open; no CreateFeature needed.
	artifact, err := store.CreateRevision(ctx, types.ProjectFeatureID, types.KindConstitution, "## Principles\nKeep it simple.", "tester")
	if err != nil {
		t.Fatalf("CreateRevision failed: %v", err)
	}
	if artifact.Revision != 1 {
		t.Errorf("revision = %d, want 1", artifact.Revision)
	}
	if _, err := store.Approve(ctx, types.ProjectFeatureID, types.KindConstitution, 1, "alice"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
}

func TestSaveReportReplaces(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	createFeature(t, store, "user-auth")

	report := &types.AnalysisReport{
		FeatureID:     "user-auth",
		TasksRevision: 1,
		Checks: []types.CheckResult{
			{Name: "requirement-coverage", Status: types.CheckFail, Findings: []types.Finding{
				{Kind: types.ErrCoverageGap, Severity: types.CheckFail, Message: "FR-2 has no task", Subject: "FR-2"},
			}},
		},
	}
	report.OverallStatus = types.ComputeOverall(report.Checks)

	if err := store.SaveReport(ctx, report, "tester"); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	got, err := store.GetLatestReport(ctx, "user-auth")
	if err != nil {
		t.Fatalf("GetLatestReport failed: %v", err)
	}
	if got.OverallStatus != types.CheckFail || got.TasksRevision != 1 {
		t.Errorf("report = %+v", got)
	}
	if len(got.Checks) != 1 || got.Checks[0].Findings[0].Subject != "FR-2" {
		t.Errorf("checks did not round-trip: %+v", got.Checks)
	}

	// A re-run replaces the stored report wholesale.
	report.TasksRevision = 2
	report.Checks[0].Status = types.CheckPass
	report.Checks[0].Findings = nil
	report.OverallStatus = types.ComputeOverall(report.Checks)
	if err := store.SaveReport(ctx, report, "tester"); err != nil {
		t.Fatalf("second SaveReport failed: %v", err)
	}

	got, err = store.GetLatestReport(ctx, "user-auth")
	if err != nil {
		t.Fatalf("GetLatestReport failed: %v", err)
	}
	if got.TasksRevision != 2 || got.OverallStatus != types.CheckPass {
		t.Errorf("replaced report = %+v", got)
	}
}

func TestGetLatestReportNeverAnalyzed(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	createFeature(t, store, "user-auth")

	got, err := store.GetLatestReport(ctx, "user-auth")
	if err != nil {
		t.Fatalf("GetLatestReport failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil report, got %+v", got)
	}
}
