package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sdwkit/sdw/internal/types"
)

func testStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createFeature(t *testing.T, store *SQLiteStorage, id string) *types.Feature {
	t.Helper()
	feature := &types.Feature{ID: id}
	if err := store.CreateFeature(context.Background(), feature, "tester"); err != nil {
		t.Fatalf("failed to create feature %s: %v", id, err)
	}
	return feature
}

func TestCreateAndGetFeature(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	createFeature(t, store, "user-auth")

	got, err := store.GetFeature(ctx, "user-auth")
	if err != nil {
		t.Fatalf("GetFeature failed: %v", err)
	}
	if got.CurrentPhase != types.PhaseSpecify {
		t.Errorf("new feature phase = %s, want %s", got.CurrentPhase, types.PhaseSpecify)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestCreateFeatureDuplicate(t *testing.T) {
	store := testStore(t)
	createFeature(t, store, "user-auth")

	err := store.CreateFeature(context.Background(), &types.Feature{ID: "user-auth"}, "tester")
	if !types.IsKind(err, types.ErrFeatureExists) {
		t.Errorf("expected FeatureExists, got %v", err)
	}
}

func TestCreateFeatureInvalidID(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for _, id := range []string{"", "-leading", "Has-Caps", "spaces bad", "under_score"} {
		if err := store.CreateFeature(ctx, &types.Feature{ID: id}, "tester"); err == nil {
			t.Errorf("expected error for id %q", id)
		}
	}
}

func TestCreateFeatureReservedID(t *testing.T) {
	store := testStore(t)
	err := store.CreateFeature(context.Background(), &types.Feature{ID: types.ProjectFeatureID}, "tester")
	if !types.IsKind(err, types.ErrFeatureExists) {
		t.Errorf("expected FeatureExists for reserved id, got %v", err)
	}
}

func TestGetFeatureNotFound(t *testing.T) {
	store := testStore(t)
	_, err := store.GetFeature(context.Background(), "no-such")
	if !types.IsKind(err, types.ErrFeatureNotFound) {
		t.Errorf("expected FeatureNotFound, got %v", err)
	}
}

func TestListFeaturesExcludesReserved(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	createFeature(t, store, "a-first")
	createFeature(t, store, "b-second")

	features, err := store.ListFeatures(ctx)
	if err != nil {
		t.Fatalf("ListFeatures failed: %v", err)
	}
	if len(features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(features))
	}
	for _, f := range features {
		if f.ID == types.ProjectFeatureID {
			t.Error("reserved feature leaked into list")
		}
	}
}

func TestUpdateFeaturePhase(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	createFeature(t, store, "user-auth")

	err := store.UpdateFeaturePhase(ctx, "user-auth", types.PhaseSpecify, types.PhaseClarify, "tester")
	if err != nil {
		t.Fatalf("UpdateFeaturePhase failed: %v", err)
	}

	got, err := store.GetFeature(ctx, "user-auth")
	if err != nil {
		t.Fatalf("GetFeature failed: %v", err)
	}
	if got.CurrentPhase != types.PhaseClarify {
		t.Errorf("phase = %s, want %s", got.CurrentPhase, types.PhaseClarify)
	}
}

func TestUpdateFeaturePhaseStaleCAS(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	createFeature(t, store, "user-auth")

	// The compare-and-swap must reject an update whose from-phase no
	// longer matches.
	err := store.UpdateFeaturePhase(ctx, "user-auth", types.PhaseClarify, types.PhasePlan, "tester")
	if !types.IsKind(err, types.ErrStaleRevision) {
		t.Errorf("expected StaleRevision, got %v", err)
	}

	got, _ := store.GetFeature(ctx, "user-auth")
	if got.CurrentPhase != types.PhaseSpecify {
		t.Errorf("failed CAS must not change phase, got %s", got.CurrentPhase)
	}
}

func TestAbandonFeature(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	createFeature(t, store, "user-auth")

	if err := store.AbandonFeature(ctx, "user-auth", "tester"); err != nil {
		t.Fatalf("AbandonFeature failed: %v", err)
	}

	got, _ := store.GetFeature(ctx, "user-auth")
	if got.CurrentPhase != types.PhaseAbandoned {
		t.Errorf("phase = %s, want abandoned", got.CurrentPhase)
	}
	if got.AbandonedAt == nil {
		t.Error("AbandonedAt not set")
	}
}

func TestEventsRecorded(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	createFeature(t, store, "user-auth")

	if err := store.UpdateFeaturePhase(ctx, "user-auth", types.PhaseSpecify, types.PhaseClarify, "alice"); err != nil {
		t.Fatalf("UpdateFeaturePhase failed: %v", err)
	}

	events, err := store.GetEvents(ctx, "user-auth", 0)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	// Newest first.
	if events[0].EventType != types.EventPhaseAdvanced {
		t.Errorf("events[0].EventType = %s", events[0].EventType)
	}
	if events[0].Actor != "alice" {
		t.Errorf("events[0].Actor = %s", events[0].Actor)
	}
	if events[1].EventType != types.EventFeatureCreated {
		t.Errorf("events[1].EventType = %s", events[1].EventType)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SetConfig(ctx, "schema_note", "v1"); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	got, err := store.GetConfig(ctx, "schema_note")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if got != "v1" {
		t.Errorf("GetConfig = %q, want v1", got)
	}
}
