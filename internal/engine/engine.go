// Package engine is the orchestration core: it tracks each feature's current
// phase, validates transition preconditions, and gates all writes to the
// artifact store. Approval is an external input recorded on artifacts; the
// engine never waits for it, it only rejects advancement until it is there.
package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sdwkit/sdw/internal/analysis"
	"github.com/sdwkit/sdw/internal/storage"
	"github.com/sdwkit/sdw/internal/types"
)

// Config holds engine configuration
type Config struct {
	Store storage.Storage

	// LockDir is where per-feature lock files live.
	LockDir string

	// LockStaleAfter is how long a held feature lock survives before
	// reclaim. Zero keeps the default of 15 minutes.
	LockStaleAfter time.Duration

	// AnalyzeParallelism bounds concurrent feature analyses in AnalyzeAll.
	// Zero keeps the default of 4.
	AnalyzeParallelism int
}

// Engine coordinates the phase state machine, artifact store, analyzer, and
// report generator for all features.
type Engine struct {
	store       storage.Storage
	locks       *storage.LockManager
	analyzer    *analysis.Analyzer
	generator   *analysis.Generator
	parallelism int
}

// New creates an engine
func New(cfg *Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.LockDir == "" {
		return nil, fmt.Errorf("lock directory is required")
	}
	staleAfter := cfg.LockStaleAfter
	if staleAfter == 0 {
		staleAfter = 15 * time.Minute
	}
	parallelism := cfg.AnalyzeParallelism
	if parallelism <= 0 {
		parallelism = 4
	}

	return &Engine{
		store:       cfg.Store,
		locks:       storage.NewLockManager(cfg.LockDir, staleAfter),
		analyzer:    analysis.NewAnalyzer(cfg.Store),
		generator:   analysis.NewGenerator(cfg.Store),
		parallelism: parallelism,
	}, nil
}

// NewFeature creates a feature in the specify phase and seeds its empty
// spec artifact slot.
func (e *Engine) NewFeature(ctx context.Context, id, actor string) (*types.Feature, error) {
	feature := &types.Feature{ID: id, CurrentPhase: types.PhaseSpecify}
	if err := e.store.CreateFeature(ctx, feature, actor); err != nil {
		return nil, err
	}
	if _, err := e.store.CreateRevision(ctx, id, types.KindSpec, "", actor); err != nil {
		return nil, err
	}
	return feature, nil
}

// Draft creates the next revision of an artifact. Serialized per feature:
// concurrent drafts cannot race revision numbering past the store's own
// serialization, but the lock also keeps a draft from interleaving with an
// in-flight advance.
func (e *Engine) Draft(ctx context.Context, featureID string, kind types.ArtifactKind, body, actor string) (*types.Artifact, error) {
	if err := e.locks.Acquire(featureID); err != nil {
		return nil, err
	}
	defer func() { _ = e.locks.Release(featureID) }()

	feature, err := e.store.GetFeature(ctx, featureID)
	if err != nil {
		return nil, err
	}
	if featureID != types.ProjectFeatureID && !feature.Active() {
		return nil, types.NewError(types.ErrPhaseOutOfOrder,
			"feature %s is %s and accepts no new drafts", featureID, feature.CurrentPhase)
	}

	return e.store.CreateRevision(ctx, featureID, kind, body, actor)
}

// Approve records approval of an artifact revision. Revision 0 means the
// latest. Idempotent; StaleRevision if something newer exists.
func (e *Engine) Approve(ctx context.Context, featureID string, kind types.ArtifactKind, revision int, actor string) (*types.Artifact, error) {
	if err := e.locks.Acquire(featureID); err != nil {
		return nil, err
	}
	defer func() { _ = e.locks.Release(featureID) }()

	return e.store.Approve(ctx, featureID, kind, revision, actor)
}

// Advance moves a feature to the target phase after validating every
// precondition. Calling it again with target equal to the current phase is
// an idempotent no-op. All failures are structured EngineErrors; the feature
// is left unchanged on any failure.
func (e *Engine) Advance(ctx context.Context, featureID string, target types.Phase, actor string) (*types.Feature, error) {
	if !target.IsValid() {
		return nil, types.NewError(types.ErrPhaseOutOfOrder, "unknown phase %q", target)
	}

	if err := e.locks.Acquire(featureID); err != nil {
		return nil, err
	}
	defer func() { _ = e.locks.Release(featureID) }()

	feature, err := e.store.GetFeature(ctx, featureID)
	if err != nil {
		return nil, err
	}

	// Idempotent re-advance: the prior call already satisfied these
	// preconditions.
	if feature.CurrentPhase == target {
		return feature, nil
	}

	if target == types.PhaseAbandoned {
		return e.abandonLocked(ctx, feature, actor)
	}

	if !feature.CurrentPhase.CanTransitionTo(target) {
		err := types.NewError(types.ErrPhaseOutOfOrder,
			"cannot advance %s from %s to %s", featureID, feature.CurrentPhase, target)
		if next := feature.CurrentPhase.Next(); next != "" {
			err = err.WithHint("phases advance one step at a time; next is %s", next)
		}
		return nil, err
	}

	if err := e.checkAdvancePreconditions(ctx, feature, target); err != nil {
		return nil, err
	}

	if err := e.store.UpdateFeaturePhase(ctx, featureID, feature.CurrentPhase, target, actor); err != nil {
		return nil, err
	}

	// Seed the next phase's artifact slot so drafting picks up at r1.
	// Runs under the feature lock; a crash between the phase swap and the
	// seed is harmless because Draft creates the slot on demand.
	if kind, ok := types.ArtifactKindForPhase(target); ok {
		if _, err := e.store.GetLatest(ctx, featureID, kind); types.IsKind(err, types.ErrArtifactNotFound) {
			if _, err := e.store.CreateRevision(ctx, featureID, kind, "", actor); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
	}

	return e.store.GetFeature(ctx, featureID)
}

// checkAdvancePreconditions enforces the transition contract for one step.
func (e *Engine) checkAdvancePreconditions(ctx context.Context, feature *types.Feature, target types.Phase) error {
	current := feature.CurrentPhase

	// The current phase's artifact must exist, be non-empty, and be
	// approved. Implement produces no artifact, so advancing to done has
	// no artifact gate.
	if kind, ok := types.ArtifactKindForPhase(current); ok {
		artifact, err := e.store.GetLatest(ctx, feature.ID, kind)
		if err != nil {
			if types.IsKind(err, types.ErrArtifactNotFound) {
				return types.NewError(types.ErrArtifactNotApproved,
					"no %s artifact exists for %s", kind, feature.ID).
					WithHint("draft it with 'sdw artifact draft %s %s'", feature.ID, kind)
			}
			return err
		}
		if artifact.Empty() {
			return types.NewError(types.ErrArtifactNotApproved,
				"%s r%d for %s is empty", kind, artifact.Revision, feature.ID).
				WithHint("draft content before approving")
		}
		if !artifact.Approved {
			return types.NewError(types.ErrArtifactNotApproved,
				"%s r%d for %s is not approved", kind, artifact.Revision, feature.ID).
				WithHint("approve it with 'sdw artifact approve %s %s'", feature.ID, kind)
		}

		// Unresolved ambiguities block the walk into plan.
		if (current == types.PhaseSpecify || current == types.PhaseClarify) && len(artifact.OpenQuestions) > 0 {
			return types.NewError(types.ErrOpenQuestionsRemain,
				"%d unresolved items in %s", len(artifact.OpenQuestions), kind).
				WithHint("resolve before advancing to %s", target)
		}
	}

	if target == types.PhaseImplement {
		return e.checkAnalysisGate(ctx, feature.ID)
	}

	return nil
}

// checkAnalysisGate requires a current, non-failing analysis report before
// implementation starts. A report computed against anything but the latest
// approved tasks revision is stale and counts as not passing.
func (e *Engine) checkAnalysisGate(ctx context.Context, featureID string) error {
	report, err := e.store.GetLatestReport(ctx, featureID)
	if err != nil {
		return err
	}
	if report == nil {
		return types.NewError(types.ErrAnalysisNotPassing,
			"feature %s has never been analyzed", featureID).
			WithHint("run 'sdw analyze %s'", featureID)
	}

	tasks, err := e.store.GetApproved(ctx, featureID, types.KindTasks)
	if err != nil {
		return err
	}
	if report.TasksRevision != tasks.Revision {
		return types.NewError(types.ErrAnalysisNotPassing,
			"analysis report is stale: computed against tasks r%d, latest approved is r%d",
			report.TasksRevision, tasks.Revision).
			WithHint("re-run 'sdw analyze %s'", featureID)
	}
	if report.OverallStatus == types.CheckFail {
		return types.NewError(types.ErrAnalysisNotPassing,
			"analysis report for %s is failing", featureID).
			WithHint("fix the findings and re-run 'sdw analyze %s'", featureID)
	}

	return nil
}

// Abandon moves a feature to the abandoned terminal phase. Explicit
// operator action; valid from any non-terminal phase.
func (e *Engine) Abandon(ctx context.Context, featureID, actor string) (*types.Feature, error) {
	if err := e.locks.Acquire(featureID); err != nil {
		return nil, err
	}
	defer func() { _ = e.locks.Release(featureID) }()

	feature, err := e.store.GetFeature(ctx, featureID)
	if err != nil {
		return nil, err
	}
	return e.abandonLocked(ctx, feature, actor)
}

func (e *Engine) abandonLocked(ctx context.Context, feature *types.Feature, actor string) (*types.Feature, error) {
	if err := e.store.AbandonFeature(ctx, feature.ID, actor); err != nil {
		return nil, err
	}
	return e.store.GetFeature(ctx, feature.ID)
}

// Analyze runs the consistency checks for one feature. When persist is true
// the report and its rendered artifact are stored; a dry run leaves no trace,
// which makes speculative analysis safe before tasks are even approved.
func (e *Engine) Analyze(ctx context.Context, featureID string, persist bool, actor string) (*types.AnalysisReport, error) {
	report, err := e.analyzer.Run(ctx, featureID)
	if err != nil {
		return nil, err
	}
	if persist {
		if err := e.generator.Persist(ctx, report, actor); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// AnalyzeAll runs persisted analysis for every active feature concurrently.
// Features are fully independent, so the fan-out shares no mutable state.
// Skips features that have no approved spec or tasks yet.
func (e *Engine) AnalyzeAll(ctx context.Context, actor string) (map[string]*types.AnalysisReport, error) {
	features, err := e.store.ListFeatures(ctx)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		id     string
		report *types.AnalysisReport
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	results := make(chan outcome, len(features))

	for _, feature := range features {
		if !feature.Active() {
			continue
		}
		id := feature.ID
		g.Go(func() error {
			report, err := e.Analyze(ctx, id, true, actor)
			if err != nil {
				if types.IsKind(err, types.ErrArtifactNotFound) {
					return nil
				}
				return fmt.Errorf("analyzing %s: %w", id, err)
			}
			results <- outcome{id: id, report: report}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)

	reports := make(map[string]*types.AnalysisReport)
	for r := range results {
		reports[r.id] = r.report
	}
	return reports, nil
}

// ArtifactState summarizes one artifact kind for status display.
type ArtifactState struct {
	Kind          types.ArtifactKind
	Revision      int
	Approved      bool
	OpenQuestions int
}

// Status is the summary returned for one feature.
type Status struct {
	Feature      *types.Feature
	Artifacts    []ArtifactState
	LatestReport *types.AnalysisReport

	// ReportStale is true when a report exists but was computed against a
	// superseded tasks revision.
	ReportStale bool
}

// Status assembles the current state of a feature: phase, per-kind latest
// revisions, open question counts, and the latest report.
func (e *Engine) Status(ctx context.Context, featureID string) (*Status, error) {
	feature, err := e.store.GetFeature(ctx, featureID)
	if err != nil {
		return nil, err
	}

	status := &Status{Feature: feature}

	kinds := []types.ArtifactKind{
		types.KindSpec, types.KindClarifications, types.KindPlan,
		types.KindTasks, types.KindAnalysis,
	}
	for _, kind := range kinds {
		artifact, err := e.store.GetLatest(ctx, featureID, kind)
		if err != nil {
			if types.IsKind(err, types.ErrArtifactNotFound) {
				continue
			}
			return nil, err
		}
		status.Artifacts = append(status.Artifacts, ArtifactState{
			Kind:          kind,
			Revision:      artifact.Revision,
			Approved:      artifact.Approved,
			OpenQuestions: len(artifact.OpenQuestions),
		})
	}

	report, err := e.store.GetLatestReport(ctx, featureID)
	if err != nil {
		return nil, err
	}
	status.LatestReport = report

	if report != nil {
		tasks, err := e.store.GetApproved(ctx, featureID, types.KindTasks)
		if err == nil && tasks.Revision != report.TasksRevision {
			status.ReportStale = true
		} else if err != nil && !types.IsKind(err, types.ErrArtifactNotFound) {
			return nil, err
		}
	}

	return status, nil
}

// Events returns the most recent audit trail entries for a feature.
func (e *Engine) Events(ctx context.Context, featureID string, limit int) ([]*types.Event, error) {
	return e.store.GetEvents(ctx, featureID, limit)
}
