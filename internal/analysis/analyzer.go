// Package analysis runs the cross-artifact consistency checks that gate the
// implement phase. Checks are pluggable, run in priority order, and all of
// them execute even when an earlier one fails: the output is a report, not a
// fail-fast gate.
package analysis

import (
	"context"
	"sort"

	"github.com/sdwkit/sdw/internal/graph"
	"github.com/sdwkit/sdw/internal/index"
	"github.com/sdwkit/sdw/internal/storage"
	"github.com/sdwkit/sdw/internal/types"
)

// Checker is the interface for pluggable consistency checks.
type Checker interface {
	// Name returns a unique identifier for this check.
	Name() string

	// Priority determines execution order (lower values run first).
	// Suggested priorities:
	//   1-9:   identifier integrity (duplicates)
	//   10-39: coverage and dependency checks
	//   40+:   advisory checks (plan alignment, constitution)
	Priority() int

	// Check inspects the input and returns a result. Checks are read-only
	// and must be deterministic over the same input.
	Check(ctx context.Context, input *Input) types.CheckResult
}

// Input is the immutable view a check runs against: the feature's approved
// artifacts plus the derived index and dependency graph.
type Input struct {
	Feature *types.Feature

	// Approved artifacts. Spec and Tasks are always present when the
	// analyzer runs; the others may be nil (Constitution is optional,
	// Clarifications and Plan may be absent on speculative runs).
	Spec           *types.Artifact
	Clarifications *types.Artifact
	Plan           *types.Artifact
	Constitution   *types.Artifact
	Tasks          *types.Artifact

	Index *index.Index
	Graph *graph.Graph
}

// Registry manages a collection of checks and orchestrates a run.
type Registry struct {
	checkers []Checker
}

// NewRegistry creates a registry with the standard check set.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(&IdentifierCheck{})
	r.Register(&RequirementCoverageCheck{})
	r.Register(&TaskCoverageCheck{})
	r.Register(&DependencyCheck{})
	r.Register(&PlanAlignmentCheck{})
	r.Register(&OpenQuestionCheck{})
	r.Register(&ConstitutionCheck{})
	return r
}

// Register adds a check. Checks are kept sorted by priority.
func (r *Registry) Register(c Checker) {
	r.checkers = append(r.checkers, c)
	sort.SliceStable(r.checkers, func(i, j int) bool {
		return r.checkers[i].Priority() < r.checkers[j].Priority()
	})
}

// RunAll executes every registered check in priority order and returns the
// ordered results. All checks run regardless of earlier failures.
func (r *Registry) RunAll(ctx context.Context, input *Input) []types.CheckResult {
	results := make([]types.CheckResult, 0, len(r.checkers))
	for _, c := range r.checkers {
		results = append(results, c.Check(ctx, input))
	}
	return results
}

// Analyzer composes the index and graph projections into an analysis run.
type Analyzer struct {
	store    storage.Storage
	registry *Registry
}

// NewAnalyzer creates an analyzer over a storage backend.
func NewAnalyzer(store storage.Storage) *Analyzer {
	return &Analyzer{
		store:    store,
		registry: NewRegistry(),
	}
}

// Run executes all checks for a feature and returns the resulting report
// without persisting it. It reads only approved artifacts; the run is
// side-effect-free, so it is safe to execute speculatively before the Tasks
// artifact is approved and concurrently with other features' work.
func (a *Analyzer) Run(ctx context.Context, featureID string) (*types.AnalysisReport, error) {
	feature, err := a.store.GetFeature(ctx, featureID)
	if err != nil {
		return nil, err
	}

	spec, err := a.store.GetApproved(ctx, featureID, types.KindSpec)
	if err != nil {
		return nil, err
	}
	tasks, err := a.store.GetApproved(ctx, featureID, types.KindTasks)
	if err != nil {
		return nil, err
	}

	input := &Input{
		Feature: feature,
		Spec:    spec,
		Tasks:   tasks,
	}

	// Optional artifacts: absence is not an error.
	if art, err := a.store.GetApproved(ctx, featureID, types.KindClarifications); err == nil {
		input.Clarifications = art
	} else if !types.IsKind(err, types.ErrArtifactNotFound) {
		return nil, err
	}
	if art, err := a.store.GetApproved(ctx, featureID, types.KindPlan); err == nil {
		input.Plan = art
	} else if !types.IsKind(err, types.ErrArtifactNotFound) {
		return nil, err
	}
	if art, err := a.store.GetApproved(ctx, types.ProjectFeatureID, types.KindConstitution); err == nil {
		input.Constitution = art
	} else if !types.IsKind(err, types.ErrArtifactNotFound) {
		return nil, err
	}

	// The index and graph are lazy projections: rebuilt here from the
	// approved revisions, never cached across revisions.
	input.Index = index.Build(spec, tasks)
	input.Graph = graph.Build(input.Index.Tasks)

	checks := a.registry.RunAll(ctx, input)

	return &types.AnalysisReport{
		FeatureID:     featureID,
		TasksRevision: tasks.Revision,
		Checks:        checks,
		OverallStatus: types.ComputeOverall(checks),
	}, nil
}

// failIfFindings assembles a check result whose status is fail when any
// finding is fail severity, warn when the worst finding is warn, and pass
// when there are none.
func failIfFindings(name string, findings []types.Finding) types.CheckResult {
	status := types.CheckPass
	for _, f := range findings {
		if f.Severity == types.CheckFail {
			status = types.CheckFail
			break
		}
		status = types.CheckWarn
	}
	return types.CheckResult{Name: name, Status: status, Findings: findings}
}
