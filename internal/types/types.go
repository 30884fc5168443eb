package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Feature is a unit of work tracked through the phase pipeline.
// It owns all artifacts, requirements, tasks, and analysis reports
// created under its ID; nothing is shared across features.
type Feature struct {
	ID           string     `json:"id"`
	CurrentPhase Phase      `json:"current_phase"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	AbandonedAt  *time.Time `json:"abandoned_at,omitempty"`
}

// ProjectFeatureID is the reserved feature row that owns the project-scoped
// constitution artifact. It never walks the per-feature phase order and
// cannot be created through CreateFeature.
const ProjectFeatureID = "constitution"

// featureIDPattern matches stable slugs like "001-user-authentication".
var featureIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Validate checks if the feature has valid field values
func (f *Feature) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("feature id is required")
	}
	if len(f.ID) > 100 {
		return fmt.Errorf("feature id must be 100 characters or less (got %d)", len(f.ID))
	}
	if !featureIDPattern.MatchString(f.ID) {
		return fmt.Errorf("invalid feature id %q: must be a lowercase slug", f.ID)
	}
	if !f.CurrentPhase.IsValid() {
		return fmt.Errorf("invalid phase: %s", f.CurrentPhase)
	}
	return nil
}

// Active reports whether the feature can still accept work.
func (f *Feature) Active() bool {
	return !f.CurrentPhase.Terminal()
}

// Phase represents a step in the fixed feature pipeline
type Phase string

const (
	// PhaseConstitution is project-scoped: a single optional artifact that
	// governs every feature. It is not part of the per-feature walk.
	PhaseConstitution Phase = "constitution"

	PhaseSpecify   Phase = "specify"
	PhaseClarify   Phase = "clarify"
	PhasePlan      Phase = "plan"
	PhaseTasks     Phase = "tasks"
	PhaseAnalyze   Phase = "analyze"
	PhaseImplement Phase = "implement"
	PhaseDone      Phase = "done"

	// PhaseAbandoned is reachable from any non-terminal phase by explicit
	// operator action only.
	PhaseAbandoned Phase = "abandoned"
)

// phaseOrder is the strict per-feature walk. Constitution is excluded:
// features start at specify.
var phaseOrder = []Phase{
	PhaseSpecify,
	PhaseClarify,
	PhasePlan,
	PhaseTasks,
	PhaseAnalyze,
	PhaseImplement,
	PhaseDone,
}

// PhaseOrder returns the per-feature phase sequence, first to last.
func PhaseOrder() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// IsValid checks if the phase value is valid
func (p Phase) IsValid() bool {
	switch p {
	case PhaseConstitution, PhaseSpecify, PhaseClarify, PhasePlan, PhaseTasks,
		PhaseAnalyze, PhaseImplement, PhaseDone, PhaseAbandoned:
		return true
	}
	return false
}

// Terminal reports whether the phase accepts no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseAbandoned
}

// Next returns the immediate successor phase, or "" for terminal phases
// and phases outside the per-feature walk.
func (p Phase) Next() Phase {
	for i, phase := range phaseOrder {
		if phase == p && i+1 < len(phaseOrder) {
			return phaseOrder[i+1]
		}
	}
	return ""
}

// ValidTransitions defines the valid transitions of the phase state machine.
//
// State Machine Diagram:
//
//	specify → clarify → plan → tasks → analyze → implement → done
//	    ↓        ↓        ↓       ↓        ↓          ↓
//	abandoned abandoned abandoned abandoned abandoned abandoned
//
// Valid transitions:
//   - each phase → its immediate successor (no skipping, no reordering)
//   - any non-terminal phase → abandoned (operator action)
func (p Phase) ValidTransitions() []Phase {
	if p.Terminal() {
		return []Phase{}
	}
	next := p.Next()
	if next == "" {
		return []Phase{PhaseAbandoned}
	}
	return []Phase{next, PhaseAbandoned}
}

// CanTransitionTo checks if a transition from this phase to the target is valid
func (p Phase) CanTransitionTo(target Phase) bool {
	for _, valid := range p.ValidTransitions() {
		if valid == target {
			return true
		}
	}
	return false
}

// ArtifactKind identifies which phase an artifact belongs to
type ArtifactKind string

const (
	KindConstitution   ArtifactKind = "constitution"
	KindSpec           ArtifactKind = "spec"
	KindClarifications ArtifactKind = "clarifications"
	KindPlan           ArtifactKind = "plan"
	KindTasks          ArtifactKind = "tasks"
	KindAnalysis       ArtifactKind = "analysis"
)

// IsValid checks if the artifact kind value is valid
func (k ArtifactKind) IsValid() bool {
	switch k {
	case KindConstitution, KindSpec, KindClarifications, KindPlan, KindTasks, KindAnalysis:
		return true
	}
	return false
}

// ArtifactKindForPhase maps a producing phase to the artifact kind it emits.
// Implement and the terminal phases produce no artifact.
func ArtifactKindForPhase(p Phase) (ArtifactKind, bool) {
	switch p {
	case PhaseConstitution:
		return KindConstitution, true
	case PhaseSpecify:
		return KindSpec, true
	case PhaseClarify:
		return KindClarifications, true
	case PhasePlan:
		return KindPlan, true
	case PhaseTasks:
		return KindTasks, true
	case PhaseAnalyze:
		return KindAnalysis, true
	}
	return "", false
}

// Artifact is a versioned document bound to one phase of one feature.
// Once approved a revision is immutable: edits create revision+1.
type Artifact struct {
	FeatureID     string       `json:"feature_id"`
	Kind          ArtifactKind `json:"kind"`
	Revision      int          `json:"revision"`
	ContentHash   string       `json:"content_hash"`
	Body          string       `json:"body"`
	Approved      bool         `json:"approved"`
	ApprovedAt    *time.Time   `json:"approved_at,omitempty"`
	ApprovedBy    string       `json:"approved_by,omitempty"`
	OpenQuestions []string     `json:"open_questions,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Validate checks if the artifact has valid field values
func (a *Artifact) Validate() error {
	if a.FeatureID == "" {
		return fmt.Errorf("feature_id is required")
	}
	if !a.Kind.IsValid() {
		return fmt.Errorf("invalid artifact kind: %s", a.Kind)
	}
	if a.Revision < 1 {
		return fmt.Errorf("revision must be positive (got %d)", a.Revision)
	}
	return nil
}

// Empty reports whether the artifact body carries no content.
func (a *Artifact) Empty() bool {
	return strings.TrimSpace(a.Body) == ""
}

// RequirementKind categorizes a requirement
type RequirementKind string

const (
	RequirementFunctional    RequirementKind = "functional"     // FR-#
	RequirementNonFunctional RequirementKind = "non_functional" // NFR-#
)

// Requirement is extracted from an approved Spec artifact. It is a derived
// view: changing it means revising the Spec, which invalidates downstream
// traceability until re-analyzed.
type Requirement struct {
	ID   string          `json:"id"`
	Kind RequirementKind `json:"kind"`
	Text string          `json:"text"`
}

// Task is extracted from an approved Tasks artifact.
type Task struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Body             string   `json:"body"`
	RequirementRefs  []string `json:"requirement_refs,omitempty"`
	DependsOn        []string `json:"depends_on,omitempty"`
	ParallelEligible bool     `json:"parallel_eligible"`
}

// TraceabilityEntry maps one requirement to the tasks that claim to satisfy
// it. Derived, never stored: recomputed from the approved artifacts.
type TraceabilityEntry struct {
	RequirementID string   `json:"requirement_id"`
	TaskIDs       []string `json:"task_ids"`
}

// CheckStatus is the outcome of a single consistency check
type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
)

// IsValid checks if the check status value is valid
func (s CheckStatus) IsValid() bool {
	switch s {
	case CheckPass, CheckWarn, CheckFail:
		return true
	}
	return false
}

// worse returns the more severe of two statuses.
func (s CheckStatus) worse(other CheckStatus) CheckStatus {
	rank := map[CheckStatus]int{CheckPass: 0, CheckWarn: 1, CheckFail: 2}
	if rank[other] > rank[s] {
		return other
	}
	return s
}

// CheckResult is one entry in an analysis report.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Findings []Finding   `json:"findings,omitempty"`
}

// Finding is a single issue discovered by a check.
type Finding struct {
	// Kind is the machine-readable finding identifier
	// (e.g. ErrCoverageGap, ErrCircularDependency).
	Kind ErrorKind `json:"kind"`

	// Severity of this individual finding.
	Severity CheckStatus `json:"severity"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Subject names what the finding is about: a requirement id, task id,
	// plan section, or cycle path.
	Subject string `json:"subject,omitempty"`
}

// AnalysisReport is the persisted output of one consistency analysis run.
// It is read-only once produced; a new run replaces it wholesale. The report
// is pinned to the Tasks revision it was computed against: a later Tasks
// revision stales it via revision mismatch, not timestamps.
type AnalysisReport struct {
	FeatureID     string        `json:"feature_id"`
	TasksRevision int           `json:"tasks_revision"`
	Checks        []CheckResult `json:"checks"`
	OverallStatus CheckStatus   `json:"overall_status"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ComputeOverall derives the overall status from the individual checks:
// fail if any check failed, warn if none failed but at least one warned,
// pass otherwise.
func ComputeOverall(checks []CheckResult) CheckStatus {
	overall := CheckPass
	for _, c := range checks {
		overall = overall.worse(c.Status)
	}
	return overall
}

// Validate checks if the report has valid field values
func (r *AnalysisReport) Validate() error {
	if r.FeatureID == "" {
		return fmt.Errorf("feature_id is required")
	}
	if r.TasksRevision < 1 {
		return fmt.Errorf("tasks_revision must be positive (got %d)", r.TasksRevision)
	}
	if !r.OverallStatus.IsValid() {
		return fmt.Errorf("invalid overall status: %s", r.OverallStatus)
	}
	for _, c := range r.Checks {
		if !c.Status.IsValid() {
			return fmt.Errorf("invalid status %q for check %q", c.Status, c.Name)
		}
	}
	return nil
}

// EventType categorizes audit trail events
type EventType string

const (
	EventFeatureCreated   EventType = "feature_created"
	EventRevisionCreated  EventType = "revision_created"
	EventArtifactApproved EventType = "artifact_approved"
	EventPhaseAdvanced    EventType = "phase_advanced"
	EventFeatureAbandoned EventType = "feature_abandoned"
	EventReportPersisted  EventType = "report_persisted"
)

// Event represents an audit trail entry
type Event struct {
	ID        int64     `json:"id"`
	FeatureID string    `json:"feature_id"`
	EventType EventType `json:"event_type"`
	Actor     string    `json:"actor"`
	OldValue  *string   `json:"old_value,omitempty"`
	NewValue  *string   `json:"new_value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
