package types

import (
	"reflect"
	"testing"
)

func TestPhaseOrder(t *testing.T) {
	want := []Phase{
		PhaseSpecify, PhaseClarify, PhasePlan, PhaseTasks,
		PhaseAnalyze, PhaseImplement, PhaseDone,
	}
	if got := PhaseOrder(); !reflect.DeepEqual(got, want) {
		t.Errorf("PhaseOrder = %v, want %v", got, want)
	}
}

func TestPhaseNext(t *testing.T) {
	tests := []struct {
		phase Phase
		next  Phase
	}{
		{PhaseSpecify, PhaseClarify},
		{PhaseClarify, PhasePlan},
		{PhasePlan, PhaseTasks},
		{PhaseTasks, PhaseAnalyze},
		{PhaseAnalyze, PhaseImplement},
		{PhaseImplement, PhaseDone},
		{PhaseDone, ""},
		{PhaseAbandoned, ""},
		{PhaseConstitution, ""},
	}
	for _, tt := range tests {
		if got := tt.phase.Next(); got != tt.next {
			t.Errorf("%s.Next() = %q, want %q", tt.phase, got, tt.next)
		}
	}
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseSpecify, PhaseClarify, true},
		{PhaseSpecify, PhaseAbandoned, true},
		{PhaseSpecify, PhasePlan, false}, // no skipping
		{PhaseClarify, PhaseSpecify, false},
		{PhaseTasks, PhaseImplement, false},
		{PhaseAnalyze, PhaseImplement, true},
		{PhaseImplement, PhaseDone, true},
		{PhaseDone, PhaseAbandoned, false},   // terminal
		{PhaseAbandoned, PhaseSpecify, false}, // terminal
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, p := range []Phase{PhaseDone, PhaseAbandoned} {
		if !p.Terminal() {
			t.Errorf("%s should be terminal", p)
		}
		if n := len(p.ValidTransitions()); n != 0 {
			t.Errorf("%s has %d transitions, want 0", p, n)
		}
	}
	if PhaseImplement.Terminal() {
		t.Error("implement is not terminal")
	}
}

func TestFeatureValidate(t *testing.T) {
	valid := []string{"a", "user-auth", "v2-api", "7-dwarfs"}
	for _, id := range valid {
		f := Feature{ID: id, CurrentPhase: PhaseSpecify}
		if err := f.Validate(); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", "-leading", "CAPS", "a_b", "a b", "é"}
	for _, id := range invalid {
		f := Feature{ID: id, CurrentPhase: PhaseSpecify}
		if err := f.Validate(); err == nil {
			t.Errorf("Validate(%q) = nil, want error", id)
		}
	}
}

func TestArtifactKindForPhase(t *testing.T) {
	tests := []struct {
		phase Phase
		kind  ArtifactKind
		ok    bool
	}{
		{PhaseConstitution, KindConstitution, true},
		{PhaseSpecify, KindSpec, true},
		{PhaseClarify, KindClarifications, true},
		{PhasePlan, KindPlan, true},
		{PhaseTasks, KindTasks, true},
		{PhaseAnalyze, KindAnalysis, true},
		{PhaseImplement, "", false},
		{PhaseDone, "", false},
		{PhaseAbandoned, "", false},
	}
	for _, tt := range tests {
		kind, ok := ArtifactKindForPhase(tt.phase)
		if kind != tt.kind || ok != tt.ok {
			t.Errorf("ArtifactKindForPhase(%s) = (%q, %v), want (%q, %v)",
				tt.phase, kind, ok, tt.kind, tt.ok)
		}
	}
}

func TestComputeOverall(t *testing.T) {
	tests := []struct {
		name   string
		checks []CheckResult
		want   CheckStatus
	}{
		{"empty", nil, CheckPass},
		{"all pass", []CheckResult{{Status: CheckPass}, {Status: CheckPass}}, CheckPass},
		{"warn beats pass", []CheckResult{{Status: CheckPass}, {Status: CheckWarn}}, CheckWarn},
		{"fail beats warn", []CheckResult{{Status: CheckWarn}, {Status: CheckFail}, {Status: CheckPass}}, CheckFail},
	}
	for _, tt := range tests {
		if got := ComputeOverall(tt.checks); got != tt.want {
			t.Errorf("%s: ComputeOverall = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestEngineErrorKinds(t *testing.T) {
	err := NewError(ErrCoverageGap, "FR-2 has no task").WithHint("add a task referencing FR-2")
	if !IsKind(err, ErrCoverageGap) {
		t.Error("IsKind failed on direct error")
	}
	if IsKind(err, ErrStaleRevision) {
		t.Error("IsKind matched the wrong kind")
	}
	if KindOf(nil) != "" {
		t.Error("KindOf(nil) should be empty")
	}
	if err.Hint != "add a task referencing FR-2" {
		t.Errorf("Hint = %q", err.Hint)
	}
}
