package workflow

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestApplyUpdate_RightBiased(t *testing.T) {
	state := &WorkflowState{
		CurrentStageID: "old",
		Design:         "keep me",
		AwaitingInput:  true,
	}
	state.Apply(Update{
		CurrentStageID: String("new"),
		AwaitingInput:  Bool(false),
	})

	if state.CurrentStageID != "new" {
		t.Errorf("current stage = %q, want new", state.CurrentStageID)
	}
	if state.AwaitingInput {
		t.Error("awaiting input should be overwritten to false")
	}
	if state.Design != "keep me" {
		t.Errorf("unset field mutated: %q", state.Design)
	}
}

func TestApplyUpdate_StageReplaceByID(t *testing.T) {
	state := &WorkflowState{Stages: []*Stage{
		{ID: "A", Status: StatusNotStarted},
		{ID: "B", Status: StatusNotStarted},
	}}
	state.Apply(Update{Stages: []*Stage{{ID: "A", Status: StatusInProgress}}})

	if state.StageByID("A").Status != StatusInProgress {
		t.Error("stage A not replaced")
	}
	if state.StageByID("B").Status != StatusNotStarted {
		t.Error("stage B should be untouched")
	}
	if len(state.Stages) != 2 {
		t.Errorf("stage count = %d, want 2", len(state.Stages))
	}
}

func TestApplyUpdate_ReportsReplacePerStage(t *testing.T) {
	state := &WorkflowState{Reports: []AnalysisReport{
		{ResultID: "r1", StageID: "s1", FigureID: "fig1"},
		{ResultID: "r2", StageID: "s2", FigureID: "fig2"},
	}}
	state.Apply(Update{Reports: []AnalysisReport{
		{ResultID: "r3", StageID: "s1", FigureID: "fig1", Classification: ClassMatch},
	}})

	s1 := state.ReportsForStage("s1")
	if len(s1) != 1 || s1[0].ResultID != "r3" {
		t.Errorf("s1 reports = %+v, want only r3", s1)
	}
	if len(state.ReportsForStage("s2")) != 1 {
		t.Error("s2 reports must survive an s1 re-analysis")
	}
}

func TestApplyUpdate_InteractionsAppendOnly(t *testing.T) {
	state := &WorkflowState{Interactions: []Interaction{{Trigger: "t1"}}}
	state.Apply(Update{Interactions: []Interaction{{Trigger: "t2"}}})

	if len(state.Interactions) != 2 {
		t.Fatalf("interactions = %d entries, want 2", len(state.Interactions))
	}
	if state.Interactions[0].Trigger != "t1" || state.Interactions[1].Trigger != "t2" {
		t.Errorf("interaction order wrong: %+v", state.Interactions)
	}
}

func TestApplyUpdate_ClearEscalation(t *testing.T) {
	state := &WorkflowState{PendingEscalation: &Escalation{Trigger: "revision_limit"}}
	state.Apply(Update{PendingEscalation: SetEscalation(nil)})
	if state.PendingEscalation != nil {
		t.Error("escalation should be cleared via SetEscalation(nil)")
	}
}

func TestSnapshot_Isolated(t *testing.T) {
	state := &WorkflowState{
		Stages:       []*Stage{{ID: "A", Status: StatusNotStarted, Outputs: []string{"x"}}},
		Targets:      map[string]Target{"fig1": {FigureID: "fig1", Precision: PrecisionAcceptable}},
		Revisions:    RevisionLedger{Counters: map[string]int{"c": 1}},
		StageOutputs: map[string][]string{"A": {"x"}},
	}
	state.Discrepancies.Append(Discrepancy{StageID: "A"})

	snap := state.Snapshot()
	snap.Stages[0].Status = StatusBlocked
	snap.Targets["fig2"] = Target{FigureID: "fig2"}
	snap.Revisions.Counters["c"] = 99
	snap.Discrepancies.Append(Discrepancy{StageID: "B"})
	snap.StageOutputs["A"][0] = "mutated"

	if state.Stages[0].Status != StatusNotStarted {
		t.Error("snapshot stage mutation leaked into original")
	}
	if _, ok := state.Targets["fig2"]; ok {
		t.Error("snapshot target mutation leaked into original")
	}
	if state.Revisions.Value("c") != 1 {
		t.Error("snapshot counter mutation leaked into original")
	}
	if state.Discrepancies.Len() != 1 {
		t.Error("snapshot ledger append leaked into original")
	}
	if state.StageOutputs["A"][0] != "x" {
		t.Error("snapshot stage-output mutation leaked into original")
	}
}

func TestSnapshot_RoundTripEqual(t *testing.T) {
	state := backtrackState()
	snap := state.Snapshot()
	if diff := cmp.Diff(state, snap); diff != "" {
		t.Errorf("snapshot differs from original (-orig +snap):\n%s", diff)
	}
}
