package supervise

import (
	"context"
	"testing"

	"prism/internal/escalate"
	"prism/internal/store"
	"prism/internal/workflow"
)

func pipelineState(t *testing.T, runID string) *workflow.WorkflowState {
	t.Helper()
	dir := t.TempDir()
	ref := writeSpectrum(t, dir, "fig1_digitized.csv", 0)
	sim := writeSpectrum(t, dir, "fig1_sim.csv", 0)

	return &workflow.WorkflowState{
		RunID: runID,
		Paper: "Extraordinary optical transmission",
		Stages: []*workflow.Stage{
			{ID: "setup", Type: workflow.StageTypeSetup, Status: workflow.StatusNotStarted},
			{ID: "materials", Type: workflow.StageTypeMaterialValidation,
				DependsOn: []string{"setup"}, Status: workflow.StatusNotStarted,
				Outputs: []string{"gold.yml"}},
			{ID: "sim", Type: workflow.StageTypeSimulation,
				DependsOn: []string{"materials"}, Status: workflow.StatusNotStarted,
				Targets: []string{"fig1"}, Outputs: []string{sim}},
		},
		Targets: map[string]workflow.Target{
			"fig1": {FigureID: "fig1", Precision: workflow.PrecisionExcellent, DigitizedPath: ref},
		},
	}
}

func TestDrivePausesAtMaterialCheckpointThenCompletes(t *testing.T) {
	sup := newTestSupervisor(alwaysContinue())
	st := store.NewMemStore()
	runner := NewRunner(sup, st, 0)
	state := pipelineState(t, "run-1")

	out, err := runner.Drive(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Awaiting {
		t.Fatalf("outcome = %+v, want paused at checkpoint", out)
	}
	if state.PendingEscalation == nil || state.PendingEscalation.Trigger != escalate.TriggerMaterialCheckpoint {
		t.Fatalf("escalation = %+v", state.PendingEscalation)
	}

	// The pause is persisted.
	saved, err := st.LoadRun("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if saved == nil || !saved.AwaitingInput {
		t.Fatalf("saved = %+v", saved)
	}

	if _, err := sup.HandleResponse(context.Background(), state, "approved"); err != nil {
		t.Fatal(err)
	}

	out, err = runner.Drive(context.Background(), state)
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionCompleted || !state.Completed {
		t.Fatalf("outcome = %+v, completed = %v", out, state.Completed)
	}
	if state.StageByID("sim").Status != workflow.StatusCompletedSuccess {
		t.Fatalf("sim status = %q", state.StageByID("sim").Status)
	}

	saved, err = st.LoadRun("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if !saved.Completed || len(saved.Interactions) != 1 {
		t.Fatalf("saved = completed %v, interactions %d", saved.Completed, len(saved.Interactions))
	}
}

func TestDriveAll(t *testing.T) {
	sup := newTestSupervisor(alwaysContinue())
	st := store.NewMemStore()
	runner := NewRunner(sup, st, 2)

	states := []*workflow.WorkflowState{
		pipelineState(t, "run-a"),
		pipelineState(t, "run-b"),
	}
	outcomes, err := runner.DriveAll(context.Background(), states)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d", len(outcomes))
	}
	for i, out := range outcomes {
		if out == nil || !out.Awaiting {
			t.Fatalf("outcome %d = %+v, want paused at checkpoint", i, out)
		}
	}
	runs, err := st.ListRuns()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("stored runs = %d", len(runs))
	}
}

func TestDriveCancelled(t *testing.T) {
	sup := newTestSupervisor(alwaysContinue())
	runner := NewRunner(sup, store.NewMemStore(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := runner.Drive(ctx, pipelineState(t, "run-1")); err == nil {
		t.Fatal("expected context error")
	}
}
