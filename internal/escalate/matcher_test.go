package escalate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"prism/internal/decide"
	"prism/internal/workflow"
)

func TestDefaultRegistryCoversBacktrackTriggers(t *testing.T) {
	reg := DefaultRegistry()
	for _, trigger := range []string{
		TriggerMaterialCheckpoint, TriggerRevisionLimit, TriggerBacktrackLimit,
		TriggerWorkflowError, TriggerExecutionFailure, TriggerReplanScope,
		workflow.TriggerInvalidBacktrackDecision,
		workflow.TriggerInvalidBacktrackTarget,
		workflow.TriggerBacktrackTargetNotFound,
	} {
		if _, ok := reg.Resolve(trigger); !ok {
			t.Errorf("trigger %q not registered", trigger)
		}
	}
}

func TestNewRegistryRejectsCollisions(t *testing.T) {
	_, err := NewRegistry(map[string][]Option{
		"t": {
			{Name: "approve", Aliases: []string{"yes"}},
			{Name: "reject", Aliases: []string{"yes"}},
		},
	})
	if err == nil {
		t.Fatal("expected collision error")
	}
	if !strings.Contains(err.Error(), `"yes"`) {
		t.Fatalf("error %q does not name the colliding phrase", err)
	}
}

func TestNewRegistryRejectsEmptyOptionSet(t *testing.T) {
	if _, err := NewRegistry(map[string][]Option{"t": {}}); err == nil {
		t.Fatal("expected error for empty option set")
	}
}

func TestMatchKeyword(t *testing.T) {
	m := NewMatcher(DefaultRegistry(), nil)

	tests := []struct {
		name    string
		trigger string
		text    string
		want    string
		matched bool
	}{
		{name: "alias hit", trigger: TriggerMaterialCheckpoint, text: "yes please proceed", want: "approve", matched: true},
		{name: "option name hit", trigger: TriggerRevisionLimit, text: "let's backtrack to the mesh stage", want: "backtrack", matched: true},
		{name: "multi-word alias", trigger: TriggerBacktrackLimit, text: "keep going for now", want: "continue_anyway", matched: true},
		{name: "case insensitive", trigger: TriggerMaterialCheckpoint, text: "APPROVED.", want: "approve", matched: true},
		{name: "word boundary respected", trigger: TriggerMaterialCheckpoint, text: "I don't know", matched: false},
		{name: "ambiguous answer", trigger: TriggerRevisionLimit, text: "retry, or maybe skip", matched: false},
		{name: "empty answer", trigger: TriggerMaterialCheckpoint, text: "", matched: false},
		{name: "unrelated answer", trigger: TriggerExecutionFailure, text: "the solver segfaulted", matched: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Match(context.Background(), tt.trigger, tt.text)
			if err != nil {
				t.Fatal(err)
			}
			if got.Matched != tt.matched {
				t.Fatalf("matched = %v, want %v (%+v)", got.Matched, tt.matched, got)
			}
			if tt.matched {
				if got.Option != tt.want || got.Method != MethodKeyword {
					t.Fatalf("got %+v, want option %q via keyword", got, tt.want)
				}
			} else if got.Clarification == "" {
				t.Fatal("unmatched answer must carry a clarification")
			}
		})
	}
}

func TestMatchUnknownTrigger(t *testing.T) {
	m := NewMatcher(DefaultRegistry(), nil)
	if _, err := m.Match(context.Background(), "nonsense", "yes"); err == nil {
		t.Fatal("expected error for unknown trigger")
	}
}

func TestMatchClassifierSecondPass(t *testing.T) {
	stub := decide.NewStub(decide.Response{Verdict: "revise"})
	m := NewMatcher(DefaultRegistry(), stub)

	got, err := m.Match(context.Background(), TriggerExecutionFailure, "the mesh resolution is wrong, tighten it")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Matched || got.Option != "revise" || got.Method != MethodClassifier {
		t.Fatalf("got %+v, want revise via classifier", got)
	}

	calls := stub.Calls()
	if len(calls) != 1 || len(calls[0].Schema) != 3 {
		t.Fatalf("classifier request = %+v", calls)
	}
}

func TestMatchClassifierUnknownVerdict(t *testing.T) {
	stub := decide.NewStub(decide.Response{Verdict: "do something else"})
	m := NewMatcher(DefaultRegistry(), stub)

	got, err := m.Match(context.Background(), TriggerExecutionFailure, "hmm")
	if err != nil {
		t.Fatal(err)
	}
	if got.Matched {
		t.Fatalf("got %+v, want clarification", got)
	}
	if !strings.Contains(got.Clarification, "retry") || !strings.Contains(got.Clarification, "abort") {
		t.Fatalf("clarification %q does not list the options", got.Clarification)
	}
}

func TestMatchClassifierFailureFallsBackToClarification(t *testing.T) {
	stub := decide.NewFailingStub(errors.New("offline"))
	m := NewMatcher(DefaultRegistry(), stub)

	got, err := m.Match(context.Background(), TriggerWorkflowError, "hmm")
	if err != nil {
		t.Fatal(err)
	}
	if got.Matched || got.Clarification == "" {
		t.Fatalf("got %+v, want clarification", got)
	}
}

func TestMatchEmptyTextSkipsClassifier(t *testing.T) {
	stub := decide.NewStub(decide.Response{Verdict: "retry"})
	m := NewMatcher(DefaultRegistry(), stub)

	got, err := m.Match(context.Background(), TriggerWorkflowError, "   ")
	if err != nil {
		t.Fatal(err)
	}
	if got.Matched {
		t.Fatalf("got %+v, want no match", got)
	}
	if len(stub.Calls()) != 0 {
		t.Fatal("classifier must not be consulted for an empty answer")
	}
}
