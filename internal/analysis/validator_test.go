package analysis

import (
	"context"
	"errors"
	"testing"

	"prism/internal/decide"
)

func TestValidatorApprove(t *testing.T) {
	stub := decide.NewStub(decide.Response{Verdict: VerdictApprove, Text: "looks right"})
	v := NewValidator(stub)

	got := v.Validate(context.Background(), &StageAnalysis{StageID: "run", Overall: SummaryExcellent})
	if got.Verdict != VerdictApprove || got.Fallback {
		t.Fatalf("got %+v, want clean approval", got)
	}
	calls := stub.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	req := calls[0]
	if req.Topic != "comparison_validation" {
		t.Fatalf("topic = %q", req.Topic)
	}
	if req.Context["stage_id"] != "run" || req.Context["overall"] != SummaryExcellent {
		t.Fatalf("context = %v", req.Context)
	}
	if len(req.Schema) != 2 {
		t.Fatalf("schema = %v, want approve/revise", req.Schema)
	}
}

func TestValidatorRevise(t *testing.T) {
	stub := decide.NewStub(decide.Response{Verdict: VerdictRevise, Text: "peak looks shifted"})
	got := NewValidator(stub).Validate(context.Background(), &StageAnalysis{StageID: "run"})
	if got.Verdict != VerdictRevise {
		t.Fatalf("verdict = %q, want revise", got.Verdict)
	}
	if got.Feedback != "peak looks shifted" {
		t.Fatalf("feedback = %q", got.Feedback)
	}
}

func TestValidatorFallbackOnError(t *testing.T) {
	stub := decide.NewFailingStub(errors.New("reviewer offline"))
	got := NewValidator(stub).Validate(context.Background(), &StageAnalysis{StageID: "run"})
	if got.Verdict != VerdictApprove || !got.Fallback {
		t.Fatalf("got %+v, want fallback approval", got)
	}
}
