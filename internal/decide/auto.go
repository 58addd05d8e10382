package decide

import (
	"context"
	"fmt"
)

// Auto is the non-interactive capability used by unattended runs. It keeps
// the workflow moving and accepts every validation; anything that needs real
// judgment comes back as an error so the caller escalates to a human.
type Auto struct{}

// NewAuto returns the automatic capability.
func NewAuto() *Auto { return &Auto{} }

func (a *Auto) Decide(_ context.Context, req Request) (Response, error) {
	switch req.Topic {
	case "supervision":
		return Response{Verdict: "continue"}, nil
	case "comparison_validation":
		return Response{Verdict: "approve"}, nil
	default:
		return Response{}, fmt.Errorf("auto capability cannot decide topic %q", req.Topic)
	}
}
