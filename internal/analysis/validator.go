package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"prism/internal/decide"
	"prism/internal/logging"
)

// Validation verdicts.
const (
	VerdictApprove = "approve"
	VerdictRevise  = "revise"
)

// Validation is the reviewed outcome of a stage analysis.
type Validation struct {
	Verdict  string `json:"verdict"`
	Feedback string `json:"feedback,omitempty"`
	Fallback bool   `json:"fallback,omitempty"` // reviewer unreachable, defaulted
}

// Validator submits a completed stage analysis for review. The reviewer
// either approves the stage or sends it back for revision with feedback.
type Validator struct {
	capability decide.Capability
}

// NewValidator returns a validator backed by the given capability.
func NewValidator(capability decide.Capability) *Validator {
	return &Validator{capability: capability}
}

// Validate reviews one stage analysis. A reviewer failure is not fatal:
// the stage falls back to approval on its computed classification, flagged
// so the supervisor can record the degraded review.
func (v *Validator) Validate(ctx context.Context, sa *StageAnalysis) Validation {
	log := logging.ForStage("analysis", sa.StageID)

	evidence, err := json.Marshal(sa)
	if err != nil {
		evidence = []byte(fmt.Sprintf("%+v", sa))
	}
	resp, err := v.capability.Decide(ctx, decide.Request{
		Topic:        "comparison_validation",
		Instructions: "Review the stage analysis. Approve if the comparisons support the computed classifications; otherwise request revision and say what to fix.",
		Context: map[string]string{
			"stage_id": sa.StageID,
			"overall":  sa.Overall,
			"analysis": string(evidence),
		},
		Schema: []string{VerdictApprove, VerdictRevise},
	})
	if err != nil {
		log.Warn("validation reviewer unavailable, approving on computed classification", "err", err)
		return Validation{Verdict: VerdictApprove, Fallback: true}
	}
	if resp.Verdict == VerdictRevise {
		return Validation{Verdict: VerdictRevise, Feedback: resp.Text}
	}
	return Validation{Verdict: VerdictApprove, Feedback: resp.Text}
}
