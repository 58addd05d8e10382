package workflow

import (
	"errors"
	"fmt"

	"prism/internal/config"
	"prism/internal/logging"
)

// Escalation trigger names raised by the backtrack coordinator. The registry
// aliases the three validation failures to the workflow-error option set.
const (
	TriggerInvalidBacktrackDecision = "invalid_backtrack_decision"
	TriggerInvalidBacktrackTarget   = "invalid_backtrack_target"
	TriggerBacktrackTargetNotFound  = "backtrack_target_not_found"
	TriggerBacktrackLimit           = "backtrack_limit"
)

// Validation failures for a backtrack decision.
var (
	ErrInvalidDecision = errors.New("backtrack decision missing or not accepted")
	ErrInvalidTarget   = errors.New("backtrack target stage id is empty")
	ErrTargetNotFound  = errors.New("backtrack target stage not found")
)

// BacktrackResult reports what a backtrack application did.
type BacktrackResult struct {
	Applied      bool        // bookkeeping was performed
	Invalidated  []string    // stages flipped to invalidated
	LimitReached bool        // backtrack count hit its configured max
	Escalation   *Escalation // non-nil when the caller must pause for a human
}

// BacktrackCoordinator validates and applies backtrack decisions against a
// workflow state.
type BacktrackCoordinator struct {
	limits config.Limits
}

// NewBacktrackCoordinator returns a coordinator bound to the given limits.
func NewBacktrackCoordinator(limits config.Limits) *BacktrackCoordinator {
	return &BacktrackCoordinator{limits: limits}
}

// Apply consumes state.PendingBacktrack (cleared in every path; a decision
// is used at most once) and applies it. Validation failures return a
// sentinel error plus a result whose Escalation names the failure; no stage
// status is mutated on failure.
//
// On success the target stage goes to needs_rerun with its outputs and
// discrepancy refs cleared (the global ledger keeps all entries), every
// stage in StagesToInvalidate goes to invalidated with outputs preserved,
// the working scope and all revision counters are cleared, and the
// backtrack counter is incremented. If the incremented counter reaches the
// configured max, the bookkeeping still stands but the result carries a
// terminal backtrack-limit escalation instead of a silent resume.
func (c *BacktrackCoordinator) Apply(state *WorkflowState) (*BacktrackResult, error) {
	dec := state.PendingBacktrack
	state.PendingBacktrack = nil

	log := logging.New("backtrack")

	if dec == nil || !dec.Accepted {
		return &BacktrackResult{Escalation: &Escalation{
			Trigger:  TriggerInvalidBacktrackDecision,
			Question: "A backtrack was requested without an accepted decision. How should the workflow proceed?",
		}}, ErrInvalidDecision
	}
	if dec.TargetStageID == "" {
		return &BacktrackResult{Escalation: &Escalation{
			Trigger:  TriggerInvalidBacktrackTarget,
			Question: "The backtrack decision names no target stage. How should the workflow proceed?",
		}}, ErrInvalidTarget
	}
	target := state.StageByID(dec.TargetStageID)
	if target == nil {
		return &BacktrackResult{Escalation: &Escalation{
			Trigger:  TriggerBacktrackTargetNotFound,
			StageID:  dec.TargetStageID,
			Question: fmt.Sprintf("The backtrack target stage %q is not part of this workflow. How should the workflow proceed?", dec.TargetStageID),
		}}, fmt.Errorf("%w: %s", ErrTargetNotFound, dec.TargetStageID)
	}

	// Target reverts fully: it will re-run from scratch.
	target.Status = StatusNeedsRerun
	target.Outputs = nil
	target.DiscrepancyRefs = nil

	// Dependents are invalidated in status only; their outputs remain
	// inspectable until the rerun overwrites them.
	res := &BacktrackResult{Applied: true}
	for _, id := range dec.StagesToInvalidate {
		st := state.StageByID(id)
		if st == nil || st.ID == target.ID {
			continue
		}
		st.Status = StatusInvalidated
		res.Invalidated = append(res.Invalidated, st.ID)
	}

	// Working scope is stale once any upstream stage reverts.
	state.GeneratedCode = ""
	state.Design = ""
	state.StageOutputs = nil
	state.LastVerdict = ""

	state.Revisions.ResetAll()
	state.BacktrackCount++

	// Reverting material validation means the validated materials are no
	// longer trustworthy for any downstream stage.
	if target.Type == StageTypeMaterialValidation {
		state.ValidatedMaterials = nil
	}

	log.Info("backtrack applied",
		"target", target.ID,
		"invalidated", len(res.Invalidated),
		"backtrack_count", state.BacktrackCount,
		"reason", dec.Reason)

	if state.BacktrackCount >= c.limits.BacktrackMax {
		res.LimitReached = true
		res.Escalation = &Escalation{
			Trigger: TriggerBacktrackLimit,
			StageID: target.ID,
			Question: fmt.Sprintf("The workflow has backtracked %d times (limit %d). Automated recovery is exhausted.",
				state.BacktrackCount, c.limits.BacktrackMax),
		}
	}
	return res, nil
}
