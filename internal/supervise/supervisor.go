// Package supervise owns the control loop: one supervisory decision per
// tick, applied to exactly one workflow state. The supervisor is the only
// code that mutates a state between snapshots; analysis, backtracking, and
// escalation matching are delegated to their packages and their results
// merged back here.
package supervise

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"prism/internal/analysis"
	"prism/internal/config"
	"prism/internal/decide"
	"prism/internal/escalate"
	"prism/internal/logging"
	"prism/internal/workflow"
)

// Supervisory verdicts. The decision capability must answer with one of
// these; anything else degrades to continue.
const (
	VerdictContinue       = "continue"
	VerdictChangePriority = "change_priority"
	VerdictReplan         = "replan"
	VerdictAskUser        = "ask_user"
	VerdictBacktrack      = "backtrack"
	VerdictAllComplete    = "all_complete"
)

var supervisionSchema = []string{
	VerdictContinue, VerdictChangePriority, VerdictReplan,
	VerdictAskUser, VerdictBacktrack, VerdictAllComplete,
}

// Tick actions.
const (
	ActionStarted       = "started_stage"
	ActionFinalized     = "finalized_stage"
	ActionRevised       = "revision_requested"
	ActionBacktracked   = "backtracked"
	ActionEscalated     = "escalated"
	ActionReprioritized = "reprioritized"
	ActionAwaiting      = "awaiting_input"
	ActionCompleted     = "completed"
)

const defaultRevisionMax = 3

// TickResult reports what one tick did.
type TickResult struct {
	Action   string `json:"action"`
	StageID  string `json:"stage_id,omitempty"`
	Verdict  string `json:"verdict,omitempty"`  // supervisory verdict, when one was consulted
	Fallback bool   `json:"fallback,omitempty"` // capability unavailable, defaulted
}

// ResponseResult reports how a human answer to an escalation was handled.
type ResponseResult struct {
	Matched       bool   `json:"matched"`
	Option        string `json:"option,omitempty"`
	Effect        string `json:"effect,omitempty"`
	Clarification string `json:"clarification,omitempty"`
}

// Supervisor drives one workflow state forward, one decision per tick.
type Supervisor struct {
	cfg         config.Config
	capability  decide.Capability
	matcher     *escalate.Matcher
	coordinator *analysis.Coordinator
	validator   *analysis.Validator
	backtracker *workflow.BacktrackCoordinator
	log         *slog.Logger
}

// New returns a supervisor. The capability answers both supervisory
// decisions and validation reviews; it also backs the escalation matcher's
// second pass.
func New(cfg config.Config, capability decide.Capability) *Supervisor {
	return &Supervisor{
		cfg:         cfg,
		capability:  capability,
		matcher:     escalate.NewMatcher(escalate.DefaultRegistry(), capability),
		coordinator: analysis.NewCoordinator(analysis.NewClassifier(cfg.Thresholds)),
		validator:   analysis.NewValidator(capability),
		backtracker: workflow.NewBacktrackCoordinator(cfg.Limits),
		log:         logging.New("supervise"),
	}
}

// Tick advances the workflow by one supervisory step. Pending work is
// drained first (escalations pause the run, backtracks apply before
// anything else); only then is the decision capability consulted.
func (s *Supervisor) Tick(ctx context.Context, state *workflow.WorkflowState) (*TickResult, error) {
	if state.Completed {
		return &TickResult{Action: ActionCompleted}, nil
	}
	if state.PendingEscalation != nil {
		state.AwaitingInput = true
		return &TickResult{Action: ActionAwaiting, StageID: state.PendingEscalation.StageID}, nil
	}
	if state.PendingBacktrack != nil {
		return s.applyBacktrack(state)
	}

	verdict, text, fallback := s.consult(ctx, state)
	res := &TickResult{Verdict: verdict, Fallback: fallback}

	switch verdict {
	case VerdictAllComplete:
		state.Completed = true
		res.Action = ActionCompleted
	case VerdictAskUser:
		question := strings.TrimSpace(text)
		if question == "" {
			question = "The workflow needs your input before continuing. How should it proceed?"
		}
		s.escalateTo(state, &workflow.Escalation{
			Trigger:  escalate.TriggerUserQuestion,
			Question: question,
			StageID:  state.CurrentStageID,
		})
		res.Action = ActionEscalated
	case VerdictReplan:
		s.escalateTo(state, &workflow.Escalation{
			Trigger:  escalate.TriggerReplanScope,
			Question: "A replan was requested. Should it cover everything, only the remaining stages, or be cancelled?",
		})
		res.Action = ActionEscalated
	case VerdictBacktrack:
		target := strings.TrimSpace(text)
		graph := workflow.NewStageGraph(state.Stages)
		state.PendingBacktrack = &workflow.BacktrackDecision{
			TargetStageID:      target,
			Reason:             "supervisory decision",
			StagesToInvalidate: graph.TransitiveDependents(target),
			Accepted:           true,
		}
		bres, err := s.applyBacktrack(state)
		if err != nil {
			return bres, err
		}
		bres.Verdict = verdict
		return bres, nil
	case VerdictChangePriority:
		state.Feedback = text
		res.Action = ActionReprioritized
	default: // continue
		return s.advance(ctx, state, res)
	}
	return res, nil
}

// consult asks the capability for the supervisory verdict, returning the
// verdict, its free-text part, and whether the capability had to be
// defaulted. A failure or an out-of-schema answer degrades to continue.
func (s *Supervisor) consult(ctx context.Context, state *workflow.WorkflowState) (string, string, bool) {
	snapshot := state.Snapshot()
	summary, err := json.Marshal(stateSummary(snapshot))
	if err != nil {
		summary = []byte("{}")
	}
	resp, err := s.capability.Decide(ctx, decide.Request{
		Topic:        "supervision",
		Instructions: "Given the workflow summary, choose the next supervisory action.",
		Context:      map[string]string{"summary": string(summary)},
		Schema:       supervisionSchema,
	})
	if err != nil {
		s.log.Warn("decision capability unavailable, continuing", "run", state.RunID, "err", err)
		return VerdictContinue, "", true
	}
	verdict := strings.ToLower(strings.TrimSpace(resp.Verdict))
	for _, v := range supervisionSchema {
		if verdict == v {
			return v, resp.Text, false
		}
	}
	s.log.Warn("decision capability answered outside the schema, continuing",
		"run", state.RunID, "verdict", resp.Verdict)
	return VerdictContinue, resp.Text, false
}

func (s *Supervisor) escalateTo(state *workflow.WorkflowState, esc *workflow.Escalation) {
	state.PendingEscalation = esc
	state.AwaitingInput = true
	s.log.Info("escalated", "run", state.RunID, "trigger", esc.Trigger, "stage", esc.StageID)
}

// applyBacktrack consumes the pending decision. Validation failures and a
// reached backtrack limit both surface as escalations; the sentinel error
// from the coordinator is absorbed here because the escalation already
// carries the recovery question.
func (s *Supervisor) applyBacktrack(state *workflow.WorkflowState) (*TickResult, error) {
	target := ""
	if state.PendingBacktrack != nil {
		target = state.PendingBacktrack.TargetStageID
	}
	bres, err := s.backtracker.Apply(state)
	if bres.Escalation != nil {
		s.escalateTo(state, bres.Escalation)
		if err != nil {
			s.log.Warn("backtrack rejected", "run", state.RunID, "target", target, "err", err)
		}
		return &TickResult{Action: ActionEscalated, StageID: target}, nil
	}
	return &TickResult{Action: ActionBacktracked, StageID: target}, nil
}

// advance either finalizes the in-flight stage or starts the next runnable
// one. When nothing is runnable the run is either complete or stuck.
func (s *Supervisor) advance(ctx context.Context, state *workflow.WorkflowState, res *TickResult) (*TickResult, error) {
	if cur := state.StageByID(state.CurrentStageID); cur != nil && cur.Status == workflow.StatusInProgress {
		return s.finalizeStage(ctx, state, cur, res)
	}

	graph := workflow.NewStageGraph(state.Stages)
	next, ok := graph.NextRunnable()
	if !ok {
		// Invalidated stages become runnable again once their dependencies
		// have been redone.
		for _, st := range state.Stages {
			if st.Status == workflow.StatusInvalidated && !st.Archived && graph.Ready(st.ID) {
				st.Status = workflow.StatusNeedsRerun
				next, ok = st, true
				break
			}
		}
	}
	if ok {
		next.Status = workflow.StatusInProgress
		state.CurrentStageID = next.ID
		res.Action = ActionStarted
		res.StageID = next.ID
		return res, nil
	}

	if allTerminal(state.Stages) {
		state.Completed = true
		res.Action = ActionCompleted
		return res, nil
	}

	s.escalateTo(state, &workflow.Escalation{
		Trigger:  escalate.TriggerWorkflowError,
		Question: "No stage is runnable but the workflow is not finished. How should it proceed?",
	})
	res.Action = ActionEscalated
	return res, nil
}

// finalizeStage closes out the in-flight stage. Setup stages complete
// unconditionally; material validation pauses at a human checkpoint;
// simulation and analysis stages go through curve analysis, review, and
// revision bookkeeping.
func (s *Supervisor) finalizeStage(ctx context.Context, state *workflow.WorkflowState, stage *workflow.Stage, res *TickResult) (*TickResult, error) {
	res.StageID = stage.ID
	log := logging.ForStage("supervise", stage.ID)

	switch stage.Type {
	case workflow.StageTypeSetup:
		stage.Status = workflow.StatusCompletedSuccess
		stage.Archived = true
		state.CurrentStageID = ""
		res.Action = ActionFinalized
		return res, nil

	case workflow.StageTypeMaterialValidation:
		s.escalateTo(state, &workflow.Escalation{
			Trigger: escalate.TriggerMaterialCheckpoint,
			StageID: stage.ID,
			Question: fmt.Sprintf("Stage %q validated %d material definitions. Approve them for the downstream simulations?",
				stage.ID, len(stage.Outputs)),
		})
		res.Action = ActionEscalated
		return res, nil
	}

	sa, err := s.coordinator.AnalyzeStage(state, stage.ID)
	if err != nil {
		return nil, err
	}

	if sa.FailureCode != "" {
		log.Warn("stage execution failed", "code", sa.FailureCode, "detail", sa.Failure)
		return s.requestRevision(state, stage, sa.Failure, res)
	}

	state.Apply(workflow.Update{Reports: sa.Reports, Comparisons: sa.Comparisons})
	state.LastVerdict = sa.Overall

	validation := s.validator.Validate(ctx, sa)
	if validation.Verdict == analysis.VerdictRevise {
		return s.requestRevision(state, stage, validation.Feedback, res)
	}

	if sa.Blocked {
		stage.Status = workflow.StatusBlocked
		state.CurrentStageID = ""
		res.Action = ActionFinalized
		return res, nil
	}

	stage.Status = terminalStatus(sa.Overall, validation.Fallback)
	stage.Archived = true
	state.CurrentStageID = ""
	res.Action = ActionFinalized
	log.Info("stage finalized", "status", stage.Status, "overall", sa.Overall)
	return res, nil
}

// requestRevision bumps the stage's revision counter and either sends the
// stage back for a rerun or, at the limit, escalates.
func (s *Supervisor) requestRevision(state *workflow.WorkflowState, stage *workflow.Stage, feedback string, res *TickResult) (*TickResult, error) {
	n, ok := state.Revisions.Increment(stage.ID, stage.RevisionKey, s.cfg.Limits, defaultRevisionMax)
	if !ok {
		s.escalateTo(state, &workflow.Escalation{
			Trigger: escalate.TriggerRevisionLimit,
			StageID: stage.ID,
			Question: fmt.Sprintf("Stage %q has used all %d revisions. Retry again, backtrack, skip it, or abort?",
				stage.ID, n),
		})
		res.Action = ActionEscalated
		return res, nil
	}
	stage.Status = workflow.StatusNeedsRerun
	state.Feedback = feedback
	state.CurrentStageID = ""
	res.Action = ActionRevised
	return res, nil
}

// HandleResponse consumes a human answer to the pending escalation. An
// uninterpretable answer re-escalates with a clarification on the same
// trigger; a matched one applies its option and records the interaction.
func (s *Supervisor) HandleResponse(ctx context.Context, state *workflow.WorkflowState, text string) (*ResponseResult, error) {
	esc := state.PendingEscalation
	if esc == nil {
		return nil, fmt.Errorf("supervise: no pending escalation on run %s", state.RunID)
	}

	match, err := s.matcher.Match(ctx, esc.Trigger, text)
	if err != nil {
		return nil, err
	}
	if !match.Matched {
		state.Apply(workflow.Update{
			Interactions: []workflow.Interaction{{
				Trigger: esc.Trigger, Question: esc.Question,
				Response: text, Effect: "clarification", At: time.Now().UTC(),
			}},
		})
		state.PendingEscalation = &workflow.Escalation{
			Trigger:  esc.Trigger,
			Question: match.Clarification,
			StageID:  esc.StageID,
		}
		return &ResponseResult{Clarification: match.Clarification}, nil
	}

	effect := s.applyOption(state, esc, match.Option, text)
	state.Apply(workflow.Update{
		Interactions: []workflow.Interaction{{
			Trigger: esc.Trigger, Question: esc.Question,
			Response: text, Effect: effect, At: time.Now().UTC(),
		}},
	})
	s.log.Info("escalation resolved", "run", state.RunID, "trigger", esc.Trigger,
		"option", match.Option, "effect", effect)
	return &ResponseResult{Matched: true, Option: match.Option, Effect: effect}, nil
}

// applyOption performs the state change a matched option asks for and
// clears (or replaces) the escalation. The returned effect string is what
// the interaction history records.
func (s *Supervisor) applyOption(state *workflow.WorkflowState, esc *workflow.Escalation, option, text string) string {
	state.PendingEscalation = nil
	state.AwaitingInput = false
	stage := state.StageByID(esc.StageID)

	switch esc.Trigger {
	case escalate.TriggerMaterialCheckpoint:
		switch option {
		case "approve":
			if stage != nil {
				stage.Status = workflow.StatusCompletedSuccess
				stage.Archived = true
				state.ValidatedMaterials = append(state.ValidatedMaterials, stage.Outputs...)
				if state.CurrentStageID == stage.ID {
					state.CurrentStageID = ""
				}
			}
			return "materials approved"
		case "reject":
			if stage != nil {
				stage.Status = workflow.StatusNeedsRerun
			}
			state.Feedback = text
			state.CurrentStageID = ""
			return "materials rejected, stage rerunning"
		default: // adjust
			if stage != nil {
				stage.Status = workflow.StatusNeedsRerun
			}
			state.Feedback = text
			state.CurrentStageID = ""
			return "materials sent back for adjustment"
		}

	case escalate.TriggerRevisionLimit:
		switch option {
		case "retry_again":
			if stage != nil {
				state.Revisions.Reset(stage.ID)
				stage.Status = workflow.StatusNeedsRerun
			}
			return "revision counter reset, retrying"
		case "backtrack":
			graph := workflow.NewStageGraph(state.Stages)
			state.PendingBacktrack = &workflow.BacktrackDecision{
				TargetStageID:      esc.StageID,
				Reason:             "revision limit override: " + text,
				StagesToInvalidate: graph.TransitiveDependents(esc.StageID),
				Accepted:           true,
			}
			return "backtrack queued"
		case "skip_stage":
			if stage != nil {
				stage.Status = workflow.StatusCompletedFailed
				stage.Archived = true
				if state.CurrentStageID == stage.ID {
					state.CurrentStageID = ""
				}
			}
			return "stage skipped as failed"
		default: // abort
			state.Completed = true
			return "run aborted"
		}

	case escalate.TriggerBacktrackLimit:
		switch option {
		case "continue_anyway":
			return "continuing past the backtrack limit"
		case "replan":
			state.PendingEscalation = &workflow.Escalation{
				Trigger:  escalate.TriggerReplanScope,
				Question: "Should the replan cover everything, only the remaining stages, or be cancelled?",
			}
			state.AwaitingInput = true
			return "replan scope requested"
		default: // abort
			state.Completed = true
			return "run aborted"
		}

	case escalate.TriggerReplanScope:
		switch option {
		case "full":
			for _, st := range state.Stages {
				if !st.Archived {
					st.Status = workflow.StatusNotStarted
					st.Outputs = nil
					st.DiscrepancyRefs = nil
				}
			}
			state.Revisions.ResetAll()
			state.GeneratedCode = ""
			state.Design = ""
			state.StageOutputs = nil
			state.CurrentStageID = ""
			return "full replan, unarchived stages reset"
		case "partial":
			for _, st := range state.Stages {
				switch st.Status {
				case workflow.StatusInvalidated, workflow.StatusBlocked:
					st.Status = workflow.StatusNeedsRerun
				}
			}
			state.CurrentStageID = ""
			return "partial replan, stuck stages rerunning"
		default: // cancel
			return "replan cancelled"
		}

	case escalate.TriggerUserQuestion:
		state.Feedback = text
		switch option {
		case "revise":
			if stage != nil {
				stage.Status = workflow.StatusNeedsRerun
				state.CurrentStageID = ""
			}
			return "revision requested"
		case "abort":
			state.Completed = true
			return "run aborted"
		default: // proceed
			return "proceeding"
		}
	}

	// workflow_error, execution_failure, and the backtrack-failure triggers
	// share one recovery vocabulary.
	switch option {
	case "retry", "revise":
		if stage != nil {
			stage.Status = workflow.StatusNeedsRerun
			state.CurrentStageID = ""
		}
		if option == "revise" {
			state.Feedback = text
		}
		return "stage rerunning"
	case "skip":
		if stage != nil {
			stage.Status = workflow.StatusCompletedFailed
			stage.Archived = true
			if state.CurrentStageID == stage.ID {
				state.CurrentStageID = ""
			}
		}
		return "stage skipped as failed"
	default: // abort
		state.Completed = true
		return "run aborted"
	}
}

func terminalStatus(overall string, reviewDegraded bool) workflow.Status {
	switch overall {
	case analysis.SummaryPoor:
		return workflow.StatusCompletedFailed
	case analysis.SummaryPartial:
		return workflow.StatusCompletedPartial
	}
	if reviewDegraded {
		return workflow.StatusCompletedPartial
	}
	return workflow.StatusCompletedSuccess
}

func allTerminal(stages []*workflow.Stage) bool {
	for _, st := range stages {
		switch st.Status {
		case workflow.StatusCompletedSuccess, workflow.StatusCompletedPartial, workflow.StatusCompletedFailed:
		default:
			return false
		}
	}
	return true
}

// stateSummary is the compact view handed to the decision capability.
func stateSummary(s *workflow.WorkflowState) map[string]any {
	stages := make([]map[string]any, 0, len(s.Stages))
	for _, st := range s.Stages {
		stages = append(stages, map[string]any{
			"id":     st.ID,
			"type":   st.Type,
			"status": st.Status,
		})
	}
	return map[string]any{
		"run_id":          s.RunID,
		"paper":           s.Paper,
		"stages":          stages,
		"current_stage":   s.CurrentStageID,
		"backtrack_count": s.BacktrackCount,
		"discrepancies":   s.Discrepancies.Len(),
		"blocking":        len(s.Discrepancies.Blocking()),
		"last_verdict":    s.LastVerdict,
		"feedback":        s.Feedback,
	}
}
