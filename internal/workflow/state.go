package workflow

// WorkflowState is the single record the whole control plane operates on.
// Node functions take a snapshot, produce a partial Update, and the
// supervisor applies it; the merge in Apply is the only mutation point.
type WorkflowState struct {
	RunID string `json:"run_id"`
	Paper string `json:"paper,omitempty"` // paper title or id, informational

	Stages  []*Stage          `json:"stages"`
	Targets map[string]Target `json:"targets,omitempty"` // figure id -> detail

	Reports       []AnalysisReport   `json:"reports,omitempty"`
	Comparisons   []FigureComparison `json:"comparisons,omitempty"`
	Discrepancies DiscrepancyLedger  `json:"discrepancies"`
	Revisions     RevisionLedger     `json:"revisions"`

	BacktrackCount   int                `json:"backtrack_count"`
	PendingBacktrack *BacktrackDecision `json:"pending_backtrack,omitempty"`

	// Working scope, cleared wholesale on backtrack.
	GeneratedCode string              `json:"generated_code,omitempty"`
	Design        string              `json:"design,omitempty"`
	StageOutputs  map[string][]string `json:"stage_outputs,omitempty"`
	LastVerdict   string              `json:"last_verdict,omitempty"`

	ValidatedMaterials []string `json:"validated_materials,omitempty"`

	PendingEscalation *Escalation   `json:"pending_escalation,omitempty"`
	Interactions      []Interaction `json:"interactions,omitempty"`
	Feedback          string        `json:"feedback,omitempty"` // last analysis/revision feedback text

	// Transient per-tick fields.
	CurrentStageID   string   `json:"current_stage_id,omitempty"`
	PendingQuestions []string `json:"pending_questions,omitempty"`
	AwaitingInput    bool     `json:"awaiting_input"`
	Completed        bool     `json:"completed"`
}

// Update is a partial state change produced by one node function. Nil fields
// mean "no change"; set fields replace the current value. The product type
// keeps merges explicit instead of scattering field writes across nodes.
type Update struct {
	Stages      []*Stage           // replace-by-id
	Reports     []AnalysisReport   // replaces all reports for the stages they name
	Comparisons []FigureComparison // replaces all comparisons for the stages they name

	CurrentStageID   *string
	PendingQuestions []string
	AwaitingInput    *bool
	Completed        *bool

	GeneratedCode *string
	Design        *string
	LastVerdict   *string
	Feedback      *string

	PendingBacktrack  **BacktrackDecision // settable to nil via pointer-to-pointer
	PendingEscalation **Escalation

	Interactions []Interaction // appended, never replaced
}

// Apply merges an Update into the state, right-biased: every field the
// update sets wins; everything else is untouched. Sequential by contract
// (spec'd single-step model), so no locking.
func (s *WorkflowState) Apply(u Update) {
	for _, st := range u.Stages {
		s.putStage(st)
	}
	if u.Reports != nil {
		s.replaceReports(u.Reports)
	}
	if u.Comparisons != nil {
		s.replaceComparisons(u.Comparisons)
	}
	if u.CurrentStageID != nil {
		s.CurrentStageID = *u.CurrentStageID
	}
	if u.PendingQuestions != nil {
		s.PendingQuestions = u.PendingQuestions
	}
	if u.AwaitingInput != nil {
		s.AwaitingInput = *u.AwaitingInput
	}
	if u.Completed != nil {
		s.Completed = *u.Completed
	}
	if u.GeneratedCode != nil {
		s.GeneratedCode = *u.GeneratedCode
	}
	if u.Design != nil {
		s.Design = *u.Design
	}
	if u.LastVerdict != nil {
		s.LastVerdict = *u.LastVerdict
	}
	if u.Feedback != nil {
		s.Feedback = *u.Feedback
	}
	if u.PendingBacktrack != nil {
		s.PendingBacktrack = *u.PendingBacktrack
	}
	if u.PendingEscalation != nil {
		s.PendingEscalation = *u.PendingEscalation
	}
	s.Interactions = append(s.Interactions, u.Interactions...)
}

// putStage replaces the stage with the same id, or appends a new one.
func (s *WorkflowState) putStage(st *Stage) {
	for i, existing := range s.Stages {
		if existing.ID == st.ID {
			s.Stages[i] = st
			return
		}
	}
	s.Stages = append(s.Stages, st)
}

// replaceReports drops every prior report for the stages named by the new
// reports, then appends the new ones. Reports for other stages survive.
func (s *WorkflowState) replaceReports(reports []AnalysisReport) {
	touched := make(map[string]bool)
	for _, r := range reports {
		touched[r.StageID] = true
	}
	kept := s.Reports[:0]
	for _, r := range s.Reports {
		if !touched[r.StageID] {
			kept = append(kept, r)
		}
	}
	s.Reports = append(kept, reports...)
}

func (s *WorkflowState) replaceComparisons(comps []FigureComparison) {
	touched := make(map[string]bool)
	for _, c := range comps {
		touched[c.StageID] = true
	}
	kept := s.Comparisons[:0]
	for _, c := range s.Comparisons {
		if !touched[c.StageID] {
			kept = append(kept, c)
		}
	}
	s.Comparisons = append(kept, comps...)
}

// StageByID returns the stage with the given id, or nil.
func (s *WorkflowState) StageByID(id string) *Stage {
	for _, st := range s.Stages {
		if st.ID == id {
			return st
		}
	}
	return nil
}

// ReportsForStage returns the current reports for one stage, in append order.
func (s *WorkflowState) ReportsForStage(stageID string) []AnalysisReport {
	var out []AnalysisReport
	for _, r := range s.Reports {
		if r.StageID == stageID {
			out = append(out, r)
		}
	}
	return out
}

// ComparisonsForStage returns the current comparisons for one stage.
func (s *WorkflowState) ComparisonsForStage(stageID string) []FigureComparison {
	var out []FigureComparison
	for _, c := range s.Comparisons {
		if c.StageID == stageID {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot returns a deep copy of the state. Node functions receive
// snapshots so their reads never observe a concurrent (or later) mutation.
func (s *WorkflowState) Snapshot() *WorkflowState {
	cp := *s

	cp.Stages = make([]*Stage, len(s.Stages))
	for i, st := range s.Stages {
		stc := *st
		stc.DependsOn = append([]string(nil), st.DependsOn...)
		stc.Targets = append([]string(nil), st.Targets...)
		stc.Outputs = append([]string(nil), st.Outputs...)
		stc.DiscrepancyRefs = append([]string(nil), st.DiscrepancyRefs...)
		stc.ValidationCriteria = append([]string(nil), st.ValidationCriteria...)
		cp.Stages[i] = &stc
	}

	if s.Targets != nil {
		cp.Targets = make(map[string]Target, len(s.Targets))
		for k, v := range s.Targets {
			cp.Targets[k] = v
		}
	}
	cp.Reports = append([]AnalysisReport(nil), s.Reports...)
	cp.Comparisons = append([]FigureComparison(nil), s.Comparisons...)
	cp.Discrepancies = s.Discrepancies.clone()
	cp.Revisions = s.Revisions.clone()
	cp.Interactions = append([]Interaction(nil), s.Interactions...)
	cp.PendingQuestions = append([]string(nil), s.PendingQuestions...)
	cp.ValidatedMaterials = append([]string(nil), s.ValidatedMaterials...)

	if s.StageOutputs != nil {
		cp.StageOutputs = make(map[string][]string, len(s.StageOutputs))
		for k, v := range s.StageOutputs {
			cp.StageOutputs[k] = append([]string(nil), v...)
		}
	}
	if s.PendingBacktrack != nil {
		d := *s.PendingBacktrack
		d.StagesToInvalidate = append([]string(nil), s.PendingBacktrack.StagesToInvalidate...)
		cp.PendingBacktrack = &d
	}
	if s.PendingEscalation != nil {
		e := *s.PendingEscalation
		cp.PendingEscalation = &e
	}
	return &cp
}

// --- Update field helpers ---

// String and Bool wrap literals for optional Update fields.
func String(v string) *string { return &v }
func Bool(v bool) *bool       { return &v }

// SetBacktrack returns the **BacktrackDecision value that sets (or clears,
// with nil) the pending backtrack decision in an Update.
func SetBacktrack(d *BacktrackDecision) **BacktrackDecision { return &d }

// SetEscalation returns the **Escalation value that sets (or clears, with
// nil) the pending escalation in an Update.
func SetEscalation(e *Escalation) **Escalation { return &e }
