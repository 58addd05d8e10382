// Package workflow holds the reproduction-workflow data model and its leaf
// components: the stage dependency graph, the bounded revision ledger, the
// append-only discrepancy ledger, and the backtrack coordinator. Everything
// here mutates a WorkflowState snapshot and nothing else; the supervisor owns
// when those mutations happen.
package workflow

import "time"

// Status is the lifecycle state of a stage.
type Status string

const (
	StatusNotStarted       Status = "not_started"
	StatusInProgress       Status = "in_progress"
	StatusCompletedSuccess Status = "completed_success"
	StatusCompletedPartial Status = "completed_partial"
	StatusCompletedFailed  Status = "completed_failed"
	StatusNeedsRerun       Status = "needs_rerun"
	StatusInvalidated      Status = "invalidated"
	StatusBlocked          Status = "blocked"
)

// StageType categorizes a stage. MaterialValidation is special-cased by the
// backtrack coordinator: reverting it also clears validated materials.
type StageType string

const (
	StageTypeSetup              StageType = "setup"
	StageTypeMaterialValidation StageType = "material_validation"
	StageTypeSimulation         StageType = "simulation"
	StageTypeAnalysis           StageType = "analysis"
)

// Precision is how closely a target must match its published reference.
type Precision string

const (
	PrecisionExcellent   Precision = "excellent"
	PrecisionAcceptable  Precision = "acceptable"
	PrecisionQualitative Precision = "qualitative"
)

// Classification is the verdict for one target comparison.
type Classification string

const (
	ClassMatch             Classification = "match"
	ClassPartialMatch      Classification = "partial_match"
	ClassMismatch          Classification = "mismatch"
	ClassPendingValidation Classification = "pending_validation"
	ClassMissingDigitized  Classification = "missing_digitized_data"
	ClassMissingOutput     Classification = "missing_output"
)

// Stage is one unit of work in the reproduction plan. Stages are created at
// plan time and never deleted; finished stages are archived in place.
type Stage struct {
	ID                 string    `json:"id" yaml:"id"`
	Type               StageType `json:"type" yaml:"type"`
	Description        string    `json:"description,omitempty" yaml:"description,omitempty"`
	DependsOn          []string  `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Targets            []string  `json:"targets,omitempty" yaml:"targets,omitempty"` // ordered figure ids
	Status             Status    `json:"status" yaml:"-"`
	Outputs            []string  `json:"outputs,omitempty" yaml:"-"`            // artifact refs
	DiscrepancyRefs    []string  `json:"discrepancy_refs,omitempty" yaml:"-"`   // ids into the ledger
	ValidationCriteria []string  `json:"validation_criteria,omitempty" yaml:"validation_criteria,omitempty"`
	RevisionKey        string    `json:"revision_key,omitempty" yaml:"revision_key,omitempty"` // limits config key
	Archived           bool      `json:"archived,omitempty" yaml:"-"`
}

// Target describes one figure a stage attempts to reproduce.
type Target struct {
	FigureID      string    `json:"figure_id" yaml:"figure_id"`
	Precision     Precision `json:"precision" yaml:"precision"`
	DigitizedPath string    `json:"digitized_path,omitempty" yaml:"digitized_path,omitempty"`
	FilePatterns  []string  `json:"file_patterns,omitempty" yaml:"file_patterns,omitempty"`
}

// AnalysisReport is the outcome of analyzing one (stage, target) pair.
// Reports are immutable; a re-analysis of a stage replaces that stage's
// reports wholesale, it never edits them in place.
type AnalysisReport struct {
	ResultID         string             `json:"result_id"`
	StageID          string             `json:"stage_id"`
	FigureID         string             `json:"figure_id"`
	Classification   Classification     `json:"classification"`
	Metrics          map[string]float64 `json:"metrics,omitempty"`
	CriteriaFailures []string           `json:"criteria_failures,omitempty"`
}

// ComparisonRow is one display row of a figure comparison table.
type ComparisonRow struct {
	Quantity   string `json:"quantity"`
	Paper      string `json:"paper"`
	Simulated  string `json:"simulated"`
	Difference string `json:"difference"`
}

// FigureComparison is the human-facing view of one target comparison.
type FigureComparison struct {
	FigureID       string          `json:"figure_id"`
	StageID        string          `json:"stage_id"`
	Classification Classification  `json:"classification"`
	Rows           []ComparisonRow `json:"rows,omitempty"`
	ArtifactRefs   []string        `json:"artifact_refs,omitempty"`
}

// DiscrepancyClass grades a logged difference.
type DiscrepancyClass string

const (
	DiscrepancyAcceptable  DiscrepancyClass = "acceptable"
	DiscrepancyInvestigate DiscrepancyClass = "investigate"
	DiscrepancyBlocking    DiscrepancyClass = "blocking"
)

// Discrepancy is one quantified difference between reproduced and reference
// values. Immutable once appended to the ledger.
type Discrepancy struct {
	ID             string           `json:"id"` // "D<n>", assigned by the ledger
	StageID        string           `json:"stage_id"`
	FigureID       string           `json:"figure_id,omitempty"`
	Quantity       string           `json:"quantity"`
	PaperValue     string           `json:"paper_value"`
	SimValue       string           `json:"sim_value"`
	Classification DiscrepancyClass `json:"classification"`
	DiffPercent    float64          `json:"diff_percent"`
	Blocking       bool             `json:"blocking"`
}

// BacktrackDecision is produced by the supervisor and consumed exactly once
// by the backtrack coordinator.
type BacktrackDecision struct {
	TargetStageID      string   `json:"target_stage_id"`
	Reason             string   `json:"reason"`
	StagesToInvalidate []string `json:"stages_to_invalidate"`
	Accepted           bool     `json:"accepted"`
}

// Interaction is one entry of the append-only human-interaction history.
type Interaction struct {
	Trigger  string    `json:"trigger"`
	Question string    `json:"question"`
	Response string    `json:"response"`
	Effect   string    `json:"effect"`
	At       time.Time `json:"at"`
}

// Escalation is a pending pause of the workflow awaiting a human decision.
type Escalation struct {
	Trigger  string `json:"trigger"`
	Question string `json:"question"`
	StageID  string `json:"stage_id,omitempty"`
}
