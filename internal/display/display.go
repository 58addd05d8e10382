// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, markdown reports, logs, and docs.
// Keep raw codes for JSON fields, map keys, and equality comparisons.
package display

import (
	"strings"

	"prism/internal/workflow"
)

// --- Stage statuses ---

var statuses = map[workflow.Status]string{
	workflow.StatusNotStarted:       "Not Started",
	workflow.StatusInProgress:       "In Progress",
	workflow.StatusCompletedSuccess: "Completed",
	workflow.StatusCompletedPartial: "Completed (partial)",
	workflow.StatusCompletedFailed:  "Failed",
	workflow.StatusNeedsRerun:       "Needs Rerun",
	workflow.StatusInvalidated:      "Invalidated",
	workflow.StatusBlocked:          "Blocked",
}

var statusMarks = map[workflow.Status]string{
	workflow.StatusNotStarted:       "·",
	workflow.StatusInProgress:       "▶",
	workflow.StatusCompletedSuccess: "✓",
	workflow.StatusCompletedPartial: "◐",
	workflow.StatusCompletedFailed:  "✗",
	workflow.StatusNeedsRerun:       "↻",
	workflow.StatusInvalidated:      "⊘",
	workflow.StatusBlocked:          "⛔",
}

// Status returns the human-readable name for a stage status.
// Unknown codes are returned as-is.
func Status(s workflow.Status) string {
	if name, ok := statuses[s]; ok {
		return name
	}
	return string(s)
}

// StatusMark returns a one-character marker for a stage status.
func StatusMark(s workflow.Status) string {
	if mark, ok := statusMarks[s]; ok {
		return mark
	}
	return "?"
}

// --- Stage types ---

var stageTypes = map[workflow.StageType]string{
	workflow.StageTypeSetup:              "Setup",
	workflow.StageTypeMaterialValidation: "Material Validation",
	workflow.StageTypeSimulation:         "Simulation",
	workflow.StageTypeAnalysis:           "Analysis",
}

// StageType returns the human-readable name for a stage type.
func StageType(t workflow.StageType) string {
	if name, ok := stageTypes[t]; ok {
		return name
	}
	return string(t)
}

// --- Precision requirements ---

var precisions = map[workflow.Precision]string{
	workflow.PrecisionExcellent:   "Excellent (quantitative)",
	workflow.PrecisionAcceptable:  "Acceptable (quantitative)",
	workflow.PrecisionQualitative: "Qualitative",
}

// Precision returns the human-readable name for a precision requirement.
func Precision(p workflow.Precision) string {
	if name, ok := precisions[p]; ok {
		return name
	}
	return string(p)
}

// --- Comparison classifications ---

var classifications = map[workflow.Classification]string{
	workflow.ClassMatch:             "Match",
	workflow.ClassPartialMatch:      "Partial Match",
	workflow.ClassMismatch:          "Mismatch",
	workflow.ClassPendingValidation: "Pending Validation",
	workflow.ClassMissingDigitized:  "Missing Digitized Data",
	workflow.ClassMissingOutput:     "Missing Output",
}

// Classification returns the human-readable name for a comparison verdict.
func Classification(c workflow.Classification) string {
	if name, ok := classifications[c]; ok {
		return name
	}
	return string(c)
}

// --- Discrepancy classes ---

var discrepancyClasses = map[workflow.DiscrepancyClass]string{
	workflow.DiscrepancyAcceptable:  "Acceptable",
	workflow.DiscrepancyInvestigate: "Investigate",
	workflow.DiscrepancyBlocking:    "Blocking",
}

// DiscrepancyClass returns the human-readable name for a discrepancy grade.
func DiscrepancyClass(c workflow.DiscrepancyClass) string {
	if name, ok := discrepancyClasses[c]; ok {
		return name
	}
	return string(c)
}

// --- Metric names ---

var metricNames = map[string]string{
	"n_points_compared":       "Points Compared",
	"normalized_rmse":         "Normalized RMSE",
	"correlation":             "Correlation",
	"r_squared":               "R Squared",
	"peak_position_error_pct": "Peak Position Error",
	"peak_height_ratio":       "Peak Height Ratio",
	"fwhm_ratio":              "FWHM Ratio",
}

// Metric returns the human-readable name for a comparison metric key.
// "normalized_rmse" -> "Normalized RMSE".
func Metric(key string) string {
	if name, ok := metricNames[key]; ok {
		return name
	}
	return key
}

// --- Escalation triggers ---

var triggers = map[string]string{
	"material_checkpoint":        "Material Checkpoint",
	"revision_limit":             "Revision Limit",
	"backtrack_limit":            "Backtrack Limit",
	"workflow_error":             "Workflow Error",
	"execution_failure":          "Execution Failure",
	"replan_scope":               "Replan Scope",
	"user_question":              "Question",
	"invalid_backtrack_decision": "Invalid Backtrack Decision",
	"invalid_backtrack_target":   "Invalid Backtrack Target",
	"backtrack_target_not_found": "Backtrack Target Not Found",
}

// Trigger returns the human-readable name for an escalation trigger.
func Trigger(code string) string {
	if name, ok := triggers[code]; ok {
		return name
	}
	return code
}

// --- Stage paths ---

// StagePath converts a slice of stage ids to a human-readable chain.
// ["setup", "materials", "sim"] -> "setup → materials → sim"
func StagePath(ids []string) string {
	return strings.Join(ids, " → ")
}
