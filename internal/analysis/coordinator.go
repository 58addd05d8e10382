package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"prism/internal/curves"
	"prism/internal/format"
	"prism/internal/logging"
	"prism/internal/workflow"
)

// Execution-level failure codes. These are reported outcomes, not errors:
// the supervisor routes them into revision or escalation.
const (
	FailNoTargets   = "NO_TARGETS"
	FailNoArtifacts = "NO_ARTIFACTS"
)

// Stage summary classifications, worst-case first.
const (
	SummaryPoor       = "poor"
	SummaryPartial    = "partial"
	SummaryAcceptable = "acceptable"
	SummaryExcellent  = "excellent"
)

// StageAnalysis is the outcome of analyzing one stage's artifacts.
type StageAnalysis struct {
	StageID     string                      `json:"stage_id"`
	Overall     string                      `json:"overall"` // summary classification
	Reports     []workflow.AnalysisReport   `json:"reports,omitempty"`
	Comparisons []workflow.FigureComparison `json:"comparisons,omitempty"`
	Blocked     bool                        `json:"blocked"`      // at least one target is policy-blocked
	FailureCode string                      `json:"failure_code,omitempty"`
	Failure     string                      `json:"failure,omitempty"`
}

// Coordinator resolves a stage's targets, compares each produced curve
// against its reference, and produces the stage's reports, comparisons,
// and discrepancy entries.
type Coordinator struct {
	classifier *Classifier
}

// NewCoordinator returns a coordinator using the given classifier.
func NewCoordinator(classifier *Classifier) *Coordinator {
	return &Coordinator{classifier: classifier}
}

// AnalyzeStage analyzes one stage. Discrepancies are appended to the
// state's ledger and referenced from the stage; the returned reports and
// comparisons replace the stage's previous analysis pass when applied.
//
// Unreadable or absent artifact files become reported outcomes
// (missing_output, NO_ARTIFACTS), never raised errors; only an unknown
// stage id is a programming error.
func (c *Coordinator) AnalyzeStage(state *workflow.WorkflowState, stageID string) (*StageAnalysis, error) {
	stage := state.StageByID(stageID)
	if stage == nil {
		return nil, fmt.Errorf("analyze: unknown stage %q", stageID)
	}
	log := logging.ForStage("analysis", stageID)

	targets := resolveTargets(state, stage)
	if len(targets) == 0 {
		return &StageAnalysis{StageID: stageID, Overall: SummaryPoor,
			FailureCode: FailNoTargets, Failure: "stage has no analysis targets"}, nil
	}

	onDisk := existingArtifacts(stage.Outputs)
	if len(onDisk) == 0 {
		return &StageAnalysis{StageID: stageID, Overall: SummaryPoor,
			FailureCode: FailNoArtifacts,
			Failure:     fmt.Sprintf("none of %d declared artifacts exist on disk", len(stage.Outputs))}, nil
	}

	targets = orderByFeedback(targets, state.Feedback)

	sa := &StageAnalysis{StageID: stageID}
	for _, target := range targets {
		report, comparison := c.analyzeTarget(state, stage, target, onDisk)
		sa.Reports = append(sa.Reports, report)
		sa.Comparisons = append(sa.Comparisons, comparison)
		if report.Classification == workflow.ClassMissingDigitized {
			sa.Blocked = true
		}
	}
	sa.Overall = summarize(sa.Reports)

	log.Info("stage analyzed", "targets", len(targets), "overall", sa.Overall, "blocked", sa.Blocked)
	return sa, nil
}

// analyzeTarget produces the report and comparison for one target.
func (c *Coordinator) analyzeTarget(state *workflow.WorkflowState, stage *workflow.Stage, target workflow.Target, onDisk []string) (workflow.AnalysisReport, workflow.FigureComparison) {
	report := workflow.AnalysisReport{
		ResultID: uuid.NewString(),
		StageID:  stage.ID,
		FigureID: target.FigureID,
	}
	comparison := workflow.FigureComparison{FigureID: target.FigureID, StageID: stage.ID}

	file := resolveFile(onDisk, target)
	if file == "" {
		report.Classification = workflow.ClassMissingOutput
		comparison.Classification = report.Classification
		return report, comparison
	}
	comparison.ArtifactRefs = []string{file}

	// Policy block: an excellent requirement without digitized reference
	// data can never be honored. No comparison is attempted.
	if target.Precision == workflow.PrecisionExcellent && target.DigitizedPath == "" {
		report.Classification = workflow.ClassMissingDigitized
		comparison.Classification = report.Classification
		id := state.Discrepancies.Append(workflow.Discrepancy{
			StageID:        stage.ID,
			FigureID:       target.FigureID,
			Quantity:       "digitized reference data",
			PaperValue:     "required",
			SimValue:       "absent",
			Classification: workflow.DiscrepancyBlocking,
			Blocking:       true,
		})
		stage.DiscrepancyRefs = append(stage.DiscrepancyRefs, id)
		return report, comparison
	}

	sim, err := curves.LoadSeries(file)
	if err != nil {
		// Data error: the artifact exists but is unusable. Reported as a
		// missing output, with the reason carried on the report.
		report.Classification = workflow.ClassMissingOutput
		report.CriteriaFailures = []string{fmt.Sprintf("artifact unreadable: %v", err)}
		comparison.Classification = report.Classification
		return report, comparison
	}

	hasReference := target.DigitizedPath != ""
	var metrics map[string]float64
	if hasReference {
		ref, refErr := curves.LoadSeries(target.DigitizedPath)
		if refErr != nil {
			hasReference = false
		} else {
			comp := curves.Compare(sim, ref)
			metrics = comp.Metrics()
			comparison.Rows = comparisonRows(comp)
		}
	}

	report.Metrics = metrics
	report.Classification = c.classifier.Classify(metrics, target.Precision, hasReference)

	failures, _ := EvaluateCriteria(metrics, stage.ValidationCriteria)
	if len(failures) > 0 {
		report.CriteriaFailures = failures
		report.Classification = workflow.ClassMismatch
	}
	comparison.Classification = report.Classification

	if id, ok := primaryDiscrepancy(state, stage.ID, target.FigureID, metrics, report.Classification); ok {
		stage.DiscrepancyRefs = append(stage.DiscrepancyRefs, id)
	}
	return report, comparison
}

// primaryDiscrepancy logs the headline quantified difference for a compared
// target: resonance position when a peak error exists, normalized RMSE
// otherwise. Targets with no computed metric log nothing.
func primaryDiscrepancy(state *workflow.WorkflowState, stageID, figureID string, metrics map[string]float64, cls workflow.Classification) (string, bool) {
	var dclass workflow.DiscrepancyClass
	switch cls {
	case workflow.ClassMatch:
		dclass = workflow.DiscrepancyAcceptable
	case workflow.ClassPartialMatch, workflow.ClassMismatch:
		dclass = workflow.DiscrepancyInvestigate
	default:
		return "", false
	}

	if peakErr, ok := metrics[curves.MetricPeakPositionError]; ok {
		id := state.Discrepancies.Append(workflow.Discrepancy{
			StageID:        stageID,
			FigureID:       figureID,
			Quantity:       "resonance position",
			PaperValue:     "reference peak",
			SimValue:       "simulated peak",
			Classification: dclass,
			DiffPercent:    peakErr,
		})
		return id, true
	}
	if rmse, ok := metrics[curves.MetricNormalizedRMSE]; ok {
		id := state.Discrepancies.Append(workflow.Discrepancy{
			StageID:        stageID,
			FigureID:       figureID,
			Quantity:       "normalized rmse",
			PaperValue:     "0",
			SimValue:       fmt.Sprintf("%.2f%%", rmse),
			Classification: dclass,
			DiffPercent:    rmse,
		})
		return id, true
	}
	return "", false
}

// comparisonRows renders the display rows for a computed comparison.
// Undefined metrics produce no row at all.
func comparisonRows(comp curves.Comparison) []workflow.ComparisonRow {
	var rows []workflow.ComparisonRow
	if comp.PeakPositionErr != nil {
		rows = append(rows, workflow.ComparisonRow{
			Quantity:   "peak position",
			Paper:      format.FmtNm(comp.RefPeak.X),
			Simulated:  format.FmtNm(comp.SimPeak.X),
			Difference: format.FmtPercent(*comp.PeakPositionErr),
		})
	}
	if comp.PeakHeightRatio != nil {
		rows = append(rows, workflow.ComparisonRow{
			Quantity:   "peak value",
			Paper:      fmt.Sprintf("%.4g", comp.RefPeak.Y),
			Simulated:  fmt.Sprintf("%.4g", comp.SimPeak.Y),
			Difference: "ratio " + format.FmtRatio(*comp.PeakHeightRatio),
		})
	}
	if comp.FWHMRatio != nil {
		rows = append(rows, workflow.ComparisonRow{
			Quantity:   "fwhm",
			Paper:      format.FmtNm(*comp.RefPeak.FWHM),
			Simulated:  format.FmtNm(*comp.SimPeak.FWHM),
			Difference: "ratio " + format.FmtRatio(*comp.FWHMRatio),
		})
	}
	if comp.NormalizedRMSE != nil {
		rows = append(rows, workflow.ComparisonRow{
			Quantity:   "normalized rmse",
			Paper:      "0%",
			Simulated:  format.FmtPercent(*comp.NormalizedRMSE),
			Difference: fmt.Sprintf("%d points", comp.NPoints),
		})
	}
	return rows
}

// resolveTargets applies the target resolution precedence: explicit stage
// targets, then plan target metadata, then one synthetic target per
// discovered artifact figure.
func resolveTargets(state *workflow.WorkflowState, stage *workflow.Stage) []workflow.Target {
	if len(stage.Targets) > 0 {
		out := make([]workflow.Target, 0, len(stage.Targets))
		for _, id := range stage.Targets {
			if detail, ok := state.Targets[id]; ok {
				out = append(out, detail)
				continue
			}
			out = append(out, workflow.Target{FigureID: id, Precision: workflow.PrecisionAcceptable})
		}
		return out
	}

	if len(state.Targets) > 0 {
		ids := make([]string, 0, len(state.Targets))
		for id := range state.Targets {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out := make([]workflow.Target, 0, len(ids))
		for _, id := range ids {
			out = append(out, state.Targets[id])
		}
		return out
	}

	var out []workflow.Target
	for _, ref := range stage.Outputs {
		base := filepath.Base(ref)
		fig := strings.TrimSuffix(base, filepath.Ext(base))
		out = append(out, workflow.Target{FigureID: fig, Precision: workflow.PrecisionAcceptable})
	}
	return out
}

// orderByFeedback moves targets named in the prior feedback text to the
// front, preserving relative order within both partitions.
func orderByFeedback(targets []workflow.Target, feedback string) []workflow.Target {
	if feedback == "" {
		return targets
	}
	lower := strings.ToLower(feedback)
	var named, rest []workflow.Target
	for _, tg := range targets {
		if strings.Contains(lower, strings.ToLower(tg.FigureID)) {
			named = append(named, tg)
		} else {
			rest = append(rest, tg)
		}
	}
	return append(named, rest...)
}

// resolveFile finds the artifact for a target: declared filename patterns
// first, then a figure-id substring fallback.
func resolveFile(onDisk []string, target workflow.Target) string {
	for _, pattern := range target.FilePatterns {
		for _, ref := range onDisk {
			if ok, _ := filepath.Match(pattern, filepath.Base(ref)); ok {
				return ref
			}
		}
	}
	fig := strings.ToLower(target.FigureID)
	for _, ref := range onDisk {
		if strings.Contains(strings.ToLower(filepath.Base(ref)), fig) {
			return ref
		}
	}
	return ""
}

func existingArtifacts(refs []string) []string {
	var out []string
	for _, ref := range refs {
		if info, err := os.Stat(ref); err == nil && !info.IsDir() {
			out = append(out, ref)
		}
	}
	return out
}

// summarize derives the stage's overall classification, worst case first:
// any missing or mismatched target makes the stage poor; any pending one
// partial; all matches excellent; anything else (partial matches) is
// acceptable.
func summarize(reports []workflow.AnalysisReport) string {
	allMatch := true
	anyPending := false
	for _, r := range reports {
		switch r.Classification {
		case workflow.ClassMismatch, workflow.ClassMissingOutput, workflow.ClassMissingDigitized:
			return SummaryPoor
		case workflow.ClassPendingValidation:
			anyPending = true
			allMatch = false
		case workflow.ClassPartialMatch:
			allMatch = false
		}
	}
	if anyPending {
		return SummaryPartial
	}
	if allMatch {
		return SummaryExcellent
	}
	return SummaryAcceptable
}
