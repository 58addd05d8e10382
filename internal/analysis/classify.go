// Package analysis turns raw curve metrics into classifications, applies
// free-text validation criteria, and produces per-stage analysis reports
// and figure comparisons.
package analysis

import (
	"prism/internal/config"
	"prism/internal/curves"
	"prism/internal/workflow"
)

// Classifier maps comparison metrics and a precision requirement to a
// verdict. Thresholds are injected; see config.DefaultThresholds.
type Classifier struct {
	thresholds config.Thresholds
}

// NewClassifier returns a classifier using the given thresholds.
func NewClassifier(th config.Thresholds) *Classifier {
	return &Classifier{thresholds: th}
}

// Classify picks the verdict for one target comparison.
//
// No reference data always yields pending_validation: nothing quantitative
// can be said. With a reference, a qualitative requirement is satisfied by
// any produced output. Otherwise peak-position error is the primary signal,
// tiered match/partial/mismatch; normalized RMSE is the fallback when no
// peak error was computable; with neither metric the comparison is still
// pending.
func (c *Classifier) Classify(metrics map[string]float64, precision workflow.Precision, hasReference bool) workflow.Classification {
	if !hasReference {
		return workflow.ClassPendingValidation
	}
	if precision == workflow.PrecisionQualitative {
		return workflow.ClassMatch
	}

	if peakErr, ok := metrics[curves.MetricPeakPositionError]; ok {
		switch {
		case peakErr <= c.thresholds.PeakErrorMatch:
			return workflow.ClassMatch
		case peakErr <= c.thresholds.PeakErrorPartial:
			return workflow.ClassPartialMatch
		default:
			return workflow.ClassMismatch
		}
	}
	if rmse, ok := metrics[curves.MetricNormalizedRMSE]; ok {
		switch {
		case rmse <= c.thresholds.RMSEMatch:
			return workflow.ClassMatch
		case rmse <= c.thresholds.RMSEPartial:
			return workflow.ClassPartialMatch
		default:
			return workflow.ClassMismatch
		}
	}
	return workflow.ClassPendingValidation
}
