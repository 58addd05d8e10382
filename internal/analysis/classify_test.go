package analysis

import (
	"testing"

	"prism/internal/config"
	"prism/internal/curves"
	"prism/internal/workflow"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(config.DefaultThresholds())

	tests := []struct {
		name      string
		metrics   map[string]float64
		precision workflow.Precision
		hasRef    bool
		want      workflow.Classification
	}{
		{
			name:      "no reference is pending regardless of metrics",
			metrics:   map[string]float64{curves.MetricPeakPositionError: 0.1},
			precision: workflow.PrecisionExcellent,
			hasRef:    false,
			want:      workflow.ClassPendingValidation,
		},
		{
			name:      "qualitative with reference is a match",
			metrics:   map[string]float64{curves.MetricPeakPositionError: 50},
			precision: workflow.PrecisionQualitative,
			hasRef:    true,
			want:      workflow.ClassMatch,
		},
		{
			name:      "peak error within match tier",
			metrics:   map[string]float64{curves.MetricPeakPositionError: 1.9},
			precision: workflow.PrecisionExcellent,
			hasRef:    true,
			want:      workflow.ClassMatch,
		},
		{
			name:      "peak error at match boundary",
			metrics:   map[string]float64{curves.MetricPeakPositionError: 2.0},
			precision: workflow.PrecisionExcellent,
			hasRef:    true,
			want:      workflow.ClassMatch,
		},
		{
			name:      "peak error in partial tier",
			metrics:   map[string]float64{curves.MetricPeakPositionError: 7.5},
			precision: workflow.PrecisionAcceptable,
			hasRef:    true,
			want:      workflow.ClassPartialMatch,
		},
		{
			name:      "peak error beyond partial tier",
			metrics:   map[string]float64{curves.MetricPeakPositionError: 10.1},
			precision: workflow.PrecisionExcellent,
			hasRef:    true,
			want:      workflow.ClassMismatch,
		},
		{
			name: "peak error takes precedence over rmse",
			metrics: map[string]float64{
				curves.MetricPeakPositionError: 1.0,
				curves.MetricNormalizedRMSE:    99,
			},
			precision: workflow.PrecisionExcellent,
			hasRef:    true,
			want:      workflow.ClassMatch,
		},
		{
			name:      "rmse fallback match",
			metrics:   map[string]float64{curves.MetricNormalizedRMSE: 4.0},
			precision: workflow.PrecisionAcceptable,
			hasRef:    true,
			want:      workflow.ClassMatch,
		},
		{
			name:      "rmse fallback partial",
			metrics:   map[string]float64{curves.MetricNormalizedRMSE: 12.0},
			precision: workflow.PrecisionAcceptable,
			hasRef:    true,
			want:      workflow.ClassPartialMatch,
		},
		{
			name:      "rmse fallback mismatch",
			metrics:   map[string]float64{curves.MetricNormalizedRMSE: 40.0},
			precision: workflow.PrecisionAcceptable,
			hasRef:    true,
			want:      workflow.ClassMismatch,
		},
		{
			name:      "no usable metric stays pending",
			metrics:   map[string]float64{curves.MetricNPoints: 0},
			precision: workflow.PrecisionExcellent,
			hasRef:    true,
			want:      workflow.ClassPendingValidation,
		},
		{
			name:      "nil metrics with reference stays pending",
			metrics:   nil,
			precision: workflow.PrecisionAcceptable,
			hasRef:    true,
			want:      workflow.ClassPendingValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.metrics, tt.precision, tt.hasRef)
			if got != tt.want {
				t.Fatalf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}
