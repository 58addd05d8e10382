package analysis

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"prism/internal/curves"
)

// compareMode says which side of the bound is acceptable.
type compareMode int

const (
	atMost compareMode = iota // metric <= bound
	atLeast                   // metric >= bound
	ratioWithin               // |metric - 1| * 100 <= bound
)

// criterionRule is one named pattern in the criteria library. The first
// capture group of the pattern is the numeric bound.
type criterionRule struct {
	Name    string
	Pattern *regexp.Regexp
	Metric  string
	Mode    compareMode
}

// criteriaLibrary is the fixed set of recognized validation-criteria
// phrasings. Criteria text that matches none of these is informational
// only — it never fails a stage on its own.
var criteriaLibrary = []criterionRule{
	{
		Name:    "resonance-within",
		Pattern: regexp.MustCompile(`(?i)resonance\s+(?:position\s+)?within\s+([0-9]+(?:\.[0-9]+)?)\s*%`),
		Metric:  curves.MetricPeakPositionError,
		Mode:    atMost,
	},
	{
		Name:    "rmse-max",
		Pattern: regexp.MustCompile(`(?i)(?:normalized\s+)?rmse\s*(?:<=|≤|under|below|within)\s*([0-9]+(?:\.[0-9]+)?)\s*%?`),
		Metric:  curves.MetricNormalizedRMSE,
		Mode:    atMost,
	},
	{
		Name:    "correlation-min",
		Pattern: regexp.MustCompile(`(?i)correlation\s*(?:>=|≥|above|at\s+least)\s*([0-9]+(?:\.[0-9]+)?)`),
		Metric:  curves.MetricCorrelation,
		Mode:    atLeast,
	},
	{
		Name:    "r-squared-min",
		Pattern: regexp.MustCompile(`(?i)r(?:\^?2|[-_ ]squared)\s*(?:>=|≥|above|at\s+least)\s*([0-9]+(?:\.[0-9]+)?)`),
		Metric:  curves.MetricRSquared,
		Mode:    atLeast,
	},
	{
		Name:    "peak-height-within",
		Pattern: regexp.MustCompile(`(?i)peak\s+(?:height|value|amplitude)\s+within\s+([0-9]+(?:\.[0-9]+)?)\s*%`),
		Metric:  curves.MetricPeakHeightRatio,
		Mode:    ratioWithin,
	},
	{
		Name:    "fwhm-within",
		Pattern: regexp.MustCompile(`(?i)fwhm\s+within\s+([0-9]+(?:\.[0-9]+)?)\s*%`),
		Metric:  curves.MetricFWHMRatio,
		Mode:    ratioWithin,
	},
}

// EvaluateCriteria matches each free-text criterion against the rule
// library and checks the referenced metric. A matched rule whose metric is
// absent fails ("metric missing"): an uncomputable metric can never satisfy
// an explicit requirement. Unmatched text is returned as informational.
func EvaluateCriteria(metrics map[string]float64, criteria []string) (failures, informational []string) {
	for _, text := range criteria {
		rule, bound, matched := matchCriterion(text)
		if !matched {
			informational = append(informational, text)
			continue
		}
		value, ok := metrics[rule.Metric]
		if !ok {
			failures = append(failures, fmt.Sprintf("%s: metric missing (%s)", text, rule.Metric))
			continue
		}
		if !satisfies(value, bound, rule.Mode) {
			failures = append(failures, fmt.Sprintf("%s: %s=%.4g violates bound %.4g", text, rule.Metric, value, bound))
		}
	}
	return failures, informational
}

func matchCriterion(text string) (criterionRule, float64, bool) {
	for _, rule := range criteriaLibrary {
		m := rule.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		bound, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return rule, bound, true
	}
	return criterionRule{}, 0, false
}

func satisfies(value, bound float64, mode compareMode) bool {
	switch mode {
	case atMost:
		return value <= bound
	case atLeast:
		return value >= bound
	case ratioWithin:
		return math.Abs(value-1)*100 <= bound
	}
	return false
}
