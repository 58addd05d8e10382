package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"prism/internal/analysis"
	"prism/internal/curves"
	"prism/internal/display"
	"prism/internal/format"
	"prism/internal/workflow"
)

var compareFlags struct {
	precision string
}

var compareCmd = &cobra.Command{
	Use:   "compare <simulated> <reference>",
	Short: "Compare one simulated curve against a digitized reference",
	Long: `Loads two curve files (CSV, TSV, DAT, or NPY), compares them, and prints
the metrics and the resulting classification. Runs standalone, outside any
stored run; useful for checking a curve before wiring it into a plan.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&compareFlags.precision, "precision", string(workflow.PrecisionAcceptable),
		"Target precision: excellent, acceptable, or qualitative")
}

func runCompare(cmd *cobra.Command, args []string) error {
	sim, err := curves.LoadSeries(args[0])
	if err != nil {
		return fmt.Errorf("load simulated curve: %w", err)
	}
	ref, err := curves.LoadSeries(args[1])
	if err != nil {
		return fmt.Errorf("load reference curve: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	comp := curves.Compare(sim, ref)
	metrics := comp.Metrics()

	classifier := analysis.NewClassifier(cfg.Thresholds)
	cls := classifier.Classify(metrics, workflow.Precision(compareFlags.precision), true)

	tb := format.NewTable(format.ASCII)
	tb.Header("metric", "value")
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tb.Row(display.Metric(k), fmt.Sprintf("%.4g", metrics[k]))
	}
	tb.Footer("classification", display.Classification(cls))

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, tb.String())
	return nil
}
