package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"prism/internal/analysis"
	"prism/internal/display"
	"prism/internal/format"
	"prism/internal/workflow"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <run-id> <stage-id>",
	Short: "Re-run curve analysis for one stage of a run",
	Long: `Compares the stage's artifact curves against their digitized references
and prints the per-figure classification tables. The new reports replace
the stage's previous analysis pass in the stored run.`,
	Args: cobra.ExactArgs(2),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	runID, stageID := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	state, err := st.LoadRun(runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if state == nil {
		return fmt.Errorf("unknown run %q", runID)
	}

	coordinator := analysis.NewCoordinator(analysis.NewClassifier(cfg.Thresholds))
	sa, err := coordinator.AnalyzeStage(state, stageID)
	if err != nil {
		return err
	}
	state.Apply(workflow.Update{Reports: sa.Reports, Comparisons: sa.Comparisons})
	if err := st.SaveRun(state); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	out := cmd.OutOrStdout()
	if sa.FailureCode != "" {
		fmt.Fprintf(out, "Stage %s: %s (%s)\n", stageID, sa.FailureCode, sa.Failure)
		return nil
	}
	fmt.Fprintf(out, "Stage %s: %s\n", stageID, sa.Overall)
	for _, comp := range sa.Comparisons {
		fmt.Fprintln(out)
		fmt.Fprintln(out, display.ComparisonTable(comp, format.ASCII))
	}
	if sa.Blocked {
		fmt.Fprintln(out, "\nStage is blocked: a required digitized reference is missing.")
	}
	return nil
}
