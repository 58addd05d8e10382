package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"prism/internal/decide"
	"prism/internal/display"
	"prism/internal/format"
	"prism/internal/supervise"
	"prism/internal/workflow"
)

var runFlags struct {
	planPath string
}

var runCmd = &cobra.Command{
	Use:   "run [plan.yaml]",
	Short: "Start a reproduction run from a plan file",
	Long: `Loads a YAML reproduction plan, creates a new run, and drives it until
it completes or pauses for input. When the run pauses, the pending question
is printed; answer it with 'prism respond <run-id> <answer>'.

Unattended decisions use the automatic capability: the workflow keeps
moving and validations are accepted, but anything needing real judgment
escalates to you.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.planPath, "plan", "", "Path to the plan YAML (or pass as positional arg)")
}

func runRun(cmd *cobra.Command, args []string) error {
	planPath := runFlags.planPath
	if planPath == "" && len(args) > 0 {
		planPath = args[0]
	}
	if planPath == "" {
		return fmt.Errorf("plan path is required\n\nUsage: prism run <plan.yaml>")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	plan, err := workflow.LoadPlan(planPath)
	if err != nil {
		return err
	}
	state := workflow.NewState(plan)

	sup := supervise.New(cfg, decide.NewAuto())
	runner := supervise.NewRunner(sup, st, 0)
	outcome, err := runner.Drive(cmd.Context(), state)
	if err != nil {
		return fmt.Errorf("drive run: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, display.RunHeader(state))
	fmt.Fprintln(out, display.StageTable(state, format.ASCII))
	if outcome.Awaiting && state.PendingEscalation != nil {
		fmt.Fprintf(out, "\nPaused: %s\n", state.PendingEscalation.Question)
		fmt.Fprintf(out, "Answer with: prism respond %s <answer>\n", state.RunID)
	}
	return nil
}
