package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"prism/internal/decide"
	"prism/internal/display"
	"prism/internal/format"
	"prism/internal/supervise"
)

var respondCmd = &cobra.Command{
	Use:   "respond <run-id> <answer...>",
	Short: "Answer a paused run's pending question",
	Long: `Delivers a free-text answer to the run's pending escalation. If the
answer resolves to one of the offered options, the run resumes until it
completes or pauses again. Otherwise the clarification question is printed
and the run stays paused.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRespond,
}

func runRespond(cmd *cobra.Command, args []string) error {
	runID := args[0]
	answer := strings.Join(args[1:], " ")

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

	sup := supervise.New(cfg, decide.NewAuto())
	res, err := sup.HandleResponse(cmd.Context(), state, answer)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !res.Matched {
		if err := st.SaveRun(state); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		fmt.Fprintln(out, res.Clarification)
		return nil
	}

	runner := supervise.NewRunner(sup, st, 0)
	outcome, err := runner.Drive(cmd.Context(), state)
	if err != nil {
		return fmt.Errorf("drive run: %w", err)
	}

	fmt.Fprintf(out, "Applied %q (%s)\n\n", res.Option, res.Effect)
	fmt.Fprintln(out, display.RunHeader(state))
	fmt.Fprintln(out, display.StageTable(state, format.ASCII))
	if outcome.Awaiting && state.PendingEscalation != nil {
		fmt.Fprintf(out, "\nPaused: %s\n", state.PendingEscalation.Question)
	}
	return nil
}
