package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"prism/internal/display"
	"prism/internal/format"
)

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show a run's stages, discrepancies, and pending question",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	state, err := st.LoadRun(args[0])
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	out := cmd.OutOrStdout()
	if state == nil {
		fmt.Fprintf(out, "No run %q\nRun 'prism list' to see stored runs.\n", args[0])
		return nil
	}

	fmt.Fprintln(out, display.RunHeader(state))
	fmt.Fprintln(out, display.StageTable(state, format.ASCII))
	if state.Discrepancies.Len() > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, display.DiscrepancyTable(state.Discrepancies, format.ASCII))
	}
	if state.PendingEscalation != nil {
		fmt.Fprintf(out, "\nPaused: %s\n", state.PendingEscalation.Question)
	}
	return nil
}
