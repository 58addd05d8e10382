package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"prism/internal/format"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	runs, err := st.ListRuns()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No stored runs. Start one with 'prism run <plan.yaml>'.")
		return nil
	}

	tb := format.NewTable(format.ASCII)
	tb.Header("run", "paper", "state", "updated")
	for _, r := range runs {
		state := "running"
		switch {
		case r.Completed:
			state = "completed"
		case r.AwaitingInput:
			state = "awaiting input"
		}
		tb.Row(r.RunID, format.Truncate(r.Paper, 40), state, updatedAgo(r.UpdatedAt))
	}
	fmt.Fprintln(out, tb.String())
	return nil
}

// updatedAgo renders a stored timestamp as a relative age, falling back
// to the raw value when it does not parse.
func updatedAgo(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return format.FmtDuration(time.Since(t)) + " ago"
}
