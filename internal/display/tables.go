package display

import (
	"fmt"

	"prism/internal/format"
	"prism/internal/workflow"
)

// StageTable renders the plan's stage list with statuses.
func StageTable(state *workflow.WorkflowState, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Header("", "Stage", "Type", "Status", "Revisions", "Discrepancies")
	for _, st := range state.Stages {
		tb.Row(
			StatusMark(st.Status),
			st.ID,
			StageType(st.Type),
			Status(st.Status),
			state.Revisions.Value(st.ID),
			len(st.DiscrepancyRefs),
		)
	}
	tb.Columns(
		format.ColumnConfig{Number: 5, Align: format.AlignRight},
		format.ColumnConfig{Number: 6, Align: format.AlignRight},
	)
	return tb.String()
}

// ComparisonTable renders one figure comparison.
func ComparisonTable(comp workflow.FigureComparison, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Header("Quantity", "Paper", "Simulated", "Difference")
	for _, row := range comp.Rows {
		tb.Row(row.Quantity, row.Paper, row.Simulated, row.Difference)
	}
	tb.Footer("classification", "", "", Classification(comp.Classification))
	return tb.String()
}

// DiscrepancyTable renders the ledger, oldest first.
func DiscrepancyTable(ledger workflow.DiscrepancyLedger, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Header("ID", "Stage", "Figure", "Quantity", "Diff", "Class", "Blocking")
	for _, d := range ledger.Entries {
		tb.Row(
			d.ID,
			d.StageID,
			d.FigureID,
			format.Truncate(d.Quantity, 30),
			format.FmtPercent(d.DiffPercent),
			DiscrepancyClass(d.Classification),
			format.BoolMark(d.Blocking),
		)
	}
	return tb.String()
}

// RunHeader renders the one-line run banner above the tables.
func RunHeader(state *workflow.WorkflowState) string {
	status := "running"
	switch {
	case state.Completed:
		status = "completed"
	case state.AwaitingInput:
		status = "awaiting input"
	}
	return fmt.Sprintf("run %s (%s): %s, %d backtracks, %d discrepancies",
		state.RunID, format.Truncate(state.Paper, 50), status,
		state.BacktrackCount, state.Discrepancies.Len())
}
