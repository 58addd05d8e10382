package store

import "prism/internal/workflow"

// DefaultDBPath is the default relative path for the SQLite DB
// (per-workspace). Resolve against cwd or workspace root; Open() creates
// the parent dir (e.g. .prism).
const DefaultDBPath = ".prism/prism.db"

// RunSummary is one row of the run listing.
type RunSummary struct {
	RunID         string
	Paper         string
	Completed     bool
	AwaitingInput bool
	CreatedAt     string
	UpdatedAt     string
}

// Store is the persistence facade: run snapshots and the interaction
// history. Supervisor and CLI use only this interface; implementation is
// SQLite or in-memory.
type Store interface {
	// SaveRun upserts the full state snapshot, keyed by RunID, and syncs
	// the run's interaction history.
	SaveRun(state *workflow.WorkflowState) error
	// LoadRun returns the saved snapshot, or (nil, nil) if absent.
	LoadRun(runID string) (*workflow.WorkflowState, error)
	ListRuns() ([]RunSummary, error)
	// ListInteractions returns the run's interaction history in append order.
	ListInteractions(runID string) ([]workflow.Interaction, error)
	Close() error
}
