package supervise

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"prism/internal/store"
	"prism/internal/workflow"
)

// maxTicksPerRun bounds a single drive so a misbehaving decision loop can
// never spin forever.
const maxTicksPerRun = 500

// RunOutcome is where a driven run stopped.
type RunOutcome struct {
	RunID    string `json:"run_id"`
	Action   string `json:"action"` // last tick's action
	Ticks    int    `json:"ticks"`
	Awaiting bool   `json:"awaiting"`
}

// Runner drives workflow states until each completes or pauses for input,
// persisting every tick. Independent runs are driven concurrently.
type Runner struct {
	sup      *Supervisor
	st       store.Store
	parallel int
}

// NewRunner returns a runner. parallel caps concurrent runs; values below
// one mean unbounded.
func NewRunner(sup *Supervisor, st store.Store, parallel int) *Runner {
	return &Runner{sup: sup, st: st, parallel: parallel}
}

// Drive advances one run until it completes or pauses, saving after every
// tick.
func (r *Runner) Drive(ctx context.Context, state *workflow.WorkflowState) (*RunOutcome, error) {
	out := &RunOutcome{RunID: state.RunID}
	for out.Ticks < maxTicksPerRun {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := r.sup.Tick(ctx, state)
		if err != nil {
			return out, err
		}
		out.Ticks++
		out.Action = res.Action
		if err := r.st.SaveRun(state); err != nil {
			return out, err
		}
		switch res.Action {
		case ActionCompleted:
			return out, nil
		case ActionEscalated, ActionAwaiting:
			out.Awaiting = true
			return out, nil
		}
	}
	return out, fmt.Errorf("run %s exceeded %d ticks without settling", state.RunID, maxTicksPerRun)
}

// DriveAll drives every run concurrently and returns the outcomes in input
// order. The first error cancels the remaining runs.
func (r *Runner) DriveAll(ctx context.Context, states []*workflow.WorkflowState) ([]*RunOutcome, error) {
	outcomes := make([]*RunOutcome, len(states))
	g, ctx := errgroup.WithContext(ctx)
	if r.parallel > 0 {
		g.SetLimit(r.parallel)
	}
	for i, state := range states {
		i, state := i, state
		g.Go(func() error {
			out, err := r.Drive(ctx, state)
			outcomes[i] = out
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}
