package store

import (
	"errors"
	"sort"
	"sync"

	"prism/internal/workflow"
)

// MemStore is the in-memory Store used by tests and ephemeral runs.
type MemStore struct {
	mu    sync.RWMutex
	runs  map[string]*workflow.WorkflowState
	order map[string]int // insertion order, newest-first listing
	next  int
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		runs:  map[string]*workflow.WorkflowState{},
		order: map[string]int{},
	}
}

func (m *MemStore) SaveRun(state *workflow.WorkflowState) error {
	if state == nil {
		return errors.New("state is nil")
	}
	if state.RunID == "" {
		return errors.New("state has no run id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[state.RunID] = state.Snapshot()
	m.next++
	m.order[state.RunID] = m.next
	return nil
}

func (m *MemStore) LoadRun(runID string) (*workflow.WorkflowState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	return state.Snapshot(), nil
}

func (m *MemStore) ListRuns() ([]RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var list []RunSummary
	for id, state := range m.runs {
		list = append(list, RunSummary{
			RunID:         id,
			Paper:         state.Paper,
			Completed:     state.Completed,
			AwaitingInput: state.AwaitingInput,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return m.order[list[i].RunID] > m.order[list[j].RunID]
	})
	return list, nil
}

func (m *MemStore) ListInteractions(runID string) ([]workflow.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	return append([]workflow.Interaction(nil), state.Interactions...), nil
}

func (m *MemStore) Close() error { return nil }
