package workflow

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Plan is the on-disk workflow definition: the stages of the reproduction
// and the figure targets they aim at.
type Plan struct {
	Paper   string   `yaml:"paper"`
	Stages  []*Stage `yaml:"stages"`
	Targets []Target `yaml:"targets"`
}

// LoadPlan reads and validates a YAML plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks structural invariants: unique stage ids, dependencies that
// exist, and targets that are declared.
func (p *Plan) Validate() error {
	if len(p.Stages) == 0 {
		return fmt.Errorf("plan has no stages")
	}
	ids := make(map[string]bool, len(p.Stages))
	for _, st := range p.Stages {
		if st.ID == "" {
			return fmt.Errorf("stage with empty id")
		}
		if ids[st.ID] {
			return fmt.Errorf("duplicate stage id %q", st.ID)
		}
		ids[st.ID] = true
	}
	figures := make(map[string]bool, len(p.Targets))
	for _, tg := range p.Targets {
		if tg.FigureID == "" {
			return fmt.Errorf("target with empty figure id")
		}
		figures[tg.FigureID] = true
	}
	for _, st := range p.Stages {
		for _, dep := range st.DependsOn {
			if !ids[dep] {
				return fmt.Errorf("stage %q depends on unknown stage %q", st.ID, dep)
			}
		}
		for _, fig := range st.Targets {
			if len(p.Targets) > 0 && !figures[fig] {
				return fmt.Errorf("stage %q targets unknown figure %q", st.ID, fig)
			}
		}
	}
	return nil
}

// NewState builds a fresh workflow state from a plan. Every stage starts
// not_started; counters and ledgers start empty.
func NewState(p *Plan) *WorkflowState {
	state := &WorkflowState{
		RunID:   uuid.NewString(),
		Paper:   p.Paper,
		Targets: make(map[string]Target, len(p.Targets)),
	}
	for _, st := range p.Stages {
		cp := *st
		cp.Status = StatusNotStarted
		state.Stages = append(state.Stages, &cp)
	}
	for _, tg := range p.Targets {
		state.Targets[tg.FigureID] = tg
	}
	return state
}
