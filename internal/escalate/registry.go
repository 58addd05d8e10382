// Package escalate routes paused-workflow questions to a human and maps the
// free-text answers back onto a closed set of options. Every escalation
// trigger owns a fixed option set; the registry is built once and never
// mutated afterwards.
package escalate

import (
	"fmt"
	"sort"
	"strings"

	"prism/internal/workflow"
)

// Escalation triggers.
const (
	TriggerMaterialCheckpoint = "material_checkpoint"
	TriggerRevisionLimit      = "revision_limit"
	TriggerBacktrackLimit     = "backtrack_limit"
	TriggerWorkflowError      = "workflow_error"
	TriggerExecutionFailure   = "execution_failure"
	TriggerReplanScope        = "replan_scope"
	TriggerUserQuestion       = "user_question"
)

// Option is one allowed answer to an escalation, with the phrasings a
// human answer is matched against.
type Option struct {
	Name    string
	Aliases []string
}

// Registry maps each trigger to its option set.
type Registry struct {
	sets map[string][]Option
}

// NewRegistry validates and freezes a trigger->options table. Within one
// trigger, every option name and alias must resolve unambiguously;
// collisions are construction errors, not runtime surprises.
func NewRegistry(sets map[string][]Option) (*Registry, error) {
	for trigger, options := range sets {
		if len(options) == 0 {
			return nil, fmt.Errorf("escalate: trigger %q has no options", trigger)
		}
		seen := map[string]string{} // phrase -> owning option
		for _, opt := range options {
			phrases := append([]string{opt.Name}, opt.Aliases...)
			for _, phrase := range phrases {
				key := strings.ToLower(strings.TrimSpace(phrase))
				if key == "" {
					return nil, fmt.Errorf("escalate: trigger %q option %q has an empty phrase", trigger, opt.Name)
				}
				if owner, dup := seen[key]; dup && owner != opt.Name {
					return nil, fmt.Errorf("escalate: trigger %q phrase %q claimed by both %q and %q",
						trigger, key, owner, opt.Name)
				}
				seen[key] = opt.Name
			}
		}
	}

	frozen := make(map[string][]Option, len(sets))
	for trigger, options := range sets {
		cp := make([]Option, len(options))
		for i, opt := range options {
			cp[i] = Option{Name: opt.Name, Aliases: append([]string(nil), opt.Aliases...)}
		}
		frozen[trigger] = cp
	}
	return &Registry{sets: frozen}, nil
}

// DefaultRegistry returns the built-in trigger table. The backtrack
// coordinator's failure triggers share the workflow_error option set.
func DefaultRegistry() *Registry {
	workflowError := []Option{
		{Name: "retry", Aliases: []string{"try again", "rerun", "again"}},
		{Name: "skip", Aliases: []string{"skip it", "move on", "ignore"}},
		{Name: "abort", Aliases: []string{"stop", "cancel", "give up"}},
	}
	sets := map[string][]Option{
		TriggerMaterialCheckpoint: {
			{Name: "approve", Aliases: []string{"yes", "proceed", "ok", "approved", "go ahead", "looks good"}},
			{Name: "reject", Aliases: []string{"no", "stop", "wrong", "rejected"}},
			{Name: "adjust", Aliases: []string{"change", "modify", "tweak"}},
		},
		TriggerRevisionLimit: {
			{Name: "retry_again", Aliases: []string{"retry", "try again", "once more", "one more"}},
			{Name: "backtrack", Aliases: []string{"go back", "revert", "roll back"}},
			{Name: "skip_stage", Aliases: []string{"skip", "move on"}},
			{Name: "abort", Aliases: []string{"stop", "cancel", "give up"}},
		},
		TriggerBacktrackLimit: {
			{Name: "continue_anyway", Aliases: []string{"continue", "keep going", "proceed"}},
			{Name: "replan", Aliases: []string{"re-plan", "new plan", "start over"}},
			{Name: "abort", Aliases: []string{"stop", "cancel", "give up"}},
		},
		TriggerWorkflowError:    workflowError,
		TriggerExecutionFailure: {
			{Name: "retry", Aliases: []string{"try again", "rerun", "again"}},
			{Name: "revise", Aliases: []string{"fix", "adjust", "change the code"}},
			{Name: "abort", Aliases: []string{"stop", "cancel", "give up"}},
		},
		TriggerReplanScope: {
			{Name: "full", Aliases: []string{"everything", "all stages", "from scratch"}},
			{Name: "partial", Aliases: []string{"remaining", "affected", "just those"}},
			{Name: "cancel", Aliases: []string{"no", "keep the plan", "never mind"}},
		},
		TriggerUserQuestion: {
			{Name: "proceed", Aliases: []string{"yes", "ok", "go ahead", "continue"}},
			{Name: "revise", Aliases: []string{"change", "adjust", "fix"}},
			{Name: "abort", Aliases: []string{"stop", "cancel", "give up"}},
		},

		// Backtrack failure triggers resolve like generic workflow errors.
		workflow.TriggerInvalidBacktrackDecision: workflowError,
		workflow.TriggerInvalidBacktrackTarget:   workflowError,
		workflow.TriggerBacktrackTargetNotFound:  workflowError,
	}
	reg, err := NewRegistry(sets)
	if err != nil {
		panic(err) // static table, unreachable unless the table above is edited badly
	}
	return reg
}

// Resolve returns the option set for a trigger.
func (r *Registry) Resolve(trigger string) ([]Option, bool) {
	options, ok := r.sets[trigger]
	return options, ok
}

// OptionNames returns the option names for a trigger, in declaration order.
func (r *Registry) OptionNames(trigger string) []string {
	options, ok := r.sets[trigger]
	if !ok {
		return nil
	}
	names := make([]string, len(options))
	for i, opt := range options {
		names[i] = opt.Name
	}
	return names
}

// Triggers returns all registered triggers, sorted.
func (r *Registry) Triggers() []string {
	out := make([]string, 0, len(r.sets))
	for trigger := range r.sets {
		out = append(out, trigger)
	}
	sort.Strings(out)
	return out
}
