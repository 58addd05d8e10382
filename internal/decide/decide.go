// Package decide abstracts the external decision-maker the supervisor
// consults: a human operator, a review model, or a scripted stand-in. The
// control plane never embeds judgment itself; it phrases a request, hands
// over the evidence, and acts on the verdict.
package decide

import "context"

// Request is one decision to make. Context carries serialized evidence
// (state snapshots, comparison tables); Schema names the closed set of
// verdicts the caller will accept, when there is one.
type Request struct {
	Topic        string            `json:"topic"`
	Instructions string            `json:"instructions"`
	Context      map[string]string `json:"context,omitempty"`
	Images       []string          `json:"images,omitempty"` // artifact refs
	Schema       []string          `json:"schema,omitempty"` // allowed verdicts
}

// Response is the decision-maker's answer. Verdict is one of Request.Schema
// when a schema was given; Text carries any free-form rationale.
type Response struct {
	Verdict string             `json:"verdict"`
	Text    string             `json:"text,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Capability is anything that can answer decision requests.
type Capability interface {
	Decide(ctx context.Context, req Request) (Response, error)
}

// Func adapts a function to the Capability interface.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) Decide(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
