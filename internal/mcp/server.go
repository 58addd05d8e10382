// Package mcp exposes the reproduction control plane over the Model
// Context Protocol: an agent starts runs, reads their status, answers
// escalations, and re-runs stage analyses through the tools here.
package mcp

import (
	"context"
	"fmt"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"prism/internal/analysis"
	"prism/internal/config"
	"prism/internal/decide"
	"prism/internal/display"
	"prism/internal/format"
	"prism/internal/logging"
	"prism/internal/store"
	"prism/internal/supervise"
	"prism/internal/workflow"
)

// Server wraps the MCP SDK server around the supervisor and the run store.
type Server struct {
	MCPServer *sdkmcp.Server

	cfg         config.Config
	st          store.Store
	sup         *supervise.Supervisor
	runner      *supervise.Runner
	coordinator *analysis.Coordinator

	// Serializes state mutation across tool calls; runs are sequential per
	// server by contract.
	mu sync.Mutex
}

// NewServer creates an MCP server with the workflow tools registered.
func NewServer(cfg config.Config, st store.Store, capability decide.Capability) *Server {
	sup := supervise.New(cfg, capability)
	s := &Server{
		cfg:         cfg,
		st:          st,
		sup:         sup,
		runner:      supervise.NewRunner(sup, st, 0),
		coordinator: analysis.NewCoordinator(analysis.NewClassifier(cfg.Thresholds)),
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "prism", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "start_run",
		Description: "Start a reproduction run from a YAML plan file. Drives the workflow until it completes or pauses for input, and returns the run ID.",
	}, s.handleStartRun)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_status",
		Description: "Get a run's stage table, discrepancy ledger, and any pending question.",
	}, s.handleGetStatus)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "submit_response",
		Description: "Answer a run's pending escalation. If the answer resolves it, the run resumes until it completes or pauses again.",
	}, s.handleSubmitResponse)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_analysis",
		Description: "Re-run curve analysis for one stage and return the per-figure classifications.",
	}, s.handleRunAnalysis)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_runs",
		Description: "List all stored runs with their completion and pause state.",
	}, s.handleListRuns)
}

// --- Tool input/output types ---

type startRunInput struct {
	PlanPath string `json:"plan_path" jsonschema:"path to the YAML reproduction plan"`
}

type startRunOutput struct {
	RunID    string `json:"run_id"`
	Paper    string `json:"paper,omitempty"`
	Status   string `json:"status"`
	Question string `json:"question,omitempty"`
}

type getStatusInput struct {
	RunID string `json:"run_id" jsonschema:"run ID from start_run"`
}

type getStatusOutput struct {
	Header        string `json:"header"`
	Stages        string `json:"stages"`
	Discrepancies string `json:"discrepancies,omitempty"`
	Question      string `json:"question,omitempty"`
	Completed     bool   `json:"completed"`
	AwaitingInput bool   `json:"awaiting_input"`
}

type submitResponseInput struct {
	RunID    string `json:"run_id" jsonschema:"run ID from start_run"`
	Response string `json:"response" jsonschema:"free-text answer to the pending question"`
}

type submitResponseOutput struct {
	Matched       bool   `json:"matched"`
	Effect        string `json:"effect,omitempty"`
	Clarification string `json:"clarification,omitempty"`
	Status        string `json:"status"`
	Question      string `json:"question,omitempty"`
}

type runAnalysisInput struct {
	RunID   string `json:"run_id" jsonschema:"run ID from start_run"`
	StageID string `json:"stage_id" jsonschema:"stage to analyze"`
}

type runAnalysisOutput struct {
	Overall     string                    `json:"overall"`
	Blocked     bool                      `json:"blocked"`
	FailureCode string                    `json:"failure_code,omitempty"`
	Reports     []workflow.AnalysisReport `json:"reports,omitempty"`
	Comparisons []string                  `json:"comparisons,omitempty"` // rendered tables
}

type listRunsInput struct{}

type listRunsOutput struct {
	Runs []store.RunSummary `json:"runs"`
}

// --- Tool handlers ---

func (s *Server) handleStartRun(ctx context.Context, _ *sdkmcp.CallToolRequest, input startRunInput) (*sdkmcp.CallToolResult, startRunOutput, error) {
	log := logging.New("mcp")

	plan, err := workflow.LoadPlan(input.PlanPath)
	if err != nil {
		return nil, startRunOutput{}, err
	}
	state := workflow.NewState(plan)

	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.driveLocked(ctx, state)
	if err != nil {
		return nil, startRunOutput{}, err
	}
	log.Info("run started", "run", state.RunID, "paper", state.Paper, "status", out.Status)
	return nil, startRunOutput{
		RunID:    state.RunID,
		Paper:    state.Paper,
		Status:   out.Status,
		Question: out.Question,
	}, nil
}

func (s *Server) handleGetStatus(_ context.Context, _ *sdkmcp.CallToolRequest, input getStatusInput) (*sdkmcp.CallToolResult, getStatusOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadLocked(input.RunID)
	if err != nil {
		return nil, getStatusOutput{}, err
	}

	out := getStatusOutput{
		Header:        display.RunHeader(state),
		Stages:        display.StageTable(state, format.Markdown),
		Completed:     state.Completed,
		AwaitingInput: state.AwaitingInput,
	}
	if state.Discrepancies.Len() > 0 {
		out.Discrepancies = display.DiscrepancyTable(state.Discrepancies, format.Markdown)
	}
	if state.PendingEscalation != nil {
		out.Question = state.PendingEscalation.Question
	}
	return nil, out, nil
}

func (s *Server) handleSubmitResponse(ctx context.Context, _ *sdkmcp.CallToolRequest, input submitResponseInput) (*sdkmcp.CallToolResult, submitResponseOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadLocked(input.RunID)
	if err != nil {
		return nil, submitResponseOutput{}, err
	}

	rr, err := s.sup.HandleResponse(ctx, state, input.Response)
	if err != nil {
		return nil, submitResponseOutput{}, err
	}
	if !rr.Matched {
		if saveErr := s.st.SaveRun(state); saveErr != nil {
			return nil, submitResponseOutput{}, saveErr
		}
		return nil, submitResponseOutput{
			Clarification: rr.Clarification,
			Status:        runStatus(state),
			Question:      rr.Clarification,
		}, nil
	}

	driven, err := s.driveLocked(ctx, state)
	if err != nil {
		return nil, submitResponseOutput{}, err
	}
	return nil, submitResponseOutput{
		Matched:  true,
		Effect:   rr.Effect,
		Status:   driven.Status,
		Question: driven.Question,
	}, nil
}

func (s *Server) handleRunAnalysis(_ context.Context, _ *sdkmcp.CallToolRequest, input runAnalysisInput) (*sdkmcp.CallToolResult, runAnalysisOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.loadLocked(input.RunID)
	if err != nil {
		return nil, runAnalysisOutput{}, err
	}

	sa, err := s.coordinator.AnalyzeStage(state, input.StageID)
	if err != nil {
		return nil, runAnalysisOutput{}, err
	}
	state.Apply(workflow.Update{Reports: sa.Reports, Comparisons: sa.Comparisons})
	if err := s.st.SaveRun(state); err != nil {
		return nil, runAnalysisOutput{}, err
	}

	out := runAnalysisOutput{
		Overall:     sa.Overall,
		Blocked:     sa.Blocked,
		FailureCode: sa.FailureCode,
		Reports:     sa.Reports,
	}
	for _, comp := range sa.Comparisons {
		out.Comparisons = append(out.Comparisons, display.ComparisonTable(comp, format.Markdown))
	}
	return nil, out, nil
}

func (s *Server) handleListRuns(_ context.Context, _ *sdkmcp.CallToolRequest, _ listRunsInput) (*sdkmcp.CallToolResult, listRunsOutput, error) {
	runs, err := s.st.ListRuns()
	if err != nil {
		return nil, listRunsOutput{}, err
	}
	return nil, listRunsOutput{Runs: runs}, nil
}

// --- helpers ---

type driveOutcome struct {
	Status   string
	Question string
}

// driveLocked advances the run until it settles and persists it. Callers
// hold s.mu.
func (s *Server) driveLocked(ctx context.Context, state *workflow.WorkflowState) (driveOutcome, error) {
	if _, err := s.runner.Drive(ctx, state); err != nil {
		return driveOutcome{}, err
	}
	out := driveOutcome{Status: runStatus(state)}
	if state.PendingEscalation != nil {
		out.Question = state.PendingEscalation.Question
	}
	return out, nil
}

func (s *Server) loadLocked(runID string) (*workflow.WorkflowState, error) {
	state, err := s.st.LoadRun(runID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("unknown run %q (call start_run first)", runID)
	}
	return state, nil
}

func runStatus(state *workflow.WorkflowState) string {
	switch {
	case state.Completed:
		return "completed"
	case state.AwaitingInput:
		return "awaiting_input"
	default:
		return "running"
	}
}
