package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpserver "prism/internal/mcp"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"prism/internal/config"
	"prism/internal/decide"
	"prism/internal/store"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})))
	os.Exit(m.Run())
}

// steadyCapability keeps runs moving and defers everything else: continue
// for supervision, approve for validation, and no useful answer for
// escalation classification.
func steadyCapability() decide.Capability {
	return decide.Func(func(_ context.Context, req decide.Request) (decide.Response, error) {
		switch req.Topic {
		case "supervision":
			return decide.Response{Verdict: "continue"}, nil
		case "comparison_validation":
			return decide.Response{Verdict: "approve"}, nil
		default:
			return decide.Response{}, fmt.Errorf("no decision for topic %s", req.Topic)
		}
	})
}

func newTestServer(t *testing.T) *mcpserver.Server {
	t.Helper()
	return mcpserver.NewServer(config.Default(), store.NewMemStore(), steadyCapability())
}

func connectInMemory(t *testing.T, ctx context.Context, srv *mcpserver.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	return session
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) map[string]any {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		for _, c := range res.Content {
			if tc, ok := c.(*sdkmcp.TextContent); ok {
				t.Fatalf("CallTool(%s) returned error: %s", name, tc.Text)
			}
		}
		t.Fatalf("CallTool(%s) returned error", name)
	}
	result := make(map[string]any)
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			if err := json.Unmarshal([]byte(tc.Text), &result); err != nil {
				t.Fatalf("unmarshal tool result: %v (text: %s)", err, tc.Text)
			}
			return result
		}
	}
	t.Fatalf("no text content in tool result")
	return nil
}

func writePlan(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	return path
}

const setupOnlyPlan = `
paper: "Demo et al. 2024"
stages:
  - id: setup
    type: setup
    description: workspace preparation
`

const checkpointPlan = `
paper: "Demo et al. 2024"
stages:
  - id: setup
    type: setup
  - id: materials
    type: material_validation
    depends_on: [setup]
  - id: sim
    type: simulation
    depends_on: [materials]
    targets: [fig3]
targets:
  - figure_id: fig3
    precision: acceptable
`

func TestServer_ToolDiscovery(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	want := map[string]bool{
		"start_run":       false,
		"get_status":      false,
		"submit_response": false,
		"run_analysis":    false,
		"list_runs":       false,
	}
	for _, tool := range tools.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("tool %q not found in ListTools", name)
		}
	}
}

func TestServer_StartRun_RunsToCompletion(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	res := callTool(t, ctx, session, "start_run", map[string]any{
		"plan_path": writePlan(t, setupOnlyPlan),
	})

	runID, _ := res["run_id"].(string)
	if runID == "" {
		t.Fatalf("expected non-empty run_id, got %v", res)
	}
	if res["status"] != "completed" {
		t.Fatalf("expected status=completed, got %v", res["status"])
	}
	if res["paper"] != "Demo et al. 2024" {
		t.Errorf("expected paper echoed back, got %v", res["paper"])
	}
}

func TestServer_StartRun_PausesAtMaterialCheckpoint(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	res := callTool(t, ctx, session, "start_run", map[string]any{
		"plan_path": writePlan(t, checkpointPlan),
	})

	if res["status"] != "awaiting_input" {
		t.Fatalf("expected status=awaiting_input, got %v", res["status"])
	}
	question, _ := res["question"].(string)
	if question == "" {
		t.Fatal("expected a pending question for the material checkpoint")
	}
}

func TestServer_StartRun_BadPlanPath(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "start_run",
		Arguments: map[string]any{"plan_path": "/nonexistent/plan.yaml"},
	})
	if err != nil {
		t.Fatalf("expected tool error, got transport error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError=true for missing plan file")
	}
}

func TestServer_GetStatus(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	start := callTool(t, ctx, session, "start_run", map[string]any{
		"plan_path": writePlan(t, checkpointPlan),
	})
	runID := start["run_id"].(string)

	status := callTool(t, ctx, session, "get_status", map[string]any{
		"run_id": runID,
	})

	if status["awaiting_input"] != true {
		t.Errorf("expected awaiting_input=true, got %v", status["awaiting_input"])
	}
	if status["completed"] != false {
		t.Errorf("expected completed=false, got %v", status["completed"])
	}
	if q, _ := status["question"].(string); q == "" {
		t.Error("expected pending question in status")
	}
	stages, _ := status["stages"].(string)
	for _, id := range []string{"setup", "materials", "sim"} {
		if !containsStr(stages, id) {
			t.Errorf("stage table missing %q:\n%s", id, stages)
		}
	}
	if header, _ := status["header"].(string); !containsStr(header, runID) {
		t.Errorf("header should name the run, got %q", header)
	}
}

func TestServer_GetStatus_UnknownRun(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "get_status",
		Arguments: map[string]any{"run_id": "nonexistent"},
	})
	if err != nil {
		t.Fatalf("expected tool error, got transport error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError=true for unknown run")
	}
}

func TestServer_SubmitResponse_ResolvesCheckpoint(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	start := callTool(t, ctx, session, "start_run", map[string]any{
		"plan_path": writePlan(t, checkpointPlan),
	})
	runID := start["run_id"].(string)

	res := callTool(t, ctx, session, "submit_response", map[string]any{
		"run_id":   runID,
		"response": "yes please proceed",
	})

	if res["matched"] != true {
		t.Fatalf("expected matched=true, got %v", res)
	}
	// After approval the sim stage runs; with no artifacts it walks the
	// revision loop and escalates again rather than completing silently.
	status, _ := res["status"].(string)
	if status != "awaiting_input" && status != "completed" {
		t.Fatalf("expected run to settle, got status=%v", status)
	}

	// Effect is recorded in the interaction history.
	state := callTool(t, ctx, session, "get_status", map[string]any{"run_id": runID})
	if state["awaiting_input"] != (status == "awaiting_input") {
		t.Errorf("persisted awaiting_input disagrees with returned status %v", status)
	}
}

func TestServer_SubmitResponse_UnmatchedAsksForClarification(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	start := callTool(t, ctx, session, "start_run", map[string]any{
		"plan_path": writePlan(t, checkpointPlan),
	})
	runID := start["run_id"].(string)

	res := callTool(t, ctx, session, "submit_response", map[string]any{
		"run_id":   runID,
		"response": "banana",
	})

	if res["matched"] == true {
		t.Fatalf("expected unmatched response, got %v", res)
	}
	clar, _ := res["clarification"].(string)
	if !containsStr(clar, "approve") {
		t.Errorf("clarification should list the options, got %q", clar)
	}
	if res["status"] != "awaiting_input" {
		t.Errorf("run should stay paused, got status=%v", res["status"])
	}
}

func TestServer_SubmitResponse_NoPendingEscalation(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	start := callTool(t, ctx, session, "start_run", map[string]any{
		"plan_path": writePlan(t, setupOnlyPlan),
	})
	runID := start["run_id"].(string)

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "submit_response",
		Arguments: map[string]any{"run_id": runID, "response": "approve"},
	})
	if err != nil {
		t.Fatalf("expected tool error, got transport error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError=true when no escalation is pending")
	}
}

func TestServer_RunAnalysis_NoArtifacts(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	start := callTool(t, ctx, session, "start_run", map[string]any{
		"plan_path": writePlan(t, checkpointPlan),
	})
	runID := start["run_id"].(string)

	res := callTool(t, ctx, session, "run_analysis", map[string]any{
		"run_id":   runID,
		"stage_id": "sim",
	})

	if res["overall"] != "poor" {
		t.Errorf("expected overall=poor without artifacts, got %v", res["overall"])
	}
	if res["failure_code"] != "NO_ARTIFACTS" {
		t.Errorf("expected failure_code=NO_ARTIFACTS, got %v", res["failure_code"])
	}
}

func TestServer_RunAnalysis_UnknownStage(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	start := callTool(t, ctx, session, "start_run", map[string]any{
		"plan_path": writePlan(t, checkpointPlan),
	})
	runID := start["run_id"].(string)

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "run_analysis",
		Arguments: map[string]any{"run_id": runID, "stage_id": "no-such-stage"},
	})
	if err != nil {
		t.Fatalf("expected tool error, got transport error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected IsError=true for unknown stage")
	}
}

func TestServer_ListRuns(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	session := connectInMemory(t, ctx, srv)
	defer session.Close()

	callTool(t, ctx, session, "start_run", map[string]any{
		"plan_path": writePlan(t, setupOnlyPlan),
	})
	callTool(t, ctx, session, "start_run", map[string]any{
		"plan_path": writePlan(t, checkpointPlan),
	})

	res := callTool(t, ctx, session, "list_runs", map[string]any{})
	runs, _ := res["runs"].([]any)
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}

func containsStr(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
