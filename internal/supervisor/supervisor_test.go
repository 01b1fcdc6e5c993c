package supervisor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/agentkanban/agentkanban/internal/model"
)

func TestBuildEnvVarsIncludesAllFields(t *testing.T) {
	cfg := DefaultRegistry()[model.AgentCursor]
	req := RunRequest{
		AgentKind: model.AgentCursor,
		TicketID:  "ticket-123",
		RunID:     "run-456",
		RepoPath:  "/tmp/repo",
		Prompt:    "test prompt",
		APIURL:    "http://localhost:7432",
		APIToken:  "test-token",
	}
	_, env := cfg.Build(req)

	want := map[string]string{
		"AGENT_KANBAN_TICKET_ID": "ticket-123",
		"AGENT_KANBAN_RUN_ID":    "run-456",
		"AGENT_KANBAN_API_URL":   "http://localhost:7432",
		"AGENT_KANBAN_API_TOKEN": "test-token",
		"AGENT_KANBAN_REPO_PATH": "/tmp/repo",
	}
	for k, v := range want {
		found := false
		for _, e := range env {
			if e == k+"="+v {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected env to contain %s=%s", k, v)
		}
	}
}

func TestSpawnCliNotFound(t *testing.T) {
	s := New(nil)
	s.RegisterKind("ghost", KindConfig{BinaryName: "agentkanban-nonexistent-binary"})
	_, err := s.Spawn(context.Background(), RunRequest{AgentKind: "ghost", RepoPath: "."})
	if err == nil {
		t.Fatal("expected an error for a nonexistent binary")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected a not-found style error, got %v", err)
	}
}

func TestSpawnUnknownKind(t *testing.T) {
	s := New(nil)
	_, err := s.Spawn(context.Background(), RunRequest{AgentKind: "nonexistent-kind"})
	if err == nil {
		t.Fatal("expected an error for an unregistered agent kind")
	}
}

func TestCancelHandleUnknownRun(t *testing.T) {
	s := New(nil)
	if s.Cancel("no-such-run") {
		t.Error("expected Cancel on an unregistered run id to report false")
	}
}

func TestSpawnSuccessAndCancel(t *testing.T) {
	s := New(nil)
	s.RegisterKind("sleepkind", testSleepKind())

	done := make(chan Result, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := s.Spawn(context.Background(), RunRequest{AgentKind: "sleepkind", RunID: reservedSleepRunID, RepoPath: "."})
		if err != nil {
			errCh <- err
			return
		}
		done <- res
	}()

	time.Sleep(50 * time.Millisecond)
	s.Cancel(reservedSleepRunID)

	select {
	case err := <-errCh:
		t.Fatalf("unexpected spawn error: %v", err)
	case res := <-done:
		if res.Outcome != OutcomeCancelled && res.Outcome != OutcomeSuccess {
			t.Errorf("expected Cancelled or a fast Success, got %v", res.Outcome)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for spawn to return")
	}
}

// reservedSleepRunID is the fixed run id the sleep-kind test uses so Cancel
// can target it without plumbing the value through the goroutine.
const reservedSleepRunID = "sleep-test-run"

func testSleepKind() KindConfig {
	return KindConfig{BinaryName: "sh", ExtraArgs: []string{"-c", "sleep 2"}}
}
