package finalize

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/agentkanban/agentkanban/internal/broadcast"
	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/reservation"
	"github.com/agentkanban/agentkanban/internal/store"
	"github.com/agentkanban/agentkanban/internal/supervisor"
)

type noopCanceller struct{}

func (noopCanceller) Cancel(string) bool { return false }

func newTestFinalizer(t *testing.T) (*Finalizer, *store.Store, *model.Ticket, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	board, err := st.CreateBoard("test board")
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	var readyCol string
	for _, c := range board.Columns {
		if c.Name == model.ColumnDisplayName(model.StateReady) {
			readyCol = c.ID
		}
	}

	ticket, err := st.CreateTicket(store.CreateTicketInput{
		BoardID: board.ID, ColumnID: readyCol, Title: "do the thing", Priority: model.PriorityMedium,
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	run, err := st.CreateRun(store.CreateRunInput{TicketID: ticket.ID, AgentKind: model.AgentClaude, RepoPath: "."})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := st.ReserveTicket(ticket.ID, run.ID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("reserve ticket: %v", err)
	}
	if err := st.MoveTicketToState(ticket.ID, model.StateInProgress); err != nil {
		t.Fatalf("move ticket to in progress: %v", err)
	}
	if err := st.UpdateRunStatus(run.ID, model.RunRunning, nil, nil); err != nil {
		t.Fatalf("mark run running: %v", err)
	}

	b := broadcast.New(nil)
	res := reservation.New(st, b, noopCanceller{}, nil)
	f := New(st, res, b, nil)
	return f, st, ticket, run.ID
}

func TestFinalizeSuccessMovesToReview(t *testing.T) {
	f, st, ticket, runID := newTestFinalizer(t)

	err := f.Finalize(ticket.ID, runID, supervisor.Result{Outcome: supervisor.OutcomeSuccess, Summary: "done"}, nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	state, err := st.TicketState(ticket.ID)
	if err != nil {
		t.Fatalf("ticket state: %v", err)
	}
	if state != model.StateReview {
		t.Errorf("expected ticket to land in Review, got %s", state)
	}

	run, err := st.GetRun(runID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != model.RunFinished {
		t.Errorf("expected run status Finished, got %s", run.Status)
	}
	if run.EndedAt == nil {
		t.Error("expected EndedAt to be stamped")
	}

	got, err := st.GetTicket(ticket.ID)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if got.IsLocked() {
		t.Error("expected lease to be released")
	}
}

func TestFinalizeErrorMovesToBlocked(t *testing.T) {
	f, st, ticket, runID := newTestFinalizer(t)

	exitCode := 1
	err := f.Finalize(ticket.ID, runID, supervisor.Result{Outcome: supervisor.OutcomeError, ExitCode: &exitCode, Summary: "boom"}, nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	state, err := st.TicketState(ticket.ID)
	if err != nil {
		t.Fatalf("ticket state: %v", err)
	}
	if state != model.StateBlocked {
		t.Errorf("expected ticket to land in Blocked, got %s", state)
	}
}

func TestFinalizeCancelledMovesToReady(t *testing.T) {
	f, st, ticket, runID := newTestFinalizer(t)

	err := f.Finalize(ticket.ID, runID, supervisor.Result{Outcome: supervisor.OutcomeCancelled, Summary: "cancelled"}, nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	state, err := st.TicketState(ticket.ID)
	if err != nil {
		t.Fatalf("ticket state: %v", err)
	}
	if state != model.StateReady {
		t.Errorf("expected ticket to return to Ready, got %s", state)
	}

	run, err := st.GetRun(runID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != model.RunAborted {
		t.Errorf("expected run status Aborted, got %s", run.Status)
	}
}

func TestFinalizePersistsMetadata(t *testing.T) {
	f, st, ticket, runID := newTestFinalizer(t)

	metadata := `{"branch":"agent/fix-thing"}`
	if err := f.Finalize(ticket.ID, runID, supervisor.Result{Outcome: supervisor.OutcomeSuccess}, &metadata); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	run, err := st.GetRun(runID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.MetadataJSON == nil || *run.MetadataJSON != metadata {
		t.Errorf("expected metadata to be persisted, got %v", run.MetadataJSON)
	}
}
