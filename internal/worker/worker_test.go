package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentkanban/agentkanban/internal/broadcast"
	"github.com/agentkanban/agentkanban/internal/finalize"
	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/reservation"
	"github.com/agentkanban/agentkanban/internal/store"
	"github.com/agentkanban/agentkanban/internal/supervisor"
)

func TestWorkerClaimsSpawnsAndFinalizes(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	board, err := st.CreateBoard("board")
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
		BoardID: board.ID, ColumnID: readyCol, Title: "greet", Priority: model.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	b := broadcast.New(nil)
	sup := supervisor.New(nil)
	sup.RegisterKind(model.AgentKind("echokind"), supervisor.KindConfig{
		BinaryName: "sh", ExtraArgs: []string{"-c", "echo hi"},
	})
	res := reservation.New(st, b, sup, nil, reservation.WithLeaseLength(time.Minute))
	fin := finalize.New(st, res, b, nil)

	w := New(Config{ID: "w1", AgentKind: model.AgentKind("echokind"), RepoPath: "."}, res, sup, fin, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signal := w.runOnce(ctx)
	if signal == errQueueEmpty {
		t.Fatal("expected runOnce to claim the ready ticket, got queue empty")
	}

	state, err := st.TicketState(ticket.ID)
	if err != nil {
		t.Fatalf("ticket state: %v", err)
	}
	if state != model.StateReview {
		t.Errorf("expected ticket to land in Review after a successful run, got %s", state)
	}

	status := w.Status()
	if status.Processed != 1 {
		t.Errorf("expected processed count 1, got %d", status.Processed)
	}
}

func TestWorkerReportsQueueEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	b := broadcast.New(nil)
	sup := supervisor.New(nil)
	res := reservation.New(st, b, sup, nil)
	fin := finalize.New(st, res, b, nil)
	w := New(Config{ID: "w1", AgentKind: model.AgentClaude, RepoPath: "."}, res, sup, fin, nil)

	if sig := w.runOnce(context.Background()); sig != errQueueEmpty {
		t.Errorf("expected errQueueEmpty on an empty board, got %v", sig)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	b := broadcast.New(nil)
	sup := supervisor.New(nil)
	res := reservation.New(st, b, sup, nil)
	fin := finalize.New(st, res, b, nil)
	w := New(Config{ID: "w1", AgentKind: model.AgentClaude, RepoPath: "."}, res, sup, fin, nil)

	w.Start(context.Background())
	if !w.Status().Running {
		t.Error("expected worker to report running after Start")
	}
	w.Stop()
	if w.Status().Running {
		t.Error("expected worker to report stopped after Stop")
	}
}
