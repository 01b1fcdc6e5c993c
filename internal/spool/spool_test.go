package spool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentkanban/agentkanban/internal/broadcast"
	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/store"
)

func newTestIngester(t *testing.T) (*Ingester, *store.Store, string, string, string) {
	t.Helper()
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
	ticket, err := st.CreateTicket(store.CreateTicketInput{
		BoardID: board.ID, ColumnID: board.Columns[0].ID, Title: "t", Priority: model.PriorityMedium,
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	run, err := st.CreateRun(store.CreateRunInput{TicketID: ticket.ID, AgentKind: model.AgentClaude, RepoPath: "."})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	spoolDir := t.TempDir()
	b := broadcast.New(nil)
	ig := New(spoolDir, st, b, nil)
	return ig, st, spoolDir, ticket.ID, run.ID
}

func writeSpoolFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write spool file: %v", err)
	}
}

func TestIngestValidFileDeletesAndPersists(t *testing.T) {
	ig, st, dir, ticketID, runID := newTestIngester(t)

	content := `{"runId":"` + runID + `","ticketId":"` + ticketID + `","agentType":"claude","eventType":"file_edited","payload":{"structured":{"path":"a.txt"}},"timestamp":"2024-01-01T00:00:00Z"}`
	writeSpoolFile(t, dir, "evt1.json", content)

	ig.sweepOnce()

	if _, err := os.Stat(filepath.Join(dir, "evt1.json")); !os.IsNotExist(err) {
		t.Error("expected spool file to be deleted after successful ingestion")
	}

	events, err := st.ListEventsForRun(runID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].EventType != "file_edited" {
		t.Errorf("expected one file_edited event, got %+v", events)
	}
}

func TestIngestMalformedFileIsKept(t *testing.T) {
	ig, _, dir, _, _ := newTestIngester(t)
	writeSpoolFile(t, dir, "bad.json", `{not valid json`)

	ig.sweepOnce()

	if _, err := os.Stat(filepath.Join(dir, "bad.json")); err != nil {
		t.Error("expected malformed spool file to be left in place")
	}
}

func TestIngestMissingFieldsIsKept(t *testing.T) {
	ig, _, dir, _, runID := newTestIngester(t)
	content := `{"runId":"` + runID + `","eventType":"file_edited","timestamp":"2024-01-01T00:00:00Z"}`
	writeSpoolFile(t, dir, "partial.json", content)

	ig.sweepOnce()

	if _, err := os.Stat(filepath.Join(dir, "partial.json")); err != nil {
		t.Error("expected spool file missing ticketId to be left in place")
	}
}

func TestIngestNonJSONFilesIgnored(t *testing.T) {
	ig, _, dir, _, _ := newTestIngester(t)
	writeSpoolFile(t, dir, "notes.txt", "hello")

	ig.sweepOnce()

	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("expected non-JSON file to remain untouched")
	}
}

func TestDirResolvesNonEmptyPath(t *testing.T) {
	dir, err := Dir()
	if err != nil {
		t.Fatalf("dir: %v", err)
	}
	if dir == "" {
		t.Error("expected a non-empty spool directory path")
	}
}
