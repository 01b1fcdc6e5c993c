package worker

import (
	"context"
	"fmt"
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

func TestPoolStartStopAllTracksStatus(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	b := broadcast.New(nil)
	res := reservation.New(st, b, nil, nil, reservation.WithLeaseLength(time.Minute))
	sup := supervisor.New(nil)
	fin := finalize.New(st, res, b, nil)

	pool := NewPool(nil)
	for i := 0; i < 3; i++ {
		w := New(Config{ID: fmt.Sprintf("worker-%d", i), AgentKind: model.AgentClaude, Timeout: time.Second}, res, sup, fin, nil)
		pool.Add(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	time.Sleep(20 * time.Millisecond)
	snap := pool.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 worker statuses, got %d", len(snap))
	}
	for _, s := range snap {
		if !s.Running {
			t.Errorf("worker %s should be running", s.ID)
		}
	}

	pool.StopAll()
	for _, s := range pool.Snapshot() {
		if s.Running {
			t.Errorf("worker %s should have stopped", s.ID)
		}
	}
}
