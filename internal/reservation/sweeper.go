package reservation

import (
	"context"
	"time"

	"github.com/agentkanban/agentkanban/internal/broadcast"
	"github.com/agentkanban/agentkanban/internal/metrics"
	"github.com/agentkanban/agentkanban/internal/model"
)

// RunSweeper blocks until ctx is cancelled, sweeping expired leases every
// sweep interval. Each sweep runs immediately on entry, then on every tick.
func (m *Manager) RunSweeper(ctx context.Context) {
	m.sweepOnce()
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *Manager) sweepOnce() {
	expired, err := m.store.ExpireStaleLeases(m.clock.Now())
	if err != nil {
		m.logger.Error("sweeper: list expired leases failed", "error", err)
		return
	}
	for _, e := range expired {
		m.reclaim(e.TicketID, e.RunID)
	}
}

func (m *Manager) reclaim(ticketID, runID string) {
	metrics.LeaseExpiriesTotal.Inc()
	run, err := m.store.GetRun(runID)
	if err != nil {
		m.logger.Warn("sweeper: run not found for expired lease", "runId", runID, "ticketId", ticketID, "error", err)
	} else if run.Status == model.RunRunning || run.Status == model.RunQueued {
		if m.canceller != nil {
			m.canceller.Cancel(runID)
		}
		summary := "lease expired"
		if err := m.store.UpdateRunStatus(runID, model.RunAborted, nil, &summary); err != nil {
			m.logger.Error("sweeper: failed to mark run aborted", "runId", runID, "error", err)
		}
	}

	if err := m.store.ReleaseLock(ticketID, runID); err != nil {
		m.logger.Error("sweeper: failed to release lock", "ticketId", ticketID, "runId", runID, "error", err)
	}

	currentState, err := m.store.TicketState(ticketID)
	if err != nil {
		m.logger.Error("sweeper: failed to read ticket state", "ticketId", ticketID, "error", err)
		return
	}
	perm := model.CanTransition(currentState, model.StateReady, false, true)
	if perm.Permission == model.Allowed {
		if err := m.store.MoveTicketToState(ticketID, model.StateReady); err != nil {
			m.logger.Error("sweeper: failed to move ticket to Ready", "ticketId", ticketID, "error", err)
		}
	}

	m.broadcaster.Publish(broadcast.LiveEvent{Type: broadcast.TicketUnlocked, TicketID: ticketID, RunID: runID})
	m.broadcaster.Publish(broadcast.LiveEvent{Type: broadcast.RunCompleted, TicketID: ticketID, RunID: runID, Data: model.RunAborted})
}
