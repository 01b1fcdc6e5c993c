// Package finalize ties off an agent run: it persists the terminal run
// status, releases the ticket's lease, and applies the matching system
// lifecycle transition, then broadcasts the result.
package finalize

import (
	"log/slog"

	"github.com/agentkanban/agentkanban/internal/broadcast"
	"github.com/agentkanban/agentkanban/internal/metrics"
	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/reservation"
	"github.com/agentkanban/agentkanban/internal/store"
	"github.com/agentkanban/agentkanban/internal/supervisor"
)

// Finalizer performs the run-completion handoff from the supervisor back to
// the ticket lifecycle.
type Finalizer struct {
	store       *store.Store
	reservation *reservation.Manager
	broadcaster *broadcast.Broadcaster
	logger      *slog.Logger
}

// New builds a Finalizer.
func New(st *store.Store, res *reservation.Manager, b *broadcast.Broadcaster, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{store: st, reservation: res, broadcaster: b, logger: logger}
}

// statusFor maps a supervisor outcome to the terminal run status.
func statusFor(outcome supervisor.Outcome) model.RunStatus {
	switch outcome {
	case supervisor.OutcomeSuccess:
		return model.RunFinished
	case supervisor.OutcomeCancelled:
		return model.RunAborted
	default: // OutcomeError, OutcomeTimeout
		return model.RunError
	}
}

// targetStateFor maps a supervisor outcome to the ticket's post-run column.
func targetStateFor(outcome supervisor.Outcome) model.State {
	switch outcome {
	case supervisor.OutcomeSuccess:
		return model.StateReview
	case supervisor.OutcomeCancelled:
		return model.StateReady
	default: // OutcomeError, OutcomeTimeout
		return model.StateBlocked
	}
}

// Finalize runs the five-step completion sequence: persist the run's
// terminal status and exit code, persist artifacts if present, release the
// ticket's lease, apply the matching lifecycle transition, and broadcast.
//
// Steps are independently logged rather than rolled back on partial
// failure: the run did end regardless of what happens next, and the lease
// sweeper will reclaim an orphaned lock on its next pass.
func (f *Finalizer) Finalize(ticketID, runID string, result supervisor.Result, metadataJSON *string) error {
	status := statusFor(result.Outcome)
	summary := result.Summary

	if err := f.store.UpdateRunStatus(runID, status, result.ExitCode, &summary); err != nil {
		f.logger.Error("finalize: failed to update run status", "runId", runID, "error", err)
		return err
	}
	metrics.RunOutcomesTotal.WithLabelValues(string(status)).Inc()

	if metadataJSON != nil {
		if err := f.store.UpdateRunMetadata(runID, *metadataJSON); err != nil {
			f.logger.Error("finalize: failed to persist run metadata", "runId", runID, "error", err)
		}
	}

	if err := f.reservation.Release(ticketID, runID); err != nil {
		f.logger.Error("finalize: failed to release lock", "ticketId", ticketID, "runId", runID, "error", err)
	}

	currentState, err := f.store.TicketState(ticketID)
	if err != nil {
		f.logger.Error("finalize: failed to read ticket state", "ticketId", ticketID, "error", err)
		return err
	}

	target := targetStateFor(result.Outcome)
	perm := model.CanTransition(currentState, target, false, true)
	if perm.Permission == model.Allowed {
		if err := f.store.MoveTicketToState(ticketID, target); err != nil {
			f.logger.Error("finalize: failed to move ticket", "ticketId", ticketID, "target", target, "error", err)
		} else {
			f.broadcaster.Publish(broadcast.LiveEvent{Type: broadcast.TicketMoved, TicketID: ticketID, RunID: runID, Data: target})
		}
	} else {
		f.logger.Warn("finalize: system transition denied", "ticketId", ticketID, "from", currentState, "to", target, "reason", perm.Reason())
	}

	f.broadcaster.Publish(broadcast.LiveEvent{Type: broadcast.RunCompleted, TicketID: ticketID, RunID: runID, Data: status})

	f.logger.Info("run finalized", "runId", runID, "ticketId", ticketID, "outcome", result.Outcome, "status", status)
	return nil
}
