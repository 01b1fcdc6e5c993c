// Package reservation implements the at-most-one-worker-per-ticket lease
// discipline: claiming a ticket for a run, renewing the lease on heartbeat,
// releasing it, and a background sweeper that reclaims expired leases.
package reservation

import (
	"errors"
	"log/slog"
	"time"

	"github.com/agentkanban/agentkanban/internal/broadcast"
	"github.com/agentkanban/agentkanban/internal/metrics"
	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/store"
	"github.com/agentkanban/agentkanban/internal/storeerr"
)

// maxClaimRetries bounds the compare-and-set retry loop when two workers
// race for the same ticket.
const maxClaimRetries = 5

// Canceller is the subset of the supervisor the sweeper needs: best-effort
// cancellation of a running process by run id.
type Canceller interface {
	Cancel(runID string) bool
}

// Manager owns the reservation protocol.
type Manager struct {
	store       *store.Store
	broadcaster *broadcast.Broadcaster
	canceller   Canceller
	clock       Clock
	logger      *slog.Logger

	leaseLength       time.Duration
	heartbeatInterval time.Duration
	sweepInterval     time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the default real clock, for deterministic tests.
func WithClock(c Clock) Option { return func(m *Manager) { m.clock = c } }

// WithLeaseLength overrides the default 30 minute lease length.
func WithLeaseLength(d time.Duration) Option { return func(m *Manager) { m.leaseLength = d } }

// WithHeartbeatInterval overrides the default 60 second heartbeat interval.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(m *Manager) { m.heartbeatInterval = d }
}

// WithSweepInterval overrides the default sweeper interval.
func WithSweepInterval(d time.Duration) Option { return func(m *Manager) { m.sweepInterval = d } }

// New builds a Manager with sane defaults (30 min lease, 60 s heartbeat,
// sweep interval = lease/6).
func New(st *store.Store, b *broadcast.Broadcaster, canceller Canceller, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:             st,
		broadcaster:       b,
		canceller:         canceller,
		clock:             RealClock,
		logger:            logger,
		leaseLength:       30 * time.Minute,
		heartbeatInterval: 60 * time.Second,
	}
	m.sweepInterval = m.leaseLength / 6
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LeaseLength returns the configured lease duration.
func (m *Manager) LeaseLength() time.Duration { return m.leaseLength }

// HeartbeatInterval returns the advertised heartbeat interval.
func (m *Manager) HeartbeatInterval() time.Duration { return m.heartbeatInterval }

// ClaimResult is returned on a successful Claim.
type ClaimResult struct {
	Ticket                *model.Ticket
	RunID                 string
	LeaseExpiresAt        time.Time
	HeartbeatIntervalSecs int
}

// Claim selects the highest-priority eligible Ready ticket matching the
// given filters, creates a run for it, reserves it, and moves it to
// In Progress. It retries a bounded number of times if it loses a
// compare-and-set race against a concurrent claimer.
func (m *Manager) Claim(boardFilter string, agentKindFilter model.AgentKind, repoPath string) (*ClaimResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxClaimRetries; attempt++ {
		result, err := m.tryClaim(boardFilter, agentKindFilter, repoPath)
		if err == nil {
			metrics.ClaimsTotal.WithLabelValues("success").Inc()
			return result, nil
		}
		if errors.Is(err, storeerr.ErrQueueEmpty) {
			metrics.ClaimsTotal.WithLabelValues("queue_empty").Inc()
			return nil, err
		}
		if !errors.Is(err, storeerr.ErrConflict) {
			metrics.ClaimsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		lastErr = err
	}
	metrics.ClaimsTotal.WithLabelValues("conflict").Inc()
	return nil, lastErr
}

func (m *Manager) tryClaim(boardFilter string, agentKindFilter model.AgentKind, repoPath string) (*ClaimResult, error) {
	ticket, err := m.store.NextReadyTicket(boardFilter, agentKindFilter)
	if err != nil {
		return nil, err
	}

	agentKind := agentKindFilter
	if agentKind == "" || agentKind == model.AgentAny {
		if ticket.AgentPref != nil {
			agentKind = *ticket.AgentPref
		} else {
			agentKind = model.AgentClaude
		}
	}

	run, err := m.store.CreateRun(store.CreateRunInput{TicketID: ticket.ID, AgentKind: agentKind, RepoPath: repoPath})
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	expiry := now.Add(m.leaseLength)

	if ticket.ProjectID != nil {
		project, err := m.store.GetProject(*ticket.ProjectID)
		if err == nil && project.RepoLockEnabled {
			if err := m.store.AcquireRepoLock(project.ID, run.ID, expiry); err != nil {
				m.abortRun(run.ID, "repo lock unavailable")
				return nil, storeerr.Wrap(storeerr.ErrConflict, "repo lock held for project "+project.ID, err)
			}
		}
	}

	if err := m.store.ReserveTicket(ticket.ID, run.ID, expiry); err != nil {
		m.abortRun(run.ID, "lost reservation race")
		if ticket.ProjectID != nil {
			_ = m.store.ReleaseRepoLock(*ticket.ProjectID, run.ID)
		}
		return nil, err
	}

	perm := model.CanTransition(model.StateReady, model.StateInProgress, false, true)
	if perm.Permission != model.Allowed {
		m.abortRun(run.ID, perm.Reason())
		_ = m.store.ReleaseLock(ticket.ID, run.ID)
		return nil, storeerr.Wrap(storeerr.ErrBackend, perm.Reason(), nil)
	}

	if err := m.store.MoveTicketToState(ticket.ID, model.StateInProgress); err != nil {
		return nil, err
	}

	m.broadcaster.Publish(broadcast.LiveEvent{Type: broadcast.TicketLocked, TicketID: ticket.ID, RunID: run.ID})
	m.broadcaster.Publish(broadcast.LiveEvent{Type: broadcast.TicketMoved, TicketID: ticket.ID, Data: model.StateInProgress})
	m.broadcaster.Publish(broadcast.LiveEvent{Type: broadcast.RunStarted, TicketID: ticket.ID, RunID: run.ID})

	return &ClaimResult{
		Ticket:                ticket,
		RunID:                 run.ID,
		LeaseExpiresAt:        expiry,
		HeartbeatIntervalSecs: int(m.heartbeatInterval.Seconds()),
	}, nil
}

func (m *Manager) abortRun(runID, reason string) {
	if err := m.store.UpdateRunStatus(runID, model.RunAborted, nil, &reason); err != nil {
		m.logger.Warn("failed to mark aborted run", "runId", runID, "error", err)
	}
}

// MarkRunning transitions a freshly claimed run from Queued to Running, once
// the supervisor has actually spawned its process.
func (m *Manager) MarkRunning(runID string) error {
	return m.store.UpdateRunStatus(runID, model.RunRunning, nil, nil)
}

// Heartbeat renews a run's lease, failing LockExpired if runID is no longer
// the holder.
func (m *Manager) Heartbeat(ticketID, runID string) (time.Time, error) {
	expiry := m.clock.Now().Add(m.leaseLength)
	if err := m.store.RenewLease(ticketID, runID, expiry); err != nil {
		return time.Time{}, err
	}
	return expiry, nil
}

// Release clears a ticket's lease. It does not move the ticket; callers
// that want a column change apply it separately (see Finalizer).
func (m *Manager) Release(ticketID, runID string) error {
	if err := m.store.ReleaseLock(ticketID, runID); err != nil {
		return err
	}
	metrics.ReleasesTotal.Inc()
	m.broadcaster.Publish(broadcast.LiveEvent{Type: broadcast.TicketUnlocked, TicketID: ticketID, RunID: runID})
	return nil
}
