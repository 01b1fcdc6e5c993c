// Package worker runs long-lived claim/spawn/finalize loops, each bound to
// one agent kind, polling the reservation manager for work.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/agentkanban/agentkanban/internal/finalize"
	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/prompt"
	"github.com/agentkanban/agentkanban/internal/reservation"
	"github.com/agentkanban/agentkanban/internal/storeerr"
	"github.com/agentkanban/agentkanban/internal/supervisor"
)

// PollInterval is how often an idle worker retries Claim after QueueEmpty.
const PollInterval = 2 * time.Second

// Config parameterizes one worker loop.
type Config struct {
	ID        string
	AgentKind model.AgentKind
	Board     string
	RepoPath  string
	APIURL    string
	APIToken  string
	Timeout   time.Duration
}

// Status is a point-in-time snapshot of a worker's progress.
type Status struct {
	ID            string          `json:"id"`
	AgentKind     model.AgentKind `json:"agentKind"`
	CurrentTicket *string         `json:"currentTicket,omitempty"`
	StartedAt     time.Time       `json:"startedAt"`
	Processed     int             `json:"processed"`
	Errors        int             `json:"errors"`
	Running       bool            `json:"running"`
}

// Worker owns one claim/spawn/finalize loop.
type Worker struct {
	cfg         Config
	reservation *reservation.Manager
	supervisor  *supervisor.Supervisor
	finalizer   *finalize.Finalizer
	logger      *slog.Logger

	mu        sync.Mutex
	current   *string
	processed int
	errors    int
	startedAt time.Time
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// New builds a Worker. It does not start the loop; call Start for that.
func New(cfg Config, res *reservation.Manager, sup *supervisor.Supervisor, fin *finalize.Finalizer, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{cfg: cfg, reservation: res, supervisor: sup, finalizer: fin, logger: logger}
}

// Start launches the loop in a new goroutine. Calling Start on an already
// running worker is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.startedAt = time.Now()
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.loop(loopCtx)
}

// Stop cancels the loop and blocks until it has exited.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// Status returns a snapshot of this worker's progress.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{
		ID: w.cfg.ID, AgentKind: w.cfg.AgentKind, CurrentTicket: w.current,
		StartedAt: w.startedAt, Processed: w.processed, Errors: w.errors, Running: w.running,
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if w.runOnce(ctx) == errQueueEmpty {
			select {
			case <-ctx.Done():
				return
			case <-time.After(PollInterval):
			}
		}
	}
}

type loopSignal int

const (
	loopOK loopSignal = iota
	errQueueEmpty
)

// runOnce performs one claim/spawn/heartbeat/finalize cycle.
func (w *Worker) runOnce(ctx context.Context) loopSignal {
	claim, err := w.reservation.Claim(w.cfg.Board, w.cfg.AgentKind, w.cfg.RepoPath)
	if err != nil {
		if errors.Is(err, storeerr.ErrQueueEmpty) {
			return errQueueEmpty
		}
		w.logger.Error("worker: claim failed", "worker", w.cfg.ID, "error", err)
		w.mu.Lock()
		w.errors++
		w.mu.Unlock()
		return errQueueEmpty
	}

	w.mu.Lock()
	w.current = &claim.Ticket.ID
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.current = nil
		w.mu.Unlock()
	}()

	promptText, err := prompt.Build(claim.Ticket, w.cfg.Board, "")
	if err != nil {
		w.logger.Error("worker: prompt build failed", "worker", w.cfg.ID, "ticketId", claim.Ticket.ID, "error", err)
		w.mu.Lock()
		w.errors++
		w.mu.Unlock()
		return loopOK
	}

	if err := w.reservation.MarkRunning(claim.RunID); err != nil {
		w.logger.Warn("worker: failed to mark run running", "runId", claim.RunID, "error", err)
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go w.heartbeatLoop(heartbeatCtx, &wg, claim.Ticket.ID, claim.RunID)

	result, err := w.supervisor.Spawn(ctx, supervisor.RunRequest{
		AgentKind: w.cfg.AgentKind,
		TicketID:  claim.Ticket.ID,
		RunID:     claim.RunID,
		RepoPath:  w.cfg.RepoPath,
		Prompt:    promptText,
		Timeout:   w.cfg.Timeout,
		APIURL:    w.cfg.APIURL,
		APIToken:  w.cfg.APIToken,
		Model:     claim.Ticket.Model,
	})

	stopHeartbeat()
	wg.Wait()

	if err != nil {
		w.logger.Error("worker: spawn failed", "worker", w.cfg.ID, "runId", claim.RunID, "error", err)
		w.mu.Lock()
		w.errors++
		w.mu.Unlock()
		result = supervisor.Result{Outcome: supervisor.OutcomeError, Summary: err.Error()}
	}

	if ferr := w.finalizer.Finalize(claim.Ticket.ID, claim.RunID, result, nil); ferr != nil {
		w.logger.Error("worker: finalize failed", "worker", w.cfg.ID, "runId", claim.RunID, "error", ferr)
		w.mu.Lock()
		w.errors++
		w.mu.Unlock()
	}

	w.mu.Lock()
	w.processed++
	w.mu.Unlock()
	return loopOK
}

// heartbeatLoop renews the claimed lease at half the lease length until
// cancelled. A failed heartbeat (lock lost) cancels the run via the
// supervisor's cancel handle.
func (w *Worker) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, ticketID, runID string) {
	defer wg.Done()
	interval := w.reservation.LeaseLength() / 2
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.reservation.Heartbeat(ticketID, runID); err != nil {
				w.logger.Warn("worker: heartbeat failed, cancelling run", "runId", runID, "error", err)
				w.supervisor.Cancel(runID)
				return
			}
		}
	}
}
