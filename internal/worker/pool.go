package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Pool owns a set of named workers, each its own claim/spawn/finalize loop.
type Pool struct {
	mu      sync.Mutex
	workers map[string]*Worker
	logger  *slog.Logger
}

// NewPool builds an empty Pool.
func NewPool(logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{workers: make(map[string]*Worker), logger: logger}
}

// Add registers a worker under cfg.ID, replacing any prior stopped worker of
// the same id. It does not start the loop.
func (p *Pool) Add(w *Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workers[w.Status().ID] = w
}

// Start launches every registered worker's loop.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, w := range p.workers {
		p.logger.Info("starting worker", "workerId", id, "agentKind", w.Status().AgentKind)
		w.Start(ctx)
	}
}

// StartOne starts a single worker by id.
func (p *Pool) StartOne(id string) error {
	p.mu.Lock()
	w, ok := p.workers[id]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("worker %q not registered", id)
	}
	w.Start(context.Background())
	return nil
}

// StopOne stops a single worker by id, blocking until its loop exits.
func (p *Pool) StopOne(id string) error {
	p.mu.Lock()
	w, ok := p.workers[id]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("worker %q not registered", id)
	}
	w.Stop()
	return nil
}

// StopAll stops every worker, blocking until each loop has exited.
func (p *Pool) StopAll() {
	p.mu.Lock()
	workers := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Stop()
		}(w)
	}
	wg.Wait()
}

// Snapshot returns every worker's current status.
func (p *Pool) Snapshot() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Status, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w.Status())
	}
	return out
}
