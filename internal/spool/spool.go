// Package spool watches a platform-specific directory for hook-event JSON
// files that agent scripts wrote when the control-plane server was
// unreachable, and drains them into the event store.
package spool

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/agentkanban/agentkanban/internal/broadcast"
	"github.com/agentkanban/agentkanban/internal/store"
)

// TickInterval is how often the spool directory is scanned.
const TickInterval = 30 * time.Second

// rawEvent mirrors the JSON shape hook scripts write to disk.
type rawEvent struct {
	RunID     *string `json:"runId"`
	TicketID  *string `json:"ticketId"`
	AgentType *string `json:"agentType"`
	EventType *string `json:"eventType"`
	Payload   *struct {
		Raw        *string          `json:"raw"`
		Structured *json.RawMessage `json:"structured"`
	} `json:"payload"`
	Timestamp *string `json:"timestamp"`
}

// Dir resolves the per-user spool directory for the current platform.
func Dir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "agent-kanban", "spool"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "agent-kanban", "spool"), nil
	default: // linux and other unix-likes
		xdg := os.Getenv("XDG_DATA_HOME")
		if xdg == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			xdg = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(xdg, "agent-kanban", "spool"), nil
	}
}

// Ingester periodically drains the spool directory into the store.
type Ingester struct {
	dir         string
	store       *store.Store
	broadcaster *broadcast.Broadcaster
	logger      *slog.Logger
}

// New builds an Ingester that watches dir.
func New(dir string, st *store.Store, b *broadcast.Broadcaster, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{dir: dir, store: st, broadcaster: b, logger: logger}
}

// Run blocks, ticking every TickInterval, until ctx is cancelled. It sweeps
// once immediately on entry.
func (ig *Ingester) Run(ctx context.Context) {
	ig.sweepOnce()
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ig.sweepOnce()
		}
	}
}

func (ig *Ingester) sweepOnce() {
	entries, err := os.ReadDir(ig.dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			ig.logger.Warn("spool: failed to list directory", "dir", ig.dir, "error", err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(ig.dir, entry.Name())
		if ig.ingestOne(path) {
			if err := os.Remove(path); err != nil {
				ig.logger.Warn("spool: failed to delete ingested file", "path", path, "error", err)
			}
		}
	}
}

// ingestOne parses and persists a single spool file, returning whether it
// should be deleted. A file is never removed on a failed parse or a store
// error: it stays for manual inspection and a retry on the next tick.
func (ig *Ingester) ingestOne(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		ig.logger.Warn("spool: failed to read file", "path", path, "error", err)
		return false
	}

	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		ig.logger.Warn("spool: malformed JSON, leaving for manual inspection", "path", path, "error", err)
		return false
	}
	if raw.RunID == nil || raw.TicketID == nil || raw.EventType == nil || raw.Timestamp == nil {
		ig.logger.Warn("spool: missing required field, leaving for manual inspection", "path", path)
		return false
	}

	ts, err := time.Parse(time.RFC3339, *raw.Timestamp)
	if err != nil {
		ig.logger.Warn("spool: unparsable timestamp, leaving for manual inspection", "path", path, "error", err)
		return false
	}

	input := store.AppendEventInput{
		RunID:     *raw.RunID,
		TicketID:  *raw.TicketID,
		EventType: *raw.EventType,
		Timestamp: ts,
	}
	if raw.Payload != nil {
		input.PayloadRaw = raw.Payload.Raw
		if raw.Payload.Structured != nil {
			s := string(*raw.Payload.Structured)
			input.PayloadJSON = &s
		}
	}

	event, err := ig.store.AppendEvent(input)
	if err != nil {
		ig.logger.Warn("spool: failed to persist event, leaving for retry", "path", path, "error", err)
		return false
	}

	ig.broadcaster.Publish(broadcast.LiveEvent{Type: broadcast.EventReceived, TicketID: event.TicketID, RunID: event.RunID, Data: event})
	return true
}
