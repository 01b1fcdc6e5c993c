package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/storeerr"
)

// AppendEventInput is the input to AppendEvent.
type AppendEventInput struct {
	RunID       string
	TicketID    string
	EventType   string
	PayloadRaw  *string
	PayloadJSON *string
	Timestamp   time.Time
}

// AppendEvent persists a hook event. Both the run and the ticket must
// exist and the ticket must be the run's own ticket.
func (s *Store) AppendEvent(in AppendEventInput) (*model.Event, error) {
	run, err := s.GetRun(in.RunID)
	if err != nil {
		return nil, err
	}
	if run.TicketID != in.TicketID {
		return nil, storeerr.Wrap(storeerr.ErrValidation, "event ticket does not match run's ticket", nil)
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}

	id := uuid.NewString()
	var raw, structured any
	if in.PayloadRaw != nil {
		raw = *in.PayloadRaw
	}
	if in.PayloadJSON != nil {
		structured = *in.PayloadJSON
	}

	_, err = s.db.Exec(
		`INSERT INTO agent_events (id, run_id, ticket_id, event_type, payload_raw, payload_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, in.RunID, in.TicketID, in.EventType, raw, structured, in.Timestamp,
	)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "insert event", err)
	}
	return &model.Event{
		ID: id, RunID: in.RunID, TicketID: in.TicketID, EventType: in.EventType,
		PayloadRaw: in.PayloadRaw, PayloadJSON: in.PayloadJSON, Timestamp: in.Timestamp,
	}, nil
}

// ListEventsForRun returns a run's event log in commit order.
func (s *Store) ListEventsForRun(runID string) ([]model.Event, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, ticket_id, event_type, payload_raw, payload_json, created_at
		 FROM agent_events WHERE run_id = ? ORDER BY created_at ASC`,
		runID,
	)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "list events", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		var raw, structured sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.TicketID, &e.EventType, &raw, &structured, &e.Timestamp); err != nil {
			return nil, storeerr.Wrap(storeerr.ErrBackend, "scan event", err)
		}
		if raw.Valid {
			e.PayloadRaw = &raw.String
		}
		if structured.Valid {
			e.PayloadJSON = &structured.String
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
