package store

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/storeerr"
)

// CreateTaskItem queues a custom or preset work item against a ticket.
func (s *Store) CreateTaskItem(ticketID string, kind model.TaskKind, title, body string) (*model.TaskItem, error) {
	if _, err := s.GetTicket(ticketID); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO task_items (id, ticket_id, kind, title, body, status) VALUES (?, ?, ?, ?, ?, ?)`,
		id, ticketID, string(kind), title, body, string(model.TaskPending),
	)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "insert task item", err)
	}
	return &model.TaskItem{ID: id, TicketID: ticketID, Kind: kind, Title: title, Body: body, Status: model.TaskPending}, nil
}

// ListTaskItems returns a ticket's queued work items.
func (s *Store) ListTaskItems(ticketID string) ([]model.TaskItem, error) {
	rows, err := s.db.Query(`SELECT id, ticket_id, kind, title, body, status, run_id FROM task_items WHERE ticket_id = ?`, ticketID)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "list task items", err)
	}
	defer rows.Close()

	var out []model.TaskItem
	for rows.Next() {
		var t model.TaskItem
		var runID sql.NullString
		if err := rows.Scan(&t.ID, &t.TicketID, &t.Kind, &t.Title, &t.Body, &t.Status, &runID); err != nil {
			return nil, storeerr.Wrap(storeerr.ErrBackend, "scan task item", err)
		}
		if runID.Valid {
			t.RunID = &runID.String
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTaskItemStatus transitions a task item's status, optionally
// attaching the run that is executing it.
func (s *Store) UpdateTaskItemStatus(taskID string, status model.TaskStatus, runID *string) error {
	var run any
	if runID != nil {
		run = *runID
	}
	res, err := s.db.Exec(`UPDATE task_items SET status = ?, run_id = COALESCE(?, run_id) WHERE id = ?`, string(status), run, taskID)
	if err != nil {
		return storeerr.Wrap(storeerr.ErrBackend, "update task item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeerr.Wrap(storeerr.ErrNotFound, "task item "+taskID, nil)
	}
	return nil
}
