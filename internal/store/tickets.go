package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/storeerr"
)

// CreateTicketInput is the input to CreateTicket.
type CreateTicketInput struct {
	BoardID       string
	ColumnID      string
	Title         string
	DescriptionMD string
	Priority      model.Priority
	Labels        []string
	ProjectID     *string
	AgentPref     *model.AgentKind
	Model         *string
}

// CreateTicket assigns an id, stamps timestamps, and validates that the
// column belongs to the board.
func (s *Store) CreateTicket(in CreateTicketInput) (*model.Ticket, error) {
	if in.Title == "" {
		return nil, storeerr.Wrap(storeerr.ErrValidation, "ticket title required", nil)
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}

	var boardOfColumn string
	row := s.db.QueryRow(`SELECT board_id FROM columns WHERE id = ?`, in.ColumnID)
	if err := row.Scan(&boardOfColumn); err != nil {
		if err == sql.ErrNoRows {
			return nil, storeerr.Wrap(storeerr.ErrValidation, "column "+in.ColumnID+" does not exist", nil)
		}
		return nil, storeerr.Wrap(storeerr.ErrBackend, "lookup column", err)
	}
	if boardOfColumn != in.BoardID {
		return nil, storeerr.Wrap(storeerr.ErrValidation, "column does not belong to board", nil)
	}

	labelsJSON, err := json.Marshal(in.Labels)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrValidation, "marshal labels", err)
	}

	now := time.Now().UTC()
	id := uuid.NewString()

	var agentPref, proj, modelOverride any
	if in.AgentPref != nil {
		agentPref = string(*in.AgentPref)
	}
	if in.ProjectID != nil {
		proj = *in.ProjectID
	}
	if in.Model != nil {
		modelOverride = *in.Model
	}

	_, err = s.db.Exec(
		`INSERT INTO tickets (id, board_id, column_id, title, description_md, priority, labels_json, project_id, agent_pref, model, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.BoardID, in.ColumnID, in.Title, in.DescriptionMD, string(in.Priority), string(labelsJSON), proj, agentPref, modelOverride, now, now,
	)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "insert ticket", err)
	}

	return s.GetTicket(id)
}

func scanTicket(row interface {
	Scan(dest ...any) error
}) (*model.Ticket, error) {
	var t model.Ticket
	var labelsJSON string
	var projID, agentPref, modelOverride, lockedBy, lockExpires sql.NullString
	err := row.Scan(&t.ID, &t.BoardID, &t.ColumnID, &t.Title, &t.DescriptionMD, &t.Priority, &labelsJSON,
		&projID, &agentPref, &modelOverride, &lockedBy, &lockExpires, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	var labels []string
	if labelsJSON != "" {
		_ = json.Unmarshal([]byte(labelsJSON), &labels)
	}
	t.Labels = labels
	if projID.Valid {
		t.ProjectID = &projID.String
	}
	if agentPref.Valid {
		k := model.AgentKind(agentPref.String)
		t.AgentPref = &k
	}
	if modelOverride.Valid {
		t.Model = &modelOverride.String
	}
	if lockedBy.Valid {
		t.LockedByRunID = &lockedBy.String
	}
	if lockExpires.Valid {
		ts, err := time.Parse(time.RFC3339, lockExpires.String)
		if err == nil {
			t.LeaseExpiresAt = &ts
		}
	}
	return &t, nil
}

const ticketColumns = `id, board_id, column_id, title, description_md, priority, labels_json, project_id, agent_pref, model, locked_by_run_id, lock_expires_at, created_at, updated_at`

// GetTicket fetches a single ticket by id.
func (s *Store) GetTicket(ticketID string) (*model.Ticket, error) {
	row := s.db.QueryRow(`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, ticketID)
	t, err := scanTicket(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storeerr.Wrap(storeerr.ErrNotFound, "ticket "+ticketID, nil)
		}
		return nil, storeerr.Wrap(storeerr.ErrBackend, "get ticket", err)
	}
	return t, nil
}

// ListTicketsForBoard returns every ticket on a board.
func (s *Store) ListTicketsForBoard(boardID string) ([]model.Ticket, error) {
	rows, err := s.db.Query(`SELECT `+ticketColumns+` FROM tickets WHERE board_id = ? ORDER BY created_at ASC`, boardID)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "list tickets", err)
	}
	defer rows.Close()

	var out []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, storeerr.Wrap(storeerr.ErrBackend, "scan ticket", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// MoveTicket validates the target column belongs to the same board and
// updates updated_at. It does not enforce lifecycle rules; callers must
// consult the lifecycle engine first.
func (s *Store) MoveTicket(ticketID, columnID string) error {
	t, err := s.GetTicket(ticketID)
	if err != nil {
		return err
	}
	var boardOfColumn string
	row := s.db.QueryRow(`SELECT board_id FROM columns WHERE id = ?`, columnID)
	if err := row.Scan(&boardOfColumn); err != nil {
		if err == sql.ErrNoRows {
			return storeerr.Wrap(storeerr.ErrValidation, "column "+columnID+" does not exist", nil)
		}
		return storeerr.Wrap(storeerr.ErrBackend, "lookup column", err)
	}
	if boardOfColumn != t.BoardID {
		return storeerr.Wrap(storeerr.ErrValidation, "target column not on ticket's board", nil)
	}

	now := time.Now().UTC()
	res, err := s.db.Exec(`UPDATE tickets SET column_id = ?, updated_at = ? WHERE id = ?`, columnID, now, ticketID)
	if err != nil {
		return storeerr.Wrap(storeerr.ErrBackend, "move ticket", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeerr.Wrap(storeerr.ErrNotFound, "ticket "+ticketID, nil)
	}
	return nil
}

// TicketState resolves a ticket's current column to its canonical State.
func (s *Store) TicketState(ticketID string) (model.State, error) {
	t, err := s.GetTicket(ticketID)
	if err != nil {
		return "", err
	}
	return s.columnState(t.ColumnID)
}

// MoveTicketToState moves a ticket to the column matching a canonical state
// on its own board.
func (s *Store) MoveTicketToState(ticketID string, state model.State) error {
	t, err := s.GetTicket(ticketID)
	if err != nil {
		return err
	}
	colID, err := s.columnByState(t.BoardID, state)
	if err != nil {
		return err
	}
	return s.MoveTicket(ticketID, colID)
}

// TicketUpdate is a partial update to a ticket's mutable fields.
type TicketUpdate struct {
	Title         *string          `json:"title"`
	DescriptionMD *string          `json:"descriptionMd"`
	Priority      *model.Priority  `json:"priority"`
	Labels        *[]string        `json:"labels"`
	ProjectID     *string          `json:"projectId"`
	AgentPref     *model.AgentKind `json:"agentPref"`
	Model         *string          `json:"model"`
}

// UpdateTicket applies a partial update and stamps updated_at.
func (s *Store) UpdateTicket(ticketID string, upd TicketUpdate) (*model.Ticket, error) {
	if _, err := s.GetTicket(ticketID); err != nil {
		return nil, err
	}

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.DescriptionMD != nil {
		sets = append(sets, "description_md = ?")
		args = append(args, *upd.DescriptionMD)
	}
	if upd.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*upd.Priority))
	}
	if upd.Labels != nil {
		b, err := json.Marshal(*upd.Labels)
		if err != nil {
			return nil, storeerr.Wrap(storeerr.ErrValidation, "marshal labels", err)
		}
		sets = append(sets, "labels_json = ?")
		args = append(args, string(b))
	}
	if upd.ProjectID != nil {
		sets = append(sets, "project_id = ?")
		args = append(args, *upd.ProjectID)
	}
	if upd.AgentPref != nil {
		sets = append(sets, "agent_pref = ?")
		args = append(args, string(*upd.AgentPref))
	}
	if upd.Model != nil {
		sets = append(sets, "model = ?")
		args = append(args, *upd.Model)
	}

	query := "UPDATE tickets SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE id = ?"
	args = append(args, ticketID)

	if _, err := s.db.Exec(query, args...); err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "update ticket", err)
	}
	return s.GetTicket(ticketID)
}

// DeleteTicket removes a ticket; comments, runs, events and task items
// cascade via foreign keys.
func (s *Store) DeleteTicket(ticketID string) error {
	res, err := s.db.Exec(`DELETE FROM tickets WHERE id = ?`, ticketID)
	if err != nil {
		return storeerr.Wrap(storeerr.ErrBackend, "delete ticket", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeerr.Wrap(storeerr.ErrNotFound, "ticket "+ticketID, nil)
	}
	return nil
}

// ReserveTicket is the transactional CAS at the heart of the reservation
// protocol: it succeeds iff the ticket exists and its current holder is
// either unset or its lease has already expired.
func (s *Store) ReserveTicket(ticketID, runID string, leaseExpiry time.Time) error {
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE tickets SET locked_by_run_id = ?, lock_expires_at = ?, updated_at = ?
		 WHERE id = ? AND (locked_by_run_id IS NULL OR lock_expires_at <= ?)`,
		runID, leaseExpiry.Format(time.RFC3339), now, ticketID, now.Format(time.RFC3339),
	)
	if err != nil {
		return storeerr.Wrap(storeerr.ErrBackend, "reserve ticket", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.GetTicket(ticketID); err != nil {
			return err
		}
		return storeerr.Wrap(storeerr.ErrConflict, "ticket "+ticketID+" already leased", nil)
	}
	return nil
}

// RenewLease extends a ticket's lease iff runID is the current holder.
func (s *Store) RenewLease(ticketID, runID string, newExpiry time.Time) error {
	res, err := s.db.Exec(
		`UPDATE tickets SET lock_expires_at = ?, updated_at = ? WHERE id = ? AND locked_by_run_id = ?`,
		newExpiry.Format(time.RFC3339), time.Now().UTC(), ticketID, runID,
	)
	if err != nil {
		return storeerr.Wrap(storeerr.ErrBackend, "renew lease", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeerr.Wrap(storeerr.ErrLockExpired, "run "+runID+" is not the current holder of "+ticketID, nil)
	}
	return nil
}

// ReleaseLock clears the holder iff runID currently holds the lease;
// idempotent if already cleared.
func (s *Store) ReleaseLock(ticketID, runID string) error {
	res, err := s.db.Exec(
		`UPDATE tickets SET locked_by_run_id = NULL, lock_expires_at = NULL, updated_at = ?
		 WHERE id = ? AND locked_by_run_id = ?`,
		time.Now().UTC(), ticketID, runID,
	)
	if err != nil {
		return storeerr.Wrap(storeerr.ErrBackend, "release lock", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// Idempotent: if already unlocked (or held by someone else) this is a
	// no-op success only when it is already unlocked.
	t, err := s.GetTicket(ticketID)
	if err != nil {
		return err
	}
	if t.LockedByRunID == nil {
		return nil
	}
	return storeerr.Wrap(storeerr.ErrLockExpired, "run "+runID+" is not the current holder of "+ticketID, nil)
}

// ExpiredLease pairs a ticket with the run whose lease on it has expired.
type ExpiredLease struct {
	TicketID string
	RunID    string
}

// ExpireStaleLeases returns every (ticket, run) pair whose lease is past
// `now`. It does not modify any state; the caller (the sweeper) decides
// policy.
func (s *Store) ExpireStaleLeases(now time.Time) ([]ExpiredLease, error) {
	rows, err := s.db.Query(
		`SELECT id, locked_by_run_id FROM tickets WHERE locked_by_run_id IS NOT NULL AND lock_expires_at <= ?`,
		now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "expire stale leases", err)
	}
	defer rows.Close()

	var out []ExpiredLease
	for rows.Next() {
		var e ExpiredLease
		if err := rows.Scan(&e.TicketID, &e.RunID); err != nil {
			return nil, storeerr.Wrap(storeerr.ErrBackend, "scan expired lease", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// NextReadyTicket selects the highest-priority eligible ticket in the Ready
// column of any board matching boardFilter (empty = any board) whose lease
// is null/expired and whose agent preference matches agentKindFilter (empty
// string = any). Results are ordered priority desc, then created_at asc.
func (s *Store) NextReadyTicket(boardFilter string, agentKindFilter model.AgentKind) (*model.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t
		JOIN columns c ON c.id = t.column_id
		WHERE c.name = 'Ready'
		AND (t.locked_by_run_id IS NULL OR t.lock_expires_at <= ?)`
	args := []any{time.Now().UTC().Format(time.RFC3339)}

	if boardFilter != "" {
		query += " AND t.board_id = ?"
		args = append(args, boardFilter)
	}
	if agentKindFilter != "" && agentKindFilter != model.AgentAny {
		query += " AND (t.agent_pref IS NULL OR t.agent_pref = 'any' OR t.agent_pref = ?)"
		args = append(args, string(agentKindFilter))
	}
	query += ` ORDER BY
		CASE t.priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END ASC,
		t.created_at ASC
		LIMIT 1`

	row := s.db.QueryRow(query, args...)
	t, err := scanTicket(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storeerr.Wrap(storeerr.ErrQueueEmpty, "no eligible ready ticket", nil)
		}
		return nil, storeerr.Wrap(storeerr.ErrBackend, "next ready ticket", err)
	}
	return t, nil
}
