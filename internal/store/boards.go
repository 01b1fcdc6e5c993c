package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/storeerr"
)

// CreateBoard creates a board and its six canonical columns in one
// transaction.
func (s *Store) CreateBoard(name string) (*model.Board, error) {
	if name == "" {
		return nil, storeerr.Wrap(storeerr.ErrValidation, "board name required", nil)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "begin create board", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	id := uuid.NewString()
	if _, err := tx.Exec(
		`INSERT INTO boards (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, name, now, now,
	); err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "insert board", err)
	}

	cols := make([]model.Column, 0, len(model.DefaultColumns))
	for i, state := range model.DefaultColumns {
		colID := uuid.NewString()
		if _, err := tx.Exec(
			`INSERT INTO columns (id, board_id, name, position) VALUES (?, ?, ?, ?)`,
			colID, id, model.ColumnDisplayName(state), i,
		); err != nil {
			return nil, storeerr.Wrap(storeerr.ErrBackend, "insert column", err)
		}
		cols = append(cols, model.Column{ID: colID, BoardID: id, Name: model.ColumnDisplayName(state), Position: i})
	}

	if err := tx.Commit(); err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "commit create board", err)
	}

	return &model.Board{ID: id, Name: name, CreatedAt: now, UpdatedAt: now, Columns: cols}, nil
}

// GetBoard fetches a board with its columns.
func (s *Store) GetBoard(boardID string) (*model.Board, error) {
	var b model.Board
	row := s.db.QueryRow(`SELECT id, name, default_project_id, created_at, updated_at FROM boards WHERE id = ?`, boardID)
	var defProj sql.NullString
	if err := row.Scan(&b.ID, &b.Name, &defProj, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, storeerr.Wrap(storeerr.ErrNotFound, "board "+boardID, nil)
		}
		return nil, storeerr.Wrap(storeerr.ErrBackend, "get board", err)
	}
	if defProj.Valid {
		b.DefaultProjectID = &defProj.String
	}

	cols, err := s.GetColumns(boardID)
	if err != nil {
		return nil, err
	}
	b.Columns = cols
	return &b, nil
}

// ListBoards returns every board without columns populated.
func (s *Store) ListBoards() ([]model.Board, error) {
	rows, err := s.db.Query(`SELECT id, name, default_project_id, created_at, updated_at FROM boards ORDER BY created_at ASC`)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "list boards", err)
	}
	defer rows.Close()

	var out []model.Board
	for rows.Next() {
		var b model.Board
		var defProj sql.NullString
		if err := rows.Scan(&b.ID, &b.Name, &defProj, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, storeerr.Wrap(storeerr.ErrBackend, "scan board", err)
		}
		if defProj.Valid {
			b.DefaultProjectID = &defProj.String
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetColumns returns a board's columns ordered by position.
func (s *Store) GetColumns(boardID string) ([]model.Column, error) {
	rows, err := s.db.Query(
		`SELECT id, board_id, name, position, wip_limit FROM columns WHERE board_id = ? ORDER BY position ASC`,
		boardID,
	)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "get columns", err)
	}
	defer rows.Close()

	var out []model.Column
	for rows.Next() {
		var c model.Column
		var wip sql.NullInt64
		if err := rows.Scan(&c.ID, &c.BoardID, &c.Name, &c.Position, &wip); err != nil {
			return nil, storeerr.Wrap(storeerr.ErrBackend, "scan column", err)
		}
		if wip.Valid {
			v := int(wip.Int64)
			c.WIPLimit = &v
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// columnState resolves a column row to its canonical State by display name.
func (s *Store) columnState(columnID string) (model.State, error) {
	var name string
	row := s.db.QueryRow(`SELECT name FROM columns WHERE id = ?`, columnID)
	if err := row.Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return "", storeerr.Wrap(storeerr.ErrNotFound, "column "+columnID, nil)
		}
		return "", storeerr.Wrap(storeerr.ErrBackend, "get column", err)
	}
	state, ok := model.ParseState(name)
	if !ok {
		return "", storeerr.Wrap(storeerr.ErrBackend, "column has unrecognized name "+name, nil)
	}
	return state, nil
}

// columnByState looks up the id of the column on a board matching a
// canonical state, by display name.
func (s *Store) columnByState(boardID string, state model.State) (string, error) {
	row := s.db.QueryRow(`SELECT id FROM columns WHERE board_id = ? AND name = ?`, boardID, model.ColumnDisplayName(state))
	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return "", storeerr.Wrap(storeerr.ErrNotFound, "column "+string(state)+" on board "+boardID, nil)
		}
		return "", storeerr.Wrap(storeerr.ErrBackend, "get column by state", err)
	}
	return id, nil
}
