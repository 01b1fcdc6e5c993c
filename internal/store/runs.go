package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/storeerr"
)

// CreateRunInput is the input to CreateRun.
type CreateRunInput struct {
	TicketID  string
	AgentKind model.AgentKind
	RepoPath  string
}

// CreateRun inserts a new Run row in status Queued.
func (s *Store) CreateRun(in CreateRunInput) (*model.Run, error) {
	if _, err := s.GetTicket(in.TicketID); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO agent_runs (id, ticket_id, agent_type, repo_path, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, in.TicketID, string(in.AgentKind), in.RepoPath, string(model.RunQueued), now,
	)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "insert run", err)
	}
	return s.GetRun(id)
}

func scanRun(row interface {
	Scan(dest ...any) error
}) (*model.Run, error) {
	var r model.Run
	var endedAt, summary, metadata, parentRunID, stage sql.NullString
	var exitCodeInt sql.NullInt64
	err := row.Scan(&r.ID, &r.TicketID, &r.AgentKind, &r.RepoPath, &r.Status, &r.StartedAt,
		&endedAt, &exitCodeInt, &summary, &metadata, &parentRunID, &stage)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		ts, err := time.Parse(time.RFC3339, endedAt.String)
		if err == nil {
			r.EndedAt = &ts
		}
	}
	if exitCodeInt.Valid {
		v := int(exitCodeInt.Int64)
		r.ExitCode = &v
	}
	if summary.Valid {
		r.SummaryMD = &summary.String
	}
	if metadata.Valid {
		r.MetadataJSON = &metadata.String
	}
	if parentRunID.Valid {
		r.ParentRunID = &parentRunID.String
	}
	if stage.Valid {
		r.Stage = &stage.String
	}
	return &r, nil
}

const runColumns = `id, ticket_id, agent_type, repo_path, status, started_at, ended_at, exit_code, summary_md, metadata_json, parent_run_id, stage`

// GetRun fetches a single run by id.
func (s *Store) GetRun(runID string) (*model.Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM agent_runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storeerr.Wrap(storeerr.ErrNotFound, "run "+runID, nil)
		}
		return nil, storeerr.Wrap(storeerr.ErrBackend, "get run", err)
	}
	return r, nil
}

// ListRunsForTicket returns a ticket's run history, most recent first.
func (s *Store) ListRunsForTicket(ticketID string) ([]model.Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM agent_runs WHERE ticket_id = ? ORDER BY started_at DESC`, ticketID)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "list runs", err)
	}
	defer rows.Close()

	var out []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, storeerr.Wrap(storeerr.ErrBackend, "scan run", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateRunStatus transitions a run's status, stamping ended_at when the
// status is terminal.
func (s *Store) UpdateRunStatus(runID string, status model.RunStatus, exitCode *int, summaryMD *string) error {
	var endedAt any
	if status == model.RunFinished || status == model.RunError || status == model.RunAborted {
		endedAt = time.Now().UTC().Format(time.RFC3339)
	}
	var exitCodeArg, summaryArg any
	if exitCode != nil {
		exitCodeArg = *exitCode
	}
	if summaryMD != nil {
		summaryArg = *summaryMD
	}
	res, err := s.db.Exec(
		`UPDATE agent_runs SET status = ?, ended_at = ?, exit_code = ?, summary_md = ? WHERE id = ?`,
		string(status), endedAt, exitCodeArg, summaryArg, runID,
	)
	if err != nil {
		return storeerr.Wrap(storeerr.ErrBackend, "update run status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeerr.Wrap(storeerr.ErrNotFound, "run "+runID, nil)
	}
	return nil
}

// UpdateRunMetadata persists optional structured artifacts (branch name,
// diff stats, ...) as a JSON blob.
func (s *Store) UpdateRunMetadata(runID, metadataJSON string) error {
	res, err := s.db.Exec(`UPDATE agent_runs SET metadata_json = ? WHERE id = ?`, metadataJSON, runID)
	if err != nil {
		return storeerr.Wrap(storeerr.ErrBackend, "update run metadata", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeerr.Wrap(storeerr.ErrNotFound, "run "+runID, nil)
	}
	return nil
}
