package store

import (
	"time"

	"github.com/agentkanban/agentkanban/internal/storeerr"
)

// AcquireRepoLock is the CAS for the optional project-level lock: it
// succeeds iff no lock row exists for projectID, or the existing one has
// expired.
func (s *Store) AcquireRepoLock(projectID, runID string, expiry time.Time) error {
	now := time.Now().UTC()

	res, err := s.db.Exec(
		`UPDATE repo_locks SET locked_by_run_id = ?, lock_expires_at = ?, locked_at = ?
		 WHERE project_id = ? AND lock_expires_at <= ?`,
		runID, expiry.Format(time.RFC3339), now, projectID, now.Format(time.RFC3339),
	)
	if err != nil {
		return storeerr.Wrap(storeerr.ErrBackend, "acquire repo lock", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// No existing row to expire-and-steal; try a fresh insert.
	_, err = s.db.Exec(
		`INSERT INTO repo_locks (project_id, locked_by_run_id, lock_expires_at, locked_at) VALUES (?, ?, ?, ?)`,
		projectID, runID, expiry.Format(time.RFC3339), now,
	)
	if err == nil {
		return nil
	}
	return storeerr.Wrap(storeerr.ErrConflict, "repo lock for project "+projectID+" already held", err)
}

// ReleaseRepoLock clears a project's repo lock iff runID currently holds it.
func (s *Store) ReleaseRepoLock(projectID, runID string) error {
	res, err := s.db.Exec(`DELETE FROM repo_locks WHERE project_id = ? AND locked_by_run_id = ?`, projectID, runID)
	if err != nil {
		return storeerr.Wrap(storeerr.ErrBackend, "release repo lock", err)
	}
	_, _ = res.RowsAffected()
	return nil
}
