package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/storeerr"
)

// CreateProjectInput is the input to CreateProject.
type CreateProjectInput struct {
	Name            string
	Path            string
	RequiresGit     bool
	PreferredAgent  *model.AgentKind
	RepoLockEnabled bool
}

// CreateProject registers a freestanding filesystem-backed project.
func (s *Store) CreateProject(in CreateProjectInput) (*model.Project, error) {
	if in.Name == "" || in.Path == "" {
		return nil, storeerr.Wrap(storeerr.ErrValidation, "project name and path required", nil)
	}
	id := uuid.NewString()
	now := time.Now().UTC()

	var pref any
	if in.PreferredAgent != nil {
		pref = string(*in.PreferredAgent)
	}

	_, err := s.db.Exec(
		`INSERT INTO projects (id, name, path, requires_git, preferred_agent, repo_lock_enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, in.Name, in.Path, in.RequiresGit, pref, in.RepoLockEnabled, now,
	)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "insert project", err)
	}
	return s.GetProject(id)
}

// GetProject fetches a project by id.
func (s *Store) GetProject(projectID string) (*model.Project, error) {
	var p model.Project
	var pref sql.NullString
	row := s.db.QueryRow(
		`SELECT id, name, path, requires_git, preferred_agent, repo_lock_enabled, created_at FROM projects WHERE id = ?`,
		projectID,
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Path, &p.RequiresGit, &pref, &p.RepoLockEnabled, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, storeerr.Wrap(storeerr.ErrNotFound, "project "+projectID, nil)
		}
		return nil, storeerr.Wrap(storeerr.ErrBackend, "get project", err)
	}
	if pref.Valid {
		k := model.AgentKind(pref.String)
		p.PreferredAgent = &k
	}
	return &p, nil
}

// ListProjects returns every registered project.
func (s *Store) ListProjects() ([]model.Project, error) {
	rows, err := s.db.Query(`SELECT id, name, path, requires_git, preferred_agent, repo_lock_enabled, created_at FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "list projects", err)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		var pref sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &p.RequiresGit, &pref, &p.RepoLockEnabled, &p.CreatedAt); err != nil {
			return nil, storeerr.Wrap(storeerr.ErrBackend, "scan project", err)
		}
		if pref.Valid {
			k := model.AgentKind(pref.String)
			p.PreferredAgent = &k
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProjectRepoLock toggles whether the reservation manager should
// require a repo-level lock before claiming tickets against this project.
func (s *Store) UpdateProjectRepoLock(projectID string, enabled bool) error {
	res, err := s.db.Exec(`UPDATE projects SET repo_lock_enabled = ? WHERE id = ?`, enabled, projectID)
	if err != nil {
		return storeerr.Wrap(storeerr.ErrBackend, "update project repo lock", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeerr.Wrap(storeerr.ErrNotFound, "project "+projectID, nil)
	}
	return nil
}

// ProjectUpdate is a partial update to a project's mutable fields.
type ProjectUpdate struct {
	Name            *string
	Path            *string
	RequiresGit     *bool
	PreferredAgent  *model.AgentKind
	RepoLockEnabled *bool
}

// UpdateProject applies a partial update to a project's name, path,
// RequiresGit flag, or preferred agent.
func (s *Store) UpdateProject(projectID string, upd ProjectUpdate) (*model.Project, error) {
	if _, err := s.GetProject(projectID); err != nil {
		return nil, err
	}

	sets := []string{}
	args := []any{}

	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Path != nil {
		sets = append(sets, "path = ?")
		args = append(args, *upd.Path)
	}
	if upd.RequiresGit != nil {
		sets = append(sets, "requires_git = ?")
		args = append(args, *upd.RequiresGit)
	}
	if upd.PreferredAgent != nil {
		sets = append(sets, "preferred_agent = ?")
		args = append(args, string(*upd.PreferredAgent))
	}
	if upd.RepoLockEnabled != nil {
		sets = append(sets, "repo_lock_enabled = ?")
		args = append(args, *upd.RepoLockEnabled)
	}
	if len(sets) == 0 {
		return s.GetProject(projectID)
	}

	query := "UPDATE projects SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE id = ?"
	args = append(args, projectID)

	if _, err := s.db.Exec(query, args...); err != nil {
		return nil, storeerr.Wrap(storeerr.ErrBackend, "update project", err)
	}
	return s.GetProject(projectID)
}
