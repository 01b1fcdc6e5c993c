package store

const migration1 = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY NOT NULL,
	name TEXT NOT NULL,
	path TEXT NOT NULL UNIQUE,
	requires_git INTEGER NOT NULL DEFAULT 1,
	hooks_installed_json TEXT NOT NULL DEFAULT '[]',
	preferred_agent TEXT CHECK(preferred_agent IN ('cursor','claude','any')),
	repo_lock_enabled INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_projects_path ON projects(path);

CREATE TABLE IF NOT EXISTS boards (
	id TEXT PRIMARY KEY NOT NULL,
	name TEXT NOT NULL,
	default_project_id TEXT REFERENCES projects(id) ON DELETE SET NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS columns (
	id TEXT PRIMARY KEY NOT NULL,
	board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	wip_limit INTEGER,
	UNIQUE(board_id, position)
);
CREATE INDEX IF NOT EXISTS idx_columns_board ON columns(board_id);

-- locked_by_run_id intentionally has no FK: runs reference tickets, so a
-- ticket->run FK would be circular. Integrity is enforced in the reservation
-- manager, not the schema.
CREATE TABLE IF NOT EXISTS tickets (
	id TEXT PRIMARY KEY NOT NULL,
	board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
	column_id TEXT NOT NULL REFERENCES columns(id) ON DELETE RESTRICT,
	title TEXT NOT NULL,
	description_md TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT 'medium' CHECK(priority IN ('low','medium','high','urgent')),
	labels_json TEXT NOT NULL DEFAULT '[]',
	project_id TEXT REFERENCES projects(id) ON DELETE SET NULL,
	agent_pref TEXT CHECK(agent_pref IN ('cursor','claude','any')),
	model TEXT,
	locked_by_run_id TEXT,
	lock_expires_at TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_tickets_board ON tickets(board_id);
CREATE INDEX IF NOT EXISTS idx_tickets_column ON tickets(column_id);
CREATE INDEX IF NOT EXISTS idx_tickets_project ON tickets(project_id);
CREATE INDEX IF NOT EXISTS idx_tickets_locked ON tickets(locked_by_run_id) WHERE locked_by_run_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS comments (
	id TEXT PRIMARY KEY NOT NULL,
	ticket_id TEXT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
	author_type TEXT NOT NULL CHECK(author_type IN ('user','agent','system')),
	body_md TEXT NOT NULL,
	metadata_json TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_comments_ticket ON comments(ticket_id);

CREATE TABLE IF NOT EXISTS agent_runs (
	id TEXT PRIMARY KEY NOT NULL,
	ticket_id TEXT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
	agent_type TEXT NOT NULL CHECK(agent_type IN ('cursor','claude')),
	repo_path TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'queued' CHECK(status IN ('queued','running','finished','error','aborted')),
	started_at TEXT NOT NULL DEFAULT (datetime('now')),
	ended_at TEXT,
	exit_code INTEGER,
	summary_md TEXT,
	metadata_json TEXT,
	parent_run_id TEXT REFERENCES agent_runs(id) ON DELETE CASCADE,
	stage TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_ticket ON agent_runs(ticket_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON agent_runs(status);

CREATE TABLE IF NOT EXISTS agent_events (
	id TEXT PRIMARY KEY NOT NULL,
	run_id TEXT NOT NULL REFERENCES agent_runs(id) ON DELETE CASCADE,
	ticket_id TEXT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
	event_type TEXT NOT NULL,
	payload_raw TEXT,
	payload_json TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_events_run ON agent_events(run_id);
CREATE INDEX IF NOT EXISTS idx_events_ticket ON agent_events(ticket_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON agent_events(event_type);
`

const migration2 = `
CREATE TABLE IF NOT EXISTS repo_locks (
	project_id TEXT PRIMARY KEY NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	locked_by_run_id TEXT NOT NULL,
	lock_expires_at TEXT NOT NULL,
	locked_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_repo_locks_expires ON repo_locks(lock_expires_at);

CREATE TABLE IF NOT EXISTS config (
	key TEXT PRIMARY KEY NOT NULL,
	value TEXT NOT NULL
);
`

const migration3 = `
CREATE TABLE IF NOT EXISTS task_items (
	id TEXT PRIMARY KEY NOT NULL,
	ticket_id TEXT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending','running','completed','failed')),
	run_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_task_items_ticket ON task_items(ticket_id);
`
