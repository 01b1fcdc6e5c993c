// Package model defines the domain types shared by the store, the reservation
// manager, the supervisor and the control-plane server, plus the pure
// lifecycle rules that govern ticket column transitions.
package model

import "time"

// State is a ticket's position on the board.
type State string

const (
	StateBacklog    State = "BACKLOG"
	StateReady      State = "READY"
	StateInProgress State = "IN_PROGRESS"
	StateBlocked    State = "BLOCKED"
	StateReview     State = "REVIEW"
	StateDone       State = "DONE"
)

// DefaultColumns is the canonical six-column layout every new board receives,
// in order.
var DefaultColumns = []State{StateBacklog, StateReady, StateInProgress, StateBlocked, StateReview, StateDone}

// ColumnDisplayName returns the human-facing column name for a state.
func ColumnDisplayName(s State) string {
	switch s {
	case StateBacklog:
		return "Backlog"
	case StateReady:
		return "Ready"
	case StateInProgress:
		return "In Progress"
	case StateBlocked:
		return "Blocked"
	case StateReview:
		return "Review"
	case StateDone:
		return "Done"
	default:
		return string(s)
	}
}

// Priority orders tickets within the Ready column.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank gives a numeric ordering, urgent first, for queue queries.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// AgentKind is the tagged variant of external coding-assistant CLIs the
// supervisor knows how to launch.
type AgentKind string

const (
	AgentCursor AgentKind = "cursor"
	AgentClaude AgentKind = "claude"
	AgentAny    AgentKind = "any"
)

// RunStatus is the lifecycle of one agent execution.
type RunStatus string

const (
	RunQueued   RunStatus = "queued"
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunError    RunStatus = "error"
	RunAborted  RunStatus = "aborted"
)

// CommentAuthor identifies who wrote a Comment.
type CommentAuthor string

const (
	AuthorUser  CommentAuthor = "user"
	AuthorAgent CommentAuthor = "agent"
	AuthorSys   CommentAuthor = "system"
)

// TaskKind enumerates the preset queued work items a ticket may carry,
// alongside a free-form custom kind.
type TaskKind string

const (
	TaskCustom        TaskKind = "custom"
	TaskSyncWithMain  TaskKind = "sync-with-main"
	TaskAddTests      TaskKind = "add-tests"
	TaskReviewPolish  TaskKind = "review-polish"
	TaskFixLint       TaskKind = "fix-lint"
)

// TaskStatus is the lifecycle of a TaskItem.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Board is a Kanban container of columns and tickets.
type Board struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	DefaultProjectID *string   `json:"defaultProjectId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	Columns          []Column  `json:"columns,omitempty"`
}

// Column is a named lane on a board.
type Column struct {
	ID       string `json:"id"`
	BoardID  string `json:"boardId"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	WIPLimit *int   `json:"wipLimit,omitempty"`
}

// Project is a freestanding filesystem-backed codebase referenced by boards
// and tickets but owned by neither.
type Project struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Path            string    `json:"path"`
	RequiresGit     bool      `json:"requiresGit"`
	HooksInstalled  []string  `json:"hooksInstalled,omitempty"`
	PreferredAgent  *AgentKind `json:"preferredAgent,omitempty"`
	RepoLockEnabled bool      `json:"repoLockEnabled"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Ticket is a unit of work tracked on a board.
type Ticket struct {
	ID             string     `json:"id"`
	BoardID        string     `json:"boardId"`
	ColumnID       string     `json:"columnId"`
	Title          string     `json:"title"`
	DescriptionMD  string     `json:"descriptionMd"`
	Priority       Priority   `json:"priority"`
	Labels         []string   `json:"labels,omitempty"`
	ProjectID      *string    `json:"projectId,omitempty"`
	AgentPref      *AgentKind `json:"agentPref,omitempty"`
	Model          *string    `json:"model,omitempty"`
	LockedByRunID  *string    `json:"lockedByRunId,omitempty"`
	LeaseExpiresAt *time.Time `json:"leaseExpiresAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// IsLocked reports whether the ticket currently carries a live lease.
func (t *Ticket) IsLocked() bool {
	return t.LockedByRunID != nil && t.LeaseExpiresAt != nil
}

// Run is one execution of an agent against a ticket.
type Run struct {
	ID           string     `json:"id"`
	TicketID     string     `json:"ticketId"`
	AgentKind    AgentKind  `json:"agentKind"`
	RepoPath     string     `json:"repoPath"`
	Status       RunStatus  `json:"status"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	ExitCode     *int       `json:"exitCode,omitempty"`
	SummaryMD    *string    `json:"summaryMd,omitempty"`
	MetadataJSON *string    `json:"metadataJson,omitempty"`
	ParentRunID  *string    `json:"parentRunId,omitempty"`
	Stage        *string    `json:"stage,omitempty"`
}

// Event is a single hook occurrence persisted against a run and ticket.
type Event struct {
	ID           string    `json:"id"`
	RunID        string    `json:"runId"`
	TicketID     string    `json:"ticketId"`
	EventType    string    `json:"eventType"`
	PayloadRaw   *string   `json:"payloadRaw,omitempty"`
	PayloadJSON  *string   `json:"payloadStructured,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Comment is a ticket-scoped note left by a user, an agent or the system.
type Comment struct {
	ID           string        `json:"id"`
	TicketID     string        `json:"ticketId"`
	Author       CommentAuthor `json:"author"`
	BodyMD       string        `json:"bodyMd"`
	MetadataJSON *string       `json:"metadataJson,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// RepoLock prevents two workers from scheduling concurrent runs against the
// same filesystem repo when projects share a path.
type RepoLock struct {
	ProjectID string    `json:"projectId"`
	RunID     string    `json:"runId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TaskItem is a queued work item attached to a ticket.
type TaskItem struct {
	ID       string     `json:"id"`
	TicketID string     `json:"ticketId"`
	Kind     TaskKind   `json:"kind"`
	Title    string     `json:"title"`
	Body     string     `json:"body,omitempty"`
	Status   TaskStatus `json:"status"`
	RunID    *string    `json:"runId,omitempty"`
}
