package reservation

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkanban/agentkanban/internal/broadcast"
	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/store"
	"github.com/agentkanban/agentkanban/internal/storeerr"
)

type noopCanceller struct{ cancelled []string }

func (c *noopCanceller) Cancel(runID string) bool {
	c.cancelled = append(c.cancelled, runID)
	return true
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *store.Store, *noopCanceller) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	b := broadcast.New(nil)
	c := &noopCanceller{}
	m := New(st, b, c, nil, opts...)
	return m, st, c
}

func readyTicket(t *testing.T, st *store.Store, priority model.Priority) *model.Ticket {
	t.Helper()
	board, err := st.CreateBoard("board")
	require.NoError(t, err)
	var readyCol string
	for _, c := range board.Columns {
		if c.Name == model.ColumnDisplayName(model.StateReady) {
			readyCol = c.ID
		}
	}
	ticket, err := st.CreateTicket(store.CreateTicketInput{
		BoardID: board.ID, ColumnID: readyCol, Title: "t", Priority: priority,
	})
	require.NoError(t, err)
	return ticket
}

func TestClaimMovesTicketToInProgress(t *testing.T) {
	m, st, _ := newTestManager(t)
	ticket := readyTicket(t, st, model.PriorityHigh)

	result, err := m.Claim(ticket.BoardID, model.AgentClaude, "/repo")
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, ticket.ID, result.Ticket.ID)

	state, err := st.TicketState(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateInProgress, state)
}

func TestClaimReturnsQueueEmptyWithNoReadyTickets(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.Claim("", model.AgentClaude, "/repo")
	assert.ErrorIs(t, err, storeerr.ErrQueueEmpty)
}

func TestClaimTwiceOnSameTicketSecondFindsNothing(t *testing.T) {
	m, st, _ := newTestManager(t)
	ticket := readyTicket(t, st, model.PriorityHigh)

	_, err := m.Claim(ticket.BoardID, model.AgentClaude, "/repo")
	require.NoError(t, err)

	_, err = m.Claim(ticket.BoardID, model.AgentClaude, "/repo")
	assert.ErrorIs(t, err, storeerr.ErrQueueEmpty)
}

func TestHeartbeatExtendsLease(t *testing.T) {
	clock := NewFrozenClock(time.Now().UTC())
	m, st, _ := newTestManager(t, WithClock(clock), WithLeaseLength(time.Minute))
	ticket := readyTicket(t, st, model.PriorityHigh)

	result, err := m.Claim(ticket.BoardID, model.AgentClaude, "/repo")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	expiry, err := m.Heartbeat(ticket.ID, result.RunID)
	require.NoError(t, err)
	assert.True(t, expiry.After(result.LeaseExpiresAt))
}

func TestHeartbeatByWrongRunFails(t *testing.T) {
	m, st, _ := newTestManager(t)
	ticket := readyTicket(t, st, model.PriorityHigh)

	_, err := m.Claim(ticket.BoardID, model.AgentClaude, "/repo")
	require.NoError(t, err)

	_, err = m.Heartbeat(ticket.ID, "not-the-holder")
	assert.Error(t, err)
}

func TestReleaseClearsLockWithoutMovingTicket(t *testing.T) {
	m, st, _ := newTestManager(t)
	ticket := readyTicket(t, st, model.PriorityHigh)

	result, err := m.Claim(ticket.BoardID, model.AgentClaude, "/repo")
	require.NoError(t, err)

	require.NoError(t, m.Release(ticket.ID, result.RunID))

	refreshed, err := st.GetTicket(ticket.ID)
	require.NoError(t, err)
	assert.False(t, refreshed.IsLocked())
	state, err := st.TicketState(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateInProgress, state)
}

func TestSweeperReclaimsExpiredLeaseBackToReady(t *testing.T) {
	clock := NewFrozenClock(time.Now().UTC())
	m, st, canceller := newTestManager(t, WithClock(clock), WithLeaseLength(time.Minute))
	ticket := readyTicket(t, st, model.PriorityHigh)

	result, err := m.Claim(ticket.BoardID, model.AgentClaude, "/repo")
	require.NoError(t, err)
	require.NoError(t, m.MarkRunning(result.RunID))

	clock.Advance(2 * time.Minute)
	m.sweepOnce()

	assert.Contains(t, canceller.cancelled, result.RunID)

	state, err := st.TicketState(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateReady, state)

	refreshed, err := st.GetTicket(ticket.ID)
	require.NoError(t, err)
	assert.False(t, refreshed.IsLocked())
}

func TestSweeperIgnoresUnexpiredLeases(t *testing.T) {
	clock := NewFrozenClock(time.Now().UTC())
	m, st, _ := newTestManager(t, WithClock(clock), WithLeaseLength(time.Hour))
	ticket := readyTicket(t, st, model.PriorityHigh)

	_, err := m.Claim(ticket.BoardID, model.AgentClaude, "/repo")
	require.NoError(t, err)

	m.sweepOnce()

	state, err := st.TicketState(ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateInProgress, state)
}
