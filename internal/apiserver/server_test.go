package apiserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkanban/agentkanban/internal/broadcast"
	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/reservation"
	"github.com/agentkanban/agentkanban/internal/store"
)

type noopCanceller struct{}

func (noopCanceller) Cancel(string) bool { return false }

func newTestServer(t *testing.T, token string) (*Server, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	b := broadcast.New(nil)
	res := reservation.New(st, b, noopCanceller{}, nil)
	s := New(Config{Token: token}, st, res, b, nil)
	return s, st
}

func doRequest(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(buf))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		r.Header.Set("X-AgentKanban-Token", token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

func TestHealthRequiresNoAuth(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	w := doRequest(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestV1RoutesRequireToken(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	w := doRequest(t, s, http.MethodGet, "/v1/boards/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, s, http.MethodGet, "/v1/boards/", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, s, http.MethodGet, "/v1/boards/", "secret", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBoardTicketLifecycleOverHTTP(t *testing.T) {
	s, _ := newTestServer(t, "secret")

	w := doRequest(t, s, http.MethodPost, "/v1/boards/", "secret", map[string]string{"name": "launch"})
	require.Equal(t, http.StatusCreated, w.Code)
	var board model.Board
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))

	var readyCol string
	for _, c := range board.Columns {
		if c.Name == model.ColumnDisplayName(model.StateReady) {
			readyCol = c.ID
		}
	}
	require.NotEmpty(t, readyCol)

	w = doRequest(t, s, http.MethodPost, "/v1/tickets/", "secret", map[string]any{
		"boardId": board.ID, "columnId": readyCol, "title": "fix bug", "priority": "high",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var ticket model.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ticket))
	assert.Equal(t, "fix bug", ticket.Title)

	w = doRequest(t, s, http.MethodGet, "/v1/tickets/"+ticket.ID+"/", "secret", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQueueNextReturnsQueueEmptyWhenNoTicketsReady(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	w := doRequest(t, s, http.MethodPost, "/v1/queue/next", "secret", map[string]string{"board": "", "agentType": ""})
	require.Equal(t, http.StatusNotFound, w.Code)

	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, CodeQueueEmpty, env.Code)
}

func TestQueueNextClaimsHighestPriorityReadyTicket(t *testing.T) {
	s, st := newTestServer(t, "secret")

	board, err := st.CreateBoard("board")
	require.NoError(t, err)
	var readyCol string
	for _, c := range board.Columns {
		if c.Name == model.ColumnDisplayName(model.StateReady) {
			readyCol = c.ID
		}
	}
	_, err = st.CreateTicket(store.CreateTicketInput{
		BoardID: board.ID, ColumnID: readyCol, Title: "urgent", Priority: model.PriorityHigh,
	})
	require.NoError(t, err)

	w := doRequest(t, s, http.MethodPost, "/v1/queue/next", "secret", map[string]string{"board": board.ID})
	require.Equal(t, http.StatusOK, w.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.NotEmpty(t, out["runId"])
	assert.NotEmpty(t, out["ticketId"])
}
