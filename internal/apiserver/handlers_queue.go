package apiserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/storeerr"
)

func (s *Server) mountQueueRoutes(r chi.Router) {
	r.Route("/queue", func(r chi.Router) {
		r.Post("/next", s.handleQueueNext)
		r.Get("/status", s.handleQueueStatus)
	})
}

// handleQueueNext is the worker-facing claim endpoint: it asks the
// reservation manager for the highest-priority eligible Ready ticket and
// reserves it atomically.
func (s *Server) handleQueueNext(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Board     string          `json:"board"`
		AgentType model.AgentKind `json:"agentType"`
		RepoPath  string          `json:"repoPath"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	claim, err := s.reservation.Claim(body.Board, body.AgentType, body.RepoPath)
	if err != nil {
		if errors.Is(err, storeerr.ErrQueueEmpty) {
			RespondError(w, http.StatusNotFound, CodeQueueEmpty, "no eligible ready ticket", "")
			return
		}
		RespondStoreError(w, err)
		return
	}

	Respond(w, http.StatusOK, map[string]any{
		"runId":                 claim.RunID,
		"ticketId":              claim.Ticket.ID,
		"lockExpiresAt":         claim.LeaseExpiresAt,
		"heartbeatIntervalSecs": claim.HeartbeatIntervalSecs,
	})
}

// handleQueueStatus is a cross-board view: per-board ready/in-progress
// counts plus the totals a dashboard or CLI would poll.
func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	boards, err := s.store.ListBoards()
	if err != nil {
		RespondStoreError(w, err)
		return
	}

	type boardStatus struct {
		BoardID         string `json:"boardId"`
		BoardName       string `json:"boardName"`
		ReadyCount      int    `json:"readyCount"`
		InProgressCount int    `json:"inProgressCount"`
	}

	out := make([]boardStatus, 0, len(boards))
	var totalReady, totalInProgress int
	for _, b := range boards {
		full, err := s.store.GetBoard(b.ID)
		if err != nil {
			RespondStoreError(w, err)
			return
		}
		tickets, err := s.store.ListTicketsForBoard(b.ID)
		if err != nil {
			RespondStoreError(w, err)
			return
		}

		colState := make(map[string]model.State, len(full.Columns))
		for _, c := range full.Columns {
			if st, ok := model.ParseState(c.Name); ok {
				colState[c.ID] = st
			}
		}

		var ready, inProgress int
		for _, t := range tickets {
			switch colState[t.ColumnID] {
			case model.StateReady:
				ready++
			case model.StateInProgress:
				inProgress++
			}
		}
		totalReady += ready
		totalInProgress += inProgress

		out = append(out, boardStatus{
			BoardID: b.ID, BoardName: b.Name,
			ReadyCount: ready, InProgressCount: inProgress,
		})
	}

	Respond(w, http.StatusOK, map[string]any{
		"boards":          out,
		"readyCount":      totalReady,
		"inProgressCount": totalInProgress,
	})
}
