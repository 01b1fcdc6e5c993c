package apiserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentkanban/agentkanban/internal/model"
)

func (s *Server) mountBoardRoutes(r chi.Router) {
	r.Route("/boards", func(r chi.Router) {
		r.Post("/", s.handleCreateBoard)
		r.Get("/", s.handleListBoards)
		r.Get("/{id}", s.handleGetBoard)
		r.Get("/{id}/columns", s.handleGetColumns)
		r.Get("/{id}/tickets", s.handleListTicketsForBoard)
	})
}

func (s *Server) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	board, err := s.store.CreateBoard(body.Name)
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	Respond(w, http.StatusCreated, board)
}

func (s *Server) handleListBoards(w http.ResponseWriter, _ *http.Request) {
	boards, err := s.store.ListBoards()
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	Respond(w, http.StatusOK, boards)
}

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	board, err := s.store.GetBoard(chi.URLParam(r, "id"))
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	Respond(w, http.StatusOK, board)
}

func (s *Server) handleGetColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := s.store.GetColumns(chi.URLParam(r, "id"))
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	Respond(w, http.StatusOK, cols)
}

func (s *Server) handleListTicketsForBoard(w http.ResponseWriter, r *http.Request) {
	tickets, err := s.store.ListTicketsForBoard(chi.URLParam(r, "id"))
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	Respond(w, http.StatusOK, toTicketDTOs(tickets))
}

// modelStateOrDefault parses an optional state query param, falling back to
// model.StateReady when absent or invalid.
func modelStateOrDefault(raw string, fallback model.State) model.State {
	if raw == "" {
		return fallback
	}
	if st, ok := model.ParseState(raw); ok {
		return st
	}
	return fallback
}
