package apiserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentkanban/agentkanban/internal/broadcast"
	"github.com/agentkanban/agentkanban/internal/markdown"
	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/store"
)

// ticketDTO is model.Ticket plus a plain-text description preview, so
// clients don't have to carry a Markdown renderer to show a ticket summary.
type ticketDTO struct {
	*model.Ticket
	DescriptionPreview string `json:"descriptionPreview"`
}

func toTicketDTO(t *model.Ticket) ticketDTO {
	return ticketDTO{Ticket: t, DescriptionPreview: markdown.Preview(t.DescriptionMD)}
}

func toTicketDTOs(tickets []model.Ticket) []ticketDTO {
	out := make([]ticketDTO, len(tickets))
	for i := range tickets {
		out[i] = toTicketDTO(&tickets[i])
	}
	return out
}

func (s *Server) mountTicketRoutes(r chi.Router) {
	r.Route("/tickets", func(r chi.Router) {
		r.Post("/", s.handleCreateTicket)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetTicket)
			r.Patch("/", s.handleUpdateTicket)
			r.Delete("/", s.handleDeleteTicket)
			r.Post("/move", s.handleMoveTicket)
			r.Post("/reserve", s.handleReserveTicket)
			r.Get("/comments", s.handleListComments)
			r.Post("/comments", s.handleCreateComment)
			r.Get("/runs", s.handleListRunsForTicket)
		})
	})
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BoardID       string           `json:"boardId"`
		ColumnID      string           `json:"columnId"`
		Title         string           `json:"title"`
		DescriptionMD string           `json:"descriptionMd"`
		Priority      model.Priority   `json:"priority"`
		Labels        []string         `json:"labels"`
		ProjectID     *string          `json:"projectId"`
		AgentPref     *model.AgentKind `json:"agentPref"`
		Model         *string          `json:"model"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	ticket, err := s.store.CreateTicket(store.CreateTicketInput{
		BoardID: body.BoardID, ColumnID: body.ColumnID, Title: body.Title,
		DescriptionMD: body.DescriptionMD, Priority: body.Priority, Labels: body.Labels,
		ProjectID: body.ProjectID, AgentPref: body.AgentPref, Model: body.Model,
	})
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	s.broadcaster.Publish(broadcastLiveEvent(broadcast.TicketCreated, ticket.ID, "", ticket))
	Respond(w, http.StatusCreated, toTicketDTO(ticket))
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.store.GetTicket(chi.URLParam(r, "id"))
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	Respond(w, http.StatusOK, toTicketDTO(ticket))
}

func (s *Server) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var upd store.TicketUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	ticket, err := s.store.UpdateTicket(id, upd)
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	s.broadcaster.Publish(broadcastLiveEvent(broadcast.TicketUpdated, ticket.ID, "", ticket))
	Respond(w, http.StatusOK, toTicketDTO(ticket))
}

func (s *Server) handleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteTicket(id); err != nil {
		RespondStoreError(w, err)
		return
	}
	s.broadcaster.Publish(broadcastLiveEvent(broadcast.TicketDeleted, id, "", nil))
	w.WriteHeader(http.StatusNoContent)
}

// handleMoveTicket applies a user-intent move: it asks the lifecycle engine
// to classify the transition before the store writes anything.
func (s *Server) handleMoveTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		ColumnID string `json:"columnId"`
		State    string `json:"state"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	ticket, err := s.store.GetTicket(id)
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	board, err := s.store.GetBoard(ticket.BoardID)
	if err != nil {
		RespondStoreError(w, err)
		return
	}

	var targetColumnID string
	var targetState model.State
	if body.ColumnID != "" {
		targetColumnID = body.ColumnID
		for _, c := range board.Columns {
			if c.ID == body.ColumnID {
				if st, ok := model.ParseState(c.Name); ok {
					targetState = st
				}
			}
		}
	} else {
		targetState = modelStateOrDefault(body.State, "")
		for _, c := range board.Columns {
			if c.Name == model.ColumnDisplayName(targetState) {
				targetColumnID = c.ID
			}
		}
	}
	if targetColumnID == "" {
		RespondError(w, http.StatusBadRequest, CodeBadRequest, "unknown target column or state", "")
		return
	}

	currentState, err := s.store.TicketState(id)
	if err != nil {
		RespondStoreError(w, err)
		return
	}

	perm := model.CanTransition(currentState, targetState, ticket.IsLocked(), false)
	switch perm.Permission {
	case model.RequiresUnlock:
		RespondError(w, http.StatusConflict, CodeConflict, perm.Reason(), "")
		return
	case model.Denied:
		RespondError(w, http.StatusConflict, CodeConflict, perm.Reason(), "")
		return
	}

	if err := s.store.MoveTicket(id, targetColumnID); err != nil {
		RespondStoreError(w, err)
		return
	}
	s.broadcaster.Publish(broadcastLiveEvent(broadcast.TicketMoved, id, "", targetState))
	Respond(w, http.StatusOK, map[string]any{"ticketId": id, "state": targetState})
}

// handleReserveTicket lets an external caller reserve a specific ticket
// directly (bypassing the priority queue), for hook-driven workflows that
// already know which ticket they want.
func (s *Server) handleReserveTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		RunID string `json:"runId"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.RunID == "" {
		RespondError(w, http.StatusBadRequest, CodeBadRequest, "runId is required", "")
		return
	}

	expiry := time.Now().Add(s.reservation.LeaseLength())
	if err := s.store.ReserveTicket(id, body.RunID, expiry); err != nil {
		RespondStoreError(w, err)
		return
	}
	s.broadcaster.Publish(broadcastLiveEvent(broadcast.TicketLocked, id, body.RunID, nil))
	Respond(w, http.StatusOK, map[string]any{"ticketId": id, "runId": body.RunID, "lockExpiresAt": expiry})
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.store.ListCommentsForTicket(chi.URLParam(r, "id"))
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	Respond(w, http.StatusOK, comments)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Author       model.CommentAuthor `json:"author"`
		BodyMD       string              `json:"bodyMd"`
		MetadataJSON *string             `json:"metadataJson"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	comment, err := s.store.CreateComment(id, body.Author, body.BodyMD, body.MetadataJSON)
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	s.broadcaster.Publish(broadcastLiveEvent(broadcast.CommentAdded, id, "", comment))
	Respond(w, http.StatusCreated, comment)
}

func (s *Server) handleListRunsForTicket(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRunsForTicket(chi.URLParam(r, "id"))
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	Respond(w, http.StatusOK, runs)
}
