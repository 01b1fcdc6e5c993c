package apiserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentkanban/agentkanban/internal/broadcast"
	"github.com/agentkanban/agentkanban/internal/model"
	"github.com/agentkanban/agentkanban/internal/store"
)

func (s *Server) mountRunRoutes(r chi.Router) {
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", s.handleCreateRun)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetRun)
			r.Patch("/", s.handleUpdateRun)
			r.Post("/heartbeat", s.handleHeartbeat)
			r.Post("/release", s.handleReleaseRun)
			r.Get("/events", s.handleListEvents)
			r.Post("/events", s.handleAppendEvent)
		})
	})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TicketID  string          `json:"ticketId"`
		AgentKind model.AgentKind `json:"agentKind"`
		RepoPath  string          `json:"repoPath"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	run, err := s.store.CreateRun(store.CreateRunInput{TicketID: body.TicketID, AgentKind: body.AgentKind, RepoPath: body.RepoPath})
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	s.broadcaster.Publish(broadcastLiveEvent(broadcast.RunStarted, body.TicketID, run.ID, run))
	Respond(w, http.StatusCreated, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	Respond(w, http.StatusOK, run)
}

func (s *Server) handleUpdateRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Status    *model.RunStatus `json:"status"`
		ExitCode  *int             `json:"exitCode"`
		SummaryMD *string          `json:"summaryMd"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Status != nil {
		if err := s.store.UpdateRunStatus(id, *body.Status, body.ExitCode, body.SummaryMD); err != nil {
			RespondStoreError(w, err)
			return
		}
	}
	run, err := s.store.GetRun(id)
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	s.broadcaster.Publish(broadcastLiveEvent(broadcast.RunUpdated, run.TicketID, run.ID, run))
	Respond(w, http.StatusOK, run)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	run, err := s.store.GetRun(runID)
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	expiry, err := s.reservation.Heartbeat(run.TicketID, runID)
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	Respond(w, http.StatusOK, map[string]any{"ok": true, "runId": runID, "lockExpiresAt": expiry})
}

func (s *Server) handleReleaseRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	run, err := s.store.GetRun(runID)
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	if err := s.reservation.Release(run.TicketID, runID); err != nil {
		RespondStoreError(w, err)
		return
	}
	Respond(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEventsForRun(chi.URLParam(r, "id"))
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	Respond(w, http.StatusOK, events)
}

func (s *Server) handleAppendEvent(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	var body struct {
		TicketID  string `json:"ticketId"`
		EventType string `json:"eventType"`
		Payload   *struct {
			Raw        *string          `json:"raw"`
			Structured *json.RawMessage `json:"structured"`
		} `json:"payload"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	input := store.AppendEventInput{RunID: runID, TicketID: body.TicketID, EventType: body.EventType}
	if body.Payload != nil {
		input.PayloadRaw = body.Payload.Raw
		if body.Payload.Structured != nil {
			s := string(*body.Payload.Structured)
			input.PayloadJSON = &s
		}
	}

	event, err := s.store.AppendEvent(input)
	if err != nil {
		RespondStoreError(w, err)
		return
	}
	s.broadcaster.Publish(broadcastLiveEvent(broadcast.EventReceived, event.TicketID, event.RunID, event))
	Respond(w, http.StatusCreated, event)
}
