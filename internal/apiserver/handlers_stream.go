package apiserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentkanban/agentkanban/internal/broadcast"
)

// keepAliveInterval bounds how long a client's connection can sit idle
// before a comment line is sent to defeat intermediary read timeouts.
const keepAliveInterval = 30 * time.Second

func (s *Server) mountStreamRoutes(r chi.Router) {
	r.Route("/stream", func(r chi.Router) {
		r.Get("/", s.handleStream)
		r.Get("/filtered", s.handleFilteredStream)
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.streamWithFilter(w, r, broadcast.Filter{})
}

// handleFilteredStream narrows the subscription with conjunctive query
// parameters: types is a comma-separated list of event types, ticketId and
// runId restrict to a single entity.
func (s *Server) handleFilteredStream(w http.ResponseWriter, r *http.Request) {
	f := broadcast.Filter{
		TicketID: r.URL.Query().Get("ticketId"),
		RunID:    r.URL.Query().Get("runId"),
	}
	if raw := r.URL.Query().Get("types"); raw != "" {
		f.Types = strings.Split(raw, ",")
	}
	s.streamWithFilter(w, r, f)
}

func (s *Server) streamWithFilter(w http.ResponseWriter, r *http.Request, f broadcast.Filter) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.broadcaster.Subscribe(f)
	defer sub.Close()

	fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			payload, err := broadcast.Marshal(ev)
			if err != nil {
				s.logger.Warn("failed to marshal live event", "type", ev.Type, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}
