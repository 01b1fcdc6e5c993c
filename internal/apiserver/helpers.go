package apiserver

import (
	"encoding/json"
	"net/http"

	"github.com/agentkanban/agentkanban/internal/broadcast"
)

// decodeJSON decodes the request body into dst, writing a BAD_REQUEST
// envelope and returning false on failure. An empty body is treated as a
// zero-value dst, not an error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		RespondError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

// broadcastLiveEvent builds a LiveEvent for the common single-ticket and/or
// single-run case.
func broadcastLiveEvent(eventType, ticketID, runID string, data any) broadcast.LiveEvent {
	return broadcast.LiveEvent{Type: eventType, TicketID: ticketID, RunID: runID, Data: data}
}
