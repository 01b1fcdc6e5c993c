package apiserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/agentkanban/agentkanban/internal/storeerr"
)

// ErrorCode is one member of the closed set of error codes the control
// plane returns in its error envelope.
type ErrorCode string

const (
	CodeNotFound    ErrorCode = "NOT_FOUND"
	CodeBadRequest  ErrorCode = "BAD_REQUEST"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeConflict    ErrorCode = "CONFLICT"
	CodeDatabase    ErrorCode = "DATABASE_ERROR"
	CodeInternal    ErrorCode = "INTERNAL_ERROR"
	CodeQueueEmpty  ErrorCode = "QUEUE_EMPTY"
	CodeLockExpired ErrorCode = "LOCK_EXPIRED"
	CodeValidation  ErrorCode = "VALIDATION_ERROR"
)

// ErrorEnvelope is the standard JSON shape for every non-2xx response.
type ErrorEnvelope struct {
	Error   string    `json:"error"`
	Code    ErrorCode `json:"code"`
	Details string    `json:"details,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("apiserver: failed to encode response", "error", err)
	}
}

// RespondError writes the standard error envelope.
func RespondError(w http.ResponseWriter, status int, code ErrorCode, message string, details string) {
	Respond(w, status, ErrorEnvelope{Error: message, Code: code, Details: details})
}

// httpStatusFor maps an ErrorCode to its HTTP status.
func httpStatusFor(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeConflict, CodeLockExpired:
		return http.StatusConflict
	case CodeQueueEmpty:
		return http.StatusNotFound
	case CodeDatabase, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// RespondStoreError classifies a store/reservation error by its sentinel
// and writes the matching envelope.
func RespondStoreError(w http.ResponseWriter, err error) {
	var code ErrorCode
	switch {
	case errors.Is(err, storeerr.ErrNotFound):
		code = CodeNotFound
	case errors.Is(err, storeerr.ErrValidation):
		code = CodeValidation
	case errors.Is(err, storeerr.ErrConflict):
		code = CodeConflict
	case errors.Is(err, storeerr.ErrQueueEmpty):
		code = CodeQueueEmpty
	case errors.Is(err, storeerr.ErrLockExpired):
		code = CodeLockExpired
	case errors.Is(err, storeerr.ErrBackend):
		code = CodeDatabase
	default:
		code = CodeInternal
	}
	RespondError(w, httpStatusFor(code), code, err.Error(), "")
}
