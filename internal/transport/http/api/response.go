// Package api defines the envelope every endpoint answers with. The
// persistence engine on the client side decodes this shape verbatim, so the
// wire fields here and in the engine's remote client must stay in lockstep.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", "err", err)
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}

// Conflict is the lifecycle rejection: the store's guarded updates refused to
// touch a record whose status forbids the operation. The engine surfaces it
// to the user rather than retrying.
func Conflict(w http.ResponseWriter, code, message, requestID string) {
	Fail(w, http.StatusConflict, code, message, requestID)
}

// Forbidden rejects a reviewer outside the subject's direct reporting line.
func Forbidden(w http.ResponseWriter, code, message, requestID string) {
	Fail(w, http.StatusForbidden, code, message, requestID)
}

// ServerError hides the underlying failure behind a generic message; the
// detail goes to the log, not the wire.
func ServerError(w http.ResponseWriter, code, message, requestID string) {
	Fail(w, http.StatusInternalServerError, code, message, requestID)
}
