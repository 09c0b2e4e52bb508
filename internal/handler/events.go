package handler

import (
	"net/http"

	"portal/internal/session"
)

// EventStream upgrades a request to a live event connection.
type EventStream interface {
	Serve(w http.ResponseWriter, r *http.Request, sessionID string)
}

// EventsHandler attaches signed-in admins to the live KYC event stream.
type EventsHandler struct {
	hub EventStream
}

func NewEventsHandler(hub EventStream) *EventsHandler {
	return &EventsHandler{hub: hub}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	h.hub.Serve(w, r, sess.ID)
}
