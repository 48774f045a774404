// Package httpapi exposes the five HTTP routes of this service as plain
// net/http handlers over a *session.Service. Per spec.md's explicit
// non-goal, nothing here constructs an http.Server or registers routes
// on a mux; cmd/ripd wires these handlers onto a stdlib
// net/http.ServeMux using Go's {id}-wildcard path patterns.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/xLillium/rip/internal/command"
	"github.com/xLillium/rip/internal/frame"
	"github.com/xLillium/rip/internal/session"
)

// Handlers binds the five route handlers to a session service.
type Handlers struct {
	service *session.Service
}

// New returns Handlers backed by svc.
func New(svc *session.Service) *Handlers {
	return &Handlers{service: svc}
}

// CreateSession implements POST /sessions.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	id := h.service.CreateSession()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(struct {
		SessionID string `json:"session_id"`
	}{SessionID: id})
}

type inputBody struct {
	Input string `json:"input"`
}

// SendInput implements POST /sessions/{id}/input.
func (h *Handlers) SendInput(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body inputBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.SendInput(id, body.Input); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Events implements GET /sessions/{id}/events: it replays the session's
// authoritative frame list first, then streams live frames as an SSE
// body until the subscriber channel closes or the client disconnects.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	replayed, err := h.service.Replay(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	live, unsubscribe, err := h.service.Subscribe(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	defer unsubscribe()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, fr := range replayed {
		writeFrame(w, fr)
	}
	flusher.Flush()

	for {
		select {
		case fr, ok := <-live:
			if !ok {
				return
			}
			writeFrame(w, fr)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

type commandBody struct {
	Args []string `json:"args"`
	Raw  string   `json:"raw"`
}

// ExecuteCommand implements POST /sessions/{id}/commands/{name}: it runs
// a registered side-band command (C3) scoped to the session named by
// {id} and returns its textual result, a side channel distinct from the
// session's own frame stream.
func (h *Handlers) ExecuteCommand(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	name := r.PathValue("name")

	var body commandBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	result, err := h.service.ExecuteCommand(id, name, body.Args, body.Raw)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Result string `json:"result"`
	}{Result: result})
}

// Cancel implements POST /sessions/{id}/cancel.
func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Cancel(id); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeFrame writes fr as one SSE message: an event:<type> line, a
// data:<json> line, then a blank line, per spec.md §6's wire format.
func writeFrame(w http.ResponseWriter, fr frame.Frame) {
	data, err := json.Marshal(fr)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", fr.Kind.Type(), data)
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, command.ErrUnknownCommand):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
