package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
)

// CreateEvent handles POST /events
// The caller becomes the organizer.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	event, err := h.registry.Create(r.Context(), ActorID(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events?status=&limit=
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var status *model.EventStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := model.EventStatus(raw)
		status = &s
	}
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	events, err := h.registry.List(r.Context(), status, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// TransitionEvent handles PATCH /events/{id}/status
func (h *Handler) TransitionEvent(w http.ResponseWriter, r *http.Request) {
	var req model.TransitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	event, err := h.registry.Transition(r.Context(), chi.URLParam(r, "id"), req.Status, ActorID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// Redistribute handles POST /events/{id}/redistribute
func (h *Handler) Redistribute(w http.ResponseWriter, r *http.Request) {
	res, err := h.registry.Redistribute(r.Context(), chi.URLParam(r, "id"), ActorID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event_id": res.EventID,
		"credited": len(res.Credited),
		"skipped":  len(res.Skipped),
	})
}

// Join handles POST /events/{id}/join
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	rec, err := h.enrollment.Join(r.Context(), chi.URLParam(r, "id"), ActorID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// Leave handles POST /events/{id}/leave
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.enrollment.Leave(r.Context(), chi.URLParam(r, "id"), ActorID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListParticipants handles GET /events/{id}/participants
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	roster, err := h.enrollment.Roster(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if roster == nil {
		roster = []model.EnrollmentRecord{}
	}

	writeJSON(w, http.StatusOK, roster)
}
