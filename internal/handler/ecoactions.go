package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/ecopoints/internal/leaderboard"
	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
)

// MyActions handles GET /eco-actions/my-actions
// Returns the caller's ledger entries, most recent first.
func (h *Handler) MyActions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entries, err := h.ledger.History(r.Context(), ActorID(r.Context()), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if entries == nil {
		entries = []model.LedgerEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

// RecordAction handles POST /eco-actions
func (h *Handler) RecordAction(w http.ResponseWriter, r *http.Request) {
	var req model.RecordActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	entry, pts, err := h.ledger.RecordAction(r.Context(), ActorID(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry, "points": pts})
}

// CorrectAction handles POST /eco-actions/{id}/correct
func (h *Handler) CorrectAction(w http.ResponseWriter, r *http.Request) {
	var req model.CorrectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	entry, pts, err := h.ledger.Correct(r.Context(), chi.URLParam(r, "id"), req.Reason, ActorID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry, "points": pts})
}

// Ranking handles GET /eco-actions/ranking?period=all|month|week&limit=N
func (h *Handler) Ranking(w http.ResponseWriter, r *http.Request) {
	window, err := leaderboard.ParseWindow(r.URL.Query().Get("period"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entries, err := h.leaderboard.Rank(r.Context(), leaderboard.Request{Window: window, Limit: limit})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// Stats handles GET /eco-actions/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.Stats(r.Context(), ActorID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// UserPoints handles GET /users/{id}/points
func (h *Handler) UserPoints(w http.ResponseWriter, r *http.Request) {
	pts, err := h.ledger.Points(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pts)
}
