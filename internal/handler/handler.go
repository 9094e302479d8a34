// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the core components.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/ecopoints/internal/apperr"
	"github.com/Shivanand-hulikatti/ecopoints/internal/enrollment"
	"github.com/Shivanand-hulikatti/ecopoints/internal/leaderboard"
	"github.com/Shivanand-hulikatti/ecopoints/internal/ledger"
	"github.com/Shivanand-hulikatti/ecopoints/internal/model"
	"github.com/Shivanand-hulikatti/ecopoints/internal/registry"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
)

// Handler holds all HTTP handlers for the API.
type Handler struct {
	registry    *registry.Registry
	enrollment  *enrollment.Manager
	ledger      *ledger.Ledger
	leaderboard *leaderboard.Aggregator
	store       repository.Store
	logger      *zap.Logger
}

// New constructs a Handler.
func New(
	reg *registry.Registry,
	enroll *enrollment.Manager,
	l *ledger.Ledger,
	board *leaderboard.Aggregator,
	store repository.Store,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		registry:    reg,
		enrollment:  enroll,
		ledger:      l,
		leaderboard: board,
		store:       store,
		logger:      logger,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the status and code carried by err. Internal
// failures are logged and reported without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	code := apperr.CodeOf(err)
	msg := err.Error()
	if !apperr.IsClient(err) {
		h.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		var appErr *apperr.Error
		if errors.As(err, &appErr) && code != apperr.CodeInternal {
			msg = appErr.Message
		} else {
			msg = "internal error"
		}
	}
	writeJSON(w, status, model.ErrorResponse{Error: msg, Code: string(code)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid request body: " + err.Error())
	}
	return nil
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.Validation("limit must be a positive integer")
	}
	return n, nil
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
