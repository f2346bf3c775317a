package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/efreitasn/tradingcore/internal/domain"
	"github.com/efreitasn/tradingcore/internal/engine"
	"github.com/efreitasn/tradingcore/internal/events"
	"github.com/go-chi/chi/v5"
)

// ShareHandler exposes price discovery and matching runs per share.
type ShareHandler struct {
	discovery *engine.PriceDiscovery
	matcher   *engine.Matcher
	logger    *slog.Logger
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(discovery *engine.PriceDiscovery, matcher *engine.Matcher, logger *slog.Logger) *ShareHandler {
	return &ShareHandler{discovery: discovery, matcher: matcher, logger: logger}
}

// matchAllRequest is the JSON request body for POST /match.
type matchAllRequest struct {
	ShareIDs []string `json:"share_ids"`
}

// matchAllResponse reports the settled runs of POST /match. Error is set
// when at least one share failed; the runs listed still committed.
type matchAllResponse struct {
	Settlements []events.Settlement `json:"settlements"`
	Error       *string             `json:"error"`
}

// Equilibrium handles GET /shares/{share_id}/equilibrium.
func (h *ShareHandler) Equilibrium(w http.ResponseWriter, r *http.Request) {
	shareID := chi.URLParam(r, "share_id")

	result, err := h.discovery.Execute(r.Context(), shareID)
	if err != nil {
		logUnexpected(h.logger, r, err)
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// Match handles POST /shares/{share_id}/match. It runs one matching pass
// and returns the settled trades, an empty list when nothing crossed.
func (h *ShareHandler) Match(w http.ResponseWriter, r *http.Request) {
	shareID := chi.URLParam(r, "share_id")

	trades, err := h.matcher.Execute(r.Context(), shareID)
	if err != nil {
		logUnexpected(h.logger, r, err)
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, events.NewSettlement(shareID, trades))
}

// MatchAll handles POST /match. Shares are matched concurrently.
func (h *ShareHandler) MatchAll(w http.ResponseWriter, r *http.Request) {
	var req matchAllRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.ShareIDs) == 0 {
		WriteError(w, http.StatusBadRequest, "validation_error", "share_ids must not be empty")
		return
	}

	results, err := h.matcher.MatchAll(r.Context(), req.ShareIDs)

	resp := matchAllResponse{Settlements: make([]events.Settlement, 0, len(results))}
	for _, id := range req.ShareIDs {
		trades, ok := results[id]
		if !ok {
			continue
		}
		resp.Settlements = append(resp.Settlements, events.NewSettlement(id, trades))
		// Duplicate ids in the request settle once.
		delete(results, id)
	}

	if err == nil {
		WriteJSON(w, http.StatusOK, resp)
		return
	}

	logUnexpected(h.logger, r, err)
	if len(resp.Settlements) == 0 {
		writeDomainError(w, err)
		return
	}
	msg := "An unexpected error occurred"
	if domain.IsValidation(err) || domain.IsNotFound(err) || errors.Is(err, domain.ErrMatchInProgress) {
		msg = err.Error()
	}
	resp.Error = &msg
	WriteJSON(w, http.StatusMultiStatus, resp)
}
