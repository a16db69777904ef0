package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sales-assistant/internal/domain"
	"sales-assistant/internal/repository"
	"sales-assistant/pkg/logging"
)

type adminHandler struct {
	leads  LeadAdmin
	logger *logging.Logger
}

func (a *adminHandler) listLeads(w http.ResponseWriter, r *http.Request) {
	status := domain.LeadStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "INVALID_STATUS", "unknown lead status")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	leads, err := a.leads.List(r.Context(), status, limit)
	if err != nil {
		a.logger.Error("failed to list leads", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "")
		return
	}
	if leads == nil {
		leads = []domain.LeadRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func (a *adminHandler) updateLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status domain.LeadStatus `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil || !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "INVALID_STATUS", "unknown lead status")
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.leads.UpdateStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, repository.ErrLeadNotFound) {
			writeError(w, http.StatusNotFound, "LEAD_NOT_FOUND", "")
			return
		}
		a.logger.Error("failed to update lead", "lead_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": req.Status})
}
