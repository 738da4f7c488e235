package handler

import (
	"log/slog"
	"net/http"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/CandyToyBox/AllowanceApp/internal/metrics"
	"github.com/CandyToyBox/AllowanceApp/internal/settlement"
)

type CollectHandler struct {
	collector settlement.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewCollectHandler(c settlement.Collector, m *metrics.Metrics, logger *slog.Logger) *CollectHandler {
	return &CollectHandler{collector: c, metrics: m, logger: logger}
}

type collectRequest struct {
	SpendPermission *settlement.SpendPermission `json:"spendPermission"`
	Signature       string                      `json:"signature"`
}

func (h *CollectHandler) Collect(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.SpendPermission == nil || req.Signature == "" {
		fields := map[string]string{}
		if req.SpendPermission == nil {
			fields["spendPermission"] = "is required"
		}
		if req.Signature == "" {
			fields["signature"] = "is required"
		}
		writeError(w, h.logger, apperr.Validation("missing spendPermission or signature", fields))
		return
	}

	res, err := h.collector.Collect(r.Context(), *req.SpendPermission, req.Signature)
	h.metrics.Collection(err == nil)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
