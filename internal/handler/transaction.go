package handler

import (
	"log/slog"
	"net/http"

	"github.com/CandyToyBox/AllowanceApp/internal/ledger"
)

type TransactionHandler struct {
	ledger *ledger.Ledger
	logger *slog.Logger
}

func NewTransactionHandler(l *ledger.Ledger, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{ledger: l, logger: logger}
}

type transactionRequest struct {
	ChildID         int64   `json:"childId"`
	Amount          int64   `json:"amount"`
	Description     string  `json:"description"`
	TransactionHash *string `json:"transactionHash"`
}

// Create records a signed amount: negative amounts spend from the balance,
// positive amounts credit it.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	t, err := h.ledger.Record(r.Context(), ledger.Entry{
		ChildID:         req.ChildID,
		Amount:          req.Amount,
		Description:     req.Description,
		TransactionHash: req.TransactionHash,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
