package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/CandyToyBox/AllowanceApp/internal/events"
	"github.com/CandyToyBox/AllowanceApp/internal/ledger"
	"github.com/CandyToyBox/AllowanceApp/internal/model"
	"github.com/CandyToyBox/AllowanceApp/internal/store"
	"github.com/CandyToyBox/AllowanceApp/internal/task"
	"github.com/CandyToyBox/AllowanceApp/internal/validate"
)

type ChildHandler struct {
	children *store.ChildStore
	parents  *store.ParentStore
	tasks    *task.Manager
	ledger   *ledger.Ledger
	events   events.Publisher
	logger   *slog.Logger
}

func NewChildHandler(cs *store.ChildStore, ps *store.ParentStore, tm *task.Manager, l *ledger.Ledger, pub events.Publisher, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{children: cs, parents: ps, tasks: tm, ledger: l, events: pub, logger: logger}
}

type childRequest struct {
	ParentID         int64   `json:"parentId"`
	Username         string  `json:"username"`
	Password         string  `json:"password"`
	Name             *string `json:"name"`
	WalletAddress    *string `json:"walletAddress"`
	AllowanceBalance int64   `json:"allowanceBalance"`
	SpendLimit       *int64  `json:"spendLimit"`
}

func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	fields := append(accountFields(req.Username, req.Password, req.Name, req.WalletAddress),
		validate.F("parentId", req.ParentID, validate.Required, validate.Positive),
		validate.F("allowanceBalance", req.AllowanceBalance, validate.NonNegative, validate.Max(model.MaxAmountCents)),
		validate.F("spendLimit", req.SpendLimit, validate.NonNegative, validate.Max(model.MaxAmountCents)),
	)
	if err := validate.Check("invalid child data", fields...); err != nil {
		writeError(w, h.logger, err)
		return
	}

	parent, err := h.parents.GetByID(r.Context(), req.ParentID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if parent == nil {
		writeError(w, h.logger, apperr.NotFound("parent", req.ParentID))
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	child, err := h.children.Create(r.Context(), store.CreateChildParams{
		ParentID:         req.ParentID,
		Username:         req.Username,
		PasswordHash:     hash,
		Name:             req.Name,
		WalletAddress:    req.WalletAddress,
		AllowanceBalance: req.AllowanceBalance,
		SpendLimit:       req.SpendLimit,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.events.Publish(r.Context(), events.New(events.EntityChild, events.ActionCreated, child.ID, map[string]any{
		"parentId": child.ParentID,
	}))
	h.logger.Info("child created", "child_id", child.ID, "parent_id", child.ParentID)

	writeJSON(w, http.StatusCreated, child)
}

func (h *ChildHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	child, err := h.children.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if child == nil {
		writeError(w, h.logger, apperr.NotFound("child", id))
		return
	}
	writeJSON(w, http.StatusOK, child)
}

func (h *ChildHandler) GetByWallet(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if err := validate.Check("invalid wallet address", validate.F("address", address, validate.WalletAddress)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	child, err := h.children.GetByWalletAddress(r.Context(), address)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if child == nil {
		writeError(w, h.logger, apperr.NotFound("child with wallet", address))
		return
	}
	writeJSON(w, http.StatusOK, child)
}

func (h *ChildHandler) UpdateWallet(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req walletRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Check("invalid wallet address",
		validate.F("walletAddress", req.WalletAddress, validate.Required, validate.WalletAddress),
	); err != nil {
		writeError(w, h.logger, err)
		return
	}

	child, err := h.children.UpdateWallet(r.Context(), id, req.WalletAddress)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if child == nil {
		writeError(w, h.logger, apperr.NotFound("child", id))
		return
	}

	h.events.Publish(r.Context(), events.New(events.EntityChild, events.ActionWalletUpdated, child.ID, nil))

	writeJSON(w, http.StatusOK, child)
}

func (h *ChildHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	tasks, err := h.tasks.ListByChild(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *ChildHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	txs, err := h.ledger.Transactions(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// Balance reports the stored balance next to the ledger total.
func (h *ChildHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	b, err := h.ledger.Reconcile(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
