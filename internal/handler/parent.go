package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/CandyToyBox/AllowanceApp/internal/events"
	"github.com/CandyToyBox/AllowanceApp/internal/store"
	"github.com/CandyToyBox/AllowanceApp/internal/task"
	"github.com/CandyToyBox/AllowanceApp/internal/validate"
)

type ParentHandler struct {
	parents  *store.ParentStore
	children *store.ChildStore
	tasks    *task.Manager
	events   events.Publisher
	logger   *slog.Logger
}

func NewParentHandler(ps *store.ParentStore, cs *store.ChildStore, tm *task.Manager, pub events.Publisher, logger *slog.Logger) *ParentHandler {
	return &ParentHandler{parents: ps, children: cs, tasks: tm, events: pub, logger: logger}
}

type parentRequest struct {
	Username      string  `json:"username"`
	Password      string  `json:"password"`
	Email         *string `json:"email"`
	Name          *string `json:"name"`
	WalletAddress *string `json:"walletAddress"`
}

type walletRequest struct {
	WalletAddress string `json:"walletAddress"`
}

func (h *ParentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req parentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	fields := append(accountFields(req.Username, req.Password, req.Name, req.WalletAddress),
		validate.F("email", req.Email, validate.Email))
	if err := validate.Check("invalid parent data", fields...); err != nil {
		writeError(w, h.logger, err)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	parent, err := h.parents.Create(r.Context(), store.CreateParentParams{
		Username:      req.Username,
		PasswordHash:  hash,
		Email:         req.Email,
		Name:          req.Name,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.events.Publish(r.Context(), events.New(events.EntityParent, events.ActionCreated, parent.ID, nil))
	h.logger.Info("parent created", "parent_id", parent.ID)

	writeJSON(w, http.StatusCreated, parent)
}

func (h *ParentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	parent, err := h.parents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if parent == nil {
		writeError(w, h.logger, apperr.NotFound("parent", id))
		return
	}
	writeJSON(w, http.StatusOK, parent)
}

func (h *ParentHandler) GetByWallet(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if err := validate.Check("invalid wallet address", validate.F("address", address, validate.WalletAddress)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	parent, err := h.parents.GetByWalletAddress(r.Context(), address)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if parent == nil {
		writeError(w, h.logger, apperr.NotFound("parent with wallet", address))
		return
	}
	writeJSON(w, http.StatusOK, parent)
}

func (h *ParentHandler) UpdateWallet(w http.ResponseWriter, r *http.Request) {
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

	parent, err := h.parents.UpdateWallet(r.Context(), id, req.WalletAddress)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if parent == nil {
		writeError(w, h.logger, apperr.NotFound("parent", id))
		return
	}

	h.events.Publish(r.Context(), events.New(events.EntityParent, events.ActionWalletUpdated, parent.ID, nil))

	writeJSON(w, http.StatusOK, parent)
}

func (h *ParentHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	children, err := h.children.ListByParent(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

// ListTasks accepts an optional ?status= filter.
func (h *ParentHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	tasks, err := h.tasks.ListByParent(r.Context(), id, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}
