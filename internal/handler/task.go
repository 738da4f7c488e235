package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/CandyToyBox/AllowanceApp/internal/task"
)

type TaskHandler struct {
	tasks  *task.Manager
	logger *slog.Logger
}

func NewTaskHandler(tm *task.Manager, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tm, logger: logger}
}

type taskRequest struct {
	ParentID     int64   `json:"parentId"`
	ChildID      int64   `json:"childId"`
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	RewardAmount int64   `json:"rewardAmount"`
	DueDate      *string `json:"dueDate"`
}

type proofRequest struct {
	ProofImageURL string `json:"proofImageUrl"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var due *time.Time
	if req.DueDate != nil && *req.DueDate != "" {
		t, err := parseFlexibleTime(*req.DueDate)
		if err != nil {
			writeError(w, h.logger, apperr.Validation("invalid task data",
				map[string]string{"dueDate": "must be a date (YYYY-MM-DD) or RFC 3339 time"}))
			return
		}
		due = &t
	}

	t, err := h.tasks.Create(r.Context(), task.CreateInput{
		ParentID:     req.ParentID,
		ChildID:      req.ChildID,
		Title:        req.Title,
		Description:  req.Description,
		RewardAmount: req.RewardAmount,
		DueDate:      due,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	t, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req proofRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	t, err := h.tasks.SubmitProof(r.Context(), id, req.ProofImageURL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	t, _, err := h.tasks.Approve(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	t, err := h.tasks.Reject(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
