// Package task runs the task lifecycle: a parent assigns a task, the child
// submits proof, and the parent approves (crediting the reward) or rejects it.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/CandyToyBox/AllowanceApp/internal/events"
	"github.com/CandyToyBox/AllowanceApp/internal/metrics"
	"github.com/CandyToyBox/AllowanceApp/internal/model"
	"github.com/CandyToyBox/AllowanceApp/internal/store"
	"github.com/CandyToyBox/AllowanceApp/internal/validate"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000
	maxProofURLLen    = 2048
)

type Store interface {
	Create(ctx context.Context, p store.CreateTaskParams) (*model.Task, error)
	GetByID(ctx context.Context, id int64) (*model.Task, error)
	ListByParent(ctx context.Context, parentID int64, status model.TaskStatus) ([]model.Task, error)
	ListByChild(ctx context.Context, childID int64) ([]model.Task, error)
	SubmitProof(ctx context.Context, id int64, proofImageURL string) (*model.Task, error)
	Approve(ctx context.Context, id int64) (*model.Task, *model.Transaction, error)
	Reject(ctx context.Context, id int64) (*model.Task, error)
}

type ParentReader interface {
	GetByID(ctx context.Context, id int64) (*model.Parent, error)
}

type ChildReader interface {
	GetByID(ctx context.Context, id int64) (*model.Child, error)
}

// ProofRemover deletes proof images once a task is settled.
type ProofRemover interface {
	Remove(ctx context.Context, url string) error
}

type Deps struct {
	Tasks    Store
	Parents  ParentReader
	Children ChildReader
	// Proofs is optional.
	Proofs  ProofRemover
	Events  events.Publisher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Manager struct {
	tasks    Store
	parents  ParentReader
	children ChildReader
	proofs   ProofRemover
	events   events.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewManager(d Deps) *Manager {
	if d.Events == nil {
		d.Events = events.Discard{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Manager{
		tasks:    d.Tasks,
		parents:  d.Parents,
		children: d.Children,
		proofs:   d.Proofs,
		events:   d.Events,
		metrics:  d.Metrics,
		logger:   d.Logger,
	}
}

type CreateInput struct {
	ParentID     int64
	ChildID      int64
	Title        string
	Description  *string
	RewardAmount int64
	DueDate      *time.Time
}

// Create assigns a new pending task to one of the parent's children.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*model.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	err := validate.Check("invalid task data",
		validate.F("parentId", in.ParentID, validate.Required),
		validate.F("childId", in.ChildID, validate.Required),
		validate.F("title", in.Title, validate.Required, validate.MaxLen(maxTitleLen)),
		validate.F("description", in.Description, validate.MaxLen(maxDescriptionLen)),
		validate.F("rewardAmount", in.RewardAmount, validate.Required, validate.Positive, validate.Max(model.MaxAmountCents)),
	)
	if err != nil {
		return nil, err
	}

	parent, err := m.parents.GetByID(ctx, in.ParentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, apperr.NotFound("parent", in.ParentID)
	}
	child, err := m.children.GetByID(ctx, in.ChildID)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, apperr.NotFound("child", in.ChildID)
	}
	if child.ParentID != parent.ID {
		return nil, apperr.Validation("child does not belong to this parent",
			map[string]string{"childId": "does not belong to this parent"})
	}

	t, err := m.tasks.Create(ctx, store.CreateTaskParams{
		ParentID:     in.ParentID,
		ChildID:      in.ChildID,
		Title:        in.Title,
		Description:  in.Description,
		RewardAmount: in.RewardAmount,
		DueDate:      in.DueDate,
	})
	if err != nil {
		return nil, err
	}

	m.metrics.TaskTransition(string(model.TaskPending))
	m.publish(ctx, events.ActionCreated, t)
	m.logger.Info("task created", "task_id", t.ID, "child_id", t.ChildID, "reward", t.RewardAmount)
	return t, nil
}

func (m *Manager) Get(ctx context.Context, id int64) (*model.Task, error) {
	t, err := m.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("task", id)
	}
	return t, nil
}

// ListByParent returns the parent's tasks, optionally only those in status.
func (m *Manager) ListByParent(ctx context.Context, parentID int64, status string) ([]model.Task, error) {
	var st model.TaskStatus
	if status != "" {
		var ok bool
		if st, ok = ParseStatus(status); !ok {
			return nil, apperr.Validation("invalid task status",
				map[string]string{"status": "must be one of pending, completed, approved, rejected"})
		}
	}
	return m.tasks.ListByParent(ctx, parentID, st)
}

func (m *Manager) ListByChild(ctx context.Context, childID int64) ([]model.Task, error) {
	return m.tasks.ListByChild(ctx, childID)
}

// SubmitProof records the child's proof image and marks the task completed.
func (m *Manager) SubmitProof(ctx context.Context, id int64, proofImageURL string) (*model.Task, error) {
	proofImageURL = strings.TrimSpace(proofImageURL)
	err := validate.Check("invalid proof",
		validate.F("proofImageUrl", proofImageURL, validate.Required, validate.MaxLen(maxProofURLLen)),
	)
	if err != nil {
		return nil, err
	}

	if _, err := m.guard(ctx, id, model.TaskCompleted); err != nil {
		return nil, err
	}

	t, err := m.tasks.SubmitProof(ctx, id, proofImageURL)
	if err != nil {
		return nil, err
	}

	m.metrics.TaskTransition(string(model.TaskCompleted))
	m.publish(ctx, events.ActionCompleted, t)
	return t, nil
}

// Approve settles a completed task and credits its reward to the child. The
// returned transaction is the reward credit.
func (m *Manager) Approve(ctx context.Context, id int64) (*model.Task, *model.Transaction, error) {
	before, err := m.guard(ctx, id, model.TaskApproved)
	if err != nil {
		return nil, nil, err
	}

	t, txn, err := m.tasks.Approve(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	m.removeProof(ctx, before)
	m.metrics.TaskTransition(string(model.TaskApproved))
	m.metrics.LedgerTransaction("reward")
	m.publish(ctx, events.ActionApproved, t)
	m.events.Publish(ctx, events.New(events.EntityTransaction, events.ActionCreated, txn.ID, map[string]any{
		"childId": txn.ChildID,
		"amount":  txn.Amount,
	}))
	m.logger.Info("task approved", "task_id", t.ID, "child_id", t.ChildID, "reward", t.RewardAmount)
	return t, txn, nil
}

// Reject settles a completed task without paying the reward.
func (m *Manager) Reject(ctx context.Context, id int64) (*model.Task, error) {
	before, err := m.guard(ctx, id, model.TaskRejected)
	if err != nil {
		return nil, err
	}

	t, err := m.tasks.Reject(ctx, id)
	if err != nil {
		return nil, err
	}

	m.removeProof(ctx, before)
	m.metrics.TaskTransition(string(model.TaskRejected))
	m.publish(ctx, events.ActionRejected, t)
	m.logger.Info("task rejected", "task_id", t.ID, "child_id", t.ChildID)
	return t, nil
}

// guard loads the task and checks the transition to target is allowed. The
// store repeats the check atomically.
func (m *Manager) guard(ctx context.Context, id int64, target model.TaskStatus) (*model.Task, error) {
	t, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(t.Status, target) {
		return nil, apperr.State(fmt.Sprintf("cannot mark %s task %d as %s", t.Status, id, target))
	}
	return t, nil
}

func (m *Manager) removeProof(ctx context.Context, t *model.Task) {
	if m.proofs == nil || t.ProofImageURL == nil {
		return
	}
	if err := m.proofs.Remove(ctx, *t.ProofImageURL); err != nil {
		m.logger.Warn("remove proof image", "task_id", t.ID, "url", *t.ProofImageURL, "error", err)
	}
}

func (m *Manager) publish(ctx context.Context, action string, t *model.Task) {
	m.events.Publish(ctx, events.New(events.EntityTask, action, t.ID, map[string]any{
		"parentId": t.ParentID,
		"childId":  t.ChildID,
		"status":   t.Status,
	}))
}
