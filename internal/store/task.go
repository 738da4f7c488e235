package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/CandyToyBox/AllowanceApp/internal/database"
	"github.com/CandyToyBox/AllowanceApp/internal/model"
	"github.com/jmoiron/sqlx"
)

type TaskStore struct {
	db *sqlx.DB
}

func NewTaskStore(db *sqlx.DB) *TaskStore {
	return &TaskStore{db: db}
}

type CreateTaskParams struct {
	ParentID     int64
	ChildID      int64
	Title        string
	Description  *string
	RewardAmount int64
	DueDate      *time.Time
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var description, proof sql.NullString
	var dueDate, completedAt, approvedAt sql.NullTime

	err := scanner.Scan(&t.ID, &t.ParentID, &t.ChildID, &t.Title, &description, &t.RewardAmount,
		&t.Status, &proof, &dueDate, &completedAt, &approvedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	t.Description = nullString(description)
	t.ProofImageURL = nullString(proof)
	t.DueDate = nullTime(dueDate)
	t.CompletedAt = nullTime(completedAt)
	t.ApprovedAt = nullTime(approvedAt)
	return &t, nil
}

const taskCols = `id, parent_id, child_id, title, description, reward_amount, status, proof_image_url, due_date, completed_at, approved_at, created_at`

func (s *TaskStore) Create(ctx context.Context, p CreateTaskParams) (*model.Task, error) {
	id, err := insertReturningID(ctx, s.db,
		`INSERT INTO tasks (parent_id, child_id, title, description, reward_amount, status, due_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ParentID, p.ChildID, p.Title, p.Description, p.RewardAmount, model.TaskPending, p.DueDate, now(),
	)
	if err != nil {
		return nil, database.Classify("insert task", err)
	}
	return s.GetByID(ctx, id)
}

func getTask(ctx context.Context, q sqlx.ExtContext, id int64) (*model.Task, error) {
	row := q.QueryRowxContext(ctx, q.Rebind(`SELECT `+taskCols+` FROM tasks WHERE id = ?`), id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	t, err := getTask(ctx, s.db, id)
	if err != nil {
		return nil, database.Classify("get task", err)
	}
	return t, nil
}

// ListByParent returns the parent's tasks, newest first. An empty status
// returns tasks in every status.
func (s *TaskStore) ListByParent(ctx context.Context, parentID int64, status model.TaskStatus) ([]model.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks WHERE parent_id = ?`
	args := []any{parentID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return s.list(ctx, "list tasks by parent", query, args...)
}

// ListByChild returns the child's tasks, newest first.
func (s *TaskStore) ListByChild(ctx context.Context, childID int64) ([]model.Task, error) {
	return s.list(ctx, "list tasks by child",
		`SELECT `+taskCols+` FROM tasks WHERE child_id = ? ORDER BY created_at DESC, id DESC`, childID)
}

func (s *TaskStore) list(ctx context.Context, op, query string, args ...any) ([]model.Task, error) {
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, database.Classify(op, err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, database.Classify("scan task", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(op, err)
	}
	return tasks, nil
}

// transition moves a task from one status to another with a conditional
// UPDATE. Zero affected rows means the task is missing or not in from.
func transition(ctx context.Context, q sqlx.ExtContext, id int64, from, to model.TaskStatus, set string, args ...any) error {
	query := `UPDATE tasks SET status = ?`
	if set != "" {
		query += `, ` + set
	}
	query += ` WHERE id = ? AND status = ?`

	all := append([]any{to}, args...)
	all = append(all, id, from)

	res, err := q.ExecContext(ctx, q.Rebind(query), all...)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	t, err := getTask(ctx, q, id)
	if err != nil {
		return err
	}
	if t == nil {
		return apperr.NotFound("task", id)
	}
	return apperr.State(fmt.Sprintf("task %d is %s; only %s tasks can be %s", id, t.Status, from, to))
}

// SubmitProof attaches the proof image and marks a pending task completed.
func (s *TaskStore) SubmitProof(ctx context.Context, id int64, proofImageURL string) (*model.Task, error) {
	err := transition(ctx, s.db, id, model.TaskPending, model.TaskCompleted,
		`proof_image_url = ?, completed_at = ?`, proofImageURL, now())
	if err != nil {
		return nil, database.Classify("submit task proof", err)
	}
	return s.GetByID(ctx, id)
}

// Approve marks a completed task approved and credits its reward to the child,
// all in one SQL transaction. A task can be approved at most once.
func (s *TaskStore) Approve(ctx context.Context, id int64) (*model.Task, *model.Transaction, error) {
	at := now()

	var txn *model.Transaction
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := transition(ctx, tx, id, model.TaskCompleted, model.TaskApproved, `approved_at = ?`, at); err != nil {
			return err
		}
		t, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		txn, err = credit(ctx, tx, t.ChildID, t.RewardAmount, "Task reward: "+t.Title, nil, at)
		return err
	})
	if err != nil {
		return nil, nil, database.Classify("approve task", err)
	}

	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return t, txn, nil
}

// Reject marks a completed task rejected. The balance is untouched.
func (s *TaskStore) Reject(ctx context.Context, id int64) (*model.Task, error) {
	err := transition(ctx, s.db, id, model.TaskCompleted, model.TaskRejected, "")
	if err != nil {
		return nil, database.Classify("reject task", err)
	}
	return s.GetByID(ctx, id)
}
