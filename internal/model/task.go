package model

import "time"

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskApproved  TaskStatus = "approved"
	TaskRejected  TaskStatus = "rejected"
)

type Task struct {
	ID            int64      `json:"id"`
	ParentID      int64      `json:"parentId"`
	ChildID       int64      `json:"childId"`
	Title         string     `json:"title"`
	Description   *string    `json:"description"`
	RewardAmount  int64      `json:"rewardAmount"`
	Status        TaskStatus `json:"status"`
	ProofImageURL *string    `json:"proofImageUrl"`
	DueDate       *time.Time `json:"dueDate"`
	CompletedAt   *time.Time `json:"completedAt"`
	ApprovedAt    *time.Time `json:"approvedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
}
