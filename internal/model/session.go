package model

import "time"

const (
	RoleParent = "parent"
	RoleChild  = "child"
)

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"-"`
	Role      string    `json:"role"`
	AccountID int64     `json:"accountId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}
