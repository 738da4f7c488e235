package model

import "time"

// DefaultSpendLimit is the per-day spend limit, in cents, given to new children.
const DefaultSpendLimit int64 = 1000

// MaxAmountCents caps any single amount and any stored balance, keeping
// balance arithmetic far from int64 overflow.
const MaxAmountCents int64 = 1_000_000_000_000

type Child struct {
	ID               int64     `json:"id"`
	ParentID         int64     `json:"parentId"`
	Username         string    `json:"username"`
	PasswordHash     string    `json:"-"`
	Name             *string   `json:"name"`
	WalletAddress    *string   `json:"walletAddress"`
	AllowanceBalance int64     `json:"allowanceBalance"`
	SpendLimit       int64     `json:"spendLimit"`
	CreatedAt        time.Time `json:"createdAt"`
}
