package model

import "time"

// Transaction is an immutable ledger entry. Amount is in cents: positive for
// credits (rewards, deposits), negative for spending.
type Transaction struct {
	ID              int64     `json:"id"`
	ChildID         int64     `json:"childId"`
	Amount          int64     `json:"amount"`
	Description     string    `json:"description"`
	TransactionHash *string   `json:"transactionHash"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Balance compares a child's stored balance with the sum of its ledger.
type Balance struct {
	ChildID          int64 `json:"childId"`
	AllowanceBalance int64 `json:"allowanceBalance"`
	LedgerTotal      int64 `json:"ledgerTotal"`
	SpendLimit       int64 `json:"spendLimit"`
	Consistent       bool  `json:"consistent"`
}
