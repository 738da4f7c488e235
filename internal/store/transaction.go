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

// TransactionStore owns the ledger. Every balance change goes through credit
// or debit, which update the child's balance and append the matching
// transaction in one SQL transaction.
type TransactionStore struct {
	db *sqlx.DB
}

func NewTransactionStore(db *sqlx.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.Transaction, error) {
	var t model.Transaction
	var hash sql.NullString

	err := scanner.Scan(&t.ID, &t.ChildID, &t.Amount, &t.Description, &hash, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	t.TransactionHash = nullString(hash)
	return &t, nil
}

const transactionCols = `id, child_id, amount, description, transaction_hash, created_at`

func insertTransaction(ctx context.Context, q sqlx.ExtContext, childID, amount int64, description string, hash *string, at time.Time) (*model.Transaction, error) {
	id, err := insertReturningID(ctx, q,
		`INSERT INTO transactions (child_id, amount, description, transaction_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		childID, amount, description, hash, at,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return &model.Transaction{
		ID:              id,
		ChildID:         childID,
		Amount:          amount,
		Description:     description,
		TransactionHash: hash,
		CreatedAt:       at,
	}, nil
}

// credit adds amount to the child's balance and records it. The balance may
// not grow past model.MaxAmountCents; the ceiling is checked in the UPDATE so
// the addition itself can never overflow.
func credit(ctx context.Context, q sqlx.ExtContext, childID, amount int64, description string, hash *string, at time.Time) (*model.Transaction, error) {
	if amount > model.MaxAmountCents {
		return nil, creditTooLarge()
	}
	res, err := q.ExecContext(ctx,
		q.Rebind(`UPDATE children SET allowance_balance = allowance_balance + ? WHERE id = ? AND allowance_balance <= ?`),
		amount, childID, model.MaxAmountCents-amount,
	)
	if err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var balance int64
		err := q.QueryRowxContext(ctx, q.Rebind(`SELECT allowance_balance FROM children WHERE id = ?`), childID).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("child", childID)
		}
		if err != nil {
			return nil, fmt.Errorf("read balance: %w", err)
		}
		return nil, creditTooLarge()
	}
	return insertTransaction(ctx, q, childID, amount, description, hash, at)
}

func creditTooLarge() error {
	msg := fmt.Sprintf("would take the balance past %d", model.MaxAmountCents)
	return apperr.Validation("balance limit exceeded", map[string]string{"amount": msg})
}

// debit subtracts amount from the child's balance and records it. The guard
// lives in the UPDATE itself so concurrent debits cannot overdraw.
func debit(ctx context.Context, q sqlx.ExtContext, childID, amount int64, description string, hash *string, at time.Time) (*model.Transaction, error) {
	res, err := q.ExecContext(ctx,
		q.Rebind(`UPDATE children SET allowance_balance = allowance_balance - ? WHERE id = ? AND allowance_balance >= ?`),
		amount, childID, amount,
	)
	if err != nil {
		return nil, fmt.Errorf("debit balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var balance int64
		err := q.QueryRowxContext(ctx, q.Rebind(`SELECT allowance_balance FROM children WHERE id = ?`), childID).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("child", childID)
		}
		if err != nil {
			return nil, fmt.Errorf("read balance: %w", err)
		}
		return nil, apperr.InsufficientBalance(balance, amount)
	}
	return insertTransaction(ctx, q, childID, -amount, description, hash, at)
}

// Debit records a spend of amount cents (a positive magnitude). It fails with
// an insufficient balance error, leaving nothing changed, if the child cannot
// cover it.
func (s *TransactionStore) Debit(ctx context.Context, childID, amount int64, description string, hash *string) (*model.Transaction, error) {
	var t *model.Transaction
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		t, err = debit(ctx, tx, childID, amount, description, hash, now())
		return err
	})
	if err != nil {
		return nil, database.Classify("debit child", err)
	}
	return t, nil
}

// Credit records a deposit of amount cents.
func (s *TransactionStore) Credit(ctx context.Context, childID, amount int64, description string, hash *string) (*model.Transaction, error) {
	var t *model.Transaction
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		t, err = credit(ctx, tx, childID, amount, description, hash, now())
		return err
	})
	if err != nil {
		return nil, database.Classify("credit child", err)
	}
	return t, nil
}

func (s *TransactionStore) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	row := s.db.QueryRowxContext(ctx, s.db.Rebind(`SELECT `+transactionCols+` FROM transactions WHERE id = ?`), id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify("get transaction", err)
	}
	return t, nil
}

// ListByChild returns the child's transactions, newest first.
func (s *TransactionStore) ListByChild(ctx context.Context, childID int64) ([]model.Transaction, error) {
	rows, err := s.db.QueryxContext(ctx,
		s.db.Rebind(`SELECT `+transactionCols+` FROM transactions WHERE child_id = ? ORDER BY created_at DESC, id DESC`),
		childID,
	)
	if err != nil {
		return nil, database.Classify("list transactions", err)
	}
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, database.Classify("scan transaction", err)
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify("list transactions", err)
	}
	return transactions, nil
}

// Sum returns the total of the child's transactions.
func (s *TransactionStore) Sum(ctx context.Context, childID int64) (int64, error) {
	var total int64
	err := s.db.QueryRowxContext(ctx,
		s.db.Rebind(`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE child_id = ?`),
		childID,
	).Scan(&total)
	if err != nil {
		return 0, database.Classify("sum transactions", err)
	}
	return total, nil
}
