// Package ledger records allowance credits and spends. A child's stored
// balance always equals the sum of its transactions and never goes negative.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/CandyToyBox/AllowanceApp/internal/events"
	"github.com/CandyToyBox/AllowanceApp/internal/metrics"
	"github.com/CandyToyBox/AllowanceApp/internal/model"
	"github.com/CandyToyBox/AllowanceApp/internal/validate"
)

const (
	maxDescriptionLen = 500
	maxHashLen        = 200
)

type Store interface {
	Debit(ctx context.Context, childID, amount int64, description string, hash *string) (*model.Transaction, error)
	Credit(ctx context.Context, childID, amount int64, description string, hash *string) (*model.Transaction, error)
	ListByChild(ctx context.Context, childID int64) ([]model.Transaction, error)
	Sum(ctx context.Context, childID int64) (int64, error)
}

type ChildReader interface {
	GetByID(ctx context.Context, id int64) (*model.Child, error)
}

type Ledger struct {
	txs      Store
	children ChildReader
	events   events.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(txs Store, children ChildReader, pub events.Publisher, m *metrics.Metrics, logger *slog.Logger) *Ledger {
	if pub == nil {
		pub = events.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{txs: txs, children: children, events: pub, metrics: m, logger: logger}
}

// Entry is a requested balance change. Amount is in cents.
type Entry struct {
	ChildID         int64
	Amount          int64
	Description     string
	TransactionHash *string
}

func (e *Entry) check(message string) error {
	e.Description = strings.TrimSpace(e.Description)
	return validate.Check(message,
		validate.F("childId", e.ChildID, validate.Required),
		validate.F("amount", e.Amount, validate.Required, validate.Positive, validate.Max(model.MaxAmountCents)),
		validate.F("description", e.Description, validate.Required, validate.MaxLen(maxDescriptionLen)),
		validate.F("transactionHash", e.TransactionHash, validate.MaxLen(maxHashLen)),
	)
}

// RecordSpend debits e.Amount from the child. If the balance cannot cover it
// the spend is refused with an insufficient balance error and nothing changes.
func (l *Ledger) RecordSpend(ctx context.Context, e Entry) (*model.Transaction, error) {
	if err := e.check("invalid spend"); err != nil {
		return nil, err
	}

	t, err := l.txs.Debit(ctx, e.ChildID, e.Amount, e.Description, e.TransactionHash)
	if err != nil {
		if apperr.Is(err, apperr.KindInsufficientBalance) {
			l.metrics.RejectedSpend()
			l.logger.Info("spend refused", "child_id", e.ChildID, "amount", e.Amount, "reason", err)
		}
		return nil, err
	}

	l.recorded(ctx, "spend", t)
	return t, nil
}

// RecordCredit adds e.Amount to the child's balance.
func (l *Ledger) RecordCredit(ctx context.Context, e Entry) (*model.Transaction, error) {
	if err := e.check("invalid credit"); err != nil {
		return nil, err
	}

	t, err := l.txs.Credit(ctx, e.ChildID, e.Amount, e.Description, e.TransactionHash)
	if err != nil {
		return nil, err
	}

	l.recorded(ctx, "credit", t)
	return t, nil
}

// Record applies a signed amount: negative amounts are spends, positive
// amounts credits.
func (l *Ledger) Record(ctx context.Context, e Entry) (*model.Transaction, error) {
	switch {
	case e.Amount < -model.MaxAmountCents:
		return nil, apperr.Validation("invalid transaction", map[string]string{"amount": fmt.Sprintf("must be at least -%d", model.MaxAmountCents)})
	case e.Amount < 0:
		e.Amount = -e.Amount
		return l.RecordSpend(ctx, e)
	case e.Amount > 0:
		return l.RecordCredit(ctx, e)
	}
	return nil, apperr.Validation("invalid transaction", map[string]string{"amount": "must not be zero"})
}

// BalanceOf returns the child's current balance in cents.
func (l *Ledger) BalanceOf(ctx context.Context, childID int64) (int64, error) {
	c, err := l.child(ctx, childID)
	if err != nil {
		return 0, err
	}
	return c.AllowanceBalance, nil
}

// Reconcile compares the stored balance with the sum of the child's ledger.
func (l *Ledger) Reconcile(ctx context.Context, childID int64) (*model.Balance, error) {
	c, err := l.child(ctx, childID)
	if err != nil {
		return nil, err
	}
	sum, err := l.txs.Sum(ctx, childID)
	if err != nil {
		return nil, err
	}

	b := &model.Balance{
		ChildID:          childID,
		AllowanceBalance: c.AllowanceBalance,
		LedgerTotal:      sum,
		SpendLimit:       c.SpendLimit,
		Consistent:       sum == c.AllowanceBalance,
	}
	if !b.Consistent {
		l.logger.Error("ledger out of balance", "child_id", childID, "balance", c.AllowanceBalance, "ledger_total", sum)
	}
	return b, nil
}

// Transactions returns the child's transactions, newest first.
func (l *Ledger) Transactions(ctx context.Context, childID int64) ([]model.Transaction, error) {
	return l.txs.ListByChild(ctx, childID)
}

func (l *Ledger) child(ctx context.Context, id int64) (*model.Child, error) {
	c, err := l.children.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("child", id)
	}
	return c, nil
}

func (l *Ledger) recorded(ctx context.Context, kind string, t *model.Transaction) {
	l.metrics.LedgerTransaction(kind)
	l.events.Publish(ctx, events.New(events.EntityTransaction, events.ActionCreated, t.ID, map[string]any{
		"childId": t.ChildID,
		"amount":  t.Amount,
	}))
}
