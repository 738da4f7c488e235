package store

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/CandyToyBox/AllowanceApp/internal/database"
	"github.com/CandyToyBox/AllowanceApp/internal/model"
)

func TestDebitAndCredit(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	p := createTestParent(t, s, "mom")
	c := createTestChild(t, s, p.ID, "kid", 1000)

	spend, err := s.Transactions.Debit(ctx, c.ID, 300, "Comic book", nil)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if spend.Amount != -300 {
		t.Errorf("amount = %d, want -300", spend.Amount)
	}

	hash := "0xfeed"
	dep, err := s.Transactions.Credit(ctx, c.ID, 50, "Birthday", &hash)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if dep.TransactionHash == nil || *dep.TransactionHash != hash {
		t.Errorf("hash = %v, want %q", dep.TransactionHash, hash)
	}

	got, err := s.Children.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if got.AllowanceBalance != 750 {
		t.Errorf("balance = %d, want 750", got.AllowanceBalance)
	}

	sum, err := s.Transactions.Sum(ctx, c.ID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != got.AllowanceBalance {
		t.Errorf("ledger sum = %d, balance = %d", sum, got.AllowanceBalance)
	}

	stored, err := s.Transactions.GetByID(ctx, dep.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if stored == nil || stored.Amount != 50 || stored.Description != "Birthday" {
		t.Errorf("stored = %+v", stored)
	}

	txs, err := s.Transactions.ListByChild(ctx, c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("transactions = %d, want 3", len(txs))
	}
	if txs[0].ID != dep.ID {
		t.Errorf("first transaction = %d, want newest %d", txs[0].ID, dep.ID)
	}
}

func TestDebitInsufficientBalanceChangesNothing(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	p := createTestParent(t, s, "mom")
	c := createTestChild(t, s, p.ID, "kid", 500)

	_, err := s.Transactions.Debit(ctx, c.ID, 600, "Video game", nil)
	wantKind(t, err, apperr.KindInsufficientBalance)

	got, _ := s.Children.GetByID(ctx, c.ID)
	if got.AllowanceBalance != 500 {
		t.Errorf("balance = %d, want 500", got.AllowanceBalance)
	}
	txs, _ := s.Transactions.ListByChild(ctx, c.ID)
	if len(txs) != 1 {
		t.Errorf("transactions = %d, want only the opening balance", len(txs))
	}
}

func TestDebitExactBalance(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	p := createTestParent(t, s, "mom")
	c := createTestChild(t, s, p.ID, "kid", 500)

	if _, err := s.Transactions.Debit(ctx, c.ID, 500, "Everything", nil); err != nil {
		t.Fatalf("debit: %v", err)
	}
	got, _ := s.Children.GetByID(ctx, c.ID)
	if got.AllowanceBalance != 0 {
		t.Errorf("balance = %d, want 0", got.AllowanceBalance)
	}
}

func TestDebitCreditUnknownChild(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	_, err := s.Transactions.Debit(ctx, 999, 1, "x", nil)
	wantKind(t, err, apperr.KindNotFound)

	_, err = s.Transactions.Credit(ctx, 999, 1, "x", nil)
	wantKind(t, err, apperr.KindNotFound)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := database.Open(database.DriverSQLite, path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := New(db)
	ctx := context.Background()

	p := createTestParent(t, s, "mom")
	c := createTestChild(t, s, p.ID, "kid", 1000)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Transactions.Debit(ctx, c.ID, 300, "Candy", nil)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !apperr.Is(err, apperr.KindInsufficientBalance) {
				t.Errorf("unexpected debit error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Errorf("successful debits = %d, want 3", succeeded)
	}
	got, _ := s.Children.GetByID(ctx, c.ID)
	if got.AllowanceBalance != 100 {
		t.Errorf("balance = %d, want 100", got.AllowanceBalance)
	}
	sum, _ := s.Transactions.Sum(ctx, c.ID)
	if sum != got.AllowanceBalance {
		t.Errorf("ledger sum = %d, balance = %d", sum, got.AllowanceBalance)
	}
}

func TestCreditBalanceCeiling(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	p := createTestParent(t, s, "mom")
	c := createTestChild(t, s, p.ID, "kid", 100)

	_, err := s.Transactions.Credit(ctx, c.ID, math.MaxInt64, "Jackpot", nil)
	wantKind(t, err, apperr.KindValidation)

	_, err = s.Transactions.Credit(ctx, c.ID, model.MaxAmountCents, "Jackpot", nil)
	wantKind(t, err, apperr.KindValidation)

	if _, err := s.Transactions.Credit(ctx, c.ID, model.MaxAmountCents-100, "Top up", nil); err != nil {
		t.Fatalf("credit to the ceiling: %v", err)
	}
	_, err = s.Transactions.Credit(ctx, c.ID, 1, "One more", nil)
	wantKind(t, err, apperr.KindValidation)

	got, err := s.Children.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if got.AllowanceBalance != model.MaxAmountCents {
		t.Errorf("balance = %d, want %d", got.AllowanceBalance, model.MaxAmountCents)
	}
	sum, err := s.Transactions.Sum(ctx, c.ID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != got.AllowanceBalance {
		t.Errorf("ledger sum = %d, balance = %d", sum, got.AllowanceBalance)
	}
}

func TestChildCreateOpeningBalanceTooLarge(t *testing.T) {
	s := setupTestDB(t)
	p := createTestParent(t, s, "mom")

	_, err := s.Children.Create(context.Background(), CreateChildParams{
		ParentID:         p.ID,
		Username:         "kid",
		PasswordHash:     "hash",
		AllowanceBalance: math.MaxInt64,
	})
	wantKind(t, err, apperr.KindValidation)

	c, err := s.Children.GetByUsername(context.Background(), "kid")
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if c != nil {
		t.Errorf("child was created despite the rejected opening balance")
	}
}
