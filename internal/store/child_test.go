package store

import (
	"context"
	"testing"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/CandyToyBox/AllowanceApp/internal/model"
)

func TestChildCreateDefaults(t *testing.T) {
	s := setupTestDB(t)
	p := createTestParent(t, s, "mom")

	c := createTestChild(t, s, p.ID, "kid", 0)
	if c.ParentID != p.ID {
		t.Errorf("parent_id = %d, want %d", c.ParentID, p.ID)
	}
	if c.AllowanceBalance != 0 {
		t.Errorf("balance = %d, want 0", c.AllowanceBalance)
	}
	if c.SpendLimit != model.DefaultSpendLimit {
		t.Errorf("spend_limit = %d, want %d", c.SpendLimit, model.DefaultSpendLimit)
	}

	txs, err := s.Transactions.ListByChild(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("transactions = %d, want 0", len(txs))
	}
}

func TestChildCreateOpeningBalance(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	p := createTestParent(t, s, "mom")

	limit := int64(250)
	c, err := s.Children.Create(ctx, CreateChildParams{
		ParentID:         p.ID,
		Username:         "kid",
		PasswordHash:     "hash",
		Name:             strPtr("Sam"),
		AllowanceBalance: 700,
		SpendLimit:       &limit,
	})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if c.AllowanceBalance != 700 {
		t.Errorf("balance = %d, want 700", c.AllowanceBalance)
	}
	if c.SpendLimit != 250 {
		t.Errorf("spend_limit = %d, want 250", c.SpendLimit)
	}

	sum, err := s.Transactions.Sum(ctx, c.ID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 700 {
		t.Errorf("ledger sum = %d, want 700", sum)
	}

	txs, _ := s.Transactions.ListByChild(ctx, c.ID)
	if len(txs) != 1 || txs[0].Description != "Opening balance" {
		t.Errorf("transactions = %+v, want one opening balance entry", txs)
	}
}

func TestChildCreateUnknownParent(t *testing.T) {
	s := setupTestDB(t)

	_, err := s.Children.Create(context.Background(), CreateChildParams{ParentID: 404, Username: "kid", PasswordHash: "x"})
	wantKind(t, err, apperr.KindValidation)
}

func TestChildDuplicateUsername(t *testing.T) {
	s := setupTestDB(t)
	p := createTestParent(t, s, "mom")
	createTestChild(t, s, p.ID, "kid", 0)

	_, err := s.Children.Create(context.Background(), CreateChildParams{ParentID: p.ID, Username: "kid", PasswordHash: "x"})
	wantKind(t, err, apperr.KindValidation)
}

func TestChildListByParent(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	mom := createTestParent(t, s, "mom")
	dad := createTestParent(t, s, "dad")

	first := createTestChild(t, s, mom.ID, "ann", 0)
	second := createTestChild(t, s, mom.ID, "ben", 0)
	createTestChild(t, s, dad.ID, "cat", 0)

	children, err := s.Children.ListByParent(ctx, mom.ID)
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("children = %d, want 2", len(children))
	}
	if children[0].ID != second.ID || children[1].ID != first.ID {
		t.Errorf("order = [%d %d], want newest first [%d %d]", children[0].ID, children[1].ID, second.ID, first.ID)
	}

	none, err := s.Children.ListByParent(ctx, 999)
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}
}

func TestChildWallet(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	p := createTestParent(t, s, "mom")
	c := createTestChild(t, s, p.ID, "kid", 0)

	updated, err := s.Children.UpdateWallet(ctx, c.ID, "0xCCCC000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("update wallet: %v", err)
	}
	if updated.WalletAddress == nil || *updated.WalletAddress != "0xcccc000000000000000000000000000000000000" {
		t.Errorf("wallet = %v", updated.WalletAddress)
	}

	found, err := s.Children.GetByWalletAddress(ctx, "0xCcCc000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("get by wallet: %v", err)
	}
	if found == nil || found.ID != c.ID {
		t.Errorf("get by wallet = %+v, want id %d", found, c.ID)
	}

	other := createTestChild(t, s, p.ID, "kid2", 0)
	_, err = s.Children.UpdateWallet(ctx, other.ID, "0xcccc000000000000000000000000000000000000")
	wantKind(t, err, apperr.KindValidation)
}
