package store

import (
	"context"
	"errors"
	"testing"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
)

func TestParentCreate(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	p, err := s.Parents.Create(ctx, CreateParentParams{
		Username:      "mom",
		PasswordHash:  "hash",
		Email:         strPtr("mom@example.com"),
		Name:          strPtr("Mom"),
		WalletAddress: strPtr("0xABCDEF0000000000000000000000000000000001"),
	})
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	if p.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if p.Username != "mom" {
		t.Errorf("username = %q, want %q", p.Username, "mom")
	}
	if p.Email == nil || *p.Email != "mom@example.com" {
		t.Errorf("email = %v, want mom@example.com", p.Email)
	}
	if p.WalletAddress == nil || *p.WalletAddress != "0xabcdef0000000000000000000000000000000001" {
		t.Errorf("wallet = %v, want lower-cased address", p.WalletAddress)
	}
	if p.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestParentOptionalFieldsStayNil(t *testing.T) {
	s := setupTestDB(t)
	p := createTestParent(t, s, "dad")

	if p.Email != nil || p.Name != nil || p.WalletAddress != nil {
		t.Errorf("optional fields = %v %v %v, want all nil", p.Email, p.Name, p.WalletAddress)
	}
}

func TestParentDuplicateUsername(t *testing.T) {
	s := setupTestDB(t)
	createTestParent(t, s, "mom")

	_, err := s.Parents.Create(context.Background(), CreateParentParams{Username: "mom", PasswordHash: "x"})
	wantKind(t, err, apperr.KindValidation)

	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Fields["username"] == "" {
		t.Errorf("expected username field error, got %v", err)
	}
}

func TestParentDuplicateEmail(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	if _, err := s.Parents.Create(ctx, CreateParentParams{Username: "a", PasswordHash: "x", Email: strPtr("same@example.com")}); err != nil {
		t.Fatalf("create parent: %v", err)
	}
	_, err := s.Parents.Create(ctx, CreateParentParams{Username: "b", PasswordHash: "x", Email: strPtr("same@example.com")})
	wantKind(t, err, apperr.KindValidation)
}

func TestParentGetMissing(t *testing.T) {
	s := setupTestDB(t)

	p, err := s.Parents.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("get parent: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil for missing parent, got %+v", p)
	}
}

func TestParentLookups(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	created := createTestParent(t, s, "mom")

	byName, err := s.Parents.GetByUsername(ctx, "mom")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName == nil || byName.ID != created.ID {
		t.Errorf("get by username = %+v, want id %d", byName, created.ID)
	}

	if _, err := s.Parents.UpdateWallet(ctx, created.ID, "0xAAAA000000000000000000000000000000000000"); err != nil {
		t.Fatalf("update wallet: %v", err)
	}

	byWallet, err := s.Parents.GetByWalletAddress(ctx, "0xaaaa000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("get by wallet: %v", err)
	}
	if byWallet == nil || byWallet.ID != created.ID {
		t.Errorf("get by wallet = %+v, want id %d", byWallet, created.ID)
	}

	missing, err := s.Parents.GetByWalletAddress(ctx, "0xbbbb000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("get by wallet: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown wallet")
	}
}

func TestParentUpdateWalletMissing(t *testing.T) {
	s := setupTestDB(t)

	p, err := s.Parents.UpdateWallet(context.Background(), 42, "0xaaaa000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("update wallet: %v", err)
	}
	if p != nil {
		t.Error("expected nil for missing parent")
	}
}
