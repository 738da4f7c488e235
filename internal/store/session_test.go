package store

import (
	"context"
	"testing"
	"time"

	"github.com/CandyToyBox/AllowanceApp/internal/model"
)

func TestSessionCreate(t *testing.T) {
	s := setupTestDB(t)
	p := createTestParent(t, s, "mom")

	sess, err := s.Sessions.Create(context.Background(), model.RoleParent, p.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 { // 32 bytes hex-encoded
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if sess.Role != model.RoleParent {
		t.Errorf("role = %q, want %q", sess.Role, model.RoleParent)
	}
	if sess.AccountID != p.ID {
		t.Errorf("account_id = %d, want %d", sess.AccountID, p.ID)
	}
}

func TestSessionGetByToken(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	created, err := s.Sessions.Create(ctx, model.RoleChild, 7, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	sess, err := s.Sessions.GetByToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session, got nil")
	}
	if sess.ID != created.ID || sess.Role != model.RoleChild || sess.AccountID != 7 {
		t.Errorf("session = %+v", sess)
	}

	missing, err := s.Sessions.GetByToken(ctx, "nope")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestSessionExpiry(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	expired, err := s.Sessions.Create(ctx, model.RoleParent, 1, -time.Minute)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	live, err := s.Sessions.Create(ctx, model.RoleParent, 1, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := s.Sessions.GetByToken(ctx, expired.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got != nil {
		t.Error("expired session should not be returned")
	}

	n, err := s.Sessions.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	if err := s.Sessions.Delete(ctx, live.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = s.Sessions.GetByToken(ctx, live.Token)
	if got != nil {
		t.Error("deleted session should not be returned")
	}
}
