package store

import (
	"context"
	"errors"
	"testing"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/CandyToyBox/AllowanceApp/internal/database"
	"github.com/CandyToyBox/AllowanceApp/internal/model"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func setupTestDB(t *testing.T) *Stores {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func createTestParent(t *testing.T, s *Stores, username string) *model.Parent {
	t.Helper()
	p, err := s.Parents.Create(context.Background(), CreateParentParams{Username: username, PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	return p
}

func createTestChild(t *testing.T, s *Stores, parentID int64, username string, balance int64) *model.Child {
	t.Helper()
	c, err := s.Children.Create(context.Background(), CreateChildParams{
		ParentID:         parentID,
		Username:         username,
		PasswordHash:     "hash",
		AllowanceBalance: balance,
	})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return c
}

func strPtr(s string) *string { return &s }

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("kind = %q, want %q (err: %v)", got, kind, err)
	}
}

func TestDriverFailureIsStorageError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "sqlmock")

	mock.ExpectQuery(`SELECT .+ FROM parents WHERE id = \?`).
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection reset"))

	_, err = NewParentStore(db).GetByID(context.Background(), 1)
	wantKind(t, err, apperr.KindStorage)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDebitRollsBackOnDriverFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "sqlmock")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE children SET allowance_balance = allowance_balance - \?`).
		WithArgs(int64(500), int64(7), int64(500)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err = NewTransactionStore(db).Debit(context.Background(), 7, 500, "Toy", nil)
	wantKind(t, err, apperr.KindStorage)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
