package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/CandyToyBox/AllowanceApp/internal/database"
	"github.com/CandyToyBox/AllowanceApp/internal/model"
	"github.com/jmoiron/sqlx"
)

type SessionStore struct {
	db *sqlx.DB
}

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db}
}

func scanSession(scanner interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	err := scanner.Scan(&s.ID, &s.Token, &s.Role, &s.AccountID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const sessionCols = `id, token, role, account_id, expires_at, created_at`

// Create generates a new session with a crypto-random token.
func (s *SessionStore) Create(ctx context.Context, role string, accountID int64, ttl time.Duration) (*model.Session, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)
	createdAt := now()
	expiresAt := createdAt.Add(ttl)

	id, err := insertReturningID(ctx, s.db,
		`INSERT INTO sessions (token, role, account_id, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		token, role, accountID, expiresAt, createdAt,
	)
	if err != nil {
		return nil, database.Classify("insert session", err)
	}
	return &model.Session{
		ID:        id,
		Token:     token,
		Role:      role,
		AccountID: accountID,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// GetByToken returns the session for the given token, or nil if expired or not found.
func (s *SessionStore) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	row := s.db.QueryRowxContext(ctx,
		s.db.Rebind(`SELECT `+sessionCols+` FROM sessions WHERE token = ? AND expires_at > ?`),
		token, now(),
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify("get session by token", err)
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE id = ?`), id)
	if err != nil {
		return database.Classify("delete session", err)
	}
	return nil
}

func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`), now())
	if err != nil {
		return 0, database.Classify("delete expired sessions", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, database.Classify("rows affected", err)
	}
	return count, nil
}
