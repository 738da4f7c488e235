// Package store persists parents, children, tasks, ledger transactions and
// login sessions. Queries are written with ? placeholders and rebound for the
// connection's driver, so the same SQL runs on SQLite and Postgres.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Stores bundles every entity store over one connection pool.
type Stores struct {
	Parents      *ParentStore
	Children     *ChildStore
	Tasks        *TaskStore
	Transactions *TransactionStore
	Sessions     *SessionStore
}

func New(db *sqlx.DB) *Stores {
	return &Stores{
		Parents:      NewParentStore(db),
		Children:     NewChildStore(db),
		Tasks:        NewTaskStore(db),
		Transactions: NewTransactionStore(db),
		Sessions:     NewSessionStore(db),
	}
}

// withTx runs fn inside a transaction. fn must only use tx: an in-memory
// SQLite pool has a single connection.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertReturningID(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (int64, error) {
	var id int64
	if err := q.QueryRowxContext(ctx, q.Rebind(query+` RETURNING id`), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func now() time.Time {
	return time.Now().UTC()
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// lowerPtr lower-cases an optional wallet address.
func lowerPtr(s *string) *string {
	if s == nil {
		return nil
	}
	l := strings.ToLower(*s)
	return &l
}
