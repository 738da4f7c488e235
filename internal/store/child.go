package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/CandyToyBox/AllowanceApp/internal/database"
	"github.com/CandyToyBox/AllowanceApp/internal/model"
	"github.com/jmoiron/sqlx"
)

type ChildStore struct {
	db *sqlx.DB
}

func NewChildStore(db *sqlx.DB) *ChildStore {
	return &ChildStore{db: db}
}

type CreateChildParams struct {
	ParentID         int64
	Username         string
	PasswordHash     string
	Name             *string
	WalletAddress    *string
	AllowanceBalance int64
	// SpendLimit defaults to model.DefaultSpendLimit when nil.
	SpendLimit *int64
}

const openingBalanceDescription = "Opening balance"

func scanChild(scanner interface{ Scan(...any) error }) (*model.Child, error) {
	var c model.Child
	var name, wallet sql.NullString

	err := scanner.Scan(&c.ID, &c.ParentID, &c.Username, &c.PasswordHash, &name, &wallet,
		&c.AllowanceBalance, &c.SpendLimit, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	c.Name = nullString(name)
	c.WalletAddress = nullString(wallet)
	return &c, nil
}

const childCols = `id, parent_id, username, password, name, wallet_address, allowance_balance, spend_limit, created_at`

// Create inserts the child. A non-zero opening balance is recorded as a
// credit so the ledger matches the balance from the start.
func (s *ChildStore) Create(ctx context.Context, p CreateChildParams) (*model.Child, error) {
	spendLimit := model.DefaultSpendLimit
	if p.SpendLimit != nil {
		spendLimit = *p.SpendLimit
	}
	at := now()

	var id int64
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		id, err = insertReturningID(ctx, tx,
			`INSERT INTO children (parent_id, username, password, name, wallet_address, allowance_balance, spend_limit, created_at)
			 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
			p.ParentID, p.Username, p.PasswordHash, p.Name, lowerPtr(p.WalletAddress), spendLimit, at,
		)
		if err != nil {
			return err
		}
		if p.AllowanceBalance > 0 {
			_, err = credit(ctx, tx, id, p.AllowanceBalance, openingBalanceDescription, nil, at)
		}
		return err
	})
	if err != nil {
		return nil, database.Classify("insert child", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ChildStore) get(ctx context.Context, op, where string, arg any) (*model.Child, error) {
	row := s.db.QueryRowxContext(ctx, s.db.Rebind(`SELECT `+childCols+` FROM children WHERE `+where), arg)
	c, err := scanChild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(op, err)
	}
	return c, nil
}

func (s *ChildStore) GetByID(ctx context.Context, id int64) (*model.Child, error) {
	return s.get(ctx, "get child", `id = ?`, id)
}

func (s *ChildStore) GetByUsername(ctx context.Context, username string) (*model.Child, error) {
	return s.get(ctx, "get child by username", `username = ?`, username)
}

func (s *ChildStore) GetByWalletAddress(ctx context.Context, address string) (*model.Child, error) {
	return s.get(ctx, "get child by wallet", `wallet_address = ?`, strings.ToLower(address))
}

// ListByParent returns the parent's children, newest first.
func (s *ChildStore) ListByParent(ctx context.Context, parentID int64) ([]model.Child, error) {
	rows, err := s.db.QueryxContext(ctx,
		s.db.Rebind(`SELECT `+childCols+` FROM children WHERE parent_id = ? ORDER BY created_at DESC, id DESC`),
		parentID,
	)
	if err != nil {
		return nil, database.Classify("list children", err)
	}
	defer rows.Close()

	children := []model.Child{}
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, database.Classify("scan child", err)
		}
		children = append(children, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify("list children", err)
	}
	return children, nil
}

// UpdateWallet sets the child's wallet address. It returns nil if the child
// does not exist.
func (s *ChildStore) UpdateWallet(ctx context.Context, id int64, address string) (*model.Child, error) {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE children SET wallet_address = ? WHERE id = ?`),
		strings.ToLower(address), id,
	)
	if err != nil {
		return nil, database.Classify("update child wallet", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, database.Classify("rows affected", err)
	} else if n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}
