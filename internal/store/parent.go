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

type ParentStore struct {
	db *sqlx.DB
}

func NewParentStore(db *sqlx.DB) *ParentStore {
	return &ParentStore{db: db}
}

type CreateParentParams struct {
	Username      string
	PasswordHash  string
	Email         *string
	Name          *string
	WalletAddress *string
}

func scanParent(scanner interface{ Scan(...any) error }) (*model.Parent, error) {
	var p model.Parent
	var email, name, wallet sql.NullString

	err := scanner.Scan(&p.ID, &p.Username, &p.PasswordHash, &email, &name, &wallet, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	p.Email = nullString(email)
	p.Name = nullString(name)
	p.WalletAddress = nullString(wallet)
	return &p, nil
}

const parentCols = `id, username, password, email, name, wallet_address, created_at`

func (s *ParentStore) Create(ctx context.Context, p CreateParentParams) (*model.Parent, error) {
	id, err := insertReturningID(ctx, s.db,
		`INSERT INTO parents (username, password, email, name, wallet_address, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.Username, p.PasswordHash, p.Email, p.Name, lowerPtr(p.WalletAddress), now(),
	)
	if err != nil {
		return nil, database.Classify("insert parent", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ParentStore) get(ctx context.Context, op, where string, arg any) (*model.Parent, error) {
	row := s.db.QueryRowxContext(ctx, s.db.Rebind(`SELECT `+parentCols+` FROM parents WHERE `+where), arg)
	p, err := scanParent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Classify(op, err)
	}
	return p, nil
}

func (s *ParentStore) GetByID(ctx context.Context, id int64) (*model.Parent, error) {
	return s.get(ctx, "get parent", `id = ?`, id)
}

func (s *ParentStore) GetByUsername(ctx context.Context, username string) (*model.Parent, error) {
	return s.get(ctx, "get parent by username", `username = ?`, username)
}

// GetByWalletAddress matches addresses case-insensitively.
func (s *ParentStore) GetByWalletAddress(ctx context.Context, address string) (*model.Parent, error) {
	return s.get(ctx, "get parent by wallet", `wallet_address = ?`, strings.ToLower(address))
}

// UpdateWallet sets the parent's wallet address. It returns nil if the parent
// does not exist.
func (s *ParentStore) UpdateWallet(ctx context.Context, id int64, address string) (*model.Parent, error) {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE parents SET wallet_address = ? WHERE id = ?`),
		strings.ToLower(address), id,
	)
	if err != nil {
		return nil, database.Classify("update parent wallet", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, database.Classify("rows affected", err)
	} else if n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}
