package auth

import (
	"context"

	"github.com/CandyToyBox/AllowanceApp/internal/model"
)

type contextKey struct{}

// AuthContext identifies the signed-in account. Role is model.RoleParent or
// model.RoleChild and decides which table AccountID refers to.
type AuthContext struct {
	AccountID int64
	Role      string
	SessionID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func AccountID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.AccountID
}

func IsParent(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == model.RoleParent
}
