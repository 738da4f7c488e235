package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CandyToyBox/AllowanceApp/internal/apperr"
	"github.com/CandyToyBox/AllowanceApp/internal/auth"
	"github.com/CandyToyBox/AllowanceApp/internal/middleware"
	"github.com/CandyToyBox/AllowanceApp/internal/model"
	"github.com/CandyToyBox/AllowanceApp/internal/store"
	"github.com/CandyToyBox/AllowanceApp/internal/validate"
)

// LoginLimiter budgets login attempts per account.
type LoginLimiter interface {
	Allow(role, username string) (bool, time.Duration)
}

type AuthHandler struct {
	parents    *store.ParentStore
	children   *store.ChildStore
	sessions   *store.SessionStore
	limiter    LoginLimiter
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewAuthHandler builds the login handlers. A nil limiter disables the
// per-account budget.
func NewAuthHandler(ps *store.ParentStore, cs *store.ChildStore, ss *store.SessionStore, limiter LoginLimiter, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{parents: ps, children: cs, sessions: ss, limiter: limiter, sessionTTL: sessionTTL, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	Account   any       `json:"account"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type meResponse struct {
	Role    string `json:"role"`
	Account any    `json:"account"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if err := validate.Check("invalid login",
		validate.F("username", req.Username, validate.Required),
		validate.F("password", req.Password, validate.Required),
		validate.F("role", req.Role, validate.Required, validate.OneOf(model.RoleParent, model.RoleChild)),
	); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if h.limiter != nil {
		if ok, retry := h.limiter.Allow(req.Role, req.Username); !ok {
			h.logger.Warn("login throttled", "role", req.Role, "username", req.Username)
			middleware.TooManyRequests(w, retry)
			return
		}
	}

	id, hash, account, err := h.lookupCredentials(r.Context(), req.Role, req.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if account == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid username or password"})
		return
	}
	ok, err := checkPassword(hash, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid username or password"})
		return
	}

	sess, err := h.sessions.Create(r.Context(), req.Role, id, h.sessionTTL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	h.logger.Info("login", "role", req.Role, "account_id", id)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     sess.Token,
		Role:      sess.Role,
		Account:   account,
		ExpiresAt: sess.ExpiresAt,
	})
}

// lookupCredentials returns a nil account when no such user exists.
func (h *AuthHandler) lookupCredentials(ctx context.Context, role, username string) (int64, string, any, error) {
	if role == model.RoleParent {
		p, err := h.parents.GetByUsername(ctx, username)
		if err != nil || p == nil {
			return 0, "", nil, err
		}
		return p.ID, p.PasswordHash, p, nil
	}
	c, err := h.children.GetByUsername(ctx, username)
	if err != nil || c == nil {
		return 0, "", nil, err
	}
	return c.ID, c.PasswordHash, c, nil
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessions.Delete(r.Context(), ac.SessionID); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	account, err := h.account(r.Context(), ac)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Role: ac.Role, Account: account})
}

func (h *AuthHandler) account(ctx context.Context, ac auth.AuthContext) (any, error) {
	if ac.Role == model.RoleParent {
		p, err := h.parents.GetByID(ctx, ac.AccountID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, apperr.NotFound("parent", ac.AccountID)
		}
		return p, nil
	}
	c, err := h.children.GetByID(ctx, ac.AccountID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("child", ac.AccountID)
	}
	return c, nil
}
