package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CandyToyBox/AllowanceApp/internal/auth"
	"github.com/CandyToyBox/AllowanceApp/internal/model"
)

const SessionCookieName = "allowance_session"

type SessionReader interface {
	GetByToken(ctx context.Context, token string) (*model.Session, error)
}

// SessionToken returns the session token from the cookie or, failing that,
// an "Authorization: Bearer" header.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// RequireAuth validates the session token and populates AuthContext.
func RequireAuth(sessions SessionReader, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			sess, err := sessions.GetByToken(r.Context(), token)
			if err != nil {
				logger.Error("session lookup", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if sess == nil {
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				AccountID: sess.AccountID,
				Role:      sess.Role,
				SessionID: sess.ID,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "authentication required")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
