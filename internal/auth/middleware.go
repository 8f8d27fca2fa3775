package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tripdesk/tripdesk/internal/platform/httpx"
	"github.com/tripdesk/tripdesk/internal/shared"
)

// Middleware resolves the session user into a request principal.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// LoadPrincipal looks up the account behind the session user ID and attaches
// it to the request context. Requests without a session user pass through
// with no principal; gate enforcement happens downstream.
func (m Middleware) LoadPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := strconv.ParseInt(sess.User(), 10, 64)
		if err != nil || id <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		cred, err := m.Service.Lookup(r.Context(), id)
		if err != nil {
			// Deleted account with a live session: treat as anonymous.
			if errors.Is(err, shared.ErrNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			m.Logger.Error("load principal", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		if !cred.IsActive {
			next.ServeHTTP(w, r)
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), &shared.Principal{
			ID:          cred.ID,
			Email:       cred.Email,
			LegacyRole:  cred.LegacyRole,
			IsSuperuser: cred.IsSuperuser,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuthenticated rejects requests that carry no principal.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.PrincipalFromContext(r.Context()) == nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
