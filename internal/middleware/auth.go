package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/SmakGames/Companion/internal/account"
	"github.com/SmakGames/Companion/internal/identity"
	"github.com/SmakGames/Companion/internal/models"
	"github.com/SmakGames/Companion/internal/services"
)

type ctxKey int

const (
	userKey ctxKey = iota
	accountKey
)

// BearerToken extracts the session token from the Authorization header,
// falling back to the "token" query parameter for browser WebSocket clients.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// RequireAuth validates the session token, resolves the user, and loads the
// account with its effective status. Reading the account here means every
// authenticated request observes the lazy suspension rule.
func RequireAuth(ids identity.Store, accounts *account.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				http.Error(w, "missing session token", http.StatusUnauthorized)
				return
			}

			userID, ok, err := services.ValidateSession(r.Context(), token)
			if err != nil || !ok {
				http.Error(w, "invalid session token", http.StatusUnauthorized)
				return
			}

			user, err := ids.FindByID(r.Context(), userID)
			if err != nil {
				http.Error(w, "invalid session token", http.StatusUnauthorized)
				return
			}

			acct, err := accounts.Get(r.Context(), userID)
			if err != nil {
				http.Error(w, "account unavailable", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			ctx = context.WithValue(ctx, accountKey, acct)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CurrentUser returns the authenticated user placed by RequireAuth.
func CurrentUser(r *http.Request) (*models.User, bool) {
	u, ok := r.Context().Value(userKey).(*models.User)
	return u, ok
}

// CurrentAccount returns the authenticated user's account with its effective
// status.
func CurrentAccount(r *http.Request) (*models.Account, bool) {
	a, ok := r.Context().Value(accountKey).(*models.Account)
	return a, ok
}
