package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/SmakGames/Companion/internal/account"
	"github.com/SmakGames/Companion/internal/chat"
	"github.com/SmakGames/Companion/internal/common"
	"github.com/SmakGames/Companion/internal/identity"
	"github.com/SmakGames/Companion/internal/recovery"
	"github.com/SmakGames/Companion/internal/services"
)

// Package-level collaborators, wired once from main.
var (
	identities   identity.Store
	accounts     *account.Store
	history      *chat.HistoryStore
	builder      *chat.WindowBuilder
	conversation *services.Conversation
	recoverySvc  *recovery.Service
)

// Init wires the handler package. Must be called before the router is used.
func Init(
	ids identity.Store,
	accts *account.Store,
	hist *chat.HistoryStore,
	b *chat.WindowBuilder,
	conv *services.Conversation,
	rec *recovery.Service,
) {
	identities = ids
	accounts = accts
	history = hist
	builder = b
	conversation = conv
	recoverySvc = rec
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": status < 400,
		"message": message,
	})
}

// statusFor maps the shared error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, common.ErrInvalidState):
		return http.StatusForbidden
	case errors.Is(err, common.ErrConnection):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
