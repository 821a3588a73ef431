// Package identity is the user identity store: username lookup, credential
// storage, and the security-answer digest column. Chat and account data live
// elsewhere; this package only answers "who is this" and "set their secret".
package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/SmakGames/Companion/internal/models"
)

// Store is the identity collaborator consumed by the recovery service and
// the HTTP layer.
type Store interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, u *models.User, profile *models.Account) error
	SetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	SetSecurityAnswerHash(ctx context.Context, userID uuid.UUID, digest string) error
}
