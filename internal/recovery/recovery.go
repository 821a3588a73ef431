// Package recovery implements the credential-recovery workflow: hashed
// security-answer verification and password reset, both gated by the shared
// rate limiter keyed by client IP.
package recovery

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/SmakGames/Companion/internal/common"
	"github.com/SmakGames/Companion/internal/identity"
	"github.com/SmakGames/Companion/internal/models"
	"github.com/SmakGames/Companion/internal/ratelimit"
	"github.com/SmakGames/Companion/pkg/utils"
)

// Operation kinds sharing the limiter table.
const (
	OpPasswordReset  = "password_reset"
	OpSecurityAnswer = "security_answer"
)

// MinPasswordLength applies to new passwords set through recovery.
const MinPasswordLength = 8

// TooManyAttemptsError carries the attempt count so callers can communicate
// wait time. Matches common.ErrRateLimited through errors.Is.
type TooManyAttemptsError struct {
	Attempts int64
}

func (e *TooManyAttemptsError) Error() string {
	return fmt.Sprintf("too many attempts (%d in the current window)", e.Attempts)
}

func (e *TooManyAttemptsError) Unwrap() error { return common.ErrRateLimited }

// HashAnswer computes the one-way digest of a security answer. The answer is
// lower-cased and trimmed first so comparison is case-insensitive; the
// plaintext is never persisted or logged.
func HashAnswer(answer string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(answer))))
	return hex.EncodeToString(sum[:])
}

// Service orchestrates recovery against the identity store.
type Service struct {
	ids     identity.Store
	limiter *ratelimit.Limiter
}

// NewService creates the recovery service.
func NewService(ids identity.Store, limiter *ratelimit.Limiter) *Service {
	return &Service{ids: ids, limiter: limiter}
}

// gate records the attempt and rejects when the window threshold is passed.
// Limiter-store failures admit the request (fail open), matching how the rest
// of the stack treats a Redis outage.
func (s *Service) gate(ctx context.Context, kind, clientIP string) error {
	allowed, attempts, err := s.limiter.Allow(ctx, kind, clientIP)
	if err != nil {
		log.Printf("rate limiter unavailable for %s, allowing request: %v", kind, err)
		return nil
	}
	if !allowed {
		return &TooManyAttemptsError{Attempts: attempts}
	}
	return nil
}

// ResetPassword verifies the security answer and sets the new password.
// Every failure path leaves the account untouched. The attempt is recorded
// before anything else so rejected attempts still count.
func (s *Service) ResetPassword(ctx context.Context, clientIP, username, securityAnswer, newPassword string) (*models.User, error) {
	if err := s.gate(ctx, OpPasswordReset, clientIP); err != nil {
		return nil, err
	}

	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("username is required: %w", common.ErrValidation)
	}
	if len(newPassword) < MinPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w", MinPasswordLength, common.ErrValidation)
	}

	user, err := s.ids.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.SecurityAnswerHash == "" {
		return nil, fmt.Errorf("no security answer configured: %w", common.ErrNotFound)
	}

	digest := HashAnswer(securityAnswer)
	if subtle.ConstantTimeCompare([]byte(digest), []byte(user.SecurityAnswerHash)) != 1 {
		return nil, fmt.Errorf("security answer mismatch: %w", common.ErrAuthentication)
	}

	passwordHash, err := utils.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hashing new password: %w", err)
	}
	if err := s.ids.SetPassword(ctx, user.ID, passwordHash); err != nil {
		return nil, err
	}
	return user, nil
}

// SetSecurityAnswer stores the digest of a new answer for an
// already-authenticated user. Idempotent: the same answer always produces
// the same stored digest.
func (s *Service) SetSecurityAnswer(ctx context.Context, clientIP string, userID uuid.UUID, newAnswer string) error {
	if err := s.gate(ctx, OpSecurityAnswer, clientIP); err != nil {
		return err
	}
	if strings.TrimSpace(newAnswer) == "" {
		return fmt.Errorf("security answer is required: %w", common.ErrValidation)
	}
	return s.ids.SetSecurityAnswerHash(ctx, userID, HashAnswer(newAnswer))
}
