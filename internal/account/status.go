// Package account owns account lifecycle: the Active/Suspended status rule
// driven by subscription expiry, and the PostgreSQL store that enforces it on
// every read and write.
package account

import (
	"fmt"
	"time"

	"github.com/SmakGames/Companion/internal/common"
	"github.com/SmakGames/Companion/internal/models"
)

// ParseStatus validates a raw status value. Anything outside
// {active, suspended} is rejected.
func ParseStatus(s string) (models.AccountStatus, error) {
	switch models.AccountStatus(s) {
	case models.StatusActive, models.StatusSuspended:
		return models.AccountStatus(s), nil
	default:
		return "", fmt.Errorf("status %q: %w", s, common.ErrInvalidState)
	}
}

// Effective applies the subscription-expiry rule: an account is Suspended
// whenever its expiry is set and at or before now, regardless of the stored
// status. Pure; the stored status only matters when the expiry rule does not
// force suspension.
func Effective(stored models.AccountStatus, expires *time.Time, now time.Time) models.AccountStatus {
	if expires != nil && !expires.After(now) {
		return models.StatusSuspended
	}
	return stored
}

// Apply rewrites a.Status to its effective value and reports whether it
// changed.
func Apply(a *models.Account, now time.Time) bool {
	effective := Effective(a.Status, a.SubscriptionExpires, now)
	if effective == a.Status {
		return false
	}
	a.Status = effective
	return true
}
