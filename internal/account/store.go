package account

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SmakGames/Companion/internal/clockx"
	"github.com/SmakGames/Companion/internal/common"
	"github.com/SmakGames/Companion/internal/models"
)

// Store reads and writes accounts in PostgreSQL. Every operation runs the
// lazy suspension sweep for the touched row inside the same transaction, so
// no caller can observe an expired account as Active.
type Store struct {
	db    *sql.DB
	clock clockx.Clock
}

// NewStore creates an account store.
func NewStore(db *sql.DB, clock clockx.Clock) *Store {
	return &Store{db: db, clock: clock}
}

// suspendExpired flips the stored status of one expired account to
// suspended. Runs inside the caller's transaction.
func suspendExpired(ctx context.Context, tx *sql.Tx, userID uuid.UUID, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts SET status = 'suspended'
		WHERE user_id = $1
		  AND subscription_expires_at IS NOT NULL
		  AND subscription_expires_at <= $2
		  AND status <> 'suspended'
	`, userID, now)
	return err
}

// Get returns the account for a user with its effective status.
func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning account read: %w", err)
	}
	defer tx.Rollback()

	if err := suspendExpired(ctx, tx, userID, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("applying expiry rule: %w", err)
	}

	a := &models.Account{UserID: userID}
	var status string
	var expires sql.NullTime
	var street, city, state, zipCode, phone, dob, gender sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT status, created_at, subscription_expires_at,
		       street, city, state, zip_code, phone_number, date_of_birth, gender
		FROM accounts WHERE user_id = $1
	`, userID).Scan(&status, &a.CreatedAt, &expires,
		&street, &city, &state, &zipCode, &phone, &dob, &gender)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("account for user %s: %w", userID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("reading account: %w", err)
	}

	a.Status = models.AccountStatus(status)
	if expires.Valid {
		t := expires.Time
		a.SubscriptionExpires = &t
	}
	a.Street = street.String
	a.City = city.String
	a.State = state.String
	a.ZipCode = zipCode.String
	a.PhoneNumber = phone.String
	a.DateOfBirth = dob.String
	a.Gender = gender.String

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing account read: %w", err)
	}
	return a, nil
}

// SetStatus stores a new status after validating it. The expiry rule is
// applied in the same transaction, so storing Active on an expired account
// still yields Suspended.
func (s *Store) SetStatus(ctx context.Context, userID uuid.UUID, status string) error {
	parsed, err := ParseStatus(status)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning status update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE accounts SET status = $2 WHERE user_id = $1`, userID, string(parsed))
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account for user %s: %w", userID, common.ErrNotFound)
	}

	if err := suspendExpired(ctx, tx, userID, s.clock.Now()); err != nil {
		return fmt.Errorf("applying expiry rule: %w", err)
	}
	return tx.Commit()
}

// SetSubscriptionExpiry sets or clears the subscription expiry and recomputes
// the status in one statement. Clearing or extending the expiry into the
// future is the renewal action that moves Suspended back to Active.
func (s *Store) SetSubscriptionExpiry(ctx context.Context, userID uuid.UUID, expires *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET subscription_expires_at = $2,
		    status = CASE
		        WHEN $2::timestamp IS NOT NULL AND $2::timestamp <= $3 THEN 'suspended'
		        ELSE 'active'
		    END
		WHERE user_id = $1
	`, userID, expires, s.clock.Now())
	if err != nil {
		return fmt.Errorf("updating subscription expiry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account for user %s: %w", userID, common.ErrNotFound)
	}
	return nil
}

// UpdateProfile writes the free-form profile fields, passed through
// unchanged. Status and timestamps are not touched here beyond the usual
// expiry sweep.
func (s *Store) UpdateProfile(ctx context.Context, a *models.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning profile update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET street = $2, city = $3, state = $4, zip_code = $5,
		    phone_number = $6, date_of_birth = $7, gender = $8
		WHERE user_id = $1
	`, a.UserID, a.Street, a.City, a.State, a.ZipCode, a.PhoneNumber, a.DateOfBirth, a.Gender)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account for user %s: %w", a.UserID, common.ErrNotFound)
	}

	if err := suspendExpired(ctx, tx, a.UserID, s.clock.Now()); err != nil {
		return fmt.Errorf("applying expiry rule: %w", err)
	}
	return tx.Commit()
}
