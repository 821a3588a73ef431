package models

import (
	"time"

	"github.com/google/uuid"
)

// AccountStatus is the lifecycle state of an account.
// Valid values: "active", "suspended".
type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusSuspended AccountStatus = "suspended"
)

// User is the identity record stored in PostgreSQL.
// The security answer is stored only as a one-way digest.
type User struct {
	ID                 uuid.UUID `json:"id"`
	Username           string    `json:"username"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	PasswordHash       string    `json:"-"`
	SecurityAnswerHash string    `json:"-"` // empty when no answer is configured
	CreatedAt          time.Time `json:"created_at"`
}

// Account is the user's profile record (1:1 with User). Status is what was
// last stored; callers must go through the account store, which applies the
// subscription-expiry rule on every read and write.
type Account struct {
	UserID              uuid.UUID     `json:"user_id"`
	Status              AccountStatus `json:"status"`
	CreatedAt           time.Time     `json:"created_at"`
	SubscriptionExpires *time.Time    `json:"subscription_expires,omitempty"`

	// Free-form profile fields, passed through unchanged.
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	ZipCode     string `json:"zip_code,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Gender      string `json:"gender,omitempty"`
}
