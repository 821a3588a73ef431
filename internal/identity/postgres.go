package identity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/SmakGames/Companion/internal/common"
	"github.com/SmakGames/Companion/internal/models"
)

// PostgresStore implements Store over the users table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NormalizeUsername lowercases and trims a username; all storage and lookup
// go through this form.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

const userColumns = `id, username, first_name, last_name, password_hash, COALESCE(security_answer_hash, ''), created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.PasswordHash, &u.SecurityAnswerHash, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("reading user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = $1`,
		NormalizeUsername(username))
	return scanUser(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// Create inserts the user row and its 1:1 account row in one transaction,
// carrying the optional profile fields. A failure on either insert leaves
// neither row behind, so a retried signup never hits a half-created user.
// The account starts Active with its creation timestamp set once.
func (s *PostgresStore) Create(ctx context.Context, u *models.User, profile *models.Account) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Username = NormalizeUsername(u.Username)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning signup: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (id, username, password_hash, first_name, last_name, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`, u.ID, u.Username, u.PasswordHash, u.FirstName, u.LastName).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	if profile != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO accounts (user_id, status, created_at,
			                      street, city, state, zip_code, phone_number, date_of_birth, gender)
			VALUES ($1, 'active', NOW(), $2, $3, $4, $5, $6, $7, $8)
		`, u.ID, profile.Street, profile.City, profile.State, profile.ZipCode,
			profile.PhoneNumber, profile.DateOfBirth, profile.Gender)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO accounts (user_id, status, created_at)
			VALUES ($1, 'active', NOW())
		`, u.ID)
	}
	if err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) SetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, common.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) SetSecurityAnswerHash(ctx context.Context, userID uuid.UUID, digest string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET security_answer_hash = $2 WHERE id = $1`, userID, digest)
	if err != nil {
		return fmt.Errorf("updating security answer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, common.ErrNotFound)
	}
	return nil
}
