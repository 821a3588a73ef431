package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmakGames/Companion/internal/clockx"
	"github.com/SmakGames/Companion/internal/common"
	"github.com/SmakGames/Companion/internal/models"
	"github.com/SmakGames/Companion/internal/ratelimit"
	"github.com/SmakGames/Companion/pkg/utils"
)

// fakeIdentities is a one-user identity store tracking mutations.
type fakeIdentities struct {
	user *models.User

	setPasswords []string
	setDigests   []string
}

func (f *fakeIdentities) FindByUsername(_ context.Context, username string) (*models.User, error) {
	if f.user != nil && f.user.Username == username {
		u := *f.user
		return &u, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeIdentities) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if f.user != nil && f.user.ID == id {
		u := *f.user
		return &u, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeIdentities) Create(_ context.Context, _ *models.User, _ *models.Account) error {
	return nil
}

func (f *fakeIdentities) SetPassword(_ context.Context, _ uuid.UUID, passwordHash string) error {
	f.setPasswords = append(f.setPasswords, passwordHash)
	return nil
}

func (f *fakeIdentities) SetSecurityAnswerHash(_ context.Context, _ uuid.UUID, digest string) error {
	f.setDigests = append(f.setDigests, digest)
	return nil
}

func newTestService(ids *fakeIdentities) *Service {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(clockx.System{}), time.Hour, 5)
	return NewService(ids, limiter)
}

func userWithAnswer(answer string) *fakeIdentities {
	return &fakeIdentities{user: &models.User{
		ID:                 uuid.New(),
		Username:           "margaret",
		SecurityAnswerHash: HashAnswer(answer),
	}}
}

func TestHashAnswer(t *testing.T) {
	// Case and surrounding whitespace never matter.
	assert.Equal(t, HashAnswer("Blue"), HashAnswer("blue"))
	assert.Equal(t, HashAnswer("  blue  "), HashAnswer("blue"))
	assert.NotEqual(t, HashAnswer("blue"), HashAnswer("green"))
	// The digest is a hex sha-256, never the plaintext.
	assert.Len(t, HashAnswer("blue"), 64)
	assert.NotContains(t, HashAnswer("blue"), "blue")
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("correct answer resets the password", func(t *testing.T) {
		ids := userWithAnswer("Blue")
		svc := newTestService(ids)

		user, err := svc.ResetPassword(ctx, "1.2.3.4", "margaret", "blue", "brand-new-pass")
		require.NoError(t, err)
		assert.Equal(t, "margaret", user.Username)
		require.Len(t, ids.setPasswords, 1)

		ok, err := utils.VerifyPassword("brand-new-pass", ids.setPasswords[0])
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("wrong answer never mutates", func(t *testing.T) {
		ids := userWithAnswer("Blue")
		svc := newTestService(ids)

		_, err := svc.ResetPassword(ctx, "1.2.3.4", "margaret", "green", "brand-new-pass")
		assert.ErrorIs(t, err, common.ErrAuthentication)
		assert.Empty(t, ids.setPasswords)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc := newTestService(&fakeIdentities{})
		_, err := svc.ResetPassword(ctx, "1.2.3.4", "nobody", "blue", "brand-new-pass")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("no answer configured", func(t *testing.T) {
		ids := &fakeIdentities{user: &models.User{ID: uuid.New(), Username: "margaret"}}
		svc := newTestService(ids)

		_, err := svc.ResetPassword(ctx, "1.2.3.4", "margaret", "blue", "brand-new-pass")
		assert.ErrorIs(t, err, common.ErrNotFound)
		assert.Empty(t, ids.setPasswords)
	})

	t.Run("short password rejected", func(t *testing.T) {
		ids := userWithAnswer("Blue")
		svc := newTestService(ids)

		_, err := svc.ResetPassword(ctx, "1.2.3.4", "margaret", "blue", "short")
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.Empty(t, ids.setPasswords)
	})

	t.Run("sixth attempt from one address is rejected", func(t *testing.T) {
		ids := userWithAnswer("Blue")
		svc := newTestService(ids)

		for i := 0; i < 5; i++ {
			_, err := svc.ResetPassword(ctx, "9.9.9.9", "margaret", "green", "brand-new-pass")
			assert.ErrorIs(t, err, common.ErrAuthentication)
		}

		_, err := svc.ResetPassword(ctx, "9.9.9.9", "margaret", "blue", "brand-new-pass")
		var tooMany *TooManyAttemptsError
		require.ErrorAs(t, err, &tooMany)
		assert.Equal(t, int64(6), tooMany.Attempts)
		assert.ErrorIs(t, err, common.ErrRateLimited)
		// Even the correct answer does not go through once the window is hot.
		assert.Empty(t, ids.setPasswords)

		// A different address is unaffected.
		_, err = svc.ResetPassword(ctx, "8.8.8.8", "margaret", "blue", "brand-new-pass")
		assert.NoError(t, err)
	})
}

func TestSetSecurityAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the digest", func(t *testing.T) {
		ids := userWithAnswer("old")
		svc := newTestService(ids)

		err := svc.SetSecurityAnswer(ctx, "1.2.3.4", ids.user.ID, "Maple Street")
		require.NoError(t, err)
		require.Len(t, ids.setDigests, 1)
		assert.Equal(t, HashAnswer("maple street"), ids.setDigests[0])
	})

	t.Run("idempotent for the same answer", func(t *testing.T) {
		ids := userWithAnswer("old")
		svc := newTestService(ids)

		require.NoError(t, svc.SetSecurityAnswer(ctx, "1.2.3.4", ids.user.ID, "Maple Street"))
		require.NoError(t, svc.SetSecurityAnswer(ctx, "1.2.3.4", ids.user.ID, "  MAPLE STREET "))
		require.Len(t, ids.setDigests, 2)
		assert.Equal(t, ids.setDigests[0], ids.setDigests[1])
	})

	t.Run("empty answer rejected", func(t *testing.T) {
		ids := userWithAnswer("old")
		svc := newTestService(ids)

		err := svc.SetSecurityAnswer(ctx, "1.2.3.4", ids.user.ID, "   ")
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.Empty(t, ids.setDigests)
	})
}
