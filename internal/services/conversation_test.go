package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmakGames/Companion/internal/common"
	"github.com/SmakGames/Companion/internal/models"
	"github.com/SmakGames/Companion/internal/openai"
)

type appendCall struct {
	text          string
	isUserMessage bool
}

// turnRecorder fakes all three collaborators and records the call order.
type turnRecorder struct {
	calls   []string
	appends []appendCall

	appendErr error
	buildErr  error

	builtBefore *time.Time
	builtCity   string

	reply        string
	generatorErr error
}

func (r *turnRecorder) Append(_ context.Context, _ string, text string, isUserMessage bool) (*models.ChatMessage, error) {
	r.calls = append(r.calls, "append")
	if r.appendErr != nil {
		return nil, r.appendErr
	}
	r.appends = append(r.appends, appendCall{text: text, isUserMessage: isUserMessage})
	return &models.ChatMessage{
		UserID:        "u1",
		Text:          text,
		IsUserMessage: isUserMessage,
		Timestamp:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(len(r.appends)) * time.Millisecond),
	}, nil
}

func (r *turnRecorder) Build(_ context.Context, _ string, city, current string, before *time.Time) ([]openai.Message, error) {
	r.calls = append(r.calls, "build")
	if r.buildErr != nil {
		return nil, r.buildErr
	}
	r.builtBefore = before
	r.builtCity = city
	return []openai.Message{
		{Role: openai.RoleSystem, Content: "directive"},
		{Role: openai.RoleUser, Content: current},
	}, nil
}

func (r *turnRecorder) Complete(_ context.Context, _ []openai.Message, _ int, _ float32) (string, error) {
	r.calls = append(r.calls, "generate")
	if r.generatorErr != nil {
		return "", r.generatorErr
	}
	return r.reply, nil
}

func activeUser() (*models.User, *models.Account) {
	id := uuid.New()
	return &models.User{ID: id, Username: "margaret"},
		&models.Account{UserID: id, Status: models.StatusActive, City: "Chicago"}
}

func TestTalk(t *testing.T) {
	ctx := context.Background()

	t.Run("successful turn persists both sides", func(t *testing.T) {
		rec := &turnRecorder{reply: "Lovely day for it."}
		c := NewConversation(rec, rec, rec, time.Second)
		user, acct := activeUser()

		reply, err := c.Talk(ctx, user, acct, "I went for a walk")
		require.NoError(t, err)
		assert.Equal(t, "Lovely day for it.", reply)

		assert.Equal(t, []string{"append", "build", "generate", "append"}, rec.calls)
		require.Len(t, rec.appends, 2)
		assert.True(t, rec.appends[0].isUserMessage)
		assert.Equal(t, "I went for a walk", rec.appends[0].text)
		assert.False(t, rec.appends[1].isUserMessage)
		assert.Equal(t, "Lovely day for it.", rec.appends[1].text)
	})

	t.Run("inbound is persisted before the window is built", func(t *testing.T) {
		rec := &turnRecorder{reply: "ok"}
		c := NewConversation(rec, rec, rec, time.Second)
		user, acct := activeUser()

		_, err := c.Talk(ctx, user, acct, "hello there")
		require.NoError(t, err)
		// The window is bounded by the inbound timestamp, so only prior
		// history feeds the generation call.
		require.NotNil(t, rec.builtBefore)
		assert.Equal(t, "Chicago", rec.builtCity)
	})

	t.Run("suspended account refuses the turn", func(t *testing.T) {
		rec := &turnRecorder{reply: "ok"}
		c := NewConversation(rec, rec, rec, time.Second)
		user, acct := activeUser()
		acct.Status = models.StatusSuspended

		_, err := c.Talk(ctx, user, acct, "hello")
		assert.ErrorIs(t, err, common.ErrInvalidState)
		assert.Empty(t, rec.calls)
	})

	t.Run("generator failure keeps the inbound and skips the reply", func(t *testing.T) {
		rec := &turnRecorder{generatorErr: common.ErrService}
		c := NewConversation(rec, rec, rec, time.Second)
		user, acct := activeUser()

		reply, err := c.Talk(ctx, user, acct, "tell me a story")
		assert.ErrorIs(t, err, common.ErrService)
		assert.Equal(t, fallbackService, reply)

		// Exactly one append: the user's message. No assistant fallback is
		// written to history.
		require.Len(t, rec.appends, 1)
		assert.True(t, rec.appends[0].isUserMessage)
	})

	t.Run("fallback text per failure kind", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want string
		}{
			{"connection", common.ErrConnection, fallbackConnection},
			{"timeout", context.DeadlineExceeded, fallbackConnection},
			{"rate limited", common.ErrRateLimited, fallbackRateLimit},
			{"service", common.ErrService, fallbackService},
			{"unknown", assert.AnError, fallbackUnknown},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := &turnRecorder{generatorErr: tt.err}
				c := NewConversation(rec, rec, rec, time.Second)
				user, acct := activeUser()

				reply, err := c.Talk(ctx, user, acct, "morning")
				assert.ErrorIs(t, err, tt.err)
				assert.Equal(t, tt.want, reply)
			})
		}
	})

	t.Run("append failure aborts the turn", func(t *testing.T) {
		rec := &turnRecorder{appendErr: common.ErrValidation}
		c := NewConversation(rec, rec, rec, time.Second)
		user, acct := activeUser()

		_, err := c.Talk(ctx, user, acct, "")
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.Equal(t, []string{"append"}, rec.calls)
	})
}

func TestCannedReplies(t *testing.T) {
	ctx := context.Background()

	t.Run("help anywhere in the message", func(t *testing.T) {
		rec := &turnRecorder{}
		c := NewConversation(rec, rec, rec, time.Second)
		user, acct := activeUser()

		reply, err := c.Talk(ctx, user, acct, "I could use some HELP with this")
		require.NoError(t, err)
		assert.Equal(t, "Uh oh. How can I help?", reply)
		// No generation call; both sides of the exchange are persisted.
		assert.Equal(t, []string{"append", "append"}, rec.calls)
		assert.False(t, rec.appends[1].isUserMessage)
	})

	t.Run("hey must be the whole message", func(t *testing.T) {
		rec := &turnRecorder{}
		c := NewConversation(rec, rec, rec, time.Second)
		user, acct := activeUser()

		reply, err := c.Talk(ctx, user, acct, "hey")
		require.NoError(t, err)
		assert.Equal(t, "Hey! What's up?", reply)
	})

	t.Run("hey inside a sentence goes to the generator", func(t *testing.T) {
		rec := &turnRecorder{reply: "generated"}
		c := NewConversation(rec, rec, rec, time.Second)
		user, acct := activeUser()

		reply, err := c.Talk(ctx, user, acct, "hey there friend")
		require.NoError(t, err)
		assert.Equal(t, "generated", reply)
		assert.Contains(t, rec.calls, "generate")
	})
}
