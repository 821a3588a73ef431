package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/SmakGames/Companion/internal/common"
	"github.com/SmakGames/Companion/internal/models"
	"github.com/SmakGames/Companion/internal/openai"
)

// Fallback replies shown when the generation collaborator fails. The user's
// inbound message stays persisted regardless.
const (
	fallbackConnection = "Sorry, I had trouble connecting!"
	fallbackRateLimit  = "Too many chats right now—try again soon!"
	fallbackService    = "Something's off with the AI!"
	fallbackUnknown    = "Oops! Something unexpected happened."
)

// History is the slice of the chat history store the conversation flow
// writes to.
type History interface {
	Append(ctx context.Context, userID, text string, isUserMessage bool) (*models.ChatMessage, error)
}

// ContextBuilder assembles the exchange list for the generation call.
type ContextBuilder interface {
	Build(ctx context.Context, userID, city, current string, before *time.Time) ([]openai.Message, error)
}

// Generator is the external text-generation collaborator.
type Generator interface {
	Complete(ctx context.Context, messages []openai.Message, maxTokens int, temperature float32) (string, error)
}

// Conversation runs one chat turn: persist the inbound message, build the
// context window, call the generator under a bounded timeout, persist the
// reply.
type Conversation struct {
	history     History
	builder     ContextBuilder
	generator   Generator
	timeout     time.Duration
	maxTokens   int
	temperature float32
}

// NewConversation wires the turn pipeline. A zero timeout defaults to 30s.
func NewConversation(history History, builder ContextBuilder, generator Generator, timeout time.Duration) *Conversation {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Conversation{
		history:     history,
		builder:     builder,
		generator:   generator,
		timeout:     timeout,
		maxTokens:   256,
		temperature: 0.7,
	}
}

// Talk handles one inbound message and returns the reply text. The inbound
// message is appended before any external call, so a timed-out or failed
// generation still leaves it as the durable record of the turn. On generator
// failure the returned reply is a user-facing fallback, the error identifies
// the kind, and no assistant message is appended.
func (c *Conversation) Talk(ctx context.Context, user *models.User, acct *models.Account, text string) (string, error) {
	if acct.Status == models.StatusSuspended {
		return "", fmt.Errorf("account is suspended: %w", common.ErrInvalidState)
	}

	userID := user.ID.String()
	inbound, err := c.history.Append(ctx, userID, text, true)
	if err != nil {
		return "", err
	}

	if reply, ok := cannedReply(inbound.Text); ok {
		if _, err := c.history.Append(ctx, userID, reply, false); err != nil {
			log.Printf("failed to append canned reply for %s: %v", user.Username, err)
		}
		return reply, nil
	}

	window, err := c.builder.Build(ctx, userID, acct.City, inbound.Text, &inbound.Timestamp)
	if err != nil {
		return "", err
	}

	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.generator.Complete(genCtx, window, c.maxTokens, c.temperature)
	if err != nil {
		log.Printf("generation failed for %s: %v", user.Username, err)
		return fallbackFor(err), err
	}

	if _, err := c.history.Append(ctx, userID, reply, false); err != nil {
		log.Printf("failed to append assistant reply for %s: %v", user.Username, err)
	}
	return reply, nil
}

// cannedReply short-circuits a couple of phrases the companion always
// answers itself, without a generation call.
func cannedReply(text string) (string, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "help"):
		return "Uh oh. How can I help?", true
	case lower == "hey":
		return "Hey! What's up?", true
	}
	return "", false
}

func fallbackFor(err error) string {
	switch {
	case errors.Is(err, common.ErrConnection), errors.Is(err, context.DeadlineExceeded):
		return fallbackConnection
	case errors.Is(err, common.ErrRateLimited):
		return fallbackRateLimit
	case errors.Is(err, common.ErrService):
		return fallbackService
	default:
		return fallbackUnknown
	}
}
