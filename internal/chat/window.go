package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SmakGames/Companion/internal/common"
	"github.com/SmakGames/Companion/internal/models"
	"github.com/SmakGames/Companion/internal/openai"
)

// DefaultWindowSize is how many prior messages feed the generation call.
const DefaultWindowSize = 5

// Recents is the slice of the history store the window builder reads.
type Recents interface {
	RecentBefore(ctx context.Context, userID string, limit int, before *time.Time) ([]models.ChatMessage, error)
}

// WindowBuilder assembles the bounded, chronologically ordered context window
// handed to the generation collaborator. It never calls the collaborator
// itself.
type WindowBuilder struct {
	history    Recents
	policy     StylePolicy
	windowSize int
}

// NewWindowBuilder creates a builder. A zero windowSize means
// DefaultWindowSize; a nil policy means DefaultStylePolicy.
func NewWindowBuilder(history Recents, policy StylePolicy, windowSize int) *WindowBuilder {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if policy == nil {
		policy = DefaultStylePolicy
	}
	return &WindowBuilder{history: history, policy: policy, windowSize: windowSize}
}

// Build returns the ordered exchange list for one turn: a leading system
// directive (tone picked by classifying current), the windowSize most recent
// prior messages in chronological order with roles mapped from authorship,
// and finally current as the closing "user" entry. When before is non-nil,
// only history strictly older than it is considered; the Talk flow passes the
// timestamp of the just-appended inbound message so the window holds what
// preceded it.
func (b *WindowBuilder) Build(ctx context.Context, userID, city, current string, before *time.Time) ([]openai.Message, error) {
	trimmed := strings.TrimSpace(current)
	if trimmed == "" {
		return nil, fmt.Errorf("current message is empty: %w", common.ErrValidation)
	}

	prior, err := b.history.RecentBefore(ctx, userID, b.windowSize, before)
	if err != nil {
		return nil, err
	}

	window := make([]openai.Message, 0, len(prior)+2)
	window = append(window, openai.Message{
		Role:    openai.RoleSystem,
		Content: b.policy.Directive(Classify(trimmed), city),
	})
	for _, m := range prior {
		role := openai.RoleAssistant
		if m.IsUserMessage {
			role = openai.RoleUser
		}
		window = append(window, openai.Message{Role: role, Content: m.Text})
	}
	window = append(window, openai.Message{Role: openai.RoleUser, Content: trimmed})

	return window, nil
}
