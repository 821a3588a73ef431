package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SmakGames/Companion/internal/clockx"
	"github.com/SmakGames/Companion/internal/common"
	"github.com/SmakGames/Companion/internal/models"
)

// MaxMessageLength is the upper bound on a chat message body, in characters.
const MaxMessageLength = 5000

const (
	userEntryTTL     = 30 * time.Minute
	userEntryCleanup = 5 * time.Minute
)

// userLog tracks the last timestamp handed out for one user so that appends
// for the same user get strictly increasing timestamps in call order even
// when the wall clock reads the same millisecond twice.
type userLog struct {
	mu     sync.Mutex
	lastTS time.Time

	lastUse time.Time // guarded by HistoryStore.mu, not mu
}

// HistoryStore is the append-only per-user message log, backed by MongoDB.
// Messages are never mutated or deleted; the only ordering guaranteed across
// messages is timestamp ascending.
type HistoryStore struct {
	col   *mongo.Collection
	clock clockx.Clock

	mu      sync.Mutex
	users   map[string]*userLog
	cleanup bool
}

// NewHistoryStore creates a history store over the given collection.
func NewHistoryStore(col *mongo.Collection, clock clockx.Clock) *HistoryStore {
	return &HistoryStore{
		col:   col,
		clock: clock,
		users: make(map[string]*userLog),
	}
}

// EnsureIndexes configures the (user_id, timestamp) index used by Recent.
// Called on startup from main after Mongo has connected.
func (s *HistoryStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "timestamp", Value: -1},
		},
		Options: options.Index().SetName("idx_user_timestamp"),
	})
	return err
}

// Append validates and persists one message for the user, assigning the
// timestamp at append time. Empty (after trimming) or oversized text fails
// with a validation error and nothing is written.
func (s *HistoryStore) Append(ctx context.Context, userID, text string, isUserMessage bool) (*models.ChatMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("message text is empty: %w", common.ErrValidation)
	}
	if len([]rune(trimmed)) > MaxMessageLength {
		return nil, fmt.Errorf("message text exceeds %d characters: %w", MaxMessageLength, common.ErrValidation)
	}

	msg := models.ChatMessage{
		UserID:        userID,
		Text:          trimmed,
		IsUserMessage: isUserMessage,
		Timestamp:     s.nextTimestamp(userID),
	}

	res, err := s.col.InsertOne(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("inserting chat message: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}
	return &msg, nil
}

// Recent returns up to limit most recent messages for the user in ascending
// timestamp order. Read-only.
func (s *HistoryStore) Recent(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	return s.RecentBefore(ctx, userID, limit, nil)
}

// RecentBefore is Recent restricted to messages strictly older than before,
// when before is non-nil. Used to window the history that preceded a message
// that has already been appended.
func (s *HistoryStore) RecentBefore(ctx context.Context, userID string, limit int, before *time.Time) ([]models.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	cur, err := s.col.Find(ctx, recentFilter(userID, before), recentOptions(limit))
	if err != nil {
		return nil, fmt.Errorf("loading chat history: %w", err)
	}
	defer cur.Close(ctx)

	var msgs []models.ChatMessage
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("decoding chat history: %w", err)
	}

	return oldestFirst(msgs), nil
}

// recentFilter selects one user's messages, bounded to strictly older than
// before when the cursor is set.
func recentFilter(userID string, before *time.Time) bson.M {
	filter := bson.M{"user_id": userID}
	if before != nil {
		filter["timestamp"] = bson.M{"$lt": before.UTC()}
	}
	return filter
}

// recentOptions sorts newest-first (ties broken by _id) and caps the result
// at limit, so the query returns the limit most recent messages.
func recentOptions(limit int) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
}

// oldestFirst reverses a newest-first query result in place to the ascending
// order history readers see.
func oldestFirst(msgs []models.ChatMessage) []models.ChatMessage {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}

// nextTimestamp hands out the append timestamp for one user. Serialized per
// user: when the clock has not advanced past the previous append, the new
// timestamp is bumped one millisecond so call order survives a Mongo sort
// (BSON datetimes carry millisecond precision).
func (s *HistoryStore) nextTimestamp(userID string) time.Time {
	for {
		u := s.userEntry(userID)
		u.mu.Lock()

		// The cleanup pass may have dropped this entry between the map
		// lookup and the lock. Minting from an orphaned entry would let a
		// concurrent append start a second log for the same user, so start
		// over with the registered one.
		s.mu.Lock()
		registered := s.users[userID] == u
		s.mu.Unlock()
		if !registered {
			u.mu.Unlock()
			continue
		}

		ts := s.clock.Now().UTC().Truncate(time.Millisecond)
		if !ts.After(u.lastTS) {
			ts = u.lastTS.Add(time.Millisecond)
		}
		u.lastTS = ts
		u.mu.Unlock()
		return ts
	}
}

func (s *HistoryStore) userEntry(userID string) *userLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCleanupOnce()

	u, ok := s.users[userID]
	if !ok {
		u = &userLog{}
		s.users[userID] = u
	}
	u.lastUse = time.Now()
	return u
}

func (s *HistoryStore) startCleanupOnce() {
	if s.cleanup {
		return
	}
	s.cleanup = true
	go func() {
		ticker := time.NewTicker(userEntryCleanup)
		defer ticker.Stop()
		for range ticker.C {
			s.mu.Lock()
			now := time.Now()
			for k, u := range s.users {
				if now.Sub(u.lastUse) > userEntryTTL {
					delete(s.users, k)
				}
			}
			s.mu.Unlock()
		}
	}()
}
