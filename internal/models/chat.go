package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatMessage is stored in MongoDB, one document per message. Messages are
// immutable once created and ordered only by Timestamp ascending.
type ChatMessage struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        string             `bson:"user_id" json:"user_id"`
	Text          string             `bson:"text" json:"text"`
	IsUserMessage bool               `bson:"is_user_message" json:"is_user_message"`
	Timestamp     time.Time          `bson:"timestamp" json:"timestamp"`
}
