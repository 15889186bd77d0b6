package models

import "time"

// Message represents a direct message between two users.
// Messages are immutable once persisted. At least one of Text and Image
// is always set.
type Message struct {
	ID         string    `json:"id"` // ULID, lexically ordered by creation time
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
