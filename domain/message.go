// Package domain contains core concepts of the chat system.
// This file defines direct Message values.
// Messages are immutable once created.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable direct message between two identities.
type Message struct {
	ID          uuid.UUID `json:"_id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"receiverId"`
	Text        string    `json:"text,omitempty"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ConversationID is the same for both directions of a conversation.
func ConversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
