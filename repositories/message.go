//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-presence/domain"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	StoreMessage(ctx context.Context, message domain.Message) error
	GetConversation(ctx context.Context, a, b string) ([]domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type diskMessage struct {
	ID          string `json:"id"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"receiverId"`
	Text        string `json:"text,omitempty"`
	Image       string `json:"image,omitempty"`
	At          int64  `json:"at"`
}

func conversationPrefix(a, b string) string {
	return fmt.Sprintf("msg:%s:", domain.ConversationID(a, b))
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{conversation}:{timestamp_padded}:{uuid}" to:
//  1. Keep both directions of a conversation under one prefix.
//  2. Ensure chronological sorting using 19-digit zero padding.
//  3. Prevent collisions when two messages share the same nanosecond.
func (m MessageRepository) StoreMessage(_ context.Context, message domain.Message) error {
	key := fmt.Sprintf("%s%019d:%s",
		conversationPrefix(message.SenderID, message.RecipientID),
		message.CreatedAt.UnixNano(),
		message.ID,
	)
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// GetConversation returns the messages exchanged between a and b, oldest first.
// With a limit, only the most recent ones are kept.
func (m MessageRepository) GetConversation(_ context.Context, a, b string) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(conversationPrefix(a, b))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key, then walk back in time.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			var dm diskMessage
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &dm)
			})
			if err != nil {
				return err
			}
			message, err := toMessage(dm)
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:          message.ID.String(),
		SenderID:    message.SenderID,
		RecipientID: message.RecipientID,
		Text:        message.Text,
		Image:       message.Image,
		At:          message.CreatedAt.UnixNano(),
	}
}

func toMessage(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:          parsedID,
		SenderID:    dm.SenderID,
		RecipientID: dm.RecipientID,
		Text:        dm.Text,
		Image:       dm.Image,
		CreatedAt:   time.Unix(0, dm.At).UTC(),
	}, nil
}
