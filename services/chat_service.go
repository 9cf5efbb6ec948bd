package services

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/repositories"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

type IChatService interface {
	Users(ctx context.Context, callerID string) ([]domain.Identity, error)
	Messages(ctx context.Context, callerID, otherID string) ([]domain.Message, error)
	Send(ctx context.Context, senderID, recipientID string, cmd SendCommand) (domain.Message, error)
}

type SendCommand struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

type ChatService struct {
	log               *slog.Logger
	userRepository    repositories.IUserRepository
	messageRepository repositories.IMessageRepository
	relay             contract.IRelay
	clock             clock.Clock
}

func NewChatService(log *slog.Logger, users repositories.IUserRepository,
	messages repositories.IMessageRepository, relay contract.IRelay, clk clock.Clock) *ChatService {
	if clk == nil {
		clk = clock.New()
	}
	return &ChatService{
		log:               log,
		userRepository:    users,
		messageRepository: messages,
		relay:             relay,
		clock:             clk,
	}
}

// Users lists every contact of the caller for the sidebar.
func (s *ChatService) Users(ctx context.Context, callerID string) ([]domain.Identity, error) {
	return s.userRepository.ListExcept(ctx, callerID)
}

func (s *ChatService) Messages(ctx context.Context, callerID, otherID string) ([]domain.Message, error) {
	return s.messageRepository.GetConversation(ctx, callerID, otherID)
}

// Send relays the message to the live connections of the recipient, then
// stores it. A storage failure is returned to the sender although the
// real-time push already happened; an offline recipient is not an error.
func (s *ChatService) Send(ctx context.Context, senderID, recipientID string, cmd SendCommand) (domain.Message, error) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" && cmd.Image == "" {
		return domain.Message{}, errors.ErrEmptyMessage
	}
	if cmd.Image != "" {
		if _, err := ValidateImage(cmd.Image); err != nil {
			return domain.Message{}, err
		}
	}
	if _, err := s.userRepository.FindByID(ctx, recipientID); err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		Image:       cmd.Image,
		CreatedAt:   s.clock.Now().UTC().Truncate(time.Millisecond),
	}

	delivered := s.relay.Deliver(ctx, senderID, recipientID, msg)
	if err := s.messageRepository.StoreMessage(ctx, msg); err != nil {
		s.log.Error("Message not persisted",
			"message_id", msg.ID, "sender_id", senderID, "recipient_id", recipientID,
			"delivered", delivered, "error", err)
		return domain.Message{}, fmt.Errorf("store message: %w", err)
	}
	s.log.Debug("Message sent",
		"message_id", msg.ID, "sender_id", senderID, "recipient_id", recipientID, "delivered", delivered)
	return msg, nil
}
