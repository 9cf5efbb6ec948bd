package services

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/mocks"
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type chatFixture struct {
	svc      *ChatService
	users    *mocks.MockIUserRepository
	messages *mocks.MockIMessageRepository
	relay    *mocks.MockIRelay
	now      time.Time
}

func newChatFixture(t *testing.T) chatFixture {
	ctrl := gomock.NewController(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewMock()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	clk.Set(now)
	f := chatFixture{
		users:    mocks.NewMockIUserRepository(ctrl),
		messages: mocks.NewMockIMessageRepository(ctrl),
		relay:    mocks.NewMockIRelay(ctrl),
		now:      now,
	}
	f.svc = NewChatService(log, f.users, f.messages, f.relay, clk)
	return f
}

func TestChatService_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("should relay then store the message", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t)
		var relayed domain.Message

		f.users.EXPECT().FindByID(ctx, "bob").Return(domain.Identity{ID: "bob"}, nil)
		gomock.InOrder(
			f.relay.EXPECT().Deliver(ctx, "alice", "bob", gomock.Any()).
				DoAndReturn(func(_ context.Context, _, _ string, msg domain.Message) int {
					relayed = msg
					return 1
				}),
			f.messages.EXPECT().StoreMessage(ctx, gomock.Any()).Return(nil),
		)

		msg, err := f.svc.Send(ctx, "alice", "bob", SendCommand{Text: "  hello bob  "})

		req.NoError(err)
		req.Equal("hello bob", msg.Text)
		req.Equal("alice", msg.SenderID)
		req.Equal("bob", msg.RecipientID)
		req.Equal(f.now, msg.CreatedAt)
		req.Equal(relayed, msg)
	})

	t.Run("should store the message of an offline recipient", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t)

		f.users.EXPECT().FindByID(ctx, "bob").Return(domain.Identity{ID: "bob"}, nil)
		f.relay.EXPECT().Deliver(ctx, "alice", "bob", gomock.Any()).Return(0)
		f.messages.EXPECT().StoreMessage(ctx, gomock.Any()).Return(nil)

		_, err := f.svc.Send(ctx, "alice", "bob", SendCommand{Image: onePixelPNG})

		req.NoError(err)
	})

	t.Run("should report a storage failure after relaying", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t)
		diskFull := fmt.Errorf("no space left on device")

		f.users.EXPECT().FindByID(ctx, "bob").Return(domain.Identity{ID: "bob"}, nil)
		f.relay.EXPECT().Deliver(ctx, "alice", "bob", gomock.Any()).Return(1).Times(1)
		f.messages.EXPECT().StoreMessage(ctx, gomock.Any()).Return(diskFull)

		_, err := f.svc.Send(ctx, "alice", "bob", SendCommand{Text: "hi"})

		req.ErrorIs(err, diskFull)
	})

	t.Run("should refuse an empty message", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t)
		f.relay.EXPECT().Deliver(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := f.svc.Send(ctx, "alice", "bob", SendCommand{Text: "   "})

		req.ErrorIs(err, errors.ErrEmptyMessage)
	})

	t.Run("should refuse an unknown recipient", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t)
		f.users.EXPECT().FindByID(ctx, "ghost").Return(domain.Identity{}, errors.ErrIdentityNotFound)
		f.relay.EXPECT().Deliver(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := f.svc.Send(ctx, "alice", "ghost", SendCommand{Text: "anyone?"})

		req.ErrorIs(err, errors.ErrIdentityNotFound)
	})
}

func TestChatService_Reads(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newChatFixture(t)
	contacts := []domain.Identity{{ID: "bob"}, {ID: "carol"}}
	history := []domain.Message{{SenderID: "alice", RecipientID: "bob", Text: "hi"}}

	f.users.EXPECT().ListExcept(ctx, "alice").Return(contacts, nil)
	f.messages.EXPECT().GetConversation(ctx, "alice", "bob").Return(history, nil)

	users, err := f.svc.Users(ctx, "alice")
	req.NoError(err)
	req.Equal(contacts, users)

	messages, err := f.svc.Messages(ctx, "alice", "bob")
	req.NoError(err)
	req.Equal(history, messages)
}
