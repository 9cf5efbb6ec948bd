package server

import (
	"chat-presence/auth"
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/services"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	log     *slog.Logger
	service services.IChatService
}

func NewMessageHandler(log *slog.Logger, service services.IChatService) *MessageHandler {
	return &MessageHandler{log: log, service: service}
}

// Users lists the sidebar contacts, never the caller.
func (h *MessageHandler) Users(c *gin.Context) {
	identity, _ := auth.IdentityFromContext(c.Request.Context())
	users, err := h.service.Users(c.Request.Context(), identity.ID)
	if err != nil {
		h.log.Error("Listing users failed", "user_id", identity.ID, "error", err)
		abortWithError(c, err)
		return
	}
	if users == nil {
		users = []domain.Identity{}
	}
	c.JSON(http.StatusOK, users)
}

func (h *MessageHandler) Conversation(c *gin.Context) {
	identity, _ := auth.IdentityFromContext(c.Request.Context())
	messages, err := h.service.Messages(c.Request.Context(), identity.ID, c.Param("id"))
	if err != nil {
		h.log.Error("Reading conversation failed", "user_id", identity.ID, "error", err)
		abortWithError(c, err)
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

func (h *MessageHandler) Send(c *gin.Context) {
	identity, _ := auth.IdentityFromContext(c.Request.Context())
	var cmd services.SendCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err))
		return
	}
	msg, err := h.service.Send(c.Request.Context(), identity.ID, c.Param("id"), cmd)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
