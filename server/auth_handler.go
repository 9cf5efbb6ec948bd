package server

import (
	"chat-presence/auth"
	"chat-presence/errors"
	"chat-presence/services"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	log     *slog.Logger
	service services.IAuthService
	cookie  auth.CookieOptions
}

func NewAuthHandler(log *slog.Logger, service services.IAuthService, cookie auth.CookieOptions) *AuthHandler {
	return &AuthHandler{log: log, service: service, cookie: cookie}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req auth.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err))
		return
	}
	identity, credential, err := h.service.Signup(c.Request.Context(), req)
	if err != nil {
		h.log.Debug("Signup failed", "email", req.Email, "error", err)
		abortWithError(c, err)
		return
	}
	auth.SetCredentialCookie(c.Writer, credential, h.cookie)
	c.JSON(http.StatusCreated, identity)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err))
		return
	}
	identity, credential, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	auth.SetCredentialCookie(c.Writer, credential, h.cookie)
	c.JSON(http.StatusOK, identity)
}

// Logout only clears the cookie, live sockets stay open until the client
// closes them.
func (h *AuthHandler) Logout(c *gin.Context) {
	auth.ClearCredentialCookie(c.Writer, h.cookie)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

type updateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	identity, _ := auth.IdentityFromContext(c.Request.Context())
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err))
		return
	}
	updated, err := h.service.UpdateProfile(c.Request.Context(), identity.ID, req.ProfilePic)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *AuthHandler) Check(c *gin.Context) {
	identity, _ := auth.IdentityFromContext(c.Request.Context())
	c.JSON(http.StatusOK, identity)
}
