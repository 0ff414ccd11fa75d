package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-tracker-api/internal/models"
	"github.com/noah-isme/student-tracker-api/pkg/response"
)

type accountService interface {
	Profile(ctx context.Context, session *models.JWTClaims) (*models.User, error)
	ChangePassword(ctx context.Context, session *models.JWTClaims, req models.ChangePasswordRequest) error
	LinkTelegram(ctx context.Context, session *models.JWTClaims, req models.LinkTelegramRequest) (*models.User, error)
}

// UserHandler serves the signed-in account.
type UserHandler struct {
	accounts accountService
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(accounts accountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// Profile godoc
// @Summary Account profile
// @Tags Account
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /account [get]
func (h *UserHandler) Profile(c *gin.Context) {
	user, err := h.accounts.Profile(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// ChangePassword godoc
// @Summary Change password
// @Description Other sessions are signed out
// @Tags Account
// @Accept json
// @Param payload body models.ChangePasswordRequest true "Passwords"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /account/password [put]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if !bindJSON(c, &req, "invalid password payload") {
		return
	}
	if err := h.accounts.ChangePassword(c.Request.Context(), claimsFromContext(c), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// LinkTelegram godoc
// @Summary Link Telegram chat
// @Description Activity alerts go to this chat; chat_id 0 unlinks
// @Tags Account
// @Accept json
// @Produce json
// @Param payload body models.LinkTelegramRequest true "Chat"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /account/telegram [put]
func (h *UserHandler) LinkTelegram(c *gin.Context) {
	var req models.LinkTelegramRequest
	if !bindJSON(c, &req, "invalid telegram payload") {
		return
	}
	user, err := h.accounts.LinkTelegram(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}
