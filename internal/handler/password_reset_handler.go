package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-tracker-api/internal/models"
	"github.com/noah-isme/student-tracker-api/pkg/response"
)

type passwordResetService interface {
	RequestReset(ctx context.Context, req models.ForgotPasswordRequest) error
	Reset(ctx context.Context, req models.ResetPasswordRequest) error
}

// PasswordResetHandler serves the signed-out password recovery flow.
type PasswordResetHandler struct {
	resets passwordResetService
}

// NewPasswordResetHandler constructs PasswordResetHandler.
func NewPasswordResetHandler(resets passwordResetService) *PasswordResetHandler {
	return &PasswordResetHandler{resets: resets}
}

// Forgot godoc
// @Summary Request a password reset link
// @Description The response is the same whether or not the address is registered
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.ForgotPasswordRequest true "Email"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /auth/password/forgot [post]
func (h *PasswordResetHandler) Forgot(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if !bindJSON(c, &req, "invalid email payload") {
		return
	}
	if err := h.resets.RequestReset(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"message": "if the address is registered a reset link has been sent"}, nil)
}

// Reset godoc
// @Summary Reset password with an emailed token
// @Description Signs out every session of the account
// @Tags Auth
// @Accept json
// @Param payload body models.ResetPasswordRequest true "Token and new password"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Router /auth/password/reset [post]
func (h *PasswordResetHandler) Reset(c *gin.Context) {
	var req models.ResetPasswordRequest
	if !bindJSON(c, &req, "invalid reset payload") {
		return
	}
	if err := h.resets.Reset(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
