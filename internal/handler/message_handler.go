package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-tracker-api/internal/models"
	"github.com/noah-isme/student-tracker-api/pkg/response"
)

type messageService interface {
	Thread(ctx context.Context, session *models.JWTClaims, studentID string) ([]models.Message, error)
	Send(ctx context.Context, session *models.JWTClaims, studentID string, req models.CreateMessageRequest) (*models.Message, error)
	MarkRead(ctx context.Context, session *models.JWTClaims, studentID string) (int64, error)
	TeacherMessages(ctx context.Context, session *models.JWTClaims, teacherID string) ([]models.TeacherMessage, error)
}

type assignmentService interface {
	Create(ctx context.Context, session *models.JWTClaims, studentID string, req models.CreateAssignmentRequest) (*models.Assignment, error)
	List(ctx context.Context, session *models.JWTClaims, studentID string) ([]models.Assignment, error)
	SetCompleted(ctx context.Context, session *models.JWTClaims, id string, req models.CompleteAssignmentRequest) (*models.Assignment, error)
}

// MessageHandler serves the per-student message thread and homework assignments.
type MessageHandler struct {
	messages    messageService
	assignments assignmentService
}

// NewMessageHandler constructs MessageHandler.
func NewMessageHandler(messages messageService, assignments assignmentService) *MessageHandler {
	return &MessageHandler{messages: messages, assignments: assignments}
}

// Thread godoc
// @Summary Message thread
// @Description Latest 50 messages, oldest first
// @Tags Messages
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/messages [get]
func (h *MessageHandler) Thread(c *gin.Context) {
	messages, err := h.messages.Thread(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// Send godoc
// @Summary Send message
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body models.CreateMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	var req models.CreateMessageRequest
	if !bindJSON(c, &req, "invalid message payload") {
		return
	}
	msg, err := h.messages.Send(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// MarkRead godoc
// @Summary Mark thread read
// @Description Marks messages from other participants as read
// @Tags Messages
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/messages/read [post]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	n, err := h.messages.MarkRead(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"marked": n}, nil)
}

// TeacherMessages godoc
// @Summary Messages across a teacher's students
// @Description Latest 50 messages of every thread owned by the teacher, oldest first
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /teachers/{id}/messages [get]
func (h *MessageHandler) TeacherMessages(c *gin.Context) {
	messages, err := h.messages.TeacherMessages(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// CreateAssignment godoc
// @Summary Assign homework
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body models.CreateAssignmentRequest true "Assignment"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/assignments [post]
func (h *MessageHandler) CreateAssignment(c *gin.Context) {
	var req models.CreateAssignmentRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	assignment, err := h.assignments.Create(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// ListAssignments godoc
// @Summary List homework assignments
// @Tags Assignments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/assignments [get]
func (h *MessageHandler) ListAssignments(c *gin.Context) {
	assignments, err := h.assignments.List(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// CompleteAssignment godoc
// @Summary Toggle assignment completion
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body models.CompleteAssignmentRequest true "Completion"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /assignments/{id}/complete [patch]
func (h *MessageHandler) CompleteAssignment(c *gin.Context) {
	var req models.CompleteAssignmentRequest
	if !bindJSON(c, &req, "invalid completion payload") {
		return
	}
	assignment, err := h.assignments.SetCompleted(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}
