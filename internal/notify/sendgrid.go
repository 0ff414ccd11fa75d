package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/noah-isme/student-tracker-api/internal/models"
)

type mailSender interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer sends account mail through the SendGrid v3 API.
type SendGridMailer struct {
	client     mailSender
	from       *sgmail.Email
	subjPrefix string
	logger     *zap.Logger
}

// NewSendGridMailer builds a mailer for the given API key and sender.
func NewSendGridMailer(apiKey, appName, fromEmail string, logger *zap.Logger) *SendGridMailer {
	return newSendGridMailer(sendgrid.NewSendClient(apiKey), appName, fromEmail, logger)
}

func newSendGridMailer(client mailSender, appName, fromEmail string, logger *zap.Logger) *SendGridMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendGridMailer{
		client:     client,
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
		logger:     logger,
	}
}

// SendTeacherWelcome tells a new teacher their username and class.
func (m *SendGridMailer) SendTeacherWelcome(ctx context.Context, teacher models.User) error {
	class := ""
	if teacher.ClassName != nil && teacher.Section != nil {
		class = fmt.Sprintf(" for class %s-%s", *teacher.ClassName, *teacher.Section)
	}
	text := fmt.Sprintf("Hello %s,\n\nYour teacher account%s is ready. Sign in with the username %q.\n", teacher.FullName, class, teacher.Username)
	html := fmt.Sprintf("<p>Hello %s,</p><p>Your teacher account%s is ready. Sign in with the username <strong>%s</strong>.</p>", teacher.FullName, class, teacher.Username)

	if err := m.send(ctx, teacher.FullName, teacher.Email, "Welcome", text, html); err != nil {
		return fmt.Errorf("send welcome mail: %w", err)
	}
	m.logger.Info("welcome mail sent", zap.String("teacher_id", teacher.ID))
	return nil
}

// SendPasswordReset mails the single-use reset link to the account owner.
func (m *SendGridMailer) SendPasswordReset(ctx context.Context, user models.User, link string, ttl time.Duration) error {
	text := fmt.Sprintf("Hello %s,\n\nUse the link below to choose a new password. It expires in %s.\n\n%s\n\nIf you did not ask for this, ignore this mail.\n", user.FullName, ttl, link)
	html := fmt.Sprintf("<p>Hello %s,</p><p>Use the link below to choose a new password. It expires in %s.</p><p><a href=\"%s\">Reset password</a></p><p>If you did not ask for this, ignore this mail.</p>", user.FullName, ttl, link)
	if err := m.send(ctx, user.FullName, user.Email, "Password reset", text, html); err != nil {
		return fmt.Errorf("send password reset mail: %w", err)
	}
	m.logger.Info("password reset mail sent", zap.String("user_id", user.ID))
	return nil
}

func (m *SendGridMailer) send(ctx context.Context, name, address, subject, text, html string) error {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + subject
	p.AddTos(sgmail.NewEmail(name, address))

	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.AddPersonalizations(p)
	msg.AddContent(sgmail.NewContent("text/plain", text), sgmail.NewContent("text/html", html))

	res, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d", res.StatusCode)
	}
	return nil
}
