// Package notify holds the outbound delivery adapters behind the delivery
// worker: email, SMS and the resident/staff in-app inbox.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/estate-ops/internal/domain"
)

// EmailMessage is a rendered email ready for the provider.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
	TaskID  string
}

// SMSMessage is a rendered text message ready for the provider.
type SMSMessage struct {
	To     string
	Body   string
	TaskID string
}

// EmailSender delivers email.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// SMSSender delivers text messages.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage) error
}

// InboxWriter appends a notification to a recipient's in-app inbox.
type InboxWriter interface {
	WriteInbox(ctx context.Context, recipientType domain.SubjectType, recipientID string, task domain.NotificationTask) error
}

// logEmailSender writes outbound mail to the log. Stands in for a real
// provider in development and tests.
type logEmailSender struct {
	from   string
	logger *zap.Logger
}

// NewLogEmailSender builds the logging email sender.
func NewLogEmailSender(from string, logger *zap.Logger) EmailSender {
	return &logEmailSender{from: from, logger: logger}
}

func (s *logEmailSender) SendEmail(_ context.Context, msg EmailMessage) error {
	s.logger.Info("email sent",
		zap.String("from", s.from),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("task_id", msg.TaskID))
	return nil
}

// logSMSSender writes outbound texts to the log.
type logSMSSender struct {
	logger *zap.Logger
}

// NewLogSMSSender builds the logging SMS sender.
func NewLogSMSSender(logger *zap.Logger) SMSSender {
	return &logSMSSender{logger: logger}
}

func (s *logSMSSender) SendSMS(_ context.Context, msg SMSMessage) error {
	s.logger.Info("sms sent",
		zap.String("to", msg.To),
		zap.String("task_id", msg.TaskID))
	return nil
}
