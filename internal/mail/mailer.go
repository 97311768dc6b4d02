// Package mail hands account messages to an outbound mail collaborator.
package mail

import (
	"context"

	"go.uber.org/zap"
)

// Template names a message body template.
type Template string

const (
	TemplateActivation     Template = "activation.html"
	TemplateForgotPassword Template = "forgot_password.html"
	TemplateTempPassword   Template = "temp_password.html"
)

// Message is one outbound mail.
type Message struct {
	To       string
	Subject  string
	Template Template
	Data     map[string]string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer records messages in the log instead of delivering them.
type LogMailer struct {
	from   string
	logger *zap.Logger
}

// NewLogMailer builds a LogMailer sending as from.
func NewLogMailer(from string, logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{from: from, logger: logger}
}

// Send implements Mailer. Template data is not logged since it carries
// tokens and temporary passwords.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("mail queued",
		zap.String("from", m.from),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("template", string(msg.Template)))
	return nil
}
