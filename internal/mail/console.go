package mail

import (
	"context"

	"go.uber.org/zap"
)

// ConsoleMailer logs outbound mail instead of delivering it. Used in
// development and test environments. Bodies are not logged: the reset email
// embeds a live token.
type ConsoleMailer struct {
	logger *zap.Logger
}

// NewConsoleMailer constructs the mailer.
func NewConsoleMailer(logger *zap.Logger) *ConsoleMailer {
	return &ConsoleMailer{logger: logger}
}

// Send logs the envelope and reports success.
func (m *ConsoleMailer) Send(_ context.Context, to, subject, _, _ string) error {
	m.logger.Info("console mailer: email suppressed",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}
