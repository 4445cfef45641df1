package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/pharmaprep/platform-api/internal/config"
)

// Notifier delivers outbound email. Implementations report delivery failure
// through the returned error; callers decide whether that failure may
// influence the originating request (for the reset flow it must not).
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// New selects the notifier variant from configuration. The choice is made
// once at startup, never inferred per call.
func New(cfg config.MailConfig, logger *zap.Logger) Notifier {
	if cfg.Driver == config.MailDriverSMTP {
		return NewSMTPMailer(cfg, logger)
	}
	return NewConsoleMailer(logger)
}
