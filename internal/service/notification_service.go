package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pharmaprep/platform-api/internal/config"
	"github.com/pharmaprep/platform-api/internal/events"
	"github.com/pharmaprep/platform-api/internal/mail"
)

// NotificationService turns auth domain events into outbound email. Delivery
// failures are logged and swallowed: a notification problem is never allowed
// to propagate back into the flow that raised the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   mail.Notifier
	logger     *zap.Logger
	baseURL    string
	resetTTL   time.Duration
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier mail.Notifier, logger *zap.Logger, cfg config.Config) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
		baseURL:    cfg.App.BaseURL,
		resetTTL:   cfg.Auth.ResetTTL(),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAccountRegistered, n.handleAccountRegistered)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordResetRequested)
	n.dispatcher.Subscribe(events.EventPasswordChanged, n.handlePasswordChanged)
}

func (n *NotificationService) handleAccountRegistered(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AccountRegisteredPayload)
	if !ok {
		n.logger.Warn("unexpected payload", zap.String("event_type", string(event.Type)))
		return nil
	}

	body := fmt.Sprintf("Hello %s,\n\nWelcome to PharmaPrep. Your %s account is ready.\n", payload.Name, payload.Role)
	html := fmt.Sprintf("<p>Hello %s,</p><p>Welcome to PharmaPrep. Your %s account is ready.</p>", payload.Name, payload.Role)
	n.send(ctx, payload.Email, "Welcome to PharmaPrep", html, body)
	return nil
}

func (n *NotificationService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordResetRequestedPayload)
	if !ok {
		n.logger.Warn("unexpected payload", zap.String("event_type", string(event.Type)))
		return nil
	}

	htmlBody, textBody, err := mail.RenderResetEmail(payload.Name, n.baseURL, payload.Token, n.resetTTL)
	if err != nil {
		n.logger.Error("failed to render reset email", zap.Error(err))
		return nil
	}
	n.send(ctx, payload.Email, mail.ResetEmailSubject, htmlBody, textBody)
	return nil
}

func (n *NotificationService) handlePasswordChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordChangedPayload)
	if !ok || payload.Email == "" {
		return nil
	}

	body := "Your PharmaPrep password was changed. If this wasn't you, contact support immediately.\n"
	html := "<p>Your PharmaPrep password was changed. If this wasn't you, contact support immediately.</p>"
	n.send(ctx, payload.Email, "Your password was changed", html, body)
	return nil
}

func (n *NotificationService) send(ctx context.Context, to, subject, htmlBody, textBody string) {
	if err := n.notifier.Send(ctx, to, subject, htmlBody, textBody); err != nil {
		n.logger.Warn("email delivery failed",
			zap.String("subject", subject), zap.Error(err))
	}
}
