package events

import (
	"time"

	"github.com/pharmaprep/platform-api/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered      EventType = "account_registered"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordChanged        EventType = "password_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AccountID string      `json:"account_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AccountRegisteredPayload payload.
type AccountRegisteredPayload struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// PasswordResetRequestedPayload payload. Carries the raw token so the
// notification handler can build the reset link; it is never logged.
type PasswordResetRequestedPayload struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Token    string    `json:"-"`
	ExpireAt time.Time `json:"expire_at"`
}

// PasswordChangedPayload payload.
type PasswordChangedPayload struct {
	Email string `json:"email"`
	// Via distinguishes reset-link changes from authenticated changes.
	Via string `json:"via"`
}
