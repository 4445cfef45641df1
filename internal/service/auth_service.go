package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/pharmaprep/platform-api/internal/auth"
	"github.com/pharmaprep/platform-api/internal/config"
	"github.com/pharmaprep/platform-api/internal/domain"
	"github.com/pharmaprep/platform-api/internal/events"
	"github.com/pharmaprep/platform-api/internal/repository"
)

// publishTimeout bounds background event delivery after the request returns.
const publishTimeout = 15 * time.Second

// AuthService coordinates registration, login and the password reset flow.
type AuthService struct {
	accounts   repository.AccountRepository
	resets     repository.ResetTokenRepository
	dispatcher events.Dispatcher
	tokenMgr   *auth.TokenManager
	logger     *zap.Logger
	bcryptCost int
	resetTTL   time.Duration
}

// AuthDependencies encapsulates collaborator requirements for auth service.
type AuthDependencies struct {
	AccountRepo    repository.AccountRepository
	ResetTokenRepo repository.ResetTokenRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		accounts:   deps.AccountRepo,
		resets:     deps.ResetTokenRepo,
		dispatcher: deps.Dispatcher,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		logger:     deps.Logger,
		bcryptCost: cfg.Auth.BcryptCost,
		resetTTL:   cfg.Auth.ResetTTL(),
	}
}

// Register creates a new account and issues a session.
func (s *AuthService) Register(ctx context.Context, name, email, password string, role domain.Role) (*domain.Account, string, time.Time, error) {
	if role == "" {
		role = domain.RoleStudent
	}
	if !role.Valid() {
		return nil, "", time.Time{}, domain.ErrInvalidCredentials
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, domain.ErrEmailTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	account := &domain.Account{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       domain.AccountStatusActive,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, "", time.Time{}, err
	}

	token, exp, err := s.tokenMgr.GenerateToken(account)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	s.publish(events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventAccountRegistered,
		AccountID: account.ID,
		Timestamp: time.Now(),
		Payload: events.AccountRegisteredPayload{
			Name:  account.Name,
			Email: account.Email,
			Role:  account.Role,
		},
	})
	return account, token, exp, nil
}

// Login authenticates an account and issues a session carrying its current
// role. Missing accounts and wrong passwords are indistinguishable to the
// caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Account, string, time.Time, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, domain.ErrInvalidCredentials
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, domain.ErrInvalidCredentials
	}
	if account.Status != domain.AccountStatusActive {
		return nil, "", time.Time{}, domain.ErrAccountSuspended
	}

	token, exp, err := s.tokenMgr.GenerateToken(account)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return account, token, exp, nil
}

// RequestPasswordReset issues a reset token for the address if an account
// exists, and behaves identically either way so the response never reveals
// account existence. Mail delivery happens off the request path.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Equivalent work for unknown addresses.
			if _, genErr := auth.NewResetToken(); genErr != nil {
				s.logger.Warn("dummy reset token generation failed", zap.Error(genErr))
			}
			s.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return err
	}

	tokenStr, err := auth.NewResetToken()
	if err != nil {
		return err
	}

	token := &repository.ResetToken{
		AccountID: account.ID,
		Token:     tokenStr,
		ExpiresAt: time.Now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return err
	}

	s.publish(events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventPasswordResetRequested,
		AccountID: account.ID,
		Timestamp: time.Now(),
		Payload: events.PasswordResetRequestedPayload{
			Name:     account.Name,
			Email:    account.Email,
			Token:    tokenStr,
			ExpireAt: token.ExpiresAt,
		},
	})
	return nil
}

// ResetPassword redeems a reset token and overwrites the account credential.
// Redemption is at-most-once: the repository's conditional update decides the
// winner when two redemptions race.
func (s *AuthService) ResetPassword(ctx context.Context, tokenStr, newPassword string) error {
	token, err := s.resets.GetByToken(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrInvalidResetToken
		}
		return err
	}
	if token.UsedAt != nil {
		return domain.ErrInvalidResetToken
	}
	if !time.Now().Before(token.ExpiresAt) {
		return domain.ErrExpiredResetToken
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	accountID, err := s.resets.Redeem(ctx, tokenStr, hash)
	if err != nil {
		return err
	}

	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventPasswordChanged,
		AccountID: accountID,
		Timestamp: time.Now(),
		Payload:   events.PasswordChangedPayload{Via: "reset"},
	}
	if account, err := s.accounts.GetByID(ctx, accountID); err == nil {
		event.Payload = events.PasswordChangedPayload{Email: account.Email, Via: "reset"}
	}
	s.publish(event)
	return nil
}

// ChangePassword verifies the current password before updating to a new hash.
// Outstanding reset tokens for the account are invalidated alongside.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(account.PasswordHash, currentPassword); err != nil {
		return domain.ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	account.PasswordHash = hash
	if err := s.accounts.Update(ctx, account); err != nil {
		return err
	}

	if err := s.resets.InvalidateActiveForAccount(ctx, account.ID); err != nil {
		s.logger.Warn("failed to invalidate outstanding reset tokens",
			zap.String("account_id", account.ID), zap.Error(err))
	}

	s.publish(events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventPasswordChanged,
		AccountID: account.ID,
		Timestamp: time.Now(),
		Payload:   events.PasswordChangedPayload{Email: account.Email, Via: "change"},
	})
	return nil
}

// UpdateProfile updates mutable profile fields.
func (s *AuthService) UpdateProfile(ctx context.Context, accountID, name string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	account.Name = name
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// publish dispatches the event on a detached context so a slow or failing
// subscriber can never block or flip the HTTP outcome of the request.
func (s *AuthService) publish(event events.Event) {
	if s.dispatcher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event publish failed",
				zap.String("event_type", string(event.Type)), zap.Error(err))
		}
	}()
}
