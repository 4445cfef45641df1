package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pharmaprep/platform-api/internal/config"
	"github.com/pharmaprep/platform-api/internal/domain"
	"github.com/pharmaprep/platform-api/internal/events"
	"github.com/pharmaprep/platform-api/internal/repository"
)

type stubAccountRepo struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*domain.Account
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{byID: make(map[string]*domain.Account)}
}

func (r *stubAccountRepo) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	account.ID = formatID(r.nextID)
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	clone := *account
	r.byID[account.ID] = &clone
	return nil
}

func (r *stubAccountRepo) Update(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[account.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *account
	r.byID[account.ID] = &clone
	return nil
}

func (r *stubAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *account
	return &clone, nil
}

func (r *stubAccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.byID {
		if account.Email == email {
			clone := *account
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func formatID(n int) string {
	return "id-" + strconv.Itoa(n)
}

// stubResetRepo mirrors the Postgres repository's semantics, including the
// atomic conditional consume that decides concurrent redemption races.
type stubResetRepo struct {
	mu       sync.Mutex
	nextID   int
	tokens   map[string]*repository.ResetToken
	accounts *stubAccountRepo
}

func newStubResetRepo(accounts *stubAccountRepo) *stubResetRepo {
	return &stubResetRepo{tokens: make(map[string]*repository.ResetToken), accounts: accounts}
}

func (r *stubResetRepo) Create(_ context.Context, token *repository.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	token.ID = formatID(r.nextID)
	token.CreatedAt = time.Now()
	clone := *token
	r.tokens[token.Token] = &clone
	return nil
}

func (r *stubResetRepo) GetByToken(_ context.Context, tokenStr string) (*repository.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[tokenStr]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *token
	return &clone, nil
}

func (r *stubResetRepo) Redeem(_ context.Context, tokenStr, newPasswordHash string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[tokenStr]
	if !ok || !token.Active(time.Now()) {
		return "", domain.ErrInvalidResetToken
	}

	now := time.Now()
	token.UsedAt = &now

	r.accounts.mu.Lock()
	account, ok := r.accounts.byID[token.AccountID]
	if ok {
		account.PasswordHash = newPasswordHash
	}
	r.accounts.mu.Unlock()
	if !ok {
		return "", pgx.ErrNoRows
	}

	for _, other := range r.tokens {
		if other.AccountID == token.AccountID && other.UsedAt == nil {
			other.UsedAt = &now
		}
	}
	return token.AccountID, nil
}

func (r *stubResetRepo) InvalidateActiveForAccount(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, token := range r.tokens {
		if token.AccountID == accountID && token.UsedAt == nil {
			token.UsedAt = &now
		}
	}
	return nil
}

func (r *stubResetRepo) tokensFor(accountID string) []*repository.ResetToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.ResetToken
	for _, token := range r.tokens {
		if token.AccountID == accountID {
			clone := *token
			out = append(out, &clone)
		}
	}
	return out
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret",
			AccessTokenTTLMinutes:   60,
			PasswordResetTTLMinutes: 60,
			BcryptCost:              bcrypt.MinCost,
		},
	}
}

type fixture struct {
	svc      *AuthService
	accounts *stubAccountRepo
	resets   *stubResetRepo
}

func newFixture(t *testing.T, dispatcher events.Dispatcher) *fixture {
	t.Helper()
	accounts := newStubAccountRepo()
	resets := newStubResetRepo(accounts)
	svc := NewAuthService(testConfig(), AuthDependencies{
		AccountRepo:    accounts,
		ResetTokenRepo: resets,
		Dispatcher:     dispatcher,
		Logger:         zap.NewNop(),
	})
	return &fixture{svc: svc, accounts: accounts, resets: resets}
}

func registerStudent(t *testing.T, f *fixture, email, password string) *domain.Account {
	t.Helper()
	account, _, _, err := f.svc.Register(context.Background(), "Amina Osei", email, password, domain.RoleStudent)
	require.NoError(t, err)
	return account
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	account, token, exp, err := f.svc.Register(ctx, "Amina Osei", "amina@example.com", "Pass1234", domain.RoleStudent)
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.NotEmpty(t, token)
	assert.True(t, exp.After(time.Now()))
	assert.NotEqual(t, "Pass1234", account.PasswordHash)

	got, _, _, err := f.svc.Login(ctx, "amina@example.com", "Pass1234")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.Equal(t, domain.RoleStudent, got.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t, nil)
	registerStudent(t, f, "amina@example.com", "Pass1234")

	_, _, _, err := f.svc.Register(context.Background(), "Other", "amina@example.com", "Pass1234", domain.RoleStudent)
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestRegisterUnknownRole(t *testing.T) {
	f := newFixture(t, nil)

	_, _, _, err := f.svc.Register(context.Background(), "X", "x@example.com", "Pass1234", domain.Role("pharmacist"))
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	f := newFixture(t, nil)
	registerStudent(t, f, "amina@example.com", "Pass1234")
	ctx := context.Background()

	_, _, _, wrongPass := f.svc.Login(ctx, "amina@example.com", "nope")
	_, _, _, unknown := f.svc.Login(ctx, "nobody@example.com", "nope")

	assert.ErrorIs(t, wrongPass, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, unknown, domain.ErrInvalidCredentials)
}

func TestRequestPasswordResetDoesNotRevealExistence(t *testing.T) {
	f := newFixture(t, nil)
	registerStudent(t, f, "amina@example.com", "Pass1234")
	ctx := context.Background()

	assert.NoError(t, f.svc.RequestPasswordReset(ctx, "amina@example.com"))
	assert.NoError(t, f.svc.RequestPasswordReset(ctx, "nonexistent@x"))
}

func TestRequestPasswordResetStoresTokenOnlyForKnownAccount(t *testing.T) {
	f := newFixture(t, nil)
	account := registerStudent(t, f, "amina@example.com", "Pass1234")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "amina@example.com"))
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "nonexistent@x"))

	tokens := f.resets.tokensFor(account.ID)
	require.Len(t, tokens, 1)
	assert.True(t, tokens[0].Active(time.Now()))
	assert.GreaterOrEqual(t, len(tokens[0].Token), 64)

	f.resets.mu.Lock()
	total := len(f.resets.tokens)
	f.resets.mu.Unlock()
	assert.Equal(t, 1, total)
}

func TestResetPasswordEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	account := registerStudent(t, f, "amina@example.com", "OldPass123")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "amina@example.com"))
	tokens := f.resets.tokensFor(account.ID)
	require.Len(t, tokens, 1)
	tokenStr := tokens[0].Token

	require.NoError(t, f.svc.ResetPassword(ctx, tokenStr, "NewPass123"))

	_, _, _, err := f.svc.Login(ctx, "amina@example.com", "OldPass123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, _, _, err = f.svc.Login(ctx, "amina@example.com", "NewPass123")
	assert.NoError(t, err)

	// Redeemed tokens fail every subsequent attempt.
	err = f.svc.ResetPassword(ctx, tokenStr, "AnotherPass1")
	assert.ErrorIs(t, err, domain.ErrInvalidResetToken)

	_, _, _, err = f.svc.Login(ctx, "amina@example.com", "AnotherPass1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestResetPasswordUnknownToken(t *testing.T) {
	f := newFixture(t, nil)

	err := f.svc.ResetPassword(context.Background(), "no-such-token", "NewPass123")
	assert.ErrorIs(t, err, domain.ErrInvalidResetToken)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newFixture(t, nil)
	account := registerStudent(t, f, "amina@example.com", "OldPass123")
	ctx := context.Background()

	expired := &repository.ResetToken{
		AccountID: account.ID,
		Token:     "expired-token",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, f.resets.Create(ctx, expired))

	err := f.svc.ResetPassword(ctx, "expired-token", "NewPass123")
	assert.ErrorIs(t, err, domain.ErrExpiredResetToken)

	// Old credential still works.
	_, _, _, err = f.svc.Login(ctx, "amina@example.com", "OldPass123")
	assert.NoError(t, err)
}

func TestResetPasswordConcurrentRedemption(t *testing.T) {
	f := newFixture(t, nil)
	account := registerStudent(t, f, "amina@example.com", "OldPass123")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "amina@example.com"))
	tokens := f.resets.tokensFor(account.ID)
	require.Len(t, tokens, 1)
	tokenStr := tokens[0].Token

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, password := range []string{"FirstPass1", "SecondPass1"} {
		wg.Add(1)
		go func(pw string) {
			defer wg.Done()
			results <- f.svc.ResetPassword(ctx, tokenStr, pw)
		}(password)
	}
	wg.Wait()
	close(results)

	var successes, failures int
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, domain.ErrInvalidResetToken)
			failures++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, failures)

	// Exactly one credential change applied.
	first := errIsNil(func() error { _, _, _, err := f.svc.Login(ctx, "amina@example.com", "FirstPass1"); return err })
	second := errIsNil(func() error { _, _, _, err := f.svc.Login(ctx, "amina@example.com", "SecondPass1"); return err })
	assert.True(t, first != second, "exactly one password should have been applied")
}

func errIsNil(fn func() error) bool {
	return fn() == nil
}

func TestResetInvalidatesOtherOutstandingTokens(t *testing.T) {
	f := newFixture(t, nil)
	account := registerStudent(t, f, "amina@example.com", "OldPass123")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "amina@example.com"))
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "amina@example.com"))
	tokens := f.resets.tokensFor(account.ID)
	require.Len(t, tokens, 2)

	require.NoError(t, f.svc.ResetPassword(ctx, tokens[0].Token, "NewPass123"))

	err := f.svc.ResetPassword(ctx, tokens[1].Token, "SneakyPass1")
	assert.ErrorIs(t, err, domain.ErrInvalidResetToken)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, nil)
	account := registerStudent(t, f, "amina@example.com", "OldPass123")
	ctx := context.Background()

	// An outstanding reset token dies with the authenticated change.
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "amina@example.com"))
	tokens := f.resets.tokensFor(account.ID)
	require.Len(t, tokens, 1)

	require.NoError(t, f.svc.ChangePassword(ctx, account.ID, "OldPass123", "NewPass123"))

	_, _, _, err := f.svc.Login(ctx, "amina@example.com", "NewPass123")
	assert.NoError(t, err)

	err = f.svc.ResetPassword(ctx, tokens[0].Token, "SneakyPass1")
	assert.ErrorIs(t, err, domain.ErrInvalidResetToken)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	f := newFixture(t, nil)
	account := registerStudent(t, f, "amina@example.com", "OldPass123")

	err := f.svc.ChangePassword(context.Background(), account.ID, "WrongPass", "NewPass123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, nil)
	account := registerStudent(t, f, "amina@example.com", "Pass1234")

	updated, err := f.svc.UpdateProfile(context.Background(), account.ID, "Amina O.")
	require.NoError(t, err)
	assert.Equal(t, "Amina O.", updated.Name)

	stored, err := f.accounts.GetByID(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, "Amina O.", stored.Name)
}

type failingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *failingNotifier) Send(context.Context, string, string, string, string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return errors.New("smtp unreachable")
}

func (n *failingNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func TestNotificationFailureDoesNotAffectOutcome(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	notifier := &failingNotifier{}

	notifications := NewNotificationService(dispatcher, notifier, zap.NewNop(), config.Config{
		App:  config.AppConfig{BaseURL: "http://localhost:3000"},
		Auth: config.AuthConfig{PasswordResetTTLMinutes: 60},
	})
	notifications.RegisterHandlers()

	f := newFixture(t, dispatcher)
	registerStudent(t, f, "amina@example.com", "Pass1234")

	// Issuance succeeds even though every send fails.
	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "amina@example.com"))

	assert.Eventually(t, func() bool {
		return notifier.callCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
