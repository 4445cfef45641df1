package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaprep/platform-api/internal/domain"
)

func testAccount() *domain.Account {
	return &domain.Account{
		ID:    "acc-1",
		Name:  "Amina Osei",
		Email: "amina@example.com",
		Role:  domain.RoleStudent,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, exp, err := tm.GenerateToken(testAccount())
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.False(t, exp.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "amina@example.com", claims.Email)
	assert.Equal(t, domain.RoleStudent, claims.Role)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)
	other := NewTokenManager("other-secret", 60)

	token, _, err := tm.GenerateToken(testAccount())
	require.NoError(t, err)

	_, err = other.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	_, err := tm.ParseToken("not-a-jwt")
	assert.Error(t, err)
}

func TestRoleCapturedAtIssuance(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	account := testAccount()
	token, _, err := tm.GenerateToken(account)
	require.NoError(t, err)

	// Promoting the account afterwards must not change what the
	// already-issued session carries.
	account.Role = domain.RoleAdmin

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStudent, claims.Role)
}
