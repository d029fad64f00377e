package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/investly/investly/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testUser() *models.User {
	return &models.User{
		BaseModel: models.BaseModel{ID: "01HZZZZZZZZZZZZZZZZZZZZZZZ"},
		Email:     "jane@example.com",
		Role:      models.RoleAdmin,
	}
}

func TestIssuer_RoundTrip(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)

	token, err := issuer.GenerateToken(testUser())
	require.NoError(t, err)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "01HZZZZZZZZZZZZZZZZZZZZZZZ", claims.UserID)
	assert.Equal(t, "jane@example.com", claims.Email)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestIssuer_RejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := issuer.GenerateToken(testUser())
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestIssuer_RejectsForeignSecret(t *testing.T) {
	token, err := NewIssuer(testSecret, time.Hour).GenerateToken(testUser())
	require.NoError(t, err)

	_, err = NewIssuer("another-secret-another-secret-xx", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour).GenerateToken(testUser())
	assert.ErrorIs(t, err, ErrSecretNotConfigured)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, VerifyPassword("correct horse", hash))
	assert.ErrorIs(t, VerifyPassword("wrong horse", hash), ErrPasswordMismatch)

	_, err = HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}
