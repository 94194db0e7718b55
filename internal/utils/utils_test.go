package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", 42, []string{"Organizador", "Staff"}, 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 5*time.Second)

	claims, err := ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, []string{"Organizador", "Staff"}, claims.Roles)

	_, err = ParseAccessToken("other", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejectsExpiredAndForeignAlg(t *testing.T) {
	expired, err := NewAccessToken("secret", 1, nil, -1)
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken(t *testing.T) {
	a, err := NewRefreshToken(7)
	require.NoError(t, err)
	b, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, a.Raw, 96)
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.Equal(t, HashRefreshRaw(a.Raw), HashRefreshRaw(a.Raw))
	assert.Len(t, HashRefreshRaw(a.Raw), 64)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("S3cret!pw", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "S3cret!pw"))
	assert.False(t, VerifyPassword(hash, "s3cret!pw"))
}

func TestCheckPasswordStrength(t *testing.T) {
	assert.NoError(t, CheckPasswordStrength("Abcdef1!"))

	err := CheckPasswordStrength("abc")
	require.Error(t, err)
	assert.Equal(t, "password needs at least 8 characters, an uppercase letter, a digit, a special character", err.Error())

	assert.Error(t, CheckPasswordStrength("ABCDEFG1!"))
	assert.Error(t, CheckPasswordStrength("Abcdefgh!"))
}
