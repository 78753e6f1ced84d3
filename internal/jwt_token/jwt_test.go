package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frost/internal/platform/config"
	dErrors "frost/pkg/domain-errors"
)

var authConfig = config.AuthConfig{
	JWTSigningKey: "test-signing-key",
	Issuer:        "test-issuer",
	Audience:      "test-audience",
}

var issuedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}

func TestIssueAndParse(t *testing.T) {
	tokens := New(authConfig, fixedClock(issuedAt))

	issued, err := tokens.Issue("device-1", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
	assert.NotEmpty(t, issued.JTI)
	assert.Equal(t, issuedAt.Add(time.Hour), issued.ExpiresAt)

	claims, err := tokens.Parse(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "device-1", claims.DeviceID)
	assert.Equal(t, "device-1", claims.Subject)
	assert.Equal(t, issued.JTI, claims.ID)

	mw, err := tokens.ValidateToken(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "device-1", mw.DeviceID)
	assert.Equal(t, issued.JTI, mw.JTI)
}

func TestIssueRejectsBadInput(t *testing.T) {
	tokens := New(authConfig)

	_, err := tokens.Issue("", time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = tokens.Issue("device-1", 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestParseFailures(t *testing.T) {
	issued, err := New(authConfig, fixedClock(issuedAt)).Issue("device-1", time.Hour)
	require.NoError(t, err)

	otherKey := authConfig
	otherKey.JWTSigningKey = "other-key"
	otherAudience := authConfig
	otherAudience.Audience = "other-audience"

	tests := []struct {
		name    string
		tokens  *DeviceTokens
		raw     string
		message string
	}{
		{"garbage", New(authConfig, fixedClock(issuedAt)), "invalid-token-string", "invalid token"},
		{"expired", New(authConfig, fixedClock(issuedAt.Add(2*time.Hour))), issued.Token, "token has expired"},
		{"wrong key", New(otherKey, fixedClock(issuedAt)), issued.Token, "invalid token"},
		{"wrong audience", New(otherAudience, fixedClock(issuedAt)), issued.Token, "invalid token"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.tokens.Parse(tc.raw)
			require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, tc.message))
		})
	}
}

func TestParseRejectsTokenWithoutDevice(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    authConfig.Issuer,
			Audience:  jwt.ClaimStrings{authConfig.Audience},
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
		},
	}).SignedString([]byte(authConfig.JWTSigningKey))
	require.NoError(t, err)

	_, err = New(authConfig, fixedClock(issuedAt)).Parse(raw)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has no device"))
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		DeviceID: "device-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    authConfig.Issuer,
			Audience:  jwt.ClaimStrings{authConfig.Audience},
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
		},
	}).SignedString([]byte(authConfig.JWTSigningKey))
	require.NoError(t, err)

	_, err = New(authConfig, fixedClock(issuedAt)).Parse(raw)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}
