package core

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboniq/pkg/models"
)

func TestTokenVerifier_RoundTrip(t *testing.T) {
	v := NewTokenVerifier("secret", "carboniq-identity")

	token, err := v.IssueToken(models.Principal{UserID: "alice", Role: models.UserRoleAdmin}, time.Hour)
	require.NoError(t, err)

	principal, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", principal.UserID)
	assert.Equal(t, models.UserRoleAdmin, principal.Role)
}

func TestTokenVerifier_Rejects(t *testing.T) {
	v := NewTokenVerifier("secret", "carboniq-identity")

	wrongSecret, err := NewTokenVerifier("other", "carboniq-identity").
		IssueToken(models.Principal{UserID: "alice", Role: models.UserRoleUser}, time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := NewTokenVerifier("secret", "someone-else").
		IssueToken(models.Principal{UserID: "alice", Role: models.UserRoleUser}, time.Hour)
	require.NoError(t, err)

	expired, err := v.IssueToken(models.Principal{UserID: "alice", Role: models.UserRoleUser}, -time.Minute)
	require.NoError(t, err)

	badRole, err := v.IssueToken(models.Principal{UserID: "alice", Role: "root"}, time.Hour)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "alice", "role": "admin"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": wrongSecret,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"bad role":     badRole,
		"alg none":     noneAlg,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.ValidateToken(token)
			assert.ErrorIs(t, err, models.ErrInvalidToken)
		})
	}
}
