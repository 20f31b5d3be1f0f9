package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/meowecho-tech/vote/internal/models"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("secret", "user-1", "a@example.org", models.RoleElectionOfficer, time.Minute)
	require.NoError(t, err)

	claims, err := ParseAccessToken(token, "secret")
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "election_officer", claims.Role)

	_, err = ParseAccessToken(token, "other-secret")
	require.Error(t, err)
}

func TestParseAccessToken_Expired(t *testing.T) {
	token, err := GenerateAccessToken("secret", "user-1", "", models.RoleVoter, -time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(token, "secret")
	require.Error(t, err)
}

func TestRoleOf(t *testing.T) {
	token, err := GenerateAccessToken("secret", "user-1", "", models.RoleAuditor, time.Minute)
	require.NoError(t, err)

	role, ok := RoleOf(token)
	require.True(t, ok)
	require.Equal(t, models.RoleAuditor, role)

	// Signature is not checked.
	expired, err := GenerateAccessToken("whatever", "user-1", "", models.RoleAdmin, -time.Hour)
	require.NoError(t, err)
	role, ok = RoleOf(expired)
	require.True(t, ok)
	require.Equal(t, models.RoleAdmin, role)
}

func TestRoleOf_Rejects(t *testing.T) {
	unknown := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "superuser"})
	signed, err := unknown.SignedString([]byte("k"))
	require.NoError(t, err)

	missing := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"uid": "u"})
	signedMissing, err := missing.SignedString([]byte("k"))
	require.NoError(t, err)

	for _, token := range []string{"", "not-a-jwt", "a.b.c", signed, signedMissing} {
		_, ok := RoleOf(token)
		require.False(t, ok, token)
	}
}

func TestRefreshTokenHash(t *testing.T) {
	token, hash, err := GenerateRefreshToken(0)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, hash, HashRefreshToken(token))

	other, _, err := GenerateRefreshToken(32)
	require.NoError(t, err)
	require.NotEqual(t, token, other)
}

func TestGenerateOTP(t *testing.T) {
	code, err := GenerateOTP(6)
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, r := range code {
		require.True(t, r >= '0' && r <= '9')
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPasswordWithParams("correct horse", Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	require.NoError(t, err)

	ok, err := VerifyPassword("correct horse", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = VerifyPassword("x", []byte("garbage"))
	require.Error(t, err)
}
