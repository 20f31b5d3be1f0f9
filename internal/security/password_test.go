package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(hash), "$argon2id$v=19$m="))

	ok, err := VerifyPassword("correct horse", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = VerifyPassword("battery staple", hash)
	require.NoError(t, err)
	require.False(t, ok)

	other, err := HashPassword("correct horse")
	require.NoError(t, err)
	require.NotEqual(t, hash, other, "salted")
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x$c2FsdA$a2V5",
		"$argon2id$v=19$m=1,t=1,p=1$!!$a2V5",
	} {
		_, err := VerifyPassword("pw", []byte(encoded))
		require.ErrorIs(t, err, ErrMalformedHash, encoded)
	}
}
