package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	require.Contains(t, string(hash), "$argon2id$")

	ok, err := VerifyPassword("secret1", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashesAreSalted(t *testing.T) {
	first, err := HashPassword("secret1")
	require.NoError(t, err)
	second, err := HashPassword("secret1")
	require.NoError(t, err)
	require.NotEqual(t, string(first), string(second))
}

func TestVerifyFailsClosedOnMissingHash(t *testing.T) {
	ok, err := VerifyPassword("anything", nil)
	require.Error(t, err)
	require.False(t, ok)

	ok, err = VerifyPassword("anything", []byte("not-a-hash"))
	require.Error(t, err)
	require.False(t, ok)
}
