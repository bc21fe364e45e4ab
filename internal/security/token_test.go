package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vidstream/api/internal/config"
)

func testTokenManager() *TokenManager {
	return NewTokenManager(config.SecurityConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    240 * time.Hour,
	})
}

func TestIssueAndParsePair(t *testing.T) {
	m := testTokenManager()

	pair, err := m.IssuePair("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	uid, err := m.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", uid)

	uid, err = m.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", uid)
}

func TestSecretsAreIndependent(t *testing.T) {
	m := testTokenManager()

	pair, err := m.IssuePair("user-1")
	require.NoError(t, err)

	// An access token must not verify under the refresh secret, and vice
	// versa.
	_, err = m.ParseRefresh(pair.AccessToken)
	require.Error(t, err)

	_, err = m.ParseAccess(pair.RefreshToken)
	require.Error(t, err)
}

func TestParseRejectsTamperedSecret(t *testing.T) {
	m := testTokenManager()
	pair, err := m.IssuePair("user-1")
	require.NoError(t, err)

	other := NewTokenManager(config.SecurityConfig{
		AccessTokenSecret:  "different-secret",
		RefreshTokenSecret: "also-different",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    240 * time.Hour,
	})

	_, err = other.ParseAccess(pair.AccessToken)
	require.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m := testTokenManager()

	issued := time.Now().Add(-time.Hour)
	m.nowFunc = func() time.Time { return issued }

	pair, err := m.IssuePair("user-1")
	require.NoError(t, err)

	m.nowFunc = time.Now

	_, err = m.ParseAccess(pair.AccessToken)
	require.Error(t, err)

	// The refresh TTL is days-scale, so the refresh token is still inside
	// its window.
	uid, err := m.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", uid)
}

func TestParseRejectsGarbage(t *testing.T) {
	m := testTokenManager()

	_, err := m.ParseAccess("not-a-token")
	require.Error(t, err)

	_, err = m.ParseRefresh("")
	require.Error(t, err)
}
