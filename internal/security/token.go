package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vidstream/api/internal/config"
	"vidstream/api/internal/ids"
)

// TokenPair bundles the two credentials issued for a session: a short-lived
// access token and the long-lived refresh token that replaces the persisted
// one on the user record.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type sessionClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies session tokens. Secrets are process-wide
// configuration loaded once at startup; access and refresh tokens never
// share a secret.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	nowFunc       func() time.Time
}

func NewTokenManager(cfg config.SecurityConfig) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		nowFunc:       time.Now,
	}
}

// IssuePair creates a fresh access/refresh token pair for the user.
func (m *TokenManager) IssuePair(userID string) (TokenPair, error) {
	now := m.nowFunc()

	access, err := m.sign(userID, now, m.accessTTL, m.accessSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshExpiry := now.Add(m.refreshTTL)
	refresh, err := m.sign(userID, now, m.refreshTTL, m.refreshSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// ParseAccess verifies an access token and returns the subject user id.
func (m *TokenManager) ParseAccess(token string) (string, error) {
	return m.parse(token, m.accessSecret)
}

// ParseRefresh verifies a refresh token signature and expiry. Whether the
// token is still the live one for its user is the session manager's check,
// not ours.
func (m *TokenManager) ParseRefresh(token string) (string, error) {
	return m.parse(token, m.refreshSecret)
}

func (m *TokenManager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *TokenManager) sign(userID string, now time.Time, ttl time.Duration, secret []byte) (string, error) {
	// The jti makes every issued token unique even inside the same
	// second; rotation relies on the new refresh token differing from
	// the one it replaces.
	claims := sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        ids.New(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(secret)
}

func (m *TokenManager) parse(tokenStr string, secret []byte) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.nowFunc))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", fmt.Errorf("invalid token")
	}
	return claims.UserID, nil
}
