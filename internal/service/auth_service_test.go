package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"vidstream/api/internal/apperr"
	"vidstream/api/internal/config"
	"vidstream/api/internal/models"
	"vidstream/api/internal/repository"
	"vidstream/api/internal/security"
)

// memoryUserStore implements userStore and profileStore for tests.
type memoryUserStore struct {
	users map[string]models.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[string]models.User)}
}

func (m *memoryUserStore) Create(_ context.Context, user models.User) error {
	for _, existing := range m.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repository.ErrDuplicateUser
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return nil
}

func (m *memoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *memoryUserStore) FindByUsernameOrEmail(_ context.Context, username, email string) (models.User, error) {
	for _, user := range m.users {
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memoryUserStore) UpdateRefreshToken(_ context.Context, id string, token *string, expiresAt *time.Time) error {
	user, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.RefreshToken = token
	user.RefreshTokenExpiresAt = expiresAt
	m.users[id] = user
	return nil
}

func (m *memoryUserStore) UpdatePassword(_ context.Context, id string, passwordHash []byte) error {
	user, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	m.users[id] = user
	return nil
}

func (m *memoryUserStore) UpdateFullName(_ context.Context, id string, fullName string) (models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	user.FullName = fullName
	m.users[id] = user
	return user, nil
}

func (m *memoryUserStore) UpdateAvatarURL(_ context.Context, id string, avatarURL string) (models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	user.AvatarURL = avatarURL
	m.users[id] = user
	return user, nil
}

func (m *memoryUserStore) UpdateCoverImageURL(_ context.Context, id string, coverURL string) (models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	user.CoverImageURL = &coverURL
	m.users[id] = user
	return user, nil
}

func newTestAuthService(store *memoryUserStore) *AuthService {
	tokens := security.NewTokenManager(config.SecurityConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    240 * time.Hour,
	})
	return NewAuthService(store, tokens, nil, zerolog.Nop())
}

func registerAlice(t *testing.T, s *AuthService) models.User {
	t.Helper()
	user, err := s.Register(context.Background(), RegisterInput{
		FullName:  "Alice Example",
		Email:     "alice@x.com",
		Username:  "Alice",
		Password:  "secret1",
		AvatarURL: "https://media.example/avatars/alice.png",
	})
	require.NoError(t, err)
	return user
}

func TestRegisterSanitizesAndNormalizes(t *testing.T) {
	store := newMemoryUserStore()
	s := newTestAuthService(store)

	user := registerAlice(t, s)

	require.Equal(t, "alice", user.Username, "username must be lowercased")
	require.Nil(t, user.PasswordHash, "password hash must not leave the service")
	require.Nil(t, user.RefreshToken)

	stored := store.users[user.ID]
	require.NotEmpty(t, stored.PasswordHash)
	require.Nil(t, stored.RefreshToken, "registration must not create a session")
}

func TestRegisterRejectsEmptyFields(t *testing.T) {
	s := newTestAuthService(newMemoryUserStore())

	inputs := []RegisterInput{
		{FullName: "", Email: "a@x.com", Username: "a", Password: "p"},
		{FullName: "A", Email: "", Username: "a", Password: "p"},
		{FullName: "A", Email: "a@x.com", Username: "", Password: "p"},
		{FullName: "A", Email: "a@x.com", Username: "a", Password: ""},
	}

	for _, input := range inputs {
		_, err := s.Register(context.Background(), input)
		require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	s := newTestAuthService(newMemoryUserStore())
	registerAlice(t, s)

	_, err := s.Register(context.Background(), RegisterInput{
		FullName: "Other",
		Email:    "other@x.com",
		Username: "alice",
		Password: "secret2",
	})
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = s.Register(context.Background(), RegisterInput{
		FullName: "Other",
		Email:    "alice@x.com",
		Username: "other",
		Password: "secret2",
	})
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestLoginPersistsReturnedRefreshToken(t *testing.T) {
	store := newMemoryUserStore()
	s := newTestAuthService(store)
	user := registerAlice(t, s)

	result, err := s.Login(context.Background(), LoginInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Tokens.AccessToken)
	require.NotEmpty(t, result.Tokens.RefreshToken)

	stored := store.users[user.ID]
	require.NotNil(t, stored.RefreshToken)
	require.Equal(t, result.Tokens.RefreshToken, *stored.RefreshToken)

	require.Nil(t, result.User.PasswordHash)
	require.Nil(t, result.User.RefreshToken)
}

func TestLoginByEmail(t *testing.T) {
	s := newTestAuthService(newMemoryUserStore())
	registerAlice(t, s)

	result, err := s.Login(context.Background(), LoginInput{Email: "alice@x.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Tokens.RefreshToken)
}

func TestLoginValidation(t *testing.T) {
	s := newTestAuthService(newMemoryUserStore())

	_, err := s.Login(context.Background(), LoginInput{Password: "secret1"})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = s.Login(context.Background(), LoginInput{Username: "alice", Password: ""})
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestLoginUnknownUser(t *testing.T) {
	s := newTestAuthService(newMemoryUserStore())

	_, err := s.Login(context.Background(), LoginInput{Username: "ghost", Password: "whatever"})
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestAuthService(newMemoryUserStore())
	registerAlice(t, s)

	_, err := s.Login(context.Background(), LoginInput{Username: "alice", Password: "wrong"})
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestSecondLoginInvalidatesFirstSession(t *testing.T) {
	s := newTestAuthService(newMemoryUserStore())
	registerAlice(t, s)

	first, err := s.Login(context.Background(), LoginInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	_, err = s.Login(context.Background(), LoginInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	_, err = s.Refresh(context.Background(), first.Tokens.RefreshToken)
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestRefreshRotatesAndRejectsReplay(t *testing.T) {
	store := newMemoryUserStore()
	s := newTestAuthService(store)
	user := registerAlice(t, s)

	login, err := s.Login(context.Background(), LoginInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	original := login.Tokens.RefreshToken

	rotated, err := s.Refresh(context.Background(), original)
	require.NoError(t, err)
	require.NotEqual(t, original, rotated.RefreshToken, "rotation must mint a different token")

	stored := store.users[user.ID]
	require.Equal(t, rotated.RefreshToken, *stored.RefreshToken)

	// The rotated-to token keeps working.
	again, err := s.Refresh(context.Background(), rotated.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, rotated.RefreshToken, again.RefreshToken)

	// Replaying any pre-rotation token fails even though its signature is
	// still valid.
	_, err = s.Refresh(context.Background(), original)
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	_, err = s.Refresh(context.Background(), rotated.RefreshToken)
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestRefreshRejectsMissingAndGarbageTokens(t *testing.T) {
	s := newTestAuthService(newMemoryUserStore())

	_, err := s.Refresh(context.Background(), "")
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err))

	_, err = s.Refresh(context.Background(), "not-a-jwt")
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	s := newTestAuthService(newMemoryUserStore())
	registerAlice(t, s)

	login, err := s.Login(context.Background(), LoginInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	_, err = s.Refresh(context.Background(), login.Tokens.AccessToken)
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

func TestLogoutInvalidatesRefreshToken(t *testing.T) {
	store := newMemoryUserStore()
	s := newTestAuthService(store)
	user := registerAlice(t, s)

	login, err := s.Login(context.Background(), LoginInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, s.Logout(context.Background(), user.ID))
	require.Nil(t, store.users[user.ID].RefreshToken)

	_, err = s.Refresh(context.Background(), login.Tokens.RefreshToken)
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err))

	// Logging out again is a no-op, not an error.
	require.NoError(t, s.Logout(context.Background(), user.ID))
}

func TestChangePassword(t *testing.T) {
	s := newTestAuthService(newMemoryUserStore())
	user := registerAlice(t, s)
	ctx := context.Background()

	require.NoError(t, s.ChangePassword(ctx, user.ID, "secret1", "secret2"))

	_, err := s.Login(ctx, LoginInput{Username: "alice", Password: "secret1"})
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err))

	_, err = s.Login(ctx, LoginInput{Username: "alice", Password: "secret2"})
	require.NoError(t, err)
}

func TestChangePasswordValidation(t *testing.T) {
	s := newTestAuthService(newMemoryUserStore())
	user := registerAlice(t, s)
	ctx := context.Background()

	require.Equal(t, apperr.KindValidation, apperr.KindOf(s.ChangePassword(ctx, user.ID, "", "new")))
	require.Equal(t, apperr.KindValidation, apperr.KindOf(s.ChangePassword(ctx, user.ID, "old", "")))
	require.Equal(t, apperr.KindAuth, apperr.KindOf(s.ChangePassword(ctx, user.ID, "wrong", "new")))
}

func TestChangePasswordKeepsSessionAlive(t *testing.T) {
	s := newTestAuthService(newMemoryUserStore())
	user := registerAlice(t, s)
	ctx := context.Background()

	login, err := s.Login(ctx, LoginInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, s.ChangePassword(ctx, user.ID, "secret1", "secret2"))

	// Deliberately no rotation on password change; the live refresh token
	// still works.
	_, err = s.Refresh(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestValidateAccessToken(t *testing.T) {
	s := newTestAuthService(newMemoryUserStore())
	user := registerAlice(t, s)
	ctx := context.Background()

	login, err := s.Login(ctx, LoginInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	resolved, err := s.ValidateAccessToken(ctx, login.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, resolved.ID)

	_, err = s.ValidateAccessToken(ctx, "")
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err))

	_, err = s.ValidateAccessToken(ctx, login.Tokens.RefreshToken)
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

// Full lifecycle: register, login, refresh, replay the stale token.
func TestSessionLifecycle(t *testing.T) {
	s := newTestAuthService(newMemoryUserStore())
	ctx := context.Background()

	_, err := s.Register(ctx, RegisterInput{
		FullName: "Alice Example",
		Email:    "alice@x.com",
		Username: "alice",
		Password: "secret1",
	})
	require.NoError(t, err)

	login, err := s.Login(ctx, LoginInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	rotated, err := s.Refresh(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.Tokens.RefreshToken, rotated.RefreshToken)

	_, err = s.Refresh(ctx, login.Tokens.RefreshToken)
	require.Equal(t, apperr.KindAuth, apperr.KindOf(err))
}

type blockedLimiter struct{}

func (blockedLimiter) Allow(context.Context, string) (bool, error) { return false, nil }
func (blockedLimiter) Reset(context.Context, string) error         { return nil }

func TestLoginThrottled(t *testing.T) {
	store := newMemoryUserStore()
	tokens := security.NewTokenManager(config.SecurityConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    240 * time.Hour,
	})
	s := NewAuthService(store, tokens, blockedLimiter{}, zerolog.Nop())
	registerAlice(t, s)

	_, err := s.Login(context.Background(), LoginInput{Username: "alice", Password: "secret1"})
	require.Equal(t, apperr.KindRateLimited, apperr.KindOf(err))
}
