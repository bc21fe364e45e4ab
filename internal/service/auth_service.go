package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vidstream/api/internal/apperr"
	"vidstream/api/internal/ids"
	"vidstream/api/internal/models"
	"vidstream/api/internal/repository"
	"vidstream/api/internal/security"
)

// userStore is the slice of the credential store the session manager needs.
type userStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	UpdateRefreshToken(ctx context.Context, id string, token *string, expiresAt *time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
}

// loginLimiter throttles login attempts per identifier. A nil limiter
// disables throttling.
type loginLimiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
	Reset(ctx context.Context, identifier string) error
}

// AuthService owns the session-token lifecycle: issuing the pair on login,
// rotating the refresh token, and invalidating it on logout. The single
// persisted refresh token per user is the only server-side session state.
type AuthService struct {
	users   userStore
	tokens  *security.TokenManager
	limiter loginLimiter
	log     zerolog.Logger
}

func NewAuthService(users userStore, tokens *security.TokenManager, limiter loginLimiter, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:   users,
		tokens:  tokens,
		limiter: limiter,
		log:     log,
	}
}

type RegisterInput struct {
	// ID is optional; the transport layer pre-generates it when profile
	// images are uploaded before the user row exists.
	ID            string
	FullName      string
	Email         string
	Username      string
	Password      string
	AvatarURL     string
	CoverImageURL *string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	if input.FullName == "" || input.Email == "" || input.Username == "" || input.Password == "" {
		return models.User{}, apperr.Validation("all fields are required")
	}

	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if _, err := s.users.FindByUsernameOrEmail(ctx, username, email); err == nil {
		return models.User{}, apperr.Conflict("user with email or username already exists")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, apperr.Internal("lookup user", err)
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.User{}, apperr.Internal("hash password", err)
	}

	userID := input.ID
	if userID == "" {
		userID = ids.New()
	}

	user := models.User{
		ID:            userID,
		Username:      username,
		Email:         email,
		FullName:      input.FullName,
		PasswordHash:  passwordHash,
		AvatarURL:     input.AvatarURL,
		CoverImageURL: input.CoverImageURL,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return models.User{}, apperr.Conflict("user with email or username already exists")
		}
		return models.User{}, apperr.Internal("create user", err)
	}

	s.log.Info().Str("user_id", user.ID).Str("username", username).Msg("user registered")

	return user.Sanitized(), nil
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

type LoginResult struct {
	User   models.User
	Tokens security.TokenPair
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	if input.Username == "" && input.Email == "" {
		return LoginResult{}, apperr.Validation("username or email is required")
	}
	if input.Password == "" {
		return LoginResult{}, apperr.Validation("password is required")
	}

	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))

	identifier := username
	if identifier == "" {
		identifier = email
	}
	if err := s.allowAttempt(ctx, identifier); err != nil {
		return LoginResult{}, err
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, apperr.NotFound("user does not exist")
		}
		return LoginResult{}, apperr.Internal("lookup user", err)
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, apperr.Internal("verify password", err)
	}
	if !ok {
		return LoginResult{}, apperr.Auth("incorrect password")
	}

	pair, err := s.rotate(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, identifier); err != nil {
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("reset login attempts failed")
		}
	}

	s.log.Info().Str("user_id", user.ID).Msg("user logged in")

	return LoginResult{
		User:   user.Sanitized(),
		Tokens: pair,
	}, nil
}

// Refresh rotates the token pair. The incoming token must verify under the
// refresh secret and match the persisted value exactly; a token rotated
// away earlier fails the match even though its signature is still good.
// Concurrent refreshes with the same stale token race on the store's atomic
// row update, and the loser fails here.
func (s *AuthService) Refresh(ctx context.Context, incomingToken string) (security.TokenPair, error) {
	if incomingToken == "" {
		return security.TokenPair{}, apperr.Auth("unauthorized request")
	}

	userID, err := s.tokens.ParseRefresh(incomingToken)
	if err != nil {
		return security.TokenPair{}, &apperr.Error{Kind: apperr.KindAuth, Message: "invalid refresh token", Err: err}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return security.TokenPair{}, apperr.Auth("invalid refresh token")
		}
		return security.TokenPair{}, apperr.Internal("lookup user", err)
	}

	if user.RefreshToken == nil || *user.RefreshToken != incomingToken {
		return security.TokenPair{}, apperr.Auth("refresh token is expired or used")
	}

	pair, err := s.rotate(ctx, user.ID)
	if err != nil {
		return security.TokenPair{}, err
	}

	s.log.Debug().Str("user_id", user.ID).Msg("refresh token rotated")

	return pair, nil
}

// Logout clears the persisted refresh token. Calling it for a user who has
// no live token is not an error.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.users.UpdateRefreshToken(ctx, userID, nil, nil); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.NotFound("user does not exist")
		}
		return apperr.Internal("clear refresh token", err)
	}

	s.log.Info().Str("user_id", userID).Msg("user logged out")
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return apperr.Validation("old and new password are required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.NotFound("user does not exist")
		}
		return apperr.Internal("lookup user", err)
	}

	ok, err := security.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil {
		return apperr.Internal("verify password", err)
	}
	if !ok {
		return apperr.Auth("invalid old password")
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return apperr.Internal("hash password", err)
	}

	// Password change does not rotate the refresh token; the live session
	// stays valid.
	if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return apperr.Internal("update password", err)
	}

	s.log.Info().Str("user_id", userID).Msg("password changed")
	return nil
}

// ValidateAccessToken is the hook the auth middleware calls to resolve the
// request identity before protected operations run.
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, apperr.Auth("unauthorized request")
	}

	userID, err := s.tokens.ParseAccess(token)
	if err != nil {
		return models.User{}, &apperr.Error{Kind: apperr.KindAuth, Message: "invalid access token", Err: err}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, apperr.Auth("invalid access token")
		}
		return models.User{}, apperr.Internal("lookup user", err)
	}

	return user, nil
}

// rotate issues a fresh pair and persists the refresh token before anything
// is returned to the caller. If the write fails the caller gets no tokens.
func (s *AuthService) rotate(ctx context.Context, userID string) (security.TokenPair, error) {
	pair, err := s.tokens.IssuePair(userID)
	if err != nil {
		return security.TokenPair{}, apperr.Internal("generate tokens", err)
	}

	if err := s.users.UpdateRefreshToken(ctx, userID, &pair.RefreshToken, &pair.RefreshExpiresAt); err != nil {
		return security.TokenPair{}, apperr.Internal("persist refresh token", err)
	}

	return pair, nil
}

func (s *AuthService) allowAttempt(ctx context.Context, identifier string) error {
	if s.limiter == nil {
		return nil
	}

	allowed, err := s.limiter.Allow(ctx, identifier)
	if err != nil {
		// Throttling is best effort; a cache outage must not lock
		// everyone out.
		s.log.Warn().Err(err).Msg("login limiter unavailable")
		return nil
	}
	if !allowed {
		return apperr.RateLimited("too many login attempts, try again later")
	}
	return nil
}
