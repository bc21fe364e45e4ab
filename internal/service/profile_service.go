package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"vidstream/api/internal/apperr"
	"vidstream/api/internal/models"
	"vidstream/api/internal/repository"
)

type profileStore interface {
	UpdateFullName(ctx context.Context, id string, fullName string) (models.User, error)
	UpdateAvatarURL(ctx context.Context, id string, avatarURL string) (models.User, error)
	UpdateCoverImageURL(ctx context.Context, id string, coverURL string) (models.User, error)
}

// ProfileService applies profile-field updates for an already-authenticated
// user. Image files are stored by the UploadService first; this service
// only records the resulting URL.
type ProfileService struct {
	users profileStore
	log   zerolog.Logger
}

func NewProfileService(users profileStore, log zerolog.Logger) *ProfileService {
	return &ProfileService{
		users: users,
		log:   log,
	}
}

func (s *ProfileService) UpdateAccount(ctx context.Context, userID, fullName string) (models.User, error) {
	if fullName == "" {
		return models.User{}, apperr.Validation("full name is required")
	}

	user, err := s.users.UpdateFullName(ctx, userID, fullName)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, apperr.NotFound("user does not exist")
		}
		return models.User{}, apperr.Internal("update account", err)
	}
	return user.Sanitized(), nil
}

func (s *ProfileService) UpdateAvatar(ctx context.Context, userID, avatarURL string) (models.User, error) {
	if avatarURL == "" {
		return models.User{}, apperr.Validation("avatar url is required")
	}

	user, err := s.users.UpdateAvatarURL(ctx, userID, avatarURL)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, apperr.NotFound("user does not exist")
		}
		return models.User{}, apperr.Internal("update avatar", err)
	}

	s.log.Info().Str("user_id", userID).Msg("avatar updated")
	return user.Sanitized(), nil
}

func (s *ProfileService) UpdateCoverImage(ctx context.Context, userID, coverURL string) (models.User, error) {
	if coverURL == "" {
		return models.User{}, apperr.Validation("cover image url is required")
	}

	user, err := s.users.UpdateCoverImageURL(ctx, userID, coverURL)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, apperr.NotFound("user does not exist")
		}
		return models.User{}, apperr.Internal("update cover image", err)
	}

	s.log.Info().Str("user_id", userID).Msg("cover image updated")
	return user.Sanitized(), nil
}
