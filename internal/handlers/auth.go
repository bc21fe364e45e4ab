package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vidstream/api/internal/apperr"
	"vidstream/api/internal/ids"
	"vidstream/api/internal/middleware"
	"vidstream/api/internal/models"
	"vidstream/api/internal/security"
	"vidstream/api/internal/service"
)

type userResponse struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatarUrl"`
	CoverImageURL *string   `json:"coverImageUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toUserResponse(user models.User) userResponse {
	return userResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		CreatedAt:     user.CreatedAt,
	}
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	input := service.RegisterInput{
		ID:       ids.New(),
		FullName: c.PostForm("fullName"),
		Email:    c.PostForm("email"),
		Username: c.PostForm("username"),
		Password: c.PostForm("password"),
	}

	avatarFile, avatarHeader, err := c.Request.FormFile("avatar")
	if err != nil {
		h.writeError(c, apperr.Validation("avatar image is required"))
		return
	}
	defer avatarFile.Close()

	_, avatarURL, err := h.uploads.Store(c.Request.Context(), input.ID, models.UploadKindAvatar, avatarFile, avatarHeader)
	if err != nil {
		h.writeError(c, err)
		return
	}
	input.AvatarURL = avatarURL

	coverFile, coverHeader, err := c.Request.FormFile("coverImage")
	switch {
	case err == nil:
		defer coverFile.Close()
		_, coverURL, err := h.uploads.Store(c.Request.Context(), input.ID, models.UploadKindCover, coverFile, coverHeader)
		if err != nil {
			h.writeError(c, err)
			return
		}
		input.CoverImageURL = &coverURL
	case errors.Is(err, http.ErrMissingFile):
		// cover image is optional
	default:
		h.writeError(c, apperr.Validation("invalid cover image"))
		return
	}

	user, err := h.auth.Register(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": toUserResponse(user)})
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperr.Validation("invalid request body"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setSessionCookies(c, result.Tokens)

	c.JSON(http.StatusOK, gin.H{
		"user":         toUserResponse(result.User),
		"accessToken":  result.Tokens.AccessToken,
		"refreshToken": result.Tokens.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h HandlerSet) Refresh(c *gin.Context) {
	token, err := c.Cookie(middleware.RefreshTokenCookie)
	if err != nil || token == "" {
		var req refreshRequest
		// Body is optional; the cookie is the primary carrier.
		_ = c.ShouldBindJSON(&req)
		token = req.RefreshToken
	}

	pair, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setSessionCookies(c, pair)

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		h.writeError(c, apperr.Auth("unauthorized request"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), user.ID); err != nil {
		h.writeError(c, err)
		return
	}

	h.clearSessionCookies(c)

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		h.writeError(c, apperr.Auth("unauthorized request"))
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperr.Validation("invalid request body"))
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

// Me returns the identity the auth middleware already resolved; no second
// lookup.
func (h HandlerSet) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		h.writeError(c, apperr.Auth("unauthorized request"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user.Sanitized())})
}

func (h HandlerSet) setSessionCookies(c *gin.Context, pair security.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, pair.AccessToken,
		int(h.cfg.Security.AccessTokenTTL.Seconds()), "/", "", true, true)
	c.SetCookie(middleware.RefreshTokenCookie, pair.RefreshToken,
		int(h.cfg.Security.RefreshTokenTTL.Seconds()), "/", "", true, true)
}

func (h HandlerSet) clearSessionCookies(c *gin.Context) {
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", true, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, "/", "", true, true)
}
