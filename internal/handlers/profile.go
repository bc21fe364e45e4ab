package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vidstream/api/internal/apperr"
	"vidstream/api/internal/models"
)

type updateAccountRequest struct {
	FullName string `json:"fullName"`
}

func (h HandlerSet) UpdateAccount(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		h.writeError(c, apperr.Auth("unauthorized request"))
		return
	}

	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperr.Validation("invalid request body"))
		return
	}

	updated, err := h.profiles.UpdateAccount(c.Request.Context(), user.ID, req.FullName)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(updated)})
}

func (h HandlerSet) UpdateAvatar(c *gin.Context) {
	h.updateImage(c, "avatar", models.UploadKindAvatar)
}

func (h HandlerSet) UpdateCoverImage(c *gin.Context) {
	h.updateImage(c, "coverImage", models.UploadKindCover)
}

func (h HandlerSet) updateImage(c *gin.Context, field string, kind models.UploadKind) {
	user, ok := currentUser(c)
	if !ok {
		h.writeError(c, apperr.Auth("unauthorized request"))
		return
	}

	file, header, err := c.Request.FormFile(field)
	if err != nil {
		h.writeError(c, apperr.Validation(field+" file is required"))
		return
	}
	defer file.Close()

	_, url, err := h.uploads.Store(c.Request.Context(), user.ID, kind, file, header)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var updated models.User
	if kind == models.UploadKindAvatar {
		updated, err = h.profiles.UpdateAvatar(c.Request.Context(), user.ID, url)
	} else {
		updated, err = h.profiles.UpdateCoverImage(c.Request.Context(), user.ID, url)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(updated)})
}
