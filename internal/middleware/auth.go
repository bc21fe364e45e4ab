package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"vidstream/api/internal/apperr"
	"vidstream/api/internal/service"
)

// CurrentUserKey is the gin context key under which the resolved identity
// is attached for protected handlers.
const CurrentUserKey = "current_user"

// Cookie names shared between the auth middleware and the session
// handlers.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// Auth resolves the request identity from the access-token cookie or a
// Bearer header and attaches the user to the context. Protected operations
// run only behind this middleware.
func Auth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)

		user, err := auth.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": apperr.ClientMessage(err)})
			return
		}

		c.Set(CurrentUserKey, user)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}

	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
