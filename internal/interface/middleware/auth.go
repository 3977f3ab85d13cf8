package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/kios-auth/pkg/helpers"
	"github.com/oksasatya/kios-auth/pkg/response"
)

const (
	CtxUserIDKey    = "userID"
	CtxUserEmailKey = "userEmail"
	CtxUserNameKey  = "userName"
)

// TokenValidator resolves a bearer token to its claims.
type TokenValidator interface {
	ValidateToken(token string) (*helpers.Claims, error)
}

// Auth validates the access token from the Authorization header, falling back
// to the access_token cookie. It sets userID, userName, and userEmail in the Gin context on success.
func Auth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			return
		}
		claims, err := v.ValidateToken(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid access token", nil)
			return
		}

		c.Set(CtxUserIDKey, claims.UserID())
		c.Set(CtxUserNameKey, claims.Name)
		c.Set(CtxUserEmailKey, claims.Email)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if h := strings.TrimSpace(c.GetHeader("Authorization")); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	token, err := c.Cookie(helpers.AccessTokenCookie)
	if err != nil {
		return ""
	}
	return token
}
