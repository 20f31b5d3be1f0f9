package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/security"
)

const (
	CurrentUserKey  = "current_user"
	AccessClaimsKey = "access_claims"
)

// UserLookup finds the account behind a verified access token.
type UserLookup interface {
	UserByID(id string) (models.User, error)
}

func Auth(secret string, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token", "code": "missing_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseAccessToken(tokenStr, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "invalid_token"})
			return
		}

		user, err := users.UserByID(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found", "code": "user_not_found"})
			return
		}

		c.Set(AccessClaimsKey, *claims)
		c.Set(CurrentUserKey, user)

		c.Next()
	}
}

// CurrentUser returns the user stored by Auth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get(CurrentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := userVal.(models.User)
	return user, ok
}
