package middleware

import (
	"context"
	"net/http"

	"focuslock/internal/core"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const UserIDKey = "user_id"

// UserDirectory loads users for token verification
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*core.User, error)
}

// UserAuth authenticates requests with X-User-ID and X-User-Token headers.
// Tokens are compared against the stored bcrypt hash.
func UserAuth(users UserDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		token := c.GetHeader("X-User-Token")
		if userID == "" || token == "" {
			unauthorized(c)
			return
		}

		user, err := users.GetUser(c.Request.Context(), userID)
		if err != nil {
			unauthorized(c)
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(user.TokenHash), []byte(token)) != nil {
			unauthorized(c)
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Next()
	}
}

// AdminAuth verifies the static admin API key
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Key") != adminKey {
			unauthorized(c)
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": "Unauthorized",
		"code":  "UNAUTHORIZED",
	})
	c.Abort()
}
