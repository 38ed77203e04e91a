package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/makremffff/adwatch-backend/internal/api/jwt"
)

// Session extracts the optional session JWT. It never rejects: session
// binding is an extra check on action tokens, not an auth wall of its own.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token != "" {
			userId, sessionId, err := jwt.ValidateToken(token)
			if err == nil {
				c.Set("session_user_id", userId)
				c.Set("session_id", sessionId)
			}
		}
		c.Next()
	}
}
