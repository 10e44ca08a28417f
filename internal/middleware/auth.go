// Package middleware provides session authentication and error handling
// middleware for the Gin web framework.
package middleware

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// UsernameKey is the key used to store the username in session and context.
// Users come from a fixed credential list, so the session carries only the
// canonical username.
const UsernameKey = "username"

// RequireAuth returns a middleware that requires an authenticated session.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		username := session.Get(UsernameKey)

		if username == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  "UNAUTHORIZED",
			})
			c.Abort()
			return
		}

		usernameStr, ok := username.(string)
		if !ok || usernameStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  "UNAUTHORIZED",
			})
			c.Abort()
			return
		}

		// Store the username in context for handlers to use
		c.Set(UsernameKey, usernameStr)

		c.Next()
	}
}

// SessionUsername returns the authenticated username from the request
// context. Only valid behind RequireAuth.
func SessionUsername(c *gin.Context) string {
	if username, ok := c.Get(UsernameKey); ok {
		if usernameStr, ok := username.(string); ok {
			return usernameStr
		}
	}
	return ""
}
