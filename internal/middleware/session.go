package middleware

import (
	"net/http"
	"time"

	"user_manager/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const SessionCookieName = "um_session"

// SessionMiddleware resolves the browser session from its signed cookie,
// starting a fresh session when the cookie is missing or invalid.
func SessionMiddleware(secret string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := c.Cookie(SessionCookieName); err == nil && token != "" {
			claims, err := auth.ValidateToken(token, secret)
			if err == nil {
				c.Set(auth.SessionIDKey, claims.SessionID)
				c.Next()
				return
			}
			logrus.WithError(err).Debug("Discarding session cookie")
		}

		sessionID, token, err := auth.NewSession(secret, ttl)
		if err != nil {
			logrus.WithError(err).Error("Failed to start session")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookieName, token, int(ttl.Seconds()), "/", "", false, true)
		c.Set(auth.SessionIDKey, sessionID)
		c.Next()
	}
}
