package auth

import (
	"strings"

	"community-polling-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	callerKey     = "auth.caller"
	sessionKey    = "auth.session"
	sessionCookie = "poll_session"
	sessionHeader = "X-Session-ID"
)

// OptionalAuth resolves a bearer identity if one is presented and valid.
// It never rejects: an invalid or absent token just leaves the caller
// anonymous, and the voting protocol decides whether that is acceptable.
func OptionalAuth(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens != nil {
			header := c.GetHeader("Authorization")
			if token, ok := strings.CutPrefix(header, "Bearer "); ok {
				if userID, role, err := tokens.Validate(token); err == nil {
					c.Set(callerKey, &models.Caller{ID: userID, Role: role})
				}
			}
		}
		c.Next()
	}
}

// Session ensures every request carries a session id, issuing one in a
// cookie when the client has none. The id is half of the anonymous-voter
// fingerprint; the other half is the client IP.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := c.GetHeader(sessionHeader)
		if sid == "" {
			if cookie, err := c.Cookie(sessionCookie); err == nil {
				sid = cookie
			}
		}
		if sid == "" {
			sid = uuid.NewString()
			c.SetCookie(sessionCookie, sid, 86400*365, "/", "", false, true)
		}
		c.Set(sessionKey, sid)
		c.Next()
	}
}

// CallerFromContext returns the resolved identity, or nil for anonymous.
func CallerFromContext(c *gin.Context) *models.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(*models.Caller); ok {
			return caller
		}
	}
	return nil
}

// FingerprintFromContext builds the anonymous-voter fingerprint. The IP is
// gin's ClientIP, which honors the trusted proxy chain configured on the
// engine.
func FingerprintFromContext(c *gin.Context) models.Fingerprint {
	fp := models.Fingerprint{IP: c.ClientIP()}
	if v, ok := c.Get(sessionKey); ok {
		if sid, ok := v.(string); ok {
			fp.SessionID = sid
		}
	}
	return fp
}
