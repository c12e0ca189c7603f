// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file assigns every request a pledge session. The session id comes from
// the X-Session-ID header when it is well-formed and is minted otherwise; it
// keys the certificate re-entrancy guard, idempotency records, rate limits
// and conversion attribution.
package middleware

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderSessionID carries the caller's session id in both directions.
const HeaderSessionID = "X-Session-ID"

const ctxKeySessionID = "sessionID"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,64}$`)

// Session stashes the caller's session id, minting "sess_<uuid>" when the
// header is missing or malformed, and echoes it in the response.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderSessionID)
		if !sessionIDPattern.MatchString(id) {
			id = "sess_" + uuid.NewString()
		}
		c.Set(ctxKeySessionID, id)
		c.Writer.Header().Set(HeaderSessionID, id)
		c.Next()
	}
}

// SessionID returns the session id set by Session, or "" when absent.
func SessionID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeySessionID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
