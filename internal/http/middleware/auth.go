package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"basegraph.app/faultline/common/logger"
)

const (
	scopeKey = "faultline.scope"

	// DevScopeHeader picks the scope when no API keys are configured.
	DevScopeHeader = "X-Faultline-Scope"
	DefaultScope   = "default"
)

// RequireAPIKey resolves the caller's scope from an API key sent as
// "Authorization: Bearer <key>" or "X-API-Key". With no keys configured every
// request is accepted and the scope comes from DevScopeHeader.
func RequireAPIKey(keys map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var scope string

		if len(keys) == 0 {
			scope = c.GetHeader(DevScopeHeader)
			if scope == "" {
				scope = DefaultScope
			}
		} else {
			apiKey := c.GetHeader("X-API-Key")
			if apiKey == "" {
				apiKey = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
			}
			var ok bool
			scope, ok = keys[apiKey]
			if apiKey == "" || !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
				return
			}
		}

		c.Set(scopeKey, scope)
		c.Request = c.Request.WithContext(logger.WithLogFields(c.Request.Context(), logger.LogFields{
			Scope: &scope,
		}))
		c.Next()
	}
}

// Scope returns the scope set by RequireAPIKey.
func Scope(c *gin.Context) (string, bool) {
	v, ok := c.Get(scopeKey)
	if !ok {
		return "", false
	}
	scope, ok := v.(string)
	return scope, ok && scope != ""
}
