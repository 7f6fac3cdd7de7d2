// Package middleware contains Gin middleware functions.
// Middleware in Gin is a handler that runs before (or after) your route handler.
// It calls c.Next() to proceed or c.Abort() to stop the chain.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyContextKey is where the authenticated key is stored on the context.
const APIKeyContextKey = "api_key"

type keySet map[string]struct{}

func newKeySet(lists ...[]string) keySet {
	set := make(keySet)
	for _, keys := range lists {
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				set[k] = struct{}{}
			}
		}
	}
	return set
}

func (s keySet) has(key string) bool {
	_, ok := s[key]
	return ok
}

// requestKey reads the key from X-API-Key, a bearer Authorization header, or
// the api_key query param (needed for <img src="...?api_key=xxx"> in browsers).
func requestKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.Query("api_key")
}

// APIKeyAuth accepts any API key or admin key. With no keys configured at
// all, authentication is off and every request passes.
func APIKeyAuth(apiKeys, adminKeys []string) gin.HandlerFunc {
	keys := newKeySet(apiKeys, adminKeys)

	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}

		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			return
		}
		if !keys.has(key) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		c.Set(APIKeyContextKey, key)
		c.Next()
	}
}

// AdminKeyAuth accepts admin keys only. With none configured the admin
// endpoints are closed.
func AdminKeyAuth(adminKeys []string) gin.HandlerFunc {
	keys := newKeySet(adminKeys)

	return func(c *gin.Context) {
		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing admin API key"})
			return
		}
		if !keys.has(key) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid admin API key"})
			return
		}

		c.Set(APIKeyContextKey, key)
		c.Next()
	}
}
