package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"clinic/backend/helper"
	"clinic/backend/internal/model"
	"clinic/backend/internal/service"

	"github.com/gin-gonic/gin"
)

const userKey = "user"

// TokenVerifier is the part of the auth service the middleware needs.
type TokenVerifier interface {
	ParseToken(raw string) (*service.Claims, error)
	UserByID(ctx context.Context, id int64) (*model.User, error)
}

// Auth requires a valid Bearer token whose user still exists.
func Auth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticate(c, v, true) {
			c.Next()
		}
	}
}

// OptionalAuth lets anonymous requests through but still rejects a bad token,
// so handlers can tell a signed-in caller from an anonymous one.
func OptionalAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticate(c, v, false) {
			c.Next()
		}
	}
}

func authenticate(c *gin.Context, v TokenVerifier, required bool) bool {
	header := c.GetHeader("Authorization")
	if header == "" && !required {
		return true
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		helper.AbortWithError(c, http.StatusUnauthorized, helper.CodeUnauthorized, "authentication required")
		return false
	}

	claims, err := v.ParseToken(strings.TrimSpace(raw))
	if err != nil {
		helper.AbortWithError(c, http.StatusUnauthorized, helper.CodeUnauthorized, "invalid or expired token")
		return false
	}

	user, err := v.UserByID(c.Request.Context(), claims.UserID)
	if errors.Is(err, service.ErrNotFound) {
		helper.AbortWithError(c, http.StatusUnauthorized, helper.CodeUnauthorized, "user account not found")
		return false
	}
	if err != nil {
		c.Error(err)
		helper.AbortWithError(c, http.StatusInternalServerError, helper.CodeEngineError, "failed to verify user")
		return false
	}

	c.Set(userKey, user)
	return true
}

// CurrentUser returns the user stored by Auth.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*model.User)
	return u, ok
}

// RequireRole lets through users holding one of roles. It must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			helper.AbortWithError(c, http.StatusUnauthorized, helper.CodeUnauthorized, "authentication required")
			return
		}
		if !slices.Contains(roles, user.Role) {
			helper.AbortWithError(c, http.StatusForbidden, helper.CodeForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}
