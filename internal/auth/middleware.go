package auth

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxClaimsKey = "claims"

// BearerAuth enforces bearer JWT tokens signed with HS256 and stores the claims on the context.
func BearerAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing bearer token")
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token")
			return
		}
		c.Set(ctxClaimsKey, claims)
		c.Next()
	}
}

// RequireRole allows the request through only for the listed roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := FromContext(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing claims")
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			abort(c, http.StatusForbidden, "FORBIDDEN", "forbidden")
			return
		}
		c.Next()
	}
}

// Guardians answers whether a parent account is linked to a child.
type Guardians interface {
	IsGuardian(ctx context.Context, childID, parentID string) (bool, error)
}

// RequireStaffOrGuardian lets staff through and parents only for children they are linked to.
// The child id is read from the named path parameter.
func RequireStaffOrGuardian(g Guardians, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := FromContext(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing claims")
			return
		}
		if claims.IsStaff() {
			c.Next()
			return
		}
		if claims.Role != RoleParent {
			abort(c, http.StatusForbidden, "FORBIDDEN", "forbidden")
			return
		}
		linked, err := g.IsGuardian(c.Request.Context(), c.Param(param), claims.Subject)
		if err != nil {
			log.Printf("[ERROR] guardian lookup child=%s parent=%s: %v", c.Param(param), claims.Subject, err)
			abort(c, http.StatusInternalServerError, "INTERNAL", err.Error())
			return
		}
		if !linked {
			abort(c, http.StatusForbidden, "FORBIDDEN", "not a guardian of this child")
			return
		}
		c.Next()
	}
}

// FromContext returns the claims set by BearerAuth.
func FromContext(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(ctxClaimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": msg}})
}
