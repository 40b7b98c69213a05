package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// RoleResolver grants the admin role to configured accounts on top of the
// role carried by the token.
type RoleResolver struct {
	adminEmails  map[string]struct{}
	adminUserIDs map[string]struct{}
}

// NewRoleResolver creates a new role resolver.
func NewRoleResolver(adminEmails, adminUserIDs []string) *RoleResolver {
	return &RoleResolver{
		adminEmails:  normalizeSet(adminEmails, normalizeEmail),
		adminUserIDs: normalizeSet(adminUserIDs, strings.TrimSpace),
	}
}

// IsAdmin reports whether the identity holds the admin role.
func (r *RoleResolver) IsAdmin(userID, email, tokenRole string) bool {
	if tokenRole == RoleAdmin {
		return true
	}
	if r == nil {
		return false
	}
	if _, ok := r.adminUserIDs[userID]; ok && userID != "" {
		return true
	}
	if e := normalizeEmail(email); e != "" {
		if _, ok := r.adminEmails[e]; ok {
			return true
		}
	}
	return false
}

// ResolveRole upgrades the context role to admin for configured accounts.
// It must run after Auth.
func ResolveRole(resolver *RoleResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsAuthenticated(c) && resolver.IsAdmin(GetUserID(c), GetEmail(c), GetRole(c)) {
			c.Set(RoleKey, RoleAdmin)
		}
		c.Next()
	}
}

func normalizeSet(values []string, normalize func(string) string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = normalize(v)
		if v == "" {
			continue
		}
		out[v] = struct{}{}
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
