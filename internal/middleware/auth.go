package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nutriplan/api/internal/config"
	"nutriplan/api/internal/security"
	"nutriplan/api/internal/service"
)

const (
	// CurrentUserKey holds the redacted account of the active session.
	CurrentUserKey = "current_user"
	// EffectiveRoleKey holds the role resolved from account + provider claims.
	EffectiveRoleKey = "effective_role"
)

// Auth is the route guard: it requires a live session and resolves the
// caller's effective role. An identity-provider token in the Authorization
// header contributes role claims; its absence is fine, but a token that is
// present and invalid is rejected.
func Auth(cfg *config.AppConfig, sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := sessions.GetCurrentUser(c.Request.Context())
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
			return
		}

		var claims *security.IdentityClaims
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			parsed, err := security.ParseIdentityToken(tokenStr, cfg.Security.IdentitySecret)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
				return
			}
			claims = parsed
		}

		c.Set(CurrentUserKey, *user)
		c.Set(EffectiveRoleKey, security.ResolveRole(user.Role, claims))

		c.Next()
	}
}

// RequireRoles gates a route group to the given effective roles.
func RequireRoles(roles ...security.Role) gin.HandlerFunc {
	roleSet := make(map[security.Role]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		roleVal, exists := c.Get(EffectiveRoleKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		role, ok := roleVal.(security.Role)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_role"})
			return
		}

		if _, ok := roleSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}
