package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"skillsync/identity"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// TokenVerifier checks a bearer token and returns the authenticated
// identity and role.
type TokenVerifier interface {
	VerifyToken(token string) (string, identity.Role, error)
}

// RequireAuth rejects requests without a valid bearer token and stashes
// the caller's identity in the gin context.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, role, err := verifier.VerifyToken(token)
		if err != nil {
			slog.DebugContext(c.Request.Context(), "token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxRole, string(role))
		c.Next()
	}
}

func authUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func authRole(c *gin.Context) identity.Role {
	return identity.Role(c.GetString(ctxRole))
}
