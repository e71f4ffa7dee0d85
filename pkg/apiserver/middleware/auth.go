package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flashflow/flashflow/pkg/auth"
	"github.com/flashflow/flashflow/pkg/model"
)

const (
	ContextActorID = "actor_id"
	ContextRole    = "role"
	ContextAdmin   = "is_admin"
)

// Auth verifies the worker bearer token and stashes the actor identity on
// the request context.
func Auth(tokens *auth.WorkerTokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := c.GetHeader("Authorization")
		if authorization == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.SplitN(authorization, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization"})
			return
		}

		claims, err := tokens.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextActorID, claims.ActorID)
		c.Set(ContextRole, model.Role(claims.Role))
		c.Set(ContextAdmin, claims.Admin)
		c.Next()
	}
}

// Actor pulls the verified identity back out of the context.
func Actor(c *gin.Context) (string, model.Role, bool) {
	actorID := c.GetString(ContextActorID)
	role, _ := c.Get(ContextRole)
	admin := c.GetBool(ContextAdmin)
	r, _ := role.(model.Role)
	return actorID, r, admin
}
