package receipt

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKey is where RequireReceipt stores the verified Claims.
const ContextKey = "receipt"

// RequireReceipt accepts a receipt as a bearer token or a ?token= query param.
func RequireReceipt(i *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if authz := c.GetHeader("Authorization"); token == "" && authz != "" {
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed authorization header", "code": "unauthorized"})
				return
			}
			token = strings.TrimSpace(authz[len("bearer "):])
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing receipt", "code": "unauthorized"})
			return
		}
		claims, err := i.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid receipt", "code": "unauthorized"})
			return
		}
		c.Set(ContextKey, claims)
		c.Next()
	}
}
