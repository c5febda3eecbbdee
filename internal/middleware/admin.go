package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireAdmin restricts a route group to accounts whose email is on the
// configured operator list. Runs after Authenticate.
func RequireAdmin(emails []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		allowed[strings.ToLower(e)] = struct{}{}
	}

	return func(c *gin.Context) {
		email := strings.ToLower(c.GetString(ContextUserEmail))
		if _, ok := allowed[email]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    http.StatusForbidden,
					"message": "admin access required",
				},
			})
			return
		}
		c.Next()
	}
}
