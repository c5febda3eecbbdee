package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func adminTestRouter(emails []string, email string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserEmail, email)
	})
	r.GET("/admin/ping", RequireAdmin(emails), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireAdmin(t *testing.T) {
	operators := []string{"ops@example.edu"}

	tests := []struct {
		name   string
		email  string
		status int
	}{
		{"operator allowed", "ops@example.edu", http.StatusOK},
		{"case insensitive", "OPS@Example.EDU", http.StatusOK},
		{"regular user forbidden", "alice@example.edu", http.StatusForbidden},
		{"missing email forbidden", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
			adminTestRouter(operators, tt.email).ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
