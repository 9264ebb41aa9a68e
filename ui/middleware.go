package ui

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "trialsim/internal/errors"
)

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Next()
	})
}

// requireJSON rejects request bodies that are not declared as JSON.
func requireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		ct := c.GetHeader("Content-Type")
		if !strings.HasPrefix(strings.ToLower(ct), gin.MIMEJSON) {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
				"error": "request body must be application/json",
				"code":  apperrors.CodeInvalidInput,
			})
			return
		}
		c.Next()
	}
}
