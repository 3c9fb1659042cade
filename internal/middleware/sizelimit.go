package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neuroscan/neuroscan-api/internal/handler"
)

// SizeLimitConfig represents size limit configuration
type SizeLimitConfig struct {
	MaxBodySize   int64
	MaxUploadSize int64
	UploadPaths   []string
}

func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodySize:   1 << 20,  // 1MB for JSON bodies
		MaxUploadSize: 25 << 20, // 25MB for multipart image uploads
		UploadPaths: []string{
			"/api/patients/upload-scan",
			"/api/predict",
		},
	}
}

// SizeLimit rejects oversized requests before the handlers read them.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := config.MaxBodySize
		for _, path := range config.UploadPaths {
			if c.Request.URL.Path == path {
				limit = config.MaxUploadSize
				break
			}
		}

		if c.Request.ContentLength > limit {
			c.JSON(http.StatusRequestEntityTooLarge, handler.NewErrorResponse("request size exceeds limit"))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

		c.Next()
	}
}
