package handlers

import (
	"github.com/gin-gonic/gin"

	"examprep/internal/middleware"
)

// HandleAppError sends the structured error response for err, mapping
// AppError codes to HTTP status codes.
func HandleAppError(c *gin.Context, err error) {
	middleware.HandleAppError(c, err)
}
