package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nulzo/polly/pkg/api"
)

// ErrorHandler renders every handler error into the standard failure
// envelope, status taken from the error itself.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			if apiErr.Log != nil {
				logger.Error("Request failed",
					zap.String("path", c.Request.URL.Path),
					zap.Error(apiErr.Log),
				)
			}
			c.AbortWithStatusJSON(apiErr.Code, api.ErrorResponse{Error: apiErr.Message})
			return
		}

		logger.Error("Unhandled error",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{Error: "An unexpected error occurred."})
	}
}
