package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/threatwatch/pkg/common"
	"github.com/richxcame/threatwatch/pkg/validation"
)

// RespondWithValidationError answers 400 with message and the field details
// of a binding error
func RespondWithValidationError(c *gin.Context, message string, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		common.ErrorResponse(c, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	common.ErrorResponse(c, http.StatusBadRequest, message+": "+validation.Describe(err))
}

// ValidateContentType rejects bodies that are not of the given content type
func ValidateContentType(contentType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength == 0 || c.ContentType() == contentType {
			c.Next()
			return
		}
		common.ErrorResponse(c, http.StatusUnsupportedMediaType, "expected content type "+contentType)
		c.Abort()
	}
}

// ValidateJSONContentType ensures request bodies are application/json
func ValidateJSONContentType() gin.HandlerFunc {
	return ValidateContentType("application/json")
}

// MaxBodySize limits the request body size. Reads past the limit fail and
// surface through RespondWithValidationError as 413.
func MaxBodySize(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}
