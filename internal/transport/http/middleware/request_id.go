package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Vipul0052/Lifeline-v2/internal/infra/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID carries a correlation identifier through the request. A caller-
// supplied header wins so mobile clients can tie their local logs to ours;
// otherwise one is minted here.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, reqID)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), logger.RequestIDKey{}, reqID),
		)

		c.Next()
	}
}
