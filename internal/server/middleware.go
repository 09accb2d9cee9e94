package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/invois/pkg/log/ctxlogger"
	"go.uber.org/zap"
)

const (
	HeaderTenant    = "X-Tenant-ID"
	HeaderRequestID = "X-Request-ID"
)

// RequestID propagates the caller's correlation id or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		ctx := c.Request.Context()
		if id != "" {
			ctx = ctxlogger.WithCorrelationID(ctx, id)
		}
		ctx, id = ctxlogger.CorrelationID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		_, id := ctxlogger.CorrelationID(c.Request.Context())
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("correlation_id", id),
		)
	}
}

func tenantID(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.GetHeader(HeaderTenant))
	if raw == "" {
		return 0, newValidationError("tenant", "missing_tenant", "missing "+HeaderTenant+" header")
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, newValidationError("tenant", "invalid_tenant", "invalid "+HeaderTenant+" header")
	}
	return id, nil
}
