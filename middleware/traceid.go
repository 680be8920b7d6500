package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TraceIDHeader carries the trace id to and from clients; a caller may
	// supply its own id to stitch our log lines into an upstream trace.
	TraceIDHeader = "X-Trace-ID"

	traceIDKey = "trace_id"
)

// TraceID stamps every request with a trace id. An id arriving on the
// header is reused; otherwise a fresh UUID is generated. The id rides the
// gin context for loggers and the activity trail, and is echoed back on
// the response.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(TraceIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(traceIDKey, id)
		c.Header(TraceIDHeader, id)
		c.Next()
	}
}

// GetTraceID returns the request's trace id, or "" outside a traced request.
func GetTraceID(c *gin.Context) string {
	return c.GetString(traceIDKey)
}
