package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/steamlytics/server/activity"
)

// ActivityLog records every mutating request to the activity trail. Reads
// are skipped to keep the table focused on writes.
func ActivityLog(svc *activity.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "GET" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		entry := activity.Entry{
			TraceID:    GetTraceID(c),
			Action:     c.Request.Method + " " + c.FullPath(),
			IP:         c.ClientIP(),
			DurationMs: int(time.Since(start).Milliseconds()),
		}
		if id, err := strconv.ParseInt(c.Param("id"), 10, 64); err == nil {
			entry.UserID = &id
		}
		if c.Writer.Status() >= 400 {
			entry.Error = "status " + strconv.Itoa(c.Writer.Status())
		}
		svc.Log(entry)
	}
}
