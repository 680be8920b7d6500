// Package rest exposes the HTTP surface. Handlers are thin: bind, call a
// service, translate the error kind to a status code.
package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/steamlytics/server/apperr"
)

// fail translates a service error into an HTTP response. Unrecognized errors
// become an opaque 500 so internals never leak to clients.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.NotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.InvalidOperation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.Conflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// idParam parses a positive int64 path parameter. On failure it writes the
// 400 response and reports false.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// limitQuery parses the optional ?limit= query parameter.
func limitQuery(c *gin.Context, def int) int {
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		return l
	}
	return def
}
