package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func rateLimitedGet(t *testing.T, eng *gin.Engine, ip string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Real-IP", ip)
	w := httptest.NewRecorder()
	eng.ServeHTTP(w, req)
	return w.Code
}

func newLimitedRouter(rps rate.Limit, burst int) *gin.Engine {
	eng := gin.New()
	eng.Use(RateLimit(rps, burst))
	eng.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return eng
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	// Near-zero refill so the bucket never recovers during the test.
	eng := newLimitedRouter(0.001, 3)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, rateLimitedGet(t, eng, "10.0.1.1"), "request %d within burst", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, rateLimitedGet(t, eng, "10.0.1.1"))
}

func TestRateLimit_IsolatesClients(t *testing.T) {
	eng := newLimitedRouter(0.001, 1)

	assert.Equal(t, http.StatusOK, rateLimitedGet(t, eng, "10.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, rateLimitedGet(t, eng, "10.1.1.1"))
	// A different client has its own bucket.
	assert.Equal(t, http.StatusOK, rateLimitedGet(t, eng, "10.1.1.2"))
}
