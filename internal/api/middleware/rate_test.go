package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func rateRouter(cfg RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(cfg))
	r.GET("/probe", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func rateProbe(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitEnforcesBurst(t *testing.T) {
	r := rateRouter(RateLimitConfig{RequestsPerSecond: 1, Burst: 3})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, rateProbe(r, "198.51.100.1").Code, "request %d", i)
	}

	w := rateProbe(r, "198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"rate_limited"`)
}

func TestRateLimitIsPerClient(t *testing.T) {
	r := rateRouter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	assert.Equal(t, http.StatusOK, rateProbe(r, "198.51.100.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, rateProbe(r, "198.51.100.1").Code)

	// A different client has its own bucket.
	assert.Equal(t, http.StatusOK, rateProbe(r, "198.51.100.2").Code)
}
