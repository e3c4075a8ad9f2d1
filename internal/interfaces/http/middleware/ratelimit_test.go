package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)

	assert.True(t, limiter.Allow("client-a"))
	assert.True(t, limiter.Allow("client-a"))
	assert.False(t, limiter.Allow("client-a"))

	// Other clients are unaffected
	assert.True(t, limiter.Allow("client-b"))
}

func TestRateLimiter_Remaining(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	assert.Equal(t, 3, limiter.Remaining("client-a"))
	limiter.Allow("client-a")
	assert.Equal(t, 2, limiter.Remaining("client-a"))
}

func TestRateLimit(t *testing.T) {
	t.Run("rejects when limit exhausted", func(t *testing.T) {
		router := gin.New()
		router.Use(RateLimit(NewRateLimiter(1, time.Minute)))
		router.GET("/test", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		first := httptest.NewRecorder()
		router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, first.Code)

		second := httptest.NewRecorder()
		router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
	})

	t.Run("keys by authenticated user", func(t *testing.T) {
		router := gin.New()
		router.Use(UserContext(), RateLimit(NewRateLimiter(1, time.Minute)))
		router.GET("/test", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		userA := uuid.New().String()
		userB := uuid.New().String()

		reqA := httptest.NewRequest(http.MethodGet, "/test", nil)
		reqA.Header.Set("X-User-ID", userA)
		first := httptest.NewRecorder()
		router.ServeHTTP(first, reqA)
		assert.Equal(t, http.StatusOK, first.Code)

		// Same user is now limited, a different user is not
		reqA2 := httptest.NewRequest(http.MethodGet, "/test", nil)
		reqA2.Header.Set("X-User-ID", userA)
		second := httptest.NewRecorder()
		router.ServeHTTP(second, reqA2)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)

		reqB := httptest.NewRequest(http.MethodGet, "/test", nil)
		reqB.Header.Set("X-User-ID", userB)
		third := httptest.NewRecorder()
		router.ServeHTTP(third, reqB)
		assert.Equal(t, http.StatusOK, third.Code)
	})

	t.Run("sets rate limit headers", func(t *testing.T) {
		router := gin.New()
		router.Use(RateLimit(NewRateLimiter(5, time.Minute)))
		router.GET("/test", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
	})
}
