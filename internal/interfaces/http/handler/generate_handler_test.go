package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sitekit/backend/internal/domain/billing"
	"github.com/sitekit/backend/internal/interfaces/http/middleware"
)

type fixedEnforcer struct {
	allowed bool
	commits int
}

func (f *fixedEnforcer) Check(_ context.Context, _, _ uuid.UUID, key billing.QuotaKey) (*billing.QuotaCheckResult, error) {
	return &billing.QuotaCheckResult{
		Allowed:   f.allowed,
		QuotaKey:  key,
		Used:      0,
		Limit:     3,
		Remaining: 3,
		PeriodEnd: time.Now().Add(24 * time.Hour),
	}, nil
}

func (f *fixedEnforcer) Commit(_ context.Context, _, _ uuid.UUID, key billing.QuotaKey) (*billing.QuotaCheckResult, error) {
	f.commits++
	return &billing.QuotaCheckResult{
		Allowed:   true,
		QuotaKey:  key,
		Used:      1,
		Limit:     3,
		Remaining: 2,
	}, nil
}

func generateRouter(enforcer middleware.QuotaEnforcer) *gin.Engine {
	router := gin.New()
	router.Use(middleware.UserContext())
	NewGenerateHandler(enforcer, zap.NewNop()).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestGenerateHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("accepted generation commits usage", func(t *testing.T) {
		enforcer := &fixedEnforcer{allowed: true}
		router := generateRouter(enforcer)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/demo/generate",
			bytes.NewBufferString(`{"prompt":"landing page for a bakery"}`))
		req.Header.Set("X-User-ID", userID.String())
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "job_id")
		assert.Contains(t, w.Body.String(), "queued")
		assert.Equal(t, 1, enforcer.commits)
	})

	t.Run("invalid body skips commit", func(t *testing.T) {
		enforcer := &fixedEnforcer{allowed: true}
		router := generateRouter(enforcer)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/demo/generate",
			bytes.NewBufferString(`{}`))
		req.Header.Set("X-User-ID", userID.String())
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, enforcer.commits)
	})

	t.Run("exhausted quota rejects before handler", func(t *testing.T) {
		enforcer := &fixedEnforcer{allowed: false}
		router := generateRouter(enforcer)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/demo/generate",
			bytes.NewBufferString(`{"prompt":"anything"}`))
		req.Header.Set("X-User-ID", userID.String())
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Zero(t, enforcer.commits)
	})
}
