package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitekit/backend/internal/domain/billing"
	"github.com/sitekit/backend/internal/interfaces/http/dto"
	"github.com/sitekit/backend/internal/interfaces/http/middleware"
)

// GenerateRequest is the payload for a site generation request
type GenerateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// GenerateResponse describes an accepted generation job
type GenerateResponse struct {
	JobID      string    `json:"job_id"`
	Status     string    `json:"status"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// GenerateHandler demonstrates a metered feature route. The route is wired
// through the quota guard, which runs the check before this handler and the
// usage commit after it; the handler itself only stages the payload.
type GenerateHandler struct {
	BaseHandler
	enforcer middleware.QuotaEnforcer
	logger   *zap.Logger
}

// NewGenerateHandler creates a new GenerateHandler
func NewGenerateHandler(enforcer middleware.QuotaEnforcer, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{enforcer: enforcer, logger: logger}
}

// RegisterRoutes registers the guarded generation route
func (h *GenerateHandler) RegisterRoutes(rg *gin.RouterGroup) {
	demo := rg.Group("/demo", middleware.RequireUser())
	demo.POST("/generate",
		middleware.QuotaGuard(h.enforcer, billing.QuotaKeyGenerate, h.logger),
		h.Generate,
	)
}

// Generate accepts a site generation request. The response is written by the
// quota guard after the usage commit succeeds.
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
			dto.ErrCodeInvalidJSON,
			"prompt is required",
		))
		return
	}

	c.Set(middleware.QuotaGuardResultKey, GenerateResponse{
		JobID:      uuid.New().String(),
		Status:     "queued",
		AcceptedAt: time.Now().UTC(),
	})
}
