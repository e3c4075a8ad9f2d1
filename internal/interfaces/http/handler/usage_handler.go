package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appbilling "github.com/sitekit/backend/internal/application/billing"
	"github.com/sitekit/backend/internal/domain/billing"
	"github.com/sitekit/backend/internal/interfaces/http/dto"
)

// QuotaService exposes quota decisions and usage reporting to the API layer.
type QuotaService interface {
	Check(ctx context.Context, userID, projectID uuid.UUID, key billing.QuotaKey) (*billing.QuotaCheckResult, error)
	Commit(ctx context.Context, userID, projectID uuid.UUID, key billing.QuotaKey) (*billing.QuotaCheckResult, error)
	GetUsageSummary(ctx context.Context, userID uuid.UUID) (*appbilling.UsageSummaryDTO, error)
}

// UsageHandler handles usage and quota endpoints
type UsageHandler struct {
	BaseHandler
	quotaService QuotaService
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(quotaService QuotaService) *UsageHandler {
	return &UsageHandler{quotaService: quotaService}
}

// RegisterRoutes registers usage routes. All routes require an
// authenticated caller.
func (h *UsageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	usage := rg.Group("/usage")
	{
		usage.GET("", h.GetUsageSummary)
		usage.GET("/:key", h.CheckQuota)
		usage.POST("/:key/commit", h.CommitUsage)
	}
}

// GetUsageSummary returns the caller's usage across all quota keys for the
// current billing period.
func (h *UsageHandler) GetUsageSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	summary, err := h.quotaService.GetUsageSummary(c.Request.Context(), userID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summary)
}

// CheckQuota evaluates whether one more unit of the keyed operation is
// within the caller's quota. The check is advisory and reserves nothing.
func (h *UsageHandler) CheckQuota(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	key, projectID, ok := h.parseQuotaParams(c)
	if !ok {
		return
	}

	result, err := h.quotaService.Check(c.Request.Context(), userID, projectID, key)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// CommitUsage durably records one unit of usage for the keyed operation and
// returns the post-commit state. Commits are accepted even past the limit;
// the operation already happened and must be counted.
func (h *UsageHandler) CommitUsage(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	key, projectID, ok := h.parseQuotaParams(c)
	if !ok {
		return
	}

	result, err := h.quotaService.Commit(c.Request.Context(), userID, projectID, key)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// parseQuotaParams extracts the quota key path parameter and the optional
// project_id query parameter. Writes the error response itself when invalid.
func (h *UsageHandler) parseQuotaParams(c *gin.Context) (billing.QuotaKey, uuid.UUID, bool) {
	key := billing.QuotaKey(c.Param("key"))
	if !key.IsValid() {
		h.ValidationError(c, []dto.ValidationDetail{
			{Field: "key", Message: "must be one of: generate, publish"},
		})
		return "", uuid.Nil, false
	}

	projectID := uuid.Nil
	if raw := c.Query("project_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			h.ValidationError(c, []dto.ValidationDetail{
				{Field: "project_id", Message: "must be a UUID"},
			})
			return "", uuid.Nil, false
		}
		projectID = parsed
	}

	return key, projectID, true
}

// ensure the application service satisfies the handler contract
var _ QuotaService = (*appbilling.QuotaService)(nil)
