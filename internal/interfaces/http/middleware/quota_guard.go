package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitekit/backend/internal/domain/billing"
	"github.com/sitekit/backend/internal/interfaces/http/dto"
)

// QuotaEnforcer evaluates and records usage of metered operations.
type QuotaEnforcer interface {
	Check(ctx context.Context, userID, projectID uuid.UUID, key billing.QuotaKey) (*billing.QuotaCheckResult, error)
	Commit(ctx context.Context, userID, projectID uuid.UUID, key billing.QuotaKey) (*billing.QuotaCheckResult, error)
}

// QuotaGuardResultKey is the gin context key where a guarded handler places
// its response payload. The guard writes the response itself after the
// commit, so the handler must not write one.
const QuotaGuardResultKey = "quota_guard_result"

// QuotaGuardedResponse is the envelope the guard returns for feature routes
type QuotaGuardedResponse struct {
	Result interface{}               `json:"result,omitempty"`
	Usage  *billing.QuotaCheckResult `json:"usage"`
}

// QuotaGuard enforces the check, act, commit contract on a feature route.
//
// Before the handler it runs an advisory quota check and rejects exhausted
// callers with 429. After a successful handler it commits one unit of usage
// and only then writes the response; a failed commit fails the request,
// because usage that was served but not durably counted must not succeed.
//
// The guarded handler stores its payload under QuotaGuardResultKey instead
// of writing to the response. Handlers that abort or write their own error
// response skip the commit entirely.
//
// Project scope is taken from the :project_id path parameter when the route
// has one, uuid.Nil otherwise.
func QuotaGuard(enforcer QuotaEnforcer, key billing.QuotaKey, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDStr := GetUserID(c)
		if userIDStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(
				dto.ErrCodeUnauthorized,
				"Authentication required",
			))
			return
		}

		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
				dto.ErrCodeValidationFormat,
				"Invalid user ID",
			))
			return
		}

		projectID := uuid.Nil
		if raw := c.Param("project_id"); raw != "" {
			projectID, err = uuid.Parse(raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
					dto.ErrCodeValidationFormat,
					"Invalid project ID",
				))
				return
			}
		}

		check, err := enforcer.Check(c.Request.Context(), userID, projectID, key)
		if err != nil {
			logger.Error("Quota check failed",
				zap.String("user_id", userIDStr),
				zap.String("quota_key", key.String()),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(
				dto.ErrCodeInternal,
				"Failed to evaluate quota",
			))
			return
		}

		if !check.Allowed {
			c.Header("X-Quota-Limit", strconv.FormatInt(check.Limit, 10))
			c.Header("X-Quota-Used", strconv.FormatInt(check.Used, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse(
				dto.ErrCodeQuotaExceeded,
				"Usage quota exceeded for the current billing period",
			))
			return
		}

		c.Next()

		// The handler failed or wrote its own response; nothing was served,
		// so there is nothing to count.
		if c.IsAborted() || c.Writer.Written() {
			return
		}

		usage, err := enforcer.Commit(c.Request.Context(), userID, projectID, key)
		if err != nil {
			logger.Error("Usage commit failed, failing guarded request",
				zap.String("user_id", userIDStr),
				zap.String("quota_key", key.String()),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(
				dto.ErrCodeUsageCommitFailed,
				"Operation completed but usage could not be recorded",
			))
			return
		}

		payload, _ := c.Get(QuotaGuardResultKey)
		c.JSON(http.StatusOK, dto.NewSuccessResponse(QuotaGuardedResponse{
			Result: payload,
			Usage:  usage,
		}))
	}
}
