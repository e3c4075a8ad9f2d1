package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appbilling "github.com/sitekit/backend/internal/application/billing"
	"github.com/sitekit/backend/internal/interfaces/http/dto"
)

// AccountService exposes caller-initiated billing operations to the API layer.
type AccountService interface {
	StartCheckout(ctx context.Context, userID uuid.UUID, planName, email string) (*appbilling.CheckoutSessionDTO, error)
	OpenBillingPortal(ctx context.Context, userID uuid.UUID) (*appbilling.PortalSessionDTO, error)
	GetSubscription(ctx context.Context, userID uuid.UUID) (*appbilling.SubscriptionDTO, error)
	CancelSubscription(ctx context.Context, userID uuid.UUID) (*appbilling.SubscriptionDTO, error)
}

// BillingHandler handles checkout and subscription management endpoints
type BillingHandler struct {
	BaseHandler
	accounts AccountService
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(accounts AccountService) *BillingHandler {
	return &BillingHandler{accounts: accounts}
}

// RegisterRoutes registers billing routes. All routes require an
// authenticated caller.
func (h *BillingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	billing := rg.Group("/billing")
	{
		billing.POST("/checkout", h.StartCheckout)
		billing.POST("/portal", h.OpenBillingPortal)
		billing.GET("/subscription", h.GetSubscription)
		billing.DELETE("/subscription", h.CancelSubscription)
	}
}

// StartCheckoutRequest is the request body for starting a checkout
type StartCheckoutRequest struct {
	Plan  string `json:"plan" binding:"required"`
	Email string `json:"email" binding:"omitempty,email"`
}

// StartCheckout creates a provider checkout session for a paid plan and
// returns the URL the caller redirects to.
func (h *BillingHandler) StartCheckout(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req StartCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, []dto.ValidationDetail{
			{Field: "plan", Message: "plan is required; email must be a valid address when given"},
		})
		return
	}

	session, err := h.accounts.StartCheckout(c.Request.Context(), userID, req.Plan, req.Email)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, session)
}

// OpenBillingPortal creates a self-serve billing portal session for the
// caller's provider customer.
func (h *BillingHandler) OpenBillingPortal(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	session, err := h.accounts.OpenBillingPortal(c.Request.Context(), userID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, session)
}

// GetSubscription returns the live provider view of the caller's subscription.
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	subscription, err := h.accounts.GetSubscription(c.Request.Context(), userID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, subscription)
}

// CancelSubscription schedules the caller's subscription to cancel at period
// end. Entitlement stays until the provider's events reconcile the downgrade.
func (h *BillingHandler) CancelSubscription(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	subscription, err := h.accounts.CancelSubscription(c.Request.Context(), userID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, subscription)
}

// ensure the application service satisfies the handler contract
var _ AccountService = (*appbilling.BillingAccountService)(nil)
