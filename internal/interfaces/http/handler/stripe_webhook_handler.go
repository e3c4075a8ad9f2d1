package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appbilling "github.com/sitekit/backend/internal/application/billing"
	"github.com/sitekit/backend/internal/infrastructure/telemetry"
)

// Maximum webhook payload size (64KB - Stripe webhooks are typically small)
const maxWebhookPayloadSize = 65536

// WebhookProcessor verifies and applies a Stripe webhook delivery.
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, payload []byte, signature string) (*appbilling.WebhookResult, error)
}

// StripeWebhookHandler handles Stripe webhook endpoints.
// These endpoints are called by Stripe and do not require authentication.
type StripeWebhookHandler struct {
	BaseHandler
	reconciler WebhookProcessor
	metrics    *telemetry.BillingMetrics
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler. Metrics may be
// nil to disable instrumentation.
func NewStripeWebhookHandler(reconciler WebhookProcessor, metrics *telemetry.BillingMetrics) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		reconciler: reconciler,
		metrics:    metrics,
	}
}

// StripeWebhookResponse represents the response for a Stripe webhook delivery
type StripeWebhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Message   string `json:"message,omitempty"`
}

// RegisterRoutes registers webhook routes
func (h *StripeWebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook receives and processes subscription lifecycle events
// from Stripe.
func (h *StripeWebhookHandler) HandleStripeWebhook(c *gin.Context) {
	start := time.Now()

	// Stripe requires the raw body for signature verification; read it with
	// a size cap to prevent oversized payloads tying up the handler.
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, StripeWebhookResponse{
			Received: false,
			Message:  "Failed to read request body",
		})
		return
	}

	if len(payload) > maxWebhookPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, StripeWebhookResponse{
			Received: false,
			Message:  "Payload too large",
		})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusUnauthorized, StripeWebhookResponse{
			Received: false,
			Message:  "Missing Stripe-Signature header",
		})
		return
	}

	result, err := h.reconciler.ProcessWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		// A nil result means signature verification failed
		if result == nil {
			h.recordWebhook(c, "unknown", "signature_failed", start)
			c.JSON(http.StatusUnauthorized, StripeWebhookResponse{
				Received: false,
				Message:  "Webhook signature verification failed",
			})
			return
		}

		// The reconciler only errors on transient store failures; a 500 makes
		// Stripe redeliver, which the idempotency guard makes safe. Internal
		// details are not exposed in the response.
		h.recordWebhook(c, result.EventType, "failed", start)
		c.JSON(http.StatusInternalServerError, StripeWebhookResponse{
			Received:  false,
			EventID:   result.EventID,
			EventType: result.EventType,
			Message:   "Webhook received but processing failed; delivery will be retried",
		})
		return
	}

	h.recordWebhook(c, result.EventType, "processed", start)
	c.JSON(http.StatusOK, StripeWebhookResponse{
		Received:  true,
		EventID:   result.EventID,
		EventType: result.EventType,
		Message:   result.Message,
	})
}

func (h *StripeWebhookHandler) recordWebhook(c *gin.Context, eventType, outcome string, start time.Time) {
	if h.metrics == nil {
		return
	}
	ctx := c.Request.Context()
	h.metrics.RecordWebhookEvent(ctx, eventType, outcome)
	h.metrics.RecordWebhookDuration(ctx, time.Since(start).Seconds(), eventType)
}
