package event

import (
	"context"

	"go.uber.org/zap"

	appbilling "github.com/sitekit/backend/internal/application/billing"
	"github.com/sitekit/backend/internal/domain/shared"
)

// BillingAuditHandler writes an audit log line for every billing event.
// Subscription state changes and quota rejections are the events support
// looks up first when a customer disputes a charge or a limit.
type BillingAuditHandler struct {
	logger *zap.Logger
}

// NewBillingAuditHandler creates a BillingAuditHandler
func NewBillingAuditHandler(logger *zap.Logger) *BillingAuditHandler {
	return &BillingAuditHandler{logger: logger.Named("billing_audit")}
}

// EventTypes returns the billing event types this handler audits
func (h *BillingAuditHandler) EventTypes() []string {
	return []string{
		appbilling.EventTypeProfileReconciled,
		appbilling.EventTypeSubscriptionDeleted,
		appbilling.EventTypeQuotaExceeded,
		appbilling.EventTypeUsageCommitted,
	}
}

// Handle logs the event with its aggregate reference
func (h *BillingAuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *appbilling.ProfileReconciledEvent:
		fields = append(fields,
			zap.String("stripe_event_id", e.StripeEventID),
			zap.String("stripe_type", e.StripeType),
			zap.String("plan", e.Plan),
		)
	case *appbilling.SubscriptionDeletedEvent:
		fields = append(fields, zap.String("subscription_id", e.SubscriptionID))
	case *appbilling.QuotaExceededEvent:
		fields = append(fields,
			zap.String("quota_key", e.QuotaKey),
			zap.Int64("used", e.Used),
			zap.Int64("limit", e.Limit),
		)
	case *appbilling.UsageCommittedEvent:
		fields = append(fields,
			zap.String("quota_key", e.QuotaKey),
			zap.Int64("used", e.Used),
			zap.Time("period_end", e.PeriodEnd),
		)
	}

	h.logger.Info(event.EventType(), fields...)
	return nil
}

// Ensure BillingAuditHandler implements EventHandler
var _ shared.EventHandler = (*BillingAuditHandler)(nil)
