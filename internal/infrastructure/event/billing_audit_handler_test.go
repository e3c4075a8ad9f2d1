package event

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	appbilling "github.com/sitekit/backend/internal/application/billing"
	"github.com/sitekit/backend/internal/domain/billing"
)

func TestBillingAuditHandler(t *testing.T) {
	t.Run("subscribes to all billing event types", func(t *testing.T) {
		handler := NewBillingAuditHandler(zap.NewNop())

		assert.ElementsMatch(t, []string{
			appbilling.EventTypeProfileReconciled,
			appbilling.EventTypeSubscriptionDeleted,
			appbilling.EventTypeQuotaExceeded,
			appbilling.EventTypeUsageCommitted,
		}, handler.EventTypes())
	})

	t.Run("logs quota exceeded with usage detail", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		handler := NewBillingAuditHandler(zap.New(core))

		userID := uuid.New()
		err := handler.Handle(context.Background(), appbilling.NewQuotaExceededEvent(userID, billing.QuotaKeyGenerate, 3, 3))

		assert.NoError(t, err)
		entries := logs.All()
		assert.Len(t, entries, 1)
		assert.Equal(t, appbilling.EventTypeQuotaExceeded, entries[0].Message)
		fields := entries[0].ContextMap()
		assert.Equal(t, "generate", fields["quota_key"])
		assert.Equal(t, int64(3), fields["used"])
		assert.Equal(t, userID.String(), fields["aggregate_id"])
	})

	t.Run("logs profile reconciliation with stripe reference", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		handler := NewBillingAuditHandler(zap.New(core))

		event := appbilling.NewProfileReconciledEvent(uuid.New(), "evt_9", "customer.subscription.updated", billing.PlanPro)
		err := handler.Handle(context.Background(), event)

		assert.NoError(t, err)
		entries := logs.All()
		assert.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, "evt_9", fields["stripe_event_id"])
		assert.Equal(t, "pro", fields["plan"])
	})
}
