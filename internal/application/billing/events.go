package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/sitekit/backend/internal/domain/billing"
	"github.com/sitekit/backend/internal/domain/shared"
)

// Event type constants for billing domain events
const (
	EventTypeProfileReconciled   = "BillingProfileReconciled"
	EventTypeSubscriptionDeleted = "BillingSubscriptionDeleted"
	EventTypeQuotaExceeded       = "UsageQuotaExceeded"
	EventTypeUsageCommitted      = "UsageCommitted"
)

// Aggregate type constants
const (
	AggregateTypeBillingProfile = "CustomerBillingProfile"
	AggregateTypeUsageCounter   = "UsageCounter"
)

// ProfileReconciledEvent is published after a provider event patched a profile
type ProfileReconciledEvent struct {
	shared.BaseDomainEvent
	UserID        uuid.UUID `json:"user_id"`
	StripeEventID string    `json:"stripe_event_id"`
	StripeType    string    `json:"stripe_type"`
	Plan          string    `json:"plan"`
}

// NewProfileReconciledEvent creates a ProfileReconciledEvent
func NewProfileReconciledEvent(userID uuid.UUID, stripeEventID, stripeType string, plan billing.Plan) *ProfileReconciledEvent {
	return &ProfileReconciledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProfileReconciled, AggregateTypeBillingProfile, userID),
		UserID:          userID,
		StripeEventID:   stripeEventID,
		StripeType:      stripeType,
		Plan:            plan.String(),
	}
}

// SubscriptionDeletedEvent is published when a subscription deletion downgraded a user
type SubscriptionDeletedEvent struct {
	shared.BaseDomainEvent
	UserID         uuid.UUID `json:"user_id"`
	SubscriptionID string    `json:"subscription_id"`
}

// NewSubscriptionDeletedEvent creates a SubscriptionDeletedEvent
func NewSubscriptionDeletedEvent(userID uuid.UUID, subscriptionID string) *SubscriptionDeletedEvent {
	return &SubscriptionDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSubscriptionDeleted, AggregateTypeBillingProfile, userID),
		UserID:          userID,
		SubscriptionID:  subscriptionID,
	}
}

// QuotaExceededEvent is published when a quota check rejects an operation
type QuotaExceededEvent struct {
	shared.BaseDomainEvent
	UserID   uuid.UUID `json:"user_id"`
	QuotaKey string    `json:"quota_key"`
	Used     int64     `json:"used"`
	Limit    int64     `json:"limit"`
}

// NewQuotaExceededEvent creates a QuotaExceededEvent
func NewQuotaExceededEvent(userID uuid.UUID, key billing.QuotaKey, used, limit int64) *QuotaExceededEvent {
	return &QuotaExceededEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeQuotaExceeded, AggregateTypeUsageCounter, userID),
		UserID:          userID,
		QuotaKey:        key.String(),
		Used:            used,
		Limit:           limit,
	}
}

// UsageCommittedEvent is published after one unit of usage was durably counted
type UsageCommittedEvent struct {
	shared.BaseDomainEvent
	UserID    uuid.UUID `json:"user_id"`
	ProjectID uuid.UUID `json:"project_id"`
	QuotaKey  string    `json:"quota_key"`
	Used      int64     `json:"used"`
	PeriodEnd time.Time `json:"period_end"`
}

// NewUsageCommittedEvent creates a UsageCommittedEvent
func NewUsageCommittedEvent(userID, projectID uuid.UUID, key billing.QuotaKey, used int64, periodEnd time.Time) *UsageCommittedEvent {
	return &UsageCommittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeUsageCommitted, AggregateTypeUsageCounter, userID),
		UserID:          userID,
		ProjectID:       projectID,
		QuotaKey:        key.String(),
		Used:            used,
		PeriodEnd:       periodEnd,
	}
}
