package billing

import (
	"time"

	"github.com/google/uuid"
)

// CreateCustomerInput contains input for creating a Stripe customer
type CreateCustomerInput struct {
	UserID   uuid.UUID
	Email    string
	Name     string
	Metadata map[string]string
}

// CreateCustomerOutput contains the created Stripe customer
type CreateCustomerOutput struct {
	CustomerID string
	Email      string
	Name       string
	CreatedAt  time.Time
}

// CreateCheckoutSessionInput contains input for starting a subscription checkout
type CreateCheckoutSessionInput struct {
	// UserID is carried as the session's client reference so the completed
	// webhook can be attributed to a local user.
	UserID     uuid.UUID
	CustomerID string
	PriceID    string
	PlanName   string
}

// CreateCheckoutSessionOutput contains the created checkout session
type CreateCheckoutSessionOutput struct {
	SessionID string
	URL       string
}

// BillingPortalSessionOutput contains the created billing portal session
type BillingPortalSessionOutput struct {
	URL string
}

// SubscriptionInfo is a provider-neutral view of a Stripe subscription
type SubscriptionInfo struct {
	SubscriptionID    string
	CustomerID        string
	Status            string
	PriceID           string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
}
