package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReconcileResult reports the outcome of a conditional profile patch
type ReconcileResult struct {
	// Applied is false when the event ID was already recorded on the profile
	// and the patch was skipped.
	Applied bool
	// Profile is the post-reconcile state of the aggregate.
	Profile *CustomerBillingProfile
}

// ProfileRepository persists CustomerBillingProfile aggregates.
//
// Reconcile and ReconcileOrCreate are the only write paths: the profile is
// never saved wholesale, so concurrent webhook deliveries can only interleave
// at patch granularity.
type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*CustomerBillingProfile, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*CustomerBillingProfile, error)
	FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*CustomerBillingProfile, error)

	// Reconcile applies the patch to the user's existing profile in a single
	// conditional update that also records eventID as the last applied event.
	// When eventID matches the profile's current marker the patch is skipped
	// and Applied is false. Returns shared.ErrNotFound when no profile exists.
	Reconcile(ctx context.Context, userID uuid.UUID, eventID string, patch ProfilePatch) (*ReconcileResult, error)

	// ReconcileOrCreate behaves like Reconcile but inserts a default free
	// profile first when the user has none yet.
	ReconcileOrCreate(ctx context.Context, userID uuid.UUID, eventID string, patch ProfilePatch) (*ReconcileResult, error)
}

// UsageCounterRepository persists usage counters.
type UsageCounterRepository interface {
	// GetCount returns the current count for a counter key, zero when no row
	// exists yet.
	GetCount(ctx context.Context, key CounterKey) (int64, error)

	// Increment atomically adds one to the counter, creating the row at one
	// when absent, and returns the post-increment count. Concurrent calls
	// must never lose an increment.
	Increment(ctx context.Context, key CounterKey) (int64, error)

	// FindByUserAndPeriod returns all counters for a user in the given
	// period, for usage summaries.
	FindByUserAndPeriod(ctx context.Context, userID uuid.UUID, periodEnd time.Time) ([]*UsageCounter, error)
}
