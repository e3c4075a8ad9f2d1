package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/sitekit/backend/internal/domain/shared"
)

// SubscriptionStatus mirrors the provider's subscription lifecycle states
type SubscriptionStatus string

const (
	SubscriptionStatusNone              SubscriptionStatus = "none"
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
)

// String returns the string representation of the status
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsActiveEquivalent returns true when the status entitles the user to their
// paid plan. Trialing counts: trials get full plan access.
func (s SubscriptionStatus) IsActiveEquivalent() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// CustomerBillingProfile is the per-user billing aggregate. It converges from
// asynchronous provider events and is only ever mutated through null-safe
// patch merges, so an event that does not carry a field can never erase it.
type CustomerBillingProfile struct {
	shared.BaseAggregateRoot
	UserID               uuid.UUID
	Plan                 Plan
	SubscriptionStatus   SubscriptionStatus
	StripeCustomerID     *string
	StripeSubscriptionID *string
	StripePriceID        *string
	CurrentPeriodEnd     *time.Time
	// LastEventID is the provider event ID of the last patch applied. It is
	// written in the same statement as the patch and doubles as the
	// authoritative idempotency marker.
	LastEventID string
}

// NewCustomerBillingProfile creates the default profile for a user who has
// never interacted with the payment provider.
func NewCustomerBillingProfile(userID uuid.UUID) *CustomerBillingProfile {
	return &CustomerBillingProfile{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		UserID:             userID,
		Plan:               PlanFree,
		SubscriptionStatus: SubscriptionStatusNone,
	}
}

// EffectivePlan returns the plan quota decisions run under. The stored plan
/// is authoritative: a failed charge parks the status at past_due while paid
// access continues, and the downgrade arrives later as an explicit plan
// patch from the provider's dunning flow (a definitive subscription update
// or deletion).
func (p *CustomerBillingProfile) EffectivePlan() Plan {
	return p.Plan
}

// HasStripeCustomer reports whether a provider customer has been linked
func (p *CustomerBillingProfile) HasStripeCustomer() bool {
	return p.StripeCustomerID != nil && *p.StripeCustomerID != ""
}

// ProfilePatch is a null-safe partial update to a CustomerBillingProfile.
// Only fields the source event positively determined are non-nil; nil fields
// are left untouched by Apply. ClearSubscription is the single explicit
// erase signal, set only by the subscription-deleted handler.
type ProfilePatch struct {
	Plan                 *Plan
	SubscriptionStatus   *SubscriptionStatus
	StripeCustomerID     *string
	StripeSubscriptionID *string
	StripePriceID        *string
	CurrentPeriodEnd     *time.Time

	// ClearSubscription nulls the subscription linkage fields
	// (StripeSubscriptionID, StripePriceID, CurrentPeriodEnd). It never
	// touches StripeCustomerID: the customer link outlives any subscription.
	ClearSubscription bool
}

// IsEmpty reports whether the patch would change nothing
func (p ProfilePatch) IsEmpty() bool {
	return p.Plan == nil &&
		p.SubscriptionStatus == nil &&
		p.StripeCustomerID == nil &&
		p.StripeSubscriptionID == nil &&
		p.StripePriceID == nil &&
		p.CurrentPeriodEnd == nil &&
		!p.ClearSubscription
}

// Apply merges the patch into the profile in memory. The persistence layer
// performs the same merge as a single conditional UPDATE; this method exists
// for the in-memory aggregate and for tests of the merge semantics.
func (profile *CustomerBillingProfile) Apply(patch ProfilePatch) {
	if patch.Plan != nil {
		profile.Plan = *patch.Plan
	}
	if patch.SubscriptionStatus != nil {
		profile.SubscriptionStatus = *patch.SubscriptionStatus
	}
	if patch.StripeCustomerID != nil && !profile.HasStripeCustomer() {
		// First writer wins: a linked customer ID is never overwritten.
		id := *patch.StripeCustomerID
		profile.StripeCustomerID = &id
	}
	if patch.StripeSubscriptionID != nil {
		id := *patch.StripeSubscriptionID
		profile.StripeSubscriptionID = &id
	}
	if patch.StripePriceID != nil {
		id := *patch.StripePriceID
		profile.StripePriceID = &id
	}
	if patch.CurrentPeriodEnd != nil {
		end := *patch.CurrentPeriodEnd
		profile.CurrentPeriodEnd = &end
	}
	if patch.ClearSubscription {
		profile.StripeSubscriptionID = nil
		profile.StripePriceID = nil
		profile.CurrentPeriodEnd = nil
	}
}
