package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string                            { return &s }
func planPtr(p Plan) *Plan                               { return &p }
func statusPtr(s SubscriptionStatus) *SubscriptionStatus { return &s }
func timePtr(t time.Time) *time.Time                     { return &t }

func TestNewCustomerBillingProfile_Defaults(t *testing.T) {
	userID := uuid.New()

	profile := NewCustomerBillingProfile(userID)

	assert.Equal(t, userID, profile.UserID)
	assert.Equal(t, PlanFree, profile.Plan)
	assert.Equal(t, SubscriptionStatusNone, profile.SubscriptionStatus)
	assert.Nil(t, profile.StripeCustomerID)
	assert.Nil(t, profile.StripeSubscriptionID)
	assert.Nil(t, profile.CurrentPeriodEnd)
	assert.Empty(t, profile.LastEventID)
}

func TestProfileApply_NilFieldsLeaveStateUntouched(t *testing.T) {
	profile := NewCustomerBillingProfile(uuid.New())
	periodEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	profile.Plan = PlanPro
	profile.SubscriptionStatus = SubscriptionStatusActive
	profile.StripeCustomerID = strPtr("cus_123")
	profile.StripeSubscriptionID = strPtr("sub_123")
	profile.StripePriceID = strPtr("price_pro_monthly")
	profile.CurrentPeriodEnd = &periodEnd

	// A patch carrying only a status change must not erase anything else.
	profile.Apply(ProfilePatch{SubscriptionStatus: statusPtr(SubscriptionStatusPastDue)})

	assert.Equal(t, SubscriptionStatusPastDue, profile.SubscriptionStatus)
	assert.Equal(t, PlanPro, profile.Plan)
	assert.Equal(t, "cus_123", *profile.StripeCustomerID)
	assert.Equal(t, "sub_123", *profile.StripeSubscriptionID)
	assert.Equal(t, "price_pro_monthly", *profile.StripePriceID)
	assert.True(t, profile.CurrentPeriodEnd.Equal(periodEnd))
}

func TestProfileApply_StripeCustomerIDIsFirstWriteSticky(t *testing.T) {
	profile := NewCustomerBillingProfile(uuid.New())

	profile.Apply(ProfilePatch{StripeCustomerID: strPtr("cus_original")})
	profile.Apply(ProfilePatch{StripeCustomerID: strPtr("cus_other")})

	assert.Equal(t, "cus_original", *profile.StripeCustomerID)
}

func TestProfileApply_ClearSubscriptionNullsLinkageOnly(t *testing.T) {
	profile := NewCustomerBillingProfile(uuid.New())
	periodEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	profile.Plan = PlanBasic
	profile.StripeCustomerID = strPtr("cus_123")
	profile.StripeSubscriptionID = strPtr("sub_123")
	profile.StripePriceID = strPtr("price_basic_monthly")
	profile.CurrentPeriodEnd = &periodEnd

	profile.Apply(ProfilePatch{
		Plan:               planPtr(PlanFree),
		SubscriptionStatus: statusPtr(SubscriptionStatusCanceled),
		ClearSubscription:  true,
	})

	assert.Nil(t, profile.StripeSubscriptionID)
	assert.Nil(t, profile.StripePriceID)
	assert.Nil(t, profile.CurrentPeriodEnd)
	// The customer link survives subscription deletion.
	assert.Equal(t, "cus_123", *profile.StripeCustomerID)
	assert.Equal(t, PlanFree, profile.Plan)
	assert.Equal(t, SubscriptionStatusCanceled, profile.SubscriptionStatus)
}

func TestProfileApply_FullUpgradePatch(t *testing.T) {
	profile := NewCustomerBillingProfile(uuid.New())
	periodEnd := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	profile.Apply(ProfilePatch{
		Plan:                 planPtr(PlanPro),
		SubscriptionStatus:   statusPtr(SubscriptionStatusActive),
		StripeCustomerID:     strPtr("cus_new"),
		StripeSubscriptionID: strPtr("sub_new"),
		StripePriceID:        strPtr("price_pro_monthly"),
		CurrentPeriodEnd:     timePtr(periodEnd),
	})

	assert.Equal(t, PlanPro, profile.Plan)
	assert.Equal(t, SubscriptionStatusActive, profile.SubscriptionStatus)
	assert.Equal(t, "cus_new", *profile.StripeCustomerID)
	assert.Equal(t, "sub_new", *profile.StripeSubscriptionID)
	assert.True(t, profile.CurrentPeriodEnd.Equal(periodEnd))
}

func TestProfilePatch_IsEmpty(t *testing.T) {
	assert.True(t, ProfilePatch{}.IsEmpty())
	assert.False(t, ProfilePatch{Plan: planPtr(PlanPro)}.IsEmpty())
	assert.False(t, ProfilePatch{ClearSubscription: true}.IsEmpty())
}

func TestEffectivePlan_StoredPlanIsAuthoritative(t *testing.T) {
	profile := NewCustomerBillingProfile(uuid.New())
	profile.Plan = PlanPro
	profile.SubscriptionStatus = SubscriptionStatusActive
	assert.Equal(t, PlanPro, profile.EffectivePlan())

	// A failed charge marks the subscription past_due but does not revoke
	// paid access; the customer keeps their plan through the grace window.
	profile.Apply(ProfilePatch{SubscriptionStatus: statusPtr(SubscriptionStatusPastDue)})
	assert.Equal(t, PlanPro, profile.EffectivePlan())

	// The downgrade only lands when the provider gives up on the charge and
	// emits a definitive subscription update.
	profile.Apply(ProfilePatch{
		Plan:               planPtr(PlanFree),
		SubscriptionStatus: statusPtr(SubscriptionStatusUnpaid),
	})
	assert.Equal(t, PlanFree, profile.EffectivePlan())
}

func TestSubscriptionStatus_IsActiveEquivalent(t *testing.T) {
	assert.True(t, SubscriptionStatusActive.IsActiveEquivalent())
	assert.True(t, SubscriptionStatusTrialing.IsActiveEquivalent())
	assert.False(t, SubscriptionStatusPastDue.IsActiveEquivalent())
	assert.False(t, SubscriptionStatusCanceled.IsActiveEquivalent())
	assert.False(t, SubscriptionStatusNone.IsActiveEquivalent())
	assert.False(t, SubscriptionStatusIncomplete.IsActiveEquivalent())
}
