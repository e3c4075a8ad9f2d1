package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitekit/backend/internal/domain/billing"
	"github.com/sitekit/backend/internal/domain/shared"
	"github.com/sitekit/backend/internal/infrastructure/persistence"
)

func TestBillingProfileRepository_Reconcile(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	repo := persistence.NewGormBillingProfileRepository(tdb.DB)
	ctx := context.Background()

	planPro := billing.PlanPro
	statusActive := billing.SubscriptionStatusActive

	t.Run("creates default profile and applies patch", func(t *testing.T) {
		tdb.CleanTables()
		userID := uuid.New()
		customerID := "cus_123"

		result, err := repo.ReconcileOrCreate(ctx, userID, "evt_1", billing.ProfilePatch{
			Plan:               &planPro,
			SubscriptionStatus: &statusActive,
			StripeCustomerID:   &customerID,
		})
		require.NoError(t, err)
		assert.True(t, result.Applied)
		assert.Equal(t, billing.PlanPro, result.Profile.Plan)
		assert.Equal(t, "evt_1", result.Profile.LastEventID)

		found, err := repo.FindByUserID(ctx, userID)
		require.NoError(t, err)
		require.NotNil(t, found.StripeCustomerID)
		assert.Equal(t, customerID, *found.StripeCustomerID)
	})

	t.Run("replayed event ID is skipped", func(t *testing.T) {
		tdb.CleanTables()
		userID := uuid.New()

		_, err := repo.ReconcileOrCreate(ctx, userID, "evt_dup", billing.ProfilePatch{
			Plan:               &planPro,
			SubscriptionStatus: &statusActive,
		})
		require.NoError(t, err)

		planBasic := billing.PlanBasic
		result, err := repo.Reconcile(ctx, userID, "evt_dup", billing.ProfilePatch{
			Plan: &planBasic,
		})
		require.NoError(t, err)
		assert.False(t, result.Applied)
		assert.Equal(t, billing.PlanPro, result.Profile.Plan, "replay must not overwrite state")
	})

	t.Run("nil patch fields leave columns untouched", func(t *testing.T) {
		tdb.CleanTables()
		userID := uuid.New()
		customerID := "cus_keep"
		subscriptionID := "sub_keep"

		_, err := repo.ReconcileOrCreate(ctx, userID, "evt_a", billing.ProfilePatch{
			Plan:                 &planPro,
			SubscriptionStatus:   &statusActive,
			StripeCustomerID:     &customerID,
			StripeSubscriptionID: &subscriptionID,
		})
		require.NoError(t, err)

		// An invoice-style event carries only a period end.
		periodEnd := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
		result, err := repo.Reconcile(ctx, userID, "evt_b", billing.ProfilePatch{
			CurrentPeriodEnd: &periodEnd,
		})
		require.NoError(t, err)
		assert.True(t, result.Applied)
		assert.Equal(t, billing.PlanPro, result.Profile.Plan)
		require.NotNil(t, result.Profile.StripeCustomerID)
		assert.Equal(t, customerID, *result.Profile.StripeCustomerID)
		require.NotNil(t, result.Profile.CurrentPeriodEnd)
		assert.True(t, periodEnd.Equal(*result.Profile.CurrentPeriodEnd))
	})

	t.Run("clear subscription keeps the customer link", func(t *testing.T) {
		tdb.CleanTables()
		userID := uuid.New()
		customerID := "cus_survivor"
		subscriptionID := "sub_gone"

		_, err := repo.ReconcileOrCreate(ctx, userID, "evt_create", billing.ProfilePatch{
			Plan:                 &planPro,
			SubscriptionStatus:   &statusActive,
			StripeCustomerID:     &customerID,
			StripeSubscriptionID: &subscriptionID,
		})
		require.NoError(t, err)

		planFree := billing.PlanFree
		statusCanceled := billing.SubscriptionStatusCanceled
		result, err := repo.Reconcile(ctx, userID, "evt_delete", billing.ProfilePatch{
			Plan:               &planFree,
			SubscriptionStatus: &statusCanceled,
			ClearSubscription:  true,
		})
		require.NoError(t, err)
		assert.True(t, result.Applied)
		assert.Nil(t, result.Profile.StripeSubscriptionID)
		assert.Nil(t, result.Profile.CurrentPeriodEnd)
		require.NotNil(t, result.Profile.StripeCustomerID)
		assert.Equal(t, customerID, *result.Profile.StripeCustomerID)
	})

	t.Run("reconcile without profile returns not found", func(t *testing.T) {
		tdb.CleanTables()
		_, err := repo.Reconcile(ctx, uuid.New(), "evt_x", billing.ProfilePatch{Plan: &planPro})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("lookup by provider identifiers", func(t *testing.T) {
		tdb.CleanTables()
		userID := uuid.New()
		customerID := "cus_lookup"
		subscriptionID := "sub_lookup"

		_, err := repo.ReconcileOrCreate(ctx, userID, "evt_l", billing.ProfilePatch{
			StripeCustomerID:     &customerID,
			StripeSubscriptionID: &subscriptionID,
		})
		require.NoError(t, err)

		byCustomer, err := repo.FindByStripeCustomerID(ctx, customerID)
		require.NoError(t, err)
		assert.Equal(t, userID, byCustomer.UserID)

		bySubscription, err := repo.FindByStripeSubscriptionID(ctx, subscriptionID)
		require.NoError(t, err)
		assert.Equal(t, userID, bySubscription.UserID)
	})
}
