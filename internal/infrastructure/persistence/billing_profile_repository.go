package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sitekit/backend/internal/domain/billing"
	"github.com/sitekit/backend/internal/domain/shared"
	"github.com/sitekit/backend/internal/infrastructure/persistence/models"
)

// GormBillingProfileRepository implements billing.ProfileRepository using GORM
type GormBillingProfileRepository struct {
	db *gorm.DB
}

// NewGormBillingProfileRepository creates a new GormBillingProfileRepository
func NewGormBillingProfileRepository(db *gorm.DB) *GormBillingProfileRepository {
	return &GormBillingProfileRepository{db: db}
}

// FindByUserID finds a billing profile by user ID
func (r *GormBillingProfileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*billing.CustomerBillingProfile, error) {
	var model models.BillingProfileModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStripeCustomerID finds a billing profile by Stripe customer ID
func (r *GormBillingProfileRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*billing.CustomerBillingProfile, error) {
	if customerID == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER_ID", "Stripe customer ID cannot be empty")
	}
	var model models.BillingProfileModel
	if err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", customerID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStripeSubscriptionID finds a billing profile by Stripe subscription ID
func (r *GormBillingProfileRepository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*billing.CustomerBillingProfile, error) {
	if subscriptionID == "" {
		return nil, shared.NewDomainError("INVALID_SUBSCRIPTION_ID", "Stripe subscription ID cannot be empty")
	}
	var model models.BillingProfileModel
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", subscriptionID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Reconcile applies a patch to the user's profile in one conditional UPDATE.
//
// The statement writes the event ID into last_event_id alongside the patched
// columns, guarded by `last_event_id <> ?`. A replayed delivery therefore
// matches zero rows: the patch and its dedupe marker commit or skip as a
// unit, which is what makes the marker authoritative.
func (r *GormBillingProfileRepository) Reconcile(ctx context.Context, userID uuid.UUID, eventID string, patch billing.ProfilePatch) (*billing.ReconcileResult, error) {
	if eventID == "" {
		return nil, shared.NewDomainError("INVALID_EVENT_ID", "Event ID cannot be empty")
	}

	updates := map[string]interface{}{
		"last_event_id": eventID,
		"updated_at":    time.Now().UTC(),
		"version":       gorm.Expr("version + 1"),
	}
	if patch.Plan != nil {
		updates["plan"] = patch.Plan.String()
	}
	if patch.SubscriptionStatus != nil {
		updates["subscription_status"] = patch.SubscriptionStatus.String()
	}
	if patch.StripeCustomerID != nil {
		// First writer wins: COALESCE keeps an already-linked customer ID.
		updates["stripe_customer_id"] = gorm.Expr("COALESCE(stripe_customer_id, ?)", *patch.StripeCustomerID)
	}
	if patch.StripeSubscriptionID != nil {
		updates["stripe_subscription_id"] = *patch.StripeSubscriptionID
	}
	if patch.StripePriceID != nil {
		updates["stripe_price_id"] = *patch.StripePriceID
	}
	if patch.CurrentPeriodEnd != nil {
		updates["current_period_end"] = *patch.CurrentPeriodEnd
	}
	if patch.ClearSubscription {
		updates["stripe_subscription_id"] = nil
		updates["stripe_price_id"] = nil
		updates["current_period_end"] = nil
	}

	tx := r.db.WithContext(ctx).
		Model(&models.BillingProfileModel{}).
		Where("user_id = ?", userID).
		Where("last_event_id <> ?", eventID).
		Updates(updates)
	if tx.Error != nil {
		return nil, tx.Error
	}

	// Zero rows means either no profile or a duplicate event; the follow-up
	// read distinguishes the two.
	profile, err := r.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &billing.ReconcileResult{
		Applied: tx.RowsAffected > 0,
		Profile: profile,
	}, nil
}

// ReconcileOrCreate behaves like Reconcile but first inserts a default free
// profile when the user has none. The insert ignores conflicts so two racing
// creators converge on a single row before patching it.
func (r *GormBillingProfileRepository) ReconcileOrCreate(ctx context.Context, userID uuid.UUID, eventID string, patch billing.ProfilePatch) (*billing.ReconcileResult, error) {
	result, err := r.Reconcile(ctx, userID, eventID, patch)
	if err != shared.ErrNotFound {
		return result, err
	}

	model := models.BillingProfileModelFromDomain(billing.NewCustomerBillingProfile(userID))
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(model).Error; err != nil {
		return nil, err
	}

	return r.Reconcile(ctx, userID, eventID, patch)
}

// Ensure GormBillingProfileRepository implements ProfileRepository
var _ billing.ProfileRepository = (*GormBillingProfileRepository)(nil)
