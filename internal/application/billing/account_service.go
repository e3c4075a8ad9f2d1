package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitekit/backend/internal/domain/billing"
	"github.com/sitekit/backend/internal/domain/shared"
	infrabilling "github.com/sitekit/backend/internal/infrastructure/billing"
)

// BillingProviderClient is the payment provider surface the account service
// drives: customer and checkout creation, the self-serve portal, and direct
// subscription management.
type BillingProviderClient interface {
	CreateCustomer(ctx context.Context, input infrabilling.CreateCustomerInput) (*infrabilling.CreateCustomerOutput, error)
	CreateCheckoutSession(ctx context.Context, input infrabilling.CreateCheckoutSessionInput) (*infrabilling.CreateCheckoutSessionOutput, error)
	CreateBillingPortalSession(ctx context.Context, customerID string) (*infrabilling.BillingPortalSessionOutput, error)
	GetSubscriptionInfo(ctx context.Context, subscriptionID string) (*infrabilling.SubscriptionInfo, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*infrabilling.SubscriptionInfo, error)
}

// CheckoutSessionDTO contains a created checkout session
type CheckoutSessionDTO struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// PortalSessionDTO contains a created billing portal session
type PortalSessionDTO struct {
	URL string `json:"url"`
}

// SubscriptionDTO is the API view of a provider subscription
type SubscriptionDTO struct {
	SubscriptionID    string     `json:"subscription_id"`
	Status            string     `json:"status"`
	PriceID           string     `json:"price_id,omitempty"`
	Plan              string     `json:"plan"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}

// BillingAccountService handles the caller-initiated side of billing:
// starting a checkout, opening the self-serve portal, and inspecting or
// canceling the live subscription. State changes triggered here never touch
// the billing profile directly; they land through the provider's webhook
// events like every other subscription change.
type BillingAccountService struct {
	provider    BillingProviderClient
	profileRepo billing.ProfileRepository
	config      *infrabilling.StripeConfig
	resolver    *billing.PlanResolver
	logger      *zap.Logger
}

// NewBillingAccountService creates a new BillingAccountService
func NewBillingAccountService(
	provider BillingProviderClient,
	profileRepo billing.ProfileRepository,
	config *infrabilling.StripeConfig,
	logger *zap.Logger,
) *BillingAccountService {
	return &BillingAccountService{
		provider:    provider,
		profileRepo: profileRepo,
		config:      config,
		resolver:    config.BuildPlanResolver(),
		logger:      logger,
	}
}

// StartCheckout creates a provider checkout session for a paid plan. When the
// user has no linked provider customer yet and an email is given, a customer
// is created first so repeat checkouts reuse one customer record; the durable
// link is written later by the checkout-completed webhook.
func (s *BillingAccountService) StartCheckout(ctx context.Context, userID uuid.UUID, planName, email string) (*CheckoutSessionDTO, error) {
	plan := billing.NormalizePlan(planName)
	if !plan.IsPaid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Checkout requires a paid plan")
	}

	priceID := s.config.PriceForPlan(plan)
	if priceID == "" {
		return nil, shared.NewDomainError("INVALID_STATE", "No price configured for plan "+plan.String())
	}

	customerID := ""
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil && err != shared.ErrNotFound {
		return nil, fmt.Errorf("failed to find billing profile: %w", err)
	}
	if profile != nil && profile.HasStripeCustomer() {
		customerID = *profile.StripeCustomerID
	} else if email != "" {
		created, err := s.provider.CreateCustomer(ctx, infrabilling.CreateCustomerInput{
			UserID: userID,
			Email:  email,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create provider customer: %w", err)
		}
		customerID = created.CustomerID
	}

	out, err := s.provider.CreateCheckoutSession(ctx, infrabilling.CreateCheckoutSessionInput{
		UserID:     userID,
		CustomerID: customerID,
		PriceID:    priceID,
		PlanName:   plan.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.Info("Checkout session created",
		zap.String("user_id", userID.String()),
		zap.String("plan", plan.String()),
		zap.String("session_id", out.SessionID))

	return &CheckoutSessionDTO{SessionID: out.SessionID, URL: out.URL}, nil
}

// OpenBillingPortal creates a self-serve portal session for an existing
// provider customer.
func (s *BillingAccountService) OpenBillingPortal(ctx context.Context, userID uuid.UUID) (*PortalSessionDTO, error) {
	profile, err := s.findProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !profile.HasStripeCustomer() {
		return nil, shared.NewDomainError("NOT_FOUND", "No billing account for user")
	}

	out, err := s.provider.CreateBillingPortalSession(ctx, *profile.StripeCustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create billing portal session: %w", err)
	}

	return &PortalSessionDTO{URL: out.URL}, nil
}

// GetSubscription returns the live provider view of the user's subscription.
func (s *BillingAccountService) GetSubscription(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error) {
	subscriptionID, err := s.linkedSubscriptionID(ctx, userID)
	if err != nil {
		return nil, err
	}

	info, err := s.provider.GetSubscriptionInfo(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return s.toSubscriptionDTO(info), nil
}

// CancelSubscription schedules the user's subscription to cancel at the end
// of the current period. The profile downgrade itself arrives later through
// the provider's subscription events.
func (s *BillingAccountService) CancelSubscription(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error) {
	subscriptionID, err := s.linkedSubscriptionID(ctx, userID)
	if err != nil {
		return nil, err
	}

	info, err := s.provider.CancelSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	s.logger.Info("Subscription cancellation scheduled",
		zap.String("user_id", userID.String()),
		zap.String("subscription_id", subscriptionID))

	return s.toSubscriptionDTO(info), nil
}

func (s *BillingAccountService) findProfile(ctx context.Context, userID uuid.UUID) (*billing.CustomerBillingProfile, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}

	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == shared.ErrNotFound {
			return nil, shared.NewDomainError("NOT_FOUND", "No billing account for user")
		}
		return nil, fmt.Errorf("failed to find billing profile: %w", err)
	}
	return profile, nil
}

func (s *BillingAccountService) linkedSubscriptionID(ctx context.Context, userID uuid.UUID) (string, error) {
	profile, err := s.findProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.StripeSubscriptionID == nil || *profile.StripeSubscriptionID == "" {
		return "", shared.NewDomainError("NOT_FOUND", "No subscription for user")
	}
	return *profile.StripeSubscriptionID, nil
}

func (s *BillingAccountService) toSubscriptionDTO(info *infrabilling.SubscriptionInfo) *SubscriptionDTO {
	dto := &SubscriptionDTO{
		SubscriptionID:    info.SubscriptionID,
		Status:            info.Status,
		PriceID:           info.PriceID,
		Plan:              s.resolver.Resolve("", info.PriceID).String(),
		CancelAtPeriodEnd: info.CancelAtPeriodEnd,
	}
	if !info.CurrentPeriodEnd.IsZero() {
		periodEnd := info.CurrentPeriodEnd
		dto.CurrentPeriodEnd = &periodEnd
	}
	return dto
}

// ensure the Stripe adapter satisfies the provider contract
var _ BillingProviderClient = (*infrabilling.StripeAdapter)(nil)
