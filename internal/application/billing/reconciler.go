package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"

	"github.com/sitekit/backend/internal/domain/billing"
	"github.com/sitekit/backend/internal/domain/shared"
	infrabilling "github.com/sitekit/backend/internal/infrastructure/billing"
)

// SubscriptionFetcher retrieves subscriptions from the payment provider.
// Used to enrich checkout and invoice events, which carry only references.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]*stripe.Subscription, error)
}

// SubscriptionReconciler converges billing profiles from Stripe webhook
// events. Deliveries are at-least-once and unordered; every handler reduces
// its event to a null-safe ProfilePatch and the repository applies it
// conditionally on the event ID, so replays and races cannot corrupt state.
type SubscriptionReconciler struct {
	config            *infrabilling.StripeConfig
	profileRepo       billing.ProfileRepository
	resolver          *billing.PlanResolver
	idempotency       shared.IdempotencyStore
	idempotencyConfig shared.IdempotencyConfig
	subscriptions     SubscriptionFetcher
	eventBus          shared.EventBus
	logger            *zap.Logger
}

// SubscriptionReconcilerConfig contains configuration for SubscriptionReconciler
type SubscriptionReconcilerConfig struct {
	Config            *infrabilling.StripeConfig
	ProfileRepo       billing.ProfileRepository
	Resolver          *billing.PlanResolver
	Idempotency       shared.IdempotencyStore
	IdempotencyConfig shared.IdempotencyConfig
	Subscriptions     SubscriptionFetcher
	EventBus          shared.EventBus
	Logger            *zap.Logger
}

// NewSubscriptionReconciler creates a new SubscriptionReconciler
func NewSubscriptionReconciler(cfg SubscriptionReconcilerConfig) *SubscriptionReconciler {
	return &SubscriptionReconciler{
		config:            cfg.Config,
		profileRepo:       cfg.ProfileRepo,
		resolver:          cfg.Resolver,
		idempotency:       cfg.Idempotency,
		idempotencyConfig: cfg.IdempotencyConfig,
		subscriptions:     cfg.Subscriptions,
		eventBus:          cfg.EventBus,
		logger:            cfg.Logger,
	}
}

// WebhookResult contains the result of processing a webhook delivery
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// ProcessWebhook verifies and processes a Stripe webhook delivery.
//
// A nil error means the delivery was acknowledged: processed, a duplicate, an
// unhandled event type, or unresolvable to any local user. Errors are
// reserved for transient failures where a provider retry can succeed.
func (s *SubscriptionReconciler) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.config.WebhookSecret)
	if err != nil {
		s.logger.Error("Failed to verify webhook signature",
			zap.Error(err))
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	s.logger.Info("Processing Stripe webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
		Processed: true,
	}

	// Fast-path dedupe. Best effort only: the authoritative marker is the
	// profile's last_event_id, written atomically with the patch.
	if s.idempotency != nil && s.idempotencyConfig.Enabled {
		seen, err := s.idempotency.IsProcessed(ctx, event.ID)
		if err != nil {
			s.logger.Warn("Idempotency store unavailable, continuing without fast path",
				zap.String("event_id", event.ID),
				zap.Error(err))
		} else if seen {
			s.logger.Info("Duplicate webhook delivery skipped",
				zap.String("event_id", event.ID))
			result.Message = "Duplicate delivery"
			return result, nil
		}
	}

	switch event.Type {
	case "checkout.session.completed":
		err = s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		err = s.handleSubscriptionChanged(ctx, event)
	case "customer.subscription.deleted":
		err = s.handleSubscriptionDeleted(ctx, event)
	case "invoice.paid", "invoice.payment_succeeded":
		err = s.handleInvoicePaymentSucceeded(ctx, event)
	case "invoice.payment_failed":
		err = s.handleInvoicePaymentFailed(ctx, event)
	default:
		s.logger.Debug("Unhandled webhook event type",
			zap.String("event_type", string(event.Type)))
		result.Message = "Event type not handled"
	}

	if err != nil {
		s.logger.Error("Failed to process webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		result.Processed = false
		result.Message = err.Error()
		return result, err
	}

	// Marked only after the handler succeeded. A transient handler failure
	// must leave the event unmarked so the provider's redelivery reaches the
	// reconciler instead of the duplicate short-circuit.
	if s.idempotency != nil && s.idempotencyConfig.Enabled {
		if _, err := s.idempotency.MarkProcessed(ctx, event.ID, s.idempotencyConfig.TTL); err != nil {
			s.logger.Warn("Failed to record processed event",
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}

	return result, nil
}

// handleCheckoutCompleted handles checkout.session.completed events.
// The session's client reference ID carries our user ID, so this is the one
// handler that can create a profile for a user with no billing history.
func (s *SubscriptionReconciler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	userID, err := uuid.Parse(session.ClientReferenceID)
	if err != nil {
		// Checkout sessions we did not create (or created without a
		// reference) cannot be attributed. Acknowledge to stop retries.
		s.logger.Warn("Checkout session has no usable client reference, skipping",
			zap.String("session_id", session.ID),
			zap.String("client_reference_id", session.ClientReferenceID))
		return nil
	}

	patch := billing.ProfilePatch{}
	customerID := ""
	if session.Customer != nil && session.Customer.ID != "" {
		customerID = session.Customer.ID
		patch.StripeCustomerID = &customerID
	}

	// The session embeds at most a subscription reference. Fetch the full
	// object for price, status and period; when the reference is missing
	// entirely, fall back to listing the customer's subscriptions.
	var sub *stripe.Subscription
	if session.Subscription != nil && session.Subscription.ID != "" {
		subscriptionID := session.Subscription.ID
		patch.StripeSubscriptionID = &subscriptionID
		if s.subscriptions != nil {
			fetched, err := s.subscriptions.GetSubscription(ctx, subscriptionID)
			if err != nil {
				s.logger.Warn("Failed to fetch subscription for checkout enrichment",
					zap.String("subscription_id", subscriptionID),
					zap.Error(err))
			} else {
				sub = fetched
			}
		}
	} else if s.subscriptions != nil && customerID != "" {
		sub = s.pickCustomerSubscription(ctx, customerID)
		if sub != nil {
			subscriptionID := sub.ID
			patch.StripeSubscriptionID = &subscriptionID
		}
	}

	planHint := session.Metadata["plan"]
	priceID := ""
	status := billing.SubscriptionStatus("")
	if sub != nil {
		priceID = subscriptionPriceID(sub)
		if priceID != "" {
			patch.StripePriceID = &priceID
		}
		if status = mapSubscriptionStatus(sub.Status); status != "" {
			patch.SubscriptionStatus = &status
		}
		if sub.CurrentPeriodEnd > 0 {
			periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			patch.CurrentPeriodEnd = &periodEnd
		}
		if planHint == "" {
			planHint = sub.Metadata["plan"]
		}
	}

	// Entitlement is granted only on a confirmed live subscription. An
	// incomplete or ambiguous status leaves the plan untouched rather than
	// guessing; the subscription events settle it either way.
	if status.IsActiveEquivalent() && (planHint != "" || priceID != "") {
		plan := s.resolver.Resolve(planHint, priceID)
		patch.Plan = &plan
	}

	result, err := s.profileRepo.ReconcileOrCreate(ctx, userID, event.ID, patch)
	if err != nil {
		return fmt.Errorf("failed to reconcile profile: %w", err)
	}

	s.finishReconcile(ctx, result, event, userID)
	return nil
}

// pickCustomerSubscription lists the customer's subscriptions and returns the
// best candidate: an active or trialing one when present, else the newest.
// Nil when nothing is found or the provider lookup fails.
func (s *SubscriptionReconciler) pickCustomerSubscription(ctx context.Context, customerID string) *stripe.Subscription {
	subs, err := s.subscriptions.ListSubscriptions(ctx, customerID)
	if err != nil {
		s.logger.Warn("Failed to list customer subscriptions",
			zap.String("customer_id", customerID),
			zap.Error(err))
		return nil
	}

	var fallback *stripe.Subscription
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		if mapSubscriptionStatus(sub.Status).IsActiveEquivalent() {
			return sub
		}
		if fallback == nil {
			fallback = sub
		}
	}
	return fallback
}

// handleSubscriptionChanged handles customer.subscription.created and
// customer.subscription.updated events. Both reduce to the same patch; the
// null-safe merge makes ordering between them irrelevant.
func (s *SubscriptionReconciler) handleSubscriptionChanged(ctx context.Context, event stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	profile, err := s.resolveBySubscription(ctx, &subscription)
	if err != nil {
		return err
	}
	if profile == nil {
		s.logger.Warn("No profile found for subscription, skipping",
			zap.String("subscription_id", subscription.ID))
		return nil
	}

	patch := billing.ProfilePatch{}
	if subscription.Customer != nil && subscription.Customer.ID != "" {
		customerID := subscription.Customer.ID
		patch.StripeCustomerID = &customerID
	}
	if subscription.ID != "" {
		subscriptionID := subscription.ID
		patch.StripeSubscriptionID = &subscriptionID
	}

	priceID := subscriptionPriceID(&subscription)
	if priceID != "" {
		patch.StripePriceID = &priceID
	}

	status := mapSubscriptionStatus(subscription.Status)
	if status != "" {
		patch.SubscriptionStatus = &status
	}

	switch {
	case status.IsActiveEquivalent():
		plan := s.resolver.Resolve(subscription.Metadata["plan"], priceID)
		patch.Plan = &plan
		if subscription.CurrentPeriodEnd > 0 {
			periodEnd := time.Unix(subscription.CurrentPeriodEnd, 0).UTC()
			patch.CurrentPeriodEnd = &periodEnd
		}
	case status != "":
		// A lapsed or incomplete subscription must not retain paid
		// entitlement. The stored plan is the one the enforcer reads.
		freePlan := billing.PlanFree
		patch.Plan = &freePlan
	}

	result, err := s.profileRepo.Reconcile(ctx, profile.UserID, event.ID, patch)
	if err != nil {
		return fmt.Errorf("failed to reconcile profile: %w", err)
	}

	s.finishReconcile(ctx, result, event, profile.UserID)
	return nil
}

// handleSubscriptionDeleted handles customer.subscription.deleted events.
// This is the only handler allowed to clear subscription fields.
func (s *SubscriptionReconciler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	profile, err := s.resolveBySubscription(ctx, &subscription)
	if err != nil {
		return err
	}
	if profile == nil {
		s.logger.Warn("No profile found for deleted subscription, skipping",
			zap.String("subscription_id", subscription.ID))
		return nil
	}

	// The deleted event may name an older subscription than the one the
	// profile currently links, e.g. after an upgrade created a replacement.
	// Clearing state for a superseded subscription would erase the new one.
	if profile.StripeSubscriptionID != nil && *profile.StripeSubscriptionID != subscription.ID {
		s.logger.Info("Deleted subscription is not the profile's current one, skipping",
			zap.String("subscription_id", subscription.ID),
			zap.String("current_subscription_id", *profile.StripeSubscriptionID))
		return nil
	}

	freePlan := billing.PlanFree
	canceled := billing.SubscriptionStatusCanceled
	patch := billing.ProfilePatch{
		Plan:               &freePlan,
		SubscriptionStatus: &canceled,
		ClearSubscription:  true,
	}

	result, err := s.profileRepo.Reconcile(ctx, profile.UserID, event.ID, patch)
	if err != nil {
		return fmt.Errorf("failed to reconcile profile: %w", err)
	}

	if result.Applied && s.eventBus != nil {
		deleted := NewSubscriptionDeletedEvent(profile.UserID, subscription.ID)
		if err := s.eventBus.Publish(ctx, deleted); err != nil {
			s.logger.Error("Failed to publish subscription deleted event",
				zap.Error(err))
		}
	}

	s.finishReconcile(ctx, result, event, profile.UserID)
	return nil
}

// handleInvoicePaymentSucceeded handles invoice.paid and
// invoice.payment_succeeded events. A successful payment confirms the
// subscription is in good standing and moves the cycle boundary forward.
func (s *SubscriptionReconciler) handleInvoicePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	if invoice.Subscription == nil {
		s.logger.Debug("Invoice is not for a subscription, skipping",
			zap.String("invoice_id", invoice.ID))
		return nil
	}

	profile, err := s.resolveByCustomer(ctx, invoice.Customer)
	if err != nil {
		return err
	}
	if profile == nil {
		s.logger.Warn("No profile found for invoice customer, skipping",
			zap.String("invoice_id", invoice.ID))
		return nil
	}

	active := billing.SubscriptionStatusActive
	patch := billing.ProfilePatch{SubscriptionStatus: &active}
	if invoice.PeriodEnd > 0 {
		periodEnd := time.Unix(invoice.PeriodEnd, 0).UTC()
		patch.CurrentPeriodEnd = &periodEnd
	}

	// Prefer the live subscription for price and period; the invoice's own
	// line items are the fallback. The plan only ever upgrades here: a
	// payment confirmation is no signal to downgrade.
	priceID := ""
	if s.subscriptions != nil {
		sub, err := s.subscriptions.GetSubscription(ctx, invoice.Subscription.ID)
		if err != nil {
			s.logger.Warn("Failed to fetch subscription for invoice enrichment",
				zap.String("subscription_id", invoice.Subscription.ID),
				zap.Error(err))
		} else {
			priceID = subscriptionPriceID(sub)
			if sub.CurrentPeriodEnd > 0 {
				periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
				patch.CurrentPeriodEnd = &periodEnd
			}
		}
	}
	if priceID == "" {
		priceID = invoicePriceID(&invoice)
	}
	if priceID != "" {
		patch.StripePriceID = &priceID
		if plan := s.resolver.Resolve("", priceID); plan.IsPaid() {
			patch.Plan = &plan
		}
	}

	result, err := s.profileRepo.Reconcile(ctx, profile.UserID, event.ID, patch)
	if err != nil {
		return fmt.Errorf("failed to reconcile profile: %w", err)
	}

	s.finishReconcile(ctx, result, event, profile.UserID)
	return nil
}

// handleInvoicePaymentFailed handles invoice.payment_failed events
func (s *SubscriptionReconciler) handleInvoicePaymentFailed(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	if invoice.Subscription == nil {
		s.logger.Debug("Invoice is not for a subscription, skipping",
			zap.String("invoice_id", invoice.ID))
		return nil
	}

	profile, err := s.resolveByCustomer(ctx, invoice.Customer)
	if err != nil {
		return err
	}
	if profile == nil {
		s.logger.Warn("No profile found for invoice customer, skipping",
			zap.String("invoice_id", invoice.ID))
		return nil
	}

	// Past due degrades the effective plan without touching the stored plan:
	// a later successful payment restores entitlement with no further patch.
	pastDue := billing.SubscriptionStatusPastDue
	patch := billing.ProfilePatch{SubscriptionStatus: &pastDue}

	result, err := s.profileRepo.Reconcile(ctx, profile.UserID, event.ID, patch)
	if err != nil {
		return fmt.Errorf("failed to reconcile profile: %w", err)
	}

	if result.Applied {
		s.logger.Warn("Invoice payment failed, subscription marked past due",
			zap.String("user_id", profile.UserID.String()),
			zap.String("invoice_id", invoice.ID))
	}

	s.finishReconcile(ctx, result, event, profile.UserID)
	return nil
}

// resolveBySubscription finds the profile a subscription event belongs to,
// by subscription ID first and customer ID second. A nil profile with nil
// error means the event is unresolvable and should be acknowledged.
func (s *SubscriptionReconciler) resolveBySubscription(ctx context.Context, subscription *stripe.Subscription) (*billing.CustomerBillingProfile, error) {
	profile, err := s.profileRepo.FindByStripeSubscriptionID(ctx, subscription.ID)
	if err == nil {
		return profile, nil
	}
	if err != shared.ErrNotFound {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	return s.resolveByCustomer(ctx, subscription.Customer)
}

// resolveByCustomer finds the profile linked to a provider customer
func (s *SubscriptionReconciler) resolveByCustomer(ctx context.Context, customer *stripe.Customer) (*billing.CustomerBillingProfile, error) {
	if customer == nil || customer.ID == "" {
		return nil, nil
	}

	profile, err := s.profileRepo.FindByStripeCustomerID(ctx, customer.ID)
	if err != nil {
		if err == shared.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return profile, nil
}

// finishReconcile logs the outcome and publishes the reconciled event when
// the patch was applied rather than deduplicated.
func (s *SubscriptionReconciler) finishReconcile(ctx context.Context, result *billing.ReconcileResult, event stripe.Event, userID uuid.UUID) {
	if !result.Applied {
		s.logger.Info("Event already applied to profile, patch skipped",
			zap.String("event_id", event.ID),
			zap.String("user_id", userID.String()))
		return
	}

	s.logger.Info("Billing profile reconciled",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("user_id", userID.String()),
		zap.String("plan", result.Profile.Plan.String()))

	if s.eventBus == nil {
		return
	}
	reconciled := NewProfileReconciledEvent(userID, event.ID, string(event.Type), result.Profile.Plan)
	if err := s.eventBus.Publish(ctx, reconciled); err != nil {
		s.logger.Error("Failed to publish profile reconciled event",
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

// subscriptionPriceID extracts the price ID from the subscription's line
// items, preferring a recurring price over one-off charges. Empty when absent.
func subscriptionPriceID(subscription *stripe.Subscription) string {
	if subscription == nil || subscription.Items == nil {
		return ""
	}
	fallback := ""
	for _, item := range subscription.Items.Data {
		if item == nil || item.Price == nil || item.Price.ID == "" {
			continue
		}
		if item.Price.Recurring != nil {
			return item.Price.ID
		}
		if fallback == "" {
			fallback = item.Price.ID
		}
	}
	return fallback
}

// invoicePriceID extracts the price ID from the invoice's billable line
// items, preferring a recurring price over one-off charges.
func invoicePriceID(invoice *stripe.Invoice) string {
	if invoice.Lines == nil {
		return ""
	}
	fallback := ""
	for _, line := range invoice.Lines.Data {
		if line == nil || line.Price == nil || line.Price.ID == "" {
			continue
		}
		if line.Price.Recurring != nil {
			return line.Price.ID
		}
		if fallback == "" {
			fallback = line.Price.ID
		}
	}
	return fallback
}

// mapSubscriptionStatus maps a provider status to the domain status, empty
// for statuses outside the known set.
func mapSubscriptionStatus(status stripe.SubscriptionStatus) billing.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return billing.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return billing.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue:
		return billing.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return billing.SubscriptionStatusCanceled
	case stripe.SubscriptionStatusUnpaid:
		return billing.SubscriptionStatusUnpaid
	case stripe.SubscriptionStatusIncomplete:
		return billing.SubscriptionStatusIncomplete
	case stripe.SubscriptionStatusIncompleteExpired:
		return billing.SubscriptionStatusIncompleteExpired
	case stripe.SubscriptionStatusPaused:
		return billing.SubscriptionStatusPaused
	}
	return ""
}
