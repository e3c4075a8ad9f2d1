package billing

import (
	"fmt"

	"github.com/stripe/stripe-go/v81"

	domainbilling "github.com/sitekit/backend/internal/domain/billing"
)

// StripeConfig holds configuration for Stripe integration
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`

	// PublishableKey is the Stripe publishable key for frontend (pk_test_xxx or pk_live_xxx)
	PublishableKey string `json:"publishable_key" mapstructure:"publishable_key"`

	// WebhookSecret is the secret for verifying webhook signatures
	WebhookSecret string `json:"webhook_secret" mapstructure:"webhook_secret"`

	// IsTestMode indicates if using Stripe test mode
	IsTestMode bool `json:"is_test_mode" mapstructure:"is_test_mode"`

	// DefaultCurrency is the default currency for subscriptions (e.g., "usd")
	DefaultCurrency string `json:"default_currency" mapstructure:"default_currency"`

	// PriceToPlan maps Stripe Price IDs to canonical plan names
	PriceToPlan map[string]string `json:"price_to_plan" mapstructure:"price_to_plan"`

	// SuccessURL is the URL to redirect after successful checkout
	SuccessURL string `json:"success_url" mapstructure:"success_url"`

	// CancelURL is the URL to redirect after cancelled checkout
	CancelURL string `json:"cancel_url" mapstructure:"cancel_url"`

	// BillingPortalReturnURL is the return URL from Stripe billing portal
	BillingPortalReturnURL string `json:"billing_portal_return_url" mapstructure:"billing_portal_return_url"`
}

// DefaultStripeConfig returns a default configuration for development/testing
func DefaultStripeConfig() *StripeConfig {
	return &StripeConfig{
		IsTestMode:      true,
		DefaultCurrency: "usd",
		PriceToPlan: map[string]string{
			"price_basic_monthly": "basic",
			"price_pro_monthly":   "pro",
			"price_ent_monthly":   "enterprise",
		},
	}
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}

	// Validate key format
	if c.IsTestMode {
		if len(c.SecretKey) > 7 && c.SecretKey[:7] != "sk_test" {
			return fmt.Errorf("stripe: test mode enabled but secret key is not a test key")
		}
	} else {
		if len(c.SecretKey) > 7 && c.SecretKey[:7] != "sk_live" {
			return fmt.Errorf("stripe: live mode enabled but secret key is not a live key")
		}
	}

	if c.WebhookSecret == "" {
		return fmt.Errorf("stripe: webhook secret is required")
	}

	return nil
}

// BuildPlanResolver builds the domain plan resolver from the configured
// price-to-plan table.
func (c *StripeConfig) BuildPlanResolver() *domainbilling.PlanResolver {
	table := make(map[string]domainbilling.Plan, len(c.PriceToPlan))
	for priceID, planName := range c.PriceToPlan {
		table[priceID] = domainbilling.NormalizePlan(planName)
	}
	return domainbilling.NewPlanResolver(table)
}

// PriceForPlan returns the configured Stripe Price ID for a plan, empty when
// the plan has no price (free) or is unknown.
func (c *StripeConfig) PriceForPlan(plan domainbilling.Plan) string {
	for priceID, planName := range c.PriceToPlan {
		if domainbilling.NormalizePlan(planName) == plan {
			return priceID
		}
	}
	return ""
}

// InitStripeClient initializes the Stripe client with the configured API key
func (c *StripeConfig) InitStripeClient() {
	stripe.Key = c.SecretKey
}
