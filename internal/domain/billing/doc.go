// Package billing provides domain models for subscription reconciliation and
// usage metering in the site-builder SaaS backend.
//
// This package implements the billing bounded context, which is responsible for:
//   - Converging a per-user billing profile from asynchronous, out-of-order,
//     at-least-once payment-provider events
//   - Resolving the canonical entitlement plan from provider price IDs and
//     plan metadata hints
//   - Enforcing per-billing-period usage quotas against concurrent requests
//
// Key Aggregates:
//   - CustomerBillingProfile: per-user subscription state, mutated only through
//     null-safe patch merges
//   - UsageCounter: per-(user, project, quota key, period) increment-only counter
//
// The billing domain integrates with:
//   - The payment provider (Stripe): as the source of billing events and
//     subscription lookups
//   - Feature handlers: as callers of the quota enforcer
package billing
