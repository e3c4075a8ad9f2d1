package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	appbilling "github.com/sitekit/backend/internal/application/billing"
	"github.com/sitekit/backend/internal/domain/billing"
)

// BillingMetrics records quota enforcement and webhook processing outcomes.
// Commit failures get their own counter because each one is a usage event
// that was allowed but never recorded; the alert on it pages.
type BillingMetrics struct {
	quotaRejections *Counter
	usageCommits    *Counter
	commitFailures  *Counter
	webhookEvents   *Counter
	webhookDuration *Histogram
}

// NewBillingMetrics creates the billing instrument set on the given meter
func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	quotaRejections, err := NewCounter(meter,
		"billing_quota_rejections_total",
		"Operations rejected by the quota check",
		"{operation}")
	if err != nil {
		return nil, fmt.Errorf("failed to create billing metrics: %w", err)
	}

	usageCommits, err := NewCounter(meter,
		"billing_usage_commits_total",
		"Usage units committed to counters",
		"{operation}")
	if err != nil {
		return nil, fmt.Errorf("failed to create billing metrics: %w", err)
	}

	commitFailures, err := NewCounter(meter,
		"billing_usage_commit_failures_total",
		"Usage commits that failed after the operation succeeded",
		"{operation}")
	if err != nil {
		return nil, fmt.Errorf("failed to create billing metrics: %w", err)
	}

	webhookEvents, err := NewCounter(meter,
		"billing_webhook_events_total",
		"Stripe webhook events received, by type and outcome",
		"{event}")
	if err != nil {
		return nil, fmt.Errorf("failed to create billing metrics: %w", err)
	}

	webhookDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "billing_webhook_duration_seconds",
		Description: "Stripe webhook processing duration",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create billing metrics: %w", err)
	}

	return &BillingMetrics{
		quotaRejections: quotaRejections,
		usageCommits:    usageCommits,
		commitFailures:  commitFailures,
		webhookEvents:   webhookEvents,
		webhookDuration: webhookDuration,
	}, nil
}

// RecordQuotaRejection counts an operation rejected by the quota check
func (m *BillingMetrics) RecordQuotaRejection(ctx context.Context, key billing.QuotaKey, plan billing.Plan) {
	m.quotaRejections.Inc(ctx,
		AttrQuotaKey.String(key.String()),
		AttrPlan.String(plan.String()),
	)
}

// RecordUsageCommit counts a committed usage unit
func (m *BillingMetrics) RecordUsageCommit(ctx context.Context, key billing.QuotaKey, plan billing.Plan) {
	m.usageCommits.Inc(ctx,
		AttrQuotaKey.String(key.String()),
		AttrPlan.String(plan.String()),
	)
}

// RecordCommitFailure counts a usage commit that failed to persist
func (m *BillingMetrics) RecordCommitFailure(ctx context.Context, key billing.QuotaKey) {
	m.commitFailures.Inc(ctx, AttrQuotaKey.String(key.String()))
}

// RecordWebhookEvent counts a processed webhook event by type and outcome
func (m *BillingMetrics) RecordWebhookEvent(ctx context.Context, eventType, outcome string) {
	m.webhookEvents.Inc(ctx,
		AttrStripeEventType.String(eventType),
		AttrWebhookOutcome.String(outcome),
	)
}

// RecordWebhookDuration records how long a webhook delivery took to process
func (m *BillingMetrics) RecordWebhookDuration(ctx context.Context, seconds float64, eventType string) {
	m.webhookDuration.Record(ctx, seconds, AttrStripeEventType.String(eventType))
}

// Ensure BillingMetrics implements UsageMetrics
var _ appbilling.UsageMetrics = (*BillingMetrics)(nil)
