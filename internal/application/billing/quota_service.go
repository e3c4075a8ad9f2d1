package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitekit/backend/internal/domain/billing"
	"github.com/sitekit/backend/internal/domain/shared"
)

// UsageMetrics records quota enforcement outcomes. Implemented by the
// telemetry layer; a nil recorder disables instrumentation.
type UsageMetrics interface {
	RecordQuotaRejection(ctx context.Context, key billing.QuotaKey, plan billing.Plan)
	RecordUsageCommit(ctx context.Context, key billing.QuotaKey, plan billing.Plan)
	RecordCommitFailure(ctx context.Context, key billing.QuotaKey)
}

// UsageDetailDTO contains usage for a single quota key
type UsageDetailDTO struct {
	QuotaKey  string `json:"quota_key"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	Allowed   bool   `json:"allowed"`
}

// UsageSummaryDTO contains a user's usage across all quota keys for the
// current billing period
type UsageSummaryDTO struct {
	UserID    uuid.UUID                 `json:"user_id"`
	Plan      string                    `json:"plan"`
	PeriodEnd time.Time                 `json:"period_end"`
	Usages    map[string]UsageDetailDTO `json:"usages"`
}

// QuotaService enforces per-billing-period usage quotas.
//
// Check is advisory: it reads the counter without locking, so two racing
// requests can both pass at the last slot. Commit is the authoritative
// record, an atomic increment that never loses a count. A small transient
// overshoot past the limit is accepted; usage that was served but not
// durably counted is not, which is why commit failures must fail the
// guarded operation.
type QuotaService struct {
	profileRepo billing.ProfileRepository
	counterRepo billing.UsageCounterRepository
	limits      *billing.QuotaLimits
	metrics     UsageMetrics
	eventBus    shared.EventBus
	logger      *zap.Logger

	now func() time.Time
}

// NewQuotaService creates a new QuotaService
func NewQuotaService(
	profileRepo billing.ProfileRepository,
	counterRepo billing.UsageCounterRepository,
	limits *billing.QuotaLimits,
	metrics UsageMetrics,
	eventBus shared.EventBus,
	logger *zap.Logger,
) *QuotaService {
	if limits == nil {
		limits = billing.DefaultQuotaLimits()
	}
	return &QuotaService{
		profileRepo: profileRepo,
		counterRepo: counterRepo,
		limits:      limits,
		metrics:     metrics,
		eventBus:    eventBus,
		logger:      logger,
		now:         time.Now,
	}
}

// Entitlement is the resolved (plan, period) pair quota decisions run under
type Entitlement struct {
	Plan      billing.Plan
	PeriodEnd time.Time
}

// ResolveEntitlement determines the effective plan and billing period for a
// user. Users without a profile are free-plan users on calendar months.
func (s *QuotaService) ResolveEntitlement(ctx context.Context, userID uuid.UUID) (*Entitlement, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}

	now := s.now()
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		if err == shared.ErrNotFound {
			return &Entitlement{
				Plan:      billing.PlanFree,
				PeriodEnd: billing.NormalizePeriod(nil, now),
			}, nil
		}
		s.logger.Error("Failed to find billing profile",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find billing profile: %w", err)
	}

	// A period boundary already behind us belongs to a lapsed subscription;
	// keying counters on it would freeze the quota in an expired period.
	hint := profile.CurrentPeriodEnd
	if hint != nil && !hint.After(now) {
		hint = nil
	}

	return &Entitlement{
		Plan:      profile.EffectivePlan(),
		PeriodEnd: billing.NormalizePeriod(hint, now),
	}, nil
}

// Check evaluates whether one more unit of the keyed operation is within
// quota. Advisory only: it does not reserve the slot.
func (s *QuotaService) Check(ctx context.Context, userID, projectID uuid.UUID, key billing.QuotaKey) (*billing.QuotaCheckResult, error) {
	if !key.IsValid() {
		return nil, billing.ErrQuotaKeyUnknown
	}

	entitlement, err := s.ResolveEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}

	// A non-positive limit means the key is not available on the plan at
	// all; the counter is not consulted.
	limit := s.limits.LimitFor(entitlement.Plan, key)
	if limit <= 0 {
		result := billing.EvaluateQuota(entitlement.Plan, key, 0, limit, entitlement.PeriodEnd)
		s.rejectCheck(ctx, userID, key, entitlement.Plan, 0, limit)
		return &result, nil
	}

	counterKey := billing.CounterKey{
		UserID:    userID,
		ProjectID: projectID,
		QuotaKey:  key,
		PeriodEnd: entitlement.PeriodEnd,
	}
	used, err := s.counterRepo.GetCount(ctx, counterKey)
	if err != nil {
		s.logger.Error("Failed to read usage counter",
			zap.String("user_id", userID.String()),
			zap.String("quota_key", key.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read usage counter: %w", err)
	}

	result := billing.EvaluateQuota(entitlement.Plan, key, used, limit, entitlement.PeriodEnd)
	if !result.Allowed {
		s.rejectCheck(ctx, userID, key, entitlement.Plan, used, limit)
	}

	return &result, nil
}

// rejectCheck records the side effects of a rejected quota check.
func (s *QuotaService) rejectCheck(ctx context.Context, userID uuid.UUID, key billing.QuotaKey, plan billing.Plan, used, limit int64) {
	s.logger.Info("Quota check rejected operation",
		zap.String("user_id", userID.String()),
		zap.String("quota_key", key.String()),
		zap.String("plan", plan.String()),
		zap.Int64("used", used),
		zap.Int64("limit", limit))

	if s.metrics != nil {
		s.metrics.RecordQuotaRejection(ctx, key, plan)
	}
	s.publishQuotaExceeded(userID, key, used, limit)
}

// Commit durably records one unit of usage and returns the post-commit
// state. It never rejects: the guarded operation already happened, so the
// count must land even when a racing request pushed usage past the limit.
// Returns ErrUsageCommitFailed when the increment cannot be persisted.
func (s *QuotaService) Commit(ctx context.Context, userID, projectID uuid.UUID, key billing.QuotaKey) (*billing.QuotaCheckResult, error) {
	if !key.IsValid() {
		return nil, billing.ErrQuotaKeyUnknown
	}

	entitlement, err := s.ResolveEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}

	counterKey := billing.CounterKey{
		UserID:    userID,
		ProjectID: projectID,
		QuotaKey:  key,
		PeriodEnd: entitlement.PeriodEnd,
	}
	count, err := s.counterRepo.Increment(ctx, counterKey)
	if err != nil {
		s.logger.Error("Failed to commit usage",
			zap.String("user_id", userID.String()),
			zap.String("quota_key", key.String()),
			zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordCommitFailure(ctx, key)
		}
		return nil, billing.ErrUsageCommitFailed
	}

	if s.metrics != nil {
		s.metrics.RecordUsageCommit(ctx, key, entitlement.Plan)
	}
	if s.eventBus != nil {
		committed := NewUsageCommittedEvent(userID, projectID, key, count, entitlement.PeriodEnd)
		if err := s.eventBus.Publish(ctx, committed); err != nil {
			s.logger.Warn("Failed to publish usage committed event",
				zap.String("user_id", userID.String()),
				zap.Error(err))
		}
	}

	limit := s.limits.LimitFor(entitlement.Plan, key)
	result := billing.EvaluateQuota(entitlement.Plan, key, count, limit, entitlement.PeriodEnd)

	s.logger.Debug("Usage committed",
		zap.String("user_id", userID.String()),
		zap.String("quota_key", key.String()),
		zap.Int64("count", count),
		zap.Int64("limit", limit))

	return &result, nil
}

// GetUsageSummary returns the user's usage across all quota keys for the
// current billing period, aggregated over projects.
func (s *QuotaService) GetUsageSummary(ctx context.Context, userID uuid.UUID) (*UsageSummaryDTO, error) {
	entitlement, err := s.ResolveEntitlement(ctx, userID)
	if err != nil {
		return nil, err
	}

	counters, err := s.counterRepo.FindByUserAndPeriod(ctx, userID, entitlement.PeriodEnd)
	if err != nil {
		s.logger.Error("Failed to load usage counters",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to load usage counters: %w", err)
	}

	usedByKey := make(map[billing.QuotaKey]int64)
	for _, counter := range counters {
		usedByKey[counter.QuotaKey] += counter.Count
	}

	summary := &UsageSummaryDTO{
		UserID:    userID,
		Plan:      entitlement.Plan.String(),
		PeriodEnd: entitlement.PeriodEnd,
		Usages:    make(map[string]UsageDetailDTO),
	}
	for _, key := range billing.AllQuotaKeys() {
		limit := s.limits.LimitFor(entitlement.Plan, key)
		result := billing.EvaluateQuota(entitlement.Plan, key, usedByKey[key], limit, entitlement.PeriodEnd)
		summary.Usages[key.String()] = UsageDetailDTO{
			QuotaKey:  key.String(),
			Used:      result.Used,
			Limit:     result.Limit,
			Remaining: result.Remaining,
			Allowed:   result.Allowed,
		}
	}

	return summary, nil
}

// publishQuotaExceeded publishes the rejection event asynchronously so slow
// subscribers cannot delay the request path.
func (s *QuotaService) publishQuotaExceeded(userID uuid.UUID, key billing.QuotaKey, used, limit int64) {
	if s.eventBus == nil {
		return
	}
	go func() {
		event := NewQuotaExceededEvent(userID, key, used, limit)
		if err := s.eventBus.Publish(context.Background(), event); err != nil {
			s.logger.Warn("Failed to publish quota exceeded event", zap.Error(err))
		}
	}()
}
