package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sitekit/backend/internal/domain/shared"
)

// QuotaKey identifies a metered operation
type QuotaKey string

const (
	// QuotaKeyGenerate meters AI site generations
	QuotaKeyGenerate QuotaKey = "generate"
	// QuotaKeyPublish meters site publishes
	QuotaKeyPublish QuotaKey = "publish"
)

// String returns the string representation of the quota key
func (k QuotaKey) String() string {
	return string(k)
}

// IsValid returns true if the quota key is known
func (k QuotaKey) IsValid() bool {
	return k == QuotaKeyGenerate || k == QuotaKeyPublish
}

// AllQuotaKeys lists every metered operation, in stable order for summaries.
func AllQuotaKeys() []QuotaKey {
	return []QuotaKey{QuotaKeyGenerate, QuotaKeyPublish}
}

// QuotaLimits holds the per-plan limit table. A limit <= 0 means the
// operation is not available on that plan at all; there is no unlimited
// sentinel, every plan has a finite ceiling.
type QuotaLimits struct {
	limits map[Plan]map[QuotaKey]int64
}

// NewQuotaLimits builds a limit table from a plan-keyed map. Entries for
// invalid plans or keys are dropped.
func NewQuotaLimits(limits map[Plan]map[QuotaKey]int64) *QuotaLimits {
	table := make(map[Plan]map[QuotaKey]int64, len(limits))
	for plan, perKey := range limits {
		if !plan.IsValid() {
			continue
		}
		row := make(map[QuotaKey]int64, len(perKey))
		for key, limit := range perKey {
			if !key.IsValid() {
				continue
			}
			row[key] = limit
		}
		table[plan] = row
	}
	return &QuotaLimits{limits: table}
}

// DefaultQuotaLimits returns the built-in limit table used when the
// configuration does not override it.
func DefaultQuotaLimits() *QuotaLimits {
	return NewQuotaLimits(map[Plan]map[QuotaKey]int64{
		PlanFree: {
			QuotaKeyGenerate: 3,
			QuotaKeyPublish:  1,
		},
		PlanBasic: {
			QuotaKeyGenerate: 50,
			QuotaKeyPublish:  25,
		},
		PlanPro: {
			QuotaKeyGenerate: 500,
			QuotaKeyPublish:  250,
		},
		PlanEnterprise: {
			QuotaKeyGenerate: 5000,
			QuotaKeyPublish:  2500,
		},
	})
}

// QuotaLimitsWithOverrides layers configured overrides on top of the
// built-in table. Plans or keys absent from the overrides keep their
// built-in limits; unknown plan or key names are dropped.
func QuotaLimitsWithOverrides(overrides map[string]map[string]int64) *QuotaLimits {
	base := DefaultQuotaLimits()
	for planName, perKey := range overrides {
		plan := Plan(strings.ToLower(strings.TrimSpace(planName)))
		if !plan.IsValid() {
			continue
		}
		row, ok := base.limits[plan]
		if !ok {
			row = make(map[QuotaKey]int64, len(perKey))
			base.limits[plan] = row
		}
		for keyName, limit := range perKey {
			key := QuotaKey(strings.ToLower(strings.TrimSpace(keyName)))
			if !key.IsValid() {
				continue
			}
			row[key] = limit
		}
	}
	return base
}

// LimitFor returns the limit for a (plan, key) pair. Missing entries return
// 0, which callers treat as "operation not available on this plan".
func (q *QuotaLimits) LimitFor(plan Plan, key QuotaKey) int64 {
	if row, ok := q.limits[plan]; ok {
		return row[key]
	}
	return 0
}

// CounterKey identifies a single usage counter row. ProjectID is uuid.Nil
// for operations not scoped to a project; using a sentinel instead of NULL
// keeps the (user, project, key, period) uniqueness constraint simple.
type CounterKey struct {
	UserID    uuid.UUID
	ProjectID uuid.UUID
	QuotaKey  QuotaKey
	PeriodEnd time.Time
}

// UsageCounter is a per-(user, project, quota key, period) increment-only
// counter. Rows are created lazily on first commit; absence means zero usage.
type UsageCounter struct {
	shared.BaseEntity
	UserID    uuid.UUID
	ProjectID uuid.UUID
	QuotaKey  QuotaKey
	PeriodEnd time.Time
	Count     int64
}

// QuotaCheckResult is the outcome of a quota evaluation
type QuotaCheckResult struct {
	Allowed   bool      `json:"allowed"`
	Plan      Plan      `json:"plan"`
	QuotaKey  QuotaKey  `json:"quota_key"`
	Used      int64     `json:"used"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	PeriodEnd time.Time `json:"period_end"`
}

// EvaluateQuota applies the quota decision rule: the operation is allowed
// while used is strictly below limit. used == limit is a rejection; a limit
// of zero or below rejects unconditionally.
func EvaluateQuota(plan Plan, key QuotaKey, used, limit int64, periodEnd time.Time) QuotaCheckResult {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return QuotaCheckResult{
		Allowed:   limit > 0 && used < limit,
		Plan:      plan,
		QuotaKey:  key,
		Used:      used,
		Limit:     limit,
		Remaining: remaining,
		PeriodEnd: periodEnd,
	}
}
