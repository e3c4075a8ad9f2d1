package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateQuota(t *testing.T) {
	periodEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		used          int64
		limit         int64
		wantAllowed   bool
		wantRemaining int64
	}{
		{"well under limit", 2, 50, true, 48},
		{"one below limit allowed", 49, 50, true, 1},
		{"exactly at limit rejected", 50, 50, false, 0},
		{"over limit rejected", 51, 50, false, 0},
		{"zero limit rejects unconditionally", 0, 0, false, 0},
		{"negative limit rejects unconditionally", 0, -1, false, 0},
		{"fresh counter on free plan", 0, 3, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EvaluateQuota(PlanBasic, QuotaKeyGenerate, tt.used, tt.limit, periodEnd)

			assert.Equal(t, tt.wantAllowed, result.Allowed)
			assert.Equal(t, tt.wantRemaining, result.Remaining)
			assert.Equal(t, tt.used, result.Used)
			assert.Equal(t, tt.limit, result.Limit)
			assert.True(t, result.PeriodEnd.Equal(periodEnd))
		})
	}
}

func TestDefaultQuotaLimits(t *testing.T) {
	limits := DefaultQuotaLimits()

	assert.Equal(t, int64(3), limits.LimitFor(PlanFree, QuotaKeyGenerate))
	assert.Equal(t, int64(1), limits.LimitFor(PlanFree, QuotaKeyPublish))
	assert.Equal(t, int64(50), limits.LimitFor(PlanBasic, QuotaKeyGenerate))
	assert.Equal(t, int64(500), limits.LimitFor(PlanPro, QuotaKeyGenerate))
	assert.Equal(t, int64(2500), limits.LimitFor(PlanEnterprise, QuotaKeyPublish))
}

func TestQuotaLimits_MissingEntriesReturnZero(t *testing.T) {
	limits := NewQuotaLimits(map[Plan]map[QuotaKey]int64{
		PlanBasic: {QuotaKeyGenerate: 10},
	})

	assert.Equal(t, int64(0), limits.LimitFor(PlanBasic, QuotaKeyPublish))
	assert.Equal(t, int64(0), limits.LimitFor(PlanPro, QuotaKeyGenerate))
}

func TestNewQuotaLimits_DropsInvalidEntries(t *testing.T) {
	limits := NewQuotaLimits(map[Plan]map[QuotaKey]int64{
		Plan("gold"): {QuotaKeyGenerate: 100},
		PlanBasic:    {QuotaKey("teleport"): 100, QuotaKeyPublish: 7},
	})

	assert.Equal(t, int64(0), limits.LimitFor(Plan("gold"), QuotaKeyGenerate))
	assert.Equal(t, int64(0), limits.LimitFor(PlanBasic, QuotaKey("teleport")))
	assert.Equal(t, int64(7), limits.LimitFor(PlanBasic, QuotaKeyPublish))
}

func TestQuotaLimitsWithOverrides(t *testing.T) {
	limits := QuotaLimitsWithOverrides(map[string]map[string]int64{
		"Pro": {"generate": 1000},
		"vip": {"generate": 9},
		"basic": {
			"publish":  40,
			"teleport": 5,
		},
	})

	assert.Equal(t, int64(1000), limits.LimitFor(PlanPro, QuotaKeyGenerate), "override wins")
	assert.Equal(t, int64(250), limits.LimitFor(PlanPro, QuotaKeyPublish), "untouched key keeps default")
	assert.Equal(t, int64(40), limits.LimitFor(PlanBasic, QuotaKeyPublish))
	assert.Equal(t, int64(50), limits.LimitFor(PlanBasic, QuotaKeyGenerate))
	assert.Equal(t, int64(3), limits.LimitFor(PlanFree, QuotaKeyGenerate), "absent plan keeps defaults")
	assert.Equal(t, int64(0), limits.LimitFor(PlanBasic, QuotaKey("teleport")), "unknown key dropped")
	assert.Equal(t, int64(0), limits.LimitFor(Plan("vip"), QuotaKeyGenerate), "unknown plan dropped")
}

func TestQuotaKey_IsValid(t *testing.T) {
	assert.True(t, QuotaKeyGenerate.IsValid())
	assert.True(t, QuotaKeyPublish.IsValid())
	assert.False(t, QuotaKey("deploy").IsValid())
	assert.False(t, QuotaKey("").IsValid())
}
