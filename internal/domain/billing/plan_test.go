package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePlan(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Plan
	}{
		{"canonical free", "free", PlanFree},
		{"canonical basic", "basic", PlanBasic},
		{"canonical pro", "pro", PlanPro},
		{"canonical enterprise", "enterprise", PlanEnterprise},
		{"legacy starter alias", "starter", PlanBasic},
		{"legacy premium alias", "premium", PlanPro},
		{"legacy professional alias", "professional", PlanPro},
		{"legacy business alias", "business", PlanEnterprise},
		{"mixed case", "Pro", PlanPro},
		{"surrounding whitespace", "  basic  ", PlanBasic},
		{"unknown value folds to free", "platinum", PlanFree},
		{"empty string folds to free", "", PlanFree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePlan(tt.input))
		})
	}
}

func TestPlanResolver_Resolve(t *testing.T) {
	resolver := NewPlanResolver(map[string]Plan{
		"price_basic_monthly": PlanBasic,
		"price_pro_monthly":   PlanPro,
		"price_ent_yearly":    PlanEnterprise,
	})

	t.Run("paid metadata hint wins over price table", func(t *testing.T) {
		got := resolver.Resolve("enterprise", "price_basic_monthly")
		assert.Equal(t, PlanEnterprise, got)
	})

	t.Run("alias hint resolves to canonical tier", func(t *testing.T) {
		got := resolver.Resolve("premium", "")
		assert.Equal(t, PlanPro, got)
	})

	t.Run("free-normalizing hint falls through to price", func(t *testing.T) {
		got := resolver.Resolve("something-unknown", "price_pro_monthly")
		assert.Equal(t, PlanPro, got)
	})

	t.Run("price table used when no hint", func(t *testing.T) {
		got := resolver.Resolve("", "price_ent_yearly")
		assert.Equal(t, PlanEnterprise, got)
	})

	t.Run("unmapped price folds to free", func(t *testing.T) {
		got := resolver.Resolve("", "price_deleted_legacy")
		assert.Equal(t, PlanFree, got)
	})

	t.Run("no signals yields free", func(t *testing.T) {
		got := resolver.Resolve("", "")
		assert.Equal(t, PlanFree, got)
	})
}

func TestNewPlanResolver_DropsInvalidEntries(t *testing.T) {
	resolver := NewPlanResolver(map[string]Plan{
		"":           PlanPro,
		"price_bad":  Plan("gold"),
		"price_good": PlanBasic,
	})

	assert.Equal(t, PlanBasic, resolver.PlanForPrice("price_good"))
	assert.Equal(t, PlanFree, resolver.PlanForPrice("price_bad"))
}

func TestPlan_IsPaid(t *testing.T) {
	assert.False(t, PlanFree.IsPaid())
	assert.True(t, PlanBasic.IsPaid())
	assert.True(t, PlanPro.IsPaid())
	assert.True(t, PlanEnterprise.IsPaid())
	assert.False(t, Plan("bogus").IsPaid())
}
