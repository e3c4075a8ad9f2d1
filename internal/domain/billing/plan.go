package billing

import "strings"

// Plan represents the canonical entitlement tier of a user
type Plan string

const (
	PlanFree       Plan = "free"
	PlanBasic      Plan = "basic"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// String returns the string representation of the plan
func (p Plan) String() string {
	return string(p)
}

// IsValid returns true if the plan is a known tier
func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanBasic, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// IsPaid returns true for any tier above free
func (p Plan) IsPaid() bool {
	return p.IsValid() && p != PlanFree
}

// planAliases folds legacy marketing names onto canonical tiers. Checkout
// metadata written by older frontend versions still carries these.
var planAliases = map[string]Plan{
	"starter":      PlanBasic,
	"premium":      PlanPro,
	"professional": PlanPro,
	"business":     PlanEnterprise,
}

// NormalizePlan maps an arbitrary plan string to a canonical Plan.
// Unrecognized values fold to PlanFree; the function never fails.
func NormalizePlan(s string) Plan {
	name := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := planAliases[name]; ok {
		return alias
	}
	plan := Plan(name)
	if plan.IsValid() {
		return plan
	}
	return PlanFree
}

// PlanResolver resolves the canonical plan from the signals a provider event
// carries. It is pure and total: every input combination yields a defined
// plan, never an error.
type PlanResolver struct {
	priceToPlan map[string]Plan
}

// NewPlanResolver creates a resolver backed by a price-ID-to-plan table
// (typically built from the Stripe price configuration).
func NewPlanResolver(priceToPlan map[string]Plan) *PlanResolver {
	table := make(map[string]Plan, len(priceToPlan))
	for priceID, plan := range priceToPlan {
		if priceID == "" || !plan.IsValid() {
			continue
		}
		table[priceID] = plan
	}
	return &PlanResolver{priceToPlan: table}
}

// Resolve maps a (metadata plan hint, price ID) pair to a canonical plan.
//
// Precedence: a metadata hint that normalizes to a paid tier wins because it
// is the most direct signal of intent; otherwise the price table is
// authoritative; otherwise free. Metadata may be stale or absent on some
// event types, which is why a free-normalizing hint falls through to the
// price lookup instead of being trusted.
func (r *PlanResolver) Resolve(metadataHint, priceID string) Plan {
	if metadataHint != "" {
		if plan := NormalizePlan(metadataHint); plan.IsPaid() {
			return plan
		}
	}
	if priceID != "" {
		if plan, ok := r.priceToPlan[priceID]; ok {
			return plan
		}
	}
	return PlanFree
}

// PlanForPrice returns the plan mapped to a price ID, or free when unmapped.
func (r *PlanResolver) PlanForPrice(priceID string) Plan {
	if plan, ok := r.priceToPlan[priceID]; ok {
		return plan
	}
	return PlanFree
}
