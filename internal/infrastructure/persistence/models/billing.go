package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sitekit/backend/internal/domain/billing"
	"github.com/sitekit/backend/internal/domain/shared"
)

// BillingProfileModel is the persistence model for CustomerBillingProfile.
// LastEventID defaults to the empty string rather than NULL so the
// conditional-update dedupe predicate stays a plain inequality.
type BillingProfileModel struct {
	AggregateModel
	UserID               uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	Plan                 string     `gorm:"type:varchar(20);not null;default:'free'"`
	SubscriptionStatus   string     `gorm:"type:varchar(30);not null;default:'none'"`
	StripeCustomerID     *string    `gorm:"type:varchar(255);uniqueIndex"`
	StripeSubscriptionID *string    `gorm:"type:varchar(255);index"`
	StripePriceID        *string    `gorm:"type:varchar(255)"`
	CurrentPeriodEnd     *time.Time `gorm:"index"`
	LastEventID          string     `gorm:"type:varchar(255);not null"`
}

// TableName returns the table name for GORM
func (BillingProfileModel) TableName() string {
	return "billing_profiles"
}

// ToDomain converts the persistence model to a domain CustomerBillingProfile
func (m *BillingProfileModel) ToDomain() *billing.CustomerBillingProfile {
	return &billing.CustomerBillingProfile{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		UserID:               m.UserID,
		Plan:                 billing.Plan(m.Plan),
		SubscriptionStatus:   billing.SubscriptionStatus(m.SubscriptionStatus),
		StripeCustomerID:     m.StripeCustomerID,
		StripeSubscriptionID: m.StripeSubscriptionID,
		StripePriceID:        m.StripePriceID,
		CurrentPeriodEnd:     m.CurrentPeriodEnd,
		LastEventID:          m.LastEventID,
	}
}

// FromDomain populates the persistence model from a domain CustomerBillingProfile
func (m *BillingProfileModel) FromDomain(p *billing.CustomerBillingProfile) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.UserID = p.UserID
	m.Plan = p.Plan.String()
	m.SubscriptionStatus = p.SubscriptionStatus.String()
	m.StripeCustomerID = p.StripeCustomerID
	m.StripeSubscriptionID = p.StripeSubscriptionID
	m.StripePriceID = p.StripePriceID
	m.CurrentPeriodEnd = p.CurrentPeriodEnd
	m.LastEventID = p.LastEventID
}

// BillingProfileModelFromDomain creates a persistence model from a domain profile
func BillingProfileModelFromDomain(p *billing.CustomerBillingProfile) *BillingProfileModel {
	m := &BillingProfileModel{}
	m.FromDomain(p)
	return m
}

// UsageCounterModel is the persistence model for UsageCounter.
// ProjectID stores uuid.Nil for counters not scoped to a project, keeping
// the composite uniqueness constraint free of NULL semantics.
type UsageCounterModel struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_usage_counter,priority:1;index"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_usage_counter,priority:2"`
	QuotaKey  string    `gorm:"type:varchar(50);not null;uniqueIndex:ux_usage_counter,priority:3"`
	PeriodEnd time.Time `gorm:"not null;uniqueIndex:ux_usage_counter,priority:4"`
	Count     int64     `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (UsageCounterModel) TableName() string {
	return "usage_counters"
}

// ToDomain converts the persistence model to a domain UsageCounter
func (m *UsageCounterModel) ToDomain() *billing.UsageCounter {
	return &billing.UsageCounter{
		BaseEntity: m.BaseModel.ToDomain(),
		UserID:     m.UserID,
		ProjectID:  m.ProjectID,
		QuotaKey:   billing.QuotaKey(m.QuotaKey),
		PeriodEnd:  m.PeriodEnd,
		Count:      m.Count,
	}
}
