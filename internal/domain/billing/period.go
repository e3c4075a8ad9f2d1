package billing

import "time"

// NormalizePeriod maps an optional provider-reported billing-cycle boundary to
// the canonical period end used to key usage counters.
//
// When the provider reported a cycle boundary it is trusted verbatim, so every
// quota operation inside one provider billing cycle lands on the same counter
// row. Without a hint (free-tier users have no provider cycle) the period ends
// at midnight UTC on the first day of the month after now, giving
// calendar-month quota resets.
//
// The function is pure and idempotent: the same inputs always yield the same
// boundary.
func NormalizePeriod(hint *time.Time, now time.Time) time.Time {
	if hint != nil && !hint.IsZero() {
		return *hint
	}
	year, month, _ := now.UTC().Date()
	// time.Date normalizes month 13 to January of the next year.
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
}
