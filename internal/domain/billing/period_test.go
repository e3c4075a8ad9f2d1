package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePeriod_UsesHintVerbatim(t *testing.T) {
	hint := time.Date(2026, 3, 17, 9, 30, 0, 0, time.UTC)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got := NormalizePeriod(&hint, now)

	assert.True(t, got.Equal(hint))
}

func TestNormalizePeriod_NilHintFallsBackToNextMonth(t *testing.T) {
	now := time.Date(2026, 3, 15, 18, 45, 12, 0, time.UTC)

	got := NormalizePeriod(nil, now)

	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestNormalizePeriod_ZeroHintTreatedAsAbsent(t *testing.T) {
	var hint time.Time
	now := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)

	got := NormalizePeriod(&hint, now)

	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestNormalizePeriod_DecemberRollsIntoNextYear(t *testing.T) {
	now := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)

	got := NormalizePeriod(nil, now)

	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestNormalizePeriod_NonUTCNowNormalizedBeforeBucketing(t *testing.T) {
	// 23:30 on Jan 31 in UTC+2 is 21:30 Jan 31 UTC, so the period is February.
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 1, 31, 23, 30, 0, 0, loc)

	got := NormalizePeriod(nil, now)

	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestNormalizePeriod_Deterministic(t *testing.T) {
	now := time.Date(2026, 8, 10, 4, 0, 0, 0, time.UTC)

	first := NormalizePeriod(nil, now)
	second := NormalizePeriod(nil, now)

	assert.Equal(t, first, second)
}
