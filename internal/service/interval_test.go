package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxmarket/availability-api/internal/models"
)

func TestIntervalIntersects(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := interval{start: base, end: base.Add(2 * time.Hour)}

	t.Run("overlapping", func(t *testing.T) {
		b := interval{start: base.Add(time.Hour), end: base.Add(3 * time.Hour)}
		assert.True(t, a.intersects(b))
		assert.True(t, b.intersects(a))
	})

	t.Run("contained", func(t *testing.T) {
		b := interval{start: base.Add(30 * time.Minute), end: base.Add(time.Hour)}
		assert.True(t, a.intersects(b))
	})

	t.Run("touching endpoints do not intersect", func(t *testing.T) {
		b := interval{start: base.Add(2 * time.Hour), end: base.Add(3 * time.Hour)}
		assert.False(t, a.intersects(b))
		assert.False(t, b.intersects(a))
	})

	t.Run("disjoint", func(t *testing.T) {
		b := interval{start: base.Add(5 * time.Hour), end: base.Add(6 * time.Hour)}
		assert.False(t, a.intersects(b))
	})
}

func TestParseClock(t *testing.T) {
	hour, minute, ok := parseClock("09:30")
	require.True(t, ok)
	assert.Equal(t, 9, hour)
	assert.Equal(t, 30, minute)

	for _, raw := range []string{"", "9", "09:30:00", "ab:cd", "9:"} {
		_, _, ok := parseClock(raw)
		assert.False(t, ok, "expected %q to be rejected", raw)
	}
}

func TestWeekdayOf(t *testing.T) {
	// 2026-03-01 is a Sunday.
	sunday := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, weekdayOf(sunday))
	assert.Equal(t, 2, weekdayOf(sunday.AddDate(0, 0, 1)))
	assert.Equal(t, 7, weekdayOf(sunday.AddDate(0, 0, 6)))
}

func TestProjectRule(t *testing.T) {
	rule := models.RecurringRule{DayOfWeek: 2, StartTime: "09:00", EndTime: "17:00"}
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	iv, ok := projectRule(rule, monday)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), iv.start)
	assert.Equal(t, time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC), iv.end)

	_, ok = projectRule(models.RecurringRule{StartTime: "bad", EndTime: "17:00"}, monday)
	assert.False(t, ok)
}

func TestRuleAppliesOn(t *testing.T) {
	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	t.Run("weekday mismatch", func(t *testing.T) {
		rule := models.RecurringRule{DayOfWeek: 3, IsActive: true}
		assert.False(t, ruleAppliesOn(rule, monday))
	})

	t.Run("inactive", func(t *testing.T) {
		rule := models.RecurringRule{DayOfWeek: 2, IsActive: false}
		assert.False(t, ruleAppliesOn(rule, monday))
	})

	t.Run("valid until is inclusive of its day", func(t *testing.T) {
		until := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		rule := models.RecurringRule{DayOfWeek: 2, IsActive: true, ValidUntil: &until}
		assert.True(t, ruleAppliesOn(rule, monday))
	})

	t.Run("expired", func(t *testing.T) {
		until := time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC)
		rule := models.RecurringRule{DayOfWeek: 2, IsActive: true, ValidUntil: &until}
		assert.False(t, ruleAppliesOn(rule, monday))
	})

	t.Run("no expiry", func(t *testing.T) {
		rule := models.RecurringRule{DayOfWeek: 2, IsActive: true}
		assert.True(t, ruleAppliesOn(rule, monday))
	})
}
