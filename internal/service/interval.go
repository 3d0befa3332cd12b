package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/fluxmarket/availability-api/internal/models"
)

// interval is a half-open-agnostic time span. Intersection uses the
// convention that touching endpoints do not overlap, so [9,10) and [10,11)
// never conflict.
type interval struct {
	start time.Time
	end   time.Time
}

func (a interval) intersects(b interval) bool {
	return !(!a.end.After(b.start) || !b.end.After(a.start))
}

// weekdayOf maps a date to the 1-7 convention the mobile clients persist
// (1 = Sunday).
func weekdayOf(t time.Time) int {
	return int(t.Weekday()) + 1
}

// parseClock splits a wall-clock string on ":" and requires exactly two
// integer components, accepting "9:00" and "09:00" alike. No range checking
// beyond integer parsing; the store has always held well-formed values and
// malformed ones are skipped at projection time rather than rejected.
func parseClock(raw string) (hour, minute int, ok bool) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return hour, minute, true
}

// projectRule places a recurring rule's wall-clock times onto the given
// date's year/month/day in that date's location. Returns ok=false when either
// time string is malformed; an end-before-start rule projects to an inverted
// interval that downstream intersection checks treat as empty.
func projectRule(rule models.RecurringRule, date time.Time) (interval, bool) {
	startHour, startMin, ok := parseClock(rule.StartTime)
	if !ok {
		return interval{}, false
	}
	endHour, endMin, ok := parseClock(rule.EndTime)
	if !ok {
		return interval{}, false
	}

	year, month, day := date.Date()
	loc := date.Location()
	return interval{
		start: time.Date(year, month, day, startHour, startMin, 0, 0, loc),
		end:   time.Date(year, month, day, endHour, endMin, 0, 0, loc),
	}, true
}

// ruleAppliesOn reports whether a rule is in force on the given day: active,
// matching weekday, and not expired past its inclusive validUntil date.
func ruleAppliesOn(rule models.RecurringRule, day time.Time) bool {
	if !rule.IsActive {
		return false
	}
	if rule.DayOfWeek != weekdayOf(day) {
		return false
	}
	return !ruleExpiredOn(rule, day)
}

func ruleExpiredOn(rule models.RecurringRule, day time.Time) bool {
	if rule.ValidUntil == nil {
		return false
	}
	y, m, d := day.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	vy, vm, vd := rule.ValidUntil.Date()
	validEnd := time.Date(vy, vm, vd, 0, 0, 0, 0, day.Location())
	return validEnd.Before(dayStart)
}

// startOfDay truncates to local midnight.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// endOfDay is the first instant of the following day.
func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1)
}
