package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/fluxmarket/availability-api/internal/models"
)

const (
	minBookableHours = 1
	maxBookableHours = 8

	titleAvailable      = "Available"
	titleRepeatingBlock = "Repeating Block"
	titleBlocked        = "Blocked"
)

// recordSets bundles the four independently fetched sources of truth for one
// provider. Resolution is the only place these are correlated, and always by
// time overlap, never by reference.
type recordSets struct {
	rules    []models.RecurringRule
	oneOffs  []models.OneOffSlot
	blocks   []models.BlockedInterval
	bookings []models.Booking
}

// resolveEvents merges the four record sets into a single event list for the
// closed range. Order is insertion order: recurring-derived events day by day,
// then one-off availability, then blocks, then bookings.
//
// A recurring or one-off availability interval that intersects any persisted
// block is suppressed whole, never split around the block. Recurring
// blocked-kind rules are deliberately not part of the exclusion list; only
// standalone blocks suppress availability.
func resolveEvents(r models.DateRange, sets recordSets, bookingDuration time.Duration) []models.CalendarEvent {
	events := make([]models.CalendarEvent, 0, len(sets.rules)+len(sets.oneOffs)+len(sets.blocks)+len(sets.bookings))

	blocked := make([]interval, 0, len(sets.blocks))
	for _, b := range sets.blocks {
		blocked = append(blocked, interval{start: b.StartTime, end: b.EndTime})
	}

	for day := r.From; !day.After(r.To); day = day.AddDate(0, 0, 1) {
		for _, rule := range sets.rules {
			if !ruleAppliesOn(rule, day) {
				continue
			}
			iv, ok := projectRule(rule, day)
			if !ok || intersectsAny(iv, blocked) {
				continue
			}
			ev := models.CalendarEvent{
				ID:         uuid.NewString(),
				Title:      titleAvailable,
				Start:      iv.start,
				End:        iv.end,
				Type:       models.EventAvailability,
				SourceKind: models.SourceRecurringRule,
				SourceID:   rule.ID,
			}
			if rule.EffectiveKind() == models.SlotKindBlocked {
				reason := titleRepeatingBlock
				ev.Title = titleRepeatingBlock
				ev.Type = models.EventBlocked
				ev.BlockReason = &reason
			}
			events = append(events, ev)
		}
	}

	for _, slot := range sets.oneOffs {
		iv := interval{start: slot.StartTime, end: slot.EndTime}
		if intersectsAny(iv, blocked) {
			continue
		}
		events = append(events, models.CalendarEvent{
			ID:         slot.ID,
			Title:      titleAvailable,
			Start:      slot.StartTime,
			End:        slot.EndTime,
			Type:       models.EventAvailability,
			SourceKind: models.SourceOneOffSlot,
			SourceID:   slot.ID,
		})
	}

	for _, block := range sets.blocks {
		title := titleBlocked
		if block.Reason != nil && *block.Reason != "" {
			title = *block.Reason
		}
		events = append(events, models.CalendarEvent{
			ID:          block.ID,
			Title:       title,
			Start:       block.StartTime,
			End:         block.EndTime,
			Type:        models.EventBlocked,
			BlockReason: block.Reason,
			SourceKind:  models.SourceBlock,
			SourceID:    block.ID,
		})
	}

	for _, booking := range sets.bookings {
		events = append(events, models.CalendarEvent{
			ID:            booking.ID,
			Title:         booking.ServiceTitle,
			Start:         booking.ScheduledAt,
			End:           booking.ScheduledAt.Add(bookingDuration),
			Type:          models.EventBooking,
			BookingStatus: booking.Status,
			SourceKind:    models.SourceBooking,
			SourceID:      booking.ID,
		})
	}

	return events
}

func intersectsAny(iv interval, others []interval) bool {
	for _, other := range others {
		if iv.intersects(other) {
			return true
		}
	}
	return false
}

// hasAvailabilityOverlap reports whether the candidate interval intersects any
// one-off availability slot or any in-force recurring available-kind rule
// projected onto the candidate's start date.
func hasAvailabilityOverlap(sets recordSets, start, end time.Time) bool {
	candidate := interval{start: start, end: end}
	for _, slot := range sets.oneOffs {
		if candidate.intersects(interval{start: slot.StartTime, end: slot.EndTime}) {
			return true
		}
	}
	return overlapsRecurring(sets.rules, models.SlotKindAvailable, candidate)
}

// hasBlockingOverlap reports whether the candidate interval intersects any
// persisted block or any in-force recurring blocked-kind rule projected onto
// the candidate's start date.
func hasBlockingOverlap(sets recordSets, start, end time.Time) bool {
	candidate := interval{start: start, end: end}
	for _, block := range sets.blocks {
		if candidate.intersects(interval{start: block.StartTime, end: block.EndTime}) {
			return true
		}
	}
	return overlapsRecurring(sets.rules, models.SlotKindBlocked, candidate)
}

func overlapsRecurring(rules []models.RecurringRule, kind models.SlotKind, candidate interval) bool {
	for _, rule := range rules {
		if rule.EffectiveKind() != kind {
			continue
		}
		if !ruleAppliesOn(rule, candidate.start) {
			continue
		}
		iv, ok := projectRule(rule, candidate.start)
		if !ok {
			continue
		}
		if candidate.intersects(iv) {
			return true
		}
	}
	return false
}

// maxDurationHours bounds how long a booking starting at the given instant may
// run: the remainder of the day, shrunk to the nearest subsequent boundary
// among blocks, bookings, one-off slots, and recurring rules projected onto
// the same day, floored to whole hours and clamped to [1, 8].
func maxDurationHours(sets recordSets, start time.Time) int {
	ceiling := endOfDay(start).Sub(start)

	shrink := func(boundary time.Time) {
		if boundary.After(start) {
			if gap := boundary.Sub(start); gap < ceiling {
				ceiling = gap
			}
		}
	}

	for _, block := range sets.blocks {
		shrink(block.StartTime)
	}
	for _, booking := range sets.bookings {
		shrink(booking.ScheduledAt)
	}
	for _, slot := range sets.oneOffs {
		shrink(slot.StartTime)
	}
	for _, rule := range sets.rules {
		if !ruleAppliesOn(rule, start) {
			continue
		}
		if iv, ok := projectRule(rule, start); ok {
			shrink(iv.start)
		}
	}

	hours := int(ceiling / time.Hour)
	if hours < minBookableHours {
		return minBookableHours
	}
	if hours > maxBookableHours {
		return maxBookableHours
	}
	return hours
}
