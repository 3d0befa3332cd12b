package models

import "time"

// SlotKind discriminates recurring rules between open hours and repeating blocks.
// An empty kind is treated as available; older records in the Flux store predate
// the field.
type SlotKind string

const (
	SlotKindAvailable SlotKind = "available"
	SlotKindBlocked   SlotKind = "blocked"
)

// RecurringRule is a weekly-repeating availability declaration. DayOfWeek uses
// the 1-7 convention of the mobile clients (1 = Sunday); StartTime/EndTime are
// wall-clock "HH:mm" strings interpreted in the provider's local time when
// projected onto a concrete date.
type RecurringRule struct {
	ID         string     `db:"id" json:"id"`
	ProviderID string     `db:"provider_id" json:"provider_id"`
	DayOfWeek  int        `db:"day_of_week" json:"day_of_week"`
	StartTime  string     `db:"start_time" json:"start_time"`
	EndTime    string     `db:"end_time" json:"end_time"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	ValidUntil *time.Time `db:"valid_until" json:"valid_until,omitempty"`
	Kind       SlotKind   `db:"kind" json:"kind,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// EffectiveKind resolves the backward-compatible empty kind.
func (r RecurringRule) EffectiveKind() SlotKind {
	if r.Kind == SlotKindBlocked {
		return SlotKindBlocked
	}
	return SlotKindAvailable
}

// OneOffSlot is a single non-repeating available interval, an explicit
// exception outside the weekly pattern.
type OneOffSlot struct {
	ID         string    `db:"id" json:"id"`
	ProviderID string    `db:"provider_id" json:"provider_id"`
	StartTime  time.Time `db:"start_time" json:"start_time"`
	EndTime    time.Time `db:"end_time" json:"end_time"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// BlockedInterval is a single non-repeating unavailable interval (vacation,
// personal time).
type BlockedInterval struct {
	ID         string    `db:"id" json:"id"`
	ProviderID string    `db:"provider_id" json:"provider_id"`
	StartTime  time.Time `db:"start_time" json:"start_time"`
	EndTime    time.Time `db:"end_time" json:"end_time"`
	Reason     *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// BookingStatus mirrors the status strings written by the booking flow.
type BookingStatus string

const (
	BookingRequested  BookingStatus = "Requested"
	BookingAccepted   BookingStatus = "Accepted"
	BookingInProgress BookingStatus = "InProgress"
	BookingCompleted  BookingStatus = "Completed"
	BookingRejected   BookingStatus = "Rejected"
	BookingCanceled   BookingStatus = "Canceled"
	BookingPending    BookingStatus = "Pending"
)

// Booking is a confirmed appointment owned by the booking flow. The calendar
// consumes it read-only; there is no stored duration, rendering assumes a fixed
// one-hour window from ScheduledAt.
type Booking struct {
	ID           string        `db:"id" json:"id"`
	SeekerID     string        `db:"seeker_id" json:"seeker_id"`
	ProviderID   string        `db:"provider_id" json:"provider_id"`
	ServiceID    string        `db:"service_id" json:"service_id"`
	ServiceTitle string        `db:"service_title" json:"service_title"`
	ScheduledAt  time.Time     `db:"scheduled_at" json:"scheduled_at"`
	Status       BookingStatus `db:"status" json:"status"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// EventType discriminates the resolved calendar event union.
type EventType string

const (
	EventBooking      EventType = "booking"
	EventAvailability EventType = "availability"
	EventBlocked      EventType = "blocked"
)

// EventSource names the record kind a resolved event was derived from.
type EventSource string

const (
	SourceRecurringRule EventSource = "recurring_rule"
	SourceOneOffSlot    EventSource = "one_off_slot"
	SourceBlock         EventSource = "block"
	SourceBooking       EventSource = "booking"
)

// CalendarEvent is the derived, never-persisted projection merging all four
// record kinds. Type is the discriminant; BookingStatus is set only for
// booking events and BlockReason only for blocked events. SourceKind/SourceID
// back-reference the originating record so deletions dispatch without a lookup
// scan.
type CalendarEvent struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Start         time.Time     `json:"start"`
	End           time.Time     `json:"end"`
	Type          EventType     `json:"type"`
	BookingStatus BookingStatus `json:"booking_status,omitempty"`
	BlockReason   *string       `json:"block_reason,omitempty"`
	SourceKind    EventSource   `json:"source_kind"`
	SourceID      string        `json:"source_id,omitempty"`
}

// DateRange is a closed [From, To] range at instant granularity.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}
