package dto

import (
	"time"

	"github.com/fluxmarket/availability-api/internal/models"
)

// CreateRecurringSlotRequest adds a weekly availability rule or repeating
// block. Weeks, when present, bounds the rule to that many weeks from now.
type CreateRecurringSlotRequest struct {
	DayOfWeek int             `json:"day_of_week" validate:"required,min=1,max=7"`
	StartTime string          `json:"start_time" validate:"required"`
	EndTime   string          `json:"end_time" validate:"required"`
	Weeks     *int            `json:"weeks,omitempty" validate:"omitempty,min=1,max=52"`
	Kind      models.SlotKind `json:"kind,omitempty" validate:"omitempty,oneof=available blocked"`
}

// BlockTimeRequest blocks a single absolute interval.
type BlockTimeRequest struct {
	Start  time.Time `json:"start" validate:"required"`
	End    time.Time `json:"end" validate:"required"`
	Reason *string   `json:"reason,omitempty"`
}

// OneOffSlotRequest opens a single absolute interval outside the weekly
// pattern.
type OneOffSlotRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

// CalendarResponse is the resolved calendar published to consumers.
type CalendarResponse struct {
	ProviderID   string                 `json:"provider_id"`
	Range        models.DateRange       `json:"range"`
	Events       []models.CalendarEvent `json:"events"`
	IsLoading    bool                   `json:"is_loading"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// MaxDurationResponse bounds a prospective booking from a start instant.
type MaxDurationResponse struct {
	Start time.Time `json:"start"`
	Hours int       `json:"hours"`
}
