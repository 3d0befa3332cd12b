package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fluxmarket/availability-api/internal/dto"
	"github.com/fluxmarket/availability-api/internal/models"
	appErrors "github.com/fluxmarket/availability-api/pkg/errors"
	"github.com/fluxmarket/availability-api/pkg/response"
)

type calendarService interface {
	LoadCalendar(ctx context.Context, providerID string, r models.DateRange) (*dto.CalendarResponse, error)
	RefreshCalendar(ctx context.Context, providerID string) (*dto.CalendarResponse, error)
	AddRecurringSlot(ctx context.Context, providerID string, req dto.CreateRecurringSlotRequest) error
	BlockTime(ctx context.Context, providerID string, req dto.BlockTimeRequest) error
	AddOneOffSlot(ctx context.Context, providerID string, req dto.OneOffSlotRequest) error
	DeleteEvent(ctx context.Context, providerID, eventID string) error
	MaxDuration(providerID string, start time.Time) (*dto.MaxDurationResponse, error)
}

// AvailabilityHandler exposes the provider calendar endpoints.
type AvailabilityHandler struct {
	service calendarService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(service calendarService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// GetCalendar godoc
// @Summary Resolve a provider calendar for a date range
// @Tags Calendar
// @Produce json
// @Param providerID path string true "Provider ID"
// @Param start_date query string true "Range start (YYYY-MM-DD)"
// @Param end_date query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /providers/{providerID}/calendar [get]
func (h *AvailabilityHandler) GetCalendar(c *gin.Context) {
	r, err := rangeFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.LoadCalendar(c.Request.Context(), c.Param("providerID"), r)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RefreshCalendar godoc
// @Summary Re-resolve the last loaded range
// @Tags Calendar
// @Produce json
// @Param providerID path string true "Provider ID"
// @Success 200 {object} response.Envelope
// @Router /providers/{providerID}/calendar/refresh [post]
func (h *AvailabilityHandler) RefreshCalendar(c *gin.Context) {
	result, err := h.service.RefreshCalendar(c.Request.Context(), c.Param("providerID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CreateRecurringSlot godoc
// @Summary Add a weekly availability rule or repeating block
// @Tags Calendar
// @Accept json
// @Produce json
// @Param providerID path string true "Provider ID"
// @Param payload body dto.CreateRecurringSlotRequest true "Rule"
// @Success 201 {object} response.Envelope
// @Router /providers/{providerID}/calendar/recurring [post]
func (h *AvailabilityHandler) CreateRecurringSlot(c *gin.Context) {
	var req dto.CreateRecurringSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid recurring slot payload"))
		return
	}
	if err := h.service.AddRecurringSlot(c.Request.Context(), c.Param("providerID"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"status": "created"})
}

// CreateBlock godoc
// @Summary Block a single time interval
// @Tags Calendar
// @Accept json
// @Produce json
// @Param providerID path string true "Provider ID"
// @Param payload body dto.BlockTimeRequest true "Block"
// @Success 201 {object} response.Envelope
// @Router /providers/{providerID}/calendar/blocks [post]
func (h *AvailabilityHandler) CreateBlock(c *gin.Context) {
	var req dto.BlockTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid block payload"))
		return
	}
	if err := h.service.BlockTime(c.Request.Context(), c.Param("providerID"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"status": "created"})
}

// CreateOneOffSlot godoc
// @Summary Add a one-off availability slot
// @Tags Calendar
// @Accept json
// @Produce json
// @Param providerID path string true "Provider ID"
// @Param payload body dto.OneOffSlotRequest true "Slot"
// @Success 201 {object} response.Envelope
// @Router /providers/{providerID}/calendar/slots [post]
func (h *AvailabilityHandler) CreateOneOffSlot(c *gin.Context) {
	var req dto.OneOffSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid one-off slot payload"))
		return
	}
	if err := h.service.AddOneOffSlot(c.Request.Context(), c.Param("providerID"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"status": "created"})
}

// DeleteEvent godoc
// @Summary Delete the record backing a resolved calendar event
// @Tags Calendar
// @Produce json
// @Param providerID path string true "Provider ID"
// @Param eventID path string true "Event ID"
// @Success 204
// @Router /providers/{providerID}/calendar/events/{eventID} [delete]
func (h *AvailabilityHandler) DeleteEvent(c *gin.Context) {
	if err := h.service.DeleteEvent(c.Request.Context(), c.Param("providerID"), c.Param("eventID")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MaxDuration godoc
// @Summary Longest bookable duration from a start instant
// @Tags Calendar
// @Produce json
// @Param providerID path string true "Provider ID"
// @Param start query string true "Start instant (RFC3339)"
// @Success 200 {object} response.Envelope
// @Router /providers/{providerID}/calendar/max-duration [get]
func (h *AvailabilityHandler) MaxDuration(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start must be an RFC3339 timestamp"))
		return
	}

	result, err := h.service.MaxDuration(c.Param("providerID"), start)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// rangeFromQuery parses the required start_date/end_date query pair. The end
// date is widened to the last instant of its day so the range stays closed.
func rangeFromQuery(c *gin.Context) (models.DateRange, error) {
	from, err := time.Parse("2006-01-02", c.Query("start_date"))
	if err != nil {
		return models.DateRange{}, appErrors.Clone(appErrors.ErrValidation, "start_date must be formatted YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", c.Query("end_date"))
	if err != nil {
		return models.DateRange{}, appErrors.Clone(appErrors.ErrValidation, "end_date must be formatted YYYY-MM-DD")
	}
	to = to.Add(24*time.Hour - time.Nanosecond)
	return models.DateRange{From: from, To: to}, nil
}
