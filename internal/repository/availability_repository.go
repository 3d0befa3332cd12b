package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fluxmarket/availability-api/internal/models"
)

// AvailabilityRepository persists the four calendar record kinds. Bookings are
// read-only here; the booking flow owns their lifecycle.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// FetchRecurringRules returns all of a provider's weekly rules. Expiry and
// activity filtering happens at resolution time, not in the query, so stale
// rules remain visible to the rule management surface.
func (r *AvailabilityRepository) FetchRecurringRules(ctx context.Context, providerID string) ([]models.RecurringRule, error) {
	const query = `SELECT id, provider_id, day_of_week, start_time, end_time, is_active, valid_until, kind, created_at
FROM recurring_rules WHERE provider_id = $1 ORDER BY created_at ASC`
	rules := []models.RecurringRule{}
	if err := r.db.SelectContext(ctx, &rules, query, providerID); err != nil {
		return nil, fmt.Errorf("fetch recurring rules: %w", err)
	}
	return rules, nil
}

// FetchOneOffSlots returns one-off availability intersecting the range.
func (r *AvailabilityRepository) FetchOneOffSlots(ctx context.Context, providerID string, dr models.DateRange) ([]models.OneOffSlot, error) {
	const query = `SELECT id, provider_id, start_time, end_time, created_at
FROM one_off_slots WHERE provider_id = $1 AND end_time >= $2 AND start_time <= $3 ORDER BY start_time ASC`
	slots := []models.OneOffSlot{}
	if err := r.db.SelectContext(ctx, &slots, query, providerID, dr.From, dr.To); err != nil {
		return nil, fmt.Errorf("fetch one-off slots: %w", err)
	}
	return slots, nil
}

// FetchBlocks returns blocked intervals intersecting the range.
func (r *AvailabilityRepository) FetchBlocks(ctx context.Context, providerID string, dr models.DateRange) ([]models.BlockedInterval, error) {
	const query = `SELECT id, provider_id, start_time, end_time, reason, created_at
FROM blocked_intervals WHERE provider_id = $1 AND end_time >= $2 AND start_time <= $3 ORDER BY start_time ASC`
	blocks := []models.BlockedInterval{}
	if err := r.db.SelectContext(ctx, &blocks, query, providerID, dr.From, dr.To); err != nil {
		return nil, fmt.Errorf("fetch blocks: %w", err)
	}
	return blocks, nil
}

// FetchBookings returns bookings scheduled inside the range.
func (r *AvailabilityRepository) FetchBookings(ctx context.Context, providerID string, dr models.DateRange) ([]models.Booking, error) {
	const query = `SELECT id, seeker_id, provider_id, service_id, service_title, scheduled_at, status, created_at
FROM bookings WHERE provider_id = $1 AND scheduled_at >= $2 AND scheduled_at <= $3 ORDER BY scheduled_at ASC`
	bookings := []models.Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, providerID, dr.From, dr.To); err != nil {
		return nil, fmt.Errorf("fetch bookings: %w", err)
	}
	return bookings, nil
}

// CreateRecurringRule inserts a weekly rule.
func (r *AvailabilityRepository) CreateRecurringRule(ctx context.Context, rule *models.RecurringRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO recurring_rules (id, provider_id, day_of_week, start_time, end_time, is_active, valid_until, kind, created_at)
VALUES (:id, :provider_id, :day_of_week, :start_time, :end_time, :is_active, :valid_until, :kind, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("create recurring rule: %w", err)
	}
	return nil
}

// DeleteRecurringRule removes a provider's rule.
func (r *AvailabilityRepository) DeleteRecurringRule(ctx context.Context, providerID, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM recurring_rules WHERE id = $1 AND provider_id = $2", id, providerID); err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	return nil
}

// CreateOneOffSlot inserts a one-off availability slot.
func (r *AvailabilityRepository) CreateOneOffSlot(ctx context.Context, slot *models.OneOffSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO one_off_slots (id, provider_id, start_time, end_time, created_at)
VALUES (:id, :provider_id, :start_time, :end_time, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create one-off slot: %w", err)
	}
	return nil
}

// DeleteOneOffSlot removes a provider's one-off slot.
func (r *AvailabilityRepository) DeleteOneOffSlot(ctx context.Context, providerID, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM one_off_slots WHERE id = $1 AND provider_id = $2", id, providerID); err != nil {
		return fmt.Errorf("delete one-off slot: %w", err)
	}
	return nil
}

// CreateBlock inserts a blocked interval.
func (r *AvailabilityRepository) CreateBlock(ctx context.Context, block *models.BlockedInterval) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	if block.CreatedAt.IsZero() {
		block.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO blocked_intervals (id, provider_id, start_time, end_time, reason, created_at)
VALUES (:id, :provider_id, :start_time, :end_time, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, block); err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	return nil
}

// DeleteBlock removes a provider's blocked interval.
func (r *AvailabilityRepository) DeleteBlock(ctx context.Context, providerID, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM blocked_intervals WHERE id = $1 AND provider_id = $2", id, providerID); err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	return nil
}
