package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxmarket/availability-api/internal/models"
)

func newAvailabilityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestAvailabilityRepositoryFetchRecurringRules(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()

	repo := NewAvailabilityRepository(db)
	rows := sqlmock.NewRows([]string{"id", "provider_id", "day_of_week", "start_time", "end_time", "is_active", "valid_until", "kind", "created_at"}).
		AddRow("rule-1", "prov-1", 2, "09:00", "17:00", true, nil, "available", time.Now())
	mock.ExpectQuery("SELECT id, provider_id, day_of_week").
		WithArgs("prov-1").
		WillReturnRows(rows)

	rules, err := repo.FetchRecurringRules(context.Background(), "prov-1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 2, rules[0].DayOfWeek)
	assert.Equal(t, "09:00", rules[0].StartTime)
}

func TestAvailabilityRepositoryFetchBlocksFiltersByRange(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()

	repo := NewAvailabilityRepository(db)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 7, 23, 59, 59, 0, time.UTC)
	reason := "Vacation"
	rows := sqlmock.NewRows([]string{"id", "provider_id", "start_time", "end_time", "reason", "created_at"}).
		AddRow("block-1", "prov-1", from.Add(10*time.Hour), from.Add(12*time.Hour), &reason, time.Now())
	mock.ExpectQuery("SELECT id, provider_id, start_time, end_time, reason").
		WithArgs("prov-1", from, to).
		WillReturnRows(rows)

	blocks, err := repo.FetchBlocks(context.Background(), "prov-1", models.DateRange{From: from, To: to})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.NotNil(t, blocks[0].Reason)
	assert.Equal(t, "Vacation", *blocks[0].Reason)
}

func TestAvailabilityRepositoryFetchBookings(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()

	repo := NewAvailabilityRepository(db)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	rows := sqlmock.NewRows([]string{"id", "seeker_id", "provider_id", "service_id", "service_title", "scheduled_at", "status", "created_at"}).
		AddRow("booking-1", "seeker-1", "prov-1", "svc-1", "Haircut", from.Add(9*time.Hour), "Accepted", time.Now())
	mock.ExpectQuery("SELECT id, seeker_id, provider_id").
		WithArgs("prov-1", from, to).
		WillReturnRows(rows)

	bookings, err := repo.FetchBookings(context.Background(), "prov-1", models.DateRange{From: from, To: to})
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.BookingAccepted, bookings[0].Status)
	assert.Equal(t, "Haircut", bookings[0].ServiceTitle)
}

func TestAvailabilityRepositoryCreateRecurringRuleAssignsID(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()

	repo := NewAvailabilityRepository(db)
	mock.ExpectExec("INSERT INTO recurring_rules").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rule := &models.RecurringRule{
		ProviderID: "prov-1",
		DayOfWeek:  3,
		StartTime:  "10:00",
		EndTime:    "14:00",
		IsActive:   true,
		Kind:       models.SlotKindAvailable,
	}
	require.NoError(t, repo.CreateRecurringRule(context.Background(), rule))
	assert.NotEmpty(t, rule.ID)
	assert.False(t, rule.CreatedAt.IsZero())
}

func TestAvailabilityRepositoryCreateBlock(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()

	repo := NewAvailabilityRepository(db)
	mock.ExpectExec("INSERT INTO blocked_intervals").
		WillReturnResult(sqlmock.NewResult(1, 1))

	start := time.Date(2026, 3, 4, 13, 0, 0, 0, time.UTC)
	block := &models.BlockedInterval{
		ProviderID: "prov-1",
		StartTime:  start,
		EndTime:    start.Add(2 * time.Hour),
	}
	require.NoError(t, repo.CreateBlock(context.Background(), block))
	assert.NotEmpty(t, block.ID)
}

func TestAvailabilityRepositoryDeleteScopedToProvider(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()

	repo := NewAvailabilityRepository(db)
	mock.ExpectExec("DELETE FROM one_off_slots").
		WithArgs("slot-1", "prov-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteOneOffSlot(context.Background(), "prov-1", "slot-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
