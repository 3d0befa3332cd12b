package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fluxmarket/availability-api/internal/models"
	appErrors "github.com/fluxmarket/availability-api/pkg/errors"
)

type stubStore struct {
	mu       sync.Mutex
	rules    []models.RecurringRule
	slots    []models.OneOffSlot
	blocks   []models.BlockedInterval
	bookings []models.Booking

	rulesErr    error
	slotsErr    error
	blocksErr   error
	bookingsErr error

	createdRules  []models.RecurringRule
	createdSlots  []models.OneOffSlot
	createdBlocks []models.BlockedInterval
	deletedRules  []string
	deletedSlots  []string
	deletedBlocks []string

	// ruleGate, when set, blocks the next FetchRecurringRules call until the
	// channel is closed. Used to interleave overlapping loads.
	ruleGate chan struct{}
}

func (s *stubStore) FetchRecurringRules(ctx context.Context, providerID string) ([]models.RecurringRule, error) {
	s.mu.Lock()
	gate := s.ruleGate
	s.ruleGate = nil
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rulesErr != nil {
		return nil, s.rulesErr
	}
	return append([]models.RecurringRule(nil), s.rules...), nil
}

func (s *stubStore) FetchOneOffSlots(ctx context.Context, providerID string, r models.DateRange) ([]models.OneOffSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slotsErr != nil {
		return nil, s.slotsErr
	}
	return append([]models.OneOffSlot(nil), s.slots...), nil
}

func (s *stubStore) FetchBlocks(ctx context.Context, providerID string, r models.DateRange) ([]models.BlockedInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocksErr != nil {
		return nil, s.blocksErr
	}
	return append([]models.BlockedInterval(nil), s.blocks...), nil
}

func (s *stubStore) FetchBookings(ctx context.Context, providerID string, r models.DateRange) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bookingsErr != nil {
		return nil, s.bookingsErr
	}
	return append([]models.Booking(nil), s.bookings...), nil
}

func (s *stubStore) CreateRecurringRule(ctx context.Context, rule *models.RecurringRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createdRules = append(s.createdRules, *rule)
	s.rules = append(s.rules, *rule)
	return nil
}

func (s *stubStore) DeleteRecurringRule(ctx context.Context, providerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedRules = append(s.deletedRules, id)
	kept := s.rules[:0]
	for _, r := range s.rules {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.rules = kept
	return nil
}

func (s *stubStore) CreateOneOffSlot(ctx context.Context, slot *models.OneOffSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createdSlots = append(s.createdSlots, *slot)
	s.slots = append(s.slots, *slot)
	return nil
}

func (s *stubStore) DeleteOneOffSlot(ctx context.Context, providerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedSlots = append(s.deletedSlots, id)
	kept := s.slots[:0]
	for _, sl := range s.slots {
		if sl.ID != id {
			kept = append(kept, sl)
		}
	}
	s.slots = kept
	return nil
}

func (s *stubStore) CreateBlock(ctx context.Context, block *models.BlockedInterval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createdBlocks = append(s.createdBlocks, *block)
	s.blocks = append(s.blocks, *block)
	return nil
}

func (s *stubStore) DeleteBlock(ctx context.Context, providerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedBlocks = append(s.deletedBlocks, id)
	kept := s.blocks[:0]
	for _, b := range s.blocks {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	s.blocks = kept
	return nil
}

func newTestSession(store *stubStore) *CalendarSession {
	session := NewCalendarSession(store, "prov-1", time.Hour, zap.NewNop())
	session.now = func() time.Time { return testMonday.Add(8 * time.Hour) }
	return session
}

func TestCalendarSessionLoadData(t *testing.T) {
	store := &stubStore{
		rules: []models.RecurringRule{
			{ID: "rule-1", DayOfWeek: 2, StartTime: "09:00", EndTime: "12:00", IsActive: true},
		},
		slots: []models.OneOffSlot{
			{ID: "slot-1", StartTime: testMonday.Add(14 * time.Hour), EndTime: testMonday.Add(15 * time.Hour)},
		},
		blocks: []models.BlockedInterval{
			{ID: "block-1", StartTime: testMonday.Add(18 * time.Hour), EndTime: testMonday.Add(19 * time.Hour)},
		},
		bookings: []models.Booking{
			{ID: "booking-1", ServiceTitle: "Haircut", ScheduledAt: testMonday.Add(16 * time.Hour), Status: models.BookingAccepted},
		},
	}
	session := newTestSession(store)

	require.NoError(t, session.LoadData(context.Background(), testWeek))

	state := session.State()
	assert.False(t, state.IsLoading)
	assert.Empty(t, state.ErrorMessage)
	require.Len(t, state.Events, 4)
	assert.Equal(t, models.SourceRecurringRule, state.Events[0].SourceKind)
	assert.Equal(t, models.SourceBooking, state.Events[3].SourceKind)
}

func TestCalendarSessionLoadDataRequiresProvider(t *testing.T) {
	session := NewCalendarSession(&stubStore{}, "", time.Hour, zap.NewNop())

	err := session.LoadData(context.Background(), testWeek)
	require.ErrorIs(t, err, appErrors.ErrNoProvider)
	assert.Equal(t, appErrors.ErrNoProvider.Message, session.State().ErrorMessage)
}

func TestCalendarSessionLoadDataPartialFailure(t *testing.T) {
	store := &stubStore{
		slots: []models.OneOffSlot{
			{ID: "slot-1", StartTime: testMonday.Add(9 * time.Hour), EndTime: testMonday.Add(10 * time.Hour)},
		},
		bookings: []models.Booking{
			{ID: "booking-1", ServiceTitle: "Massage", ScheduledAt: testMonday.Add(11 * time.Hour), Status: models.BookingRequested},
		},
		blocksErr: errors.New("blocks table unavailable"),
	}
	session := newTestSession(store)

	require.NoError(t, session.LoadData(context.Background(), testWeek))

	state := session.State()
	assert.Equal(t, "blocks table unavailable", state.ErrorMessage)
	require.Len(t, state.Events, 2, "the failed kind is empty for the cycle, the rest still resolve")
	assert.False(t, state.IsLoading)
}

func TestCalendarSessionOverlappingLoadsLatestWins(t *testing.T) {
	oldSlot := models.OneOffSlot{ID: "slot-old", StartTime: testMonday.Add(9 * time.Hour), EndTime: testMonday.Add(10 * time.Hour)}
	newSlot := models.OneOffSlot{ID: "slot-new", StartTime: testMonday.Add(15 * time.Hour), EndTime: testMonday.Add(16 * time.Hour)}

	gate := make(chan struct{})
	store := &stubStore{slots: []models.OneOffSlot{oldSlot}, ruleGate: gate}
	session := newTestSession(store)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = session.LoadData(context.Background(), testWeek)
	}()

	// Wait for the first load to claim the gate, then change the store and
	// issue a second load that completes immediately.
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.ruleGate == nil
	}, time.Second, 5*time.Millisecond)

	store.mu.Lock()
	store.slots = []models.OneOffSlot{newSlot}
	store.mu.Unlock()

	require.NoError(t, session.LoadData(context.Background(), testWeek))

	close(gate)
	wg.Wait()

	state := session.State()
	require.Len(t, state.Events, 1)
	assert.Equal(t, "slot-new", state.Events[0].ID, "the superseded load must not overwrite the newer result")
}

func TestCalendarSessionBlockTimeRejectsOverAvailability(t *testing.T) {
	store := &stubStore{
		slots: []models.OneOffSlot{
			{ID: "slot-1", StartTime: testMonday.Add(9 * time.Hour), EndTime: testMonday.Add(12 * time.Hour)},
		},
	}
	session := newTestSession(store)
	require.NoError(t, session.LoadData(context.Background(), testWeek))

	err := session.BlockTime(context.Background(), testMonday.Add(10*time.Hour), testMonday.Add(11*time.Hour), nil)
	require.ErrorIs(t, err, appErrors.ErrAvailabilityOverlap)
	assert.Empty(t, store.createdBlocks, "a rejected mutation must not write")
	assert.Equal(t, appErrors.ErrAvailabilityOverlap.Message, session.State().ErrorMessage)
}

func TestCalendarSessionBlockTimeTouchingAvailabilitySucceeds(t *testing.T) {
	store := &stubStore{
		slots: []models.OneOffSlot{
			{ID: "slot-1", StartTime: testMonday.Add(9 * time.Hour), EndTime: testMonday.Add(12 * time.Hour)},
		},
	}
	session := newTestSession(store)
	require.NoError(t, session.LoadData(context.Background(), testWeek))

	reason := "Errand"
	err := session.BlockTime(context.Background(), testMonday.Add(12*time.Hour), testMonday.Add(13*time.Hour), &reason)
	require.NoError(t, err)
	require.Len(t, store.createdBlocks, 1)
	assert.Equal(t, "prov-1", store.createdBlocks[0].ProviderID)

	// Success reloads the calendar, so the new block is in the event list.
	state := session.State()
	require.Len(t, state.Events, 2)
}

func TestCalendarSessionAddOneOffSlotRejectsOverBlock(t *testing.T) {
	store := &stubStore{
		blocks: []models.BlockedInterval{
			{ID: "block-1", StartTime: testMonday.Add(9 * time.Hour), EndTime: testMonday.Add(12 * time.Hour)},
		},
	}
	session := newTestSession(store)
	require.NoError(t, session.LoadData(context.Background(), testWeek))

	err := session.AddOneOffSlot(context.Background(), testMonday.Add(11*time.Hour), testMonday.Add(13*time.Hour))
	require.ErrorIs(t, err, appErrors.ErrBlockOverlap)
	assert.Empty(t, store.createdSlots)
}

func TestCalendarSessionAddRecurringSlot(t *testing.T) {
	t.Run("blocked kind rejected over availability on next occurrence", func(t *testing.T) {
		store := &stubStore{
			slots: []models.OneOffSlot{
				{ID: "slot-1", StartTime: testMonday.Add(9 * time.Hour), EndTime: testMonday.Add(12 * time.Hour)},
			},
		}
		session := newTestSession(store)
		require.NoError(t, session.LoadData(context.Background(), testWeek))

		// now() is Monday 08:00, so day_of_week 2 projects onto today.
		err := session.AddRecurringSlot(context.Background(), 2, "10:00", "11:00", nil, models.SlotKindBlocked)
		require.ErrorIs(t, err, appErrors.ErrAvailabilityOverlap)
		assert.Empty(t, store.createdRules)
	})

	t.Run("available kind rejected over block", func(t *testing.T) {
		store := &stubStore{
			blocks: []models.BlockedInterval{
				{ID: "block-1", StartTime: testMonday.Add(9 * time.Hour), EndTime: testMonday.Add(12 * time.Hour)},
			},
		}
		session := newTestSession(store)
		require.NoError(t, session.LoadData(context.Background(), testWeek))

		err := session.AddRecurringSlot(context.Background(), 2, "11:00", "14:00", nil, models.SlotKindAvailable)
		require.ErrorIs(t, err, appErrors.ErrBlockOverlap)
		assert.Empty(t, store.createdRules)
	})

	t.Run("weeks bounds valid_until", func(t *testing.T) {
		store := &stubStore{}
		session := newTestSession(store)
		require.NoError(t, session.LoadData(context.Background(), testWeek))

		weeks := 4
		require.NoError(t, session.AddRecurringSlot(context.Background(), 3, "09:00", "17:00", &weeks, models.SlotKindAvailable))
		require.Len(t, store.createdRules, 1)

		rule := store.createdRules[0]
		assert.True(t, rule.IsActive)
		require.NotNil(t, rule.ValidUntil)
		assert.Equal(t, testMonday.Add(8*time.Hour).AddDate(0, 0, 28), *rule.ValidUntil)
	})

	t.Run("invalid day rejected", func(t *testing.T) {
		session := newTestSession(&stubStore{})
		err := session.AddRecurringSlot(context.Background(), 8, "09:00", "17:00", nil, models.SlotKindAvailable)
		require.Error(t, err)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	})
}

func TestCalendarSessionDeleteEvent(t *testing.T) {
	t.Run("bookings are immutable", func(t *testing.T) {
		store := &stubStore{
			bookings: []models.Booking{
				{ID: "booking-1", ServiceTitle: "Haircut", ScheduledAt: testMonday.Add(10 * time.Hour), Status: models.BookingAccepted},
			},
		}
		session := newTestSession(store)
		require.NoError(t, session.LoadData(context.Background(), testWeek))

		err := session.DeleteEvent(context.Background(), "booking-1")
		require.ErrorIs(t, err, appErrors.ErrBookingImmutable)
		assert.Equal(t, appErrors.ErrBookingImmutable.Message, session.State().ErrorMessage)
	})

	t.Run("dispatches by source kind", func(t *testing.T) {
		store := &stubStore{
			slots: []models.OneOffSlot{
				{ID: "slot-1", StartTime: testMonday.Add(9 * time.Hour), EndTime: testMonday.Add(10 * time.Hour)},
			},
			blocks: []models.BlockedInterval{
				{ID: "block-1", StartTime: testMonday.Add(11 * time.Hour), EndTime: testMonday.Add(12 * time.Hour)},
			},
		}
		session := newTestSession(store)
		require.NoError(t, session.LoadData(context.Background(), testWeek))

		require.NoError(t, session.DeleteEvent(context.Background(), "slot-1"))
		assert.Equal(t, []string{"slot-1"}, store.deletedSlots)

		require.NoError(t, session.DeleteEvent(context.Background(), "block-1"))
		assert.Equal(t, []string{"block-1"}, store.deletedBlocks)

		assert.Empty(t, session.State().Events)
	})

	t.Run("recurring event deletes the whole rule", func(t *testing.T) {
		store := &stubStore{
			rules: []models.RecurringRule{
				{ID: "rule-1", DayOfWeek: 2, StartTime: "09:00", EndTime: "10:00", IsActive: true},
			},
		}
		session := newTestSession(store)
		require.NoError(t, session.LoadData(context.Background(), testWeek))

		state := session.State()
		require.Len(t, state.Events, 1)
		require.NoError(t, session.DeleteEvent(context.Background(), state.Events[0].ID))
		assert.Equal(t, []string{"rule-1"}, store.deletedRules)
		assert.Empty(t, session.State().Events)
	})

	t.Run("unknown event", func(t *testing.T) {
		session := newTestSession(&stubStore{})
		require.NoError(t, session.LoadData(context.Background(), testWeek))
		err := session.DeleteEvent(context.Background(), "missing")
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	})
}

func TestCalendarSessionMaxDuration(t *testing.T) {
	store := &stubStore{
		bookings: []models.Booking{
			{ID: "booking-1", ScheduledAt: testMonday.Add(13 * time.Hour), Status: models.BookingAccepted},
		},
	}
	session := newTestSession(store)
	require.NoError(t, session.LoadData(context.Background(), testWeek))

	assert.Equal(t, 4, session.MaxDuration(testMonday.Add(9*time.Hour)))
	assert.Equal(t, 8, session.MaxDuration(testMonday.Add(14*time.Hour)))
}
