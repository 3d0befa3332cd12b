package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fluxmarket/availability-api/internal/models"
	appErrors "github.com/fluxmarket/availability-api/pkg/errors"
)

// availabilityStore is the persistence port the calendar engine requires. The
// four fetches are independent; each may fail without aborting the others.
type availabilityStore interface {
	FetchRecurringRules(ctx context.Context, providerID string) ([]models.RecurringRule, error)
	FetchOneOffSlots(ctx context.Context, providerID string, r models.DateRange) ([]models.OneOffSlot, error)
	FetchBlocks(ctx context.Context, providerID string, r models.DateRange) ([]models.BlockedInterval, error)
	FetchBookings(ctx context.Context, providerID string, r models.DateRange) ([]models.Booking, error)

	CreateRecurringRule(ctx context.Context, rule *models.RecurringRule) error
	DeleteRecurringRule(ctx context.Context, providerID, id string) error
	CreateOneOffSlot(ctx context.Context, slot *models.OneOffSlot) error
	DeleteOneOffSlot(ctx context.Context, providerID, id string) error
	CreateBlock(ctx context.Context, block *models.BlockedInterval) error
	DeleteBlock(ctx context.Context, providerID, id string) error
}

// CalendarState is the snapshot published to consumers after every load or
// mutation cycle.
type CalendarState struct {
	Events       []models.CalendarEvent `json:"events"`
	IsLoading    bool                   `json:"is_loading"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// CalendarSession owns one provider's calendar: the four record caches, the
// resolved event list, and the mutation workflow. One session per provider;
// the caches are never shared across providers.
//
// Conflict checks on mutations run against the record sets cached by the last
// load, not a fresh fetch. Under concurrent writes from a second client this
// is optimistic and can admit a double booking; acceptable for a provider
// editing their own calendar.
type CalendarSession struct {
	providerID      string
	repo            availabilityStore
	logger          *zap.Logger
	bookingDuration time.Duration
	now             func() time.Time

	mu           sync.Mutex
	sets         recordSets
	events       []models.CalendarEvent
	loading      bool
	errMsg       string
	currentRange *models.DateRange
	// generation fences overlapping loads so only the most recently issued
	// one may publish its result.
	generation uint64
}

// NewCalendarSession constructs a session bound to a single provider.
func NewCalendarSession(repo availabilityStore, providerID string, bookingDuration time.Duration, logger *zap.Logger) *CalendarSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bookingDuration <= 0 {
		bookingDuration = time.Hour
	}
	return &CalendarSession{
		providerID:      providerID,
		repo:            repo,
		logger:          logger,
		bookingDuration: bookingDuration,
		now:             time.Now,
	}
}

// ProviderID returns the provider this session is bound to.
func (s *CalendarSession) ProviderID() string {
	return s.providerID
}

// State returns a snapshot of the published events, loading flag, and the
// last surfaced error message.
func (s *CalendarSession) State() CalendarState {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]models.CalendarEvent, len(s.events))
	copy(events, s.events)
	return CalendarState{Events: events, IsLoading: s.loading, ErrorMessage: s.errMsg}
}

// LoadData fetches all four record kinds concurrently, waits for every fetch
// to settle, then resolves them into the published event list. A fetch
// failure is logged and surfaced as the session error message while that
// kind's cache is left empty for the cycle; resolution still runs over
// whatever succeeded. When a newer load has been issued meanwhile, the stale
// result is discarded unpublished.
func (s *CalendarSession) LoadData(ctx context.Context, r models.DateRange) error {
	if s.providerID == "" {
		s.mu.Lock()
		s.errMsg = appErrors.ErrNoProvider.Message
		s.mu.Unlock()
		return appErrors.ErrNoProvider
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	rCopy := r
	s.currentRange = &rCopy
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()

	var (
		fetched  recordSets
		fetchErr error
		errMu    sync.Mutex
		wg       sync.WaitGroup
	)

	fail := func(kind string, err error) {
		s.logger.Warn("calendar fetch failed", zap.String("provider_id", s.providerID), zap.String("kind", kind), zap.Error(err))
		errMu.Lock()
		fetchErr = err
		errMu.Unlock()
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		rules, err := s.repo.FetchRecurringRules(ctx, s.providerID)
		if err != nil {
			fail("recurring_rules", err)
			return
		}
		fetched.rules = rules
	}()
	go func() {
		defer wg.Done()
		slots, err := s.repo.FetchOneOffSlots(ctx, s.providerID, r)
		if err != nil {
			fail("one_off_slots", err)
			return
		}
		fetched.oneOffs = slots
	}()
	go func() {
		defer wg.Done()
		blocks, err := s.repo.FetchBlocks(ctx, s.providerID, r)
		if err != nil {
			fail("blocks", err)
			return
		}
		fetched.blocks = blocks
	}()
	go func() {
		defer wg.Done()
		bookings, err := s.repo.FetchBookings(ctx, s.providerID, r)
		if err != nil {
			fail("bookings", err)
			return
		}
		fetched.bookings = bookings
	}()
	wg.Wait()

	events := resolveEvents(r, fetched, s.bookingDuration)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		// A newer load superseded this one; its result wins.
		return nil
	}
	s.sets = fetched
	s.events = events
	s.loading = false
	if fetchErr != nil {
		s.errMsg = fetchErr.Error()
	}
	return nil
}

// Refresh re-runs the last load. No-op before the first LoadData.
func (s *CalendarSession) Refresh(ctx context.Context) error {
	s.mu.Lock()
	r := s.currentRange
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	return s.LoadData(ctx, *r)
}

// AddRecurringSlot validates and persists a weekly rule. The conflict check
// projects the rule onto its next occurrence: an available-kind rule is
// rejected over an existing block, a blocked-kind rule over existing
// availability. No write happens on rejection; success triggers a full
// reload.
func (s *CalendarSession) AddRecurringSlot(ctx context.Context, dayOfWeek int, start, end string, weeks *int, kind models.SlotKind) error {
	if s.providerID == "" {
		return appErrors.ErrNoProvider
	}
	if dayOfWeek < 1 || dayOfWeek > 7 {
		return appErrors.Clone(appErrors.ErrValidation, "day_of_week must be between 1 and 7")
	}
	if _, _, ok := parseClock(start); !ok {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be HH:mm")
	}
	if _, _, ok := parseClock(end); !ok {
		return appErrors.Clone(appErrors.ErrValidation, "end_time must be HH:mm")
	}

	var validUntil *time.Time
	if weeks != nil {
		until := s.now().AddDate(0, 0, *weeks*7)
		validUntil = &until
	}

	rule := models.RecurringRule{
		ID:         uuid.NewString(),
		ProviderID: s.providerID,
		DayOfWeek:  dayOfWeek,
		StartTime:  start,
		EndTime:    end,
		IsActive:   true,
		ValidUntil: validUntil,
		Kind:       kind,
		CreatedAt:  s.now().UTC(),
	}

	candidate, ok := projectRule(rule, s.nextOccurrence(dayOfWeek))
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be HH:mm")
	}

	s.mu.Lock()
	sets := s.sets
	var conflict *appErrors.Error
	if rule.EffectiveKind() == models.SlotKindBlocked {
		if hasAvailabilityOverlap(sets, candidate.start, candidate.end) {
			conflict = appErrors.ErrAvailabilityOverlap
		}
	} else if hasBlockingOverlap(sets, candidate.start, candidate.end) {
		conflict = appErrors.ErrBlockOverlap
	}
	if conflict != nil {
		s.errMsg = conflict.Message
		s.mu.Unlock()
		return conflict
	}
	s.mu.Unlock()

	if err := s.repo.CreateRecurringRule(ctx, &rule); err != nil {
		return s.writeFailed("create recurring rule", err)
	}
	return s.Refresh(ctx)
}

// BlockTime persists a one-off blocked interval unless it overlaps existing
// availability.
func (s *CalendarSession) BlockTime(ctx context.Context, start, end time.Time, reason *string) error {
	if s.providerID == "" {
		return appErrors.ErrNoProvider
	}

	s.mu.Lock()
	if hasAvailabilityOverlap(s.sets, start, end) {
		s.errMsg = appErrors.ErrAvailabilityOverlap.Message
		s.mu.Unlock()
		return appErrors.ErrAvailabilityOverlap
	}
	s.mu.Unlock()

	block := models.BlockedInterval{
		ID:         uuid.NewString(),
		ProviderID: s.providerID,
		StartTime:  start,
		EndTime:    end,
		Reason:     reason,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.CreateBlock(ctx, &block); err != nil {
		return s.writeFailed("create block", err)
	}
	return s.Refresh(ctx)
}

// AddOneOffSlot persists a single availability exception unless it overlaps
// an existing block.
func (s *CalendarSession) AddOneOffSlot(ctx context.Context, start, end time.Time) error {
	if s.providerID == "" {
		return appErrors.ErrNoProvider
	}

	s.mu.Lock()
	if hasBlockingOverlap(s.sets, start, end) {
		s.errMsg = appErrors.ErrBlockOverlap.Message
		s.mu.Unlock()
		return appErrors.ErrBlockOverlap
	}
	s.mu.Unlock()

	slot := models.OneOffSlot{
		ID:         uuid.NewString(),
		ProviderID: s.providerID,
		StartTime:  start,
		EndTime:    end,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.CreateOneOffSlot(ctx, &slot); err != nil {
		return s.writeFailed("create one-off slot", err)
	}
	return s.Refresh(ctx)
}

// DeleteEvent removes the record backing a resolved event. Booking events are
// never deletable here; they are managed by the booking flow.
func (s *CalendarSession) DeleteEvent(ctx context.Context, eventID string) error {
	s.mu.Lock()
	var found *models.CalendarEvent
	for i := range s.events {
		if s.events[i].ID == eventID {
			found = &s.events[i]
			break
		}
	}
	if found == nil {
		s.mu.Unlock()
		return appErrors.Clone(appErrors.ErrNotFound, "calendar event not found")
	}
	event := *found
	if event.Type == models.EventBooking {
		s.errMsg = appErrors.ErrBookingImmutable.Message
		s.mu.Unlock()
		return appErrors.ErrBookingImmutable
	}
	s.mu.Unlock()

	var err error
	switch event.SourceKind {
	case models.SourceBlock:
		err = s.repo.DeleteBlock(ctx, s.providerID, event.SourceID)
	case models.SourceOneOffSlot:
		err = s.repo.DeleteOneOffSlot(ctx, s.providerID, event.SourceID)
	case models.SourceRecurringRule:
		// Deletes the repeating rule itself, not just this occurrence.
		err = s.repo.DeleteRecurringRule(ctx, s.providerID, event.SourceID)
	default:
		return appErrors.ErrBookingImmutable
	}
	if err != nil {
		return s.writeFailed("delete calendar record", err)
	}
	return s.Refresh(ctx)
}

// MaxDuration returns the longest bookable whole-hour count starting at the
// given instant, computed against the cached record sets.
func (s *CalendarSession) MaxDuration(start time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maxDurationHours(s.sets, start)
}

// nextOccurrence finds the next date (today included) falling on the given
// 1-7 weekday.
func (s *CalendarSession) nextOccurrence(dayOfWeek int) time.Time {
	day := s.now()
	for i := 0; i < 7; i++ {
		if weekdayOf(day) == dayOfWeek {
			return day
		}
		day = day.AddDate(0, 0, 1)
	}
	return day
}

func (s *CalendarSession) writeFailed(op string, err error) error {
	s.logger.Warn("calendar write failed", zap.String("provider_id", s.providerID), zap.String("op", op), zap.Error(err))
	wrapped := appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to "+op)
	s.mu.Lock()
	s.errMsg = wrapped.Message
	s.mu.Unlock()
	return wrapped
}
