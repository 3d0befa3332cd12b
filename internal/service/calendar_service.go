package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fluxmarket/availability-api/internal/dto"
	"github.com/fluxmarket/availability-api/internal/models"
	appErrors "github.com/fluxmarket/availability-api/pkg/errors"
)

// calendarCache abstracts the Redis-backed read cache for resolved calendars.
type calendarCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// CalendarServiceConfig tunes session and cache behaviour.
type CalendarServiceConfig struct {
	BookingDuration time.Duration
	CacheTTL        time.Duration
}

// CalendarService fronts per-provider calendar sessions. It owns the session
// registry (one CalendarSession per provider, created lazily), layers a Redis
// read cache over resolution results, and records metrics. Sessions are never
// shared between providers.
type CalendarService struct {
	repo      availabilityStore
	cache     calendarCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       CalendarServiceConfig

	mu       sync.Mutex
	sessions map[string]*CalendarSession
}

// NewCalendarService constructs the calendar service.
func NewCalendarService(repo availabilityStore, cache calendarCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg CalendarServiceConfig) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BookingDuration <= 0 {
		cfg.BookingDuration = time.Hour
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &CalendarService{
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		sessions:  make(map[string]*CalendarSession),
	}
}

// Session returns the provider's calendar session, creating it on first use.
func (s *CalendarService) Session(providerID string) *CalendarSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[providerID]
	if !ok {
		session = NewCalendarSession(s.repo, providerID, s.cfg.BookingDuration, s.logger)
		s.sessions[providerID] = session
	}
	return session
}

// LoadCalendar resolves the provider's calendar for the range, serving a
// cached copy when one is fresh. Fetch failures surface in the returned
// state's error message alongside whatever events resolved.
func (s *CalendarService) LoadCalendar(ctx context.Context, providerID string, r models.DateRange) (*dto.CalendarResponse, error) {
	if providerID == "" {
		return nil, appErrors.ErrNoProvider
	}
	if r.To.Before(r.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
	}

	key := calendarCacheKey(providerID, r)
	if s.cache != nil {
		var cached dto.CalendarResponse
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheHit()
			}
			return &cached, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheMiss()
		}
	}

	session := s.Session(providerID)
	started := time.Now()
	if err := session.LoadData(ctx, r); err != nil {
		return nil, err
	}
	state := session.State()
	if s.metrics != nil {
		s.metrics.ObserveResolution(time.Since(started), len(state.Events))
	}

	resp := &dto.CalendarResponse{
		ProviderID:   providerID,
		Range:        r,
		Events:       state.Events,
		IsLoading:    state.IsLoading,
		ErrorMessage: state.ErrorMessage,
	}
	// A partially failed load is not worth caching; the next read retries.
	if s.cache != nil && state.ErrorMessage == "" {
		if err := s.cache.Set(ctx, key, resp, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("calendar cache set failed", zap.String("provider_id", providerID), zap.Error(err))
		}
	}
	return resp, nil
}

// RefreshCalendar re-resolves the last loaded range.
func (s *CalendarService) RefreshCalendar(ctx context.Context, providerID string) (*dto.CalendarResponse, error) {
	if providerID == "" {
		return nil, appErrors.ErrNoProvider
	}
	session := s.Session(providerID)
	if err := session.Refresh(ctx); err != nil {
		return nil, err
	}
	s.invalidate(ctx, providerID)
	state := session.State()
	return &dto.CalendarResponse{
		ProviderID:   providerID,
		Events:       state.Events,
		IsLoading:    state.IsLoading,
		ErrorMessage: state.ErrorMessage,
	}, nil
}

// AddRecurringSlot validates and applies a weekly rule mutation.
func (s *CalendarService) AddRecurringSlot(ctx context.Context, providerID string, req dto.CreateRecurringSlotRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recurring slot payload")
	}
	err := s.Session(providerID).AddRecurringSlot(ctx, req.DayOfWeek, req.StartTime, req.EndTime, req.Weeks, req.Kind)
	s.afterMutation(ctx, providerID, "recurring_slot", err)
	return err
}

// BlockTime validates and applies a standalone block mutation.
func (s *CalendarService) BlockTime(ctx context.Context, providerID string, req dto.BlockTimeRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid block payload")
	}
	err := s.Session(providerID).BlockTime(ctx, req.Start, req.End, req.Reason)
	s.afterMutation(ctx, providerID, "block", err)
	return err
}

// AddOneOffSlot validates and applies a one-off availability mutation.
func (s *CalendarService) AddOneOffSlot(ctx context.Context, providerID string, req dto.OneOffSlotRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid one-off slot payload")
	}
	err := s.Session(providerID).AddOneOffSlot(ctx, req.Start, req.End)
	s.afterMutation(ctx, providerID, "one_off_slot", err)
	return err
}

// DeleteEvent removes the record backing a resolved calendar event.
func (s *CalendarService) DeleteEvent(ctx context.Context, providerID, eventID string) error {
	if eventID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "event id is required")
	}
	err := s.Session(providerID).DeleteEvent(ctx, eventID)
	s.afterMutation(ctx, providerID, "delete", err)
	return err
}

// MaxDuration computes the bookable hour ceiling from a start instant.
func (s *CalendarService) MaxDuration(providerID string, start time.Time) (*dto.MaxDurationResponse, error) {
	if providerID == "" {
		return nil, appErrors.ErrNoProvider
	}
	hours := s.Session(providerID).MaxDuration(start)
	return &dto.MaxDurationResponse{Start: start, Hours: hours}, nil
}

// ResolveRange resolves events for an arbitrary range without touching the
// provider's interactive session; used by export generation.
func (s *CalendarService) ResolveRange(ctx context.Context, providerID string, r models.DateRange) ([]models.CalendarEvent, error) {
	session := NewCalendarSession(s.repo, providerID, s.cfg.BookingDuration, s.logger)
	if err := session.LoadData(ctx, r); err != nil {
		return nil, err
	}
	state := session.State()
	if state.ErrorMessage != "" {
		return nil, fmt.Errorf("resolve calendar: %s", state.ErrorMessage)
	}
	return state.Events, nil
}

func (s *CalendarService) afterMutation(ctx context.Context, providerID, kind string, err error) {
	if err != nil {
		if s.metrics != nil {
			appErr := appErrors.FromError(err)
			if appErr.Code == appErrors.ErrAvailabilityOverlap.Code || appErr.Code == appErrors.ErrBlockOverlap.Code {
				s.metrics.RecordConflictRejected(kind)
			}
		}
		return
	}
	s.invalidate(ctx, providerID)
}

func (s *CalendarService) invalidate(ctx context.Context, providerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePrefix(ctx, calendarCachePrefix(providerID)); err != nil {
		s.logger.Warn("calendar cache invalidation failed", zap.String("provider_id", providerID), zap.Error(err))
	}
}

func calendarCachePrefix(providerID string) string {
	return fmt.Sprintf("calendar:%s:", providerID)
}

func calendarCacheKey(providerID string, r models.DateRange) string {
	return fmt.Sprintf("%s%d:%d", calendarCachePrefix(providerID), r.From.Unix(), r.To.Unix())
}
