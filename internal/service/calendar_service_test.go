package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fluxmarket/availability-api/internal/dto"
	"github.com/fluxmarket/availability-api/internal/models"
	appErrors "github.com/fluxmarket/availability-api/pkg/errors"
)

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *fakeCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
	return nil
}

func newTestCalendarService(store *stubStore, cache *fakeCache) *CalendarService {
	return NewCalendarService(store, cache, nil, nil, zap.NewNop(), CalendarServiceConfig{
		BookingDuration: time.Hour,
		CacheTTL:        time.Minute,
	})
}

func TestCalendarServiceLoadCalendarCaches(t *testing.T) {
	store := &stubStore{
		slots: []models.OneOffSlot{
			{ID: "slot-1", StartTime: testMonday.Add(9 * time.Hour), EndTime: testMonday.Add(10 * time.Hour)},
		},
	}
	cache := newFakeCache()
	svc := newTestCalendarService(store, cache)

	first, err := svc.LoadCalendar(context.Background(), "prov-1", testWeek)
	require.NoError(t, err)
	require.Len(t, first.Events, 1)
	assert.Equal(t, 1, cache.sets)

	// The second read is served from cache even if the store changes.
	store.mu.Lock()
	store.slots = nil
	store.mu.Unlock()

	second, err := svc.LoadCalendar(context.Background(), "prov-1", testWeek)
	require.NoError(t, err)
	require.Len(t, second.Events, 1)
	assert.Equal(t, 1, cache.sets)
}

func TestCalendarServiceLoadCalendarRejectsInvertedRange(t *testing.T) {
	svc := newTestCalendarService(&stubStore{}, newFakeCache())
	_, err := svc.LoadCalendar(context.Background(), "prov-1", models.DateRange{From: testWeek.To, To: testWeek.From})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCalendarServiceLoadCalendarRequiresProvider(t *testing.T) {
	svc := newTestCalendarService(&stubStore{}, newFakeCache())
	_, err := svc.LoadCalendar(context.Background(), "", testWeek)
	require.ErrorIs(t, err, appErrors.ErrNoProvider)
}

func TestCalendarServicePartialFailureNotCached(t *testing.T) {
	store := &stubStore{blocksErr: assertErr("blocks down")}
	cache := newFakeCache()
	svc := newTestCalendarService(store, cache)

	result, err := svc.LoadCalendar(context.Background(), "prov-1", testWeek)
	require.NoError(t, err)
	assert.Equal(t, "blocks down", result.ErrorMessage)
	assert.Equal(t, 0, cache.sets, "a degraded resolution must not be cached")
}

func TestCalendarServiceMutationInvalidatesCache(t *testing.T) {
	store := &stubStore{}
	cache := newFakeCache()
	svc := newTestCalendarService(store, cache)

	_, err := svc.LoadCalendar(context.Background(), "prov-1", testWeek)
	require.NoError(t, err)
	require.Len(t, cache.entries, 1)

	err = svc.BlockTime(context.Background(), "prov-1", dto.BlockTimeRequest{
		Start: testMonday.Add(10 * time.Hour),
		End:   testMonday.Add(11 * time.Hour),
	})
	require.NoError(t, err)
	assert.Empty(t, cache.entries, "a successful write evicts the provider's cached calendars")

	result, err := svc.LoadCalendar(context.Background(), "prov-1", testWeek)
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, models.EventBlocked, result.Events[0].Type)
}

func TestCalendarServiceValidatesMutationPayloads(t *testing.T) {
	svc := newTestCalendarService(&stubStore{}, newFakeCache())

	err := svc.AddRecurringSlot(context.Background(), "prov-1", dto.CreateRecurringSlotRequest{
		DayOfWeek: 9,
		StartTime: "09:00",
		EndTime:   "17:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	err = svc.AddOneOffSlot(context.Background(), "prov-1", dto.OneOffSlotRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCalendarServiceSessionPerProvider(t *testing.T) {
	svc := newTestCalendarService(&stubStore{}, newFakeCache())

	a := svc.Session("prov-a")
	b := svc.Session("prov-b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, svc.Session("prov-a"))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
