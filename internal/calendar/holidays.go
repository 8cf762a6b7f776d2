package calendar

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tazhate/fiscalbot/internal/domain"
)

// HolidaySource resolves the holidays of one calendar year.
type HolidaySource interface {
	Holidays(ctx context.Context, year int) ([]time.Time, error)
}

// retryAfter is how long a year stays uncached after a failed fetch before
// lookups hit the source again.
const retryAfter = 5 * time.Minute

// fetchTimeout bounds a shared fetch, which outlives the caller that
// started it.
const fetchTimeout = 30 * time.Second

// HolidayCache keeps one set of holidays per year for the process lifetime.
// Misses trigger a fetch from the source; concurrent misses for the same year
// share a single fetch. A failed fetch is logged and leaves the year empty so
// a later lookup tries again.
type HolidayCache struct {
	source HolidaySource
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time

	mu     sync.RWMutex
	years  map[int]map[string]struct{}
	failed map[int]time.Time
	group  singleflight.Group
}

func NewHolidayCache(source HolidaySource, loc *time.Location, logger *zap.Logger) *HolidayCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &HolidayCache{
		source: source,
		logger: logger,
		loc:    loc,
		now:    time.Now,
		years:  make(map[int]map[string]struct{}),
		failed: make(map[int]time.Time),
	}
}

// IsHoliday reports whether date's calendar day is a known holiday.
func (c *HolidayCache) IsHoliday(ctx context.Context, date time.Time) bool {
	date = date.In(c.loc)
	set, ok := c.lookup(date.Year())
	if !ok {
		set = c.load(ctx, date.Year())
	}
	_, hit := set[date.Format(domain.DateLayout)]
	return hit
}

// Holidays returns the cached holidays of year in ascending order, fetching
// them when needed.
func (c *HolidayCache) Holidays(ctx context.Context, year int) []time.Time {
	set, ok := c.lookup(year)
	if !ok {
		set = c.load(ctx, year)
	}
	out := make([]time.Time, 0, len(set))
	for key := range set {
		if d, err := domain.ParseDate(key, c.loc); err == nil {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

// Set replaces the holidays of year.
func (c *HolidayCache) Set(year int, dates []time.Time) {
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		set[d.In(c.loc).Format(domain.DateLayout)] = struct{}{}
	}
	c.mu.Lock()
	c.years[year] = set
	delete(c.failed, year)
	c.mu.Unlock()
}

// Invalidate drops year so the next lookup fetches it again.
func (c *HolidayCache) Invalidate(year int) {
	c.mu.Lock()
	delete(c.years, year)
	delete(c.failed, year)
	c.mu.Unlock()
}

// Refresh refetches year from the source. On failure the previous entry is kept.
func (c *HolidayCache) Refresh(ctx context.Context, year int) error {
	dates, err := c.fetch(ctx, year)
	if err != nil {
		return err
	}
	c.Set(year, dates)
	return nil
}

// Warm fetches every year that is not cached yet.
func (c *HolidayCache) Warm(ctx context.Context, years ...int) {
	for _, y := range years {
		if _, ok := c.lookup(y); !ok {
			c.load(ctx, y)
		}
	}
}

func (c *HolidayCache) lookup(year int) (map[string]struct{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.years[year]
	return set, ok
}

func (c *HolidayCache) load(ctx context.Context, year int) map[string]struct{} {
	if c.recentlyFailed(year) {
		return nil
	}
	v, _, _ := c.group.Do(strconv.Itoa(year), func() (any, error) {
		if set, ok := c.lookup(year); ok {
			return set, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		dates, err := c.fetch(fetchCtx, year)
		if err != nil {
			// The caller giving up says nothing about the source.
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return map[string]struct{}{}, nil
			}
			c.logger.Warn("holiday lookup failed, adjusting for weekends only",
				zap.Int("year", year), zap.Error(err))
			c.mu.Lock()
			c.failed[year] = c.now()
			c.mu.Unlock()
			return map[string]struct{}{}, nil
		}
		c.Set(year, dates)
		set, _ := c.lookup(year)
		return set, nil
	})
	return v.(map[string]struct{})
}

func (c *HolidayCache) recentlyFailed(year int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	at, ok := c.failed[year]
	return ok && c.now().Sub(at) < retryAfter
}

func (c *HolidayCache) fetch(ctx context.Context, year int) ([]time.Time, error) {
	if c.source == nil {
		return nil, nil
	}
	return c.source.Holidays(ctx, year)
}

// StaticHolidays is a fixed in-memory source.
type StaticHolidays map[int][]time.Time

func (s StaticHolidays) Holidays(_ context.Context, year int) ([]time.Time, error) {
	return s[year], nil
}

// WeekendsOnly is a source without holidays.
type WeekendsOnly struct{}

func (WeekendsOnly) Holidays(context.Context, int) ([]time.Time, error) {
	return nil, nil
}
