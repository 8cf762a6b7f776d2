package holidays

import (
	"context"
	"errors"
	"time"

	"github.com/tazhate/fiscalbot/internal/calendar"
)

// Merged unions several sources. A failing source is skipped as long as at
// least one succeeds; when all fail the joined error is returned.
type Merged []calendar.HolidaySource

func (m Merged) Holidays(ctx context.Context, year int) ([]time.Time, error) {
	var (
		dates []time.Time
		errs  []error
		ok    bool
	)
	for _, src := range m {
		list, err := src.Holidays(ctx, year)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ok = true
		dates = append(dates, list...)
	}
	if !ok && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return dates, nil
}
