package holidays

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tazhate/fiscalbot/internal/domain"
)

// ICSSource reads holidays from an iCalendar feed, such as a state or
// municipal holiday calendar. Every VEVENT start date counts as a holiday.
type ICSSource struct {
	url        string
	loc        *time.Location
	httpClient *http.Client
}

func NewICSSource(url string, timeout time.Duration, loc *time.Location) *ICSSource {
	if loc == nil {
		loc = time.UTC
	}
	return &ICSSource{
		url:        url,
		loc:        loc,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *ICSSource) IsConfigured() bool {
	return s.url != ""
}

// Holidays implements calendar.HolidaySource.
func (s *ICSSource) Holidays(ctx context.Context, year int) ([]time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ics feed error %d", resp.StatusCode)
	}

	return ParseICS(resp.Body, year, s.loc)
}

// ParseICS collects the start dates of all events in r that fall in year.
func ParseICS(r io.Reader, year int, loc *time.Location) ([]time.Time, error) {
	dec := ical.NewDecoder(r)
	var dates []time.Time

	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode ics: %w", err)
		}

		for _, event := range cal.Events() {
			prop := event.Props.Get(ical.PropDateTimeStart)
			if prop == nil {
				continue
			}
			start, err := prop.DateTime(loc)
			if err != nil {
				return nil, fmt.Errorf("parse DTSTART: %w", err)
			}
			if start = domain.DateOf(start, loc); start.Year() == year {
				dates = append(dates, start)
			}
		}
	}
	return dates, nil
}
