package holidays

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/fiscalbot/internal/calendar"
	"github.com/tazhate/fiscalbot/internal/domain"
)

var loc = time.FixedZone("BRT", -3*60*60)

func day(y int, m time.Month, d int) time.Time {
	return domain.Date(y, m, d, loc)
}

func TestClient_Holidays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/feriados/v1/2024", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"date":"2024-01-01","name":"Confraternização mundial","type":"national"},
			{"date":"2024-11-15","name":"Proclamação da República","type":"national"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/feriados/v1/", time.Second, loc)
	require.True(t, c.IsConfigured())

	got, err := c.Holidays(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2024, 1, 1), day(2024, 11, 15)}, got)
}

func TestClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, loc).Holidays(context.Background(), 1800)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestClient_BadDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"date":"15/11/2024","name":"x"}]`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, loc).Holidays(context.Background(), 2024)
	assert.Error(t, err)
}

const feed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:a@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20240125\r\n" +
	"SUMMARY:Aniversário de São Paulo\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:b@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20240709\r\n" +
	"SUMMARY:Revolução Constitucionalista\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:c@test\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20250125\r\n" +
	"SUMMARY:Aniversário de São Paulo\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICS(t *testing.T) {
	got, err := ParseICS(strings.NewReader(feed), 2024, loc)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2024, 1, 25), day(2024, 7, 9)}, got)
}

func TestICSSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	got, err := NewICSSource(srv.URL, time.Second, loc).Holidays(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2025, 1, 25)}, got)
}

type failing struct{}

func (failing) Holidays(context.Context, int) ([]time.Time, error) {
	return nil, errors.New("down")
}

func TestMerged(t *testing.T) {
	national := calendar.StaticHolidays{2024: {day(2024, 11, 15)}}
	local := calendar.StaticHolidays{2024: {day(2024, 1, 25)}}

	got, err := Merged{national, failing{}, local}.Holidays(context.Background(), 2024)
	require.NoError(t, err)
	assert.ElementsMatch(t, []time.Time{day(2024, 11, 15), day(2024, 1, 25)}, got)

	_, err = Merged{failing{}, failing{}}.Holidays(context.Background(), 2024)
	assert.Error(t, err)
}
