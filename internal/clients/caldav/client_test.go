package caldav

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"
)

func encode(t *testing.T, event *Event) string {
	t.Helper()
	cal := NewCalendar()
	cal.Children = append(cal.Children, NewEventComponent(event, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)).Component)

	var buf bytes.Buffer
	require.NoError(t, ical.NewEncoder(&buf).Encode(cal))
	return buf.String()
}

func TestNewEventComponent_AllDay(t *testing.T) {
	out := encode(t, &Event{
		UID:        "obl-1@fiscalbot",
		Summary:    "DAS - Padaria",
		Categories: []string{"Federal"},
		Start:      time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC),
		AllDay:     true,
	})

	assert.Contains(t, out, "UID:obl-1@fiscalbot")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20240620")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20240621")
	assert.Contains(t, out, "CATEGORIES:Federal")
	assert.Contains(t, out, "PRODID:"+productID)
	assert.NotContains(t, out, "RRULE")
}

func TestNewEventComponent_Recurring(t *testing.T) {
	out := encode(t, &Event{
		UID:     "tax-1@fiscalbot",
		Summary: "DAS",
		Start:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		AllDay:  true,
		RRule:   &rrule.ROption{Freq: rrule.MONTHLY, Bymonthday: []int{20}},
	})
	assert.Contains(t, out, "RRULE:FREQ=MONTHLY;BYMONTHDAY=20")
}

func TestClient_PutAndDelete(t *testing.T) {
	var (
		methods []string
		paths   []string
		body    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "contador", user)
		assert.Equal(t, "secret", pass)

		methods = append(methods, r.Method)
		paths = append(paths, r.URL.Path)
		if r.Method == http.MethodPut {
			b, _ := io.ReadAll(r.Body)
			body = string(b)
			w.Header().Set("ETag", `"v1"`)
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "contador", "secret", "/calendars/fiscal")
	require.True(t, c.IsConfigured())

	ctx := context.Background()
	event := &Event{UID: "obl-1", Summary: "DAS", Start: time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC), AllDay: true}
	require.NoError(t, c.PutEvent(ctx, event))
	require.NoError(t, c.DeleteEvent(ctx, "obl-1"))

	assert.Equal(t, []string{http.MethodPut, http.MethodDelete}, methods)
	assert.Equal(t, []string{"/calendars/fiscal/obl-1.ics", "/calendars/fiscal/obl-1.ics"}, paths)
	assert.Contains(t, body, "SUMMARY:DAS")
}

func TestClient_PutRequiresUID(t *testing.T) {
	c := NewClient("http://localhost", "u", "p", "/cal")
	assert.Error(t, c.PutEvent(context.Background(), &Event{Summary: "x"}))
	assert.False(t, NewClient("", "u", "p", "/cal").IsConfigured())
}
