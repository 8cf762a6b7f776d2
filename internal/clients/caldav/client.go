package caldav

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

const productID = "-//fiscalbot//Obrigações//PT"

// Client pushes events to a CalDAV calendar collection.
type Client struct {
	baseURL      string
	username     string
	password     string
	calendarPath string

	mu     sync.Mutex
	client *caldav.Client
}

func NewClient(baseURL, username, password, calendarPath string) *Client {
	return &Client{
		baseURL:      baseURL,
		username:     username,
		password:     password,
		calendarPath: calendarPath,
	}
}

func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.username != "" && c.password != "" && c.calendarPath != ""
}

func (c *Client) connect() (*caldav.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: c.username,
			password: c.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

func (c *Client) eventPath(uid string) string {
	path := c.calendarPath
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path + uid + ".ics"
}

// PutEvent creates or replaces the event with the same UID.
func (c *Client) PutEvent(ctx context.Context, event *Event) error {
	if event.UID == "" {
		return fmt.Errorf("event UID is required")
	}
	client, err := c.connect()
	if err != nil {
		return err
	}

	cal := NewCalendar()
	cal.Children = append(cal.Children, NewEventComponent(event, time.Now()).Component)

	if _, err := client.PutCalendarObject(ctx, c.eventPath(event.UID), cal); err != nil {
		return fmt.Errorf("put event: %w", err)
	}
	return nil
}

func (c *Client) DeleteEvent(ctx context.Context, uid string) error {
	client, err := c.connect()
	if err != nil {
		return err
	}
	if err := client.RemoveAll(ctx, c.eventPath(uid)); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// NewCalendar returns an empty VCALENDAR with the mandatory properties set.
func NewCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	return cal
}

// NewEventComponent renders event as a VEVENT stamped at stamp.
func NewEventComponent(event *Event, stamp time.Time) *ical.Event {
	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, event.UID)
	vevent.Props.SetText(ical.PropSummary, event.Summary)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if len(event.Categories) > 0 {
		prop := ical.NewProp(ical.PropCategories)
		prop.Value = strings.Join(event.Categories, ",")
		vevent.Props.Set(prop)
	}

	if event.AllDay {
		end := event.End
		if end.IsZero() {
			end = event.Start.AddDate(0, 0, 1)
		}
		vevent.Props.SetDate(ical.PropDateTimeStart, event.Start)
		vevent.Props.SetDate(ical.PropDateTimeEnd, end)
	} else {
		vevent.Props.SetDateTime(ical.PropDateTimeStart, event.Start.UTC())
		if !event.End.IsZero() {
			vevent.Props.SetDateTime(ical.PropDateTimeEnd, event.End.UTC())
		}
	}

	if event.RRule != nil {
		vevent.Props.SetRecurrenceRule(event.RRule)
	}
	if event.Completed {
		vevent.Props.SetText(ical.PropStatus, "CANCELLED")
	}
	return vevent
}
