// Package holidays fetches national holiday calendars.
package holidays

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tazhate/fiscalbot/internal/domain"
)

// Client talks to the BrasilAPI holiday endpoint
// (GET {baseURL}/{year} returning a JSON array).
type Client struct {
	baseURL    string
	loc        *time.Location
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration, loc *time.Location) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		loc:     loc,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// List returns the raw holiday entries for year.
func (c *Client) List(ctx context.Context, year int) ([]Holiday, error) {
	body, err := c.doRequest(ctx, fmt.Sprintf("/%d", year))
	if err != nil {
		return nil, err
	}

	var list []Holiday
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("unmarshal holidays: %w", err)
	}
	return list, nil
}

// Holidays implements calendar.HolidaySource.
func (c *Client) Holidays(ctx context.Context, year int) ([]time.Time, error) {
	list, err := c.List(ctx, year)
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, 0, len(list))
	for _, h := range list {
		d, err := domain.ParseDate(h.Date, c.loc)
		if err != nil {
			return nil, fmt.Errorf("parse holiday %q: %w", h.Name, err)
		}
		dates = append(dates, d)
	}
	return dates, nil
}
