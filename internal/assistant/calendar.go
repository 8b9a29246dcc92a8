package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aura-rag/internal/config"
)

const dateLayout = "2006-01-02"

// CalendarClient reads events from the academic calendar API.
type CalendarClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewCalendarClient(cfg config.CalendarConfig) *CalendarClient {
	return &CalendarClient{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		HTTP:    &http.Client{Timeout: cfg.Timeout},
	}
}

// EventsInDuration returns the events between two YYYY-MM-DD dates, inclusive.
func (c *CalendarClient) EventsInDuration(ctx context.Context, startDate, endDate string) (json.RawMessage, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start_date %q: %w", startDate, err)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end_date %q: %w", endDate, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end_date %s is before start_date %s", endDate, startDate)
	}
	return c.get(ctx, "/get_events_in_duration", url.Values{"start_date": {startDate}, "end_date": {endDate}})
}

// EventsByType returns the events of one kind, e.g. "exam".
func (c *CalendarClient) EventsByType(ctx context.Context, eventType string) (json.RawMessage, error) {
	if strings.TrimSpace(eventType) == "" {
		return nil, fmt.Errorf("event_type is required")
	}
	return c.get(ctx, "/get_events_by_type", url.Values{"event_type": {eventType}})
}

func (c *CalendarClient) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar request failed: %d, %s", resp.StatusCode, string(body))
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("calendar returned invalid JSON")
	}
	return json.RawMessage(body), nil
}
