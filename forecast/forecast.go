package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.open-meteo.com"

// Request describes one hourly forecast query for a fixed location and
// time window.
type Request struct {
	Latitude        float64
	Longitude       float64
	Timezone        string
	ForecastDays    int
	ForecastHours   int
	HourlyVariables []string
}

// Payload is the decoded hourly forecast. Series values keep the order of
// Timestamps; JSON nulls in the source arrays decode to zero.
type Payload struct {
	Timestamps []string
	Units      map[string]string
	Series     map[string][]float64
}

// JSON re-serializes the payload into the provider's response shape
// (hourly / hourly_units), which is what the summary prompt embeds.
func (p *Payload) JSON() (string, error) {
	hourly := make(map[string]any, len(p.Series)+1)
	hourly["time"] = p.Timestamps
	for name, values := range p.Series {
		hourly[name] = values
	}

	data, err := json.Marshal(map[string]any{
		"hourly":       hourly,
		"hourly_units": p.Units,
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// Client fetches hourly forecasts from the Open-Meteo API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// NewClient creates a new Open-Meteo client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch issues one forecast request. There is no caching and no retry; any
// transport or non-2xx failure is returned as an error.
func (c *Client) Fetch(ctx context.Context, r Request) (*Payload, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(r.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(r.Longitude, 'f', -1, 64))
	values.Set("hourly", strings.Join(r.HourlyVariables, ","))
	values.Set("timezone", r.Timezone)
	values.Set("forecast_days", strconv.Itoa(r.ForecastDays))
	values.Set("forecast_hours", strconv.Itoa(r.ForecastHours))

	reqURL := c.baseURL + "/v1/forecast?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var raw struct {
		Hourly      map[string]json.RawMessage `json:"hourly"`
		HourlyUnits map[string]string          `json:"hourly_units"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	timeRaw, ok := raw.Hourly["time"]
	if !ok {
		return nil, fmt.Errorf("response missing hourly.time")
	}

	payload := &Payload{
		Units:  raw.HourlyUnits,
		Series: make(map[string][]float64, len(raw.Hourly)-1),
	}
	if err := json.Unmarshal(timeRaw, &payload.Timestamps); err != nil {
		return nil, fmt.Errorf("decode hourly.time: %w", err)
	}

	for name, data := range raw.Hourly {
		if name == "time" {
			continue
		}
		var values []float64
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("decode hourly.%s: %w", name, err)
		}
		payload.Series[name] = values
	}

	return payload, nil
}
