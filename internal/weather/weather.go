// Package weather provides forecasts from the National Weather Service
// API (api.weather.gov). The NWS API needs no key but requires a
// User-Agent, which the shared HTTP client supplies.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Hezy4/LEO/internal/httpkit"
)

const defaultBaseURL = "https://api.weather.gov"

// Period is one forecast window (e.g. "Tonight", "Saturday").
type Period struct {
	Name             string `json:"name"`
	Temperature      int    `json:"temperature"`
	TemperatureUnit  string `json:"temperatureUnit"`
	WindSpeed        string `json:"windSpeed"`
	WindDirection    string `json:"windDirection"`
	ShortForecast    string `json:"shortForecast"`
	DetailedForecast string `json:"detailedForecast"`
}

// Client is a weather.gov API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a weather.gov client. baseURL is overridable for
// tests; empty uses the production API.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(15 * time.Second),
		),
	}
}

// pointsResponse maps a coordinate to its gridpoint forecast URL.
type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []Period `json:"periods"`
	} `json:"properties"`
}

// Forecast returns the forecast periods for a coordinate. The NWS API
// resolves coordinates to a gridpoint first, so this is two requests.
func (c *Client) Forecast(ctx context.Context, lat, lon float64) ([]Period, error) {
	var points pointsResponse
	path := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, lat, lon)
	if err := c.get(ctx, path, &points); err != nil {
		return nil, fmt.Errorf("resolve gridpoint: %w", err)
	}
	if points.Properties.Forecast == "" {
		return nil, fmt.Errorf("no forecast available for %.4f,%.4f", lat, lon)
	}

	var forecast forecastResponse
	if err := c.get(ctx, points.Properties.Forecast, &forecast); err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	return forecast.Properties.Periods, nil
}

func (c *Client) get(ctx context.Context, url string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 512)
		return fmt.Errorf("weather.gov HTTP %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
