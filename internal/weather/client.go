package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotConfigured is returned when no API key was supplied at startup.
var ErrNotConfigured = errors.New("weather: api key not configured")

// ErrUpstream wraps non-2xx responses from the provider.
var ErrUpstream = errors.New("weather: upstream error")

// Conditions is a single weather descriptor as reported by the provider.
type Conditions struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Current is the provider's current-weather payload, trimmed to the
// fields the API actually serves.
type Current struct {
	Weather []Conditions `json:"weather"`
	Main    struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  float64 `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Visibility float64 `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
		Gust  float64 `json:"gust"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	DT  int64 `json:"dt"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Name string `json:"name"`
}

// ForecastEntry is one 3-hour slot of the 5-day forecast.
type ForecastEntry struct {
	DT   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		TempMin  float64 `json:"temp_min"`
		TempMax  float64 `json:"temp_max"`
		Pressure float64 `json:"pressure"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []Conditions `json:"weather"`
	Wind    struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Visibility float64 `json:"visibility"`
	POP        float64 `json:"pop"`
}

// Forecast is the provider's 5-day / 3-hour forecast payload.
type Forecast struct {
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	List []ForecastEntry `json:"list"`
}

// Client talks to the OpenWeatherMap data API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Current fetches current conditions for a coordinate pair in metric units.
func (c *Client) Current(ctx context.Context, lat, lon float64) (Current, error) {
	var out Current
	if err := c.get(ctx, "/weather", lat, lon, 0, &out); err != nil {
		return Current{}, err
	}
	return out, nil
}

// FiveDay fetches the 3-hour step forecast. cnt caps the number of slots;
// 40 covers the full five days.
func (c *Client) FiveDay(ctx context.Context, lat, lon float64, cnt int) (Forecast, error) {
	var out Forecast
	if err := c.get(ctx, "/forecast", lat, lon, cnt, &out); err != nil {
		return Forecast{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, lat, lon float64, cnt int, out any) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	if cnt > 0 {
		q.Set("cnt", strconv.Itoa(cnt))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("weather: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("weather: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("weather: decode response: %w", err)
	}
	return nil
}
