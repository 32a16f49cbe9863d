package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Client talks to WeatherAPI.com. It carries no caching logic; the caching
// layer owns dedup, freshness and retry-on-poll semantics.
type Client struct {
	apiKey      string
	searchURL   string
	forecastURL string
	httpCfg     HTTPClientConfig
	circuit     *gobreaker.CircuitBreaker
}

// NewClient creates a WeatherAPI.com client with resilience settings
// (backoff + circuit breaker) for outbound calls.
func NewClient(httpClient *http.Client, apiKey string) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weatherapi",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		apiKey:      apiKey,
		searchURL:   "https://api.weatherapi.com/v1/search.json",
		forecastURL: "https://api.weatherapi.com/v1/forecast.json",
		httpCfg: HTTPClientConfig{
			Client: httpClient,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
}

// SetBaseURLs overrides the provider endpoints. Used in tests.
func (c *Client) SetBaseURLs(searchURL, forecastURL string) {
	c.searchURL = searchURL
	c.forecastURL = forecastURL
}

// Search resolves a free-text query into candidate locations.
func (c *Client) Search(ctx context.Context, query string) ([]Location, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", c.apiKey)
		values.Set("q", query)

		u := fmt.Sprintf("%s?%s", c.searchURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload []struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Region  string `json:"region"`
		Country string `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	locations := make([]Location, 0, len(payload))
	for _, p := range payload {
		locations = append(locations, Location{
			ID:      p.ID,
			Name:    p.Name,
			Region:  p.Region,
			Country: p.Country,
		})
	}
	return locations, nil
}

// Forecast fetches the multi-day forecast for a location query. The returned
// snapshot contains current conditions, one summary per day, and the hourly
// points of the first day.
func (c *Client) Forecast(ctx context.Context, location string, days int) (*ForecastSnapshot, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", c.apiKey)
		values.Set("q", location)
		values.Set("days", fmt.Sprintf("%d", days))

		u := fmt.Sprintf("%s?%s", c.forecastURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload forecastPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	return payload.toSnapshot(), nil
}

// forecastPayload mirrors the WeatherAPI.com forecast.json response.
type forecastPayload struct {
	Location struct {
		Name    string `json:"name"`
		Region  string `json:"region"`
		Country string `json:"country"`
	} `json:"location"`
	Current struct {
		TempC      float64 `json:"temp_c"`
		FeelsLikeC float64 `json:"feelslike_c"`
		Humidity   float64 `json:"humidity"`
		WindKph    float64 `json:"wind_kph"`
		PressureMb float64 `json:"pressure_mb"`
		PrecipMm   float64 `json:"precip_mm"`
		UV         float64 `json:"uv"`
		IsDay      int     `json:"is_day"`
		Condition  struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			DateEpoch int64 `json:"date_epoch"`
			Day       struct {
				MaxTempC      float64 `json:"maxtemp_c"`
				MinTempC      float64 `json:"mintemp_c"`
				AvgTempC      float64 `json:"avgtemp_c"`
				ChanceOfRain int     `json:"daily_chance_of_rain"`
				Condition    struct {
					Text string `json:"text"`
				} `json:"condition"`
			} `json:"day"`
			Astro struct {
				Sunrise string `json:"sunrise"`
				Sunset  string `json:"sunset"`
			} `json:"astro"`
			Hour []struct {
				TimeEpoch    int64   `json:"time_epoch"`
				TempC        float64 `json:"temp_c"`
				ChanceOfRain int     `json:"chance_of_rain"`
				Condition    struct {
					Text string `json:"text"`
				} `json:"condition"`
			} `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func (p *forecastPayload) toSnapshot() *ForecastSnapshot {
	snap := &ForecastSnapshot{
		Location: Location{
			Name:    p.Location.Name,
			Region:  p.Location.Region,
			Country: p.Location.Country,
		},
		FetchedAt: time.Now().UTC(),
		Current: CurrentConditions{
			TempC:      p.Current.TempC,
			FeelsLikeC: p.Current.FeelsLikeC,
			Humidity:   p.Current.Humidity,
			// Convert wind from kph to m/s (approx).
			WindSpeed:     p.Current.WindKph / 3.6,
			Pressure:      p.Current.PressureMb,
			PrecipMM:      p.Current.PrecipMm,
			UV:            p.Current.UV,
			IsDay:         p.Current.IsDay == 1,
			Condition:     mapConditionText(p.Current.Condition.Text),
			ConditionText: p.Current.Condition.Text,
		},
	}

	for _, fd := range p.Forecast.ForecastDay {
		date := time.Unix(fd.DateEpoch, 0).UTC()
		snap.Days = append(snap.Days, DaySummary{
			Date:          time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
			MaxTempC:      fd.Day.MaxTempC,
			MinTempC:      fd.Day.MinTempC,
			AvgTempC:      fd.Day.AvgTempC,
			RainChance:    fd.Day.ChanceOfRain,
			Condition:     mapConditionText(fd.Day.Condition.Text),
			ConditionText: fd.Day.Condition.Text,
			Sunrise:       fd.Astro.Sunrise,
			Sunset:        fd.Astro.Sunset,
		})
	}

	// Hourly detail only for the first forecast day.
	if len(p.Forecast.ForecastDay) > 0 {
		for _, h := range p.Forecast.ForecastDay[0].Hour {
			snap.Hours = append(snap.Hours, HourPoint{
				Time:          time.Unix(h.TimeEpoch, 0).UTC(),
				TempC:         h.TempC,
				RainChance:    h.ChanceOfRain,
				Condition:     mapConditionText(h.Condition.Text),
				ConditionText: h.Condition.Text,
			})
		}
	}

	return snap
}

func mapConditionText(text string) Condition {
	switch {
	case text == "":
		return ConditionUnknown
	case contains(text, "rain") || contains(text, "shower") || contains(text, "drizzle"):
		return ConditionRain
	case contains(text, "snow") || contains(text, "sleet") || contains(text, "blizzard"):
		return ConditionSnow
	case contains(text, "thunder") || contains(text, "storm"):
		return ConditionStorm
	case contains(text, "mist") || contains(text, "fog"):
		return ConditionMist
	case contains(text, "cloud") || contains(text, "overcast"):
		return ConditionCloudy
	case contains(text, "sunny") || contains(text, "clear"):
		return ConditionClear
	default:
		return ConditionUnknown
	}
}

func contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
