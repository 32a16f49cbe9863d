package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const forecastBody = `{
  "location": {"name": "London", "region": "City of London, Greater London", "country": "United Kingdom"},
  "current": {
    "temp_c": 11.0, "feelslike_c": 9.5, "humidity": 82, "wind_kph": 18.0,
    "pressure_mb": 1012.0, "precip_mm": 0.2, "uv": 3, "is_day": 1,
    "condition": {"text": "Partly cloudy"}
  },
  "forecast": {"forecastday": [
    {
      "date_epoch": 1756598400,
      "day": {"maxtemp_c": 14.0, "mintemp_c": 8.0, "avgtemp_c": 11.0,
              "daily_chance_of_rain": 40, "condition": {"text": "Light rain"}},
      "astro": {"sunrise": "06:12 AM", "sunset": "07:48 PM"},
      "hour": [
        {"time_epoch": 1756598400, "temp_c": 8.0, "chance_of_rain": 10, "condition": {"text": "Clear"}},
        {"time_epoch": 1756602000, "temp_c": 8.5, "chance_of_rain": 20, "condition": {"text": "Patchy rain possible"}}
      ]
    },
    {
      "date_epoch": 1756684800,
      "day": {"maxtemp_c": 16.0, "mintemp_c": 9.0, "avgtemp_c": 12.5,
              "daily_chance_of_rain": 0, "condition": {"text": "Sunny"}},
      "astro": {"sunrise": "06:13 AM", "sunset": "07:46 PM"},
      "hour": [
        {"time_epoch": 1756684800, "temp_c": 9.0, "chance_of_rain": 0, "condition": {"text": "Clear"}}
      ]
    }
  ]}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(srv.Client(), "test-key")
	client.SetBaseURLs(srv.URL+"/search.json", srv.URL+"/forecast.json")
	return client, srv
}

func TestForecastDecodesSnapshot(t *testing.T) {
	var gotQuery, gotDays string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotDays = r.URL.Query().Get("days")
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write([]byte(forecastBody))
	})

	snap, err := client.Forecast(context.Background(), "london", 7)
	require.NoError(t, err)
	assert.Equal(t, "london", gotQuery)
	assert.Equal(t, "7", gotDays)

	assert.Equal(t, "London", snap.Location.Name)
	assert.Equal(t, "london", snap.Location.Key())
	assert.Equal(t, 11.0, snap.Current.TempC)
	assert.Equal(t, ConditionCloudy, snap.Current.Condition)
	assert.True(t, snap.Current.IsDay)
	assert.InDelta(t, 5.0, snap.Current.WindSpeed, 0.01) // 18 kph -> m/s

	require.Len(t, snap.Days, 2)
	assert.Equal(t, 14.0, snap.Days[0].MaxTempC)
	assert.Equal(t, ConditionRain, snap.Days[0].Condition)
	assert.Equal(t, 40, snap.Days[0].RainChance)
	assert.Equal(t, "06:12 AM", snap.Days[0].Sunrise)
	assert.Equal(t, ConditionClear, snap.Days[1].Condition)

	// Hourly points come from the first day only.
	require.Len(t, snap.Hours, 2)
	assert.Equal(t, 8.5, snap.Hours[1].TempC)
	assert.Equal(t, 20, snap.Hours[1].RainChance)
}

func TestSearchDecodesLocations(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "lond", r.URL.Query().Get("q"))
		w.Write([]byte(`[
			{"id": 2801268, "name": "London", "region": "City of London, Greater London", "country": "United Kingdom"},
			{"id": 315398, "name": "London", "region": "Ontario", "country": "Canada"}
		]`))
	})

	locs, err := client.Search(context.Background(), "lond")
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "United Kingdom", locs[0].Country)
	assert.Equal(t, int64(315398), locs[1].ID)
}

func TestNotFoundResponseNotRetried(t *testing.T) {
	var calls int
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"code": 1006, "message": "No matching location found."}}`))
	})

	_, err := client.Forecast(context.Background(), "atlantis", 7)
	require.Error(t, err)
	assert.Equal(t, ErrorNotFound, Classify(err))
	assert.Equal(t, 1, calls, "4xx provider errors must not be retried")
}

func TestInvalidKeyClassifiedAsConfiguration(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 2006, "message": "API key provided is invalid"}}`))
	})

	_, err := client.Forecast(context.Background(), "london", 7)
	require.Error(t, err)
	assert.Equal(t, ErrorConfiguration, Classify(err))
}

func TestMissingAPIKeyRefusedLocally(t *testing.T) {
	client := NewClient(&http.Client{Timeout: time.Second}, "")

	_, err := client.Forecast(context.Background(), "london", 7)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Equal(t, ErrorConfiguration, Classify(err))

	_, err = client.Search(context.Background(), "lond")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestServerErrorsClassifiedTransient(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Forecast(context.Background(), "london", 7)
	require.Error(t, err)
	assert.Equal(t, ErrorTransient, Classify(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ErrorNone},
		{"no match", &APIError{Code: 1006}, ErrorNotFound},
		{"key not provided", &APIError{Code: 1002}, ErrorConfiguration},
		{"quota exceeded", &APIError{Code: 2007}, ErrorConfiguration},
		{"unknown api code", &APIError{Code: 9999}, ErrorTransient},
		{"missing key", ErrMissingAPIKey, ErrorConfiguration},
		{"plain network error", errors.New("connection refused"), ErrorTransient},
		{"timeout", context.DeadlineExceeded, ErrorTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
