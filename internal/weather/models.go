package weather

import (
	"strings"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// NormalizeKey returns the canonical cache key for a location name.
// Keys are case-insensitive: "Tokyo" and "tokyo" address the same entry.
func NormalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Location is a resolved place as reported by the provider's search
// and forecast endpoints.
type Location struct {
	ID      int64  `json:"id,omitempty"`
	Name    string `json:"name"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// Key returns the canonical cache key for this location.
func (l Location) Key() string {
	return NormalizeKey(l.Name)
}

// CurrentConditions holds the normalized current weather for a location.
type CurrentConditions struct {
	TempC         float64   `json:"tempC"`
	FeelsLikeC    float64   `json:"feelsLikeC"`
	Humidity      float64   `json:"humidityPercent"`
	WindSpeed     float64   `json:"windSpeedMS"`
	Pressure      float64   `json:"pressureHpa"`
	PrecipMM      float64   `json:"precipMm"`
	UV            float64   `json:"uv"`
	IsDay         bool      `json:"isDay"`
	Condition     Condition `json:"condition"`
	ConditionText string    `json:"conditionText"`
}

// DaySummary is one day of the multi-day forecast.
type DaySummary struct {
	Date          time.Time `json:"date"` // midnight UTC
	MaxTempC      float64   `json:"maxTempC"`
	MinTempC      float64   `json:"minTempC"`
	AvgTempC      float64   `json:"avgTempC"`
	RainChance    int       `json:"rainChancePercent"`
	Condition     Condition `json:"condition"`
	ConditionText string    `json:"conditionText"`
	Sunrise       string    `json:"sunrise"`
	Sunset        string    `json:"sunset"`
}

// HourPoint is a single hourly forecast point.
type HourPoint struct {
	Time          time.Time `json:"time"`
	TempC         float64   `json:"tempC"`
	RainChance    int       `json:"rainChancePercent"`
	Condition     Condition `json:"condition"`
	ConditionText string    `json:"conditionText"`
}

// ForecastSnapshot is the immutable multi-day forecast view for a location.
// A refresh produces a whole new snapshot; existing snapshots are never
// mutated after creation.
type ForecastSnapshot struct {
	Location  Location          `json:"location"`
	FetchedAt time.Time         `json:"fetchedAt"` // always UTC
	Current   CurrentConditions `json:"current"`
	Days      []DaySummary      `json:"days"`  // ordered, one per forecast day
	Hours     []HourPoint       `json:"hours"` // hourly points for the first day
}
