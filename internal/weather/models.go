package weather

import (
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

// WeatherSnapshot is the current weather at a coordinate pair. It is replaced
// wholesale on every successful fetch.
type WeatherSnapshot struct {
	// Condition is the provider's human-readable description ("light rain")
	// and is what gets translated for display.
	Condition   string    `json:"condition"`
	Kind        Condition `json:"kind"`
	TempC       float64   `json:"tempC"`
	HumidityPct float64   `json:"humidityPct"`
	RainMm      float64   `json:"rainMm"`
	IconID      string    `json:"iconId"`
}

// RawForecastItem is one entry of a provider's 3-hour forecast series, in the
// shape it is cached.
type RawForecastItem struct {
	// Time is "YYYY-MM-DD HH:MM:SS" in the location's local time.
	Time        string   `json:"dt_txt"`
	TempC       float64  `json:"temp"`
	HumidityPct float64  `json:"humidity"`
	RainMm      *float64 `json:"rain3h,omitempty"`
}

// ForecastPoint is a display-ready forecast entry.
type ForecastPoint struct {
	TimeLabel   string  `json:"timeLabel"`
	TempC       float64 `json:"tempC"`
	HumidityPct float64 `json:"humidityPct"`
	RainMm      float64 `json:"rainMm"`
}

// Alert is a severe-weather warning issued for a location.
type Alert struct {
	Event       string     `json:"event"`
	Headline    string     `json:"headline,omitempty"`
	Description string     `json:"description"`
	Severity    string     `json:"severity,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
}

// ForecastResult carries the transformed series together with its age so
// callers can tell cached data from fresh data.
type ForecastResult struct {
	Points    []ForecastPoint `json:"points"`
	FetchedAt time.Time       `json:"fetchedAt"`
	FromCache bool            `json:"fromCache"`
}

// TimeFormat is the layout of RawForecastItem.Time.
const TimeFormat = "2006-01-02 15:04:05"
