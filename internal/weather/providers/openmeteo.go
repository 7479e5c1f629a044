package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/farm-dashboard/internal/upstream"
	"github.com/i474232898/farm-dashboard/internal/weather"
)

const (
	defaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"
	// Hourly timestamps look like "2024-06-01T03:00".
	openMeteoTimeFormat = "2006-01-02T15:04"
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// It needs no API key and has no alert feed.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	client  *upstream.Client
}

func NewOpenMeteoProvider(client *upstream.Client, baseURL string) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: trimBase(baseURL, defaultOpenMeteoURL),
		client:  client,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) url(lat, lon float64, extra url.Values) string {
	values := url.Values{}
	coords(values, "latitude", "longitude", lat, lon)
	values.Set("timezone", "auto")
	for k, v := range extra {
		values[k] = v
	}
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

// Current ignores lang: Open-Meteo only reports WMO codes, which are
// described in English and translated downstream.
func (p *OpenMeteoProvider) Current(ctx context.Context, lat, lon float64, _ string) (weather.WeatherSnapshot, error) {
	extra := url.Values{}
	extra.Set("current", "temperature_2m,relative_humidity_2m,precipitation,weather_code")

	var payload struct {
		Current struct {
			Temperature   float64 `json:"temperature_2m"`
			Humidity      float64 `json:"relative_humidity_2m"`
			Precipitation float64 `json:"precipitation"`
			WeatherCode   int     `json:"weather_code"`
		} `json:"current"`
	}
	if err := p.client.GetJSON(ctx, p.url(lat, lon, extra), &payload); err != nil {
		return weather.WeatherSnapshot{}, err
	}

	c := payload.Current
	return weather.WeatherSnapshot{
		Condition:   describeOpenMeteoCode(c.WeatherCode),
		Kind:        mapOpenMeteoCondition(c.WeatherCode),
		TempC:       c.Temperature,
		HumidityPct: c.Humidity,
		RainMm:      c.Precipitation,
		IconID:      strconv.Itoa(c.WeatherCode),
	}, nil
}

// Forecast samples the hourly series every 3 hours and sums precipitation
// over each window.
func (p *OpenMeteoProvider) Forecast(ctx context.Context, lat, lon float64, _ string) ([]weather.RawForecastItem, error) {
	extra := url.Values{}
	extra.Set("hourly", "temperature_2m,relative_humidity_2m,precipitation")
	extra.Set("forecast_days", "5")

	var payload struct {
		Hourly struct {
			Time          []string  `json:"time"`
			Temperature   []float64 `json:"temperature_2m"`
			Humidity      []float64 `json:"relative_humidity_2m"`
			Precipitation []float64 `json:"precipitation"`
		} `json:"hourly"`
	}
	if err := p.client.GetJSON(ctx, p.url(lat, lon, extra), &payload); err != nil {
		return nil, err
	}

	h := payload.Hourly
	n := len(h.Time)
	if len(h.Temperature) < n || len(h.Humidity) < n || len(h.Precipitation) < n {
		return nil, fmt.Errorf("openmeteo: hourly series have mismatched lengths")
	}

	items := make([]weather.RawForecastItem, 0, n/3+1)
	for i := 0; i < n; i += 3 {
		at, err := time.Parse(openMeteoTimeFormat, h.Time[i])
		if err != nil {
			return nil, fmt.Errorf("openmeteo: %w", err)
		}
		rain := 0.0
		for j := i; j < i+3 && j < n; j++ {
			rain += h.Precipitation[j]
		}
		items = append(items, weather.RawForecastItem{
			Time:        at.Format(weather.TimeFormat),
			TempC:       h.Temperature[i],
			HumidityPct: h.Humidity[i],
			RainMm:      ptr(rain),
		})
	}
	return items, nil
}

func (p *OpenMeteoProvider) Alerts(context.Context, float64, float64, string) ([]weather.Alert, error) {
	return nil, nil
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// Mapping based on Open-Meteo weather codes (simplified).
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}

func describeOpenMeteoCode(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code == 1:
		return "mainly clear"
	case code == 2:
		return "partly cloudy"
	case code == 3:
		return "overcast"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code == 85 || code == 86:
		return "snow showers"
	case code >= 95:
		return "thunderstorm"
	default:
		return "unknown"
	}
}
