package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/farm-dashboard/internal/common"
	"github.com/i474232898/farm-dashboard/internal/upstream"
	"github.com/i474232898/farm-dashboard/internal/weather"
)

const defaultWeatherAPIURL = "https://api.weatherapi.com/v1"

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *upstream.Client
}

func NewWeatherAPIProvider(client *upstream.Client, apiKey, baseURL string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: trimBase(baseURL, defaultWeatherAPIURL),
		client:  client,
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) url(path string, lat, lon float64, lang string, extra url.Values) string {
	values := url.Values{}
	values.Set("key", p.apiKey)
	// WeatherAPI uses "q" for location; it accepts "lat,lon".
	values.Set("q", formatCoord(lat)+","+formatCoord(lon))
	if lang != "" && lang != "en" {
		values.Set("lang", lang)
	}
	for k, v := range extra {
		values[k] = v
	}
	return fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
}

type wapiCondition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Code int    `json:"code"`
}

func (p *WeatherAPIProvider) Current(ctx context.Context, lat, lon float64, lang string) (weather.WeatherSnapshot, error) {
	if p.apiKey == "" {
		return weather.WeatherSnapshot{}, fmt.Errorf("weatherapi: %w", errMissingAPIKey)
	}

	var payload struct {
		Current struct {
			TempC     float64       `json:"temp_c"`
			Humidity  float64       `json:"humidity"`
			PrecipMm  float64       `json:"precip_mm"`
			Condition wapiCondition `json:"condition"`
		} `json:"current"`
	}
	if err := p.client.GetJSON(ctx, p.url("/current.json", lat, lon, lang, nil), &payload); err != nil {
		return weather.WeatherSnapshot{}, err
	}

	c := payload.Current
	return weather.WeatherSnapshot{
		Condition:   strings.TrimSpace(c.Condition.Text),
		Kind:        mapWeatherAPICondition(c.Condition.Text),
		TempC:       c.TempC,
		HumidityPct: c.Humidity,
		RainMm:      c.PrecipMm,
		IconID:      fmt.Sprint(c.Condition.Code),
	}, nil
}

type wapiForecast struct {
	Forecast struct {
		Forecastday []struct {
			Hour []struct {
				Time     string  `json:"time"`
				TempC    float64 `json:"temp_c"`
				Humidity float64 `json:"humidity"`
				PrecipMm float64 `json:"precip_mm"`
			} `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
	Alerts struct {
		Alert []struct {
			Headline  string `json:"headline"`
			Severity  string `json:"severity"`
			Event     string `json:"event"`
			Desc      string `json:"desc"`
			Effective string `json:"effective"`
			Expires   string `json:"expires"`
		} `json:"alert"`
	} `json:"alerts"`
}

func (p *WeatherAPIProvider) fetchForecast(ctx context.Context, lat, lon float64, lang string, days int, alerts bool) (wapiForecast, error) {
	if p.apiKey == "" {
		return wapiForecast{}, fmt.Errorf("weatherapi: %w", errMissingAPIKey)
	}
	extra := url.Values{}
	extra.Set("days", fmt.Sprint(days))
	extra.Set("aqi", "no")
	if alerts {
		extra.Set("alerts", "yes")
	} else {
		extra.Set("alerts", "no")
	}

	var payload wapiForecast
	err := p.client.GetJSON(ctx, p.url("/forecast.json", lat, lon, lang, extra), &payload)
	return payload, err
}

// Forecast samples the hourly series every 3 hours, summing precipitation
// over each 3-hour window to match the 3-hour series shape.
func (p *WeatherAPIProvider) Forecast(ctx context.Context, lat, lon float64, lang string) ([]weather.RawForecastItem, error) {
	payload, err := p.fetchForecast(ctx, lat, lon, lang, 3, false)
	if err != nil {
		return nil, err
	}

	var items []weather.RawForecastItem
	for _, day := range payload.Forecast.Forecastday {
		for i := 0; i < len(day.Hour); i += 3 {
			h := day.Hour[i]
			rain := 0.0
			for j := i; j < i+3 && j < len(day.Hour); j++ {
				rain += day.Hour[j].PrecipMm
			}
			items = append(items, weather.RawForecastItem{
				// "2024-06-01 03:00" -> "2024-06-01 03:00:00"
				Time:        h.Time + ":00",
				TempC:       h.TempC,
				HumidityPct: h.Humidity,
				RainMm:      ptr(rain),
			})
		}
	}
	return items, nil
}

func (p *WeatherAPIProvider) Alerts(ctx context.Context, lat, lon float64, lang string) ([]weather.Alert, error) {
	payload, err := p.fetchForecast(ctx, lat, lon, lang, 1, true)
	if err != nil {
		return nil, err
	}

	alerts := make([]weather.Alert, 0, len(payload.Alerts.Alert))
	for _, a := range payload.Alerts.Alert {
		alert := weather.Alert{
			Event:       a.Event,
			Headline:    a.Headline,
			Description: a.Desc,
			Severity:    a.Severity,
		}
		if t, err := time.Parse(time.RFC3339, a.Effective); err == nil {
			alert.Start = ptr(t.UTC())
		}
		if t, err := time.Parse(time.RFC3339, a.Expires); err == nil {
			alert.End = ptr(t.UTC())
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func mapWeatherAPICondition(text string) weather.Condition {
	switch {
	case text == "":
		return weather.ConditionUnknown
	case common.HasAny(text, "thunder", "storm"):
		return weather.ConditionStorm
	case common.HasAny(text, "rain", "shower", "drizzle"):
		return weather.ConditionRain
	case common.HasAny(text, "snow", "sleet", "blizzard"):
		return weather.ConditionSnow
	case common.HasAny(text, "mist", "fog", "haze"):
		return weather.ConditionMist
	case common.HasAny(text, "cloud", "overcast"):
		return weather.ConditionCloudy
	case common.HasAny(text, "sunny", "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
