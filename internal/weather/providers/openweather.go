package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/i474232898/farm-dashboard/internal/upstream"
	"github.com/i474232898/farm-dashboard/internal/weather"
)

const defaultOpenWeatherURL = "https://api.openweathermap.org"

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
// Current conditions and the 5-day/3-hour forecast come from the 2.5 API;
// alerts come from One Call 3.0, which needs a separate subscription.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *upstream.Client
}

func NewOpenWeatherProvider(client *upstream.Client, apiKey, baseURL string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: trimBase(baseURL, defaultOpenWeatherURL),
		client:  client,
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) url(path string, lat, lon float64, lang string, extra url.Values) string {
	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	coords(values, "lat", "lon", lat, lon)
	if lang != "" {
		values.Set("lang", lang)
	}
	for k, v := range extra {
		values[k] = v
	}
	return fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
}

type owmWeather struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

func (p *OpenWeatherProvider) Current(ctx context.Context, lat, lon float64, lang string) (weather.WeatherSnapshot, error) {
	if p.apiKey == "" {
		return weather.WeatherSnapshot{}, fmt.Errorf("openweather: %w", errMissingAPIKey)
	}

	var payload struct {
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Rain struct {
			OneH float64 `json:"1h"`
		} `json:"rain"`
		Weather []owmWeather `json:"weather"`
	}
	if err := p.client.GetJSON(ctx, p.url("/data/2.5/weather", lat, lon, lang, nil), &payload); err != nil {
		return weather.WeatherSnapshot{}, err
	}

	snap := weather.WeatherSnapshot{
		Kind:        weather.ConditionUnknown,
		TempC:       payload.Main.Temp,
		HumidityPct: payload.Main.Humidity,
		RainMm:      payload.Rain.OneH,
	}
	if len(payload.Weather) > 0 {
		w := payload.Weather[0]
		snap.Condition = w.Description
		snap.Kind = mapOpenWeatherCondition(w.Main)
		snap.IconID = w.Icon
	}
	return snap, nil
}

func (p *OpenWeatherProvider) Forecast(ctx context.Context, lat, lon float64, lang string) ([]weather.RawForecastItem, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather: %w", errMissingAPIKey)
	}

	var payload struct {
		List []struct {
			DtTxt string `json:"dt_txt"`
			Main  struct {
				Temp     float64 `json:"temp"`
				Humidity float64 `json:"humidity"`
			} `json:"main"`
			Rain *struct {
				ThreeH *float64 `json:"3h"`
			} `json:"rain"`
		} `json:"list"`
	}
	if err := p.client.GetJSON(ctx, p.url("/data/2.5/forecast", lat, lon, lang, nil), &payload); err != nil {
		return nil, err
	}
	if payload.List == nil {
		return nil, fmt.Errorf("openweather: forecast response has no list")
	}

	items := make([]weather.RawForecastItem, 0, len(payload.List))
	for _, e := range payload.List {
		item := weather.RawForecastItem{
			Time:        e.DtTxt,
			TempC:       e.Main.Temp,
			HumidityPct: e.Main.Humidity,
		}
		if e.Rain != nil {
			item.RainMm = e.Rain.ThreeH
		}
		items = append(items, item)
	}
	return items, nil
}

func (p *OpenWeatherProvider) Alerts(ctx context.Context, lat, lon float64, lang string) ([]weather.Alert, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather: %w", errMissingAPIKey)
	}

	extra := url.Values{}
	extra.Set("exclude", "current,minutely,hourly,daily")

	var payload struct {
		Alerts []struct {
			SenderName  string   `json:"sender_name"`
			Event       string   `json:"event"`
			Start       int64    `json:"start"`
			End         int64    `json:"end"`
			Description string   `json:"description"`
			Tags        []string `json:"tags"`
		} `json:"alerts"`
	}
	if err := p.client.GetJSON(ctx, p.url("/data/3.0/onecall", lat, lon, lang, extra), &payload); err != nil {
		return nil, err
	}

	alerts := make([]weather.Alert, 0, len(payload.Alerts))
	for _, a := range payload.Alerts {
		alert := weather.Alert{
			Event:       a.Event,
			Headline:    a.SenderName,
			Description: a.Description,
		}
		if len(a.Tags) > 0 {
			alert.Severity = a.Tags[0]
		}
		if a.Start > 0 {
			alert.Start = ptr(time.Unix(a.Start, 0).UTC())
		}
		if a.End > 0 {
			alert.End = ptr(time.Unix(a.End, 0).UTC())
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func mapOpenWeatherCondition(main string) weather.Condition {
	switch main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionCloudy
	case "Rain", "Drizzle":
		return weather.ConditionRain
	case "Snow":
		return weather.ConditionSnow
	case "Thunderstorm":
		return weather.ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke", "Dust":
		return weather.ConditionMist
	default:
		return weather.ConditionUnknown
	}
}
