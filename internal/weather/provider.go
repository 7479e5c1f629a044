package weather

import (
	"context"
)

// Provider abstracts a weather data source (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
// lang asks the provider for condition descriptions in that language where
// supported.
type Provider interface {
	Name() string
	Current(ctx context.Context, lat, lon float64, lang string) (WeatherSnapshot, error)
	Forecast(ctx context.Context, lat, lon float64, lang string) ([]RawForecastItem, error)
	// Alerts returns zero or more active alerts. Providers without an alert
	// feed return nil, nil.
	Alerts(ctx context.Context, lat, lon float64, lang string) ([]Alert, error)
}
