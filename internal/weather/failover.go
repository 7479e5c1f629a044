package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"k8s.io/klog/v2"
)

var errNoProviders = errors.New("no weather providers configured")

// Failover tries each provider in order and returns the first success.
type Failover struct {
	providers []Provider
}

// NewFailover returns a Provider that walks providers in order.
func NewFailover(providers ...Provider) *Failover {
	return &Failover{providers: providers}
}

func (f *Failover) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return "failover(" + strings.Join(names, ",") + ")"
}

func (f *Failover) Current(ctx context.Context, lat, lon float64, lang string) (WeatherSnapshot, error) {
	return firstOf(ctx, f.providers, "current", func(p Provider) (WeatherSnapshot, error) {
		return p.Current(ctx, lat, lon, lang)
	})
}

func (f *Failover) Forecast(ctx context.Context, lat, lon float64, lang string) ([]RawForecastItem, error) {
	return firstOf(ctx, f.providers, "forecast", func(p Provider) ([]RawForecastItem, error) {
		return p.Forecast(ctx, lat, lon, lang)
	})
}

func (f *Failover) Alerts(ctx context.Context, lat, lon float64, lang string) ([]Alert, error) {
	return firstOf(ctx, f.providers, "alerts", func(p Provider) ([]Alert, error) {
		return p.Alerts(ctx, lat, lon, lang)
	})
}

func firstOf[T any](ctx context.Context, providers []Provider, op string, call func(Provider) (T, error)) (T, error) {
	var zero T
	if len(providers) == 0 {
		return zero, errNoProviders
	}

	log := klog.FromContext(ctx)
	var errs []error
	for _, p := range providers {
		v, err := call(p)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		log.Info("weather provider failed, trying next", "provider", p.Name(), "op", op, "error", err.Error())
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return zero, errors.Join(errs...)
}
