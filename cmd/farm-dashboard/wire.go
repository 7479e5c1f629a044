package main

import (
	"context"
	"fmt"
	"net/http"

	"k8s.io/klog/v2"

	"github.com/i474232898/farm-dashboard/internal/config"
	"github.com/i474232898/farm-dashboard/internal/crops"
	"github.com/i474232898/farm-dashboard/internal/dashboard"
	"github.com/i474232898/farm-dashboard/internal/geo"
	"github.com/i474232898/farm-dashboard/internal/notify"
	"github.com/i474232898/farm-dashboard/internal/profile"
	"github.com/i474232898/farm-dashboard/internal/scheduler"
	"github.com/i474232898/farm-dashboard/internal/schemes"
	"github.com/i474232898/farm-dashboard/internal/store"
	"github.com/i474232898/farm-dashboard/internal/translate"
	"github.com/i474232898/farm-dashboard/internal/upstream"
	"github.com/i474232898/farm-dashboard/internal/weather"
	"github.com/i474232898/farm-dashboard/internal/weather/providers"
)

const userAgent = "farm-dashboard/1.0"

// components are the long-lived collaborators both commands build on.
type components struct {
	cfg       *config.AppConfig
	deps      dashboard.Deps
	kv        store.KV
	forecasts *weather.Cache
	notify    *notify.Service
	languages *translate.Languages
	closers   []func() error
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			klog.ErrorS(err, "closing component")
		}
	}
}

// newManager builds the session manager. A nil scheduler disables pollers.
func (c *components) newManager(sched *scheduler.Scheduler) *dashboard.Manager {
	return dashboard.NewManager(c.deps, sched, c.cfg.CropPollInterval, c.cfg.SessionIdleTTL)
}

func wire(ctx context.Context, cfg *config.AppConfig) (*components, error) {
	c := &components{cfg: cfg}

	// Shared HTTP client for outbound calls; every upstream gets its own
	// retry policy and circuit breaker on top.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	client := func(name string) *upstream.Client {
		return upstream.New(name, httpClient, upstream.WithHeader("User-Agent", userAgent))
	}

	kv, err := openKV(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.kv = kv
	if cl, ok := kv.(interface{ Close() error }); ok {
		c.closers = append(c.closers, cl.Close)
	}

	var cropStore crops.Store
	switch cfg.CropStore {
	case config.CropStoreSQL:
		s, err := crops.OpenSQLStore(ctx, cfg.CropDBDriver, cfg.CropDBDSN)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, s.Close)
		cropStore = s
	default:
		cropStore = crops.NewHTTPStore(cfg.BackendURL, client("crops"))
	}

	var geocoder geo.Geocoder
	if cfg.GoogleGeocoderAPIKey != "" {
		geocoder = geo.NewGoogleGeocoder(cfg.GoogleGeocoderAPIKey)
	} else {
		geocoder = geo.NewNominatimGeocoder(cfg.NominatimURL, client("nominatim"))
	}

	var provs []weather.Provider
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(client("openweather"), cfg.OpenWeatherAPIKey, ""))
	}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(client("weatherapi"), cfg.WeatherAPIKey, ""))
	}
	// Open-Meteo needs no key and backs the others.
	provs = append(provs, providers.NewOpenMeteoProvider(client("openmeteo"), cfg.OpenMeteoURL))
	c.forecasts = weather.NewCache(weather.NewFailover(provs...), kv, cfg.ForecastTTL, nil,
		weather.WithRetention(cfg.StoreMaxAge))

	c.languages, err = translate.NewLanguages(cfg.Languages)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("languages: %w", err)
	}
	base, err := c.languages.Normalize(cfg.BaseLanguage)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("base language: %w", err)
	}

	c.notify = notify.NewService(cropStore, kv)
	memo := translate.NewMemo(translate.NewHTTPService(cfg.BackendURL, client("translate")), base)
	c.deps = dashboard.Deps{
		Locations:    geo.NewResolver(geocoder, profile.NewHTTPStore(cfg.BackendURL, client("profile")), cfg.DefaultLocation),
		Weather:      c.forecasts,
		Crops:        cropStore,
		Schemes:      schemes.NewMatcher(schemes.NewHTTPService(cfg.BackendURL, client("schemes")), nil),
		Translator:   memo,
		BaseLanguage: memo.Base(),
	}

	klog.FromContext(ctx).Info("components wired",
		"store", cfg.StoreBackend, "cropStore", cfg.CropStore, "weatherProviders", len(provs), "languages", c.languages.Codes())
	return c, nil
}

func openKV(ctx context.Context, cfg *config.AppConfig) (store.KV, error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		return store.NewRedisStore(ctx, store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "farm-dashboard:",
		})
	case config.StoreSQLite:
		return store.NewSQLiteStore(cfg.SQLitePath)
	default:
		return store.NewMemoryStore(), nil
	}
}
