package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"k8s.io/klog/v2"

	"github.com/i474232898/farm-dashboard/internal/metrics"
	"github.com/i474232898/farm-dashboard/internal/store"
)

// DefaultForecastTTL is how long a cached forecast stays fresh.
const DefaultForecastTTL = 5 * time.Minute

// cachedForecast is the persisted form of a forecast.
type cachedForecast struct {
	FetchedAtMs int64             `json:"fetchedAtMs"`
	Payload     []RawForecastItem `json:"payload"`
}

// Cache serves forecasts from a durable store while they are fresh and goes
// to the provider otherwise. Current weather and alerts are always live.
type Cache struct {
	provider  Provider
	kv        store.KV
	ttl       time.Duration
	retention time.Duration
	now       func() time.Time
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithRetention keeps stored entries for d before the store expires them.
// Values below the freshness TTL are raised to it.
func WithRetention(d time.Duration) CacheOption {
	return func(c *Cache) { c.retention = d }
}

// NewCache creates a Cache. A non-positive ttl means DefaultForecastTTL and a
// nil clock means time.Now. Entries are retained for the TTL unless
// WithRetention says otherwise.
func NewCache(provider Provider, kv store.KV, ttl time.Duration, now func() time.Time, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultForecastTTL
	}
	if now == nil {
		now = time.Now
	}
	c := &Cache{provider: provider, kv: kv, ttl: ttl, now: now}
	for _, opt := range opts {
		opt(c)
	}
	if c.retention < ttl {
		c.retention = ttl
	}
	return c
}

// CacheKey returns the store key for a coordinate pair.
func CacheKey(lat, lon float64) string {
	return "forecast_" + strconv.FormatFloat(lat, 'f', -1, 64) + "_" + strconv.FormatFloat(lon, 'f', -1, 64)
}

// Forecast returns the display forecast for a coordinate pair. A stored entry
// younger than the TTL is used without touching the provider.
func (c *Cache) Forecast(ctx context.Context, lat, lon float64, lang string) (ForecastResult, error) {
	log := klog.FromContext(ctx)
	key := CacheKey(lat, lon)
	now := c.now()

	if entry, ok := c.lookup(ctx, key); ok {
		if now.UnixMilli()-entry.FetchedAtMs < c.ttl.Milliseconds() {
			metrics.RecordForecastCache(true)
			log.V(1).Info("forecast cache hit", "key", key)
			return ForecastResult{
				Points:    TransformForecast(entry.Payload),
				FetchedAt: time.UnixMilli(entry.FetchedAtMs),
				FromCache: true,
			}, nil
		}
	}
	metrics.RecordForecastCache(false)

	raw, err := c.provider.Forecast(ctx, lat, lon, lang)
	if err != nil {
		return ForecastResult{}, fmt.Errorf("fetch forecast: %w", err)
	}

	entry := cachedForecast{FetchedAtMs: now.UnixMilli(), Payload: raw}
	if data, err := json.Marshal(entry); err != nil {
		log.Error(err, "encode forecast cache entry", "key", key)
	} else if err := c.kv.Set(ctx, key, data, c.retention); err != nil {
		// A store failure only costs the next caller a refetch.
		log.Error(err, "store forecast cache entry", "key", key)
	}

	return ForecastResult{
		Points:    TransformForecast(raw),
		FetchedAt: time.UnixMilli(entry.FetchedAtMs),
	}, nil
}

func (c *Cache) lookup(ctx context.Context, key string) (cachedForecast, bool) {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			klog.FromContext(ctx).Error(err, "read forecast cache entry", "key", key)
		}
		return cachedForecast{}, false
	}
	var entry cachedForecast
	if err := json.Unmarshal(data, &entry); err != nil {
		klog.FromContext(ctx).Info("discarding unreadable forecast cache entry", "key", key, "error", err.Error())
		if err := c.kv.Delete(ctx, key); err != nil {
			klog.FromContext(ctx).Error(err, "delete forecast cache entry", "key", key)
		}
		return cachedForecast{}, false
	}
	return entry, true
}

// Current fetches current conditions. Never cached.
func (c *Cache) Current(ctx context.Context, lat, lon float64, lang string) (WeatherSnapshot, error) {
	snap, err := c.provider.Current(ctx, lat, lon, lang)
	if err != nil {
		return WeatherSnapshot{}, fmt.Errorf("fetch current weather: %w", err)
	}
	return snap, nil
}

// Alert returns the first active alert, or nil when there is none.
func (c *Cache) Alert(ctx context.Context, lat, lon float64, lang string) (*Alert, error) {
	alerts, err := c.provider.Alerts(ctx, lat, lon, lang)
	if err != nil {
		return nil, fmt.Errorf("fetch weather alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil, nil
	}
	first := alerts[0]
	return &first, nil
}
