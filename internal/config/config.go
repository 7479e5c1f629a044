package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/i474232898/farm-dashboard/internal/geo"
	"github.com/i474232898/farm-dashboard/internal/translate"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Crop store backends.
const (
	CropStoreHTTP = "http"
	CropStoreSQL  = "sql"
)

type AppConfig struct {
	Port        string
	HTTPTimeout time.Duration

	// BackendURL serves crops, schemes, translation and user profiles.
	BackendURL string

	OpenWeatherAPIKey string
	WeatherAPIKey     string
	OpenMeteoURL      string

	NominatimURL         string
	GoogleGeocoderAPIKey string
	DefaultLocation      geo.Location
	Languages            []string
	BaseLanguage         string
	ForecastTTL          time.Duration
	CropPollInterval     time.Duration
	SessionIdleTTL       time.Duration
	SchedulerJobTimeout  time.Duration

	// StoreMaxAge is how long cached forecasts stay in the store.
	StoreMaxAge   time.Duration
	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string

	CropStore    string
	CropDBDriver string
	CropDBDSN    string
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE.
type fileConfig struct {
	BaseLanguage    string   `yaml:"base_language"`
	Languages       []string `yaml:"languages"`
	DefaultLocation *struct {
		District string  `yaml:"district"`
		State    string  `yaml:"state"`
		Lat      float64 `yaml:"lat"`
		Lon      float64 `yaml:"lon"`
	} `yaml:"default_location"`
}

// Load reads configuration from environment with sensible defaults, then
// applies the YAML file named by CONFIG_FILE, if any.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		klog.V(1).Info("no .env file loaded", "error", err.Error())
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.BackendURL = getenvDefault("BACKEND_URL", "http://localhost:5000")
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.OpenMeteoURL = os.Getenv("OPENMETEO_URL")
	cfg.NominatimURL = getenvDefault("NOMINATIM_URL", geo.DefaultNominatimURL)
	cfg.GoogleGeocoderAPIKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")
	cfg.BaseLanguage = getenvDefault("BASE_LANGUAGE", translate.BaseLanguage)
	cfg.Languages = splitList(os.Getenv("LANGUAGES"))
	cfg.DefaultLocation = geo.DefaultLocation

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ForecastTTL, err = getenvDuration("FORECAST_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CropPollInterval, err = getenvDuration("CROP_POLL_INTERVAL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = getenvDuration("SESSION_IDLE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SchedulerJobTimeout, err = getenvDuration("SCHEDULER_JOB_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", time.Hour); err != nil {
		return nil, err
	}

	cfg.StoreBackend = strings.ToLower(getenvDefault("STORE_BACKEND", StoreMemory))
	cfg.RedisAddr = getenvDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getenvInt("REDIS_DB", 0)
	cfg.SQLitePath = getenvDefault("SQLITE_PATH", "farm-dashboard.db")

	cfg.CropStore = strings.ToLower(getenvDefault("CROP_STORE", CropStoreHTTP))
	cfg.CropDBDriver = strings.ToLower(getenvDefault("CROP_DB_DRIVER", "mysql"))
	cfg.CropDBDSN = os.Getenv("CROP_DB_DSN")

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.BaseLanguage != "" {
		c.BaseLanguage = fc.BaseLanguage
	}
	if len(fc.Languages) > 0 {
		c.Languages = fc.Languages
	}
	if d := fc.DefaultLocation; d != nil {
		c.DefaultLocation = geo.Location{
			District: d.District,
			State:    d.State,
			Coords:   &geo.Coordinates{Lat: d.Lat, Lon: d.Lon},
			Source:   geo.SourceDefault,
		}
	}
	return nil
}

func (c *AppConfig) validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.CropStore {
	case CropStoreHTTP:
	case CropStoreSQL:
		if c.CropDBDSN == "" {
			return errors.New("CROP_DB_DSN is required when CROP_STORE=sql")
		}
	default:
		return fmt.Errorf("invalid CROP_STORE %q", c.CropStore)
	}
	if c.StoreMaxAge < c.ForecastTTL {
		return fmt.Errorf("STORE_MAX_AGE %s is shorter than FORECAST_TTL %s", c.StoreMaxAge, c.ForecastTTL)
	}
	if c.DefaultLocation.District == "" || c.DefaultLocation.State == "" {
		return errors.New("default location needs a district and a state")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
