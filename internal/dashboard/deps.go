package dashboard

import (
	"context"
	"time"

	"github.com/i474232898/farm-dashboard/internal/crops"
	"github.com/i474232898/farm-dashboard/internal/geo"
	"github.com/i474232898/farm-dashboard/internal/schemes"
	"github.com/i474232898/farm-dashboard/internal/weather"
)

// LocationResolver turns a user and an optional device position into a
// Location. It never fails.
type LocationResolver interface {
	Resolve(ctx context.Context, userID string, device geo.Geolocator) geo.Location
}

// WeatherSource is the cached weather facade.
type WeatherSource interface {
	Forecast(ctx context.Context, lat, lon float64, lang string) (weather.ForecastResult, error)
	Current(ctx context.Context, lat, lon float64, lang string) (weather.WeatherSnapshot, error)
	Alert(ctx context.Context, lat, lon float64, lang string) (*weather.Alert, error)
}

// SchemeMatcher recommends schemes without repeats.
type SchemeMatcher interface {
	MatchOne(ctx context.Context, crop, cropDate, state string, shown []string, lang string) *schemes.Record
	MatchInitial(ctx context.Context, active []crops.Entry, history schemes.HistoryFetcher, state, lang string) []schemes.Record
}

// Translator translates display strings, memoized per language.
type Translator interface {
	Translate(ctx context.Context, lang, text string) string
	// TranslateAll reports complete=false when any entry fell back to its
	// original text.
	TranslateAll(ctx context.Context, lang string, texts []string) (out map[string]string, complete bool)
}

// Deps are the collaborators a Session is built from.
type Deps struct {
	Locations  LocationResolver
	Weather    WeatherSource
	Crops      crops.Store
	Schemes    SchemeMatcher
	Translator Translator

	// BaseLanguage is the language upstream data is fetched in; translation
	// into the session language happens locally so cache keys stay original.
	BaseLanguage string
	Now          func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
