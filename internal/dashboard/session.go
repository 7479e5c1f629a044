package dashboard

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/i474232898/farm-dashboard/internal/crops"
	"github.com/i474232898/farm-dashboard/internal/geo"
	"github.com/i474232898/farm-dashboard/internal/schemes"
	"github.com/i474232898/farm-dashboard/internal/weather"
)

// surface is one independently fetched or translated area of the view.
type surface string

const (
	surfaceLocation  surface = "location"
	surfaceCurrent   surface = "current"
	surfaceForecast  surface = "forecast"
	surfaceAlert     surface = "alert"
	surfaceCrops     surface = "crops"
	surfaceSchemes   surface = "schemes"
	surfaceCondition surface = "condition"
)

// translatedSurfaces are recomputed by refreshTranslations.
var translatedSurfaces = []surface{surfaceLocation, surfaceCrops, surfaceSchemes, surfaceCondition, surfaceAlert}

// Session is one user's mounted dashboard.
type Session struct {
	id     string
	userID string
	deps   Deps
	device geo.Geolocator
	ledger *crops.Ledger

	mu           sync.RWMutex
	lang         string
	location     geo.Location
	current      *weather.WeatherSnapshot
	forecast     weather.ForecastResult
	hasForecast  bool
	alert        *weather.Alert
	schemes      []schemes.Record
	translated   map[surface]map[string]string
	fingerprints map[surface]string
	issued       map[surface]uint64
	applied      map[surface]uint64
	lastAccess   time.Time
}

func newSession(id, userID, lang string, device geo.Geolocator, deps Deps) *Session {
	return &Session{
		id:           id,
		userID:       userID,
		deps:         deps,
		device:       device,
		ledger:       crops.NewLedger(deps.Crops, userID, deps.Now),
		lang:         lang,
		translated:   make(map[surface]map[string]string),
		fingerprints: make(map[surface]string),
		issued:       make(map[surface]uint64),
		applied:      make(map[surface]uint64),
		lastAccess:   deps.now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// UserID returns the owner of the session.
func (s *Session) UserID() string { return s.userID }

func (s *Session) logContext(ctx context.Context) context.Context {
	return klog.NewContext(ctx, klog.FromContext(ctx).WithValues("session", s.id, "user", s.userID))
}

// Mount loads everything the dashboard shows. Location and crops load in
// parallel; weather waits for the location, schemes for both.
func (s *Session) Mount(ctx context.Context) {
	ctx = s.logContext(ctx)
	log := klog.FromContext(ctx)

	var loc geo.Location
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loc = s.deps.Locations.Resolve(gctx, s.userID, s.device)
		return nil
	})
	g.Go(func() error {
		if err := s.ledger.Refresh(gctx); err != nil {
			log.Error(err, "loading crops")
		}
		return nil
	})
	_ = g.Wait()

	s.mu.Lock()
	s.location = loc
	s.mu.Unlock()

	s.refreshWeather(ctx, loc)
	s.ensureSchemes(ctx)
	s.refreshTranslations(ctx)

	log.V(1).Info("dashboard mounted", "district", loc.District, "state", loc.State, "source", loc.Source)
}

// begin issues a sequence number for a fetch of surf.
func (s *Session) begin(surf surface) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[surf]++
	return s.issued[surf]
}

// apply runs set under the lock unless a newer fetch of surf has already been
// applied. It reports whether set ran.
func (s *Session) apply(surf surface, seq uint64, set func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.applied[surf] {
		return false
	}
	s.applied[surf] = seq
	set()
	return true
}

// refreshWeather fetches current conditions, forecast and alert
// independently. A failed fetch keeps the previous value.
func (s *Session) refreshWeather(ctx context.Context, loc geo.Location) {
	if loc.Coords == nil {
		return
	}
	log := klog.FromContext(ctx)
	lat, lon := loc.Coords.Lat, loc.Coords.Lon
	lang := s.deps.BaseLanguage

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		seq := s.begin(surfaceCurrent)
		snap, err := s.deps.Weather.Current(ctx, lat, lon, lang)
		if err != nil {
			log.Error(err, "fetching current weather", "lat", lat, "lon", lon)
			return
		}
		s.apply(surfaceCurrent, seq, func() { s.current = &snap })
	}()
	go func() {
		defer wg.Done()
		seq := s.begin(surfaceForecast)
		res, err := s.deps.Weather.Forecast(ctx, lat, lon, lang)
		if err != nil {
			log.Error(err, "fetching forecast", "lat", lat, "lon", lon)
			return
		}
		s.apply(surfaceForecast, seq, func() {
			s.forecast = res
			s.hasForecast = true
		})
	}()
	go func() {
		defer wg.Done()
		seq := s.begin(surfaceAlert)
		alert, err := s.deps.Weather.Alert(ctx, lat, lon, lang)
		if err != nil {
			log.Error(err, "fetching weather alerts", "lat", lat, "lon", lon)
			return
		}
		s.apply(surfaceAlert, seq, func() { s.alert = alert })
	}()
	wg.Wait()
}

// RefreshWeather refetches weather for the resolved location.
func (s *Session) RefreshWeather(ctx context.Context) {
	ctx = s.logContext(ctx)
	s.mu.RLock()
	loc := s.location
	s.mu.RUnlock()

	s.refreshWeather(ctx, loc)
	s.refreshTranslations(ctx)
}

// ensureSchemes runs the initial scheme batch once a state is known and no
// schemes are held.
func (s *Session) ensureSchemes(ctx context.Context) {
	s.mu.RLock()
	state := s.location.State
	held := len(s.schemes) > 0
	s.mu.RUnlock()
	if state == "" || held {
		return
	}

	seq := s.begin(surfaceSchemes)
	recs := s.deps.Schemes.MatchInitial(ctx, s.ledger.ListActive(), s.ledger.ListHistory, state, s.deps.BaseLanguage)
	if len(recs) == 0 {
		return
	}
	s.apply(surfaceSchemes, seq, func() {
		// A crop added during the batch may already have prepended a scheme.
		s.schemes = appendUnique(s.schemes, recs...)
	})
}

func appendUnique(held []schemes.Record, recs ...schemes.Record) []schemes.Record {
	seen := make(map[string]bool, len(held)+len(recs))
	for _, r := range held {
		seen[r.SchemeName] = true
	}
	for _, r := range recs {
		if seen[r.SchemeName] {
			continue
		}
		seen[r.SchemeName] = true
		held = append(held, r)
	}
	return held
}

// AddCrop validates and stores a crop, then prepends one scheme matched for
// it. Invalid entries return crops.ErrInvalidEntry without any network call.
func (s *Session) AddCrop(ctx context.Context, e crops.Entry) error {
	ctx = s.logContext(ctx)
	s.touch()

	e, err := crops.Normalize(e)
	if err != nil {
		return err
	}
	if _, err := s.ledger.Add(ctx, e); err != nil {
		return err
	}

	s.mu.RLock()
	state := s.location.State
	shown := schemes.Names(s.schemes)
	s.mu.RUnlock()

	if rec := s.deps.Schemes.MatchOne(ctx, e.Text, e.Date, state, shown, s.deps.BaseLanguage); rec != nil {
		s.mu.Lock()
		if !containsScheme(s.schemes, rec.SchemeName) {
			s.schemes = append([]schemes.Record{*rec}, s.schemes...)
		}
		s.mu.Unlock()
	}

	s.refreshTranslations(ctx)
	return nil
}

func containsScheme(recs []schemes.Record, name string) bool {
	for _, r := range recs {
		if r.SchemeName == name {
			return true
		}
	}
	return false
}

// Poll reloads the crop list, runs the initial scheme batch if no schemes
// are held yet and retranslates what changed. It is the periodic crop
// poller's job.
func (s *Session) Poll(ctx context.Context) {
	ctx = s.logContext(ctx)
	if err := s.ledger.Refresh(ctx); err != nil {
		klog.FromContext(ctx).Error(err, "polling crops")
		return
	}
	s.ensureSchemes(ctx)
	s.refreshTranslations(ctx)
}

// SetLanguage switches the display language. Every translated surface is
// recomputed; results still in flight for the old language are discarded.
func (s *Session) SetLanguage(ctx context.Context, lang string) {
	ctx = s.logContext(ctx)
	s.touch()

	s.mu.Lock()
	if s.lang == lang {
		s.mu.Unlock()
		return
	}
	s.lang = lang
	s.translated = make(map[surface]map[string]string)
	s.fingerprints = make(map[surface]string)
	s.mu.Unlock()

	s.refreshTranslations(ctx)
}

// Language returns the active display language.
func (s *Session) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lang
}

// sourcesLocked lists the untranslated strings shown on surf. Callers hold mu.
func (s *Session) sourcesLocked(surf surface) []string {
	var out []string
	add := func(v ...string) {
		for _, t := range v {
			if t != "" {
				out = append(out, t)
			}
		}
	}

	switch surf {
	case surfaceLocation:
		add(s.location.District, s.location.State, s.location.Note)
	case surfaceCrops:
		for _, e := range s.ledger.Display() {
			add(e.Text)
		}
	case surfaceSchemes:
		for _, r := range s.schemes {
			add(r.SchemeName, r.StateMinistry, r.Description, r.CropName)
		}
	case surfaceCondition:
		if s.current != nil {
			add(s.current.Condition)
		}
	case surfaceAlert:
		if s.alert != nil {
			add(s.alert.Event, s.alert.Headline, s.alert.Description)
		}
	}
	return out
}

func fingerprint(lang string, sources []string) string {
	return lang + "\x1f" + strings.Join(sources, "\x1f")
}

// refreshTranslations retranslates every surface whose source strings or
// language changed since it was last translated.
func (s *Session) refreshTranslations(ctx context.Context) {
	type job struct {
		surf     surface
		sources  []string
		fp       string
		result   map[string]string
		complete bool
	}

	s.mu.RLock()
	lang := s.lang
	var jobs []*job
	for _, surf := range translatedSurfaces {
		src := s.sourcesLocked(surf)
		fp := fingerprint(lang, src)
		if s.fingerprints[surf] == fp {
			continue
		}
		jobs = append(jobs, &job{surf: surf, sources: src, fp: fp})
	}
	s.mu.RUnlock()

	if len(jobs) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			j.result, j.complete = s.deps.Translator.TranslateAll(gctx, lang, j.sources)
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lang != lang {
		klog.FromContext(ctx).V(1).Info("discarding translations for previous language", "lang", lang)
		return
	}
	for _, j := range jobs {
		// Sources changed while translating; the change's own refresh wins.
		if fingerprint(lang, s.sourcesLocked(j.surf)) != j.fp {
			continue
		}
		s.translated[j.surf] = j.result
		// Fallbacks are shown now and retried on the next refresh.
		if j.complete {
			s.fingerprints[j.surf] = j.fp
		} else {
			delete(s.fingerprints, j.surf)
		}
	}
}

// tr returns the translation of text on surf, or text itself. Callers hold mu.
func (s *Session) tr(surf surface, text string) string {
	if v, ok := s.translated[surf][text]; ok {
		return v
	}
	return text
}

func (s *Session) touch() {
	now := s.deps.now()
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

// IdleSince returns when the session was last used.
func (s *Session) IdleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}

// View returns a translated snapshot of the session.
func (s *Session) View() View {
	s.touch()
	now := s.deps.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		SessionID: s.id,
		UserID:    s.userID,
		Language:  s.lang,
		Location: LocationView{
			District: s.tr(surfaceLocation, s.location.District),
			State:    s.tr(surfaceLocation, s.location.State),
			Source:   s.location.Source,
			Note:     s.tr(surfaceLocation, s.location.Note),
		},
		Crops:   []CropView{},
		Schemes: []SchemeView{},
	}
	if c := s.location.Coords; c != nil {
		lat, lon := c.Lat, c.Lon
		v.Location.Lat, v.Location.Lon = &lat, &lon
	}

	if s.current != nil {
		v.Current = &CurrentView{
			Condition:   s.tr(surfaceCondition, s.current.Condition),
			Kind:        s.current.Kind,
			TempC:       s.current.TempC,
			HumidityPct: s.current.HumidityPct,
			RainMm:      s.current.RainMm,
			IconID:      s.current.IconID,
		}
	}

	v.Forecast.Points = append([]weather.ForecastPoint{}, s.forecast.Points...)
	if s.hasForecast {
		at := s.forecast.FetchedAt
		v.Forecast.FetchedAt = &at
		v.Forecast.FromCache = s.forecast.FromCache
	}

	if s.alert != nil {
		v.Alert = &AlertView{
			Event:       s.tr(surfaceAlert, s.alert.Event),
			Headline:    s.tr(surfaceAlert, s.alert.Headline),
			Description: s.tr(surfaceAlert, s.alert.Description),
			Severity:    s.alert.Severity,
			Start:       s.alert.Start,
			End:         s.alert.End,
		}
	}

	for _, e := range s.ledger.Display() {
		at, _ := crops.ParseDate(e.Date)
		left := crops.TimeLeftLabel(at, now)
		v.Crops = append(v.Crops, CropView{
			Name:          s.tr(surfaceCrops, e.Text),
			Text:          e.Text,
			Date:          e.Date,
			TimeLeft:      left,
			TimeLeftLabel: left.String(),
			Progress:      crops.ProgressPercent(at, now),
		})
	}

	for _, r := range s.schemes {
		v.Schemes = append(v.Schemes, SchemeView{
			Name:        s.tr(surfaceSchemes, r.SchemeName),
			Ministry:    s.tr(surfaceSchemes, r.StateMinistry),
			Description: s.tr(surfaceSchemes, r.Description),
			Link:        r.Link,
			CropName:    s.tr(surfaceSchemes, r.CropName),
			CropDate:    r.CropDate,
		})
	}
	return v
}
