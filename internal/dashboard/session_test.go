package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/farm-dashboard/internal/crops"
	"github.com/i474232898/farm-dashboard/internal/geo"
	"github.com/i474232898/farm-dashboard/internal/profile"
	"github.com/i474232898/farm-dashboard/internal/schemes"
	"github.com/i474232898/farm-dashboard/internal/translate"
	"github.com/i474232898/farm-dashboard/internal/weather"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type weatherCall struct {
	op       string
	lat, lon float64
}

type fakeWeather struct {
	mu      sync.Mutex
	calls   []weatherCall
	current weather.WeatherSnapshot
	alert   *weather.Alert
	err     error
}

func (f *fakeWeather) record(op string, lat, lon float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, weatherCall{op, lat, lon})
	return f.err
}

func (f *fakeWeather) Forecast(ctx context.Context, lat, lon float64, lang string) (weather.ForecastResult, error) {
	if err := f.record("forecast", lat, lon); err != nil {
		return weather.ForecastResult{}, err
	}
	return weather.ForecastResult{
		Points:    []weather.ForecastPoint{{TimeLabel: "3:00 PM", TempC: 31}},
		FetchedAt: fixedNow,
	}, nil
}

func (f *fakeWeather) Current(ctx context.Context, lat, lon float64, lang string) (weather.WeatherSnapshot, error) {
	if err := f.record("current", lat, lon); err != nil {
		return weather.WeatherSnapshot{}, err
	}
	return f.current, nil
}

func (f *fakeWeather) Alert(ctx context.Context, lat, lon float64, lang string) (*weather.Alert, error) {
	if err := f.record("alert", lat, lon); err != nil {
		return nil, err
	}
	return f.alert, nil
}

func (f *fakeWeather) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeWeather) snapshot() []weatherCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]weatherCall(nil), f.calls...)
}

type fakeCrops struct {
	mu      sync.Mutex
	active  []crops.Entry
	history []crops.Entry
	adds    int
}

func (f *fakeCrops) ListActive(ctx context.Context, userID string) ([]crops.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]crops.Entry(nil), f.active...), nil
}

func (f *fakeCrops) ListHistory(ctx context.Context, userID string, limit int) ([]crops.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > 0 && limit < len(f.history) {
		return append([]crops.Entry(nil), f.history[:limit]...), nil
	}
	return append([]crops.Entry(nil), f.history...), nil
}

func (f *fakeCrops) Add(ctx context.Context, userID string, e crops.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	f.active = append(f.active, e)
	return nil
}

type fakeGeocoder struct {
	hits []geo.Coordinates
}

func (f *fakeGeocoder) Reverse(ctx context.Context, c geo.Coordinates) (geo.Address, error) {
	return geo.Address{}, errors.New("offline")
}

func (f *fakeGeocoder) Forward(ctx context.Context, query string) ([]geo.Coordinates, error) {
	return f.hits, nil
}

type fakeProfiles map[string]profile.User

func (f fakeProfiles) GetUser(ctx context.Context, id string) (profile.User, error) {
	u, ok := f[id]
	if !ok {
		return profile.User{}, profile.ErrNotFound
	}
	return u, nil
}

// catalog recommends the first scheme not already shown.
type catalog struct {
	names []string
}

func (c *catalog) MatchByCrop(ctx context.Context, q schemes.Query) (*schemes.Record, error) {
	shown := make(map[string]bool)
	for _, n := range q.Shown {
		shown[n] = true
	}
	for _, n := range c.names {
		if !shown[n] {
			return &schemes.Record{SchemeName: n, StateMinistry: "Agriculture", Description: n + " support"}, nil
		}
	}
	return nil, nil
}

type countingTranslator struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (t *countingTranslator) Translate(ctx context.Context, text, lang string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.calls == nil {
		t.calls = make(map[string]int)
	}
	t.calls[lang+":"+text]++
	if t.err != nil {
		return "", t.err
	}
	return "[" + lang + "] " + text, nil
}

func (t *countingTranslator) setErr(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

func (t *countingTranslator) count(lang, text string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[lang+":"+text]
}

func (t *countingTranslator) total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.calls {
		n += c
	}
	return n
}

type fixture struct {
	weather    *fakeWeather
	crops      *fakeCrops
	translator *countingTranslator
	deps       Deps
}

func newFixture(profiles fakeProfiles, hits []geo.Coordinates) *fixture {
	f := &fixture{
		weather:    &fakeWeather{current: weather.WeatherSnapshot{Condition: "clear sky", TempC: 33}},
		crops:      &fakeCrops{},
		translator: &countingTranslator{},
	}
	now := func() time.Time { return fixedNow }
	f.deps = Deps{
		Locations:    geo.NewResolver(&fakeGeocoder{hits: hits}, profiles, geo.Location{}),
		Weather:      f.weather,
		Crops:        f.crops,
		Schemes:      schemes.NewMatcher(&catalog{names: []string{"PM-KISAN", "PMFBY", "KCC", "SMAM"}}, now),
		Translator:   translate.NewMemo(f.translator, "en"),
		BaseLanguage: "en",
		Now:          now,
	}
	return f
}

func TestMount_DefaultLocationWithoutGeolocationOrProfile(t *testing.T) {
	f := newFixture(fakeProfiles{}, nil)
	s := newSession("s1", "u1", "en", nil, f.deps)

	s.Mount(context.Background())
	v := s.View()

	if v.Location.District != "New Delhi" || v.Location.State != "Delhi" {
		t.Errorf("location = %s/%s, want New Delhi/Delhi", v.Location.District, v.Location.State)
	}

	calls := f.weather.snapshot()
	if len(calls) != 3 {
		t.Fatalf("weather called %d times, want 3: %+v", len(calls), calls)
	}
	ops := map[string]bool{}
	for _, c := range calls {
		ops[c.op] = true
		if c.lat != 28.6139 || c.lon != 77.2090 {
			t.Errorf("%s fetched at (%v, %v), want (28.6139, 77.2090)", c.op, c.lat, c.lon)
		}
	}
	if !ops["current"] || !ops["forecast"] || !ops["alert"] {
		t.Errorf("expected one current, forecast and alert fetch, got %+v", calls)
	}
}

func TestMount_BuildsTranslatedView(t *testing.T) {
	f := newFixture(
		fakeProfiles{"u1": {State: "Punjab", District: "Ludhiana"}},
		[]geo.Coordinates{{Lat: 30.9, Lon: 75.85}},
	)
	f.crops.active = []crops.Entry{
		{Text: "Wheat", Date: "2024-07-16"},
		{Text: "Paddy", Date: "2024-05-01"},
	}
	f.crops.history = []crops.Entry{{Text: "Mustard", Date: "2024-03-01"}}

	s := newSession("s1", "u1", "hi", geo.DevicePosition{Err: geo.ErrPermissionDenied}, f.deps)
	s.Mount(context.Background())
	v := s.View()

	if v.Location.District != "[hi] Ludhiana" || v.Location.State != "[hi] Punjab" {
		t.Errorf("location = %+v", v.Location)
	}
	if v.Location.Lat == nil || *v.Location.Lat != 30.9 {
		t.Errorf("lat = %v, want 30.9", v.Location.Lat)
	}
	if v.Current == nil || v.Current.Condition != "[hi] clear sky" {
		t.Errorf("current = %+v", v.Current)
	}
	if len(v.Forecast.Points) != 1 || v.Forecast.FetchedAt == nil {
		t.Errorf("forecast = %+v", v.Forecast)
	}

	if len(v.Crops) != 1 {
		t.Fatalf("crops = %+v, want only the future crop", v.Crops)
	}
	c := v.Crops[0]
	if c.Name != "[hi] Wheat" || c.Text != "Wheat" || c.TimeLeftLabel != "2 months" {
		t.Errorf("crop view = %+v", c)
	}

	// Two ledger entries plus one history entry are three candidates.
	if len(v.Schemes) != 3 {
		t.Fatalf("schemes = %+v, want 3", v.Schemes)
	}
	seen := map[string]bool{}
	for _, sc := range v.Schemes {
		if seen[sc.Name] {
			t.Errorf("duplicate scheme %q", sc.Name)
		}
		seen[sc.Name] = true
	}
	if v.Schemes[0].Name != "[hi] PM-KISAN" || v.Schemes[0].CropName != "[hi] Wheat" {
		t.Errorf("first scheme = %+v", v.Schemes[0])
	}
	if v.Schemes[2].CropName != "[hi] Mustard" {
		t.Errorf("history crop scheme = %+v", v.Schemes[2])
	}
}

func TestSetLanguage_RetranslatesEverySurface(t *testing.T) {
	f := newFixture(
		fakeProfiles{"u1": {State: "Punjab"}},
		[]geo.Coordinates{{Lat: 30.7, Lon: 76.7}},
	)
	f.crops.active = []crops.Entry{{Text: "Wheat", Date: "2024-12-01"}}
	s := newSession("s1", "u1", "en", nil, f.deps)
	ctx := context.Background()

	s.Mount(ctx)
	if f.translator.total() != 0 {
		t.Fatalf("base language should not translate, got %d calls", f.translator.total())
	}
	if v := s.View(); v.Crops[0].Name != "Wheat" {
		t.Errorf("crop name = %q, want Wheat", v.Crops[0].Name)
	}

	s.SetLanguage(ctx, "hi")
	v := s.View()
	if v.Language != "hi" || v.Crops[0].Name != "[hi] Wheat" || v.Location.State != "[hi] Punjab" {
		t.Errorf("view after switch = %+v", v)
	}
	if v.Current.Condition != "[hi] clear sky" || v.Schemes[0].Name != "[hi] PM-KISAN" {
		t.Errorf("weather/scheme surfaces not retranslated: %+v %+v", v.Current, v.Schemes)
	}
	if got := f.translator.count("hi", "Wheat"); got != 1 {
		t.Errorf("Wheat translated %d times, want 1", got)
	}

	s.SetLanguage(ctx, "ta")
	if v := s.View(); v.Crops[0].Name != "[ta] Wheat" {
		t.Errorf("crop name after second switch = %q", v.Crops[0].Name)
	}

	s.SetLanguage(ctx, "hi")
	if got := f.translator.count("hi", "Wheat"); got != 1 {
		t.Errorf("switching back should reuse the hi cache, got %d calls", got)
	}

	s.SetLanguage(ctx, "en")
	if v := s.View(); v.Crops[0].Name != "Wheat" || v.Location.State != "Punjab" {
		t.Errorf("view after switching back to base = %+v", v)
	}
}

func TestAddCrop_PrependsFreshScheme(t *testing.T) {
	f := newFixture(fakeProfiles{"u1": {State: "Punjab"}}, []geo.Coordinates{{Lat: 30.7, Lon: 76.7}})
	f.crops.active = []crops.Entry{{Text: "Wheat", Date: "2024-12-01"}, {Text: "Rice", Date: "2024-11-01"}, {Text: "Maize", Date: "2024-10-01"}}
	s := newSession("s1", "u1", "en", nil, f.deps)
	ctx := context.Background()
	s.Mount(ctx)

	if err := s.AddCrop(ctx, crops.Entry{Text: " Cotton ", Date: "2025-01-10"}); err != nil {
		t.Fatalf("AddCrop() error = %v", err)
	}

	v := s.View()
	if len(v.Schemes) != 4 || v.Schemes[0].Name != "SMAM" || v.Schemes[0].CropName != "Cotton" {
		t.Errorf("schemes = %+v, want SMAM for Cotton first", v.Schemes)
	}
	if v.Crops[0].Text != "Cotton" {
		t.Errorf("crops = %+v, want Cotton first (furthest date)", v.Crops)
	}
}

func TestAddCrop_InvalidEntryIsRejectedLocally(t *testing.T) {
	f := newFixture(fakeProfiles{}, nil)
	s := newSession("s1", "u1", "en", nil, f.deps)
	s.Mount(context.Background())

	err := s.AddCrop(context.Background(), crops.Entry{Text: "  ", Date: "2025-01-01"})
	if !errors.Is(err, crops.ErrInvalidEntry) {
		t.Fatalf("AddCrop() error = %v, want ErrInvalidEntry", err)
	}
	if f.crops.adds != 0 {
		t.Errorf("store called %d times, want 0", f.crops.adds)
	}
}

func TestRefreshWeather_FailureKeepsPreviousState(t *testing.T) {
	f := newFixture(fakeProfiles{}, nil)
	f.weather.alert = &weather.Alert{Event: "Heat Wave"}
	s := newSession("s1", "u1", "en", nil, f.deps)
	ctx := context.Background()
	s.Mount(ctx)

	f.weather.setErr(errors.New("provider down"))
	s.RefreshWeather(ctx)

	v := s.View()
	if v.Current == nil || v.Current.Condition != "clear sky" {
		t.Errorf("current = %+v, want previous snapshot", v.Current)
	}
	if v.Alert == nil || v.Alert.Event != "Heat Wave" {
		t.Errorf("alert = %+v, want previous alert", v.Alert)
	}
	if len(v.Forecast.Points) != 1 {
		t.Errorf("forecast = %+v, want previous points", v.Forecast)
	}
}

func TestApply_DropsStaleResponses(t *testing.T) {
	s := newSession("s1", "u1", "en", nil, newFixture(fakeProfiles{}, nil).deps)

	older := s.begin(surfaceCurrent)
	newer := s.begin(surfaceCurrent)

	if !s.apply(surfaceCurrent, newer, func() { s.current = &weather.WeatherSnapshot{Condition: "new"} }) {
		t.Fatal("newest response should apply")
	}
	if s.apply(surfaceCurrent, older, func() { s.current = &weather.WeatherSnapshot{Condition: "old"} }) {
		t.Error("older response applied after a newer one")
	}
	if s.current.Condition != "new" {
		t.Errorf("current = %q, want new", s.current.Condition)
	}
}

// gatedTranslator blocks translations into one language until released.
type gatedTranslator struct {
	lang    string
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedTranslator) Translate(ctx context.Context, lang, text string) string {
	return "[" + lang + "] " + text
}

func (g *gatedTranslator) TranslateAll(ctx context.Context, lang string, texts []string) (map[string]string, bool) {
	if lang == g.lang {
		g.once.Do(func() { close(g.started) })
		<-g.release
	}
	out := make(map[string]string, len(texts))
	for _, t := range texts {
		out[t] = g.Translate(ctx, lang, t)
	}
	return out, true
}

func TestSetLanguage_DiscardsResultsForPreviousLanguage(t *testing.T) {
	f := newFixture(fakeProfiles{}, nil)
	gate := &gatedTranslator{lang: "hi", started: make(chan struct{}), release: make(chan struct{})}
	f.deps.Translator = gate
	s := newSession("s1", "u1", "en", nil, f.deps)
	ctx := context.Background()
	s.Mount(ctx)

	done := make(chan struct{})
	go func() {
		s.SetLanguage(ctx, "hi")
		close(done)
	}()

	select {
	case <-gate.started:
	case <-time.After(2 * time.Second):
		t.Fatal("hi translation never started")
	}

	s.SetLanguage(ctx, "ta")
	close(gate.release)
	<-done

	v := s.View()
	if v.Language != "ta" || v.Location.District != "[ta] New Delhi" {
		t.Errorf("view = %+v, want ta translations", v.Location)
	}
}

func TestPoll_PicksUpNewCrops(t *testing.T) {
	f := newFixture(fakeProfiles{}, nil)
	s := newSession("s1", "u1", "hi", nil, f.deps)
	ctx := context.Background()
	s.Mount(ctx)

	if v := s.View(); len(v.Crops) != 0 {
		t.Fatalf("crops = %+v, want none", v.Crops)
	}

	f.crops.mu.Lock()
	f.crops.active = []crops.Entry{{Text: "Bajra", Date: "2024-09-01"}}
	f.crops.mu.Unlock()
	s.Poll(ctx)

	v := s.View()
	if len(v.Crops) != 1 || v.Crops[0].Name != "[hi] Bajra" {
		t.Errorf("crops after poll = %+v", v.Crops)
	}
}

func TestPoll_RunsSchemeBatchOnceCropsArrive(t *testing.T) {
	f := newFixture(fakeProfiles{}, nil)
	s := newSession("s1", "u1", "hi", nil, f.deps)
	ctx := context.Background()
	s.Mount(ctx)

	if v := s.View(); len(v.Schemes) != 0 {
		t.Fatalf("schemes = %+v, want none without crops", v.Schemes)
	}

	f.crops.mu.Lock()
	f.crops.active = []crops.Entry{{Text: "Bajra", Date: "2024-09-01"}}
	f.crops.mu.Unlock()
	s.Poll(ctx)

	v := s.View()
	if len(v.Schemes) != 1 || v.Schemes[0].Name != "[hi] PM-KISAN" || v.Schemes[0].CropName != "[hi] Bajra" {
		t.Fatalf("schemes after poll = %+v, want PM-KISAN for Bajra", v.Schemes)
	}

	// Held schemes are not rebuilt by later polls.
	s.Poll(ctx)
	if v := s.View(); len(v.Schemes) != 1 {
		t.Errorf("schemes after second poll = %+v", v.Schemes)
	}
}

func TestRefresh_RetriesTranslationsThatFellBack(t *testing.T) {
	f := newFixture(fakeProfiles{}, nil)
	f.crops.active = []crops.Entry{{Text: "Jowar", Date: "2024-10-01"}}
	f.translator.setErr(errors.New("translator offline"))
	s := newSession("s1", "u1", "hi", nil, f.deps)
	ctx := context.Background()
	s.Mount(ctx)

	v := s.View()
	if v.Location.District != "New Delhi" || v.Crops[0].Name != "Jowar" || v.Current.Condition != "clear sky" {
		t.Fatalf("view while translator is down = %+v, want originals", v)
	}

	f.translator.setErr(nil)
	s.Poll(ctx)
	v = s.View()
	if v.Location.District != "[hi] New Delhi" || v.Crops[0].Name != "[hi] Jowar" {
		t.Errorf("after poll: district %q crop %q, want translations", v.Location.District, v.Crops[0].Name)
	}

	s.RefreshWeather(ctx)
	if v := s.View(); v.Current.Condition != "[hi] clear sky" {
		t.Errorf("after weather refresh: condition %q, want translation", v.Current.Condition)
	}

	// Translated surfaces are settled and not requested again.
	before := f.translator.count("hi", "New Delhi")
	s.Poll(ctx)
	if got := f.translator.count("hi", "New Delhi"); got != before {
		t.Errorf("New Delhi requested %d more times after it translated", got-before)
	}
}

func TestFingerprint(t *testing.T) {
	a := fingerprint("hi", []string{"Wheat", "Rice"})
	b := fingerprint("ta", []string{"Wheat", "Rice"})
	c := fingerprint("hi", []string{"Wheat"})
	if a == b || a == c {
		t.Errorf("fingerprints collide: %q %q %q", a, b, c)
	}
}
