package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/farm-dashboard/internal/crops"
	"github.com/i474232898/farm-dashboard/internal/dashboard"
	"github.com/i474232898/farm-dashboard/internal/geo"
	"github.com/i474232898/farm-dashboard/internal/notify"
	"github.com/i474232898/farm-dashboard/internal/schemes"
	"github.com/i474232898/farm-dashboard/internal/store"
	"github.com/i474232898/farm-dashboard/internal/translate"
	"github.com/i474232898/farm-dashboard/internal/weather"
)

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) Current(ctx context.Context, lat, lon float64, lang string) (weather.WeatherSnapshot, error) {
	return weather.WeatherSnapshot{Condition: "haze", TempC: 35}, nil
}

func (stubProvider) Forecast(ctx context.Context, lat, lon float64, lang string) ([]weather.RawForecastItem, error) {
	return []weather.RawForecastItem{{Time: "2024-06-01 15:00:00", TempC: 36, HumidityPct: 30}}, nil
}

func (stubProvider) Alerts(ctx context.Context, lat, lon float64, lang string) ([]weather.Alert, error) {
	return nil, nil
}

type memCrops struct {
	mu      sync.Mutex
	active  map[string][]crops.Entry
	history map[string][]crops.Entry
}

func (m *memCrops) ListActive(ctx context.Context, userID string) ([]crops.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]crops.Entry(nil), m.active[userID]...), nil
}

func (m *memCrops) ListHistory(ctx context.Context, userID string, limit int) ([]crops.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]crops.Entry(nil), m.history[userID]...), nil
}

func (m *memCrops) Add(ctx context.Context, userID string, e crops.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[userID] = append(m.active[userID], e)
	return nil
}

type noSchemes struct{}

func (noSchemes) MatchByCrop(ctx context.Context, q schemes.Query) (*schemes.Record, error) {
	return nil, nil
}

type tagTranslator struct{}

func (tagTranslator) Translate(ctx context.Context, text, lang string) (string, error) {
	return lang + ":" + text, nil
}

func newTestApp(t *testing.T) (*fiber.App, *memCrops) {
	t.Helper()

	now := func() time.Time { return testNow }
	kv := store.NewMemoryStore()
	cropStore := &memCrops{
		active:  map[string][]crops.Entry{},
		history: map[string][]crops.Entry{"u1": {{Text: "Mustard", Date: "2024-03-01"}, {Text: "Gram", Date: "2024-04-01"}}},
	}
	cache := weather.NewCache(stubProvider{}, kv, weather.DefaultForecastTTL, now)
	langs, err := translate.NewLanguages(nil)
	if err != nil {
		t.Fatal(err)
	}

	manager := dashboard.NewManager(dashboard.Deps{
		Locations:    geo.NewResolver(nil, nil, geo.Location{}),
		Weather:      cache,
		Crops:        cropStore,
		Schemes:      schemes.NewMatcher(noSchemes{}, now),
		Translator:   translate.NewMemo(tagTranslator{}, translate.BaseLanguage),
		BaseLanguage: translate.BaseLanguage,
		Now:          now,
	}, nil, 0, 0)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, API{
		Sessions:      manager,
		Notifications: notify.NewService(cropStore, kv),
		Forecasts:     cache,
		Languages:     langs,
	})
	return app, cropStore
}

func do(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, data
}

func openSession(t *testing.T, app *fiber.App, body string) string {
	t.Helper()
	resp, data := do(t, app, http.MethodPost, "/api/v1/dashboard/sessions", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open session status = %d, body %s", resp.StatusCode, data)
	}
	var out struct {
		SessionID string         `json:"sessionID"`
		View      dashboard.View `json:"view"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	return out.SessionID
}

func TestOpenSession_DefaultLocation(t *testing.T) {
	app, _ := newTestApp(t)

	resp, data := do(t, app, http.MethodPost, "/api/v1/dashboard/sessions", `{"userID":"u1","lang":"hi-IN"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, resp.StatusCode, data)
	}

	var out struct {
		SessionID string         `json:"sessionID"`
		View      dashboard.View `json:"view"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.SessionID == "" {
		t.Error("missing session id")
	}
	v := out.View
	if v.Language != "hi" || v.Location.District != "hi:New Delhi" {
		t.Errorf("view = %+v", v.Location)
	}
	if v.Current == nil || v.Current.Condition != "hi:haze" {
		t.Errorf("current = %+v", v.Current)
	}
	if len(v.Forecast.Points) != 1 || v.Forecast.Points[0].TimeLabel != "3:00 PM" {
		t.Errorf("forecast = %+v", v.Forecast)
	}
}

func TestOpenSession_Validation(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing user", `{"lang":"en"}`},
		{"bad json", `{"userID":`},
		{"unsupported language", `{"userID":"u1","lang":"fr"}`},
		{"latitude out of range", `{"userID":"u1","position":{"lat":120,"lon":10}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, app, http.MethodPost, "/api/v1/dashboard/sessions", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, resp.StatusCode, data)
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	app, cropStore := newTestApp(t)
	id := openSession(t, app, `{"userID":"u1"}`)
	base := "/api/v1/dashboard/sessions/" + id

	resp, data := do(t, app, http.MethodPut, base+"/language", `{"lang":"ta"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("language status = %d: %s", resp.StatusCode, data)
	}
	var v dashboard.View
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatal(err)
	}
	if v.Language != "ta" || v.Location.State != "ta:Delhi" {
		t.Errorf("view after language switch = %+v", v.Location)
	}

	resp, data = do(t, app, http.MethodPost, base+"/crops", `{"text":"Cotton","date":"2024-10-15"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add crop status = %d: %s", resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatal(err)
	}
	if len(v.Crops) != 1 || v.Crops[0].Name != "ta:Cotton" {
		t.Errorf("crops = %+v", v.Crops)
	}

	resp, _ = do(t, app, http.MethodPost, base+"/crops", `{"text":"","date":"2024-10-15"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid crop status = %d, want 400", resp.StatusCode)
	}
	if got := len(cropStore.active["u1"]); got != 1 {
		t.Errorf("stored crops = %d, want 1", got)
	}

	resp, _ = do(t, app, http.MethodGet, base, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get status = %d", resp.StatusCode)
	}

	resp, _ = do(t, app, http.MethodDelete, base, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}
	resp, _ = do(t, app, http.MethodGet, base, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestNotifications_ListAndDismiss(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := do(t, app, http.MethodGet, "/api/v1/notifications", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing userID status = %d, want 400", resp.StatusCode)
	}

	resp, _ = do(t, app, http.MethodPost, "/api/v1/notifications/dismiss", `{"userID":"u1","text":"Mustard","date":"2024-03-01"}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("dismiss status = %d, want 204", resp.StatusCode)
	}

	resp, data := do(t, app, http.MethodGet, "/api/v1/notifications?userID=u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var out struct {
		Notifications []notificationView `json:"notifications"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Notifications) != 1 || out.Notifications[0].ID != "Gram_2024-04-01" {
		t.Errorf("notifications = %+v, want only Gram", out.Notifications)
	}
}

func TestForecastQueryValidation(t *testing.T) {
	app, _ := newTestApp(t)

	for _, target := range []string{
		"/api/v1/weather/forecast",
		"/api/v1/weather/forecast?lat=abc&lon=77",
		"/api/v1/weather/forecast?lat=28.6&lon=200",
	} {
		resp, _ := do(t, app, http.MethodGet, target, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected status %d, got %d", target, http.StatusBadRequest, resp.StatusCode)
		}
	}

	resp, data := do(t, app, http.MethodGet, "/api/v1/weather/forecast?lat=28.6139&lon=77.209", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("forecast status = %d: %s", resp.StatusCode, data)
	}
	resp, data = do(t, app, http.MethodGet, "/api/v1/weather/forecast?lat=28.6139&lon=77.209", "")
	var out struct {
		FromCache bool `json:"fromCache"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || !out.FromCache {
		t.Errorf("second forecast should come from cache: %s", data)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{dashboard.ErrSessionNotFound, fiber.StatusNotFound},
		{crops.ErrInvalidEntry, fiber.StatusBadRequest},
		{translate.ErrUnsupportedLanguage, fiber.StatusBadRequest},
		{fiber.NewError(fiber.StatusConflict, "x"), fiber.StatusConflict},
		{context.DeadlineExceeded, fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusOf(tt.err); got != tt.want {
			t.Errorf("statusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
