package httpapi

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/farm-dashboard/internal/crops"
	"github.com/i474232898/farm-dashboard/internal/dashboard"
	"github.com/i474232898/farm-dashboard/internal/geo"
	"github.com/i474232898/farm-dashboard/internal/notify"
	"github.com/i474232898/farm-dashboard/internal/store"
	"github.com/i474232898/farm-dashboard/internal/translate"
	"github.com/i474232898/farm-dashboard/internal/upstream"
	"github.com/i474232898/farm-dashboard/internal/weather"
)

var validate = validator.New()

// ForecastSource serves cached forecasts.
type ForecastSource interface {
	Forecast(ctx context.Context, lat, lon float64, lang string) (weather.ForecastResult, error)
}

// API is what the HTTP handlers are served from.
type API struct {
	Sessions      *dashboard.Manager
	Notifications *notify.Service
	Forecasts     ForecastSource
	Languages     *translate.Languages
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, api API) {
	v1 := app.Group("/api/v1")

	v1.Get("/languages", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"languages": api.Languages.Codes()})
	})

	sessions := v1.Group("/dashboard/sessions")

	sessions.Post("/", func(c *fiber.Ctx) error {
		var req openSessionRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		lang, err := api.language(req.Lang)
		if err != nil {
			return err
		}

		s, err := api.Sessions.Open(c.UserContext(), dashboard.OpenRequest{
			UserID:   req.UserID,
			Language: lang,
			Device:   req.device(),
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"sessionID": s.ID(),
			"view":      s.View(),
		})
	})

	sessions.Get("/:id", func(c *fiber.Ctx) error {
		s, err := api.Sessions.Get(c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(s.View())
	})

	sessions.Put("/:id/language", func(c *fiber.Ctx) error {
		var req languageRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		lang, err := api.language(req.Lang)
		if err != nil {
			return err
		}
		s, err := api.Sessions.Get(c.Params("id"))
		if err != nil {
			return err
		}

		s.SetLanguage(c.UserContext(), lang)
		return c.JSON(s.View())
	})

	sessions.Post("/:id/weather/refresh", func(c *fiber.Ctx) error {
		s, err := api.Sessions.Get(c.Params("id"))
		if err != nil {
			return err
		}
		s.RefreshWeather(c.UserContext())
		return c.JSON(s.View())
	})

	sessions.Post("/:id/crops", func(c *fiber.Ctx) error {
		s, err := api.Sessions.Get(c.Params("id"))
		if err != nil {
			return err
		}
		var entry crops.Entry
		if err := c.BodyParser(&entry); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := s.AddCrop(c.UserContext(), entry); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(s.View())
	})

	sessions.Delete("/:id", func(c *fiber.Ctx) error {
		if err := api.Sessions.Close(c.UserContext(), c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/notifications", func(c *fiber.Ctx) error {
		userID := c.Query("userID")
		if userID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "userID query parameter is required")
		}
		entries, err := api.Notifications.List(c.UserContext(), userID)
		if err != nil {
			return err
		}

		out := make([]notificationView, 0, len(entries))
		for _, e := range entries {
			out = append(out, notificationView{ID: e.ID(), Text: e.Text, Date: e.Date})
		}
		return c.JSON(fiber.Map{"userID": userID, "notifications": out})
	})

	v1.Post("/notifications/dismiss", func(c *fiber.Ctx) error {
		var req dismissRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		entry := crops.Entry{Text: req.Text, Date: req.Date}
		if err := api.Notifications.Dismiss(c.UserContext(), req.UserID, entry); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/weather/forecast", func(c *fiber.Ctx) error {
		q, err := parseForecastQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		res, err := api.Forecasts.Forecast(c.UserContext(), q.Lat, q.Lon, translate.BaseLanguage)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"lat":       q.Lat,
			"lon":       q.Lon,
			"points":    res.Points,
			"fetchedAt": res.FetchedAt,
			"fromCache": res.FromCache,
		})
	})
}

// ErrorHandler renders every handler error as JSON, mapping domain errors
// to status codes.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := statusOf(err)
	msg := err.Error()
	if code == fiber.StatusInternalServerError {
		msg = "internal server error"
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": msg,
	})
}

func statusOf(err error) int {
	var fe *fiber.Error
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve),
		errors.Is(err, crops.ErrInvalidEntry),
		errors.Is(err, translate.ErrUnsupportedLanguage):
		return fiber.StatusBadRequest
	case errors.Is(err, dashboard.ErrSessionNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, upstream.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func (api API) language(tag string) (string, error) {
	if tag == "" {
		return "", nil
	}
	return api.Languages.Normalize(tag)
}

func bindBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

type position struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// openSessionRequest carries what the client knows about its position. No
// position and no geolocation error means the client has no geolocation.
type openSessionRequest struct {
	UserID           string    `json:"userID" validate:"required"`
	Lang             string    `json:"lang"`
	Position         *position `json:"position" validate:"omitempty"`
	GeolocationError string    `json:"geolocationError"`
}

func (r openSessionRequest) device() geo.Geolocator {
	switch {
	case r.GeolocationError == "permission_denied":
		return geo.DevicePosition{Err: geo.ErrPermissionDenied}
	case r.GeolocationError != "":
		return geo.DevicePosition{Err: errors.New(r.GeolocationError)}
	case r.Position != nil:
		return geo.DevicePosition{Position: geo.Coordinates{Lat: r.Position.Lat, Lon: r.Position.Lon}}
	default:
		return nil
	}
}

type languageRequest struct {
	Lang string `json:"lang" validate:"required"`
}

type dismissRequest struct {
	UserID string `json:"userID" validate:"required"`
	Text   string `json:"text" validate:"required"`
	Date   string `json:"date" validate:"required"`
}

type notificationView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Date string `json:"date"`
}

type forecastQuery struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}

func parseForecastQuery(c *fiber.Ctx) (forecastQuery, error) {
	var q forecastQuery

	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" || lonStr == "" {
		return q, errors.New("lat and lon query parameters are required")
	}

	var err error
	if q.Lat, err = strconv.ParseFloat(latStr, 64); err != nil {
		return q, errors.New("lat must be a number")
	}
	if q.Lon, err = strconv.ParseFloat(lonStr, 64); err != nil {
		return q, errors.New("lon must be a number")
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}
