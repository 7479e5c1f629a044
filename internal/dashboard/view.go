package dashboard

import (
	"time"

	"github.com/i474232898/farm-dashboard/internal/crops"
	"github.com/i474232898/farm-dashboard/internal/weather"
)

// View is a consistent, translated snapshot of a session.
type View struct {
	SessionID string       `json:"sessionID"`
	UserID    string       `json:"userID"`
	Language  string       `json:"lang"`
	Location  LocationView `json:"location"`
	Current   *CurrentView `json:"current,omitempty"`
	Forecast  ForecastView `json:"forecast"`
	Alert     *AlertView   `json:"alert,omitempty"`
	Crops     []CropView   `json:"crops"`
	Schemes   []SchemeView `json:"schemes"`
}

type LocationView struct {
	District string   `json:"district"`
	State    string   `json:"state"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Source   string   `json:"source,omitempty"`
	Note     string   `json:"note,omitempty"`
}

type CurrentView struct {
	Condition   string            `json:"condition"`
	Kind        weather.Condition `json:"kind"`
	TempC       float64           `json:"tempC"`
	HumidityPct float64           `json:"humidityPct"`
	RainMm      float64           `json:"rainMm"`
	IconID      string            `json:"iconId"`
}

type ForecastView struct {
	Points    []weather.ForecastPoint `json:"points"`
	FetchedAt *time.Time              `json:"fetchedAt,omitempty"`
	FromCache bool                    `json:"fromCache"`
}

type AlertView struct {
	Event       string     `json:"event"`
	Headline    string     `json:"headline,omitempty"`
	Description string     `json:"description"`
	Severity    string     `json:"severity,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
}

// CropView is an active crop as displayed. Text and Date are the stored
// values; Name is Text translated.
type CropView struct {
	Name          string         `json:"name"`
	Text          string         `json:"text"`
	Date          string         `json:"date"`
	TimeLeft      crops.TimeLeft `json:"timeLeft"`
	TimeLeftLabel string         `json:"timeLeftLabel"`
	Progress      float64        `json:"progress"`
}

type SchemeView struct {
	Name        string `json:"schemeName"`
	Ministry    string `json:"stateMinistry"`
	Description string `json:"description"`
	Link        string `json:"link"`
	CropName    string `json:"cropName"`
	CropDate    string `json:"cropDate"`
}
