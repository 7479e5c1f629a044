package geo

import (
	"context"
	"errors"

	"github.com/i474232898/farm-dashboard/internal/common"
)

const (
	UnknownArea  = "Unknown Area"
	UnknownState = "Unknown State"

	// NoteNameUnavailable is shown when coordinates are known but could not be
	// named.
	NoteNameUnavailable = "Location name unavailable"
)

// Location sources.
const (
	SourceDevice  = "device"
	SourceProfile = "profile"
	SourceDefault = "default"
)

// ErrPermissionDenied is what a Geolocator returns when the user refused to
// share a position.
var ErrPermissionDenied = errors.New("geolocation permission denied")

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location is the resolved place a dashboard is shown for.
type Location struct {
	District string       `json:"district"`
	State    string       `json:"state"`
	Coords   *Coordinates `json:"coords,omitempty"`
	Source   string       `json:"source,omitempty"`
	// Note is a non-fatal display hint, never an error state.
	Note string `json:"note,omitempty"`
}

// Address holds the reverse-geocoding fields used to name a position.
type Address struct {
	Suburb        string `json:"suburb"`
	Neighbourhood string `json:"neighbourhood"`
	Quarter       string `json:"quarter"`
	Village       string `json:"village"`
	Town          string `json:"town"`
	City          string `json:"city"`
	Municipality  string `json:"municipality"`
	CityDistrict  string `json:"city_district"`
	County        string `json:"county"`
	State         string `json:"state"`
}

// Locality returns the most specific populated locality field.
func (a Address) Locality() string {
	// CityDistrict only when nothing finer is available.
	if v := common.FirstNonEmpty(
		a.Suburb, a.Neighbourhood, a.Quarter, a.Village, a.Town,
		a.City, a.Municipality, a.CityDistrict, a.County,
	); v != "" {
		return v
	}
	return UnknownArea
}

// StateName returns the state field or UnknownState.
func (a Address) StateName() string {
	if a.State != "" {
		return a.State
	}
	return UnknownState
}

// Geolocator is the device position capability. A nil Geolocator means the
// client has none.
type Geolocator interface {
	CurrentPosition(ctx context.Context) (Coordinates, error)
}

// Geocoder converts between coordinates and place names.
type Geocoder interface {
	Reverse(ctx context.Context, c Coordinates) (Address, error)
	Forward(ctx context.Context, query string) ([]Coordinates, error)
}

// DevicePosition is a Geolocator answering with a position reported by the
// client, or with the error the client's geolocation produced.
type DevicePosition struct {
	Position Coordinates
	Err      error
}

func (d DevicePosition) CurrentPosition(ctx context.Context) (Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return Coordinates{}, err
	}
	if d.Err != nil {
		return Coordinates{}, d.Err
	}
	return d.Position, nil
}
